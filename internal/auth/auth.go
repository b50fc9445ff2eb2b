package auth

import (
	"net/http"

	"github.com/gpufleet/reviewqueue/internal/config"
	"go.uber.org/zap"
)

type Authenticator interface {
	Authenticator(next http.Handler) http.Handler
}

const (
	JwkAuthentication   string = "jwk"
	LocalAuthentication string = "local"
	NoneAuthentication  string = "none"
)

// NewAuthenticator builds the admin-side authenticator selected by the
// configuration. The default is the none authenticator, which trusts every
// caller and is meant for development only.
func NewAuthenticator(authConfig config.Auth) (Authenticator, error) {
	zap.S().Named("auth").Infof("authentication: '%s'", authConfig.AuthenticationType)

	switch authConfig.AuthenticationType {
	case JwkAuthentication:
		return NewJwkAuthenticator(authConfig.JwkCertURL)
	case LocalAuthentication:
		return NewLocalAuthenticator([]byte(authConfig.LocalSigningKey))
	default:
		return NewNoneAuthenticator()
	}
}
