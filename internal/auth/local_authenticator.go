package auth

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

// LocalAuthenticator validates HS256 session tokens signed with a shared
// key. Used for on-premise deployments without an identity provider.
type LocalAuthenticator struct {
	signingKey []byte
}

func NewLocalAuthenticator(signingKey []byte) (*LocalAuthenticator, error) {
	if len(signingKey) == 0 {
		return nil, errors.New("local authentication requires a signing key")
	}
	return &LocalAuthenticator{signingKey: signingKey}, nil
}

func (l *LocalAuthenticator) Authenticate(token string) (User, error) {
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Name}), jwt.WithIssuedAt(), jwt.WithExpirationRequired())
	t, err := parser.Parse(token, func(t *jwt.Token) (any, error) {
		return l.signingKey, nil
	})
	if err != nil {
		zap.S().Named("auth").Errorw("failed to parse or the token is invalid", "error", err)
		return User{}, fmt.Errorf("failed to authenticate token: %w", err)
	}

	if !t.Valid {
		return User{}, fmt.Errorf("failed to parse or validate token")
	}

	return parseUserToken(t)
}

// Authenticator resolves the session into a user on the request context.
// A missing or invalid token leaves the context without a user; the role
// guards downstream are the single rejection point.
func (l *LocalAuthenticator) Authenticator(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		accessToken := r.Header.Get("Authorization")
		if len(accessToken) <= len("Bearer ") {
			next.ServeHTTP(w, r)
			return
		}

		accessToken = accessToken[len("Bearer "):]
		user, err := l.Authenticate(accessToken)
		if err != nil {
			next.ServeHTTP(w, r)
			return
		}

		ctx := NewUserContext(r.Context(), user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
