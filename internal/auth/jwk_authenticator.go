package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	keyfunc "github.com/MicahParks/keyfunc/v3"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

// JwkAuthenticator validates RS256 session tokens against the identity
// provider's published JWK set.
type JwkAuthenticator struct {
	keyFn func(t *jwt.Token) (any, error)
}

func NewJwkAuthenticatorWithKeyFn(keyFn func(t *jwt.Token) (any, error)) (*JwkAuthenticator, error) {
	return &JwkAuthenticator{keyFn: keyFn}, nil
}

func NewJwkAuthenticator(jwkCertUrl string) (*JwkAuthenticator, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	k, err := keyfunc.NewDefaultCtx(ctx, []string{jwkCertUrl})
	if err != nil {
		return nil, fmt.Errorf("failed to get sso public keys: %w", err)
	}

	return &JwkAuthenticator{keyFn: k.Keyfunc}, nil
}

func (j *JwkAuthenticator) Authenticate(token string) (User, error) {
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Name}), jwt.WithIssuedAt(), jwt.WithExpirationRequired())
	t, err := parser.Parse(token, j.keyFn)
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
func (j *JwkAuthenticator) Authenticator(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		accessToken := r.Header.Get("Authorization")
		if len(accessToken) <= len("Bearer ") {
			next.ServeHTTP(w, r)
			return
		}

		accessToken = accessToken[len("Bearer "):]
		user, err := j.Authenticate(accessToken)
		if err != nil {
			next.ServeHTTP(w, r)
			return
		}

		ctx := NewUserContext(r.Context(), user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func parseUserToken(userToken *jwt.Token) (User, error) {
	claims, ok := userToken.Claims.(jwt.MapClaims)
	if !ok {
		return User{}, errors.New("failed to parse jwt token claims")
	}

	user := User{Token: userToken}
	if username, ok := claims["preferred_username"].(string); ok {
		user.Username = username
	}
	if orgID, ok := claims["org_id"].(string); ok {
		user.Organization = orgID
	}
	if role, ok := claims["role"].(string); ok {
		user.Role = role
	}

	return user, nil
}
