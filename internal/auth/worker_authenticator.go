package auth

import (
	"crypto/subtle"
	"net/http"

	"github.com/go-chi/render"
)

// WorkerTokenHeader carries the shared worker credential. There is no
// per-worker identity behind it: every GPU node presents the same secret.
const WorkerTokenHeader = "X-Worker-Token"

type WorkerAuthenticator struct {
	token string
}

func NewWorkerAuthenticator(token string) *WorkerAuthenticator {
	return &WorkerAuthenticator{token: token}
}

// Authenticate compares a presented token against the configured secret.
// An empty configured secret rejects everything rather than opening the
// worker endpoints up.
func (wa *WorkerAuthenticator) Authenticate(token string) bool {
	if wa.token == "" || token == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(wa.token), []byte(token)) == 1
}

func (wa *WorkerAuthenticator) Authenticator(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !wa.Authenticate(r.Header.Get(WorkerTokenHeader)) {
			render.Status(r, http.StatusUnauthorized)
			render.JSON(w, r, map[string]string{"error": "Unauthorized"})
			return
		}

		next.ServeHTTP(w, r)
	})
}
