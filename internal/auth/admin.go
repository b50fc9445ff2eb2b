package auth

import (
	"net/http"

	"github.com/go-chi/render"
)

// AdminRequired rejects callers whose session does not carry the admin
// role. It assumes an authenticator already ran and resolved the user; a
// request without a user is as forbidden as one with the wrong role.
func AdminRequired(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, found := UserFromContext(r.Context())
		if !found || user.Role != RoleAdmin {
			render.Status(r, http.StatusForbidden)
			render.JSON(w, r, map[string]string{"error": "Forbidden"})
			return
		}

		next.ServeHTTP(w, r)
	})
}
