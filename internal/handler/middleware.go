package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/antonwidjaya/store-api/internal/domain/order"
	"github.com/antonwidjaya/store-api/internal/domain/user"
)

type identityKey struct{}

// identityFrom returns the authenticated caller stored by authenticate.
func identityFrom(ctx context.Context) (order.Identity, bool) {
	id, ok := ctx.Value(identityKey{}).(order.Identity)
	return id, ok
}

// authenticate verifies the Bearer token, confirms the account still exists,
// and stores the caller identity in the request context. The role is taken
// from the database, not the token, so role changes apply immediately.
func (h *Handler) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			respondError(w, r, errUnauthenticated)
			return
		}

		claims, err := h.tokens.Verify(token)
		if err != nil {
			respondError(w, r, errUnauthenticated)
			return
		}

		u, err := h.users.GetByID(r.Context(), claims.UserID)
		if err != nil {
			respondError(w, r, errUnauthenticated)
			return
		}

		identity := order.Identity{UserID: u.ID, Role: u.Role}
		ctx := context.WithValue(r.Context(), identityKey{}, identity)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requireAdmin rejects non-admin callers. Must run after authenticate.
func (h *Handler) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity, ok := identityFrom(r.Context())
		if !ok {
			respondError(w, r, errUnauthenticated)
			return
		}
		if identity.Role != user.RoleAdmin {
			respondError(w, r, errForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}
