package handler

import (
	"net/http"
	"net/mail"

	"github.com/go-chi/chi/v5"

	"github.com/antonwidjaya/store-api/internal/domain/auth"
)

// listUsers returns all accounts. Admin only.
func (h *Handler) listUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.users.List(r.Context())
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondData(w, http.StatusOK, toUserResponses(users))
}

// searchUsers returns accounts whose name matches ?name=. Admin only.
func (h *Handler) searchUsers(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("name")
	if name == "" {
		respondError(w, r, invalidf("query parameter name is required"))
		return
	}

	users, err := h.users.Search(r.Context(), name)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondData(w, http.StatusOK, toUserResponses(users))
}

// getUser returns one account. Admins may read anyone; users only themselves.
func (h *Handler) getUser(w http.ResponseWriter, r *http.Request) {
	identity, ok := identityFrom(r.Context())
	if !ok {
		respondError(w, r, errUnauthenticated)
		return
	}

	userID := chi.URLParam(r, "userID")
	if !identity.IsAdmin() && identity.UserID != userID {
		respondError(w, r, errForbidden)
		return
	}

	u, err := h.users.GetByID(r.Context(), userID)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondData(w, http.StatusOK, toUserResponse(u))
}

type updateUserRequest struct {
	Name        *string `json:"name"`
	Email       *string `json:"email"`
	Password    *string `json:"password"`
	Address     *string `json:"address"`
	PhoneNumber *string `json:"phone_number"`
}

// updateUser applies a partial update. Admins may update anyone; users only
// themselves. The role cannot be changed through this endpoint.
func (h *Handler) updateUser(w http.ResponseWriter, r *http.Request) {
	identity, ok := identityFrom(r.Context())
	if !ok {
		respondError(w, r, errUnauthenticated)
		return
	}

	userID := chi.URLParam(r, "userID")
	if !identity.IsAdmin() && identity.UserID != userID {
		respondError(w, r, errForbidden)
		return
	}

	var req updateUserRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, r, err)
		return
	}

	u, err := h.users.GetByID(r.Context(), userID)
	if err != nil {
		respondError(w, r, err)
		return
	}

	if req.Name != nil {
		if *req.Name == "" {
			respondError(w, r, invalidf("name cannot be empty"))
			return
		}
		u.Name = *req.Name
	}
	if req.Email != nil {
		if _, err := mail.ParseAddress(*req.Email); err != nil {
			respondError(w, r, invalidf("a valid email is required"))
			return
		}
		u.Email = *req.Email
	}
	if req.Password != nil {
		if len(*req.Password) < minPasswordLength {
			respondError(w, r, invalidf("password must be at least %d characters", minPasswordLength))
			return
		}
		hash, err := auth.HashPassword(*req.Password)
		if err != nil {
			respondError(w, r, err)
			return
		}
		u.PasswordHash = hash
	}
	if req.Address != nil {
		u.Address = *req.Address
	}
	if req.PhoneNumber != nil {
		u.PhoneNumber = *req.PhoneNumber
	}

	if err := h.users.Update(r.Context(), u); err != nil {
		respondError(w, r, err)
		return
	}
	respondData(w, http.StatusOK, toUserResponse(u))
}

// deleteUser removes an account. Admin only; admins cannot delete themselves.
func (h *Handler) deleteUser(w http.ResponseWriter, r *http.Request) {
	identity, _ := identityFrom(r.Context())

	userID := chi.URLParam(r, "userID")
	if identity.UserID == userID {
		respondError(w, r, invalidf("cannot delete your own account"))
		return
	}

	if err := h.users.Delete(r.Context(), userID); err != nil {
		respondError(w, r, err)
		return
	}
	respondData(w, http.StatusOK, map[string]string{"message": "user deleted"})
}
