package handler

import (
	"net/http"
	"net/mail"

	"github.com/go-faster/errors"
	"github.com/google/uuid"

	"github.com/antonwidjaya/store-api/internal/domain/auth"
	"github.com/antonwidjaya/store-api/internal/domain/user"
)

const minPasswordLength = 6

type signUpRequest struct {
	Name        string `json:"name"`
	Email       string `json:"email"`
	Password    string `json:"password"`
	Address     string `json:"address"`
	PhoneNumber string `json:"phone_number"`
}

func (req *signUpRequest) validate() error {
	if req.Name == "" {
		return invalidf("name is required")
	}
	if _, err := mail.ParseAddress(req.Email); err != nil {
		return invalidf("a valid email is required")
	}
	if len(req.Password) < minPasswordLength {
		return invalidf("password must be at least %d characters", minPasswordLength)
	}
	return nil
}

type signInRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type authResponse struct {
	Token string       `json:"token"`
	User  userResponse `json:"user"`
}

// signUp registers a new account and returns it with a fresh token.
func (h *Handler) signUp(w http.ResponseWriter, r *http.Request) {
	var req signUpRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	if err := req.validate(); err != nil {
		respondError(w, r, err)
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		respondError(w, r, err)
		return
	}

	u := &user.User{
		ID:           uuid.New().String(),
		Name:         req.Name,
		Email:        req.Email,
		PasswordHash: hash,
		Address:      req.Address,
		PhoneNumber:  req.PhoneNumber,
		Role:         user.RoleUser,
	}
	if err := h.users.Create(r.Context(), u); err != nil {
		respondError(w, r, err)
		return
	}

	// Re-read for the database-assigned creation time.
	created, err := h.users.GetByID(r.Context(), u.ID)
	if err == nil {
		u = created
	}

	token, err := h.tokens.Issue(u)
	if err != nil {
		respondError(w, r, err)
		return
	}

	respondData(w, http.StatusCreated, authResponse{Token: token, User: toUserResponse(u)})
}

// signIn exchanges credentials for a token. Unknown email and wrong password
// are indistinguishable to the caller.
func (h *Handler) signIn(w http.ResponseWriter, r *http.Request) {
	var req signInRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	if req.Email == "" || req.Password == "" {
		respondError(w, r, invalidf("email and password are required"))
		return
	}

	u, err := h.users.GetByEmail(r.Context(), req.Email)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			respondError(w, r, errBadCredentials)
			return
		}
		respondError(w, r, err)
		return
	}
	if !auth.CheckPassword(u.PasswordHash, req.Password) {
		respondError(w, r, errBadCredentials)
		return
	}

	token, err := h.tokens.Issue(u)
	if err != nil {
		respondError(w, r, err)
		return
	}

	respondData(w, http.StatusOK, authResponse{Token: token, User: toUserResponse(u)})
}

// signOut is a no-op on the server: tokens are stateless and expire on their
// own. The endpoint exists so clients have a uniform logout call.
func (h *Handler) signOut(w http.ResponseWriter, _ *http.Request) {
	respondData(w, http.StatusOK, map[string]string{"message": "signed out"})
}

// currentUser returns the authenticated account.
func (h *Handler) currentUser(w http.ResponseWriter, r *http.Request) {
	identity, ok := identityFrom(r.Context())
	if !ok {
		respondError(w, r, errUnauthenticated)
		return
	}

	u, err := h.users.GetByID(r.Context(), identity.UserID)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondData(w, http.StatusOK, toUserResponse(u))
}
