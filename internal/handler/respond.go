package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/antonwidjaya/store-api/internal/domain/catalog"
	"github.com/antonwidjaya/store-api/internal/domain/order"
	"github.com/antonwidjaya/store-api/internal/domain/user"
	"github.com/antonwidjaya/store-api/internal/upload"
)

// envelope is the uniform response shape: {"status":"success","data":...} on
// success and {"status":"error","message":...} on failure.
type envelope struct {
	Status  string `json:"status"`
	Data    any    `json:"data,omitempty"`
	Message string `json:"message,omitempty"`
}

func respondData(w http.ResponseWriter, code int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(envelope{Status: "success", Data: data})
}

func respondMessage(w http.ResponseWriter, code int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(envelope{Status: "error", Message: message})
}

// validationError is raised by request decoding and field validation; it
// always maps to 400.
type validationError struct {
	message string
}

func (e *validationError) Error() string { return e.message }

func invalidf(format string, args ...any) error {
	return &validationError{message: errors.Errorf(format, args...).Error()}
}

// errUnauthenticated and errForbidden are raised by the auth middleware.
var (
	errUnauthenticated = errors.New("authentication required")
	errForbidden       = errors.New("access denied")
	errBadCredentials  = errors.New("invalid email or password")
)

// respondError translates domain errors into HTTP responses. Unrecognized
// errors are logged and reported as a plain 500.
func respondError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		vErr        *validationError
		stockErr    *order.InsufficientStockError
		quantityErr *order.InvalidQuantityError
		statusErr   *order.InvalidStatusError
	)

	switch {
	case errors.As(err, &vErr),
		errors.As(err, &stockErr),
		errors.As(err, &quantityErr),
		errors.As(err, &statusErr),
		errors.Is(err, order.ErrEmptyItems),
		errors.Is(err, order.ErrCannotModify),
		errors.Is(err, upload.ErrUnavailable):
		respondMessage(w, http.StatusBadRequest, err.Error())

	case errors.Is(err, errBadCredentials),
		errors.Is(err, errUnauthenticated):
		respondMessage(w, http.StatusUnauthorized, err.Error())

	case errors.Is(err, errForbidden),
		errors.Is(err, order.ErrForbidden):
		respondMessage(w, http.StatusForbidden, "access denied")

	case errors.Is(err, user.ErrNotFound),
		errors.Is(err, catalog.ErrCategoryNotFound),
		errors.Is(err, catalog.ErrProductNotFound),
		errors.Is(err, catalog.ErrVariantNotFound),
		errors.Is(err, order.ErrNotFound):
		respondMessage(w, http.StatusNotFound, err.Error())

	case errors.Is(err, user.ErrEmailTaken),
		errors.Is(err, catalog.ErrCategoryExists),
		errors.Is(err, catalog.ErrCategoryInUse),
		errors.Is(err, catalog.ErrVariantExists):
		respondMessage(w, http.StatusConflict, err.Error())

	default:
		zctx.From(r.Context()).Error("request failed", zap.Error(err))
		respondMessage(w, http.StatusInternalServerError, "Internal server error")
	}
}

// decodeJSON reads the request body into dst, rejecting malformed JSON and
// unknown fields.
func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return invalidf("invalid request body: %s", err)
	}
	return nil
}
