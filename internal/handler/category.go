package handler

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/antonwidjaya/store-api/internal/domain/catalog"
)

// pathID parses a numeric URL parameter.
func pathID(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		return 0, invalidf("%s must be a positive integer", name)
	}
	return id, nil
}

type categoryRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

func (req *categoryRequest) validate() error {
	if req.Name == "" {
		return invalidf("name is required")
	}
	return nil
}

// listCategories returns all categories. Public.
func (h *Handler) listCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.categories.List(r.Context())
	if err != nil {
		respondError(w, r, err)
		return
	}

	out := make([]categoryResponse, len(categories))
	for i := range categories {
		out[i] = toCategoryResponse(&categories[i])
	}
	respondData(w, http.StatusOK, out)
}

// getCategory returns one category. Public.
func (h *Handler) getCategory(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "categoryID")
	if err != nil {
		respondError(w, r, err)
		return
	}

	c, err := h.categories.GetByID(r.Context(), id)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondData(w, http.StatusOK, toCategoryResponse(c))
}

// createCategory adds a category. Admin only.
func (h *Handler) createCategory(w http.ResponseWriter, r *http.Request) {
	var req categoryRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	if err := req.validate(); err != nil {
		respondError(w, r, err)
		return
	}

	c := &catalog.Category{Name: req.Name, Description: req.Description}
	if err := h.categories.Create(r.Context(), c); err != nil {
		respondError(w, r, err)
		return
	}
	respondData(w, http.StatusCreated, toCategoryResponse(c))
}

// updateCategory overwrites a category. Admin only.
func (h *Handler) updateCategory(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "categoryID")
	if err != nil {
		respondError(w, r, err)
		return
	}

	var req categoryRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	if err := req.validate(); err != nil {
		respondError(w, r, err)
		return
	}

	c := &catalog.Category{ID: id, Name: req.Name, Description: req.Description}
	if err := h.categories.Update(r.Context(), c); err != nil {
		respondError(w, r, err)
		return
	}
	respondData(w, http.StatusOK, toCategoryResponse(c))
}

// deleteCategory removes a category that has no products. Admin only.
func (h *Handler) deleteCategory(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "categoryID")
	if err != nil {
		respondError(w, r, err)
		return
	}

	if err := h.categories.Delete(r.Context(), id); err != nil {
		respondError(w, r, err)
		return
	}
	respondData(w, http.StatusOK, map[string]string{"message": "category deleted"})
}
