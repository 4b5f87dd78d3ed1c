package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/antonwidjaya/store-api/internal/domain/catalog"
)

// maxImageSize caps product image uploads at 5 MiB.
const maxImageSize = 5 << 20

type variantRequest struct {
	Color         string  `json:"color"`
	Size          string  `json:"size"`
	Price         float64 `json:"price"`
	StockQuantity int     `json:"stock_quantity"`
}

func (req *variantRequest) validate() error {
	if req.Color == "" || req.Size == "" {
		return invalidf("color and size are required")
	}
	if req.Price < 0 {
		return invalidf("price cannot be negative")
	}
	if req.StockQuantity < 0 {
		return invalidf("stock_quantity cannot be negative")
	}
	return nil
}

type productRequest struct {
	CategoryID  int64            `json:"category_id"`
	Name        string           `json:"name"`
	Description string           `json:"description"`
	BasePrice   float64          `json:"base_price"`
	Material    string           `json:"material"`
	Brand       string           `json:"brand"`
	Variants    []variantRequest `json:"variants"`
}

func (req *productRequest) validate() error {
	if req.Name == "" {
		return invalidf("name is required")
	}
	if req.CategoryID <= 0 {
		return invalidf("category_id is required")
	}
	if req.BasePrice < 0 {
		return invalidf("base_price cannot be negative")
	}
	for i := range req.Variants {
		if err := req.Variants[i].validate(); err != nil {
			return err
		}
	}
	return nil
}

// listProducts returns the catalog, optionally filtered by ?category_id= and
// ?search=. Public.
func (h *Handler) listProducts(w http.ResponseWriter, r *http.Request) {
	var filter catalog.ProductFilter

	if raw := r.URL.Query().Get("category_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id <= 0 {
			respondError(w, r, invalidf("category_id must be a positive integer"))
			return
		}
		filter.CategoryID = &id
	}
	filter.Search = strings.TrimSpace(r.URL.Query().Get("search"))

	products, err := h.products.List(r.Context(), filter)
	if err != nil {
		respondError(w, r, err)
		return
	}

	out := make([]productResponse, len(products))
	for i := range products {
		out[i] = toProductResponse(&products[i])
	}
	respondData(w, http.StatusOK, out)
}

// getProduct returns one product with its variants. Public.
func (h *Handler) getProduct(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "productID")
	if err != nil {
		respondError(w, r, err)
		return
	}

	p, err := h.products.GetByID(r.Context(), id)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondData(w, http.StatusOK, toProductResponse(p))
}

// createProduct adds a product, optionally with initial variants. Admin only.
func (h *Handler) createProduct(w http.ResponseWriter, r *http.Request) {
	var req productRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	if err := req.validate(); err != nil {
		respondError(w, r, err)
		return
	}

	p := &catalog.Product{
		CategoryID:  req.CategoryID,
		Name:        req.Name,
		Description: req.Description,
		BasePrice:   decimal.NewFromFloat(req.BasePrice).Round(2),
		Material:    req.Material,
		Brand:       req.Brand,
	}
	if err := h.products.Create(r.Context(), p); err != nil {
		respondError(w, r, err)
		return
	}

	for _, vr := range req.Variants {
		v := &catalog.Variant{
			ProductID:     p.ID,
			Color:         vr.Color,
			Size:          vr.Size,
			Price:         decimal.NewFromFloat(vr.Price).Round(2),
			StockQuantity: vr.StockQuantity,
		}
		if err := h.products.CreateVariant(r.Context(), v); err != nil {
			respondError(w, r, err)
			return
		}
		p.Variants = append(p.Variants, *v)
	}

	respondData(w, http.StatusCreated, toProductResponse(p))
}

// updateProduct overwrites a product's fields. Variants and the image are
// managed by their own endpoints. Admin only.
func (h *Handler) updateProduct(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "productID")
	if err != nil {
		respondError(w, r, err)
		return
	}

	var req productRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	if err := req.validate(); err != nil {
		respondError(w, r, err)
		return
	}

	p := &catalog.Product{
		ID:          id,
		CategoryID:  req.CategoryID,
		Name:        req.Name,
		Description: req.Description,
		BasePrice:   decimal.NewFromFloat(req.BasePrice).Round(2),
		Material:    req.Material,
		Brand:       req.Brand,
	}
	if err := h.products.Update(r.Context(), p); err != nil {
		respondError(w, r, err)
		return
	}

	updated, err := h.products.GetByID(r.Context(), id)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondData(w, http.StatusOK, toProductResponse(updated))
}

// deleteProduct removes a product and its variants. Admin only.
func (h *Handler) deleteProduct(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "productID")
	if err != nil {
		respondError(w, r, err)
		return
	}

	if err := h.products.Delete(r.Context(), id); err != nil {
		respondError(w, r, err)
		return
	}
	respondData(w, http.StatusOK, map[string]string{"message": "product deleted"})
}

// uploadProductImage accepts a multipart "image" file, stores it, and saves
// the public URL on the product. Admin only.
func (h *Handler) uploadProductImage(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "productID")
	if err != nil {
		respondError(w, r, err)
		return
	}

	if _, err := h.products.GetByID(r.Context(), id); err != nil {
		respondError(w, r, err)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxImageSize)
	file, header, err := r.FormFile("image")
	if err != nil {
		respondError(w, r, invalidf("image file is required"))
		return
	}
	defer file.Close()

	contentType := header.Header.Get("Content-Type")
	if !strings.HasPrefix(contentType, "image/") {
		respondError(w, r, invalidf("file must be an image"))
		return
	}

	url, err := h.images.Save(r.Context(), header.Filename, contentType, file)
	if err != nil {
		respondError(w, r, err)
		return
	}

	if err := h.products.SetImageURL(r.Context(), id, url); err != nil {
		respondError(w, r, err)
		return
	}
	respondData(w, http.StatusOK, map[string]string{"image_url": url})
}

// createVariant adds a variant to a product. Admin only.
func (h *Handler) createVariant(w http.ResponseWriter, r *http.Request) {
	productID, err := pathID(r, "productID")
	if err != nil {
		respondError(w, r, err)
		return
	}

	var req variantRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	if err := req.validate(); err != nil {
		respondError(w, r, err)
		return
	}

	v := &catalog.Variant{
		ProductID:     productID,
		Color:         req.Color,
		Size:          req.Size,
		Price:         decimal.NewFromFloat(req.Price).Round(2),
		StockQuantity: req.StockQuantity,
	}
	if err := h.products.CreateVariant(r.Context(), v); err != nil {
		respondError(w, r, err)
		return
	}
	respondData(w, http.StatusCreated, toVariantResponse(v))
}

// updateVariant overwrites a variant, including a direct stock write. Admin
// only.
func (h *Handler) updateVariant(w http.ResponseWriter, r *http.Request) {
	variantID, err := pathID(r, "variantID")
	if err != nil {
		respondError(w, r, err)
		return
	}

	var req variantRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	if err := req.validate(); err != nil {
		respondError(w, r, err)
		return
	}

	v := &catalog.Variant{
		ID:            variantID,
		Color:         req.Color,
		Size:          req.Size,
		Price:         decimal.NewFromFloat(req.Price).Round(2),
		StockQuantity: req.StockQuantity,
	}
	if err := h.products.UpdateVariant(r.Context(), v); err != nil {
		respondError(w, r, err)
		return
	}

	updated, err := h.products.GetVariant(r.Context(), variantID)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondData(w, http.StatusOK, toVariantResponse(updated))
}

// deleteVariant removes a variant. Existing order items keep their price
// snapshot. Admin only.
func (h *Handler) deleteVariant(w http.ResponseWriter, r *http.Request) {
	variantID, err := pathID(r, "variantID")
	if err != nil {
		respondError(w, r, err)
		return
	}

	if err := h.products.DeleteVariant(r.Context(), variantID); err != nil {
		respondError(w, r, err)
		return
	}
	respondData(w, http.StatusOK, map[string]string{"message": "variant deleted"})
}
