// Package catalog defines categories, products, and product variants, plus
// their storage contracts. Stock lives on the variant: a product is only a
// grouping of sellable variants.
package catalog

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Sentinel errors for catalog operations.
var (
	ErrCategoryNotFound = errors.New("category not found")
	ErrCategoryExists   = errors.New("category already exists")
	ErrCategoryInUse    = errors.New("category still has products")
	ErrProductNotFound  = errors.New("product not found")
	ErrVariantNotFound  = errors.New("product variant not found")
	ErrVariantExists    = errors.New("variant with this color and size already exists")
)

// Category groups products.
type Category struct {
	ID          int64
	Name        string
	Description string
}

// Product is a catalog entry. BasePrice is informational; the price charged
// for an order line always comes from the chosen variant.
type Product struct {
	ID          int64
	CategoryID  int64
	Name        string
	Description string
	BasePrice   decimal.Decimal
	Material    string
	Brand       string
	ImageURL    string
	Variants    []Variant
}

// Variant is a sellable configuration of a product. StockQuantity is the
// on-hand inventory and is never negative.
type Variant struct {
	ID            int64
	ProductID     int64
	Color         string
	Size          string
	Price         decimal.Decimal
	StockQuantity int
}

// ProductFilter narrows product listings.
type ProductFilter struct {
	// CategoryID restricts results to one category when non-nil.
	CategoryID *int64
	// Search matches against product names, case-insensitively.
	Search string
}

// CategoryRepository provides persistence for categories.
type CategoryRepository interface {
	// Create persists a new category. Returns ErrCategoryExists when the
	// name is already taken.
	Create(ctx context.Context, c *Category) error
	List(ctx context.Context) ([]Category, error)
	GetByID(ctx context.Context, id int64) (*Category, error)
	Update(ctx context.Context, c *Category) error
	// Delete removes a category. Returns ErrCategoryInUse while products
	// still reference it.
	Delete(ctx context.Context, id int64) error
}

// ProductRepository provides persistence for products and their variants.
type ProductRepository interface {
	Create(ctx context.Context, p *Product) error
	// List returns products matching the filter, each expanded with its
	// variants.
	List(ctx context.Context, filter ProductFilter) ([]Product, error)
	GetByID(ctx context.Context, id int64) (*Product, error)
	Update(ctx context.Context, p *Product) error
	Delete(ctx context.Context, id int64) error
	// SetImageURL stores the public URL of an uploaded product image.
	SetImageURL(ctx context.Context, id int64, url string) error

	GetVariant(ctx context.Context, variantID int64) (*Variant, error)
	// CreateVariant adds a variant. Returns ErrVariantExists when the
	// product already has a variant with the same color and size.
	CreateVariant(ctx context.Context, v *Variant) error
	UpdateVariant(ctx context.Context, v *Variant) error
	DeleteVariant(ctx context.Context, variantID int64) error
}
