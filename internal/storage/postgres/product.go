package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/antonwidjaya/store-api/internal/domain/catalog"
)

const (
	createProductSQL = `INSERT INTO products (category_id, name, description, base_price, material, brand, image_url)
		VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING product_id`

	listProductsSQL = `SELECT product_id, category_id, name, description, base_price, material, brand, image_url
		FROM products
		WHERE ($1::BIGINT IS NULL OR category_id = $1)
		  AND ($2 = '' OR name ILIKE '%' || $2 || '%')
		ORDER BY product_id`

	getProductByIDSQL = `SELECT product_id, category_id, name, description, base_price, material, brand, image_url
		FROM products WHERE product_id = $1`

	updateProductSQL = `UPDATE products
		SET category_id = $2, name = $3, description = $4, base_price = $5, material = $6, brand = $7
		WHERE product_id = $1`

	deleteProductSQL = `DELETE FROM products WHERE product_id = $1`

	setProductImageSQL = `UPDATE products SET image_url = $2 WHERE product_id = $1`

	listVariantsByProductsSQL = `SELECT variant_id, product_id, color, size, price, stock_quantity
		FROM product_variants WHERE product_id = ANY($1) ORDER BY variant_id`

	getVariantSQL = `SELECT variant_id, product_id, color, size, price, stock_quantity
		FROM product_variants WHERE variant_id = $1`

	createVariantSQL = `INSERT INTO product_variants (product_id, color, size, price, stock_quantity)
		VALUES ($1, $2, $3, $4, $5) RETURNING variant_id`

	updateVariantSQL = `UPDATE product_variants
		SET color = $2, size = $3, price = $4, stock_quantity = $5
		WHERE variant_id = $1`

	deleteVariantSQL = `DELETE FROM product_variants WHERE variant_id = $1`
)

var _ catalog.ProductRepository = (*ProductRepository)(nil)

// ProductRepository implements catalog.ProductRepository backed by
// PostgreSQL.
type ProductRepository struct {
	pool *pgxpool.Pool
}

// NewProductRepository returns a ProductRepository that uses the given pool.
func NewProductRepository(pool *pgxpool.Pool) *ProductRepository {
	return &ProductRepository{pool: pool}
}

// Create persists a new product and fills in its generated ID. Variants are
// managed separately.
func (r *ProductRepository) Create(ctx context.Context, p *catalog.Product) error {
	err := r.pool.QueryRow(ctx, createProductSQL,
		p.CategoryID, p.Name, p.Description, p.BasePrice, p.Material, p.Brand, p.ImageURL,
	).Scan(&p.ID)
	if err != nil {
		if pgErrCode(err) == codeForeignKeyViolation {
			return catalog.ErrCategoryNotFound
		}
		return fmt.Errorf("creating product %q: %w", p.Name, err)
	}
	return nil
}

// List returns products matching the filter, each expanded with its variants.
func (r *ProductRepository) List(ctx context.Context, filter catalog.ProductFilter) ([]catalog.Product, error) {
	rows, err := r.pool.Query(ctx, listProductsSQL, filter.CategoryID, filter.Search)
	if err != nil {
		return nil, fmt.Errorf("listing products: %w", err)
	}

	products, err := pgx.CollectRows(rows, scanCatalogProduct)
	if err != nil {
		return nil, fmt.Errorf("listing products: %w", err)
	}
	if err := r.attachVariants(ctx, products); err != nil {
		return nil, err
	}
	return products, nil
}

// GetByID returns a single product expanded with its variants.
func (r *ProductRepository) GetByID(ctx context.Context, id int64) (*catalog.Product, error) {
	rows, err := r.pool.Query(ctx, getProductByIDSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting product %d: %w", id, err)
	}

	p, err := pgx.CollectExactlyOneRow(rows, scanCatalogProduct)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, catalog.ErrProductNotFound
		}
		return nil, fmt.Errorf("getting product %d: %w", id, err)
	}

	products := []catalog.Product{p}
	if err := r.attachVariants(ctx, products); err != nil {
		return nil, err
	}
	return &products[0], nil
}

// Update overwrites the stored product. The image URL is managed by
// SetImageURL and left untouched here.
func (r *ProductRepository) Update(ctx context.Context, p *catalog.Product) error {
	tag, err := r.pool.Exec(ctx, updateProductSQL,
		p.ID, p.CategoryID, p.Name, p.Description, p.BasePrice, p.Material, p.Brand,
	)
	if err != nil {
		if pgErrCode(err) == codeForeignKeyViolation {
			return catalog.ErrCategoryNotFound
		}
		return fmt.Errorf("updating product %d: %w", p.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return catalog.ErrProductNotFound
	}
	return nil
}

// Delete removes a product and, by cascade, its variants.
func (r *ProductRepository) Delete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, deleteProductSQL, id)
	if err != nil {
		return fmt.Errorf("deleting product %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return catalog.ErrProductNotFound
	}
	return nil
}

// SetImageURL stores the public URL of an uploaded product image.
func (r *ProductRepository) SetImageURL(ctx context.Context, id int64, url string) error {
	tag, err := r.pool.Exec(ctx, setProductImageSQL, id, url)
	if err != nil {
		return fmt.Errorf("setting image for product %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return catalog.ErrProductNotFound
	}
	return nil
}

// GetVariant returns a single variant by its identifier.
func (r *ProductRepository) GetVariant(ctx context.Context, variantID int64) (*catalog.Variant, error) {
	rows, err := r.pool.Query(ctx, getVariantSQL, variantID)
	if err != nil {
		return nil, fmt.Errorf("getting variant %d: %w", variantID, err)
	}

	v, err := pgx.CollectExactlyOneRow(rows, scanVariant)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, catalog.ErrVariantNotFound
		}
		return nil, fmt.Errorf("getting variant %d: %w", variantID, err)
	}
	return &v, nil
}

// CreateVariant adds a variant to a product and fills in its generated ID.
func (r *ProductRepository) CreateVariant(ctx context.Context, v *catalog.Variant) error {
	err := r.pool.QueryRow(ctx, createVariantSQL,
		v.ProductID, v.Color, v.Size, v.Price, v.StockQuantity,
	).Scan(&v.ID)
	if err != nil {
		switch pgErrCode(err) {
		case codeUniqueViolation:
			return catalog.ErrVariantExists
		case codeForeignKeyViolation:
			return catalog.ErrProductNotFound
		}
		return fmt.Errorf("creating variant for product %d: %w", v.ProductID, err)
	}
	return nil
}

// UpdateVariant overwrites the stored variant.
func (r *ProductRepository) UpdateVariant(ctx context.Context, v *catalog.Variant) error {
	tag, err := r.pool.Exec(ctx, updateVariantSQL,
		v.ID, v.Color, v.Size, v.Price, v.StockQuantity,
	)
	if err != nil {
		if pgErrCode(err) == codeUniqueViolation {
			return catalog.ErrVariantExists
		}
		return fmt.Errorf("updating variant %d: %w", v.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return catalog.ErrVariantNotFound
	}
	return nil
}

// DeleteVariant removes a variant. Order items keep their price snapshot and
// their variant reference becomes NULL.
func (r *ProductRepository) DeleteVariant(ctx context.Context, variantID int64) error {
	tag, err := r.pool.Exec(ctx, deleteVariantSQL, variantID)
	if err != nil {
		return fmt.Errorf("deleting variant %d: %w", variantID, err)
	}
	if tag.RowsAffected() == 0 {
		return catalog.ErrVariantNotFound
	}
	return nil
}

// attachVariants loads the variants of all given products with one query.
func (r *ProductRepository) attachVariants(ctx context.Context, products []catalog.Product) error {
	if len(products) == 0 {
		return nil
	}

	ids := make([]int64, len(products))
	index := make(map[int64]*catalog.Product, len(products))
	for i := range products {
		ids[i] = products[i].ID
		index[products[i].ID] = &products[i]
	}

	rows, err := r.pool.Query(ctx, listVariantsByProductsSQL, ids)
	if err != nil {
		return fmt.Errorf("listing variants: %w", err)
	}
	variants, err := pgx.CollectRows(rows, scanVariant)
	if err != nil {
		return fmt.Errorf("listing variants: %w", err)
	}

	for _, v := range variants {
		p := index[v.ProductID]
		p.Variants = append(p.Variants, v)
	}
	return nil
}

func scanCatalogProduct(row pgx.CollectableRow) (catalog.Product, error) {
	var p catalog.Product
	err := row.Scan(
		&p.ID, &p.CategoryID, &p.Name, &p.Description,
		&p.BasePrice, &p.Material, &p.Brand, &p.ImageURL,
	)
	return p, err
}

func scanVariant(row pgx.CollectableRow) (catalog.Variant, error) {
	var v catalog.Variant
	err := row.Scan(&v.ID, &v.ProductID, &v.Color, &v.Size, &v.Price, &v.StockQuantity)
	return v, err
}
