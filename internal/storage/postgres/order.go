package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/antonwidjaya/store-api/internal/domain/catalog"
	"github.com/antonwidjaya/store-api/internal/domain/order"
	"github.com/antonwidjaya/store-api/internal/domain/user"
)

const (
	insertOrderSQL = `INSERT INTO orders (order_id, user_id, status, total_price, order_date)
		VALUES ($1, $2, $3, $4, $5)`

	variantForUpdateSQL = `SELECT variant_id, product_id, color, size, price, stock_quantity
		FROM product_variants WHERE variant_id = $1 FOR UPDATE`

	adjustStockSQL = `UPDATE product_variants
		SET stock_quantity = stock_quantity + $2
		WHERE variant_id = $1 AND stock_quantity + $2 >= 0`

	currentStockSQL = `SELECT stock_quantity FROM product_variants WHERE variant_id = $1`

	setOrderTotalSQL = `UPDATE orders SET total_price = $2 WHERE order_id = $1`

	setOrderStatusSQL = `UPDATE orders SET status = $2 WHERE order_id = $1`

	orderForUpdateSQL = `SELECT order_id, user_id, status, total_price, order_date
		FROM orders WHERE order_id = $1 FOR UPDATE`

	bareOrderItemsSQL = `SELECT order_item_id, order_id, product_variant_id, quantity, price
		FROM order_items WHERE order_id = $1 ORDER BY order_item_id`

	getOrderSQL = `SELECT o.order_id, o.user_id, o.status, o.total_price, o.order_date,
			u.name, u.email, u.address, u.phone_number, u.role, u.created_at
		FROM orders o
		JOIN users u ON u.user_id = o.user_id
		WHERE o.order_id = $1`

	listOrdersSQL = `SELECT order_id, user_id, status, total_price, order_date
		FROM orders ORDER BY order_date DESC, order_id`

	listOrdersByUserSQL = `SELECT order_id, user_id, status, total_price, order_date
		FROM orders WHERE user_id = $1 ORDER BY order_date DESC, order_id`

	expandedOrderItemsSQL = `SELECT i.order_item_id, i.order_id, i.product_variant_id, i.quantity, i.price,
			v.product_id, v.color, v.size, v.price, v.stock_quantity,
			p.category_id, p.name, p.description, p.base_price, p.material, p.brand, p.image_url
		FROM order_items i
		LEFT JOIN product_variants v ON v.variant_id = i.product_variant_id
		LEFT JOIN products p ON p.product_id = v.product_id
		WHERE i.order_id = ANY($1)
		ORDER BY i.order_item_id`

	deleteOrderSQL = `DELETE FROM orders WHERE order_id = $1`
)

var _ order.Store = (*OrderStore)(nil)

// OrderStore implements order.Store backed by PostgreSQL. Writes go through
// InTx; reads run directly on the pool.
type OrderStore struct {
	pool *pgxpool.Pool
}

// NewOrderStore returns an OrderStore that uses the given pool.
func NewOrderStore(pool *pgxpool.Pool) *OrderStore {
	return &OrderStore{pool: pool}
}

// InTx runs fn inside a single database transaction, committing on nil and
// rolling back on error.
func (s *OrderStore) InTx(ctx context.Context, fn func(ctx context.Context, tx order.Tx) error) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // no-op after commit

	if err := fn(ctx, &orderTx{tx: tx}); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// GetByID returns an order expanded with items, variants, products, and the
// owning user.
func (s *OrderStore) GetByID(ctx context.Context, id string) (*order.Order, error) {
	var (
		o order.Order
		u user.User
	)
	err := s.pool.QueryRow(ctx, getOrderSQL, id).Scan(
		&o.ID, &o.UserID, &o.Status, &o.TotalPrice, &o.OrderDate,
		&u.Name, &u.Email, &u.Address, &u.PhoneNumber, &u.Role, &u.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, order.ErrNotFound
		}
		return nil, fmt.Errorf("getting order %q: %w", id, err)
	}
	u.ID = o.UserID
	o.User = &u

	orders := []order.Order{o}
	if err := s.attachItems(ctx, orders); err != nil {
		return nil, err
	}
	return &orders[0], nil
}

// ListAll returns every order, newest first, with items expanded.
func (s *OrderStore) ListAll(ctx context.Context) ([]order.Order, error) {
	rows, err := s.pool.Query(ctx, listOrdersSQL)
	if err != nil {
		return nil, fmt.Errorf("listing orders: %w", err)
	}
	orders, err := pgx.CollectRows(rows, scanOrder)
	if err != nil {
		return nil, fmt.Errorf("listing orders: %w", err)
	}
	if err := s.attachItems(ctx, orders); err != nil {
		return nil, err
	}
	return orders, nil
}

// ListByUser returns one user's orders, newest first, with items expanded.
func (s *OrderStore) ListByUser(ctx context.Context, userID string) ([]order.Order, error) {
	rows, err := s.pool.Query(ctx, listOrdersByUserSQL, userID)
	if err != nil {
		return nil, fmt.Errorf("listing orders for user %q: %w", userID, err)
	}
	orders, err := pgx.CollectRows(rows, scanOrder)
	if err != nil {
		return nil, fmt.Errorf("listing orders for user %q: %w", userID, err)
	}
	if err := s.attachItems(ctx, orders); err != nil {
		return nil, err
	}
	return orders, nil
}

// Delete removes an order and, by cascade, its items. Stock is not touched.
func (s *OrderStore) Delete(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, deleteOrderSQL, id)
	if err != nil {
		return fmt.Errorf("deleting order %q: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return order.ErrNotFound
	}
	return nil
}

// attachItems loads the expanded items of all given orders with one query.
func (s *OrderStore) attachItems(ctx context.Context, orders []order.Order) error {
	if len(orders) == 0 {
		return nil
	}

	ids := make([]string, len(orders))
	index := make(map[string]*order.Order, len(orders))
	for i := range orders {
		ids[i] = orders[i].ID
		index[orders[i].ID] = &orders[i]
	}

	rows, err := s.pool.Query(ctx, expandedOrderItemsSQL, ids)
	if err != nil {
		return fmt.Errorf("listing order items: %w", err)
	}
	items, err := pgx.CollectRows(rows, scanExpandedItem)
	if err != nil {
		return fmt.Errorf("listing order items: %w", err)
	}

	for _, it := range items {
		o := index[it.OrderID]
		o.Items = append(o.Items, it)
	}
	return nil
}

func scanOrder(row pgx.CollectableRow) (order.Order, error) {
	var o order.Order
	err := row.Scan(&o.ID, &o.UserID, &o.Status, &o.TotalPrice, &o.OrderDate)
	return o, err
}

// scanExpandedItem scans an item row left-joined with its variant and
// product. The joined columns are NULL when the variant has been deleted.
func scanExpandedItem(row pgx.CollectableRow) (order.Item, error) {
	var (
		it order.Item

		productID *int64
		color     *string
		size      *string
		price     *decimal.Decimal
		stock     *int

		categoryID  *int64
		name        *string
		description *string
		basePrice   *decimal.Decimal
		material    *string
		brand       *string
		imageURL    *string
	)
	err := row.Scan(
		&it.ID, &it.OrderID, &it.VariantID, &it.Quantity, &it.Price,
		&productID, &color, &size, &price, &stock,
		&categoryID, &name, &description, &basePrice, &material, &brand, &imageURL,
	)
	if err != nil {
		return it, err
	}

	if it.VariantID != nil && productID != nil {
		it.Variant = &catalog.Variant{
			ID:            *it.VariantID,
			ProductID:     *productID,
			Color:         *color,
			Size:          *size,
			Price:         *price,
			StockQuantity: *stock,
		}
		it.Product = &catalog.Product{
			ID:          *productID,
			CategoryID:  *categoryID,
			Name:        *name,
			Description: *description,
			BasePrice:   *basePrice,
			Material:    *material,
			Brand:       *brand,
			ImageURL:    *imageURL,
		}
	}
	return it, nil
}

var _ order.Tx = (*orderTx)(nil)

// orderTx exposes the order statements on one open pgx transaction.
type orderTx struct {
	tx pgx.Tx
}

func (t *orderTx) InsertOrder(ctx context.Context, o *order.Order) error {
	_, err := t.tx.Exec(ctx, insertOrderSQL, o.ID, o.UserID, o.Status, o.TotalPrice, o.OrderDate)
	if err != nil {
		return fmt.Errorf("inserting order %q: %w", o.ID, err)
	}
	return nil
}

func (t *orderTx) VariantForUpdate(ctx context.Context, variantID int64) (*catalog.Variant, error) {
	rows, err := t.tx.Query(ctx, variantForUpdateSQL, variantID)
	if err != nil {
		return nil, fmt.Errorf("locking variant %d: %w", variantID, err)
	}

	v, err := pgx.CollectExactlyOneRow(rows, scanVariant)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, catalog.ErrVariantNotFound
		}
		return nil, fmt.Errorf("locking variant %d: %w", variantID, err)
	}
	return &v, nil
}

// AdjustStock adds delta to the variant's stock. The UPDATE is guarded so
// stock never goes below zero even if the caller's check raced.
func (t *orderTx) AdjustStock(ctx context.Context, variantID int64, delta int) error {
	tag, err := t.tx.Exec(ctx, adjustStockSQL, variantID, delta)
	if err != nil {
		return fmt.Errorf("adjusting stock of variant %d: %w", variantID, err)
	}
	if tag.RowsAffected() > 0 {
		return nil
	}

	var available int
	if err := t.tx.QueryRow(ctx, currentStockSQL, variantID).Scan(&available); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return catalog.ErrVariantNotFound
		}
		return fmt.Errorf("adjusting stock of variant %d: %w", variantID, err)
	}
	return &order.InsufficientStockError{
		VariantID: variantID,
		Requested: -delta,
		Available: available,
	}
}

func (t *orderTx) InsertItems(ctx context.Context, items []order.Item) error {
	rows := make([][]any, len(items))
	for i, it := range items {
		rows[i] = []any{it.OrderID, it.VariantID, it.Quantity, it.Price}
	}

	_, err := t.tx.CopyFrom(ctx,
		pgx.Identifier{"order_items"},
		[]string{"order_id", "product_variant_id", "quantity", "price"},
		pgx.CopyFromRows(rows),
	)
	if err != nil {
		return fmt.Errorf("inserting order items: %w", err)
	}
	return nil
}

func (t *orderTx) SetTotal(ctx context.Context, orderID string, total decimal.Decimal) error {
	tag, err := t.tx.Exec(ctx, setOrderTotalSQL, orderID, total)
	if err != nil {
		return fmt.Errorf("setting total of order %q: %w", orderID, err)
	}
	if tag.RowsAffected() == 0 {
		return order.ErrNotFound
	}
	return nil
}

func (t *orderTx) OrderForUpdate(ctx context.Context, orderID string) (*order.Order, error) {
	var o order.Order
	err := t.tx.QueryRow(ctx, orderForUpdateSQL, orderID).Scan(
		&o.ID, &o.UserID, &o.Status, &o.TotalPrice, &o.OrderDate,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, order.ErrNotFound
		}
		return nil, fmt.Errorf("locking order %q: %w", orderID, err)
	}

	rows, err := t.tx.Query(ctx, bareOrderItemsSQL, orderID)
	if err != nil {
		return nil, fmt.Errorf("loading items of order %q: %w", orderID, err)
	}
	o.Items, err = pgx.CollectRows(rows, scanBareItem)
	if err != nil {
		return nil, fmt.Errorf("loading items of order %q: %w", orderID, err)
	}
	return &o, nil
}

func (t *orderTx) SetStatus(ctx context.Context, orderID string, status order.Status) error {
	tag, err := t.tx.Exec(ctx, setOrderStatusSQL, orderID, status)
	if err != nil {
		return fmt.Errorf("setting status of order %q: %w", orderID, err)
	}
	if tag.RowsAffected() == 0 {
		return order.ErrNotFound
	}
	return nil
}

func scanBareItem(row pgx.CollectableRow) (order.Item, error) {
	var it order.Item
	err := row.Scan(&it.ID, &it.OrderID, &it.VariantID, &it.Quantity, &it.Price)
	return it, err
}
