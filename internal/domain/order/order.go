// Package order implements the order placement and lifecycle core: stock
// validation, total computation, inventory decrement/restore, and status
// transitions, all executed inside a single database transaction.
package order

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/antonwidjaya/store-api/internal/domain/catalog"
	"github.com/antonwidjaya/store-api/internal/domain/user"
)

// Status is the lifecycle state of an order.
type Status string

const (
	StatusPending    Status = "PENDING"
	StatusProcessing Status = "PROCESSING"
	StatusShipped    Status = "SHIPPED"
	StatusDelivered  Status = "DELIVERED"
	StatusCancelled  Status = "CANCELLED"
)

// Valid reports whether s is a known status value.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusProcessing, StatusShipped, StatusDelivered, StatusCancelled:
		return true
	}
	return false
}

// Cancellable reports whether an order in this status may still be cancelled.
func (s Status) Cancellable() bool {
	return s == StatusPending || s == StatusProcessing
}

// Sentinel errors for order operations.
var (
	ErrEmptyItems   = errors.New("order must contain at least one item")
	ErrNotFound     = errors.New("order not found")
	ErrCannotModify = errors.New("order cannot be modified in its current status")
	ErrForbidden    = errors.New("not allowed to access this order")
)

// InsufficientStockError indicates a line item requested more units than the
// variant currently has in stock.
type InsufficientStockError struct {
	VariantID int64
	Requested int
	Available int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("not enough stock for product variant %d: requested %d, available %d",
		e.VariantID, e.Requested, e.Available)
}

// InvalidQuantityError indicates a line item carries a non-positive quantity.
type InvalidQuantityError struct {
	VariantID int64
}

func (e *InvalidQuantityError) Error() string {
	return fmt.Sprintf("quantity must be greater than 0 for product variant %d", e.VariantID)
}

// InvalidStatusError indicates an unknown status value in a status update.
type InvalidStatusError struct {
	Status Status
}

func (e *InvalidStatusError) Error() string {
	return fmt.Sprintf("invalid order status %q", e.Status)
}

// Order is a customer order. TotalPrice is always server-computed from the
// item price snapshots; it is never taken from client input.
type Order struct {
	ID         string
	UserID     string
	Status     Status
	TotalPrice decimal.Decimal
	OrderDate  time.Time
	Items      []Item

	// User is the owning account, expanded on reads.
	User *user.User
}

// Item is one order line. Price is the line snapshot (unit price × quantity
// at order time) and is immutable after creation. VariantID is nil when the
// referenced variant has since been deleted.
type Item struct {
	ID        int64
	OrderID   string
	VariantID *int64
	Quantity  int
	Price     decimal.Decimal

	// Variant and Product are expanded on detailed reads when the variant
	// still exists.
	Variant *catalog.Variant
	Product *catalog.Product
}

// Tx is the set of statements available inside an order transaction. Variant
// reads lock the row, so check-and-decrement sequences on one variant are
// serialized across concurrent transactions.
type Tx interface {
	InsertOrder(ctx context.Context, o *Order) error
	// VariantForUpdate loads a variant with a row lock held until commit.
	// Returns catalog.ErrVariantNotFound when the variant does not exist.
	VariantForUpdate(ctx context.Context, variantID int64) (*catalog.Variant, error)
	// AdjustStock adds delta (negative to decrement) to the variant's stock.
	// The write is guarded so stock can never go negative.
	AdjustStock(ctx context.Context, variantID int64, delta int) error
	InsertItems(ctx context.Context, items []Item) error
	SetTotal(ctx context.Context, orderID string, total decimal.Decimal) error
	// OrderForUpdate loads an order and its bare items with the order row
	// locked. Returns ErrNotFound when the order does not exist.
	OrderForUpdate(ctx context.Context, orderID string) (*Order, error)
	SetStatus(ctx context.Context, orderID string, status Status) error
}

// Store provides transactional and read access to persisted orders.
type Store interface {
	// InTx runs fn inside a single database transaction. The transaction is
	// committed when fn returns nil and rolled back when it returns an error;
	// the error is propagated unchanged.
	InTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error

	// GetByID returns an order expanded with items, variants, products, and
	// the owning user. Returns ErrNotFound when absent.
	GetByID(ctx context.Context, id string) (*Order, error)
	ListAll(ctx context.Context) ([]Order, error)
	ListByUser(ctx context.Context, userID string) ([]Order, error)
	Delete(ctx context.Context, id string) error
}
