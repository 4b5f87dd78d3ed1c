package order

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/antonwidjaya/store-api/internal/domain/catalog"
	"github.com/antonwidjaya/store-api/internal/domain/user"
)

// Identity is the resolved caller passed down from the authentication
// middleware. The service trusts it and only applies ownership/role checks.
type Identity struct {
	UserID string
	Role   user.Role
}

// IsAdmin reports whether the caller holds the administrator role.
func (id Identity) IsAdmin() bool {
	return id.Role == user.RoleAdmin
}

// ItemRequest is one requested order line.
type ItemRequest struct {
	VariantID int64
	Quantity  int
}

// PlaceRequest holds the validated input for placing an order.
type PlaceRequest struct {
	UserID string
	Items  []ItemRequest
}

// Service encapsulates order placement and lifecycle logic. It performs no
// logging and no transport formatting; failures surface as typed errors.
type Service struct {
	users user.Repository
	store Store
}

// NewService creates an order Service backed by the given user repository and
// order store.
func NewService(users user.Repository, store Store) *Service {
	return &Service{users: users, store: store}
}

// Place creates an order with its items inside one transaction, or fails
// without persisting anything.
//
// Items are processed in the submitted sequence. Each item locks its variant
// row, checks stock, accumulates the line price, and decrements stock
// immediately so later lines in the same request (including lines for the
// same variant) observe the updated count. Any failure rolls the whole
// transaction back: no partial stock decrement or item row survives.
func (s *Service) Place(ctx context.Context, req PlaceRequest) (*Order, error) {
	if len(req.Items) == 0 {
		return nil, ErrEmptyItems
	}
	for _, it := range req.Items {
		if it.Quantity <= 0 {
			return nil, &InvalidQuantityError{VariantID: it.VariantID}
		}
	}

	if _, err := s.users.GetByID(ctx, req.UserID); err != nil {
		return nil, err
	}

	o := &Order{
		ID:         uuid.New().String(),
		UserID:     req.UserID,
		Status:     StatusPending,
		TotalPrice: decimal.Zero,
		OrderDate:  time.Now().UTC(),
	}

	err := s.store.InTx(ctx, func(ctx context.Context, tx Tx) error {
		if err := tx.InsertOrder(ctx, o); err != nil {
			return err
		}

		total := decimal.Zero
		items := make([]Item, 0, len(req.Items))
		for _, it := range req.Items {
			v, err := tx.VariantForUpdate(ctx, it.VariantID)
			if err != nil {
				return err
			}
			if v.StockQuantity < it.Quantity {
				return &InsufficientStockError{
					VariantID: v.ID,
					Requested: it.Quantity,
					Available: v.StockQuantity,
				}
			}

			line := v.Price.Mul(decimal.NewFromInt(int64(it.Quantity))).Round(2)
			total = total.Add(line)

			if err := tx.AdjustStock(ctx, v.ID, -it.Quantity); err != nil {
				return err
			}

			variantID := v.ID
			items = append(items, Item{
				OrderID:   o.ID,
				VariantID: &variantID,
				Quantity:  it.Quantity,
				Price:     line,
			})
		}

		if err := tx.InsertItems(ctx, items); err != nil {
			return err
		}
		return tx.SetTotal(ctx, o.ID, total)
	})
	if err != nil {
		return nil, err
	}

	return s.store.GetByID(ctx, o.ID)
}

// Cancel transitions an order to CANCELLED and restores stock for every item
// whose variant still exists. Only the order's owner or an administrator may
// cancel, and only while the order is PENDING or PROCESSING.
func (s *Service) Cancel(ctx context.Context, orderID string, caller Identity) (*Order, error) {
	err := s.store.InTx(ctx, func(ctx context.Context, tx Tx) error {
		o, err := tx.OrderForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		if !caller.IsAdmin() && o.UserID != caller.UserID {
			return ErrForbidden
		}
		if !o.Status.Cancellable() {
			return ErrCannotModify
		}

		for _, it := range o.Items {
			if it.VariantID == nil {
				continue
			}
			if _, err := tx.VariantForUpdate(ctx, *it.VariantID); err != nil {
				// Variants may be deleted after the order was placed; their
				// stock is simply not restored.
				if errors.Is(err, catalog.ErrVariantNotFound) {
					continue
				}
				return err
			}
			if err := tx.AdjustStock(ctx, *it.VariantID, it.Quantity); err != nil {
				return err
			}
		}

		return tx.SetStatus(ctx, orderID, StatusCancelled)
	})
	if err != nil {
		return nil, err
	}

	return s.store.GetByID(ctx, orderID)
}

// UpdateStatus writes an arbitrary valid status. Unlike cancellation there is
// no transition guard; the route restricts this operation to administrators.
func (s *Service) UpdateStatus(ctx context.Context, orderID string, status Status) (*Order, error) {
	if !status.Valid() {
		return nil, &InvalidStatusError{Status: status}
	}

	err := s.store.InTx(ctx, func(ctx context.Context, tx Tx) error {
		if _, err := tx.OrderForUpdate(ctx, orderID); err != nil {
			return err
		}
		return tx.SetStatus(ctx, orderID, status)
	})
	if err != nil {
		return nil, err
	}

	return s.store.GetByID(ctx, orderID)
}

// Delete removes an order and (by cascade) its items. Deletion is an
// administrative destructive operation, distinct from cancellation: stock is
// NOT restored.
func (s *Service) Delete(ctx context.Context, orderID string) error {
	return s.store.Delete(ctx, orderID)
}

// Get returns a single order expanded with items, variants, and user.
func (s *Service) Get(ctx context.Context, orderID string) (*Order, error) {
	return s.store.GetByID(ctx, orderID)
}

// ListAll returns every order.
func (s *Service) ListAll(ctx context.Context) ([]Order, error) {
	return s.store.ListAll(ctx)
}

// ListByUser returns the orders belonging to one user.
func (s *Service) ListByUser(ctx context.Context, userID string) ([]Order, error) {
	return s.store.ListByUser(ctx, userID)
}
