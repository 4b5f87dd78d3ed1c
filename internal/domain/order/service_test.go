package order

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/antonwidjaya/store-api/internal/domain/catalog"
	"github.com/antonwidjaya/store-api/internal/domain/user"
)

// --- Fakes ---

// fakeState is the committed database image: variants and orders.
type fakeState struct {
	variants map[int64]catalog.Variant
	orders   map[string]Order
}

func (s *fakeState) clone() *fakeState {
	c := &fakeState{
		variants: make(map[int64]catalog.Variant, len(s.variants)),
		orders:   make(map[string]Order, len(s.orders)),
	}
	for id, v := range s.variants {
		c.variants[id] = v
	}
	for id, o := range s.orders {
		o.Items = append([]Item(nil), o.Items...)
		c.orders[id] = o
	}
	return c
}

// fakeStore implements Store with copy-on-write transactions: fn runs against
// a staged clone that only replaces the committed state when fn returns nil.
type fakeStore struct {
	state fakeState
	users map[string]*user.User
}

func newFakeStore(variants ...catalog.Variant) *fakeStore {
	s := &fakeStore{
		state: fakeState{
			variants: make(map[int64]catalog.Variant),
			orders:   make(map[string]Order),
		},
		users: map[string]*user.User{
			"u1": {ID: "u1", Name: "Jane", Email: "jane@example.com", Role: user.RoleUser},
			"u2": {ID: "u2", Name: "Bob", Email: "bob@example.com", Role: user.RoleUser},
		},
	}
	for _, v := range variants {
		s.state.variants[v.ID] = v
	}
	return s
}

func (s *fakeStore) InTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	staged := s.state.clone()
	if err := fn(ctx, &fakeTx{st: staged}); err != nil {
		return err
	}
	s.state = *staged
	return nil
}

func (s *fakeStore) GetByID(_ context.Context, id string) (*Order, error) {
	o, ok := s.state.orders[id]
	if !ok {
		return nil, ErrNotFound
	}
	o.User = s.users[o.UserID]
	for i := range o.Items {
		if o.Items[i].VariantID == nil {
			continue
		}
		if v, ok := s.state.variants[*o.Items[i].VariantID]; ok {
			v := v
			o.Items[i].Variant = &v
		}
	}
	return &o, nil
}

func (s *fakeStore) ListAll(_ context.Context) ([]Order, error) {
	out := make([]Order, 0, len(s.state.orders))
	for _, o := range s.state.orders {
		out = append(out, o)
	}
	return out, nil
}

func (s *fakeStore) ListByUser(_ context.Context, userID string) ([]Order, error) {
	var out []Order
	for _, o := range s.state.orders {
		if o.UserID == userID {
			out = append(out, o)
		}
	}
	return out, nil
}

func (s *fakeStore) Delete(_ context.Context, id string) error {
	if _, ok := s.state.orders[id]; !ok {
		return ErrNotFound
	}
	delete(s.state.orders, id)
	return nil
}

// fakeTx applies statements to the staged state.
type fakeTx struct {
	st     *fakeState
	nextID int64
}

func (t *fakeTx) InsertOrder(_ context.Context, o *Order) error {
	t.st.orders[o.ID] = *o
	return nil
}

func (t *fakeTx) VariantForUpdate(_ context.Context, variantID int64) (*catalog.Variant, error) {
	v, ok := t.st.variants[variantID]
	if !ok {
		return nil, catalog.ErrVariantNotFound
	}
	return &v, nil
}

func (t *fakeTx) AdjustStock(_ context.Context, variantID int64, delta int) error {
	v, ok := t.st.variants[variantID]
	if !ok {
		return catalog.ErrVariantNotFound
	}
	if v.StockQuantity+delta < 0 {
		return &InsufficientStockError{VariantID: variantID, Requested: -delta, Available: v.StockQuantity}
	}
	v.StockQuantity += delta
	t.st.variants[variantID] = v
	return nil
}

func (t *fakeTx) InsertItems(_ context.Context, items []Item) error {
	for _, it := range items {
		o, ok := t.st.orders[it.OrderID]
		if !ok {
			return ErrNotFound
		}
		t.nextID++
		it.ID = t.nextID
		o.Items = append(o.Items, it)
		t.st.orders[it.OrderID] = o
	}
	return nil
}

func (t *fakeTx) SetTotal(_ context.Context, orderID string, total decimal.Decimal) error {
	o, ok := t.st.orders[orderID]
	if !ok {
		return ErrNotFound
	}
	o.TotalPrice = total
	t.st.orders[orderID] = o
	return nil
}

func (t *fakeTx) OrderForUpdate(_ context.Context, orderID string) (*Order, error) {
	o, ok := t.st.orders[orderID]
	if !ok {
		return nil, ErrNotFound
	}
	return &o, nil
}

func (t *fakeTx) SetStatus(_ context.Context, orderID string, status Status) error {
	o, ok := t.st.orders[orderID]
	if !ok {
		return ErrNotFound
	}
	o.Status = status
	t.st.orders[orderID] = o
	return nil
}

type fakeUserRepo struct {
	byID map[string]*user.User
}

func (r *fakeUserRepo) Create(context.Context, *user.User) error          { return nil }
func (r *fakeUserRepo) GetByEmail(context.Context, string) (*user.User, error) {
	return nil, user.ErrNotFound
}
func (r *fakeUserRepo) List(context.Context) ([]user.User, error)           { return nil, nil }
func (r *fakeUserRepo) Search(context.Context, string) ([]user.User, error) { return nil, nil }
func (r *fakeUserRepo) Update(context.Context, *user.User) error            { return nil }
func (r *fakeUserRepo) Delete(context.Context, string) error                { return nil }

func (r *fakeUserRepo) GetByID(_ context.Context, id string) (*user.User, error) {
	u, ok := r.byID[id]
	if !ok {
		return nil, user.ErrNotFound
	}
	return u, nil
}

// --- Helpers ---

func newVariant(id int64, price string, stock int) catalog.Variant {
	return catalog.Variant{
		ID:            id,
		ProductID:     1,
		Color:         "black",
		Size:          "M",
		Price:         decimal.RequireFromString(price),
		StockQuantity: stock,
	}
}

func newService(store *fakeStore) *Service {
	users := &fakeUserRepo{byID: store.users}
	return NewService(users, store)
}

func stockOf(t *testing.T, store *fakeStore, variantID int64) int {
	t.Helper()
	v, ok := store.state.variants[variantID]
	require.True(t, ok, "variant %d missing", variantID)
	return v.StockQuantity
}

// --- Place ---

func TestPlace_EmptyItems(t *testing.T) {
	svc := newService(newFakeStore())

	_, err := svc.Place(context.Background(), PlaceRequest{UserID: "u1"})
	require.ErrorIs(t, err, ErrEmptyItems)
}

func TestPlace_InvalidQuantity(t *testing.T) {
	svc := newService(newFakeStore(newVariant(1, "10.00", 5)))

	_, err := svc.Place(context.Background(), PlaceRequest{
		UserID: "u1",
		Items:  []ItemRequest{{VariantID: 1, Quantity: 0}},
	})

	var iqErr *InvalidQuantityError
	require.ErrorAs(t, err, &iqErr)
	assert.Equal(t, int64(1), iqErr.VariantID)
}

func TestPlace_UserNotFound(t *testing.T) {
	svc := newService(newFakeStore(newVariant(1, "10.00", 5)))

	_, err := svc.Place(context.Background(), PlaceRequest{
		UserID: "nobody",
		Items:  []ItemRequest{{VariantID: 1, Quantity: 1}},
	})
	require.ErrorIs(t, err, user.ErrNotFound)
}

func TestPlace_VariantNotFound_NothingPersists(t *testing.T) {
	store := newFakeStore(newVariant(1, "10.00", 5))
	svc := newService(store)

	_, err := svc.Place(context.Background(), PlaceRequest{
		UserID: "u1",
		Items: []ItemRequest{
			{VariantID: 1, Quantity: 2},
			{VariantID: 99, Quantity: 1},
		},
	})

	require.ErrorIs(t, err, catalog.ErrVariantNotFound)
	assert.Equal(t, 5, stockOf(t, store, 1), "first item's decrement must roll back")
	assert.Empty(t, store.state.orders)
}

func TestPlace_TotalIsSumOfLineSnapshots(t *testing.T) {
	store := newFakeStore(newVariant(1, "19.99", 10), newVariant(2, "5.50", 10))
	svc := newService(store)

	o, err := svc.Place(context.Background(), PlaceRequest{
		UserID: "u1",
		Items: []ItemRequest{
			{VariantID: 1, Quantity: 2},
			{VariantID: 2, Quantity: 3},
		},
	})
	require.NoError(t, err)

	require.Len(t, o.Items, 2)
	sum := decimal.Zero
	for _, it := range o.Items {
		sum = sum.Add(it.Price)
	}
	assert.True(t, o.TotalPrice.Equal(sum), "total %s != item sum %s", o.TotalPrice, sum)
	assert.True(t, decimal.RequireFromString("56.48").Equal(o.TotalPrice))
	assert.Equal(t, StatusPending, o.Status)
	require.NotNil(t, o.User)
	assert.Equal(t, "u1", o.User.ID)
}

func TestPlace_DecrementsStock(t *testing.T) {
	store := newFakeStore(newVariant(1, "10.00", 5))
	svc := newService(store)

	o, err := svc.Place(context.Background(), PlaceRequest{
		UserID: "u1",
		Items:  []ItemRequest{{VariantID: 1, Quantity: 3}},
	})
	require.NoError(t, err)

	assert.Equal(t, 2, stockOf(t, store, 1))
	assert.True(t, decimal.RequireFromString("30.00").Equal(o.TotalPrice))
}

func TestPlace_InsufficientStock(t *testing.T) {
	store := newFakeStore(newVariant(1, "10.00", 2))
	svc := newService(store)

	_, err := svc.Place(context.Background(), PlaceRequest{
		UserID: "u1",
		Items:  []ItemRequest{{VariantID: 1, Quantity: 3}},
	})

	var isErr *InsufficientStockError
	require.ErrorAs(t, err, &isErr)
	assert.Equal(t, 2, isErr.Available)
	assert.Equal(t, 3, isErr.Requested)
	assert.Equal(t, 2, stockOf(t, store, 1))
}

func TestPlace_SameVariantTwice_SecondLineSeesDecrement(t *testing.T) {
	// Stock 4, two lines of 3: the first line decrements to 1, so the second
	// line must fail and the whole order must roll back.
	store := newFakeStore(newVariant(1, "10.00", 4))
	svc := newService(store)

	_, err := svc.Place(context.Background(), PlaceRequest{
		UserID: "u1",
		Items: []ItemRequest{
			{VariantID: 1, Quantity: 3},
			{VariantID: 1, Quantity: 3},
		},
	})

	var isErr *InsufficientStockError
	require.ErrorAs(t, err, &isErr)
	assert.Equal(t, 1, isErr.Available)
	assert.Equal(t, 4, stockOf(t, store, 1), "rollback must restore the first line's decrement")
	assert.Empty(t, store.state.orders)
}

// --- Cancel ---

func placeOrder(t *testing.T, svc *Service, userID string, items ...ItemRequest) *Order {
	t.Helper()
	o, err := svc.Place(context.Background(), PlaceRequest{UserID: userID, Items: items})
	require.NoError(t, err)
	return o
}

func TestCancel_RestoresStockAndSetsStatus(t *testing.T) {
	store := newFakeStore(newVariant(1, "10.00", 10), newVariant(2, "4.00", 10))
	svc := newService(store)

	o := placeOrder(t, svc, "u1",
		ItemRequest{VariantID: 1, Quantity: 2},
		ItemRequest{VariantID: 2, Quantity: 1},
	)
	require.Equal(t, 8, stockOf(t, store, 1))
	require.Equal(t, 9, stockOf(t, store, 2))

	cancelled, err := svc.Cancel(context.Background(), o.ID, Identity{UserID: "u1", Role: user.RoleUser})
	require.NoError(t, err)

	assert.Equal(t, StatusCancelled, cancelled.Status)
	assert.Equal(t, 10, stockOf(t, store, 1))
	assert.Equal(t, 10, stockOf(t, store, 2))
}

func TestCancel_PlaceThenCancelRoundtrip(t *testing.T) {
	store := newFakeStore(newVariant(1, "12.00", 5))
	svc := newService(store)

	o := placeOrder(t, svc, "u1", ItemRequest{VariantID: 1, Quantity: 3})
	require.Equal(t, 2, stockOf(t, store, 1))
	require.True(t, decimal.RequireFromString("36.00").Equal(o.TotalPrice))

	cancelled, err := svc.Cancel(context.Background(), o.ID, Identity{UserID: "u1", Role: user.RoleUser})
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, cancelled.Status)
	assert.Equal(t, 5, stockOf(t, store, 1))
}

func TestCancel_NotFound(t *testing.T) {
	svc := newService(newFakeStore())

	_, err := svc.Cancel(context.Background(), "missing", Identity{UserID: "u1", Role: user.RoleAdmin})
	require.ErrorIs(t, err, ErrNotFound)
}

func TestCancel_WrongStatus(t *testing.T) {
	store := newFakeStore(newVariant(1, "10.00", 5))
	svc := newService(store)

	o := placeOrder(t, svc, "u1", ItemRequest{VariantID: 1, Quantity: 1})

	_, err := svc.UpdateStatus(context.Background(), o.ID, StatusShipped)
	require.NoError(t, err)

	_, err = svc.Cancel(context.Background(), o.ID, Identity{UserID: "u1", Role: user.RoleUser})
	require.ErrorIs(t, err, ErrCannotModify)
	assert.Equal(t, 4, stockOf(t, store, 1), "failed cancel must not restore stock")

	got, err := svc.Get(context.Background(), o.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusShipped, got.Status)
}

func TestCancel_AlreadyCancelled(t *testing.T) {
	store := newFakeStore(newVariant(1, "10.00", 5))
	svc := newService(store)
	caller := Identity{UserID: "u1", Role: user.RoleUser}

	o := placeOrder(t, svc, "u1", ItemRequest{VariantID: 1, Quantity: 2})

	_, err := svc.Cancel(context.Background(), o.ID, caller)
	require.NoError(t, err)
	require.Equal(t, 5, stockOf(t, store, 1))

	_, err = svc.Cancel(context.Background(), o.ID, caller)
	require.ErrorIs(t, err, ErrCannotModify)
	assert.Equal(t, 5, stockOf(t, store, 1), "double cancel must not restore stock twice")
}

func TestCancel_ForbiddenForOtherUser(t *testing.T) {
	store := newFakeStore(newVariant(1, "10.00", 5))
	svc := newService(store)

	o := placeOrder(t, svc, "u1", ItemRequest{VariantID: 1, Quantity: 1})

	_, err := svc.Cancel(context.Background(), o.ID, Identity{UserID: "u2", Role: user.RoleUser})
	require.ErrorIs(t, err, ErrForbidden)

	// Admins may cancel anyone's order.
	_, err = svc.Cancel(context.Background(), o.ID, Identity{UserID: "u2", Role: user.RoleAdmin})
	require.NoError(t, err)
}

func TestCancel_SkipsDeletedVariants(t *testing.T) {
	store := newFakeStore(newVariant(1, "10.00", 5), newVariant(2, "3.00", 5))
	svc := newService(store)

	o := placeOrder(t, svc, "u1",
		ItemRequest{VariantID: 1, Quantity: 1},
		ItemRequest{VariantID: 2, Quantity: 2},
	)

	// Variant 2 is deleted after the order was placed.
	delete(store.state.variants, 2)

	cancelled, err := svc.Cancel(context.Background(), o.ID, Identity{UserID: "u1", Role: user.RoleUser})
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, cancelled.Status)
	assert.Equal(t, 5, stockOf(t, store, 1), "existing variant restored")
}

// --- Status update & delete ---

func TestUpdateStatus_InvalidValue(t *testing.T) {
	svc := newService(newFakeStore())

	_, err := svc.UpdateStatus(context.Background(), "any", Status("WAITING"))

	var invErr *InvalidStatusError
	require.ErrorAs(t, err, &invErr)
}

func TestUpdateStatus_NotFound(t *testing.T) {
	svc := newService(newFakeStore())

	_, err := svc.UpdateStatus(context.Background(), "missing", StatusProcessing)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestUpdateStatus_NoTransitionGuard(t *testing.T) {
	store := newFakeStore(newVariant(1, "10.00", 5))
	svc := newService(store)

	o := placeOrder(t, svc, "u1", ItemRequest{VariantID: 1, Quantity: 1})

	// Administrators may write any valid status, including backwards moves.
	for _, st := range []Status{StatusDelivered, StatusPending, StatusShipped} {
		got, err := svc.UpdateStatus(context.Background(), o.ID, st)
		require.NoError(t, err)
		assert.Equal(t, st, got.Status)
	}
}

func TestDelete_NoStockRestoration(t *testing.T) {
	store := newFakeStore(newVariant(1, "10.00", 5))
	svc := newService(store)

	o := placeOrder(t, svc, "u1", ItemRequest{VariantID: 1, Quantity: 2})
	require.Equal(t, 3, stockOf(t, store, 1))

	require.NoError(t, svc.Delete(context.Background(), o.ID))
	assert.Equal(t, 3, stockOf(t, store, 1), "delete is destructive, not a cancellation")

	err := svc.Delete(context.Background(), o.ID)
	require.ErrorIs(t, err, ErrNotFound)
}
