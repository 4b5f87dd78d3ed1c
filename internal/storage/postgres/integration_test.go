//go:build integration

package postgres

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/antonwidjaya/store-api/internal/domain/catalog"
	"github.com/antonwidjaya/store-api/internal/domain/order"
	"github.com/antonwidjaya/store-api/internal/domain/user"
)

func setupPool(ctx context.Context, t *testing.T) *pgxpool.Pool {
	t.Helper()

	container, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("store"),
		tcpostgres.WithUsername("store"),
		tcpostgres.WithPassword("store"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := container.Terminate(context.Background()); err != nil {
			t.Logf("terminate postgres container: %v", err)
		}
	})

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	pool, err := NewPool(ctx, connStr)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	require.NoError(t, RunMigrations(ctx, pool))
	return pool
}

func seedUser(ctx context.Context, t *testing.T, pool *pgxpool.Pool) string {
	t.Helper()

	id := uuid.New().String()
	_, err := pool.Exec(ctx,
		`INSERT INTO users (user_id, name, email, password_hash, role)
		 VALUES ($1, $2, $3, 'x', 'USER')`,
		id, "Test User", id+"@example.com")
	require.NoError(t, err)
	return id
}

func seedVariant(ctx context.Context, t *testing.T, pool *pgxpool.Pool, price string, stock int) int64 {
	t.Helper()

	var categoryID int64
	err := pool.QueryRow(ctx,
		`INSERT INTO categories (name) VALUES ($1) RETURNING category_id`,
		"cat-"+uuid.New().String(),
	).Scan(&categoryID)
	require.NoError(t, err)

	var productID int64
	err = pool.QueryRow(ctx,
		`INSERT INTO products (category_id, name, base_price)
		 VALUES ($1, $2, $3) RETURNING product_id`,
		categoryID, "prod-"+uuid.New().String(), decimal.RequireFromString(price),
	).Scan(&productID)
	require.NoError(t, err)

	var variantID int64
	err = pool.QueryRow(ctx,
		`INSERT INTO product_variants (product_id, color, size, price, stock_quantity)
		 VALUES ($1, 'black', 'M', $2, $3) RETURNING variant_id`,
		productID, decimal.RequireFromString(price), stock,
	).Scan(&variantID)
	require.NoError(t, err)
	return variantID
}

func stockOf(ctx context.Context, t *testing.T, pool *pgxpool.Pool, variantID int64) int {
	t.Helper()

	var stock int
	err := pool.QueryRow(ctx,
		`SELECT stock_quantity FROM product_variants WHERE variant_id = $1`,
		variantID,
	).Scan(&stock)
	require.NoError(t, err)
	return stock
}

func TestIntegration_PlaceAndCancel(t *testing.T) {
	ctx := context.Background()
	pool := setupPool(ctx, t)

	userID := seedUser(ctx, t, pool)
	variantID := seedVariant(ctx, t, pool, "19.99", 5)

	svc := order.NewService(NewUserRepository(pool), NewOrderStore(pool))

	o, err := svc.Place(ctx, order.PlaceRequest{
		UserID: userID,
		Items:  []order.ItemRequest{{VariantID: variantID, Quantity: 2}},
	})
	require.NoError(t, err)

	assert.Equal(t, order.StatusPending, o.Status)
	assert.True(t, o.TotalPrice.Equal(decimal.RequireFromString("39.98")),
		"total = %s", o.TotalPrice)
	require.Len(t, o.Items, 1)
	require.NotNil(t, o.Items[0].VariantID)
	assert.Equal(t, variantID, *o.Items[0].VariantID)
	assert.Equal(t, 3, stockOf(ctx, t, pool, variantID))

	cancelled, err := svc.Cancel(ctx, o.ID, order.Identity{UserID: userID, Role: user.RoleUser})
	require.NoError(t, err)
	assert.Equal(t, order.StatusCancelled, cancelled.Status)
	assert.Equal(t, 5, stockOf(ctx, t, pool, variantID))

	// A second cancel must not restore stock again.
	_, err = svc.Cancel(ctx, o.ID, order.Identity{UserID: userID, Role: user.RoleUser})
	require.ErrorIs(t, err, order.ErrCannotModify)
	assert.Equal(t, 5, stockOf(ctx, t, pool, variantID))
}

// TestIntegration_ConcurrentLastUnit races two orders for a single remaining
// unit. Exactly one must win; stock never goes negative.
func TestIntegration_ConcurrentLastUnit(t *testing.T) {
	ctx := context.Background()
	pool := setupPool(ctx, t)

	userID := seedUser(ctx, t, pool)
	variantID := seedVariant(ctx, t, pool, "10.00", 1)

	svc := order.NewService(NewUserRepository(pool), NewOrderStore(pool))

	const racers = 4
	errs := make([]error, racers)

	var wg sync.WaitGroup
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.Place(ctx, order.PlaceRequest{
				UserID: userID,
				Items:  []order.ItemRequest{{VariantID: variantID, Quantity: 1}},
			})
		}(i)
	}
	wg.Wait()

	var wins, losses int
	for _, err := range errs {
		if err == nil {
			wins++
			continue
		}
		var stockErr *order.InsufficientStockError
		require.ErrorAs(t, err, &stockErr)
		assert.Equal(t, variantID, stockErr.VariantID)
		losses++
	}

	assert.Equal(t, 1, wins)
	assert.Equal(t, racers-1, losses)
	assert.Equal(t, 0, stockOf(ctx, t, pool, variantID))
}

func TestIntegration_InsufficientStockRollsBack(t *testing.T) {
	ctx := context.Background()
	pool := setupPool(ctx, t)

	userID := seedUser(ctx, t, pool)
	okVariant := seedVariant(ctx, t, pool, "10.00", 10)
	lowVariant := seedVariant(ctx, t, pool, "20.00", 1)

	svc := order.NewService(NewUserRepository(pool), NewOrderStore(pool))

	// Second line fails; the first line's decrement must roll back too.
	_, err := svc.Place(ctx, order.PlaceRequest{
		UserID: userID,
		Items: []order.ItemRequest{
			{VariantID: okVariant, Quantity: 3},
			{VariantID: lowVariant, Quantity: 2},
		},
	})

	var stockErr *order.InsufficientStockError
	require.ErrorAs(t, err, &stockErr)
	assert.Equal(t, lowVariant, stockErr.VariantID)

	assert.Equal(t, 10, stockOf(ctx, t, pool, okVariant))
	assert.Equal(t, 1, stockOf(ctx, t, pool, lowVariant))

	orders, err := NewOrderStore(pool).ListByUser(ctx, userID)
	require.NoError(t, err)
	assert.Empty(t, orders)
}

// Deleting a variant nulls its order item references; cancelling such an
// order restores stock only for the variants that still exist.
func TestIntegration_CancelAfterVariantDeleted(t *testing.T) {
	ctx := context.Background()
	pool := setupPool(ctx, t)

	userID := seedUser(ctx, t, pool)
	keptVariant := seedVariant(ctx, t, pool, "10.00", 5)
	doomedVariant := seedVariant(ctx, t, pool, "20.00", 5)

	products := NewProductRepository(pool)
	svc := order.NewService(NewUserRepository(pool), NewOrderStore(pool))

	o, err := svc.Place(ctx, order.PlaceRequest{
		UserID: userID,
		Items: []order.ItemRequest{
			{VariantID: keptVariant, Quantity: 2},
			{VariantID: doomedVariant, Quantity: 1},
		},
	})
	require.NoError(t, err)

	require.NoError(t, products.DeleteVariant(ctx, doomedVariant))

	got, err := NewOrderStore(pool).GetByID(ctx, o.ID)
	require.NoError(t, err)
	require.Len(t, got.Items, 2)

	var nulled int
	for _, it := range got.Items {
		if it.VariantID == nil {
			nulled++
			assert.Nil(t, it.Variant)
			// The price snapshot survives the variant.
			assert.True(t, it.Price.Equal(decimal.RequireFromString("20.00")))
		}
	}
	assert.Equal(t, 1, nulled)

	cancelled, err := svc.Cancel(ctx, o.ID, order.Identity{UserID: userID, Role: user.RoleUser})
	require.NoError(t, err)
	assert.Equal(t, order.StatusCancelled, cancelled.Status)
	assert.Equal(t, 5, stockOf(ctx, t, pool, keptVariant))
}

func TestIntegration_VariantNotFound(t *testing.T) {
	ctx := context.Background()
	pool := setupPool(ctx, t)

	userID := seedUser(ctx, t, pool)
	svc := order.NewService(NewUserRepository(pool), NewOrderStore(pool))

	_, err := svc.Place(ctx, order.PlaceRequest{
		UserID: userID,
		Items:  []order.ItemRequest{{VariantID: 999999, Quantity: 1}},
	})
	require.ErrorIs(t, err, catalog.ErrVariantNotFound)
}

func TestIntegration_UserRepository(t *testing.T) {
	ctx := context.Background()
	pool := setupPool(ctx, t)

	repo := NewUserRepository(pool)
	u := &user.User{
		ID:    uuid.New().String(),
		Name:  "Alice",
		Email: "alice@example.com",
		Role:  user.RoleUser,
	}
	u.PasswordHash = "hash"
	require.NoError(t, repo.Create(ctx, u))

	// Duplicate email maps to the domain sentinel.
	dup := &user.User{ID: uuid.New().String(), Name: "Bob",
		Email: "alice@example.com", PasswordHash: "hash", Role: user.RoleUser}
	require.ErrorIs(t, repo.Create(ctx, dup), user.ErrEmailTaken)

	got, err := repo.GetByEmail(ctx, "alice@example.com")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)
	assert.False(t, got.CreatedAt.IsZero())

	found, err := repo.Search(ctx, "ali")
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "Alice", found[0].Name)
}
