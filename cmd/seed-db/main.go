// Command seed-db loads the embedded catalog seed data and creates the
// initial administrator account. It is idempotent: rerunning updates prices
// and stock instead of duplicating rows.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"log/slog"
	"os"
	"os/signal"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/antonwidjaya/store-api/db"
	"github.com/antonwidjaya/store-api/internal/domain/auth"
	"github.com/antonwidjaya/store-api/internal/storage/postgres"
)

type catalogJSON struct {
	Categories []struct {
		Name        string `json:"name"`
		Description string `json:"description"`
		Products    []struct {
			Name        string          `json:"name"`
			Description string          `json:"description"`
			BasePrice   decimal.Decimal `json:"base_price"`
			Material    string          `json:"material"`
			Brand       string          `json:"brand"`
			Variants    []struct {
				Color         string          `json:"color"`
				Size          string          `json:"size"`
				Price         decimal.Decimal `json:"price"`
				StockQuantity int             `json:"stock_quantity"`
			} `json:"variants"`
		} `json:"products"`
	} `json:"categories"`
}

func main() {
	var (
		databaseURL   string
		adminEmail    string
		adminPassword string
	)

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&adminEmail, "admin-email", "admin@example.com", "email of the seeded administrator")
	flag.StringVar(&adminPassword, "admin-password", "", "password of the seeded administrator (or STORE_SEED_ADMIN_PASSWORD env)")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}
	if adminPassword == "" {
		adminPassword = os.Getenv("STORE_SEED_ADMIN_PASSWORD")
	}
	if adminPassword == "" {
		slog.Error("admin password is required: set --admin-password or STORE_SEED_ADMIN_PASSWORD")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, databaseURL, adminEmail, adminPassword); err != nil {
		slog.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("seed completed successfully")
}

func run(ctx context.Context, databaseURL, adminEmail, adminPassword string) error {
	slog.Info("connecting to database")

	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	slog.Info("running migrations")

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	if err := seedCatalog(ctx, pool); err != nil {
		return errors.Wrap(err, "seed catalog")
	}
	if err := seedAdmin(ctx, pool, adminEmail, adminPassword); err != nil {
		return errors.Wrap(err, "seed admin user")
	}
	return nil
}

func seedCatalog(ctx context.Context, pool *pgxpool.Pool) error {
	var catalog catalogJSON
	if err := json.Unmarshal(db.SeedCatalog, &catalog); err != nil {
		return errors.Wrap(err, "parse catalog JSON")
	}

	for _, c := range catalog.Categories {
		var categoryID int64
		err := pool.QueryRow(ctx,
			`INSERT INTO categories (name, description) VALUES ($1, $2)
			 ON CONFLICT (name) DO UPDATE SET description = EXCLUDED.description
			 RETURNING category_id`,
			c.Name, c.Description,
		).Scan(&categoryID)
		if err != nil {
			return errors.Wrapf(err, "upsert category %s", c.Name)
		}

		for _, p := range c.Products {
			var productID int64
			err := pool.QueryRow(ctx,
				`SELECT product_id FROM products WHERE category_id = $1 AND name = $2`,
				categoryID, p.Name,
			).Scan(&productID)
			if err != nil {
				err = pool.QueryRow(ctx,
					`INSERT INTO products (category_id, name, description, base_price, material, brand)
					 VALUES ($1, $2, $3, $4, $5, $6) RETURNING product_id`,
					categoryID, p.Name, p.Description, p.BasePrice, p.Material, p.Brand,
				).Scan(&productID)
				if err != nil {
					return errors.Wrapf(err, "insert product %s", p.Name)
				}
			}

			for _, v := range p.Variants {
				_, err := pool.Exec(ctx,
					`INSERT INTO product_variants (product_id, color, size, price, stock_quantity)
					 VALUES ($1, $2, $3, $4, $5)
					 ON CONFLICT (product_id, color, size)
					 DO UPDATE SET price = EXCLUDED.price, stock_quantity = EXCLUDED.stock_quantity`,
					productID, v.Color, v.Size, v.Price, v.StockQuantity,
				)
				if err != nil {
					return errors.Wrapf(err, "upsert variant %s/%s of %s", v.Color, v.Size, p.Name)
				}
			}

			slog.Info("seeded product",
				slog.String("name", p.Name),
				slog.Int("variants", len(p.Variants)))
		}
	}
	return nil
}

func seedAdmin(ctx context.Context, pool *pgxpool.Pool, email, password string) error {
	hash, err := auth.HashPassword(password)
	if err != nil {
		return errors.Wrap(err, "hash password")
	}

	tag, err := pool.Exec(ctx,
		`INSERT INTO users (user_id, name, email, password_hash, role)
		 VALUES ($1, $2, $3, $4, 'ADMIN')
		 ON CONFLICT (email) DO NOTHING`,
		uuid.New().String(), "Administrator", email, hash,
	)
	if err != nil {
		return errors.Wrap(err, "insert admin user")
	}

	if tag.RowsAffected() == 0 {
		slog.Info("admin user already exists", slog.String("email", email))
	} else {
		slog.Info("created admin user", slog.String("email", email))
	}
	return nil
}
