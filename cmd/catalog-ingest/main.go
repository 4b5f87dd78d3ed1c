// Command catalog-ingest loads gzipped CSV inventory feeds into the catalog.
// Feed shards come from suppliers as variant rows keyed by SKU
// (product_id/color/size); the same SKU may appear in multiple shards, and
// only its first occurrence is applied.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5/pgxpool"
	pgzip "github.com/klauspost/pgzip"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/antonwidjaya/store-api/internal/storage/postgres"
)

const (
	bloomCapacity = 10_000_000
	bloomFPR      = 0.001
	batchSize     = 500
	progressEvery = 100_000
)

// feedRow is one parsed line of a supplier feed:
// product_id,color,size,price,stock_quantity
type feedRow struct {
	productID int64
	color     string
	size      string
	price     decimal.Decimal
	stock     int
}

func (r feedRow) sku() string {
	return fmt.Sprintf("%d|%s|%s", r.productID, strings.ToLower(r.color), strings.ToLower(r.size))
}

func main() {
	var (
		dataDir     string
		databaseURL string
	)

	flag.StringVar(&dataDir, "data-dir", "data", "directory containing *.csv.gz feed shards")
	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, dataDir, databaseURL); err != nil {
		slog.Error("catalog ingest failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("catalog ingest completed successfully")
}

func run(ctx context.Context, dataDir, databaseURL string) error {
	shards, err := filepath.Glob(filepath.Join(dataDir, "*.csv.gz"))
	if err != nil {
		return errors.Wrap(err, "list feed shards")
	}
	if len(shards) == 0 {
		return errors.Errorf("no *.csv.gz feed shards in %s", dataDir)
	}

	slog.Info("connecting to database")

	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	// Parsers stream shards concurrently; a single writer dedupes and
	// batch-upserts, so variant writes stay ordered.
	rows := make(chan feedRow, 4*batchSize)

	g, ctx := errgroup.WithContext(ctx)
	parsers, ctx := errgroup.WithContext(ctx)
	for _, shard := range shards {
		parsers.Go(parseShard(ctx, shard, rows))
	}
	g.Go(func() error {
		defer close(rows)
		return parsers.Wait()
	})
	g.Go(func() error {
		return writeRows(ctx, pool, rows)
	})

	return g.Wait()
}

// parseShard streams one gzipped CSV shard into out.
func parseShard(ctx context.Context, path string, out chan<- feedRow) func() error {
	return func() error {
		f, err := os.Open(path)
		if err != nil {
			return errors.Wrapf(err, "open %s", path)
		}
		defer func() { _ = f.Close() }()

		gz, err := pgzip.NewReader(f)
		if err != nil {
			return errors.Wrapf(err, "create gzip reader for %s", path)
		}
		defer func() { _ = gz.Close() }()

		var count uint64
		scanner := bufio.NewScanner(gz)
		for scanner.Scan() {
			if err := ctx.Err(); err != nil {
				return err
			}

			line := strings.TrimSpace(scanner.Text())
			if line == "" || strings.HasPrefix(line, "product_id,") {
				continue
			}

			row, err := parseLine(line)
			if err != nil {
				slog.Warn("skipping malformed line",
					slog.String("shard", filepath.Base(path)),
					slog.String("error", err.Error()))
				continue
			}

			select {
			case out <- row:
			case <-ctx.Done():
				return ctx.Err()
			}

			count++
			if count%progressEvery == 0 {
				slog.Info("parse progress",
					slog.String("shard", filepath.Base(path)),
					slog.Uint64("rows", count))
			}
		}
		if err := scanner.Err(); err != nil {
			return errors.Wrapf(err, "scan %s", path)
		}

		slog.Info("shard parsed",
			slog.String("shard", filepath.Base(path)),
			slog.Uint64("rows", count))
		return nil
	}
}

func parseLine(line string) (feedRow, error) {
	fields := strings.Split(line, ",")
	if len(fields) != 5 {
		return feedRow{}, errors.Errorf("expected 5 fields, got %d", len(fields))
	}

	productID, err := strconv.ParseInt(strings.TrimSpace(fields[0]), 10, 64)
	if err != nil {
		return feedRow{}, errors.Wrap(err, "parse product_id")
	}
	price, err := decimal.NewFromString(strings.TrimSpace(fields[3]))
	if err != nil {
		return feedRow{}, errors.Wrap(err, "parse price")
	}
	stock, err := strconv.Atoi(strings.TrimSpace(fields[4]))
	if err != nil {
		return feedRow{}, errors.Wrap(err, "parse stock_quantity")
	}
	if stock < 0 {
		return feedRow{}, errors.New("negative stock_quantity")
	}

	return feedRow{
		productID: productID,
		color:     strings.TrimSpace(fields[1]),
		size:      strings.TrimSpace(fields[2]),
		price:     price.Round(2),
		stock:     stock,
	}, nil
}

// writeRows dedupes SKUs and upserts variants in batches. The bloom filter
// screens the common case cheaply; the exact set resolves its false
// positives.
func writeRows(ctx context.Context, pool *pgxpool.Pool, rows <-chan feedRow) error {
	filter := bloom.NewWithEstimates(bloomCapacity, bloomFPR)
	seen := make(map[string]struct{})

	batch := make([]feedRow, 0, batchSize)
	var written, duplicates uint64

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := upsertBatch(ctx, pool, batch); err != nil {
			return err
		}
		written += uint64(len(batch))
		batch = batch[:0]

		if written%uint64(10*batchSize) == 0 {
			slog.Info("write progress",
				slog.Uint64("written", written),
				slog.Uint64("duplicates", duplicates))
		}
		return nil
	}

	for row := range rows {
		sku := row.sku()
		if filter.TestString(sku) {
			if _, ok := seen[sku]; ok {
				duplicates++
				continue
			}
		}
		filter.AddString(sku)
		seen[sku] = struct{}{}

		batch = append(batch, row)
		if len(batch) == batchSize {
			if err := flush(); err != nil {
				return err
			}
		}
	}
	if err := flush(); err != nil {
		return err
	}

	slog.Info("ingest finished",
		slog.Uint64("written", written),
		slog.Uint64("duplicates", duplicates))
	return nil
}

// upsertBatch writes one batch of variants. Rows whose product does not
// exist are dropped by the products join rather than failing the batch.
func upsertBatch(ctx context.Context, pool *pgxpool.Pool, batch []feedRow) error {
	productIDs := make([]int64, len(batch))
	colors := make([]string, len(batch))
	sizes := make([]string, len(batch))
	prices := make([]decimal.Decimal, len(batch))
	stocks := make([]int32, len(batch))
	for i, row := range batch {
		productIDs[i] = row.productID
		colors[i] = row.color
		sizes[i] = row.size
		prices[i] = row.price
		stocks[i] = int32(row.stock)
	}

	_, err := pool.Exec(ctx,
		`INSERT INTO product_variants (product_id, color, size, price, stock_quantity)
		 SELECT f.product_id, f.color, f.size, f.price, f.stock_quantity
		 FROM unnest($1::BIGINT[], $2::TEXT[], $3::TEXT[], $4::NUMERIC[], $5::INT[])
		   AS f(product_id, color, size, price, stock_quantity)
		 JOIN products p ON p.product_id = f.product_id
		 ON CONFLICT (product_id, color, size)
		 DO UPDATE SET price = EXCLUDED.price, stock_quantity = EXCLUDED.stock_quantity`,
		productIDs, colors, sizes, prices, stocks,
	)
	if err != nil {
		return errors.Wrap(err, "upsert variant batch")
	}
	return nil
}
