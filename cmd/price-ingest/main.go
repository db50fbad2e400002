package main

import (
	"bufio"
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5/pgxpool"
	pgzip "github.com/klauspost/pgzip"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/token-checkout/internal/domain/cart"
	"github.com/xenking/token-checkout/internal/domain/money"
	"github.com/xenking/token-checkout/internal/storage/postgres"
)

const progressEvery = 1_000_000

const upsertPriceSQL = `INSERT INTO prices (sku, price)
VALUES ($1, $2)
ON CONFLICT (sku) DO UPDATE SET price = EXCLUDED.price`

// priceEntry is one parsed "sku,price" line.
type priceEntry struct {
	sku   cart.SKU
	price money.Money
}

func main() {
	var (
		dataDir     string
		databaseURL string
	)

	flag.StringVar(&dataDir, "data-dir", "data", "directory containing *.csv.gz price files")
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
		slog.Error("price ingest failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("price ingest completed successfully")
}

func run(ctx context.Context, dataDir, databaseURL string) error {
	files, err := filepath.Glob(filepath.Join(dataDir, "*.csv.gz"))
	if err != nil {
		return errors.Wrap(err, "list price files")
	}
	if len(files) == 0 {
		return errors.Errorf("no *.csv.gz files in %s", dataDir)
	}

	slog.Info("parsing price files", slog.Int("files", len(files)))

	results, err := parseFiles(ctx, files)
	if err != nil {
		return errors.Wrap(err, "parse price files")
	}

	// Later files win on duplicate SKUs, matching the glob's sorted order.
	merged := make(map[cart.SKU]money.Money)
	for _, entries := range results {
		for _, e := range entries {
			merged[e.sku] = e.price
		}
	}

	slog.Info("prices parsed", slog.Int("skus", len(merged)))

	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	if err := writePrices(ctx, pool, merged); err != nil {
		return errors.Wrap(err, "write prices to database")
	}

	return nil
}

// parseFiles streams every file concurrently, one goroutine per file.
func parseFiles(ctx context.Context, files []string) ([][]priceEntry, error) {
	results := make([][]priceEntry, len(files))

	g, ctx := errgroup.WithContext(ctx)
	for i, f := range files {
		g.Go(parseFile(ctx, i, f, results))
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	return results, nil
}

func parseFile(ctx context.Context, idx int, path string, results [][]priceEntry) func() error {
	return func() error {
		var (
			entries []priceEntry
			count   uint64
		)

		if err := streamGzFile(ctx, path, func(line string) error {
			line = strings.TrimSpace(line)
			if line == "" || strings.HasPrefix(line, "#") {
				return nil
			}

			entry, err := parseLine(line)
			if err != nil {
				return err
			}
			entries = append(entries, entry)

			count++
			if count%progressEvery == 0 {
				slog.Info("parse progress",
					slog.String("file", filepath.Base(path)),
					slog.Uint64("lines", count),
				)
			}
			return nil
		}); err != nil {
			return errors.Wrapf(err, "parse %s", path)
		}

		slog.Info("parse complete",
			slog.String("file", filepath.Base(path)),
			slog.Int("entries", len(entries)),
		)

		results[idx] = entries
		return nil
	}
}

func parseLine(line string) (priceEntry, error) {
	rawSKU, rawPrice, ok := strings.Cut(line, ",")
	if !ok {
		return priceEntry{}, errors.Errorf("malformed line %q: want sku,price", line)
	}

	sku, err := cart.ParseSKU(rawSKU)
	if err != nil {
		return priceEntry{}, err
	}
	price, err := money.FromDecimalString(strings.TrimSpace(rawPrice))
	if err != nil {
		return priceEntry{}, errors.Wrapf(err, "price for %s", sku)
	}

	return priceEntry{sku: sku, price: price}, nil
}

// streamGzFile opens a gzip-compressed file and calls fn for each line.
func streamGzFile(ctx context.Context, path string, fn func(line string) error) error {
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

	scanner := bufio.NewScanner(gz)
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := fn(scanner.Text()); err != nil {
			return err
		}
	}

	if err := scanner.Err(); err != nil {
		return errors.Wrapf(err, "scan %s", path)
	}

	return nil
}

// writePrices upserts the merged price table.
func writePrices(ctx context.Context, pool *pgxpool.Pool, prices map[cart.SKU]money.Money) error {
	slog.Info("writing prices to database", slog.Int("count", len(prices)))

	written := 0
	for sku, price := range prices {
		if _, err := pool.Exec(ctx, upsertPriceSQL, string(sku), price.Decimal()); err != nil {
			return errors.Wrapf(err, "upsert price for %s", sku)
		}
		written++
	}

	slog.Info("write complete", slog.Int("written", written))
	return nil
}
