// Command rules-import streams gzipped NDJSON exports of products, pricing
// groups and product prices into the pricing database.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/b2b-pricing/internal/importer"
	"github.com/xenking/b2b-pricing/internal/storage/postgres"
)

func main() {
	var (
		dataDir         string
		databaseURL     string
		expectedRecords uint
	)

	flag.StringVar(&dataDir, "data-dir", "data", "directory containing the *.ndjson.gz exports")
	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.UintVar(&expectedRecords, "expected-records", 1_000_000, "expected records per collection, sizes the reference filters")
	flag.Parse()

	lg := zap.Must(zap.NewProduction())
	defer func() { _ = lg.Sync() }()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		lg.Fatal("Database URL is required: set -database-url or DATABASE_URL")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()
	ctx = zctx.Base(ctx, lg)

	start := time.Now()
	report, err := run(ctx, dataDir, databaseURL, expectedRecords)
	if err != nil {
		lg.Error("Import failed", zap.Error(err))
		cancel()
		os.Exit(1)
	}

	lg.Info("Import completed",
		zap.Duration("took", time.Since(start)),
		zap.Int("products", report.Products.Imported),
		zap.Int("pricing_groups", report.PricingGroups.Imported),
		zap.Int("product_prices", report.ProductPrices.Imported),
		zap.Int("skipped", report.Products.Skipped+report.PricingGroups.Skipped+report.ProductPrices.Skipped),
		zap.Int("dangling", report.ProductPrices.Dangling),
	)
}

type store struct {
	*postgres.ProductRepository
	*postgres.RuleRepository
}

func run(ctx context.Context, dataDir, databaseURL string, expected uint) (*importer.Report, error) {
	if _, err := os.Stat(dataDir); err != nil {
		return nil, errors.Wrap(err, "check data dir")
	}

	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return nil, errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return nil, errors.Wrap(err, "run migrations")
	}

	im := importer.New(store{
		ProductRepository: postgres.NewProductRepository(pool),
		RuleRepository:    postgres.NewRuleRepository(pool),
	}, importer.Options{ExpectedRecords: expected})
	return im.Run(ctx, dataDir)
}
