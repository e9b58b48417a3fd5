// Command seed-db loads a YAML pricing fixture into a development database.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/b2b-pricing/internal/importer"
	"github.com/xenking/b2b-pricing/internal/storage/postgres"
)

func main() {
	var (
		databaseURL string
		fixtureFile string
	)

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&fixtureFile, "fixture", "db/seed/pricing.yaml", "path to the YAML pricing fixture")
	flag.Parse()

	lg := zap.Must(zap.NewDevelopment())
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

	if err := run(ctx, databaseURL, fixtureFile); err != nil {
		lg.Error("Seed failed", zap.Error(err))
		cancel()
		os.Exit(1)
	}

	lg.Info("Seed completed")
}

// store satisfies importer.Writer with both repositories.
type store struct {
	*postgres.ProductRepository
	*postgres.RuleRepository
}

func run(ctx context.Context, databaseURL, fixtureFile string) error {
	lg := zctx.From(ctx)

	f, err := os.Open(fixtureFile)
	if err != nil {
		return errors.Wrap(err, "open fixture")
	}
	defer func() { _ = f.Close() }()

	fixture, err := importer.LoadFixture(f)
	if err != nil {
		return errors.Wrapf(err, "load %s", fixtureFile)
	}

	lg.Info("Connecting to database")
	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	return fixture.Apply(ctx, store{
		ProductRepository: postgres.NewProductRepository(pool),
		RuleRepository:    postgres.NewRuleRepository(pool),
	})
}
