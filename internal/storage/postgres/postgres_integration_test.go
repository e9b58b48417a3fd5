//go:build integration

package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/xenking/b2b-pricing/internal/domain/pricing"
)

func newTestPool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	ctx := context.Background()

	container, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("pricing_test"),
		tcpostgres.WithUsername("postgres"),
		tcpostgres.WithPassword("postgres"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = testcontainers.TerminateContainer(container)
	})

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	pool, err := NewPool(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	require.NoError(t, RunMigrations(ctx, pool))
	// Migrations are idempotent.
	require.NoError(t, RunMigrations(ctx, pool))
	return pool
}

func TestRepositories(t *testing.T) {
	pool := newTestPool(t)
	ctx := context.Background()
	products := NewProductRepository(pool)
	rules := NewRuleRepository(pool)

	t.Run("base price", func(t *testing.T) {
		require.NoError(t, products.UpsertProduct(ctx, "p1", "Widget", decimal.RequireFromString("500")))

		price, err := products.BasePrice(ctx, "p1")
		require.NoError(t, err)
		assert.True(t, price.Equal(decimal.RequireFromString("500")))

		_, err = products.BasePrice(ctx, "missing")
		assert.ErrorIs(t, err, pricing.ErrNotFound)
	})

	t.Run("pricing group round trip", func(t *testing.T) {
		g := pricing.PricingGroup{
			ID:   "wholesale",
			Name: "Wholesale",
			Policy: pricing.TieredDiscount{Tiers: []pricing.DiscountTier{
				{MinQuantity: 10, Value: decimal.RequireFromString("5")},
				{MinQuantity: 50, Value: decimal.RequireFromString("10")},
			}},
			MinOrderAmount: decimal.NewNullDecimal(decimal.RequireFromString("1000")),
			CustomerIDs:    []string{"c2", "c1"},
			Active:         true,
		}
		require.NoError(t, rules.UpsertPricingGroup(ctx, g))

		got, err := rules.PricingGroup(ctx, "wholesale")
		require.NoError(t, err)
		assert.Equal(t, "Wholesale", got.Name)
		assert.Equal(t, []string{"c1", "c2"}, got.CustomerIDs)
		assert.True(t, got.MinOrderAmount.Valid)
		require.IsType(t, pricing.TieredDiscount{}, got.Policy)
		assert.Len(t, got.Policy.(pricing.TieredDiscount).Tiers, 2)

		_, err = rules.PricingGroup(ctx, "missing")
		assert.ErrorIs(t, err, pricing.ErrNotFound)
	})

	t.Run("membership replaced on upsert", func(t *testing.T) {
		g := pricing.PricingGroup{
			ID:          "retail",
			Policy:      pricing.PercentageDiscount{Percent: decimal.RequireFromString("3")},
			CustomerIDs: []string{"c3"},
			Active:      true,
		}
		require.NoError(t, rules.UpsertPricingGroup(ctx, g))
		g.CustomerIDs = []string{"c4"}
		require.NoError(t, rules.UpsertPricingGroup(ctx, g))

		_, err := rules.CustomerGroup(ctx, "c3")
		assert.ErrorIs(t, err, pricing.ErrNotFound)

		got, err := rules.CustomerGroup(ctx, "c4")
		require.NoError(t, err)
		assert.Equal(t, "retail", got.ID)
	})

	t.Run("conflicting membership picks smallest id", func(t *testing.T) {
		for _, id := range []string{"zeta", "alpha"} {
			require.NoError(t, rules.UpsertPricingGroup(ctx, pricing.PricingGroup{
				ID:          id,
				Policy:      pricing.FixedDiscount{Amount: decimal.RequireFromString("1")},
				CustomerIDs: []string{"c5"},
				Active:      true,
			}))
		}

		got, err := rules.CustomerGroup(ctx, "c5")
		require.NoError(t, err)
		assert.Equal(t, "alpha", got.ID)
	})

	t.Run("inactive group ignored", func(t *testing.T) {
		require.NoError(t, rules.UpsertPricingGroup(ctx, pricing.PricingGroup{
			ID:          "dormant",
			Policy:      pricing.PercentageDiscount{Percent: decimal.RequireFromString("50")},
			CustomerIDs: []string{"c6"},
			Active:      false,
		}))

		_, err := rules.CustomerGroup(ctx, "c6")
		assert.ErrorIs(t, err, pricing.ErrNotFound)
	})

	t.Run("unknown discount type yields nil policy", func(t *testing.T) {
		_, err := pool.Exec(ctx, `INSERT INTO pricing_groups (id, discount_type) VALUES ('legacy', 'bogo')`)
		require.NoError(t, err)

		got, err := rules.PricingGroup(ctx, "legacy")
		require.NoError(t, err)
		assert.Nil(t, got.Policy)
	})

	t.Run("product price overrides", func(t *testing.T) {
		from := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
		require.NoError(t, rules.UpsertProductPrice(ctx, pricing.ProductPrice{
			ID:         "pp1",
			ProductID:  "p1",
			CustomerID: "c1",
			Price:      decimal.RequireFromString("420"),
			Tiers: []pricing.PriceTier{
				{MinQuantity: 10, Price: decimal.RequireFromString("400")},
			},
			ValidFrom: &from,
		}))
		require.NoError(t, rules.UpsertProductPrice(ctx, pricing.ProductPrice{
			ID:             "pp2",
			ProductID:      "p1",
			PricingGroupID: "wholesale",
			Price:          decimal.RequireFromString("450"),
		}))

		got, err := rules.ProductPriceOverrides(ctx, "p1")
		require.NoError(t, err)
		require.Len(t, got, 2)

		assert.Equal(t, "c1", got[0].CustomerID)
		assert.Empty(t, got[0].PricingGroupID)
		require.NotNil(t, got[0].ValidFrom)
		assert.True(t, from.Equal(*got[0].ValidFrom))
		assert.Nil(t, got[0].ValidTo)
		require.Len(t, got[0].Tiers, 1)

		assert.Empty(t, got[1].CustomerID)
		assert.Equal(t, "wholesale", got[1].PricingGroupID)
		assert.Empty(t, got[1].Tiers)

		none, err := rules.ProductPriceOverrides(ctx, "p2")
		require.NoError(t, err)
		assert.Empty(t, none)
	})

	t.Run("service end to end", func(t *testing.T) {
		svc, err := pricing.NewService(rules)
		require.NoError(t, err)

		res, err := svc.CalculatePrice(ctx, pricing.Request{
			ProductID:  "p1",
			CustomerID: "c2",
			Quantity:   1,
			BasePrice:  decimal.RequireFromString("500"),
		})
		require.NoError(t, err)
		assert.Equal(t, "450", res.Price.String())
		assert.Equal(t, "Wholesale price", res.AppliedRule)
	})
}
