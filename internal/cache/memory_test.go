package cache

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/b2b-pricing/internal/domain/pricing"
)

func d(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

func testKey() pricing.CacheKey {
	return pricing.CacheKey{ProductID: "p1", CustomerID: "c1", Quantity: 2, BasePrice: d("500")}
}

func testResult() pricing.Result {
	return pricing.Result{
		Price:              d("450"),
		OriginalPrice:      d("500"),
		DiscountAmount:     d("50"),
		DiscountPercentage: d("10"),
		AppliedRule:        "G",
	}
}

func TestMemory_GetPut(t *testing.T) {
	ctx := context.Background()
	c := NewMemory()

	got, ok, err := c.Get(ctx, testKey())
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, got)

	require.NoError(t, c.Put(ctx, testKey(), testResult(), time.Minute))

	got, ok, err = c.Get(ctx, testKey())
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, testResult(), *got)

	hits, misses := c.Stats()
	assert.Equal(t, int64(1), hits)
	assert.Equal(t, int64(1), misses)
}

func TestMemory_ReturnsCopy(t *testing.T) {
	ctx := context.Background()
	c := NewMemory()
	require.NoError(t, c.Put(ctx, testKey(), testResult(), time.Minute))

	got, _, _ := c.Get(ctx, testKey())
	got.AppliedRule = "mutated"

	again, ok, err := c.Get(ctx, testKey())
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "G", again.AppliedRule)
}

func TestMemory_Expiry(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	c := NewMemory()
	c.now = func() time.Time { return now }

	require.NoError(t, c.Put(ctx, testKey(), testResult(), 30*time.Second))

	now = now.Add(29 * time.Second)
	_, ok, err := c.Get(ctx, testKey())
	require.NoError(t, err)
	assert.True(t, ok)

	now = now.Add(time.Second)
	_, ok, err = c.Get(ctx, testKey())
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Zero(t, c.Len())
}

func TestMemory_LastWriteWins(t *testing.T) {
	ctx := context.Background()
	c := NewMemory()

	first := testResult()
	second := testResult()
	second.AppliedRule = "G (qty >= 2)"

	require.NoError(t, c.Put(ctx, testKey(), first, time.Minute))
	require.NoError(t, c.Put(ctx, testKey(), second, time.Minute))

	got, ok, err := c.Get(ctx, testKey())
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, second.AppliedRule, got.AppliedRule)
	assert.Equal(t, 1, c.Len())
}

func TestMemory_Sweep(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	c := NewMemory()
	c.now = func() time.Time { return now }

	short := testKey()
	long := testKey()
	long.Quantity = 3

	require.NoError(t, c.Put(ctx, short, testResult(), time.Second))
	require.NoError(t, c.Put(ctx, long, testResult(), time.Hour))

	c.sweep(now.Add(time.Minute))

	assert.Equal(t, 1, c.Len())
	_, ok, _ := c.Get(ctx, long)
	assert.True(t, ok)
}

func TestMemory_StartCleanupStopsWithContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	c := NewMemory()
	require.NoError(t, c.Put(ctx, testKey(), testResult(), time.Millisecond))

	c.StartCleanup(ctx, 5*time.Millisecond)

	assert.Eventually(t, func() bool { return c.Len() == 0 }, time.Second, 5*time.Millisecond)
	cancel()
}
