package cache

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/b2b-pricing/internal/domain/pricing"
)

type mockCmdable struct {
	mu      sync.Mutex
	data    map[string]string
	ttls    map[string]time.Duration
	deleted []string
	err     error
}

func newMockCmdable() *mockCmdable {
	return &mockCmdable{
		data: make(map[string]string),
		ttls: make(map[string]time.Duration),
	}
}

func (m *mockCmdable) Get(_ context.Context, key string) *redis.StringCmd {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return redis.NewStringResult("", m.err)
	}
	v, ok := m.data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (m *mockCmdable) Set(_ context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return redis.NewStatusResult("", m.err)
	}
	switch v := value.(type) {
	case []byte:
		m.data[key] = string(v)
	case string:
		m.data[key] = v
	}
	m.ttls[key] = expiration
	return redis.NewStatusResult("OK", nil)
}

func (m *mockCmdable) Del(_ context.Context, keys ...string) *redis.IntCmd {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		delete(m.data, k)
		m.deleted = append(m.deleted, k)
	}
	return redis.NewIntResult(int64(len(keys)), nil)
}

func TestRedis_RoundTrip(t *testing.T) {
	ctx := context.Background()
	store := newMockCmdable()
	c := &Redis{store: store}

	got, ok, err := c.Get(ctx, testKey())
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, got)

	require.NoError(t, c.Put(ctx, testKey(), testResult(), 45*time.Second))
	assert.Equal(t, 45*time.Second, store.ttls["pricing:price:2:p1:2:c1:2:500"])

	got, ok, err = c.Get(ctx, testKey())
	require.NoError(t, err)
	require.True(t, ok)

	want := testResult()
	assert.True(t, want.Price.Equal(got.Price))
	assert.True(t, want.OriginalPrice.Equal(got.OriginalPrice))
	assert.True(t, want.DiscountAmount.Equal(got.DiscountAmount))
	assert.True(t, want.DiscountPercentage.Equal(got.DiscountPercentage))
	assert.Equal(t, want.AppliedRule, got.AppliedRule)
}

func TestRedis_NoAppliedRule(t *testing.T) {
	ctx := context.Background()
	c := &Redis{store: newMockCmdable()}
	res := pricing.Result{
		Price:              d("9.99"),
		OriginalPrice:      d("9.99"),
		DiscountAmount:     d("0"),
		DiscountPercentage: d("0"),
	}

	require.NoError(t, c.Put(ctx, testKey(), res, time.Minute))
	got, ok, err := c.Get(ctx, testKey())

	require.NoError(t, err)
	require.True(t, ok)
	assert.Empty(t, got.AppliedRule)
	assert.Equal(t, "9.99", got.Price.String())
}

func TestRedis_CorruptedEntryIsDeleted(t *testing.T) {
	ctx := context.Background()
	store := newMockCmdable()
	store.data["pricing:price:2:p1:2:c1:2:500"] = `{"price":true}`
	c := &Redis{store: store}

	_, ok, err := c.Get(ctx, testKey())

	require.Error(t, err)
	assert.False(t, ok)
	assert.Equal(t, []string{"pricing:price:2:p1:2:c1:2:500"}, store.deleted)
}

func TestRedis_BackendErrors(t *testing.T) {
	ctx := context.Background()
	store := newMockCmdable()
	store.err = errors.New("connection refused")
	c := &Redis{store: store}

	_, ok, err := c.Get(ctx, testKey())
	require.Error(t, err)
	assert.False(t, ok)
	assert.Contains(t, err.Error(), "connection refused")

	err = c.Put(ctx, testKey(), testResult(), time.Minute)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "set pricing:price:2:p1:2:c1:2:500")
}
