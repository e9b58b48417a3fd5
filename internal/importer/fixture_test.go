package importer

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/b2b-pricing/internal/domain/pricing"
)

const sampleFixture = `
products:
  - id: p1
    name: Widget
    price: 500
  - id: p2
    name: Gadget
    price: "19.99"
pricingGroups:
  - id: wholesale
    name: Wholesale
    discountType: percentage
    discountValue: 10
    minOrderAmount: 1000
    customerIds: [c1, c2]
    updatedAt: 2025-03-01T09:30:00Z
  - id: volume
    name: Volume
    discountType: tiered
    tiers:
      - minQuantity: 10
        discountValue: 5
      - minQuantity: 50
        discountValue: 12.5
    customerIds: [c3]
    isActive: false
productPrices:
  - id: pp1
    productId: p1
    customerId: c1
    price: 420
    validFrom: 2025-01-01T00:00:00Z
  - id: pp2
    productId: p1
    pricingGroupId: wholesale
    price: 450
    tieredPricing:
      - minQuantity: 10
        price: 400
`

func TestLoadFixture(t *testing.T) {
	f, err := LoadFixture(strings.NewReader(sampleFixture))
	require.NoError(t, err)

	require.Len(t, f.Products, 2)
	assert.True(t, f.Products[1].Price.Equal(decimal.RequireFromString("19.99")))

	require.Len(t, f.PricingGroups, 2)
	assert.Equal(t, time.Date(2025, 3, 1, 9, 30, 0, 0, time.UTC), f.PricingGroups[0].UpdatedAt)
	require.NotNil(t, f.PricingGroups[0].MinOrderAmount)
	require.Len(t, f.PricingGroups[1].Tiers, 2)
	assert.True(t, f.PricingGroups[1].Tiers[1].Value.Equal(decimal.RequireFromString("12.5")))

	require.Len(t, f.ProductPrices, 2)
	require.NotNil(t, f.ProductPrices[0].ValidFrom)
	assert.Nil(t, f.ProductPrices[0].ValidTo)
}

func TestLoadFixtureRejected(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr string
	}{
		{
			name:    "unknown key",
			input:   "products:\n  - id: p1\n    prise: 10\n",
			wantErr: "prise",
		},
		{
			name:    "missing product id",
			input:   "products:\n  - name: Widget\n    price: 10\n",
			wantErr: "products[0]: id: is required",
		},
		{
			name:    "negative price",
			input:   "products:\n  - id: p1\n    price: -1\n",
			wantErr: "products[0]: price: must not be negative",
		},
		{
			name:    "unknown discount type",
			input:   "pricingGroups:\n  - id: g1\n    discountType: bogo\n",
			wantErr: "pricingGroups[0]: discountType",
		},
		{
			name:    "tiered without tiers",
			input:   "pricingGroups:\n  - id: g1\n    discountType: tiered\n",
			wantErr: "pricingGroups[0]: tiers",
		},
		{
			name:    "tier below one",
			input:   "pricingGroups:\n  - id: g1\n    discountType: tiered\n    tiers:\n      - minQuantity: 0\n        discountValue: 5\n",
			wantErr: "pricingGroups[0]: tiers[0].minQuantity",
		},
		{
			name:    "price without target",
			input:   "productPrices:\n  - id: pp1\n    productId: p1\n    price: 1\n",
			wantErr: "productPrices[0]: pricingGroupId",
		},
		{
			name:    "inverted validity window",
			input:   "productPrices:\n  - id: pp1\n    productId: p1\n    customerId: c1\n    price: 1\n    validFrom: 2025-02-01T00:00:00Z\n    validTo: 2025-01-01T00:00:00Z\n",
			wantErr: "validTo: must not be before validFrom",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadFixture(strings.NewReader(tt.input))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestFixtureApply(t *testing.T) {
	f, err := LoadFixture(strings.NewReader(sampleFixture))
	require.NoError(t, err)

	w := newFakeWriter()
	require.NoError(t, f.Apply(context.Background(), w))

	assert.Len(t, w.products, 2)

	wholesale := w.groups["wholesale"]
	assert.True(t, wholesale.Active)
	assert.True(t, wholesale.MinOrderAmount.Valid)
	assert.Equal(t, []string{"c1", "c2"}, wholesale.CustomerIDs)
	assert.Equal(t, pricing.DiscountPercentage, wholesale.Policy.Type())

	volume := w.groups["volume"]
	assert.False(t, volume.Active)
	assert.Equal(t, pricing.DiscountTiered, volume.Policy.Type())

	assert.Equal(t, "wholesale", w.prices["pp2"].PricingGroupID)
	require.Len(t, w.prices["pp2"].Tiers, 1)
}

func TestFixtureApplyWriteFailure(t *testing.T) {
	f, err := LoadFixture(strings.NewReader(sampleFixture))
	require.NoError(t, err)

	w := newFakeWriter()
	w.failOn = "p2"
	err = f.Apply(context.Background(), w)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "upsert product p2")
	assert.Empty(t, w.groups)
}
