package postgres

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/b2b-pricing/internal/domain/pricing"
)

func TestDecodeDiscountTiers(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    []pricing.DiscountTier
		wantErr bool
	}{
		{name: "empty input", input: ""},
		{name: "null", input: "null"},
		{name: "empty array", input: "[]", want: []pricing.DiscountTier{}},
		{
			name:  "numeric and string values",
			input: `[{"minQuantity":10,"discountValue":5},{"minQuantity":50,"discountValue":"12.5"}]`,
			want: []pricing.DiscountTier{
				{MinQuantity: 10, Value: decimal.RequireFromString("5")},
				{MinQuantity: 50, Value: decimal.RequireFromString("12.5")},
			},
		},
		{
			name:  "order preserved and unknown fields skipped",
			input: `[{"minQuantity":50,"discountValue":10,"label":"big"},{"minQuantity":10,"discountValue":5}]`,
			want: []pricing.DiscountTier{
				{MinQuantity: 50, Value: decimal.RequireFromString("10")},
				{MinQuantity: 10, Value: decimal.RequireFromString("5")},
			},
		},
		{name: "not an array", input: `{"minQuantity":1}`, wantErr: true},
		{name: "bad quantity", input: `[{"minQuantity":"ten","discountValue":5}]`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := decodeDiscountTiers([]byte(tt.input))
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Len(t, got, len(tt.want))
			for i := range tt.want {
				assert.Equal(t, tt.want[i].MinQuantity, got[i].MinQuantity)
				assert.True(t, tt.want[i].Value.Equal(got[i].Value), "tier %d value = %s", i, got[i].Value)
			}
		})
	}
}

func TestEncodePriceTiers(t *testing.T) {
	tiers := []pricing.PriceTier{
		{MinQuantity: 1, Price: decimal.RequireFromString("100")},
		{MinQuantity: 10, Price: decimal.RequireFromString("90.5")},
	}

	data := encodePriceTiers(tiers)
	assert.JSONEq(t, `[{"minQuantity":1,"price":"100"},{"minQuantity":10,"price":"90.5"}]`, string(data))

	got, err := decodePriceTiers(data)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, 10, got[1].MinQuantity)
	assert.True(t, got[1].Price.Equal(decimal.RequireFromString("90.5")))
}

func TestEncodeTiersEmpty(t *testing.T) {
	assert.Equal(t, "[]", string(encodeDiscountTiers(nil)))
}

func TestPolicyColumns(t *testing.T) {
	tests := []struct {
		name      string
		policy    pricing.DiscountPolicy
		wantType  pricing.DiscountType
		wantValue string
		wantTiers string
	}{
		{
			name:      "percentage",
			policy:    pricing.PercentageDiscount{Percent: decimal.RequireFromString("10")},
			wantType:  pricing.DiscountPercentage,
			wantValue: "10",
			wantTiers: "[]",
		},
		{
			name:      "fixed",
			policy:    pricing.FixedDiscount{Amount: decimal.RequireFromString("25")},
			wantType:  pricing.DiscountFixed,
			wantValue: "25",
			wantTiers: "[]",
		},
		{
			name: "tiered",
			policy: pricing.TieredDiscount{Tiers: []pricing.DiscountTier{
				{MinQuantity: 10, Value: decimal.RequireFromString("5")},
			}},
			wantType:  pricing.DiscountTiered,
			wantValue: "0",
			wantTiers: `[{"minQuantity":10,"discountValue":"5"}]`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			typ, value, tiers := policyColumns(tt.policy)
			assert.Equal(t, tt.wantType, typ)
			assert.Equal(t, tt.wantValue, value.String())
			assert.JSONEq(t, tt.wantTiers, string(tiers))
		})
	}
}
