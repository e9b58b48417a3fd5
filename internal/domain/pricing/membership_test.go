package pricing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestSelectMembership(t *testing.T) {
	tests := []struct {
		name    string
		groups  []PricingGroup
		wantID  string
		wantErr error
	}{
		{
			name:    "no groups",
			wantErr: ErrNotFound,
		},
		{
			name:   "single active group",
			groups: []PricingGroup{{ID: "wholesale", Active: true}},
			wantID: "wholesale",
		},
		{
			name:    "only inactive groups",
			groups:  []PricingGroup{{ID: "old", Active: false}},
			wantErr: ErrNotFound,
		},
		{
			name: "conflicting groups pick smallest id",
			groups: []PricingGroup{
				{ID: "retail", Active: true},
				{ID: "distributor", Active: true},
				{ID: "agency", Active: false},
			},
			wantID: "distributor",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := SelectMembership(zap.NewNop(), "c1", tt.groups)

			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, got)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.wantID, got.ID)
		})
	}
}

func TestCacheKey_String(t *testing.T) {
	assert.Equal(t, "price:2:p1:2:c1:3:9.5", CacheKey{ProductID: "p1", CustomerID: "c1", Quantity: 3, BasePrice: d("9.5")}.String())
	assert.Equal(t, "price:2:p1:0::1:100", KeyFor(Request{ProductID: "p1", Quantity: 1, BasePrice: d("100")}).String())
}

func TestCacheKey_Distinct(t *testing.T) {
	tests := []struct {
		name string
		a, b Request
	}{
		{
			name: "separator moved between ids",
			a:    Request{ProductID: "sku:1", CustomerID: "c1", Quantity: 1, BasePrice: d("500")},
			b:    Request{ProductID: "sku", CustomerID: "1:c1", Quantity: 1, BasePrice: d("500")},
		},
		{
			name: "customer named anonymous",
			a:    Request{ProductID: "p1", Quantity: 1, BasePrice: d("500")},
			b:    Request{ProductID: "p1", CustomerID: "anonymous", Quantity: 1, BasePrice: d("500")},
		},
		{
			name: "customer id mimics quantity",
			a:    Request{ProductID: "p1", CustomerID: "c1:2", Quantity: 1, BasePrice: d("500")},
			b:    Request{ProductID: "p1", CustomerID: "c1", Quantity: 2, BasePrice: d("500")},
		},
		{
			name: "empty customer against zero-length prefix",
			a:    Request{ProductID: "p1", Quantity: 1, BasePrice: d("500")},
			b:    Request{ProductID: "p1", CustomerID: "0:", Quantity: 1, BasePrice: d("500")},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.NotEqual(t, KeyFor(tt.a).String(), KeyFor(tt.b).String())
		})
	}
}
