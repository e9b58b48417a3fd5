package validate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type tier struct {
	MinQuantity int `yaml:"minQuantity" validate:"min=1"`
}

type group struct {
	ID           string `yaml:"id" validate:"required"`
	DiscountType string `yaml:"discountType" validate:"oneof=percentage fixed tiered"`
	Tiers        []tier `yaml:"tiers" validate:"dive"`
	Internal     string `validate:"max=3"`
}

func TestStruct(t *testing.T) {
	tests := []struct {
		name    string
		input   group
		wantErr string
	}{
		{
			name:  "valid",
			input: group{ID: "g1", DiscountType: "fixed"},
		},
		{
			name:    "missing id",
			input:   group{DiscountType: "fixed"},
			wantErr: "id: is required",
		},
		{
			name:    "several failures",
			input:   group{ID: "g1", DiscountType: "bogo", Tiers: []tier{{MinQuantity: 0}}, Internal: "toolong"},
			wantErr: "discountType: must be one of [percentage fixed tiered]; tiers[0].minQuantity: must be at least 1; Internal: must be at most 3",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Struct(tt.input)
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Equal(t, tt.wantErr, err.Error())
		})
	}
}
