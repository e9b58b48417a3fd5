// Package pricing resolves the effective unit price of a product for a
// customer from product price overrides and pricing group discount policies.
package pricing

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// PricingGroup is a named customer segment with a discount policy.
type PricingGroup struct {
	ID          string
	Name        string
	Description string
	// Policy is nil when the stored discount type is not recognised.
	Policy DiscountPolicy
	// MinOrderAmount is checked by callers that have cart context.
	MinOrderAmount decimal.NullDecimal
	CustomerIDs    []string
	Active         bool
	UpdatedAt      time.Time
}

// Label returns the display name of the group, falling back to its id.
func (g *PricingGroup) Label() string {
	if g.Name != "" {
		return g.Name
	}
	return g.ID
}

// PriceTier is a quantity breakpoint of an override record.
type PriceTier struct {
	MinQuantity int
	Price       decimal.Decimal
}

// ProductPrice is a price pinned to a product for a customer or a pricing group.
type ProductPrice struct {
	ID             string
	ProductID      string
	CustomerID     string
	PricingGroupID string
	Price          decimal.Decimal
	Tiers          []PriceTier
	ValidFrom      *time.Time
	ValidTo        *time.Time
	UpdatedAt      time.Time
}

// ValidAt reports whether now falls within [ValidFrom, ValidTo].
func (p *ProductPrice) ValidAt(now time.Time) bool {
	if p.ValidFrom != nil && now.Before(*p.ValidFrom) {
		return false
	}
	if p.ValidTo != nil && now.After(*p.ValidTo) {
		return false
	}
	return true
}

// Request is the input of a price calculation. BasePrice is supplied by the
// caller rather than re-read from the catalog.
type Request struct {
	ProductID  string
	CustomerID string
	Quantity   int
	BasePrice  decimal.Decimal
}

// Result is the price breakdown of a calculation. AppliedRule is empty when
// the base price was returned unchanged.
type Result struct {
	Price              decimal.Decimal
	OriginalPrice      decimal.Decimal
	DiscountAmount     decimal.Decimal
	DiscountPercentage decimal.Decimal
	AppliedRule        string
}

// RuleStore provides read access to pricing groups and product overrides.
// Missing records are reported with ErrNotFound; any other error means the
// store could not be reached.
type RuleStore interface {
	ProductPriceOverrides(ctx context.Context, productID string) ([]ProductPrice, error)
	PricingGroup(ctx context.Context, groupID string) (*PricingGroup, error)
	CustomerGroup(ctx context.Context, customerID string) (*PricingGroup, error)
}

// ProductLookup returns the list price of a product.
type ProductLookup interface {
	BasePrice(ctx context.Context, productID string) (decimal.Decimal, error)
}
