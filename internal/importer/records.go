// Package importer loads pricing data into the rule store, either from a YAML
// fixture or from NDJSON exports of the document store the rules originate in.
package importer

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/b2b-pricing/internal/domain/pricing"
	"github.com/xenking/b2b-pricing/internal/validate"
)

// Writer persists imported records. Implemented by the postgres repositories.
type Writer interface {
	UpsertProduct(ctx context.Context, id, name string, price decimal.Decimal) error
	UpsertPricingGroup(ctx context.Context, g pricing.PricingGroup) error
	UpsertProductPrice(ctx context.Context, p pricing.ProductPrice) error
}

// Product is a catalog entry with its list price.
type Product struct {
	ID    string          `yaml:"id" validate:"required"`
	Name  string          `yaml:"name"`
	Price decimal.Decimal `yaml:"price"`
}

// Validate checks the record before it is written.
func (p *Product) Validate() error {
	if err := validate.Struct(p); err != nil {
		return err
	}
	if p.Price.IsNegative() {
		return errors.New("price: must not be negative")
	}
	return nil
}

// DiscountTier is a quantity breakpoint of a tiered group discount.
type DiscountTier struct {
	MinQuantity int             `yaml:"minQuantity" validate:"min=1"`
	Value       decimal.Decimal `yaml:"discountValue"`
}

// PricingGroup is a customer segment with its discount policy and members.
type PricingGroup struct {
	ID             string           `yaml:"id" validate:"required"`
	Name           string           `yaml:"name"`
	Description    string           `yaml:"description"`
	DiscountType   string           `yaml:"discountType" validate:"oneof=percentage fixed tiered"`
	DiscountValue  decimal.Decimal  `yaml:"discountValue"`
	Tiers          []DiscountTier   `yaml:"tiers" validate:"dive"`
	MinOrderAmount *decimal.Decimal `yaml:"minOrderAmount"`
	CustomerIDs    []string         `yaml:"customerIds" validate:"dive,required"`
	// Active defaults to true when absent.
	Active    *bool     `yaml:"isActive"`
	UpdatedAt time.Time `yaml:"updatedAt"`
}

// Validate checks the record before it is written.
func (g *PricingGroup) Validate() error {
	if err := validate.Struct(g); err != nil {
		return err
	}
	if g.DiscountValue.IsNegative() {
		return errors.New("discountValue: must not be negative")
	}
	if g.DiscountType == string(pricing.DiscountTiered) && len(g.Tiers) == 0 {
		return errors.New("tiers: tiered discount needs at least one tier")
	}
	return nil
}

// Domain converts the record into a pricing.PricingGroup.
func (g *PricingGroup) Domain() (pricing.PricingGroup, error) {
	tiers := make([]pricing.DiscountTier, len(g.Tiers))
	for i, t := range g.Tiers {
		tiers[i] = pricing.DiscountTier{MinQuantity: t.MinQuantity, Value: t.Value}
	}
	policy, err := pricing.NewPolicy(pricing.DiscountType(g.DiscountType), g.DiscountValue, tiers)
	if err != nil {
		return pricing.PricingGroup{}, err
	}

	out := pricing.PricingGroup{
		ID:          g.ID,
		Name:        g.Name,
		Description: g.Description,
		Policy:      policy,
		CustomerIDs: g.CustomerIDs,
		Active:      g.Active == nil || *g.Active,
		UpdatedAt:   g.UpdatedAt,
	}
	if g.MinOrderAmount != nil {
		out.MinOrderAmount = decimal.NewNullDecimal(*g.MinOrderAmount)
	}
	return out, nil
}

// PriceTier is a quantity breakpoint of a product price.
type PriceTier struct {
	MinQuantity int             `yaml:"minQuantity" validate:"min=1"`
	Price       decimal.Decimal `yaml:"price"`
}

// ProductPrice is a price pinned to a product for a customer or a group.
type ProductPrice struct {
	ID             string          `yaml:"id" validate:"required"`
	ProductID      string          `yaml:"productId" validate:"required"`
	CustomerID     string          `yaml:"customerId"`
	PricingGroupID string          `yaml:"pricingGroupId" validate:"required_without=CustomerID"`
	Price          decimal.Decimal `yaml:"price"`
	Tiers          []PriceTier     `yaml:"tieredPricing" validate:"dive"`
	ValidFrom      *time.Time      `yaml:"validFrom"`
	ValidTo        *time.Time      `yaml:"validTo"`
	UpdatedAt      time.Time       `yaml:"updatedAt"`
}

// Validate checks the record before it is written.
func (p *ProductPrice) Validate() error {
	if err := validate.Struct(p); err != nil {
		return err
	}
	if p.Price.IsNegative() {
		return errors.New("price: must not be negative")
	}
	if p.ValidFrom != nil && p.ValidTo != nil && p.ValidTo.Before(*p.ValidFrom) {
		return errors.New("validTo: must not be before validFrom")
	}
	return nil
}

// Domain converts the record into a pricing.ProductPrice.
func (p *ProductPrice) Domain() pricing.ProductPrice {
	tiers := make([]pricing.PriceTier, len(p.Tiers))
	for i, t := range p.Tiers {
		tiers[i] = pricing.PriceTier{MinQuantity: t.MinQuantity, Price: t.Price}
	}
	return pricing.ProductPrice{
		ID:             p.ID,
		ProductID:      p.ProductID,
		CustomerID:     p.CustomerID,
		PricingGroupID: p.PricingGroupID,
		Price:          p.Price,
		Tiers:          tiers,
		ValidFrom:      p.ValidFrom,
		ValidTo:        p.ValidTo,
		UpdatedAt:      p.UpdatedAt,
	}
}
