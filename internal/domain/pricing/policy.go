package pricing

import (
	"fmt"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// DiscountType enumerates the pricing group discount strategies.
type DiscountType string

const (
	// DiscountPercentage takes a percentage off the base price.
	DiscountPercentage DiscountType = "percentage"
	// DiscountFixed takes a fixed amount off the base price, capped at the base price.
	DiscountFixed DiscountType = "fixed"
	// DiscountTiered takes a quantity-dependent percentage off the base price.
	DiscountTiered DiscountType = "tiered"
)

var (
	hundred = decimal.NewFromInt(100)
	zero    = decimal.Zero
)

// DiscountPolicy is the discount a pricing group grants. The set of
// implementations is closed: PercentageDiscount, FixedDiscount and
// TieredDiscount.
type DiscountPolicy interface {
	Type() DiscountType
	// discount returns the amount taken off base for the given quantity and a
	// label suffix. ok is false when the policy grants nothing at this quantity.
	discount(base decimal.Decimal, qty int) (amount decimal.Decimal, suffix string, ok bool)
}

// PercentageDiscount takes Percent (0-100) off the base price.
type PercentageDiscount struct {
	Percent decimal.Decimal
}

func (PercentageDiscount) Type() DiscountType { return DiscountPercentage }

func (p PercentageDiscount) discount(base decimal.Decimal, _ int) (decimal.Decimal, string, bool) {
	return base.Mul(p.Percent).Div(hundred), "", true
}

// FixedDiscount takes Amount off the base price.
type FixedDiscount struct {
	Amount decimal.Decimal
}

func (FixedDiscount) Type() DiscountType { return DiscountFixed }

func (f FixedDiscount) discount(_ decimal.Decimal, _ int) (decimal.Decimal, string, bool) {
	return f.Amount, "", true
}

// DiscountTier is a quantity breakpoint of a tiered policy. Value is a
// percentage of the base price.
type DiscountTier struct {
	MinQuantity int
	Value       decimal.Decimal
}

// TieredDiscount applies the percentage of the tier with the largest
// MinQuantity not exceeding the requested quantity.
type TieredDiscount struct {
	Tiers []DiscountTier
}

func (TieredDiscount) Type() DiscountType { return DiscountTiered }

func (t TieredDiscount) discount(base decimal.Decimal, qty int) (decimal.Decimal, string, bool) {
	i := selectTier(len(t.Tiers), func(i int) int { return t.Tiers[i].MinQuantity }, qty)
	if i < 0 {
		return zero, "", false
	}
	tier := t.Tiers[i]
	return base.Mul(tier.Value).Div(hundred), tierSuffix(tier.MinQuantity), true
}

// NewPolicy builds the policy for a stored discount type. Value is ignored for
// tiered policies.
func NewPolicy(typ DiscountType, value decimal.Decimal, tiers []DiscountTier) (DiscountPolicy, error) {
	switch typ {
	case DiscountPercentage:
		return PercentageDiscount{Percent: value}, nil
	case DiscountFixed:
		return FixedDiscount{Amount: value}, nil
	case DiscountTiered:
		return TieredDiscount{Tiers: tiers}, nil
	default:
		return nil, errors.Errorf("unsupported discount type: %q", typ)
	}
}

// selectTier returns the index of the tier with the largest minimum quantity
// not exceeding qty, or -1 if none qualifies. Tiers need not be sorted; among
// equal minimums the first listed wins.
func selectTier(n int, minQuantity func(i int) int, qty int) int {
	best := -1
	for i := range n {
		m := minQuantity(i)
		if m > qty {
			continue
		}
		if best < 0 || m > minQuantity(best) {
			best = i
		}
	}
	return best
}

// tiersAscending reports whether minimum quantities are strictly increasing
// and start at 1 or above.
func tiersAscending(n int, minQuantity func(i int) int) bool {
	prev := 0
	for i := range n {
		m := minQuantity(i)
		if m <= prev {
			return false
		}
		prev = m
	}
	return true
}

func tierSuffix(minQty int) string {
	return fmt.Sprintf(" (qty >= %d)", minQty)
}
