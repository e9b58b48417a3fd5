package pricing

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Level identifies the precedence level that produced a result.
type Level string

const (
	LevelCustomerOverride Level = "customer_override"
	LevelGroupOverride    Level = "group_override"
	LevelGroupPolicy      Level = "group_policy"
	LevelBase             Level = "base"
)

// Resolve selects at most one rule for req and computes the result. group is
// the customer's pricing group or nil. now is evaluated once by the caller so
// every validity window is checked against the same instant.
//
// Precedence: customer override, group override, group policy, base price.
// The first applicable rule wins; discounts are never combined.
func Resolve(lg *zap.Logger, req Request, overrides []ProductPrice, group *PricingGroup, now time.Time) (Result, Level) {
	base := req.BasePrice
	if base.IsNegative() {
		lg.Warn("Negative base price treated as zero",
			zap.String("product_id", req.ProductID),
			zap.Stringer("base_price", base),
		)
		base = zero
	}

	if group != nil && !group.Active {
		group = nil
	}

	var customerLevel, groupLevel []ProductPrice
	for _, o := range overrides {
		if o.ProductID != "" && o.ProductID != req.ProductID {
			continue
		}
		switch {
		case o.CustomerID != "":
			if o.CustomerID != req.CustomerID {
				continue
			}
			if o.PricingGroupID != "" {
				lg.Warn("Override bound to both customer and group, using customer binding",
					zap.String("override_id", o.ID),
					zap.String("customer_id", o.CustomerID),
					zap.String("pricing_group_id", o.PricingGroupID),
				)
			}
			customerLevel = append(customerLevel, o)
		case o.PricingGroupID != "":
			if group == nil || o.PricingGroupID != group.ID {
				continue
			}
			groupLevel = append(groupLevel, o)
		default:
			lg.Warn("Override has neither customer nor group binding", zap.String("override_id", o.ID))
		}
	}

	if o, ok := pickOverride(lg, customerLevel, now); ok {
		price, suffix := o.unitPrice(req.Quantity)
		return overrideResult(base, price, "customer price"+suffix), LevelCustomerOverride
	}

	if group == nil {
		return baseResult(base), LevelBase
	}

	if o, ok := pickOverride(lg, groupLevel, now); ok {
		price, suffix := o.unitPrice(req.Quantity)
		return overrideResult(base, price, group.Label()+" price"+suffix), LevelGroupOverride
	}

	if group.Policy != nil {
		if amount, suffix, ok := group.Policy.discount(base, req.Quantity); ok {
			return discountResult(base, amount, group.Label()+suffix), LevelGroupPolicy
		}
	}

	return baseResult(base), LevelBase
}

// pickOverride returns the currently valid override of a precedence level.
// Several valid overrides at one level is a data anomaly: the most recently
// updated record wins, ties broken by the smallest id.
func pickOverride(lg *zap.Logger, candidates []ProductPrice, now time.Time) (ProductPrice, bool) {
	valid := candidates[:0:0]
	for _, o := range candidates {
		if o.ValidAt(now) {
			valid = append(valid, o)
		}
	}
	if len(valid) == 0 {
		return ProductPrice{}, false
	}

	if len(valid) > 1 {
		sort.SliceStable(valid, func(i, j int) bool {
			if !valid[i].UpdatedAt.Equal(valid[j].UpdatedAt) {
				return valid[i].UpdatedAt.After(valid[j].UpdatedAt)
			}
			return valid[i].ID < valid[j].ID
		})
		ids := make([]string, len(valid))
		for i, o := range valid {
			ids[i] = o.ID
		}
		lg.Warn("Multiple overrides at one precedence level, using most recently updated",
			zap.String("product_id", valid[0].ProductID),
			zap.Strings("override_ids", ids),
			zap.String("selected", valid[0].ID),
		)
	}

	o := valid[0]
	if !tiersAscending(len(o.Tiers), func(i int) int { return o.Tiers[i].MinQuantity }) {
		lg.Warn("Override tiers are not strictly ascending", zap.String("override_id", o.ID))
	}
	return o, true
}

// unitPrice returns the tier price for qty, or the flat price when no tier
// qualifies.
func (p *ProductPrice) unitPrice(qty int) (decimal.Decimal, string) {
	i := selectTier(len(p.Tiers), func(i int) int { return p.Tiers[i].MinQuantity }, qty)
	if i < 0 {
		return p.Price, ""
	}
	return p.Tiers[i].Price, tierSuffix(p.Tiers[i].MinQuantity)
}

func baseResult(base decimal.Decimal) Result {
	return Result{
		Price:              base,
		OriginalPrice:      base,
		DiscountAmount:     zero,
		DiscountPercentage: zero,
	}
}

// overrideResult expresses an absolute override price as a discount off base.
// An override above the base price grants nothing.
func overrideResult(base, price decimal.Decimal, label string) Result {
	return discountResult(base, base.Sub(price), label)
}

// discountResult clamps amount to [0, base], rounds it to cents and derives
// the price and percentage from it.
func discountResult(base, amount decimal.Decimal, label string) Result {
	if amount.IsNegative() {
		amount = zero
	}
	amount = decimal.Min(amount.Round(2), base)

	pct := zero
	if base.IsPositive() {
		pct = amount.Div(base).Mul(hundred).Round(2)
	}

	return Result{
		Price:              base.Sub(amount),
		OriginalPrice:      base,
		DiscountAmount:     amount,
		DiscountPercentage: pct,
		AppliedRule:        label,
	}
}
