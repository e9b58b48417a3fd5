package pricing

import (
	"go.uber.org/zap"
)

// SelectMembership picks the pricing group of a customer from the groups
// claiming it. Inactive groups are ignored. When several active groups claim
// the same customer the one with the smallest id is returned and the conflict
// is logged. It returns ErrNotFound when no active group remains.
func SelectMembership(lg *zap.Logger, customerID string, groups []PricingGroup) (*PricingGroup, error) {
	var (
		selected *PricingGroup
		ids      []string
	)
	for i := range groups {
		g := &groups[i]
		if !g.Active {
			continue
		}
		ids = append(ids, g.ID)
		if selected == nil || g.ID < selected.ID {
			selected = g
		}
	}

	if selected == nil {
		return nil, ErrNotFound
	}
	if len(ids) > 1 {
		lg.Warn("Customer claimed by multiple active pricing groups",
			zap.String("customer_id", customerID),
			zap.Strings("group_ids", ids),
			zap.String("selected", selected.ID),
		)
	}
	return selected, nil
}
