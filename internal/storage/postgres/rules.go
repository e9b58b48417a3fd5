package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/xenking/b2b-pricing/internal/domain/pricing"
)

const (
	selectGroupColumns = `g.id, g.name, g.description, g.discount_type, g.discount_value, g.tiers,
		g.min_order_amount, g.is_active, g.updated_at,
		COALESCE((SELECT array_agg(m.customer_id ORDER BY m.customer_id)
			FROM pricing_group_customers m WHERE m.group_id = g.id), '{}')`

	getPricingGroupSQL = `SELECT ` + selectGroupColumns + `
		FROM pricing_groups g WHERE g.id = $1`

	getCustomerGroupsSQL = `SELECT ` + selectGroupColumns + `
		FROM pricing_groups g
		JOIN pricing_group_customers c ON c.group_id = g.id
		WHERE c.customer_id = $1 AND g.is_active
		ORDER BY g.id`

	listProductPricesSQL = `SELECT id, product_id, customer_id, pricing_group_id, price, tiered_pricing,
		valid_from, valid_to, updated_at
		FROM product_prices WHERE product_id = $1
		ORDER BY id`

	upsertPricingGroupSQL = `INSERT INTO pricing_groups
		(id, name, description, discount_type, discount_value, tiers, min_order_amount, is_active, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			description = EXCLUDED.description,
			discount_type = EXCLUDED.discount_type,
			discount_value = EXCLUDED.discount_value,
			tiers = EXCLUDED.tiers,
			min_order_amount = EXCLUDED.min_order_amount,
			is_active = EXCLUDED.is_active,
			updated_at = EXCLUDED.updated_at`

	deleteGroupMembersSQL = `DELETE FROM pricing_group_customers WHERE group_id = $1`

	insertGroupMemberSQL = `INSERT INTO pricing_group_customers (group_id, customer_id)
		VALUES ($1, $2) ON CONFLICT DO NOTHING`

	upsertProductPriceSQL = `INSERT INTO product_prices
		(id, product_id, customer_id, pricing_group_id, price, tiered_pricing, valid_from, valid_to, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE SET
			product_id = EXCLUDED.product_id,
			customer_id = EXCLUDED.customer_id,
			pricing_group_id = EXCLUDED.pricing_group_id,
			price = EXCLUDED.price,
			tiered_pricing = EXCLUDED.tiered_pricing,
			valid_from = EXCLUDED.valid_from,
			valid_to = EXCLUDED.valid_to,
			updated_at = EXCLUDED.updated_at`
)

var _ pricing.RuleStore = (*RuleRepository)(nil)

// RuleRepository implements pricing.RuleStore backed by PostgreSQL.
type RuleRepository struct {
	pool *pgxpool.Pool
}

// NewRuleRepository returns a RuleRepository that uses the given pool.
func NewRuleRepository(pool *pgxpool.Pool) *RuleRepository {
	return &RuleRepository{pool: pool}
}

// ProductPriceOverrides returns every override of a product, including ones
// outside their validity window.
func (r *RuleRepository) ProductPriceOverrides(ctx context.Context, productID string) ([]pricing.ProductPrice, error) {
	rows, err := r.pool.Query(ctx, listProductPricesSQL, productID)
	if err != nil {
		return nil, fmt.Errorf("listing overrides of product %q: %w", productID, err)
	}

	lg := zctx.From(ctx)
	prices, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (pricing.ProductPrice, error) {
		return scanProductPrice(lg, row)
	})
	if err != nil {
		return nil, fmt.Errorf("listing overrides of product %q: %w", productID, err)
	}
	return prices, nil
}

// PricingGroup returns a group by id, or pricing.ErrNotFound.
func (r *RuleRepository) PricingGroup(ctx context.Context, groupID string) (*pricing.PricingGroup, error) {
	rows, err := r.pool.Query(ctx, getPricingGroupSQL, groupID)
	if err != nil {
		return nil, fmt.Errorf("getting pricing group %q: %w", groupID, err)
	}

	lg := zctx.From(ctx)
	g, err := pgx.CollectExactlyOneRow(rows, func(row pgx.CollectableRow) (pricing.PricingGroup, error) {
		return scanPricingGroup(lg, row)
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, pricing.ErrNotFound
		}
		return nil, fmt.Errorf("getting pricing group %q: %w", groupID, err)
	}
	return &g, nil
}

// CustomerGroup returns the active group the customer belongs to, or
// pricing.ErrNotFound. Conflicting memberships are resolved by
// pricing.SelectMembership.
func (r *RuleRepository) CustomerGroup(ctx context.Context, customerID string) (*pricing.PricingGroup, error) {
	rows, err := r.pool.Query(ctx, getCustomerGroupsSQL, customerID)
	if err != nil {
		return nil, fmt.Errorf("getting group of customer %q: %w", customerID, err)
	}

	lg := zctx.From(ctx)
	groups, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (pricing.PricingGroup, error) {
		return scanPricingGroup(lg, row)
	})
	if err != nil {
		return nil, fmt.Errorf("getting group of customer %q: %w", customerID, err)
	}
	return pricing.SelectMembership(lg, customerID, groups)
}

// UpsertPricingGroup inserts or replaces a group and its membership list in
// a single transaction.
func (r *RuleRepository) UpsertPricingGroup(ctx context.Context, g pricing.PricingGroup) error {
	if g.Policy == nil {
		return errors.Errorf("pricing group %q has no discount policy", g.ID)
	}
	typ, value, tiers := policyColumns(g.Policy)

	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, upsertPricingGroupSQL,
			g.ID, g.Name, g.Description, string(typ), value, tiers,
			g.MinOrderAmount, g.Active, updatedAt(g.UpdatedAt),
		); err != nil {
			return fmt.Errorf("upserting pricing group %q: %w", g.ID, err)
		}
		if _, err := tx.Exec(ctx, deleteGroupMembersSQL, g.ID); err != nil {
			return fmt.Errorf("clearing members of pricing group %q: %w", g.ID, err)
		}
		for _, customerID := range g.CustomerIDs {
			if _, err := tx.Exec(ctx, insertGroupMemberSQL, g.ID, customerID); err != nil {
				return fmt.Errorf("adding customer %q to pricing group %q: %w", customerID, g.ID, err)
			}
		}
		return nil
	})
}

// UpsertProductPrice inserts or replaces an override record.
func (r *RuleRepository) UpsertProductPrice(ctx context.Context, p pricing.ProductPrice) error {
	_, err := r.pool.Exec(ctx, upsertProductPriceSQL,
		p.ID, p.ProductID, nullString(p.CustomerID), nullString(p.PricingGroupID),
		p.Price, encodePriceTiers(p.Tiers), p.ValidFrom, p.ValidTo, updatedAt(p.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("upserting product price %q: %w", p.ID, err)
	}
	return nil
}

func policyColumns(p pricing.DiscountPolicy) (pricing.DiscountType, decimal.Decimal, []byte) {
	switch p := p.(type) {
	case pricing.PercentageDiscount:
		return p.Type(), p.Percent, encodeDiscountTiers(nil)
	case pricing.FixedDiscount:
		return p.Type(), p.Amount, encodeDiscountTiers(nil)
	case pricing.TieredDiscount:
		return p.Type(), decimal.Zero, encodeDiscountTiers(p.Tiers)
	default:
		return p.Type(), decimal.Zero, encodeDiscountTiers(nil)
	}
}

func updatedAt(t time.Time) time.Time {
	if t.IsZero() {
		return time.Now()
	}
	return t
}

// scanPricingGroup maps a group row. An unknown discount type or malformed
// tiers leave the group without a policy instead of failing the read.
func scanPricingGroup(lg *zap.Logger, row pgx.CollectableRow) (pricing.PricingGroup, error) {
	var (
		g            pricing.PricingGroup
		discountType string
		value        decimal.Decimal
		tiersJSON    []byte
	)
	if err := row.Scan(
		&g.ID, &g.Name, &g.Description, &discountType, &value, &tiersJSON,
		&g.MinOrderAmount, &g.Active, &g.UpdatedAt, &g.CustomerIDs,
	); err != nil {
		return pricing.PricingGroup{}, err
	}

	tiers, err := decodeDiscountTiers(tiersJSON)
	if err != nil {
		lg.Warn("Malformed pricing group tiers, group grants no discount",
			zap.String("pricing_group_id", g.ID),
			zap.Error(err),
		)
		return g, nil
	}

	policy, err := pricing.NewPolicy(pricing.DiscountType(discountType), value, tiers)
	if err != nil {
		lg.Warn("Unknown pricing group discount type, group grants no discount",
			zap.String("pricing_group_id", g.ID),
			zap.String("discount_type", discountType),
		)
		return g, nil
	}
	g.Policy = policy
	return g, nil
}

// scanProductPrice maps an override row. Malformed tiers are dropped so the
// flat price still applies.
func scanProductPrice(lg *zap.Logger, row pgx.CollectableRow) (pricing.ProductPrice, error) {
	var (
		p              pricing.ProductPrice
		customerID     *string
		pricingGroupID *string
		tiersJSON      []byte
	)
	if err := row.Scan(
		&p.ID, &p.ProductID, &customerID, &pricingGroupID, &p.Price, &tiersJSON,
		&p.ValidFrom, &p.ValidTo, &p.UpdatedAt,
	); err != nil {
		return pricing.ProductPrice{}, err
	}
	p.CustomerID = derefString(customerID)
	p.PricingGroupID = derefString(pricingGroupID)

	tiers, err := decodePriceTiers(tiersJSON)
	if err != nil {
		lg.Warn("Malformed override tiers, using flat price",
			zap.String("override_id", p.ID),
			zap.Error(err),
		)
		return p, nil
	}
	p.Tiers = tiers
	return p, nil
}
