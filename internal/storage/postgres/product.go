package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/xenking/b2b-pricing/internal/domain/pricing"
)

const (
	getProductPriceSQL = `SELECT price FROM products WHERE id = $1`

	upsertProductSQL = `INSERT INTO products (id, name, price, updated_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, price = EXCLUDED.price, updated_at = now()`
)

var _ pricing.ProductLookup = (*ProductRepository)(nil)

// ProductRepository reads list prices from the products table.
type ProductRepository struct {
	pool *pgxpool.Pool
}

// NewProductRepository returns a ProductRepository that uses the given pool.
func NewProductRepository(pool *pgxpool.Pool) *ProductRepository {
	return &ProductRepository{pool: pool}
}

// BasePrice returns the list price of a product, or pricing.ErrNotFound.
func (r *ProductRepository) BasePrice(ctx context.Context, productID string) (decimal.Decimal, error) {
	var price decimal.Decimal
	err := r.pool.QueryRow(ctx, getProductPriceSQL, productID).Scan(&price)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return decimal.Decimal{}, pricing.ErrNotFound
		}
		return decimal.Decimal{}, fmt.Errorf("getting price of product %q: %w", productID, err)
	}
	return price, nil
}

// UpsertProduct inserts or replaces a product's name and list price.
func (r *ProductRepository) UpsertProduct(ctx context.Context, id, name string, price decimal.Decimal) error {
	if _, err := r.pool.Exec(ctx, upsertProductSQL, id, name, price); err != nil {
		return fmt.Errorf("upserting product %q: %w", id, err)
	}
	return nil
}
