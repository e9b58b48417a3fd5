package pricing

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// CacheKey identifies a calculation. The base price is part of the key so a
// hit never serves a result computed from a different base price.
type CacheKey struct {
	ProductID  string
	CustomerID string
	Quantity   int
	BasePrice  decimal.Decimal
}

// KeyFor returns the cache key of a request.
func KeyFor(req Request) CacheKey {
	return CacheKey{
		ProductID:  req.ProductID,
		CustomerID: req.CustomerID,
		Quantity:   req.Quantity,
		BasePrice:  req.BasePrice,
	}
}

// String renders the key as price:<len>:<product>:<len>:<customer>:<qty>:<base>.
// Ids are length-prefixed so no id can forge another key; an anonymous
// request has an empty customer segment ("0:"), which no customer id yields.
func (k CacheKey) String() string {
	var b strings.Builder
	b.WriteString("price:")
	writeSegment(&b, k.ProductID)
	writeSegment(&b, k.CustomerID)
	b.WriteString(strconv.Itoa(k.Quantity))
	b.WriteByte(':')
	b.WriteString(k.BasePrice.String())
	return b.String()
}

func writeSegment(b *strings.Builder, s string) {
	b.WriteString(strconv.Itoa(len(s)))
	b.WriteByte(':')
	b.WriteString(s)
	b.WriteByte(':')
}

// ResultCache memoizes calculation results for a short time. It is not
// authoritative: the service treats every error as a miss.
type ResultCache interface {
	// Get returns the cached result and true on a hit.
	Get(ctx context.Context, key CacheKey) (*Result, bool, error)
	Put(ctx context.Context, key CacheKey, result Result, ttl time.Duration) error
}
