package pricing

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// DefaultCacheTTL is used when WithCache is given a non-positive TTL.
const DefaultCacheTTL = 30 * time.Second

// Option configures a Service.
type Option func(*Service)

// WithCache enables result memoization. A nil cache disables it.
func WithCache(cache ResultCache, ttl time.Duration) Option {
	return func(s *Service) {
		if ttl <= 0 {
			ttl = DefaultCacheTTL
		}
		s.cache = cache
		s.ttl = ttl
	}
}

// WithMeterProvider sets the provider for resolution and cache counters.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(s *Service) {
		s.meterProvider = mp
	}
}

// Service calculates prices from the rules held in a RuleStore.
//
// Concurrent calls share nothing but the cache. Calls for the same key may
// race; the cache keeps whichever result is written last, and both are
// identical.
type Service struct {
	store RuleStore
	cache ResultCache
	ttl   time.Duration
	now   func() time.Time

	meterProvider metric.MeterProvider
	resolutions   metric.Int64Counter
	cacheLookups  metric.Int64Counter
}

// NewService creates a Service reading rules from store.
func NewService(store RuleStore, opts ...Option) (*Service, error) {
	s := &Service{
		store:         store,
		now:           time.Now,
		meterProvider: noop.NewMeterProvider(),
	}
	for _, opt := range opts {
		opt(s)
	}

	meter := s.meterProvider.Meter("pricing")
	var err error
	if s.resolutions, err = meter.Int64Counter("pricing.resolutions",
		metric.WithDescription("Price resolutions by the precedence level that produced the result"),
	); err != nil {
		return nil, errors.Wrap(err, "create resolutions counter")
	}
	if s.cacheLookups, err = meter.Int64Counter("pricing.cache.lookups",
		metric.WithDescription("Price cache lookups by outcome"),
	); err != nil {
		return nil, errors.Wrap(err, "create cache lookups counter")
	}

	return s, nil
}

// CalculatePrice returns the effective unit price for req.
//
// It returns an error matching ErrInvalidQuantity when req.Quantity is below
// 1, and one matching ErrRuleLookupFailed when the rule store cannot be read.
// Missing customers, groups and overrides are not errors: the base price is
// returned instead.
func (s *Service) CalculatePrice(ctx context.Context, req Request) (*Result, error) {
	if req.Quantity < 1 {
		return nil, &InvalidQuantityError{ProductID: req.ProductID, Quantity: req.Quantity}
	}

	lg := zctx.From(ctx)
	key := KeyFor(req)

	if s.cache != nil {
		cached, ok, err := s.cache.Get(ctx, key)
		switch {
		case err != nil:
			lg.Warn("Price cache get failed", zap.Stringer("key", key), zap.Error(err))
			s.countCacheLookup(ctx, "error")
		case ok:
			s.countCacheLookup(ctx, "hit")
			return cached, nil
		default:
			s.countCacheLookup(ctx, "miss")
		}
	}

	res, level, err := s.resolve(ctx, lg, req)
	if err != nil {
		return nil, err
	}
	s.resolutions.Add(ctx, 1, metric.WithAttributes(attribute.String("level", string(level))))

	if s.cache != nil {
		if err := s.cache.Put(ctx, key, res, s.ttl); err != nil {
			lg.Warn("Price cache put failed", zap.Stringer("key", key), zap.Error(err))
		}
	}

	return &res, nil
}

// resolve reads the candidate rules and applies the precedence algorithm.
// Without a customer no rule can bind, so the store is not consulted.
func (s *Service) resolve(ctx context.Context, lg *zap.Logger, req Request) (Result, Level, error) {
	if req.CustomerID == "" {
		res, level := Resolve(lg, req, nil, nil, s.now())
		return res, level, nil
	}

	var (
		overrides []ProductPrice
		group     *PricingGroup
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		o, err := s.store.ProductPriceOverrides(gctx, req.ProductID)
		if err != nil && !errors.Is(err, ErrNotFound) {
			return &RuleLookupError{Op: "product price overrides", Err: err}
		}
		overrides = o
		return nil
	})
	g.Go(func() error {
		grp, err := s.store.CustomerGroup(gctx, req.CustomerID)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return nil
			}
			return &RuleLookupError{Op: "customer group", Err: err}
		}
		group = grp
		return nil
	})
	if err := g.Wait(); err != nil {
		return Result{}, "", err
	}

	lg.Debug("Resolving price",
		zap.String("product_id", req.ProductID),
		zap.String("customer_id", req.CustomerID),
		zap.Int("overrides", len(overrides)),
		zap.Bool("has_group", group != nil),
	)

	res, level := Resolve(lg, req, overrides, group, s.now())
	return res, level, nil
}

func (s *Service) countCacheLookup(ctx context.Context, outcome string) {
	s.cacheLookups.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}
