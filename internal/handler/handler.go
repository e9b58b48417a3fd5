// Package handler exposes the pricing service over HTTP.
package handler

import (
	"context"
	"fmt"
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/b2b-pricing/internal/domain/pricing"
)

// Pricer calculates prices. Implemented by *pricing.Service.
type Pricer interface {
	CalculatePrice(ctx context.Context, req pricing.Request) (*pricing.Result, error)
}

// GroupReader returns pricing groups by id.
type GroupReader interface {
	PricingGroup(ctx context.Context, groupID string) (*pricing.PricingGroup, error)
}

var _ Pricer = (*pricing.Service)(nil)

// Config holds non-dependency configuration for the Handler.
type Config struct {
	// MaxBatchItems caps the number of items in a batch request.
	MaxBatchItems int
	// BatchConcurrency bounds the calculations running at once per batch.
	BatchConcurrency int
	// MaxBodyBytes caps request bodies.
	MaxBodyBytes int64
}

const (
	defaultMaxBatchItems    = 100
	defaultBatchConcurrency = 8
	defaultMaxBodyBytes     = 1 << 20
)

// Handler serves the pricing API.
type Handler struct {
	pricer   Pricer
	products pricing.ProductLookup
	groups   GroupReader

	maxBatchItems    int
	batchConcurrency int
	maxBodyBytes     int64
}

// New returns a Handler. products resolves base prices omitted by callers.
func New(cfg Config, pricer Pricer, products pricing.ProductLookup, groups GroupReader) *Handler {
	h := &Handler{
		pricer:           pricer,
		products:         products,
		groups:           groups,
		maxBatchItems:    cfg.MaxBatchItems,
		batchConcurrency: cfg.BatchConcurrency,
		maxBodyBytes:     cfg.MaxBodyBytes,
	}
	if h.maxBatchItems <= 0 {
		h.maxBatchItems = defaultMaxBatchItems
	}
	if h.batchConcurrency <= 0 {
		h.batchConcurrency = defaultBatchConcurrency
	}
	if h.maxBodyBytes <= 0 {
		h.maxBodyBytes = defaultMaxBodyBytes
	}
	return h
}

// Register mounts the API routes on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/prices", h.CalculatePrice)
	mux.HandleFunc("POST /api/prices/batch", h.CalculateBatch)
	mux.HandleFunc("GET /api/pricing-groups/{id}", h.GetPricingGroup)
}

// badRequestError reports a malformed request body.
type badRequestError struct {
	msg string
}

func (e *badRequestError) Error() string { return e.msg }

func badRequest(format string, args ...any) error {
	return &badRequestError{msg: fmt.Sprintf(format, args...)}
}

// ProductNotFoundError is returned when no base price was given and the
// product is unknown.
type ProductNotFoundError struct {
	ProductID string
}

func (e *ProductNotFoundError) Error() string {
	return "product " + e.ProductID + " not found"
}

func (e *ProductNotFoundError) Is(target error) bool {
	return target == pricing.ErrNotFound
}

// errorStatus maps an error to its HTTP status and client-facing message.
func errorStatus(err error) (int, string) {
	var (
		badReq      *badRequestError
		invalidQty  *pricing.InvalidQuantityError
		notFound    *ProductNotFoundError
		groupAbsent *groupNotFoundError
	)
	switch {
	case errors.As(err, &badReq):
		return http.StatusBadRequest, badReq.msg
	case errors.As(err, &invalidQty):
		return http.StatusUnprocessableEntity, invalidQty.Error()
	case errors.As(err, &notFound):
		return http.StatusNotFound, notFound.Error()
	case errors.As(err, &groupAbsent):
		return http.StatusNotFound, groupAbsent.Error()
	case errors.Is(err, pricing.ErrRuleLookupFailed):
		return http.StatusServiceUnavailable, "pricing rules unavailable"
	default:
		return http.StatusInternalServerError, "internal error"
	}
}

func (h *Handler) writeError(ctx context.Context, w http.ResponseWriter, err error) {
	status, msg := errorStatus(err)
	lg := zctx.From(ctx)
	switch {
	case status >= http.StatusInternalServerError:
		lg.Error("Request failed", zap.Int("status", status), zap.Error(err))
	default:
		lg.Debug("Request rejected", zap.Int("status", status), zap.Error(err))
	}
	writeJSON(w, status, encodeError(status, msg))
}

func writeJSON(w http.ResponseWriter, status int, body []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}
