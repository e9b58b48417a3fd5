package handler

import (
	"context"
	"io"
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/b2b-pricing/internal/domain/pricing"
)

// CalculatePrice serves POST /api/prices.
func (h *Handler) CalculatePrice(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	body, err := h.readBody(w, r)
	if err != nil {
		h.writeError(ctx, w, err)
		return
	}
	item, err := decodePriceRequest(body)
	if err != nil {
		h.writeError(ctx, w, err)
		return
	}

	res, err := h.calculate(ctx, item)
	if err != nil {
		h.writeError(ctx, w, err)
		return
	}
	writeJSON(w, http.StatusOK, encodeResult(*res))
}

// CalculateBatch serves POST /api/prices/batch. Items are priced
// concurrently and fail independently: a failed item carries its error in
// place of a price.
func (h *Handler) CalculateBatch(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	body, err := h.readBody(w, r)
	if err != nil {
		h.writeError(ctx, w, err)
		return
	}
	items, err := decodeBatchRequest(body)
	if err != nil {
		h.writeError(ctx, w, err)
		return
	}
	if len(items) > h.maxBatchItems {
		h.writeError(ctx, w, badRequest("batch has %d items, limit is %d", len(items), h.maxBatchItems))
		return
	}

	results := make([]batchResult, len(items))
	var g errgroup.Group
	g.SetLimit(h.batchConcurrency)
	for i, item := range items {
		g.Go(func() error {
			res, err := h.calculate(ctx, item)
			results[i] = batchResult{item: item, result: res, err: err}
			return nil
		})
	}
	_ = g.Wait()

	for _, res := range results {
		if res.err == nil {
			continue
		}
		if status, _ := errorStatus(res.err); status >= http.StatusInternalServerError {
			zctx.From(ctx).Error("Batch item failed",
				zap.String("product_id", res.item.ProductID),
				zap.Int("status", status),
				zap.Error(res.err),
			)
		}
	}
	writeJSON(w, http.StatusOK, encodeBatchResponse(results))
}

// calculate fills in a missing base price from the catalog and prices item.
func (h *Handler) calculate(ctx context.Context, item priceItem) (*pricing.Result, error) {
	if item.FractionalQuantity != "" {
		return nil, &pricing.InvalidQuantityError{ProductID: item.ProductID, Raw: item.FractionalQuantity}
	}

	base := item.BasePrice
	if !base.Valid {
		price, err := h.basePrice(ctx, item.ProductID)
		if err != nil {
			return nil, err
		}
		base = decimal.NewNullDecimal(price)
	}

	return h.pricer.CalculatePrice(ctx, pricing.Request{
		ProductID:  item.ProductID,
		CustomerID: item.CustomerID,
		Quantity:   item.Quantity,
		BasePrice:  base.Decimal,
	})
}

func (h *Handler) basePrice(ctx context.Context, productID string) (decimal.Decimal, error) {
	price, err := h.products.BasePrice(ctx, productID)
	switch {
	case err == nil:
		return price, nil
	case errors.Is(err, pricing.ErrNotFound):
		return decimal.Decimal{}, &ProductNotFoundError{ProductID: productID}
	default:
		return decimal.Decimal{}, &pricing.RuleLookupError{Op: "product base price", Err: err}
	}
}

func (h *Handler) readBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.maxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, badRequest("request body exceeds %d bytes", tooLarge.Limit)
		}
		return nil, errors.Wrap(err, "read body")
	}
	return body, nil
}
