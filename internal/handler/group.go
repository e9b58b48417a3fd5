package handler

import (
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"

	"github.com/xenking/b2b-pricing/internal/domain/pricing"
	"github.com/xenking/b2b-pricing/pkg/decimaljx"
)

type groupNotFoundError struct {
	groupID string
}

func (e *groupNotFoundError) Error() string {
	return "pricing group " + e.groupID + " not found"
}

// GetPricingGroup serves GET /api/pricing-groups/{id}.
func (h *Handler) GetPricingGroup(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := r.PathValue("id")

	g, err := h.groups.PricingGroup(ctx, id)
	switch {
	case err == nil:
	case errors.Is(err, pricing.ErrNotFound):
		h.writeError(ctx, w, &groupNotFoundError{groupID: id})
		return
	default:
		h.writeError(ctx, w, &pricing.RuleLookupError{Op: "pricing group", Err: err})
		return
	}

	writeJSON(w, http.StatusOK, encodeGroup(g))
}

// encodeGroup renders the read-only view of a group. Membership is reported
// as a count only.
func encodeGroup(g *pricing.PricingGroup) []byte {
	var e jx.Encoder
	e.ObjStart()
	e.FieldStart("id")
	e.Str(g.ID)
	e.FieldStart("name")
	e.Str(g.Name)
	if g.Description != "" {
		e.FieldStart("description")
		e.Str(g.Description)
	}
	e.FieldStart("active")
	e.Bool(g.Active)

	switch p := g.Policy.(type) {
	case pricing.PercentageDiscount:
		e.FieldStart("discountType")
		e.Str(string(p.Type()))
		e.FieldStart("discountValue")
		decimaljx.EncodeNumber(&e, p.Percent)
	case pricing.FixedDiscount:
		e.FieldStart("discountType")
		e.Str(string(p.Type()))
		e.FieldStart("discountValue")
		decimaljx.EncodeNumber(&e, p.Amount)
	case pricing.TieredDiscount:
		e.FieldStart("discountType")
		e.Str(string(p.Type()))
		e.FieldStart("tiers")
		e.ArrStart()
		for _, t := range p.Tiers {
			e.ObjStart()
			e.FieldStart("minQuantity")
			e.Int(t.MinQuantity)
			e.FieldStart("discountValue")
			decimaljx.EncodeNumber(&e, t.Value)
			e.ObjEnd()
		}
		e.ArrEnd()
	}

	if g.MinOrderAmount.Valid {
		e.FieldStart("minOrderAmount")
		decimaljx.EncodeNumber(&e, g.MinOrderAmount.Decimal)
	}
	e.FieldStart("customerCount")
	e.Int(len(g.CustomerIDs))
	if !g.UpdatedAt.IsZero() {
		e.FieldStart("updatedAt")
		e.Str(g.UpdatedAt.UTC().Format(time.RFC3339))
	}
	e.ObjEnd()
	return e.Bytes()
}
