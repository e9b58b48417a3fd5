package postgres

import (
	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/xenking/b2b-pricing/internal/domain/pricing"
	"github.com/xenking/b2b-pricing/pkg/decimaljx"
)

// JSONB field names of tier objects, matching the document store export.
const (
	fieldMinQuantity   = "minQuantity"
	fieldDiscountValue = "discountValue"
	fieldPrice         = "price"
)

type rawTier struct {
	MinQuantity int
	Value       decimal.Decimal
}

// decodeTiers parses a JSONB array of {minQuantity, <valueField>} objects.
// Order is preserved; the resolver copes with unsorted tiers.
func decodeTiers(data []byte, valueField string) ([]rawTier, error) {
	if len(data) == 0 {
		return nil, nil
	}

	var tiers []rawTier
	d := jx.DecodeBytes(data)
	if d.Next() == jx.Null {
		return nil, d.Null()
	}
	err := d.Arr(func(d *jx.Decoder) error {
		var t rawTier
		if err := d.Obj(func(d *jx.Decoder, key string) error {
			var err error
			switch key {
			case fieldMinQuantity:
				t.MinQuantity, err = d.Int()
			case valueField:
				t.Value, err = decimaljx.Decode(d)
			default:
				err = d.Skip()
			}
			return errors.Wrapf(err, "decode %q", key)
		}); err != nil {
			return err
		}
		tiers = append(tiers, t)
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "decode tiers")
	}
	return tiers, nil
}

func encodeTiers(tiers []rawTier, valueField string) []byte {
	var e jx.Encoder
	e.ArrStart()
	for _, t := range tiers {
		e.ObjStart()
		e.FieldStart(fieldMinQuantity)
		e.Int(t.MinQuantity)
		e.FieldStart(valueField)
		decimaljx.EncodeString(&e, t.Value)
		e.ObjEnd()
	}
	e.ArrEnd()
	return e.Bytes()
}

func decodeDiscountTiers(data []byte) ([]pricing.DiscountTier, error) {
	raw, err := decodeTiers(data, fieldDiscountValue)
	if err != nil {
		return nil, err
	}
	tiers := make([]pricing.DiscountTier, len(raw))
	for i, t := range raw {
		tiers[i] = pricing.DiscountTier{MinQuantity: t.MinQuantity, Value: t.Value}
	}
	return tiers, nil
}

func encodeDiscountTiers(tiers []pricing.DiscountTier) []byte {
	raw := make([]rawTier, len(tiers))
	for i, t := range tiers {
		raw[i] = rawTier{MinQuantity: t.MinQuantity, Value: t.Value}
	}
	return encodeTiers(raw, fieldDiscountValue)
}

func decodePriceTiers(data []byte) ([]pricing.PriceTier, error) {
	raw, err := decodeTiers(data, fieldPrice)
	if err != nil {
		return nil, err
	}
	tiers := make([]pricing.PriceTier, len(raw))
	for i, t := range raw {
		tiers[i] = pricing.PriceTier{MinQuantity: t.MinQuantity, Price: t.Value}
	}
	return tiers, nil
}

func encodePriceTiers(tiers []pricing.PriceTier) []byte {
	raw := make([]rawTier, len(tiers))
	for i, t := range tiers {
		raw[i] = rawTier{MinQuantity: t.MinQuantity, Value: t.Price}
	}
	return encodeTiers(raw, fieldPrice)
}
