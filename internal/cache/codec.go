package cache

import (
	"github.com/go-faster/errors"
	"github.com/go-faster/jx"

	"github.com/xenking/b2b-pricing/internal/domain/pricing"
	"github.com/xenking/b2b-pricing/pkg/decimaljx"
)

// encodeResult serializes a result for external backends. Amounts are
// written as strings so no precision is lost.
func encodeResult(r pricing.Result) []byte {
	var e jx.Encoder
	e.ObjStart()
	e.FieldStart("price")
	decimaljx.EncodeString(&e, r.Price)
	e.FieldStart("originalPrice")
	decimaljx.EncodeString(&e, r.OriginalPrice)
	e.FieldStart("discountAmount")
	decimaljx.EncodeString(&e, r.DiscountAmount)
	e.FieldStart("discountPercentage")
	decimaljx.EncodeString(&e, r.DiscountPercentage)
	if r.AppliedRule != "" {
		e.FieldStart("appliedRule")
		e.Str(r.AppliedRule)
	}
	e.ObjEnd()
	return e.Bytes()
}

func decodeResult(data []byte) (pricing.Result, error) {
	var r pricing.Result
	err := jx.DecodeBytes(data).Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "price":
			r.Price, err = decimaljx.Decode(d)
		case "originalPrice":
			r.OriginalPrice, err = decimaljx.Decode(d)
		case "discountAmount":
			r.DiscountAmount, err = decimaljx.Decode(d)
		case "discountPercentage":
			r.DiscountPercentage, err = decimaljx.Decode(d)
		case "appliedRule":
			r.AppliedRule, err = d.Str()
		default:
			err = d.Skip()
		}
		return errors.Wrapf(err, "decode %q", key)
	})
	if err != nil {
		return pricing.Result{}, errors.Wrap(err, "decode cached result")
	}
	return r, nil
}
