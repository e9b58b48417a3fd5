package handler

import (
	"math"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/xenking/b2b-pricing/internal/domain/pricing"
	"github.com/xenking/b2b-pricing/pkg/decimaljx"
)

// priceItem is one calculation requested over HTTP. BasePrice is invalid
// when the caller left it to the catalog.
type priceItem struct {
	ProductID  string
	CustomerID string
	Quantity   int
	BasePrice  decimal.NullDecimal
	// FractionalQuantity holds a numeric quantity that is not a whole
	// number. Such items are rejected as invalid quantities, not as
	// malformed bodies.
	FractionalQuantity string
}

type batchResult struct {
	item   priceItem
	result *pricing.Result
	err    error
}

func decodePriceRequest(body []byte) (priceItem, error) {
	var (
		item        priceItem
		hasQuantity bool
	)
	err := jx.DecodeBytes(body).Obj(func(d *jx.Decoder, key string) error {
		if key == "customerId" {
			var err error
			item.CustomerID, err = decodeOptionalStr(d)
			return errors.Wrapf(err, "decode %q", key)
		}
		ok, err := decodeItemField(d, key, &item)
		if ok {
			hasQuantity = hasQuantity || key == "quantity"
		}
		return err
	})
	if err != nil {
		return priceItem{}, badRequest("invalid request body: %v", err)
	}
	if err := validateItem(item, hasQuantity); err != nil {
		return priceItem{}, badRequest("%v", err)
	}
	return item, nil
}

func decodeBatchRequest(body []byte) ([]priceItem, error) {
	var (
		customerID string
		items      []priceItem
		present    []bool
	)
	err := jx.DecodeBytes(body).Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "customerId":
			customerID, err = decodeOptionalStr(d)
		case "items":
			err = d.Arr(func(d *jx.Decoder) error {
				var (
					item        priceItem
					hasQuantity bool
				)
				if err := d.Obj(func(d *jx.Decoder, key string) error {
					ok, err := decodeItemField(d, key, &item)
					if ok {
						hasQuantity = hasQuantity || key == "quantity"
					}
					return err
				}); err != nil {
					return err
				}
				items = append(items, item)
				present = append(present, hasQuantity)
				return nil
			})
		default:
			err = d.Skip()
		}
		return errors.Wrapf(err, "decode %q", key)
	})
	if err != nil {
		return nil, badRequest("invalid request body: %v", err)
	}
	if len(items) == 0 {
		return nil, badRequest("items must not be empty")
	}
	for i := range items {
		items[i].CustomerID = customerID
		if err := validateItem(items[i], present[i]); err != nil {
			return nil, badRequest("items[%d]: %v", i, err)
		}
	}
	return items, nil
}

// decodeItemField decodes the per-item fields shared by both request
// shapes. Unknown fields are skipped; ok reports whether key was known.
func decodeItemField(d *jx.Decoder, key string, item *priceItem) (ok bool, err error) {
	switch key {
	case "productId":
		item.ProductID, err = d.Str()
	case "quantity":
		err = decodeQuantity(d, item)
	case "basePrice":
		if d.Next() == jx.Null {
			return true, d.Null()
		}
		var v decimal.Decimal
		v, err = decimaljx.Decode(d)
		item.BasePrice = decimal.NewNullDecimal(v)
	default:
		return false, d.Skip()
	}
	return true, errors.Wrapf(err, "decode %q", key)
}

// decodeQuantity accepts any JSON number. Fractions are recorded for a 422
// later, when the product id is known; values that do not fit an int are
// malformed.
func decodeQuantity(d *jx.Decoder, item *priceItem) error {
	if tt := d.Next(); tt != jx.Number {
		return errors.Errorf("unexpected %s, want number", tt)
	}
	n, err := d.Num()
	if err != nil {
		return err
	}
	v, err := decimal.NewFromString(n.String())
	if err != nil {
		return errors.Wrapf(err, "parse %q", n.String())
	}
	if !v.IsInteger() {
		item.FractionalQuantity = n.String()
		return nil
	}
	if v.LessThan(minQuantity) || v.GreaterThan(maxQuantity) {
		return errors.Errorf("%s is out of range", n.String())
	}
	item.Quantity = int(v.IntPart())
	return nil
}

var (
	minQuantity = decimal.NewFromInt(math.MinInt32)
	maxQuantity = decimal.NewFromInt(math.MaxInt32)
)

func decodeOptionalStr(d *jx.Decoder) (string, error) {
	if d.Next() == jx.Null {
		return "", d.Null()
	}
	return d.Str()
}

func validateItem(item priceItem, hasQuantity bool) error {
	switch {
	case item.ProductID == "":
		return errors.New("productId is required")
	case !hasQuantity:
		return errors.New("quantity is required")
	}
	return nil
}

func writeResultFields(e *jx.Encoder, r pricing.Result) {
	e.FieldStart("price")
	decimaljx.EncodeNumber(e, r.Price)
	e.FieldStart("originalPrice")
	decimaljx.EncodeNumber(e, r.OriginalPrice)
	e.FieldStart("discountAmount")
	decimaljx.EncodeNumber(e, r.DiscountAmount)
	e.FieldStart("discountPercentage")
	decimaljx.EncodeNumber(e, r.DiscountPercentage)
	if r.AppliedRule != "" {
		e.FieldStart("appliedRule")
		e.Str(r.AppliedRule)
	}
}

func encodeResult(r pricing.Result) []byte {
	var e jx.Encoder
	e.ObjStart()
	writeResultFields(&e, r)
	e.ObjEnd()
	return e.Bytes()
}

func writeErrorObj(e *jx.Encoder, status int, msg string) {
	e.ObjStart()
	e.FieldStart("code")
	e.Int(status)
	e.FieldStart("message")
	e.Str(msg)
	e.ObjEnd()
}

func encodeError(status int, msg string) []byte {
	var e jx.Encoder
	writeErrorObj(&e, status, msg)
	return e.Bytes()
}

func encodeBatchResponse(results []batchResult) []byte {
	var e jx.Encoder
	e.ObjStart()
	e.FieldStart("results")
	e.ArrStart()
	for _, res := range results {
		e.ObjStart()
		e.FieldStart("productId")
		e.Str(res.item.ProductID)
		e.FieldStart("quantity")
		if res.item.FractionalQuantity != "" {
			e.Num(jx.Num(res.item.FractionalQuantity))
		} else {
			e.Int(res.item.Quantity)
		}
		if res.err != nil {
			status, msg := errorStatus(res.err)
			e.FieldStart("error")
			writeErrorObj(&e, status, msg)
		} else {
			writeResultFields(&e, *res.result)
		}
		e.ObjEnd()
	}
	e.ArrEnd()
	e.ObjEnd()
	return e.Bytes()
}
