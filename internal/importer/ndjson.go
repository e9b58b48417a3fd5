package importer

import (
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/xenking/b2b-pricing/pkg/decimaljx"
)

// Export records use the document store's extended JSON: ids may arrive as
// "_id" or {"$oid": ...}, timestamps as RFC 3339 strings, {"$date": string}
// or {"$date": millis}. Unknown fields are skipped.

func decodeProduct(d *jx.Decoder) (Product, error) {
	var p Product
	err := d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "id", "_id":
			p.ID, err = decodeID(d)
		case "name":
			p.Name, err = decodeOptStr(d)
		case "price":
			p.Price, err = decimaljx.Decode(d)
		default:
			err = d.Skip()
		}
		return errors.Wrapf(err, "decode %q", key)
	})
	return p, err
}

func decodePricingGroup(d *jx.Decoder) (PricingGroup, error) {
	var g PricingGroup
	err := d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "id", "_id":
			g.ID, err = decodeID(d)
		case "name":
			g.Name, err = decodeOptStr(d)
		case "description":
			g.Description, err = decodeOptStr(d)
		case "discountType":
			g.DiscountType, err = d.Str()
		case "discountValue":
			g.DiscountValue, err = decimaljx.Decode(d)
		case "tiers":
			err = decodeArr(d, func(d *jx.Decoder) error {
				var t DiscountTier
				err := d.Obj(func(d *jx.Decoder, key string) error {
					var err error
					switch key {
					case "minQuantity":
						t.MinQuantity, err = d.Int()
					case "discountValue":
						t.Value, err = decimaljx.Decode(d)
					default:
						err = d.Skip()
					}
					return err
				})
				g.Tiers = append(g.Tiers, t)
				return err
			})
		case "minOrderAmount":
			g.MinOrderAmount, err = decodeOptDecimal(d)
		case "customerIds":
			err = decodeArr(d, func(d *jx.Decoder) error {
				id, err := decodeID(d)
				g.CustomerIDs = append(g.CustomerIDs, id)
				return err
			})
		case "isActive":
			var active bool
			active, err = d.Bool()
			g.Active = &active
		case "updatedAt":
			var t *time.Time
			t, err = decodeTime(d)
			if t != nil {
				g.UpdatedAt = *t
			}
		default:
			err = d.Skip()
		}
		return errors.Wrapf(err, "decode %q", key)
	})
	return g, err
}

func decodeProductPrice(d *jx.Decoder) (ProductPrice, error) {
	var p ProductPrice
	err := d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "id", "_id":
			p.ID, err = decodeID(d)
		case "productId":
			p.ProductID, err = decodeID(d)
		case "customerId":
			p.CustomerID, err = decodeOptID(d)
		case "pricingGroupId":
			p.PricingGroupID, err = decodeOptID(d)
		case "price":
			p.Price, err = decimaljx.Decode(d)
		case "tieredPricing":
			err = decodeArr(d, func(d *jx.Decoder) error {
				var t PriceTier
				err := d.Obj(func(d *jx.Decoder, key string) error {
					var err error
					switch key {
					case "minQuantity":
						t.MinQuantity, err = d.Int()
					case "price":
						t.Price, err = decimaljx.Decode(d)
					default:
						err = d.Skip()
					}
					return err
				})
				p.Tiers = append(p.Tiers, t)
				return err
			})
		case "validFrom":
			p.ValidFrom, err = decodeTime(d)
		case "validTo":
			p.ValidTo, err = decodeTime(d)
		case "updatedAt":
			var t *time.Time
			t, err = decodeTime(d)
			if t != nil {
				p.UpdatedAt = *t
			}
		default:
			err = d.Skip()
		}
		return errors.Wrapf(err, "decode %q", key)
	})
	return p, err
}

// decodeArr decodes an array, treating null as empty.
func decodeArr(d *jx.Decoder, f func(d *jx.Decoder) error) error {
	if d.Next() == jx.Null {
		return d.Null()
	}
	return d.Arr(f)
}

func decodeOptStr(d *jx.Decoder) (string, error) {
	if d.Next() == jx.Null {
		return "", d.Null()
	}
	return d.Str()
}

func decodeID(d *jx.Decoder) (string, error) {
	if d.Next() != jx.Object {
		return d.Str()
	}
	var id string
	err := d.Obj(func(d *jx.Decoder, key string) error {
		if key != "$oid" {
			return d.Skip()
		}
		var err error
		id, err = d.Str()
		return err
	})
	return id, err
}

func decodeOptID(d *jx.Decoder) (string, error) {
	if d.Next() == jx.Null {
		return "", d.Null()
	}
	return decodeID(d)
}

func decodeOptDecimal(d *jx.Decoder) (*decimal.Decimal, error) {
	if d.Next() == jx.Null {
		return nil, d.Null()
	}
	v, err := decimaljx.Decode(d)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// decodeTime returns nil for null.
func decodeTime(d *jx.Decoder) (*time.Time, error) {
	switch d.Next() {
	case jx.Null:
		return nil, d.Null()
	case jx.String:
		s, err := d.Str()
		if err != nil {
			return nil, err
		}
		t, err := time.Parse(time.RFC3339Nano, s)
		if err != nil {
			return nil, err
		}
		return &t, nil
	case jx.Object:
		var t *time.Time
		err := d.Obj(func(d *jx.Decoder, key string) error {
			if key != "$date" {
				return d.Skip()
			}
			if d.Next() == jx.Number {
				ms, err := d.Int64()
				if err != nil {
					return err
				}
				v := time.UnixMilli(ms).UTC()
				t = &v
				return nil
			}
			var err error
			t, err = decodeTime(d)
			return err
		})
		return t, err
	default:
		return nil, errors.Errorf("unexpected %s, want timestamp", d.Next())
	}
}
