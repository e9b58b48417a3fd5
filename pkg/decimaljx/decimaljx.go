// Package decimaljx reads and writes shopspring decimals with go-faster/jx.
package decimaljx

import (
	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"
)

// Decode reads a decimal given either as a JSON number or a JSON string.
func Decode(d *jx.Decoder) (decimal.Decimal, error) {
	switch tt := d.Next(); tt {
	case jx.String:
		s, err := d.Str()
		if err != nil {
			return decimal.Decimal{}, err
		}
		v, err := decimal.NewFromString(s)
		if err != nil {
			return decimal.Decimal{}, errors.Wrapf(err, "parse decimal %q", s)
		}
		return v, nil
	case jx.Number:
		n, err := d.Num()
		if err != nil {
			return decimal.Decimal{}, err
		}
		v, err := decimal.NewFromString(n.String())
		if err != nil {
			return decimal.Decimal{}, errors.Wrapf(err, "parse decimal %q", n.String())
		}
		return v, nil
	default:
		return decimal.Decimal{}, errors.Errorf("unexpected %s, want decimal", tt)
	}
}

// EncodeNumber writes v as a JSON number.
func EncodeNumber(e *jx.Encoder, v decimal.Decimal) {
	e.Num(jx.Num(v.String()))
}

// EncodeString writes v as a JSON string, preserving its exact representation.
func EncodeString(e *jx.Encoder, v decimal.Decimal) {
	e.Str(v.String())
}
