package ingest

import (
	"strconv"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/xenking/retail-products/internal/domain/product"
)

// record is one line of a price feed:
//
//	{"id":13860428,"value":13.49,"currency_code":"USD"}
//
// id may also be a numeric string; value may be a number or a string.
type record struct {
	ID       int64
	Value    *decimal.Decimal
	Currency string
}

func parseRecord(line []byte) (record, error) {
	var (
		r     record
		hasID bool
	)
	d := jx.DecodeBytes(line)
	err := d.Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "id":
			id, err := decodeID(d)
			if err != nil {
				return errors.Wrap(err, "id")
			}
			r.ID, hasID = id, true
			return nil
		case "value":
			if d.Next() == jx.Null {
				return d.Null()
			}
			v, err := decodeDecimal(d)
			if err != nil {
				return errors.Wrap(err, "value")
			}
			r.Value = &v
			return nil
		case "currency_code":
			if d.Next() == jx.Null {
				return d.Null()
			}
			s, err := d.Str()
			if err != nil {
				return errors.Wrap(err, "currency_code")
			}
			r.Currency = s
			return nil
		default:
			return d.Skip()
		}
	})
	if err != nil {
		return record{}, err
	}
	if !hasID {
		return record{}, errors.New("missing id")
	}
	return r, nil
}

func decodeID(d *jx.Decoder) (int64, error) {
	if d.Next() == jx.String {
		s, err := d.Str()
		if err != nil {
			return 0, err
		}
		return strconv.ParseInt(s, 10, 64)
	}
	return d.Int64()
}

func decodeDecimal(d *jx.Decoder) (decimal.Decimal, error) {
	var raw string
	switch d.Next() {
	case jx.Number:
		n, err := d.Num()
		if err != nil {
			return decimal.Decimal{}, err
		}
		raw = n.String()
	case jx.String:
		s, err := d.Str()
		if err != nil {
			return decimal.Decimal{}, err
		}
		raw = s
	default:
		return decimal.Decimal{}, errors.Errorf("unexpected %s", d.Next())
	}
	return product.ParseAmount(raw)
}
