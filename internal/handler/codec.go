package handler

import (
	"bytes"
	"io"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/xenking/retail-products/internal/domain/product"
)

func encodeDocument(doc product.Document) []byte {
	var e jx.Encoder
	e.Obj(func(e *jx.Encoder) {
		e.Field("data", func(e *jx.Encoder) {
			e.Arr(func(e *jx.Encoder) {
				for _, v := range doc.Data {
					encodeView(e, v)
				}
			})
		})
		e.Field("errors", func(e *jx.Encoder) {
			e.Arr(func(e *jx.Encoder) {
				for _, se := range doc.Errors {
					e.Obj(func(e *jx.Encoder) {
						e.Field("source", func(e *jx.Encoder) { e.Str(se.Source) })
						e.Field("message", func(e *jx.Encoder) { e.Str(se.Message) })
					})
				}
			})
		})
	})
	return e.Bytes()
}

// encodeView omits absent fields, so an unpopulated view encodes as {}.
func encodeView(e *jx.Encoder, v product.View) {
	e.Obj(func(e *jx.Encoder) {
		if v.ID != nil {
			e.Field("id", func(e *jx.Encoder) { e.Int64(*v.ID) })
		}
		if v.Name != nil {
			e.Field("name", func(e *jx.Encoder) { e.Str(*v.Name) })
		}
		if v.Price != nil {
			e.Field("current_price", func(e *jx.Encoder) {
				e.Obj(func(e *jx.Encoder) {
					e.Field("value", func(e *jx.Encoder) { e.Num(jx.Num(v.Price.Value.StringFixed(2))) })
					e.Field("currency_code", func(e *jx.Encoder) { e.Str(v.Price.CurrencyCode) })
				})
			})
		}
	})
}

func encodeError(code int, message string) []byte {
	var e jx.Encoder
	e.Obj(func(e *jx.Encoder) {
		e.Field("code", func(e *jx.Encoder) { e.Int(code) })
		e.Field("message", func(e *jx.Encoder) { e.Str(message) })
	})
	return e.Bytes()
}

// decodePriceUpdate parses a PUT body. An empty body or a JSON null yields a
// nil update, which validation reports as missing price information.
func decodePriceUpdate(data []byte) (*product.PriceUpdate, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}

	d := jx.DecodeBytes(data)
	if d.Next() == jx.Null {
		if err := d.Null(); err != nil {
			return nil, err
		}
		return nil, expectEOF(d)
	}

	u := &product.PriceUpdate{}
	err := d.Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "name":
			if d.Next() == jx.Null {
				return d.Null()
			}
			name, err := d.Str()
			if err != nil {
				return errors.Wrap(err, "name")
			}
			u.Name = &name
			return nil
		case "current_price":
			if d.Next() == jx.Null {
				return d.Null()
			}
			p, err := decodePriceInput(d)
			if err != nil {
				return errors.Wrap(err, "current_price")
			}
			u.Price = p
			return nil
		default:
			return d.Skip()
		}
	})
	if err != nil {
		return nil, err
	}
	if err := expectEOF(d); err != nil {
		return nil, err
	}
	return u, nil
}

// expectEOF fails unless only whitespace remains after the top-level value.
func expectEOF(d *jx.Decoder) error {
	if err := d.Skip(); !errors.Is(err, io.EOF) {
		return errors.New("unexpected trailing data")
	}
	return nil
}

func decodePriceInput(d *jx.Decoder) (*product.PriceInput, error) {
	p := &product.PriceInput{}
	err := d.Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "value":
			v, err := decodeAmount(d)
			if err != nil {
				return errors.Wrap(err, "value")
			}
			p.Value = v
			return nil
		case "currency_code":
			if d.Next() == jx.Null {
				return d.Null()
			}
			code, err := d.Str()
			if err != nil {
				return errors.Wrap(err, "currency_code")
			}
			p.CurrencyCode = code
			return nil
		default:
			return d.Skip()
		}
	})
	if err != nil {
		return nil, err
	}
	return p, nil
}

// decodeAmount reads a JSON number, or a string holding one, without going
// through float64.
func decodeAmount(d *jx.Decoder) (*decimal.Decimal, error) {
	var raw string
	switch d.Next() {
	case jx.Null:
		return nil, d.Null()
	case jx.Number:
		n, err := d.Num()
		if err != nil {
			return nil, err
		}
		raw = n.String()
	case jx.String:
		s, err := d.Str()
		if err != nil {
			return nil, err
		}
		raw = s
	default:
		return nil, errors.Errorf("unexpected %s", d.Next())
	}

	v, err := product.ParseAmount(raw)
	if err != nil {
		return nil, err
	}
	return &v, nil
}
