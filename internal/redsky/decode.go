package redsky

import (
	"strconv"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"

	"github.com/xenking/retail-products/internal/domain/product"
)

// decodeProduct extracts the catalog record from
//
//	{"product":{"item":{"tcin":"…","product_description":{"title":"…"}}}}
//
// A missing or null product means the upstream does not know the id. A
// missing item or description yields a record without a title.
func decodeProduct(data []byte, requested int64) (product.CatalogRecord, error) {
	rec := product.CatalogRecord{ID: requested}
	found := false

	d := jx.DecodeBytes(data)
	err := d.Obj(func(d *jx.Decoder, key string) error {
		if key != "product" {
			return d.Skip()
		}
		if d.Next() == jx.Null {
			return d.Null()
		}
		found = true
		return d.Obj(func(d *jx.Decoder, key string) error {
			if key != "item" {
				return d.Skip()
			}
			if d.Next() == jx.Null {
				return d.Null()
			}
			return decodeItem(d, &rec)
		})
	})
	if err != nil {
		return product.CatalogRecord{}, errors.Wrap(err, "decode catalog response")
	}
	if !found {
		return product.CatalogRecord{}, product.ErrProductNotFound
	}
	return rec, nil
}

func decodeItem(d *jx.Decoder, rec *product.CatalogRecord) error {
	return d.Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "tcin":
			if d.Next() == jx.Null {
				return d.Null()
			}
			tcin, err := d.Str()
			if err != nil {
				return errors.Wrap(err, "tcin")
			}
			id, err := strconv.ParseInt(tcin, 10, 64)
			if err != nil {
				return errors.Wrapf(err, "parse tcin %q", tcin)
			}
			rec.ID = id
			return nil
		case "product_description":
			if d.Next() == jx.Null {
				return d.Null()
			}
			rec.Described = true
			return d.Obj(func(d *jx.Decoder, key string) error {
				if key != "title" || d.Next() == jx.Null {
					return d.Skip()
				}
				title, err := d.Str()
				if err != nil {
					return errors.Wrap(err, "product_description.title")
				}
				rec.Title = &title
				return nil
			})
		default:
			return d.Skip()
		}
	})
}
