package handler

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/retail-products/internal/domain/product"
)

func TestEncodeDocument_EmptyView(t *testing.T) {
	doc := product.Document{
		Data:   []product.View{{}},
		Errors: []product.SourceError{{Source: product.SourceCatalog, Message: "Product not found"}},
	}

	assert.JSONEq(t,
		`{"data":[{}],"errors":[{"source":"redsky","message":"Product not found"}]}`,
		string(encodeDocument(doc)),
	)
}

func TestEncodeDocument_TwoDecimals(t *testing.T) {
	id := int64(1)
	name := "n"
	doc := product.Document{
		Data: []product.View{{
			ID:    &id,
			Name:  &name,
			Price: &product.Price{Value: decimal.RequireFromString("26"), CurrencyCode: "USD"},
		}},
		Errors: []product.SourceError{},
	}

	assert.Equal(t,
		`{"data":[{"id":1,"name":"n","current_price":{"value":26.00,"currency_code":"USD"}}],"errors":[]}`,
		string(encodeDocument(doc)),
	)
}

func TestEncodeError(t *testing.T) {
	assert.Equal(t, `{"code":404,"message":"Product not found"}`, string(encodeError(404, "Product not found")))
}

func TestDecodePriceUpdate(t *testing.T) {
	tests := []struct {
		name      string
		body      string
		wantNil   bool
		wantName  *string
		wantValue string
		wantCode  string
		wantErr   bool
	}{
		{name: "empty", body: "", wantNil: true},
		{name: "whitespace", body: " \n", wantNil: true},
		{name: "null", body: "null", wantNil: true},
		{name: "full", body: `{"name":"x","current_price":{"value":100.3475,"currency_code":"uSd"}}`, wantName: ptr("x"), wantValue: "100.3475", wantCode: "uSd"},
		{name: "string value", body: `{"current_price":{"value":"12.5","currency_code":"USD"}}`, wantValue: "12.5", wantCode: "USD"},
		{name: "unknown fields", body: `{"id":1,"current_price":{"value":1,"currency_code":"EUR","extra":[1,2]}}`, wantValue: "1", wantCode: "EUR"},
		{name: "malformed", body: `{"current_price":`, wantErr: true},
		{name: "array", body: `[]`, wantErr: true},
		{name: "bad string value", body: `{"current_price":{"value":"ten"}}`, wantErr: true},
		{name: "numeric currency", body: `{"current_price":{"currency_code":840}}`, wantErr: true},
		{name: "trailing whitespace", body: "{\"current_price\":{\"value\":1,\"currency_code\":\"USD\"}}\n", wantValue: "1", wantCode: "USD"},
		{name: "trailing garbage", body: `{"current_price":{"value":1,"currency_code":"USD"}} garbage`, wantErr: true},
		{name: "trailing object", body: `{"current_price":{"value":1,"currency_code":"USD"}}{}`, wantErr: true},
		{name: "null then garbage", body: `null x`, wantErr: true},
		{name: "huge exponent", body: `{"current_price":{"value":1e100000000,"currency_code":"USD"}}`, wantErr: true},
		{name: "huge exponent string", body: `{"current_price":{"value":"1e100000000","currency_code":"USD"}}`, wantErr: true},
		{name: "overlong value", body: `{"current_price":{"value":1000000000000000000000000000000000000000000000000000000000000000000,"currency_code":"USD"}}`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u, err := decodePriceUpdate([]byte(tt.body))
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			if tt.wantNil {
				assert.Nil(t, u)
				return
			}
			require.NotNil(t, u)
			assert.Equal(t, tt.wantName, u.Name)
			require.NotNil(t, u.Price)
			require.NotNil(t, u.Price.Value)
			assert.True(t, decimal.RequireFromString(tt.wantValue).Equal(*u.Price.Value))
			assert.Equal(t, tt.wantCode, u.Price.CurrencyCode)
		})
	}
}

func ptr(s string) *string { return &s }
