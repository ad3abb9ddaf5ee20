package store

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAttributes_SetGet(t *testing.T) {
	var a Attributes

	a.Set("color", "red")
	a.Set("size", "XL")
	a.Set("color", "blue") // replace keeps position

	assert.Equal(t, 2, a.Len())
	assert.Equal(t, []string{"color", "size"}, a.Keys())
	assert.Equal(t, []string{"blue", "XL"}, a.Values())

	v, ok := a.Get("color")
	assert.True(t, ok)
	assert.Equal(t, "blue", v)

	_, ok = a.Get("weight")
	assert.False(t, ok)
}

func TestAttributes_UnmarshalPreservesOrder(t *testing.T) {
	// Key order deliberately non-alphabetical; a plain map would lose it.
	data := []byte(`{"zeta": "last", "alpha": "first", "mid": "middle"}`)

	var a Attributes
	require.NoError(t, json.Unmarshal(data, &a))

	assert.Equal(t, []string{"zeta", "alpha", "mid"}, a.Keys())
	assert.Equal(t, []string{"last", "first", "middle"}, a.Values())
}

func TestAttributes_NonStringValues(t *testing.T) {
	data := []byte(`{"count": 42, "weight": 1.50, "active": true, "note": null, "tags": ["a","b"]}`)

	var a Attributes
	require.NoError(t, json.Unmarshal(data, &a))

	assert.Equal(t, []string{"42", "1.50", "true", "", `["a","b"]`}, a.Values())
}

func TestAttributes_RejectsNonObject(t *testing.T) {
	var a Attributes
	err := json.Unmarshal([]byte(`["not", "an", "object"]`), &a)
	require.Error(t, err)
}

func TestRecord_NestedAttributes(t *testing.T) {
	data := []byte(`{
		"name": "iPhone 15",
		"category": "Electronics",
		"price": 999,
		"link": "https://shop.example/iphone",
		"attributes": {"color": "black", "storage": "256GB"}
	}`)

	var r Record
	require.NoError(t, json.Unmarshal(data, &r))

	assert.Equal(t, "iPhone 15", r.Name)
	assert.Equal(t, "Electronics", r.Category)
	assert.Equal(t, "999", r.Price)
	assert.Equal(t, "https://shop.example/iphone", r.Link)
	assert.Equal(t, []string{"black", "256GB"}, r.Attributes.Values())
}

func TestRecord_TopLevelExtrasFoldIn(t *testing.T) {
	data := []byte(`{
		"name": "Aspirin",
		"dosage": "500mg",
		"attributes": {"form": "tablets"},
		"brand": "Bayer"
	}`)

	var r Record
	require.NoError(t, json.Unmarshal(data, &r))

	// Document order: dosage (top-level), then nested, then brand.
	assert.Equal(t, []string{"dosage", "form", "brand"}, r.Attributes.Keys())
	assert.Equal(t, []string{"500mg", "tablets", "Bayer"}, r.Attributes.Values())
}

func TestRecord_LinkURLPrecedence(t *testing.T) {
	tests := []struct {
		name string
		data string
		want string
	}{
		{"url only", `{"name":"x","url":"https://a"}`, "https://a"},
		{"link only", `{"name":"x","link":"https://b"}`, "https://b"},
		{"link before url", `{"name":"x","link":"https://b","url":"https://a"}`, "https://b"},
		{"url before link", `{"name":"x","url":"https://a","link":"https://b"}`, "https://b"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var r Record
			require.NoError(t, json.Unmarshal([]byte(tt.data), &r))
			assert.Equal(t, tt.want, r.Link)
		})
	}
}

func TestRecord_RejectsNonObject(t *testing.T) {
	var r Record
	err := json.Unmarshal([]byte(`"just a string"`), &r)
	require.Error(t, err)
}
