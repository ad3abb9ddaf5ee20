package store

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// Attributes is an ordered key-to-string mapping of free-form record fields.
// Iteration follows document order so text derived from it is reproducible
// across loads of the same catalog.
type Attributes struct {
	keys   []string
	values map[string]string
}

// Set adds or replaces a key. A replaced key keeps its original position.
func (a *Attributes) Set(key, value string) {
	if a.values == nil {
		a.values = make(map[string]string)
	}
	if _, ok := a.values[key]; !ok {
		a.keys = append(a.keys, key)
	}
	a.values[key] = value
}

// Get returns the value for key and whether it is present.
func (a *Attributes) Get(key string) (string, bool) {
	v, ok := a.values[key]
	return v, ok
}

// Len returns the number of attributes.
func (a *Attributes) Len() int {
	return len(a.keys)
}

// Keys returns the attribute keys in document order.
func (a *Attributes) Keys() []string {
	out := make([]string, len(a.keys))
	copy(out, a.keys)
	return out
}

// Values returns the attribute values in document order.
func (a *Attributes) Values() []string {
	out := make([]string, 0, len(a.keys))
	for _, k := range a.keys {
		out = append(out, a.values[k])
	}
	return out
}

// UnmarshalJSON parses a JSON object into ordered attributes. Non-string
// values are kept in their string form.
func (a *Attributes) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("attributes must be a JSON object")
	}

	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := keyTok.(string)
		if !ok {
			return fmt.Errorf("attributes must be a JSON object")
		}
		var val any
		if err := dec.Decode(&val); err != nil {
			return err
		}
		a.Set(key, stringifyValue(val))
	}

	_, err = dec.Token() // closing brace
	return err
}

// Record is one catalog item. The schema is dynamic beyond the reserved
// fields: unknown top-level keys and the nested "attributes" object both
// fold into Attributes in document order.
type Record struct {
	Name       string
	Category   string
	Price      string
	Link       string
	Attributes Attributes
}

// UnmarshalJSON parses a catalog record, preserving attribute order.
func (r *Record) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("record must be a JSON object")
	}

	sawLink := false
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := keyTok.(string)
		if !ok {
			return fmt.Errorf("record must be a JSON object")
		}

		switch key {
		case "name":
			s, err := decodeString(dec)
			if err != nil {
				return fmt.Errorf("field %q: %w", key, err)
			}
			r.Name = s
		case "category":
			s, err := decodeString(dec)
			if err != nil {
				return fmt.Errorf("field %q: %w", key, err)
			}
			r.Category = s
		case "price":
			s, err := decodeString(dec)
			if err != nil {
				return fmt.Errorf("field %q: %w", key, err)
			}
			r.Price = s
		case "link":
			s, err := decodeString(dec)
			if err != nil {
				return fmt.Errorf("field %q: %w", key, err)
			}
			r.Link = s
			sawLink = true
		case "url":
			// "link" takes precedence over "url" regardless of key order.
			s, err := decodeString(dec)
			if err != nil {
				return fmt.Errorf("field %q: %w", key, err)
			}
			if !sawLink {
				r.Link = s
			}
		case "attributes":
			var raw json.RawMessage
			if err := dec.Decode(&raw); err != nil {
				return fmt.Errorf("field %q: %w", key, err)
			}
			if bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
				continue
			}
			var nested Attributes
			if err := json.Unmarshal(raw, &nested); err != nil {
				return fmt.Errorf("field %q: %w", key, err)
			}
			for _, k := range nested.keys {
				r.Attributes.Set(k, nested.values[k])
			}
		default:
			var val any
			if err := dec.Decode(&val); err != nil {
				return fmt.Errorf("field %q: %w", key, err)
			}
			r.Attributes.Set(key, stringifyValue(val))
		}
	}

	_, err = dec.Token() // closing brace
	return err
}

// decodeString reads one JSON value and returns its string form.
func decodeString(dec *json.Decoder) (string, error) {
	var val any
	if err := dec.Decode(&val); err != nil {
		return "", err
	}
	return stringifyValue(val), nil
}

// stringifyValue renders any decoded JSON value as a string. Strings pass
// through, numbers keep their source formatting (UseNumber), composites
// re-serialize compactly.
func stringifyValue(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case json.Number:
		return t.String()
	case bool:
		return strconv.FormatBool(t)
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprint(t)
		}
		return string(b)
	}
}
