package fixture

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"github.com/dbsmedya/gofixture/internal/schema"
	"github.com/dbsmedya/gofixture/internal/types"
)

// Decode parses a document, keeping field order. Integral numbers decode as
// int64, other numbers as float64.
func Decode(data []byte) ([]Entry, error) {
	return DecodeReader(bytes.NewReader(data))
}

// DecodeReader parses a document from r.
func DecodeReader(r io.Reader) ([]Entry, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()

	if err := expectDelim(dec, '['); err != nil {
		return nil, err
	}

	entries := []Entry{}
	for dec.More() {
		e, err := decodeEntry(dec)
		if err != nil {
			return nil, fmt.Errorf("entry %d: %w", len(entries), err)
		}
		entries = append(entries, e)
	}
	if err := expectDelim(dec, ']'); err != nil {
		return nil, err
	}
	return entries, nil
}

func expectDelim(dec *json.Decoder, want json.Delim) error {
	tok, err := dec.Token()
	if err != nil {
		return fmt.Errorf("invalid fixture document: %w", err)
	}
	if d, ok := tok.(json.Delim); !ok || d != want {
		return fmt.Errorf("invalid fixture document: expected %q, got %v", want, tok)
	}
	return nil
}

func decodeEntry(dec *json.Decoder) (Entry, error) {
	var e Entry
	if err := expectDelim(dec, '{'); err != nil {
		return e, err
	}

	var haveModel bool
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return e, err
		}
		key, _ := tok.(string)
		switch key {
		case "model":
			tok, err := dec.Token()
			if err != nil {
				return e, err
			}
			name, ok := tok.(string)
			if !ok {
				return e, fmt.Errorf("model must be a string, got %v", tok)
			}
			if e.Model, err = schema.ParseLogicalType(name); err != nil {
				return e, err
			}
			haveModel = true
		case "fields":
			if e.Fields, err = decodeFields(dec); err != nil {
				return e, err
			}
		default:
			// "pk" and unknown keys are tolerated
			v, err := decodeValue(dec)
			if err != nil {
				return e, err
			}
			if key == types.PKKey {
				e.PK = v
			}
		}
	}
	if err := expectDelim(dec, '}'); err != nil {
		return e, err
	}

	if !haveModel {
		return e, fmt.Errorf("missing model")
	}
	if e.Fields == nil {
		e.Fields = types.NewRecord()
	}
	return e, nil
}

func decodeFields(dec *json.Decoder) (*types.Record, error) {
	if err := expectDelim(dec, '{'); err != nil {
		return nil, err
	}
	rec := types.NewRecord()
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, _ := tok.(string)
		v, err := decodeValue(dec)
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", key, err)
		}
		rec.Set(key, v)
	}
	if err := expectDelim(dec, '}'); err != nil {
		return nil, err
	}
	return rec, nil
}

func decodeValue(dec *json.Decoder) (interface{}, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	switch v := tok.(type) {
	case json.Number:
		if n, err := v.Int64(); err == nil {
			return n, nil
		}
		return v.Float64()
	case json.Delim:
		switch v {
		case '[':
			list := []interface{}{}
			for dec.More() {
				item, err := decodeValue(dec)
				if err != nil {
					return nil, err
				}
				list = append(list, item)
			}
			_, err := dec.Token()
			return list, err
		case '{':
			obj := make(map[string]interface{})
			for dec.More() {
				ktok, err := dec.Token()
				if err != nil {
					return nil, err
				}
				key, _ := ktok.(string)
				item, err := decodeValue(dec)
				if err != nil {
					return nil, err
				}
				obj[key] = item
			}
			_, err := dec.Token()
			return obj, err
		}
		return nil, fmt.Errorf("unexpected %v", v)
	default:
		return v, nil
	}
}
