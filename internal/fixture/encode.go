package fixture

import (
	"bytes"
	"database/sql/driver"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dbsmedya/gofixture/internal/store"
	"github.com/dbsmedya/gofixture/internal/types"
)

// TimestampLayout renders timestamps: UTC, millisecond precision.
const TimestampLayout = store.TimestampLayout

// DefaultIndent is the indentation width of written documents.
const DefaultIndent = 4

// EncodeValue converts a record value into its JSON representation.
func EncodeValue(v interface{}) (interface{}, error) {
	switch val := v.(type) {
	case nil, string, bool, json.Number,
		int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float32, float64:
		return val, nil
	case time.Time:
		return val.UTC().Format(TimestampLayout), nil
	case types.Date:
		return val.String(), nil
	case uuid.UUID:
		return val.String(), nil
	case types.FileRef:
		return val.Name, nil
	case []byte:
		return base64.StdEncoding.EncodeToString(val), nil
	case []interface{}:
		out := make([]interface{}, len(val))
		for i, item := range val {
			enc, err := EncodeValue(item)
			if err != nil {
				return nil, err
			}
			out[i] = enc
		}
		return out, nil
	case map[string]interface{}:
		out := make(map[string]interface{}, len(val))
		for k, item := range val {
			enc, err := EncodeValue(item)
			if err != nil {
				return nil, err
			}
			out[k] = enc
		}
		return out, nil
	case driver.Valuer:
		prim, err := val.Value()
		if err != nil {
			return nil, fmt.Errorf("failed to encode %T: %w", v, err)
		}
		return EncodeValue(prim)
	}

	// Enumerations render as their underlying primitive, not their name
	if prim, ok := underlyingPrimitive(v); ok {
		return prim, nil
	}
	if s, ok := v.(fmt.Stringer); ok {
		return s.String(), nil
	}
	return v, nil
}

// underlyingPrimitive converts a value of a named bool, integer, float or
// string type to the unnamed type of the same kind.
func underlyingPrimitive(v interface{}) (interface{}, bool) {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Bool:
		return rv.Bool(), true
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int(), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return rv.Uint(), true
	case reflect.Float32, reflect.Float64:
		return rv.Float(), true
	case reflect.String:
		return rv.String(), true
	}
	return nil, false
}

func marshalValue(v interface{}) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// encodeEntry renders one entry compactly, fields in record order.
func encodeEntry(e Entry) ([]byte, error) {
	var buf bytes.Buffer
	model, err := marshalValue(e.Model.String())
	if err != nil {
		return nil, err
	}
	buf.WriteString(`{"model":`)
	buf.Write(model)
	buf.WriteString(`,"fields":{`)

	var ferr error
	first := true
	if e.Fields != nil {
		e.Fields.Each(func(key string, value interface{}) bool {
			enc, err := EncodeValue(value)
			if err != nil {
				ferr = fmt.Errorf("field %s.%s: %w", e.Model, key, err)
				return false
			}
			k, err := marshalValue(key)
			if err != nil {
				ferr = err
				return false
			}
			v, err := marshalValue(enc)
			if err != nil {
				ferr = fmt.Errorf("field %s.%s: %w", e.Model, key, err)
				return false
			}
			if !first {
				buf.WriteByte(',')
			}
			first = false
			buf.Write(k)
			buf.WriteByte(':')
			buf.Write(v)
			return true
		})
	}
	if ferr != nil {
		return nil, ferr
	}
	buf.WriteString("}}")
	return buf.Bytes(), nil
}

// MarshalJSON implements json.Marshaler.
func (e Entry) MarshalJSON() ([]byte, error) {
	return encodeEntry(e)
}

// Encode renders a document. indent is the number of spaces per level; 0
// renders compactly.
func Encode(entries []Entry, indent int) ([]byte, error) {
	if entries == nil {
		entries = []Entry{}
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if indent > 0 {
		enc.SetIndent("", strings.Repeat(" ", indent))
	}
	if err := enc.Encode(entries); err != nil {
		return nil, fmt.Errorf("failed to encode fixture: %w", err)
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}
