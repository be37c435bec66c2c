package types

import (
	"database/sql/driver"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Date is a calendar date with no time-of-day component.
type Date struct {
	time.Time
}

// NewDate truncates t to its calendar date.
func NewDate(t time.Time) Date {
	y, m, d := t.Date()
	return Date{Time: time.Date(y, m, d, 0, 0, 0, 0, time.UTC)}
}

// String renders the date as YYYY-MM-DD.
func (d Date) String() string {
	return d.Format("2006-01-02")
}

// Value implements driver.Valuer so dates can be written back to a database.
func (d Date) Value() (driver.Value, error) {
	return d.String(), nil
}

// FileRef is a reference to externally stored binary content. Only the
// reference identifier is ever serialized.
type FileRef struct {
	Name string
}

// String returns the reference identifier.
func (f FileRef) String() string {
	return f.Name
}

// Value implements driver.Valuer.
func (f FileRef) Value() (driver.Value, error) {
	return f.Name, nil
}

// ToInt64 converts an interface{} to int64.
// Supports int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, and float64.
func ToInt64(v interface{}) int64 {
	switch i := v.(type) {
	case int64:
		return i
	case int:
		return int64(i)
	case int32:
		return int64(i)
	case int16:
		return int64(i)
	case int8:
		return int64(i)
	case uint:
		return int64(i)
	case uint64:
		return int64(i)
	case uint32:
		return int64(i)
	case uint16:
		return int64(i)
	case uint8:
		return int64(i)
	case float64:
		return int64(i)
	case float32:
		return int64(i)
	default:
		return 0
	}
}

// toUint64 widens an unsigned integer.
func toUint64(v interface{}) uint64 {
	switch u := v.(type) {
	case uint:
		return uint64(u)
	case uint8:
		return uint64(u)
	case uint16:
		return uint64(u)
	case uint32:
		return uint64(u)
	case uint64:
		return u
	}
	return 0
}

// IsEmptyKey reports whether v cannot identify any row: nil or an empty list.
func IsEmptyKey(v interface{}) bool {
	switch val := v.(type) {
	case nil:
		return true
	case []interface{}:
		return len(val) == 0
	}
	return false
}

// CanonicalKey renders a key value as a stable string so that the same key
// compares equal whatever Go type a driver or the command line produced.
// int64(1), "1" and []byte("1") all yield "1"; lists yield "[a,b]".
func CanonicalKey(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return "<nil>"
	case string:
		return val
	case []byte:
		return string(val)
	case int, int8, int16, int32, int64:
		return strconv.FormatInt(ToInt64(val), 10)
	case uint, uint8, uint16, uint32, uint64:
		return strconv.FormatUint(toUint64(val), 10)
	case float64:
		if val == float64(int64(val)) {
			return strconv.FormatInt(int64(val), 10)
		}
		return strconv.FormatFloat(val, 'f', -1, 64)
	case float32:
		return CanonicalKey(float64(val))
	case []interface{}:
		parts := make([]string, len(val))
		for i, item := range val {
			parts[i] = CanonicalKey(item)
		}
		return "[" + strings.Join(parts, ",") + "]"
	case Date:
		return val.String()
	case time.Time:
		return val.UTC().Format(time.RFC3339Nano)
	case fmt.Stringer:
		return val.String()
	default:
		return fmt.Sprint(val)
	}
}

// NormalizeValue converts driver-specific representations into the values the
// rest of the program works with. MySQL returns []byte for strings.
func NormalizeValue(v interface{}) interface{} {
	if b, ok := v.([]byte); ok {
		return string(b)
	}
	return v
}
