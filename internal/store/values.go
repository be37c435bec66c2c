package store

import (
	"database/sql"
	"encoding/base64"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dbsmedya/gofixture/internal/types"
)

// TimestampLayout is how fixtures render timestamps (UTC, milliseconds).
const TimestampLayout = "2006-01-02T15:04:05.000Z"

// normalizeScanned converts a driver value into the program's value kinds,
// using the column's database type where the driver alone is ambiguous
// (MySQL's text protocol returns every value as []byte).
func normalizeScanned(v interface{}, ct *sql.ColumnType) interface{} {
	dbType := ""
	if ct != nil {
		dbType = strings.ToUpper(ct.DatabaseTypeName())
	}

	switch val := v.(type) {
	case nil:
		return nil
	case time.Time:
		if dbType == "DATE" {
			return types.NewDate(val)
		}
		return val.UTC()
	case [16]byte:
		return uuid.UUID(val)
	case []byte:
		return convertBytes(val, dbType)
	case string:
		if dbType == "UUID" {
			if u, err := uuid.Parse(val); err == nil {
				return u
			}
		}
		return val
	case int:
		return int64(val)
	case int32:
		return int64(val)
	case float32:
		return float64(val)
	default:
		return val
	}
}

func convertBytes(b []byte, dbType string) interface{} {
	if isBinaryType(dbType) {
		return b
	}
	s := string(b)
	switch dbType {
	case "INT", "INTEGER", "BIGINT", "SMALLINT", "TINYINT", "MEDIUMINT",
		"UNSIGNED INT", "UNSIGNED BIGINT", "UNSIGNED SMALLINT", "UNSIGNED TINYINT", "UNSIGNED MEDIUMINT", "YEAR":
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			return n
		}
	case "FLOAT", "DOUBLE", "REAL":
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return f
		}
	case "DATE":
		if t, err := time.Parse("2006-01-02", s); err == nil {
			return types.NewDate(t)
		}
	case "DATETIME", "TIMESTAMP":
		if t, err := time.Parse("2006-01-02 15:04:05.999999999", s); err == nil {
			return t.UTC()
		}
	case "UUID":
		if u, err := uuid.Parse(s); err == nil {
			return u
		}
	}
	return types.NormalizeValue(b)
}

// isBinaryType reports whether a column type holds raw bytes. Fixtures carry
// such values base64-encoded.
func isBinaryType(dbType string) bool {
	if i := strings.IndexByte(dbType, '('); i >= 0 {
		dbType = strings.TrimSpace(dbType[:i])
	}
	switch dbType {
	case "BINARY", "VARBINARY", "BLOB", "TINYBLOB", "MEDIUMBLOB", "LONGBLOB", "BYTEA":
		return true
	}
	return false
}

// toColumnValue is toDriverValue for a column of known kind: base64 text
// bound to a binary column is decoded back into its bytes.
func toColumnValue(v interface{}, binary bool) interface{} {
	if s, ok := v.(string); ok && binary {
		if b, err := base64.StdEncoding.DecodeString(s); err == nil {
			return b
		}
	}
	return toDriverValue(v)
}

// toDriverValue converts a fixture value back into something a driver can
// bind. Fixture timestamps are parsed back into time.Time.
func toDriverValue(v interface{}) interface{} {
	switch val := v.(type) {
	case string:
		if len(val) == len(TimestampLayout) && strings.HasSuffix(val, "Z") {
			if t, err := time.Parse(TimestampLayout, val); err == nil {
				return t
			}
		}
		return val
	case uuid.UUID:
		return val.String()
	case types.Date:
		return val.String()
	case types.FileRef:
		return val.Name
	default:
		return val
	}
}

// sortKeys orders key values ascending: numerically when both are integers,
// lexically otherwise.
func sortKeys(keys []interface{}) {
	sort.SliceStable(keys, func(i, j int) bool {
		return compareKeys(keys[i], keys[j]) < 0
	})
}

func compareKeys(a, b interface{}) int {
	ai, aok := asInt(a)
	bi, bok := asInt(b)
	if aok && bok {
		switch {
		case ai < bi:
			return -1
		case ai > bi:
			return 1
		}
		return 0
	}
	return strings.Compare(types.CanonicalKey(a), types.CanonicalKey(b))
}

func asInt(v interface{}) (int64, bool) {
	switch val := v.(type) {
	case uint64:
		if val > math.MaxInt64 {
			return 0, false
		}
		return int64(val), true
	case uint:
		if uint64(val) > math.MaxInt64 {
			return 0, false
		}
		return int64(val), true
	case int, int8, int16, int32, int64, uint8, uint16, uint32:
		return types.ToInt64(val), true
	case float64:
		if val == float64(int64(val)) {
			return int64(val), true
		}
	case string:
		if n, err := strconv.ParseInt(val, 10, 64); err == nil {
			return n, true
		}
	}
	return 0, false
}
