// Package types contains shared types used across multiple packages to avoid import cycles.
package types

import (
	"time"

	"github.com/elliotchance/orderedmap/v2"
)

// PKKey is the reserved attribute name under which every fetched record
// carries its primary key value.
const PKKey = "pk"

// Record is one stored row: attribute name -> value, in projection order.
type Record struct {
	fields *orderedmap.OrderedMap[string, interface{}]
}

// NewRecord creates an empty record.
func NewRecord() *Record {
	return &Record{fields: orderedmap.NewOrderedMap[string, interface{}]()}
}

// RecordFromPairs builds a record from alternating key, value arguments.
// Odd trailing keys are ignored.
func RecordFromPairs(kv ...interface{}) *Record {
	r := NewRecord()
	for i := 0; i+1 < len(kv); i += 2 {
		key, ok := kv[i].(string)
		if !ok {
			continue
		}
		r.Set(key, kv[i+1])
	}
	return r
}

// Set stores a value, keeping the original position when the key already exists.
func (r *Record) Set(key string, value interface{}) {
	r.fields.Set(key, value)
}

// Get returns the value for key.
func (r *Record) Get(key string) (interface{}, bool) {
	return r.fields.Get(key)
}

// Has reports whether the record carries key.
func (r *Record) Has(key string) bool {
	_, ok := r.fields.Get(key)
	return ok
}

// Delete removes key from the record.
func (r *Record) Delete(key string) {
	r.fields.Delete(key)
}

// Len returns the number of attributes.
func (r *Record) Len() int {
	return r.fields.Len()
}

// Keys returns attribute names in insertion order.
func (r *Record) Keys() []string {
	keys := make([]string, 0, r.fields.Len())
	for el := r.fields.Front(); el != nil; el = el.Next() {
		keys = append(keys, el.Key)
	}
	return keys
}

// Each calls fn for every attribute in order until fn returns false.
func (r *Record) Each(fn func(key string, value interface{}) bool) {
	for el := r.fields.Front(); el != nil; el = el.Next() {
		if !fn(el.Key, el.Value) {
			return
		}
	}
}

// PK returns the value stored under the reserved primary key name.
func (r *Record) PK() (interface{}, bool) {
	return r.Get(PKKey)
}

// Without returns a copy of the record minus the given keys.
func (r *Record) Without(keys ...string) *Record {
	skip := make(map[string]bool, len(keys))
	for _, k := range keys {
		skip[k] = true
	}
	out := NewRecord()
	r.Each(func(key string, value interface{}) bool {
		if !skip[key] {
			out.Set(key, value)
		}
		return true
	})
	return out
}

// Clone returns a shallow copy of the record.
func (r *Record) Clone() *Record {
	return r.Without()
}

// ExtractStats contains statistics about one root key extraction.
type ExtractStats struct {
	RecordsFound int           // Records emitted, duplicates included
	Queries      int           // Store queries issued
	MaxDepth     int           // Deepest recursion level reached
	Duplicates   int           // Entries removed by deduplication
	Duration     time.Duration // Time taken for the walk
}
