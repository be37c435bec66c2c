// Package fixture serializes extracted records as Django-style fixture
// documents and reads them back.
//
// A document is a JSON array of entries:
//
//	[
//	    {
//	        "model": "testapp.album",
//	        "fields": {"id": 1, "name": "Kind of Blue", "artist": 1}
//	    }
//	]
//
// Fields appear in projection order: scalar fields (the primary key column
// included), then foreign keys, then many-to-many lists.
package fixture

import (
	"github.com/dbsmedya/gofixture/internal/schema"
	"github.com/dbsmedya/gofixture/internal/store"
	"github.com/dbsmedya/gofixture/internal/types"
)

// Entry is one serialized record.
type Entry struct {
	Model  schema.LogicalType
	Fields *types.Record
	// PK identifies the record; it is not serialized.
	PK interface{}
}

// FromRecord builds an entry from a fetched record, dropping the reserved
// pk key.
func FromRecord(t schema.LogicalType, rec *types.Record) Entry {
	pk, _ := rec.PK()
	return Entry{Model: t, Fields: rec.Without(types.PKKey), PK: pk}
}

// Identity returns a key that is equal for entries describing the same
// record. Entries without PK fall back to their encoded content.
func (e Entry) Identity() string {
	if e.PK != nil {
		return e.Model.String() + "#" + types.CanonicalKey(e.PK)
	}
	b, err := encodeEntry(e)
	if err != nil {
		return e.Model.String() + "#?"
	}
	return string(b)
}

// Row converts the entry into a row for a store.Sink.
func (e Entry) Row() store.Row {
	fields := e.Fields
	if fields == nil {
		fields = types.NewRecord()
	}
	return store.Row{Type: e.Model, Fields: fields}
}

// Rows converts entries into rows.
func Rows(entries []Entry) []store.Row {
	rows := make([]store.Row, len(entries))
	for i, e := range entries {
		rows[i] = e.Row()
	}
	return rows
}

// Dedupe drops later entries describing an already seen record, keeping the
// first occurrence. It returns the kept entries and the number dropped.
func Dedupe(entries []Entry) ([]Entry, int) {
	seen := make(map[string]bool, len(entries))
	out := make([]Entry, 0, len(entries))
	for _, e := range entries {
		id := e.Identity()
		if seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, e)
	}
	return out, len(entries) - len(out)
}
