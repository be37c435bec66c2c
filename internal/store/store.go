// Package store is the storage collaborator of the extractor: it answers
// filtered queries by logical type and accepts rows back when a fixture is
// loaded.
package store

import (
	"context"
	"fmt"

	"github.com/dbsmedya/gofixture/internal/schema"
	"github.com/dbsmedya/gofixture/internal/types"
)

// Filter restricts a query to records whose Attribute equals Value. A list
// value on the primary key matches any of its elements.
type Filter struct {
	Attribute string
	Value     interface{}
}

// Eq builds a filter.
func Eq(attribute string, value interface{}) *Filter {
	return &Filter{Attribute: attribute, Value: value}
}

func (f *Filter) String() string {
	if f == nil || f.Attribute == "" {
		return "<all>"
	}
	return fmt.Sprintf("%s=%s", f.Attribute, types.CanonicalKey(f.Value))
}

// Store answers queries. Returned records carry the primary key under
// types.PKKey followed by the model projection (scalars, FK attributes,
// M2M attributes as ascending lists of target keys), ordered by primary key.
// A nil filter returns every record of the type.
type Store interface {
	Query(ctx context.Context, t schema.LogicalType, f *Filter) ([]*types.Record, error)
}

// Row is one record to insert, shaped like a fixture entry's fields.
type Row struct {
	Type   schema.LogicalType
	Fields *types.Record
}

// InsertOptions tunes a load.
type InsertOptions struct {
	// DisableForeignKeyChecks lets rows arrive in any order.
	DisableForeignKeyChecks bool
}

// InsertResult counts what a load did.
type InsertResult struct {
	Rows    int // entity rows written
	Skipped int // rows whose key already existed
	Links   int // M2M links written
}

// Sink accepts rows. Inserting a row whose key already exists is a no-op,
// so documents carrying duplicated entries load cleanly.
type Sink interface {
	InsertRows(ctx context.Context, rows []Row, opts InsertOptions) (InsertResult, error)
}

// UnknownAttributeError is returned for a filter on an attribute the model
// does not have.
type UnknownAttributeError struct {
	Type      schema.LogicalType
	Attribute string
}

func (e *UnknownAttributeError) Error() string {
	return fmt.Sprintf("%s has no attribute %q", e.Type, e.Attribute)
}

// filterKind says how a filter attribute maps onto storage.
type filterKind int

const (
	filterNone filterKind = iota
	filterPK
	filterColumn
	filterManyToMany
)

type resolvedFilter struct {
	kind   filterKind
	column string
	m2m    schema.ManyToMany
	value  interface{}
}

func resolveFilter(m *schema.Model, f *Filter) (resolvedFilter, error) {
	if f == nil || f.Attribute == "" {
		return resolvedFilter{kind: filterNone}, nil
	}
	switch {
	case f.Attribute == types.PKKey || f.Attribute == m.PrimaryKey:
		return resolvedFilter{kind: filterPK, column: m.PrimaryKey, value: f.Value}, nil
	case m.HasField(f.Attribute):
		return resolvedFilter{kind: filterColumn, column: f.Attribute, value: f.Value}, nil
	}
	if fk, ok := m.ForeignKeyByAttribute(f.Attribute); ok {
		return resolvedFilter{kind: filterColumn, column: fk.Column, value: f.Value}, nil
	}
	if mm, ok := m.ManyToManyByAttribute(f.Attribute); ok {
		return resolvedFilter{kind: filterManyToMany, m2m: mm, value: f.Value}, nil
	}
	return resolvedFilter{}, &UnknownAttributeError{Type: m.Type, Attribute: f.Attribute}
}

// keyList flattens a filter value into the keys it matches.
func keyList(v interface{}) []interface{} {
	if list, ok := v.([]interface{}); ok {
		return list
	}
	return []interface{}{v}
}

// rowPK returns the primary key value of a row to insert.
func rowPK(m *schema.Model, fields *types.Record) (interface{}, error) {
	pk, ok := fields.Get(m.PrimaryKey)
	if !ok {
		pk, ok = fields.PK()
	}
	if !ok || pk == nil {
		return nil, fmt.Errorf("%s row has no primary key %q", m.Type, m.PrimaryKey)
	}
	return pk, nil
}
