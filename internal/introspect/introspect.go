// Package introspect reads table metadata from a live database and turns it
// into a schema.Registry the extractor can walk.
package introspect

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"

	"github.com/dbsmedya/gofixture/internal/logger"
	"github.com/dbsmedya/gofixture/internal/schema"
	"github.com/dbsmedya/gofixture/internal/sqlutil"
	"github.com/dbsmedya/gofixture/internal/types"
)

// Table is the raw metadata of one table.
type Table struct {
	Name        string
	Columns     []string // ordinal order
	PrimaryKey  []string
	ForeignKeys []ForeignKey
}

// ForeignKey is one single-column foreign key constraint.
type ForeignKey struct {
	Column    string
	RefTable  string
	RefColumn string // empty means the referenced table's primary key
}

// Source lists and describes tables of one database schema.
type Source interface {
	TableNames(ctx context.Context) ([]string, error)
	Describe(ctx context.Context, table string) (*Table, error)
}

// Options controls how tables map to logical types.
type Options struct {
	// AppLabel is the app of every generated model. A table named
	// "<app>_<model>" becomes model "<model>".
	AppLabel string
	// Tables restricts the walk; relations leaving the set are dropped.
	Tables []string
}

// Inspect describes every selected table of src.
func Inspect(ctx context.Context, src Source, tables []string) ([]*Table, error) {
	names := tables
	if len(names) == 0 {
		var err error
		names, err = src.TableNames(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list tables: %w", err)
		}
	}

	out := make([]*Table, 0, len(names))
	for _, name := range names {
		t, err := src.Describe(ctx, name)
		if err != nil {
			return nil, fmt.Errorf("failed to describe table %s: %w", name, err)
		}
		if len(t.Columns) == 0 {
			return nil, fmt.Errorf("table %s not found or has no columns", name)
		}
		out = append(out, t)
	}
	return out, nil
}

// BuildRegistry introspects src and converts the result into a registry.
func BuildRegistry(ctx context.Context, src Source, opts Options, log *logger.Logger) (*schema.Registry, error) {
	tables, err := Inspect(ctx, src, opts.Tables)
	if err != nil {
		return nil, err
	}
	return Convert(tables, opts.AppLabel, log)
}

// Convert maps tables to models:
//   - a table whose only non-key columns are exactly two foreign keys is a
//     junction table and becomes a many-to-many owned by the table its first
//     foreign key references;
//   - every other table with a single-column primary key becomes a model
//     whose FK columns become foreign key attributes ("artist_id" -> "artist");
//   - tables with composite keys are skipped, and relations pointing at
//     skipped or unselected tables are dropped.
func Convert(tables []*Table, appLabel string, log *logger.Logger) (*schema.Registry, error) {
	if log == nil {
		log = logger.NewNop()
	}
	if appLabel == "" {
		return nil, fmt.Errorf("app label is required to name introspected models")
	}

	for _, t := range tables {
		sortForeignKeys(t)
	}

	models := make(map[string]*schema.Model)
	var junctions []*Table
	for _, t := range tables {
		if isJunction(t) {
			junctions = append(junctions, t)
			continue
		}
		if len(t.PrimaryKey) != 1 {
			log.Warnw("Skipping table without single-column primary key", "table", t.Name, "primary_key", t.PrimaryKey)
			continue
		}
		if t.PrimaryKey[0] == types.PKKey {
			log.Warnw("Skipping table whose primary key uses the reserved name", "table", t.Name, "column", types.PKKey)
			continue
		}
		models[t.Name] = &schema.Model{
			Type:       schema.NewLogicalType(appLabel, modelName(t.Name, appLabel)),
			Table:      t.Name,
			PrimaryKey: t.PrimaryKey[0],
		}
	}

	// Foreign keys need every model in place to resolve targets
	for _, t := range tables {
		m, ok := models[t.Name]
		if !ok {
			continue
		}
		fkCols := make(map[string]bool)
		for _, fk := range t.ForeignKeys {
			target, ok := models[fk.RefTable]
			if !ok || !referencesPK(fk, target) {
				log.Warnw("Dropping foreign key to unmodelled table or non-key column",
					"table", t.Name, "column", fk.Column, "ref_table", fk.RefTable, "ref_column", fk.RefColumn)
				continue
			}
			fkCols[fk.Column] = true
			attr := attributeName(fk.Column, t.Columns)
			if attr == types.PKKey {
				log.Warnw("Skipping foreign key column with reserved name", "table", t.Name, "column", fk.Column)
				continue
			}
			m.ForeignKeys = append(m.ForeignKeys, schema.ForeignKey{
				Attribute: attr,
				Column:    fk.Column,
				Target:    target.Type,
			})
		}
		for _, c := range t.Columns {
			if fkCols[c] {
				continue
			}
			if c == types.PKKey {
				log.Warnw("Skipping column with reserved name", "table", t.Name, "column", c)
				continue
			}
			m.Fields = append(m.Fields, c)
		}
	}

	for _, j := range junctions {
		src, dst := j.ForeignKeys[0], j.ForeignKeys[1]
		owner, okOwner := models[src.RefTable]
		target, okTarget := models[dst.RefTable]
		if !okOwner || !okTarget {
			log.Warnw("Skipping junction table with unmodelled endpoint", "table", j.Name)
			continue
		}
		attr := strings.TrimPrefix(j.Name, owner.Table+"_")
		if attr == "" || owner.HasAttribute(attr) {
			attr = j.Name
		}
		owner.ManyToMany = append(owner.ManyToMany, schema.ManyToMany{
			Attribute:    attr,
			Target:       target.Type,
			Through:      j.Name,
			SourceColumn: src.Column,
			TargetColumn: dst.Column,
		})
	}

	names := make([]string, 0, len(models))
	for name := range models {
		names = append(names, name)
	}
	sort.Strings(names)

	reg := schema.NewRegistry()
	for _, name := range names {
		if err := reg.Register(models[name]); err != nil {
			return nil, fmt.Errorf("table %s: %w", name, err)
		}
	}
	if err := reg.Validate(); err != nil {
		return nil, err
	}
	return reg, nil
}

// isJunction reports whether t only links two other tables.
func isJunction(t *Table) bool {
	if len(t.ForeignKeys) != 2 {
		return false
	}
	link := map[string]bool{t.ForeignKeys[0].Column: true, t.ForeignKeys[1].Column: true}
	if len(link) != 2 {
		return false
	}
	pk := make(map[string]bool, len(t.PrimaryKey))
	for _, c := range t.PrimaryKey {
		pk[c] = true
	}
	for _, c := range t.Columns {
		if !link[c] && !pk[c] {
			return false
		}
	}
	// A surrogate key is fine; a key over other columns is not.
	for c := range pk {
		if !link[c] && len(t.PrimaryKey) > 1 {
			return false
		}
	}
	return true
}

func referencesPK(fk ForeignKey, target *schema.Model) bool {
	return fk.RefColumn == "" || fk.RefColumn == target.PrimaryKey
}

// sortForeignKeys orders foreign keys by column position, so the junction
// owner does not depend on catalog ordering.
func sortForeignKeys(t *Table) {
	pos := make(map[string]int, len(t.Columns))
	for i, c := range t.Columns {
		pos[c] = i
	}
	sort.SliceStable(t.ForeignKeys, func(i, j int) bool {
		return pos[t.ForeignKeys[i].Column] < pos[t.ForeignKeys[j].Column]
	})
}

func modelName(table, app string) string {
	name := strings.TrimPrefix(strings.ToLower(table), strings.ToLower(app)+"_")
	if name == "" {
		return strings.ToLower(table)
	}
	return name
}

// attributeName strips the "_id" suffix unless that collides with a column.
func attributeName(column string, columns []string) string {
	attr := strings.TrimSuffix(column, "_id")
	if attr == column || attr == "" || attr == "pk" {
		return column
	}
	for _, c := range columns {
		if c == attr {
			return column
		}
	}
	return attr
}

// NewSource picks the metadata reader for a dialect. database names the
// MySQL database or the PostgreSQL schema; SQLite ignores it.
func NewSource(d sqlutil.Dialect, db *sql.DB, database string) (Source, error) {
	switch d {
	case sqlutil.MySQL:
		return NewMySQL(db, database), nil
	case sqlutil.Postgres:
		return NewPostgres(db, database), nil
	case sqlutil.SQLite:
		return NewSQLite(db), nil
	default:
		return nil, fmt.Errorf("no introspection support for dialect %q", d)
	}
}
