package introspect

import (
	"context"
	"database/sql"
	"sort"
)

// SQLite reads metadata through the pragma table-valued functions.
type SQLite struct {
	db *sql.DB
}

// NewSQLite creates a SQLite source.
func NewSQLite(db *sql.DB) *SQLite {
	return &SQLite{db: db}
}

// TableNames lists user tables in name order.
func (s *SQLite) TableNames(ctx context.Context) ([]string, error) {
	return queryStrings(ctx, s.db, `
		SELECT name
		FROM sqlite_master
		WHERE type = 'table' AND name NOT LIKE 'sqlite_%'
		ORDER BY name
	`)
}

// Describe returns columns, primary key and foreign keys of a table.
func (s *SQLite) Describe(ctx context.Context, table string) (*Table, error) {
	t := &Table{Name: table}

	rows, err := s.db.QueryContext(ctx, `SELECT name, pk FROM pragma_table_info(?) ORDER BY cid`, table)
	if err != nil {
		return nil, err
	}
	type pkCol struct {
		name  string
		order int
	}
	var pks []pkCol
	for rows.Next() {
		var name string
		var pk int
		if err := rows.Scan(&name, &pk); err != nil {
			rows.Close()
			return nil, err
		}
		t.Columns = append(t.Columns, name)
		if pk > 0 {
			pks = append(pks, pkCol{name, pk})
		}
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	sort.Slice(pks, func(i, j int) bool { return pks[i].order < pks[j].order })
	for _, p := range pks {
		t.PrimaryKey = append(t.PrimaryKey, p.name)
	}

	t.ForeignKeys, err = queryForeignKeys(ctx, s.db,
		`SELECT "from", "table", "to" FROM pragma_foreign_key_list(?) ORDER BY id, seq`, table)
	if err != nil {
		return nil, err
	}

	return t, nil
}
