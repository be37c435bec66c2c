package introspect

import (
	"context"
	"database/sql"
)

// MySQL reads metadata from information_schema of one database.
type MySQL struct {
	db     *sql.DB
	schema string
}

// NewMySQL creates a MySQL source for the named database.
func NewMySQL(db *sql.DB, database string) *MySQL {
	return &MySQL{db: db, schema: database}
}

// TableNames lists base tables in name order.
func (s *MySQL) TableNames(ctx context.Context) ([]string, error) {
	query := `
		SELECT table_name
		FROM information_schema.tables
		WHERE table_schema = ? AND table_type = 'BASE TABLE'
		ORDER BY table_name
	`
	return queryStrings(ctx, s.db, query, s.schema)
}

// Describe returns columns, primary key and foreign keys of a table.
func (s *MySQL) Describe(ctx context.Context, table string) (*Table, error) {
	t := &Table{Name: table}
	var err error

	t.Columns, err = queryStrings(ctx, s.db, `
		SELECT column_name
		FROM information_schema.columns
		WHERE table_schema = ? AND table_name = ?
		ORDER BY ordinal_position
	`, s.schema, table)
	if err != nil {
		return nil, err
	}

	t.PrimaryKey, err = queryStrings(ctx, s.db, `
		SELECT column_name
		FROM information_schema.key_column_usage
		WHERE table_schema = ?
			AND table_name = ?
			AND constraint_name = 'PRIMARY'
		ORDER BY ordinal_position
	`, s.schema, table)
	if err != nil {
		return nil, err
	}

	t.ForeignKeys, err = queryForeignKeys(ctx, s.db, `
		SELECT
			kcu.column_name,
			kcu.referenced_table_name,
			kcu.referenced_column_name
		FROM information_schema.key_column_usage kcu
		WHERE kcu.table_schema = ?
			AND kcu.table_name = ?
			AND kcu.referenced_table_name IS NOT NULL
		ORDER BY kcu.constraint_name, kcu.ordinal_position
	`, s.schema, table)
	if err != nil {
		return nil, err
	}

	return t, nil
}

func queryStrings(ctx context.Context, db *sql.DB, query string, args ...interface{}) ([]string, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func queryForeignKeys(ctx context.Context, db *sql.DB, query string, args ...interface{}) ([]ForeignKey, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ForeignKey
	for rows.Next() {
		var fk ForeignKey
		var refCol sql.NullString
		if err := rows.Scan(&fk.Column, &fk.RefTable, &refCol); err != nil {
			return nil, err
		}
		fk.RefColumn = refCol.String
		out = append(out, fk)
	}
	return out, rows.Err()
}
