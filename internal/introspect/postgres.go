package introspect

import (
	"context"
	"database/sql"
)

// Postgres reads metadata from information_schema of one PostgreSQL schema.
type Postgres struct {
	db     *sql.DB
	schema string
}

// NewPostgres creates a PostgreSQL source; schemaName defaults to "public".
func NewPostgres(db *sql.DB, schemaName string) *Postgres {
	if schemaName == "" {
		schemaName = "public"
	}
	return &Postgres{db: db, schema: schemaName}
}

// TableNames lists base tables in name order.
func (s *Postgres) TableNames(ctx context.Context) ([]string, error) {
	return queryStrings(ctx, s.db, `
		SELECT table_name
		FROM information_schema.tables
		WHERE table_schema = $1 AND table_type = 'BASE TABLE'
		ORDER BY table_name
	`, s.schema)
}

// Describe returns columns, primary key and foreign keys of a table.
func (s *Postgres) Describe(ctx context.Context, table string) (*Table, error) {
	t := &Table{Name: table}
	var err error

	t.Columns, err = queryStrings(ctx, s.db, `
		SELECT column_name
		FROM information_schema.columns
		WHERE table_schema = $1 AND table_name = $2
		ORDER BY ordinal_position
	`, s.schema, table)
	if err != nil {
		return nil, err
	}

	t.PrimaryKey, err = queryStrings(ctx, s.db, `
		SELECT kcu.column_name
		FROM information_schema.table_constraints tc
		JOIN information_schema.key_column_usage kcu
			ON tc.constraint_name = kcu.constraint_name
			AND tc.table_schema = kcu.table_schema
		WHERE tc.table_schema = $1
			AND tc.table_name = $2
			AND tc.constraint_type = 'PRIMARY KEY'
		ORDER BY kcu.ordinal_position
	`, s.schema, table)
	if err != nil {
		return nil, err
	}

	t.ForeignKeys, err = queryForeignKeys(ctx, s.db, `
		SELECT
			kcu.column_name,
			ccu.table_name AS foreign_table_name,
			ccu.column_name AS foreign_column_name
		FROM information_schema.table_constraints AS tc
		JOIN information_schema.key_column_usage AS kcu
			ON tc.constraint_name = kcu.constraint_name
			AND tc.table_schema = kcu.table_schema
		JOIN information_schema.constraint_column_usage AS ccu
			ON ccu.constraint_name = tc.constraint_name
			AND ccu.table_schema = tc.table_schema
		WHERE tc.constraint_type = 'FOREIGN KEY'
			AND tc.table_schema = $1
			AND tc.table_name = $2
		ORDER BY kcu.ordinal_position
	`, s.schema, table)
	if err != nil {
		return nil, err
	}

	return t, nil
}
