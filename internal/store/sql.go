package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/dbsmedya/gofixture/internal/logger"
	"github.com/dbsmedya/gofixture/internal/schema"
	"github.com/dbsmedya/gofixture/internal/sqlutil"
	"github.com/dbsmedya/gofixture/internal/types"
)

// DefaultBatchSize caps the keys bound in one IN (...) list. Drivers limit
// bind parameters per statement (SQLite 32766, PostgreSQL 65535).
const DefaultBatchSize = 1000

// SQLStore answers queries against a relational database described by a
// schema.Registry, and loads rows back into one.
type SQLStore struct {
	db        *sql.DB
	conn      *sql.Conn
	dialect   sqlutil.Dialect
	registry  *schema.Registry
	logger    *logger.Logger
	batchSize int
	binary    *binaryColumns
}

// binaryColumns caches, per table, the columns holding raw bytes.
type binaryColumns struct {
	mu     sync.Mutex
	tables map[string]map[string]bool
}

// NewSQLStore creates a store over db.
func NewSQLStore(db *sql.DB, dialect sqlutil.Dialect, reg *schema.Registry, log *logger.Logger) (*SQLStore, error) {
	if db == nil {
		return nil, fmt.Errorf("database is nil")
	}
	if reg == nil {
		return nil, fmt.Errorf("registry is nil")
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &SQLStore{
		db:        db,
		dialect:   dialect,
		registry:  reg,
		logger:    log,
		batchSize: DefaultBatchSize,
		binary:    &binaryColumns{tables: make(map[string]map[string]bool)},
	}, nil
}

// Dialect returns the SQL dialect of the store.
func (s *SQLStore) Dialect() sqlutil.Dialect {
	return s.dialect
}

// SetBatchSize sets how many keys go into one IN (...) list. Values below 1
// restore DefaultBatchSize.
func (s *SQLStore) SetBatchSize(n int) {
	if n <= 0 {
		n = DefaultBatchSize
	}
	s.batchSize = n
}

// OnConn returns a copy of the store that runs every statement on conn
// instead of taking connections from the pool. A nil conn returns s.
func (s *SQLStore) OnConn(conn *sql.Conn) *SQLStore {
	if conn == nil {
		return s
	}
	c := *s
	c.conn = conn
	return &c
}

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
}

func (s *SQLStore) queryer() queryer {
	if s.conn != nil {
		return s.conn
	}
	return s.db
}

// Query fetches the records of t matching f, ordered by primary key. Key
// lists longer than the batch size are queried in chunks.
func (s *SQLStore) Query(ctx context.Context, t schema.LogicalType, f *Filter) ([]*types.Record, error) {
	m, err := s.registry.Resolve(t)
	if err != nil {
		return nil, err
	}
	rf, err := resolveFilter(m, f)
	if err != nil {
		return nil, err
	}

	s.logger.Debugw("Querying records", "model", m.Type.String(), "filter", f.String())

	parts := s.chunkFilter(rf)
	var records []*types.Record
	for _, part := range parts {
		query, args, ok := s.buildSelect(m, part)
		if !ok {
			continue
		}
		recs, err := s.selectRecords(ctx, m, query, args)
		if err != nil {
			return nil, err
		}
		records = append(records, recs...)
	}
	if len(parts) > 1 {
		records = mergeByPK(records)
	}

	if len(records) == 0 || len(m.ManyToMany) == 0 {
		return records, nil
	}

	pks := make([]interface{}, len(records))
	for i, rec := range records {
		pks[i], _ = rec.PK()
	}
	for _, mm := range m.ManyToMany {
		links, err := s.loadLinks(ctx, mm, pks)
		if err != nil {
			return nil, fmt.Errorf("failed to load %s.%s: %w", m.Type, mm.Attribute, err)
		}
		for _, rec := range records {
			pk, _ := rec.PK()
			targets := links[types.CanonicalKey(pk)]
			if targets == nil {
				targets = []interface{}{}
			}
			rec.Set(mm.Attribute, targets)
		}
	}
	return records, nil
}

// chunkFilter splits a key-list filter into filters of at most batchSize
// keys. Other filters come back unchanged.
func (s *SQLStore) chunkFilter(rf resolvedFilter) []resolvedFilter {
	if rf.kind == filterNone || rf.value == nil {
		return []resolvedFilter{rf}
	}
	keys := keyList(rf.value)
	if len(keys) <= s.batchSize {
		return []resolvedFilter{rf}
	}

	var parts []resolvedFilter
	for i := 0; i < len(keys); i += s.batchSize {
		end := i + s.batchSize
		if end > len(keys) {
			end = len(keys)
		}
		part := rf
		part.value = keys[i:end]
		parts = append(parts, part)
	}
	return parts
}

// mergeByPK restores primary key order across chunked results and drops
// records matched by more than one chunk.
func mergeByPK(records []*types.Record) []*types.Record {
	seen := make(map[string]bool, len(records))
	merged := records[:0]
	for _, rec := range records {
		pk, _ := rec.PK()
		key := types.CanonicalKey(pk)
		if seen[key] {
			continue
		}
		seen[key] = true
		merged = append(merged, rec)
	}
	sort.SliceStable(merged, func(i, j int) bool {
		a, _ := merged[i].PK()
		b, _ := merged[j].PK()
		return compareKeys(a, b) < 0
	})
	return merged
}

// selectRecords runs one select and scans its rows into records.
func (s *SQLStore) selectRecords(ctx context.Context, m *schema.Model, query string, args []interface{}) ([]*types.Record, error) {
	rows, err := s.queryer().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query %s failed: %w", m.Type, err)
	}
	defer rows.Close()

	colTypes, err := rows.ColumnTypes()
	if err != nil {
		return nil, fmt.Errorf("failed to get column types for %s: %w", m.Type, err)
	}

	var records []*types.Record
	for rows.Next() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		values := make([]interface{}, len(colTypes))
		valuePtrs := make([]interface{}, len(colTypes))
		for i := range values {
			valuePtrs[i] = &values[i]
		}
		if err := rows.Scan(valuePtrs...); err != nil {
			return nil, fmt.Errorf("failed to scan %s row: %w", m.Type, err)
		}
		for i := range values {
			values[i] = normalizeScanned(values[i], colTypes[i])
		}
		records = append(records, s.recordFromRow(m, values))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating %s rows: %w", m.Type, err)
	}
	return records, nil
}

// selectColumns lists the scalar columns then the FK columns of m.
func selectColumns(m *schema.Model) []string {
	cols := make([]string, 0, len(m.Fields)+len(m.ForeignKeys))
	cols = append(cols, m.Fields...)
	for _, fk := range m.ForeignKeys {
		cols = append(cols, fk.Column)
	}
	return cols
}

// buildSelect renders the query for a resolved filter. ok is false when the
// filter cannot match any row (an empty key list).
func (s *SQLStore) buildSelect(m *schema.Model, rf resolvedFilter) (query string, args []interface{}, ok bool) {
	var b strings.Builder
	fmt.Fprintf(&b, "SELECT %s FROM %s",
		s.dialect.QuoteColumns(selectColumns(m)), s.dialect.QuoteIdentifier(m.Table))

	switch rf.kind {
	case filterPK, filterColumn:
		col := s.dialect.QuoteIdentifier(rf.column)
		if rf.value == nil {
			fmt.Fprintf(&b, " WHERE %s IS NULL", col)
			break
		}
		keys := keyList(rf.value)
		if len(keys) == 0 {
			return "", nil, false
		}
		if len(keys) == 1 {
			fmt.Fprintf(&b, " WHERE %s = %s", col, s.dialect.Placeholder(1))
		} else {
			fmt.Fprintf(&b, " WHERE %s IN (%s)", col, s.dialect.Placeholders(1, len(keys)))
		}
		args = bindArgs(keys)
	case filterManyToMany:
		if rf.value == nil {
			return "", nil, false
		}
		keys := keyList(rf.value)
		if len(keys) == 0 {
			return "", nil, false
		}
		fmt.Fprintf(&b, " WHERE %s IN (SELECT %s FROM %s WHERE %s IN (%s))",
			s.dialect.QuoteIdentifier(m.PrimaryKey),
			s.dialect.QuoteIdentifier(rf.m2m.SourceColumn),
			s.dialect.QuoteIdentifier(rf.m2m.Through),
			s.dialect.QuoteIdentifier(rf.m2m.TargetColumn),
			s.dialect.Placeholders(1, len(keys)))
		args = bindArgs(keys)
	}

	fmt.Fprintf(&b, " ORDER BY %s", s.dialect.QuoteIdentifier(m.PrimaryKey))
	return b.String(), args, true
}

func bindArgs(keys []interface{}) []interface{} {
	args := make([]interface{}, len(keys))
	for i, k := range keys {
		args[i] = toDriverValue(k)
	}
	return args
}

// recordFromRow lays a scanned row out as pk, scalars, FK attributes.
func (s *SQLStore) recordFromRow(m *schema.Model, values []interface{}) *types.Record {
	rec := types.NewRecord()
	rec.Set(types.PKKey, nil)
	for i, f := range m.Fields {
		if f == m.PrimaryKey {
			rec.Set(types.PKKey, values[i])
		}
		rec.Set(f, values[i])
	}
	for i, fk := range m.ForeignKeys {
		rec.Set(fk.Attribute, values[len(m.Fields)+i])
	}
	return rec
}

// loadLinks reads the through table of mm for the given owner keys, in
// chunks of batchSize, and returns target keys per owner, ascending.
func (s *SQLStore) loadLinks(ctx context.Context, mm schema.ManyToMany, pks []interface{}) (map[string][]interface{}, error) {
	src := s.dialect.QuoteIdentifier(mm.SourceColumn)
	dst := s.dialect.QuoteIdentifier(mm.TargetColumn)
	links := make(map[string][]interface{})

	for i := 0; i < len(pks); i += s.batchSize {
		end := i + s.batchSize
		if end > len(pks) {
			end = len(pks)
		}
		chunk := pks[i:end]

		query := fmt.Sprintf("SELECT %s, %s FROM %s WHERE %s IN (%s) ORDER BY %s, %s",
			src, dst, s.dialect.QuoteIdentifier(mm.Through), src,
			s.dialect.Placeholders(1, len(chunk)), src, dst)
		if err := s.scanLinks(ctx, query, bindArgs(chunk), links); err != nil {
			return nil, fmt.Errorf("query failed for %s (chunk %d-%d): %w", mm.Through, i, end, err)
		}
	}

	for _, targets := range links {
		sortKeys(targets)
	}
	return links, nil
}

func (s *SQLStore) scanLinks(ctx context.Context, query string, args []interface{}, links map[string][]interface{}) error {
	rows, err := s.queryer().QueryContext(ctx, query, args...)
	if err != nil {
		return err
	}
	defer rows.Close()

	colTypes, err := rows.ColumnTypes()
	if err != nil {
		return err
	}
	for rows.Next() {
		var owner, target interface{}
		if err := rows.Scan(&owner, &target); err != nil {
			return err
		}
		owner = normalizeScanned(owner, colTypes[0])
		target = normalizeScanned(target, colTypes[1])
		key := types.CanonicalKey(owner)
		links[key] = append(links[key], target)
	}
	return rows.Err()
}

// InsertRows writes rows in the given order inside one transaction. Rows
// whose key already exists are skipped; M2M attributes are written to their
// through tables after every entity row is in place.
func (s *SQLStore) InsertRows(ctx context.Context, rows []Row, opts InsertOptions) (InsertResult, error) {
	var res InsertResult

	// Pin one connection: session settings must apply to the transaction.
	conn := s.conn
	if conn == nil {
		var err error
		conn, err = s.db.Conn(ctx)
		if err != nil {
			return res, fmt.Errorf("failed to get destination connection: %w", err)
		}
		defer conn.Close()
	}

	if opts.DisableForeignKeyChecks {
		disable, enable := s.dialect.DisableForeignKeyChecks()
		s.logger.Debugw("Disabling foreign key checks for load", "statement", disable)
		if _, err := conn.ExecContext(ctx, disable); err != nil {
			return res, fmt.Errorf("failed to disable foreign key checks: %w", err)
		}
		defer func() {
			if _, err := conn.ExecContext(context.Background(), enable); err != nil {
				s.logger.Errorf("Failed to restore foreign key checks: %v", err)
			}
		}()
	}

	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return res, fmt.Errorf("failed to begin destination transaction: %w", err)
	}
	defer func() {
		if tx != nil {
			s.logger.Warn("Rolling back destination transaction due to error")
			if rbErr := tx.Rollback(); rbErr != nil {
				s.logger.Errorf("Failed to rollback transaction: %v", rbErr)
			}
		}
	}()

	for _, row := range rows {
		if err := ctx.Err(); err != nil {
			return res, fmt.Errorf("load interrupted: %w", err)
		}
		m, err := s.registry.Resolve(row.Type)
		if err != nil {
			return res, err
		}
		if _, err := rowPK(m, row.Fields); err != nil {
			return res, err
		}

		binary, err := s.binaryColumns(ctx, tx, m)
		if err != nil {
			return res, err
		}

		cols := selectColumns(m)
		args := make([]interface{}, len(cols))
		for i, f := range m.Fields {
			v, _ := row.Fields.Get(f)
			args[i] = toColumnValue(v, binary[f])
		}
		for i, fk := range m.ForeignKeys {
			v, _ := row.Fields.Get(fk.Attribute)
			args[len(m.Fields)+i] = toColumnValue(v, binary[fk.Column])
		}

		result, err := tx.ExecContext(ctx, s.dialect.InsertIgnore(m.Table, cols), args...)
		if err != nil {
			return res, fmt.Errorf("failed to insert %s row: %w", m.Type, err)
		}
		if affected, _ := result.RowsAffected(); affected == 0 {
			res.Skipped++
		} else {
			res.Rows++
		}
	}

	for _, row := range rows {
		m, _ := s.registry.Resolve(row.Type)
		pk, _ := rowPK(m, row.Fields)
		for _, mm := range m.ManyToMany {
			v, ok := row.Fields.Get(mm.Attribute)
			if !ok || types.IsEmptyKey(v) {
				continue
			}
			for _, target := range keyList(v) {
				written, err := s.insertLink(ctx, tx, mm, pk, target)
				if err != nil {
					return res, fmt.Errorf("failed to link %s.%s: %w", m.Type, mm.Attribute, err)
				}
				if written {
					res.Links++
				}
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return res, fmt.Errorf("failed to commit destination transaction: %w", err)
	}
	tx = nil

	s.logger.Infow("Rows loaded", "rows", res.Rows, "skipped", res.Skipped, "links", res.Links)
	return res, nil
}

// binaryColumns reads the column types of m's table once, from a select that
// matches no row, and returns the columns holding raw bytes.
func (s *SQLStore) binaryColumns(ctx context.Context, q queryer, m *schema.Model) (map[string]bool, error) {
	s.binary.mu.Lock()
	defer s.binary.mu.Unlock()
	if cols, ok := s.binary.tables[m.Table]; ok {
		return cols, nil
	}

	names := selectColumns(m)
	rows, err := q.QueryContext(ctx, fmt.Sprintf("SELECT %s FROM %s WHERE 1 = 0",
		s.dialect.QuoteColumns(names), s.dialect.QuoteIdentifier(m.Table)))
	if err != nil {
		return nil, fmt.Errorf("failed to read column types of %s: %w", m.Table, err)
	}
	defer rows.Close()

	colTypes, err := rows.ColumnTypes()
	if err != nil {
		return nil, fmt.Errorf("failed to read column types of %s: %w", m.Table, err)
	}
	cols := make(map[string]bool)
	for i, ct := range colTypes {
		if i < len(names) && isBinaryType(strings.ToUpper(ct.DatabaseTypeName())) {
			cols[names[i]] = true
		}
	}
	s.binary.tables[m.Table] = cols
	return cols, nil
}

// insertLink writes one through-table row unless it already exists. Through
// tables may carry a surrogate key, so the existence check is explicit.
func (s *SQLStore) insertLink(ctx context.Context, tx *sql.Tx, mm schema.ManyToMany, owner, target interface{}) (bool, error) {
	src := s.dialect.QuoteIdentifier(mm.SourceColumn)
	dst := s.dialect.QuoteIdentifier(mm.TargetColumn)
	through := s.dialect.QuoteIdentifier(mm.Through)
	ownerArg, targetArg := toDriverValue(owner), toDriverValue(target)

	var one int
	err := tx.QueryRowContext(ctx,
		fmt.Sprintf("SELECT 1 FROM %s WHERE %s = %s AND %s = %s",
			through, src, s.dialect.Placeholder(1), dst, s.dialect.Placeholder(2)),
		ownerArg, targetArg).Scan(&one)
	switch {
	case err == nil:
		return false, nil
	case !errors.Is(err, sql.ErrNoRows):
		return false, err
	}

	_, err = tx.ExecContext(ctx,
		fmt.Sprintf("INSERT INTO %s (%s, %s) VALUES (%s)", through, src, dst, s.dialect.Placeholders(1, 2)),
		ownerArg, targetArg)
	return err == nil, err
}
