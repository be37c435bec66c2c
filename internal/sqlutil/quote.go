// Package sqlutil provides dialect-aware SQL building helpers for gofixture.
package sqlutil

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
)

// Dialect selects quoting, placeholder and idempotent insert syntax.
type Dialect string

const (
	MySQL    Dialect = "mysql"
	Postgres Dialect = "postgres"
	SQLite   Dialect = "sqlite"
)

// ParseDialect maps a configured driver name to a dialect. The database/sql
// driver names are accepted too.
func ParseDialect(name string) (Dialect, error) {
	switch strings.ToLower(name) {
	case "mysql":
		return MySQL, nil
	case "postgres", "postgresql", "pgx":
		return Postgres, nil
	case "sqlite", "sqlite3":
		return SQLite, nil
	default:
		return "", fmt.Errorf("unsupported dialect %q (must be mysql, postgres or sqlite)", name)
	}
}

// QuoteIdentifier quotes a table or column name. MySQL uses backticks,
// PostgreSQL and SQLite use double quotes; embedded quote characters are doubled.
// Example: MySQL "my`table" -> "`my``table`"
// Example: Postgres `my"table` -> `"my""table"`
func (d Dialect) QuoteIdentifier(name string) string {
	switch d {
	case MySQL:
		return "`" + strings.ReplaceAll(name, "`", "``") + "`"
	case Postgres:
		return pgx.Identifier{name}.Sanitize()
	default:
		return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
	}
}

// QuoteIdentifierSafe validates then quotes an identifier.
func (d Dialect) QuoteIdentifierSafe(name string) (string, error) {
	if !IsValidIdentifier(name) {
		return "", &InvalidIdentifierError{Name: name}
	}
	return d.QuoteIdentifier(name), nil
}

// Placeholder returns the bind parameter for the n-th argument (1-based).
func (d Dialect) Placeholder(n int) string {
	if d == Postgres {
		return "$" + strconv.Itoa(n)
	}
	return "?"
}

// Placeholders returns count comma-separated placeholders numbered from start.
func (d Dialect) Placeholders(start, count int) string {
	parts := make([]string, count)
	for i := range parts {
		parts[i] = d.Placeholder(start + i)
	}
	return strings.Join(parts, ", ")
}

// QuoteColumns quotes and joins column names.
func (d Dialect) QuoteColumns(cols []string) string {
	quoted := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = d.QuoteIdentifier(c)
	}
	return strings.Join(quoted, ", ")
}

// InsertIgnore builds an insert that silently skips rows whose key already
// exists, so re-inserting a duplicated fixture entry is a no-op.
func (d Dialect) InsertIgnore(table string, cols []string) string {
	base := fmt.Sprintf("%s INTO %s (%s) VALUES (%s)",
		d.insertVerb(), d.QuoteIdentifier(table), d.QuoteColumns(cols), d.Placeholders(1, len(cols)))
	if d == MySQL {
		return base
	}
	return base + " ON CONFLICT DO NOTHING"
}

func (d Dialect) insertVerb() string {
	if d == MySQL {
		return "INSERT IGNORE"
	}
	return "INSERT"
}

// DisableForeignKeyChecks returns the session statement that turns off
// referential checks, and the one restoring them.
func (d Dialect) DisableForeignKeyChecks() (disable, enable string) {
	switch d {
	case MySQL:
		return "SET FOREIGN_KEY_CHECKS=0", "SET FOREIGN_KEY_CHECKS=1"
	case SQLite:
		return "PRAGMA foreign_keys = OFF", "PRAGMA foreign_keys = ON"
	default:
		return "SET session_replication_role = replica", "SET session_replication_role = DEFAULT"
	}
}

// validIdentifierRegex restricts identifiers to alphanumerics and underscore.
var validIdentifierRegex = regexp.MustCompile("^[a-zA-Z0-9_]+$")

// IsValidIdentifier checks that a name only contains alphanumeric characters
// and underscores.
func IsValidIdentifier(name string) bool {
	return validIdentifierRegex.MatchString(name)
}

// InvalidIdentifierError is returned when an identifier contains invalid characters.
type InvalidIdentifierError struct {
	Name string
}

func (e *InvalidIdentifierError) Error() string {
	return "invalid identifier: " + e.Name + " (must contain only alphanumeric characters and underscores)"
}
