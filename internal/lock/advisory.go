// Package lock provides database advisory locks that serialize gofixture
// loads into the same destination.
package lock

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"hash/fnv"
	"strings"
	"time"

	"github.com/dbsmedya/gofixture/internal/sqlutil"
)

// ErrLockTimeout is returned when lock acquisition times out because
// another instance is holding the lock.
var ErrLockTimeout = errors.New("lock acquisition timed out")

// Common timeout values for lock acquisition (in seconds).
const (
	// TimeoutImmediate returns immediately if lock cannot be acquired (no wait).
	TimeoutImmediate = 0

	// TimeoutShort is suitable for fast-failing duplicate load detection.
	TimeoutShort = 1

	// TimeoutMedium queues behind a short load.
	TimeoutMedium = 10
)

// pollInterval spaces PostgreSQL try-lock attempts.
var pollInterval = 100 * time.Millisecond

// AdvisoryLock is a named session lock. MySQL uses GET_LOCK, PostgreSQL
// pg_try_advisory_lock on a hash of the name. SQLite serializes writers on
// its own, so the lock always succeeds there.
//
// Session locks belong to one connection, so the lock pins a connection
// from the pool until it is released.
type AdvisoryLock struct {
	db       *sql.DB
	dialect  sqlutil.Dialect
	lockName string
	conn     *sql.Conn
	held     bool
}

// NewAdvisoryLock creates a new advisory lock with the given name.
// The lock is not acquired until AcquireLock is called.
func NewAdvisoryLock(db *sql.DB, dialect sqlutil.Dialect, lockName string) *AdvisoryLock {
	return &AdvisoryLock{
		db:       db,
		dialect:  dialect,
		lockName: lockName,
	}
}

// AcquireLock attempts to acquire the lock, waiting up to timeoutSeconds.
// It returns false without error when another session holds the lock.
//
// MySQL GET_LOCK() return values:
//   - 1: Lock was obtained successfully
//   - 0: Timeout was reached without obtaining the lock
//   - NULL: An error occurred (e.g., out of memory, thread killed)
func (a *AdvisoryLock) AcquireLock(ctx context.Context, timeoutSeconds int) (bool, error) {
	if a.held {
		return true, nil
	}
	if a.dialect == sqlutil.SQLite {
		a.held = true
		return true, nil
	}

	conn, err := a.db.Conn(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to reserve lock connection: %w", err)
	}

	var acquired bool
	switch a.dialect {
	case sqlutil.Postgres:
		acquired, err = a.acquirePostgres(ctx, conn, timeoutSeconds)
	default:
		acquired, err = a.acquireMySQL(ctx, conn, timeoutSeconds)
	}
	if err != nil || !acquired {
		_ = conn.Close()
		return false, err
	}

	a.conn = conn
	a.held = true
	return true, nil
}

func (a *AdvisoryLock) acquireMySQL(ctx context.Context, conn *sql.Conn, timeoutSeconds int) (bool, error) {
	var result sql.NullInt64
	if err := conn.QueryRowContext(ctx, "SELECT GET_LOCK(?, ?)", a.lockName, timeoutSeconds).Scan(&result); err != nil {
		return false, fmt.Errorf("failed to execute GET_LOCK: %w", err)
	}
	if !result.Valid {
		return false, fmt.Errorf("GET_LOCK returned NULL for lock %q (possible database error)", a.lockName)
	}

	switch result.Int64 {
	case 1:
		return true, nil
	case 0:
		return false, nil
	default:
		return false, fmt.Errorf("unexpected GET_LOCK return value: %d", result.Int64)
	}
}

func (a *AdvisoryLock) acquirePostgres(ctx context.Context, conn *sql.Conn, timeoutSeconds int) (bool, error) {
	deadline := time.Now().Add(time.Duration(timeoutSeconds) * time.Second)
	for {
		var ok bool
		if err := conn.QueryRowContext(ctx, "SELECT pg_try_advisory_lock($1)", a.Key()).Scan(&ok); err != nil {
			return false, fmt.Errorf("failed to execute pg_try_advisory_lock: %w", err)
		}
		if ok {
			return true, nil
		}
		if !time.Now().Before(deadline) {
			return false, nil
		}

		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case <-time.After(pollInterval):
		}
	}
}

// ReleaseLock releases the lock and returns its connection to the pool.
// It reports false when the lock was not held.
func (a *AdvisoryLock) ReleaseLock(ctx context.Context) (bool, error) {
	if !a.held {
		return false, nil
	}
	a.held = false
	if a.conn == nil {
		return true, nil
	}

	conn := a.conn
	a.conn = nil
	defer conn.Close()

	var released sql.NullBool
	var err error
	switch a.dialect {
	case sqlutil.Postgres:
		err = conn.QueryRowContext(ctx, "SELECT pg_advisory_unlock($1)", a.Key()).Scan(&released)
	default:
		err = conn.QueryRowContext(ctx, "SELECT RELEASE_LOCK(?)", a.lockName).Scan(&released)
	}
	if err != nil {
		return false, fmt.Errorf("failed to release lock %q: %w", a.lockName, err)
	}
	if !released.Valid {
		return false, fmt.Errorf("release of lock %q returned NULL (lock did not exist)", a.lockName)
	}
	return released.Bool, nil
}

// IsHeld returns true if this lock is currently held by this instance.
func (a *AdvisoryLock) IsHeld() bool {
	return a.held
}

// LockName returns the name of the advisory lock.
func (a *AdvisoryLock) LockName() string {
	return a.lockName
}

// Key is the PostgreSQL advisory key derived from the lock name.
func (a *AdvisoryLock) Key() int64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(a.lockName))
	return int64(h.Sum64())
}

// Conn returns the connection pinned by the held lock, or nil when no
// connection is pinned (SQLite, or the lock is not held).
func (a *AdvisoryLock) Conn() *sql.Conn {
	return a.conn
}

// WithLock runs fn while holding the lock. The lock is released even if fn
// panics. fn receives the pinned lock connection (nil for SQLite); work done
// under the lock should run on it, since the pool may have no other
// connection to give.
func (a *AdvisoryLock) WithLock(ctx context.Context, timeoutSeconds int, fn func(conn *sql.Conn) error) error {
	acquired, err := a.AcquireLock(ctx, timeoutSeconds)
	if err != nil {
		return fmt.Errorf("failed to acquire lock: %w", err)
	}
	if !acquired {
		return fmt.Errorf("%w: lock %q is held by another instance", ErrLockTimeout, a.lockName)
	}

	defer func() {
		// Release outside ctx, which may already be cancelled
		releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_, _ = a.ReleaseLock(releaseCtx)
	}()

	return fn(a.conn)
}

// GenerateLoadLockName names the lock guarding loads into one database:
// "gofixture:load:{database}".
func GenerateLoadLockName(database string) string {
	sanitized := strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '_' || r == '-' {
			return r
		}
		return '_'
	}, database)

	return fmt.Sprintf("gofixture:load:%s", sanitized)
}

// WithLoadLock runs fn while holding the load lock of database.
func WithLoadLock(ctx context.Context, db *sql.DB, dialect sqlutil.Dialect, database string, timeoutSeconds int, fn func(conn *sql.Conn) error) error {
	return NewAdvisoryLock(db, dialect, GenerateLoadLockName(database)).WithLock(ctx, timeoutSeconds, fn)
}
