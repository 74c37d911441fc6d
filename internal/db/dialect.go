package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/lib/pq"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// Supported values of Config.Driver.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

type violationKind int

const (
	violationUnique violationKind = iota + 1
	violationForeignKey
)

// violation is an integrity failure reported by the driver. Detail holds the
// constraint name (Postgres) or the driver message (SQLite), which both name
// the offending column.
type violation struct {
	kind   violationKind
	detail string
}

func (v violation) mentions(column string) bool {
	return strings.Contains(v.detail, column)
}

// dialect hides the differences between the supported drivers. Queries are
// written with ? placeholders and rebound per driver.
type dialect struct {
	driver string
}

func newDialect(driver string) (dialect, error) {
	switch driver {
	case DriverPostgres, DriverSQLite:
		return dialect{driver: driver}, nil
	}
	return dialect{}, fmt.Errorf("unsupported database driver %q", driver)
}

// rebind rewrites ? placeholders into $1..$n for Postgres.
func (d dialect) rebind(query string) string {
	if d.driver != DriverPostgres {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// classify reports whether err is an integrity violation.
func (d dialect) classify(err error) (violation, bool) {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case "23505":
			return violation{kind: violationUnique, detail: pqErr.Constraint}, true
		case "23503":
			return violation{kind: violationForeignKey, detail: pqErr.Constraint}, true
		}
		return violation{}, false
	}

	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		switch liteErr.Code() {
		case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
			return violation{kind: violationUnique, detail: liteErr.Error()}, true
		case sqlite3.SQLITE_CONSTRAINT_FOREIGNKEY:
			return violation{kind: violationForeignKey, detail: liteErr.Error()}, true
		}
	}
	return violation{}, false
}

// sqliteDSN adds the connection settings the schema depends on unless the
// URL already sets them: enforced foreign keys (every cascade relies on
// them), a busy timeout and immediate write transactions, so concurrent
// writers wait for each other instead of failing to upgrade a read lock.
func sqliteDSN(url string) string {
	var params []string
	if !strings.Contains(url, "foreign_keys") {
		params = append(params, "_pragma=foreign_keys(1)")
	}
	if !strings.Contains(url, "busy_timeout") {
		params = append(params, "_pragma=busy_timeout(5000)")
	}
	if !strings.Contains(url, "_txlock") {
		params = append(params, "_txlock=immediate")
	}
	if len(params) == 0 {
		return url
	}

	sep := "?"
	if strings.Contains(url, "?") {
		sep = "&"
	}
	return url + sep + strings.Join(params, "&")
}

func checkForeignKeys(ctx context.Context, db *sql.DB) error {
	var enabled int
	if err := db.QueryRowContext(ctx, `PRAGMA foreign_keys`).Scan(&enabled); err != nil {
		return fmt.Errorf("failed to read sqlite foreign_keys: %w", err)
	}
	if enabled != 1 {
		return errors.New("sqlite foreign keys are disabled, remove foreign_keys(0) from the database URL")
	}
	return nil
}
