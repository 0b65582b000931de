package storage

import (
	"fmt"
	"strconv"
	"time"
)

// Granularity is the period an aggregate groups by.
type Granularity string

const (
	Day     Granularity = "day"
	ISOWeek Granularity = "iso_week"
	Month   Granularity = "month"
)

// Dialect isolates the SQL differences between supported drivers.
type Dialect interface {
	// Name is the database/sql driver name.
	Name() string
	// Placeholder returns the n-th (1-based) bind marker.
	Placeholder(n int) string
	// Period renders a grouping expression over a timestamp column.
	Period(column string, g Granularity) (string, error)
	// Fold lower-cases a text expression the same way strings.ToLower does.
	Fold(expr string) string
	// BindDate converts a civil date into a range-bound argument.
	BindDate(d time.Time) any
	// TableExistsQuery takes one table-name argument and returns a row when it exists.
	TableExistsQuery() string
	// Column types used by schema creation.
	TimestampType() string
	BoolType() string
	RealType() string
}

// DialectFor returns the dialect of a driver name.
func DialectFor(driver string) (Dialect, error) {
	switch driver {
	case "sqlite", "":
		return sqliteDialect{}, nil
	case "postgres":
		return postgresDialect{}, nil
	default:
		return nil, fmt.Errorf("unsupported storage driver %q", driver)
	}
}

type sqliteDialect struct{}

func (sqliteDialect) Name() string { return "sqlite" }

func (sqliteDialect) Placeholder(int) string { return "?" }

func (sqliteDialect) Period(column string, g Granularity) (string, error) {
	switch g {
	case Day, "":
		return "date(" + column + ")", nil
	case ISOWeek:
		return "strftime('%G-W%V', " + column + ")", nil
	case Month:
		return "strftime('%Y-%m', " + column + ")", nil
	}
	return "", fmt.Errorf("unsupported granularity %q", g)
}

func (sqliteDialect) Fold(expr string) string { return foldFunc + "(" + expr + ")" }

// BindDate uses ISO text so comparisons work against TEXT timestamps.
func (sqliteDialect) BindDate(d time.Time) any { return d.Format("2006-01-02") }

func (sqliteDialect) TableExistsQuery() string {
	return "SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?"
}

func (sqliteDialect) TimestampType() string { return "TEXT" }
func (sqliteDialect) BoolType() string      { return "INTEGER" }
func (sqliteDialect) RealType() string      { return "REAL" }

type postgresDialect struct{}

func (postgresDialect) Name() string { return "postgres" }

func (postgresDialect) Placeholder(n int) string { return "$" + strconv.Itoa(n) }

func (postgresDialect) Period(column string, g Granularity) (string, error) {
	switch g {
	case Day, "":
		return "to_char(" + column + ", 'YYYY-MM-DD')", nil
	case ISOWeek:
		return "to_char(" + column + `, 'IYYY-"W"IW')`, nil
	case Month:
		return "to_char(" + column + ", 'YYYY-MM')", nil
	}
	return "", fmt.Errorf("unsupported granularity %q", g)
}

func (postgresDialect) Fold(expr string) string { return "LOWER(" + expr + ")" }

func (postgresDialect) BindDate(d time.Time) any { return d }

func (postgresDialect) TableExistsQuery() string {
	return "SELECT table_name FROM information_schema.tables WHERE table_schema = current_schema() AND table_name = $1"
}

func (postgresDialect) TimestampType() string { return "TIMESTAMP" }
func (postgresDialect) BoolType() string      { return "BOOLEAN" }
func (postgresDialect) RealType() string      { return "DOUBLE PRECISION" }
