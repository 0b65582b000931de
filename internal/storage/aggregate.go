package storage

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// MetricKind selects the volume expression.
type MetricKind string

const (
	CountRows MetricKind = "count"
	SumColumn MetricKind = "sum"
)

// AggregateQuery asks for per-period totals of matching rows in [Start, End).
// Table and column names must be validated identifiers.
type AggregateQuery struct {
	Table           string
	TimestampColumn string
	// TextColumns are searched case-insensitively for any keyword.
	// When Keywords is empty no text filter is applied.
	TextColumns []string
	Keywords    []string
	// Where is an extra trusted SQL predicate from the catalog.
	Where        string
	Metric       MetricKind
	MetricColumn string
	Start        time.Time
	End          time.Time
	Granularity  Granularity
	// Limit caps returned periods, keeping the most recent; 0 means no cap.
	Limit int
}

// PeriodRow is one aggregated period.
type PeriodRow struct {
	Period  string
	Records int
	Volume  float64
}

// Build renders the query and its arguments for dialect d.
func (q AggregateQuery) Build(d Dialect) (string, []any, error) {
	if q.Table == "" || q.TimestampColumn == "" {
		return "", nil, fmt.Errorf("aggregate query needs a table and timestamp column")
	}
	if len(q.Keywords) > 0 && len(q.TextColumns) == 0 {
		return "", nil, fmt.Errorf("aggregate query has keywords but no text columns")
	}
	period, err := d.Period(q.TimestampColumn, q.Granularity)
	if err != nil {
		return "", nil, err
	}

	var volume string
	switch q.Metric {
	case CountRows, "":
		volume = "COUNT(*)"
	case SumColumn:
		if q.MetricColumn == "" {
			return "", nil, fmt.Errorf("sum metric needs a column")
		}
		volume = "COALESCE(SUM(" + q.MetricColumn + "), 0)"
	default:
		return "", nil, fmt.Errorf("unsupported metric %q", q.Metric)
	}

	var args []any
	bind := func(v any) string {
		args = append(args, v)
		return d.Placeholder(len(args))
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "SELECT %s AS period, COUNT(*) AS records, %s AS volume FROM %s", period, volume, q.Table)
	fmt.Fprintf(&sb, " WHERE %s >= %s AND %s < %s", q.TimestampColumn, bind(d.BindDate(q.Start)), q.TimestampColumn, bind(d.BindDate(q.End)))
	if w := strings.TrimSpace(q.Where); w != "" {
		sb.WriteString(" AND (" + w + ")")
	}
	if len(q.Keywords) > 0 {
		var ors []string
		for _, kw := range q.Keywords {
			pattern := "%" + escapeLike(strings.ToLower(kw)) + "%"
			for _, col := range q.TextColumns {
				ors = append(ors, fmt.Sprintf("%s LIKE %s ESCAPE '\\'", d.Fold("COALESCE("+col+", '')"), bind(pattern)))
			}
		}
		sb.WriteString(" AND (" + strings.Join(ors, " OR ") + ")")
	}
	if q.Limit <= 0 {
		sb.WriteString(" GROUP BY 1 ORDER BY 1")
		return sb.String(), args, nil
	}
	// Keep the most recent periods: streaks and presence are read from the
	// end of the window.
	fmt.Fprintf(&sb, " GROUP BY 1 ORDER BY 1 DESC LIMIT %d", q.Limit)
	return "SELECT period, records, volume FROM (" + sb.String() + ") AS recent ORDER BY period", args, nil
}

// escapeLike escapes LIKE wildcards so keywords match literally.
func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

// Aggregate runs q and returns rows ordered by period.
func (db *DB) Aggregate(ctx context.Context, q AggregateQuery) ([]PeriodRow, error) {
	query, args, err := q.Build(db.dialect)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []PeriodRow
	for rows.Next() {
		var (
			period  *string
			records int
			volume  float64
		)
		if err := rows.Scan(&period, &records, &volume); err != nil {
			return nil, err
		}
		if period == nil {
			// Timestamps the date functions cannot parse.
			continue
		}
		out = append(out, PeriodRow{Period: *period, Records: records, Volume: volume})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	db.logger.Debug("aggregate query", "table", q.Table, "periods", len(out), "keywords", len(q.Keywords), "duration", time.Since(start))
	if q.Limit > 0 && len(out) == q.Limit {
		db.logger.Warn("aggregate hit row limit", "table", q.Table, "limit", q.Limit)
	}
	return out, nil
}
