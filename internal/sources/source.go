// Package sources adapts catalog entries to a single capability contract
// and matches them against a topic within a window.
package sources

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"lifesignal/internal/catalog"
	"lifesignal/internal/storage"
	"lifesignal/internal/window"
)

// DayValue is the matched activity on one calendar day.
type DayValue struct {
	Day     time.Time `json:"day"`
	Records int       `json:"records"`
	Volume  float64   `json:"volume"`
}

// Aggregate is what a source reports for one window: totals plus the
// active days with their per-day totals, sorted by day.
type Aggregate struct {
	RecordCount int
	Volume      float64
	Days        []DayValue
}

// ActiveDays returns the sorted active days.
func (a Aggregate) ActiveDays() []time.Time {
	out := make([]time.Time, len(a.Days))
	for i, d := range a.Days {
		out[i] = d.Day
	}
	return out
}

// Source is one enabled data source. Implementations adapt their own column
// semantics (duration, completions, steps) to Aggregate.
type Source interface {
	ID() string
	Kind() catalog.Kind
	Unit() string
	MomentumBasis() catalog.Basis
	// FetchMatchingAggregate returns activity in w whose searchable text
	// contains any keyword. A nil keyword list matches every record.
	FetchMatchingAggregate(ctx context.Context, w window.Window, keywords []string) (Aggregate, error)
}

// Querier is the storage surface SQLSource needs.
type Querier interface {
	Aggregate(ctx context.Context, q storage.AggregateQuery) ([]storage.PeriodRow, error)
	TableExists(ctx context.Context, table string) (bool, error)
}

// SQLSource serves one catalog entry from a relational store.
type SQLSource struct {
	entry    catalog.Entry
	db       Querier
	rowLimit int
}

// NewSQLSource adapts entry. rowLimit caps returned day rows; 0 disables it.
func NewSQLSource(entry catalog.Entry, db Querier, rowLimit int) *SQLSource {
	return &SQLSource{entry: entry, db: db, rowLimit: rowLimit}
}

// FromCatalog adapts every entry, preserving order.
func FromCatalog(entries []catalog.Entry, db Querier, rowLimit int) []Source {
	out := make([]Source, 0, len(entries))
	for _, e := range entries {
		out = append(out, NewSQLSource(e, db, rowLimit))
	}
	return out
}

func (s *SQLSource) ID() string { return s.entry.ID }
func (s *SQLSource) Kind() catalog.Kind { return s.entry.Kind }
func (s *SQLSource) Unit() string { return s.entry.Metric.Unit }
func (s *SQLSource) MomentumBasis() catalog.Basis { return s.entry.MomentumBasis }
func (s *SQLSource) Entry() catalog.Entry { return s.entry }

// Reachable reports whether the backing table exists.
func (s *SQLSource) Reachable(ctx context.Context) (bool, error) {
	return s.db.TableExists(ctx, s.entry.Table)
}

// FetchMatchingAggregate implements Source.
func (s *SQLSource) FetchMatchingAggregate(ctx context.Context, w window.Window, keywords []string) (Aggregate, error) {
	if !w.Valid() {
		return Aggregate{}, fmt.Errorf("invalid window %s", w)
	}

	q := storage.AggregateQuery{
		Table:           s.entry.Table,
		TimestampColumn: s.entry.TimestampColumn,
		Where:           s.entry.Where,
		Metric:          storage.MetricKind(s.entry.Metric.Kind),
		MetricColumn:    s.entry.Metric.Column,
		Start:           w.Start,
		End:             w.End,
		Granularity:     storage.Day,
		Limit:           s.rowLimit,
	}

	if len(keywords) > 0 && !s.labelMatches(keywords) {
		if len(s.entry.SearchColumns) == 0 {
			// Nothing searchable and no label hit: no record can match,
			// provided the table is there at all.
			ok, err := s.db.TableExists(ctx, s.entry.Table)
			if err != nil {
				return Aggregate{}, err
			}
			if !ok {
				return Aggregate{}, fmt.Errorf("no such table: %s", s.entry.Table)
			}
			return Aggregate{}, nil
		}
		q.TextColumns = s.entry.SearchColumns
		q.Keywords = keywords
	}

	rows, err := s.db.Aggregate(ctx, q)
	if err != nil {
		return Aggregate{}, err
	}
	return aggregateFromRows(rows, w)
}

// labelMatches reports whether any keyword names the whole source.
func (s *SQLSource) labelMatches(keywords []string) bool {
	for _, label := range s.entry.Labels {
		for _, kw := range keywords {
			if strings.EqualFold(label, kw) {
				return true
			}
		}
	}
	return false
}

// aggregateFromRows folds day rows into an Aggregate. Rows whose day falls
// outside w (offset timestamps near the edges) are dropped.
func aggregateFromRows(rows []storage.PeriodRow, w window.Window) (Aggregate, error) {
	var agg Aggregate
	for _, r := range rows {
		day, err := time.Parse(window.DateLayout, r.Period)
		if err != nil {
			return Aggregate{}, fmt.Errorf("unexpected day %q: %w", r.Period, err)
		}
		if r.Records <= 0 || !w.Contains(day) {
			continue
		}
		agg.RecordCount += r.Records
		agg.Volume += r.Volume
		agg.Days = append(agg.Days, DayValue{Day: day, Records: r.Records, Volume: r.Volume})
	}
	sort.Slice(agg.Days, func(i, j int) bool { return agg.Days[i].Day.Before(agg.Days[j].Day) })
	return agg, nil
}
