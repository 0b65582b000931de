// Package catalog describes the enabled activity sources: which table each
// reads, which columns carry searchable text and how its volume is measured.
package catalog

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	lserrors "lifesignal/internal/errors"
)

// Kind classifies a source.
type Kind string

const (
	KindTask   Kind = "task"
	KindHabit  Kind = "habit"
	KindTime   Kind = "time"
	KindHealth Kind = "health"
)

// MetricKind says how volume is computed from matching rows.
type MetricKind string

const (
	// MetricCount counts rows.
	MetricCount MetricKind = "count"
	// MetricSum sums Metric.Column.
	MetricSum MetricKind = "sum"
)

// Basis selects what momentum compares for a source.
type Basis string

const (
	BasisVolume Basis = "volume"
	BasisCount  Basis = "count"
)

// Metric describes the volume of a source.
type Metric struct {
	Kind   MetricKind `toml:"kind" json:"kind"`
	Column string     `toml:"column,omitempty" json:"column,omitempty"`
	Unit   string     `toml:"unit" json:"unit"`
}

// Entry is one source definition.
type Entry struct {
	ID              string   `toml:"id" json:"id"`
	Name            string   `toml:"name" json:"name"`
	Kind            Kind     `toml:"kind" json:"kind"`
	Table           string   `toml:"table" json:"table"`
	TimestampColumn string   `toml:"timestamp_column" json:"timestampColumn"`
	SearchColumns   []string `toml:"search_columns,omitempty" json:"searchColumns,omitempty"`
	// Labels are words that describe the whole source. A keyword equal to
	// a label matches every record in the window.
	Labels        []string `toml:"labels,omitempty" json:"labels,omitempty"`
	Where         string   `toml:"where,omitempty" json:"where,omitempty"`
	Metric        Metric   `toml:"metric" json:"metric"`
	MomentumBasis Basis    `toml:"momentum_basis" json:"momentumBasis"`
}

var identPattern = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// Validate checks the entry. Identifiers are interpolated into SQL, so
// they are restricted to lower-case snake case.
func (e Entry) Validate() error {
	invalid := func(format string, args ...any) error {
		return lserrors.New(lserrors.CatalogInvalid, fmt.Sprintf("source %q: "+format, append([]any{e.ID}, args...)...), nil)
	}

	if !identPattern.MatchString(e.ID) {
		return invalid("id must match %s", identPattern)
	}
	switch e.Kind {
	case KindTask, KindHabit, KindTime, KindHealth:
	default:
		return invalid("unknown kind %q", e.Kind)
	}
	if !identPattern.MatchString(e.Table) {
		return invalid("table %q is not a plain identifier", e.Table)
	}
	if !identPattern.MatchString(e.TimestampColumn) {
		return invalid("timestamp_column %q is not a plain identifier", e.TimestampColumn)
	}
	for _, c := range e.SearchColumns {
		if !identPattern.MatchString(c) {
			return invalid("search column %q is not a plain identifier", c)
		}
	}
	if len(e.SearchColumns) == 0 && len(e.Labels) == 0 {
		return invalid("needs search_columns or labels")
	}
	if strings.ContainsAny(e.Where, ";") || strings.Contains(e.Where, "--") {
		return invalid("where clause must be a single expression")
	}
	switch e.Metric.Kind {
	case MetricCount:
	case MetricSum:
		if !identPattern.MatchString(e.Metric.Column) {
			return invalid("sum metric needs a plain column, got %q", e.Metric.Column)
		}
	default:
		return invalid("unknown metric kind %q", e.Metric.Kind)
	}
	if strings.TrimSpace(e.Metric.Unit) == "" {
		return invalid("metric unit is required")
	}
	switch e.MomentumBasis {
	case BasisVolume, BasisCount:
	default:
		return invalid("unknown momentum_basis %q", e.MomentumBasis)
	}
	return nil
}

// withDefaults fills optional fields.
func (e Entry) withDefaults() Entry {
	if e.Name == "" {
		e.Name = e.ID
	}
	if e.MomentumBasis == "" {
		if e.Metric.Kind == MetricCount {
			e.MomentumBasis = BasisCount
		} else {
			e.MomentumBasis = BasisVolume
		}
	}
	return e
}

// Catalog is an immutable, ID-ordered set of entries.
type Catalog struct {
	entries []Entry
	byID    map[string]int
}

// New validates entries and builds a catalog. Duplicate IDs are rejected.
func New(entries []Entry) (*Catalog, error) {
	c := &Catalog{byID: make(map[string]int, len(entries))}
	for _, e := range entries {
		e = e.withDefaults()
		if err := e.Validate(); err != nil {
			return nil, err
		}
		if _, dup := c.byID[e.ID]; dup {
			return nil, lserrors.New(lserrors.CatalogInvalid, fmt.Sprintf("duplicate source id %q", e.ID), nil)
		}
		c.byID[e.ID] = len(c.entries)
		c.entries = append(c.entries, e)
	}
	sort.Slice(c.entries, func(i, j int) bool { return c.entries[i].ID < c.entries[j].ID })
	for i, e := range c.entries {
		c.byID[e.ID] = i
	}
	return c, nil
}

// Entries returns all entries ordered by ID.
func (c *Catalog) Entries() []Entry {
	out := make([]Entry, len(c.entries))
	copy(out, c.entries)
	return out
}

// Get looks up an entry by ID.
func (c *Catalog) Get(id string) (Entry, bool) {
	i, ok := c.byID[id]
	if !ok {
		return Entry{}, false
	}
	return c.entries[i], true
}

// Enabled returns the entries named in ids, ordered by ID. An empty list
// enables every entry. Unknown IDs are a configuration error.
func (c *Catalog) Enabled(ids []string) ([]Entry, error) {
	if len(ids) == 0 {
		return c.Entries(), nil
	}
	want := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if _, ok := c.byID[id]; !ok {
			return nil, lserrors.New(lserrors.ConfigInvalid, fmt.Sprintf("sources.enabled names unknown source %q", id), nil)
		}
		want[id] = struct{}{}
	}
	out := make([]Entry, 0, len(want))
	for _, e := range c.entries {
		if _, ok := want[e.ID]; ok {
			out = append(out, e)
		}
	}
	return out, nil
}

// IsEnabled reports whether id is enabled under ids.
func IsEnabled(ids []string, id string) bool {
	if len(ids) == 0 {
		return true
	}
	for _, x := range ids {
		if strings.TrimSpace(x) == id {
			return true
		}
	}
	return false
}
