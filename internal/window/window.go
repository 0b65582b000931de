// Package window resolves window tokens and explicit periods into
// half-open civil-date ranges anchored at an injected reference day.
package window

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	lserrors "lifesignal/internal/errors"
)

// DateLayout is the wire format of window boundaries.
const DateLayout = "2006-01-02"

const day = 24 * time.Hour

// Window is a half-open range [Start, End) of civil dates. Both bounds are
// UTC midnights.
type Window struct {
	Start time.Time
	End   time.Time
}

// New builds a window from two civil dates, truncating any time of day.
func New(start, end time.Time) (Window, error) {
	w := Window{Start: civil(start), End: civil(end)}
	if !w.Valid() {
		return Window{}, lserrors.NewInvalidWindow(fmt.Sprintf("window start %s is not before end %s", w.Start.Format(DateLayout), w.End.Format(DateLayout)))
	}
	return w, nil
}

// Valid reports whether Start < End.
func (w Window) Valid() bool {
	return w.Start.Before(w.End)
}

// SpanDays returns the number of calendar days in the window.
func (w Window) SpanDays() int {
	return int(w.End.Sub(w.Start) / day)
}

// Contains reports whether the civil date d falls inside [Start, End).
func (w Window) Contains(d time.Time) bool {
	d = civil(d)
	return !d.Before(w.Start) && d.Before(w.End)
}

// LastDay is the final included date, End minus one day.
func (w Window) LastDay() time.Time {
	return w.End.Add(-day)
}

// Days lists every date in the window in ascending order.
func (w Window) Days() []time.Time {
	out := make([]time.Time, 0, w.SpanDays())
	for d := w.Start; d.Before(w.End); d = d.Add(day) {
		out = append(out, d)
	}
	return out
}

// Shift moves both bounds by n days.
func (w Window) Shift(n int) Window {
	return Window{Start: w.Start.AddDate(0, 0, n), End: w.End.AddDate(0, 0, n)}
}

// String renders the window as [start, end).
func (w Window) String() string {
	return "[" + w.Start.Format(DateLayout) + ", " + w.End.Format(DateLayout) + ")"
}

type windowJSON struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// MarshalJSON encodes the window as {"start":"YYYY-MM-DD","end":"YYYY-MM-DD"}.
func (w Window) MarshalJSON() ([]byte, error) {
	return json.Marshal(windowJSON{Start: w.Start.Format(DateLayout), End: w.End.Format(DateLayout)})
}

// UnmarshalJSON decodes the date-string form.
func (w *Window) UnmarshalJSON(data []byte) error {
	var raw windowJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	start, err := time.Parse(DateLayout, raw.Start)
	if err != nil {
		return fmt.Errorf("window start: %w", err)
	}
	end, err := time.Parse(DateLayout, raw.End)
	if err != nil {
		return fmt.Errorf("window end: %w", err)
	}
	w.Start, w.End = start, end
	return nil
}

// MarshalYAML keeps YAML output in the same date-string form.
func (w Window) MarshalYAML() (interface{}, error) {
	return windowJSON{Start: w.Start.Format(DateLayout), End: w.End.Format(DateLayout)}, nil
}

// Pair is a current window with an optional equal-span baseline that ends
// where the current window starts.
type Pair struct {
	Current  Window  `json:"current" yaml:"current"`
	Baseline *Window `json:"baseline,omitempty" yaml:"baseline,omitempty"`
}

// NewPair validates caller-provided ranges: both windows valid, equal
// span, baseline immediately preceding current.
func NewPair(current, baseline Window) (Pair, error) {
	if !current.Valid() || !baseline.Valid() {
		return Pair{}, lserrors.NewInvalidWindow("window start must be before end")
	}
	if current.SpanDays() != baseline.SpanDays() {
		return Pair{}, lserrors.NewInvalidWindow(fmt.Sprintf("baseline span %d != current span %d", baseline.SpanDays(), current.SpanDays()))
	}
	if !baseline.End.Equal(current.Start) {
		return Pair{}, lserrors.NewInvalidWindow(fmt.Sprintf("baseline %s does not immediately precede current %s", baseline, current))
	}
	b := baseline
	return Pair{Current: current, Baseline: &b}, nil
}

// HasBaseline reports whether trend comparison is possible.
func (p Pair) HasBaseline() bool {
	return p.Baseline != nil
}

// Today returns the civil date of now in loc, as a UTC midnight.
func Today(now time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	y, m, d := now.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// civil drops the time of day, keeping the calendar date as written.
func civil(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Token names a window relative to today.
type Token string

const (
	LastMonth    Token = "last_month"
	Last90Days   Token = "last_90_days"
	Last12Months Token = "last_12_months"
)

// Tokens lists the accepted tokens in display order.
func Tokens() []Token {
	return []Token{LastMonth, Last90Days, Last12Months}
}

// ParseToken accepts a token name; spaces and hyphens are treated as underscores.
func ParseToken(s string) (Token, error) {
	norm := strings.ToLower(strings.TrimSpace(s))
	norm = strings.NewReplacer(" ", "_", "-", "_").Replace(norm)
	for _, t := range Tokens() {
		if string(t) == norm {
			return t, nil
		}
	}
	return "", lserrors.NewInvalidWindow(fmt.Sprintf("unknown window %q (want last_month, last_90_days or last_12_months)", s))
}

// Spans holds the configured day count of each token.
type Spans struct {
	LastMonth    int
	Last90Days   int
	Last12Months int
}

// DefaultSpans returns 30/90/365.
func DefaultSpans() Spans {
	return Spans{LastMonth: 30, Last90Days: 90, Last12Months: 365}
}

// For returns the span of t.
func (s Spans) For(t Token) (int, error) {
	var n int
	switch t {
	case LastMonth:
		n = s.LastMonth
	case Last90Days:
		n = s.Last90Days
	case Last12Months:
		n = s.Last12Months
	default:
		return 0, lserrors.NewInvalidWindow(fmt.Sprintf("unknown window %q", t))
	}
	if n <= 0 {
		return 0, lserrors.NewInvalidWindow(fmt.Sprintf("window %q has non-positive span %d", t, n))
	}
	return n, nil
}

// Resolver maps tokens and periods to window pairs ending at Today.
type Resolver struct {
	Today time.Time
	Spans Spans
}

// NewResolver anchors a resolver at the given reference day.
func NewResolver(today time.Time, spans Spans) *Resolver {
	return &Resolver{Today: civil(today), Spans: spans}
}

// trailing returns [Today-n, Today).
func (r *Resolver) trailing(n int) Window {
	return Window{Start: r.Today.AddDate(0, 0, -n), End: r.Today}
}

// Resolve maps a token to a pair. last_month always carries its
// preceding baseline; the longer tokens carry one only when trend is set.
func (r *Resolver) Resolve(t Token, trend bool) (Pair, error) {
	n, err := r.Spans.For(t)
	if err != nil {
		return Pair{}, err
	}
	current := r.trailing(n)
	if t != LastMonth && !trend {
		return Pair{Current: current}, nil
	}
	return NewPair(current, current.Shift(-n))
}

// ResolvePeriod builds LAST_N / PRIOR_N. The spans must be equal and positive.
func (r *Resolver) ResolvePeriod(currentDays, baselineDays int) (Pair, error) {
	if currentDays <= 0 || baselineDays <= 0 {
		return Pair{}, lserrors.NewInvalidWindow(fmt.Sprintf("period spans must be positive, got %d/%d", currentDays, baselineDays))
	}
	if currentDays != baselineDays {
		return Pair{}, lserrors.NewInvalidWindow(fmt.Sprintf("baseline span %d != current span %d", baselineDays, currentDays))
	}
	current := r.trailing(currentDays)
	return NewPair(current, current.Shift(-baselineDays))
}

// ParsePeriod parses "last_30/prior_30" (or "last_30_days/prior_30_days")
// into its two day counts.
func ParsePeriod(s string) (currentDays, baselineDays int, err error) {
	parts := strings.Split(strings.ToLower(strings.TrimSpace(s)), "/")
	if len(parts) != 2 {
		return 0, 0, lserrors.NewInvalidWindow(fmt.Sprintf("period %q must look like last_30/prior_30", s))
	}
	currentDays, err = periodDays(parts[0], "last_")
	if err != nil {
		return 0, 0, err
	}
	baselineDays, err = periodDays(parts[1], "prior_")
	if err != nil {
		return 0, 0, err
	}
	return currentDays, baselineDays, nil
}

func periodDays(part, prefix string) (int, error) {
	part = strings.TrimSpace(part)
	if !strings.HasPrefix(part, prefix) {
		return 0, lserrors.NewInvalidWindow(fmt.Sprintf("period part %q must start with %s", part, prefix))
	}
	num := strings.TrimSuffix(strings.TrimPrefix(part, prefix), "_days")
	n, err := strconv.Atoi(num)
	if err != nil || n <= 0 {
		return 0, lserrors.NewInvalidWindow(fmt.Sprintf("period part %q needs a positive day count", part))
	}
	return n, nil
}
