package envelope

import (
	"encoding/json"
	"fmt"
	"sort"

	"lifesignal/internal/signals"
)

// Truncation reasons
const (
	ReasonMaxSeriesPoints = "max-series-points"
	ReasonMaxSources      = "max-sources"
	ReasonMaxBytes        = "max-bytes"
)

// Budget bounds the Context regardless of how much history exists.
// Zero disables a bound.
type Budget struct {
	MaxSources      int
	MaxSeriesPoints int
	MaxBytes        int
}

// DefaultBudget returns the default bounds.
func DefaultBudget() Budget {
	return Budget{MaxSources: 8, MaxSeriesPoints: 16, MaxBytes: 6000}
}

// Enforce shrinks c until it fits. Series keep their most recent points;
// then whole series go, lowest-ranked source first; then the
// lowest-ranked sources themselves. Every cut is recorded in
// c.Truncation. Encoded text is never cut, so when nothing is left to
// remove an over-budget Context gets a warning instead.
func (bg Budget) Enforce(c *Context) error {
	total := len(c.Sources)
	tr := &Truncation{}

	if bg.MaxSeriesPoints > 0 {
		for _, id := range sortedIDs(c.Sources) {
			bundle := c.Sources[id]
			if n := len(bundle.Series); n > bg.MaxSeriesPoints {
				bundle.Series = append([]signals.PeriodPoint(nil), bundle.Series[n-bg.MaxSeriesPoints:]...)
				c.Sources[id] = bundle
				tr.trimmed(id, ReasonMaxSeriesPoints)
			}
		}
	}

	ranked := rank(c.Sources)
	dropLowest := func(reason string) {
		id := ranked[len(ranked)-1]
		ranked = ranked[:len(ranked)-1]
		delete(c.Sources, id)
		tr.DroppedSources = append(tr.DroppedSources, id)
		tr.reason(reason)
	}

	if bg.MaxSources > 0 {
		for len(ranked) > bg.MaxSources {
			dropLowest(ReasonMaxSources)
		}
	}

	if bg.MaxBytes > 0 {
		for {
			tr.apply(c, len(ranked), total)
			size, err := encodedSize(c)
			if err != nil {
				return err
			}
			if size <= bg.MaxBytes {
				break
			}
			if id, ok := lowestWithSeries(c, ranked); ok {
				bundle := c.Sources[id]
				bundle.Series = nil
				c.Sources[id] = bundle
				tr.trimmed(id, ReasonMaxBytes)
				continue
			}
			if len(ranked) > 0 {
				dropLowest(ReasonMaxBytes)
				continue
			}
			c.Warnings = append(c.Warnings, Warning{
				Code:    "CONTEXT_OVER_BUDGET",
				Message: fmt.Sprintf("context is %d bytes with no sources left to drop; budget is %d", size, bg.MaxBytes),
			})
			break
		}
	}

	tr.apply(c, len(ranked), total)
	return nil
}

func (t *Truncation) reason(r string) {
	for _, x := range t.Reasons {
		if x == r {
			return
		}
	}
	t.Reasons = append(t.Reasons, r)
}

func (t *Truncation) trimmed(id, reason string) {
	t.reason(reason)
	for _, x := range t.TrimmedSeries {
		if x == id {
			return
		}
	}
	t.TrimmedSeries = append(t.TrimmedSeries, id)
}

// apply attaches a copy of t to c when anything was cut.
func (t *Truncation) apply(c *Context, shown, total int) {
	if len(t.Reasons) == 0 {
		c.Truncation = nil
		return
	}
	cp := *t
	cp.IsTruncated = true
	cp.Shown = shown
	cp.Total = total
	cp.TrimmedSeries = append([]string(nil), t.TrimmedSeries...)
	cp.DroppedSources = append([]string(nil), t.DroppedSources...)
	cp.Reasons = append([]string(nil), t.Reasons...)
	c.Truncation = &cp
}

// rank orders sources best first: active-day ratio, then volume, then ID.
func rank(sources map[string]signals.Bundle) []string {
	ids := sortedIDs(sources)
	sort.SliceStable(ids, func(i, j int) bool {
		a, b := sources[ids[i]], sources[ids[j]]
		if a.ActiveDayRatio != b.ActiveDayRatio {
			return a.ActiveDayRatio > b.ActiveDayRatio
		}
		if a.Volume != b.Volume {
			return a.Volume > b.Volume
		}
		return ids[i] < ids[j]
	})
	return ids
}

func lowestWithSeries(c *Context, ranked []string) (string, bool) {
	for i := len(ranked) - 1; i >= 0; i-- {
		if len(c.Sources[ranked[i]].Series) > 0 {
			return ranked[i], true
		}
	}
	return "", false
}

func sortedIDs(sources map[string]signals.Bundle) []string {
	ids := make([]string, 0, len(sources))
	for id := range sources {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func encodedSize(c *Context) (int, error) {
	data, err := json.Marshal(c)
	if err != nil {
		return 0, fmt.Errorf("encode context: %w", err)
	}
	return len(data), nil
}
