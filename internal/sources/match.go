package sources

import (
	"context"
	"time"

	lserrors "lifesignal/internal/errors"
	"lifesignal/internal/topic"
	"lifesignal/internal/window"
)

// SourceMatch is the outcome of matching one source in one window.
// Err is set, and Matched false, when the source could not be queried.
type SourceMatch struct {
	SourceID    string
	Window      window.Window
	Matched     bool
	RecordCount int
	ActiveDays  []time.Time
	Aggregate   Aggregate
	Err         error
}

// Silent reports an enabled, reachable source that matched nothing.
func (m SourceMatch) Silent() bool {
	return m.Err == nil && !m.Matched
}

// Match fetches src's activity in w. Without a topic every record matches
// and Matched is true even when the source is empty. With a topic, Matched
// means at least one record contained a keyword.
func Match(ctx context.Context, src Source, w window.Window, t *topic.Topic) SourceMatch {
	m := SourceMatch{SourceID: src.ID(), Window: w}

	var keywords []string
	if t != nil {
		keywords = t.Keywords
	}

	agg, err := src.FetchMatchingAggregate(ctx, w, keywords)
	if err != nil {
		m.Err = lserrors.NewSourceUnavailable(src.ID(), err)
		return m
	}

	m.Aggregate = agg
	m.RecordCount = agg.RecordCount
	m.ActiveDays = agg.ActiveDays()
	m.Matched = t == nil || agg.RecordCount > 0
	return m
}
