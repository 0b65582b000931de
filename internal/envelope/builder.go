package envelope

import (
	"errors"
	"sort"
	"time"

	lserrors "lifesignal/internal/errors"
	"lifesignal/internal/signals"
	"lifesignal/internal/topic"
	"lifesignal/internal/window"
)

// Builder constructs a Context using a fluent API.
type Builder struct {
	ctx    *Context
	budget Budget
}

// New creates a builder for one invocation. reference is the civil date the
// windows were resolved against.
func New(mode Mode, reference time.Time) *Builder {
	return &Builder{
		ctx: &Context{
			SchemaVersion: CurrentSchemaVersion,
			Mode:          mode,
			ReferenceDate: reference.Format(window.DateLayout),
			Sources:       make(map[string]signals.Bundle),
		},
		budget: DefaultBudget(),
	}
}

// Topic sets the interpreted topic; nil means whole-system mode.
func (b *Builder) Topic(t *topic.Topic) *Builder {
	b.ctx.Topic = t
	return b
}

// Windows sets the resolved window pair.
func (b *Builder) Windows(p window.Pair) *Builder {
	b.ctx.Windows = p
	return b
}

// Thresholds records the thresholds signals were computed with.
func (b *Builder) Thresholds(t Thresholds) *Builder {
	b.ctx.Thresholds = t
	return b
}

// Budget sets the size bounds enforced by Build.
func (b *Builder) Budget(bg Budget) *Builder {
	b.budget = bg
	return b
}

// AddBundle records a matched source and its signals.
func (b *Builder) AddBundle(sourceID string, bundle signals.Bundle) *Builder {
	bundle.Confidence = string(ScoreToTier(ConfidenceScore(bundle)))
	b.ctx.Sources[sourceID] = bundle
	b.ctx.Coverage.MatchedSources = append(b.ctx.Coverage.MatchedSources, sourceID)
	return b
}

// AddSilent records an enabled, reachable source with no matching records.
func (b *Builder) AddSilent(sourceID string) *Builder {
	b.ctx.Coverage.SilentSources = append(b.ctx.Coverage.SilentSources, sourceID)
	return b
}

// AddError records a source that could not be queried.
func (b *Builder) AddError(sourceID string, err error) *Builder {
	se := SourceError{SourceID: sourceID, Code: string(lserrors.CodeOf(err))}
	var le *lserrors.LifeError
	if errors.As(err, &le) {
		se.Message = le.Message
		if cause := le.Unwrap(); cause != nil {
			var inner *lserrors.LifeError
			if errors.As(cause, &inner) {
				se.Message += ": " + inner.Message
			} else {
				se.Message += ": " + cause.Error()
			}
		}
	} else if err != nil {
		se.Message = err.Error()
	}
	b.ctx.Coverage.Errors = append(b.ctx.Coverage.Errors, se)
	return b
}

// Warning adds a warning with a code.
func (b *Builder) Warning(code, msg string) *Builder {
	b.ctx.Warnings = append(b.ctx.Warnings, Warning{Code: code, Message: msg})
	return b
}

// Build orders coverage, enforces the budget and returns the Context. The
// builder must not be reused afterwards.
func (b *Builder) Build() (*Context, error) {
	c := b.ctx
	sort.Strings(c.Coverage.MatchedSources)
	sort.Strings(c.Coverage.SilentSources)
	sort.Slice(c.Coverage.Errors, func(i, j int) bool {
		return c.Coverage.Errors[i].SourceID < c.Coverage.Errors[j].SourceID
	})
	if c.Coverage.MatchedSources == nil {
		c.Coverage.MatchedSources = []string{}
	}
	if c.Coverage.SilentSources == nil {
		c.Coverage.SilentSources = []string{}
	}
	if len(c.Coverage.Errors) == 0 {
		c.Coverage.Errors = nil
	}

	if err := b.budget.Enforce(c); err != nil {
		return nil, err
	}
	return c, nil
}
