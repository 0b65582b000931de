// Package engine runs one invocation end to end: resolve the window pair,
// interpret the topic, fan out over the enabled sources, compute signals,
// assemble the Context and hand it to narration. Nothing is cached between
// invocations.
package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"lifesignal/internal/envelope"
	lserrors "lifesignal/internal/errors"
	"lifesignal/internal/metrics"
	"lifesignal/internal/narration"
	"lifesignal/internal/signals"
	"lifesignal/internal/snapshot"
	"lifesignal/internal/sources"
	"lifesignal/internal/topic"
	"lifesignal/internal/window"
)

// Options wires an Engine. Zero durations and limits take the defaults.
type Options struct {
	Sources     []sources.Source
	Interpreter topic.Interpreter
	Narrator    narration.Narrator

	Spans   window.Spans
	// Signals is taken as given, zero thresholds included; nil takes
	// signals.DefaultConfig.
	Signals *signals.Config
	Budget  envelope.Budget

	MaxConcurrentSources  int
	SourceTimeout         time.Duration
	InvocationTimeout     time.Duration
	FatalUnavailableRatio float64

	Location *time.Location
	Now      func() time.Time

	Logger    *slog.Logger
	Metrics   *metrics.Recorder
	Snapshots *snapshot.Store
}

const (
	defaultMaxConcurrent     = 4
	defaultSourceTimeout     = 5 * time.Second
	defaultInvocationTimeout = 15 * time.Second
)

// Engine is safe for sequential reuse; each call is independent.
type Engine struct {
	opts   Options
	logger *slog.Logger
}

// New fills defaults and returns an engine.
func New(opts Options) *Engine {
	if opts.Interpreter == nil {
		opts.Interpreter = topic.NewLexical(nil)
	}
	if opts.Spans == (window.Spans{}) {
		opts.Spans = window.DefaultSpans()
	}
	sc := signals.DefaultConfig()
	if opts.Signals != nil {
		sc = *opts.Signals
	}
	opts.Signals = &sc
	if opts.Budget == (envelope.Budget{}) {
		opts.Budget = envelope.DefaultBudget()
	}
	if opts.MaxConcurrentSources <= 0 {
		opts.MaxConcurrentSources = defaultMaxConcurrent
	}
	if opts.SourceTimeout <= 0 {
		opts.SourceTimeout = defaultSourceTimeout
	}
	if opts.InvocationTimeout <= 0 {
		opts.InvocationTimeout = defaultInvocationTimeout
	}
	if opts.FatalUnavailableRatio <= 0 || opts.FatalUnavailableRatio > 1 {
		opts.FatalUnavailableRatio = 1
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Engine{opts: opts, logger: logger}
}

// Request is one question.
type Request struct {
	Mode envelope.Mode
	// Topic is required in focus mode and ignored otherwise.
	Topic    string
	Question string

	// Window selects a token; empty takes the mode default.
	Window window.Token
	// Trend adds the preceding equal-span baseline to a token window.
	Trend bool

	// CurrentDays and BaselineDays select an explicit period pair and take
	// precedence over Window. Progress mode defaults to last_30/prior_30.
	CurrentDays  int
	BaselineDays int
}

// Answer is a narrated result.
type Answer struct {
	RunID        string
	Context      *envelope.Context
	Narration    string
	SnapshotPath string
}

// BuildContext runs every stage up to and including assembly.
func (e *Engine) BuildContext(ctx context.Context, req Request) (*envelope.Context, error) {
	runID := uuid.NewString()
	c, err := e.build(ctx, e.logger.With("run_id", runID), req)
	e.finish(req.Mode, err)
	return c, err
}

// Answer builds the Context, narrates it and archives it. When narration
// fails the returned Answer still carries the Context and snapshot path,
// alongside a NarrationUnavailable error.
func (e *Engine) Answer(ctx context.Context, req Request) (*Answer, error) {
	runID := uuid.NewString()
	log := e.logger.With("run_id", runID)

	c, err := e.build(ctx, log, req)
	if err != nil {
		e.finish(req.Mode, err)
		return nil, err
	}
	ans := &Answer{RunID: runID, Context: c}

	text, nerr := e.narrate(ctx, log, req, c)
	ans.Narration = text

	if e.opts.Snapshots != nil {
		rec := snapshot.Record{RunID: runID, CreatedAt: e.opts.Now().UTC(), Question: req.Question, Context: c}
		if nerr != nil {
			rec.NarrationError = nerr.Error()
		}
		path, serr := e.opts.Snapshots.Save(rec)
		if serr != nil {
			log.Warn("failed to save snapshot", "error", serr)
		} else {
			ans.SnapshotPath = path
		}
	}

	e.finish(req.Mode, nerr)
	if nerr != nil {
		return ans, nerr
	}
	return ans, nil
}

func (e *Engine) narrate(ctx context.Context, log *slog.Logger, req Request, c *envelope.Context) (string, error) {
	if e.opts.Narrator == nil {
		return "", lserrors.NewNarrationUnavailable(errors.New("no narrator configured"))
	}
	start := time.Now()
	text, err := e.opts.Narrator.Narrate(ctx, narration.Request{Context: c, Question: req.Question, Mode: c.Mode})
	e.opts.Metrics.ObserveNarration(err == nil, time.Since(start))
	if err != nil {
		log.Warn("narration failed", "error", err)
		if !lserrors.HasCode(err, lserrors.NarrationUnavailable) {
			err = lserrors.NewNarrationUnavailable(err)
		}
		return "", err
	}
	log.Debug("narration complete", "chars", len(text), "duration", time.Since(start))
	return text, nil
}

func (e *Engine) finish(mode envelope.Mode, err error) {
	status := "ok"
	if err != nil {
		status = strings.ToLower(string(lserrors.CodeOf(err)))
	}
	e.opts.Metrics.ObserveInvocation(string(modeOrDefault(mode)), status)
}

func modeOrDefault(m envelope.Mode) envelope.Mode {
	if m == "" {
		return envelope.ModeSummary
	}
	return m
}

func (e *Engine) build(ctx context.Context, log *slog.Logger, req Request) (*envelope.Context, error) {
	mode := modeOrDefault(req.Mode)
	now := e.opts.Now()
	today := window.Today(now, e.opts.Location)

	pair, err := e.resolveWindows(mode, req, today)
	if err != nil {
		return nil, err
	}

	var t *topic.Topic
	switch mode {
	case envelope.ModeFocus:
		t, err = topic.Interpret(ctx, e.opts.Interpreter, req.Topic)
		if err != nil {
			return nil, err
		}
	case envelope.ModeSummary, envelope.ModeProgress:
	default:
		return nil, lserrors.New(lserrors.InternalError, fmt.Sprintf("unknown mode %q", mode), nil)
	}

	log.Info("invocation started",
		"mode", mode,
		"window", pair.Current.String(),
		"baseline", pair.HasBaseline(),
		"sources", len(e.opts.Sources),
	)
	if t != nil {
		log.Debug("topic interpreted", "query", t.RawQuery, "keywords", t.Keywords)
	}

	results := e.fanOut(ctx, log, pair, t)

	b := envelope.New(mode, today).
		Topic(t).
		Windows(pair).
		Thresholds(envelope.Thresholds{
			MomentumThreshold:   e.opts.Signals.MomentumThreshold,
			StreakToleranceDays: e.opts.Signals.StreakToleranceDays,
		}).
		Budget(e.opts.Budget)

	failed := 0
	for _, r := range results {
		switch {
		case r.err != nil:
			failed++
			b.AddError(r.id, r.err)
		case r.bundle == nil:
			b.AddSilent(r.id)
		default:
			b.AddBundle(r.id, *r.bundle)
		}
	}

	if len(e.opts.Sources) == 0 {
		b.Warning("NO_SOURCES", "no sources are enabled")
	} else if failed > 0 {
		ratio := float64(failed) / float64(len(e.opts.Sources))
		if ratio >= e.opts.FatalUnavailableRatio {
			return nil, lserrors.New(lserrors.SourceUnavailable,
				fmt.Sprintf("%d of %d sources unavailable", failed, len(e.opts.Sources)), firstError(results)).
				WithDetails(map[string]any{"failed": failed, "total": len(e.opts.Sources)})
		}
	}

	c, err := b.Build()
	if err != nil {
		return nil, lserrors.New(lserrors.InternalError, "failed to assemble context", err)
	}

	if data, err := envelope.Marshal(c); err == nil {
		e.opts.Metrics.SetContextBytes(len(data))
		log.Info("context assembled",
			"matched", len(c.Coverage.MatchedSources),
			"silent", len(c.Coverage.SilentSources),
			"errors", len(c.Coverage.Errors),
			"bytes", len(data),
			"truncated", c.Truncation != nil,
		)
	}
	return c, nil
}

func (e *Engine) resolveWindows(mode envelope.Mode, req Request, today time.Time) (window.Pair, error) {
	r := window.NewResolver(today, e.opts.Spans)

	if req.CurrentDays != 0 || req.BaselineDays != 0 {
		return r.ResolvePeriod(req.CurrentDays, req.BaselineDays)
	}
	if mode == envelope.ModeProgress && req.Window == "" {
		return r.ResolvePeriod(e.opts.Spans.LastMonth, e.opts.Spans.LastMonth)
	}

	tok := req.Window
	if tok == "" {
		tok = window.Last12Months
		if mode == envelope.ModeFocus {
			tok = window.Last90Days
		}
	}
	// Progress always compares against a baseline.
	return r.Resolve(tok, req.Trend || mode == envelope.ModeProgress)
}

func firstError(results []result) error {
	for _, r := range results {
		if r.err != nil {
			return r.err
		}
	}
	return nil
}
