package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	lserrors "lifesignal/internal/errors"
	"lifesignal/internal/metrics"
	"lifesignal/internal/signals"
	"lifesignal/internal/sources"
	"lifesignal/internal/topic"
	"lifesignal/internal/window"
)

// result is one source's outcome. Exactly one of bundle and err is set,
// or neither for a silent source.
type result struct {
	id     string
	bundle *signals.Bundle
	err    error

	// status and elapsed feed the source metrics, recorded by the collector.
	status  string
	elapsed time.Duration
}

type slot struct {
	index int
	res   result
}

// fanOut evaluates every source concurrently and returns results in source
// order. Sources still pending when the invocation deadline passes are
// reported as unavailable; their goroutines finish into a buffered channel
// nobody reads. Source metrics are recorded here only, once per source.
func (e *Engine) fanOut(ctx context.Context, log *slog.Logger, pair window.Pair, t *topic.Topic) []result {
	srcs := e.opts.Sources
	results := make([]result, len(srcs))
	if len(srcs) == 0 {
		return results
	}

	ictx, cancel := context.WithTimeout(ctx, e.opts.InvocationTimeout)
	defer cancel()

	done := make(chan slot, len(srcs))
	go func() {
		var g errgroup.Group
		g.SetLimit(e.opts.MaxConcurrentSources)
		for i, src := range srcs {
			g.Go(func() error {
				done <- slot{index: i, res: e.evaluate(ictx, log, src, pair, t)}
				return nil
			})
		}
		_ = g.Wait()
	}()

	received := make([]bool, len(srcs))
	for n := 0; n < len(srcs); n++ {
		select {
		case s := <-done:
			results[s.index] = s.res
			received[s.index] = true
			e.opts.Metrics.ObserveSource(s.res.id, s.res.status, s.res.elapsed)
		case <-ictx.Done():
			for i, src := range srcs {
				if received[i] {
					continue
				}
				cause := lserrors.New(lserrors.Timeout, fmt.Sprintf("still pending after %s", e.opts.InvocationTimeout), ictx.Err())
				results[i] = result{id: src.ID(), err: lserrors.NewSourceUnavailable(src.ID(), cause)}
				e.opts.Metrics.ObserveSource(src.ID(), metrics.StatusError, e.opts.InvocationTimeout)
				log.Warn("source pending at invocation deadline", "source", src.ID())
			}
			return results
		}
	}
	return results
}

// evaluate matches one source in the current window and, when it matched
// and a baseline exists, in the baseline window. A failure in either makes
// the whole source unavailable; no partial bundle is produced.
func (e *Engine) evaluate(ctx context.Context, log *slog.Logger, src sources.Source, pair window.Pair, t *topic.Topic) result {
	id := src.ID()
	sctx, cancel := context.WithTimeout(ctx, e.opts.SourceTimeout)
	defer cancel()
	start := time.Now()

	fail := func(err error) result {
		if errors.Is(err, context.DeadlineExceeded) || sctx.Err() != nil {
			cause := err
			var le *lserrors.LifeError
			if errors.As(err, &le) && le.Unwrap() != nil {
				cause = le.Unwrap()
			}
			err = lserrors.NewSourceUnavailable(id,
				lserrors.New(lserrors.Timeout, fmt.Sprintf("timed out after %s", e.opts.SourceTimeout), cause))
		}
		log.Warn("source unavailable", "source", id, "error", err)
		return result{id: id, err: err, status: metrics.StatusError, elapsed: time.Since(start)}
	}

	cur := sources.Match(sctx, src, pair.Current, t)
	if cur.Err != nil {
		return fail(cur.Err)
	}
	if cur.Silent() {
		log.Debug("source silent", "source", id)
		return result{id: id, status: metrics.StatusSilent, elapsed: time.Since(start)}
	}

	var baseline *sources.Aggregate
	if pair.Baseline != nil {
		base := sources.Match(sctx, src, *pair.Baseline, t)
		if base.Err != nil {
			return fail(base.Err)
		}
		baseline = &base.Aggregate
	}

	bundle := signals.Calculate(signals.Input{
		Kind:     src.Kind(),
		Unit:     src.Unit(),
		Basis:    src.MomentumBasis(),
		Window:   pair.Current,
		Current:  cur.Aggregate,
		Baseline: baseline,
	}, *e.opts.Signals)

	log.Debug("source matched",
		"source", id,
		"records", bundle.RecordCount,
		"active_days", bundle.ActiveDays,
		"momentum", bundle.Momentum,
		"duration", time.Since(start),
	)
	return result{id: id, bundle: &bundle, status: metrics.StatusMatched, elapsed: time.Since(start)}
}
