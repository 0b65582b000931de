package engine

import (
	"context"
	"errors"
	"reflect"
	"sort"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	promtest "github.com/prometheus/client_golang/prometheus/testutil"

	"lifesignal/internal/catalog"
	"lifesignal/internal/config"
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

func date(s string) time.Time {
	t, err := time.Parse(window.DateLayout, s)
	if err != nil {
		panic(err)
	}
	return t
}

var reference = time.Date(2026, 3, 31, 12, 0, 0, 0, time.UTC)

type record struct {
	day    string
	text   string
	volume float64
}

type fakeSource struct {
	id       string
	kind     catalog.Kind
	basis    catalog.Basis
	records  []record
	err      error
	failWhen func(w window.Window) bool
	block    bool          // waits for cancellation
	hang     chan struct{} // ignores cancellation
	calls    atomic.Int32
}

func (f *fakeSource) ID() string                   { return f.id }
func (f *fakeSource) Kind() catalog.Kind           { return f.kind }
func (f *fakeSource) Unit() string                 { return "minutes" }
func (f *fakeSource) MomentumBasis() catalog.Basis { return f.basis }

func (f *fakeSource) FetchMatchingAggregate(ctx context.Context, w window.Window, keywords []string) (sources.Aggregate, error) {
	f.calls.Add(1)
	if f.hang != nil {
		<-f.hang
	}
	if f.block {
		<-ctx.Done()
		return sources.Aggregate{}, ctx.Err()
	}
	if f.failWhen != nil && f.failWhen(w) {
		return sources.Aggregate{}, errors.New("connection reset")
	}
	if f.err != nil {
		return sources.Aggregate{}, f.err
	}

	var agg sources.Aggregate
	byDay := map[time.Time]*sources.DayValue{}
	for _, r := range f.records {
		d := date(r.day)
		if !w.Contains(d) || (keywords != nil && !containsAny(r.text, keywords)) {
			continue
		}
		agg.RecordCount++
		agg.Volume += r.volume
		dv, ok := byDay[d]
		if !ok {
			dv = &sources.DayValue{Day: d}
			byDay[d] = dv
		}
		dv.Records++
		dv.Volume += r.volume
	}
	for _, dv := range byDay {
		agg.Days = append(agg.Days, *dv)
	}
	sort.Slice(agg.Days, func(i, j int) bool { return agg.Days[i].Day.Before(agg.Days[j].Day) })
	return agg, nil
}

func containsAny(text string, keywords []string) bool {
	text = strings.ToLower(text)
	for _, k := range keywords {
		if strings.Contains(text, k) {
			return true
		}
	}
	return false
}

type fakeNarrator struct {
	text string
	err  error
	got  narration.Request
}

func (n *fakeNarrator) Narrate(_ context.Context, req narration.Request) (string, error) {
	n.got = req
	return n.text, n.err
}

func portugueseInterpreter() topic.Interpreter {
	return topic.InterpreterFunc(func(context.Context, string) ([]string, error) {
		return []string{"Portuguese", "duolingo", "portuguese"}, nil
	})
}

func toggl() *fakeSource {
	return &fakeSource{
		id: "toggl", kind: catalog.KindTime, basis: catalog.BasisVolume,
		records: []record{
			{"2026-03-02", "Portuguese lesson", 30},
			{"2026-03-03", "Duolingo streak", 30},
			{"2026-03-04", "portuguese podcast", 30},
			{"2026-03-05", "Emails", 45},
		},
	}
}

func asana() *fakeSource {
	return &fakeSource{
		id: "asana", kind: catalog.KindTask, basis: catalog.BasisCount,
		records: []record{{"2026-03-01", "Pay rent", 1}},
	}
}

func newEngine(opts Options) *Engine {
	opts.Now = func() time.Time { return reference }
	return New(opts)
}

func TestBuildContext_Focus(t *testing.T) {
	habitica := &fakeSource{id: "habitica", kind: catalog.KindHabit, err: errors.New("no such table: habitica_items")}
	rec := metrics.New()
	e := newEngine(Options{
		Sources:     []sources.Source{toggl(), asana(), habitica},
		Interpreter: portugueseInterpreter(),
		Metrics:     rec,
	})

	c, err := e.BuildContext(context.Background(), Request{Mode: envelope.ModeFocus, Topic: "learning Portuguese"})
	if err != nil {
		t.Fatalf("BuildContext failed: %v", err)
	}

	if c.Topic == nil || !reflect.DeepEqual(c.Topic.Keywords, []string{"duolingo", "portuguese"}) {
		t.Errorf("topic = %+v", c.Topic)
	}
	if c.ReferenceDate != "2026-03-31" {
		t.Errorf("reference date = %s", c.ReferenceDate)
	}
	if !c.Windows.Current.Start.Equal(date("2025-12-31")) || !c.Windows.Current.End.Equal(date("2026-03-31")) {
		t.Errorf("current window = %s, want the trailing 90 days", c.Windows.Current)
	}
	if c.Windows.Baseline != nil {
		t.Error("focus without trend has no baseline")
	}

	if !reflect.DeepEqual(c.Coverage.MatchedSources, []string{"toggl"}) {
		t.Errorf("matched = %v", c.Coverage.MatchedSources)
	}
	if !reflect.DeepEqual(c.Coverage.SilentSources, []string{"asana"}) {
		t.Errorf("silent = %v", c.Coverage.SilentSources)
	}
	if len(c.Coverage.Errors) != 1 || c.Coverage.Errors[0].SourceID != "habitica" ||
		c.Coverage.Errors[0].Code != string(lserrors.SourceUnavailable) ||
		c.Coverage.Errors[0].Message != "source query failed: no such table: habitica_items" {
		t.Errorf("errors = %+v", c.Coverage.Errors)
	}

	if len(c.Sources) != 1 {
		t.Fatalf("sources = %v", c.Sources)
	}
	b := c.Sources["toggl"]
	if !b.Presence || b.RecordCount != 3 || b.Volume != 90 || b.ActiveDays != 3 || b.Momentum != signals.NoMomentum {
		t.Errorf("toggl bundle = %+v", b)
	}
	if b.LongestStreakDays != 3 || b.Unit != "minutes" {
		t.Errorf("toggl streak/unit = %d %s", b.LongestStreakDays, b.Unit)
	}

	if got := promtest.ToFloat64(rec.SourceResults.WithLabelValues("asana", metrics.StatusSilent)); got != 1 {
		t.Errorf("asana silent metric = %v", got)
	}
	if got := promtest.ToFloat64(rec.SourceResults.WithLabelValues("habitica", metrics.StatusError)); got != 1 {
		t.Errorf("habitica error metric = %v", got)
	}
	if promtest.ToFloat64(rec.ContextBytes) == 0 {
		t.Error("context bytes not recorded")
	}
}

func TestBuildContext_FatalBeforeAnySourceQuery(t *testing.T) {
	tests := []struct {
		name   string
		interp topic.Interpreter
		req    Request
		want   lserrors.ErrorCode
	}{
		{
			name:   "blank topic",
			interp: portugueseInterpreter(),
			req:    Request{Mode: envelope.ModeFocus, Topic: "   "},
			want:   lserrors.EmptyTopic,
		},
		{
			name: "interpretation yields nothing usable",
			interp: topic.InterpreterFunc(func(context.Context, string) ([]string, error) {
				return []string{" ", ""}, nil
			}),
			req:  Request{Mode: envelope.ModeFocus, Topic: "the and of"},
			want: lserrors.EmptyTopic,
		},
		{
			name:   "unequal period spans",
			interp: portugueseInterpreter(),
			req:    Request{Mode: envelope.ModeProgress, CurrentDays: 30, BaselineDays: 20},
			want:   lserrors.InvalidWindow,
		},
		{
			name:   "non-positive period",
			interp: portugueseInterpreter(),
			req:    Request{Mode: envelope.ModeSummary, CurrentDays: 0, BaselineDays: 7},
			want:   lserrors.InvalidWindow,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := toggl()
			e := newEngine(Options{Sources: []sources.Source{src}, Interpreter: tt.interp})

			c, err := e.BuildContext(context.Background(), tt.req)
			if !lserrors.HasCode(err, tt.want) {
				t.Fatalf("error = %v, want %s", err, tt.want)
			}
			if c != nil {
				t.Error("no context on fatal error")
			}
			if n := src.calls.Load(); n != 0 {
				t.Errorf("source queried %d times", n)
			}
		})
	}
}

func TestBuildContext_SummaryIsPassThrough(t *testing.T) {
	empty := &fakeSource{id: "samsung_health", kind: catalog.KindHealth, basis: catalog.BasisVolume}
	e := newEngine(Options{Sources: []sources.Source{toggl(), asana(), empty}})

	c, err := e.BuildContext(context.Background(), Request{Mode: envelope.ModeSummary})
	if err != nil {
		t.Fatal(err)
	}
	if c.Topic != nil {
		t.Error("summary has no topic")
	}
	if c.Windows.Current.SpanDays() != 365 {
		t.Errorf("summary window = %d days, want 365", c.Windows.Current.SpanDays())
	}
	if !reflect.DeepEqual(c.Coverage.MatchedSources, []string{"asana", "samsung_health", "toggl"}) {
		t.Errorf("matched = %v", c.Coverage.MatchedSources)
	}
	if len(c.Coverage.SilentSources) != 0 {
		t.Errorf("silent = %v", c.Coverage.SilentSources)
	}
	if b := c.Sources["samsung_health"]; b.Presence || b.RecordCount != 0 {
		t.Errorf("empty source bundle = %+v", b)
	}
	if b := c.Sources["toggl"]; b.RecordCount != 4 || b.Volume != 135 {
		t.Errorf("toggl = %+v", b)
	}
}

func TestBuildContext_Progress(t *testing.T) {
	src := &fakeSource{
		id: "toggl", kind: catalog.KindTime, basis: catalog.BasisVolume,
		records: []record{
			{"2026-02-10", "Deep work", 30},
			{"2026-03-10", "Deep work", 60},
			{"2026-03-11", "Deep work", 60},
		},
	}
	e := newEngine(Options{Sources: []sources.Source{src}})

	c, err := e.BuildContext(context.Background(), Request{Mode: envelope.ModeProgress})
	if err != nil {
		t.Fatal(err)
	}
	if !c.Windows.Current.Start.Equal(date("2026-03-01")) || !c.Windows.Current.End.Equal(date("2026-03-31")) {
		t.Errorf("current = %s", c.Windows.Current)
	}
	if c.Windows.Baseline == nil || !c.Windows.Baseline.Start.Equal(date("2026-01-30")) || !c.Windows.Baseline.End.Equal(date("2026-03-01")) {
		t.Fatalf("baseline = %v", c.Windows.Baseline)
	}

	b := c.Sources["toggl"]
	if b.Momentum != signals.Rising {
		t.Errorf("momentum = %s, want rising", b.Momentum)
	}
	if b.Baseline == nil || b.Baseline.Volume != 30 || b.Baseline.RecordCount != 1 {
		t.Errorf("baseline totals = %+v", b.Baseline)
	}
}

func TestBuildContext_ZeroThresholdsAreKept(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Signals.MomentumThreshold = 0
	cfg.Signals.StreakToleranceDays = 0
	if err := cfg.Validate(); err != nil {
		t.Fatalf("zero thresholds should validate: %v", err)
	}
	opts, err := OptionsFromConfig(cfg)
	if err != nil {
		t.Fatal(err)
	}
	opts.Sources = []sources.Source{&fakeSource{
		id: "toggl", kind: catalog.KindTime, basis: catalog.BasisVolume,
		records: []record{
			{"2026-02-10", "Deep work", 100},
			{"2026-03-10", "Deep work", 101},
		},
	}}

	c, err := newEngine(opts).BuildContext(context.Background(), Request{Mode: envelope.ModeProgress})
	if err != nil {
		t.Fatal(err)
	}
	if c.Thresholds != (envelope.Thresholds{}) {
		t.Errorf("thresholds = %+v, want zeros", c.Thresholds)
	}
	if got := c.Sources["toggl"].Momentum; got != signals.Rising {
		t.Errorf("momentum = %s, want rising at threshold 0", got)
	}

	// Without explicit thresholds the defaults apply and 101 vs 100 is stable.
	opts.Signals = nil
	c, err = newEngine(opts).BuildContext(context.Background(), Request{Mode: envelope.ModeProgress})
	if err != nil {
		t.Fatal(err)
	}
	if got := c.Sources["toggl"].Momentum; got != signals.Stable {
		t.Errorf("default momentum = %s, want stable", got)
	}
}

func TestBuildContext_BaselineFailureDropsWholeSource(t *testing.T) {
	src := toggl()
	src.failWhen = func(w window.Window) bool { return w.End.Equal(date("2026-03-01")) }
	e := newEngine(Options{Sources: []sources.Source{src, asana()}})

	c, err := e.BuildContext(context.Background(), Request{Mode: envelope.ModeProgress})
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := c.Sources["toggl"]; ok {
		t.Error("a source failing its baseline must not produce a bundle")
	}
	if len(c.Coverage.Errors) != 1 || c.Coverage.Errors[0].SourceID != "toggl" {
		t.Errorf("errors = %+v", c.Coverage.Errors)
	}
	if _, ok := c.Sources["asana"]; !ok {
		t.Error("other sources still complete")
	}
}

func TestBuildContext_FatalUnavailableRatio(t *testing.T) {
	broken := func(id string) *fakeSource {
		return &fakeSource{id: id, kind: catalog.KindTask, err: errors.New("connection refused")}
	}

	tests := []struct {
		name    string
		ratio   float64
		sources []sources.Source
		fatal   bool
	}{
		{"all failed", 1, []sources.Source{broken("asana"), broken("toggl")}, true},
		{"some failed", 1, []sources.Source{broken("asana"), toggl()}, false},
		{"half failed at half ratio", 0.5, []sources.Source{broken("asana"), toggl()}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newEngine(Options{Sources: tt.sources, FatalUnavailableRatio: tt.ratio})
			c, err := e.BuildContext(context.Background(), Request{Mode: envelope.ModeSummary})
			if tt.fatal {
				if !lserrors.HasCode(err, lserrors.SourceUnavailable) || c != nil {
					t.Errorf("got %v, %v; want fatal SourceUnavailable", c, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(c.Coverage.Errors) != 1 {
				t.Errorf("errors = %+v", c.Coverage.Errors)
			}
		})
	}
}

func TestBuildContext_Timeouts(t *testing.T) {
	t.Run("per source", func(t *testing.T) {
		slow := &fakeSource{id: "google_fit", kind: catalog.KindHealth, block: true}
		e := newEngine(Options{
			Sources:       []sources.Source{slow, toggl()},
			SourceTimeout: 20 * time.Millisecond,
		})
		c, err := e.BuildContext(context.Background(), Request{Mode: envelope.ModeSummary})
		if err != nil {
			t.Fatal(err)
		}
		if len(c.Coverage.Errors) != 1 || c.Coverage.Errors[0].Message != "source query failed: timed out after 20ms" {
			t.Errorf("errors = %+v", c.Coverage.Errors)
		}
		if _, ok := c.Sources["toggl"]; !ok {
			t.Error("a slow source must not block the others")
		}
	})

	t.Run("invocation deadline", func(t *testing.T) {
		release := make(chan struct{})
		t.Cleanup(func() { close(release) })
		stuck := &fakeSource{id: "google_fit", kind: catalog.KindHealth, hang: release}
		e := newEngine(Options{
			Sources:           []sources.Source{stuck, toggl()},
			InvocationTimeout: 50 * time.Millisecond,
		})

		start := time.Now()
		c, err := e.BuildContext(context.Background(), Request{Mode: envelope.ModeSummary})
		if err != nil {
			t.Fatal(err)
		}
		if time.Since(start) > 2*time.Second {
			t.Error("invocation did not stop at its deadline")
		}
		if len(c.Coverage.Errors) != 1 || c.Coverage.Errors[0].SourceID != "google_fit" ||
			c.Coverage.Errors[0].Message != "source query failed: still pending after 50ms" {
			t.Errorf("errors = %+v", c.Coverage.Errors)
		}
		if _, ok := c.Sources["toggl"]; !ok {
			t.Error("finished sources are kept")
		}
	})

	t.Run("deadline counts each source once", func(t *testing.T) {
		rec := metrics.New()
		lagging := &fakeSource{id: "google_fit", kind: catalog.KindHealth, block: true}
		e := newEngine(Options{
			Sources:           []sources.Source{lagging, toggl()},
			InvocationTimeout: 30 * time.Millisecond,
			Metrics:           rec,
		})
		if _, err := e.BuildContext(context.Background(), Request{Mode: envelope.ModeSummary}); err != nil {
			t.Fatal(err)
		}
		// The lagging goroutine unblocks once the invocation context is
		// cancelled and must not record a second result.
		time.Sleep(100 * time.Millisecond)
		if got := promtest.ToFloat64(rec.SourceResults.WithLabelValues("google_fit", metrics.StatusError)); got != 1 {
			t.Errorf("google_fit error results = %v, want 1", got)
		}
		if got := promtest.ToFloat64(rec.SourceResults.WithLabelValues("toggl", metrics.StatusMatched)); got != 1 {
			t.Errorf("toggl matched results = %v, want 1", got)
		}
	})
}

func TestBuildContext_Deterministic(t *testing.T) {
	e := newEngine(Options{
		Sources:              []sources.Source{toggl(), asana(), &fakeSource{id: "habitica", err: errors.New("down")}},
		Interpreter:          portugueseInterpreter(),
		MaxConcurrentSources: 2,
	})

	var first []byte
	for i := 0; i < 5; i++ {
		c, err := e.BuildContext(context.Background(), Request{Mode: envelope.ModeFocus, Topic: "Portuguese", Trend: true})
		if err != nil {
			t.Fatal(err)
		}
		data, err := envelope.Marshal(c)
		if err != nil {
			t.Fatal(err)
		}
		if first == nil {
			first = data
			continue
		}
		if string(data) != string(first) {
			t.Fatalf("run %d differs:\n%s\n%s", i, first, data)
		}
	}
}

func TestBuildContext_NoSources(t *testing.T) {
	c, err := newEngine(Options{}).BuildContext(context.Background(), Request{})
	if err != nil {
		t.Fatal(err)
	}
	if c.Mode != envelope.ModeSummary || len(c.Warnings) != 1 || c.Warnings[0].Code != "NO_SOURCES" {
		t.Errorf("context = %+v", c)
	}
}

func TestAnswer(t *testing.T) {
	t.Run("narrated", func(t *testing.T) {
		store := snapshot.NewStore(t.TempDir(), 0, nil)
		narrator := &fakeNarrator{text: "Overall Assessment: consistent."}
		e := newEngine(Options{Sources: []sources.Source{toggl()}, Narrator: narrator, Snapshots: store})

		ans, err := e.Answer(context.Background(), Request{Mode: envelope.ModeSummary, Question: "How am I doing?"})
		if err != nil {
			t.Fatalf("Answer failed: %v", err)
		}
		if ans.Narration != "Overall Assessment: consistent." || ans.RunID == "" {
			t.Errorf("answer = %+v", ans)
		}
		if narrator.got.Context != ans.Context || narrator.got.Question != "How am I doing?" || narrator.got.Mode != envelope.ModeSummary {
			t.Errorf("narrator request = %+v", narrator.got)
		}
		entries, err := store.List()
		if err != nil || len(entries) != 1 || entries[0].Path != ans.SnapshotPath {
			t.Errorf("snapshots = %+v, %v", entries, err)
		}
	})

	t.Run("narration unavailable keeps the context", func(t *testing.T) {
		store := snapshot.NewStore(t.TempDir(), 0, nil)
		e := newEngine(Options{
			Sources:   []sources.Source{toggl()},
			Narrator:  &fakeNarrator{err: errors.New("503 service unavailable")},
			Snapshots: store,
		})

		ans, err := e.Answer(context.Background(), Request{Mode: envelope.ModeSummary})
		if !lserrors.HasCode(err, lserrors.NarrationUnavailable) {
			t.Fatalf("error = %v, want NarrationUnavailable", err)
		}
		if ans == nil || ans.Context == nil || ans.SnapshotPath == "" {
			t.Fatalf("answer = %+v", ans)
		}
		rec, err := store.Load(ans.SnapshotPath)
		if err != nil {
			t.Fatal(err)
		}
		if !strings.Contains(rec.NarrationError, "503 service unavailable") {
			t.Errorf("snapshot narration error = %q", rec.NarrationError)
		}
	})

	t.Run("no narrator", func(t *testing.T) {
		ans, err := newEngine(Options{}).Answer(context.Background(), Request{})
		if !lserrors.HasCode(err, lserrors.NarrationUnavailable) || ans == nil || ans.Context == nil {
			t.Errorf("got %+v, %v", ans, err)
		}
	})

	t.Run("fatal build error", func(t *testing.T) {
		ans, err := newEngine(Options{}).Answer(context.Background(), Request{Mode: envelope.ModeFocus})
		if !lserrors.HasCode(err, lserrors.EmptyTopic) || ans != nil {
			t.Errorf("got %+v, %v", ans, err)
		}
	})
}

func TestOptionsFromConfig(t *testing.T) {
	if _, err := time.LoadLocation("Europe/Lisbon"); err != nil {
		t.Skip("tzdata not available")
	}
	cfg := config.DefaultConfig()
	cfg.Timezone = "Europe/Lisbon"
	opts, err := OptionsFromConfig(cfg)
	if err != nil {
		t.Fatal(err)
	}
	if opts.Spans != (window.Spans{LastMonth: 30, Last90Days: 90, Last12Months: 365}) {
		t.Errorf("spans = %+v", opts.Spans)
	}
	if *opts.Signals != signals.DefaultConfig() || opts.Budget != envelope.DefaultBudget() {
		t.Errorf("signals/budget = %+v %+v", *opts.Signals, opts.Budget)
	}
	if opts.SourceTimeout != 5*time.Second || opts.InvocationTimeout != 15*time.Second {
		t.Errorf("timeouts = %s %s", opts.SourceTimeout, opts.InvocationTimeout)
	}
	if opts.Location.String() != "Europe/Lisbon" {
		t.Errorf("location = %s", opts.Location)
	}

	cfg.Timezone = "Mars/Olympus"
	if _, err := OptionsFromConfig(cfg); err == nil {
		t.Error("expected error for unknown timezone")
	}
}
