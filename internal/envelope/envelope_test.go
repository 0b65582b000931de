package envelope

import (
	"bytes"
	"errors"
	"reflect"
	"strings"
	"testing"
	"time"

	lserrors "lifesignal/internal/errors"
	"lifesignal/internal/signals"
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

func f(v float64) *float64 { return &v }

func TestScoreToTier(t *testing.T) {
	tests := []struct {
		score float64
		want  ConfidenceTier
	}{
		{1.0, TierHigh},
		{0.70, TierHigh},
		{0.69, TierMedium},
		{0.40, TierMedium},
		{0.39, TierLow},
		{0, TierLow},
	}
	for _, tt := range tests {
		if got := ScoreToTier(tt.score); got != tt.want {
			t.Errorf("ScoreToTier(%v) = %s, want %s", tt.score, got, tt.want)
		}
	}
}

func TestConfidenceScore(t *testing.T) {
	tests := []struct {
		name   string
		bundle signals.Bundle
		want   float64
	}{
		{"full evidence with momentum", signals.Bundle{ActiveDays: 20, Momentum: signals.Rising}, 1.0},
		{"full evidence without baseline", signals.Bundle{ActiveDays: 14, Momentum: signals.NoMomentum}, 0.8},
		{"half evidence", signals.Bundle{ActiveDays: 7, Momentum: signals.NoMomentum}, 0.4},
		{"thin evidence", signals.Bundle{ActiveDays: 3, Momentum: signals.NoMomentum}, 0.17},
		{"nothing", signals.Bundle{Momentum: signals.NoMomentum}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ConfidenceScore(tt.bundle); got != tt.want {
				t.Errorf("ConfidenceScore = %v, want %v", got, tt.want)
			}
		})
	}
}

func fullContext(t *testing.T) *Context {
	t.Helper()
	pair, err := window.NewPair(
		window.Window{Start: date("2026-03-01"), End: date("2026-03-31")},
		window.Window{Start: date("2026-01-30"), End: date("2026-03-01")},
	)
	if err != nil {
		t.Fatal(err)
	}

	c, err := New(ModeFocus, date("2026-03-31")).
		Topic(&topic.Topic{RawQuery: "learning Portuguese", Keywords: []string{"language", "portuguese"}}).
		Windows(pair).
		Thresholds(Thresholds{MomentumThreshold: 0.15, StreakToleranceDays: 1}).
		AddBundle("toggl", signals.Bundle{
			Kind: "time", Unit: "minutes", MomentumBasis: "volume",
			Presence: true, RecordCount: 5, Volume: 170.25, ActiveDays: 4, WindowDays: 30,
			ActiveDayRatio: 0.1333, LongestStreakDays: 1, LongestGapDays: 10,
			Momentum: signals.Rising, Baseline: &signals.Totals{RecordCount: 2, Volume: 100, ActiveDays: 2},
			ChangePct: f(70.3), BestDay: &signals.DayPoint{Date: "2026-03-02", Value: 50},
			DailyMedian: 37.5, Variability: f(0.3651), Burstiness: signals.Spread,
			Phase: signals.PhasePaused, Engagement: signals.EngagementFragmented,
			Series: []signals.PeriodPoint{{Period: "2026-W10", Records: 2, Volume: 50}, {Period: "2026-W11"}},
		}).
		AddSilent("asana").
		AddError("habitica", lserrors.NewSourceUnavailable("habitica", errors.New("connection refused"))).
		Warning("NOTE", "example").
		Budget(Budget{MaxSeriesPoints: 1}).
		Build()
	if err != nil {
		t.Fatal(err)
	}
	return c
}

func TestContextRoundTrip(t *testing.T) {
	c := fullContext(t)

	data, err := Marshal(c)
	if err != nil {
		t.Fatal(err)
	}
	back, err := Unmarshal(data)
	if err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if !reflect.DeepEqual(c, back) {
		t.Errorf("round trip mismatch:\n got %+v\nwant %+v", back, c)
	}

	again, err := Marshal(back)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(data, again) {
		t.Errorf("re-encoding differs:\n%s\n%s", data, again)
	}
}

func TestContextJSONShape(t *testing.T) {
	data, err := Marshal(fullContext(t))
	if err != nil {
		t.Fatal(err)
	}
	s := string(data)
	for _, want := range []string{
		`"schemaVersion":"1.0"`,
		`"mode":"focus"`,
		`"referenceDate":"2026-03-31"`,
		`"current":{"start":"2026-03-01","end":"2026-03-31"}`,
		`"baseline":{"start":"2026-01-30","end":"2026-03-01"}`,
		`"matchedSources":["toggl"]`,
		`"silentSources":["asana"]`,
		`"sourceId":"habitica","code":"SOURCE_UNAVAILABLE"`,
		`"unit":"minutes"`,
		`"confidence":"medium"`,
		`"trimmedSeries":["toggl"]`,
	} {
		if !strings.Contains(s, want) {
			t.Errorf("encoded context missing %s:\n%s", want, s)
		}
	}
}

func TestUnmarshal_RejectsUnknownVersion(t *testing.T) {
	if _, err := Unmarshal([]byte(`{"schemaVersion":"9.9"}`)); err == nil {
		t.Error("expected version error")
	}
	if _, err := Unmarshal([]byte(`{`)); err == nil {
		t.Error("expected decode error")
	}
}
