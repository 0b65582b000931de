package signals

import (
	"lifesignal/internal/catalog"
	"lifesignal/internal/sources"
	"lifesignal/internal/window"
)

// Config carries the shared thresholds.
type Config struct {
	// MomentumThreshold is the fraction current must move away from the
	// baseline to count as rising or falling.
	MomentumThreshold float64
	// StreakToleranceDays is how many days before the window's last day the
	// most recent active day may fall and still count as a current streak.
	StreakToleranceDays int
}

// DefaultConfig returns the default thresholds.
func DefaultConfig() Config {
	return Config{MomentumThreshold: 0.15, StreakToleranceDays: 1}
}

// Totals summarizes the baseline window.
type Totals struct {
	RecordCount int     `json:"recordCount" yaml:"recordCount"`
	Volume      float64 `json:"volume" yaml:"volume"`
	ActiveDays  int     `json:"activeDays" yaml:"activeDays"`
}

// Bundle is the signal set for one matched source in one window.
type Bundle struct {
	Kind              string        `json:"kind" yaml:"kind"`
	Unit              string        `json:"unit" yaml:"unit"`
	MomentumBasis     string        `json:"momentumBasis" yaml:"momentumBasis"`
	Presence          bool          `json:"presence" yaml:"presence"`
	RecordCount       int           `json:"recordCount" yaml:"recordCount"`
	Volume            float64       `json:"volume" yaml:"volume"`
	ActiveDays        int           `json:"activeDays" yaml:"activeDays"`
	WindowDays        int           `json:"windowDays" yaml:"windowDays"`
	ActiveDayRatio    float64       `json:"activeDayRatio" yaml:"activeDayRatio"`
	LongestStreakDays int           `json:"longestStreakDays" yaml:"longestStreakDays"`
	CurrentStreakDays int           `json:"currentStreakDays" yaml:"currentStreakDays"`
	LongestGapDays    int           `json:"longestGapDays" yaml:"longestGapDays"`
	Momentum          Momentum      `json:"momentum" yaml:"momentum"`
	Baseline          *Totals       `json:"baseline,omitempty" yaml:"baseline,omitempty"`
	ChangePct         *float64      `json:"changePct,omitempty" yaml:"changePct,omitempty"`
	BestDay           *DayPoint     `json:"bestDay,omitempty" yaml:"bestDay,omitempty"`
	DailyMedian       float64       `json:"dailyMedian" yaml:"dailyMedian"`
	Variability       *float64      `json:"variability,omitempty" yaml:"variability,omitempty"`
	Burstiness        string        `json:"burstiness,omitempty" yaml:"burstiness,omitempty"`
	Phase             Phase         `json:"phase" yaml:"phase"`
	Engagement        Engagement    `json:"engagement" yaml:"engagement"`
	Confidence        string        `json:"confidence,omitempty" yaml:"confidence,omitempty"`
	Series            []PeriodPoint `json:"series,omitempty" yaml:"series,omitempty"`
}

// Input is everything Calculate needs for one source.
type Input struct {
	Kind    catalog.Kind
	Unit    string
	Basis   catalog.Basis
	Window  window.Window
	Current sources.Aggregate
	// Baseline is nil when the window pair has no baseline.
	Baseline *sources.Aggregate
}

// Calculate derives the full bundle for one source.
func Calculate(in Input, cfg Config) Bundle {
	cur := in.Current
	days := cur.ActiveDays()

	b := Bundle{
		Kind:           string(in.Kind),
		Unit:           in.Unit,
		MomentumBasis:  string(in.Basis),
		Presence:       Presence(cur.RecordCount),
		RecordCount:    cur.RecordCount,
		Volume:         round(cur.Volume, 6),
		ActiveDays:     len(cur.Days),
		WindowDays:     in.Window.SpanDays(),
		ActiveDayRatio: ActiveDayRatio(len(cur.Days), in.Window),
		LongestGapDays: LongestGapDays(days, in.Window),
		Momentum:       NoMomentum,
	}
	b.CurrentStreakDays, b.LongestStreakDays = Streaks(days, in.Window.LastDay(), cfg.StreakToleranceDays)

	if in.Baseline != nil {
		base := *in.Baseline
		b.Baseline = &Totals{
			RecordCount: base.RecordCount,
			Volume:      round(base.Volume, 6),
			ActiveDays:  len(base.Days),
		}
		c, p := basisValue(in.Basis, cur), basisValue(in.Basis, base)
		b.Momentum = ClassifyMomentum(c, p, cfg.MomentumThreshold)
		b.ChangePct = ChangePct(c, p)
	}

	value := func(d sources.DayValue) float64 { return dayValue(in.Basis, d) }
	values := make([]float64, len(cur.Days))
	for i, d := range cur.Days {
		values[i] = value(d)
	}
	b.BestDay = BestDay(cur.Days, value)
	b.DailyMedian = DailyMedian(values)
	b.Variability = Variability(values)
	b.Burstiness = Burstiness(b.Variability, len(values))
	b.Phase = ClassifyPhase(b.Momentum, b.ActiveDayRatio)
	b.Engagement = ClassifyEngagement(b.ActiveDayRatio, b.Burstiness)
	b.Series = Rollup(cur.Days, in.Window)
	return b
}

func basisValue(basis catalog.Basis, a sources.Aggregate) float64 {
	if basis == catalog.BasisCount {
		return float64(a.RecordCount)
	}
	return a.Volume
}

func dayValue(basis catalog.Basis, d sources.DayValue) float64 {
	if basis == catalog.BasisCount {
		return float64(d.Records)
	}
	return d.Volume
}
