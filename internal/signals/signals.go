// Package signals computes the comparable signal vocabulary (presence,
// volume, consistency, streaks, momentum) from per-source aggregates.
// Everything here is a pure function of its arguments.
package signals

import (
	"fmt"
	"math"
	"sort"
	"time"

	"lifesignal/internal/sources"
	"lifesignal/internal/window"
)

const day = 24 * time.Hour

// Momentum is the direction of the current window against its baseline.
type Momentum string

const (
	Rising     Momentum = "rising"
	Falling    Momentum = "falling"
	Stable     Momentum = "stable"
	NoMomentum Momentum = "none"
)

// Phase summarizes momentum and consistency together.
type Phase string

const (
	PhaseExecution   Phase = "execution"
	PhaseMaintenance Phase = "maintenance"
	PhaseRecovery    Phase = "recovery"
	PhasePaused      Phase = "paused"
)

// Engagement describes how activity is distributed over the window.
type Engagement string

const (
	EngagementSteady     Engagement = "steady"
	EngagementFocused    Engagement = "focused"
	EngagementFragmented Engagement = "fragmented"
	EngagementSparse     Engagement = "sparse"
)

// Burstiness labels
const (
	Spread    = "spread"
	Clustered = "clustered"
)

// Presence reports whether anything matched.
func Presence(recordCount int) bool {
	return recordCount > 0
}

// ActiveDayRatio is activeDays over the window span, clamped to [0, 1].
func ActiveDayRatio(activeDays int, w window.Window) float64 {
	span := w.SpanDays()
	if span <= 0 || activeDays <= 0 {
		return 0
	}
	return round(math.Min(float64(activeDays)/float64(span), 1), 4)
}

// Streaks returns the current and longest runs of consecutive days.
// Days after lastDay are ignored. The current run ends at the most recent
// active day and is 0 when that day is more than tolerance days before
// lastDay. longest >= current always.
func Streaks(days []time.Time, lastDay time.Time, tolerance int) (current, longest int) {
	sorted := uniqueSorted(days, lastDay)
	if len(sorted) == 0 {
		return 0, 0
	}

	run := 0
	for i, d := range sorted {
		if i > 0 && daysBetween(sorted[i-1], d) == 1 {
			run++
		} else {
			run = 1
		}
		if run > longest {
			longest = run
		}
	}

	if tolerance < 0 {
		tolerance = 0
	}
	if daysBetween(sorted[len(sorted)-1], lastDay) > tolerance {
		return 0, longest
	}
	return run, longest
}

// LongestGapDays is the longest run of inactive days in w, counting the
// stretches before the first and after the last active day. With no
// activity it is the whole span.
func LongestGapDays(days []time.Time, w window.Window) int {
	var inWindow []time.Time
	for _, d := range uniqueSorted(days, w.LastDay()) {
		if w.Contains(d) {
			inWindow = append(inWindow, d)
		}
	}
	if len(inWindow) == 0 {
		return w.SpanDays()
	}

	longest := daysBetween(w.Start, inWindow[0])
	for i := 1; i < len(inWindow); i++ {
		if gap := daysBetween(inWindow[i-1], inWindow[i]) - 1; gap > longest {
			longest = gap
		}
	}
	if tail := daysBetween(inWindow[len(inWindow)-1], w.LastDay()); tail > longest {
		longest = tail
	}
	return longest
}

// ClassifyMomentum compares current against baseline. An empty baseline
// yields NoMomentum whatever the current value.
func ClassifyMomentum(current, baseline, threshold float64) Momentum {
	if baseline <= 0 {
		return NoMomentum
	}
	switch {
	case current >= baseline*(1+threshold):
		return Rising
	case current <= baseline*(1-threshold):
		return Falling
	default:
		return Stable
	}
}

// ChangePct is the percentage change from baseline, or nil when the
// baseline is empty.
func ChangePct(current, baseline float64) *float64 {
	if baseline <= 0 {
		return nil
	}
	v := round((current-baseline)/baseline*100, 1)
	return &v
}

// DayPoint is a single dated value.
type DayPoint struct {
	Date  string  `json:"date" yaml:"date"`
	Value float64 `json:"value" yaml:"value"`
}

// BestDay returns the day with the highest value; ties go to the earliest.
func BestDay(days []sources.DayValue, value func(sources.DayValue) float64) *DayPoint {
	var best *DayPoint
	for _, d := range sortedDays(days) {
		v := value(d)
		if best == nil || v > best.Value {
			best = &DayPoint{Date: d.Day.Format(window.DateLayout), Value: round(v, 6)}
		}
	}
	return best
}

// DailyMedian is the median of per-active-day values.
func DailyMedian(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	s := append([]float64(nil), values...)
	sort.Float64s(s)
	mid := len(s) / 2
	if len(s)%2 == 1 {
		return round(s[mid], 4)
	}
	return round((s[mid-1]+s[mid])/2, 4)
}

// Variability is the coefficient of variation (population stddev over
// mean) of per-active-day values, or nil when undefined.
func Variability(values []float64) *float64 {
	if len(values) == 0 {
		return nil
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	mean := sum / float64(len(values))
	if mean == 0 {
		return nil
	}
	var sq float64
	for _, v := range values {
		sq += (v - mean) * (v - mean)
	}
	cv := round(math.Sqrt(sq/float64(len(values)))/mean, 4)
	return &cv
}

// Burstiness labels low-variability activity over several days as spread.
// A single active day is clustered; no activity has no label.
func Burstiness(cv *float64, activeDays int) string {
	if activeDays == 0 {
		return ""
	}
	if activeDays < 2 || cv == nil || *cv >= 0.5 {
		return Clustered
	}
	return Spread
}

// ClassifyPhase combines momentum with the active-day ratio.
func ClassifyPhase(m Momentum, ratio float64) Phase {
	switch {
	case m == Rising && ratio >= 0.5:
		return PhaseExecution
	case m == Stable && ratio >= 0.3:
		return PhaseMaintenance
	case m == Falling:
		return PhaseRecovery
	default:
		return PhasePaused
	}
}

// ClassifyEngagement combines the active-day ratio with burstiness.
func ClassifyEngagement(ratio float64, burstiness string) Engagement {
	switch {
	case ratio >= 0.6 && burstiness == Spread:
		return EngagementSteady
	case ratio >= 0.3 && burstiness != Clustered:
		return EngagementFocused
	case ratio > 0:
		return EngagementFragmented
	default:
		return EngagementSparse
	}
}

// PeriodPoint is one rolled-up period of a series.
type PeriodPoint struct {
	Period  string  `json:"period" yaml:"period"`
	Records int     `json:"records" yaml:"records"`
	Volume  float64 `json:"volume" yaml:"volume"`
}

// weeklyRollupMaxDays is the longest window rolled up by ISO week; longer
// windows roll up by month.
const weeklyRollupMaxDays = 120

// Rollup buckets per-day values into every ISO week (or month, for long
// windows) touching w, in order, including empty periods.
func Rollup(days []sources.DayValue, w window.Window) []PeriodPoint {
	label := monthLabel
	if w.SpanDays() <= weeklyRollupMaxDays {
		label = weekLabel
	}

	var out []PeriodPoint
	index := make(map[string]int)
	for _, d := range w.Days() {
		l := label(d)
		if _, ok := index[l]; !ok {
			index[l] = len(out)
			out = append(out, PeriodPoint{Period: l})
		}
	}
	for _, d := range days {
		if !w.Contains(d.Day) {
			continue
		}
		p := &out[index[label(d.Day)]]
		p.Records += d.Records
		p.Volume = round(p.Volume+d.Volume, 6)
	}
	return out
}

func weekLabel(t time.Time) string {
	y, wk := t.ISOWeek()
	return fmt.Sprintf("%04d-W%02d", y, wk)
}

func monthLabel(t time.Time) string {
	return t.Format("2006-01")
}

// uniqueSorted returns the distinct civil days on or before last, ascending.
func uniqueSorted(days []time.Time, last time.Time) []time.Time {
	seen := make(map[time.Time]struct{}, len(days))
	out := make([]time.Time, 0, len(days))
	for _, d := range days {
		d = time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, time.UTC)
		if d.After(last) {
			continue
		}
		if _, ok := seen[d]; ok {
			continue
		}
		seen[d] = struct{}{}
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out
}

func sortedDays(days []sources.DayValue) []sources.DayValue {
	out := append([]sources.DayValue(nil), days...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Day.Before(out[j].Day) })
	return out
}

func daysBetween(a, b time.Time) int {
	return int(b.Sub(a) / day)
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
