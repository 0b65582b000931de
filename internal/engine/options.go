package engine

import (
	"lifesignal/internal/config"
	"lifesignal/internal/envelope"
	"lifesignal/internal/signals"
	"lifesignal/internal/window"
)

// OptionsFromConfig copies the engine's tunables out of cfg. Collaborators
// (sources, interpreter, narrator, logger, metrics, snapshots) are left for
// the caller to wire.
func OptionsFromConfig(cfg *config.Config) (Options, error) {
	loc, err := cfg.Location()
	if err != nil {
		return Options{}, err
	}
	return Options{
		Spans: window.Spans{
			LastMonth:    cfg.Windows.LastMonthDays,
			Last90Days:   cfg.Windows.Last90Days,
			Last12Months: cfg.Windows.Last12MonthsDays,
		},
		Signals: &signals.Config{
			MomentumThreshold:   cfg.Signals.MomentumThreshold,
			StreakToleranceDays: cfg.Signals.StreakToleranceDays,
		},
		Budget: envelope.Budget{
			MaxSources:      cfg.Budget.MaxSources,
			MaxSeriesPoints: cfg.Budget.MaxSeriesPoints,
			MaxBytes:        cfg.Budget.MaxBytes,
		},
		MaxConcurrentSources:  cfg.Pipeline.MaxConcurrentSources,
		SourceTimeout:         cfg.SourceTimeout(),
		InvocationTimeout:     cfg.InvocationTimeout(),
		FatalUnavailableRatio: cfg.Pipeline.FatalUnavailableRatio,
		Location:              loc,
	}, nil
}
