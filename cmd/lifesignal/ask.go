package main

import (
	"strings"

	"github.com/spf13/cobra"

	"lifesignal/internal/engine"
	"lifesignal/internal/envelope"
	lserrors "lifesignal/internal/errors"
	"lifesignal/internal/metrics"
	"lifesignal/internal/output"
	"lifesignal/internal/window"
)

// askFlags are the flags shared by focus, summary and progress.
type askFlags struct {
	window       string
	trend        bool
	period       string
	currentDays  int
	baselineDays int
	question     string
	contextOnly  bool
}

var (
	focusFlags    askFlags
	summaryFlags  askFlags
	progressFlags askFlags
)

var focusCmd = &cobra.Command{
	Use:   "focus <topic...>",
	Short: "Report activity on one topic across all sources",
	Long: `Interpret the topic into keywords, match them against every enabled source
over the window and narrate the signals. Sources with no matching records
are reported as silent.`,
	Example: `  lifesignal focus learning portuguese
  lifesignal focus "deep work" --window last_month --trend`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runAsk(cmd, envelope.ModeFocus, args, focusFlags)
	},
}

var summaryCmd = &cobra.Command{
	Use:   "summary [question...]",
	Short: "Summarize all activity over a window",
	Example: `  lifesignal summary
  lifesignal summary --window last_90_days what stood out this quarter`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runAsk(cmd, envelope.ModeSummary, args, summaryFlags)
	},
}

var progressCmd = &cobra.Command{
	Use:   "progress [question...]",
	Short: "Compare the current period with the one before it",
	Example: `  lifesignal progress
  lifesignal progress --period last_14/prior_14`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runAsk(cmd, envelope.ModeProgress, args, progressFlags)
	},
}

func init() {
	for _, c := range []struct {
		cmd   *cobra.Command
		flags *askFlags
	}{{focusCmd, &focusFlags}, {summaryCmd, &summaryFlags}, {progressCmd, &progressFlags}} {
		c.cmd.Flags().BoolVar(&c.flags.contextOnly, "context-only", false, "Print the assembled context without narrating it")
		c.cmd.Flags().IntVar(&c.flags.currentDays, "current-days", 0, "Explicit current window in days")
		c.cmd.Flags().IntVar(&c.flags.baselineDays, "baseline-days", 0, "Explicit baseline window in days")
		rootCmd.AddCommand(c.cmd)
	}

	for _, c := range []struct {
		cmd   *cobra.Command
		flags *askFlags
	}{{focusCmd, &focusFlags}, {summaryCmd, &summaryFlags}} {
		c.cmd.Flags().StringVar(&c.flags.window, "window", "", "Window token (last_month, last_90_days, last_12_months)")
		c.cmd.Flags().BoolVar(&c.flags.trend, "trend", false, "Add the preceding equal-length window as a baseline")
	}
	focusCmd.Flags().StringVar(&focusFlags.question, "question", "", "Question to narrate (default: how am I doing on <topic>)")
	progressCmd.Flags().StringVar(&progressFlags.period, "period", "", "Period pair such as last_30/prior_30")
}

// buildRequest turns positional args and flags into an engine request.
// Focus reads args as the topic; the other modes read them as the question.
func buildRequest(mode envelope.Mode, args []string, f askFlags) (engine.Request, error) {
	req := engine.Request{
		Mode:         mode,
		Trend:        f.trend,
		CurrentDays:  f.currentDays,
		BaselineDays: f.baselineDays,
		Question:     strings.TrimSpace(f.question),
	}

	joined := strings.TrimSpace(strings.Join(args, " "))
	if mode == envelope.ModeFocus {
		req.Topic = joined
	} else if joined != "" {
		req.Question = joined
	}

	if f.window != "" {
		tok, err := window.ParseToken(f.window)
		if err != nil {
			return engine.Request{}, err
		}
		req.Window = tok
	}
	if f.period != "" {
		if f.currentDays != 0 || f.baselineDays != 0 {
			return engine.Request{}, lserrors.NewInvalidWindow("--period cannot be combined with --current-days or --baseline-days")
		}
		cur, base, err := window.ParsePeriod(f.period)
		if err != nil {
			return engine.Request{}, err
		}
		req.CurrentDays, req.BaselineDays = cur, base
	}
	return req, nil
}

// answerView is the machine-readable form of a narrated answer.
type answerView struct {
	RunID          string            `json:"runId" yaml:"runId"`
	Narration      string            `json:"narration,omitempty" yaml:"narration,omitempty"`
	NarrationError string            `json:"narrationError,omitempty" yaml:"narrationError,omitempty"`
	SnapshotPath   string            `json:"snapshotPath,omitempty" yaml:"snapshotPath,omitempty"`
	Context        *envelope.Context `json:"context" yaml:"context"`
}

func runAsk(cmd *cobra.Command, mode envelope.Mode, args []string, f askFlags) error {
	req, err := buildRequest(mode, args, f)
	if err != nil {
		return err
	}

	rt, err := newRuntime(cmd)
	if err != nil {
		return err
	}
	defer rt.close()

	db, err := rt.openStore()
	if err != nil {
		return err
	}
	defer db.Close()

	rec := metrics.New()
	defer rt.writeMetrics(rec)

	eng, err := rt.newEngine(db, rec)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if f.contextOnly {
		c, err := eng.BuildContext(ctx, req)
		if err != nil {
			return err
		}
		if done, err := rt.emit(c); done {
			return err
		}
		return output.RenderContext(rt.printer, c)
	}

	ans, askErr := eng.Answer(ctx, req)
	if ans == nil {
		return askErr
	}
	if err := rt.renderAnswer(ans, askErr); err != nil {
		return err
	}
	return askErr
}

// renderAnswer prints the context and narration. When narration failed the
// context is still printed so the signals are not lost.
func (r *runtime) renderAnswer(ans *engine.Answer, narrationErr error) error {
	view := answerView{
		RunID:        ans.RunID,
		Narration:    ans.Narration,
		SnapshotPath: ans.SnapshotPath,
		Context:      ans.Context,
	}
	if narrationErr != nil {
		view.NarrationError = narrationErr.Error()
	}
	if done, err := r.emit(view); done {
		return err
	}

	if err := output.RenderContext(r.printer, ans.Context); err != nil {
		return err
	}
	if ans.Narration != "" {
		output.RenderNarration(r.printer, ans.Narration)
	}
	if ans.SnapshotPath != "" {
		r.printer.Info("Context saved to %s", ans.SnapshotPath)
	}
	return nil
}
