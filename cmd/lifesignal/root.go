package main

import (
	"github.com/spf13/cobra"

	"lifesignal/internal/version"
)

var (
	formatFlag    string
	configDirFlag string
	verboseFlag   int
	quietFlag     bool
	nowFlag       string
	colorFlag     string
)

var rootCmd = &cobra.Command{
	Use:   "lifesignal",
	Short: "Lifesignal - cross-source activity signals and narration",
	Long: `Lifesignal answers reflective questions about your own activity. It queries
every enabled tracker source over a time window, computes deterministic
signals per source and hands a size-bounded context to a narrator that
reports them in plain language.`,
	Version:       version.Version,
	SilenceErrors: true,
	SilenceUsage:  true,
}

func init() {
	rootCmd.SetVersionTemplate("lifesignal version {{.Version}}\n")
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&formatFlag, "format", "human", "Output format (json, yaml, human)")
	pf.StringVar(&configDirFlag, "config-dir", "", "Configuration directory (default $LIFESIGNAL_HOME or ~/.lifesignal)")
	pf.CountVarP(&verboseFlag, "verbose", "v", "Increase log verbosity (-v info, -vv debug)")
	pf.BoolVarP(&quietFlag, "quiet", "q", false, "Suppress logs and status messages")
	pf.StringVar(&nowFlag, "now", "", "Override the current time (RFC3339 or YYYY-MM-DD)")
	pf.StringVar(&colorFlag, "color", "auto", "Color output (auto, always, never)")
}
