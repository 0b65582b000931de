package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"lifesignal/internal/catalog"
	"lifesignal/internal/config"
	"lifesignal/internal/engine"
	lserrors "lifesignal/internal/errors"
	"lifesignal/internal/llm"
	"lifesignal/internal/metrics"
	"lifesignal/internal/narration"
	"lifesignal/internal/output"
	"lifesignal/internal/paths"
	"lifesignal/internal/slogutil"
	"lifesignal/internal/snapshot"
	"lifesignal/internal/sources"
	"lifesignal/internal/storage"
	"lifesignal/internal/topic"
	"lifesignal/internal/window"
)

// runtime is the per-command setup shared by every subcommand.
type runtime struct {
	home    string
	cfg     *config.Config
	format  output.Format
	printer *output.Printer
	logs    *slogutil.LoggerFactory
	logger  *slog.Logger
}

// newRuntime loads .env and config.json from the config dir and builds the
// printer and logger for cmd.
func newRuntime(cmd *cobra.Command) (*runtime, error) {
	format, err := output.ParseFormat(formatFlag)
	if err != nil {
		return nil, lserrors.New(lserrors.ConfigInvalid, err.Error(), nil)
	}
	colors, err := output.ParseColorMode(colorFlag)
	if err != nil {
		return nil, lserrors.New(lserrors.ConfigInvalid, err.Error(), nil)
	}

	home, err := paths.ConfigDir(configDirFlag)
	if err != nil {
		return nil, fmt.Errorf("resolving config dir: %w", err)
	}
	if err := config.LoadDotEnv(paths.DotEnvPath(home)); err != nil {
		return nil, lserrors.New(lserrors.ConfigInvalid, "cannot load .env", err)
	}
	cfg, err := config.LoadConfig(home)
	if err != nil {
		return nil, lserrors.New(lserrors.ConfigInvalid, "cannot load configuration", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, lserrors.New(lserrors.ConfigInvalid, "invalid configuration", err)
	}

	cliSet := verboseFlag > 0 || quietFlag
	logs := slogutil.NewLoggerFactory(home, cfg, slogutil.LevelFromVerbosity(verboseFlag, quietFlag), cliSet)

	return &runtime{
		home:   home,
		cfg:    cfg,
		format: format,
		printer: output.NewPrinter(output.PrinterOptions{
			Out:       cmd.OutOrStdout(),
			Err:       cmd.ErrOrStderr(),
			ColorMode: colors,
			Quiet:     quietFlag,
		}),
		logs:   logs,
		logger: logs.Logger(cmd.ErrOrStderr()),
	}, nil
}

func (r *runtime) close() {
	if err := r.logs.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "closing log file: %v\n", err)
	}
}

// openStore connects to the configured storage. sqlite defaults to
// <home>/lifesignal.db.
func (r *runtime) openStore() (*storage.DB, error) {
	dsn := r.cfg.Storage.DSN
	if dsn == "" && r.cfg.Storage.Driver == "sqlite" {
		dsn = paths.DefaultDatabasePath(r.home)
	}
	db, err := storage.Open(storage.Config{Driver: r.cfg.Storage.Driver, DSN: dsn}, r.logger)
	if err != nil {
		return nil, lserrors.New(lserrors.SourceUnavailable, "cannot open storage", err)
	}
	return db, nil
}

func (r *runtime) catalogPath() string {
	if r.cfg.Catalog.Path != "" {
		return r.cfg.Catalog.Path
	}
	return paths.DefaultCatalogPath(r.home)
}

// loadCatalog merges the catalog file over the built-in entries.
func (r *runtime) loadCatalog() (*catalog.Catalog, error) {
	return catalog.Load(r.catalogPath())
}

func (r *runtime) llmClient() *llm.Client {
	n := r.cfg.Narration
	return llm.New(llm.Config{
		BaseURL:     n.BaseURL,
		Model:       n.Model,
		APIKey:      os.Getenv(n.APIKeyEnv),
		Temperature: n.Temperature,
		MaxTokens:   n.MaxTokens,
		Timeout:     r.cfg.NarrationTimeout(),
		MaxRetries:  n.MaxRetries,
	}, nil)
}

func (r *runtime) interpreter(client *llm.Client) topic.Interpreter {
	lexical := topic.NewLexical(r.cfg.Interpreter.Synonyms)
	if r.cfg.Interpreter.Kind != "llm" {
		return lexical
	}
	return &topic.Fallback{Primary: topic.NewLLM(client), Secondary: lexical, Logger: r.logger}
}

func (r *runtime) snapshotStore() *snapshot.Store {
	s := r.cfg.Snapshots
	dir := s.Dir
	if dir == "" {
		dir = paths.SnapshotsDir(r.home)
	}
	return snapshot.NewStore(dir, s.Retain, r.logger)
}

// newEngine wires every enabled catalog source over db.
func (r *runtime) newEngine(db *storage.DB, rec *metrics.Recorder) (*engine.Engine, error) {
	cat, err := r.loadCatalog()
	if err != nil {
		return nil, err
	}
	entries, err := cat.Enabled(r.cfg.Sources.Enabled)
	if err != nil {
		return nil, err
	}

	opts, err := engine.OptionsFromConfig(r.cfg)
	if err != nil {
		return nil, lserrors.New(lserrors.ConfigInvalid, "invalid configuration", err)
	}
	client := r.llmClient()
	opts.Sources = sources.FromCatalog(entries, db, r.cfg.Pipeline.QueryRowLimit)
	opts.Interpreter = r.interpreter(client)
	opts.Narrator = narration.NewOpenAI(client)
	opts.Logger = r.logger
	opts.Metrics = rec
	if r.cfg.Snapshots.Enabled {
		opts.Snapshots = r.snapshotStore()
	}
	if nowFlag != "" {
		now, err := parseNow(nowFlag, opts.Location)
		if err != nil {
			return nil, err
		}
		opts.Now = func() time.Time { return now }
	}

	r.logger.Debug("engine wired", "sources", len(opts.Sources), "interpreter", r.cfg.Interpreter.Kind)
	return engine.New(opts), nil
}

// writeMetrics flushes rec to the configured textfile. Failures are logged.
func (r *runtime) writeMetrics(rec *metrics.Recorder) {
	if err := rec.WriteTextfile(r.cfg.Metrics.Textfile); err != nil {
		r.logger.Warn("writing metrics textfile", "path", r.cfg.Metrics.Textfile, "error", err)
	}
}

// emit writes v in the selected machine format. human returns false so the
// caller renders.
func (r *runtime) emit(v interface{}) (bool, error) {
	if r.format == output.FormatHuman {
		return false, nil
	}
	return true, output.Write(r.printer.Out(), r.format, v)
}

// parseNow accepts RFC3339 or a civil date, read in loc.
func parseNow(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	if loc == nil {
		loc = time.UTC
	}
	t, err := time.ParseInLocation(window.DateLayout, s, loc)
	if err != nil {
		return time.Time{}, lserrors.NewInvalidWindow(fmt.Sprintf("invalid --now %q: want RFC3339 or %s", s, window.DateLayout))
	}
	return t, nil
}
