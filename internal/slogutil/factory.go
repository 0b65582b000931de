package slogutil

import (
	"io"
	"log/slog"
	"path/filepath"

	"lifesignal/internal/config"
	"lifesignal/internal/paths"
)

// LoggerFactory builds the invocation logger: stderr at the CLI level,
// plus an optional rotated file under <home>/logs.
// Precedence for the file level: CLI flag > logging.level > info.
type LoggerFactory struct {
	home     string
	config   *config.Config
	cliLevel slog.Level
	cliSet   bool
	closers  []io.Closer
}

// NewLoggerFactory creates a new logger factory. cliSet reports whether
// cliLevel came from explicit -v/-q flags.
func NewLoggerFactory(home string, cfg *config.Config, cliLevel slog.Level, cliSet bool) *LoggerFactory {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	return &LoggerFactory{
		home:     home,
		config:   cfg,
		cliLevel: cliLevel,
		cliSet:   cliSet,
	}
}

// Logger returns the invocation logger writing to stderr and, when
// logging.file is configured, to a rotated file. File failures degrade
// to stderr only.
func (f *LoggerFactory) Logger(stderr io.Writer) *slog.Logger {
	console := NewHandler(stderr, &slog.HandlerOptions{Level: f.consoleLevel()})

	path := f.filePath()
	if path == "" {
		return slog.New(console)
	}
	if _, err := paths.EnsureDir(filepath.Dir(path)); err != nil {
		return slog.New(console)
	}

	fileLogger, closer, err := f.createFileLogger(path, f.fileLevel())
	if err != nil {
		return slog.New(console)
	}
	f.closers = append(f.closers, closer)

	return slog.New(NewTeeHandler(console, fileLogger.Handler()))
}

// filePath resolves logging.file; relative names land in <home>/logs.
func (f *LoggerFactory) filePath() string {
	p := f.config.Logging.File
	if p == "" {
		return ""
	}
	if filepath.IsAbs(p) || f.home == "" {
		return p
	}
	return filepath.Join(paths.LogsDir(f.home), p)
}

func (f *LoggerFactory) createFileLogger(path string, level slog.Level) (*slog.Logger, io.Closer, error) {
	if f.config.Logging.MaxSize != "" {
		return NewFileLoggerWithRotation(path, level, f.config.Logging.MaxSize, f.config.Logging.MaxBackups)
	}
	return NewFileLogger(path, level)
}

func (f *LoggerFactory) consoleLevel() slog.Level {
	if f.cliSet {
		return f.cliLevel
	}
	if f.config.Logging.Level != "" {
		return LevelFromString(f.config.Logging.Level)
	}
	return slog.LevelWarn
}

func (f *LoggerFactory) fileLevel() slog.Level {
	if f.cliSet && f.cliLevel != LevelSilent {
		return f.cliLevel
	}
	if f.config.Logging.Level != "" {
		return LevelFromString(f.config.Logging.Level)
	}
	return slog.LevelInfo
}

// Close closes all open log files.
func (f *LoggerFactory) Close() error {
	var firstErr error
	for _, c := range f.closers {
		if err := c.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	f.closers = nil
	return firstErr
}
