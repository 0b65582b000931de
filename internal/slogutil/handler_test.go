package slogutil

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"lifesignal/internal/config"
)

func TestHandler_Format(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, slog.LevelInfo)

	logger.Info("source matched", "source", "asana", "records", 42)

	output := buf.String()
	for _, want := range []string{"[info]", "source matched", " | ", "source=asana", "records=42"} {
		if !strings.Contains(output, want) {
			t.Errorf("expected %q in output, got: %s", want, output)
		}
	}
	if !strings.HasSuffix(output, "\n") {
		t.Error("record should end with newline")
	}
}

func TestHandler_Levels(t *testing.T) {
	tests := []struct {
		logFunc  func(*slog.Logger)
		expected string
	}{
		{func(l *slog.Logger) { l.Debug("d") }, "[debug]"},
		{func(l *slog.Logger) { l.Info("i") }, "[info]"},
		{func(l *slog.Logger) { l.Warn("w") }, "[warn]"},
		{func(l *slog.Logger) { l.Error("e") }, "[error]"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			var buf bytes.Buffer
			tt.logFunc(NewLogger(&buf, slog.LevelDebug))
			if !strings.Contains(buf.String(), tt.expected) {
				t.Errorf("expected %s in output, got: %s", tt.expected, buf.String())
			}
		})
	}
}

func TestHandler_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, slog.LevelWarn)

	logger.Debug("debug message")
	logger.Info("info message")
	logger.Warn("warn message")

	output := buf.String()
	if strings.Contains(output, "debug message") || strings.Contains(output, "info message") {
		t.Errorf("records below warn should be filtered, got: %s", output)
	}
	if !strings.Contains(output, "warn message") {
		t.Error("warn message should be included")
	}
}

func TestHandler_AttrsAndGroups(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, slog.LevelInfo).With("run_id", "r1").WithGroup("engine")

	logger.Info("fan-out", "sources", 5, slog.Group("window", "start", "2026-01-01"))

	output := buf.String()
	for _, want := range []string{"run_id=r1", "engine.sources=5", "engine.window.start=2026-01-01"} {
		if !strings.Contains(output, want) {
			t.Errorf("expected %q in output, got: %s", want, output)
		}
	}
}

func TestHandler_ValueRendering(t *testing.T) {
	tests := []struct {
		name string
		attr slog.Attr
		want string
	}{
		{"plain", slog.String("source", "toggl"), " | source=toggl\n"},
		{"spaces quoted", slog.String("topic", "learn portuguese"), ` | topic="learn portuguese"` + "\n"},
		{"empty quoted", slog.String("question", ""), ` | question=""` + "\n"},
		{"duration", slog.Duration("elapsed", 1500*time.Millisecond), " | elapsed=1.5s\n"},
		{"inline group", slog.Group("", slog.Int("matched", 3)), " | matched=3\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			NewLogger(&buf, slog.LevelInfo).LogAttrs(context.Background(), slog.LevelInfo, "m", tt.attr)
			if !strings.HasSuffix(buf.String(), tt.want) {
				t.Errorf("output = %q, want suffix %q", buf.String(), tt.want)
			}
		})
	}
}

func TestLevelFromString(t *testing.T) {
	tests := []struct {
		input    string
		expected slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{"warning", slog.LevelWarn},
		{"ERROR", slog.LevelError},
		{"unknown", slog.LevelInfo},
		{"", slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := LevelFromString(tt.input); got != tt.expected {
				t.Errorf("LevelFromString(%q) = %v, want %v", tt.input, got, tt.expected)
			}
		})
	}
}

func TestLevelFromVerbosity(t *testing.T) {
	tests := []struct {
		verbosity int
		quiet     bool
		expected  slog.Level
	}{
		{0, false, slog.LevelWarn},
		{1, false, slog.LevelInfo},
		{2, false, slog.LevelDebug},
		{0, true, LevelSilent},
		{5, true, LevelSilent},
	}

	for _, tt := range tests {
		if got := LevelFromVerbosity(tt.verbosity, tt.quiet); got != tt.expected {
			t.Errorf("LevelFromVerbosity(%d, %v) = %v, want %v", tt.verbosity, tt.quiet, got, tt.expected)
		}
	}
}

func TestTeeHandler(t *testing.T) {
	var buf1, buf2 bytes.Buffer
	h1 := NewHandler(&buf1, &slog.HandlerOptions{Level: slog.LevelInfo})
	h2 := NewHandler(&buf2, &slog.HandlerOptions{Level: slog.LevelWarn})

	logger := slog.New(NewTeeHandler(h1, h2))
	logger.Info("info message")
	logger.Warn("warn message")

	if !strings.Contains(buf1.String(), "info message") || !strings.Contains(buf1.String(), "warn message") {
		t.Errorf("buf1 should contain both records, got: %s", buf1.String())
	}
	if strings.Contains(buf2.String(), "info message") {
		t.Error("buf2 should not contain info message")
	}
	if !strings.Contains(buf2.String(), "warn message") {
		t.Error("buf2 should contain warn message")
	}
}

type failingHandler struct{ slog.Handler }

func (failingHandler) Handle(context.Context, slog.Record) error { return errors.New("disk full") }

func TestTeeHandler_ReachesEverySinkDespiteErrors(t *testing.T) {
	var buf bytes.Buffer
	failing := failingHandler{NewHandler(io.Discard, nil)}
	tee := NewTeeHandler(failing, NewHandler(&buf, nil))

	err := tee.Handle(context.Background(), slog.NewRecord(time.Now(), slog.LevelWarn, "flushed", 0))
	if err == nil || !strings.Contains(err.Error(), "disk full") {
		t.Errorf("Handle error = %v, want disk full", err)
	}
	if !strings.Contains(buf.String(), "flushed") {
		t.Errorf("second sink skipped after first failed: %q", buf.String())
	}
}

func TestLoggerFactory(t *testing.T) {
	home := t.TempDir()
	cfg := config.DefaultConfig()
	cfg.Logging.File = "lifesignal.log"

	var stderr bytes.Buffer
	f := NewLoggerFactory(home, cfg, slog.LevelWarn, true)
	logger := f.Logger(&stderr)

	logger.Info("context assembled", "bytes", 812)
	logger.Warn("source unavailable", "source", "habitica")
	if err := f.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	if strings.Contains(stderr.String(), "context assembled") {
		t.Error("info should not reach stderr at warn level")
	}
	if !strings.Contains(stderr.String(), "source=habitica") {
		t.Errorf("warn should reach stderr, got: %s", stderr.String())
	}

	data, err := os.ReadFile(filepath.Join(home, "logs", "lifesignal.log"))
	if err != nil {
		t.Fatalf("log file not written: %v", err)
	}
	if !strings.Contains(string(data), "source=habitica") {
		t.Errorf("file log missing warn record: %s", data)
	}
}

func TestLoggerFactory_NoFile(t *testing.T) {
	var stderr bytes.Buffer
	f := NewLoggerFactory("", nil, 0, false)
	logger := f.Logger(&stderr)

	logger.Info("hidden")
	logger.Warn("shown")

	if strings.Contains(stderr.String(), "hidden") {
		t.Error("default console level should be warn")
	}
	if !strings.Contains(stderr.String(), "shown") {
		t.Error("warn should be printed")
	}
	if err := f.Close(); err != nil {
		t.Errorf("Close with no files: %v", err)
	}
}
