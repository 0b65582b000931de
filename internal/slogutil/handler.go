// Package slogutil provides the slog handler and logger constructors used by lifesignal.
package slogutil

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Handler writes one line per record:
//
//	2026-03-05T08:00:00Z [warn] source unavailable | source=habitica elapsed=2s
//
// Groups become dotted key prefixes.
type Handler struct {
	out    io.Writer
	mu     *sync.Mutex
	level  slog.Leveler
	prefix string
	// bound holds attrs added by WithAttrs, already rendered.
	bound string
}

// NewHandler returns a Handler writing to w. opts may be nil.
func NewHandler(w io.Writer, opts *slog.HandlerOptions) *Handler {
	h := &Handler{out: w, mu: new(sync.Mutex), level: slog.LevelInfo}
	if opts != nil && opts.Level != nil {
		h.level = opts.Level
	}
	return h
}

func (h *Handler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

func (h *Handler) Handle(_ context.Context, r slog.Record) error {
	var line strings.Builder
	line.WriteString(r.Time.UTC().Format(time.RFC3339))
	line.WriteString(" [" + levelName(r.Level) + "] ")
	line.WriteString(r.Message)

	attrs := h.bound
	if r.NumAttrs() > 0 {
		var sb strings.Builder
		r.Attrs(func(a slog.Attr) bool {
			appendAttr(&sb, h.prefix, a)
			return true
		})
		attrs += sb.String()
	}
	if attrs != "" {
		line.WriteString(" |")
		line.WriteString(attrs)
	}
	line.WriteByte('\n')

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := io.WriteString(h.out, line.String())
	return err
}

func (h *Handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	if len(attrs) == 0 {
		return h
	}
	var sb strings.Builder
	sb.WriteString(h.bound)
	for _, a := range attrs {
		appendAttr(&sb, h.prefix, a)
	}
	c := *h
	c.bound = sb.String()
	return &c
}

func (h *Handler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	c := *h
	c.prefix = h.prefix + name + "."
	return &c
}

func appendAttr(sb *strings.Builder, prefix string, a slog.Attr) {
	v := a.Value.Resolve()
	if v.Kind() == slog.KindGroup {
		// Inline groups (empty key) keep the current prefix.
		p := prefix
		if a.Key != "" {
			p = prefix + a.Key + "."
		}
		for _, ga := range v.Group() {
			appendAttr(sb, p, ga)
		}
		return
	}
	if a.Key == "" {
		return
	}
	sb.WriteByte(' ')
	sb.WriteString(prefix + a.Key)
	sb.WriteByte('=')
	sb.WriteString(renderValue(v))
}

func renderValue(v slog.Value) string {
	var s string
	switch v.Kind() {
	case slog.KindString:
		s = v.String()
	case slog.KindTime:
		return v.Time().Format(time.RFC3339)
	case slog.KindDuration:
		return v.Duration().String()
	default:
		s = fmt.Sprint(v.Any())
	}
	if s == "" || strings.ContainsAny(s, " =\"\n\t") {
		return strconv.Quote(s)
	}
	return s
}

var levelNames = [...]string{"debug", "info", "warn", "error"}

func levelName(l slog.Level) string {
	switch {
	case l < slog.LevelInfo:
		return levelNames[0]
	case l < slog.LevelWarn:
		return levelNames[1]
	case l < slog.LevelError:
		return levelNames[2]
	}
	return levelNames[3]
}
