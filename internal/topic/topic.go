// Package topic turns a free-text query into the keyword set used to
// match records across sources.
package topic

import (
	"context"
	"log/slog"
	"sort"
	"strings"

	lserrors "lifesignal/internal/errors"
)

// Topic is an interpreted query. Keywords are lower-cased, deduplicated
// and sorted; callers must not modify them.
type Topic struct {
	RawQuery string   `json:"rawQuery" yaml:"rawQuery"`
	Keywords []string `json:"keywords" yaml:"keywords"`
}

// Interpreter maps a raw query to candidate keywords. Implementations see
// only the raw query, never record data.
type Interpreter interface {
	Interpret(ctx context.Context, rawQuery string) ([]string, error)
}

// InterpreterFunc adapts a function to Interpreter.
type InterpreterFunc func(ctx context.Context, rawQuery string) ([]string, error)

// Interpret calls f.
func (f InterpreterFunc) Interpret(ctx context.Context, rawQuery string) ([]string, error) {
	return f(ctx, rawQuery)
}

// Interpret runs interp and normalizes its output. No usable keyword is
// an EmptyTopic error.
func Interpret(ctx context.Context, interp Interpreter, rawQuery string) (*Topic, error) {
	raw := strings.TrimSpace(rawQuery)
	if raw == "" {
		return nil, lserrors.NewEmptyTopic(rawQuery)
	}

	candidates, err := interp.Interpret(ctx, raw)
	if err != nil {
		return nil, err
	}

	keywords := Normalize(candidates)
	if len(keywords) == 0 {
		return nil, lserrors.NewEmptyTopic(raw)
	}
	return &Topic{RawQuery: raw, Keywords: keywords}, nil
}

// Normalize trims, lower-cases, deduplicates and sorts keywords,
// dropping empties.
func Normalize(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, k := range in {
		k = strings.ToLower(strings.TrimSpace(k))
		if k == "" {
			continue
		}
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Fallback tries Primary and falls back to Secondary when it errors or
// yields nothing usable.
type Fallback struct {
	Primary   Interpreter
	Secondary Interpreter
	Logger    *slog.Logger
}

// Interpret implements Interpreter.
func (f *Fallback) Interpret(ctx context.Context, rawQuery string) ([]string, error) {
	keywords, err := f.Primary.Interpret(ctx, rawQuery)
	if err == nil && len(Normalize(keywords)) > 0 {
		return keywords, nil
	}
	if f.Logger != nil {
		f.Logger.Warn("primary interpreter failed, using fallback", "error", err, "keywords", len(keywords))
	}
	return f.Secondary.Interpret(ctx, rawQuery)
}
