// Package envelope defines the Context handed to narration and assembles it
// from per-source signal bundles. The Context is the trust boundary: every
// field is a computed signal or window metadata, never record text.
package envelope

import (
	"encoding/json"
	"fmt"

	"lifesignal/internal/signals"
	"lifesignal/internal/topic"
	"lifesignal/internal/window"
)

// CurrentSchemaVersion is the current Context schema version.
const CurrentSchemaVersion = "1.0"

// Mode is the kind of question being answered.
type Mode string

const (
	ModeFocus    Mode = "focus"
	ModeSummary  Mode = "summary"
	ModeProgress Mode = "progress"
)

// SourceError marks a source that could not be queried. It is recoverable
// and distinct from a silent source.
type SourceError struct {
	SourceID string `json:"sourceId" yaml:"sourceId"`
	Code     string `json:"code" yaml:"code"`
	Message  string `json:"message" yaml:"message"`
}

// Coverage says which enabled sources contributed. Disabled sources never
// appear here.
type Coverage struct {
	MatchedSources []string      `json:"matchedSources" yaml:"matchedSources"`
	SilentSources  []string      `json:"silentSources" yaml:"silentSources"`
	Errors         []SourceError `json:"errors,omitempty" yaml:"errors,omitempty"`
}

// Thresholds echoes the configuration the signals were computed with.
type Thresholds struct {
	MomentumThreshold   float64 `json:"momentumThreshold" yaml:"momentumThreshold"`
	StreakToleranceDays int     `json:"streakToleranceDays" yaml:"streakToleranceDays"`
}

// Truncation describes what the size budget removed.
type Truncation struct {
	IsTruncated    bool     `json:"isTruncated" yaml:"isTruncated"`
	Shown          int      `json:"shown" yaml:"shown"` // sources kept
	Total          int      `json:"total" yaml:"total"` // sources computed
	TrimmedSeries  []string `json:"trimmedSeries,omitempty" yaml:"trimmedSeries,omitempty"`
	DroppedSources []string `json:"droppedSources,omitempty" yaml:"droppedSources,omitempty"`
	Reasons        []string `json:"reasons,omitempty" yaml:"reasons,omitempty"` // "max-series-points", "max-sources", "max-bytes"
}

// Warning represents a non-fatal issue.
type Warning struct {
	Code    string `json:"code,omitempty" yaml:"code,omitempty"`
	Message string `json:"message" yaml:"message"`
}

// Context is the complete, bounded input to narration.
type Context struct {
	SchemaVersion string                    `json:"schemaVersion" yaml:"schemaVersion"`
	Mode          Mode                      `json:"mode" yaml:"mode"`
	ReferenceDate string                    `json:"referenceDate" yaml:"referenceDate"`
	Topic         *topic.Topic              `json:"topic" yaml:"topic"`
	Windows       window.Pair               `json:"windows" yaml:"windows"`
	Sources       map[string]signals.Bundle `json:"sources" yaml:"sources"`
	Coverage      Coverage                  `json:"coverage" yaml:"coverage"`
	Thresholds    Thresholds                `json:"thresholds" yaml:"thresholds"`
	Truncation    *Truncation               `json:"truncation,omitempty" yaml:"truncation,omitempty"`
	Warnings      []Warning                 `json:"warnings,omitempty" yaml:"warnings,omitempty"`
}

// Marshal encodes c as compact JSON. Map keys are sorted, so equal
// contexts encode to identical bytes.
func Marshal(c *Context) ([]byte, error) {
	return json.Marshal(c)
}

// MarshalIndent encodes c as indented JSON.
func MarshalIndent(c *Context) ([]byte, error) {
	return json.MarshalIndent(c, "", "  ")
}

// Unmarshal decodes a Context produced by Marshal.
func Unmarshal(data []byte) (*Context, error) {
	var c Context
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("decode context: %w", err)
	}
	if c.SchemaVersion != CurrentSchemaVersion {
		return nil, fmt.Errorf("unsupported context schema version %q", c.SchemaVersion)
	}
	return &c, nil
}
