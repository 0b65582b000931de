package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorCode represents stable error codes for all failure modes
type ErrorCode string

const (
	// EmptyTopic indicates topic interpretation produced no usable keywords
	EmptyTopic ErrorCode = "EMPTY_TOPIC"
	// InvalidWindow indicates a malformed window or a non-equal-span window pair
	InvalidWindow ErrorCode = "INVALID_WINDOW"
	// SourceUnavailable indicates a source's storage query failed
	SourceUnavailable ErrorCode = "SOURCE_UNAVAILABLE"
	// NarrationUnavailable indicates the narration collaborator failed or timed out
	NarrationUnavailable ErrorCode = "NARRATION_UNAVAILABLE"
	// Timeout indicates a source query did not finish before the deadline
	Timeout ErrorCode = "TIMEOUT"
	// ConfigInvalid indicates configuration failed validation
	ConfigInvalid ErrorCode = "CONFIG_INVALID"
	// CatalogInvalid indicates the source catalog failed validation
	CatalogInvalid ErrorCode = "CATALOG_INVALID"
	// InternalError indicates unexpected error
	InternalError ErrorCode = "INTERNAL_ERROR"
)

// FixActionType represents the type of fix action
type FixActionType string

const (
	// RunCommand suggests running a command
	RunCommand FixActionType = "run-command"
	// EditConfig suggests changing a configuration value
	EditConfig FixActionType = "edit-config"
)

// FixAction represents a suggested fix for an error
type FixAction struct {
	Type        FixActionType `json:"type"`
	Command     string        `json:"command,omitempty"`
	Key         string        `json:"key,omitempty"`
	Description string        `json:"description,omitempty"`
}

// LifeError is a coded error carrying an optional cause and suggested fixes.
type LifeError struct {
	Code           ErrorCode   `json:"code"`
	Message        string      `json:"message"`
	Source         string      `json:"source,omitempty"`
	Details        interface{} `json:"details,omitempty"`
	SuggestedFixes []FixAction `json:"suggestedFixes,omitempty"`
	cause          error
}

// New creates a LifeError with the registered fixes for its code.
func New(code ErrorCode, message string, cause error) *LifeError {
	return &LifeError{
		Code:           code,
		Message:        message,
		cause:          cause,
		SuggestedFixes: GetSuggestedFixes(code),
	}
}

// Error implements the error interface
func (e *LifeError) Error() string {
	prefix := string(e.Code)
	if e.Source != "" {
		prefix += " " + e.Source
	}
	if e.cause != nil {
		return fmt.Sprintf("[%s] %s: %v", prefix, e.Message, e.cause)
	}
	return fmt.Sprintf("[%s] %s", prefix, e.Message)
}

// Unwrap returns the underlying error
func (e *LifeError) Unwrap() error {
	return e.cause
}

// Is matches any LifeError target carrying the same code.
func (e *LifeError) Is(target error) bool {
	t, ok := target.(*LifeError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// WithDetails adds details to the error
func (e *LifeError) WithDetails(details interface{}) *LifeError {
	e.Details = details
	return e
}

// WithSource tags the error with the source it came from.
func (e *LifeError) WithSource(sourceID string) *LifeError {
	e.Source = sourceID
	return e
}

// NewEmptyTopic reports an interpretation with no usable keywords.
func NewEmptyTopic(rawQuery string) *LifeError {
	return New(EmptyTopic, fmt.Sprintf("topic %q produced no usable keywords", rawQuery), nil)
}

// NewInvalidWindow reports a malformed window or window pair.
func NewInvalidWindow(message string) *LifeError {
	return New(InvalidWindow, message, nil)
}

// NewSourceUnavailable wraps a failed storage query for one source.
func NewSourceUnavailable(sourceID string, cause error) *LifeError {
	return New(SourceUnavailable, "source query failed", cause).WithSource(sourceID)
}

// NewNarrationUnavailable wraps a narration collaborator failure.
func NewNarrationUnavailable(cause error) *LifeError {
	return New(NarrationUnavailable, "narration collaborator failed", cause)
}

// CodeOf returns the code of the first LifeError in err's chain,
// or InternalError when there is none.
func CodeOf(err error) ErrorCode {
	var le *LifeError
	if stderrors.As(err, &le) {
		return le.Code
	}
	return InternalError
}

// HasCode reports whether err's chain contains a LifeError with code.
func HasCode(err error, code ErrorCode) bool {
	return stderrors.Is(err, &LifeError{Code: code})
}

// ErrorActions maps error codes to suggested fix actions
var ErrorActions = map[ErrorCode][]FixAction{
	EmptyTopic: {
		{
			Type:        RunCommand,
			Command:     "lifesignal focus \"<more specific topic>\"",
			Description: "Rephrase the topic with at least one content word",
		},
	},
	InvalidWindow: {
		{
			Type:        RunCommand,
			Command:     "lifesignal progress --period last_30/prior_30",
			Description: "Use equal current and baseline spans",
		},
	},
	SourceUnavailable: {
		{
			Type:        RunCommand,
			Command:     "lifesignal sources",
			Description: "Check which source tables are reachable",
		},
	},
	NarrationUnavailable: {
		{
			Type:        EditConfig,
			Key:         "narration.baseUrl",
			Description: "Point narration at a reachable OpenAI-compatible endpoint",
		},
		{
			Type:        RunCommand,
			Command:     "lifesignal snapshots list",
			Description: "Inspect the context that was assembled before narration failed",
		},
	},
	ConfigInvalid: {
		{
			Type:        RunCommand,
			Command:     "lifesignal config show",
			Description: "Review the effective configuration",
		},
	},
}

// GetSuggestedFixes returns suggested fixes for an error code
func GetSuggestedFixes(code ErrorCode) []FixAction {
	if fixes, ok := ErrorActions[code]; ok {
		return fixes
	}
	return nil
}
