package output

import (
	"errors"

	"github.com/fatih/color"

	lserrors "lifesignal/internal/errors"
)

// Exit codes
const (
	ExitSuccess              = 0
	ExitGeneral              = 1
	ExitUsage                = 2
	ExitSourceUnavailable    = 3
	ExitNarrationUnavailable = 4
)

// ExitCode maps an error to the process exit status.
func ExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	switch lserrors.CodeOf(err) {
	case lserrors.EmptyTopic, lserrors.InvalidWindow:
		return ExitUsage
	case lserrors.SourceUnavailable:
		return ExitSourceUnavailable
	case lserrors.NarrationUnavailable:
		return ExitNarrationUnavailable
	default:
		return ExitGeneral
	}
}

// FormatError prints err with its cause and any suggested fixes. Coded
// errors print their message, never a stack or wrapped internals.
func (p *Printer) FormatError(err error) {
	var le *lserrors.LifeError
	if !errors.As(err, &le) {
		p.Error("%v", err)
		return
	}

	p.paint(p.err, []color.Attribute{color.FgRed, color.Bold}, "Error: %s\n", le.Message)
	if cause := le.Unwrap(); cause != nil {
		p.paint(p.err, nil, "  Cause: %v\n", cause)
	}
	for _, fix := range le.SuggestedFixes {
		switch fix.Type {
		case lserrors.RunCommand:
			p.paint(p.err, []color.Attribute{color.FgCyan}, "  Suggestion: %s (%s)\n", fix.Description, fix.Command)
		case lserrors.EditConfig:
			p.paint(p.err, []color.Attribute{color.FgCyan}, "  Suggestion: %s (config key %s)\n", fix.Description, fix.Key)
		}
	}
}
