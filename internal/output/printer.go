// Package output renders command results for the terminal: JSON and YAML
// encodings, a colored printer and plain tables.
package output

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
)

// ColorMode selects when to emit ANSI colors.
type ColorMode int

const (
	// ColorAuto colors unless NO_COLOR is set or TERM is dumb
	ColorAuto ColorMode = iota
	// ColorAlways forces colors on
	ColorAlways
	// ColorNever forces colors off
	ColorNever
)

// ParseColorMode parses auto, always or never.
func ParseColorMode(s string) (ColorMode, error) {
	switch s {
	case "", "auto":
		return ColorAuto, nil
	case "always":
		return ColorAlways, nil
	case "never":
		return ColorNever, nil
	default:
		return ColorAuto, fmt.Errorf("invalid color mode %q: must be auto, always, or never", s)
	}
}

// ResolveColors decides whether to color for mode in the current environment.
func ResolveColors(mode ColorMode) bool {
	switch mode {
	case ColorAlways:
		return true
	case ColorNever:
		return false
	default:
		if _, ok := os.LookupEnv("NO_COLOR"); ok {
			return false
		}
		if os.Getenv("TERM") == "dumb" {
			return false
		}
		return !color.NoColor
	}
}

// PrinterOptions configures a Printer.
type PrinterOptions struct {
	Out       io.Writer
	Err       io.Writer
	ColorMode ColorMode
	Quiet     bool
}

// Printer writes human-oriented messages.
type Printer struct {
	out       io.Writer
	err       io.Writer
	useColors bool
	quiet     bool
}

// NewPrinter builds a printer; nil writers default to stdout and stderr.
func NewPrinter(opts PrinterOptions) *Printer {
	p := &Printer{
		out:       opts.Out,
		err:       opts.Err,
		useColors: ResolveColors(opts.ColorMode),
		quiet:     opts.Quiet,
	}
	if p.out == nil {
		p.out = os.Stdout
	}
	if p.err == nil {
		p.err = os.Stderr
	}
	return p
}

// Out returns the primary writer.
func (p *Printer) Out() io.Writer {
	return p.out
}

// IsQuiet reports quiet mode.
func (p *Printer) IsQuiet() bool {
	return p.quiet
}

// loud returns a copy that ignores quiet mode, for command results.
func (p *Printer) loud() *Printer {
	c := *p
	c.quiet = false
	return &c
}

func (p *Printer) paint(w io.Writer, attrs []color.Attribute, format string, args ...interface{}) {
	if p.useColors {
		c := color.New(attrs...)
		c.EnableColor()
		_, _ = c.Fprintf(w, format, args...)
		return
	}
	_, _ = fmt.Fprintf(w, format, args...)
}

// Info prints an informational message.
func (p *Printer) Info(format string, args ...interface{}) {
	if p.quiet {
		return
	}
	p.paint(p.out, []color.Attribute{color.FgCyan}, format+"\n", args...)
}

// Success prints a success message.
func (p *Printer) Success(format string, args ...interface{}) {
	if p.quiet {
		return
	}
	if p.useColors {
		p.paint(p.out, []color.Attribute{color.FgGreen}, "✓ "+format+"\n", args...)
		return
	}
	p.paint(p.out, nil, "[OK] "+format+"\n", args...)
}

// Warning prints a warning to the error writer.
func (p *Printer) Warning(format string, args ...interface{}) {
	if p.quiet {
		return
	}
	if p.useColors {
		p.paint(p.err, []color.Attribute{color.FgYellow}, "⚠ "+format+"\n", args...)
		return
	}
	p.paint(p.err, nil, "[WARN] "+format+"\n", args...)
}

// Error prints an error; quiet mode does not suppress it.
func (p *Printer) Error(format string, args ...interface{}) {
	if p.useColors {
		p.paint(p.err, []color.Attribute{color.FgRed}, "✗ "+format+"\n", args...)
		return
	}
	p.paint(p.err, nil, "[ERROR] "+format+"\n", args...)
}

// Print prints a plain line.
func (p *Printer) Print(format string, args ...interface{}) {
	if p.quiet {
		return
	}
	_, _ = fmt.Fprintf(p.out, format+"\n", args...)
}

// Header prints an underlined section title.
func (p *Printer) Header(title string) {
	if p.quiet {
		return
	}
	if p.useColors {
		p.paint(p.out, []color.Attribute{color.FgWhite, color.Bold}, "\n%s\n", title)
		p.paint(p.out, []color.Attribute{color.FgWhite}, "%s\n", strings.Repeat("─", len([]rune(title))))
		return
	}
	_, _ = fmt.Fprintf(p.out, "\n%s\n%s\n", title, strings.Repeat("-", len([]rune(title))))
}

func (p *Printer) sprint(text string, attrs ...color.Attribute) string {
	if !p.useColors {
		return text
	}
	c := color.New(attrs...)
	c.EnableColor()
	return c.Sprint(text)
}

// Momentum returns a colored momentum label.
func (p *Printer) Momentum(m string) string {
	if !p.useColors {
		return m
	}
	switch m {
	case "rising":
		return p.sprint("▲ rising", color.FgGreen)
	case "falling":
		return p.sprint("▼ falling", color.FgRed)
	case "stable":
		return p.sprint("● stable", color.FgCyan)
	default:
		return p.sprint(m, color.Faint)
	}
}

// Bold returns text in bold.
func (p *Printer) Bold(text string) string {
	return p.sprint(text, color.Bold)
}

// Dim returns dimmed text.
func (p *Printer) Dim(text string) string {
	return p.sprint(text, color.Faint)
}
