// Package presenter writes the CLI's user-facing messages with optional color
// and a quiet mode.
package presenter

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
)

// ruleWidth is the width of the rule printed by Separator.
const ruleWidth = 60

// DispatchStats summarises a batch of skill invocations.
type DispatchStats struct {
	Total     int
	Succeeded int
	Failed    int
	Duration  time.Duration
}

// ColorMode selects whether messages are colored.
type ColorMode int

const (
	// ColorAuto leaves the decision to the terminal detection of fatih/color.
	ColorAuto ColorMode = iota
	// ColorAlways forces colored output.
	ColorAlways
	// ColorNever disables colored output.
	ColorNever
)

// TerminalPresenter prints to a pair of writers. Everything except errors and
// prompts is dropped in quiet mode.
type TerminalPresenter struct {
	output      io.Writer
	errorOutput io.Writer
	input       io.Reader
	colorMode   ColorMode
	quiet       bool

	errStyle     *color.Color
	okStyle      *color.Color
	warnStyle    *color.Color
	headingStyle *color.Color
	promptStyle  *color.Color
	statsStyle   *color.Color
	ruleStyle    *color.Color
}

// New returns a presenter on stdout and stderr, colored according to
// NO_COLOR and SKILLKIT_COLOR.
func New() *TerminalPresenter {
	return NewWithOptions(os.Stdout, os.Stderr, detectColorMode())
}

// NewWithOptions returns a presenter on the given writers.
func NewWithOptions(output, errorOutput io.Writer, colorMode ColorMode) *TerminalPresenter {
	switch colorMode {
	case ColorAlways:
		color.NoColor = false
	case ColorNever:
		color.NoColor = true
	}

	return &TerminalPresenter{
		output:       output,
		errorOutput:  errorOutput,
		input:        os.Stdin,
		colorMode:    colorMode,
		errStyle:     color.New(color.FgRed, color.Bold),
		okStyle:      color.New(color.FgGreen, color.Bold),
		warnStyle:    color.New(color.FgYellow, color.Bold),
		headingStyle: color.New(color.Bold),
		promptStyle:  color.New(color.FgCyan),
		statsStyle:   color.New(color.FgCyan, color.Bold),
		ruleStyle:    color.New(color.Faint),
	}
}

func detectColorMode() ColorMode {
	if os.Getenv("NO_COLOR") != "" {
		return ColorNever
	}
	switch os.Getenv("SKILLKIT_COLOR") {
	case "always", "force":
		return ColorAlways
	case "never", "off":
		return ColorNever
	default:
		return ColorAuto
	}
}

// say prints one line on the regular output unless quiet.
func (p *TerminalPresenter) say(style *color.Color, format string, args ...any) {
	if p.quiet {
		return
	}
	if style == nil {
		fmt.Fprintf(p.output, format+"\n", args...)
		return
	}
	style.Fprintf(p.output, format+"\n", args...)
}

// Error prints err to the error output, prefixed by context when given.
// Errors are printed even in quiet mode.
func (p *TerminalPresenter) Error(err error, context string) {
	if err == nil {
		return
	}
	if context != "" {
		p.errStyle.Fprintf(p.errorOutput, "[ERROR] %s: %v\n", context, err)
		return
	}
	p.errStyle.Fprintf(p.errorOutput, "[ERROR] %v\n", err)
}

func (p *TerminalPresenter) Success(message string) {
	p.say(p.okStyle, "✓ %s", message)
}

func (p *TerminalPresenter) Warning(message string) {
	p.say(p.warnStyle, "⚠ %s", message)
}

func (p *TerminalPresenter) Info(message string) {
	p.say(nil, "%s", message)
}

// Section prints title underlined to its own width.
func (p *TerminalPresenter) Section(title string) {
	p.say(p.headingStyle, "%s\n%s", title, strings.Repeat("-", len(title)))
}

// Separator prints a horizontal rule.
func (p *TerminalPresenter) Separator() {
	p.say(p.ruleStyle, "%s", strings.Repeat("-", ruleWidth))
}

// Stats prints a one-line dispatch summary.
func (p *TerminalPresenter) Stats(stats *DispatchStats) {
	if stats == nil {
		return
	}
	p.say(p.statsStyle, "[Dispatch Stats] Total: %d | Succeeded: %d | Failed: %d | Duration: %s",
		stats.Total, stats.Succeeded, stats.Failed, stats.Duration.Round(time.Millisecond))
}

// Prompt asks question and returns the trimmed answer, or "" when the input
// cannot be read.
func (p *TerminalPresenter) Prompt(question string, options ...string) string {
	if len(options) > 0 {
		p.promptStyle.Fprintf(p.output, "%s [%s]: ", question, strings.Join(options, "/"))
	} else {
		p.promptStyle.Fprintf(p.output, "%s: ", question)
	}

	answer, err := bufio.NewReader(p.input).ReadString('\n')
	if err != nil && answer == "" {
		return ""
	}
	return strings.TrimSpace(answer)
}

func (p *TerminalPresenter) SetQuiet(quiet bool) { p.quiet = quiet }

func (p *TerminalPresenter) IsQuiet() bool { return p.quiet }

var defaultPresenter = New()

// Error prints err with the default presenter.
func Error(err error, context string) { defaultPresenter.Error(err, context) }

// Success prints a success line with the default presenter.
func Success(message string) { defaultPresenter.Success(message) }

// Warning prints a warning line with the default presenter.
func Warning(message string) { defaultPresenter.Warning(message) }

// Info prints a plain line with the default presenter.
func Info(message string) { defaultPresenter.Info(message) }

// Section prints a heading with the default presenter.
func Section(title string) { defaultPresenter.Section(title) }

// Separator prints a rule with the default presenter.
func Separator() { defaultPresenter.Separator() }

// Stats prints a dispatch summary with the default presenter.
func Stats(stats *DispatchStats) { defaultPresenter.Stats(stats) }

// Prompt asks a question on the default presenter.
func Prompt(question string, options ...string) string {
	return defaultPresenter.Prompt(question, options...)
}

// SetQuiet toggles quiet mode on the default presenter.
func SetQuiet(quiet bool) { defaultPresenter.SetQuiet(quiet) }

// IsQuiet reports whether the default presenter is quiet.
func IsQuiet() bool { return defaultPresenter.IsQuiet() }
