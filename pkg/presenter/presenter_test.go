package presenter

import (
	"bytes"
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBuffered() (*TerminalPresenter, *bytes.Buffer, *bytes.Buffer) {
	var out, errOut bytes.Buffer
	return NewWithOptions(&out, &errOut, ColorNever), &out, &errOut
}

func TestNew(t *testing.T) {
	p := New()
	assert.Equal(t, os.Stdout, p.output)
	assert.Equal(t, os.Stderr, p.errorOutput)
	assert.Equal(t, os.Stdin, p.input)
	assert.False(t, p.IsQuiet())
}

func TestDetectColorMode(t *testing.T) {
	tests := []struct {
		name          string
		noColor       string
		skillkitColor string
		expected      ColorMode
	}{
		{"NO_COLOR wins", "1", "always", ColorNever},
		{"always", "", "always", ColorAlways},
		{"force", "", "force", ColorAlways},
		{"never", "", "never", ColorNever},
		{"off", "", "off", ColorNever},
		{"auto", "", "auto", ColorAuto},
		{"unset", "", "", ColorAuto},
		{"unknown value", "", "sometimes", ColorAuto},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("NO_COLOR", tt.noColor)
			t.Setenv("SKILLKIT_COLOR", tt.skillkitColor)
			assert.Equal(t, tt.expected, detectColorMode())
		})
	}
}

func TestColorModeSetsGlobalSwitch(t *testing.T) {
	saved := color.NoColor
	t.Cleanup(func() { color.NoColor = saved })

	NewWithOptions(&bytes.Buffer{}, &bytes.Buffer{}, ColorAlways)
	assert.False(t, color.NoColor)

	NewWithOptions(&bytes.Buffer{}, &bytes.Buffer{}, ColorNever)
	assert.True(t, color.NoColor)
}

func TestError(t *testing.T) {
	p, out, errOut := newBuffered()

	p.Error(errors.New("store unavailable"), "dispatch")
	assert.Equal(t, "[ERROR] dispatch: store unavailable\n", errOut.String())

	errOut.Reset()
	p.Error(errors.New("store unavailable"), "")
	assert.Equal(t, "[ERROR] store unavailable\n", errOut.String())

	errOut.Reset()
	p.Error(nil, "dispatch")
	assert.Empty(t, errOut.String())
	assert.Empty(t, out.String(), "errors never go to the regular output")
}

func TestErrorIgnoresQuiet(t *testing.T) {
	p, _, errOut := newBuffered()
	p.SetQuiet(true)

	p.Error(errors.New("boom"), "")
	assert.Contains(t, errOut.String(), "boom")
}

func TestMessages(t *testing.T) {
	tests := []struct {
		name     string
		print    func(p *TerminalPresenter)
		expected string
	}{
		{"success", func(p *TerminalPresenter) { p.Success("migrated") }, "✓ migrated\n"},
		{"warning", func(p *TerminalPresenter) { p.Warning("no trends") }, "⚠ no trends\n"},
		{"info", func(p *TerminalPresenter) { p.Info("listening") }, "listening\n"},
		{"section", func(p *TerminalPresenter) { p.Section("Skills") }, "Skills\n------\n"},
		{"separator", func(p *TerminalPresenter) { p.Separator() }, strings.Repeat("-", ruleWidth) + "\n"},
		{
			"stats",
			func(p *TerminalPresenter) {
				p.Stats(&DispatchStats{Total: 3, Succeeded: 2, Failed: 1, Duration: 1500*time.Millisecond + 300*time.Microsecond})
			},
			"[Dispatch Stats] Total: 3 | Succeeded: 2 | Failed: 1 | Duration: 1.5s\n",
		},
		{"nil stats", func(p *TerminalPresenter) { p.Stats(nil) }, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, out, _ := newBuffered()
			tt.print(p)
			assert.Equal(t, tt.expected, out.String())
		})

		t.Run(tt.name+" quiet", func(t *testing.T) {
			p, out, _ := newBuffered()
			p.SetQuiet(true)
			tt.print(p)
			assert.Empty(t, out.String())
		})
	}
}

func TestPrompt(t *testing.T) {
	p, out, _ := newBuffered()
	p.input = strings.NewReader("  y \n")

	answer := p.Prompt("Roll back migration 3?", "y", "N")
	assert.Equal(t, "y", answer)
	assert.Equal(t, "Roll back migration 3? [y/N]: ", out.String())

	out.Reset()
	p.input = strings.NewReader("yes")
	assert.Equal(t, "yes", p.Prompt("Continue"), "an answer without a newline is still read")
	assert.Equal(t, "Continue: ", out.String())

	p.input = strings.NewReader("")
	assert.Empty(t, p.Prompt("Continue"))
}

func TestQuietToggle(t *testing.T) {
	p, _, _ := newBuffered()
	require.False(t, p.IsQuiet())

	p.SetQuiet(true)
	assert.True(t, p.IsQuiet())

	p.SetQuiet(false)
	assert.False(t, p.IsQuiet())
}

func TestPackageFunctionsUseDefaultPresenter(t *testing.T) {
	saved := defaultPresenter
	t.Cleanup(func() { defaultPresenter = saved })

	p, out, errOut := newBuffered()
	defaultPresenter = p

	Error(errors.New("bad request"), "skills run")
	assert.Equal(t, "[ERROR] skills run: bad request\n", errOut.String())

	Section("Top trends")
	Info("0.91  #launch")
	Separator()
	Stats(&DispatchStats{Total: 1, Succeeded: 1})
	Success("done")
	Warning("careful")

	printed := out.String()
	assert.Contains(t, printed, "Top trends\n----------\n")
	assert.Contains(t, printed, "0.91  #launch\n")
	assert.Contains(t, printed, strings.Repeat("-", ruleWidth))
	assert.Contains(t, printed, "Succeeded: 1")
	assert.Contains(t, printed, "✓ done")
	assert.Contains(t, printed, "⚠ careful")

	SetQuiet(true)
	assert.True(t, IsQuiet())
	out.Reset()
	Info("hidden")
	assert.Empty(t, out.String())
}
