// Package report provides diagnostics sinks for clumping runs: a console
// sink with colored warnings, a zap-backed sink, and a fan-out.
package report

import (
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
)

// warningColor is ANSI yellow.
var warningColor = lipgloss.Color("3")

// Console writes progress to one stream and warnings to another. The
// "Warning: " prefix is yellow when the warning stream is a terminal.
type Console struct {
	out   io.Writer
	err   io.Writer
	color bool
	label lipgloss.Style
}

// NewConsole creates a console sink.
func NewConsole(out, errOut io.Writer) *Console {
	c := &Console{out: out, err: errOut}
	if isTerminal(errOut) {
		c.color = true
		c.label = lipgloss.NewRenderer(errOut).NewStyle().Foreground(warningColor)
	}
	return c
}

// DisableColor turns off colored output.
func (c *Console) DisableColor() {
	c.color = false
}

// Progress writes msg as a line on the progress stream.
func (c *Console) Progress(msg string) {
	fmt.Fprintln(c.out, msg)
}

// Warning writes msg with a "Warning: " prefix on the warning stream.
func (c *Console) Warning(msg string) {
	prefix := "Warning: "
	if c.color {
		prefix = c.label.Render("Warning:") + " "
	}
	fmt.Fprintln(c.err, prefix+msg)
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}
