// Package tui provides the geosync console writer.
// Simple, streaming output with section/task/item granularity - no
// interactive TUI.
package tui

import (
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
)

// Colors (Swiss minimal)
var (
	accent  = lipgloss.Color("#FF6600")
	muted   = lipgloss.Color("#666666")
	success = lipgloss.Color("#00CC66")
	danger  = lipgloss.Color("#FF0000")
	white   = lipgloss.Color("#FFFFFF")
)

// Styles
var (
	sectionStyle = lipgloss.NewStyle().Bold(true).Foreground(white)
	accentStyle  = lipgloss.NewStyle().Foreground(accent).Bold(true)
	mutedStyle   = lipgloss.NewStyle().Foreground(muted)
	successStyle = lipgloss.NewStyle().Foreground(success).Bold(true)
	dangerStyle  = lipgloss.NewStyle().Foreground(danger).Bold(true)
)

// Writer emits progress lines at section, task and item granularity.
// The zero-value-like Discard writer keeps library code quiet in tests.
type Writer struct {
	out io.Writer
}

// New creates a Writer on stdout.
func New() *Writer {
	return &Writer{out: os.Stdout}
}

// NewWriter creates a Writer on the given sink.
func NewWriter(out io.Writer) *Writer {
	return &Writer{out: out}
}

// Discard is a Writer that drops all output.
var Discard = &Writer{out: io.Discard}

// Section announces a top-level pipeline phase.
func (w *Writer) Section(msg string) {
	fmt.Fprintln(w.out)
	fmt.Fprintln(w.out, accentStyle.Render("▸ ")+sectionStyle.Render(msg))
}

// Task announces a unit of work within a section.
func (w *Writer) Task(msg string) {
	fmt.Fprintln(w.out, "  "+sectionStyle.Render(msg))
}

// Item reports one processed item (a file, a chunk, a URL).
func (w *Writer) Item(msg string) {
	fmt.Fprintln(w.out, mutedStyle.Render("    "+msg))
}

// Done reports successful completion of a task.
func (w *Writer) Done(msg string) {
	fmt.Fprintln(w.out, successStyle.Render("  ✓ ")+msg)
}

// Err reports a non-fatal failure.
func (w *Writer) Err(msg string) {
	fmt.Fprintln(w.out, dangerStyle.Render("  ✗ ")+msg)
}
