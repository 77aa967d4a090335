// Package output formats build reports for the terminal.
package output

import (
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/sofmeright/forgeline/src/step"
)

// Colors for terminal output.
const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorCyan   = "\033[36m"
	colorGray   = "\033[90m"
	colorBold   = "\033[1m"
)

// Printer formats and writes build reports.
type Printer struct {
	Writer io.Writer
	Color  bool
}

// NewPrinter creates a printer writing to stdout with color
// auto-detection.
func NewPrinter() *Printer {
	return &Printer{
		Writer: os.Stdout,
		Color:  isTerminal(),
	}
}

// Report prints one line per executed step: key, duration, and error
// state, sorted by step key.
func (p *Printer) Report(b *step.Build) {
	keys := make([]string, 0, len(b.Durations))
	for k := range b.Durations {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	if len(keys) > 0 {
		fmt.Fprintf(p.Writer, "\n%s\n", p.colorize("steps", colorBold))
	}
	for _, k := range keys {
		status := p.colorize("ok", colorGreen)
		if msg, failed := b.Errors[k]; failed {
			status = p.colorize("failed: "+msg, colorRed)
		}
		fmt.Fprintf(p.Writer, "  %s %s %s\n",
			p.colorize(k, colorCyan),
			p.colorize(b.Durations[k].Round(1e6).String(), colorGray),
			status,
		)
	}
}

// Summary prints the final build status line.
func (p *Printer) Summary(b *step.Build, err error) {
	switch {
	case b.Canceled:
		fmt.Fprintf(p.Writer, "\n%s\n", p.colorize("build canceled", colorYellow))
	case err != nil || b.Failed():
		msg := "build failed"
		if err != nil {
			msg = fmt.Sprintf("build failed: %v", err)
		}
		fmt.Fprintf(p.Writer, "\n%s\n", p.colorize(msg, colorRed))
	default:
		line := "build succeeded"
		if b.ImageID != "" {
			line = fmt.Sprintf("build succeeded: %s", b.ImageID)
		}
		fmt.Fprintf(p.Writer, "\n%s\n", p.colorize(line, colorGreen))
	}
}

func (p *Printer) colorize(s, color string) string {
	if !p.Color {
		return s
	}
	return color + s + colorReset
}

func isTerminal() bool {
	fi, err := os.Stdout.Stat()
	return err == nil && fi.Mode()&os.ModeCharDevice != 0
}
