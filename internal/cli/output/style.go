// Package output formats gptctl output: status lines with optional
// terminal colors, key/value listings and JSON.
package output

import (
	"fmt"
	"io"
)

const (
	colorReset  = "\033[0m"
	colorRed    = "\033[0;31m"
	colorGreen  = "\033[0;32m"
	colorYellow = "\033[1;33m"
	colorCyan   = "\033[0;36m"
)

// Styler formats status lines with optional color codes.
type Styler struct {
	noColor bool
}

// NewStyler creates a new Styler. If noColor is true, ANSI color codes are omitted.
func NewStyler(noColor bool) *Styler {
	return &Styler{noColor: noColor}
}

func (s *Styler) Success(msg string) string { return s.format(colorGreen, "✓", msg) }
func (s *Styler) Error(msg string) string   { return s.format(colorRed, "✗", msg) }
func (s *Styler) Info(msg string) string    { return s.format(colorCyan, "ℹ", msg) }
func (s *Styler) Warn(msg string) string    { return s.format(colorYellow, "⚠", msg) }

func (s *Styler) format(color, symbol, msg string) string {
	if s.noColor {
		return fmt.Sprintf("%s %s", symbol, msg)
	}
	return fmt.Sprintf("%s%s%s %s", color, symbol, colorReset, msg)
}

func (s *Styler) FprintSuccess(w io.Writer, msg string) { fmt.Fprintln(w, s.Success(msg)) }
func (s *Styler) FprintError(w io.Writer, msg string)   { fmt.Fprintln(w, s.Error(msg)) }
func (s *Styler) FprintInfo(w io.Writer, msg string)    { fmt.Fprintln(w, s.Info(msg)) }
func (s *Styler) FprintWarn(w io.Writer, msg string)    { fmt.Fprintln(w, s.Warn(msg)) }
