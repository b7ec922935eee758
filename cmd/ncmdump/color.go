package main

import (
	"fmt"
	"io"

	"github.com/fatih/color"
)

// statusPrinter renders the per-file status lines and command errors.
type statusPrinter struct {
	ok     *color.Color
	warn   *color.Color
	fail   *color.Color
	format *color.Color
}

// newStatusPrinter creates a statusPrinter with optional color disabling.
func newStatusPrinter(noColor bool) *statusPrinter {
	color.NoColor = noColor

	return &statusPrinter{
		ok:     color.New(color.FgGreen),
		warn:   color.New(color.FgYellow),
		fail:   color.New(color.FgRed),
		format: color.New(color.FgCyan),
	}
}

// Decoded prints the line for a file written to output. Files decoded with
// a recoverable problem are labelled WARN instead of OK.
func (p *statusPrinter) Decoded(w io.Writer, input, output, format string, warned bool) {
	label := p.ok.Sprint("OK  ")
	if warned {
		label = p.warn.Sprint("WARN")
	}

	fmt.Fprintf(w, "%s %s -> %s [%s]\n", label, input, output, p.format.Sprint(format))
}

// Detail prints an indented note under the previous status line.
func (p *statusPrinter) Detail(w io.Writer, what string, err error) {
	fmt.Fprintf(w, "     %s: %v\n", what, err)
}

// Failed prints the line for a file that produced no output.
func (p *statusPrinter) Failed(w io.Writer, input string, err error) {
	fmt.Fprintf(w, "%s %s: %v\n", p.fail.Sprint("FAIL"), input, err)
}

// Error prints a command level error.
func (p *statusPrinter) Error(w io.Writer, err error) {
	fmt.Fprintf(w, "%s %v\n", p.fail.Sprint("Error:"), err)
}
