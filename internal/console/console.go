package console

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/fatih/color"
)

// Reporter receives user-visible messages of an upgrade run.
type Reporter interface {
	// Output writes progress narrative.
	Output(message string)
	// Warning writes actionable remediation text.
	Warning(message string)
	// Error writes diagnostics.
	Error(message string)
}

// Console writes output to one stream and warnings with errors to another.
type Console struct {
	// out receives progress narrative.
	out io.Writer
	// diag receives warnings and errors.
	diag io.Writer
	// mu serializes writes so lines never interleave.
	mu sync.Mutex
	// warning colors the warning prefix.
	warning *color.Color
	// failure colors the error prefix.
	failure *color.Color
}

// New creates a console over the provided writers.
func New(out, diag io.Writer) *Console {
	return &Console{
		out:     out,
		diag:    diag,
		warning: color.New(color.FgYellow, color.Bold),
		failure: color.New(color.FgRed, color.Bold),
	}
}

// NewStd creates a console over the process standard streams.
func NewStd() *Console {
	return New(os.Stdout, os.Stderr)
}

// Output writes message as a plain line.
func (c *Console) Output(message string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	_, _ = fmt.Fprintln(c.out, message)
}

// Warning writes message with a colored warning prefix.
func (c *Console) Warning(message string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	_, _ = c.warning.Fprint(c.diag, "warning: ")
	_, _ = fmt.Fprintln(c.diag, message)
}

// Error writes message with a colored error prefix.
func (c *Console) Error(message string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	_, _ = c.failure.Fprint(c.diag, "error: ")
	_, _ = fmt.Fprintln(c.diag, message)
}
