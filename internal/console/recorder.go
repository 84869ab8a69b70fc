package console

import (
	"slices"
	"sync"
)

// Recorder keeps every reported message in memory.
type Recorder struct {
	// mu protects the message lists.
	mu sync.Mutex
	// outputs holds Output messages in order.
	outputs []string
	// warnings holds Warning messages in order.
	warnings []string
	// errors holds Error messages in order.
	errors []string
}

// Output records a narrative message.
func (r *Recorder) Output(message string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.outputs = append(r.outputs, message)
}

// Warning records a warning message.
func (r *Recorder) Warning(message string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.warnings = append(r.warnings, message)
}

// Error records an error message.
func (r *Recorder) Error(message string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.errors = append(r.errors, message)
}

// Outputs returns a copy of recorded narrative messages.
func (r *Recorder) Outputs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	return slices.Clone(r.outputs)
}

// Warnings returns a copy of recorded warnings.
func (r *Recorder) Warnings() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	return slices.Clone(r.warnings)
}

// Errors returns a copy of recorded errors.
func (r *Recorder) Errors() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	return slices.Clone(r.errors)
}
