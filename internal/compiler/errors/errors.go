// Package errors collects compilation diagnostics with source ranges,
// shared by the parser, analyzer and bytecode generator.
package errors

import (
	"fmt"

	"github.com/btouchard/rs2c/internal/compiler/token"
)

// CompileError is a single diagnostic: a source range, a message and the
// phase that raised it ("parser", "semantic", "codegen").
type CompileError struct {
	Range   token.Range
	Message string
	Phase   string
}

func (e *CompileError) Error() string {
	return fmt.Sprintf("[%s] %s: %s", e.Phase, e.Range.Start, e.Message)
}

// List accumulates diagnostics for one compilation unit. Errors are never
// thrown mid-compilation; they are appended here and compilation continues
// where possible.
type List struct {
	Errors []*CompileError
}

// NewList returns an empty diagnostic list.
func NewList() *List {
	return &List{}
}

// Add appends a diagnostic at rng for the given phase.
func (l *List) Add(rng token.Range, phase, message string) {
	l.Errors = append(l.Errors, &CompileError{Range: rng, Message: message, Phase: phase})
}

// Addf appends a formatted diagnostic.
func (l *List) Addf(rng token.Range, phase, format string, args ...interface{}) {
	l.Add(rng, phase, fmt.Sprintf(format, args...))
}

// HasErrors reports whether any diagnostic was recorded.
func (l *List) HasErrors() bool {
	return len(l.Errors) > 0
}

func (l *List) String() string {
	s := ""
	for _, e := range l.Errors {
		s += e.Error() + "\n"
	}
	return s
}
