// Package errors provides the structured error values shared by every stage
// of the Raven front end.
package errors

import (
	"fmt"
	"runtime"
	"sort"
	"strings"

	"github.com/raven-lang/raven/internal/position"
)

// ErrorCategory represents different categories of errors
type ErrorCategory string

const (
	CategoryLexical    ErrorCategory = "LEXICAL"
	CategorySyntax     ErrorCategory = "SYNTAX"
	CategoryResolution ErrorCategory = "RESOLUTION"
	CategoryType       ErrorCategory = "TYPE"
	CategoryCancelled  ErrorCategory = "CANCELLED"
)

// CompileError is a user-facing failure tied to a source location.
type CompileError struct {
	Category ErrorCategory
	Code     string
	File     string
	Pos      position.Position
	Message  string
}

// Error implements the error interface
func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s", e.File, e.Pos.Line, e.Pos.Column, e.Message)
	}
	if e.File != "" {
		return fmt.Sprintf("%s: %s", e.File, e.Message)
	}
	return e.Message
}

// New creates a CompileError without a source location.
func New(category ErrorCategory, code, message string) *CompileError {
	return &CompileError{Category: category, Code: code, Message: message}
}

// At creates a CompileError located at pos.
func At(category ErrorCategory, code string, pos position.Position, format string, args ...interface{}) *CompileError {
	return &CompileError{
		Category: category,
		Code:     code,
		File:     pos.Filename,
		Pos:      pos,
		Message:  fmt.Sprintf(format, args...),
	}
}

// Common error constructors
func Unresolved(name string) *CompileError {
	return New(CategoryResolution, "UNRESOLVED_SYMBOL",
		fmt.Sprintf("Unknown symbol %s", name))
}

func Duplicate(pos position.Position, name string) *CompileError {
	return At(CategorySyntax, "DUPLICATE_DEFINITION", pos, "Duplicate definition of %s", name)
}

func Cancelled(name string) *CompileError {
	return New(CategoryCancelled, "CANCELLED",
		fmt.Sprintf("Compilation cancelled while waiting for %s", name))
}

func Mismatch(pos position.Position, function, format string, args ...interface{}) *CompileError {
	return At(CategoryType, "TYPE_MISMATCH", pos, "In %s: %s", function, fmt.Sprintf(format, args...))
}

// List collects the errors of a whole compilation job.
type List []error

// Error implements the error interface
func (l List) Error() string {
	parts := make([]string, len(l))
	for i, err := range l {
		parts[i] = err.Error()
	}
	return strings.Join(parts, "\n")
}

// Sort orders the list by file and offset; errors without a location go last.
func (l List) Sort() {
	sort.SliceStable(l, func(i, j int) bool {
		a, aok := l[i].(*CompileError)
		b, bok := l[j].(*CompileError)
		if !aok || !bok {
			return aok && !bok
		}
		if a.File != b.File {
			return a.File < b.File
		}
		return a.Pos.Offset < b.Pos.Offset
	})
}

// Err returns nil for an empty list.
func (l List) Err() error {
	if len(l) == 0 {
		return nil
	}
	return l
}

// Defect is an internal contract violation. It is raised with panic and
// aborts the whole compilation.
type Defect struct {
	Message string
	Caller  string
}

// Error implements the error interface
func (d *Defect) Error() string {
	return fmt.Sprintf("[DEFECT] %s (caller: %s)", d.Message, d.Caller)
}

// Defectf panics with a *Defect describing the violated contract.
func Defectf(format string, args ...interface{}) {
	pc, _, _, ok := runtime.Caller(1)
	caller := "unknown"
	if ok {
		if fn := runtime.FuncForPC(pc); fn != nil {
			caller = fn.Name()
		}
	}

	panic(&Defect{
		Message: fmt.Sprintf(format, args...),
		Caller:  caller,
	})
}

// RecoverDefect converts a recovered *Defect into an error stored in err.
// Any other panic value is re-raised.
func RecoverDefect(err *error) {
	r := recover()
	if r == nil {
		return
	}
	if d, ok := r.(*Defect); ok {
		*err = d
		return
	}
	panic(r)
}
