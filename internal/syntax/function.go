package syntax

import (
	"context"
	"sync/atomic"

	"github.com/raven-lang/raven/internal/deferred"
	"github.com/raven-lang/raven/internal/errors"
	"github.com/raven-lang/raven/internal/position"
)

// Generic is a generic parameter with its unparsed bounds.
type Generic struct {
	Name   string
	Bounds []UnparsedType
}

// Field is a struct field or a function parameter.
type Field struct {
	Name string
	Type Types
}

// Struct is a declared struct, or a builtin primitive when Builtin is set.
type Struct struct {
	Name     string
	File     string
	Pos      position.Position
	Generics []Generic
	Fields   []Field
	Builtin  bool
}

// FieldIndex returns the slot of the named field, or -1.
func (s *Struct) FieldIndex(name string) int {
	for i, field := range s.Fields {
		if field.Name == name {
			return i
		}
	}
	return -1
}

// CheckState is the verification state of a function body.
type CheckState int32

const (
	Unchecked CheckState = iota
	Checking
	Checked
	Failed
)

func (s CheckState) String() string {
	switch s {
	case Unchecked:
		return "unchecked"
	case Checking:
		return "checking"
	case Checked:
		return "checked"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// Function is a declared function. The signature is immutable once
// registered. The body is reachable from every task holding the function,
// but only the task holding the claim may touch it.
type Function struct {
	Name     string
	File     string
	Pos      position.Position
	Generics []Generic
	Params   []Field
	Return   Types

	pending *deferred.Deferred[CodeBody]
	code    CodeBody
	hasCode atomic.Bool
	owners  atomic.Int32
	state   atomic.Int32
	failure atomic.Pointer[error]
}

// NewFunction creates a function whose body is still being resolved.
func NewFunction(name, file string, pos position.Position, generics []Generic, params []Field,
	ret Types, body *deferred.Deferred[CodeBody]) *Function {
	return &Function{
		Name:     name,
		File:     file,
		Pos:      pos,
		Generics: generics,
		Params:   params,
		Return:   ret,
		pending:  body,
	}
}

// Claim hands exclusive access to the body to the caller until release is
// called. Claiming a body that is already claimed is a defect.
func (f *Function) Claim() (body *CodeBody, release func()) {
	if !f.owners.CompareAndSwap(0, 1) {
		errors.Defectf("function %s body claimed by two tasks at once", f.Name)
	}
	return &f.code, func() {
		if !f.owners.CompareAndSwap(1, 0) {
			errors.Defectf("function %s body released without a claim", f.Name)
		}
	}
}

// Finalize awaits the parsed body and installs it. It runs once per function,
// from the task spawned by the parser.
func (f *Function) Finalize(ctx context.Context) error {
	code, err := f.pending.Await(ctx)
	if err != nil {
		return err
	}
	body, release := f.Claim()
	defer release()
	*body = code
	f.hasCode.Store(true)
	return nil
}

// HasCode reports whether the body was resolved successfully.
func (f *Function) HasCode() bool {
	return f.hasCode.Load()
}

// Code returns the body. Only valid once no task holds a claim.
func (f *Function) Code() CodeBody {
	if f.owners.Load() != 0 {
		errors.Defectf("function %s body read while claimed", f.Name)
	}
	return f.code
}

// State returns the verification state.
func (f *Function) State() CheckState {
	return CheckState(f.state.Load())
}

// SetState records a verification state transition.
func (f *Function) SetState(state CheckState) {
	f.state.Store(int32(state))
}

// Fail records err and moves the function to Failed.
func (f *Function) Fail(err error) {
	f.failure.Store(&err)
	f.SetState(Failed)
}

// Failure returns the error recorded by Fail.
func (f *Function) Failure() error {
	if err := f.failure.Load(); err != nil {
		return *err
	}
	return nil
}

// Generic returns the named generic parameter of the function.
func (f *Function) Generic(name string) (Generic, bool) {
	for _, g := range f.Generics {
		if g.Name == name {
			return g, true
		}
	}
	return Generic{}, false
}
