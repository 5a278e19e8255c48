package checker

import (
	"context"
	"fmt"

	"github.com/raven-lang/raven/internal/errors"
	"github.com/raven-lang/raven/internal/position"
	"github.com/raven-lang/raven/internal/syntax"
)

// VerifyFunction type checks the body of fn and rewrites it in place. The
// registry must be finished. A function is checked at most once: later
// calls return the recorded outcome.
func VerifyFunction(ctx context.Context, cfg *Config, fn *syntax.Function, reg *syntax.Registry) error {
	switch fn.State() {
	case syntax.Checked:
		return nil
	case syntax.Failed:
		return fn.Failure()
	}
	if !fn.HasCode() {
		return errors.At(errors.CategoryResolution, "NO_BODY", fn.Pos, "%s has no resolved body", fn.Name)
	}

	body, release := fn.Claim()
	defer release()
	fn.SetState(syntax.Checking)

	v := &verifier{ctx: ctx, cfg: cfg, reg: reg, fn: fn}
	if err := v.verify(body); err != nil {
		fn.Fail(err)
		return err
	}
	fn.SetState(syntax.Checked)
	return nil
}

type verifier struct {
	ctx context.Context
	cfg *Config
	reg *syntax.Registry
	fn  *syntax.Function

	ret   syntax.Types
	loops int
	// pos is the innermost located expression being verified.
	pos position.Position
}

// scope maps variable names to their types. Each nested body gets a child.
type scope struct {
	vars   map[string]syntax.Types
	parent *scope
}

func newScope(parent *scope) *scope {
	return &scope{vars: make(map[string]syntax.Types), parent: parent}
}

func (s *scope) lookup(name string) (syntax.Types, bool) {
	for cur := s; cur != nil; cur = cur.parent {
		if t, ok := cur.vars[name]; ok {
			return t, true
		}
	}
	return nil, false
}

func (v *verifier) mismatch(format string, args ...interface{}) error {
	pos := v.pos
	if !pos.IsValid() {
		pos = v.fn.Pos
	}
	return errors.Mismatch(pos, v.fn.Name, format, args...)
}

// at makes pos the location of errors until the returned func is called.
func (v *verifier) at(pos position.Position) func() {
	if !pos.IsValid() {
		return func() {}
	}
	outer := v.pos
	v.pos = pos
	return func() { v.pos = outer }
}

func (v *verifier) resolve(t syntax.Types) (syntax.Types, error) {
	if t == nil {
		return nil, nil
	}
	return syntax.ResolveType(v.ctx, t)
}

func (v *verifier) primitive(name string) (syntax.Types, error) {
	s, ok := v.reg.Struct(name)
	if !ok || !s.Builtin {
		return nil, errors.New(errors.CategoryType, "UNKNOWN_PRIMITIVE",
			fmt.Sprintf("Primitive %s is not registered", name))
	}
	return syntax.StructType{Struct: s}, nil
}

func (v *verifier) verify(body *syntax.CodeBody) error {
	ret, err := v.resolve(v.fn.Return)
	if err != nil {
		return err
	}
	v.ret = ret

	env := newScope(nil)
	for _, param := range v.fn.Params {
		t, err := v.resolve(param.Type)
		if err != nil {
			return err
		}
		env.vars[param.Name] = t
	}
	if err := v.body(body, env); err != nil {
		return err
	}
	if v.ret != nil && !returns(body) {
		return v.mismatch("Missing return, expected %s", syntax.TypeName(v.ret))
	}
	return nil
}

// returns reports whether every path through body ends in a return.
func returns(body *syntax.CodeBody) bool {
	for _, expr := range body.Expressions {
		if expr.Type == syntax.Return {
			return true
		}
		switch e := expr.Effect.(type) {
		case *syntax.CodeBodyEffect:
			if returns(&e.Body) {
				return true
			}
		case *syntax.If:
			if e.Else != nil && returns(&e.Then) && returns(e.Else) {
				return true
			}
		}
	}
	return false
}

func (v *verifier) body(body *syntax.CodeBody, env *scope) error {
	outer := v.pos
	defer func() { v.pos = outer }()
	for i := range body.Expressions {
		if err := v.ctx.Err(); err != nil {
			return errors.Cancelled(v.fn.Name)
		}
		expr := &body.Expressions[i]
		if expr.Pos.IsValid() {
			v.pos = expr.Pos
		}
		t, err := v.effect(expr.Effect, env)
		if err != nil {
			return err
		}
		if expr.Type == syntax.Return && !syntax.SameType(t, v.ret) {
			return v.mismatch("Expected to return %s, found %s", syntax.TypeName(v.ret), syntax.TypeName(t))
		}
	}
	return nil
}

// effect returns the type of e, nil meaning void.
func (v *verifier) effect(e syntax.Effects, env *scope) (syntax.Types, error) {
	switch e := e.(type) {
	case syntax.NopEffect:
		return nil, nil
	case syntax.IntEffect:
		return v.primitive(v.cfg.Literals.Integer)
	case syntax.FloatEffect:
		return v.primitive(v.cfg.Literals.Float)
	case syntax.StringEffect:
		return v.primitive(v.cfg.Literals.String)
	case syntax.LoadVariable:
		if t, ok := env.lookup(e.Name); ok {
			return t, nil
		}
		if e.Name == "true" || e.Name == "false" {
			return v.primitive(v.cfg.Literals.Bool)
		}
		return nil, v.mismatch("Unknown variable %s", e.Name)
	case *syntax.CreateVariable:
		t, err := v.effect(e.Value, env)
		if err != nil {
			return nil, err
		}
		if t == nil {
			return nil, v.mismatch("Cannot assign void to %s", e.Name)
		}
		e.Type = t
		env.vars[e.Name] = t
		return nil, nil
	case *syntax.Set:
		defer v.at(e.Pos)()
		return nil, v.set(e, env)
	case *syntax.CreateStruct:
		defer v.at(e.Pos)()
		return v.createStruct(e, env)
	case *syntax.CodeBodyEffect:
		return nil, v.body(&e.Body, newScope(env))
	case *syntax.Operation:
		return v.operation(e, env)
	case *syntax.Call:
		defer v.at(e.Pos)()
		return v.call(e, env)
	case *syntax.MethodCall:
		defer v.at(e.Pos)()
		return v.methodCall(e, env)
	case *syntax.LoadField:
		return v.loadField(e, env)
	case *syntax.If:
		if err := v.condition(e.Condition, env, "if"); err != nil {
			return nil, err
		}
		if err := v.body(&e.Then, newScope(env)); err != nil {
			return nil, err
		}
		if e.Else != nil {
			return nil, v.body(e.Else, newScope(env))
		}
		return nil, nil
	case *syntax.While:
		if err := v.condition(e.Condition, env, "while"); err != nil {
			return nil, err
		}
		return nil, v.loop(&e.Body, newScope(env))
	case *syntax.For:
		t, err := v.effect(e.Iterable, env)
		if err != nil {
			return nil, err
		}
		integer, err := v.primitive(v.cfg.Literals.Integer)
		if err != nil {
			return nil, err
		}
		if !syntax.SameType(t, integer) {
			return nil, v.mismatch("for expects %s to iterate, found %s", integer, syntax.TypeName(t))
		}
		inner := newScope(env)
		inner.vars[e.Variable] = integer
		return nil, v.loop(&e.Body, inner)
	case syntax.Break:
		if v.loops == 0 {
			return nil, v.mismatch("break outside of a loop")
		}
		return nil, nil
	default:
		errors.Defectf("checker reached unknown effect %T", e)
		return nil, nil
	}
}

func (v *verifier) loop(body *syntax.CodeBody, env *scope) error {
	v.loops++
	defer func() { v.loops-- }()
	return v.body(body, env)
}

func (v *verifier) condition(cond syntax.Effects, env *scope, keyword string) error {
	t, err := v.effect(cond, env)
	if err != nil {
		return err
	}
	boolean, err := v.primitive(v.cfg.Literals.Bool)
	if err != nil {
		return err
	}
	if !syntax.SameType(t, boolean) {
		return v.mismatch("%s condition must be %s, found %s", keyword, boolean, syntax.TypeName(t))
	}
	return nil
}

func (v *verifier) set(e *syntax.Set, env *scope) error {
	switch e.Target.(type) {
	case syntax.LoadVariable, *syntax.LoadField:
	default:
		return v.mismatch("Cannot assign to %s", syntax.Describe(e.Target))
	}
	target, err := v.effect(e.Target, env)
	if err != nil {
		return err
	}
	value, err := v.effect(e.Value, env)
	if err != nil {
		return err
	}
	if !syntax.SameType(target, value) {
		return v.mismatch("Cannot assign %s to %s of type %s",
			syntax.TypeName(value), syntax.Describe(e.Target), syntax.TypeName(target))
	}
	return nil
}

func (v *verifier) operation(e *syntax.Operation, env *scope) (syntax.Types, error) {
	types := make([]syntax.Types, len(e.Args))
	for i, arg := range e.Args {
		t, err := v.effect(arg, env)
		if err != nil {
			return nil, err
		}
		types[i] = t
	}
	if len(types) == 2 && !syntax.SameType(types[0], types[1]) {
		return nil, v.mismatch("Operator %s expects matching operands, found %s and %s",
			e.Operator, syntax.TypeName(types[0]), syntax.TypeName(types[1]))
	}

	operand, ok := types[0].(syntax.StructType)
	if !ok || !operand.Struct.Builtin || !v.cfg.allows(operand.Struct.Name, e.Operator) {
		return nil, v.mismatch("Operator %s is not defined for %s", e.Operator, syntax.TypeName(types[0]))
	}

	result := types[0]
	if len(types) == 2 && v.cfg.isComparison(e.Operator) {
		boolean, err := v.primitive(v.cfg.Literals.Bool)
		if err != nil {
			return nil, err
		}
		result = boolean
	}
	e.Type = result
	return result, nil
}
