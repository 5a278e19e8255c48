package checker

import (
	"strings"

	"github.com/raven-lang/raven/internal/syntax"
)

func (v *verifier) argTypes(args []syntax.Effects, env *scope) ([]syntax.Types, error) {
	types := make([]syntax.Types, len(args))
	for i, arg := range args {
		t, err := v.effect(arg, env)
		if err != nil {
			return nil, err
		}
		types[i] = t
	}
	return types, nil
}

// apply checks argument types against the signature of fn and returns the
// return type with every generic parameter bound. bound pre-binds the
// generics of the receiver's struct.
func (v *verifier) apply(fn *syntax.Function, types []syntax.Types, bound map[string]syntax.Types) (syntax.Types, error) {
	if len(types) != len(fn.Params) {
		return nil, v.mismatch("%s expects %d arguments, found %d", fn.Name, len(fn.Params), len(types))
	}

	bindings := freeBindings(fn.Generics)
	for name, t := range bound {
		bindings[name] = t
	}
	for i, actual := range types {
		param, err := v.resolve(fn.Params[i].Type)
		if err != nil {
			return nil, err
		}
		if !unify(param, actual, bindings) {
			return nil, v.mismatch("Argument %s of %s expects %s, found %s",
				fn.Params[i].Name, fn.Name, syntax.TypeName(syntax.Substitute(param, bindings)), syntax.TypeName(actual))
		}
	}
	for _, g := range fn.Generics {
		if bindings[g.Name] == nil {
			return nil, v.mismatch("Cannot infer generic %s of %s", g.Name, fn.Name)
		}
	}

	ret, err := v.resolve(fn.Return)
	if err != nil {
		return nil, err
	}
	return syntax.Substitute(ret, bindings), nil
}

func (v *verifier) call(e *syntax.Call, env *scope) (syntax.Types, error) {
	types, err := v.argTypes(e.Args, env)
	if err != nil {
		return nil, err
	}
	return v.apply(e.Function, types, nil)
}

// methodCall resolves the target of recv.name(args) from the receiver type
// and stores it in the call.
func (v *verifier) methodCall(e *syntax.MethodCall, env *scope) (syntax.Types, error) {
	types, err := v.argTypes(e.Args, env)
	if err != nil {
		return nil, err
	}
	s, bindings := structOf(types[0])

	if e.Function == nil {
		fn, ok := v.findMethod(s, e)
		if !ok {
			return nil, v.mismatch("No method %s on %s", e.Name, syntax.TypeName(types[0]))
		}
		e.Function = fn
	}
	if s == nil || !strings.HasPrefix(e.Function.Name, s.Name+"::") {
		bindings = nil
	}
	return v.apply(e.Function, types, bindings)
}

// findMethod looks for `Struct::name` first, then for a free function named
// name in the namespaces enclosing the struct, then in the caller's own
// namespace and imports, and finally for the bare name.
func (v *verifier) findMethod(s *syntax.Struct, e *syntax.MethodCall) (*syntax.Function, bool) {
	var namespaces []string
	if s != nil {
		if fn, ok := v.reg.Function(s.Name + "::" + e.Name); ok {
			return fn, true
		}
		for scope := s.Name; ; {
			i := strings.LastIndex(scope, "::")
			if i < 0 {
				break
			}
			scope = scope[:i]
			namespaces = append(namespaces, scope)
		}
	}
	for _, ns := range append(namespaces, e.Namespaces...) {
		if ns == "" {
			continue
		}
		if fn, ok := v.reg.Function(ns + "::" + e.Name); ok {
			return fn, true
		}
	}
	return v.reg.Function(e.Name)
}
