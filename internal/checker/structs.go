package checker

import (
	"github.com/raven-lang/raven/internal/syntax"
)

// structOf returns the struct behind a resolved type and the bindings of its
// generic parameters.
func structOf(t syntax.Types) (*syntax.Struct, map[string]syntax.Types) {
	switch t := t.(type) {
	case syntax.StructType:
		return t.Struct, nil
	case syntax.InstancedType:
		bindings := make(map[string]syntax.Types, len(t.Args))
		for i, g := range t.Base.Generics {
			if i < len(t.Args) {
				bindings[g.Name] = t.Args[i]
			}
		}
		return t.Base, bindings
	default:
		return nil, nil
	}
}

// unify matches actual against expected, binding the generic parameters in
// bindings that are still free. Only names present as keys may be bound.
func unify(expected, actual syntax.Types, bindings map[string]syntax.Types) bool {
	switch exp := expected.(type) {
	case syntax.GenericType:
		bound, known := bindings[exp.Name]
		if !known {
			return syntax.SameType(expected, actual)
		}
		if bound == nil {
			if actual == nil {
				return false
			}
			bindings[exp.Name] = actual
			return true
		}
		return syntax.SameType(bound, actual)
	case syntax.InstancedType:
		act, ok := actual.(syntax.InstancedType)
		if !ok || act.Base.Name != exp.Base.Name || len(act.Args) != len(exp.Args) {
			return false
		}
		for i := range exp.Args {
			if !unify(exp.Args[i], act.Args[i], bindings) {
				return false
			}
		}
		return true
	case syntax.StructType:
		// a generic struct named without arguments accepts any instance of it
		if act, ok := actual.(syntax.InstancedType); ok {
			return act.Base.Name == exp.Struct.Name
		}
		return syntax.SameType(expected, actual)
	default:
		return syntax.SameType(expected, actual)
	}
}

func freeBindings(generics []syntax.Generic) map[string]syntax.Types {
	out := make(map[string]syntax.Types, len(generics))
	for _, g := range generics {
		out[g.Name] = nil
	}
	return out
}

func (v *verifier) createStruct(e *syntax.CreateStruct, env *scope) (syntax.Types, error) {
	s, bindings := structOf(e.Type)
	if s == nil {
		return nil, v.mismatch("Cannot construct %s", syntax.TypeName(e.Type))
	}
	if s.Builtin {
		return nil, v.mismatch("Cannot construct primitive %s", s.Name)
	}
	infer := bindings == nil && len(s.Generics) > 0
	if infer {
		bindings = freeBindings(s.Generics)
	}

	seen := make(map[string]bool, len(e.Args))
	for i := range e.Args {
		arg := &e.Args[i]
		slot := s.FieldIndex(arg.Name)
		if slot < 0 {
			return nil, v.mismatch("%s has no field %s", s.Name, arg.Name)
		}
		if seen[arg.Name] {
			return nil, v.mismatch("Field %s of %s given twice", arg.Name, s.Name)
		}
		seen[arg.Name] = true
		arg.Slot = slot

		value, err := v.effect(arg.Value, env)
		if err != nil {
			return nil, err
		}
		field, err := v.resolve(s.Fields[slot].Type)
		if err != nil {
			return nil, err
		}
		if infer {
			if !unify(field, value, bindings) {
				return nil, v.mismatch("Field %s of %s expects %s, found %s",
					arg.Name, s.Name, syntax.Substitute(field, bindings), syntax.TypeName(value))
			}
			continue
		}
		expected := syntax.Substitute(field, bindings)
		if !syntax.SameType(expected, value) {
			return nil, v.mismatch("Field %s of %s expects %s, found %s",
				arg.Name, s.Name, syntax.TypeName(expected), syntax.TypeName(value))
		}
	}

	for _, field := range s.Fields {
		if !seen[field.Name] {
			return nil, v.mismatch("Missing field %s in construction of %s", field.Name, s.Name)
		}
	}

	if infer {
		args := make([]syntax.Types, len(s.Generics))
		for i, g := range s.Generics {
			if bindings[g.Name] == nil {
				return nil, v.mismatch("Cannot infer generic %s of %s", g.Name, s.Name)
			}
			args[i] = bindings[g.Name]
		}
		e.Type = syntax.InstancedType{Base: s, Args: args}
	}
	return e.Type, nil
}

func (v *verifier) loadField(e *syntax.LoadField, env *scope) (syntax.Types, error) {
	t, err := v.effect(e.Value, env)
	if err != nil {
		return nil, err
	}
	s, bindings := structOf(t)
	if s == nil {
		return nil, v.mismatch("Cannot load field %s of %s", e.Field, syntax.TypeName(t))
	}
	slot := s.FieldIndex(e.Field)
	if slot < 0 {
		return nil, v.mismatch("%s has no field %s", s.Name, e.Field)
	}
	e.Slot = slot

	field, err := v.resolve(s.Fields[slot].Type)
	if err != nil {
		return nil, err
	}
	return syntax.Substitute(field, bindings), nil
}
