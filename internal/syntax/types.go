package syntax

import (
	"context"
	"strings"

	"github.com/raven-lang/raven/internal/deferred"
)

// Types is a type reference. Like Effects, the variant set is closed.
type Types interface {
	typeNode()
	String() string
}

// StructType names a declared struct or a builtin primitive.
type StructType struct {
	Struct *Struct
}

// GenericType is a generic parameter of the enclosing declaration.
type GenericType struct {
	Name   string
	Bounds []UnparsedType
}

// InstancedType is a generic struct applied to type arguments.
type InstancedType struct {
	Base *Struct
	Args []Types
}

// UnresolvedType is a type reference whose registry lookup may still be pending.
type UnresolvedType struct {
	Name   string
	Lookup *deferred.Deferred[Types]
}

func (StructType) typeNode()     {}
func (GenericType) typeNode()    {}
func (InstancedType) typeNode()  {}
func (UnresolvedType) typeNode() {}

func (t StructType) String() string  { return t.Struct.Name }
func (t GenericType) String() string { return t.Name }

func (t InstancedType) String() string {
	args := make([]string, len(t.Args))
	for i, arg := range t.Args {
		args[i] = arg.String()
	}
	return t.Base.Name + "<" + strings.Join(args, ", ") + ">"
}

func (t UnresolvedType) String() string { return t.Name }

// UnparsedType is a type written in a generic bound. Bounds are recorded but
// never resolved.
type UnparsedType struct {
	Name     string
	Generics []UnparsedType
}

func (t UnparsedType) String() string {
	if len(t.Generics) == 0 {
		return t.Name
	}
	args := make([]string, len(t.Generics))
	for i, arg := range t.Generics {
		args[i] = arg.String()
	}
	return t.Name + "<" + strings.Join(args, ", ") + ">"
}

// ResolveType awaits every pending lookup inside t and returns a type with no
// UnresolvedType left in it. t itself is not modified.
func ResolveType(ctx context.Context, t Types) (Types, error) {
	switch typ := t.(type) {
	case UnresolvedType:
		found, err := typ.Lookup.Await(ctx)
		if err != nil {
			return nil, err
		}
		return ResolveType(ctx, found)
	case InstancedType:
		args := make([]Types, len(typ.Args))
		for i, arg := range typ.Args {
			resolved, err := ResolveType(ctx, arg)
			if err != nil {
				return nil, err
			}
			args[i] = resolved
		}
		return InstancedType{Base: typ.Base, Args: args}, nil
	default:
		return t, nil
	}
}

// SameType compares two resolved types.
func SameType(a, b Types) bool {
	switch x := a.(type) {
	case StructType:
		y, ok := b.(StructType)
		return ok && x.Struct.Name == y.Struct.Name
	case GenericType:
		y, ok := b.(GenericType)
		return ok && x.Name == y.Name
	case InstancedType:
		y, ok := b.(InstancedType)
		if !ok || x.Base.Name != y.Base.Name || len(x.Args) != len(y.Args) {
			return false
		}
		for i := range x.Args {
			if !SameType(x.Args[i], y.Args[i]) {
				return false
			}
		}
		return true
	case nil:
		return b == nil
	default:
		return false
	}
}

// Substitute replaces generic parameters with their bound types.
func Substitute(t Types, bindings map[string]Types) Types {
	switch typ := t.(type) {
	case GenericType:
		if bound, ok := bindings[typ.Name]; ok {
			return bound
		}
		return t
	case InstancedType:
		args := make([]Types, len(typ.Args))
		for i, arg := range typ.Args {
			args[i] = Substitute(arg, bindings)
		}
		return InstancedType{Base: typ.Base, Args: args}
	default:
		return t
	}
}

// TypeName renders a possibly void type.
func TypeName(t Types) string {
	if t == nil {
		return "void"
	}
	return t.String()
}
