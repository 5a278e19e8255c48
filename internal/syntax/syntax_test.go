package syntax

import (
	"context"
	stderrors "errors"
	"testing"

	"github.com/raven-lang/raven/internal/deferred"
	"github.com/raven-lang/raven/internal/errors"
	"github.com/raven-lang/raven/internal/position"
)

type testResolver struct {
	imports []string
	parent  string
}

func (r testResolver) Imports() []string                     { return r.imports }
func (r testResolver) Generic(string) ([]UnparsedType, bool) { return nil, false }
func (r testResolver) Generics() map[string][]UnparsedType   { return nil }
func (r testResolver) Parent() (string, bool)                { return r.parent, r.parent != "" }
func (r testResolver) NextLabel() string                     { return "0" }
func (r testResolver) Clone() NameResolver                   { return r }

func TestCandidates(t *testing.T) {
	tests := []struct {
		resolver testResolver
		name     string
		expected []string
	}{
		{testResolver{imports: []string{"main", "std::math"}}, "max", []string{"main::max", "std::math::max", "max"}},
		{testResolver{imports: []string{"main"}}, "b::Foo", []string{"main::b::Foo", "b::Foo"}},
		{testResolver{imports: []string{"main"}, parent: "main::Point"}, "Self", []string{"main::Point"}},
		{testResolver{imports: []string{"main"}, parent: "main::Point"}, "Self::origin", []string{"main::Point::origin"}},
	}

	for i, tt := range tests {
		got := Candidates(tt.resolver, tt.name)
		if len(got) != len(tt.expected) {
			t.Fatalf("tests[%d] - expected %v, got %v", i, tt.expected, got)
		}
		for j := range got {
			if got[j].String() != tt.expected[j] {
				t.Fatalf("tests[%d] - candidate %d: expected=%s, got=%s", i, j, tt.expected[j], got[j])
			}
		}
	}

	self := Candidates(testResolver{imports: []string{"main"}, parent: "main::Point"}, "Self")
	if self[0].Namespace != "main" {
		t.Errorf("Self should live in the parent's namespace, got %q", self[0].Namespace)
	}
}

func TestResolveAndCompareTypes(t *testing.T) {
	i64 := &Struct{Name: "i64", Builtin: true}
	box := &Struct{Name: "main::Box", Generics: []Generic{{Name: "T"}}}

	lookup := deferred.Ready[Types](StructType{Struct: i64})
	unresolved := InstancedType{Base: box, Args: []Types{UnresolvedType{Name: "i64", Lookup: lookup}}}

	resolved, err := ResolveType(context.Background(), unresolved)
	if err != nil {
		t.Fatal(err)
	}
	want := InstancedType{Base: box, Args: []Types{StructType{Struct: i64}}}
	if !SameType(resolved, want) {
		t.Fatalf("expected %s, got %s", want, resolved)
	}
	if resolved.String() != "main::Box<i64>" {
		t.Fatalf("unexpected rendering %s", resolved)
	}

	generic := InstancedType{Base: box, Args: []Types{GenericType{Name: "T"}}}
	if SameType(generic, want) {
		t.Fatal("generic parameter should not equal a concrete type")
	}
	if !SameType(Substitute(generic, map[string]Types{"T": StructType{Struct: i64}}), want) {
		t.Fatal("substitution should bind T to i64")
	}
	if !SameType(nil, nil) || SameType(nil, StructType{Struct: i64}) {
		t.Fatal("void only equals void")
	}
}

func TestResolveTypePropagatesFailure(t *testing.T) {
	boom := errors.Unresolved("Missing")
	_, err := ResolveType(context.Background(), UnresolvedType{Name: "Missing", Lookup: deferred.Fail[Types](boom)})
	if !stderrors.Is(err, boom) {
		t.Fatalf("expected the lookup failure, got %v", err)
	}
}

func TestFunctionClaimIsExclusive(t *testing.T) {
	fn := NewFunction("main::f", "main", position.Position{}, nil, nil, nil, deferred.Ready(CodeBody{Label: "0"}))

	if err := fn.Finalize(context.Background()); err != nil {
		t.Fatal(err)
	}
	if !fn.HasCode() || fn.Code().Label != "0" {
		t.Fatal("finalize should install the body")
	}

	_, release := fn.Claim()
	defer release()

	defer func() {
		r := recover()
		if _, ok := r.(*errors.Defect); !ok {
			t.Fatalf("second claim should raise a defect, got %v", r)
		}
	}()
	fn.Claim()
}

func TestDescribe(t *testing.T) {
	point := &Struct{Name: "main::Point"}
	effect := &CreateStruct{
		Type: StructType{Struct: point},
		Args: []StructArg{
			{Slot: -1, Name: "x", Value: IntEffect{Value: 1}},
			{Slot: -1, Name: "y", Value: LoadVariable{Name: "y"}},
		},
	}
	if got := Describe(effect); got != "new main::Point{x: 1, y: y}" {
		t.Fatalf("unexpected description %s", got)
	}

	body := CodeBody{Expressions: []Expression{
		{Type: Line, Effect: &CreateVariable{Name: "x", Value: IntEffect{Value: 5}}},
		{Type: Return, Effect: &Operation{Operator: "+", Args: []Effects{LoadVariable{Name: "x"}, FloatEffect{Value: 2.5}}}},
	}}
	if got := DescribeBody(body); got != "{let x = 5; return (x + 2.5)}" {
		t.Fatalf("unexpected description %s", got)
	}
}
