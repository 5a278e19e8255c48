package syntax

import (
	"context"
	stderrors "errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/raven-lang/raven/internal/errors"
)

func candidates(name string, namespaces ...string) []QualifiedName {
	out := make([]QualifiedName, 0, len(namespaces)+1)
	for _, ns := range namespaces {
		out = append(out, QualifiedName{Namespace: ns, Name: name})
	}
	return append(out, QualifiedName{Name: name})
}

func TestRegistryDuplicateDefinition(t *testing.T) {
	reg := NewRegistry(context.Background())

	if err := reg.AddStruct(&Struct{Name: "main::Point"}); err != nil {
		t.Fatalf("first definition failed: %v", err)
	}

	err := reg.AddFunction(&Function{Name: "main::Point"})
	var ce *errors.CompileError
	if !stderrors.As(err, &ce) || ce.Code != "DUPLICATE_DEFINITION" {
		t.Fatalf("expected a duplicate definition error, got %v", err)
	}
}

func TestRegistryImmediateLookup(t *testing.T) {
	reg := NewRegistry(context.Background())
	point := &Struct{Name: "main::Point"}
	reg.AddStruct(point)
	reg.MarkParsed("main")

	found, err := reg.GetStruct(context.Background(), "Point", candidates("Point", "main"))
	if err != nil {
		t.Fatalf("lookup failed: %v", err)
	}
	if found != point {
		t.Fatalf("expected main::Point, got %s", found.Name)
	}
}

func TestRegistryForwardReference(t *testing.T) {
	reg := NewRegistry(context.Background())
	reg.MarkParsed("a")

	result := make(chan error, 1)
	go func() {
		s, err := reg.GetStruct(context.Background(), "Foo", candidates("Foo", "a", "b"))
		if err == nil && s.Name != "b::Foo" {
			err = stderrors.New("resolved to " + s.Name)
		}
		result <- err
	}()

	select {
	case err := <-result:
		t.Fatalf("lookup should wait for b::Foo, returned %v", err)
	case <-time.After(20 * time.Millisecond):
	}

	reg.AddStruct(&Struct{Name: "b::Foo"})

	if err := <-result; err != nil {
		t.Fatalf("forward reference failed: %v", err)
	}
}

func TestRegistryFinishFailsPendingLookups(t *testing.T) {
	reg := NewRegistry(context.Background())

	var wg sync.WaitGroup
	errs := make([]error, 4)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = reg.GetStruct(context.Background(), "Foo", candidates("Foo", "main"))
		}(i)
	}

	reg.Finish()
	wg.Wait()

	for i, err := range errs {
		var ce *errors.CompileError
		if !stderrors.As(err, &ce) || ce.Category != errors.CategoryResolution {
			t.Fatalf("lookup %d: expected a resolution error, got %v", i, err)
		}
		if !strings.Contains(ce.Message, "Foo") {
			t.Fatalf("lookup %d: error should name Foo, got %s", i, ce.Message)
		}
	}
}

func TestRegistryCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	reg := NewRegistry(ctx)

	result := make(chan error, 1)
	go func() {
		_, err := reg.GetFunction(context.Background(), "run", candidates("run", "main"))
		result <- err
	}()

	cancel()

	var ce *errors.CompileError
	if err := <-result; !stderrors.As(err, &ce) || ce.Category != errors.CategoryCancelled {
		t.Fatalf("expected a cancellation error, got %v", err)
	}
}

func TestRegistryFirstImportWins(t *testing.T) {
	reg := NewRegistry(context.Background())
	later := &Struct{Name: "c::Foo"}
	earlier := &Struct{Name: "b::Foo"}

	reg.AddStruct(later)
	reg.MarkParsed("a")
	reg.MarkParsed("c")

	result := make(chan *Struct, 1)
	go func() {
		s, _ := reg.GetStruct(context.Background(), "Foo", candidates("Foo", "a", "b", "c"))
		result <- s
	}()

	// b is not parsed yet, so c::Foo must not be chosen.
	select {
	case s := <-result:
		t.Fatalf("lookup decided before b was parsed: %v", s)
	case <-time.After(20 * time.Millisecond):
	}

	reg.AddStruct(earlier)
	if s := <-result; s != earlier {
		t.Fatalf("expected b::Foo to shadow c::Foo, got %v", s)
	}
}

func TestRegistryParsedNamespaceFallsThrough(t *testing.T) {
	reg := NewRegistry(context.Background())
	builtin := &Struct{Name: "i64", Builtin: true}
	reg.AddStruct(builtin)
	reg.MarkParsed("main")

	found, err := reg.GetStruct(context.Background(), "i64", candidates("i64", "main"))
	if err != nil || found != builtin {
		t.Fatalf("expected builtin i64, got %v, %v", found, err)
	}
}

func TestRegistryListings(t *testing.T) {
	reg := NewRegistry(context.Background())
	reg.AddFunction(&Function{Name: "main::b"})
	reg.AddFunction(&Function{Name: "main::a"})
	reg.AddStruct(&Struct{Name: "main::S"})

	fns := reg.Functions()
	if len(fns) != 2 || fns[0].Name != "main::a" || fns[1].Name != "main::b" {
		t.Fatalf("functions should be sorted by name, got %v", fns)
	}
	if len(reg.Structs()) != 1 {
		t.Fatalf("expected one struct")
	}
	if _, ok := reg.Function("main::a"); !ok {
		t.Fatal("main::a should be registered")
	}
}
