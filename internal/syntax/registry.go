package syntax

import (
	"context"
	"sort"
	"strings"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/raven-lang/raven/internal/errors"
)

// QualifiedName is a lookup candidate: Name inside Namespace.
type QualifiedName struct {
	Namespace string
	Name      string
}

func (q QualifiedName) String() string {
	if q.Namespace == "" {
		return q.Name
	}
	return q.Namespace + "::" + q.Name
}

// Registry is the program-wide table of declared structs and functions.
//
// Every access takes the single lock for exactly one map operation; the lock
// is never held while a lookup waits. Lookups for names that are not
// registered yet wait until the answer is decided: the name appears, its
// namespace finishes parsing, the registry is finished, or the compilation
// is cancelled.
type Registry struct {
	ctx context.Context

	mu        sync.Mutex
	structs   map[string]*Struct
	functions map[string]*Function
	parsed    map[string]bool
	finished  bool
	changed   chan struct{}

	waits singleflight.Group
}

// NewRegistry creates an empty registry bound to the compilation's
// cancellation context.
func NewRegistry(ctx context.Context) *Registry {
	return &Registry{
		ctx:       ctx,
		structs:   make(map[string]*Struct),
		functions: make(map[string]*Function),
		parsed:    map[string]bool{"": true},
		changed:   make(chan struct{}),
	}
}

// notify wakes every waiting lookup. Callers hold mu.
func (r *Registry) notify() {
	close(r.changed)
	r.changed = make(chan struct{})
}

// AddStruct registers a struct. A name may only be defined once.
func (r *Registry) AddStruct(s *Struct) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.definedLocked(s.Name) {
		return errors.Duplicate(s.Pos, s.Name)
	}
	r.structs[s.Name] = s
	r.notify()
	return nil
}

// AddFunction registers a function. A name may only be defined once.
func (r *Registry) AddFunction(f *Function) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.definedLocked(f.Name) {
		return errors.Duplicate(f.Pos, f.Name)
	}
	r.functions[f.Name] = f
	r.notify()
	return nil
}

func (r *Registry) definedLocked(name string) bool {
	_, isStruct := r.structs[name]
	_, isFunction := r.functions[name]
	return isStruct || isFunction
}

// MarkParsed records that every top-level declaration of namespace is registered.
func (r *Registry) MarkParsed(namespace string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.parsed[namespace] = true
	r.notify()
}

// Finish declares that no further names will be registered. Pending
// lookups for absent names fail.
func (r *Registry) Finish() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.finished {
		r.finished = true
		r.notify()
	}
}

// Struct returns a registered struct without waiting.
func (r *Registry) Struct(name string) (*Struct, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.structs[name]
	return s, ok
}

// Function returns a registered function without waiting.
func (r *Registry) Function(name string) (*Function, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	f, ok := r.functions[name]
	return f, ok
}

// Functions returns every registered function sorted by name.
func (r *Registry) Functions() []*Function {
	r.mu.Lock()
	out := make([]*Function, 0, len(r.functions))
	for _, f := range r.functions {
		out = append(out, f)
	}
	r.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Structs returns every registered struct sorted by name.
func (r *Registry) Structs() []*Struct {
	r.mu.Lock()
	out := make([]*Struct, 0, len(r.structs))
	for _, s := range r.structs {
		out = append(out, s)
	}
	r.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// GetStruct resolves name against candidates in order; the first candidate
// that is registered wins. It waits while an earlier candidate could still
// be registered.
func (r *Registry) GetStruct(ctx context.Context, name string, candidates []QualifiedName) (*Struct, error) {
	found, err := r.resolve(ctx, "struct", name, candidates)
	if err != nil {
		return nil, err
	}
	return found.(*Struct), nil
}

// GetFunction resolves a function the same way GetStruct resolves structs.
func (r *Registry) GetFunction(ctx context.Context, name string, candidates []QualifiedName) (*Function, error) {
	found, err := r.resolve(ctx, "function", name, candidates)
	if err != nil {
		return nil, err
	}
	return found.(*Function), nil
}

func (r *Registry) resolve(ctx context.Context, kind, name string, candidates []QualifiedName) (interface{}, error) {
	if found, decided := r.scan(kind, candidates); decided.ok {
		if found == nil {
			return nil, errors.Unresolved(name)
		}
		return found, nil
	}

	// Concurrent lookups of the same name share one waiter.
	keys := make([]string, len(candidates))
	for i, c := range candidates {
		keys[i] = c.String()
	}
	key := kind + "|" + strings.Join(keys, ",")

	ch := r.waits.DoChan(key, func() (interface{}, error) {
		return r.wait(kind, name, candidates)
	})

	select {
	case res := <-ch:
		return res.Val, res.Err
	case <-ctx.Done():
		return nil, errors.Cancelled(name)
	}
}

type decision struct {
	ok      bool
	changed chan struct{}
}

// scan checks the candidates under the lock. decision.ok is false while the
// answer could still change; changed is then closed on the next registration.
func (r *Registry) scan(kind string, candidates []QualifiedName) (interface{}, decision) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, c := range candidates {
		qualified := c.String()
		if kind == "struct" {
			if s, ok := r.structs[qualified]; ok {
				return s, decision{ok: true}
			}
		} else if f, ok := r.functions[qualified]; ok {
			return f, decision{ok: true}
		}
		if !r.finished && !r.parsed[c.Namespace] {
			return nil, decision{changed: r.changed}
		}
	}
	return nil, decision{ok: true}
}

func (r *Registry) wait(kind, name string, candidates []QualifiedName) (interface{}, error) {
	for {
		found, decided := r.scan(kind, candidates)
		if decided.ok {
			if found == nil {
				return nil, errors.Unresolved(name)
			}
			return found, nil
		}

		select {
		case <-decided.changed:
		case <-r.ctx.Done():
			return nil, errors.Cancelled(name)
		}
	}
}
