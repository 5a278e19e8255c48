package parser

import (
	"path/filepath"
	"strconv"
	"strings"

	"github.com/raven-lang/raven/internal/syntax"
)

// ImportNameResolver is the resolver of one file.
type ImportNameResolver struct {
	imports  []string
	generics map[string][]syntax.UnparsedType
	parent   string

	// shared by every clone so labels never repeat within the file
	lastID *uint32
}

// NewImportNameResolver creates a resolver whose first import is the file's own namespace.
func NewImportNameResolver(base string) *ImportNameResolver {
	return &ImportNameResolver{
		imports:  []string{base},
		generics: make(map[string][]syntax.UnparsedType),
		lastID:   new(uint32),
	}
}

func (r *ImportNameResolver) Imports() []string { return r.imports }

func (r *ImportNameResolver) Generic(name string) ([]syntax.UnparsedType, bool) {
	bounds, ok := r.generics[name]
	return bounds, ok
}

func (r *ImportNameResolver) Generics() map[string][]syntax.UnparsedType { return r.generics }

func (r *ImportNameResolver) Parent() (string, bool) { return r.parent, r.parent != "" }

func (r *ImportNameResolver) NextLabel() string {
	id := *r.lastID
	*r.lastID++
	return strconv.FormatUint(uint64(id), 10)
}

func (r *ImportNameResolver) Clone() syntax.NameResolver {
	return r.clone()
}

func (r *ImportNameResolver) clone() *ImportNameResolver {
	generics := make(map[string][]syntax.UnparsedType, len(r.generics))
	for name, bounds := range r.generics {
		generics[name] = bounds
	}
	return &ImportNameResolver{
		imports:  append([]string(nil), r.imports...),
		generics: generics,
		parent:   r.parent,
		lastID:   r.lastID,
	}
}

// AddImport appends a namespace to the search order.
func (r *ImportNameResolver) AddImport(namespace string) {
	r.imports = append(r.imports, namespace)
}

// WithGenerics returns a clone with extra generic parameters in scope.
func (r *ImportNameResolver) WithGenerics(generics []syntax.Generic) *ImportNameResolver {
	out := r.clone()
	for _, g := range generics {
		out.generics[g.Name] = g.Bounds
	}
	return out
}

// WithParent returns a clone whose enclosing type is parent.
func (r *ImportNameResolver) WithParent(parent string) *ImportNameResolver {
	out := r.clone()
	out.parent = parent
	return out
}

// Namespace derives the namespace a file declares its names in:
// "geometry/point.rv" becomes "geometry::point".
func Namespace(file string) string {
	file = filepath.ToSlash(file)
	file = strings.TrimSuffix(file, filepath.Ext(file))
	file = strings.TrimPrefix(file, "./")
	return strings.ReplaceAll(file, "/", "::")
}
