package syntax

import "strings"

// NameResolver answers which qualified names a short name may refer to in
// one file. Nested parses clone it instead of mutating the caller's copy.
type NameResolver interface {
	// Imports lists the namespaces searched, in declaration order. The
	// file's own namespace comes first.
	Imports() []string
	// Generic returns the bounds of an active generic parameter.
	Generic(name string) ([]UnparsedType, bool)
	// Generics returns every active generic parameter.
	Generics() map[string][]UnparsedType
	// Parent returns the qualified name of the enclosing type, if any.
	Parent() (string, bool)
	// NextLabel returns a scope label never handed out before in this file.
	NextLabel() string
	// Clone returns an independent copy sharing the label counter.
	Clone() NameResolver
}

// Candidates lists the qualified names name may refer to, in search order:
// the enclosing type for Self, then each import, then the name as written.
func Candidates(resolver NameResolver, name string) []QualifiedName {
	if parent, ok := resolver.Parent(); ok {
		if name == "Self" {
			return []QualifiedName{splitQualified(parent)}
		}
		if rest, found := strings.CutPrefix(name, "Self::"); found {
			return []QualifiedName{{Namespace: namespaceOf(parent), Name: nameOf(parent) + "::" + rest}}
		}
	}

	imports := resolver.Imports()
	out := make([]QualifiedName, 0, len(imports)+1)
	for _, ns := range imports {
		out = append(out, QualifiedName{Namespace: ns, Name: name})
	}
	return append(out, splitQualified(name))
}

// splitQualified turns "a::b::C" into namespace "a::b" and name "C".
func splitQualified(name string) QualifiedName {
	i := strings.LastIndex(name, "::")
	if i < 0 {
		return QualifiedName{Name: name}
	}
	return QualifiedName{Namespace: name[:i], Name: name[i+2:]}
}

func namespaceOf(name string) string { return splitQualified(name).Namespace }
func nameOf(name string) string      { return splitQualified(name).Name }
