package parser

import (
	"github.com/raven-lang/raven/internal/syntax"
	"github.com/raven-lang/raven/internal/tasks"
)

// Parse parses one file and registers its declarations under the namespace
// derived from file. Function bodies and struct field types are resolved by
// tasks spawned on handle; their errors are reported there.
func Parse(handle *tasks.Handle, registry *syntax.Registry, file string, contents []byte) {
	c := NewContext(handle, registry, file, contents)
	defer registry.MarkParsed(c.Namespace)
	parseTop(c)
}
