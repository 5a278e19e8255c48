// Package syntax defines the resolved program representation shared by the
// parser and the checker: effects, types, functions, structs and the
// program-wide registry they are declared in.
package syntax

import (
	"fmt"
	"strings"

	"github.com/raven-lang/raven/internal/position"
)

// Effects is a node of the expression/statement tree. The set of variants is
// closed; every implementation lives in this file. A tree is owned top-down
// and never shares nodes between siblings.
type Effects interface {
	effectNode()
}

// ExpressionType marks whether an expression's value terminates the function.
type ExpressionType int

const (
	Line ExpressionType = iota
	Return
)

func (et ExpressionType) String() string {
	if et == Return {
		return "return"
	}
	return "line"
}

// Expression is one line of a code body. Pos is where the line starts.
type Expression struct {
	Type   ExpressionType
	Effect Effects
	Pos    position.Position
}

// CodeBody is an ordered list of expressions plus the unique label of its scope.
type CodeBody struct {
	Expressions []Expression
	Label       string
}

// NopEffect does nothing and has no value.
type NopEffect struct{}

// IntEffect is an integer constant.
type IntEffect struct {
	Value int64
}

// FloatEffect is a float constant.
type FloatEffect struct {
	Value float64
}

// StringEffect is a string constant.
type StringEffect struct {
	Value string
}

// LoadVariable reads a local variable.
type LoadVariable struct {
	Name string
}

// CreateVariable declares a local variable. Type is filled in by the checker.
type CreateVariable struct {
	Name  string
	Value Effects
	Type  Types
}

// Set assigns Value to Target, which must be a variable or a field load.
type Set struct {
	Target Effects
	Value  Effects
	Pos    position.Position
}

// StructArg is one `name: value` pair of a struct construction. Slot is the
// field index in the struct definition, or -1 until the checker assigns it.
type StructArg struct {
	Slot  int
	Name  string
	Value Effects
}

// CreateStruct constructs a struct. Args keep their source order.
type CreateStruct struct {
	Type Types
	Args []StructArg
	Pos  position.Position
}

// CodeBodyEffect uses a nested body as a value.
type CodeBodyEffect struct {
	Body CodeBody
}

// Operation applies an operator to one (unary) or two operands. Type is the
// result type, filled in by the checker.
type Operation struct {
	Operator string
	Args     []Effects
	Type     Types
}

// Call invokes a function resolved while parsing.
type Call struct {
	Function *Function
	Args     []Effects
	Pos      position.Position
}

// MethodCall is `receiver.name(args)`. Args[0] is the receiver. The checker
// resolves Function from the receiver's type, falling back to free functions
// in Namespaces: the calling file's own namespace and imports, in order.
type MethodCall struct {
	Name       string
	Args       []Effects
	Namespaces []string
	Function   *Function
	Pos        position.Position
}

// LoadField reads a struct field. Slot is -1 until the checker assigns it.
type LoadField struct {
	Value Effects
	Field string
	Slot  int
}

// If runs Then when Condition holds, otherwise Else if present.
type If struct {
	Condition Effects
	Then      CodeBody
	Else      *CodeBody
}

// While repeats Body while Condition holds.
type While struct {
	Condition Effects
	Body      CodeBody
}

// For binds Variable to each value below Iterable and runs Body.
type For struct {
	Variable string
	Iterable Effects
	Body     CodeBody
}

// Break leaves the loop whose body carries Label.
type Break struct {
	Label string
}

func (NopEffect) effectNode()       {}
func (IntEffect) effectNode()       {}
func (FloatEffect) effectNode()     {}
func (StringEffect) effectNode()    {}
func (LoadVariable) effectNode()    {}
func (*CreateVariable) effectNode() {}
func (*Set) effectNode()            {}
func (*CreateStruct) effectNode()   {}
func (*CodeBodyEffect) effectNode() {}
func (*Operation) effectNode()      {}
func (*Call) effectNode()           {}
func (*MethodCall) effectNode()     {}
func (*LoadField) effectNode()      {}
func (*If) effectNode()             {}
func (*While) effectNode()          {}
func (*For) effectNode()            {}
func (Break) effectNode()           {}

// Describe renders an effect tree for debugging and test output.
func Describe(effect Effects) string {
	switch e := effect.(type) {
	case NopEffect:
		return "nop"
	case IntEffect:
		return fmt.Sprintf("%d", e.Value)
	case FloatEffect:
		return fmt.Sprintf("%g", e.Value)
	case StringEffect:
		return fmt.Sprintf("%q", e.Value)
	case LoadVariable:
		return e.Name
	case *CreateVariable:
		return fmt.Sprintf("let %s = %s", e.Name, Describe(e.Value))
	case *Set:
		return fmt.Sprintf("%s = %s", Describe(e.Target), Describe(e.Value))
	case *CreateStruct:
		args := make([]string, len(e.Args))
		for i, arg := range e.Args {
			args[i] = fmt.Sprintf("%s: %s", arg.Name, Describe(arg.Value))
		}
		return fmt.Sprintf("new %s{%s}", e.Type, strings.Join(args, ", "))
	case *CodeBodyEffect:
		return DescribeBody(e.Body)
	case *Operation:
		if len(e.Args) == 1 {
			return fmt.Sprintf("(%s%s)", e.Operator, Describe(e.Args[0]))
		}
		return fmt.Sprintf("(%s %s %s)", Describe(e.Args[0]), e.Operator, Describe(e.Args[1]))
	case *Call:
		return fmt.Sprintf("%s(%s)", e.Function.Name, describeList(e.Args))
	case *MethodCall:
		return fmt.Sprintf("%s.%s(%s)", Describe(e.Args[0]), e.Name, describeList(e.Args[1:]))
	case *LoadField:
		return fmt.Sprintf("%s.%s", Describe(e.Value), e.Field)
	case *If:
		out := fmt.Sprintf("if %s %s", Describe(e.Condition), DescribeBody(e.Then))
		if e.Else != nil {
			out += " else " + DescribeBody(*e.Else)
		}
		return out
	case *While:
		return fmt.Sprintf("while %s %s", Describe(e.Condition), DescribeBody(e.Body))
	case *For:
		return fmt.Sprintf("for %s in %s %s", e.Variable, Describe(e.Iterable), DescribeBody(e.Body))
	case Break:
		return "break " + e.Label
	default:
		return fmt.Sprintf("<%T>", effect)
	}
}

// DescribeBody renders a code body on one line.
func DescribeBody(body CodeBody) string {
	lines := make([]string, len(body.Expressions))
	for i, expr := range body.Expressions {
		lines[i] = Describe(expr.Effect)
		if expr.Type == Return {
			lines[i] = "return " + lines[i]
		}
	}
	return "{" + strings.Join(lines, "; ") + "}"
}

func describeList(effects []Effects) string {
	parts := make([]string, len(effects))
	for i, effect := range effects {
		parts[i] = Describe(effect)
	}
	return strings.Join(parts, ", ")
}
