package checker

import (
	"context"
	stderrors "errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/raven-lang/raven/internal/errors"
	"github.com/raven-lang/raven/internal/parser"
	"github.com/raven-lang/raven/internal/syntax"
	"github.com/raven-lang/raven/internal/tasks"
)

// parseProgram parses code as the file "main" and fails the test on any
// parse error.
func parseProgram(t *testing.T, cfg *Config, code string) *syntax.Registry {
	t.Helper()
	return parseFiles(t, cfg, [2]string{"main", code})
}

// parseFiles parses each {name, code} pair as one file of a program.
func parseFiles(t *testing.T, cfg *Config, files ...[2]string) *syntax.Registry {
	t.Helper()
	h := tasks.NewHandle(context.Background())
	reg := syntax.NewRegistry(h.Context())
	if err := cfg.RegisterBuiltins(reg); err != nil {
		t.Fatal(err)
	}
	for _, f := range files {
		parser.Parse(h, reg, f[0], []byte(f[1]))
	}
	reg.Finish()
	if err := h.Wait(); err != nil {
		t.Fatalf("unexpected defect: %v", err)
	}
	if errs := h.Errors(); len(errs) > 0 {
		t.Fatalf("unexpected parse errors:\n%v", errs)
	}
	return reg
}

func function(t *testing.T, reg *syntax.Registry, name string) *syntax.Function {
	t.Helper()
	fn, ok := reg.Function(name)
	if !ok {
		t.Fatalf("function %s not registered", name)
	}
	return fn
}

const program = `
struct Point { x: i64; y: i64; }

struct Box<T> {
	value: T;

	fn get(self: Self) -> T {
		return self.value;
	}
}

fn add(a: i64, b: i64) -> i64 {
	return a + b;
}

fn main() -> i64 {
	let p = new Point{y: 2, x: 1};
	p.x = add(p.x, 3);
	let b = new Box{value: 5};
	let v = b.get() + 1;
	if p.x > 2 { p.y = 0; } else { }
	while p.x < 10 { p.x = p.x + 1; }
	for i in 10 { if i == 5 { break; } }
	return v * p.y;
}
`

func TestVerifyProgram(t *testing.T) {
	cfg := DefaultConfig()
	reg := parseProgram(t, cfg, program)

	for _, fn := range reg.Functions() {
		if err := VerifyFunction(context.Background(), cfg, fn, reg); err != nil {
			t.Fatalf("%s: unexpected error: %v", fn.Name, err)
		}
		if fn.State() != syntax.Checked {
			t.Fatalf("%s: expected state checked, got %s", fn.Name, fn.State())
		}
	}

	body := function(t, reg, "main::main").Code()

	point := body.Expressions[0].Effect.(*syntax.CreateVariable)
	if point.Type.String() != "main::Point" {
		t.Errorf("expected p to be main::Point, got %s", point.Type)
	}
	create := point.Value.(*syntax.CreateStruct)
	if create.Args[0].Name != "y" || create.Args[0].Slot != 1 || create.Args[1].Slot != 0 {
		t.Errorf("expected slots y=1 x=0, got %s=%d %s=%d",
			create.Args[0].Name, create.Args[0].Slot, create.Args[1].Name, create.Args[1].Slot)
	}

	box := body.Expressions[2].Effect.(*syntax.CreateVariable)
	if box.Type.String() != "main::Box<i64>" {
		t.Errorf("expected b to be inferred as main::Box<i64>, got %s", box.Type)
	}

	v := body.Expressions[3].Effect.(*syntax.CreateVariable)
	sum := v.Value.(*syntax.Operation)
	if sum.Type.String() != "i64" {
		t.Errorf("expected b.get() + 1 to be i64, got %s", sum.Type)
	}
	method := sum.Args[0].(*syntax.MethodCall)
	if method.Function == nil || method.Function.Name != "main::Box::get" {
		t.Errorf("expected the method call to target main::Box::get, got %v", method.Function)
	}

	assign := body.Expressions[1].Effect.(*syntax.Set)
	if field := assign.Target.(*syntax.LoadField); field.Slot != 0 {
		t.Errorf("expected p.x to load slot 0, got %d", field.Slot)
	}
}

func TestVerifyMismatches(t *testing.T) {
	tests := []struct {
		body     string
		expected string
	}{
		{"let x = 1; x = 2.5; return x;", "Cannot assign f64 to x of type i64"},
		{"return 1.5;", "Expected to return i64, found f64"},
		{"return;", "Expected to return i64, found void"},
		{"if 1 { } return 0;", "if condition must be bool, found i64"},
		{"while 1.5 { } return 0;", "while condition must be bool, found f64"},
		{"let p = new Point{x: 1}; return 0;", "Missing field y in construction of main::Point"},
		{"let p = new Point{x: 1, y: 2, z: 3}; return 0;", "main::Point has no field z"},
		{"let p = new Point{x: 1.5, y: 2}; return 0;", "Field x of main::Point expects i64, found f64"},
		{"let s = \"a\" - \"b\"; return 0;", "Operator - is not defined for str"},
		{"return 1 + 2.5;", "Operator + expects matching operands, found i64 and f64"},
		{"return missing;", "Unknown variable missing"},
		{"return add(1);", "main::add expects 2 arguments, found 1"},
		{"return add(1, 2.5);", "Argument b of main::add expects i64, found f64"},
		{"let p = new Point{x: 1, y: 2}; return p.z;", "main::Point has no field z"},
		{"let p = new Point{x: 1, y: 2}; return p.norm();", "No method norm on main::Point"},
		{"for i in 1.5 { } return 0;", "for expects i64 to iterate, found f64"},
		{"let n = noop(); return 0;", "Cannot assign void to n"},
		{"1 = 2; return 0;", "Cannot assign to 1"},
		{"let x = 1;", "Missing return, expected i64"},
		{"if 1 == 1 { return 1; }", "Missing return, expected i64"},
		{"while 1 == 1 { return 1; }", "Missing return, expected i64"},
	}

	cfg := DefaultConfig()
	for i, tt := range tests {
		reg := parseProgram(t, cfg, `
struct Point { x: i64; y: i64; }
fn add(a: i64, b: i64) -> i64 { return a + b; }
fn noop() { }
fn f() -> i64 { `+tt.body+` }`)

		err := VerifyFunction(context.Background(), cfg, function(t, reg, "main::f"), reg)
		var ce *errors.CompileError
		if !stderrors.As(err, &ce) {
			t.Fatalf("tests[%d] - expected a CompileError, got %v", i, err)
		}
		if ce.Category != errors.CategoryType {
			t.Errorf("tests[%d] - expected a type error, got %s", i, ce.Category)
		}
		if !strings.HasPrefix(ce.Message, "In main::f: ") || !strings.Contains(ce.Message, tt.expected) {
			t.Errorf("tests[%d] - expected=%q, got=%q", i, tt.expected, ce.Message)
		}
		if state := function(t, reg, "main::f").State(); state != syntax.Failed {
			t.Errorf("tests[%d] - expected state failed, got %s", i, state)
		}
	}
}

func TestVerifyAcceptsReturnOnEveryBranch(t *testing.T) {
	cfg := DefaultConfig()
	reg := parseProgram(t, cfg, `
fn sign(x: i64) -> i64 { if x < 0 { return 0 - 1; } else if x == 0 { return 0; } else { return 1; } }
fn nested() -> i64 { { return 2; } }
fn none() { let x = 1; }`)

	for _, name := range []string{"main::sign", "main::nested", "main::none"} {
		if err := VerifyFunction(context.Background(), cfg, function(t, reg, name), reg); err != nil {
			t.Fatalf("%s: unexpected error %v", name, err)
		}
	}
}

func TestVerifyReportsExpressionPosition(t *testing.T) {
	const header = "struct Point { x: i64; }\nfn add(a: i64, b: i64) -> i64 { return a + b; }\nfn f() -> i64 {\n"
	tests := []struct {
		body   string
		line   int
		column int
	}{
		{"\tlet x = 1;\n\tx = add(x, 2.5);\n\treturn x;\n}", 4, 6},
		{"\tlet x = 1;\n\tlet p = new Point{x: 1.5};\n\treturn x;\n}", 4, 10},
		{"\tlet x = 1;\n\tx = 2.5;\n\treturn x;\n}", 4, 4},
		{"\tlet x = 1;\n\n\treturn 1.5;\n}", 5, 2},
		{"\tif 1 == 1 {\n\t\treturn 2.5;\n\t}\n\treturn 1;\n}", 4, 3},
		{"\tlet x = 1;\n}", 3, 4},
	}

	cfg := DefaultConfig()
	for i, tt := range tests {
		reg := parseProgram(t, cfg, header+tt.body)
		err := VerifyFunction(context.Background(), cfg, function(t, reg, "main::f"), reg)
		var ce *errors.CompileError
		if !stderrors.As(err, &ce) {
			t.Fatalf("tests[%d] - expected a CompileError, got %v", i, err)
		}
		if ce.Pos.Line != tt.line || ce.Pos.Column != tt.column {
			t.Errorf("tests[%d] - expected the error at %d:%d, got %d:%d (%s)",
				i, tt.line, tt.column, ce.Pos.Line, ce.Pos.Column, ce.Message)
		}
	}
}

func TestMethodSyntaxAcrossFiles(t *testing.T) {
	cfg := DefaultConfig()
	reg := parseFiles(t, cfg,
		[2]string{"geo", "struct P { x: i64; }\nfn twice(p: P) -> i64 { return p.x * 2; }"},
		[2]string{"util", "import geo;\nfn scaled(p: P, k: i64) -> i64 { return p.x * k; }"},
		[2]string{"main", "import geo;\nimport util;\nfn f() -> i64 { let p = new P{x: 2}; let a = twice(p); return p.twice() + p.scaled(3) + a; }"},
	)

	for _, fn := range reg.Functions() {
		if err := VerifyFunction(context.Background(), cfg, fn, reg); err != nil {
			t.Fatalf("%s: unexpected error %v", fn.Name, err)
		}
	}

	body := function(t, reg, "main::f").Code()
	ret := body.Expressions[2].Effect.(*syntax.Operation)
	left := ret.Args[0].(*syntax.Operation)
	targets := []struct {
		call     syntax.Effects
		expected string
	}{
		{left.Args[0], "geo::twice"},
		{left.Args[1], "util::scaled"},
	}
	for i, tt := range targets {
		method := tt.call.(*syntax.MethodCall)
		if method.Function == nil || method.Function.Name != tt.expected {
			t.Errorf("tests[%d] - expected the method call to target %s, got %v", i, tt.expected, method.Function)
		}
	}
}

func TestVerifyIsIdempotent(t *testing.T) {
	cfg := DefaultConfig()
	reg := parseProgram(t, cfg, `
fn good() -> i64 { let x = 1; return x; }
fn bad() -> i64 { return 1.5; }`)

	good := function(t, reg, "main::good")
	for i := 0; i < 2; i++ {
		if err := VerifyFunction(context.Background(), cfg, good, reg); err != nil {
			t.Fatalf("run %d: unexpected error %v", i, err)
		}
	}
	if got := syntax.DescribeBody(good.Code()); got != "{let x = 1; return x}" {
		t.Fatalf("second check should not change the body, got %s", got)
	}

	bad := function(t, reg, "main::bad")
	first := VerifyFunction(context.Background(), cfg, bad, reg)
	second := VerifyFunction(context.Background(), cfg, bad, reg)
	if first == nil || first != second {
		t.Fatalf("expected the same failure twice, got %v and %v", first, second)
	}
}

func TestConcurrentMatchesSequential(t *testing.T) {
	var b strings.Builder
	for i := 0; i < 32; i++ {
		if i%3 == 0 {
			fmt.Fprintf(&b, "fn f%d() -> i64 { return %d.5; }\n", i, i)
			continue
		}
		fmt.Fprintf(&b, "fn f%d() -> i64 { let x = %d; while x < 100 { x = x * 2; } return x; }\n", i, i)
	}
	code := b.String()
	cfg := DefaultConfig()

	outcome := func(reg *syntax.Registry, concurrent bool) map[string]string {
		out := make(map[string]string)
		var mu sync.Mutex
		var wg sync.WaitGroup
		for _, fn := range reg.Functions() {
			check := func(fn *syntax.Function) {
				msg := "ok"
				if err := VerifyFunction(context.Background(), cfg, fn, reg); err != nil {
					msg = err.Error()
				}
				mu.Lock()
				out[fn.Name] = msg
				mu.Unlock()
			}
			if !concurrent {
				check(fn)
				continue
			}
			wg.Add(1)
			go func(fn *syntax.Function) {
				defer wg.Done()
				check(fn)
			}(fn)
		}
		wg.Wait()
		return out
	}

	sequential := outcome(parseProgram(t, cfg, code), false)
	concurrent := outcome(parseProgram(t, cfg, code), true)
	if len(sequential) != 32 || len(concurrent) != 32 {
		t.Fatalf("expected 32 results, got %d and %d", len(sequential), len(concurrent))
	}
	for name, msg := range sequential {
		if concurrent[name] != msg {
			t.Errorf("%s: sequential=%q concurrent=%q", name, msg, concurrent[name])
		}
	}
}

func TestGenericFunction(t *testing.T) {
	cfg := DefaultConfig()
	reg := parseProgram(t, cfg, `
fn id<T>(value: T) -> T { return value; }
fn main() -> f64 { return id(2.5); }
fn wrong() -> i64 { return id(2.5); }`)

	for _, name := range []string{"main::id", "main::main"} {
		if err := VerifyFunction(context.Background(), cfg, function(t, reg, name), reg); err != nil {
			t.Fatalf("%s: unexpected error %v", name, err)
		}
	}
	err := VerifyFunction(context.Background(), cfg, function(t, reg, "main::wrong"), reg)
	if err == nil || !strings.Contains(err.Error(), "Expected to return i64, found f64") {
		t.Fatalf("expected a return mismatch, got %v", err)
	}
}

func TestConfig(t *testing.T) {
	if err := DefaultConfig().Validate("0.1.0"); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}

	tests := []struct {
		mutate   func(*Config)
		expected string
	}{
		{func(c *Config) { c.LanguageVersion = ">= 2.0.0" }, "does not satisfy"},
		{func(c *Config) { c.LanguageVersion = "not a version" }, "invalid language_version"},
		{func(c *Config) { c.Literals.Integer = "int" }, "integer literal type"},
		{func(c *Config) { c.Primitives = append(c.Primitives, "i64") }, "listed twice"},
		{func(c *Config) { c.Operators["u8"] = []string{"+"} }, "unknown primitive u8"},
	}
	for i, tt := range tests {
		cfg := DefaultConfig()
		tt.mutate(cfg)
		err := cfg.Validate("0.1.0")
		if err == nil || !strings.Contains(err.Error(), tt.expected) {
			t.Errorf("tests[%d] - expected error containing %q, got %v", i, tt.expected, err)
		}
	}
}

func TestLoadConfig(t *testing.T) {
	cfg, err := LoadConfig("")
	if err != nil || cfg.Literals.Integer != "i64" {
		t.Fatalf("empty path should give the default config, got %+v (%v)", cfg, err)
	}

	path := filepath.Join(t.TempDir(), "checker.json")
	data := `{"language_version": ">= 0.1.0, < 1.0.0", "comparisons": ["=="]}`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err = LoadConfig(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.LanguageVersion != ">= 0.1.0, < 1.0.0" || len(cfg.Comparisons) != 1 {
		t.Fatalf("file values should override the defaults, got %+v", cfg)
	}
	if len(cfg.Primitives) != 4 {
		t.Fatalf("unset fields should keep their defaults, got %v", cfg.Primitives)
	}
	if err := cfg.Validate("0.1.0"); err != nil {
		t.Fatal(err)
	}

	if _, err := LoadConfig(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Fatal("a missing checker config should be an error")
	}
}
