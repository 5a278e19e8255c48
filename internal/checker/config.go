// Package checker verifies parsed function bodies and rewrites the resolved
// forms in place: variable types, struct field slots and method targets.
package checker

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/Masterminds/semver/v3"

	"github.com/raven-lang/raven/internal/syntax"
)

// LiteralTypes names the primitive each kind of literal has.
type LiteralTypes struct {
	Integer string `json:"integer"`
	Float   string `json:"float"`
	String  string `json:"string"`
	Bool    string `json:"bool"`
}

// Config is everything the checker knows about the primitive types. Nothing
// about the primitive set is hard-coded in the checker itself.
type Config struct {
	// LanguageVersion is a semver constraint the compiler version must satisfy.
	LanguageVersion string       `json:"language_version"`
	Primitives      []string     `json:"primitives"`
	Literals        LiteralTypes `json:"literals"`
	// Operators lists the operators legal on each primitive, unary and binary.
	Operators map[string][]string `json:"operators"`
	// Comparisons yield the bool literal type instead of the operand type.
	Comparisons []string `json:"comparisons"`
}

// DefaultConfig returns the i64/f64/str/bool primitive set.
func DefaultConfig() *Config {
	arithmetic := []string{"+", "-", "*", "/", "<", ">", "<=", ">=", "==", "!="}
	return &Config{
		LanguageVersion: ">= 0.1.0",
		Primitives:      []string{"i64", "f64", "str", "bool"},
		Literals:        LiteralTypes{Integer: "i64", Float: "f64", String: "str", Bool: "bool"},
		Operators: map[string][]string{
			"i64":  append([]string{"%", "&", "|", "^", "<<", ">>"}, arithmetic...),
			"f64":  arithmetic,
			"str":  {"+", "==", "!="},
			"bool": {"&&", "||", "!", "==", "!="},
		},
		Comparisons: []string{"==", "!=", "<", ">", "<=", ">="},
	}
}

// LoadConfig reads a checker config file. An empty path yields the default
// config; fields missing from the file keep their default values.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read checker config: %w", err)
	}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse checker config: %w", err)
	}
	return cfg, nil
}

// Validate checks the config is usable by a compiler of the given version.
func (c *Config) Validate(compilerVersion string) error {
	if c.LanguageVersion != "" {
		constraint, err := semver.NewConstraint(c.LanguageVersion)
		if err != nil {
			return fmt.Errorf("invalid language_version %q: %w", c.LanguageVersion, err)
		}
		version, err := semver.NewVersion(compilerVersion)
		if err != nil {
			return fmt.Errorf("invalid compiler version %q: %w", compilerVersion, err)
		}
		if !constraint.Check(version) {
			return fmt.Errorf("compiler version %s does not satisfy language_version %s", version, c.LanguageVersion)
		}
	}

	seen := make(map[string]bool, len(c.Primitives))
	for _, p := range c.Primitives {
		if seen[p] {
			return fmt.Errorf("primitive %s listed twice", p)
		}
		seen[p] = true
	}
	for kind, name := range map[string]string{
		"integer": c.Literals.Integer,
		"float":   c.Literals.Float,
		"string":  c.Literals.String,
		"bool":    c.Literals.Bool,
	} {
		if !seen[name] {
			return fmt.Errorf("%s literal type %q is not a primitive", kind, name)
		}
	}
	for name := range c.Operators {
		if !seen[name] {
			return fmt.Errorf("operators given for unknown primitive %s", name)
		}
	}
	return nil
}

// Builtins returns one builtin struct per primitive, to be registered before
// any file is parsed.
func (c *Config) Builtins() []*syntax.Struct {
	out := make([]*syntax.Struct, len(c.Primitives))
	for i, name := range c.Primitives {
		out[i] = &syntax.Struct{Name: name, Builtin: true}
	}
	return out
}

// RegisterBuiltins adds the primitives to reg.
func (c *Config) RegisterBuiltins(reg *syntax.Registry) error {
	for _, s := range c.Builtins() {
		if err := reg.AddStruct(s); err != nil {
			return err
		}
	}
	return nil
}

func (c *Config) allows(primitive, op string) bool {
	for _, allowed := range c.Operators[primitive] {
		if allowed == op {
			return true
		}
	}
	return false
}

func (c *Config) isComparison(op string) bool {
	for _, cmp := range c.Comparisons {
		if cmp == op {
			return true
		}
	}
	return false
}
