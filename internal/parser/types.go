package parser

import (
	"context"
	"fmt"

	"github.com/raven-lang/raven/internal/deferred"
	"github.com/raven-lang/raven/internal/errors"
	"github.com/raven-lang/raven/internal/lexer"
	"github.com/raven-lang/raven/internal/syntax"
)

func isOperatorText(c *ParserContext, tok lexer.Token, text string) bool {
	return tok.Type == lexer.TokenOperator && c.text(tok) == text
}

// parseTypeRef parses a type whose name token was just consumed. Generic
// parameters in scope resolve immediately; anything else becomes a registry
// lookup that runs when the type is first resolved.
func parseTypeRef(c *ParserContext, nameTok lexer.Token) (syntax.Types, error) {
	name := c.text(nameTok)

	var args []syntax.Types
	if isOperatorText(c, c.peek(), "<") {
		c.next()
		for {
			argTok := c.next()
			if argTok.Type != lexer.TokenVariable {
				return nil, c.makeError(argTok, "EXPECTED_TYPE", "Expected a type argument for "+name)
			}
			arg, err := parseTypeRef(c, argTok)
			if err != nil {
				return nil, err
			}
			args = append(args, arg)

			sep := c.next()
			if sep.Type == lexer.TokenArgumentEnd {
				continue
			}
			if isOperatorText(c, sep, ">") {
				break
			}
			return nil, c.makeError(sep, "EXPECTED_SEPARATOR", "Expected , or > in the type arguments of "+name)
		}
	}

	if bounds, ok := c.Resolver.Generic(name); ok {
		if len(args) > 0 {
			return nil, c.makeError(nameTok, "GENERIC_ARGUMENTS", "Generic parameter "+name+" takes no type arguments")
		}
		return syntax.GenericType{Name: name, Bounds: bounds}, nil
	}

	display := name
	if len(args) > 0 {
		display = syntax.InstancedType{Base: &syntax.Struct{Name: name}, Args: args}.String()
	}
	candidates := syntax.Candidates(c.Resolver, name)
	registry := c.Registry
	pos := c.position(nameTok)

	lookup := deferred.New(func(ctx context.Context) (syntax.Types, error) {
		s, err := registry.GetStruct(ctx, name, candidates)
		if err != nil {
			return nil, c.locate(err, nameTok)
		}
		if len(args) == 0 {
			return syntax.StructType{Struct: s}, nil
		}
		if len(args) != len(s.Generics) {
			return nil, errors.At(errors.CategoryType, "GENERIC_ARITY", pos,
				"%s expects %d type arguments, found %d", s.Name, len(s.Generics), len(args))
		}
		return syntax.InstancedType{Base: s, Args: args}, nil
	})
	return syntax.UnresolvedType{Name: display, Lookup: lookup}, nil
}

// parseUnparsed parses a generic bound. Bounds are kept as written.
func parseUnparsed(c *ParserContext, nameTok lexer.Token) (syntax.UnparsedType, error) {
	out := syntax.UnparsedType{Name: c.text(nameTok)}
	if !isOperatorText(c, c.peek(), "<") {
		return out, nil
	}
	c.next()
	for {
		argTok := c.next()
		if argTok.Type != lexer.TokenVariable {
			return out, c.makeError(argTok, "EXPECTED_TYPE", "Expected a type in the bound "+out.Name)
		}
		arg, err := parseUnparsed(c, argTok)
		if err != nil {
			return out, err
		}
		out.Generics = append(out.Generics, arg)

		sep := c.next()
		if sep.Type == lexer.TokenArgumentEnd {
			continue
		}
		if isOperatorText(c, sep, ">") {
			return out, nil
		}
		return out, c.makeError(sep, "EXPECTED_SEPARATOR", "Expected , or > in the bound "+out.Name)
	}
}

// parseGenerics parses `<T: A + B, U>` after a declaration name.
func parseGenerics(c *ParserContext) ([]syntax.Generic, error) {
	c.next()

	var out []syntax.Generic
	for {
		nameTok := c.next()
		if nameTok.Type != lexer.TokenVariable {
			return nil, c.makeError(nameTok, "EXPECTED_NAME", "Expected a generic parameter name")
		}
		generic := syntax.Generic{Name: c.text(nameTok)}

		if c.peek().Type == lexer.TokenColon {
			c.next()
			for {
				boundTok := c.next()
				if boundTok.Type != lexer.TokenVariable {
					return nil, c.makeError(boundTok, "EXPECTED_TYPE", fmt.Sprintf("Expected a bound for %s", generic.Name))
				}
				bound, err := parseUnparsed(c, boundTok)
				if err != nil {
					return nil, err
				}
				generic.Bounds = append(generic.Bounds, bound)
				if !isOperatorText(c, c.peek(), "+") {
					break
				}
				c.next()
			}
		}
		out = append(out, generic)

		sep := c.next()
		if sep.Type == lexer.TokenArgumentEnd {
			continue
		}
		if isOperatorText(c, sep, ">") {
			return out, nil
		}
		return nil, c.makeError(sep, "EXPECTED_SEPARATOR", "Expected , or > after a generic parameter")
	}
}
