package parser

import (
	"context"

	"github.com/raven-lang/raven/internal/deferred"
	"github.com/raven-lang/raven/internal/errors"
	"github.com/raven-lang/raven/internal/lexer"
	"github.com/raven-lang/raven/internal/syntax"
)

func (c *ParserContext) qualify(name string) string {
	if c.Namespace == "" {
		return name
	}
	return c.Namespace + "::" + name
}

// report records a declaration error and drops the rest of the declaration.
func (c *ParserContext) report(tok lexer.Token, code, message string) {
	c.Handle.Report(c.makeError(tok, code, message))
	if tok.Type == lexer.TokenCodeStart {
		c.back()
	}
	c.skipStatement()
}

// parseTop parses the declarations of a file.
func parseTop(c *ParserContext) {
	base := c.Resolver.(*ImportNameResolver)
	for {
		tok := c.next()
		switch tok.Type {
		case lexer.TokenEOF:
			return
		case lexer.TokenLineEnd, lexer.TokenInvalidCharacters:
		case lexer.TokenImport:
			parseImport(c, base)
		case lexer.TokenStruct:
			parseStruct(c, base)
		case lexer.TokenFunction:
			parseFunction(c, base, nil)
		case lexer.TokenCodeEnd:
			c.Handle.Report(c.makeError(tok, "UNEXPECTED_TOKEN", "Unexpected }"))
		default:
			c.report(tok, "UNEXPECTED_TOKEN", "Unexpected "+c.text(tok)+" at top level")
		}
	}
}

// parseImport parses `import a::b;`.
func parseImport(c *ParserContext, base *ImportNameResolver) {
	nameTok := c.next()
	if nameTok.Type != lexer.TokenVariable {
		c.back()
		c.report(nameTok, "EXPECTED_NAME", "Expected a namespace after import")
		return
	}
	base.AddImport(c.text(nameTok))
	if end := c.next(); end.Type != lexer.TokenLineEnd {
		c.back()
		c.Handle.Report(c.makeError(end, "EXPECTED_LINE_END", "Expected ; after import"))
	}
}

// parseStruct parses a struct with its fields and methods. The struct is
// registered once its fields are known; a task then checks every field type
// resolves.
func parseStruct(c *ParserContext, base *ImportNameResolver) {
	nameTok := c.next()
	if nameTok.Type != lexer.TokenVariable {
		c.back()
		c.report(nameTok, "EXPECTED_NAME", "Expected a struct name")
		return
	}
	s := &syntax.Struct{Name: c.qualify(c.text(nameTok)), File: c.File, Pos: c.position(nameTok)}

	if isOperatorText(c, c.peek(), "<") {
		generics, err := parseGenerics(c)
		if err != nil {
			c.Handle.Report(err)
			c.skipStatement()
			return
		}
		s.Generics = generics
	}
	if open := c.next(); open.Type != lexer.TokenCodeStart {
		c.back()
		c.report(open, "EXPECTED_BLOCK", "Expected { after struct "+s.Name)
		return
	}

	resolver := base.WithGenerics(s.Generics).WithParent(s.Name)
	c.Resolver = resolver
	defer func() { c.Resolver = base }()

fields:
	for {
		tok := c.next()
		switch tok.Type {
		case lexer.TokenCodeEnd:
			break fields
		case lexer.TokenEOF:
			c.Handle.Report(c.makeError(nameTok, "UNCLOSED_BLOCK", "Expected } to close struct "+s.Name))
			break fields
		case lexer.TokenLineEnd, lexer.TokenInvalidCharacters:
		case lexer.TokenFunction:
			parseFunction(c, resolver, s)
		case lexer.TokenVariable:
			field, err := parseField(c, tok)
			if err != nil {
				c.Handle.Report(err)
				c.skipStatement()
				continue
			}
			if s.FieldIndex(field.Name) >= 0 {
				c.Handle.Report(errors.Duplicate(c.position(tok), s.Name+"."+field.Name))
				continue
			}
			s.Fields = append(s.Fields, field)
		default:
			c.report(tok, "UNEXPECTED_TOKEN", "Unexpected "+c.text(tok)+" in struct "+s.Name)
		}
	}

	if err := c.Registry.AddStruct(s); err != nil {
		c.Handle.Report(err)
		return
	}
	c.Handle.Spawn(func(ctx context.Context) error {
		var errs errors.List
		for _, field := range s.Fields {
			if _, err := syntax.ResolveType(ctx, field.Type); err != nil {
				errs = appendError(errs, err)
			}
		}
		return joinErrors(errs)
	})
}

// parseField parses `name: Type;` inside a struct.
func parseField(c *ParserContext, nameTok lexer.Token) (syntax.Field, error) {
	name := c.text(nameTok)
	if colon := c.next(); colon.Type != lexer.TokenColon {
		c.back()
		return syntax.Field{}, c.makeError(colon, "EXPECTED_TYPE", "Expected : after field "+name)
	}
	typeTok := c.next()
	if typeTok.Type != lexer.TokenVariable {
		c.back()
		return syntax.Field{}, c.makeError(typeTok, "EXPECTED_TYPE", "Expected a type for field "+name)
	}
	typ, err := parseTypeRef(c, typeTok)
	if err != nil {
		return syntax.Field{}, err
	}
	switch end := c.next(); end.Type {
	case lexer.TokenLineEnd, lexer.TokenArgumentEnd:
	case lexer.TokenCodeEnd:
		c.back()
	default:
		c.back()
		return syntax.Field{}, c.makeError(end, "EXPECTED_LINE_END", "Expected ; after field "+name)
	}
	return syntax.Field{Name: name, Type: typ}, nil
}

// parseFunction parses a function declaration. The function is registered
// as soon as its signature is known, before the body is parsed, and a task
// is spawned to finalize it.
func parseFunction(c *ParserContext, resolver *ImportNameResolver, parent *syntax.Struct) {
	nameTok := c.next()
	if nameTok.Type != lexer.TokenVariable {
		c.back()
		c.report(nameTok, "EXPECTED_NAME", "Expected a function name")
		return
	}
	name := c.qualify(c.text(nameTok))
	if parent != nil {
		name = parent.Name + "::" + c.text(nameTok)
	}

	var generics []syntax.Generic
	if isOperatorText(c, c.peek(), "<") {
		var err error
		if generics, err = parseGenerics(c); err != nil {
			c.Handle.Report(err)
			c.skipStatement()
			return
		}
	}
	c.Resolver = resolver.WithGenerics(generics)
	defer func() { c.Resolver = resolver }()

	if open := c.next(); open.Type != lexer.TokenParenOpen {
		c.back()
		c.report(open, "EXPECTED_PARAMETERS", "Expected ( after fn "+name)
		return
	}
	params, err := parseParams(c)
	if err != nil {
		c.Handle.Report(err)
		c.skipStatement()
		return
	}

	var ret syntax.Types
	if c.peek().Type == lexer.TokenReturnType {
		c.next()
		typeTok := c.next()
		if typeTok.Type != lexer.TokenVariable {
			c.back()
			c.report(typeTok, "EXPECTED_TYPE", "Expected a return type for fn "+name)
			return
		}
		if ret, err = parseTypeRef(c, typeTok); err != nil {
			c.Handle.Report(err)
			c.skipStatement()
			return
		}
	}
	if open := c.next(); open.Type != lexer.TokenCodeStart {
		c.back()
		c.report(open, "EXPECTED_BLOCK", "Expected { to start the body of fn "+name)
		return
	}

	var body *deferred.Deferred[syntax.CodeBody]
	pending := deferred.New(func(ctx context.Context) (syntax.CodeBody, error) {
		return body.Await(ctx)
	})
	fn := syntax.NewFunction(name, c.File, c.position(nameTok), generics, params, ret, pending)
	registered := c.Registry.AddFunction(fn)

	c.loops = nil
	body = ParseCode(c)

	if registered != nil {
		c.Handle.Report(registered)
		return
	}
	c.Handle.Spawn(func(ctx context.Context) error {
		return finalize(ctx, fn)
	})
}

// parseParams parses `name: Type, ...)` after the opening parenthesis.
func parseParams(c *ParserContext) ([]syntax.Field, error) {
	if c.peek().Type == lexer.TokenParenClose {
		c.next()
		return nil, nil
	}

	var params []syntax.Field
	for {
		nameTok := c.next()
		if nameTok.Type != lexer.TokenVariable {
			return nil, c.makeError(nameTok, "EXPECTED_NAME", "Expected a parameter name")
		}
		if colon := c.next(); colon.Type != lexer.TokenColon {
			return nil, c.makeError(colon, "EXPECTED_TYPE", "Expected : after parameter "+c.text(nameTok))
		}
		typeTok := c.next()
		if typeTok.Type != lexer.TokenVariable {
			return nil, c.makeError(typeTok, "EXPECTED_TYPE", "Expected a type for parameter "+c.text(nameTok))
		}
		typ, err := parseTypeRef(c, typeTok)
		if err != nil {
			return nil, err
		}
		params = append(params, syntax.Field{Name: c.text(nameTok), Type: typ})

		switch sep := c.next(); sep.Type {
		case lexer.TokenArgumentEnd:
		case lexer.TokenParenClose:
			return params, nil
		default:
			return nil, c.makeError(sep, "EXPECTED_SEPARATOR", "Expected , or ) after parameter "+c.text(nameTok))
		}
	}
}

// finalize resolves the signature types and installs the body of fn. A
// function that fails here is marked failed so the checker skips it.
func finalize(ctx context.Context, fn *syntax.Function) error {
	var errs errors.List
	signature := append([]syntax.Types{fn.Return}, fieldTypes(fn.Params)...)
	for _, t := range signature {
		if t == nil {
			continue
		}
		if _, err := syntax.ResolveType(ctx, t); err != nil {
			errs = appendError(errs, err)
		}
	}
	if err := fn.Finalize(ctx); err != nil {
		errs = appendError(errs, err)
	}
	err := joinErrors(errs)
	if err != nil {
		fn.Fail(err)
	}
	return err
}

func fieldTypes(fields []syntax.Field) []syntax.Types {
	out := make([]syntax.Types, len(fields))
	for i, f := range fields {
		out[i] = f.Type
	}
	return out
}
