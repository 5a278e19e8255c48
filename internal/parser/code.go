package parser

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/raven-lang/raven/internal/deferred"
	"github.com/raven-lang/raven/internal/errors"
	"github.com/raven-lang/raven/internal/lexer"
	"github.com/raven-lang/raven/internal/position"
	"github.com/raven-lang/raven/internal/syntax"
)

// Line is one parsed expression of a code body.
type Line struct {
	Type   syntax.ExpressionType
	Effect ParsingFuture
	Pos    position.Position
}

// ParseCode parses the lines of a code body up to and including its closing
// brace. The opening brace must already be consumed.
func ParseCode(c *ParserContext) *deferred.Deferred[syntax.CodeBody] {
	return parseCodeLabeled(c, c.Resolver.NextLabel())
}

func parseCodeLabeled(c *ParserContext, label string) *deferred.Deferred[syntax.CodeBody] {
	start := c.previous()
	var lines []Line
	for {
		line, ok := ParseLine(c, false, false)
		if !ok {
			break
		}
		lines = append(lines, line)
	}
	if end := c.next(); end.Type != lexer.TokenCodeEnd {
		return deferred.Fail[syntax.CodeBody](c.makeError(start, "UNCLOSED_BLOCK", "Expected }, found end of file"))
	}
	return createBody(label, lines)
}

// createBody awaits every line in order. All line failures are reported, not
// only the first.
func createBody(label string, lines []Line) *deferred.Deferred[syntax.CodeBody] {
	return deferred.New(func(ctx context.Context) (syntax.CodeBody, error) {
		body := syntax.CodeBody{Label: label, Expressions: make([]syntax.Expression, 0, len(lines))}
		var errs errors.List
		for _, line := range lines {
			effect, err := line.Effect.Await(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return syntax.CodeBody{}, err
				}
				errs = appendError(errs, err)
				continue
			}
			body.Expressions = append(body.Expressions, syntax.Expression{Type: line.Type, Effect: effect, Pos: line.Pos})
		}
		if err := joinErrors(errs); err != nil {
			return syntax.CodeBody{}, err
		}
		return body, nil
	})
}

func bodyEffect(body *deferred.Deferred[syntax.CodeBody]) ParsingFuture {
	return deferred.Then(body, func(_ context.Context, code syntax.CodeBody) (syntax.Effects, error) {
		return &syntax.CodeBodyEffect{Body: code}, nil
	})
}

// ParseLine parses one expression. It returns false when the enclosing body
// ends before any expression starts; the closing brace is left unconsumed.
//
// With breakAtBody an opening brace ends the line (conditions of if, while
// and for). With deep a comma does not end the line (parenthesised groups).
func ParseLine(c *ParserContext, breakAtBody, deep bool) (Line, bool) {
	line, _, ok := parseLine(c, breakAtBody, deep, false)
	return line, ok
}

// parseLine also reports the token that ended the line. In segment mode the
// line stops in front of the next operator and reports lexer.TokenOperator;
// the effect is then nil if no operand preceded the operator.
func parseLine(c *ParserContext, breakAtBody, deep, segment bool) (Line, lexer.TokenType, bool) {
	var effect ParsingFuture
	var failure error
	var pos position.Position
	exprType := syntax.Line

	set := func(next ParsingFuture) {
		if err := failedNow(effect); err != nil && failure == nil {
			failure = err
		}
		effect = next
	}
	finish := func(end lexer.TokenType) (Line, lexer.TokenType, bool) {
		if err := failedNow(effect); err != nil && failure == nil {
			failure = err
		}
		if failure != nil {
			effect = constantError(failure)
		}
		if effect == nil && !segment {
			effect = constantEffect(syntax.NopEffect{})
		}
		return Line{Type: exprType, Effect: effect, Pos: pos}, end, true
	}

	for {
		tok := c.next()
		if !pos.IsValid() && tok.Type != lexer.TokenInvalidCharacters {
			pos = c.position(tok)
		}
		switch tok.Type {
		case lexer.TokenParenOpen:
			inner, _, ok := parseLine(c, breakAtBody, true, false)
			if !ok {
				set(constantError(c.makeError(tok, "UNCLOSED_PAREN", "Expected ), found }")))
				continue
			}
			set(inner.Effect)
		case lexer.TokenFloat:
			value, err := strconv.ParseFloat(c.text(tok), 64)
			if err != nil {
				set(constantError(c.makeError(tok, "INVALID_NUMBER", "Invalid float literal "+c.text(tok))))
				continue
			}
			set(constantEffect(syntax.FloatEffect{Value: value}))
		case lexer.TokenInteger:
			value, err := strconv.ParseInt(c.text(tok), 10, 64)
			if err != nil {
				set(constantError(c.makeError(tok, "INVALID_NUMBER", "Integer literal out of range "+c.text(tok))))
				continue
			}
			set(constantEffect(syntax.IntEffect{Value: value}))
		case lexer.TokenLineEnd, lexer.TokenParenClose:
			return finish(tok.Type)
		case lexer.TokenArgumentEnd:
			if !deep {
				return finish(tok.Type)
			}
		case lexer.TokenCodeEnd, lexer.TokenEOF:
			c.back()
			if effect == nil && failure == nil && exprType == syntax.Line {
				return Line{}, tok.Type, false
			}
			return finish(tok.Type)
		case lexer.TokenInvalidCharacters:
			continue
		case lexer.TokenVariable:
			if c.peek().Type == lexer.TokenParenOpen {
				set(parseCall(c, tok))
				continue
			}
			set(constantEffect(syntax.LoadVariable{Name: c.text(tok)}))
		case lexer.TokenCallingType:
			set(parseMember(c, tok, effect))
		case lexer.TokenStringStart:
			set(parseString(c, tok))
		case lexer.TokenReturn:
			exprType = syntax.Return
		case lexer.TokenNew:
			set(parseNew(c, tok))
		case lexer.TokenCodeStart:
			if breakAtBody {
				return finish(tok.Type)
			}
			set(bodyEffect(ParseCode(c)))
		case lexer.TokenLet:
			let, end := parseLet(c, tok)
			set(let)
			return finish(end)
		case lexer.TokenIf:
			set(parseIf(c, tok))
			return finish(lexer.TokenLineEnd)
		case lexer.TokenWhile:
			set(parseWhile(c, tok))
			return finish(lexer.TokenLineEnd)
		case lexer.TokenFor:
			set(parseFor(c, tok))
			return finish(lexer.TokenLineEnd)
		case lexer.TokenBreak:
			set(parseBreak(c, tok))
			return finish(lexer.TokenLineEnd)
		case lexer.TokenSwitch:
			set(parseSwitch(c, tok))
			return finish(lexer.TokenLineEnd)
		case lexer.TokenEquals, lexer.TokenOperator:
			if segment {
				c.back()
				return finish(lexer.TokenOperator)
			}
			// An equals sign directly followed by another operator token is
			// never an assignment; the operator parser takes it.
			if tok.Type == lexer.TokenEquals && effect != nil && !isOperatorToken(c.peek()) {
				assign, end := parseAssign(c, tok, effect, breakAtBody, deep)
				set(assign)
				return finish(end)
			}
			op, end := ParseOperator(c, tok, effect, breakAtBody, deep)
			effect = nil
			set(op)
			return finish(end)
		case lexer.TokenColon, lexer.TokenElse:
			set(constantError(c.makeError(tok, "UNEXPECTED_TOKEN", fmt.Sprintf("Unexpected %s", c.text(tok)))))
		default:
			errors.Defectf("%s token reached the code parser at offset %d", tok.Type, tok.Span.Start)
		}
	}
}

func parseLet(c *ParserContext, letTok lexer.Token) (ParsingFuture, lexer.TokenType) {
	nameTok := c.next()
	if nameTok.Type != lexer.TokenVariable {
		c.back()
		c.skipStatement()
		return constantError(c.makeError(nameTok, "EXPECTED_NAME", "Unexpected token, expected variable name!")), lexer.TokenLineEnd
	}
	if eq := c.next(); eq.Type != lexer.TokenEquals {
		c.back()
		c.skipStatement()
		return constantError(c.makeError(eq, "EXPECTED_EQUALS", "Expected = after let "+c.text(nameTok))), lexer.TokenLineEnd
	}

	value, end, ok := parseLine(c, false, false, false)
	if !ok {
		return constantError(c.makeError(letTok, "MISSING_VALUE", "Expected a value for "+c.text(nameTok))), end
	}
	name := c.text(nameTok)
	return deferred.Then(value.Effect, func(_ context.Context, v syntax.Effects) (syntax.Effects, error) {
		return &syntax.CreateVariable{Name: name, Value: v}, nil
	}), end
}

func parseAssign(c *ParserContext, eq lexer.Token, target ParsingFuture, breakAtBody, deep bool) (ParsingFuture, lexer.TokenType) {
	value, end, ok := parseLine(c, breakAtBody, deep, false)
	if !ok {
		return constantError(c.makeError(eq, "MISSING_VALUE", "Expected a value after =")), end
	}
	pos := c.position(eq)
	return deferred.New(func(ctx context.Context) (syntax.Effects, error) {
		t, err := target.Await(ctx)
		if err != nil {
			return nil, err
		}
		v, err := value.Effect.Await(ctx)
		if err != nil {
			return nil, err
		}
		return &syntax.Set{Target: t, Value: v, Pos: pos}, nil
	}), end
}

// parseCall parses `name(args)`. The function is looked up in the registry
// when the call is awaited.
func parseCall(c *ParserContext, nameTok lexer.Token) ParsingFuture {
	open := c.next()
	args := parseArguments(c, open)

	name := c.text(nameTok)
	pos := c.position(nameTok)
	candidates := syntax.Candidates(c.Resolver, name)
	registry := c.Registry
	return deferred.New(func(ctx context.Context) (syntax.Effects, error) {
		fn, err := registry.GetFunction(ctx, name, candidates)
		if err != nil {
			return nil, c.locate(err, nameTok)
		}
		values, err := awaitAll(ctx, args)
		if err != nil {
			return nil, err
		}
		return &syntax.Call{Function: fn, Args: values, Pos: pos}, nil
	})
}

// parseMember handles `.name` after a value: a field load, or a method call
// when an argument list follows.
func parseMember(c *ParserContext, tok lexer.Token, receiver ParsingFuture) ParsingFuture {
	name := c.text(tok)
	if receiver == nil {
		return constantError(c.makeError(tok, "MISSING_RECEIVER", "Expected a value before ."+name))
	}

	if c.peek().Type == lexer.TokenParenOpen {
		args := parseArguments(c, c.next())
		namespaces := append([]string(nil), c.Resolver.Imports()...)
		pos := c.position(tok)
		return deferred.New(func(ctx context.Context) (syntax.Effects, error) {
			recv, err := receiver.Await(ctx)
			if err != nil {
				return nil, err
			}
			values, err := awaitAll(ctx, args)
			if err != nil {
				return nil, err
			}
			return &syntax.MethodCall{
				Name:       name,
				Args:       append([]syntax.Effects{recv}, values...),
				Namespaces: namespaces,
				Pos:        pos,
			}, nil
		})
	}

	return deferred.Then(receiver, func(_ context.Context, value syntax.Effects) (syntax.Effects, error) {
		return &syntax.LoadField{Value: value, Field: name, Slot: -1}, nil
	})
}

// parseArguments parses a comma separated list up to the closing parenthesis.
func parseArguments(c *ParserContext, open lexer.Token) []ParsingFuture {
	if c.peek().Type == lexer.TokenParenClose {
		c.next()
		return nil
	}

	var args []ParsingFuture
	for {
		line, end, ok := parseLine(c, false, false, false)
		if !ok {
			return append(args, constantError(c.makeError(open, "UNCLOSED_CALL", "Expected ) to close the argument list")))
		}
		args = append(args, line.Effect)
		switch end {
		case lexer.TokenParenClose:
			return args
		case lexer.TokenArgumentEnd:
		default:
			return append(args, constantError(c.makeError(open, "UNCLOSED_CALL", "Expected ) to close the argument list")))
		}
	}
}

type pendingArg struct {
	name  string
	value ParsingFuture
}

// parseNew parses `new Type{field: value, shorthand}`.
func parseNew(c *ParserContext, newTok lexer.Token) ParsingFuture {
	nameTok := c.next()
	if nameTok.Type != lexer.TokenVariable {
		c.back()
		return constantError(c.makeError(nameTok, "EXPECTED_TYPE", "Expected a type after new"))
	}
	typ, err := parseTypeRef(c, nameTok)
	if err != nil {
		return constantError(err)
	}
	if open := c.next(); open.Type != lexer.TokenCodeStart {
		c.back()
		return constantError(c.makeError(open, "EXPECTED_BLOCK", "Expected { after new "+typ.String()))
	}
	args := parseStructArgs(c, newTok)
	pos := c.position(newTok)

	return deferred.New(func(ctx context.Context) (syntax.Effects, error) {
		resolved, err := syntax.ResolveType(ctx, typ)
		if err != nil {
			return nil, err
		}
		out := &syntax.CreateStruct{Type: resolved, Args: make([]syntax.StructArg, 0, len(args)), Pos: pos}
		for _, arg := range args {
			value, err := arg.value.Await(ctx)
			if err != nil {
				return nil, err
			}
			out.Args = append(out.Args, syntax.StructArg{Slot: -1, Name: arg.name, Value: value})
		}
		return out, nil
	})
}

// parseStructArgs parses the field list of a struct construction up to and
// including the closing brace. A bare name is shorthand for `name: name`.
func parseStructArgs(c *ParserContext, newTok lexer.Token) []pendingArg {
	var args []pendingArg
	var name string
	var nameTok lexer.Token

	shorthand := func() {
		if name != "" {
			args = append(args, pendingArg{name: name, value: constantEffect(syntax.LoadVariable{Name: name})})
			name = ""
		}
	}
	fail := func(tok lexer.Token, code, message string) {
		args = append(args, pendingArg{value: constantError(c.makeError(tok, code, message))})
	}

	for {
		tok := c.next()
		switch tok.Type {
		case lexer.TokenVariable:
			if name != "" {
				fail(tok, "EXPECTED_SEPARATOR", "Expected : or , after "+name)
			}
			name, nameTok = c.text(tok), tok
		case lexer.TokenColon:
			if name == "" {
				fail(tok, "EXPECTED_NAME", "Expected a field name before :")
			}
			value, end, ok := parseLine(c, false, false, false)
			if !ok {
				value.Effect = constantError(c.makeError(nameTok, "MISSING_VALUE", "Expected something, found void"))
			}
			args = append(args, pendingArg{name: name, value: value.Effect})
			name = ""
			switch end {
			case lexer.TokenArgumentEnd:
			case lexer.TokenCodeEnd:
				c.next()
				return args
			case lexer.TokenEOF:
				fail(newTok, "UNCLOSED_BLOCK", "Expected } to close the struct construction")
				return args
			default:
				fail(c.previous(), "EXPECTED_SEPARATOR", "Expected , or } after a field value")
			}
		case lexer.TokenArgumentEnd:
			shorthand()
		case lexer.TokenCodeEnd:
			shorthand()
			return args
		case lexer.TokenInvalidCharacters:
		case lexer.TokenEOF:
			c.back()
			fail(newTok, "UNCLOSED_BLOCK", "Expected } to close the struct construction")
			return args
		default:
			fail(tok, "UNEXPECTED_TOKEN", "Unexpected "+c.text(tok)+" in struct construction")
		}
	}
}

// parseString reads the body that follows an opening quote.
func parseString(c *ParserContext, start lexer.Token) ParsingFuture {
	body := c.next()
	if body.Type != lexer.TokenStringEnd {
		errors.Defectf("string start at offset %d not followed by a string body", start.Span.Start)
	}
	value, err := unescape(c.text(body))
	if err != nil {
		return constantError(c.makeError(start, "INVALID_STRING", err.Error()))
	}
	return constantEffect(syntax.StringEffect{Value: value})
}

// unescape decodes a string body ending with its closing quote.
func unescape(raw string) (string, error) {
	var b strings.Builder
	for i := 0; i < len(raw); i++ {
		ch := raw[i]
		switch ch {
		case '"':
			if i != len(raw)-1 {
				errors.Defectf("string body continues after its closing quote")
			}
			return b.String(), nil
		case '\\':
			i++
			if i >= len(raw) {
				return "", fmt.Errorf("Unterminated string")
			}
			switch raw[i] {
			case 'n':
				b.WriteByte('\n')
			case 't':
				b.WriteByte('\t')
			case 'r':
				b.WriteByte('\r')
			case '0':
				b.WriteByte(0)
			case '\\', '"':
				b.WriteByte(raw[i])
			default:
				return "", fmt.Errorf("Unknown escape sequence \\%c", raw[i])
			}
		default:
			b.WriteByte(ch)
		}
	}
	return "", fmt.Errorf("Unterminated string")
}

func isOperatorToken(tok lexer.Token) bool {
	return tok.Type == lexer.TokenOperator || tok.Type == lexer.TokenEquals
}

// failedNow returns the error of a future that already failed while parsing.
// Futures that have not run yet are not started.
func failedNow(f ParsingFuture) error {
	if f == nil || !f.Done() {
		return nil
	}
	_, err := f.Await(context.Background())
	return err
}

func appendError(errs errors.List, err error) errors.List {
	if list, ok := err.(errors.List); ok {
		return append(errs, list...)
	}
	return append(errs, err)
}

func joinErrors(errs errors.List) error {
	switch len(errs) {
	case 0:
		return nil
	case 1:
		return errs[0]
	default:
		return errs
	}
}
