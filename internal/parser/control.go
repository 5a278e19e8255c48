package parser

import (
	"context"

	"github.com/raven-lang/raven/internal/deferred"
	"github.com/raven-lang/raven/internal/errors"
	"github.com/raven-lang/raven/internal/lexer"
	"github.com/raven-lang/raven/internal/syntax"
)

// parseCondition parses the expression in front of a body and consumes the
// opening brace.
func parseCondition(c *ParserContext, keyword lexer.Token) (ParsingFuture, bool) {
	cond, end, ok := parseLine(c, true, false, false)
	if !ok || end != lexer.TokenCodeStart {
		return constantError(c.makeError(keyword, "EXPECTED_BLOCK", "Expected { after "+c.text(keyword)+" condition")), false
	}
	return cond.Effect, true
}

// parseLoopBody parses a body that break statements inside it may leave.
func parseLoopBody(c *ParserContext) *deferred.Deferred[syntax.CodeBody] {
	label := c.Resolver.NextLabel()
	c.loops = append(c.loops, label)
	defer func() { c.loops = c.loops[:len(c.loops)-1] }()
	return parseCodeLabeled(c, label)
}

func parseIf(c *ParserContext, ifTok lexer.Token) ParsingFuture {
	cond, ok := parseCondition(c, ifTok)
	if !ok {
		return cond
	}
	then := ParseCode(c)

	var elseBody *deferred.Deferred[syntax.CodeBody]
	if c.peek().Type == lexer.TokenElse {
		elseTok := c.next()
		switch next := c.next(); next.Type {
		case lexer.TokenIf:
			label := c.Resolver.NextLabel()
			pos := c.position(next)
			nested := parseIf(c, next)
			elseBody = deferred.Then(nested, func(_ context.Context, effect syntax.Effects) (syntax.CodeBody, error) {
				return syntax.CodeBody{Label: label, Expressions: []syntax.Expression{{Type: syntax.Line, Effect: effect, Pos: pos}}}, nil
			})
		case lexer.TokenCodeStart:
			elseBody = ParseCode(c)
		default:
			c.back()
			elseBody = deferred.Fail[syntax.CodeBody](c.makeError(elseTok, "EXPECTED_BLOCK", "Expected { or if after else"))
		}
	}

	return deferred.New(func(ctx context.Context) (syntax.Effects, error) {
		var errs errors.List
		condition, err := cond.Await(ctx)
		if err != nil {
			errs = appendError(errs, err)
		}
		body, err := then.Await(ctx)
		if err != nil {
			errs = appendError(errs, err)
		}
		out := &syntax.If{Condition: condition, Then: body}
		if elseBody != nil {
			code, err := elseBody.Await(ctx)
			if err != nil {
				errs = appendError(errs, err)
			}
			out.Else = &code
		}
		if err := joinErrors(errs); err != nil {
			return nil, err
		}
		return out, nil
	})
}

func parseWhile(c *ParserContext, whileTok lexer.Token) ParsingFuture {
	cond, ok := parseCondition(c, whileTok)
	if !ok {
		return cond
	}
	body := parseLoopBody(c)

	return deferred.New(func(ctx context.Context) (syntax.Effects, error) {
		condition, err := cond.Await(ctx)
		if err != nil {
			return nil, err
		}
		code, err := body.Await(ctx)
		if err != nil {
			return nil, err
		}
		return &syntax.While{Condition: condition, Body: code}, nil
	})
}

// parseFor parses `for name in expr { ... }`.
func parseFor(c *ParserContext, forTok lexer.Token) ParsingFuture {
	malformed := func() ParsingFuture {
		c.back()
		c.skipStatement()
		return constantError(c.makeError(forTok, "MALFORMED_FOR", "Expected for <name> in <expression>"))
	}
	nameTok := c.next()
	if nameTok.Type != lexer.TokenVariable {
		return malformed()
	}
	if inTok := c.next(); inTok.Type != lexer.TokenVariable || c.text(inTok) != "in" {
		return malformed()
	}
	iter, ok := parseCondition(c, forTok)
	if !ok {
		return iter
	}
	body := parseLoopBody(c)

	name := c.text(nameTok)
	return deferred.New(func(ctx context.Context) (syntax.Effects, error) {
		iterable, err := iter.Await(ctx)
		if err != nil {
			return nil, err
		}
		code, err := body.Await(ctx)
		if err != nil {
			return nil, err
		}
		return &syntax.For{Variable: name, Iterable: iterable, Body: code}, nil
	})
}

func parseBreak(c *ParserContext, breakTok lexer.Token) ParsingFuture {
	switch end := c.next(); end.Type {
	case lexer.TokenLineEnd:
	case lexer.TokenCodeEnd, lexer.TokenEOF:
		c.back()
	default:
		c.back()
		c.skipStatement()
		return constantError(c.makeError(end, "EXPECTED_LINE_END", "Expected ; after break"))
	}
	if len(c.loops) == 0 {
		return constantError(c.makeError(breakTok, "BREAK_OUTSIDE_LOOP", "break outside of a loop"))
	}
	return constantEffect(syntax.Break{Label: c.loops[len(c.loops)-1]})
}

// parseSwitch skips the statement; switch has no semantics yet.
func parseSwitch(c *ParserContext, switchTok lexer.Token) ParsingFuture {
	c.skipStatement()
	return constantError(c.makeError(switchTok, "UNSUPPORTED", "switch is not supported"))
}
