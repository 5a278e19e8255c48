// Package parser implements the Raven recursive descent parser.
//
// The parser does not build finished trees. Every expression becomes a
// deferred computation that is resolved later, once the declarations it
// refers to have been registered, possibly by another file that is still
// being parsed.
package parser

import (
	"context"
	stderrors "errors"

	"github.com/raven-lang/raven/internal/deferred"
	"github.com/raven-lang/raven/internal/errors"
	"github.com/raven-lang/raven/internal/lexer"
	"github.com/raven-lang/raven/internal/position"
	"github.com/raven-lang/raven/internal/syntax"
	"github.com/raven-lang/raven/internal/tasks"
)

// ParsingFuture is a deferred effect.
type ParsingFuture = *deferred.Deferred[syntax.Effects]

// ParserContext is the per-file cursor state.
type ParserContext struct {
	Buffer    []byte
	Tokens    []lexer.Token
	Index     int
	File      string
	Namespace string
	Resolver  syntax.NameResolver
	Registry  *syntax.Registry
	Handle    *tasks.Handle

	source *position.SourceFile
	// labels of the enclosing loop bodies, innermost last
	loops []string
}

// NewContext tokenizes contents and prepares a context positioned at the first token.
func NewContext(handle *tasks.Handle, registry *syntax.Registry, file string, contents []byte) *ParserContext {
	ns := Namespace(file)
	return &ParserContext{
		Buffer:    contents,
		Tokens:    lexer.Tokenize(contents),
		File:      file,
		Namespace: ns,
		Resolver:  NewImportNameResolver(ns),
		Registry:  registry,
		Handle:    handle,
		source:    position.NewSourceFile(file, contents),
	}
}

// next consumes a token. Past the end it keeps returning the EOF token.
func (c *ParserContext) next() lexer.Token {
	if c.Index >= len(c.Tokens) {
		return c.Tokens[len(c.Tokens)-1]
	}
	tok := c.Tokens[c.Index]
	c.Index++
	return tok
}

func (c *ParserContext) peek() lexer.Token {
	if c.Index >= len(c.Tokens) {
		return c.Tokens[len(c.Tokens)-1]
	}
	return c.Tokens[c.Index]
}

// previous returns the last consumed token.
func (c *ParserContext) previous() lexer.Token {
	i := c.Index
	if i > len(c.Tokens) {
		i = len(c.Tokens)
	}
	if i == 0 {
		return c.Tokens[0]
	}
	return c.Tokens[i-1]
}

// back un-consumes the last token.
func (c *ParserContext) back() {
	if c.Index > 0 {
		c.Index--
	}
}

func (c *ParserContext) text(tok lexer.Token) string {
	return tok.Text(c.Buffer)
}

func (c *ParserContext) position(tok lexer.Token) position.Position {
	return c.source.PositionFromOffset(tok.Span.Start)
}

// makeError creates a syntax error located at tok.
func (c *ParserContext) makeError(tok lexer.Token, code, message string) *errors.CompileError {
	return errors.At(errors.CategorySyntax, code, c.position(tok), "%s", message)
}

// locate attaches the position of tok to a registry failure that has none.
func (c *ParserContext) locate(err error, tok lexer.Token) error {
	var ce *errors.CompileError
	if stderrors.As(err, &ce) && !ce.Pos.IsValid() {
		located := *ce
		located.File = c.File
		located.Pos = c.position(tok)
		return &located
	}
	return err
}

// skipStatement drops tokens up to the end of the current statement,
// including a braced block it opens. A closing brace of an outer block is left
// for the caller.
func (c *ParserContext) skipStatement() {
	depth := 0
	for {
		tok := c.next()
		switch tok.Type {
		case lexer.TokenEOF:
			return
		case lexer.TokenCodeStart:
			depth++
		case lexer.TokenCodeEnd:
			if depth == 0 {
				c.back()
				return
			}
			depth--
			if depth == 0 {
				return
			}
		case lexer.TokenLineEnd:
			if depth == 0 {
				return
			}
		}
	}
}

func constantEffect(effect syntax.Effects) ParsingFuture {
	return deferred.Ready(effect)
}

func constantError(err error) ParsingFuture {
	return deferred.Fail[syntax.Effects](err)
}

func awaitAll(ctx context.Context, futures []ParsingFuture) ([]syntax.Effects, error) {
	return deferred.All(ctx, futures)
}
