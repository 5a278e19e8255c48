package parser

import (
	"context"

	"github.com/raven-lang/raven/internal/deferred"
	"github.com/raven-lang/raven/internal/lexer"
	"github.com/raven-lang/raven/internal/syntax"
)

// compound lists the operators spelled with two adjacent tokens.
var compound = map[string]bool{
	"==": true, "!=": true, "<=": true, ">=": true,
	"&&": true, "||": true, "<<": true, ">>": true,
}

// precedence returns the binding strength of a binary operator. Assignment
// binds loosest and groups to the right; everything else groups to the left.
func precedence(op string) int {
	switch op {
	case "=":
		return 0
	case "||":
		return 1
	case "&&":
		return 2
	case "==", "!=", "<", ">", "<=", ">=":
		return 3
	case "*", "/", "%", "&", "<<", ">>":
		return 5
	default:
		return 4
	}
}

// readOperator joins tok with the following operator token when the two
// touch and form a known compound operator.
func (c *ParserContext) readOperator(tok lexer.Token) string {
	op := c.text(tok)
	end := tok.Span.End
	for {
		next := c.peek()
		if !isOperatorToken(next) || next.Span.Start != end {
			return op
		}
		joined := op + c.text(next)
		if !compound[joined] {
			return op
		}
		op = joined
		end = next.Span.End
		c.next()
	}
}

type operand struct {
	prefix []string
	value  ParsingFuture
}

// ParseOperator parses the rest of a line that continues with an operator.
// left is the operand before the operator, or nil for a prefix operator.
// The line is split into operands and operators as it is read; the tree is
// built by precedence once every operand has resolved.
func ParseOperator(c *ParserContext, tok lexer.Token, left ParsingFuture, breakAtBody, deep bool) (ParsingFuture, lexer.TokenType) {
	var operands []operand
	var ops, prefix []string
	if left != nil {
		operands = append(operands, operand{value: left})
		ops = append(ops, c.readOperator(tok))
	} else {
		prefix = append(prefix, c.readOperator(tok))
	}

	var end lexer.TokenType
	for {
		seg, segEnd, ok := parseLine(c, breakAtBody, deep, true)
		if ok && seg.Effect == nil && segEnd == lexer.TokenOperator {
			prefix = append(prefix, c.readOperator(c.next()))
			continue
		}
		if !ok || seg.Effect == nil {
			operands = append(operands, operand{value: constantError(
				c.makeError(tok, "MISSING_OPERAND", "Expected a value after "+c.text(tok)))})
			end = segEnd
			break
		}

		operands = append(operands, operand{prefix: prefix, value: seg.Effect})
		prefix = nil
		if segEnd != lexer.TokenOperator {
			end = segEnd
			break
		}
		ops = append(ops, c.readOperator(c.next()))
	}

	return buildOperation(operands, ops), end
}

func buildOperation(operands []operand, ops []string) ParsingFuture {
	return deferred.New(func(ctx context.Context) (syntax.Effects, error) {
		values := make([]syntax.Effects, len(operands))
		for i, op := range operands {
			value, err := op.value.Await(ctx)
			if err != nil {
				return nil, err
			}
			for j := len(op.prefix) - 1; j >= 0; j-- {
				value = &syntax.Operation{Operator: op.prefix[j], Args: []syntax.Effects{value}}
			}
			values[i] = value
		}
		return climb(values, ops), nil
	})
}

// climb builds the operator tree for values[0] ops[0] values[1] ... .
func climb(values []syntax.Effects, ops []string) syntax.Effects {
	pos := 0
	var parse func(min int) syntax.Effects
	parse = func(min int) syntax.Effects {
		left := values[pos]
		for pos < len(ops) && precedence(ops[pos]) >= min {
			op := ops[pos]
			pos++
			next := precedence(op) + 1
			if op == "=" {
				next = precedence(op)
			}
			right := parse(next)
			if op == "=" {
				left = &syntax.Set{Target: left, Value: right}
			} else {
				left = &syntax.Operation{Operator: op, Args: []syntax.Effects{left, right}}
			}
		}
		return left
	}
	return parse(0)
}
