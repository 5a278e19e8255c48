package lexer

// nextCode lexes one token inside a code body.
func (t *Tokenizer) nextCode() Token {
	switch {
	case t.matches(";"):
		return t.makeToken(TokenLineEnd)
	case t.matches("{"):
		t.push(ModeCode)
		return t.makeToken(TokenCodeStart)
	case t.matches("}"):
		return t.closeBlock()
	case t.matches(","):
		return t.makeToken(TokenArgumentEnd)
	case t.matches("("):
		return t.makeToken(TokenParenOpen)
	case t.matches(")"):
		return t.makeToken(TokenParenClose)
	case t.matches("."):
		return t.afterDot()
	case t.matches(":"):
		return t.makeToken(TokenColon)
	case t.matches("="):
		return t.makeToken(TokenEquals)
	}

	for _, kw := range codeKeywords {
		if t.matches(kw.word) {
			return t.makeToken(kw.tt)
		}
	}

	if t.matches("\"") {
		t.push(ModeString)
		return t.makeToken(TokenStringStart)
	}

	return t.generic(TokenVariable)
}

// afterDot tells a decimal point from a calling dot. The calling type token
// only covers the name after the dot.
func (t *Tokenizer) afterDot() Token {
	if t.index < len(t.buffer) && isDigit(t.buffer[t.index]) {
		t.index--
		return t.parseNumber()
	}
	if t.index < len(t.buffer) && isIdentStart(t.buffer[t.index]) {
		t.start = t.index
		return t.parseIdent(TokenCallingType)
	}
	return t.makeToken(TokenOperator)
}
