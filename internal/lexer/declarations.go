package lexer

// nextDeclaration lexes one token at the top level or inside a struct body.
func (t *Tokenizer) nextDeclaration() Token {
	switch {
	case t.matches(";"):
		return t.makeToken(TokenLineEnd)
	case t.matches("{"):
		if t.structPending {
			t.structPending = false
			t.push(ModeStruct)
		} else {
			t.push(ModeCode)
		}
		return t.makeToken(TokenCodeStart)
	case t.matches("}"):
		return t.closeBlock()
	case t.matches(","):
		return t.makeToken(TokenArgumentEnd)
	case t.matches("("):
		return t.makeToken(TokenParenOpen)
	case t.matches(")"):
		return t.makeToken(TokenParenClose)
	case t.matches("->"):
		return t.makeToken(TokenReturnType)
	case t.matches(":"):
		return t.makeToken(TokenColon)
	case t.matches("import"):
		return t.makeToken(TokenImport)
	case t.matches("struct"):
		t.structPending = true
		return t.makeToken(TokenStruct)
	case t.matches("fn"):
		t.structPending = false
		return t.makeToken(TokenFunction)
	}

	return t.generic(TokenVariable)
}
