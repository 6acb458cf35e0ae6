package script

import (
	"strconv"
)

// ParseFunction parses a routine of the form "function NAME?(PARAMS){BODY}".
// Surrounding whitespace and comments are allowed; anything else after the
// closing brace is an error.
func ParseFunction(src string) (*Function, error) {
	p, err := newParser(src)
	if err != nil {
		return nil, err
	}

	if !p.current().isKeyword("function") {
		return nil, newSyntaxError(p.current(), "expected 'function', found %s", describe(p.current()))
	}
	p.advance()

	fn := &Function{Source: src}
	if p.current().Type == TokenIdentifier && !p.current().is("(") {
		fn.Name = p.current().Value
		p.advance()
	}

	if err := p.expect("("); err != nil {
		return nil, err
	}
	for !p.current().is(")") {
		tok := p.current()
		if tok.Type != TokenIdentifier || IsKeyword(tok.Value) {
			return nil, newSyntaxError(tok, "invalid parameter name %s", describe(tok))
		}
		fn.Params = append(fn.Params, tok.Value)
		p.advance()
		if p.current().is(",") {
			p.advance()
			continue
		}
		if !p.current().is(")") {
			return nil, newSyntaxError(p.current(), "expected ',' or ')' in parameter list")
		}
	}
	p.advance()

	body, err := p.parseBlockBody()
	if err != nil {
		return nil, err
	}
	fn.Body = body

	if p.current().Type != TokenEOF {
		return nil, newSyntaxError(p.current(), "unexpected %s after function body", describe(p.current()))
	}
	return fn, nil
}

// ParseProgram parses a bare statement list. It is wrapped in a function
// with no parameters, so a top-level return is permitted.
func ParseProgram(src string) (*Function, error) {
	p, err := newParser(src)
	if err != nil {
		return nil, err
	}
	var body []Stmt
	for p.current().Type != TokenEOF {
		stmt, err := p.parseStatement()
		if err != nil {
			return nil, err
		}
		body = append(body, stmt)
	}
	return &Function{Body: body, Source: src}, nil
}

// ParseExpression parses a single expression and requires full token
// consumption.
func ParseExpression(src string) (Expr, error) {
	p, err := newParser(src)
	if err != nil {
		return nil, err
	}
	expr, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	if p.current().Type != TokenEOF {
		return nil, newSyntaxError(p.current(), "unexpected trailing %s", describe(p.current()))
	}
	return expr, nil
}

// Parser builds statement and expression trees from tokens
type Parser struct {
	tokens    []Token
	pos       int
	loopDepth int
}

func newParser(src string) (*Parser, error) {
	tokens, err := Lex(src)
	if err != nil {
		return nil, err
	}
	return &Parser{tokens: tokens}, nil
}

func (p *Parser) current() Token {
	if p.pos >= len(p.tokens) {
		return p.tokens[len(p.tokens)-1]
	}
	return p.tokens[p.pos]
}

func (p *Parser) peek(n int) Token {
	if p.pos+n >= len(p.tokens) {
		return p.tokens[len(p.tokens)-1]
	}
	return p.tokens[p.pos+n]
}

func (p *Parser) advance() {
	if p.pos < len(p.tokens) {
		p.pos++
	}
}

func (p *Parser) expect(punct string) error {
	if !p.current().is(punct) {
		return newSyntaxError(p.current(), "expected '%s', found %s", punct, describe(p.current()))
	}
	p.advance()
	return nil
}

// consumeSemicolon ends a statement, inserting a semicolon before '}', at
// end of input, or at a line break.
func (p *Parser) consumeSemicolon() error {
	tok := p.current()
	switch {
	case tok.is(";"):
		p.advance()
		return nil
	case tok.is("}"), tok.Type == TokenEOF, tok.NewlineBefore:
		return nil
	default:
		return newSyntaxError(tok, "expected ';', found %s", describe(tok))
	}
}

func describe(tok Token) string {
	switch tok.Type {
	case TokenEOF:
		return "end of input"
	case TokenString:
		return strconv.Quote(tok.Value)
	default:
		return "'" + tok.Value + "'"
	}
}

// parseBlockBody parses "{ statements }".
func (p *Parser) parseBlockBody() ([]Stmt, error) {
	if err := p.expect("{"); err != nil {
		return nil, err
	}
	body := []Stmt{}
	for !p.current().is("}") {
		if p.current().Type == TokenEOF {
			return nil, newSyntaxError(p.current(), "unexpected end of input, expected '}'")
		}
		stmt, err := p.parseStatement()
		if err != nil {
			return nil, err
		}
		body = append(body, stmt)
	}
	p.advance()
	return body, nil
}

func (p *Parser) parseStatement() (Stmt, error) {
	tok := p.current()
	pos := node{pos: tok.position()}

	switch {
	case tok.is("{"):
		body, err := p.parseBlockBody()
		if err != nil {
			return nil, err
		}
		return &BlockStmt{node: pos, Body: body}, nil

	case tok.is(";"):
		p.advance()
		return &EmptyStmt{node: pos}, nil

	case tok.isKeyword("var"), tok.isKeyword("let"), tok.isKeyword("const"):
		decl, err := p.parseVarDecl()
		if err != nil {
			return nil, err
		}
		return decl, p.consumeSemicolon()

	case tok.isKeyword("if"):
		return p.parseIf()

	case tok.isKeyword("for"):
		return p.parseFor()

	case tok.isKeyword("while"):
		p.advance()
		test, err := p.parseParenExpression()
		if err != nil {
			return nil, err
		}
		body, err := p.parseLoopBody()
		if err != nil {
			return nil, err
		}
		return &WhileStmt{node: pos, Test: test, Body: body}, nil

	case tok.isKeyword("do"):
		p.advance()
		body, err := p.parseLoopBody()
		if err != nil {
			return nil, err
		}
		if !p.current().isKeyword("while") {
			return nil, newSyntaxError(p.current(), "expected 'while', found %s", describe(p.current()))
		}
		p.advance()
		test, err := p.parseParenExpression()
		if err != nil {
			return nil, err
		}
		// the semicolon after do-while is always optional
		if p.current().is(";") {
			p.advance()
		}
		return &WhileStmt{node: pos, Test: test, Body: body, Post: true}, nil

	case tok.isKeyword("break"), tok.isKeyword("continue"):
		if p.loopDepth == 0 {
			return nil, newSyntaxError(tok, "illegal %s statement", tok.Value)
		}
		p.advance()
		return &BranchStmt{node: pos, Keyword: tok.Value}, p.consumeSemicolon()

	case tok.isKeyword("return"):
		p.advance()
		next := p.current()
		if next.is(";") || next.is("}") || next.Type == TokenEOF || next.NewlineBefore {
			return &ReturnStmt{node: pos}, p.consumeSemicolon()
		}
		value, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		return &ReturnStmt{node: pos, Value: value}, p.consumeSemicolon()

	case tok.isKeyword("with"):
		p.advance()
		obj, err := p.parseParenExpression()
		if err != nil {
			return nil, err
		}
		body, err := p.parseStatement()
		if err != nil {
			return nil, err
		}
		return &WithStmt{node: pos, Object: obj, Body: body}, nil

	case tok.isKeyword("function"), tok.isKeyword("new"), tok.isKeyword("this"):
		return nil, newSyntaxError(tok, "'%s' is not supported", tok.Value)

	case tok.isKeyword("else"):
		return nil, newSyntaxError(tok, "unexpected 'else'")
	}

	expr, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	return &ExprStmt{node: pos, X: expr}, p.consumeSemicolon()
}

func (p *Parser) parseVarDecl() (*VarStmt, error) {
	decl := &VarStmt{node: node{pos: p.current().position()}}
	p.advance()
	for {
		tok := p.current()
		if tok.Type != TokenIdentifier || IsKeyword(tok.Value) {
			return nil, newSyntaxError(tok, "invalid variable name %s", describe(tok))
		}
		p.advance()
		var init Expr
		if p.current().is("=") {
			p.advance()
			var err error
			init, err = p.parseAssignment()
			if err != nil {
				return nil, err
			}
		}
		decl.Names = append(decl.Names, tok.Value)
		decl.Inits = append(decl.Inits, init)
		if !p.current().is(",") {
			return decl, nil
		}
		p.advance()
	}
}

func (p *Parser) parseParenExpression() (Expr, error) {
	if err := p.expect("("); err != nil {
		return nil, err
	}
	expr, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	if err := p.expect(")"); err != nil {
		return nil, err
	}
	return expr, nil
}

func (p *Parser) parseLoopBody() (Stmt, error) {
	p.loopDepth++
	defer func() { p.loopDepth-- }()
	return p.parseStatement()
}

func (p *Parser) parseIf() (Stmt, error) {
	stmt := &IfStmt{node: node{pos: p.current().position()}}
	p.advance()

	test, err := p.parseParenExpression()
	if err != nil {
		return nil, err
	}
	stmt.Test = test

	if stmt.Then, err = p.parseStatement(); err != nil {
		return nil, err
	}
	if p.current().isKeyword("else") {
		p.advance()
		if stmt.Else, err = p.parseStatement(); err != nil {
			return nil, err
		}
	}
	return stmt, nil
}

func (p *Parser) parseFor() (Stmt, error) {
	pos := node{pos: p.current().position()}
	p.advance()
	if err := p.expect("("); err != nil {
		return nil, err
	}

	// for (var x of xs), for (x in obj)
	declare := p.current().isKeyword("var") || p.current().isKeyword("let") || p.current().isKeyword("const")
	offset := 0
	if declare {
		offset = 1
	}
	name, kw := p.peek(offset), p.peek(offset+1)
	if name.Type == TokenIdentifier && !IsKeyword(name.Value) && (kw.isKeyword("of") || kw.isKeyword("in")) {
		p.pos += offset + 2
		iterable, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		if err := p.expect(")"); err != nil {
			return nil, err
		}
		body, err := p.parseLoopBody()
		if err != nil {
			return nil, err
		}
		return &ForEachStmt{
			node:     pos,
			Name:     name.Value,
			Declare:  declare,
			Of:       kw.Value == "of",
			Iterable: iterable,
			Body:     body,
		}, nil
	}

	stmt := &ForStmt{node: pos}
	switch {
	case p.current().is(";"):
	case declare:
		decl, err := p.parseVarDecl()
		if err != nil {
			return nil, err
		}
		stmt.Init = decl
	default:
		initPos := p.current().position()
		expr, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		stmt.Init = &ExprStmt{node: node{pos: initPos}, X: expr}
	}
	if err := p.expect(";"); err != nil {
		return nil, err
	}

	if !p.current().is(";") {
		test, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		stmt.Test = test
	}
	if err := p.expect(";"); err != nil {
		return nil, err
	}

	if !p.current().is(")") {
		update, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		stmt.Update = update
	}
	if err := p.expect(")"); err != nil {
		return nil, err
	}

	body, err := p.parseLoopBody()
	if err != nil {
		return nil, err
	}
	stmt.Body = body
	return stmt, nil
}

// parseExpression parses a complete expression
func (p *Parser) parseExpression() (Expr, error) {
	return p.parseAssignment()
}

var assignOperators = map[string]bool{
	"=": true, "+=": true, "-=": true, "*=": true, "/=": true, "%=": true,
}

// parseAssignment parses assignments (lowest precedence, right associative)
func (p *Parser) parseAssignment() (Expr, error) {
	left, err := p.parseConditional()
	if err != nil {
		return nil, err
	}

	tok := p.current()
	if tok.Type != TokenPunct || !assignOperators[tok.Value] {
		return left, nil
	}
	if !isAssignable(left) {
		return nil, newSyntaxError(tok, "invalid assignment target")
	}
	p.advance()
	right, err := p.parseAssignment()
	if err != nil {
		return nil, err
	}
	return &AssignNode{node: node{pos: tok.position()}, Operator: tok.Value, Target: left, Value: right}, nil
}

func isAssignable(expr Expr) bool {
	switch expr.(type) {
	case *IdentifierNode, *MemberNode:
		return true
	default:
		return false
	}
}

// parseConditional parses test ? a : b
func (p *Parser) parseConditional() (Expr, error) {
	test, err := p.parseLogicalOr()
	if err != nil {
		return nil, err
	}
	if !p.current().is("?") {
		return test, nil
	}
	pos := p.current().position()
	p.advance()
	then, err := p.parseAssignment()
	if err != nil {
		return nil, err
	}
	if err := p.expect(":"); err != nil {
		return nil, err
	}
	otherwise, err := p.parseAssignment()
	if err != nil {
		return nil, err
	}
	return &ConditionalNode{node: node{pos: pos}, Test: test, Then: then, Else: otherwise}, nil
}

// parseLogicalOr parses || expressions
func (p *Parser) parseLogicalOr() (Expr, error) {
	left, err := p.parseLogicalAnd()
	if err != nil {
		return nil, err
	}

	for p.current().is("||") {
		tok := p.current()
		p.advance()
		right, err := p.parseLogicalAnd()
		if err != nil {
			return nil, err
		}
		left = &LogicalNode{node: node{pos: tok.position()}, Left: left, Operator: tok.Value, Right: right}
	}

	return left, nil
}

// parseLogicalAnd parses && expressions
func (p *Parser) parseLogicalAnd() (Expr, error) {
	left, err := p.parseEquality()
	if err != nil {
		return nil, err
	}

	for p.current().is("&&") {
		tok := p.current()
		p.advance()
		right, err := p.parseEquality()
		if err != nil {
			return nil, err
		}
		left = &LogicalNode{node: node{pos: tok.position()}, Left: left, Operator: tok.Value, Right: right}
	}

	return left, nil
}

func (p *Parser) parseBinaryLevel(next func() (Expr, error), operators ...string) (Expr, error) {
	left, err := next()
	if err != nil {
		return nil, err
	}

	for {
		tok := p.current()
		matched := false
		for _, op := range operators {
			if tok.is(op) {
				matched = true
				break
			}
		}
		if !matched {
			return left, nil
		}
		p.advance()
		right, err := next()
		if err != nil {
			return nil, err
		}
		left = &BinaryNode{node: node{pos: tok.position()}, Left: left, Operator: tok.Value, Right: right}
	}
}

// parseEquality parses ==, !=, === and !==
func (p *Parser) parseEquality() (Expr, error) {
	return p.parseBinaryLevel(p.parseComparison, "==", "!=", "===", "!==")
}

// parseComparison parses <, >, <= and >=
func (p *Parser) parseComparison() (Expr, error) {
	return p.parseBinaryLevel(p.parseTerm, "<", ">", "<=", ">=")
}

// parseTerm parses addition and subtraction
func (p *Parser) parseTerm() (Expr, error) {
	return p.parseBinaryLevel(p.parseFactor, "+", "-")
}

// parseFactor parses multiplication, division, and modulo
func (p *Parser) parseFactor() (Expr, error) {
	return p.parseBinaryLevel(p.parseUnary, "*", "/", "%")
}

// parseUnary parses prefix operators
func (p *Parser) parseUnary() (Expr, error) {
	tok := p.current()
	switch {
	case tok.is("!"), tok.is("-"), tok.is("+"), tok.isKeyword("typeof"):
		p.advance()
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &UnaryNode{node: node{pos: tok.position()}, Operator: tok.Value, Operand: operand}, nil

	case tok.is("++"), tok.is("--"):
		p.advance()
		target, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		if !isAssignable(target) {
			return nil, newSyntaxError(tok, "invalid %s operand", tok.Value)
		}
		return &UpdateNode{node: node{pos: tok.position()}, Operator: tok.Value, Prefix: true, Target: target}, nil
	}

	return p.parsePostfix()
}

// parsePostfix parses x++ and x--, which may not follow a line break
func (p *Parser) parsePostfix() (Expr, error) {
	expr, err := p.parseCallMember()
	if err != nil {
		return nil, err
	}
	tok := p.current()
	if (tok.is("++") || tok.is("--")) && !tok.NewlineBefore {
		if !isAssignable(expr) {
			return nil, newSyntaxError(tok, "invalid %s operand", tok.Value)
		}
		p.advance()
		return &UpdateNode{node: node{pos: tok.position()}, Operator: tok.Value, Target: expr}, nil
	}
	return expr, nil
}

// parseCallMember parses field access, indexing and calls
func (p *Parser) parseCallMember() (Expr, error) {
	left, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}

	for {
		tok := p.current()
		switch {
		case tok.is("."):
			p.advance()
			name := p.current()
			if name.Type != TokenIdentifier {
				return nil, newSyntaxError(name, "expected property name after '.'")
			}
			p.advance()
			left = &MemberNode{
				node:     node{pos: name.position()},
				Object:   left,
				Property: &LiteralNode{node: node{pos: name.position()}, Value: name.Value},
			}

		case tok.is("["):
			p.advance()
			index, err := p.parseExpression()
			if err != nil {
				return nil, err
			}
			if err := p.expect("]"); err != nil {
				return nil, err
			}
			left = &MemberNode{node: node{pos: tok.position()}, Object: left, Property: index, Computed: true}

		case tok.is("("):
			p.advance()
			args, err := p.parseList(")")
			if err != nil {
				return nil, err
			}
			left = &CallNode{node: node{pos: tok.position()}, Callee: left, Args: args}

		default:
			return left, nil
		}
	}
}

// parseList parses comma separated expressions up to the closing punctuator,
// allowing a trailing comma.
func (p *Parser) parseList(closing string) ([]Expr, error) {
	var items []Expr
	for !p.current().is(closing) {
		item, err := p.parseAssignment()
		if err != nil {
			return nil, err
		}
		items = append(items, item)
		if p.current().is(",") {
			p.advance()
			continue
		}
		if !p.current().is(closing) {
			return nil, newSyntaxError(p.current(), "expected ',' or '%s', found %s", closing, describe(p.current()))
		}
	}
	p.advance()
	return items, nil
}

// parsePrimary parses literals, names and parenthesized expressions
func (p *Parser) parsePrimary() (Expr, error) {
	tok := p.current()
	pos := node{pos: tok.position()}

	switch tok.Type {
	case TokenNumber:
		p.advance()
		value, err := strconv.ParseFloat(tok.Value, 64)
		if err != nil {
			return nil, newSyntaxError(tok, "invalid number %s", tok.Value)
		}
		return &LiteralNode{node: pos, Value: value}, nil

	case TokenString:
		p.advance()
		return &LiteralNode{node: pos, Value: tok.Value}, nil

	case TokenIdentifier:
		switch tok.Value {
		case "true":
			p.advance()
			return &LiteralNode{node: pos, Value: true}, nil
		case "false":
			p.advance()
			return &LiteralNode{node: pos, Value: false}, nil
		case "null", "undefined":
			p.advance()
			return &LiteralNode{node: pos, Value: nil}, nil
		}
		if IsKeyword(tok.Value) {
			return nil, newSyntaxError(tok, "unexpected keyword '%s'", tok.Value)
		}
		p.advance()
		return &IdentifierNode{node: pos, Name: tok.Value}, nil

	case TokenEOF:
		return nil, newSyntaxError(tok, "unexpected end of input")
	}

	switch {
	case tok.is("("):
		p.advance()
		expr, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		if err := p.expect(")"); err != nil {
			return nil, err
		}
		return expr, nil

	case tok.is("["):
		p.advance()
		elements, err := p.parseList("]")
		if err != nil {
			return nil, err
		}
		return &ArrayNode{node: pos, Elements: elements}, nil

	case tok.is("{"):
		return p.parseObject()
	}

	return nil, newSyntaxError(tok, "unexpected %s", describe(tok))
}

func (p *Parser) parseObject() (Expr, error) {
	obj := &ObjectNode{node: node{pos: p.current().position()}}
	p.advance()
	for !p.current().is("}") {
		key := p.current()
		switch key.Type {
		case TokenIdentifier, TokenString, TokenNumber:
		default:
			return nil, newSyntaxError(key, "invalid property name %s", describe(key))
		}
		p.advance()

		var value Expr
		if p.current().is(":") {
			p.advance()
			var err error
			if value, err = p.parseAssignment(); err != nil {
				return nil, err
			}
		} else if key.Type == TokenIdentifier && !IsKeyword(key.Value) {
			value = &IdentifierNode{node: node{pos: key.position()}, Name: key.Value}
		} else {
			return nil, newSyntaxError(p.current(), "expected ':' after property name")
		}

		name := key.Value
		if key.Type == TokenNumber {
			if n, err := strconv.ParseFloat(key.Value, 64); err == nil {
				name = ToString(n)
			}
		}
		obj.Keys = append(obj.Keys, name)
		obj.Values = append(obj.Values, value)

		if p.current().is(",") {
			p.advance()
			continue
		}
		if !p.current().is("}") {
			return nil, newSyntaxError(p.current(), "expected ',' or '}' in object literal")
		}
	}
	p.advance()
	return obj, nil
}
