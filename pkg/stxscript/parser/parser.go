// Package parser turns stxscript source into a generic parse tree.
//
// The parser is a hand-written recursive descent parser with one function
// per grammar rule. Each rule produces a parsetree.Tree named after the rule;
// single-child expression levels are collapsed so that precedence is encoded
// purely by nesting. Only the first syntax error is kept.
package parser

import (
	"fmt"
	"strings"

	perrors "github.com/sambeau/stxscript/pkg/stxscript/errors"
	"github.com/sambeau/stxscript/pkg/stxscript/lexer"
	"github.com/sambeau/stxscript/pkg/stxscript/parsetree"
)

// binaryLevels lists the left-associative binary rules from loosest to
// tightest binding.
var binaryLevels = []struct {
	rule string
	ops  []lexer.TokenType
}{
	{parsetree.LogicalOr, []lexer.TokenType{lexer.OR}},
	{parsetree.LogicalAnd, []lexer.TokenType{lexer.AND}},
	{parsetree.BitwiseOr, []lexer.TokenType{lexer.BIT_OR}},
	{parsetree.BitwiseXor, []lexer.TokenType{lexer.BIT_XOR}},
	{parsetree.BitwiseAnd, []lexer.TokenType{lexer.BIT_AND}},
	{parsetree.Equality, []lexer.TokenType{lexer.EQ, lexer.NOT_EQ}},
	{parsetree.Relational, []lexer.TokenType{lexer.LT, lexer.GT, lexer.LTE, lexer.GTE}},
	{parsetree.Shift, []lexer.TokenType{lexer.SHL, lexer.SHR}},
	{parsetree.Additive, []lexer.TokenType{lexer.PLUS, lexer.MINUS}},
	{parsetree.Multiplicative, []lexer.TokenType{lexer.ASTERISK, lexer.SLASH, lexer.PERCENT}},
}

// Parser represents the parser
type Parser struct {
	l *lexer.Lexer

	errors []*perrors.StxError

	prevToken lexer.Token
	curToken  lexer.Token
	peekToken lexer.Token

	// pending holds tokens pushed back when a '>>' is split while closing
	// nested type arguments.
	pending []lexer.Token
}

// New creates a new parser instance
func New(l *lexer.Lexer) *Parser {
	p := &Parser{l: l}

	// Read two tokens, so curToken and peekToken are both set
	p.nextToken()
	p.nextToken()

	return p
}

// Parse parses source into a program tree. filename is used for error
// locations and may be empty.
func Parse(source, filename string) (*parsetree.Tree, error) {
	var l *lexer.Lexer
	if filename == "" {
		l = lexer.New(source)
	} else {
		l = lexer.NewWithFilename(source, filename)
	}

	p := New(l)
	program := p.ParseProgram()
	if len(p.errors) > 0 {
		err := p.errors[0]
		if filename != "" {
			err = err.WithFile(filename)
		}
		return nil, err
	}
	return program, nil
}

// Errors returns the structured syntax errors.
func (p *Parser) Errors() []*perrors.StxError {
	return p.errors
}

func (p *Parser) failed() bool {
	return len(p.errors) > 0
}

// addError records a catalog error. Only the first error is kept since later
// ones are usually cascading noise.
func (p *Parser) addError(code string, line, column int, data map[string]any) {
	if len(p.errors) > 0 {
		return
	}
	p.errors = append(p.errors, perrors.NewWithPosition(code, line, column, data))
}

// nextToken advances prevToken, curToken, and peekToken
func (p *Parser) nextToken() {
	p.prevToken = p.curToken
	p.curToken = p.peekToken
	if len(p.pending) > 0 {
		p.peekToken = p.pending[0]
		p.pending = p.pending[1:]
	} else {
		p.peekToken = p.l.NextToken()
	}
	if p.peekToken.Type == lexer.ILLEGAL {
		p.illegalTokenError(p.peekToken)
	}
}

func (p *Parser) illegalTokenError(tok lexer.Token) {
	switch tok.Literal {
	case "unterminated string":
		p.addError("SYNTAX-0003", tok.Line, tok.Column, nil)
	case "unterminated comment":
		p.addError("SYNTAX-0007", tok.Line, tok.Column, nil)
	default:
		p.addError("SYNTAX-0004", tok.Line, tok.Column, map[string]any{"Char": tok.Literal})
	}
}

// parserState is a snapshot used for lookahead with backtracking.
type parserState struct {
	prev, cur, peek lexer.Token
	pending         []lexer.Token
	errors          int
	lexer           lexer.LexerState
}

func (p *Parser) saveState() parserState {
	pending := make([]lexer.Token, len(p.pending))
	copy(pending, p.pending)
	return parserState{
		prev:    p.prevToken,
		cur:     p.curToken,
		peek:    p.peekToken,
		pending: pending,
		errors:  len(p.errors),
		lexer:   p.l.SaveState(),
	}
}

func (p *Parser) restoreState(s parserState) {
	p.prevToken = s.prev
	p.curToken = s.cur
	p.peekToken = s.peek
	p.pending = s.pending
	p.errors = p.errors[:s.errors]
	p.l.RestoreState(s.lexer)
}

// ParseProgram parses the whole input into a program tree.
func (p *Parser) ParseProgram() *parsetree.Tree {
	program := parsetree.New(parsetree.Program, p.curToken)

	for !p.curTokenIs(lexer.EOF) && !p.failed() {
		stmt := p.parseStatement()
		if stmt == nil {
			break
		}
		program.Add(stmt)
		p.nextToken()
	}

	return program
}

// parseStatement parses one statement. On return curToken is the last token
// of the statement.
func (p *Parser) parseStatement() *parsetree.Tree {
	switch p.curToken.Type {
	case lexer.DECORATOR:
		return p.parseDecorated()
	case lexer.FUNCTION:
		return p.parseFunctionDeclaration(nil)
	case lexer.LET:
		return p.parseVariableDeclaration()
	case lexer.CONST:
		return p.parseConstantDeclaration(nil)
	case lexer.CLASS:
		return p.parseAssetDeclaration(nil)
	case lexer.TRAIT:
		return p.parseTraitDeclaration()
	case lexer.IF:
		return p.parseIfStatement()
	case lexer.TRY:
		return p.parseTryCatchStatement()
	case lexer.THROW:
		return p.parseThrowStatement()
	case lexer.RETURN:
		return p.parseReturnStatement()
	case lexer.IMPORT:
		return p.parseImportDeclaration()
	case lexer.EXPORT:
		return p.parseExportDeclaration()
	case lexer.IDENT:
		if p.curToken.Literal == "map" && (p.peekTokenIs(lexer.LT) || p.peekTokenIs(lexer.IDENT)) {
			return p.parseMapDeclaration()
		}
	}
	return p.parseExpressionStatement()
}

// parseDecorated parses one or more decorators and the declaration they
// apply to.
func (p *Parser) parseDecorated() *parsetree.Tree {
	var decorators []parsetree.Node
	for p.curTokenIs(lexer.DECORATOR) {
		dec := p.parseDecorator()
		if dec == nil {
			return nil
		}
		decorators = append(decorators, dec)
		p.nextToken()
	}

	switch p.curToken.Type {
	case lexer.FUNCTION:
		return p.parseFunctionDeclaration(decorators)
	case lexer.CONST:
		return p.parseConstantDeclaration(decorators)
	case lexer.CLASS:
		return p.parseAssetDeclaration(decorators)
	}

	p.addError("SYNTAX-0001", p.curToken.Line, p.curToken.Column, map[string]any{
		"Expected": "function, const or class after decorator",
		"Got":      tokenDisplay(p.curToken),
	})
	return nil
}

// parseDecorator parses @name or @name(argument). A @map argument is parsed
// as a tuple type so that it can carry arbitrary key and value types.
func (p *Parser) parseDecorator() *parsetree.Tree {
	tree := parsetree.New(parsetree.Decorator, p.curToken, parsetree.NewLeaf(p.curToken))
	if !p.peekTokenIs(lexer.LPAREN) {
		return tree
	}
	isMap := p.curToken.Literal == "@map"
	p.nextToken()

	if isMap && p.peekTokenIs(lexer.LBRACE) {
		p.nextToken()
		arg := p.parseTupleType()
		if arg == nil {
			return nil
		}
		tree.Add(arg)
	} else {
		p.nextToken()
		arg := p.parseExpression()
		if arg == nil {
			return nil
		}
		tree.Add(arg)
	}

	if !p.expectPeek(lexer.RPAREN) {
		return nil
	}
	return tree
}

func (p *Parser) parseFunctionDeclaration(decorators []parsetree.Node) *parsetree.Tree {
	tree := parsetree.New(parsetree.FunctionDeclaration, p.curToken, decorators...)

	if !p.expectPeek(lexer.IDENT) {
		return nil
	}
	tree.Add(parsetree.NewLeaf(p.curToken))

	if !p.expectPeek(lexer.LPAREN) {
		return nil
	}
	params := p.parseParameters(true)
	if params == nil {
		return nil
	}
	tree.Add(params)

	if p.peekTokenIs(lexer.COLON) {
		p.nextToken()
		p.nextToken()
		ret := p.parseType()
		if ret == nil {
			return nil
		}
		tree.Add(ret)
	}

	if !p.expectPeek(lexer.LBRACE) {
		return nil
	}
	body := p.parseBlock()
	if body == nil {
		return nil
	}
	tree.Add(body)
	return tree
}

// parseParameters parses a parenthesized parameter list starting at '('.
// When typed is set every parameter needs a type annotation.
func (p *Parser) parseParameters(typed bool) *parsetree.Tree {
	tree := parsetree.New(parsetree.Parameters, p.curToken)

	if p.peekTokenIs(lexer.RPAREN) {
		p.nextToken()
		return tree
	}

	for {
		if !p.expectPeek(lexer.IDENT) {
			return nil
		}
		param := parsetree.New(parsetree.Parameter, p.curToken, parsetree.NewLeaf(p.curToken))

		if p.peekTokenIs(lexer.COLON) {
			p.nextToken()
			p.nextToken()
			typ := p.parseType()
			if typ == nil {
				return nil
			}
			param.Add(typ)
		} else if typed {
			p.peekError(lexer.COLON)
			return nil
		}
		tree.Add(param)

		if p.peekTokenIs(lexer.COMMA) {
			p.nextToken()
			if p.peekTokenIs(lexer.RPAREN) {
				p.nextToken()
				return tree
			}
			continue
		}
		if !p.expectPeek(lexer.RPAREN) {
			return nil
		}
		return tree
	}
}

func (p *Parser) parseBlock() *parsetree.Tree {
	tree := parsetree.New(parsetree.Block, p.curToken)
	p.nextToken()

	for !p.curTokenIs(lexer.RBRACE) {
		if p.curTokenIs(lexer.EOF) {
			p.addError("SYNTAX-0005", p.curToken.Line, p.curToken.Column, nil)
			return nil
		}
		stmt := p.parseStatement()
		if stmt == nil || p.failed() {
			return nil
		}
		tree.Add(stmt)
		p.nextToken()
	}

	return tree
}

func (p *Parser) parseVariableDeclaration() *parsetree.Tree {
	return p.parseBinding(parsetree.VariableDeclaration, nil)
}

func (p *Parser) parseConstantDeclaration(decorators []parsetree.Node) *parsetree.Tree {
	return p.parseBinding(parsetree.ConstantDeclaration, decorators)
}

// parseBinding parses the shared shape of let and const:
// name (':' type)? ('=' expression)? ';'?
func (p *Parser) parseBinding(rule string, decorators []parsetree.Node) *parsetree.Tree {
	tree := parsetree.New(rule, p.curToken, decorators...)

	if !p.expectPeek(lexer.IDENT) {
		return nil
	}
	tree.Add(parsetree.NewLeaf(p.curToken))

	if p.peekTokenIs(lexer.COLON) {
		p.nextToken()
		p.nextToken()
		typ := p.parseType()
		if typ == nil {
			return nil
		}
		tree.Add(typ)
	}

	if p.peekTokenIs(lexer.ASSIGN) {
		p.nextToken()
		p.nextToken()
		value := p.parseExpression()
		if value == nil {
			return nil
		}
		tree.Add(value)
	}

	p.skipSemicolon()
	return tree
}

// parseMapDeclaration parses either of
//
//	map<K, V> name;
//	map name: Map<K, V>;
func (p *Parser) parseMapDeclaration() *parsetree.Tree {
	tree := parsetree.New(parsetree.MapDeclaration, p.curToken)
	var name lexer.Token

	if p.peekTokenIs(lexer.IDENT) {
		p.nextToken()
		name = p.curToken
		if !p.expectPeek(lexer.COLON) || !p.expectPeek(lexer.IDENT) {
			return nil
		}
		if !strings.EqualFold(p.curToken.Literal, "map") {
			p.addError("SYNTAX-0001", p.curToken.Line, p.curToken.Column, map[string]any{
				"Expected": "Map<K, V>",
				"Got":      p.curToken.Literal,
			})
			return nil
		}
	}

	if !p.expectPeek(lexer.LT) {
		return nil
	}
	args := p.parseTypeArguments()
	if args == nil {
		return nil
	}
	if len(args) != 2 {
		p.addError("SYNTAX-0001", p.curToken.Line, p.curToken.Column, map[string]any{
			"Expected": "key and value types",
			"Got":      fmt.Sprintf("%d type arguments", len(args)),
		})
		return nil
	}
	tree.Add(args...)

	if name.Type != lexer.IDENT {
		if !p.expectPeek(lexer.IDENT) {
			return nil
		}
		name = p.curToken
	}
	tree.Add(parsetree.NewLeaf(name))

	p.skipSemicolon()
	return tree
}

// parseAssetDeclaration parses class Name { field: type; ... }.
func (p *Parser) parseAssetDeclaration(decorators []parsetree.Node) *parsetree.Tree {
	tree := parsetree.New(parsetree.AssetDeclaration, p.curToken, decorators...)

	if !p.expectPeek(lexer.IDENT) {
		return nil
	}
	tree.Add(parsetree.NewLeaf(p.curToken))

	if !p.expectPeek(lexer.LBRACE) {
		return nil
	}

	for !p.peekTokenIs(lexer.RBRACE) {
		if !p.expectPeek(lexer.IDENT) {
			return nil
		}
		field := parsetree.New(parsetree.AssetField, p.curToken, parsetree.NewLeaf(p.curToken))
		if p.peekTokenIs(lexer.COLON) {
			p.nextToken()
			p.nextToken()
			typ := p.parseType()
			if typ == nil {
				return nil
			}
			field.Add(typ)
		}
		tree.Add(field)

		if p.peekTokenIs(lexer.SEMICOLON) || p.peekTokenIs(lexer.COMMA) {
			p.nextToken()
		}
	}
	p.nextToken()

	return tree
}

// parseTraitDeclaration parses trait Name { fn(params): type; ... }.
func (p *Parser) parseTraitDeclaration() *parsetree.Tree {
	tree := parsetree.New(parsetree.TraitDeclaration, p.curToken)

	if !p.expectPeek(lexer.IDENT) {
		return nil
	}
	tree.Add(parsetree.NewLeaf(p.curToken))

	if !p.expectPeek(lexer.LBRACE) {
		return nil
	}

	for !p.peekTokenIs(lexer.RBRACE) {
		if !p.expectPeek(lexer.IDENT) {
			return nil
		}
		sig := parsetree.New(parsetree.FunctionSignature, p.curToken, parsetree.NewLeaf(p.curToken))

		if !p.expectPeek(lexer.LPAREN) {
			return nil
		}
		params := p.parseParameters(true)
		if params == nil {
			return nil
		}
		sig.Add(params)

		if !p.expectPeek(lexer.COLON) {
			return nil
		}
		p.nextToken()
		ret := p.parseType()
		if ret == nil {
			return nil
		}
		sig.Add(ret)
		tree.Add(sig)

		p.skipSemicolon()
	}
	p.nextToken()

	return tree
}

// parseIfStatement emits (if_statement cond block [cond block]... [block]).
func (p *Parser) parseIfStatement() *parsetree.Tree {
	tree := parsetree.New(parsetree.IfStatement, p.curToken)

	cond, block := p.parseConditionAndBlock()
	if cond == nil || block == nil {
		return nil
	}
	tree.Add(cond, block)

	for p.peekTokenIs(lexer.ELSE) {
		p.nextToken()

		if p.peekTokenIs(lexer.IF) {
			p.nextToken()
			cond, block := p.parseConditionAndBlock()
			if cond == nil || block == nil {
				return nil
			}
			tree.Add(cond, block)
			continue
		}

		if !p.expectPeek(lexer.LBRACE) {
			return nil
		}
		elseBlock := p.parseBlock()
		if elseBlock == nil {
			return nil
		}
		tree.Add(elseBlock)
		break
	}

	return tree
}

// parseConditionAndBlock parses '(' expression ')' block with curToken on
// the keyword before the condition.
func (p *Parser) parseConditionAndBlock() (parsetree.Node, *parsetree.Tree) {
	if !p.expectPeek(lexer.LPAREN) {
		return nil, nil
	}
	p.nextToken()
	cond := p.parseExpression()
	if cond == nil {
		return nil, nil
	}
	if !p.expectPeek(lexer.RPAREN) || !p.expectPeek(lexer.LBRACE) {
		return nil, nil
	}
	block := p.parseBlock()
	if block == nil {
		return nil, nil
	}
	return cond, block
}

func (p *Parser) parseTryCatchStatement() *parsetree.Tree {
	tree := parsetree.New(parsetree.TryCatchStatement, p.curToken)

	if !p.expectPeek(lexer.LBRACE) {
		return nil
	}
	body := p.parseBlock()
	if body == nil {
		return nil
	}
	tree.Add(body)

	if !p.expectPeek(lexer.CATCH) || !p.expectPeek(lexer.LPAREN) || !p.expectPeek(lexer.IDENT) {
		return nil
	}
	tree.Add(parsetree.NewLeaf(p.curToken))

	if !p.expectPeek(lexer.RPAREN) || !p.expectPeek(lexer.LBRACE) {
		return nil
	}
	handler := p.parseBlock()
	if handler == nil {
		return nil
	}
	tree.Add(handler)

	return tree
}

func (p *Parser) parseThrowStatement() *parsetree.Tree {
	tree := parsetree.New(parsetree.ThrowStatement, p.curToken)
	p.nextToken()
	expr := p.parseExpression()
	if expr == nil {
		return nil
	}
	tree.Add(expr)
	p.skipSemicolon()
	return tree
}

func (p *Parser) parseReturnStatement() *parsetree.Tree {
	tree := parsetree.New(parsetree.ReturnStatement, p.curToken)

	if p.peekTokenIs(lexer.SEMICOLON) {
		p.nextToken()
		return tree
	}
	if p.peekTokenIs(lexer.RBRACE) || p.peekTokenIs(lexer.EOF) {
		return tree
	}

	p.nextToken()
	expr := p.parseExpression()
	if expr == nil {
		return nil
	}
	tree.Add(expr)
	p.skipSemicolon()
	return tree
}

// parseImportDeclaration parses import { A, B } from './module';
func (p *Parser) parseImportDeclaration() *parsetree.Tree {
	tree := parsetree.New(parsetree.ImportDeclaration, p.curToken)

	if !p.expectPeek(lexer.LBRACE) {
		return nil
	}
	for {
		if !p.expectPeek(lexer.IDENT) {
			return nil
		}
		tree.Add(parsetree.NewLeaf(p.curToken))
		if p.peekTokenIs(lexer.COMMA) {
			p.nextToken()
			continue
		}
		if !p.expectPeek(lexer.RBRACE) {
			return nil
		}
		break
	}

	if !p.peekTokenIs(lexer.IDENT) || p.peekToken.Literal != "from" {
		p.addError("SYNTAX-0001", p.peekToken.Line, p.peekToken.Column, map[string]any{
			"Expected": "'from'",
			"Got":      tokenDisplay(p.peekToken),
		})
		return nil
	}
	p.nextToken()

	if !p.expectPeek(lexer.STRING) {
		return nil
	}
	tree.Add(parsetree.NewLeaf(p.curToken))

	p.skipSemicolon()
	return tree
}

func (p *Parser) parseExportDeclaration() *parsetree.Tree {
	tree := parsetree.New(parsetree.ExportDeclaration, p.curToken)
	p.nextToken()
	decl := p.parseStatement()
	if decl == nil {
		return nil
	}
	tree.Add(decl)
	return tree
}

func (p *Parser) parseExpressionStatement() *parsetree.Tree {
	tree := parsetree.New(parsetree.ExpressionStatement, p.curToken)
	expr := p.parseExpression()
	if expr == nil {
		return nil
	}
	tree.Add(expr)
	p.skipSemicolon()
	return tree
}

// Expressions
//
// Every expression parser starts with curToken on the first token of the
// expression and finishes with curToken on its last token. A nil result
// means an error was recorded.

func (p *Parser) parseExpression() parsetree.Node {
	return p.parseAssignment()
}

func (p *Parser) parseAssignment() parsetree.Node {
	left := p.parseConditional()
	if left == nil {
		return nil
	}
	if !p.peekTokenIs(lexer.ASSIGN) {
		return left
	}

	p.nextToken()
	tree := parsetree.New(parsetree.AssignmentExpression, p.curToken)
	p.nextToken()
	right := p.parseAssignment()
	if right == nil {
		return nil
	}
	tree.Add(left, right)
	return tree
}

func (p *Parser) parseConditional() parsetree.Node {
	cond := p.parseBinary(0)
	if cond == nil {
		return nil
	}
	if !p.peekTokenIs(lexer.QUESTION) {
		return cond
	}

	p.nextToken()
	tree := parsetree.New(parsetree.ConditionalExpr, p.curToken, cond)

	p.nextToken()
	whenTrue := p.parseExpression()
	if whenTrue == nil || !p.expectPeek(lexer.COLON) {
		return nil
	}
	p.nextToken()
	whenFalse := p.parseConditional()
	if whenFalse == nil {
		return nil
	}
	tree.Add(whenTrue, whenFalse)
	return tree
}

// parseBinary parses binaryLevels[level] as [term op term op term ...].
func (p *Parser) parseBinary(level int) parsetree.Node {
	if level == len(binaryLevels) {
		return p.parseUnary()
	}
	lvl := binaryLevels[level]

	left := p.parseBinary(level + 1)
	if left == nil {
		return nil
	}
	if !p.peekTokenIn(lvl.ops) {
		return left
	}

	line, col := left.Position()
	tree := &parsetree.Tree{Rule: lvl.rule, Line: line, Column: col}
	tree.Add(left)

	for p.peekTokenIn(lvl.ops) {
		p.nextToken()
		tree.Add(parsetree.NewLeaf(p.curToken))
		p.nextToken()
		right := p.parseBinary(level + 1)
		if right == nil {
			return nil
		}
		tree.Add(right)
	}

	return tree
}

func (p *Parser) parseUnary() parsetree.Node {
	if p.curTokenIs(lexer.BANG) || p.curTokenIs(lexer.MINUS) {
		tree := parsetree.New(parsetree.UnaryExpression, p.curToken, parsetree.NewLeaf(p.curToken))
		p.nextToken()
		operand := p.parseUnary()
		if operand == nil {
			return nil
		}
		tree.Add(operand)
		return tree
	}
	return p.parsePostfix()
}

// parsePostfix parses a primary followed by call, member, is and as suffixes.
func (p *Parser) parsePostfix() parsetree.Node {
	primary := p.parsePrimary()
	if primary == nil {
		return nil
	}

	var suffixes []parsetree.Node
	for {
		var suffix *parsetree.Tree

		switch p.peekToken.Type {
		case lexer.LPAREN:
			p.nextToken()
			suffix = parsetree.New(parsetree.CallSuffix, p.curToken)
			args, ok := p.parseCallArguments()
			if !ok {
				return nil
			}
			suffix.Add(args...)
		case lexer.DOT:
			p.nextToken()
			if !p.expectPeek(lexer.IDENT) {
				return nil
			}
			suffix = parsetree.New(parsetree.MemberSuffix, p.curToken, parsetree.NewLeaf(p.curToken))
		case lexer.IS, lexer.AS:
			p.nextToken()
			rule := parsetree.IsSuffix
			if p.curTokenIs(lexer.AS) {
				rule = parsetree.AsSuffix
			}
			suffix = parsetree.New(rule, p.curToken)
			p.nextToken()
			typ := p.parseType()
			if typ == nil {
				return nil
			}
			suffix.Add(typ)
		}

		if suffix == nil {
			break
		}
		suffixes = append(suffixes, suffix)
	}

	if len(suffixes) == 0 {
		return primary
	}
	line, col := primary.Position()
	tree := &parsetree.Tree{Rule: parsetree.PostfixExpression, Line: line, Column: col}
	tree.Add(primary)
	tree.Add(suffixes...)
	return tree
}

// parseCallArguments parses '(' args ')' starting at '('.
func (p *Parser) parseCallArguments() ([]parsetree.Node, bool) {
	var args []parsetree.Node

	if p.peekTokenIs(lexer.RPAREN) {
		p.nextToken()
		return args, true
	}

	for {
		p.nextToken()
		arg := p.parseExpression()
		if arg == nil {
			return nil, false
		}
		args = append(args, arg)

		if p.peekTokenIs(lexer.COMMA) {
			p.nextToken()
			if p.peekTokenIs(lexer.RPAREN) {
				p.nextToken()
				return args, true
			}
			continue
		}
		if !p.expectPeek(lexer.RPAREN) {
			return nil, false
		}
		return args, true
	}
}

func (p *Parser) parsePrimary() parsetree.Node {
	switch p.curToken.Type {
	case lexer.IDENT:
		if p.peekTokenIs(lexer.ARROW) {
			return p.parseSingleParamLambda()
		}
		return parsetree.NewLeaf(p.curToken)
	case lexer.INT, lexer.FLOAT, lexer.STRING, lexer.TRUE, lexer.FALSE, lexer.NONE, lexer.PRINCIPAL:
		return parsetree.New(parsetree.Literal, p.curToken, parsetree.NewLeaf(p.curToken))
	case lexer.LPAREN:
		if p.isLambdaAhead() {
			return p.parseLambda()
		}
		p.nextToken()
		expr := p.parseExpression()
		if expr == nil || !p.expectPeek(lexer.RPAREN) {
			return nil
		}
		return expr
	case lexer.LBRACKET:
		return p.parseListOrComprehension()
	case lexer.LBRACE:
		return p.parseTupleLiteral()
	case lexer.NEW:
		return p.parseNewExpression()
	case lexer.ILLEGAL:
		p.illegalTokenError(p.curToken)
		return nil
	}

	p.addError("SYNTAX-0002", p.curToken.Line, p.curToken.Column, map[string]any{
		"Token": tokenDisplay(p.curToken),
	})
	return nil
}

// isLambdaAhead reports whether the '(' at curToken opens a lambda
// parameter list, i.e. its matching ')' is followed by '=>'.
func (p *Parser) isLambdaAhead() bool {
	state := p.saveState()
	defer p.restoreState(state)

	depth := 1
	for depth > 0 {
		p.nextToken()
		switch p.curToken.Type {
		case lexer.LPAREN:
			depth++
		case lexer.RPAREN:
			depth--
		case lexer.EOF, lexer.ILLEGAL:
			return false
		}
	}
	return p.peekTokenIs(lexer.ARROW)
}

// parseLambda parses (params) => body with curToken on '('.
func (p *Parser) parseLambda() parsetree.Node {
	tree := parsetree.New(parsetree.LambdaExpression, p.curToken)
	params := p.parseParameters(false)
	if params == nil || !p.expectPeek(lexer.ARROW) {
		return nil
	}
	tree.Add(params)
	return p.parseLambdaBody(tree)
}

// parseSingleParamLambda parses x => body.
func (p *Parser) parseSingleParamLambda() parsetree.Node {
	tree := parsetree.New(parsetree.LambdaExpression, p.curToken)
	params := parsetree.New(parsetree.Parameters, p.curToken,
		parsetree.New(parsetree.Parameter, p.curToken, parsetree.NewLeaf(p.curToken)))
	tree.Add(params)
	p.nextToken()
	return p.parseLambdaBody(tree)
}

func (p *Parser) parseLambdaBody(tree *parsetree.Tree) parsetree.Node {
	p.nextToken()
	if p.curTokenIs(lexer.LBRACE) {
		body := p.parseBlock()
		if body == nil {
			return nil
		}
		tree.Add(body)
		return tree
	}
	body := p.parseExpression()
	if body == nil {
		return nil
	}
	tree.Add(body)
	return tree
}

// parseListOrComprehension parses [a, b, c] or [expr for x in xs if cond].
func (p *Parser) parseListOrComprehension() parsetree.Node {
	start := p.curToken

	if p.peekTokenIs(lexer.RBRACKET) {
		p.nextToken()
		return parsetree.New(parsetree.ListLiteral, start)
	}

	p.nextToken()
	first := p.parseExpression()
	if first == nil {
		return nil
	}

	if p.peekTokenIs(lexer.FOR) {
		tree := parsetree.New(parsetree.ListComprehension, start, first)
		p.nextToken()
		if !p.expectPeek(lexer.IDENT) {
			return nil
		}
		tree.Add(parsetree.NewLeaf(p.curToken))
		if !p.expectPeek(lexer.IN) {
			return nil
		}
		p.nextToken()
		iterable := p.parseExpression()
		if iterable == nil {
			return nil
		}
		tree.Add(iterable)

		if p.peekTokenIs(lexer.IF) {
			p.nextToken()
			p.nextToken()
			cond := p.parseExpression()
			if cond == nil {
				return nil
			}
			tree.Add(cond)
		}

		if !p.expectPeek(lexer.RBRACKET) {
			return nil
		}
		return tree
	}

	tree := parsetree.New(parsetree.ListLiteral, start, first)
	for p.peekTokenIs(lexer.COMMA) {
		p.nextToken()
		if p.peekTokenIs(lexer.RBRACKET) {
			break
		}
		p.nextToken()
		elem := p.parseExpression()
		if elem == nil {
			return nil
		}
		tree.Add(elem)
	}
	if !p.expectPeek(lexer.RBRACKET) {
		return nil
	}
	return tree
}

// parseTupleLiteral parses { key: value, ... }.
func (p *Parser) parseTupleLiteral() parsetree.Node {
	tree := parsetree.New(parsetree.TupleLiteral, p.curToken)

	for !p.peekTokenIs(lexer.RBRACE) {
		p.nextToken()
		if !p.curTokenIs(lexer.IDENT) && !p.curTokenIs(lexer.STRING) {
			p.addError("SYNTAX-0001", p.curToken.Line, p.curToken.Column, map[string]any{
				"Expected": "field name",
				"Got":      tokenDisplay(p.curToken),
			})
			return nil
		}
		item := parsetree.New(parsetree.TupleItem, p.curToken, parsetree.NewLeaf(p.curToken))

		if !p.expectPeek(lexer.COLON) {
			return nil
		}
		p.nextToken()
		value := p.parseExpression()
		if value == nil {
			return nil
		}
		item.Add(value)
		tree.Add(item)

		if !p.peekTokenIs(lexer.COMMA) {
			break
		}
		p.nextToken()
	}

	if !p.expectPeek(lexer.RBRACE) {
		return nil
	}
	return tree
}

// parseNewExpression parses new Name<T, U>(args).
func (p *Parser) parseNewExpression() parsetree.Node {
	tree := parsetree.New(parsetree.NewExpression, p.curToken)

	if !p.expectPeek(lexer.IDENT) {
		return nil
	}
	tree.Add(parsetree.NewLeaf(p.curToken))

	if p.peekTokenIs(lexer.LT) {
		p.nextToken()
		args := p.parseTypeArguments()
		if args == nil {
			return nil
		}
		tree.Add(args...)
	}

	if !p.expectPeek(lexer.LPAREN) {
		return nil
	}
	argTree := parsetree.New(parsetree.Arguments, p.curToken)
	args, ok := p.parseCallArguments()
	if !ok {
		return nil
	}
	argTree.Add(args...)
	tree.Add(argTree)

	return tree
}

// Types

// parseType parses a type with curToken on its first token.
func (p *Parser) parseType() parsetree.Node {
	if p.curTokenIs(lexer.LBRACE) {
		return p.parseTupleType()
	}
	if !p.curTokenIs(lexer.IDENT) {
		p.addError("SYNTAX-0006", p.curToken.Line, p.curToken.Column, map[string]any{
			"Got": tokenDisplay(p.curToken),
		})
		return nil
	}

	start := p.curToken
	var rule string
	arity := 0
	switch strings.ToLower(start.Literal) {
	case "list":
		rule, arity = parsetree.ListType, 1
	case "optional":
		rule, arity = parsetree.OptionalType, 1
	case "response":
		rule, arity = parsetree.ResponseType, 2
	}

	if rule == "" || !p.peekTokenIs(lexer.LT) {
		return parsetree.New(parsetree.Type, start, parsetree.NewLeaf(start))
	}

	p.nextToken()
	args := p.parseTypeArguments()
	if args == nil {
		return nil
	}
	if len(args) != arity {
		p.addError("SYNTAX-0001", start.Line, start.Column, map[string]any{
			"Expected": fmt.Sprintf("%d type argument(s) for %s", arity, start.Literal),
			"Got":      fmt.Sprintf("%d", len(args)),
		})
		return nil
	}
	return parsetree.New(rule, start, args...)
}

// parseTypeArguments parses '<' type (',' type)* '>' with curToken on '<'.
func (p *Parser) parseTypeArguments() []parsetree.Node {
	var args []parsetree.Node
	for {
		p.nextToken()
		typ := p.parseType()
		if typ == nil {
			return nil
		}
		args = append(args, typ)

		if p.peekTokenIs(lexer.COMMA) {
			p.nextToken()
			continue
		}
		if !p.expectTypeClose() {
			return nil
		}
		return args
	}
}

// expectTypeClose consumes a closing '>' of a type argument list. A '>>'
// token closes two lists; the second half is pushed back.
func (p *Parser) expectTypeClose() bool {
	if p.peekTokenIs(lexer.SHR) {
		shr := p.peekToken
		second := lexer.Token{Type: lexer.GT, Literal: ">", Line: shr.Line, Column: shr.Column + 1}
		p.peekToken = lexer.Token{Type: lexer.GT, Literal: ">", Line: shr.Line, Column: shr.Column}
		p.nextToken()
		p.pending = append([]lexer.Token{p.peekToken}, p.pending...)
		p.peekToken = second
		return true
	}
	return p.expectPeek(lexer.GT)
}

// parseTupleType parses { name: type, ... } with curToken on '{'.
func (p *Parser) parseTupleType() parsetree.Node {
	tree := parsetree.New(parsetree.TupleType, p.curToken)

	for !p.peekTokenIs(lexer.RBRACE) {
		if !p.expectPeek(lexer.IDENT) {
			return nil
		}
		item := parsetree.New(parsetree.TupleTypeItem, p.curToken, parsetree.NewLeaf(p.curToken))
		if !p.expectPeek(lexer.COLON) {
			return nil
		}
		p.nextToken()
		typ := p.parseType()
		if typ == nil {
			return nil
		}
		item.Add(typ)
		tree.Add(item)

		if !p.peekTokenIs(lexer.COMMA) && !p.peekTokenIs(lexer.SEMICOLON) {
			break
		}
		p.nextToken()
	}

	if !p.expectPeek(lexer.RBRACE) {
		return nil
	}
	return tree
}

// Helpers

func (p *Parser) skipSemicolon() {
	if p.peekTokenIs(lexer.SEMICOLON) {
		p.nextToken()
	}
}

func (p *Parser) curTokenIs(t lexer.TokenType) bool {
	return p.curToken.Type == t
}

func (p *Parser) peekTokenIs(t lexer.TokenType) bool {
	return p.peekToken.Type == t
}

func (p *Parser) peekTokenIn(types []lexer.TokenType) bool {
	for _, t := range types {
		if p.peekToken.Type == t {
			return true
		}
	}
	return false
}

func (p *Parser) expectPeek(t lexer.TokenType) bool {
	if p.peekTokenIs(t) {
		p.nextToken()
		return true
	}
	p.peekError(t)
	return false
}

func (p *Parser) peekError(t lexer.TokenType) {
	// Report at the position after the last successfully parsed token.
	line := p.curToken.Line
	column := p.curToken.Column + len(p.curToken.Literal)

	p.addError("SYNTAX-0001", line, column, map[string]any{
		"Expected": tokenTypeToReadableName(t),
		"Got":      tokenDisplay(p.peekToken),
	})
}

func tokenDisplay(tok lexer.Token) string {
	if tok.Type == lexer.EOF {
		return "end of input"
	}
	if tok.Literal == "" {
		return tokenTypeToReadableName(tok.Type)
	}
	return tok.Literal
}

func tokenTypeToReadableName(t lexer.TokenType) string {
	switch t {
	case lexer.IDENT:
		return "identifier"
	case lexer.INT:
		return "integer"
	case lexer.FLOAT:
		return "float"
	case lexer.STRING:
		return "string"
	case lexer.PRINCIPAL:
		return "principal"
	case lexer.DECORATOR:
		return "decorator"
	case lexer.EOF:
		return "end of input"
	case lexer.FUNCTION, lexer.LET, lexer.CONST, lexer.CLASS, lexer.TRAIT, lexer.IF,
		lexer.ELSE, lexer.TRY, lexer.CATCH, lexer.THROW, lexer.RETURN, lexer.IMPORT,
		lexer.EXPORT, lexer.NEW, lexer.FOR, lexer.IN, lexer.IS, lexer.AS:
		return "'" + strings.ToLower(t.String()) + "'"
	}
	return "'" + t.String() + "'"
}
