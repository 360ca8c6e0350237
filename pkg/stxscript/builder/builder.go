// Package builder converts a parse tree into the typed AST.
//
// Conversion is bottom-up: the children of a production are converted
// first and the rule for the production receives their items. All
// disambiguation of the source syntax happens here, so the code generator
// only ever sees unambiguous node kinds. The first error aborts the build.
package builder

import (
	"strconv"
	"strings"
	"unicode"

	"github.com/sambeau/stxscript/pkg/stxscript/ast"
	perrors "github.com/sambeau/stxscript/pkg/stxscript/errors"
	"github.com/sambeau/stxscript/pkg/stxscript/lexer"
	"github.com/sambeau/stxscript/pkg/stxscript/parsetree"
	"github.com/sambeau/stxscript/pkg/stxscript/trace"
)

// Options configures a Builder.
type Options struct {
	// Assets names identifiers to treat as assets in addition to the
	// classes declared with @asset in the program.
	Assets []string
	// Logger receives one line per rule application. Nil disables tracing.
	Logger trace.Logger
}

// Builder holds the per-build state: the set of known asset names.
type Builder struct {
	assets map[string]bool
	logger trace.Logger
}

type ruleFunc func(b *Builder, t *parsetree.Tree, items []item) (item, error)

var rules = map[string]ruleFunc{
	parsetree.Program:              (*Builder).program,
	parsetree.Block:                (*Builder).block,
	parsetree.FunctionDeclaration:  (*Builder).functionDeclaration,
	parsetree.Decorator:            (*Builder).decorator,
	parsetree.Parameters:           (*Builder).parameters,
	parsetree.Parameter:            (*Builder).parameter,
	parsetree.Arguments:            (*Builder).arguments,
	parsetree.VariableDeclaration:  (*Builder).variableDeclaration,
	parsetree.ConstantDeclaration:  (*Builder).constantDeclaration,
	parsetree.MapDeclaration:       (*Builder).mapDeclaration,
	parsetree.AssetDeclaration:     (*Builder).assetDeclaration,
	parsetree.AssetField:           (*Builder).assetField,
	parsetree.TraitDeclaration:     (*Builder).traitDeclaration,
	parsetree.FunctionSignature:    (*Builder).functionSignature,
	parsetree.ExpressionStatement:  (*Builder).expressionStatement,
	parsetree.IfStatement:          (*Builder).ifStatement,
	parsetree.TryCatchStatement:    (*Builder).tryCatchStatement,
	parsetree.ThrowStatement:       (*Builder).throwStatement,
	parsetree.ReturnStatement:      (*Builder).returnStatement,
	parsetree.ImportDeclaration:    (*Builder).importDeclaration,
	parsetree.ExportDeclaration:    (*Builder).exportDeclaration,
	parsetree.AssignmentExpression: (*Builder).assignmentExpression,
	parsetree.ConditionalExpr:      (*Builder).conditionalExpression,
	parsetree.LogicalOr:            (*Builder).binaryExpression,
	parsetree.LogicalAnd:           (*Builder).binaryExpression,
	parsetree.BitwiseOr:            (*Builder).binaryExpression,
	parsetree.BitwiseXor:           (*Builder).binaryExpression,
	parsetree.BitwiseAnd:           (*Builder).binaryExpression,
	parsetree.Equality:             (*Builder).binaryExpression,
	parsetree.Relational:           (*Builder).binaryExpression,
	parsetree.Shift:                (*Builder).binaryExpression,
	parsetree.Additive:             (*Builder).binaryExpression,
	parsetree.Multiplicative:       (*Builder).binaryExpression,
	parsetree.UnaryExpression:      (*Builder).unaryExpression,
	parsetree.PostfixExpression:    (*Builder).postfixExpression,
	parsetree.CallSuffix:           (*Builder).call,
	parsetree.MemberSuffix:         (*Builder).member,
	parsetree.IsSuffix:             (*Builder).typeCheck,
	parsetree.AsSuffix:             (*Builder).typeAssertion,
	parsetree.ListLiteral:          (*Builder).listLiteral,
	parsetree.TupleLiteral:         (*Builder).tupleLiteral,
	parsetree.TupleItem:            (*Builder).tupleItem,
	parsetree.ListComprehension:    (*Builder).listComprehension,
	parsetree.LambdaExpression:     (*Builder).lambdaExpression,
	parsetree.NewExpression:        (*Builder).newExpression,
	parsetree.Literal:              (*Builder).literal,
	parsetree.Type:                 (*Builder).namedType,
	parsetree.ListType:             (*Builder).listType,
	parsetree.TupleType:            (*Builder).tupleType,
	parsetree.TupleTypeItem:        (*Builder).tupleTypeItem,
	parsetree.OptionalType:         (*Builder).optionalType,
	parsetree.ResponseType:         (*Builder).responseType,
}

// New creates a Builder.
func New(opts Options) *Builder {
	b := &Builder{
		assets: make(map[string]bool),
		logger: trace.OrNull(opts.Logger),
	}
	for _, name := range opts.Assets {
		b.assets[name] = true
	}
	return b
}

// Build converts a program tree with default options.
func Build(tree *parsetree.Tree) (*ast.Program, error) {
	return New(Options{}).Build(tree)
}

// Build converts a program tree into an AST. It never returns a partial
// program.
func (b *Builder) Build(tree *parsetree.Tree) (*ast.Program, error) {
	if tree == nil || tree.Rule != parsetree.Program {
		return nil, perrors.New("BUILD-0002", map[string]any{"Rule": "input", "Field": "program"})
	}

	b.collectAssets(tree)

	it, err := b.convert(tree)
	if err != nil {
		return nil, err
	}
	return it.(nodeItem).node.(*ast.Program), nil
}

// collectAssets records every @asset class name before conversion so calls
// that precede the declaration are still recognized.
func (b *Builder) collectAssets(tree *parsetree.Tree) {
	parsetree.Walk(tree, func(t *parsetree.Tree) bool {
		if t.Rule != parsetree.AssetDeclaration {
			return true
		}
		for _, c := range t.Children {
			if leaf, ok := c.(parsetree.Leaf); ok && leaf.Token.Type == lexer.IDENT {
				b.assets[leaf.Token.Literal] = true
				break
			}
		}
		return false
	})
}

func (b *Builder) convert(node parsetree.Node) (item, error) {
	switch n := node.(type) {
	case parsetree.Leaf:
		return b.token(n.Token)
	case *parsetree.Tree:
		items := make([]item, 0, len(n.Children))
		for _, c := range n.Children {
			it, err := b.convert(c)
			if err != nil {
				return nil, err
			}
			items = append(items, it)
		}

		rule, ok := rules[n.Rule]
		if !ok {
			return nil, perrors.NewWithPosition("BUILD-0008", n.Line, n.Column, map[string]any{"Rule": n.Rule})
		}
		result, err := rule(b, n, items)
		if err != nil {
			return nil, err
		}
		b.logger.LogLine("build", n.Rule, "->", result.kind())
		return result, nil
	}
	return nil, perrors.New("BUILD-0008", map[string]any{"Rule": node.String()})
}

// token converts a terminal.
func (b *Builder) token(tok lexer.Token) (item, error) {
	switch tok.Type {
	case lexer.IDENT:
		return nodeItem{&ast.Identifier{Token: tok, Value: tok.Literal}}, nil
	case lexer.INT:
		v, err := strconv.ParseInt(tok.Literal, 10, 64)
		if err != nil {
			return nil, perrors.NewWithPosition("BUILD-0010", tok.Line, tok.Column, map[string]any{"Literal": tok.Literal})
		}
		return nodeItem{&ast.Literal{Token: tok, Value: v}}, nil
	case lexer.FLOAT:
		v, err := strconv.ParseFloat(tok.Literal, 64)
		if err != nil {
			return nil, perrors.NewWithPosition("BUILD-0010", tok.Line, tok.Column, map[string]any{"Literal": tok.Literal})
		}
		return nodeItem{&ast.Literal{Token: tok, Value: v}}, nil
	case lexer.STRING:
		return nodeItem{&ast.Literal{Token: tok, Value: tok.Literal}}, nil
	case lexer.TRUE, lexer.FALSE:
		return nodeItem{&ast.Literal{Token: tok, Value: tok.Literal == "true"}}, nil
	case lexer.NONE:
		return nodeItem{&ast.OptionalLiteral{Token: tok}}, nil
	case lexer.PRINCIPAL:
		return nodeItem{&ast.PrincipalLiteral{Token: tok, Value: tok.Literal}}, nil
	}
	return tokenItem{tok}, nil
}

// Item accessors. Each reports a construction error positioned at the
// production when the item has the wrong shape.

func (b *Builder) expr(t *parsetree.Tree, it item) (ast.Expression, error) {
	if n, ok := it.(nodeItem); ok {
		if e, ok := n.node.(ast.Expression); ok {
			return e, nil
		}
	}
	if nw, ok := it.(newItem); ok {
		return nil, perrors.NewWithPosition("BUILD-0005", nw.tok.Line, nw.tok.Column, map[string]any{"Name": nw.name.Value})
	}
	return nil, unexpected(t, it)
}

func (b *Builder) exprs(t *parsetree.Tree, items []item) ([]ast.Expression, error) {
	out := make([]ast.Expression, 0, len(items))
	for _, it := range items {
		e, err := b.expr(t, it)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

func (b *Builder) stmt(t *parsetree.Tree, it item) (ast.Statement, error) {
	if n, ok := it.(nodeItem); ok {
		if s, ok := n.node.(ast.Statement); ok {
			return s, nil
		}
	}
	return nil, unexpected(t, it)
}

func (b *Builder) block(t *parsetree.Tree, items []item) (item, error) {
	blk := &ast.Block{Token: at(t, "{")}
	for _, it := range items {
		s, err := b.stmt(t, it)
		if err != nil {
			return nil, err
		}
		blk.Statements = append(blk.Statements, s)
	}
	return nodeItem{blk}, nil
}

func asBlock(t *parsetree.Tree, it item) (*ast.Block, error) {
	if n, ok := it.(nodeItem); ok {
		if blk, ok := n.node.(*ast.Block); ok {
			return blk, nil
		}
	}
	return nil, unexpected(t, it)
}

func asIdent(t *parsetree.Tree, it item) (*ast.Identifier, error) {
	if n, ok := it.(nodeItem); ok {
		if id, ok := n.node.(*ast.Identifier); ok {
			return id, nil
		}
	}
	return nil, unexpected(t, it)
}

func asType(t *parsetree.Tree, it item) (ast.Type, error) {
	if n, ok := it.(nodeItem); ok {
		if typ, ok := n.node.(ast.Type); ok {
			return typ, nil
		}
	}
	return nil, unexpected(t, it)
}

func unexpected(t *parsetree.Tree, it item) error {
	return perrors.NewWithPosition("BUILD-0009", t.Line, t.Column, map[string]any{
		"Got":  it.kind(),
		"Rule": t.Rule,
	})
}

func missing(t *parsetree.Tree, rule, field string) error {
	return perrors.NewWithPosition("BUILD-0002", t.Line, t.Column, map[string]any{
		"Rule":  rule,
		"Field": field,
	})
}

// need checks that a production has at least n children.
func need(t *parsetree.Tree, items []item, n int, rule, field string) error {
	if len(items) < n {
		return missing(t, rule, field)
	}
	return nil
}

// at synthesizes a token positioned at the production.
func at(t *parsetree.Tree, literal string) lexer.Token {
	return lexer.Token{Literal: literal, Line: t.Line, Column: t.Column}
}

// nftOperations are the methods that make an undeclared all-capitals name
// such as NFT an asset.
var nftOperations = map[string]bool{
	"mint":     true,
	"transfer": true,
	"burn":     true,
	"getOwner": true,
}

// isAsset reports whether name.fn(...) is an asset operation: name is
// declared with @asset or configured, or it is written in all capitals and
// fn is an NFT operation.
func (b *Builder) isAsset(name, fn string) bool {
	if b.assets[name] {
		return true
	}
	return isAllCaps(name) && nftOperations[fn]
}

func isAllCaps(name string) bool {
	if len(name) < 2 {
		return false
	}
	hasLetter := false
	for _, r := range name {
		switch {
		case unicode.IsUpper(r):
			hasLetter = true
		case unicode.IsDigit(r) || r == '_':
		default:
			return false
		}
	}
	return hasLetter
}

// isContractName reports whether name looks like a contract reference.
func isContractName(name string) bool {
	for _, r := range name {
		return unicode.IsUpper(r)
	}
	return false
}

func trimDecorator(literal string) string {
	return strings.TrimPrefix(literal, "@")
}
