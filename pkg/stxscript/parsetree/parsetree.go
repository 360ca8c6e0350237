// Package parsetree defines the generic parse tree produced by the parser
// and consumed by the AST builder. A tree node is named by the grammar rule
// that produced it; its children are sub-trees or raw tokens.
package parsetree

import (
	"strings"

	"github.com/sambeau/stxscript/pkg/stxscript/lexer"
)

// Grammar rule names.
const (
	Program              = "program"
	FunctionDeclaration  = "function_declaration"
	Decorator            = "decorator"
	VariableDeclaration  = "variable_declaration"
	ConstantDeclaration  = "constant_declaration"
	MapDeclaration       = "map_declaration"
	AssetDeclaration     = "asset_declaration"
	AssetField           = "asset_field"
	TraitDeclaration     = "trait_declaration"
	FunctionSignature    = "function_signature"
	ExpressionStatement  = "expression_statement"
	IfStatement          = "if_statement"
	TryCatchStatement    = "try_catch_statement"
	ThrowStatement       = "throw_statement"
	ReturnStatement      = "return_statement"
	ImportDeclaration    = "import_declaration"
	ExportDeclaration    = "export_declaration"
	Block                = "block"
	Parameters           = "parameters"
	Parameter            = "parameter"
	Arguments            = "arguments"
	AssignmentExpression = "assignment_expression"
	ConditionalExpr      = "conditional_expression"
	LogicalOr            = "logical_or_expression"
	LogicalAnd           = "logical_and_expression"
	BitwiseOr            = "bitwise_or_expression"
	BitwiseXor           = "bitwise_xor_expression"
	BitwiseAnd           = "bitwise_and_expression"
	Equality             = "equality_expression"
	Relational           = "relational_expression"
	Shift                = "shift_expression"
	Additive             = "additive_expression"
	Multiplicative       = "multiplicative_expression"
	UnaryExpression      = "unary_expression"
	PostfixExpression    = "postfix_expression"
	CallSuffix           = "call_expression"
	MemberSuffix         = "member_expression"
	IsSuffix             = "is_expression"
	AsSuffix             = "as_expression"
	ListLiteral          = "array_or_list_literal"
	TupleLiteral         = "object_or_tuple_literal"
	TupleItem            = "object_or_tuple_item"
	ListComprehension    = "list_comprehension"
	LambdaExpression     = "lambda_expression"
	NewExpression        = "new_expression"
	Literal              = "literal"
	Type                 = "type"
	ListType             = "list_type"
	TupleType            = "tuple_type"
	TupleTypeItem        = "tuple_type_item"
	OptionalType         = "optional_type"
	ResponseType         = "response_type"
)

// Node is either a *Tree or a Leaf.
type Node interface {
	Position() (line, column int)
	String() string
}

// Tree is one application of a grammar rule.
type Tree struct {
	Rule     string
	Children []Node
	Line     int
	Column   int
}

// New creates a tree for rule positioned at tok.
func New(rule string, tok lexer.Token, children ...Node) *Tree {
	return &Tree{Rule: rule, Children: children, Line: tok.Line, Column: tok.Column}
}

// Add appends children to the tree.
func (t *Tree) Add(children ...Node) {
	t.Children = append(t.Children, children...)
}

func (t *Tree) Position() (int, int) { return t.Line, t.Column }

// String renders the tree as an s-expression, e.g.
// (additive_expression a + b).
func (t *Tree) String() string {
	var sb strings.Builder
	sb.WriteString("(")
	sb.WriteString(t.Rule)
	for _, c := range t.Children {
		sb.WriteString(" ")
		sb.WriteString(c.String())
	}
	sb.WriteString(")")
	return sb.String()
}

// Leaf is a raw token in the tree.
type Leaf struct {
	Token lexer.Token
}

// NewLeaf wraps tok as a tree child.
func NewLeaf(tok lexer.Token) Leaf {
	return Leaf{Token: tok}
}

func (l Leaf) Position() (int, int) { return l.Token.Line, l.Token.Column }

func (l Leaf) String() string {
	switch l.Token.Type {
	case lexer.STRING:
		return `"` + l.Token.Literal + `"`
	case lexer.PRINCIPAL:
		return "'" + l.Token.Literal
	}
	return l.Token.Literal
}

// Walk calls fn for t and every descendant tree, depth first. Returning
// false from fn skips the children of that tree.
func Walk(t *Tree, fn func(*Tree) bool) {
	if t == nil || !fn(t) {
		return
	}
	for _, c := range t.Children {
		if sub, ok := c.(*Tree); ok {
			Walk(sub, fn)
		}
	}
}
