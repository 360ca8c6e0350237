// Package ast defines the typed intermediate representation built from the
// parse tree and rendered by the code generator.
//
// Statements, expressions and types are closed sum types: each interface is
// sealed by an unexported marker method so only this package can add
// variants. Nodes are created once by the builder and never mutated.
package ast

import (
	"bytes"
	"strings"

	"github.com/sambeau/stxscript/pkg/stxscript/lexer"
)

// Node represents any node in the AST
type Node interface {
	TokenLiteral() string
	String() string
}

// Statement represents statement nodes
type Statement interface {
	Node
	statementNode()
}

// Expression represents expression nodes
type Expression interface {
	Node
	expressionNode()
}

// Program represents the root node of every AST
type Program struct {
	Statements []Statement
}

func (p *Program) TokenLiteral() string {
	if len(p.Statements) > 0 {
		return p.Statements[0].TokenLiteral()
	}
	return ""
}

func (p *Program) String() string {
	parts := make([]string, len(p.Statements))
	for i, s := range p.Statements {
		parts[i] = s.String()
	}
	return strings.Join(parts, "\n")
}

// Decorator is an @name annotation with an optional argument, which is
// either an Expression or, for @map, a TupleType.
type Decorator struct {
	Token    lexer.Token
	Name     string // without the '@'
	Argument Node
}

func (d *Decorator) TokenLiteral() string { return d.Token.Literal }
func (d *Decorator) String() string {
	if d.Argument == nil {
		return "@" + d.Name
	}
	return "@" + d.Name + "(" + d.Argument.String() + ")"
}

// Parameter is a name with a type. Lambda parameters may omit the type.
type Parameter struct {
	Token lexer.Token
	Name  *Identifier
	Type  Type
}

func (p *Parameter) TokenLiteral() string { return p.Token.Literal }
func (p *Parameter) String() string {
	if p.Type == nil {
		return p.Name.String()
	}
	return p.Name.String() + ": " + p.Type.String()
}

// Block is an ordered sequence of statements.
type Block struct {
	Token      lexer.Token
	Statements []Statement
}

func (b *Block) TokenLiteral() string { return b.Token.Literal }
func (b *Block) String() string {
	var out bytes.Buffer
	out.WriteString("{ ")
	for _, s := range b.Statements {
		out.WriteString(s.String())
		out.WriteString(" ")
	}
	out.WriteString("}")
	return out.String()
}

// ElseIf is one else-if clause of an IfStatement.
type ElseIf struct {
	Token       lexer.Token
	Condition   Expression
	Consequence *Block
}

func (e *ElseIf) TokenLiteral() string { return e.Token.Literal }
func (e *ElseIf) String() string {
	return "else if (" + e.Condition.String() + ") " + e.Consequence.String()
}

// Statements

// FunctionDeclaration is a function definition, or a trait signature when
// Body is nil. Visibility is derived from the decorators when rendering.
type FunctionDeclaration struct {
	Token      lexer.Token
	Decorators []*Decorator
	Name       *Identifier
	Parameters []*Parameter
	ReturnType Type
	Body       *Block
}

func (fd *FunctionDeclaration) statementNode()       {}
func (fd *FunctionDeclaration) TokenLiteral() string { return fd.Token.Literal }
func (fd *FunctionDeclaration) String() string {
	var out bytes.Buffer
	for _, d := range fd.Decorators {
		out.WriteString(d.String())
		out.WriteString(" ")
	}
	if fd.Body != nil {
		out.WriteString("function ")
	}
	out.WriteString(fd.Name.String())
	out.WriteString("(")
	out.WriteString(joinParams(fd.Parameters))
	out.WriteString(")")
	if fd.ReturnType != nil {
		out.WriteString(": ")
		out.WriteString(fd.ReturnType.String())
	}
	if fd.Body != nil {
		out.WriteString(" ")
		out.WriteString(fd.Body.String())
	} else {
		out.WriteString(";")
	}
	return out.String()
}

// HasDecorator reports whether the function carries @name.
func (fd *FunctionDeclaration) HasDecorator(name string) bool {
	for _, d := range fd.Decorators {
		if d.Name == name {
			return true
		}
	}
	return false
}

// VariableDeclaration is a let binding.
type VariableDeclaration struct {
	Token lexer.Token
	Name  *Identifier
	Type  Type
	Value Expression
}

func (vd *VariableDeclaration) statementNode()       {}
func (vd *VariableDeclaration) TokenLiteral() string { return vd.Token.Literal }
func (vd *VariableDeclaration) String() string {
	return bindingString("let", vd.Name, vd.Type, vd.Value)
}

// ConstantDeclaration is a const binding. A @map constant carries its map
// shape in Map and renders as a map definition.
type ConstantDeclaration struct {
	Token      lexer.Token
	Decorators []*Decorator
	Name       *Identifier
	Type       Type
	Value      Expression
	Map        *MapDeclaration
}

func (cd *ConstantDeclaration) statementNode()       {}
func (cd *ConstantDeclaration) TokenLiteral() string { return cd.Token.Literal }
func (cd *ConstantDeclaration) String() string {
	s := bindingString("const", cd.Name, cd.Type, cd.Value)
	for i := len(cd.Decorators) - 1; i >= 0; i-- {
		s = cd.Decorators[i].String() + " " + s
	}
	return s
}

// MapDeclaration declares a key/value map.
type MapDeclaration struct {
	Token     lexer.Token
	Name      *Identifier
	KeyType   Type
	ValueType Type
}

func (md *MapDeclaration) statementNode()       {}
func (md *MapDeclaration) TokenLiteral() string { return md.Token.Literal }
func (md *MapDeclaration) String() string {
	return "map " + md.Name.String() + ": Map<" + md.KeyType.String() + ", " + md.ValueType.String() + ">;"
}

// AssetDeclaration declares a non-fungible token class.
type AssetDeclaration struct {
	Token  lexer.Token
	Name   *Identifier
	Fields []*Parameter
}

func (ad *AssetDeclaration) statementNode()       {}
func (ad *AssetDeclaration) TokenLiteral() string { return ad.Token.Literal }
func (ad *AssetDeclaration) String() string {
	var out bytes.Buffer
	out.WriteString("@asset class ")
	out.WriteString(ad.Name.String())
	out.WriteString(" { ")
	for _, f := range ad.Fields {
		out.WriteString(f.String())
		out.WriteString("; ")
	}
	out.WriteString("}")
	return out.String()
}

// TraitDeclaration declares a set of function signatures.
type TraitDeclaration struct {
	Token     lexer.Token
	Name      *Identifier
	Functions []*FunctionDeclaration
}

func (td *TraitDeclaration) statementNode()       {}
func (td *TraitDeclaration) TokenLiteral() string { return td.Token.Literal }
func (td *TraitDeclaration) String() string {
	var out bytes.Buffer
	out.WriteString("trait ")
	out.WriteString(td.Name.String())
	out.WriteString(" { ")
	for _, f := range td.Functions {
		out.WriteString(f.String())
		out.WriteString(" ")
	}
	out.WriteString("}")
	return out.String()
}

// IfStatement owns its condition, consequence, else-if chain and optional
// else block.
type IfStatement struct {
	Token       lexer.Token
	Condition   Expression
	Consequence *Block
	ElseIfs     []*ElseIf
	Alternative *Block
}

func (is *IfStatement) statementNode()       {}
func (is *IfStatement) TokenLiteral() string { return is.Token.Literal }
func (is *IfStatement) String() string {
	var out bytes.Buffer
	out.WriteString("if (")
	out.WriteString(is.Condition.String())
	out.WriteString(") ")
	out.WriteString(is.Consequence.String())
	for _, ei := range is.ElseIfs {
		out.WriteString(" ")
		out.WriteString(ei.String())
	}
	if is.Alternative != nil {
		out.WriteString(" else ")
		out.WriteString(is.Alternative.String())
	}
	return out.String()
}

type TryCatchStatement struct {
	Token    lexer.Token
	Body     *Block
	ErrorVar *Identifier
	Handler  *Block
}

func (tc *TryCatchStatement) statementNode()       {}
func (tc *TryCatchStatement) TokenLiteral() string { return tc.Token.Literal }
func (tc *TryCatchStatement) String() string {
	return "try " + tc.Body.String() + " catch (" + tc.ErrorVar.String() + ") " + tc.Handler.String()
}

type ThrowStatement struct {
	Token lexer.Token
	Value Expression
}

func (ts *ThrowStatement) statementNode()       {}
func (ts *ThrowStatement) TokenLiteral() string { return ts.Token.Literal }
func (ts *ThrowStatement) String() string       { return "throw " + ts.Value.String() + ";" }

type ReturnStatement struct {
	Token lexer.Token
	Value Expression // nil for a bare return
}

func (rs *ReturnStatement) statementNode()       {}
func (rs *ReturnStatement) TokenLiteral() string { return rs.Token.Literal }
func (rs *ReturnStatement) String() string {
	if rs.Value == nil {
		return "return;"
	}
	return "return " + rs.Value.String() + ";"
}

type ExpressionStatement struct {
	Token      lexer.Token
	Expression Expression
}

func (es *ExpressionStatement) statementNode()       {}
func (es *ExpressionStatement) TokenLiteral() string { return es.Token.Literal }
func (es *ExpressionStatement) String() string       { return es.Expression.String() + ";" }

// ImportDeclaration imports traits from another contract module.
type ImportDeclaration struct {
	Token   lexer.Token
	Imports []*Identifier
	Module  string
}

func (id *ImportDeclaration) statementNode()       {}
func (id *ImportDeclaration) TokenLiteral() string { return id.Token.Literal }
func (id *ImportDeclaration) String() string {
	names := make([]string, len(id.Imports))
	for i, n := range id.Imports {
		names[i] = n.String()
	}
	return "import { " + strings.Join(names, ", ") + " } from '" + id.Module + "';"
}

type ExportDeclaration struct {
	Token       lexer.Token
	Declaration Statement
}

func (ed *ExportDeclaration) statementNode()       {}
func (ed *ExportDeclaration) TokenLiteral() string { return ed.Token.Literal }
func (ed *ExportDeclaration) String() string       { return "export " + ed.Declaration.String() }

func bindingString(keyword string, name *Identifier, typ Type, value Expression) string {
	var out bytes.Buffer
	out.WriteString(keyword)
	out.WriteString(" ")
	out.WriteString(name.String())
	if typ != nil {
		out.WriteString(": ")
		out.WriteString(typ.String())
	}
	if value != nil {
		out.WriteString(" = ")
		out.WriteString(value.String())
	}
	out.WriteString(";")
	return out.String()
}

func joinParams(params []*Parameter) string {
	parts := make([]string, len(params))
	for i, p := range params {
		parts[i] = p.String()
	}
	return strings.Join(parts, ", ")
}
