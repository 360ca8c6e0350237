package ast

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"github.com/sambeau/stxscript/pkg/stxscript/lexer"
)

// Identifier is a name. Two identifiers are equal when their names are.
type Identifier struct {
	Token lexer.Token
	Value string
}

func (i *Identifier) expressionNode()      {}
func (i *Identifier) TokenLiteral() string { return i.Token.Literal }
func (i *Identifier) String() string       { return i.Value }

// Key returns the identity of the identifier for use as a map key.
func (i *Identifier) Key() string { return i.Value }

// Equal reports whether two identifiers name the same thing.
func (i *Identifier) Equal(other *Identifier) bool {
	if i == nil || other == nil {
		return i == other
	}
	return i.Value == other.Value
}

type BinaryExpression struct {
	Token    lexer.Token // the operator token
	Left     Expression
	Operator string
	Right    Expression
}

func (be *BinaryExpression) expressionNode()      {}
func (be *BinaryExpression) TokenLiteral() string { return be.Token.Literal }
func (be *BinaryExpression) String() string {
	return "(" + be.Left.String() + " " + be.Operator + " " + be.Right.String() + ")"
}

type UnaryExpression struct {
	Token    lexer.Token
	Operator string
	Operand  Expression
}

func (ue *UnaryExpression) expressionNode()      {}
func (ue *UnaryExpression) TokenLiteral() string { return ue.Token.Literal }
func (ue *UnaryExpression) String() string       { return "(" + ue.Operator + ue.Operand.String() + ")" }

type TernaryExpression struct {
	Token       lexer.Token
	Condition   Expression
	Consequence Expression
	Alternative Expression
}

func (te *TernaryExpression) expressionNode()      {}
func (te *TernaryExpression) TokenLiteral() string { return te.Token.Literal }
func (te *TernaryExpression) String() string {
	return "(" + te.Condition.String() + " ? " + te.Consequence.String() + " : " + te.Alternative.String() + ")"
}

type CallExpression struct {
	Token     lexer.Token
	Callee    Expression
	Arguments []Expression
}

func (ce *CallExpression) expressionNode()      {}
func (ce *CallExpression) TokenLiteral() string { return ce.Token.Literal }
func (ce *CallExpression) String() string {
	return ce.Callee.String() + "(" + joinExprs(ce.Arguments) + ")"
}

type MemberExpression struct {
	Token    lexer.Token
	Object   Expression
	Property *Identifier
}

func (me *MemberExpression) expressionNode()      {}
func (me *MemberExpression) TokenLiteral() string { return me.Token.Literal }
func (me *MemberExpression) String() string       { return me.Object.String() + "." + me.Property.String() }

// Literal holds an int64, float64, string or bool value.
type Literal struct {
	Token lexer.Token
	Value any
}

func (l *Literal) expressionNode()      {}
func (l *Literal) TokenLiteral() string { return l.Token.Literal }
func (l *Literal) String() string {
	switch v := l.Value.(type) {
	case string:
		return strconv.Quote(v)
	case float64:
		return strconv.FormatFloat(v, 'g', -1, 64)
	default:
		return fmt.Sprint(v)
	}
}

type ListLiteral struct {
	Token    lexer.Token
	Elements []Expression
}

func (ll *ListLiteral) expressionNode()      {}
func (ll *ListLiteral) TokenLiteral() string { return ll.Token.Literal }
func (ll *ListLiteral) String() string       { return "[" + joinExprs(ll.Elements) + "]" }

// TupleField is one named field of a TupleLiteral.
type TupleField struct {
	Key   string
	Value Expression
}

// TupleLiteral keeps its fields in source order.
type TupleLiteral struct {
	Token  lexer.Token
	Fields []*TupleField
}

func (tl *TupleLiteral) expressionNode()      {}
func (tl *TupleLiteral) TokenLiteral() string { return tl.Token.Literal }
func (tl *TupleLiteral) String() string {
	parts := make([]string, len(tl.Fields))
	for i, f := range tl.Fields {
		parts[i] = f.Key + ": " + f.Value.String()
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

// Get returns the value of the named field.
func (tl *TupleLiteral) Get(key string) (Expression, bool) {
	for _, f := range tl.Fields {
		if f.Key == key {
			return f.Value, true
		}
	}
	return nil, false
}

// OptionalLiteral is some(Value), or none when Value is nil.
type OptionalLiteral struct {
	Token lexer.Token
	Value Expression
}

func (ol *OptionalLiteral) expressionNode()      {}
func (ol *OptionalLiteral) TokenLiteral() string { return ol.Token.Literal }
func (ol *OptionalLiteral) String() string {
	if ol.Value == nil {
		return "none"
	}
	return "some(" + ol.Value.String() + ")"
}

type PrincipalLiteral struct {
	Token lexer.Token
	Value string
}

func (pl *PrincipalLiteral) expressionNode()      {}
func (pl *PrincipalLiteral) TokenLiteral() string { return pl.Token.Literal }
func (pl *PrincipalLiteral) String() string       { return "'" + pl.Value }

// ContractCallExpression calls a public function of another contract.
type ContractCallExpression struct {
	Token     lexer.Token
	Contract  *Identifier
	Function  string
	Arguments []Expression
}

func (cc *ContractCallExpression) expressionNode()      {}
func (cc *ContractCallExpression) TokenLiteral() string { return cc.Token.Literal }
func (cc *ContractCallExpression) String() string {
	return cc.Contract.String() + "." + cc.Function + "(" + joinExprs(cc.Arguments) + ")"
}

// AssetCallExpression calls a built-in operation on a declared asset.
type AssetCallExpression struct {
	Token     lexer.Token
	Asset     *Identifier
	Function  string
	Arguments []Expression
}

func (ac *AssetCallExpression) expressionNode()      {}
func (ac *AssetCallExpression) TokenLiteral() string { return ac.Token.Literal }
func (ac *AssetCallExpression) String() string {
	return ac.Asset.String() + "." + ac.Function + "(" + joinExprs(ac.Arguments) + ")"
}

type MapExpression struct {
	Token    lexer.Token
	List     Expression
	Function Expression
}

func (me *MapExpression) expressionNode()      {}
func (me *MapExpression) TokenLiteral() string { return me.Token.Literal }
func (me *MapExpression) String() string {
	return "map(" + me.List.String() + ", " + me.Function.String() + ")"
}

type FilterExpression struct {
	Token    lexer.Token
	List     Expression
	Function Expression
}

func (fe *FilterExpression) expressionNode()      {}
func (fe *FilterExpression) TokenLiteral() string { return fe.Token.Literal }
func (fe *FilterExpression) String() string {
	return "filter(" + fe.List.String() + ", " + fe.Function.String() + ")"
}

type FoldExpression struct {
	Token    lexer.Token
	List     Expression
	Initial  Expression
	Function Expression
}

func (fe *FoldExpression) expressionNode()      {}
func (fe *FoldExpression) TokenLiteral() string { return fe.Token.Literal }
func (fe *FoldExpression) String() string {
	return "fold(" + fe.List.String() + ", " + fe.Initial.String() + ", " + fe.Function.String() + ")"
}

// ListComprehension is [Expression for Iterator in Iterable if Condition].
type ListComprehension struct {
	Token      lexer.Token
	Expression Expression
	Iterator   *Identifier
	Iterable   Expression
	Condition  Expression // optional
}

func (lc *ListComprehension) expressionNode()      {}
func (lc *ListComprehension) TokenLiteral() string { return lc.Token.Literal }
func (lc *ListComprehension) String() string {
	var out bytes.Buffer
	out.WriteString("[")
	out.WriteString(lc.Expression.String())
	out.WriteString(" for ")
	out.WriteString(lc.Iterator.String())
	out.WriteString(" in ")
	out.WriteString(lc.Iterable.String())
	if lc.Condition != nil {
		out.WriteString(" if ")
		out.WriteString(lc.Condition.String())
	}
	out.WriteString("]")
	return out.String()
}

// LambdaExpression has either an expression Body or a block BodyBlock.
type LambdaExpression struct {
	Token      lexer.Token
	Parameters []*Parameter
	Body       Expression
	BodyBlock  *Block
}

func (le *LambdaExpression) expressionNode()      {}
func (le *LambdaExpression) TokenLiteral() string { return le.Token.Literal }
func (le *LambdaExpression) String() string {
	body := ""
	if le.BodyBlock != nil {
		body = le.BodyBlock.String()
	} else if le.Body != nil {
		body = le.Body.String()
	}
	return "(" + joinParams(le.Parameters) + ") => " + body
}

// TypeCheck is `Value is Type`.
type TypeCheck struct {
	Token lexer.Token
	Value Expression
	Type  Type
}

func (tc *TypeCheck) expressionNode()      {}
func (tc *TypeCheck) TokenLiteral() string { return tc.Token.Literal }
func (tc *TypeCheck) String() string {
	return "(" + tc.Value.String() + " is " + tc.Type.String() + ")"
}

// TypeAssertion is `Value as Type`.
type TypeAssertion struct {
	Token lexer.Token
	Value Expression
	Type  Type
}

func (ta *TypeAssertion) expressionNode()      {}
func (ta *TypeAssertion) TokenLiteral() string { return ta.Token.Literal }
func (ta *TypeAssertion) String() string {
	return "(" + ta.Value.String() + " as " + ta.Type.String() + ")"
}

func joinExprs(exprs []Expression) string {
	parts := make([]string, len(exprs))
	for i, e := range exprs {
		parts[i] = e.String()
	}
	return strings.Join(parts, ", ")
}
