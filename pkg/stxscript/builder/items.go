package builder

import (
	"fmt"
	"strings"

	"github.com/sambeau/stxscript/pkg/stxscript/ast"
	"github.com/sambeau/stxscript/pkg/stxscript/lexer"
)

// item is the result of converting one parse tree node. Rules receive the
// items of their children and classify them with type switches.
type item interface {
	kind() string
}

// nodeItem wraps a finished AST node.
type nodeItem struct {
	node ast.Node
}

func (n nodeItem) kind() string {
	return strings.TrimPrefix(fmt.Sprintf("%T", n.node), "*ast.")
}

// tokenItem is a raw token, such as an operator.
type tokenItem struct {
	tok lexer.Token
}

func (t tokenItem) kind() string { return "token '" + t.tok.Literal + "'" }

type paramsItem struct {
	params []*ast.Parameter
}

func (paramsItem) kind() string { return "parameter list" }

type argsItem struct {
	args []ast.Expression
}

func (argsItem) kind() string { return "argument list" }

// fieldItem is one key: value pair of a tuple literal.
type fieldItem struct {
	key   string
	value ast.Expression
}

func (fieldItem) kind() string { return "tuple field" }

// typeFieldItem is one key: type pair of a tuple type.
type typeFieldItem struct {
	key string
	typ ast.Type
}

func (typeFieldItem) kind() string { return "tuple type field" }

type decoratorItem struct {
	dec *ast.Decorator
}

func (decoratorItem) kind() string { return "decorator" }

// newItem is `new Name<T...>(args)`. It only has meaning as the value of a
// @map constant and never becomes an AST expression.
type newItem struct {
	tok      lexer.Token
	name     *ast.Identifier
	typeArgs []ast.Type
	args     []ast.Expression
}

func (newItem) kind() string { return "new expression" }

// Postfix suffixes, folded onto their primary by the postfix rule.

type callSuffix struct {
	tok  lexer.Token
	args []ast.Expression
}

func (callSuffix) kind() string { return "call" }

type memberSuffix struct {
	tok      lexer.Token
	property *ast.Identifier
}

func (memberSuffix) kind() string { return "member access" }

type isSuffix struct {
	tok lexer.Token
	typ ast.Type
}

func (isSuffix) kind() string { return "type check" }

type asSuffix struct {
	tok lexer.Token
	typ ast.Type
}

func (asSuffix) kind() string { return "type assertion" }
