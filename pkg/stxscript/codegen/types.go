package codegen

import (
	"strings"

	"github.com/sambeau/stxscript/pkg/stxscript/ast"
)

// scope is an immutable chain of name to type bindings. A nil scope is
// empty. Types may be nil when unknown.
type scope struct {
	parent *scope
	name   string
	typ    ast.Type
}

func (s *scope) with(name string, typ ast.Type) *scope {
	return &scope{parent: s, name: name, typ: typ}
}

func (s *scope) lookup(name string) ast.Type {
	for c := s; c != nil; c = c.parent {
		if c.name == name {
			return c.typ
		}
	}
	return nil
}

func (g *Generator) typeString(t ast.Type) (string, error) {
	switch v := t.(type) {
	case *ast.NamedType:
		if v.Value == "any" {
			return "(optional any)", nil
		}
		return v.Value, nil
	case *ast.ListType:
		elem, err := g.typeString(v.Element)
		if err != nil {
			return "", err
		}
		return "(list " + elem + ")", nil
	case *ast.TupleType:
		var out strings.Builder
		out.WriteString("(tuple")
		for _, f := range v.Fields {
			ft, err := g.typeString(f.Type)
			if err != nil {
				return "", err
			}
			out.WriteString(" (" + f.Key + " " + ft + ")")
		}
		out.WriteString(")")
		return out.String(), nil
	case *ast.OptionalType:
		inner, err := g.typeString(v.Inner)
		if err != nil {
			return "", err
		}
		return "(optional " + inner + ")", nil
	case *ast.ResponseType:
		ok, err := g.typeString(v.Ok)
		if err != nil {
			return "", err
		}
		errType, err := g.typeString(v.Err)
		if err != nil {
			return "", err
		}
		return "(response " + ok + " " + errType + ")", nil
	}
	if t == nil {
		return "", unsupported("missing type")
	}
	return "", unsupported(kindOf(t))
}

// typeCheckName is the suffix of an is- check: value is int renders as
// (is-int value).
func (g *Generator) typeCheckName(t ast.Type) (string, error) {
	if name := namedType(t); name != "" {
		return name, nil
	}
	return g.typeString(t)
}

func namedType(t ast.Type) string {
	if nt, ok := t.(*ast.NamedType); ok {
		return nt.Value
	}
	return ""
}

func named(name string) ast.Type {
	return &ast.NamedType{Value: name}
}

// inferType makes a best-effort guess at the type of e. Arithmetic takes
// the type of its left operand. It returns nil when the type is unknown.
func inferType(e ast.Expression, sc *scope) ast.Type {
	switch v := e.(type) {
	case *ast.Literal:
		switch v.Value.(type) {
		case int64:
			return named("int")
		case bool:
			return named("bool")
		}
	case *ast.PrincipalLiteral:
		return named("principal")
	case *ast.Identifier:
		return sc.lookup(v.Value)
	case *ast.TypeAssertion:
		return v.Type
	case *ast.TypeCheck:
		return named("bool")
	case *ast.BinaryExpression:
		switch v.Operator {
		case "=":
			return nil
		case "+", "-", "*", "/", "%", "&", "|", "^", "<<", ">>":
			if t := inferType(v.Left, sc); t != nil {
				return t
			}
			return inferType(v.Right, sc)
		}
		return named("bool")
	case *ast.UnaryExpression:
		if v.Operator == "!" {
			return named("bool")
		}
		return inferType(v.Operand, sc)
	case *ast.TernaryExpression:
		if t := inferType(v.Consequence, sc); t != nil {
			return t
		}
		return inferType(v.Alternative, sc)
	case *ast.MemberExpression:
		if obj, ok := v.Object.(*ast.Identifier); ok {
			switch obj.Value + "." + v.Property.Value {
			case "tx.sender", "contract.caller":
				return named("principal")
			case "block.height":
				return named("uint")
			}
		}
	case *ast.ListLiteral:
		if len(v.Elements) > 0 {
			if elem := inferType(v.Elements[0], sc); elem != nil {
				return &ast.ListType{Element: elem}
			}
		}
	case *ast.OptionalLiteral:
		if v.Value != nil {
			if inner := inferType(v.Value, sc); inner != nil {
				return &ast.OptionalType{Inner: inner}
			}
		}
	}
	return nil
}
