package ast

import (
	"strings"

	"github.com/sambeau/stxscript/pkg/stxscript/lexer"
)

// Type represents type nodes. Name returns the derived display name.
type Type interface {
	Node
	Name() string
	typeNode()
}

// NamedType is a plain type such as int, uint, principal or bool.
type NamedType struct {
	Token lexer.Token
	Value string
}

func (nt *NamedType) typeNode()            {}
func (nt *NamedType) TokenLiteral() string { return nt.Token.Literal }
func (nt *NamedType) Name() string         { return nt.Value }
func (nt *NamedType) String() string       { return nt.Name() }

type ListType struct {
	Token   lexer.Token
	Element Type
}

func (lt *ListType) typeNode()            {}
func (lt *ListType) TokenLiteral() string { return lt.Token.Literal }
func (lt *ListType) Name() string         { return "List<" + lt.Element.Name() + ">" }
func (lt *ListType) String() string       { return lt.Name() }

// TupleTypeField is one named field of a TupleType.
type TupleTypeField struct {
	Key  string
	Type Type
}

// TupleType keeps its fields in source order.
type TupleType struct {
	Token  lexer.Token
	Fields []*TupleTypeField
}

func (tt *TupleType) typeNode()            {}
func (tt *TupleType) TokenLiteral() string { return tt.Token.Literal }
func (tt *TupleType) Name() string {
	parts := make([]string, len(tt.Fields))
	for i, f := range tt.Fields {
		parts[i] = f.Key + ": " + f.Type.Name()
	}
	return "Tuple<" + strings.Join(parts, ", ") + ">"
}
func (tt *TupleType) String() string { return tt.Name() }

// Get returns the type of the named field.
func (tt *TupleType) Get(key string) (Type, bool) {
	for _, f := range tt.Fields {
		if f.Key == key {
			return f.Type, true
		}
	}
	return nil, false
}

type OptionalType struct {
	Token lexer.Token
	Inner Type
}

func (ot *OptionalType) typeNode()            {}
func (ot *OptionalType) TokenLiteral() string { return ot.Token.Literal }
func (ot *OptionalType) Name() string         { return "Optional<" + ot.Inner.Name() + ">" }
func (ot *OptionalType) String() string       { return ot.Name() }

type ResponseType struct {
	Token lexer.Token
	Ok    Type
	Err   Type
}

func (rt *ResponseType) typeNode()            {}
func (rt *ResponseType) TokenLiteral() string { return rt.Token.Literal }
func (rt *ResponseType) Name() string {
	return "Response<" + rt.Ok.Name() + ", " + rt.Err.Name() + ">"
}
func (rt *ResponseType) String() string { return rt.Name() }
