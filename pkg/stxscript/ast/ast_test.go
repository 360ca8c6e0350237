package ast

import (
	"testing"
)

func ident(name string) *Identifier {
	return &Identifier{Value: name}
}

func named(name string) *NamedType {
	return &NamedType{Value: name}
}

func TestIdentifierEquality(t *testing.T) {
	if !ident("x").Equal(ident("x")) {
		t.Error("identifiers with the same name should be equal")
	}
	if ident("x").Equal(ident("y")) {
		t.Error("identifiers with different names should differ")
	}
	var none *Identifier
	if none.Equal(ident("x")) || !none.Equal(nil) {
		t.Error("nil identifier equality is wrong")
	}

	seen := map[string]bool{ident("a").Key(): true}
	if !seen[ident("a").Key()] {
		t.Error("Key should be usable for lookups")
	}
}

func TestTypeNames(t *testing.T) {
	tests := []struct {
		typ  Type
		want string
	}{
		{named("uint"), "uint"},
		{&ListType{Element: named("int")}, "List<int>"},
		{&OptionalType{Inner: named("principal")}, "Optional<principal>"},
		{&ResponseType{Ok: named("bool"), Err: named("uint")}, "Response<bool, uint>"},
		{
			&TupleType{Fields: []*TupleTypeField{
				{Key: "value", Type: named("int")},
				{Key: "owner", Type: named("principal")},
			}},
			"Tuple<value: int, owner: principal>",
		},
		{&ListType{Element: &ListType{Element: named("uint")}}, "List<List<uint>>"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := tt.typ.Name(); got != tt.want {
				t.Errorf("Name() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestTupleLiteralKeepsOrder(t *testing.T) {
	tl := &TupleLiteral{Fields: []*TupleField{
		{Key: "z", Value: &Literal{Value: int64(1)}},
		{Key: "a", Value: &Literal{Value: "s"}},
	}}
	if got := tl.String(); got != `{z: 1, a: "s"}` {
		t.Errorf("String() = %q", got)
	}
	if v, ok := tl.Get("a"); !ok || v.String() != `"s"` {
		t.Errorf("Get(a) = %v, %v", v, ok)
	}
	if _, ok := tl.Get("missing"); ok {
		t.Error("Get(missing) should fail")
	}
}

func TestFunctionDeclaration(t *testing.T) {
	fd := &FunctionDeclaration{
		Decorators: []*Decorator{{Name: "public"}},
		Name:       ident("add"),
		Parameters: []*Parameter{
			{Name: ident("a"), Type: named("int")},
			{Name: ident("b"), Type: named("int")},
		},
		ReturnType: named("int"),
		Body: &Block{Statements: []Statement{
			&ReturnStatement{Value: &BinaryExpression{Left: ident("a"), Operator: "+", Right: ident("b")}},
		}},
	}

	if !fd.HasDecorator("public") || fd.HasDecorator("readonly") {
		t.Error("HasDecorator is wrong")
	}
	want := "@public function add(a: int, b: int): int { return (a + b); }"
	if got := fd.String(); got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}

	sig := &FunctionDeclaration{Name: ident("get"), ReturnType: named("uint")}
	if got := sig.String(); got != "get(): uint;" {
		t.Errorf("signature String() = %q", got)
	}
}

func TestProgramString(t *testing.T) {
	p := &Program{Statements: []Statement{
		&VariableDeclaration{Name: ident("x"), Type: named("int"), Value: &Literal{Value: int64(5)}},
		&ConstantDeclaration{
			Decorators: []*Decorator{{Name: "map"}},
			Name:       ident("m"),
		},
		&ImportDeclaration{Imports: []*Identifier{ident("T")}, Module: "./t"},
	}}
	want := "let x: int = 5;\n@map const m;\nimport { T } from './t';"
	if got := p.String(); got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
}

func TestLiteralString(t *testing.T) {
	tests := []struct {
		value any
		want  string
	}{
		{int64(42), "42"},
		{3.5, "3.5"},
		{"hi", `"hi"`},
		{true, "true"},
	}
	for _, tt := range tests {
		if got := (&Literal{Value: tt.value}).String(); got != tt.want {
			t.Errorf("Literal(%v).String() = %q, want %q", tt.value, got, tt.want)
		}
	}
}
