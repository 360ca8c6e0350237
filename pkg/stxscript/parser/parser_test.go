package parser

import (
	"strings"
	"testing"

	perrors "github.com/sambeau/stxscript/pkg/stxscript/errors"
)

func TestParseTrees(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "left associative chain",
			input: "a - b - c;",
			want:  "(program (expression_statement (additive_expression a - b - c)))",
		},
		{
			name:  "precedence by nesting",
			input: "1 + 2 * 3;",
			want:  "(program (expression_statement (additive_expression (literal 1) + (multiplicative_expression (literal 2) * (literal 3)))))",
		},
		{
			name:  "postfix suffixes",
			input: "x.y(1) as int;",
			want:  "(program (expression_statement (postfix_expression x (member_expression y) (call_expression (literal 1)) (as_expression (type int)))))",
		},
		{
			name:  "variable with generic type",
			input: "let x: list<int> = [1];",
			want:  "(program (variable_declaration x (list_type (type int)) (array_or_list_literal (literal 1))))",
		},
		{
			name:  "list comprehension",
			input: "[x * 2 for x in xs if x > 0];",
			want:  "(program (expression_statement (list_comprehension (multiplicative_expression x * (literal 2)) x xs (relational_expression x > (literal 0)))))",
		},
		{
			name:  "map declaration with nested closers",
			input: "map<principal, list<list<uint>>> m;",
			want:  "(program (map_declaration (type principal) (list_type (list_type (type uint))) m))",
		},
		{
			name:  "map declaration annotated form",
			input: "map balances: Map<principal, uint>;",
			want:  "(program (map_declaration (type principal) (type uint) balances))",
		},
		{
			name:  "lambda",
			input: "(a: int, b) => a;",
			want:  "(program (expression_statement (lambda_expression (parameters (parameter a (type int)) (parameter b)) a)))",
		},
		{
			name:  "single parameter lambda",
			input: "x => x;",
			want:  "(program (expression_statement (lambda_expression (parameters (parameter x)) x)))",
		},
		{
			name:  "grouping is not a lambda",
			input: "(b as int);",
			want:  "(program (expression_statement (postfix_expression b (as_expression (type int)))))",
		},
		{
			name:  "ternary",
			input: "c ? 1 : 2;",
			want:  "(program (expression_statement (conditional_expression c (literal 1) (literal 2))))",
		},
		{
			name:  "assignment",
			input: "x = y;",
			want:  "(program (expression_statement (assignment_expression x y)))",
		},
		{
			name:  "unary",
			input: "!a;",
			want:  "(program (expression_statement (unary_expression ! a)))",
		},
		{
			name:  "literals",
			input: `["s", none, true, 'SP1.token];`,
			want:  `(program (expression_statement (array_or_list_literal (literal "s") (literal none) (literal true) (literal 'SP1.token))))`,
		},
		{
			name:  "tuple literal",
			input: "{value: x, owner: c};",
			want:  "(program (expression_statement (object_or_tuple_literal (object_or_tuple_item value x) (object_or_tuple_item owner c))))",
		},
		{
			name:  "map decorator and new",
			input: "@map({ key: principal, value: uint })\nconst balances = new Map<principal, uint>();",
			want:  "(program (constant_declaration (decorator @map (tuple_type (tuple_type_item key (type principal)) (tuple_type_item value (type uint)))) balances (new_expression Map (type principal) (type uint) (arguments))))",
		},
		{
			name:  "function",
			input: "@public\nfunction add(a: int, b: int): int { return a + b; }",
			want:  "(program (function_declaration (decorator @public) add (parameters (parameter a (type int)) (parameter b (type int))) (type int) (block (return_statement (additive_expression a + b)))))",
		},
		{
			name:  "asset class",
			input: "@asset class NFT { id: uint; owner: principal; }",
			want:  "(program (asset_declaration (decorator @asset) NFT (asset_field id (type uint)) (asset_field owner (type principal))))",
		},
		{
			name:  "trait",
			input: "trait T { get(a: principal): Response<uint, uint>; }",
			want:  "(program (trait_declaration T (function_signature get (parameters (parameter a (type principal))) (response_type (type uint) (type uint)))))",
		},
		{
			name:  "if else if else",
			input: "if (a) { 1; } else if (b) { 2; } else { 3; }",
			want:  "(program (if_statement a (block (expression_statement (literal 1))) b (block (expression_statement (literal 2))) (block (expression_statement (literal 3)))))",
		},
		{
			name:  "try catch",
			input: "try { throw e; } catch (err) { return; }",
			want:  "(program (try_catch_statement (block (throw_statement e)) err (block (return_statement))))",
		},
		{
			name:  "import and export",
			input: "import { A, B } from './mod';\nexport const X = 1;",
			want:  `(program (import_declaration A B "./mod") (export_declaration (constant_declaration X (literal 1))))`,
		},
		{
			name:  "tuple type",
			input: "let t: {a: int, b: optional<bool>} = x;",
			want:  "(program (variable_declaration t (tuple_type (tuple_type_item a (type int)) (tuple_type_item b (optional_type (type bool)))) x))",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tree, err := Parse(tt.input, "")
			if err != nil {
				t.Fatalf("Parse() error: %v", err)
			}
			if got := tree.String(); got != tt.want {
				t.Errorf("Parse() =\n  %s\nwant\n  %s", got, tt.want)
			}
		})
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		code     string
		contains string
	}{
		{"unterminated block", "function f() { return 1;", "SYNTAX-0005", "unterminated block"},
		{"missing name", "let = 5;", "SYNTAX-0001", "expected identifier, got '='"},
		{"decorator on let", "@public let x = 1;", "SYNTAX-0001", "function, const or class"},
		{"missing from", "import { A } form './a';", "SYNTAX-0001", "'from'"},
		{"stray brace", "}", "SYNTAX-0002", "unexpected token '}'"},
		{"unterminated string", `let s = "abc`, "SYNTAX-0003", "unterminated string"},
		{"illegal char", "let s = #;", "SYNTAX-0004", "illegal character '#'"},
		{"untyped function parameter", "function f(a) {}", "SYNTAX-0001", "expected ':'"},
		{"bad type", "let x: 5 = 1;", "SYNTAX-0006", "expected a type"},
		{"response arity", "let x: Response<int> = 1;", "SYNTAX-0001", "2 type argument(s)"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.input, "")
			if err == nil {
				t.Fatal("expected an error")
			}
			se, ok := err.(*perrors.StxError)
			if !ok {
				t.Fatalf("error type = %T, want *StxError", err)
			}
			if se.Code != tt.code {
				t.Errorf("Code = %q, want %q (%s)", se.Code, tt.code, se.Message)
			}
			if !se.IsSyntaxError() {
				t.Errorf("Class = %q, want syntax", se.Class)
			}
			if !strings.Contains(se.Message, tt.contains) {
				t.Errorf("Message = %q, want it to contain %q", se.Message, tt.contains)
			}
		})
	}
}

func TestParseErrorCarriesFile(t *testing.T) {
	_, err := Parse("let = 1;", "token.stx")
	se, ok := err.(*perrors.StxError)
	if !ok {
		t.Fatalf("error type = %T", err)
	}
	if se.File != "token.stx" || se.Line != 1 {
		t.Errorf("location = %s:%d", se.File, se.Line)
	}
}

func TestParseEmpty(t *testing.T) {
	tree, err := Parse("  // nothing here\n", "")
	if err != nil {
		t.Fatal(err)
	}
	if len(tree.Children) != 0 {
		t.Errorf("expected empty program, got %s", tree)
	}
}
