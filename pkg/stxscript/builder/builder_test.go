package builder

import (
	stderrors "errors"
	"strings"
	"testing"

	"github.com/sambeau/stxscript/pkg/stxscript/ast"
	perrors "github.com/sambeau/stxscript/pkg/stxscript/errors"
	"github.com/sambeau/stxscript/pkg/stxscript/parser"
	"github.com/sambeau/stxscript/pkg/stxscript/trace"
)

func build(t *testing.T, input string, opts Options) (*ast.Program, error) {
	t.Helper()
	tree, err := parser.Parse(input, "")
	if err != nil {
		t.Fatalf("Parse(%q) error: %v", input, err)
	}
	return New(opts).Build(tree)
}

func mustBuild(t *testing.T, input string) *ast.Program {
	t.Helper()
	prog, err := build(t, input, Options{})
	if err != nil {
		t.Fatalf("Build(%q) error: %v", input, err)
	}
	return prog
}

func TestBuildStrings(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"variable", "let x: int = 5;", "let x: int = 5;"},
		{"constant", "const PI: int = 314;", "const PI: int = 314;"},
		{"left associative", "a - b - c;", "((a - b) - c);"},
		{"mixed precedence", "1 + 2 * 3 - 4;", "((1 + (2 * 3)) - 4);"},
		{"negative literal", "x = -5;", "(x = -5);"},
		{"logical not", "!done;", "(!done);"},
		{"ternary", "c ? 1 : 2;", "(c ? 1 : 2);"},
		{
			"function",
			"@public function add(a: int, b: int): int { return a + b; }",
			"@public function add(a: int, b: int): int { return (a + b); }",
		},
		{
			"function without parameters",
			"function noop() { return; }",
			"function noop() { return; }",
		},
		{
			"if chain",
			"if (a) { x; } else if (b) { y; } else { z; }",
			"if (a) { x; } else if (b) { y; } else { z; }",
		},
		{
			"try catch",
			"try { f(); } catch (e) { throw e; }",
			"try { f(); } catch (e) { throw e; }",
		},
		{
			"comprehension",
			"[x * 2 for x in xs if x % 2 == 0];",
			"[(x * 2) for x in xs if ((x % 2) == 0)];",
		},
		{
			"fold with lambda",
			"fold(xs, 0, (acc: int, x: int) => acc + x);",
			"fold(xs, 0, (acc: int, x: int) => (acc + x));",
		},
		{"some", "some(1);", "some(1);"},
		{"none", "none;", "none;"},
		{"type assertion", "value as int;", "(value as int);"},
		{"type check", "value is int;", "(value is int);"},
		{"tuple literal", "{value: x, owner: c};", "{value: x, owner: c};"},
		{"list literal", "[1, 2.5, \"a\", true];", "[1, 2.5, \"a\", true];"},
		{"principal", "'SP000000000000000000002Q6VF78;", "'SP000000000000000000002Q6VF78;"},
		{
			"import",
			"import { A, B } from './token-trait';",
			"import { A, B } from './token-trait';",
		},
		{
			"export",
			"export function get(): uint { return 1; }",
			"export function get(): uint { return 1; }",
		},
		{
			"trait",
			"trait Token { transfer(to: principal, amount: uint): Response<bool, uint>; }",
			"trait Token { transfer(to: principal, amount: uint): Response<bool, uint>; }",
		},
		{
			"asset",
			"@asset class NFT { id: uint; owner: principal; }",
			"@asset class NFT { id: uint; owner: principal; }",
		},
		{
			"map declaration",
			"map balances: Map<principal, uint>;",
			"map balances: Map<principal, uint>;",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			prog := mustBuild(t, tt.input)
			if got := prog.String(); got != tt.want {
				t.Errorf("String() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestMapConstant(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"from decorator", "@map({ key: principal, value: uint })\nconst balances = new Map<principal, uint>();"},
		{"from constructor", "@map\nconst balances = new Map<principal, uint>();"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			prog := mustBuild(t, tt.input)
			cd, ok := prog.Statements[0].(*ast.ConstantDeclaration)
			if !ok {
				t.Fatalf("statement is %T, want *ast.ConstantDeclaration", prog.Statements[0])
			}
			if cd.Map == nil {
				t.Fatal("Map is nil")
			}
			if cd.Map.Name.Value != "balances" {
				t.Errorf("Map.Name = %q", cd.Map.Name.Value)
			}
			if cd.Map.KeyType.Name() != "principal" || cd.Map.ValueType.Name() != "uint" {
				t.Errorf("Map types = %s, %s", cd.Map.KeyType.Name(), cd.Map.ValueType.Name())
			}
		})
	}
}

func TestCallResolution(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		assets []string
		check  func(ast.Expression) bool
	}{
		{
			name:  "all caps name is an asset",
			input: "NFT.mint(r, id);",
			check: func(e ast.Expression) bool {
				ac, ok := e.(*ast.AssetCallExpression)
				return ok && ac.Asset.Value == "NFT" && ac.Function == "mint" && len(ac.Arguments) == 2
			},
		},
		{
			name:  "all caps name with an NFT operation",
			input: "NFT.getOwner(id);",
			check: func(e ast.Expression) bool {
				ac, ok := e.(*ast.AssetCallExpression)
				return ok && ac.Function == "getOwner"
			},
		},
		{
			name:  "all caps contract",
			input: "DAO.vote(x);",
			check: func(e ast.Expression) bool {
				cc, ok := e.(*ast.ContractCallExpression)
				return ok && cc.Contract.Value == "DAO" && cc.Function == "vote" && len(cc.Arguments) == 1
			},
		},
		{
			name:  "declared asset with any method",
			input: "@asset class DAO { id: uint; }\nDAO.vote(x);",
			check: func(e ast.Expression) bool {
				ac, ok := e.(*ast.AssetCallExpression)
				return ok && ac.Asset.Value == "DAO"
			},
		},
		{
			name:  "capitalized name is a contract",
			input: "TokenContract.transfer(tx.sender, to, amount);",
			check: func(e ast.Expression) bool {
				cc, ok := e.(*ast.ContractCallExpression)
				return ok && cc.Contract.Value == "TokenContract" && cc.Function == "transfer" && len(cc.Arguments) == 3
			},
		},
		{
			name:   "configured asset",
			input:  "Kitty.transfer(id, a, b);",
			assets: []string{"Kitty"},
			check: func(e ast.Expression) bool {
				_, ok := e.(*ast.AssetCallExpression)
				return ok
			},
		},
		{
			name:  "method call on a value",
			input: "result.isOk();",
			check: func(e ast.Expression) bool {
				ce, ok := e.(*ast.CallExpression)
				if !ok {
					return false
				}
				_, member := ce.Callee.(*ast.MemberExpression)
				return member
			},
		},
		{
			name:  "map",
			input: "map(xs, f);",
			check: func(e ast.Expression) bool {
				_, ok := e.(*ast.MapExpression)
				return ok
			},
		},
		{
			name:  "filter",
			input: "filter(xs, f);",
			check: func(e ast.Expression) bool {
				_, ok := e.(*ast.FilterExpression)
				return ok
			},
		},
		{
			name:  "plain call",
			input: "ok(1);",
			check: func(e ast.Expression) bool {
				ce, ok := e.(*ast.CallExpression)
				return ok && ce.Callee.String() == "ok"
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			prog, err := build(t, tt.input, Options{Assets: tt.assets})
			if err != nil {
				t.Fatalf("Build() error: %v", err)
			}
			es := prog.Statements[len(prog.Statements)-1].(*ast.ExpressionStatement)
			if !tt.check(es.Expression) {
				t.Errorf("unexpected expression %T: %s", es.Expression, es.Expression)
			}
		})
	}
}

func TestAssetDeclaredLaterIsRecognized(t *testing.T) {
	input := `
function give(to: principal): bool {
	return Kitty.mint(to, 1);
}

@asset
class Kitty { id: uint; }
`
	prog := mustBuild(t, input)
	fd := prog.Statements[0].(*ast.FunctionDeclaration)
	ret := fd.Body.Statements[0].(*ast.ReturnStatement)
	if _, ok := ret.Value.(*ast.AssetCallExpression); !ok {
		t.Errorf("return value is %T, want *ast.AssetCallExpression", ret.Value)
	}
}

func TestBuildErrors(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		code     string
		contains string
	}{
		{"unknown decorator", "@pubic function f() { return 1; }", "BUILD-0004", "Did you mean `@public`?"},
		{"new outside map", "let m = new Map<int, int>();", "BUILD-0005", "new Map"},
		{"class without asset", "class Thing { id: uint; }", "BUILD-0006", "Thing"},
		{"asset field without type", "@asset class NFT { id; }", "BUILD-0003", "asset field id"},
		{"map without types", "@map const m = 1;", "BUILD-0007", "m"},
		{"map decorator on function", "@map function f() { return 1; }", "BUILD-0009", "decorator @map"},
		{"duplicate tuple key", "{a: 1, a: 2};", "BUILD-0009", "duplicate field 'a'"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			prog, err := build(t, tt.input, Options{})
			if err == nil {
				t.Fatalf("expected error, got program %q", prog)
			}
			if prog != nil {
				t.Error("a failed build must not return a program")
			}
			var se *perrors.StxError
			if !stderrors.As(err, &se) {
				t.Fatalf("error is %T, want *errors.StxError", err)
			}
			if se.Code != tt.code {
				t.Errorf("Code = %q, want %q (%v)", se.Code, tt.code, err)
			}
			if !se.IsConstructionError() {
				t.Errorf("Class = %q, want construction", se.Class)
			}
			if !strings.Contains(err.Error(), tt.contains) {
				t.Errorf("error %q does not contain %q", err.Error(), tt.contains)
			}
		})
	}
}

func TestTraceLogging(t *testing.T) {
	logger := trace.NewBufferedLogger()
	if _, err := build(t, "let x: int = 5;", Options{Logger: logger}); err != nil {
		t.Fatalf("Build() error: %v", err)
	}

	want := []string{
		"build type -> NamedType",
		"build literal -> Literal",
		"build variable_declaration -> VariableDeclaration",
		"build program -> Program",
	}
	got := logger.Lines()
	if len(got) != len(want) {
		t.Fatalf("got %d lines %q, want %d", len(got), got, len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("line %d = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestBuildRejectsNonProgram(t *testing.T) {
	if _, err := Build(nil); err == nil {
		t.Error("Build(nil) should fail")
	}
}
