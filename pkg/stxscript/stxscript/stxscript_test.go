package stxscript

import (
	stderrors "errors"
	"strings"
	"testing"

	"github.com/sambeau/stxscript/pkg/stxscript/ast"
	perrors "github.com/sambeau/stxscript/pkg/stxscript/errors"
	"github.com/sambeau/stxscript/pkg/stxscript/trace"
)

var corpus = []struct {
	name   string
	source string
	want   string
}{
	{
		name: "function declaration",
		source: `
@public
function add(a: int, b: int): int {
	return a + b;
}
`,
		want: "(define-public (add (a int) (b int))\n  (+ a b))",
	},
	{
		name:   "variable declaration",
		source: "let x: int = 5;",
		want:   "(define-data-var x int 5)",
	},
	{
		name:   "constant declaration",
		source: "const PI: int = 314;",
		want:   "(define-constant PI 314)",
	},
	{
		name: "map declaration",
		source: `
@map({ key: principal, value: uint })
const balances = new Map<principal, uint>();
`,
		want: "(define-map balances principal uint)",
	},
	{
		name: "asset declaration",
		source: `
@asset
class NFT {
	id: uint;
	owner: principal;
}
`,
		want: "(define-non-fungible-token NFT (id uint) (owner principal))",
	},
	{
		name: "trait declaration",
		source: `
trait Token {
	transfer(from: principal, to: principal, amount: uint): Response<bool, uint>;
	getBalance(account: principal): Response<uint, uint>;
}
`,
		want: "(define-trait Token\n" +
			"  ((transfer (principal principal uint) (response bool uint))\n" +
			"   (getBalance (principal) (response uint uint))))",
	},
	{
		name: "if statement",
		source: `
function max(a: int, b: int): int {
	if (a > b) {
		return a;
	} else {
		return b;
	}
}
`,
		want: "(define-private (max (a int) (b int))\n  (if (> a b)\n    a\n    b))",
	},
	{
		name: "try catch",
		source: `
function divide(a: int, b: int): Response<int, string> {
	try {
		return ok(a / b);
	} catch (error) {
		return err("Division by zero");
	}
}
`,
		want: "(define-private (divide (a int) (b int))\n" +
			"  (try\n" +
			"    (ok (/ a b))\n" +
			"    (catch error (err \"Division by zero\"))))",
	},
	{
		name: "list operations",
		source: `
function sumList(numbers: list<int>): int {
	return fold(numbers, 0, (acc: int, x: int) => acc + x);
}
`,
		want: "(define-private (sumList (numbers (list int)))\n  (fold numbers 0 (lambda (acc x) (+ acc x))))",
	},
	{
		name: "contract call",
		source: `
function transferToken(to: principal, amount: uint): Response<bool, uint> {
	return TokenContract.transfer(tx.sender, to, amount);
}
`,
		want: "(define-private (transferToken (to principal) (amount uint))\n" +
			"  (contract-call? .TokenContract transfer tx-sender to amount))",
	},
	{
		name: "asset call",
		source: `
function mintNFT(recipient: principal, id: uint): Response<bool, string> {
	return NFT.mint(recipient, id);
}
`,
		want: "(define-private (mintNFT (recipient principal) (id uint))\n  (nft-mint? NFT id recipient))",
	},
	{
		name: "list comprehension",
		source: `
function doubleEvens(numbers: list<int>): list<int> {
	return [x * 2 for x in numbers if x % 2 == 0];
}
`,
		want: "(define-private (doubleEvens (numbers (list int)))\n" +
			"  (map (* 2) (filter (lambda (x) (is-eq (mod x 2) 0)) numbers)))",
	},
	{
		name: "type assertion and check",
		source: `
function processValue(value: any): int {
	if (value is int) {
		return value as int;
	}
	return 0;
}
`,
		want: "(define-private (processValue (value (optional any)))\n" +
			"  (if (is-int value)\n" +
			"    (as int value)\n" +
			"    0))",
	},
	{
		name: "import and export",
		source: `
import { TokenTrait } from './token-trait';

export function getBalance(account: principal): Response<uint, uint> {
	return TokenContract.getBalance(account);
}
`,
		want: "(use-trait TokenTrait .token-trait)\n\n" +
			"(define-read-only (getBalance (account principal))\n" +
			"  (contract-call? .TokenContract getBalance account))",
	},
	{
		name: "complex function",
		source: `
@public
function complexOperation(
	a: int,
	b: uint,
	c: principal
): Response<{value: int, owner: principal}, string> {
	let x = a + (b as int);
	if (x > 100) {
		return err("Value too high");
	}

	try {
		let result = TokenContract.mint(c, (x as uint));
		if (result.isOk()) {
			return ok({value: x, owner: c});
		} else {
			return err("Minting failed");
		}
	} catch (error) {
		return err("Unexpected error");
	}
}
`,
		want: "(define-public (complexOperation (a int) (b uint) (c principal))\n" +
			"  (let ((x (+ a (to-int b))))\n" +
			"    (if (> x 100)\n" +
			"      (err \"Value too high\")\n" +
			"      (try\n" +
			"        (let ((result (contract-call? .TokenContract mint c (to-uint x))))\n" +
			"          (if (is-ok result)\n" +
			"            (ok (tuple (value x) (owner c)))\n" +
			"            (err \"Minting failed\")))\n" +
			"        (catch error (err \"Unexpected error\"))))))",
	},
}

func TestTranspileCorpus(t *testing.T) {
	for _, tt := range corpus {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Transpile(tt.source)
			if err != nil {
				t.Fatalf("Transpile() error: %v", err)
			}
			if got != tt.want {
				t.Errorf("Transpile() =\n%s\nwant\n%s", got, tt.want)
			}
		})
	}
}

func TestTranspileIsDeterministic(t *testing.T) {
	for _, tt := range corpus {
		first, err := Transpile(tt.source)
		if err != nil {
			t.Fatalf("%s: %v", tt.name, err)
		}
		second, _ := Transpile(tt.source)
		if first != second {
			t.Errorf("%s: output differs between runs", tt.name)
		}
	}
}

func TestTranspilePrincipals(t *testing.T) {
	tests := []struct {
		name   string
		source string
		want   string
	}{
		{
			"two principals in one call",
			"let paid: bool = transfer('SP2J6ZY48GV1EZ5V2V5RB9MP66SW86PYKKNRV9EJ7, 'SP3FBR2AGK5H9QBDH3EEN6DF8EK8JY7RX8QJ5SVTE);",
			"(define-data-var paid bool (transfer 'SP2J6ZY48GV1EZ5V2V5RB9MP66SW86PYKKNRV9EJ7 'SP3FBR2AGK5H9QBDH3EEN6DF8EK8JY7RX8QJ5SVTE))",
		},
		{
			"apostrophe in a trailing comment",
			"function isOwner(p: principal): bool {\n\treturn p == 'SP2J6ZY48GV1EZ5V2V5RB9MP66SW86PYKKNRV9EJ7; // owner's key\n}",
			"(define-private (isOwner (p principal))\n  (is-eq p 'SP2J6ZY48GV1EZ5V2V5RB9MP66SW86PYKKNRV9EJ7))",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Transpile(tt.source)
			if err != nil {
				t.Fatalf("Transpile() error: %v", err)
			}
			if got != tt.want {
				t.Errorf("Transpile() =\n%s\nwant\n%s", got, tt.want)
			}
		})
	}
}

func TestTranspileFailures(t *testing.T) {
	tests := []struct {
		name  string
		input string
		class perrors.ErrorClass
		code  string
	}{
		{"unterminated block", "function f(): int { return 1;", perrors.ClassSyntax, "SYNTAX-0005"},
		{"unknown decorator", "@pubic function f(): int { return 1; }", perrors.ClassConstruction, "BUILD-0004"},
		{"misplaced new", "let m: int = new Map<int, int>();", perrors.ClassConstruction, "BUILD-0005"},
		{"bitwise on old target", "let m: int = 1 & 2;", perrors.ClassUnsupported, "GEN-0002"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := TranspileWithOptions(tt.input, Options{Target: "1.0.0"})
			if err == nil {
				t.Fatalf("expected error, got %q", out)
			}
			if out != "" {
				t.Errorf("failed transpilation returned output %q", out)
			}

			var te *perrors.TranspileError
			if !stderrors.As(err, &te) {
				t.Fatalf("error is %T, want *errors.TranspileError", err)
			}
			if !strings.HasPrefix(err.Error(), "transpilation failed: ") {
				t.Errorf("Error() = %q", err.Error())
			}

			var se *perrors.StxError
			if !stderrors.As(err, &se) {
				t.Fatalf("cause is %T, want *errors.StxError", te.Cause)
			}
			if se.Class != tt.class || se.Code != tt.code {
				t.Errorf("got %s %s, want %s %s", se.Class, se.Code, tt.class, tt.code)
			}
		})
	}
}

func TestInvalidTarget(t *testing.T) {
	_, err := TranspileWithOptions("let x: int = 1;", Options{Target: "two"})
	var te *perrors.TranspileError
	if !stderrors.As(err, &te) {
		t.Fatalf("error is %T, want *errors.TranspileError", err)
	}
}

func TestFilenameInErrors(t *testing.T) {
	_, err := TranspileWithOptions("@pubic function f() { return; }", Options{Filename: "token.stx"})
	var se *perrors.StxError
	if !stderrors.As(err, &se) {
		t.Fatalf("error is %T", err)
	}
	if se.File != "token.stx" {
		t.Errorf("File = %q, want token.stx", se.File)
	}
}

func TestConfiguredAssets(t *testing.T) {
	source := "function f(id: uint): principal { return Kitty.getOwner(id); }"

	plain, err := Transpile(source)
	if err != nil {
		t.Fatalf("Transpile() error: %v", err)
	}
	if !strings.Contains(plain, "(contract-call? .Kitty getOwner id)") {
		t.Errorf("without assets Kitty should be a contract: %s", plain)
	}

	asset, err := TranspileWithOptions(source, Options{Assets: []string{"Kitty"}})
	if err != nil {
		t.Fatalf("TranspileWithOptions() error: %v", err)
	}
	if !strings.Contains(asset, "(nft-get-owner? Kitty id)") {
		t.Errorf("with assets Kitty should be an asset: %s", asset)
	}
}

func TestCheck(t *testing.T) {
	if err := Check("let x: int = 1;", Options{}); err != nil {
		t.Errorf("Check() error: %v", err)
	}
	// Check stops before generation, so generator-only failures pass.
	if err := Check("let x = foo();", Options{}); err != nil {
		t.Errorf("Check() error: %v", err)
	}
	if err := Check("let = 1;", Options{}); err == nil {
		t.Error("Check() should fail on a syntax error")
	}
}

func TestParse(t *testing.T) {
	prog, err := Parse("let x: int = 5;", Options{})
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}
	if len(prog.Statements) != 1 {
		t.Fatalf("got %d statements", len(prog.Statements))
	}
	if _, ok := prog.Statements[0].(*ast.VariableDeclaration); !ok {
		t.Errorf("statement is %T", prog.Statements[0])
	}
}

func TestGenerate(t *testing.T) {
	prog, err := Parse("let x: int = 5;", Options{})
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}
	out, err := Generate(prog, Options{})
	if err != nil {
		t.Fatalf("Generate() error: %v", err)
	}
	if out != "(define-data-var x int 5)" {
		t.Errorf("Generate() = %q", out)
	}

	prog, err = Parse("function f(v: int) { if (v > 0) { log(v); } }", Options{})
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}
	_, err = Generate(prog, Options{Filename: "f.stx"})
	var te *perrors.TranspileError
	if !stderrors.As(err, &te) {
		t.Fatalf("error is %T, want *errors.TranspileError", err)
	}
	var se *perrors.StxError
	if !stderrors.As(err, &se) || se.Code != "GEN-0005" || se.File != "f.stx" {
		t.Errorf("cause = %+v", se)
	}

	if _, err := Generate(prog, Options{Target: "latest"}); err == nil {
		t.Error("expected an invalid target error")
	}
}

func TestTraceLogger(t *testing.T) {
	logger := trace.NewBufferedLogger()
	if _, err := TranspileWithOptions("let x: int = 5;", Options{Logger: logger}); err != nil {
		t.Fatalf("TranspileWithOptions() error: %v", err)
	}
	lines := logger.Lines()
	if len(lines) == 0 || lines[len(lines)-1] != "generate VariableDeclaration" {
		t.Errorf("trace lines = %q", lines)
	}
}
