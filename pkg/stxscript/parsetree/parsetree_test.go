package parsetree

import (
	"testing"

	"github.com/sambeau/stxscript/pkg/stxscript/lexer"
)

func TestTreeString(t *testing.T) {
	tok := lexer.Token{Type: lexer.IDENT, Literal: "a", Line: 2, Column: 3}
	tree := New(Additive, tok,
		NewLeaf(tok),
		NewLeaf(lexer.Token{Type: lexer.PLUS, Literal: "+"}),
		New(Literal, tok, NewLeaf(lexer.Token{Type: lexer.STRING, Literal: "s"})),
	)

	want := `(additive_expression a + (literal "s"))`
	if got := tree.String(); got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
	if line, col := tree.Position(); line != 2 || col != 3 {
		t.Errorf("Position() = %d:%d, want 2:3", line, col)
	}
}

func TestWalk(t *testing.T) {
	tok := lexer.Token{}
	inner := New(AssetDeclaration, tok)
	skipped := New(Block, tok, New(AssetDeclaration, tok))
	root := New(Program, tok, inner, skipped)

	var seen []string
	Walk(root, func(tr *Tree) bool {
		seen = append(seen, tr.Rule)
		return tr.Rule != Block
	})

	want := []string{Program, AssetDeclaration, Block}
	if len(seen) != len(want) {
		t.Fatalf("seen = %v, want %v", seen, want)
	}
	for i := range want {
		if seen[i] != want[i] {
			t.Errorf("seen[%d] = %q, want %q", i, seen[i], want[i])
		}
	}
}
