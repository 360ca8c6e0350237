package errors

import (
	"encoding/json"
	stderrors "errors"
	"strings"
	"testing"
)

func TestStxError_String(t *testing.T) {
	tests := []struct {
		name     string
		err      *StxError
		expected string
	}{
		{
			name:     "message only",
			err:      &StxError{Message: "something went wrong"},
			expected: "something went wrong",
		},
		{
			name:     "with line and column",
			err:      &StxError{Message: "unexpected token", Line: 5, Column: 10},
			expected: "line 5, column 10: unexpected token",
		},
		{
			name:     "with file",
			err:      &StxError{Message: "bad", File: "token.stx", Line: 3, Column: 1},
			expected: "token.stx: line 3, column 1: bad",
		},
		{
			name:     "with hints",
			err:      &StxError{Message: "unknown decorator '@pubic'", Hints: []string{"Did you mean `@public`?"}},
			expected: "unknown decorator '@pubic'\n  Did you mean `@public`?",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.String(); got != tt.expected {
				t.Errorf("String() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestStxError_PrettyString(t *testing.T) {
	tests := []struct {
		name     string
		err      *StxError
		contains []string
	}{
		{
			name:     "syntax error with file",
			err:      &StxError{Class: ClassSyntax, Message: "unexpected token '}'", File: "a.stx", Line: 2, Column: 4},
			contains: []string{"Syntax error", "in: a.stx", "at: line 2, column 4", "unexpected token '}'"},
		},
		{
			name:     "construction error without position",
			err:      &StxError{Class: ClassConstruction, Message: "missing declaration name"},
			contains: []string{"Construction error:\n  missing declaration name"},
		},
		{
			name:     "unsupported",
			err:      &StxError{Class: ClassUnsupported, Message: "no rendering rule for Block", Line: 1, Column: 1},
			contains: []string{"Unsupported construct: line 1, column 1"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.err.PrettyString()
			for _, want := range tt.contains {
				if !strings.Contains(got, want) {
					t.Errorf("PrettyString() = %q, missing %q", got, want)
				}
			}
		})
	}
}

func TestNew(t *testing.T) {
	err := New("SYNTAX-0001", map[string]any{"Expected": "';'", "Got": "}"})
	if err.Class != ClassSyntax {
		t.Errorf("Class = %q, want %q", err.Class, ClassSyntax)
	}
	if err.Message != "expected ';', got '}'" {
		t.Errorf("Message = %q", err.Message)
	}

	err = New("BUILD-0005", map[string]any{"Name": "Map"})
	if len(err.Hints) != 1 {
		t.Fatalf("expected 1 hint, got %d", len(err.Hints))
	}

	err = New("NOPE-0001", map[string]any{"message": "custom"})
	if err.Message != "custom" || err.Code != "NOPE-0001" {
		t.Errorf("unknown code gave %+v", err)
	}
}

func TestNewWithPosition(t *testing.T) {
	err := NewWithPosition("GEN-0001", 4, 7, map[string]any{"Kind": "Block"})
	if err.Line != 4 || err.Column != 7 {
		t.Errorf("position = %d:%d, want 4:7", err.Line, err.Column)
	}
	if !err.IsUnsupported() {
		t.Error("expected unsupported class")
	}
}

func TestWithFileDoesNotMutate(t *testing.T) {
	orig := New("SYNTAX-0003", nil)
	withFile := orig.WithFile("x.stx")
	if orig.File != "" {
		t.Error("WithFile mutated the original")
	}
	if withFile.File != "x.stx" {
		t.Errorf("File = %q", withFile.File)
	}
}

func TestToJSON(t *testing.T) {
	data, err := New("BUILD-0001", map[string]any{"Rule": "function_declaration"}).ToJSON()
	if err != nil {
		t.Fatal(err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatal(err)
	}
	if decoded["class"] != "construction" || decoded["code"] != "BUILD-0001" {
		t.Errorf("decoded = %v", decoded)
	}
}

func TestTranspileErrorUnwrap(t *testing.T) {
	cause := New("SYNTAX-0005", nil)
	err := Wrap(cause)

	var te *TranspileError
	if !stderrors.As(err, &te) {
		t.Fatal("expected *TranspileError")
	}
	var se *StxError
	if !stderrors.As(err, &se) || !se.IsSyntaxError() {
		t.Fatal("expected to reach the syntax error")
	}
	if !strings.HasPrefix(err.Error(), "transpilation failed: ") {
		t.Errorf("Error() = %q", err.Error())
	}
	if Wrap(err) != err {
		t.Error("Wrap should not double wrap")
	}
	if Wrap(nil) != nil {
		t.Error("Wrap(nil) should be nil")
	}
}

func TestNewUnknownDecorator(t *testing.T) {
	tests := []struct {
		name string
		hint string
	}{
		{"pubic", "Did you mean `@public`?"},
		{"readOnly", ""},
		{"assets", "Did you mean `@asset`?"},
		{"zzzzzz", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewUnknownDecorator(tt.name, 1, 1)
			got := ""
			if len(err.Hints) > 0 {
				got = err.Hints[0]
			}
			if got != tt.hint {
				t.Errorf("hint = %q, want %q", got, tt.hint)
			}
		})
	}
}

func TestFindTopMatches(t *testing.T) {
	got := FindTopMatches("mapp", []string{"map", "asset", "mapping", "public"}, 2)
	if len(got) == 0 || got[0] != "map" {
		t.Errorf("FindTopMatches() = %v, want map first", got)
	}
	if FindTopMatches("", []string{"map"}, 1) != nil {
		t.Error("empty input should give nil")
	}
}
