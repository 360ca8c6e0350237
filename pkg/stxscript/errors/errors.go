// Package errors provides structured error types for the stxscript transpiler.
//
// Every stage of the pipeline (lexing and parsing, AST construction, code
// generation) reports failures as an *StxError carrying a class, a catalog
// code and an optional source position. The public entry point wraps those
// into a single *TranspileError so callers can handle one error kind.
package errors

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"text/template"
)

// ErrorClass categorizes errors by pipeline stage.
type ErrorClass string

const (
	ClassSyntax       ErrorClass = "syntax"       // Lexer/parser errors
	ClassConstruction ErrorClass = "construction" // Parse tree to AST errors
	ClassUnsupported  ErrorClass = "unsupported"  // No rendering rule
)

// StxError represents any error raised while transpiling.
type StxError struct {
	Class   ErrorClass     `json:"class"`
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Hints   []string       `json:"hints,omitempty"`
	Line    int            `json:"line"`
	Column  int            `json:"column"`
	File    string         `json:"file,omitempty"`
	Data    map[string]any `json:"data,omitempty"`
}

// Error implements the error interface.
func (e *StxError) Error() string {
	return e.String()
}

// String returns a formatted string representation of the error.
func (e *StxError) String() string {
	var sb strings.Builder

	if e.File != "" {
		sb.WriteString(e.File)
		sb.WriteString(": ")
	}
	if e.Line > 0 {
		sb.WriteString(fmt.Sprintf("line %d, column %d: ", e.Line, e.Column))
	}

	sb.WriteString(e.Message)

	for _, hint := range e.Hints {
		sb.WriteString("\n  ")
		sb.WriteString(hint)
	}

	return sb.String()
}

// PrettyString returns a multi-line formatted string for display.
func (e *StxError) PrettyString() string {
	var sb strings.Builder

	switch e.Class {
	case ClassSyntax:
		sb.WriteString("Syntax error")
	case ClassConstruction:
		sb.WriteString("Construction error")
	case ClassUnsupported:
		sb.WriteString("Unsupported construct")
	default:
		sb.WriteString("Error")
	}

	if e.File != "" {
		sb.WriteString(":\n  in: ")
		sb.WriteString(e.File)
		if e.Line > 0 {
			sb.WriteString(fmt.Sprintf("\n  at: line %d, column %d", e.Line, e.Column))
		}
		sb.WriteString("\n  ")
	} else if e.Line > 0 {
		sb.WriteString(fmt.Sprintf(": line %d, column %d\n  ", e.Line, e.Column))
	} else {
		sb.WriteString(":\n  ")
	}

	sb.WriteString(e.Message)

	for _, hint := range e.Hints {
		sb.WriteString("\n  ")
		sb.WriteString(hint)
	}

	return sb.String()
}

// ToJSON returns the error as JSON bytes.
func (e *StxError) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// WithFile returns a copy of the error with the file path set.
func (e *StxError) WithFile(file string) *StxError {
	copy := *e
	copy.File = file
	return &copy
}

// WithPosition returns a copy of the error with line and column set.
func (e *StxError) WithPosition(line, column int) *StxError {
	copy := *e
	copy.Line = line
	copy.Column = column
	return &copy
}

// IsSyntaxError reports whether the error came from the parser.
func (e *StxError) IsSyntaxError() bool {
	return e.Class == ClassSyntax
}

// IsConstructionError reports whether the error came from the AST builder.
func (e *StxError) IsConstructionError() bool {
	return e.Class == ClassConstruction
}

// IsUnsupported reports whether the error came from the code generator.
func (e *StxError) IsUnsupported() bool {
	return e.Class == ClassUnsupported
}

// TranspileError is the umbrella error returned by the public entry point.
// The stage error is reachable through errors.As / errors.Unwrap.
type TranspileError struct {
	Cause error
}

func (e *TranspileError) Error() string {
	return "transpilation failed: " + e.Cause.Error()
}

func (e *TranspileError) Unwrap() error {
	return e.Cause
}

// Wrap wraps err into a *TranspileError. A nil err stays nil and an
// existing *TranspileError is returned unchanged.
func Wrap(err error) error {
	if err == nil {
		return nil
	}
	if te, ok := err.(*TranspileError); ok {
		return te
	}
	return &TranspileError{Cause: err}
}

// ErrorDef defines an error in the catalog.
type ErrorDef struct {
	Class    ErrorClass
	Template string
	Hints    []string
}

// ErrorCatalog maps error codes to their definitions.
var ErrorCatalog = map[string]ErrorDef{
	// Syntax errors (SYNTAX-0xxx)
	"SYNTAX-0001": {
		Class:    ClassSyntax,
		Template: "expected {{.Expected}}, got '{{.Got}}'",
	},
	"SYNTAX-0002": {
		Class:    ClassSyntax,
		Template: "unexpected token '{{.Token}}'",
	},
	"SYNTAX-0003": {
		Class:    ClassSyntax,
		Template: "unterminated string",
	},
	"SYNTAX-0004": {
		Class:    ClassSyntax,
		Template: "illegal character '{{.Char}}'",
	},
	"SYNTAX-0005": {
		Class:    ClassSyntax,
		Template: "unterminated block: expected '}' before end of input",
		Hints:    []string{"check that every '{' has a matching '}'"},
	},
	"SYNTAX-0006": {
		Class:    ClassSyntax,
		Template: "expected a type, got '{{.Got}}'",
	},
	"SYNTAX-0007": {
		Class:    ClassSyntax,
		Template: "unterminated comment",
	},

	// Construction errors (BUILD-0xxx)
	"BUILD-0001": {
		Class:    ClassConstruction,
		Template: "missing declaration name in {{.Rule}}",
	},
	"BUILD-0002": {
		Class:    ClassConstruction,
		Template: "{{.Rule}} is missing its {{.Field}}",
	},
	"BUILD-0003": {
		Class:    ClassConstruction,
		Template: "incomplete field pair in {{.Rule}}",
	},
	"BUILD-0004": {
		Class:    ClassConstruction,
		Template: "unknown decorator '@{{.Name}}'",
	},
	"BUILD-0005": {
		Class:    ClassConstruction,
		Template: "'new {{.Name}}' is only allowed as the value of a @map constant",
		Hints:    []string{"@map({ key: K, value: V })\nconst name = new Map<K, V>();"},
	},
	"BUILD-0006": {
		Class:    ClassConstruction,
		Template: "class {{.Name}} must be decorated with @asset",
	},
	"BUILD-0007": {
		Class:    ClassConstruction,
		Template: "@map constant {{.Name}} has no key and value types",
		Hints:    []string{"@map({ key: K, value: V })", "new Map<K, V>()"},
	},
	"BUILD-0008": {
		Class:    ClassConstruction,
		Template: "no construction rule for '{{.Rule}}'",
	},
	"BUILD-0009": {
		Class:    ClassConstruction,
		Template: "unexpected {{.Got}} in {{.Rule}}",
	},
	"BUILD-0010": {
		Class:    ClassConstruction,
		Template: "invalid number literal: {{.Literal}}",
	},

	// Generation errors (GEN-0xxx)
	"GEN-0001": {
		Class:    ClassUnsupported,
		Template: "no rendering rule for {{.Kind}}",
	},
	"GEN-0002": {
		Class:    ClassUnsupported,
		Template: "operator '{{.Operator}}' requires Clarity {{.Required}} or later (target is {{.Target}})",
	},
	"GEN-0003": {
		Class:    ClassUnsupported,
		Template: "unknown operator '{{.Operator}}'",
	},
	"GEN-0004": {
		Class:    ClassUnsupported,
		Template: "cannot infer a type for data variable {{.Name}}",
		Hints:    []string{"add a type annotation: let {{.Name}}: int = ..."},
	},
	"GEN-0005": {
		Class:    ClassUnsupported,
		Template: "if without else has no value in Clarity",
		Hints:    []string{"add an else branch, or a statement after the if to use as one"},
	},
}

// New creates an StxError from the catalog.
// If the code is not found, creates a generic error with the message.
func New(code string, data map[string]any) *StxError {
	def, ok := ErrorCatalog[code]
	if !ok {
		msg := code
		if data != nil {
			if m, ok := data["message"].(string); ok {
				msg = m
			}
		}
		return &StxError{
			Class:   ClassConstruction,
			Code:    code,
			Message: msg,
			Data:    data,
		}
	}

	msg := renderTemplate(def.Template, data)

	var hints []string
	for _, hintTmpl := range def.Hints {
		rendered := renderTemplate(hintTmpl, data)
		if rendered != "" {
			hints = append(hints, rendered)
		}
	}

	return &StxError{
		Class:   def.Class,
		Code:    code,
		Message: msg,
		Hints:   hints,
		Data:    data,
	}
}

// NewWithPosition creates an StxError with position information.
func NewWithPosition(code string, line, column int, data map[string]any) *StxError {
	err := New(code, data)
	err.Line = line
	err.Column = column
	return err
}

// NewSimple creates an error without using the catalog.
func NewSimple(class ErrorClass, message string) *StxError {
	return &StxError{
		Class:   class,
		Message: message,
	}
}

// NewUnknownDecorator creates an unknown decorator error with a
// "did you mean" hint when a known decorator is close enough.
func NewUnknownDecorator(name string, line, column int) *StxError {
	err := NewWithPosition("BUILD-0004", line, column, map[string]any{"Name": name})
	if suggestion := FindClosestMatch(name, KnownDecorators); suggestion != "" {
		err.Hints = append(err.Hints, "Did you mean `@"+suggestion+"`?")
	}
	return err
}

// KnownDecorators lists the decorator names the builder accepts.
var KnownDecorators = []string{"public", "readonly", "private", "map", "asset"}

func renderTemplate(tmplStr string, data map[string]any) string {
	if data == nil {
		return tmplStr
	}

	tmpl, err := template.New("").Parse(tmplStr)
	if err != nil {
		return tmplStr
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return tmplStr
	}

	return buf.String()
}

// levenshteinDistance computes the edit distance between two strings.
func levenshteinDistance(a, b string) int {
	if len(a) == 0 {
		return len(b)
	}
	if len(b) == 0 {
		return len(a)
	}

	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for j := range prev {
		prev[j] = j
	}

	for i := 1; i <= len(a); i++ {
		curr[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			curr[j] = min(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}

	return prev[len(b)]
}

// threshold returns the maximum edit distance worth suggesting for input.
func threshold(input string) int {
	switch {
	case len(input) >= 7:
		return 3
	case len(input) >= 4:
		return 2
	default:
		return 1
	}
}

// FindClosestMatch finds the closest candidate to input, or "" when nothing
// is close enough. Exact matches are not suggested.
func FindClosestMatch(input string, candidates []string) string {
	matches := FindTopMatches(input, candidates, 1)
	if len(matches) == 0 {
		return ""
	}
	return matches[0]
}

// FindTopMatches returns up to n candidates within the edit threshold,
// closest first.
func FindTopMatches(input string, candidates []string, n int) []string {
	if len(input) == 0 || len(candidates) == 0 || n <= 0 {
		return nil
	}

	type fuzzyMatch struct {
		value    string
		distance int
	}

	inputLower := strings.ToLower(input)
	var matches []fuzzyMatch
	for _, candidate := range candidates {
		dist := levenshteinDistance(inputLower, strings.ToLower(candidate))
		if dist > 0 && dist <= threshold(input) {
			matches = append(matches, fuzzyMatch{candidate, dist})
		}
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].distance < matches[j].distance
	})

	var result []string
	for i := 0; i < len(matches) && i < n; i++ {
		result = append(result, matches[i].value)
	}
	return result
}
