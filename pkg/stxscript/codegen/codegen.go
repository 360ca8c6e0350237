// Package codegen renders the stxscript AST as Clarity source.
//
// Rendering is a recursive type switch over the sealed AST interfaces. The
// indentation depth and the local type scope are passed down explicitly, so
// a Generator holds no per-run state and can be shared between goroutines.
package codegen

import (
	"fmt"
	"strings"

	"github.com/Masterminds/semver/v3"

	"github.com/sambeau/stxscript/pkg/stxscript/ast"
	perrors "github.com/sambeau/stxscript/pkg/stxscript/errors"
	"github.com/sambeau/stxscript/pkg/stxscript/trace"
)

// IndentString is one level of indentation in generated code.
const IndentString = "  "

var (
	// DefaultTarget is the Clarity version generated for when none is set.
	DefaultTarget = semver.MustParse("2.0.0")

	bitwiseSince = semver.MustParse("2.0.0")
)

// Options configures a Generator.
type Options struct {
	// Target is the Clarity version to generate for. Nil means DefaultTarget.
	Target *semver.Version
	// Logger receives one line per top-level statement. Nil disables tracing.
	Logger trace.Logger
}

// Generator renders programs. It is safe for concurrent use.
type Generator struct {
	target *semver.Version
	logger trace.Logger
}

// New creates a Generator.
func New(opts Options) *Generator {
	target := opts.Target
	if target == nil {
		target = DefaultTarget
	}
	return &Generator{target: target, logger: trace.OrNull(opts.Logger)}
}

// Generate renders prog with the given options.
func Generate(prog *ast.Program, opts Options) (string, error) {
	return New(opts).Generate(prog)
}

// ParseTarget parses a Clarity version such as "2" or "2.1.0". An empty
// string gives DefaultTarget.
func ParseTarget(s string) (*semver.Version, error) {
	if s == "" {
		return DefaultTarget, nil
	}
	v, err := semver.NewVersion(s)
	if err != nil {
		return nil, fmt.Errorf("invalid Clarity target %q: %w", s, err)
	}
	return v, nil
}

// Target returns the Clarity version the generator renders for.
func (g *Generator) Target() *semver.Version {
	return g.target
}

// Generate renders a whole program. Top-level statements are rendered
// independently and separated by newlines; a function definition that is
// not the first statement is preceded by a blank line.
func (g *Generator) Generate(prog *ast.Program) (string, error) {
	if prog == nil {
		return "", nil
	}

	var out strings.Builder
	for i, stmt := range prog.Statements {
		text, err := g.topLevel(stmt, false)
		if err != nil {
			return "", err
		}
		if i > 0 {
			out.WriteString("\n")
			if isDefinition(stmt) {
				out.WriteString("\n")
			}
		}
		out.WriteString(text)
		g.logger.LogLine("generate", kindOf(stmt))
	}
	return out.String(), nil
}

func isDefinition(stmt ast.Statement) bool {
	switch stmt.(type) {
	case *ast.FunctionDeclaration, *ast.ExportDeclaration:
		return true
	}
	return false
}

// topLevel renders a statement at depth zero, where bindings become
// contract-level definitions.
func (g *Generator) topLevel(stmt ast.Statement, exported bool) (string, error) {
	switch s := stmt.(type) {
	case *ast.ExportDeclaration:
		return g.topLevel(s.Declaration, true)
	case *ast.FunctionDeclaration:
		return g.function(s, exported, 0)
	case *ast.VariableDeclaration:
		return g.dataVar(s)
	case *ast.ConstantDeclaration:
		if s.Map != nil {
			return g.mapDefinition(s.Map)
		}
		value, err := g.expression(s.Value, 0, nil)
		if err != nil {
			return "", err
		}
		return "(define-constant " + s.Name.Value + " " + value + ")", nil
	}
	return g.statement(stmt, 0, nil)
}

// visibility derives the define form from the decorators. An exported
// function without an explicit decorator is read-only.
func visibility(fd *ast.FunctionDeclaration, exported bool) string {
	switch {
	case fd.HasDecorator("public"):
		return "public"
	case fd.HasDecorator("readonly"):
		return "read-only"
	case fd.HasDecorator("private"):
		return "private"
	case exported:
		return "read-only"
	}
	return "private"
}

func (g *Generator) function(fd *ast.FunctionDeclaration, exported bool, depth int) (string, error) {
	if fd.Body == nil {
		return "", unsupported("function signature outside a trait")
	}

	var sc *scope
	var header strings.Builder
	header.WriteString("(define-")
	header.WriteString(visibility(fd, exported))
	header.WriteString(" (")
	header.WriteString(fd.Name.Value)
	for _, p := range fd.Parameters {
		typ, err := g.typeString(p.Type)
		if err != nil {
			return "", err
		}
		header.WriteString(" (" + p.Name.Value + " " + typ + ")")
		sc = sc.with(p.Name.Value, p.Type)
	}
	header.WriteString(")")

	body, err := g.sequence(fd.Body.Statements, depth+1, sc)
	if err != nil {
		return "", err
	}
	return header.String() + "\n" + indent(depth+1) + body + ")", nil
}

func (g *Generator) dataVar(vd *ast.VariableDeclaration) (string, error) {
	typ := vd.Type
	if typ == nil {
		typ = inferType(vd.Value, nil)
	}
	if typ == nil {
		return "", perrors.New("GEN-0004", map[string]any{"Name": vd.Name.Value}).
			WithPosition(vd.Name.Token.Line, vd.Name.Token.Column)
	}
	typeText, err := g.typeString(typ)
	if err != nil {
		return "", err
	}
	value, err := g.expression(vd.Value, 0, nil)
	if err != nil {
		return "", err
	}
	return "(define-data-var " + vd.Name.Value + " " + typeText + " " + value + ")", nil
}

func (g *Generator) mapDefinition(md *ast.MapDeclaration) (string, error) {
	key, err := g.typeString(md.KeyType)
	if err != nil {
		return "", err
	}
	value, err := g.typeString(md.ValueType)
	if err != nil {
		return "", err
	}
	return "(define-map " + md.Name.Value + " " + key + " " + value + ")", nil
}

// statement renders a single statement at depth. Sequences that need the
// statements after them go through sequence.
func (g *Generator) statement(stmt ast.Statement, depth int, sc *scope) (string, error) {
	switch s := stmt.(type) {
	case *ast.FunctionDeclaration:
		return g.function(s, false, depth)
	case *ast.VariableDeclaration:
		return g.sequence([]ast.Statement{s}, depth, sc)
	case *ast.IfStatement:
		return g.ifStatement(s, depth, sc, nil)
	case *ast.ConstantDeclaration:
		if s.Map != nil {
			return g.mapDefinition(s.Map)
		}
		return g.sequence([]ast.Statement{s}, depth, sc)
	case *ast.MapDeclaration:
		return g.mapDefinition(s)
	case *ast.AssetDeclaration:
		return g.asset(s)
	case *ast.TraitDeclaration:
		return g.trait(s, depth)
	case *ast.ImportDeclaration:
		return useTrait(s), nil
	case *ast.ExportDeclaration:
		return g.statement(s.Declaration, depth, sc)
	case *ast.TryCatchStatement:
		return g.tryCatch(s, depth, sc)
	case *ast.ThrowStatement:
		value, err := g.expression(s.Value, depth, sc)
		if err != nil {
			return "", err
		}
		return "(error " + value + ")", nil
	case *ast.ReturnStatement:
		if s.Value == nil {
			return "()", nil
		}
		return g.expression(s.Value, depth, sc)
	case *ast.ExpressionStatement:
		return g.expression(s.Expression, depth, sc)
	}
	return "", unsupported(kindOf(stmt))
}

// sequence renders the statements of a block. A local binding scopes over
// the statements after it, and an if without an else takes them as its
// else branch. Anything else with more than one statement becomes a begin.
func (g *Generator) sequence(stmts []ast.Statement, depth int, sc *scope) (string, error) {
	if len(stmts) == 0 {
		return "()", nil
	}

	first, rest := stmts[0], stmts[1:]
	switch s := first.(type) {
	case *ast.VariableDeclaration:
		return g.binding(s.Name, s.Type, s.Value, rest, depth, sc)
	case *ast.ConstantDeclaration:
		if s.Map == nil {
			return g.binding(s.Name, s.Type, s.Value, rest, depth, sc)
		}
	case *ast.IfStatement:
		if s.Alternative == nil {
			return g.ifStatement(s, depth, sc, rest)
		}
	}
	if len(rest) == 0 {
		return g.statement(first, depth, sc)
	}

	parts := make([]string, 0, len(stmts))
	for i, stmt := range stmts {
		if i == len(stmts)-1 || (i > 0 && opensScope(stmt)) {
			text, err := g.sequence(stmts[i:], depth+1, sc)
			if err != nil {
				return "", err
			}
			parts = append(parts, text)
			break
		}
		text, err := g.statement(stmt, depth+1, sc)
		if err != nil {
			return "", err
		}
		parts = append(parts, text)
	}
	sep := "\n" + indent(depth+1)
	return "(begin" + sep + strings.Join(parts, sep) + ")", nil
}

func opensScope(stmt ast.Statement) bool {
	switch s := stmt.(type) {
	case *ast.VariableDeclaration:
		return true
	case *ast.ConstantDeclaration:
		return s.Map == nil
	case *ast.IfStatement:
		return s.Alternative == nil
	}
	return false
}

// binding renders a local let or const as a Clarity let scoping over rest.
func (g *Generator) binding(name *ast.Identifier, typ ast.Type, value ast.Expression, rest []ast.Statement, depth int, sc *scope) (string, error) {
	if value == nil {
		return "", unsupported("local binding without a value")
	}
	valueText, err := g.expression(value, depth, sc)
	if err != nil {
		return "", err
	}
	if typ == nil {
		typ = inferType(value, sc)
	}

	head := "(let ((" + name.Value + " " + valueText + "))"
	if len(rest) == 0 {
		return head + " " + name.Value + ")", nil
	}
	body, err := g.sequence(rest, depth+1, sc.with(name.Value, typ))
	if err != nil {
		return "", err
	}
	return head + "\n" + indent(depth+1) + body + ")", nil
}

// ifStatement renders an if chain as nested ifs. rest, when non-empty,
// becomes the innermost else branch of a chain that has none. Clarity's if
// always takes both branches, so a chain with no else and nothing after it
// is an error.
func (g *Generator) ifStatement(is *ast.IfStatement, depth int, sc *scope, rest []ast.Statement) (string, error) {
	cond, err := g.expression(is.Condition, depth, sc)
	if err != nil {
		return "", err
	}
	then, err := g.sequence(is.Consequence.Statements, depth+1, sc)
	if err != nil {
		return "", err
	}

	var alt string
	switch {
	case len(is.ElseIfs) > 0:
		first := is.ElseIfs[0]
		nested := &ast.IfStatement{
			Token:       first.Token,
			Condition:   first.Condition,
			Consequence: first.Consequence,
			ElseIfs:     is.ElseIfs[1:],
			Alternative: is.Alternative,
		}
		alt, err = g.ifStatement(nested, depth+1, sc, rest)
	case is.Alternative != nil:
		alt, err = g.sequence(is.Alternative.Statements, depth+1, sc)
	case len(rest) > 0:
		alt, err = g.sequence(rest, depth+1, sc)
	default:
		return "", perrors.New("GEN-0005", nil).WithPosition(is.Token.Line, is.Token.Column)
	}
	if err != nil {
		return "", err
	}
	return "(if " + cond + "\n" + indent(depth+1) + then + "\n" + indent(depth+1) + alt + ")", nil
}

func (g *Generator) tryCatch(tc *ast.TryCatchStatement, depth int, sc *scope) (string, error) {
	body, err := g.sequence(tc.Body.Statements, depth+1, sc)
	if err != nil {
		return "", err
	}
	handler, err := g.sequence(tc.Handler.Statements, depth+1, sc.with(tc.ErrorVar.Value, nil))
	if err != nil {
		return "", err
	}
	return "(try\n" + indent(depth+1) + body + "\n" + indent(depth+1) +
		"(catch " + tc.ErrorVar.Value + " " + handler + "))", nil
}

func (g *Generator) asset(ad *ast.AssetDeclaration) (string, error) {
	var out strings.Builder
	out.WriteString("(define-non-fungible-token ")
	out.WriteString(ad.Name.Value)
	for _, f := range ad.Fields {
		typ, err := g.typeString(f.Type)
		if err != nil {
			return "", err
		}
		out.WriteString(" (" + f.Name.Value + " " + typ + ")")
	}
	out.WriteString(")")
	return out.String(), nil
}

// trait renders each signature as (name (param-types) return-type), one per
// line, aligned inside the outer list.
func (g *Generator) trait(td *ast.TraitDeclaration, depth int) (string, error) {
	sigs := make([]string, 0, len(td.Functions))
	for _, fn := range td.Functions {
		params := make([]string, 0, len(fn.Parameters))
		for _, p := range fn.Parameters {
			typ, err := g.typeString(p.Type)
			if err != nil {
				return "", err
			}
			params = append(params, typ)
		}
		ret, err := g.typeString(fn.ReturnType)
		if err != nil {
			return "", err
		}
		sigs = append(sigs, "("+fn.Name.Value+" ("+strings.Join(params, " ")+") "+ret+")")
	}
	return "(define-trait " + td.Name.Value + "\n" + indent(depth+1) +
		"(" + strings.Join(sigs, "\n"+indent(depth+1)+" ") + "))", nil
}

func useTrait(id *ast.ImportDeclaration) string {
	names := make([]string, len(id.Imports))
	for i, n := range id.Imports {
		names[i] = n.Value
	}
	return "(use-trait " + strings.Join(names, " ") + " ." + moduleName(id.Module) + ")"
}

// moduleName reduces an import path like './token-trait.stx' to the
// contract name token-trait.
func moduleName(module string) string {
	name := module
	if i := strings.LastIndex(name, "/"); i >= 0 {
		name = name[i+1:]
	}
	for _, ext := range []string{".stx", ".clar"} {
		name = strings.TrimSuffix(name, ext)
	}
	return name
}

func indent(depth int) string {
	return strings.Repeat(IndentString, depth)
}

func kindOf(n ast.Node) string {
	return strings.TrimPrefix(fmt.Sprintf("%T", n), "*ast.")
}

func unsupported(kind string) error {
	return perrors.New("GEN-0001", map[string]any{"Kind": kind})
}
