// Package stxscript is the public entry point of the transpiler.
//
// Transpile runs the whole pipeline: the source is parsed into a parse tree,
// the tree is turned into an AST, and the AST is rendered as Clarity. Every
// failure, whatever the stage, comes back as a single *errors.TranspileError
// whose cause is the stage's *errors.StxError.
//
// Basic usage:
//
//	out, err := stxscript.Transpile(`let x: int = 5;`)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(out) // (define-data-var x int 5)
package stxscript

import (
	"github.com/Masterminds/semver/v3"

	"github.com/sambeau/stxscript/pkg/stxscript/ast"
	"github.com/sambeau/stxscript/pkg/stxscript/builder"
	"github.com/sambeau/stxscript/pkg/stxscript/codegen"
	perrors "github.com/sambeau/stxscript/pkg/stxscript/errors"
	"github.com/sambeau/stxscript/pkg/stxscript/parser"
	"github.com/sambeau/stxscript/pkg/stxscript/trace"
)

// Version is the transpiler version reported by the CLI.
const Version = "0.3.0"

// Options configures a transpilation.
type Options struct {
	// Filename is attached to error positions. It may be empty.
	Filename string
	// Assets names additional NFT assets for call disambiguation.
	Assets []string
	// Target is the Clarity version to generate for, e.g. "2.0.0".
	// Empty means codegen.DefaultTarget.
	Target string
	// Logger receives build and generate trace lines. Nil disables tracing.
	Logger trace.Logger
}

// Transpile converts stxscript source to Clarity with default options.
func Transpile(source string) (string, error) {
	return TranspileWithOptions(source, Options{})
}

// TranspileWithOptions converts stxscript source to Clarity. On failure the
// output is empty and the error is a *errors.TranspileError.
func TranspileWithOptions(source string, opts Options) (string, error) {
	target, err := codegen.ParseTarget(opts.Target)
	if err != nil {
		return "", perrors.Wrap(err)
	}

	prog, err := build(source, opts)
	if err != nil {
		return "", perrors.Wrap(err)
	}
	return generate(prog, target, opts)
}

// Generate renders an AST returned by Parse as Clarity. Callers that need
// both the AST and the output use it to avoid building twice.
func Generate(prog *ast.Program, opts Options) (string, error) {
	target, err := codegen.ParseTarget(opts.Target)
	if err != nil {
		return "", perrors.Wrap(err)
	}
	return generate(prog, target, opts)
}

func generate(prog *ast.Program, target *semver.Version, opts Options) (string, error) {
	out, err := codegen.New(codegen.Options{Target: target, Logger: opts.Logger}).Generate(prog)
	if err != nil {
		return "", perrors.Wrap(withFile(err, opts.Filename))
	}
	return out, nil
}

// Check parses and builds source without generating code. It reports the
// same errors Transpile would for the first two stages.
func Check(source string, opts Options) error {
	_, err := build(source, opts)
	return perrors.Wrap(err)
}

// Parse returns the AST for source.
func Parse(source string, opts Options) (*ast.Program, error) {
	prog, err := build(source, opts)
	if err != nil {
		return nil, perrors.Wrap(err)
	}
	return prog, nil
}

func build(source string, opts Options) (*ast.Program, error) {
	tree, err := parser.Parse(source, opts.Filename)
	if err != nil {
		return nil, err
	}
	prog, err := builder.New(builder.Options{Assets: opts.Assets, Logger: opts.Logger}).Build(tree)
	if err != nil {
		return nil, withFile(err, opts.Filename)
	}
	return prog, nil
}

func withFile(err error, filename string) error {
	if se, ok := err.(*perrors.StxError); ok && filename != "" && se.File == "" {
		return se.WithFile(filename)
	}
	return err
}
