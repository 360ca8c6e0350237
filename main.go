package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/dustin/go-humanize"

	"github.com/sambeau/stxscript/config"
	"github.com/sambeau/stxscript/pkg/stxscript/cache"
	"github.com/sambeau/stxscript/pkg/stxscript/compile"
	perrors "github.com/sambeau/stxscript/pkg/stxscript/errors"
	"github.com/sambeau/stxscript/pkg/stxscript/repl"
	"github.com/sambeau/stxscript/pkg/stxscript/stxscript"
	"github.com/sambeau/stxscript/pkg/stxscript/trace"
	"github.com/sambeau/stxscript/pkg/stxscript/watch"
)

// errFailed is returned after the failures have already been reported.
var errFailed = errors.New("transpilation failed")

func main() {
	ctx := context.Background()
	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr, os.Getenv); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// stringList is a repeatable string flag
type stringList []string

func (s *stringList) String() string { return strings.Join(*s, ",") }

func (s *stringList) Set(v string) error {
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			*s = append(*s, part)
		}
	}
	return nil
}

// run is the main entry point, designed for testability (Mat Ryer pattern)
func run(ctx context.Context, args []string, stdout, stderr io.Writer, getenv func(string) string) error {
	flags := flag.NewFlagSet("stxc", flag.ContinueOnError)
	flags.SetOutput(stderr)

	var assets stringList
	var (
		configPath  = flags.String("config", "", "Path to config file")
		profile     = flags.String("profile", "", "Apply a named config profile")
		target      = flags.String("target", "", "Clarity version to generate for")
		outDir      = flags.String("out", "", "Directory for generated files")
		evalCode    = flags.String("e", "", "Transpile code string")
		checkOnly   = flags.Bool("check", false, "Check syntax without generating code")
		printOnly   = flags.Bool("print", false, "Print Clarity to stdout instead of writing files")
		traceFlag   = flags.Bool("trace", false, "Log build and generate steps")
		noCache     = flags.Bool("no-cache", false, "Disable the build cache")
		showVersion = flags.Bool("version", false, "Show version")
		showHelp    = flags.Bool("help", false, "Show help")
	)
	flags.Var(&assets, "asset", "Treat NAME as an NFT asset (repeatable)")

	if err := flags.Parse(args); err != nil {
		return err
	}

	if *showHelp {
		printUsage(stdout)
		return nil
	}
	if *showVersion {
		fmt.Fprintf(stdout, "stxc version %s\n", stxscript.Version)
		return nil
	}

	cfg, err := config.LoadOrDefaults(*configPath, getenv)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if *profile != "" {
		if err := config.ApplyProfile(cfg, *profile); err != nil {
			return err
		}
	}

	// Apply CLI overrides
	if *target != "" {
		cfg.Target.Clarity = *target
	}
	for _, a := range assets {
		if !cfg.Assets.Contains(a) {
			cfg.Assets = append(cfg.Assets, a)
		}
	}
	if *outDir != "" {
		cfg.Build.OutDir = *outDir
	}
	if *traceFlag {
		cfg.Logging.Level = "trace"
	}
	if *noCache {
		cfg.Cache.Enabled = false
	}

	if err := config.Validate(cfg); err != nil {
		return fmt.Errorf("config validation: %w", err)
	}

	logger, closeLog, err := openLogger(cfg, stdout, stderr)
	if err != nil {
		return err
	}
	defer closeLog()

	rest := flags.Args()

	if *evalCode != "" {
		return evalInline(*evalCode, cfg, logger, stdout, stderr)
	}

	if len(rest) > 0 {
		switch rest[0] {
		case "repl":
			repl.Start(stdout, stxscript.Version, repl.NewSession(cfg.Assets, cfg.Target.Clarity))
			return nil
		case "cache":
			return cacheCommand(rest[1:], cfg, stdout)
		case "watch":
			return watchCommand(ctx, rest[1:], cfg, logger, stdout, stderr)
		}
	}

	if len(rest) == 0 {
		printUsage(stderr)
		return errors.New("no input files")
	}

	db := openCache(cfg, stderr)
	if db != nil {
		defer db.Close()
	}
	files, roots, err := expandSources(rest)
	if err != nil {
		return err
	}
	c := newCompiler(cfg, db, logger, roots)

	switch {
	case *checkOnly:
		return checkFiles(c, files, stdout, stderr)
	case *printOnly:
		return printFiles(c, files, stdout, stderr)
	default:
		return buildFiles(c, files, stdout, stderr)
	}
}

func newCompiler(cfg *config.Config, db *cache.Cache, logger trace.Logger, roots []string) *compile.Compiler {
	return compile.New(compile.Options{
		Assets:    cfg.Assets,
		Target:    cfg.Target.Clarity,
		OutDir:    cfg.Build.OutDir,
		Roots:     roots,
		Extension: cfg.Build.Extension,
		Cache:     db,
		Logger:    logger,
	})
}

// openLogger returns the trace logger for cfg. It is nil unless the log
// level is trace.
func openLogger(cfg *config.Config, stdout, stderr io.Writer) (trace.Logger, func(), error) {
	noop := func() {}
	if cfg.Logging.Level != "trace" {
		return nil, noop, nil
	}

	switch cfg.Logging.Output {
	case "", "stderr":
		return trace.PrefixLogger(stderr, "[TRACE] "), noop, nil
	case "stdout":
		return trace.PrefixLogger(stdout, "[TRACE] "), noop, nil
	}

	f, err := os.OpenFile(cfg.Logging.Output, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, noop, fmt.Errorf("opening log file: %w", err)
	}
	return trace.PrefixLogger(f, "[TRACE] "), func() { f.Close() }, nil
}

// openCache opens the build cache when enabled. A cache that cannot be
// opened is reported and skipped.
func openCache(cfg *config.Config, stderr io.Writer) *cache.Cache {
	if !cfg.Cache.Enabled {
		return nil
	}
	maxSize, _ := config.ParseSize(cfg.Cache.MaxSize)
	db, err := cache.Open(cache.Config{Path: cfg.Cache.Path, MaxSize: maxSize})
	if err != nil {
		fmt.Fprintf(stderr, "warning: build cache disabled: %v\n", err)
		return nil
	}
	return db
}

// expandSources replaces directories with the sources found under them.
// The directories are returned as roots for output paths.
func expandSources(args []string) (files, roots []string, err error) {
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, nil, fmt.Errorf("cannot access %s: %w", arg, err)
		}
		if !info.IsDir() {
			files = append(files, arg)
			continue
		}
		found, err := compile.FindSources(arg)
		if err != nil {
			return nil, nil, err
		}
		files = append(files, found...)
		roots = append(roots, arg)
	}
	if len(files) == 0 {
		return nil, nil, errors.New("no source files found")
	}
	return files, roots, nil
}

// evalInline transpiles code given with -e and prints the result
func evalInline(code string, cfg *config.Config, logger trace.Logger, stdout, stderr io.Writer) error {
	out, err := stxscript.TranspileWithOptions(code, stxscript.Options{
		Filename: "<eval>",
		Assets:   cfg.Assets,
		Target:   cfg.Target.Clarity,
		Logger:   logger,
	})
	if err != nil {
		printError(stderr, code, err)
		return errFailed
	}
	fmt.Fprintln(stdout, out)
	return nil
}

func buildFiles(c *compile.Compiler, files []string, stdout, stderr io.Writer) error {
	failed := 0
	for _, f := range files {
		res, err := c.BuildFile(f)
		if err != nil {
			printError(stderr, "", err)
			failed++
			continue
		}
		if res.Cached {
			fmt.Fprintf(stdout, "%s -> %s (cached)\n", res.Source, res.Output)
		} else {
			fmt.Fprintf(stdout, "%s -> %s\n", res.Source, res.Output)
		}
	}
	return summarize(failed, len(files))
}

func printFiles(c *compile.Compiler, files []string, stdout, stderr io.Writer) error {
	failed := 0
	for _, f := range files {
		data, err := os.ReadFile(f)
		if err != nil {
			fmt.Fprintf(stderr, "error: %v\n", err)
			failed++
			continue
		}
		out, _, err := c.Transpile(f, string(data))
		if err != nil {
			printError(stderr, string(data), err)
			failed++
			continue
		}
		fmt.Fprintln(stdout, out)
	}
	return summarize(failed, len(files))
}

// checkFiles parses and builds each file without generating code
func checkFiles(c *compile.Compiler, files []string, stdout, stderr io.Writer) error {
	failed := 0
	for _, f := range files {
		data, err := os.ReadFile(f)
		if err != nil {
			fmt.Fprintf(stderr, "error: %v\n", err)
			failed++
			continue
		}
		if err := c.Check(f, string(data)); err != nil {
			printError(stderr, string(data), err)
			failed++
			continue
		}
		fmt.Fprintf(stdout, "%s: OK\n", f)
	}
	return summarize(failed, len(files))
}

func summarize(failed, total int) error {
	if failed == 0 {
		return nil
	}
	return fmt.Errorf("%d of %d files failed", failed, total)
}

func watchCommand(ctx context.Context, dirs []string, cfg *config.Config, logger trace.Logger, stdout, stderr io.Writer) error {
	if len(dirs) == 0 {
		dirs = cfg.Watch.Dirs
	}

	db := openCache(cfg, stderr)
	if db != nil {
		defer db.Close()
	}

	w, err := watch.New(newCompiler(cfg, db, logger, dirs), watch.Options{
		Dirs:     dirs,
		Debounce: cfg.Watch.Debounce,
		Stdout:   stdout,
		Stderr:   stderr,
	})
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	w.BuildAll()
	if err := w.Start(ctx); err != nil {
		w.Close()
		return err
	}

	<-ctx.Done()
	<-w.Done()

	builds, failed := w.Stats()
	fmt.Fprintf(stdout, "[WATCH] stopped after %d builds (%d failed)\n", builds, failed)
	return nil
}

func cacheCommand(args []string, cfg *config.Config, stdout io.Writer) error {
	if len(args) != 1 || (args[0] != "stats" && args[0] != "clear") {
		return errors.New("usage: stxc cache stats|clear")
	}

	maxSize, _ := config.ParseSize(cfg.Cache.MaxSize)
	db, err := cache.Open(cache.Config{Path: cfg.Cache.Path, MaxSize: maxSize})
	if err != nil {
		return err
	}
	defer db.Close()

	if args[0] == "clear" {
		if err := db.Clear(); err != nil {
			return err
		}
		fmt.Fprintf(stdout, "cleared %s\n", db.Path())
		return nil
	}

	s, err := db.Stats()
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "path:    %s\n", db.Path())
	fmt.Fprintf(stdout, "entries: %d\n", s.Entries)
	fmt.Fprintf(stdout, "outputs: %s\n", humanize.Bytes(uint64(s.SourceBytes)))
	fmt.Fprintf(stdout, "stored:  %s\n", humanize.Bytes(uint64(s.CompressedBytes)))
	return nil
}

// printError prints a transpilation error with source context. When source
// is empty the file named in the error is read instead.
func printError(w io.Writer, source string, err error) {
	var se *perrors.StxError
	if !errors.As(err, &se) {
		fmt.Fprintf(w, "error: %v\n", err)
		return
	}

	fmt.Fprintln(w, se.PrettyString())

	if source == "" && se.File != "" {
		if data, readErr := os.ReadFile(se.File); readErr == nil {
			source = string(data)
		}
	}
	printSourceContext(w, strings.Split(source, "\n"), se.Line, se.Column)
}

// printSourceContext prints the source line and error pointer
func printSourceContext(w io.Writer, lines []string, lineNum, colNum int) {
	if lineNum <= 0 || lineNum > len(lines) {
		return
	}

	sourceLine := lines[lineNum-1]

	// Columns trimmed from the left, counting tabs as 8
	trimCount := 0
	for i := 0; i < len(sourceLine); i++ {
		if sourceLine[i] == ' ' {
			trimCount++
		} else if sourceLine[i] == '\t' {
			trimCount += 8
		} else {
			break
		}
	}

	fmt.Fprintf(w, "    %s\n", strings.TrimLeft(sourceLine, " \t"))

	if colNum > 0 {
		visualCol := 0
		for i := 0; i < colNum-1 && i < len(sourceLine); i++ {
			if sourceLine[i] == '\t' {
				visualCol += 8
			} else {
				visualCol++
			}
		}
		adjustedCol := max(visualCol-trimCount, 0)
		fmt.Fprintf(w, "    %s^\n", strings.Repeat(" ", adjustedCol))
	}
}

func printUsage(w io.Writer) {
	fmt.Fprintf(w, `stxc - stxscript to Clarity transpiler version %s

Usage:
  stxc [options] <file|dir>...
  stxc [options] -e "code"
  stxc [options] watch [dir...]
  stxc [options] repl
  stxc [options] cache stats|clear

Options:
  --config PATH      Path to config file (default: auto-detect)
  --profile NAME     Apply a named config profile
  --target VERSION   Clarity version to generate for (default: 2.0.0)
  --asset NAME       Treat NAME as an NFT asset (repeatable)
  --out DIR          Directory for generated files
  -e CODE            Transpile a code string and print the result
  --check            Check syntax without generating code
  --print            Print Clarity to stdout instead of writing files
  --trace            Log build and generate steps
  --no-cache         Disable the build cache
  --version          Show version
  --help             Show this help

Config Resolution:
  1. --config flag
  2. STXC_CONFIG environment variable
  3. ./stxc.yaml
  4. ~/.config/stxc/stxc.yaml

Examples:
  stxc token.stx                  Write token.clar next to token.stx
  stxc --out build contracts      Transpile a directory into build/
  stxc -e "let x: int = 5;"       Prints (define-data-var x int 5)
  stxc --check contracts/*.stx    Check several files
  stxc --target 1.0 token.stx     Generate for Clarity 1
  stxc watch contracts            Rebuild on change

`, stxscript.Version)
}
