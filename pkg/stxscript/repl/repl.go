// Package repl is an interactive shell that prints the Clarity for each
// complete stxscript input.
package repl

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/peterh/liner"

	"github.com/sambeau/stxscript/pkg/stxscript/ast"
	"github.com/sambeau/stxscript/pkg/stxscript/codegen"
	perrors "github.com/sambeau/stxscript/pkg/stxscript/errors"
	"github.com/sambeau/stxscript/pkg/stxscript/stxscript"
)

const PROMPT = ">> "
const PROMPT_AST = "ast> "
const CONTINUATION_PROMPT = ".. "

const LOGO = `
█▀ ▀█▀ ▀▄▀ █▀▀
▄█ ░█░ █░█ █▄▄ `

// stxscript keywords, builtins and types for tab completion
var completionWords = []string{
	// Keywords
	"function", "let", "const", "class", "trait", "if", "else", "try", "catch",
	"throw", "return", "import", "export", "from", "new", "for", "in", "is", "as",
	// Decorators
	"@public", "@readonly", "@private", "@map", "@asset",
	// Builtins
	"ok", "err", "some", "none", "map", "filter", "fold",
	"tx.sender", "block.height", "contract.caller",
	// Types
	"int", "uint", "bool", "principal", "string", "list", "Optional", "Response", "Map",
	// Values
	"true", "false",
}

// Session holds the state carried between inputs: assets declared so far
// and the selected target.
type Session struct {
	assets  []string
	target  string
	showAST bool
}

// NewSession creates a session with the given configured assets and target.
func NewSession(assets []string, target string) *Session {
	return &Session{assets: slices.Clone(assets), target: target}
}

// Eval transpiles one complete input, or prints its AST in AST mode without
// generating code. Assets declared with @asset are remembered for later
// inputs once the input succeeds.
func (s *Session) Eval(input string) (string, error) {
	opts := stxscript.Options{Assets: s.assets, Target: s.target}

	prog, err := stxscript.Parse(input, opts)
	if err != nil {
		return "", err
	}

	out := prog.String()
	if !s.showAST {
		out, err = stxscript.Generate(prog, opts)
		if err != nil {
			return "", err
		}
	}

	s.rememberAssets(prog)
	return out, nil
}

func (s *Session) rememberAssets(prog *ast.Program) {
	for _, stmt := range prog.Statements {
		if exp, ok := stmt.(*ast.ExportDeclaration); ok {
			stmt = exp.Declaration
		}
		if ad, ok := stmt.(*ast.AssetDeclaration); ok && !slices.Contains(s.assets, ad.Name.Value) {
			s.assets = append(s.assets, ad.Name.Value)
		}
	}
}

// Start starts the REPL with line editing, history, and tab completion
func Start(out io.Writer, version string, session *Session) {
	line := liner.NewLiner()
	defer line.Close()

	line.SetCtrlCAborts(true)
	line.SetCompleter(filterCompletions)

	historyFile := filepath.Join(os.TempDir(), ".stxc_history")
	if f, err := os.Open(historyFile); err == nil {
		line.ReadHistory(f)
		f.Close()
	}
	defer func() {
		if f, err := os.Create(historyFile); err == nil {
			line.WriteHistory(f)
			f.Close()
		}
	}()

	fmt.Fprintf(out, "%s", LOGO)
	fmt.Fprintln(out, "v", version)
	fmt.Fprintln(out, "")
	fmt.Fprintln(out, "Type 'exit' or Ctrl+D to quit")
	fmt.Fprintln(out, "Type ':help' for REPL commands")
	fmt.Fprintln(out, "")

	var inputBuffer strings.Builder

	for {
		prompt := PROMPT
		if session.showAST {
			prompt = PROMPT_AST
		}
		if inputBuffer.Len() > 0 {
			prompt = CONTINUATION_PROMPT
		}
		input, err := line.Prompt(prompt)
		if err != nil {
			if err == liner.ErrPromptAborted {
				if inputBuffer.Len() > 0 {
					fmt.Fprintln(out, "^C (cleared)")
				} else {
					fmt.Fprintln(out, "^C")
				}
				inputBuffer.Reset()
				continue
			}
			if err == io.EOF {
				fmt.Fprintln(out, "\nGoodbye!")
				return
			}
			fmt.Fprintf(out, "Error reading input: %v\n", err)
			continue
		}

		trimmed := strings.TrimSpace(input)
		if inputBuffer.Len() == 0 && (trimmed == "exit" || trimmed == "quit") {
			fmt.Fprintln(out, "Goodbye!")
			return
		}

		if inputBuffer.Len() == 0 && strings.HasPrefix(trimmed, ":") {
			session.Command(trimmed, out)
			continue
		}

		if inputBuffer.Len() == 0 && trimmed == "" {
			continue
		}

		if inputBuffer.Len() > 0 {
			inputBuffer.WriteString("\n")
		}
		inputBuffer.WriteString(input)

		fullInput := inputBuffer.String()
		if needsMoreInput(fullInput) {
			continue
		}
		line.AppendHistory(fullInput)
		inputBuffer.Reset()

		result, err := session.Eval(fullInput)
		if err != nil {
			printError(out, err)
			continue
		}
		io.WriteString(out, result)
		io.WriteString(out, "\n")
	}
}

// Command handles REPL meta-commands that start with ':'
func (s *Session) Command(cmd string, out io.Writer) {
	name, arg, _ := strings.Cut(cmd, " ")
	arg = strings.TrimSpace(arg)

	switch name {
	case ":help", ":h", ":?":
		fmt.Fprintln(out, "REPL Commands:")
		fmt.Fprintln(out, "  :help, :h, :?    Show this help")
		fmt.Fprintln(out, "  :ast             Toggle printing the AST instead of Clarity")
		fmt.Fprintln(out, "  :assets          Show known asset names")
		fmt.Fprintln(out, "  :target [ver]    Show or set the Clarity target")
		fmt.Fprintln(out, "  :clear           Forget assets declared in this session")
		fmt.Fprintln(out, "  exit, quit       Exit the REPL")

	case ":ast":
		s.showAST = !s.showAST
		if s.showAST {
			fmt.Fprintln(out, "AST mode ON")
		} else {
			fmt.Fprintln(out, "AST mode OFF")
		}

	case ":assets":
		if len(s.assets) == 0 {
			fmt.Fprintln(out, "(no assets)")
			return
		}
		fmt.Fprintln(out, strings.Join(s.assets, ", "))

	case ":target":
		if arg == "" {
			target := s.target
			if target == "" {
				target = codegen.DefaultTarget.String()
			}
			fmt.Fprintln(out, "Clarity", target)
			return
		}
		v, err := codegen.ParseTarget(arg)
		if err != nil {
			fmt.Fprintln(out, err)
			return
		}
		s.target = v.String()
		fmt.Fprintln(out, "Target set to Clarity", s.target)

	case ":clear":
		s.assets = nil
		fmt.Fprintln(out, "Session cleared")

	default:
		fmt.Fprintf(out, "Unknown command: %s (type :help for commands)\n", cmd)
	}
}

// filterCompletions returns completion suggestions based on current input
func filterCompletions(line string) []string {
	if strings.TrimSpace(line) == "" {
		return nil
	}
	if line[len(line)-1] == ' ' || line[len(line)-1] == '\t' {
		return nil
	}

	words := strings.Fields(line)
	lastWord := words[len(words)-1]
	prefix := strings.TrimSuffix(line, lastWord)

	var matches []string
	for _, word := range completionWords {
		if strings.HasPrefix(word, lastWord) {
			matches = append(matches, prefix+word)
		}
	}
	return matches
}

// needsMoreInput checks if the input has unclosed braces, brackets or
// parentheses outside string literals and comments.
func needsMoreInput(input string) bool {
	input = strings.TrimSpace(input)
	if input == "" {
		return false
	}

	depth := 0
	inString := false
	escapeNext := false

	for i := 0; i < len(input); i++ {
		ch := input[i]

		if inString {
			switch {
			case escapeNext:
				escapeNext = false
			case ch == '\\':
				escapeNext = true
			case ch == '"':
				inString = false
			}
			continue
		}

		switch ch {
		case '"':
			inString = true
		case '/':
			if i+1 < len(input) && input[i+1] == '/' {
				// Skip to end of line
				for i < len(input) && input[i] != '\n' {
					i++
				}
			}
		case '{', '[', '(':
			depth++
		case '}', ']', ')':
			depth--
		}
	}

	return depth > 0
}

// printError prints a transpilation error with structured formatting
func printError(out io.Writer, err error) {
	var se *perrors.StxError
	if errors.As(err, &se) {
		io.WriteString(out, se.PrettyString())
		io.WriteString(out, "\n")
		return
	}
	fmt.Fprintln(out, err)
}
