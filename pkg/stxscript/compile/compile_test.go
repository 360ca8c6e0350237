package compile

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sambeau/stxscript/pkg/stxscript/cache"
	"github.com/sambeau/stxscript/pkg/stxscript/trace"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestOutputPath(t *testing.T) {
	tests := []struct {
		name string
		opts Options
		in   string
		want string
	}{
		{"next to source", Options{}, "contracts/token.stx", filepath.Join("contracts", "token.clar")},
		{"out dir", Options{OutDir: "build"}, "contracts/token.stx", filepath.Join("build", "token.clar")},
		{"extension", Options{Extension: ".clarity"}, "token.stx", "token.clarity"},
		{"below root", Options{OutDir: "build", Roots: []string{"src"}}, "src/a/token.stx", filepath.Join("build", "a", "token.clar")},
		{"at root", Options{OutDir: "build", Roots: []string{"src"}}, "src/token.stx", filepath.Join("build", "token.clar")},
		{"deepest root", Options{OutDir: "build", Roots: []string{"src", "src/lib"}}, "src/lib/x/pi.stx", filepath.Join("build", "x", "pi.clar")},
		{"outside roots", Options{OutDir: "build", Roots: []string{"src"}}, "other/token.stx", filepath.Join("build", "token.clar")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := New(tt.opts).OutputPath(tt.in); got != tt.want {
				t.Errorf("OutputPath(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestBuildFile(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "counter.stx")
	writeFile(t, src, "let counter: int = 0;\n")

	c := New(Options{OutDir: filepath.Join(dir, "out")})
	res, err := c.BuildFile(src)
	if err != nil {
		t.Fatalf("BuildFile failed: %v", err)
	}
	if res.Output != filepath.Join(dir, "out", "counter.clar") {
		t.Errorf("Output = %q", res.Output)
	}

	data, err := os.ReadFile(res.Output)
	if err != nil {
		t.Fatalf("reading output: %v", err)
	}
	if string(data) != "(define-data-var counter int 0)\n" {
		t.Errorf("output = %q", data)
	}
}

func TestBuildFileFailureWritesNothing(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "broken.stx")
	writeFile(t, src, "function f(): int {")

	c := New(Options{})
	if _, err := c.BuildFile(src); err == nil {
		t.Fatal("expected error")
	} else if !strings.Contains(err.Error(), "broken.stx") {
		t.Errorf("error should name the file: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "broken.clar")); !os.IsNotExist(err) {
		t.Error("no output should be written for a failed build")
	}
}

func TestBuildFileSameNameInSubdirectories(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src")
	a := filepath.Join(src, "a", "token.stx")
	b := filepath.Join(src, "b", "token.stx")
	writeFile(t, a, "const A: int = 1;")
	writeFile(t, b, "const B: int = 2;")
	out := filepath.Join(dir, "build")

	c := New(Options{OutDir: out, Roots: []string{src}})
	for _, path := range []string{a, b} {
		if _, err := c.BuildFile(path); err != nil {
			t.Fatalf("BuildFile(%s) failed: %v", path, err)
		}
	}
	for sub, want := range map[string]string{"a": "(define-constant A 1)\n", "b": "(define-constant B 2)\n"} {
		data, err := os.ReadFile(filepath.Join(out, sub, "token.clar"))
		if err != nil {
			t.Fatalf("reading %s output: %v", sub, err)
		}
		if string(data) != want {
			t.Errorf("%s/token.clar = %q, want %q", sub, data, want)
		}
	}
}

func TestBuildFileRejectsOutputCollision(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a", "token.stx")
	b := filepath.Join(dir, "b", "token.stx")
	writeFile(t, a, "const A: int = 1;")
	writeFile(t, b, "const B: int = 2;")
	out := filepath.Join(dir, "build")

	c := New(Options{OutDir: out})
	if _, err := c.BuildFile(a); err != nil {
		t.Fatalf("BuildFile failed: %v", err)
	}
	// Rebuilding the same source is fine
	if _, err := c.BuildFile(a); err != nil {
		t.Fatalf("rebuild failed: %v", err)
	}
	if _, err := c.BuildFile(b); err == nil || !strings.Contains(err.Error(), "both write") {
		t.Fatalf("expected a collision error, got %v", err)
	}

	data, err := os.ReadFile(filepath.Join(out, "token.clar"))
	if err != nil {
		t.Fatalf("reading output: %v", err)
	}
	if string(data) != "(define-constant A 1)\n" {
		t.Errorf("first output was overwritten: %q", data)
	}
}

func TestTranspileUsesCache(t *testing.T) {
	db, err := cache.Open(cache.Config{Path: filepath.Join(t.TempDir(), "cache.db")})
	if err != nil {
		t.Fatalf("cache.Open failed: %v", err)
	}
	defer db.Close()

	logger := trace.NewBufferedLogger()
	c := New(Options{Cache: db, Logger: logger})

	first, cached, err := c.Transpile("pi.stx", "const PI: int = 314;")
	if err != nil || cached {
		t.Fatalf("first Transpile = %v, cached=%v", err, cached)
	}
	second, cached, err := c.Transpile("pi.stx", "const PI: int = 314;")
	if err != nil || !cached {
		t.Fatalf("second Transpile = %v, cached=%v", err, cached)
	}
	if first != second || first != "(define-constant PI 314)" {
		t.Errorf("outputs differ: %q vs %q", first, second)
	}
	if !strings.Contains(logger.String(), "cache hit pi.stx") {
		t.Errorf("expected a cache hit trace line, got %q", logger.String())
	}

	// A different target is a different entry
	other := New(Options{Cache: db, Target: "2.1.0"})
	if _, cached, _ := other.Transpile("pi.stx", "const PI: int = 314;"); cached {
		t.Error("a different target should miss the cache")
	}
}

func TestCheck(t *testing.T) {
	c := New(Options{})
	if err := c.Check("a.stx", "let x: int = 1;"); err != nil {
		t.Errorf("Check failed: %v", err)
	}
	if err := c.Check("a.stx", "let x: int = ;"); err == nil {
		t.Error("expected syntax error")
	}
}

func TestFindSources(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a.stx"), "")
	writeFile(t, filepath.Join(dir, "sub", "b.STX"), "")
	writeFile(t, filepath.Join(dir, "sub", "notes.txt"), "")
	writeFile(t, filepath.Join(dir, ".hidden", "c.stx"), "")

	files, err := FindSources(dir)
	if err != nil {
		t.Fatalf("FindSources failed: %v", err)
	}
	want := []string{filepath.Join(dir, "a.stx"), filepath.Join(dir, "sub", "b.STX")}
	if len(files) != len(want) {
		t.Fatalf("got %v, want %v", files, want)
	}
	for i := range want {
		if files[i] != want[i] {
			t.Errorf("files[%d] = %q, want %q", i, files[i], want[i])
		}
	}
}
