package cache

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
)

func openTestCache(t *testing.T, cfg Config) *Cache {
	t.Helper()
	if cfg.Path == "" {
		cfg.Path = filepath.Join(t.TempDir(), "nested", "cache.db")
	}
	c, err := Open(cfg)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

func TestKey(t *testing.T) {
	base := Key("let x: int = 1;", "0.3.0", "2.0.0", []string{"Kitty", "Badge"})

	if len(base) != 64 {
		t.Errorf("expected a hex sha256, got %q", base)
	}
	if got := Key("let x: int = 1;", "0.3.0", "2.0.0", []string{"Badge", "Kitty"}); got != base {
		t.Error("asset order should not change the key")
	}

	variants := map[string]string{
		"source":  Key("let x: int = 2;", "0.3.0", "2.0.0", []string{"Kitty", "Badge"}),
		"version": Key("let x: int = 1;", "0.4.0", "2.0.0", []string{"Kitty", "Badge"}),
		"target":  Key("let x: int = 1;", "0.3.0", "1.0.0", []string{"Kitty", "Badge"}),
		"assets":  Key("let x: int = 1;", "0.3.0", "2.0.0", []string{"Kitty"}),
	}
	for name, k := range variants {
		if k == base {
			t.Errorf("changing the %s should change the key", name)
		}
	}
}

func TestGetPut(t *testing.T) {
	c := openTestCache(t, Config{})

	if _, ok, err := c.Get("missing"); err != nil || ok {
		t.Fatalf("Get on empty cache = %v, %v", ok, err)
	}

	output := "(define-public (add (a int) (b int))\n  (+ a b))"
	if err := c.Put("k1", "add.stx", output); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	got, ok, err := c.Get("k1")
	if err != nil || !ok {
		t.Fatalf("Get = %v, %v", ok, err)
	}
	if got != output {
		t.Errorf("Get = %q, want %q", got, output)
	}

	// Replacing an entry keeps one row
	if err := c.Put("k1", "add.stx", "(define-constant PI 314)"); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	got, _, _ = c.Get("k1")
	if got != "(define-constant PI 314)" {
		t.Errorf("Get after replace = %q", got)
	}

	stats, err := c.Stats()
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if stats.Entries != 1 {
		t.Errorf("expected 1 entry, got %d", stats.Entries)
	}
	if stats.SourceBytes != int64(len("(define-constant PI 314)")) {
		t.Errorf("unexpected source bytes %d", stats.SourceBytes)
	}
}

func TestCompression(t *testing.T) {
	c := openTestCache(t, Config{})

	output := strings.Repeat("(define-data-var counter int 0)\n", 200)
	if err := c.Put("big", "", output); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	stats, err := c.Stats()
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if stats.CompressedBytes >= stats.SourceBytes {
		t.Errorf("expected repetitive output to compress: %d >= %d", stats.CompressedBytes, stats.SourceBytes)
	}

	got, ok, err := c.Get("big")
	if err != nil || !ok || got != output {
		t.Errorf("round trip failed: ok=%v err=%v", ok, err)
	}
}

func TestPersistence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.db")

	c, err := Open(Config{Path: path})
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if err := c.Put("k", "a.stx", "(define-constant A 1)"); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	c.Close()

	c2 := openTestCache(t, Config{Path: path})
	got, ok, err := c2.Get("k")
	if err != nil || !ok || got != "(define-constant A 1)" {
		t.Errorf("reopened Get = %q, %v, %v", got, ok, err)
	}
	if c2.Path() != path {
		t.Errorf("Path() = %q, want %q", c2.Path(), path)
	}
}

func TestClear(t *testing.T) {
	c := openTestCache(t, Config{})

	for _, k := range []string{"a", "b", "c"} {
		if err := c.Put(k, "", k); err != nil {
			t.Fatalf("Put failed: %v", err)
		}
	}
	if err := c.Clear(); err != nil {
		t.Fatalf("Clear failed: %v", err)
	}
	stats, _ := c.Stats()
	if stats.Entries != 0 {
		t.Errorf("expected empty cache, got %d entries", stats.Entries)
	}
}

func TestPrune(t *testing.T) {
	// Any real database file is larger than one byte, so every Put prunes
	c := openTestCache(t, Config{MaxSize: 1, TruncatePct: 50})

	for _, k := range []string{"a", "b", "c", "d"} {
		if err := c.Put(k, "", "(define-constant "+k+" 1)"); err != nil {
			t.Fatalf("Put failed: %v", err)
		}
	}

	stats, err := c.Stats()
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if stats.Entries >= 4 {
		t.Errorf("expected pruning to remove entries, got %d", stats.Entries)
	}
	if _, ok, _ := c.Get("d"); !ok {
		t.Error("the newest entry should survive pruning")
	}
}

func TestPutReturnsPruneError(t *testing.T) {
	c := openTestCache(t, Config{MaxSize: 1})

	statErr := errors.New("stat failed")
	statFile = func(string) (os.FileInfo, error) { return nil, statErr }
	t.Cleanup(func() { statFile = os.Stat })

	err := c.Put("a", "a.stx", "(ok true)")
	if !errors.Is(err, statErr) {
		t.Fatalf("Put error = %v, want the prune failure", err)
	}
	if !strings.Contains(err.Error(), "pruning cache") {
		t.Errorf("error %q should say pruning failed", err)
	}

	out, ok, err := c.Get("a")
	if err != nil || !ok || out != "(ok true)" {
		t.Errorf("entry should be written despite the prune failure: %q, %v, %v", out, ok, err)
	}
}

func TestConcurrentAccess(t *testing.T) {
	c := openTestCache(t, Config{})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			key := Key("source", "v", "2.0.0", nil)
			if err := c.Put(key, "", "(ok true)"); err != nil {
				t.Errorf("Put failed: %v", err)
			}
			if _, _, err := c.Get(key); err != nil {
				t.Errorf("Get failed: %v", err)
			}
		}(i)
	}
	wg.Wait()
}

func TestOpenRequiresPath(t *testing.T) {
	if _, err := Open(Config{}); err == nil {
		t.Error("expected error for empty path")
	}
}
