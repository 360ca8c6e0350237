// Package compile turns .stx files into .clar files on disk. It is shared
// by the stxc command and the watcher, and consults the build cache when
// one is configured.
package compile

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/sambeau/stxscript/pkg/stxscript/cache"
	"github.com/sambeau/stxscript/pkg/stxscript/stxscript"
	"github.com/sambeau/stxscript/pkg/stxscript/trace"
)

// SourceExtension is the extension of stxscript source files.
const SourceExtension = ".stx"

// Options configures a Compiler.
type Options struct {
	Assets []string
	Target string
	OutDir string // Empty writes outputs next to their sources
	// Roots are the source directories. Under OutDir an output keeps the
	// source's path below the deepest root that contains it.
	Roots     []string
	Extension string // Output extension (default ".clar")
	Cache     *cache.Cache
	Logger    trace.Logger
}

// Result describes one compiled file.
type Result struct {
	Source string // Input path
	Output string // Written path, empty when only transpiling
	Cached bool   // Output came from the cache
}

// Compiler transpiles sources with fixed options.
type Compiler struct {
	opts   Options
	logger trace.Logger

	mu      sync.Mutex
	written map[string]string // output path -> source path
}

// New creates a Compiler.
func New(opts Options) *Compiler {
	if opts.Extension == "" {
		opts.Extension = ".clar"
	}
	return &Compiler{opts: opts, logger: trace.OrNull(opts.Logger), written: make(map[string]string)}
}

// Transpile converts source, using the cache when available. filename is
// used in error messages and may be empty.
func (c *Compiler) Transpile(filename, source string) (string, bool, error) {
	key := ""
	if c.opts.Cache != nil {
		key = cache.Key(source, stxscript.Version, c.opts.Target, c.opts.Assets)
		out, ok, err := c.opts.Cache.Get(key)
		if err != nil {
			c.logger.LogLine("cache", "error:", err)
		} else if ok {
			c.logger.LogLine("cache", "hit", displayName(filename))
			return out, true, nil
		}
	}

	out, err := stxscript.TranspileWithOptions(source, stxscript.Options{
		Filename: filename,
		Assets:   c.opts.Assets,
		Target:   c.opts.Target,
		Logger:   c.opts.Logger,
	})
	if err != nil {
		return "", false, err
	}

	if c.opts.Cache != nil {
		if err := c.opts.Cache.Put(key, filename, out); err != nil {
			c.logger.LogLine("cache", "error:", err)
		}
	}
	return out, false, nil
}

// Check parses and builds source without generating code.
func (c *Compiler) Check(filename, source string) error {
	return stxscript.Check(source, stxscript.Options{
		Filename: filename,
		Assets:   c.opts.Assets,
		Logger:   c.opts.Logger,
	})
}

// OutputPath returns where the output for the source at path is written.
func (c *Compiler) OutputPath(path string) string {
	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)) + c.opts.Extension
	if c.opts.OutDir != "" {
		return filepath.Join(c.opts.OutDir, c.relDir(path), base)
	}
	return filepath.Join(filepath.Dir(path), base)
}

// relDir returns the directory of path relative to the deepest root that
// contains it, or "." when no root does.
func (c *Compiler) relDir(path string) string {
	best, found := ".", false
	for _, root := range c.opts.Roots {
		rel, err := filepath.Rel(root, filepath.Dir(path))
		if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			continue
		}
		if !found || len(rel) < len(best) {
			best, found = rel, true
		}
	}
	return best
}

// claim records that source writes outPath. Two sources mapping to the same
// output is an error.
func (c *Compiler) claim(outPath, source string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if prev, ok := c.written[outPath]; ok && prev != source {
		return fmt.Errorf("%s and %s both write %s", prev, source, outPath)
	}
	c.written[outPath] = source
	return nil
}

// BuildFile transpiles the file at path and writes the result to
// OutputPath(path). Nothing is written when transpilation fails or when
// another source already wrote the same output.
func (c *Compiler) BuildFile(path string) (Result, error) {
	res := Result{Source: path}

	outPath := c.OutputPath(path)
	if err := c.claim(outPath, path); err != nil {
		return res, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return res, fmt.Errorf("reading %s: %w", path, err)
	}

	out, cached, err := c.Transpile(path, string(data))
	if err != nil {
		return res, err
	}
	res.Cached = cached

	if err := os.MkdirAll(filepath.Dir(outPath), 0755); err != nil {
		return res, fmt.Errorf("creating output directory: %w", err)
	}
	if err := os.WriteFile(outPath, []byte(out+"\n"), 0644); err != nil {
		return res, fmt.Errorf("writing %s: %w", outPath, err)
	}
	res.Output = outPath
	return res, nil
}

// IsSource reports whether path names an stxscript source file.
func IsSource(path string) bool {
	return strings.EqualFold(filepath.Ext(path), SourceExtension)
}

// FindSources returns the source files under root, skipping hidden
// directories.
func FindSources(root string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if strings.HasPrefix(d.Name(), ".") && path != root {
				return filepath.SkipDir
			}
			return nil
		}
		if IsSource(path) {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scanning %s: %w", root, err)
	}
	return files, nil
}

func displayName(filename string) string {
	if filename == "" {
		return "<input>"
	}
	return filename
}
