// Package cache stores generated Clarity keyed by a hash of the source and
// the options that affect the output. Outputs are zstd-compressed in a
// SQLite database so that unchanged files are not transpiled again by
// stxc and stxc watch.
package cache

import (
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/klauspost/compress/zstd"

	// SQLite driver (pure Go, no CGO required)
	_ "modernc.org/sqlite"
)

// statFile is replaced in tests.
var statFile = os.Stat

// Shared codecs. EncodeAll and DecodeAll are safe for concurrent use.
var (
	encoder, _ = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	decoder, _ = zstd.NewReader(nil)
)

// Cache is a persistent store of transpiled outputs.
type Cache struct {
	mu          sync.RWMutex
	db          *sql.DB
	path        string
	maxSize     int64 // Maximum database size in bytes (0 disables pruning)
	truncatePct int   // Percentage of entries to delete when pruning
}

// Config holds configuration for the cache.
type Config struct {
	Path        string // Database file path
	MaxSize     int64  // Max size in bytes (0 disables pruning)
	TruncatePct int    // Percentage to delete when pruning (default 25%)
}

// Stats summarizes the cache contents.
type Stats struct {
	Entries         int
	SourceBytes     int64 // Uncompressed size of the cached outputs
	CompressedBytes int64 // Size of the stored payloads
}

// Key derives the cache key for a source under the given options. The
// transpiler version is part of the key so upgrades invalidate old entries.
func Key(source, version, target string, assets []string) string {
	sorted := slices.Clone(assets)
	slices.Sort(sorted)

	h := sha256.New()
	for _, part := range []string{version, target, strings.Join(sorted, ","), source} {
		h.Write([]byte(part))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Open opens or creates the cache database at cfg.Path.
func Open(cfg Config) (*Cache, error) {
	if cfg.Path == "" {
		return nil, errors.New("cache path is required")
	}

	if err := os.MkdirAll(filepath.Dir(cfg.Path), 0755); err != nil {
		return nil, fmt.Errorf("creating cache directory: %w", err)
	}

	// WAL mode lets stxc and stxc watch share the file
	db, err := sql.Open("sqlite", cfg.Path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening cache database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("connecting to cache database: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	c := &Cache{
		db:          db,
		path:        cfg.Path,
		maxSize:     cfg.MaxSize,
		truncatePct: cfg.TruncatePct,
	}
	if c.truncatePct <= 0 || c.truncatePct > 100 {
		c.truncatePct = 25
	}

	if err := c.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating cache schema: %w", err)
	}

	return c, nil
}

func (c *Cache) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS outputs (
			key TEXT PRIMARY KEY,
			filename TEXT NOT NULL DEFAULT '',
			size INTEGER NOT NULL,
			output BLOB NOT NULL,
			created DATETIME DEFAULT CURRENT_TIMESTAMP,
			used DATETIME DEFAULT CURRENT_TIMESTAMP
		);

		CREATE INDEX IF NOT EXISTS idx_outputs_used ON outputs(used);
	`
	_, err := c.db.Exec(schema)
	return err
}

// Get returns the cached output for key. The boolean is false on a miss.
func (c *Cache) Get(key string) (string, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var payload []byte
	err := c.db.QueryRow("SELECT output FROM outputs WHERE key = ?", key).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("reading cache entry: %w", err)
	}

	out, err := decoder.DecodeAll(payload, nil)
	if err != nil {
		// A corrupt entry is a miss; it is replaced on the next Put
		c.db.Exec("DELETE FROM outputs WHERE key = ?", key)
		return "", false, nil
	}

	if _, err := c.db.Exec("UPDATE outputs SET used = CURRENT_TIMESTAMP WHERE key = ?", key); err != nil {
		return "", false, fmt.Errorf("touching cache entry: %w", err)
	}
	return string(out), true, nil
}

// Put stores output under key, replacing any previous entry. A failed
// prune does not stop the write; its error is returned alongside any write
// error.
func (c *Cache) Put(key, filename, output string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var pruneErr error
	if err := c.maybePrune(); err != nil {
		pruneErr = fmt.Errorf("pruning cache: %w", err)
	}

	payload := encoder.EncodeAll([]byte(output), nil)
	_, err := c.db.Exec(`
		INSERT INTO outputs (key, filename, size, output)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			filename = excluded.filename,
			size = excluded.size,
			output = excluded.output,
			used = CURRENT_TIMESTAMP
	`, key, filename, len(output), payload)
	if err != nil {
		return errors.Join(pruneErr, fmt.Errorf("writing cache entry: %w", err))
	}
	return pruneErr
}

// Stats reports the number and size of cached entries.
func (c *Cache) Stats() (Stats, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var s Stats
	err := c.db.QueryRow(
		"SELECT COUNT(*), COALESCE(SUM(size), 0), COALESCE(SUM(LENGTH(output)), 0) FROM outputs",
	).Scan(&s.Entries, &s.SourceBytes, &s.CompressedBytes)
	if err != nil {
		return Stats{}, fmt.Errorf("reading cache stats: %w", err)
	}
	return s, nil
}

// Clear removes every entry.
func (c *Cache) Clear() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, err := c.db.Exec("DELETE FROM outputs"); err != nil {
		return fmt.Errorf("clearing cache: %w", err)
	}
	return nil
}

// maybePrune deletes the least recently used entries when the database
// file is over maxSize. Must be called with lock held.
func (c *Cache) maybePrune() error {
	if c.maxSize <= 0 {
		return nil
	}

	// Recent writes live in the WAL file until a checkpoint
	var size int64
	for _, p := range []string{c.path, c.path + "-wal"} {
		info, err := statFile(p)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return err
		}
		size += info.Size()
	}
	if size < c.maxSize {
		return nil
	}

	var total int
	if err := c.db.QueryRow("SELECT COUNT(*) FROM outputs").Scan(&total); err != nil {
		return err
	}
	if total == 0 {
		return nil
	}

	deleteCount := max(total*c.truncatePct/100, 1)
	_, err := c.db.Exec(`
		DELETE FROM outputs WHERE key IN (
			SELECT key FROM outputs ORDER BY used ASC, created ASC LIMIT ?
		)
	`, deleteCount)
	return err
}

// Close closes the database connection.
func (c *Cache) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.db.Close()
}

// Path returns the path to the database file.
func (c *Cache) Path() string {
	return c.path
}
