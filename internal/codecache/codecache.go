// Package codecache persists compilation artifacts in SQLite so isolates
// can skip repeated work across processes: V8 code caches, and the output
// of source transforms for engines without one.
package codecache

import (
	"bytes"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"sync/atomic"
	"time"

	"github.com/andybalholm/brotli"
	_ "github.com/glebarez/sqlite"
	"go.uber.org/zap"

	"github.com/cryguy/jsbridge/internal/core"
)

const schema = `CREATE TABLE IF NOT EXISTS scripts (
	key     TEXT PRIMARY KEY,
	engine  TEXT NOT NULL,
	size    INTEGER NOT NULL,
	data    BLOB NOT NULL,
	created INTEGER NOT NULL
)`

// Store is a compiled-script cache backed by one SQLite database. It is
// safe for concurrent use.
type Store struct {
	db     *sql.DB
	hits   atomic.Int64
	misses atomic.Int64
	puts   atomic.Int64
}

// Stats counts cache traffic since Open.
type Stats struct {
	Hits    int64 `json:"hits"`
	Misses  int64 `json:"misses"`
	Puts    int64 `json:"puts"`
	Entries int64 `json:"entries"`
}

// Open opens (or creates) the cache at path. ":memory:" gives a private
// in-memory cache.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening code cache %q: %w", path, err)
	}
	if path == ":memory:" {
		// Each connection would get its own empty database.
		db.SetMaxOpenConns(1)
	} else {
		_, _ = db.Exec("PRAGMA journal_mode=WAL")
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating code cache schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Key derives a cache key from its parts.
func Key(parts ...string) string {
	h := sha256.New()
	for _, p := range parts {
		io.WriteString(h, p)
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Get returns the decompressed entry for key.
func (s *Store) Get(key string) ([]byte, bool) {
	var blob []byte
	var size int
	err := s.db.QueryRow("SELECT size, data FROM scripts WHERE key = ?", key).Scan(&size, &blob)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			core.Logger().Warn("code cache read failed", zap.String("key", key), zap.Error(err))
		}
		s.misses.Add(1)
		return nil, false
	}
	data, err := io.ReadAll(brotli.NewReader(bytes.NewReader(blob)))
	if err != nil || len(data) != size {
		core.Logger().Warn("code cache entry corrupt", zap.String("key", key), zap.Error(err))
		s.misses.Add(1)
		return nil, false
	}
	s.hits.Add(1)
	return data, true
}

// Put stores data under key, replacing any previous entry.
func (s *Store) Put(key, engine string, data []byte) error {
	var buf bytes.Buffer
	w := brotli.NewWriter(&buf)
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("compressing code cache entry: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("compressing code cache entry: %w", err)
	}
	_, err := s.db.Exec(
		"INSERT OR REPLACE INTO scripts (key, engine, size, data, created) VALUES (?, ?, ?, ?, ?)",
		key, engine, len(data), buf.Bytes(), time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("writing code cache entry: %w", err)
	}
	s.puts.Add(1)
	return nil
}

// Stats reports hit and miss counts and the number of stored entries.
func (s *Store) Stats() Stats {
	st := Stats{Hits: s.hits.Load(), Misses: s.misses.Load(), Puts: s.puts.Load()}
	_ = s.db.QueryRow("SELECT COUNT(*) FROM scripts").Scan(&st.Entries)
	return st
}

// Close closes the database.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Bind returns a core.CodeCache view of s whose entries are private to
// engine.
func (s *Store) Bind(engine string) core.CodeCache {
	return &bound{s: s, engine: engine}
}

type bound struct {
	s      *Store
	engine string
}

func (b *bound) Get(key string) ([]byte, bool) {
	return b.s.Get(Key(b.engine, key))
}

func (b *bound) Put(key string, data []byte) {
	if err := b.s.Put(Key(b.engine, key), b.engine, data); err != nil {
		core.Logger().Warn("code cache write failed", zap.String("engine", b.engine), zap.Error(err))
	}
}
