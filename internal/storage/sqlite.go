package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"github.com/klauspost/compress/zstd"
	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"
)

const schema = `
CREATE TABLE IF NOT EXISTS items (
	seq   INTEGER PRIMARY KEY AUTOINCREMENT,
	key   TEXT    NOT NULL UNIQUE,
	value BLOB    NOT NULL,
	codec INTEGER NOT NULL DEFAULT 0
);`

// Value codecs recorded per row so compression can be toggled between opens.
const (
	codecRaw  = 0
	codecZstd = 1
)

// SQLiteOptions configures a SQLite store.
type SQLiteOptions struct {
	Quota            int64 // Maximum stored bytes (keys + encoded values), 0 = unlimited
	Compress         bool  // Compress values with zstd
	CompressionLevel int   // Zstd level (1-22, default 3)
}

// SQLite is the durable store: a single-table SQLite database whose values
// are optionally zstd-compressed at rest.
type SQLite struct {
	sqlDB *sql.DB
	opts  SQLiteOptions

	encoder *zstd.Encoder
	decoder *zstd.Decoder

	// Serializes quota checks with the write that follows them.
	mu sync.Mutex
}

// OpenSQLite opens (creating if needed) the store at path.
func OpenSQLite(path string, opts SQLiteOptions) (*SQLite, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	dsn := filepath.Clean(path) + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if _, err := sqlDB.Exec(schema); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	s := &SQLite{sqlDB: sqlDB, opts: opts}

	// The decoder is always available: rows written compressed by an earlier
	// open must stay readable.
	s.decoder, err = zstd.NewReader(nil)
	if err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("failed to create zstd decoder: %w", err)
	}
	if opts.Compress {
		level := opts.CompressionLevel
		if level <= 0 {
			level = 3
		}
		s.encoder, err = zstd.NewWriter(nil,
			zstd.WithEncoderLevel(zstd.EncoderLevelFromZstd(level)))
		if err != nil {
			s.decoder.Close()
			_ = sqlDB.Close()
			return nil, fmt.Errorf("failed to create zstd encoder: %w", err)
		}
	}
	return s, nil
}

// Close closes the SQLite handle.
func (s *SQLite) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	if s.encoder != nil {
		_ = s.encoder.Close()
	}
	s.decoder.Close()
	return s.sqlDB.Close()
}

// Keys returns the stored keys in insertion order.
func (s *SQLite) Keys() ([]string, error) {
	rows, err := s.sqlDB.Query(`SELECT key FROM items ORDER BY seq`)
	if err != nil {
		return nil, mapError("list keys", err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, fmt.Errorf("scan key: %w", err)
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

// Get returns the value stored under key.
func (s *SQLite) Get(key string) (string, bool, error) {
	var (
		raw   []byte
		codec int
	)
	err := s.sqlDB.QueryRow(`SELECT value, codec FROM items WHERE key = ?`, key).Scan(&raw, &codec)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, mapError("get item", err)
	}

	switch codec {
	case codecRaw:
		return string(raw), true, nil
	case codecZstd:
		out, err := s.decoder.DecodeAll(raw, nil)
		if err != nil {
			return "", false, fmt.Errorf("decompress %q: %w", key, err)
		}
		return string(out), true, nil
	default:
		return "", false, fmt.Errorf("unknown codec %d for %q", codec, key)
	}
}

// Set stores value under key, keeping the key's original position when it
// already exists.
func (s *SQLite) Set(key, value string) error {
	encoded, codec := []byte(value), codecRaw
	if s.encoder != nil {
		encoded, codec = s.encoder.EncodeAll([]byte(value), nil), codecZstd
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.sqlDB.Begin()
	if err != nil {
		return mapError("begin", err)
	}
	defer func() { _ = tx.Rollback() }()

	if s.opts.Quota > 0 {
		var used int64
		err := tx.QueryRow(
			`SELECT COALESCE(SUM(length(CAST(key AS BLOB)) + length(value)), 0) FROM items WHERE key <> ?`,
			key,
		).Scan(&used)
		if err != nil {
			return mapError("measure usage", err)
		}
		if used+int64(len(key)+len(encoded)) > s.opts.Quota {
			return ErrQuotaExceeded
		}
	}

	_, err = tx.Exec(
		`INSERT INTO items (key, value, codec) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, codec = excluded.codec`,
		key, encoded, codec,
	)
	if err != nil {
		return mapError("set item", err)
	}
	return mapError("commit", tx.Commit())
}

// Remove deletes key.
func (s *SQLite) Remove(key string) error {
	_, err := s.sqlDB.Exec(`DELETE FROM items WHERE key = ?`, key)
	return mapError("remove item", err)
}

// Clear removes every key.
func (s *SQLite) Clear() error {
	_, err := s.sqlDB.Exec(`DELETE FROM items`)
	return mapError("clear items", err)
}

// Size returns the bytes used by keys and encoded values.
func (s *SQLite) Size() (int64, error) {
	var used int64
	err := s.sqlDB.QueryRow(
		`SELECT COALESCE(SUM(length(CAST(key AS BLOB)) + length(value)), 0) FROM items`,
	).Scan(&used)
	return used, mapError("measure usage", err)
}

// mapError turns a full database into ErrQuotaExceeded and wraps the rest.
func mapError(action string, err error) error {
	if err == nil {
		return nil
	}
	var sqliteErr *msqlite.Error
	if errors.As(err, &sqliteErr) && sqliteErr.Code()&0xff == sqlite3lib.SQLITE_FULL {
		return fmt.Errorf("%s: %w", action, ErrQuotaExceeded)
	}
	return fmt.Errorf("%s: %w", action, err)
}
