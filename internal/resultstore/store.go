// Package resultstore reads and writes the increment-indexed result file a
// solver run produces, and homogenizes its per-point fields.
package resultstore

import (
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"github.com/vbluemer/Homogenization-for-Damask/internal/increment"
)

// ErrFieldAbsent is returned when a base field the solver must write is
// missing from an increment.
var ErrFieldAbsent = errors.New("resultstore: field absent")

// Store is an open result file.
type Store struct {
	db   *sql.DB
	path string
}

// Open opens an existing result file. A file that is missing, truncated or
// not a result store fails here, which the monitor treats as transient.
func Open(path string) (*Store, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("stat result store: %w", err)
	}
	s, err := openDB(path)
	if err != nil {
		return nil, err
	}
	var version int
	if err := s.db.QueryRow("SELECT version FROM schema_version").Scan(&version); err != nil {
		_ = s.db.Close()
		return nil, fmt.Errorf("read schema version of %s: %w", path, err)
	}
	if version != schemaVersion {
		_ = s.db.Close()
		return nil, fmt.Errorf("result store %s has schema version %d, want %d", path, version, schemaVersion)
	}
	return s, nil
}

// Create opens path for writing, creating the file and schema when absent.
func Create(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create result dir: %w", err)
	}
	s, err := openDB(path)
	if err != nil {
		return nil, err
	}
	if err := s.migrate(); err != nil {
		_ = s.db.Close()
		return nil, err
	}
	return s, nil
}

func openDB(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	return &Store{db: db, path: path}, nil
}

func (s *Store) migrate() error {
	var n int
	err := s.db.QueryRow(
		"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	).Scan(&n)
	if err != nil {
		return fmt.Errorf("check schema_version table: %w", err)
	}
	if n > 0 {
		return nil
	}
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	if _, err := s.db.Exec("INSERT INTO schema_version (version) VALUES (?)", schemaVersion); err != nil {
		return fmt.Errorf("set schema version: %w", err)
	}
	return nil
}

// Path is the file the store was opened from.
func (s *Store) Path() string { return s.path }

// Close releases the database handle.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Increments lists the increment indices present, ascending.
func (s *Store) Increments() ([]int, error) {
	rows, err := s.db.Query("SELECT inc FROM increments ORDER BY inc")
	if err != nil {
		return nil, fmt.Errorf("list increments: %w", err)
	}
	defer rows.Close()
	var out []int
	for rows.Next() {
		var inc int
		if err := rows.Scan(&inc); err != nil {
			return nil, fmt.Errorf("scan increment: %w", err)
		}
		out = append(out, inc)
	}
	return out, rows.Err()
}

// Latest returns the newest increment index.
func (s *Store) Latest() (int, error) {
	var inc sql.NullInt64
	if err := s.db.QueryRow("SELECT MAX(inc) FROM increments").Scan(&inc); err != nil {
		return 0, fmt.Errorf("latest increment: %w", err)
	}
	if !inc.Valid {
		return 0, increment.ErrNoIncrements
	}
	return int(inc.Int64), nil
}

// Get reads one field of one increment. ok is false when the field was never
// written or derived for that increment.
func (s *Store) Get(name string, inc int) (f Field, ok bool, err error) {
	var components, points int
	var blob []byte
	err = s.db.QueryRow(
		"SELECT components, points, data FROM fields WHERE inc = ? AND name = ?", inc, name,
	).Scan(&components, &points, &blob)
	if errors.Is(err, sql.ErrNoRows) {
		return Field{}, false, nil
	}
	if err != nil {
		return Field{}, false, fmt.Errorf("get %s@%d: %w", name, inc, err)
	}
	f, err = decode(blob, components, points)
	if err != nil {
		return Field{}, false, fmt.Errorf("decode %s@%d: %w", name, inc, err)
	}
	return f, true, nil
}

// Has reports whether every increment carries the named field.
func (s *Store) Has(name string) (bool, error) {
	var missing int
	err := s.db.QueryRow(
		`SELECT COUNT(*) FROM increments i
		 WHERE NOT EXISTS (SELECT 1 FROM fields f WHERE f.inc = i.inc AND f.name = ?)`, name,
	).Scan(&missing)
	if err != nil {
		return false, fmt.Errorf("check field %s: %w", name, err)
	}
	return missing == 0, nil
}

// Meta reads a metadata value; ok is false when unset.
func (s *Store) Meta(key string) (value string, ok bool, err error) {
	err = s.db.QueryRow("SELECT value FROM meta WHERE key = ?", key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get meta %s: %w", key, err)
	}
	return value, true, nil
}

// SetMeta stores a metadata value.
func (s *Store) SetMeta(key, value string) error {
	_, err := s.db.Exec(
		"INSERT INTO meta (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value",
		key, value,
	)
	if err != nil {
		return fmt.Errorf("set meta %s: %w", key, err)
	}
	return nil
}

func (s *Store) put(tx *sql.Tx, inc int, name string, f Field, derived bool) error {
	flag := 0
	if derived {
		flag = 1
	}
	_, err := tx.Exec(
		`INSERT INTO fields (inc, name, components, points, derived, data) VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(inc, name) DO UPDATE SET components = excluded.components,
		 points = excluded.points, derived = excluded.derived, data = excluded.data`,
		inc, name, f.Components, f.Points, flag, encode(f.Data),
	)
	if err != nil {
		return fmt.Errorf("put %s@%d: %w", name, inc, err)
	}
	return nil
}

// CopyScratch copies the result file at src to dst so it can be read while
// the solver keeps writing src.
func CopyScratch(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("open result store: %w", err)
	}
	defer in.Close()
	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("create scratch copy: %w", err)
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return fmt.Errorf("copy result store: %w", err)
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("close scratch copy: %w", err)
	}
	return nil
}
