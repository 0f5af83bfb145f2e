package resultstore

import (
	"fmt"
	"os"
	"sort"
)

// LockSuffix is appended to the result file name while an increment is
// being written.
const LockSuffix = ".lock"

// Writer appends increments to a result file, holding the lock marker for
// the duration of each write.
type Writer struct {
	*Store
}

// NewWriter opens or creates the result file at path.
func NewWriter(path string) (*Writer, error) {
	s, err := Create(path)
	if err != nil {
		return nil, err
	}
	return &Writer{Store: s}, nil
}

// LockPath is the marker file guarding path.
func LockPath(path string) string { return path + LockSuffix }

// WithLock runs fn while the lock marker exists.
func (w *Writer) WithLock(fn func() error) error {
	lock := LockPath(w.path)
	if err := os.WriteFile(lock, nil, 0o644); err != nil {
		return fmt.Errorf("create lock marker: %w", err)
	}
	defer os.Remove(lock)
	return fn()
}

// Append writes one increment with its base fields.
func (w *Writer) Append(inc int, t float64, fields map[string]Field) error {
	return w.WithLock(func() error {
		tx, err := w.db.Begin()
		if err != nil {
			return fmt.Errorf("begin increment %d: %w", inc, err)
		}
		if _, err := tx.Exec("INSERT INTO increments (inc, time) VALUES (?, ?)", inc, t); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("insert increment %d: %w", inc, err)
		}
		names := make([]string, 0, len(fields))
		for name := range fields {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			if err := w.put(tx, inc, name, fields[name], false); err != nil {
				_ = tx.Rollback()
				return err
			}
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit increment %d: %w", inc, err)
		}
		return nil
	})
}
