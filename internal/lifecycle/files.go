package lifecycle

import (
	"bufio"
	"fmt"
	"os"
	"strings"
)

const lockMarker = ".lock"

// WriteLockPresent reports whether dir holds a lock marker for an ordinary
// result write. Restart-file locks are ignored.
func WriteLockPresent(dir string) bool {
	return scanLocks(dir, func(name string) bool { return !strings.Contains(name, "restart") })
}

// AnyLockPresent reports whether dir holds any lock marker.
func AnyLockPresent(dir string) bool {
	return scanLocks(dir, func(string) bool { return true })
}

func scanLocks(dir string, keep func(string) bool) bool {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return false
	}
	for _, e := range entries {
		if strings.Contains(e.Name(), lockMarker) && keep(e.Name()) {
			return true
		}
	}
	return false
}

// LogTail returns the last n lines of the file at path.
func LogTail(path string, n int) ([]string, error) {
	if n <= 0 {
		return nil, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open log: %w", err)
	}
	defer f.Close()

	ring := make([]string, 0, n)
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	for sc.Scan() {
		if len(ring) == n {
			ring = append(ring[1:], sc.Text())
		} else {
			ring = append(ring, sc.Text())
		}
	}
	if err := sc.Err(); err != nil {
		return ring, fmt.Errorf("read log: %w", err)
	}
	return ring, nil
}
