package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"
)

// createTestStore creates a new file-backed store for testing.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// insertCategory writes a category row through Update, touching the table.
func insertCategory(t *testing.T, s *Store, id, name string) {
	t.Helper()
	err := s.Update(context.Background(), func(tx *Tx) error {
		_, err := tx.ExecContext(context.Background(),
			`INSERT INTO categories (id, name) VALUES (?, ?)`, id, name)
		if err != nil {
			return err
		}
		tx.Touch(TableCategories)
		return nil
	})
	if err != nil {
		t.Fatalf("insert category %s: %v", id, err)
	}
}

// countRows returns the number of rows in table.
func countRows(t *testing.T, s *Store, table Table) int {
	t.Helper()
	var n int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM " + string(table)).Scan(&n); err != nil {
		t.Fatalf("count %s: %v", table, err)
	}
	return n
}

// receivedWithin reports whether a signal arrives on c before the timeout.
func receivedWithin(c <-chan struct{}, d time.Duration) bool {
	select {
	case <-c:
		return true
	case <-time.After(d):
		return false
	}
}
