package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/mattn/go-sqlite3"

	"github.com/roach88/ndomog/internal/syncerr"
)

func TestOpen_CreatesNewDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	defer s.Close()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Error("database file was not created")
	}
}

func TestOpen_Idempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	for i := 0; i < 3; i++ {
		s, err := Open(path)
		if err != nil {
			t.Fatalf("Open() iteration %d failed: %v", i, err)
		}
		s.Close()
	}

	s, err := Open(path)
	if err != nil {
		t.Fatalf("final Open() failed: %v", err)
	}
	defer s.Close()

	tables := []Table{
		TableItems, TableCategories, TableProfiles,
		TablePendingActions, TableActivityLogs, TableSyncState,
	}
	for _, table := range tables {
		var name string
		err := s.db.QueryRow(
			"SELECT name FROM sqlite_master WHERE type='table' AND name=?",
			string(table),
		).Scan(&name)
		if err != nil {
			t.Errorf("table %q not found after idempotent opens: %v", table, err)
		}
	}

	var version int
	if err := s.db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		t.Fatalf("user_version: %v", err)
	}
	if version != currentSchemaVersion {
		t.Errorf("user_version = %d, want %d", version, currentSchemaVersion)
	}
}

func TestOpen_Pragmas(t *testing.T) {
	s := createTestStore(t)

	tests := []struct {
		pragma   string
		expected string
	}{
		{"journal_mode", "wal"},
		{"synchronous", "1"},
		{"busy_timeout", "5000"},
		{"foreign_keys", "1"},
	}

	for _, tt := range tests {
		t.Run(tt.pragma, func(t *testing.T) {
			if err := s.verifyPragma(tt.pragma, tt.expected); err != nil {
				t.Error(err)
			}
		})
	}
}

func TestUpdate_CommitsAllWrites(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	err := s.Update(ctx, func(tx *Tx) error {
		for _, id := range []string{"c1", "c2"} {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO categories (id, name) VALUES (?, ?)`, id, id); err != nil {
				return err
			}
		}
		tx.Touch(TableCategories)
		return nil
	})
	if err != nil {
		t.Fatalf("Update() failed: %v", err)
	}

	if got := countRows(t, s, TableCategories); got != 2 {
		t.Errorf("categories = %d, want 2", got)
	}
}

func TestUpdate_RollsBackOnError(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	boom := errors.New("boom")

	sub := s.Subscribe(TableCategories)
	defer sub.Cancel()

	err := s.Update(ctx, func(tx *Tx) error {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO categories (id, name) VALUES ('c1', 'Tools')`); err != nil {
			return err
		}
		tx.Touch(TableCategories)
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("Update() error = %v, want boom", err)
	}

	if got := countRows(t, s, TableCategories); got != 0 {
		t.Errorf("categories = %d after rollback, want 0", got)
	}
	if receivedWithin(sub.C, 50*time.Millisecond) {
		t.Error("subscriber notified for rolled-back transaction")
	}
}

func TestSubscribe_NotifiesTouchedTablesOnly(t *testing.T) {
	s := createTestStore(t)

	cats := s.Subscribe(TableCategories)
	defer cats.Cancel()
	items := s.Subscribe(TableItems)
	defer items.Cancel()

	insertCategory(t, s, "c1", "Tools")

	if !receivedWithin(cats.C, time.Second) {
		t.Error("categories subscriber not notified")
	}
	if receivedWithin(items.C, 50*time.Millisecond) {
		t.Error("items subscriber notified for a categories write")
	}
}

func TestSubscribe_Coalesces(t *testing.T) {
	s := createTestStore(t)

	sub := s.Subscribe(TableCategories)
	defer sub.Cancel()

	insertCategory(t, s, "c1", "Tools")
	insertCategory(t, s, "c2", "Paint")
	insertCategory(t, s, "c3", "Garden")

	if !receivedWithin(sub.C, time.Second) {
		t.Fatal("expected one pending signal")
	}
	if receivedWithin(sub.C, 50*time.Millisecond) {
		t.Error("signals did not coalesce")
	}
}

func TestSubscription_CancelClosesChannel(t *testing.T) {
	s := createTestStore(t)

	sub := s.Subscribe(TableItems)
	sub.Cancel()
	sub.Cancel()

	if _, ok := <-sub.C; ok {
		t.Error("channel still open after Cancel")
	}

	// Writes after cancel must not panic on the closed channel.
	insertCategory(t, s, "c1", "Tools")
}

func TestView_SeesCommittedState(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	insertCategory(t, s, "c1", "Tools")

	var name string
	err := s.View(ctx, func(tx *Tx) error {
		return tx.QueryRowContext(ctx, `SELECT name FROM categories WHERE id = 'c1'`).Scan(&name)
	})
	if err != nil {
		t.Fatalf("View() failed: %v", err)
	}
	if name != "Tools" {
		t.Errorf("name = %q, want Tools", name)
	}
}

func TestCursor_RoundTrip(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	at := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	got, err := s.Cursor(ctx, "items")
	if err != nil {
		t.Fatalf("Cursor() failed: %v", err)
	}
	if got != "" {
		t.Errorf("missing cursor = %q, want empty", got)
	}

	for _, cursor := range []string{"3", "7"} {
		err := s.Update(ctx, func(tx *Tx) error {
			return tx.SetCursor(ctx, "items", cursor, at)
		})
		if err != nil {
			t.Fatalf("SetCursor(%s) failed: %v", cursor, err)
		}
	}

	got, err = s.Cursor(ctx, "items")
	if err != nil {
		t.Fatalf("Cursor() failed: %v", err)
	}
	if got != "7" {
		t.Errorf("cursor = %q, want 7", got)
	}

	err = s.Update(ctx, func(tx *Tx) error { return tx.ClearCursors(ctx) })
	if err != nil {
		t.Fatalf("ClearCursors() failed: %v", err)
	}
	if n := countRows(t, s, TableSyncState); n != 0 {
		t.Errorf("sync_state rows = %d after clear, want 0", n)
	}
}

func TestCursor_ClearOne(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	at := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	err := s.Update(ctx, func(tx *Tx) error {
		if err := tx.SetCursor(ctx, "items", "4", at); err != nil {
			return err
		}
		return tx.SetCursor(ctx, "categories", "4", at)
	})
	if err != nil {
		t.Fatalf("SetCursor() failed: %v", err)
	}

	err = s.Update(ctx, func(tx *Tx) error {
		if err := tx.ClearCursor(ctx, "items"); err != nil {
			return err
		}
		return tx.ClearCursor(ctx, "never-set")
	})
	if err != nil {
		t.Fatalf("ClearCursor() failed: %v", err)
	}

	if got, _ := s.Cursor(ctx, "items"); got != "" {
		t.Errorf("items cursor = %q after clear, want empty", got)
	}
	if got, _ := s.Cursor(ctx, "categories"); got != "4" {
		t.Errorf("categories cursor = %q, want 4", got)
	}
}

func TestUpdate_PanicRollsBack(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	at := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	func() {
		defer func() {
			if recover() == nil {
				t.Fatal("Update() did not propagate the panic")
			}
		}()
		_ = s.Update(ctx, func(tx *Tx) error {
			if err := tx.SetCursor(ctx, "items", "1", at); err != nil {
				return err
			}
			panic("boom")
		})
	}()

	if n := countRows(t, s, TableSyncState); n != 0 {
		t.Errorf("sync_state rows = %d after panic, want 0", n)
	}

	// The single connection must be free again.
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	err := s.Update(ctx, func(tx *Tx) error {
		return tx.SetCursor(ctx, "items", "2", at)
	})
	if err != nil {
		t.Fatalf("Update() after panic failed: %v", err)
	}
}

func TestPendingActions_IDsNotReused(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	insert := func() int64 {
		var id int64
		err := s.Update(ctx, func(tx *Tx) error {
			res, err := tx.ExecContext(ctx, `
				INSERT INTO pending_actions (type, entity_id, payload, created_at)
				VALUES ('add_item', 'i1', '{}', 1)`)
			if err != nil {
				return err
			}
			id, err = res.LastInsertId()
			return err
		})
		if err != nil {
			t.Fatalf("insert: %v", err)
		}
		return id
	}

	first := insert()
	if _, err := s.db.Exec(`DELETE FROM pending_actions`); err != nil {
		t.Fatalf("delete: %v", err)
	}
	second := insert()

	if second <= first {
		t.Errorf("id %d reused after delete (first was %d)", second, first)
	}
}

func TestClassify(t *testing.T) {
	busy := sqlite3.Error{Code: sqlite3.ErrBusy}
	if err := Classify("write", busy); !syncerr.IsTransient(err) {
		t.Errorf("busy classified as %v, want TRANSIENT_IO", err)
	}

	locked := sqlite3.Error{Code: sqlite3.ErrLocked}
	if err := Classify("write", locked); !syncerr.IsTransient(err) {
		t.Errorf("locked classified as %v, want TRANSIENT_IO", err)
	}

	if err := Classify("write", errors.New("constraint failed")); !syncerr.IsFatal(err) {
		t.Errorf("generic error classified as %v, want FATAL", err)
	}

	if Classify("write", nil) != nil {
		t.Error("Classify(nil) should be nil")
	}
}
