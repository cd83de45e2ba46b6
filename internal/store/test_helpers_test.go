package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/roach88/cfstore/internal/model"
)

// createTestStore opens a fresh database with deterministic UUIDs.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path, WithUUIDGenerator(model.NewSequentialGenerator()))
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// mustTx runs fn in a committed transaction and fails the test on error.
func mustTx(t *testing.T, s *Store, fn func(ctx context.Context, tx *Tx) error) {
	t.Helper()
	ctx := context.Background()
	if err := s.InTx(ctx, func(tx *Tx) error { return fn(ctx, tx) }); err != nil {
		t.Fatalf("transaction failed: %v", err)
	}
}

// createTestFile inserts a file of the given type under /data.
func createTestFile(t *testing.T, ctx context.Context, tx *Tx, name string, ft model.FileType, size int64) model.File {
	t.Helper()
	f, err := tx.InsertFile(ctx, model.File{Name: name, Path: "/data", Size: size, Type: ft})
	if err != nil {
		t.Fatalf("InsertFile(%s) failed: %v", name, err)
	}
	return f
}

// createTestPropertySet inserts a one-member property set.
func createTestPropertySet(t *testing.T, ctx context.Context, tx *Tx, key, standardName string) int64 {
	t.Helper()
	id, _, err := tx.InsertPropertySet(ctx, key)
	if err != nil {
		t.Fatalf("InsertPropertySet failed: %v", err)
	}
	if err := tx.AddPropertySetMember(ctx, id, "standard_name", `"`+standardName+`"`); err != nil {
		t.Fatalf("AddPropertySetMember failed: %v", err)
	}
	return id
}
