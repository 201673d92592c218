package store

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "test.sqlite"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestDepartmentRoundtrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if err := s.UpsertDepartment(ctx, "FD24001234", `{"name":"Springfield FD"}`); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	got, err := s.GetDepartment(ctx, "FD24001234")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.DeptID != "FD24001234" || got.Details != `{"name":"Springfield FD"}` {
		t.Fatalf("unexpected record %+v", got)
	}
	if got.UpdatedAt.IsZero() {
		t.Fatalf("updated_at should be set")
	}
}

func TestDepartmentUpsertReplaces(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if err := s.UpsertDepartment(ctx, "FD24001234", `{"v":1}`); err != nil {
		t.Fatalf("first upsert: %v", err)
	}
	if err := s.UpsertDepartment(ctx, "FD24001234", `{"v":2}`); err != nil {
		t.Fatalf("second upsert: %v", err)
	}
	got, err := s.GetDepartment(ctx, "FD24001234")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Details != `{"v":2}` {
		t.Fatalf("upsert should replace the details, got %q", got.Details)
	}
}

func TestDepartmentNotFound(t *testing.T) {
	s := openTestStore(t)
	_, err := s.GetDepartment(context.Background(), "FD99999999")
	if !errors.Is(err, sql.ErrNoRows) {
		t.Fatalf("expected sql.ErrNoRows, got %v", err)
	}
}

func TestDepartmentRejectsEmptyRecord(t *testing.T) {
	s := openTestStore(t)
	if err := s.UpsertDepartment(context.Background(), "", `{}`); err == nil {
		t.Fatalf("empty dept id must be rejected")
	}
	if err := s.UpsertDepartment(context.Background(), "FD24001234", ""); err == nil {
		t.Fatalf("empty details must be rejected")
	}
}
