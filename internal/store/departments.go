package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

type Department struct {
	DeptID    string
	Details   string // opaque JSON document supplied by the caller
	UpdatedAt time.Time
}

func (s *Store) UpsertDepartment(ctx context.Context, deptID, details string) error {
	if deptID == "" || details == "" {
		return fmt.Errorf("invalid department record")
	}
	now := time.Now().UTC().Format(time.RFC3339)
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO departments (dept_id, details, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(dept_id) DO UPDATE SET
			details=excluded.details,
			updated_at=excluded.updated_at
	`, deptID, details, now)
	return err
}

func (s *Store) GetDepartment(ctx context.Context, deptID string) (Department, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT dept_id, details, updated_at
		FROM departments
		WHERE dept_id = ?
	`, deptID)
	var d Department
	var updated string
	if err := row.Scan(&d.DeptID, &d.Details, &updated); err != nil {
		if err == sql.ErrNoRows {
			return Department{}, sql.ErrNoRows
		}
		return Department{}, err
	}
	d.UpdatedAt, _ = time.Parse(time.RFC3339, updated)
	return d, nil
}
