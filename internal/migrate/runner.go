// Package migrate applies small additive schema changes without a full
// migration framework. Changes are idempotent: a column that already
// exists is a success, not a failure.
package migrate

import (
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/lib/pq"
	"gorm.io/gorm"
)

// Outcome of one schema change
type Outcome string

const (
	Applied       Outcome = "applied"
	AlreadyExists Outcome = "already_exists"
	Failed        Outcome = "failed"
)

// Runner executes additive schema changes against the canonical store.
type Runner struct {
	db *gorm.DB
}

func NewRunner(db *gorm.DB) *Runner {
	return &Runner{db: db}
}

// EnsureColumn adds a nullable column if it is not already present.
// Duplicate-column failures from the store are normalized to
// AlreadyExists with a nil error; every other failure surfaces as
// Failed.
func (r *Runner) EnsureColumn(table, column, columnType string) (Outcome, error) {
	stmt := fmt.Sprintf("ALTER TABLE `%s` ADD COLUMN `%s` %s", table, column, columnType)
	err := r.db.Exec(stmt).Error
	if err == nil {
		log.Printf("Migrate: added column %s.%s (%s)", table, column, columnType)
		return Applied, nil
	}
	if isDuplicateColumn(err) {
		log.Printf("Migrate: column %s.%s already exists, skipping", table, column)
		return AlreadyExists, nil
	}
	return Failed, fmt.Errorf("failed to add column %s.%s: %w", table, column, err)
}

// ColumnSpec describes one column for a batch apply
type ColumnSpec struct {
	Table      string `json:"table" binding:"required"`
	Column     string `json:"column" binding:"required"`
	ColumnType string `json:"column_type" binding:"required"`
}

// ColumnResult is the per-column outcome of a batch apply
type ColumnResult struct {
	Table   string  `json:"table"`
	Column  string  `json:"column"`
	Outcome Outcome `json:"outcome"`
	Error   string  `json:"error,omitempty"`
}

// EnsureColumns applies a batch of column changes, continuing past
// per-column failures.
func (r *Runner) EnsureColumns(specs []ColumnSpec) []ColumnResult {
	results := make([]ColumnResult, 0, len(specs))
	for _, spec := range specs {
		outcome, err := r.EnsureColumn(spec.Table, spec.Column, spec.ColumnType)
		result := ColumnResult{Table: spec.Table, Column: spec.Column, Outcome: outcome}
		if err != nil {
			result.Error = err.Error()
		}
		results = append(results, result)
	}
	return results
}

// isDuplicateColumn recognizes the duplicate-column error class across
// the drivers in use: MySQL error 1060 and Postgres SQLSTATE 42701, with
// a message fallback for wrapped driver errors.
func isDuplicateColumn(err error) bool {
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		return myErr.Number == 1060
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "42701"
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "duplicate column")
}
