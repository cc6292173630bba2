package models

import (
	"errors"
	"fmt"
)

// Sentinel errors, checked with errors.Is
var (
	// ErrSweepRunning is returned when a reconciliation sweep is triggered
	// while another one is still in progress.
	ErrSweepRunning = errors.New("reconciliation sweep already running")
)

// ValidationError reports bad input before any write happens.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed on %q: %s", e.Field, e.Message)
}

// LabelFormatError reports a legacy department label the floor heuristic
// cannot parse. Callers decide whether to default or reject; it is never
// swallowed silently.
type LabelFormatError struct {
	Label string
}

func (e *LabelFormatError) Error() string {
	return fmt.Sprintf("department label %q has no leading digits", e.Label)
}

// AssetIOError reports a failed filesystem operation during reconciliation.
// The sweep records it and continues with the next entity.
type AssetIOError struct {
	Op   string
	Path string
	Err  error
}

func (e *AssetIOError) Error() string {
	return fmt.Sprintf("asset %s failed for %s: %v", e.Op, e.Path, e.Err)
}

func (e *AssetIOError) Unwrap() error {
	return e.Err
}

// ReferentialIntegrityError reports a delete blocked by dependent rows.
// No partial delete is performed.
type ReferentialIntegrityError struct {
	Entity     string
	ID         string
	Dependents int64
}

func (e *ReferentialIntegrityError) Error() string {
	return fmt.Sprintf("cannot delete %s %s: %d dependent occupant(s) exist", e.Entity, e.ID, e.Dependents)
}
