package models

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateLevelNumber(t *testing.T) {
	tower := &Tower{
		Label: "A",
		Levels: []Level{
			{Number: 1},
			{Number: 2},
		},
	}

	assert.NoError(t, ValidateLevelNumber(tower, 3))
	assert.NoError(t, ValidateLevelNumber(tower, 0))

	err := ValidateLevelNumber(tower, 2)
	var vErr *ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "number", vErr.Field)
}

func TestValidateDepartmentLabel(t *testing.T) {
	level := &Level{
		Departments: []Department{
			{Label: "101"},
			{Label: "102"},
		},
	}

	assert.NoError(t, ValidateDepartmentLabel(level, "103"))

	var vErr *ValidationError
	require.ErrorAs(t, ValidateDepartmentLabel(level, "101"), &vErr)
	assert.Equal(t, "label", vErr.Field)

	require.ErrorAs(t, ValidateDepartmentLabel(level, "   "), &vErr)
	require.ErrorAs(t, ValidateDepartmentLabel(level, ""), &vErr)
}

func TestOccupantIsActive(t *testing.T) {
	assert.True(t, (&Occupant{Status: OccupantStatusActive}).IsActive())
	assert.False(t, (&Occupant{Status: OccupantStatusSuspended}).IsActive())
	assert.False(t, (&Occupant{Status: OccupantStatusInactive}).IsActive())
}

func TestOccupantDeactivate(t *testing.T) {
	o := &Occupant{Status: OccupantStatusActive}
	o.Deactivate()
	assert.Equal(t, OccupantStatusInactive, o.Status)
}

func TestFinancialRecordRecalculate(t *testing.T) {
	r := &FinancialRecord{Debt: decimal.NewFromInt(500)}
	r.Recalculate()
	assert.False(t, r.FullyPaid)

	r.Debt = decimal.Zero
	r.Recalculate()
	assert.True(t, r.FullyPaid)
}

func TestAssetIOErrorUnwrap(t *testing.T) {
	cause := errors.New("disk full")
	err := &AssetIOError{Op: "copy", Path: "edificios/a/edificio.jpg", Err: cause}
	assert.True(t, errors.Is(err, cause))
	assert.Contains(t, err.Error(), "edificios/a/edificio.jpg")
}

func TestReferentialIntegrityErrorMessage(t *testing.T) {
	err := &ReferentialIntegrityError{Entity: "department", ID: "d1", Dependents: 3}
	assert.Contains(t, err.Error(), "department")
	assert.Contains(t, err.Error(), "3")
}
