package legacy

import (
	"database/sql"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"residence-portal/internal/models"
)

func TestInferLevelNumber(t *testing.T) {
	tests := []struct {
		label string
		want  int
	}{
		{"101", 1},
		{"102", 1},
		{"201", 2},
		{"999", 9},
		{"1001", 10},
		{"2204", 22},
		{"12305", 123},
		{"101-B", 1},
		{"3A", 3},
		{"42", 4},
		{"07", 0},
		{"7", 7},
	}
	for _, tc := range tests {
		got, err := InferLevelNumber(tc.label)
		require.NoError(t, err, "label %q", tc.label)
		assert.Equal(t, tc.want, got, "label %q", tc.label)
	}
}

func TestInferLevelNumber_NoLeadingDigits(t *testing.T) {
	for _, label := range []string{"", "PH", "A-101", "piso"} {
		_, err := InferLevelNumber(label)
		var labelErr *models.LabelFormatError
		require.ErrorAs(t, err, &labelErr, "label %q", label)
		assert.Equal(t, label, labelErr.Label)
	}
}

func TestInferLevelNumber_Deterministic(t *testing.T) {
	first, err := InferLevelNumber("2204")
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		again, err := InferLevelNumber("2204")
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestFromBuilding_NestsFloorsAndApartments(t *testing.T) {
	b := Building{ID: 7, Letter: "B", Description: sql.NullString{String: "Torre B", Valid: true}}
	floors := []Floor{
		{ID: 20, BuildingID: 7, Number: 2, Name: sql.NullString{String: "Segundo", Valid: true}},
		{ID: 10, BuildingID: 7, Number: 1},
	}
	apartments := []Apartment{
		{ID: 100, BuildingID: 7, FloorID: sql.NullInt64{Int64: 10, Valid: true}, Number: "101"},
		{ID: 101, BuildingID: 7, FloorID: sql.NullInt64{Int64: 10, Valid: true}, Number: "102"},
		{ID: 200, BuildingID: 7, FloorID: sql.NullInt64{Int64: 20, Valid: true}, Number: "201"},
	}
	residents := []Resident{
		{ID: 55, ApartmentID: 100, FirstName: "Ana", LastName: "Lopez", Active: true,
			ReceivesHelp: true, HelpAmount: sql.NullString{String: "1500.00", Valid: true}},
	}

	tower, issues := FromBuilding(b, floors, apartments, residents)
	require.Empty(t, issues)

	assert.Equal(t, "legacy-building-7", tower.ID)
	assert.Equal(t, "B", tower.Label)
	require.Len(t, tower.Levels, 2)

	// Levels come back sorted by number regardless of row order.
	assert.Equal(t, 1, tower.Levels[0].Number)
	assert.Equal(t, 2, tower.Levels[1].Number)
	assert.Equal(t, "legacy-floor-10", tower.Levels[0].ID)

	require.Len(t, tower.Levels[0].Departments, 2)
	dept := tower.Levels[0].Departments[0]
	assert.Equal(t, "legacy-apartment-100", dept.ID)
	assert.Equal(t, "legacy-floor-10", dept.LevelID)
	assert.Equal(t, tower.ID, dept.TowerID)
	assert.Equal(t, "101", dept.Label)

	require.Len(t, dept.Occupants, 1)
	occ := dept.Occupants[0]
	assert.Equal(t, "legacy-resident-55", occ.ID)
	assert.Equal(t, dept.ID, occ.DepartmentID)
	assert.Equal(t, models.OccupantStatusActive, occ.Status)
	assert.True(t, occ.SupportAmount.Equal(decimal.RequireFromString("1500.00")))
}

func TestFromBuilding_InactiveResident(t *testing.T) {
	b := Building{ID: 1, Letter: "A"}
	floors := []Floor{{ID: 10, BuildingID: 1, Number: 1}}
	apartments := []Apartment{{ID: 100, BuildingID: 1, FloorID: sql.NullInt64{Int64: 10, Valid: true}, Number: "101"}}
	residents := []Resident{{ID: 5, ApartmentID: 100, FirstName: "Luis", LastName: "Mora", Active: false}}

	tower, _ := FromBuilding(b, floors, apartments, residents)
	occ := tower.Levels[0].Departments[0].Occupants[0]
	assert.Equal(t, models.OccupantStatusInactive, occ.Status)
}

func TestFromBuilding_ReportsUnknownFloorReference(t *testing.T) {
	b := Building{ID: 4, Letter: "F"}
	floors := []Floor{{ID: 10, BuildingID: 4, Number: 1}}
	apartments := []Apartment{
		{ID: 100, BuildingID: 4, FloorID: sql.NullInt64{Int64: 10, Valid: true}, Number: "101"},
		// Valid floor id pointing at a floor row that no longer exists.
		{ID: 200, BuildingID: 4, FloorID: sql.NullInt64{Int64: 999, Valid: true}, Number: "201"},
	}

	tower, issues := FromBuilding(b, floors, apartments, nil)

	require.Len(t, issues, 1)
	assert.Equal(t, int64(200), issues[0].ApartmentID)
	assert.Equal(t, "201", issues[0].Label)
	assert.Contains(t, issues[0].Reason, "999")

	// The placed apartment is still mapped; the broken one is absent but
	// accounted for.
	require.Len(t, tower.Levels, 1)
	require.Len(t, tower.Levels[0].Departments, 1)
	assert.Equal(t, "101", tower.Levels[0].Departments[0].Label)
}

func TestFromTowerHeuristic_GroupsByInferredLevel(t *testing.T) {
	b := Building{ID: 3, Letter: "C"}
	apartments := []Apartment{
		{ID: 1, BuildingID: 3, Number: "101"},
		{ID: 2, BuildingID: 3, Number: "102"},
		{ID: 3, BuildingID: 3, Number: "2204"},
		{ID: 4, BuildingID: 3, Number: "PH"},
		// Explicit floor link: must not be re-inferred.
		{ID: 5, BuildingID: 3, FloorID: sql.NullInt64{Int64: 99, Valid: true}, Number: "301"},
	}

	tower, issues := FromTowerHeuristic(b, apartments)

	require.Len(t, tower.Levels, 2)
	assert.Equal(t, 1, tower.Levels[0].Number)
	assert.Equal(t, "legacy-building-3-level-1", tower.Levels[0].ID)
	assert.Len(t, tower.Levels[0].Departments, 2)
	assert.Equal(t, 22, tower.Levels[1].Number)
	assert.Len(t, tower.Levels[1].Departments, 1)

	require.Len(t, issues, 1)
	assert.Equal(t, int64(4), issues[0].ApartmentID)
	assert.Equal(t, "PH", issues[0].Label)
}

func TestFromTowerHeuristic_Deterministic(t *testing.T) {
	b := Building{ID: 3, Letter: "C"}
	apartments := []Apartment{
		{ID: 1, BuildingID: 3, Number: "903"},
		{ID: 2, BuildingID: 3, Number: "102"},
		{ID: 3, BuildingID: 3, Number: "901"},
	}

	first, _ := FromTowerHeuristic(b, apartments)
	for i := 0; i < 5; i++ {
		again, _ := FromTowerHeuristic(b, apartments)
		assert.Equal(t, first, again)
	}
}

func TestMergeHeuristicLevels(t *testing.T) {
	b := Building{ID: 8, Letter: "D"}
	floors := []Floor{{ID: 30, BuildingID: 8, Number: 1}}
	linked := []Apartment{{ID: 1, BuildingID: 8, FloorID: sql.NullInt64{Int64: 30, Valid: true}, Number: "101"}}
	unlinked := []Apartment{
		{ID: 2, BuildingID: 8, Number: "103"},
		{ID: 3, BuildingID: 8, Number: "502"},
	}

	tower, _ := FromBuilding(b, floors, linked, nil)
	heuristic, issues := FromTowerHeuristic(b, append(linked, unlinked...))
	require.Empty(t, issues)

	MergeHeuristicLevels(tower, heuristic)

	require.Len(t, tower.Levels, 2)

	// "103" joins the explicit floor 1 and is rehomed onto its level ID.
	level1 := tower.Levels[0]
	assert.Equal(t, 1, level1.Number)
	require.Len(t, level1.Departments, 2)
	assert.Equal(t, "legacy-floor-30", level1.Departments[1].LevelID)

	// "502" opens a new heuristic level.
	level5 := tower.Levels[1]
	assert.Equal(t, 5, level5.Number)
	assert.Equal(t, "legacy-building-8-level-5", level5.ID)
}

func TestPlaceOnLevel(t *testing.T) {
	b := Building{ID: 9, Letter: "E"}
	apartments := []Apartment{
		{ID: 1, BuildingID: 9, Number: "101"},
		{ID: 2, BuildingID: 9, Number: "PH"},
		{ID: 3, BuildingID: 9, Number: "azotea"},
	}

	_, issues := FromTowerHeuristic(b, apartments)
	require.Len(t, issues, 2)

	fallback := PlaceOnLevel(b, apartments, issues, 1)
	require.Len(t, fallback.Levels, 1)
	assert.Equal(t, 1, fallback.Levels[0].Number)
	require.Len(t, fallback.Levels[0].Departments, 2)
	assert.Equal(t, "PH", fallback.Levels[0].Departments[0].Label)
	assert.Equal(t, "legacy-building-9-level-1", fallback.Levels[0].Departments[0].LevelID)
}

func TestPlaceOnLevel_NoIssuesNoLevels(t *testing.T) {
	b := Building{ID: 9, Letter: "E"}
	fallback := PlaceOnLevel(b, []Apartment{{ID: 1, Number: "101"}}, nil, 1)
	assert.Empty(t, fallback.Levels)
}

func TestToResidentUpdate_StripsDisabledWithoutSupport(t *testing.T) {
	occ := &models.Occupant{
		FirstName:       "Eva",
		LastName:        "Reyes",
		HouseholdSize:   4,
		DisabledCount:   2,
		ReceivesSupport: false,
		SupportAmount:   decimal.RequireFromString("800.50"),
		Status:          models.OccupantStatusActive,
	}

	u := ToResidentUpdate(occ, 42)

	assert.Equal(t, int64(42), u.ID)
	assert.Equal(t, 0, u.DisabledCount)
	assert.False(t, u.ReceivesHelp)
	assert.True(t, u.Active)
	assert.Equal(t, "800.50", u.HelpAmount)
}

func TestToResidentUpdate_KeepsDisabledWithSupport(t *testing.T) {
	occ := &models.Occupant{
		FirstName:       "Eva",
		LastName:        "Reyes",
		DisabledCount:   1,
		ReceivesSupport: true,
		SupportAmount:   decimal.NewFromInt(1200),
		Status:          models.OccupantStatusSuspended,
	}

	u := ToResidentUpdate(occ, 42)

	assert.Equal(t, 1, u.DisabledCount)
	assert.True(t, u.ReceivesHelp)
	assert.False(t, u.Active)
	assert.Equal(t, "1200.00", u.HelpAmount)
}

func TestLabelFormatErrorUnwrapsFromHeuristic(t *testing.T) {
	_, err := InferLevelNumber("sotano")
	var labelErr *models.LabelFormatError
	assert.True(t, errors.As(err, &labelErr))
}
