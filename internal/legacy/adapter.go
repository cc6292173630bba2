package legacy

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/shopspring/decimal"

	"residence-portal/internal/models"
)

// ImportIssue reports a legacy apartment the adapter could not place:
// a label the heuristic cannot parse, or a floor reference no floor row
// backs. Issues are surfaced in the import response, never dropped.
type ImportIssue struct {
	ApartmentID int64  `json:"apartment_id"`
	Label       string `json:"label"`
	Reason      string `json:"reason"`
}

// InferLevelNumber infers the floor index from a legacy department label.
// The old schema encoded the floor in the leading digits of the apartment
// number: the last two digits are the unit within the floor, the rest is
// the floor ("101" -> 1, "2204" -> 22). Labels with one or two digits
// keep only their first digit as the floor. Labels without leading digits
// fail with *models.LabelFormatError.
//
// This is a backfill fallback for rows that predate explicit floor links.
// It must never override a stored floor association.
func InferLevelNumber(label string) (int, error) {
	digits := leadingDigits(label)
	if digits == "" {
		return 0, &models.LabelFormatError{Label: label}
	}
	if len(digits) >= 3 {
		digits = digits[:len(digits)-2]
	} else {
		digits = digits[:1]
	}
	n, err := strconv.Atoi(digits)
	if err != nil {
		return 0, &models.LabelFormatError{Label: label}
	}
	return n, nil
}

func leadingDigits(s string) string {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return s[:i]
		}
	}
	return s
}

// FromBuilding maps a legacy building with its floors and apartments into
// a canonical tower. The legacy rows already nest apartment under floor,
// so the mapping is direct and no heuristic is involved. Residents are
// attached to their departments when provided. Apartments whose floor
// reference matches no floor row are returned as issues.
func FromBuilding(b Building, floors []Floor, apartments []Apartment, residents []Resident) (*models.Tower, []ImportIssue) {
	tower := &models.Tower{
		ID:          legacyTowerID(b.ID),
		Label:       b.Letter,
		Description: b.Description.String,
		ImageURL:    b.ImagePath.String,
	}

	floorIDs := make(map[int64]bool, len(floors))
	for _, f := range floors {
		floorIDs[f.ID] = true
	}

	var issues []ImportIssue
	byFloor := make(map[int64][]Apartment)
	for _, a := range apartments {
		if !a.FloorID.Valid {
			continue
		}
		if !floorIDs[a.FloorID.Int64] {
			issues = append(issues, ImportIssue{
				ApartmentID: a.ID,
				Label:       a.Number,
				Reason:      fmt.Sprintf("references unknown floor %d", a.FloorID.Int64),
			})
			continue
		}
		byFloor[a.FloorID.Int64] = append(byFloor[a.FloorID.Int64], a)
	}
	byApartment := make(map[int64][]Resident)
	for _, r := range residents {
		byApartment[r.ApartmentID] = append(byApartment[r.ApartmentID], r)
	}

	for _, f := range floors {
		level := models.Level{
			ID:       legacyLevelID(f.ID),
			TowerID:  tower.ID,
			Number:   f.Number,
			Name:     f.Name.String,
			ImageURL: f.ImagePath.String,
		}
		for _, a := range byFloor[f.ID] {
			dept := models.Department{
				ID:          legacyDepartmentID(a.ID),
				LevelID:     level.ID,
				TowerID:     tower.ID,
				Label:       a.Number,
				Description: a.Description.String,
			}
			for _, r := range byApartment[a.ID] {
				dept.Occupants = append(dept.Occupants, fromResident(r, dept.ID))
			}
			level.Departments = append(level.Departments, dept)
		}
		tower.Levels = append(tower.Levels, level)
	}

	sortLevels(tower)
	return tower, issues
}

// FromTowerHeuristic builds a canonical tower for legacy buildings whose
// apartments carry no floor link, grouping departments by the level
// number inferred from their labels. Apartments that do carry a floor
// link are never re-inferred. Unparsable labels are returned as issues;
// the caller decides whether to default them or reject the import.
func FromTowerHeuristic(b Building, apartments []Apartment) (*models.Tower, []ImportIssue) {
	tower := &models.Tower{
		ID:          legacyTowerID(b.ID),
		Label:       b.Letter,
		Description: b.Description.String,
		ImageURL:    b.ImagePath.String,
	}

	var issues []ImportIssue
	byNumber := make(map[int][]Apartment)
	for _, a := range apartments {
		if a.FloorID.Valid {
			// Explicit association wins; heuristic rows only.
			continue
		}
		n, err := InferLevelNumber(a.Number)
		if err != nil {
			issues = append(issues, ImportIssue{
				ApartmentID: a.ID,
				Label:       a.Number,
				Reason:      err.Error(),
			})
			continue
		}
		byNumber[n] = append(byNumber[n], a)
	}

	numbers := make([]int, 0, len(byNumber))
	for n := range byNumber {
		numbers = append(numbers, n)
	}
	sort.Ints(numbers)

	for _, n := range numbers {
		level := models.Level{
			ID:      legacyHeuristicLevelID(b.ID, n),
			TowerID: tower.ID,
			Number:  n,
			Name:    fmt.Sprintf("Piso %d", n),
		}
		for _, a := range byNumber[n] {
			level.Departments = append(level.Departments, models.Department{
				ID:          legacyDepartmentID(a.ID),
				LevelID:     level.ID,
				TowerID:     tower.ID,
				Label:       a.Number,
				Description: a.Description.String,
			})
		}
		tower.Levels = append(tower.Levels, level)
	}

	return tower, issues
}

// MergeHeuristicLevels folds heuristic-built levels into a tower built
// from explicit floor rows. Buildings migrated halfway have both kinds
// of apartment rows; departments inferred onto an existing floor number
// join that level, new numbers add a level.
func MergeHeuristicLevels(tower, heuristic *models.Tower) {
	byNumber := make(map[int]int, len(tower.Levels))
	for i, l := range tower.Levels {
		byNumber[l.Number] = i
	}
	for _, hl := range heuristic.Levels {
		if i, ok := byNumber[hl.Number]; ok {
			for _, d := range hl.Departments {
				d.LevelID = tower.Levels[i].ID
				tower.Levels[i].Departments = append(tower.Levels[i].Departments, d)
			}
			continue
		}
		tower.Levels = append(tower.Levels, hl)
	}
	sortLevels(tower)
}

// PlaceOnLevel builds a fallback tower placing the apartments named in
// issues onto one explicit level number. Imports call it only when the
// request opted in to a default level; unparsable labels are never
// defaulted silently.
func PlaceOnLevel(b Building, apartments []Apartment, issues []ImportIssue, number int) *models.Tower {
	wanted := make(map[int64]bool, len(issues))
	for _, issue := range issues {
		wanted[issue.ApartmentID] = true
	}

	tower := &models.Tower{ID: legacyTowerID(b.ID), Label: b.Letter}
	level := models.Level{
		ID:      legacyHeuristicLevelID(b.ID, number),
		TowerID: tower.ID,
		Number:  number,
		Name:    fmt.Sprintf("Piso %d", number),
	}
	for _, a := range apartments {
		if !wanted[a.ID] {
			continue
		}
		level.Departments = append(level.Departments, models.Department{
			ID:          legacyDepartmentID(a.ID),
			LevelID:     level.ID,
			TowerID:     tower.ID,
			Label:       a.Number,
			Description: a.Description.String,
		})
	}
	if len(level.Departments) > 0 {
		tower.Levels = append(tower.Levels, level)
	}
	return tower
}

// ToResidentUpdate strips canonical-only fields before writing an
// occupant back to the old schema. The disabled-member count is forced to
// zero when the occupant receives no support, matching what the legacy
// application expects.
func ToResidentUpdate(o *models.Occupant, legacyID int64) ResidentUpdate {
	disabled := o.DisabledCount
	if !o.ReceivesSupport {
		disabled = 0
	}
	return ResidentUpdate{
		ID:            legacyID,
		FirstName:     o.FirstName,
		LastName:      o.LastName,
		HouseholdSize: o.HouseholdSize,
		DisabledCount: disabled,
		ReceivesHelp:  o.ReceivesSupport,
		HelpAmount:    o.SupportAmount.StringFixed(2),
		Active:        o.Status == models.OccupantStatusActive,
	}
}

func fromResident(r Resident, departmentID string) models.Occupant {
	o := models.Occupant{
		ID:                  legacyOccupantID(r.ID),
		DepartmentID:        departmentID,
		FirstName:           r.FirstName,
		LastName:            r.LastName,
		HouseholdSize:       r.HouseholdSize,
		DisabledCount:       r.DisabledCount,
		ReceivesSupport:     r.ReceivesHelp,
		Status:              models.OccupantStatusInactive,
		PhotoURL:            r.PhotoPath.String,
		CurpURL:             r.CurpPath.String,
		ProofOfAddressURL:   r.AddressPath.String,
		BirthCertificateURL: r.BirthCertPath.String,
		NationalIDURL:       r.IDCardPath.String,
		CreatedAt:           r.CreatedAt,
	}
	if r.Active {
		o.Status = models.OccupantStatusActive
	}
	if r.BirthDate.Valid {
		t := r.BirthDate.Time
		o.BirthDate = &t
	}
	if r.HelpAmount.Valid {
		if amt, err := decimal.NewFromString(r.HelpAmount.String); err == nil {
			o.SupportAmount = amt
		}
	}
	if r.CreatedBy.Valid {
		o.CreatedBy = strconv.FormatInt(r.CreatedBy.Int64, 10)
	}
	return o
}

// Deterministic canonical IDs for imported rows so re-imports upsert
// instead of duplicating.
func legacyTowerID(id int64) string { return fmt.Sprintf("legacy-building-%d", id) }
func legacyLevelID(id int64) string { return fmt.Sprintf("legacy-floor-%d", id) }
func legacyDepartmentID(id int64) string { return fmt.Sprintf("legacy-apartment-%d", id) }
func legacyOccupantID(id int64) string { return fmt.Sprintf("legacy-resident-%d", id) }

func legacyHeuristicLevelID(buildingID int64, number int) string {
	return fmt.Sprintf("legacy-building-%d-level-%d", buildingID, number)
}

func sortLevels(t *models.Tower) {
	sort.Slice(t.Levels, func(i, j int) bool {
		return t.Levels[i].Number < t.Levels[j].Number
	})
}
