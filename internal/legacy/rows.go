// Package legacy translates between the old Building/Floor/Apartment/
// Resident schema and the canonical Tower/Level/Department/Occupant
// model. All schema-version knowledge lives here; business logic never
// branches on schema version.
package legacy

import (
	"database/sql"
	"time"
)

// Row structs mirror the old Postgres columns. Fields with no canonical
// counterpart are kept so write-backs can merge instead of zeroing them.

type Building struct {
	ID          int64
	Letter      string
	Description sql.NullString
	ImagePath   sql.NullString
}

type Floor struct {
	ID         int64
	BuildingID int64
	Number     int
	Name       sql.NullString
	ImagePath  sql.NullString
}

type Apartment struct {
	ID         int64
	BuildingID int64
	// FloorID is null in the oldest data; the floor is then inferred from
	// the apartment number via InferLevelNumber.
	FloorID     sql.NullInt64
	Number      string
	Description sql.NullString
}

type Resident struct {
	ID            int64
	ApartmentID   int64
	FirstName     string
	LastName      string
	BirthDate     sql.NullTime
	HouseholdSize int
	DisabledCount int
	ReceivesHelp  bool
	HelpAmount    sql.NullString
	Active        bool
	PhotoPath     sql.NullString
	CurpPath      sql.NullString
	AddressPath   sql.NullString
	BirthCertPath sql.NullString
	IDCardPath    sql.NullString
	CreatedBy     sql.NullInt64
	CreatedAt     time.Time
}

// ResidentUpdate carries only the fields the canonical model is allowed
// to write back to the old schema.
type ResidentUpdate struct {
	ID            int64
	FirstName     string
	LastName      string
	HouseholdSize int
	DisabledCount int
	ReceivesHelp  bool
	HelpAmount    string
	Active        bool
}
