package database

import (
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"

	"residence-portal/internal/legacy"
)

// LegacyDB reads the old Building/Floor/Apartment/Resident schema that
// still lives in Postgres. It is read-mostly: the only write path is the
// resident update used to keep the old frontend working during the
// migration window.
type LegacyDB struct {
	conn *sql.DB
}

func NewLegacyDB(host, port, user, password, dbname, sslmode string) (*LegacyDB, error) {
	if sslmode == "" {
		sslmode = "disable"
	}
	connStr := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		host, port, user, password, dbname, sslmode)

	conn, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, err
	}
	if err := conn.Ping(); err != nil {
		return nil, err
	}

	return &LegacyDB{conn: conn}, nil
}

func (db *LegacyDB) Close() error {
	return db.conn.Close()
}

// GetBuildings retrieves all legacy buildings
func (db *LegacyDB) GetBuildings() ([]legacy.Building, error) {
	rows, err := db.conn.Query(`
		SELECT id, letter, description, image_path
		FROM buildings
		ORDER BY letter ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var buildings []legacy.Building
	for rows.Next() {
		var b legacy.Building
		if err := rows.Scan(&b.ID, &b.Letter, &b.Description, &b.ImagePath); err != nil {
			return nil, err
		}
		buildings = append(buildings, b)
	}
	return buildings, rows.Err()
}

// GetFloors retrieves the floors of a building
func (db *LegacyDB) GetFloors(buildingID int64) ([]legacy.Floor, error) {
	rows, err := db.conn.Query(`
		SELECT id, building_id, number, name, image_path
		FROM floors
		WHERE building_id = $1
		ORDER BY number ASC
	`, buildingID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var floors []legacy.Floor
	for rows.Next() {
		var f legacy.Floor
		if err := rows.Scan(&f.ID, &f.BuildingID, &f.Number, &f.Name, &f.ImagePath); err != nil {
			return nil, err
		}
		floors = append(floors, f)
	}
	return floors, rows.Err()
}

// GetApartments retrieves the apartments of a building. floor_id is null
// on rows that predate the explicit floor association.
func (db *LegacyDB) GetApartments(buildingID int64) ([]legacy.Apartment, error) {
	rows, err := db.conn.Query(`
		SELECT id, building_id, floor_id, number, description
		FROM apartments
		WHERE building_id = $1
		ORDER BY number ASC
	`, buildingID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var apartments []legacy.Apartment
	for rows.Next() {
		var a legacy.Apartment
		if err := rows.Scan(&a.ID, &a.BuildingID, &a.FloorID, &a.Number, &a.Description); err != nil {
			return nil, err
		}
		apartments = append(apartments, a)
	}
	return apartments, rows.Err()
}

// GetResidents retrieves all residents of a building
func (db *LegacyDB) GetResidents(buildingID int64) ([]legacy.Resident, error) {
	rows, err := db.conn.Query(`
		SELECT r.id, r.apartment_id, r.first_name, r.last_name, r.birth_date,
			   r.household_size, r.disabled_count, r.receives_help, r.help_amount,
			   r.active, r.photo_path, r.curp_path, r.address_path,
			   r.birth_cert_path, r.id_card_path, r.created_by, r.created_at
		FROM residents r
		JOIN apartments a ON a.id = r.apartment_id
		WHERE a.building_id = $1
		ORDER BY r.id ASC
	`, buildingID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var residents []legacy.Resident
	for rows.Next() {
		var r legacy.Resident
		err := rows.Scan(
			&r.ID, &r.ApartmentID, &r.FirstName, &r.LastName, &r.BirthDate,
			&r.HouseholdSize, &r.DisabledCount, &r.ReceivesHelp, &r.HelpAmount,
			&r.Active, &r.PhotoPath, &r.CurpPath, &r.AddressPath,
			&r.BirthCertPath, &r.IDCardPath, &r.CreatedBy, &r.CreatedAt,
		)
		if err != nil {
			return nil, err
		}
		residents = append(residents, r)
	}
	return residents, rows.Err()
}

// UpdateResident writes canonical occupant changes back to the old
// schema. Only the fields in ResidentUpdate are touched; legacy-only
// columns keep their values.
func (db *LegacyDB) UpdateResident(u legacy.ResidentUpdate) error {
	result, err := db.conn.Exec(`
		UPDATE residents SET
			first_name = $2,
			last_name = $3,
			household_size = $4,
			disabled_count = $5,
			receives_help = $6,
			help_amount = $7,
			active = $8
		WHERE id = $1
	`, u.ID, u.FirstName, u.LastName, u.HouseholdSize, u.DisabledCount,
		u.ReceivesHelp, u.HelpAmount, u.Active)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
