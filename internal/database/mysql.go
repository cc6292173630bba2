package database

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"residence-portal/internal/models"
)

type GormDB struct {
	db *gorm.DB
}

func NewGormDB(host, port, user, password, dbname string) (*GormDB, error) {
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		user, password, host, port, dbname)

	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
		NowFunc: func() time.Time {
			return time.Now().Local()
		},
	})
	if err != nil {
		return nil, err
	}

	// Test connection
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	if err := sqlDB.Ping(); err != nil {
		return nil, err
	}

	return &GormDB{db: db}, nil
}

// NewGormDBFromDB creates a GormDB wrapper from an existing gorm.DB instance
func NewGormDBFromDB(db *gorm.DB) *GormDB {
	return &GormDB{db: db}
}

// DB returns the underlying gorm.DB instance
func (gdb *GormDB) DB() *gorm.DB {
	return gdb.db
}

func (gdb *GormDB) Close() error {
	sqlDB, err := gdb.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// InitSchema creates tables using GORM AutoMigrate
func (gdb *GormDB) InitSchema() error {
	return gdb.db.AutoMigrate(
		&models.Tower{},
		&models.Level{},
		&models.Department{},
		&models.Occupant{},
		&models.FinancialRecord{},
		&models.PaymentEvent{},
		&models.SweepLog{},
	)
}

// ---- Towers ----

func (gdb *GormDB) CreateTower(t *models.Tower) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	return gdb.db.Create(t).Error
}

func (gdb *GormDB) GetTowers() ([]models.Tower, error) {
	var towers []models.Tower
	err := gdb.db.Preload("Levels", func(db *gorm.DB) *gorm.DB {
		return db.Order("levels.number ASC")
	}).Order("label ASC").Find(&towers).Error
	return towers, err
}

func (gdb *GormDB) GetTowerByID(id string) (*models.Tower, error) {
	var tower models.Tower
	err := gdb.db.Preload("Levels", func(db *gorm.DB) *gorm.DB {
		return db.Order("levels.number ASC")
	}).Preload("Levels.Departments").First(&tower, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &tower, nil
}

func (gdb *GormDB) UpdateTower(t *models.Tower) error {
	return gdb.db.Model(&models.Tower{ID: t.ID}).Updates(map[string]interface{}{
		"label":       t.Label,
		"description": t.Description,
	}).Error
}

// DeleteTower removes a tower with all its levels and departments.
// The delete is blocked while any occupant still lives under the tower,
// so financial records can never be orphaned silently.
func (gdb *GormDB) DeleteTower(id string) error {
	return gdb.db.Transaction(func(tx *gorm.DB) error {
		var dependents int64
		if err := tx.Model(&models.Occupant{}).
			Joins("JOIN departments ON departments.id = occupants.department_id").
			Where("departments.tower_id = ?", id).
			Count(&dependents).Error; err != nil {
			return err
		}
		if dependents > 0 {
			return &models.ReferentialIntegrityError{Entity: "tower", ID: id, Dependents: dependents}
		}
		if err := tx.Where("tower_id = ?", id).Delete(&models.Department{}).Error; err != nil {
			return err
		}
		if err := tx.Where("tower_id = ?", id).Delete(&models.Level{}).Error; err != nil {
			return err
		}
		result := tx.Delete(&models.Tower{}, "id = ?", id)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
}

// ---- Levels ----

// CreateLevel inserts a level after checking the floor number is free
// within the tower. The composite unique index backs the check up, so a
// concurrent insert of the same number fails at the store instead of
// corrupting the invariant.
func (gdb *GormDB) CreateLevel(l *models.Level) error {
	return gdb.db.Transaction(func(tx *gorm.DB) error {
		var tower models.Tower
		if err := tx.Preload("Levels").First(&tower, "id = ?", l.TowerID).Error; err != nil {
			return err
		}
		if err := models.ValidateLevelNumber(&tower, l.Number); err != nil {
			return err
		}
		if l.ID == "" {
			l.ID = uuid.NewString()
		}
		return tx.Create(l).Error
	})
}

func (gdb *GormDB) GetLevelsByTower(towerID string) ([]models.Level, error) {
	var levels []models.Level
	err := gdb.db.Where("tower_id = ?", towerID).Order("number ASC").Find(&levels).Error
	return levels, err
}

func (gdb *GormDB) GetLevelByID(id string) (*models.Level, error) {
	var level models.Level
	err := gdb.db.Preload("Departments").First(&level, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &level, nil
}

func (gdb *GormDB) UpdateLevel(l *models.Level) error {
	return gdb.db.Model(&models.Level{ID: l.ID}).Updates(map[string]interface{}{
		"name": l.Name,
	}).Error
}

func (gdb *GormDB) DeleteLevel(id string) error {
	return gdb.db.Transaction(func(tx *gorm.DB) error {
		var dependents int64
		if err := tx.Model(&models.Occupant{}).
			Joins("JOIN departments ON departments.id = occupants.department_id").
			Where("departments.level_id = ?", id).
			Count(&dependents).Error; err != nil {
			return err
		}
		if dependents > 0 {
			return &models.ReferentialIntegrityError{Entity: "level", ID: id, Dependents: dependents}
		}
		if err := tx.Where("level_id = ?", id).Delete(&models.Department{}).Error; err != nil {
			return err
		}
		result := tx.Delete(&models.Level{}, "id = ?", id)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
}

// ---- Departments ----

func (gdb *GormDB) CreateDepartment(d *models.Department) error {
	return gdb.db.Transaction(func(tx *gorm.DB) error {
		var level models.Level
		if err := tx.Preload("Departments").First(&level, "id = ?", d.LevelID).Error; err != nil {
			return err
		}
		if err := models.ValidateDepartmentLabel(&level, d.Label); err != nil {
			return err
		}
		if d.ID == "" {
			d.ID = uuid.NewString()
		}
		// Denormalized tower id always comes from the owning level.
		d.TowerID = level.TowerID
		return tx.Create(d).Error
	})
}

func (gdb *GormDB) GetDepartmentsByLevel(levelID string) ([]models.Department, error) {
	var departments []models.Department
	err := gdb.db.Where("level_id = ?", levelID).Order("label ASC").Find(&departments).Error
	return departments, err
}

func (gdb *GormDB) GetDepartmentByID(id string) (*models.Department, error) {
	var department models.Department
	err := gdb.db.Preload("Occupants").First(&department, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &department, nil
}

func (gdb *GormDB) UpdateDepartment(d *models.Department) error {
	return gdb.db.Model(&models.Department{ID: d.ID}).Updates(map[string]interface{}{
		"description": d.Description,
	}).Error
}

func (gdb *GormDB) DeleteDepartment(id string) error {
	return gdb.db.Transaction(func(tx *gorm.DB) error {
		var dependents int64
		if err := tx.Model(&models.Occupant{}).
			Where("department_id = ?", id).
			Count(&dependents).Error; err != nil {
			return err
		}
		if dependents > 0 {
			return &models.ReferentialIntegrityError{Entity: "department", ID: id, Dependents: dependents}
		}
		result := tx.Delete(&models.Department{}, "id = ?", id)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
}

// ---- Occupants ----

// CreateOccupant registers an occupant together with an empty financial
// record. At most one ACTIVE occupant per department: the check and the
// insert run in one transaction so concurrent registrations cannot both
// pass.
func (gdb *GormDB) CreateOccupant(o *models.Occupant) error {
	return gdb.db.Transaction(func(tx *gorm.DB) error {
		var department models.Department
		if err := tx.First(&department, "id = ?", o.DepartmentID).Error; err != nil {
			return err
		}

		if o.Status == "" {
			o.Status = models.OccupantStatusActive
		}
		if o.Status == models.OccupantStatusActive {
			var active int64
			if err := tx.Model(&models.Occupant{}).
				Where("department_id = ? AND status = ?", o.DepartmentID, models.OccupantStatusActive).
				Count(&active).Error; err != nil {
				return err
			}
			if active > 0 {
				return &models.ValidationError{
					Field:   "department_id",
					Message: "department already has an active occupant",
				}
			}
		}

		if o.ID == "" {
			o.ID = uuid.NewString()
		}
		if err := tx.Create(o).Error; err != nil {
			return err
		}

		record := models.FinancialRecord{
			ID:         uuid.NewString(),
			OccupantID: o.ID,
			FullyPaid:  true,
		}
		return tx.Create(&record).Error
	})
}

func (gdb *GormDB) GetOccupantByID(id string) (*models.Occupant, error) {
	var occupant models.Occupant
	err := gdb.db.First(&occupant, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &occupant, nil
}

func (gdb *GormDB) UpdateOccupant(o *models.Occupant) error {
	return gdb.db.Model(&models.Occupant{ID: o.ID}).Updates(map[string]interface{}{
		"first_name":       o.FirstName,
		"last_name":        o.LastName,
		"birth_date":       o.BirthDate,
		"household_size":   o.HouseholdSize,
		"disabled_count":   o.DisabledCount,
		"receives_support": o.ReceivesSupport,
		"support_amount":   o.SupportAmount,
		"status":           o.Status,
	}).Error
}

// DeactivateOccupant soft-deletes: status flips to INACTIVE and the
// financial history stays for audit.
func (gdb *GormDB) DeactivateOccupant(id string) error {
	result := gdb.db.Model(&models.Occupant{}).
		Where("id = ?", id).
		Update("status", models.OccupantStatusInactive)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// OccupantContext resolves the tower/level/department chain an occupant
// belongs to, which the path resolver needs to place their assets.
type OccupantContext struct {
	Occupant   models.Occupant
	Department models.Department
	Level      models.Level
	Tower      models.Tower
}

func (gdb *GormDB) GetOccupantContext(id string) (*OccupantContext, error) {
	var ctx OccupantContext
	if err := gdb.db.First(&ctx.Occupant, "id = ?", id).Error; err != nil {
		return nil, err
	}
	if err := gdb.db.First(&ctx.Department, "id = ?", ctx.Occupant.DepartmentID).Error; err != nil {
		return nil, err
	}
	if err := gdb.db.First(&ctx.Level, "id = ?", ctx.Department.LevelID).Error; err != nil {
		return nil, err
	}
	if err := gdb.db.First(&ctx.Tower, "id = ?", ctx.Level.TowerID).Error; err != nil {
		return nil, err
	}
	return &ctx, nil
}

// ---- Finance ----

func (gdb *GormDB) GetFinancialRecord(occupantID string) (*models.FinancialRecord, error) {
	var record models.FinancialRecord
	err := gdb.db.First(&record, "occupant_id = ?", occupantID).Error
	if err != nil {
		return nil, err
	}
	return &record, nil
}

func (gdb *GormDB) UpdateFinancialRecord(record *models.FinancialRecord) error {
	record.Recalculate()
	return gdb.db.Model(&models.FinancialRecord{}).
		Where("occupant_id = ?", record.OccupantID).
		Updates(map[string]interface{}{
			"debt":                 record.Debt,
			"monthly_contribution": record.MonthlyContribution,
			"remarks":              record.Remarks,
			"fully_paid":           record.FullyPaid,
		}).Error
}

// RecordPayment appends a payment event and reduces the occupant's debt
// in the same transaction. Debt never goes below zero.
func (gdb *GormDB) RecordPayment(event *models.PaymentEvent) error {
	return gdb.db.Transaction(func(tx *gorm.DB) error {
		var record models.FinancialRecord
		if err := tx.First(&record, "occupant_id = ?", event.OccupantID).Error; err != nil {
			return err
		}
		if event.PaidAt.IsZero() {
			event.PaidAt = time.Now()
		}
		if err := tx.Create(event).Error; err != nil {
			return err
		}
		record.Debt = record.Debt.Sub(event.Amount)
		if record.Debt.IsNegative() {
			record.Debt = decimal.Zero
		}
		record.Recalculate()
		return tx.Model(&models.FinancialRecord{}).
			Where("occupant_id = ?", event.OccupantID).
			Updates(map[string]interface{}{
				"debt":       record.Debt,
				"fully_paid": record.FullyPaid,
			}).Error
	})
}

func (gdb *GormDB) GetPayments(occupantID string) ([]models.PaymentEvent, error) {
	var events []models.PaymentEvent
	err := gdb.db.Where("occupant_id = ?", occupantID).Order("paid_at DESC").Find(&events).Error
	return events, err
}

func (gdb *GormDB) GetTotalPaid(occupantID string) (decimal.Decimal, error) {
	var total decimal.NullDecimal
	err := gdb.db.Model(&models.PaymentEvent{}).
		Where("occupant_id = ?", occupantID).
		Select("SUM(amount)").
		Scan(&total).Error
	if err != nil {
		return decimal.Zero, err
	}
	if !total.Valid {
		return decimal.Zero, nil
	}
	return total.Decimal, nil
}

// ---- Asset references ----

func (gdb *GormDB) SetTowerImage(id, url string) error {
	return gdb.db.Model(&models.Tower{}).Where("id = ?", id).Update("image_url", url).Error
}

func (gdb *GormDB) SetLevelImage(id, url string) error {
	return gdb.db.Model(&models.Level{}).Where("id = ?", id).Update("image_url", url).Error
}

func (gdb *GormDB) SetOccupantPhoto(id, url string) error {
	return gdb.db.Model(&models.Occupant{}).Where("id = ?", id).Update("photo_url", url).Error
}

func (gdb *GormDB) SetOccupantDocument(id, docKind, url string) error {
	column, ok := documentColumns[docKind]
	if !ok {
		return &models.ValidationError{Field: "doc_kind", Message: "unknown document kind " + docKind}
	}
	return gdb.db.Model(&models.Occupant{}).Where("id = ?", id).Update(column, url).Error
}

var documentColumns = map[string]string{
	"curp":                  "curp_url",
	"comprobante_domicilio": "proof_of_address_url",
	"acta_nacimiento":       "birth_certificate_url",
	"ine":                   "national_id_url",
}

// LoadTowerTree loads the full entity tree for the reconciliation sweep.
func (gdb *GormDB) LoadTowerTree() ([]models.Tower, error) {
	var towers []models.Tower
	err := gdb.db.
		Preload("Levels", func(db *gorm.DB) *gorm.DB {
			return db.Order("levels.number ASC")
		}).
		Preload("Levels.Departments").
		Preload("Levels.Departments.Occupants").
		Find(&towers).Error
	return towers, err
}

// ---- Legacy import ----

// UpsertTowerTree writes an adapted legacy tower into the canonical
// store. Existing rows (matched by the deterministic legacy IDs) are
// updated, so re-imports converge instead of duplicating.
func (gdb *GormDB) UpsertTowerTree(tower *models.Tower) error {
	return gdb.db.Transaction(func(tx *gorm.DB) error {
		if err := upsertTower(tx, tower); err != nil {
			return err
		}
		for _, level := range tower.Levels {
			if err := upsertLevel(tx, &level); err != nil {
				return err
			}
			for _, dept := range level.Departments {
				if err := upsertDepartment(tx, &dept); err != nil {
					return err
				}
				for i := range dept.Occupants {
					if err := upsertOccupant(tx, &dept.Occupants[i]); err != nil {
						return err
					}
				}
			}
		}
		return nil
	})
}

func upsertTower(tx *gorm.DB, t *models.Tower) error {
	var existing models.Tower
	err := tx.First(&existing, "id = ?", t.ID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return tx.Omit("Levels").Create(t).Error
	}
	if err != nil {
		return err
	}
	return tx.Model(&models.Tower{ID: t.ID}).Updates(map[string]interface{}{
		"label":       t.Label,
		"description": t.Description,
		"image_url":   t.ImageURL,
	}).Error
}

func upsertLevel(tx *gorm.DB, l *models.Level) error {
	var existing models.Level
	err := tx.First(&existing, "id = ?", l.ID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return tx.Omit("Departments").Create(l).Error
	}
	if err != nil {
		return err
	}
	return tx.Model(&models.Level{ID: l.ID}).Updates(map[string]interface{}{
		"number":    l.Number,
		"name":      l.Name,
		"image_url": l.ImageURL,
	}).Error
}

func upsertDepartment(tx *gorm.DB, d *models.Department) error {
	var existing models.Department
	err := tx.First(&existing, "id = ?", d.ID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return tx.Omit("Occupants").Create(d).Error
	}
	if err != nil {
		return err
	}
	return tx.Model(&models.Department{ID: d.ID}).Updates(map[string]interface{}{
		"level_id":    d.LevelID,
		"tower_id":    d.TowerID,
		"label":       d.Label,
		"description": d.Description,
	}).Error
}

func upsertOccupant(tx *gorm.DB, o *models.Occupant) error {
	var existing models.Occupant
	err := tx.First(&existing, "id = ?", o.ID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		if err := tx.Create(o).Error; err != nil {
			return err
		}
		record := models.FinancialRecord{
			ID:         uuid.NewString(),
			OccupantID: o.ID,
			FullyPaid:  true,
		}
		return tx.Create(&record).Error
	}
	if err != nil {
		return err
	}
	return tx.Model(&models.Occupant{ID: o.ID}).Updates(map[string]interface{}{
		"first_name":       o.FirstName,
		"last_name":        o.LastName,
		"household_size":   o.HouseholdSize,
		"disabled_count":   o.DisabledCount,
		"receives_support": o.ReceivesSupport,
		"support_amount":   o.SupportAmount,
		"status":           o.Status,
	}).Error
}

// ---- Sweep logs ----

func (gdb *GormDB) SaveSweepLog(entry *models.SweepLog) error {
	return gdb.db.Create(entry).Error
}

func (gdb *GormDB) GetRecentSweepLogs(limit int) ([]models.SweepLog, error) {
	var logs []models.SweepLog
	err := gdb.db.Order("finished_at DESC").Limit(limit).Find(&logs).Error
	return logs, err
}
