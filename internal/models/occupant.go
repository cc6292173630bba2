package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type Occupant struct {
	ID           string `gorm:"type:varchar(36);primaryKey" json:"id"`
	DepartmentID string `gorm:"type:varchar(36);not null;index" json:"department_id"`

	FirstName string     `gorm:"type:varchar(100);not null" json:"first_name"`
	LastName  string     `gorm:"type:varchar(100);not null" json:"last_name"`
	BirthDate *time.Time `gorm:"type:date" json:"birth_date,omitempty"`

	HouseholdSize   int             `gorm:"not null;default:1" json:"household_size"`
	DisabledCount   int             `gorm:"not null;default:0" json:"disabled_count"`
	ReceivesSupport bool            `gorm:"not null;default:false" json:"receives_support"`
	SupportAmount   decimal.Decimal `gorm:"type:decimal(12,2);default:0" json:"support_amount"`

	Status OccupantStatus `gorm:"type:varchar(20);not null;default:'ACTIVE';index" json:"status"`

	PhotoURL            string `gorm:"type:text" json:"photo_url,omitempty"`
	CurpURL             string `gorm:"type:text" json:"curp_url,omitempty"`
	ProofOfAddressURL   string `gorm:"type:text" json:"proof_of_address_url,omitempty"`
	BirthCertificateURL string `gorm:"type:text" json:"birth_certificate_url,omitempty"`
	NationalIDURL       string `gorm:"type:text" json:"national_id_url,omitempty"`

	CreatedBy string    `gorm:"type:varchar(36)" json:"created_by,omitempty"`
	CreatedAt time.Time `gorm:"type:datetime;not null;autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"type:datetime;not null;autoUpdateTime" json:"updated_at"`
}

// OccupantStatus is the lifecycle status of an occupant record
type OccupantStatus string

const (
	OccupantStatusActive    OccupantStatus = "ACTIVE"
	OccupantStatusSuspended OccupantStatus = "SUSPENDED"
	OccupantStatusInactive  OccupantStatus = "INACTIVE"
)

func (Occupant) TableName() string {
	return "occupants"
}

// IsActive reports whether the occupant currently holds the department
func (o *Occupant) IsActive() bool {
	return o.Status == OccupantStatusActive
}

// Deactivate soft-deletes the occupant; financial history is retained
func (o *Occupant) Deactivate() {
	o.Status = OccupantStatusInactive
}

// FullName returns the display name
func (o *Occupant) FullName() string {
	return o.FirstName + " " + o.LastName
}
