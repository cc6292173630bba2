package models

import "time"

// SweepLog records one run of the asset reconciliation sweep
type SweepLog struct {
	ID          uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	Trigger     string    `gorm:"type:varchar(50);not null" json:"trigger"`
	DryRun      bool      `gorm:"not null;default:false" json:"dry_run"`
	Checked     int       `gorm:"not null;default:0" json:"checked"`
	Fixed       int       `gorm:"not null;default:0" json:"fixed"`
	Cleared     int       `gorm:"not null;default:0" json:"cleared"`
	Placehold   int       `gorm:"not null;default:0" json:"placeholders"`
	Missing     int       `gorm:"not null;default:0" json:"missing"`
	Orphans     int       `gorm:"not null;default:0" json:"orphans"`
	Failed      int       `gorm:"not null;default:0" json:"failed"`
	StartedAt   time.Time `gorm:"type:datetime;not null" json:"started_at"`
	FinishedAt  time.Time `gorm:"type:datetime;not null;index" json:"finished_at"`
	CreatedAt   time.Time `gorm:"type:datetime;not null;autoCreateTime" json:"created_at"`
}

func (SweepLog) TableName() string {
	return "sweep_logs"
}

// Trigger source constants
const (
	SweepTriggerManual    = "manual"
	SweepTriggerScheduled = "scheduled"
)
