package models

import "time"

type Tower struct {
	ID          string `gorm:"type:varchar(36);primaryKey" json:"id"`
	Label       string `gorm:"type:varchar(50);not null;uniqueIndex" json:"label"`
	Description string `gorm:"type:text" json:"description,omitempty"`
	ImageURL    string `gorm:"type:text" json:"image_url,omitempty"`

	Levels []Level `gorm:"foreignKey:TowerID" json:"levels,omitempty"`

	CreatedAt time.Time `gorm:"type:datetime;not null;autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"type:datetime;not null;autoUpdateTime" json:"updated_at"`
}

func (Tower) TableName() string {
	return "towers"
}

type Level struct {
	ID      string `gorm:"type:varchar(36);primaryKey" json:"id"`
	TowerID string `gorm:"type:varchar(36);not null;uniqueIndex:idx_tower_level,priority:1" json:"tower_id"`
	// Number is the floor index, unique within the tower.
	Number   int    `gorm:"not null;uniqueIndex:idx_tower_level,priority:2" json:"number"`
	Name     string `gorm:"type:varchar(100)" json:"name,omitempty"`
	ImageURL string `gorm:"type:text" json:"image_url,omitempty"`

	Departments []Department `gorm:"foreignKey:LevelID" json:"departments,omitempty"`

	CreatedAt time.Time `gorm:"type:datetime;not null;autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"type:datetime;not null;autoUpdateTime" json:"updated_at"`
}

func (Level) TableName() string {
	return "levels"
}

type Department struct {
	ID      string `gorm:"type:varchar(36);primaryKey" json:"id"`
	LevelID string `gorm:"type:varchar(36);not null;uniqueIndex:idx_level_label,priority:1" json:"level_id"`
	// TowerID is denormalized for query convenience and must always agree
	// with the owning level's tower.
	TowerID     string `gorm:"type:varchar(36);not null;index" json:"tower_id"`
	Label       string `gorm:"type:varchar(20);not null;uniqueIndex:idx_level_label,priority:2" json:"label"`
	Description string `gorm:"type:text" json:"description,omitempty"`

	Occupants []Occupant `gorm:"foreignKey:DepartmentID" json:"occupants,omitempty"`

	CreatedAt time.Time `gorm:"type:datetime;not null;autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"type:datetime;not null;autoUpdateTime" json:"updated_at"`
}

func (Department) TableName() string {
	return "departments"
}
