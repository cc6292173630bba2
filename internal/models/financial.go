package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// FinancialRecord holds the current debt position of an occupant (1:1)
type FinancialRecord struct {
	ID         string `gorm:"type:varchar(36);primaryKey" json:"id"`
	OccupantID string `gorm:"type:varchar(36);not null;uniqueIndex" json:"occupant_id"`

	Debt                decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0" json:"debt"`
	MonthlyContribution decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0" json:"monthly_contribution"`
	Remarks             string          `gorm:"type:text" json:"remarks,omitempty"`

	// FullyPaid is derived from Debt and recomputed on every write
	FullyPaid bool `gorm:"not null;default:true" json:"fully_paid"`

	CreatedAt time.Time `gorm:"type:datetime;not null;autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"type:datetime;not null;autoUpdateTime" json:"updated_at"`
}

func (FinancialRecord) TableName() string {
	return "financial_records"
}

// Recalculate refreshes the derived flags after a debt change
func (f *FinancialRecord) Recalculate() {
	f.FullyPaid = !f.Debt.IsPositive()
}

// PaymentEvent is one payment transaction. Rows are append-only and are
// kept after occupant deactivation for audit purposes.
type PaymentEvent struct {
	ID          uint            `gorm:"primaryKey;autoIncrement" json:"id"`
	OccupantID  string          `gorm:"type:varchar(36);not null;index" json:"occupant_id"`
	Amount      decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"amount"`
	Description string          `gorm:"type:text" json:"description,omitempty"`
	PaidAt      time.Time       `gorm:"type:datetime;not null;index" json:"paid_at"`
	CreatedAt   time.Time       `gorm:"type:datetime;not null;autoCreateTime" json:"created_at"`
}

func (PaymentEvent) TableName() string {
	return "payment_events"
}
