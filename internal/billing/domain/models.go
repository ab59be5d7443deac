package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

// Bill is one billing period charged to a consumer. Only IsPaid changes after issue, and not from here.
type Bill struct {
	ID          snowflake.ID    `gorm:"primaryKey" json:"id"`
	ConsumerID  snowflake.ID    `gorm:"not null;index" json:"consumer_id"`
	DueDate     time.Time       `gorm:"not null;index" json:"due_date"`
	TotalAmount decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"total_amount"`
	AmountDue   decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"amount_due"`
	IsPaid      bool            `gorm:"not null;default:false;index" json:"is_paid"`
	CreatedAt   time.Time       `gorm:"not null" json:"created_at"`
}

func (Bill) TableName() string { return "billings" }

// OverdueTotals groups one consumer's unpaid bills that are past due.
type OverdueTotals struct {
	ConsumerID    snowflake.ID
	BillCount     int
	TotalAmount   decimal.Decimal
	LatestDueDate time.Time
}
