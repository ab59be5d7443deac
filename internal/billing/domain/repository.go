package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, bill *Bill) error
	// SummarizeOverdue groups unpaid bills due strictly before asOf per consumer and keeps
	// consumers holding at least minBills of them, ordered by consumer id.
	SummarizeOverdue(ctx context.Context, db *gorm.DB, asOf time.Time, minBills int) ([]OverdueTotals, error)
	CountUnpaidOverdue(ctx context.Context, db *gorm.DB, consumerID snowflake.ID, asOf time.Time) (int64, error)
	// ListUnpaidByConsumers returns unpaid bills ordered by consumer, due date, then id.
	ListUnpaidByConsumers(ctx context.Context, db *gorm.DB, consumerIDs []snowflake.ID) ([]*Bill, error)
}
