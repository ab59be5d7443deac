package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	InsertMany(ctx context.Context, db *gorm.DB, rows []*SmsLog) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*SmsLog, error)
	// Claim moves a queued row to sending and reports whether this caller won it.
	Claim(ctx context.Context, db *gorm.DB, id snowflake.ID, at time.Time) (bool, error)
	// Finalize only touches rows in sending state and reports whether one was updated.
	Finalize(ctx context.Context, db *gorm.DB, id snowflake.ID, outcome Outcome) (bool, error)
	ListLatest(ctx context.Context, db *gorm.DB, limit int) ([]*SmsLog, error)
	// ListStaleQueued returns rows queued before the cutoff and rows whose claim is older than it.
	ListStaleQueued(ctx context.Context, db *gorm.DB, before time.Time, limit int) ([]*SmsLog, error)
	// TouchQueued puts rows back in queued state with a fresh queued_at.
	TouchQueued(ctx context.Context, db *gorm.DB, ids []snowflake.ID, at time.Time) error
	// ListRecipientIDs returns every consumer holding at least one unpaid bill, ordered by id.
	ListRecipientIDs(ctx context.Context, db *gorm.DB) ([]snowflake.ID, error)
	// ListRecipients pages consumers holding at least one unpaid bill, ordered by name.
	ListRecipients(ctx context.Context, db *gorm.DB, search string, offset, limit int) ([]Recipient, int64, error)
}
