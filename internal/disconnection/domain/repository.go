package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, row *Disconnection) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Disconnection, error)
	// FindLatestOpen returns the newest event that is not yet reconnected.
	FindLatestOpen(ctx context.Context, db *gorm.DB, consumerID snowflake.ID) (*Disconnection, error)
	// MarkReconnected closes an open event and reports whether a row changed.
	MarkReconnected(ctx context.Context, db *gorm.DB, id snowflake.ID, at time.Time, by string) (bool, error)
	ListByConsumer(ctx context.Context, db *gorm.DB, consumerID snowflake.ID) ([]*Disconnection, error)
}
