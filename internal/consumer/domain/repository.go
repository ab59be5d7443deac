package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

var ErrNotFound = errors.New("not_found")

// StatusUpdate is the consumer side of a service transition.
type StatusUpdate struct {
	Status                Status
	ActiveDisconnectionID *snowflake.ID
	UpdatedAt             time.Time
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, consumer *Consumer) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Consumer, error)
	// FindByIDForUpdate row-locks the consumer where the dialect supports it.
	FindByIDForUpdate(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Consumer, error)
	ListByIDs(ctx context.Context, db *gorm.DB, ids []snowflake.ID) ([]*Consumer, error)
	ListAll(ctx context.Context, db *gorm.DB) ([]*Consumer, error)
	UpdateStatus(ctx context.Context, db *gorm.DB, id snowflake.ID, update StatusUpdate) error
}
