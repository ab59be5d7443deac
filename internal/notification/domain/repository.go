package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	InsertMany(ctx context.Context, db *gorm.DB, rows []*Notification) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Notification, error)
	List(ctx context.Context, db *gorm.DB, filter ListFilter) ([]*Notification, int64, error)
	// SetFlag reports false when no row matched.
	SetFlag(ctx context.Context, db *gorm.DB, id snowflake.ID, flag Flag, value bool) (bool, error)
	Delete(ctx context.Context, db *gorm.DB, id snowflake.ID) (bool, error)
}
