package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

type Notification struct {
	ID         snowflake.ID `gorm:"primaryKey" json:"id"`
	ConsumerID snowflake.ID `gorm:"not null;index" json:"consumer_id"`
	Title      string       `gorm:"not null" json:"title"`
	Message    string       `gorm:"type:text;not null" json:"message"`
	IsRead     bool         `gorm:"not null;default:false" json:"is_read"`
	IsArchived bool         `gorm:"not null;default:false;index" json:"is_archived"`
	SendToAll  bool         `gorm:"not null;default:false" json:"send_to_all"`
	CreatedAt  time.Time    `gorm:"not null;index" json:"created_at"`
}

func (Notification) TableName() string { return "notifications" }

// Draft is an unsaved notification for one consumer.
type Draft struct {
	ConsumerID snowflake.ID
	Title      string
	Message    string
	SendToAll  bool
}

type ListFilter struct {
	ConsumerID *snowflake.ID
	Archived   bool
	Search     string
	Offset     int
	Limit      int
}

// Flag is a per-row boolean that can be flipped.
type Flag string

const (
	FlagRead     Flag = "is_read"
	FlagArchived Flag = "is_archived"
)
