package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

const ActionDisconnected = "Disconnected"

// Disconnection is one interruption event. It is opened by Disconnect and closed in place by Reconnect.
type Disconnection struct {
	ID               snowflake.ID `gorm:"primaryKey" json:"id"`
	ConsumerID       snowflake.ID `gorm:"not null;index" json:"consumer_id"`
	DateDisconnected time.Time    `gorm:"not null" json:"date_disconnected"`
	DateReconnected  *time.Time   `json:"date_reconnected,omitempty"`
	IsReconnected    bool         `gorm:"not null;default:false" json:"is_reconnected"`
	Remarks          string       `gorm:"not null" json:"remarks"`
	Action           string       `gorm:"type:varchar(32);not null" json:"action"`
	PerformedBy      string       `gorm:"not null" json:"performed_by"`
	ReconnectedBy    *string      `json:"reconnected_by,omitempty"`
}

func (Disconnection) TableName() string { return "disconnections" }
