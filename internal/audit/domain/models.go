package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

type Action string

const (
	ActionDisconnect Action = "Disconnect"
	ActionReconnect  Action = "Reconnect"
	ActionNotify     Action = "Notify"
	ActionSmsSend    Action = "SmsSend"
	ActionBroadcast  Action = "Broadcast"
)

func (a Action) Valid() bool {
	switch a {
	case ActionDisconnect, ActionReconnect, ActionNotify, ActionSmsSend, ActionBroadcast:
		return true
	default:
		return false
	}
}

// AuditTrail rows are append-only.
type AuditTrail struct {
	ID          snowflake.ID      `gorm:"primaryKey" json:"id"`
	Action      Action            `gorm:"type:varchar(32);not null;index" json:"action"`
	PerformedBy string            `gorm:"not null;index" json:"performed_by"`
	Details     string            `gorm:"type:text;not null" json:"details"`
	Metadata    datatypes.JSONMap `json:"metadata,omitempty"`
	Timestamp   time.Time         `gorm:"not null;index" json:"timestamp"`
}

func (AuditTrail) TableName() string { return "audit_trails" }

type AuditCursor struct {
	ID        snowflake.ID
	Timestamp time.Time
}

type ListFilter struct {
	Action      Action
	PerformedBy string
	Cursor      *AuditCursor
	Limit       int
}
