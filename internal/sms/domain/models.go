package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

type Status string

const (
	StatusQueued  Status = "queued"
	StatusSending Status = "sending"
	StatusSent    Status = "sent"
	StatusFailed  Status = "failed"
)

// SmsLog records one transmission attempt to one contact number.
type SmsLog struct {
	ID              snowflake.ID  `gorm:"primaryKey" json:"id"`
	BatchID         string        `gorm:"type:char(26);not null;index" json:"batch_id"`
	ConsumerID      *snowflake.ID `gorm:"index" json:"consumer_id,omitempty"`
	ContactNumber   string        `gorm:"not null" json:"contact_number"`
	Message         string        `gorm:"type:text;not null" json:"message"`
	Status          Status        `gorm:"type:varchar(16);not null;index" json:"status"`
	IsSuccess       bool          `gorm:"not null;default:false" json:"is_success"`
	ResponseMessage string        `gorm:"type:text" json:"response_message"`
	QueuedAt        time.Time     `gorm:"not null;index" json:"queued_at"`
	ClaimedAt       *time.Time    `json:"claimed_at,omitempty"`
	SentAt          *time.Time    `json:"sent_at,omitempty"`
}

func (SmsLog) TableName() string { return "sms_logs" }

// Job is the queue payload for one SmsLog row.
type Job struct {
	LogID   snowflake.ID `json:"log_id"`
	To      string       `json:"to"`
	Message string       `json:"message"`
	Attempt int          `json:"attempt,omitempty"`
}

// Outcome is the final state a worker writes back to a log row.
type Outcome struct {
	Status   Status
	Success  bool
	Response string
	At       time.Time
}
