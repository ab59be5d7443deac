package domain

import (
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
)

type Status string

const (
	StatusActive       Status = "active"
	StatusDisconnected Status = "disconnected"
)

// Consumer is a water service account holder.
// Status and IsDisconnected move together; ActiveDisconnectionID points at the open interruption event.
type Consumer struct {
	ID                    snowflake.ID  `gorm:"primaryKey" json:"id"`
	FirstName             string        `gorm:"not null" json:"first_name"`
	LastName              string        `gorm:"not null" json:"last_name"`
	ContactNumber         string        `gorm:"column:contact_number" json:"contact_number"`
	AccountNumber         *string       `gorm:"column:account_number;uniqueIndex" json:"account_number,omitempty"`
	Address               string        `json:"address,omitempty"`
	Status                Status        `gorm:"type:varchar(32);not null;default:'active'" json:"status"`
	IsDisconnected        bool          `gorm:"not null;default:false" json:"is_disconnected"`
	ActiveDisconnectionID *snowflake.ID `gorm:"column:active_disconnection_id" json:"active_disconnection_id,omitempty"`
	CreatedAt             time.Time     `gorm:"not null" json:"created_at"`
	UpdatedAt             time.Time     `gorm:"not null" json:"updated_at"`
}

func (Consumer) TableName() string { return "consumers" }

func (c Consumer) DisplayName() string {
	return strings.TrimSpace(c.FirstName + " " + c.LastName)
}

func (c Consumer) HasContact() bool {
	return strings.TrimSpace(c.ContactNumber) != ""
}
