package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	consumerdomain "github.com/smallbiznis/tirta/internal/consumer/domain"
)

type Action string

const (
	ActionDisconnect Action = "Disconnect"
	ActionReconnect  Action = "Reconnect"
	ActionNotify     Action = "Notify"
)

// TransitionResult describes a committed transition.
// Redundant is set when the consumer was already in the target state and strict transitions are off.
type TransitionResult struct {
	Action          Action                `json:"action"`
	ConsumerID      snowflake.ID          `json:"consumer_id"`
	Status          consumerdomain.Status `json:"status"`
	Redundant       bool                  `json:"redundant"`
	DisconnectionID *snowflake.ID         `json:"disconnection_id,omitempty"`
	NotificationID  snowflake.ID          `json:"notification_id"`
	AuditID         snowflake.ID          `json:"audit_id"`
}

type Service interface {
	Disconnect(ctx context.Context, consumerID string) (TransitionResult, error)
	Reconnect(ctx context.Context, consumerID string) (TransitionResult, error)
	Notify(ctx context.Context, consumerID string) (TransitionResult, error)
	History(ctx context.Context, consumerID string) ([]Disconnection, error)
}

var (
	ErrInvalidID           = errors.New("invalid_id")
	ErrNotFound            = errors.New("not_found")
	ErrIneligible          = errors.New("ineligible")
	ErrAlreadyDisconnected = errors.New("already_disconnected")
	ErrNotDisconnected     = errors.New("not_disconnected")
)

// IsGuardError reports errors raised before any write.
func IsGuardError(err error) bool {
	return errors.Is(err, ErrInvalidID) ||
		errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrIneligible) ||
		errors.Is(err, ErrAlreadyDisconnected) ||
		errors.Is(err, ErrNotDisconnected)
}
