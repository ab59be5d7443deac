package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/tirta/pkg/db/pagination"
)

// SendRequest targets ConsumerIDs, or every consumer holding an unpaid bill when SendToAll is set.
type SendRequest struct {
	ConsumerIDs []string `json:"consumer_ids"`
	SendToAll   bool     `json:"send_to_all"`
	Message     string   `json:"message"`
}

type SendResult struct {
	BatchID string `json:"batch_id"`
	Queued  int    `json:"queued"`
	// Deferred rows were refused by the queue and stay queued for the requeue job.
	Deferred int            `json:"deferred"`
	LogIDs   []snowflake.ID `json:"log_ids"`
	// Skipped lists selected consumers with no contact number.
	Skipped []snowflake.ID `json:"skipped,omitempty"`
}

type RecipientsRequest struct {
	Search string
	pagination.Page
}

type Recipient struct {
	ConsumerID    snowflake.ID `json:"consumer_id"`
	FirstName     string       `json:"first_name"`
	LastName      string       `json:"last_name"`
	ContactNumber string       `json:"contact_number"`
	AccountNumber string       `json:"account_number,omitempty"`
	UnpaidBills   int          `json:"unpaid_bills"`
}

type RecipientsResponse struct {
	pagination.PageInfo `json:"page_info"`
	Recipients          []Recipient `json:"recipients"`
}

// LogRow is an SmsLog with the consumer's display name, "N/A" when unlinked.
type LogRow struct {
	SmsLog
	ConsumerName string `json:"consumer_name"`
}

type Service interface {
	SendBulk(ctx context.Context, req SendRequest) (SendResult, error)
	ListRecipients(ctx context.Context, req RecipientsRequest) (RecipientsResponse, error)
	ListLogs(ctx context.Context, limit int) ([]LogRow, error)
	// Requeue re-enqueues rows left queued longer than olderThan and returns how many were pushed.
	Requeue(ctx context.Context, olderThan time.Duration) (int, error)
}

var (
	ErrEmptySelection       = errors.New("empty_selection")
	ErrInvalidMessage       = errors.New("invalid_message")
	ErrInvalidID            = errors.New("invalid_id")
	ErrNoRecipients         = errors.New("no_recipients")
	ErrTransportUnavailable = errors.New("transport_unavailable")
)

// IsValidationError reports errors caused by the request itself.
func IsValidationError(err error) bool {
	return errors.Is(err, ErrEmptySelection) || errors.Is(err, ErrInvalidMessage) || errors.Is(err, ErrInvalidID)
}
