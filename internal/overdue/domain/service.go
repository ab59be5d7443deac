package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/tirta/pkg/db/pagination"
)

// Summary is derived per request from unpaid bills due before today.
type Summary struct {
	ConsumerID        snowflake.ID    `json:"consumer_id"`
	OverdueCount      int             `json:"overdue_count"`
	TotalUnpaidAmount decimal.Decimal `json:"total_unpaid_amount"`
	LatestDueDate     time.Time       `json:"latest_due_date"`
}

// Row joins a consumer with its overdue summary.
type Row struct {
	Summary
	ConsumerName   string  `json:"consumer_name"`
	FirstName      string  `json:"first_name"`
	LastName       string  `json:"last_name"`
	ContactNumber  string  `json:"contact_number,omitempty"`
	AccountNumber  *string `json:"account_number,omitempty"`
	IsDisconnected bool    `json:"is_disconnected"`
	Eligible       bool    `json:"eligible"`
}

type Sort string

const (
	SortName        Sort = "name"
	SortNameDesc    Sort = "name_desc"
	SortOverdue     Sort = "overdue"
	SortOverdueDesc Sort = "overdue_desc"
	SortAmount      Sort = "amount"
	SortAmountDesc  Sort = "amount_desc"
	SortDate        Sort = "date"
	SortDateDesc    Sort = "date_desc"
)

// ParseSort falls back to SortName for unknown values.
func ParseSort(value string) Sort {
	switch s := Sort(value); s {
	case SortName, SortNameDesc, SortOverdue, SortOverdueDesc,
		SortAmount, SortAmountDesc, SortDate, SortDateDesc:
		return s
	default:
		return SortName
	}
}

type ListRequest struct {
	Search   string
	Sort     string
	Page     int
	PageSize int
}

type ListResponse struct {
	pagination.PageInfo
	Sort Sort  `json:"sort"`
	Rows []Row `json:"rows"`
}

type Service interface {
	Aggregate(ctx context.Context, asOf time.Time) ([]Summary, error)
	List(ctx context.Context, req ListRequest) (ListResponse, error)
	Details(ctx context.Context, consumerID string) (Row, error)
}

var (
	ErrInvalidID = errors.New("invalid_id")
	ErrNotFound  = errors.New("not_found")
)
