package domain

import (
	"context"
	"errors"

	"github.com/smallbiznis/tirta/pkg/db/pagination"
	"gorm.io/gorm"
)

// Entry is what callers hand to Record. Empty PerformedBy resolves from the request context.
type Entry struct {
	Action      Action
	PerformedBy string
	Details     string
	Metadata    map[string]any
}

type ListAuditTrailRequest struct {
	PageToken   string
	PageSize    int
	Action      string
	PerformedBy string
}

type ListAuditTrailResponse struct {
	pagination.CursorPageInfo
	AuditTrails []AuditTrail `json:"audit_trails"`
}

type Service interface {
	// Record writes through db, which is the caller's transaction when there is one.
	Record(ctx context.Context, db *gorm.DB, entry Entry) (*AuditTrail, error)
	List(ctx context.Context, req ListAuditTrailRequest) (ListAuditTrailResponse, error)
}

var (
	ErrInvalidAction    = errors.New("invalid_action")
	ErrInvalidDetails   = errors.New("invalid_details")
	ErrInvalidPageToken = errors.New("invalid_page_token")
)
