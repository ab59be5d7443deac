package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/smallbiznis/tirta/internal/audit/domain"
	"github.com/smallbiznis/tirta/internal/auditcontext"
	"github.com/smallbiznis/tirta/internal/clock"
	"github.com/smallbiznis/tirta/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	defaultPageSize = 50
	maxPageSize     = 250
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Clock clock.Clock
	Repo  auditdomain.Repository
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	clock clock.Clock
	repo  auditdomain.Repository
}

func NewService(p Params) auditdomain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("audit.service"),
		genID: p.GenID,
		clock: p.Clock,
		repo:  p.Repo,
	}
}

func (s *Service) Record(ctx context.Context, db *gorm.DB, entry auditdomain.Entry) (*auditdomain.AuditTrail, error) {
	if !entry.Action.Valid() {
		return nil, auditdomain.ErrInvalidAction
	}
	details := strings.TrimSpace(entry.Details)
	if details == "" {
		return nil, auditdomain.ErrInvalidDetails
	}
	if db == nil {
		db = s.db
	}

	performedBy := strings.TrimSpace(entry.PerformedBy)
	if performedBy == "" {
		performedBy = auditcontext.ActorFromContext(ctx)
	}

	payload := datatypes.JSONMap{}
	for key, value := range entry.Metadata {
		if key == "" {
			continue
		}
		payload[key] = value
	}
	if requestID := auditcontext.RequestIDFromContext(ctx); requestID != "" {
		payload["request_id"] = requestID
	}
	if ip := auditcontext.IPAddressFromContext(ctx); ip != "" {
		payload["ip_address"] = ip
	}
	if role := auditcontext.RoleFromContext(ctx); role != "" {
		payload["role"] = role
	}

	row := auditdomain.AuditTrail{
		ID:          s.genID.Generate(),
		Action:      entry.Action,
		PerformedBy: performedBy,
		Details:     details,
		Metadata:    payload,
		Timestamp:   s.clock.Now().UTC(),
	}
	if err := s.repo.Insert(ctx, db, &row); err != nil {
		s.log.Warn("failed to write audit trail", zap.String("action", string(entry.Action)), zap.Error(err))
		return nil, err
	}
	return &row, nil
}

func (s *Service) List(ctx context.Context, req auditdomain.ListAuditTrailRequest) (auditdomain.ListAuditTrailResponse, error) {
	action := auditdomain.Action(strings.TrimSpace(req.Action))
	if action != "" && !action.Valid() {
		return auditdomain.ListAuditTrailResponse{}, auditdomain.ErrInvalidAction
	}

	var cursor *auditdomain.AuditCursor
	if token := strings.TrimSpace(req.PageToken); token != "" {
		decoded, err := pagination.DecodeCursor(token)
		if err != nil {
			return auditdomain.ListAuditTrailResponse{}, auditdomain.ErrInvalidPageToken
		}
		ts, err := time.Parse(time.RFC3339Nano, decoded.CreatedAt)
		if err != nil {
			return auditdomain.ListAuditTrailResponse{}, auditdomain.ErrInvalidPageToken
		}
		id, err := snowflake.ParseString(strings.TrimSpace(decoded.ID))
		if err != nil || id == 0 {
			return auditdomain.ListAuditTrailResponse{}, auditdomain.ErrInvalidPageToken
		}
		cursor = &auditdomain.AuditCursor{ID: id, Timestamp: ts}
	}

	pageSize := req.PageSize
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}

	items, err := s.repo.List(ctx, s.db, auditdomain.ListFilter{
		Action:      action,
		PerformedBy: req.PerformedBy,
		Cursor:      cursor,
		Limit:       pageSize,
	})
	if err != nil {
		return auditdomain.ListAuditTrailResponse{}, err
	}

	items, pageInfo := pagination.TrimCursorPage(items, pageSize, func(item *auditdomain.AuditTrail) string {
		token, err := pagination.EncodeCursor(pagination.Cursor{
			ID:        item.ID.String(),
			CreatedAt: item.Timestamp.UTC().Format(time.RFC3339Nano),
		})
		if err != nil {
			return ""
		}
		return token
	})

	trails := make([]auditdomain.AuditTrail, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		trails = append(trails, *item)
	}
	return auditdomain.ListAuditTrailResponse{CursorPageInfo: pageInfo, AuditTrails: trails}, nil
}
