package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/smallbiznis/tirta/internal/audit/domain"
	"github.com/smallbiznis/tirta/internal/clock"
	"github.com/smallbiznis/tirta/internal/config"
	consumerdomain "github.com/smallbiznis/tirta/internal/consumer/domain"
	"github.com/smallbiznis/tirta/internal/notification/domain"
	"github.com/smallbiznis/tirta/internal/observability/metrics"
	"github.com/smallbiznis/tirta/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB        *gorm.DB
	Log       *zap.Logger
	GenID     *snowflake.Node
	Clock     clock.Clock
	Policy    *config.PolicyHolder
	Repo      domain.Repository
	Consumers consumerdomain.Repository
	Audit     auditdomain.Service
	Metrics   *metrics.Metrics `optional:"true"`
}

type Service struct {
	db        *gorm.DB
	log       *zap.Logger
	genID     *snowflake.Node
	clock     clock.Clock
	policy    *config.PolicyHolder
	repo      domain.Repository
	consumers consumerdomain.Repository
	audit     auditdomain.Service
	metrics   *metrics.Metrics
}

func NewService(p Params) domain.Service {
	return &Service{
		db:        p.DB,
		log:       p.Log.Named("notification.service"),
		genID:     p.GenID,
		clock:     p.Clock,
		policy:    p.Policy,
		repo:      p.Repo,
		consumers: p.Consumers,
		audit:     p.Audit,
		metrics:   p.Metrics,
	}
}

func (s *Service) Emit(ctx context.Context, db *gorm.DB, consumerID snowflake.ID, title, message string) (*domain.Notification, error) {
	rows, err := s.EmitMany(ctx, db, []domain.Draft{{ConsumerID: consumerID, Title: title, Message: message}})
	if err != nil {
		return nil, err
	}
	return rows[0], nil
}

func (s *Service) EmitMany(ctx context.Context, db *gorm.DB, drafts []domain.Draft) ([]*domain.Notification, error) {
	if db == nil {
		db = s.db
	}
	now := s.clock.Now().UTC()
	rows := make([]*domain.Notification, 0, len(drafts))
	for _, d := range drafts {
		if d.ConsumerID == 0 {
			return nil, domain.ErrInvalidConsumer
		}
		title := strings.TrimSpace(d.Title)
		if title == "" {
			return nil, domain.ErrInvalidTitle
		}
		if strings.TrimSpace(d.Message) == "" {
			return nil, domain.ErrInvalidMessage
		}
		rows = append(rows, &domain.Notification{
			ID:         s.genID.Generate(),
			ConsumerID: d.ConsumerID,
			Title:      title,
			Message:    d.Message,
			SendToAll:  d.SendToAll,
			CreatedAt:  now,
		})
	}
	if err := s.repo.InsertMany(ctx, db, rows); err != nil {
		return nil, fmt.Errorf("insert notifications: %w", err)
	}
	return rows, nil
}

func (s *Service) Create(ctx context.Context, req domain.CreateRequest) (domain.Notification, error) {
	consumerID, err := parseID(req.ConsumerID, domain.ErrInvalidConsumer)
	if err != nil {
		return domain.Notification{}, err
	}

	consumer, err := s.consumers.FindByID(ctx, s.db, consumerID)
	if err != nil {
		return domain.Notification{}, err
	}
	if consumer == nil {
		return domain.Notification{}, domain.ErrNotFound
	}

	row, err := s.Emit(ctx, s.db, consumer.ID, req.Title, req.Message)
	if err != nil {
		return domain.Notification{}, err
	}
	s.metrics.RecordNotifications(ctx, "manual", 1)
	return *row, nil
}

// BroadcastAll writes one row per known consumer and one Broadcast audit row, atomically.
func (s *Service) BroadcastAll(ctx context.Context, req domain.BroadcastRequest) (domain.BroadcastResult, error) {
	title := strings.TrimSpace(req.Title)
	if title == "" {
		return domain.BroadcastResult{}, domain.ErrInvalidTitle
	}
	if strings.TrimSpace(req.Message) == "" {
		return domain.BroadcastResult{}, domain.ErrInvalidMessage
	}

	var count int
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		consumers, err := s.consumers.ListAll(ctx, tx)
		if err != nil {
			return err
		}
		if len(consumers) == 0 {
			return domain.ErrNoConsumers
		}

		drafts := make([]domain.Draft, 0, len(consumers))
		for _, c := range consumers {
			drafts = append(drafts, domain.Draft{
				ConsumerID: c.ID,
				Title:      title,
				Message:    req.Message,
				SendToAll:  true,
			})
		}
		if _, err := s.EmitMany(ctx, tx, drafts); err != nil {
			return err
		}

		_, err = s.audit.Record(ctx, tx, auditdomain.Entry{
			Action:   auditdomain.ActionBroadcast,
			Details:  fmt.Sprintf("Broadcast notification %q to %d consumers.", title, len(drafts)),
			Metadata: map[string]any{"count": len(drafts)},
		})
		if err != nil {
			return err
		}
		count = len(drafts)
		return nil
	})
	if err != nil {
		return domain.BroadcastResult{}, err
	}

	s.metrics.RecordNotifications(ctx, "broadcast", count)
	s.log.Info("broadcast notification", zap.Int("count", count))
	return domain.BroadcastResult{Count: count}, nil
}

func (s *Service) List(ctx context.Context, req domain.ListRequest) (domain.ListResponse, error) {
	page := pagination.Page{Page: req.Page, PageSize: req.PageSize}.
		Normalize(s.policy.Get().Listing.NotificationPageSize)
	return s.list(ctx, domain.ListFilter{Archived: req.Archived, Search: req.Search}, page)
}

func (s *Service) ListForConsumer(ctx context.Context, consumerID string, page pagination.Page) (domain.ListResponse, error) {
	id, err := parseID(consumerID, domain.ErrInvalidConsumer)
	if err != nil {
		return domain.ListResponse{}, err
	}
	page = page.Normalize(s.policy.Get().Listing.NotificationPageSize)
	return s.list(ctx, domain.ListFilter{ConsumerID: &id}, page)
}

func (s *Service) list(ctx context.Context, filter domain.ListFilter, page pagination.Page) (domain.ListResponse, error) {
	filter.Offset = page.Offset()
	filter.Limit = page.PageSize

	rows, total, err := s.repo.List(ctx, s.db, filter)
	if err != nil {
		return domain.ListResponse{}, err
	}

	items := make([]domain.Notification, 0, len(rows))
	for _, row := range rows {
		if row == nil {
			continue
		}
		items = append(items, *row)
	}
	return domain.ListResponse{
		PageInfo:      pagination.BuildPageInfo(page, total),
		Notifications: items,
	}, nil
}

func (s *Service) MarkAsRead(ctx context.Context, id string) error {
	return s.setFlag(ctx, id, domain.FlagRead, true)
}

func (s *Service) Archive(ctx context.Context, id string) error {
	return s.setFlag(ctx, id, domain.FlagArchived, true)
}

func (s *Service) Unarchive(ctx context.Context, id string) error {
	return s.setFlag(ctx, id, domain.FlagArchived, false)
}

func (s *Service) setFlag(ctx context.Context, rawID string, flag domain.Flag, value bool) error {
	id, err := parseID(rawID, domain.ErrInvalidID)
	if err != nil {
		return err
	}
	ok, err := s.repo.SetFlag(ctx, s.db, id, flag, value)
	if err != nil {
		return err
	}
	if ok {
		return nil
	}
	// Some drivers report zero affected rows when the value is unchanged.
	row, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return err
	}
	if row == nil {
		return domain.ErrNotFound
	}
	return nil
}

func (s *Service) Delete(ctx context.Context, rawID string) error {
	id, err := parseID(rawID, domain.ErrInvalidID)
	if err != nil {
		return err
	}
	ok, err := s.repo.Delete(ctx, s.db, id)
	if err != nil {
		return err
	}
	if !ok {
		return domain.ErrNotFound
	}
	return nil
}

func parseID(value string, invalid error) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(value))
	if err != nil || id <= 0 {
		return 0, invalid
	}
	return id, nil
}
