package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	billingdomain "github.com/smallbiznis/tirta/internal/billing/domain"
	"github.com/smallbiznis/tirta/internal/clock"
	"github.com/smallbiznis/tirta/internal/config"
	consumerdomain "github.com/smallbiznis/tirta/internal/consumer/domain"
	"github.com/smallbiznis/tirta/internal/observability/tracing"
	"github.com/smallbiznis/tirta/internal/overdue/domain"
	"github.com/smallbiznis/tirta/pkg/db/pagination"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB        *gorm.DB
	Log       *zap.Logger
	Config    config.Config
	Clock     clock.Clock
	Policy    *config.PolicyHolder
	Bills     billingdomain.Repository
	Consumers consumerdomain.Repository
}

type Service struct {
	db        *gorm.DB
	log       *zap.Logger
	loc       *time.Location
	clock     clock.Clock
	policy    *config.PolicyHolder
	bills     billingdomain.Repository
	consumers consumerdomain.Repository
}

func NewService(p Params) domain.Service {
	return &Service{
		db:        p.DB,
		log:       p.Log.Named("overdue.service"),
		loc:       p.Config.Location(),
		clock:     p.Clock,
		policy:    p.Policy,
		bills:     p.Bills,
		consumers: p.Consumers,
	}
}

func (s *Service) today() time.Time {
	return clock.Today(s.clock, s.loc)
}

// Aggregate is read-only and safe to call concurrently.
func (s *Service) Aggregate(ctx context.Context, asOf time.Time) ([]domain.Summary, error) {
	totals, err := s.bills.SummarizeOverdue(ctx, s.db, clock.DateOf(asOf), s.policy.Get().EligibilityThreshold)
	if err != nil {
		return nil, err
	}
	return summarize(totals), nil
}

func (s *Service) List(ctx context.Context, req domain.ListRequest) (resp domain.ListResponse, err error) {
	ctx, span := tracing.Start(ctx, "overdue.List", attribute.String("sort", req.Sort))
	defer func() { tracing.End(span, err) }()

	summaries, err := s.Aggregate(ctx, s.today())
	if err != nil {
		return domain.ListResponse{}, err
	}

	rows, err := s.join(ctx, summaries)
	if err != nil {
		return domain.ListResponse{}, err
	}

	rows = filterRows(rows, req.Search)
	key := domain.ParseSort(req.Sort)
	sortRows(rows, key)

	page := pagination.Page{Page: req.Page, PageSize: req.PageSize}.
		Normalize(s.policy.Get().Listing.OverduePageSize)

	return domain.ListResponse{
		PageInfo: pagination.BuildPageInfo(page, int64(len(rows))),
		Sort:     key,
		Rows:     pagination.Slice(rows, page),
	}, nil
}

// join drops summaries whose consumer no longer exists.
func (s *Service) join(ctx context.Context, summaries []domain.Summary) ([]domain.Row, error) {
	if len(summaries) == 0 {
		return []domain.Row{}, nil
	}
	ids := make([]snowflake.ID, 0, len(summaries))
	for _, summary := range summaries {
		ids = append(ids, summary.ConsumerID)
	}
	consumers, err := s.consumers.ListByIDs(ctx, s.db, ids)
	if err != nil {
		return nil, err
	}
	byID := make(map[snowflake.ID]*consumerdomain.Consumer, len(consumers))
	for _, c := range consumers {
		byID[c.ID] = c
	}

	rows := make([]domain.Row, 0, len(summaries))
	for _, summary := range summaries {
		c, ok := byID[summary.ConsumerID]
		if !ok {
			continue
		}
		rows = append(rows, newRow(c, summary, true))
	}
	return rows, nil
}

func (s *Service) Details(ctx context.Context, rawID string) (domain.Row, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(rawID))
	if err != nil || id <= 0 {
		return domain.Row{}, domain.ErrInvalidID
	}

	c, err := s.consumers.FindByID(ctx, s.db, id)
	if err != nil {
		return domain.Row{}, err
	}
	if c == nil {
		return domain.Row{}, domain.ErrNotFound
	}

	bills, err := s.bills.ListUnpaidByConsumers(ctx, s.db, []snowflake.ID{id})
	if err != nil {
		return domain.Row{}, err
	}
	summary := summaryFor(id, bills, s.today())
	return newRow(c, summary, summary.OverdueCount >= s.policy.Get().EligibilityThreshold), nil
}

func newRow(c *consumerdomain.Consumer, summary domain.Summary, eligible bool) domain.Row {
	return domain.Row{
		Summary:        summary,
		ConsumerName:   c.DisplayName(),
		FirstName:      c.FirstName,
		LastName:       c.LastName,
		ContactNumber:  c.ContactNumber,
		AccountNumber:  c.AccountNumber,
		IsDisconnected: c.Status == consumerdomain.StatusDisconnected,
		Eligible:       eligible,
	}
}
