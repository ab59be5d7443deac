package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/smallbiznis/tirta/internal/audit/domain"
	"github.com/smallbiznis/tirta/internal/auditcontext"
	billingdomain "github.com/smallbiznis/tirta/internal/billing/domain"
	"github.com/smallbiznis/tirta/internal/clock"
	"github.com/smallbiznis/tirta/internal/config"
	consumerdomain "github.com/smallbiznis/tirta/internal/consumer/domain"
	"github.com/smallbiznis/tirta/internal/disconnection/domain"
	notificationdomain "github.com/smallbiznis/tirta/internal/notification/domain"
	"github.com/smallbiznis/tirta/internal/observability/logger"
	"github.com/smallbiznis/tirta/internal/observability/metrics"
	"github.com/smallbiznis/tirta/internal/observability/tracing"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB            *gorm.DB
	Log           *zap.Logger
	GenID         *snowflake.Node
	Config        config.Config
	Clock         clock.Clock
	Policy        *config.PolicyHolder
	Repo          domain.Repository
	Consumers     consumerdomain.Repository
	Bills         billingdomain.Repository
	Notifications notificationdomain.Service
	Audit         auditdomain.Service
	Metrics       *metrics.Metrics       `optional:"true"`
	Engine        *metrics.EngineMetrics `optional:"true"`
}

type Service struct {
	db            *gorm.DB
	log           *zap.Logger
	genID         *snowflake.Node
	loc           *time.Location
	clock         clock.Clock
	policy        *config.PolicyHolder
	repo          domain.Repository
	consumers     consumerdomain.Repository
	bills         billingdomain.Repository
	notifications notificationdomain.Service
	audit         auditdomain.Service
	metrics       *metrics.Metrics
	engine        *metrics.EngineMetrics
}

func NewService(p Params) domain.Service {
	return &Service{
		db:            p.DB,
		log:           p.Log.Named("disconnection.service"),
		genID:         p.GenID,
		loc:           p.Config.Location(),
		clock:         p.Clock,
		policy:        p.Policy,
		repo:          p.Repo,
		consumers:     p.Consumers,
		bills:         p.Bills,
		notifications: p.Notifications,
		audit:         p.Audit,
		metrics:       p.Metrics,
		engine:        p.Engine,
	}
}

// Disconnect sets the consumer Disconnected and writes the event, notice and audit row in one transaction.
func (s *Service) Disconnect(ctx context.Context, rawID string) (domain.TransitionResult, error) {
	return s.transition(ctx, domain.ActionDisconnect, rawID, s.disconnect)
}

// Reconnect sets the consumer Active and closes its open event, if any.
func (s *Service) Reconnect(ctx context.Context, rawID string) (domain.TransitionResult, error) {
	return s.transition(ctx, domain.ActionReconnect, rawID, s.reconnect)
}

// Notify warns an eligible consumer without changing status.
func (s *Service) Notify(ctx context.Context, rawID string) (domain.TransitionResult, error) {
	return s.transition(ctx, domain.ActionNotify, rawID, s.notify)
}

type step func(ctx context.Context, tx *gorm.DB, c *consumerdomain.Consumer, policy config.Policy) (domain.TransitionResult, error)

func (s *Service) transition(ctx context.Context, action domain.Action, rawID string, fn step) (result domain.TransitionResult, err error) {
	ctx, span := tracing.Start(ctx, "disconnection."+string(action), attribute.String("action", string(action)))
	defer func() { tracing.End(span, err) }()

	id, err := parseID(rawID)
	if err != nil {
		return domain.TransitionResult{}, err
	}
	policy := s.policy.Get()

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		c, err := s.consumers.FindByIDForUpdate(ctx, tx, id)
		if err != nil {
			return fmt.Errorf("load consumer: %w", err)
		}
		if c == nil {
			return domain.ErrNotFound
		}
		result, err = fn(ctx, tx, c, policy)
		return err
	})

	log := logger.WithContext(ctx, s.log).With(
		zap.String("action", string(action)),
		zap.String("consumer_id", id.String()),
	)
	if err != nil {
		if !domain.IsGuardError(err) {
			s.engine.IncTransitionFailure(string(action), err)
			log.Error("transition rolled back", zap.Error(err))
		}
		return domain.TransitionResult{}, err
	}

	result.Action = action
	result.ConsumerID = id
	s.metrics.RecordTransition(ctx, string(action), result.Redundant)
	log.Info("transition committed", zap.Bool("redundant", result.Redundant))
	return result, nil
}

func (s *Service) disconnect(ctx context.Context, tx *gorm.DB, c *consumerdomain.Consumer, policy config.Policy) (domain.TransitionResult, error) {
	redundant := c.Status == consumerdomain.StatusDisconnected
	if redundant && policy.StrictTransitions {
		return domain.TransitionResult{}, domain.ErrAlreadyDisconnected
	}

	now := s.clock.Now().UTC()
	actor := auditcontext.ActorFromContext(ctx)

	// At most one open event per consumer: an existing one is reused.
	event, err := s.openEvent(ctx, tx, c)
	if err != nil {
		return domain.TransitionResult{}, err
	}
	if event == nil {
		event = &domain.Disconnection{
			ID:               s.genID.Generate(),
			ConsumerID:       c.ID,
			DateDisconnected: now,
			Remarks:          policy.Remarks,
			Action:           domain.ActionDisconnected,
			PerformedBy:      actor,
		}
		if err := s.repo.Insert(ctx, tx, event); err != nil {
			return domain.TransitionResult{}, fmt.Errorf("insert disconnection: %w", err)
		}
	}

	eventID := event.ID
	if err := s.consumers.UpdateStatus(ctx, tx, c.ID, consumerdomain.StatusUpdate{
		Status:                consumerdomain.StatusDisconnected,
		ActiveDisconnectionID: &eventID,
		UpdatedAt:             now,
	}); err != nil {
		return domain.TransitionResult{}, fmt.Errorf("update consumer status: %w", err)
	}

	return s.finish(ctx, tx, c, finishArgs{
		notice:    policy.Notices.Disconnect,
		action:    auditdomain.ActionDisconnect,
		details:   fmt.Sprintf("Disconnected Consumer ID %s due to %s.", c.ID, policy.Remarks),
		status:    consumerdomain.StatusDisconnected,
		redundant: redundant,
		eventID:   &eventID,
	})
}

func (s *Service) reconnect(ctx context.Context, tx *gorm.DB, c *consumerdomain.Consumer, policy config.Policy) (domain.TransitionResult, error) {
	redundant := c.Status != consumerdomain.StatusDisconnected
	if redundant && policy.StrictTransitions {
		return domain.TransitionResult{}, domain.ErrNotDisconnected
	}

	now := s.clock.Now().UTC()
	actor := auditcontext.ActorFromContext(ctx)

	var closedID *snowflake.ID
	if !redundant {
		event, err := s.openEvent(ctx, tx, c)
		if err != nil {
			return domain.TransitionResult{}, err
		}
		if event != nil {
			ok, err := s.repo.MarkReconnected(ctx, tx, event.ID, now, actor)
			if err != nil {
				return domain.TransitionResult{}, fmt.Errorf("close disconnection: %w", err)
			}
			if ok {
				id := event.ID
				closedID = &id
			}
		}
	}

	if err := s.consumers.UpdateStatus(ctx, tx, c.ID, consumerdomain.StatusUpdate{
		Status:                consumerdomain.StatusActive,
		ActiveDisconnectionID: nil,
		UpdatedAt:             now,
	}); err != nil {
		return domain.TransitionResult{}, fmt.Errorf("update consumer status: %w", err)
	}

	return s.finish(ctx, tx, c, finishArgs{
		notice:    policy.Notices.Reconnect,
		action:    auditdomain.ActionReconnect,
		details:   fmt.Sprintf("Reconnected Consumer ID %s.", c.ID),
		status:    consumerdomain.StatusActive,
		redundant: redundant,
		eventID:   closedID,
	})
}

func (s *Service) notify(ctx context.Context, tx *gorm.DB, c *consumerdomain.Consumer, policy config.Policy) (domain.TransitionResult, error) {
	count, err := s.bills.CountUnpaidOverdue(ctx, tx, c.ID, clock.Today(s.clock, s.loc))
	if err != nil {
		return domain.TransitionResult{}, fmt.Errorf("count overdue bills: %w", err)
	}
	if count < int64(policy.EligibilityThreshold) {
		return domain.TransitionResult{}, domain.ErrIneligible
	}

	return s.finish(ctx, tx, c, finishArgs{
		notice:  policy.Notices.Warning,
		action:  auditdomain.ActionNotify,
		details: fmt.Sprintf("Sent disconnection notice to Consumer ID %s.", c.ID),
		status:  c.Status,
		meta:    map[string]any{"overdue_count": count},
	})
}

type finishArgs struct {
	notice    config.Notice
	action    auditdomain.Action
	details   string
	status    consumerdomain.Status
	redundant bool
	eventID   *snowflake.ID
	meta      map[string]any
}

// finish writes the notice and audit row shared by every transition.
func (s *Service) finish(ctx context.Context, tx *gorm.DB, c *consumerdomain.Consumer, args finishArgs) (domain.TransitionResult, error) {
	notice := args.notice.Render(c.FirstName, c.ID.String())
	n, err := s.notifications.Emit(ctx, tx, c.ID, notice.Title, notice.Message)
	if err != nil {
		return domain.TransitionResult{}, err
	}

	meta := map[string]any{
		"consumer_id":     c.ID.String(),
		"notification_id": n.ID.String(),
	}
	if args.redundant {
		meta["redundant"] = true
	}
	if args.eventID != nil {
		meta["disconnection_id"] = args.eventID.String()
	}
	for k, v := range args.meta {
		meta[k] = v
	}

	entry, err := s.audit.Record(ctx, tx, auditdomain.Entry{
		Action:   args.action,
		Details:  args.details,
		Metadata: meta,
	})
	if err != nil {
		return domain.TransitionResult{}, fmt.Errorf("record audit: %w", err)
	}

	return domain.TransitionResult{
		Status:          args.status,
		Redundant:       args.redundant,
		DisconnectionID: args.eventID,
		NotificationID:  n.ID,
		AuditID:         entry.ID,
	}, nil
}

// openEvent follows the consumer's explicit reference, falling back to the newest open row
// for consumers disconnected before the reference existed.
func (s *Service) openEvent(ctx context.Context, tx *gorm.DB, c *consumerdomain.Consumer) (*domain.Disconnection, error) {
	if c.ActiveDisconnectionID != nil {
		event, err := s.repo.FindByID(ctx, tx, *c.ActiveDisconnectionID)
		if err != nil {
			return nil, fmt.Errorf("load active disconnection: %w", err)
		}
		if event != nil && !event.IsReconnected && event.ConsumerID == c.ID {
			return event, nil
		}
	}
	event, err := s.repo.FindLatestOpen(ctx, tx, c.ID)
	if err != nil {
		return nil, fmt.Errorf("load open disconnection: %w", err)
	}
	return event, nil
}

func (s *Service) History(ctx context.Context, rawID string) ([]domain.Disconnection, error) {
	id, err := parseID(rawID)
	if err != nil {
		return nil, err
	}
	c, err := s.consumers.FindByID(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, domain.ErrNotFound
	}

	rows, err := s.repo.ListByConsumer(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	out := make([]domain.Disconnection, 0, len(rows))
	for _, row := range rows {
		if row == nil {
			continue
		}
		out = append(out, *row)
	}
	return out, nil
}

func parseID(value string) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(value))
	if err != nil || id <= 0 {
		return 0, domain.ErrInvalidID
	}
	return id, nil
}
