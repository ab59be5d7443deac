package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/oklog/ulid/v2"
	auditdomain "github.com/smallbiznis/tirta/internal/audit/domain"
	billingdomain "github.com/smallbiznis/tirta/internal/billing/domain"
	"github.com/smallbiznis/tirta/internal/clock"
	"github.com/smallbiznis/tirta/internal/config"
	consumerdomain "github.com/smallbiznis/tirta/internal/consumer/domain"
	notificationdomain "github.com/smallbiznis/tirta/internal/notification/domain"
	"github.com/smallbiznis/tirta/internal/observability/logger"
	"github.com/smallbiznis/tirta/internal/observability/metrics"
	"github.com/smallbiznis/tirta/internal/observability/tracing"
	"github.com/smallbiznis/tirta/internal/ratelimit"
	"github.com/smallbiznis/tirta/internal/sms/domain"
	"github.com/smallbiznis/tirta/internal/sms/queue"
	"github.com/smallbiznis/tirta/internal/sms/template"
	"github.com/smallbiznis/tirta/internal/sms/transport"
	"github.com/smallbiznis/tirta/pkg/db/pagination"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const requeueBatch = 500

type Params struct {
	fx.In

	DB            *gorm.DB
	Log           *zap.Logger
	GenID         *snowflake.Node
	Clock         clock.Clock
	Policy        *config.PolicyHolder
	Repo          domain.Repository
	Consumers     consumerdomain.Repository
	Bills         billingdomain.Repository
	Notifications notificationdomain.Service
	Audit         auditdomain.Service
	Queue         queue.Queue
	Breaker       *transport.Breaker
	Limiter       *ratelimit.SMSLimiter  `optional:"true"`
	Metrics       *metrics.Metrics       `optional:"true"`
	Engine        *metrics.EngineMetrics `optional:"true"`
}

type Service struct {
	db            *gorm.DB
	log           *zap.Logger
	genID         *snowflake.Node
	clock         clock.Clock
	policy        *config.PolicyHolder
	repo          domain.Repository
	consumers     consumerdomain.Repository
	bills         billingdomain.Repository
	notifications notificationdomain.Service
	audit         auditdomain.Service
	queue         queue.Queue
	breaker       *transport.Breaker
	limiter       *ratelimit.SMSLimiter
	metrics       *metrics.Metrics
	engine        *metrics.EngineMetrics
}

func NewService(p Params) domain.Service {
	return &Service{
		db:            p.DB,
		log:           p.Log.Named("sms.service"),
		genID:         p.GenID,
		clock:         p.Clock,
		policy:        p.Policy,
		repo:          p.Repo,
		consumers:     p.Consumers,
		bills:         p.Bills,
		notifications: p.Notifications,
		audit:         p.Audit,
		queue:         p.Queue,
		breaker:       p.Breaker,
		limiter:       p.Limiter,
		metrics:       p.Metrics,
		engine:        p.Engine,
	}
}

type outbound struct {
	log    *domain.SmsLog
	notice notificationdomain.Draft
}

// SendBulk personalizes message per selected consumer, records every attempt and notice in one
// transaction, then hands the jobs to the queue. With SendToAll the selection is every consumer
// holding an unpaid bill.
func (s *Service) SendBulk(ctx context.Context, req domain.SendRequest) (result domain.SendResult, err error) {
	ctx, span := tracing.Start(ctx, "sms.send_bulk",
		attribute.Int("selected", len(req.ConsumerIDs)),
		attribute.Bool("send_to_all", req.SendToAll),
	)
	defer func() { tracing.End(span, err) }()

	body := strings.TrimSpace(req.Message)
	if body == "" {
		return domain.SendResult{}, domain.ErrInvalidMessage
	}
	var ids []snowflake.ID
	if !req.SendToAll {
		ids, err = parseIDs(req.ConsumerIDs)
		if err != nil {
			return domain.SendResult{}, err
		}
	}
	if s.breaker.Open() {
		return domain.SendResult{}, domain.ErrTransportUnavailable
	}

	release, err := s.limiter.AcquireDispatch(ctx)
	if err != nil {
		return domain.SendResult{}, err
	}
	defer release()

	if req.SendToAll {
		ids, err = s.repo.ListRecipientIDs(ctx, s.db)
		if err != nil {
			return domain.SendResult{}, fmt.Errorf("resolve recipients: %w", err)
		}
		if len(ids) == 0 {
			return domain.SendResult{}, domain.ErrNoRecipients
		}
	}

	consumers, err := s.consumers.ListByIDs(ctx, s.db, ids)
	if err != nil {
		return domain.SendResult{}, fmt.Errorf("load consumers: %w", err)
	}
	bills, err := s.bills.ListUnpaidByConsumers(ctx, s.db, ids)
	if err != nil {
		return domain.SendResult{}, fmt.Errorf("load unpaid bills: %w", err)
	}
	firstBill := make(map[snowflake.ID]*billingdomain.Bill, len(consumers))
	for _, b := range bills {
		if _, ok := firstBill[b.ConsumerID]; !ok {
			firstBill[b.ConsumerID] = b
		}
	}

	now := s.clock.Now().UTC()
	batchID := ulid.Make().String()
	policy := s.policy.Get()

	result = domain.SendResult{BatchID: batchID}
	jobs := make([]outbound, 0, len(consumers))
	for _, c := range consumers {
		if c == nil {
			continue
		}
		if !c.HasContact() {
			result.Skipped = append(result.Skipped, c.ID)
			continue
		}
		text := template.Render(body, templateData(c, firstBill[c.ID]))
		consumerID := c.ID
		jobs = append(jobs, outbound{
			log: &domain.SmsLog{
				ID:            s.genID.Generate(),
				BatchID:       batchID,
				ConsumerID:    &consumerID,
				ContactNumber: strings.TrimSpace(c.ContactNumber),
				Message:       text,
				Status:        domain.StatusQueued,
				QueuedAt:      now,
			},
			notice: notificationdomain.Draft{
				ConsumerID: c.ID,
				Title:      policy.Notices.ReminderTitle,
				Message:    text,
			},
		})
	}
	if len(jobs) == 0 {
		return domain.SendResult{}, domain.ErrNoRecipients
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		logs := make([]*domain.SmsLog, 0, len(jobs))
		drafts := make([]notificationdomain.Draft, 0, len(jobs))
		for _, j := range jobs {
			logs = append(logs, j.log)
			drafts = append(drafts, j.notice)
		}
		if err := s.repo.InsertMany(ctx, tx, logs); err != nil {
			return fmt.Errorf("insert sms logs: %w", err)
		}
		if _, err := s.notifications.EmitMany(ctx, tx, drafts); err != nil {
			return fmt.Errorf("emit reminders: %w", err)
		}
		_, err := s.audit.Record(ctx, tx, auditdomain.Entry{
			Action:  auditdomain.ActionSmsSend,
			Details: fmt.Sprintf("Queued %d SMS reminders in batch %s.", len(jobs), batchID),
			Metadata: map[string]any{
				"batch_id":    batchID,
				"recipients":  len(jobs),
				"skipped":     len(result.Skipped),
				"send_to_all": req.SendToAll,
			},
		})
		if err != nil {
			return fmt.Errorf("record audit: %w", err)
		}
		return nil
	})
	if err != nil {
		return domain.SendResult{}, err
	}

	for _, j := range jobs {
		result.LogIDs = append(result.LogIDs, j.log.ID)
		if s.enqueue(ctx, j.log) {
			result.Queued++
		} else {
			result.Deferred++
		}
	}
	s.reportDepth(ctx)
	s.metrics.RecordNotifications(ctx, "sms", len(jobs))
	s.metrics.RecordSmsDispatched(ctx, result.Queued)

	logger.WithContext(ctx, s.log).Info("sms batch queued",
		zap.String("batch_id", batchID),
		zap.Int("queued", result.Queued),
		zap.Int("deferred", result.Deferred),
		zap.Int("skipped", len(result.Skipped)),
	)
	return result, nil
}

// enqueue pushes one job. A refused job keeps its row queued so Requeue replays it.
func (s *Service) enqueue(ctx context.Context, row *domain.SmsLog) bool {
	err := s.queue.Enqueue(ctx, domain.Job{LogID: row.ID, To: row.ContactNumber, Message: row.Message})
	if err == nil {
		return true
	}
	s.engine.IncDelivery(metrics.DeliveryOutcomeEnqueueFailed)
	s.log.Warn("sms enqueue deferred", zap.String("log_id", row.ID.String()), zap.Error(err))
	return false
}

func (s *Service) reportDepth(ctx context.Context) {
	if n, err := s.queue.Len(ctx); err == nil {
		s.engine.SetQueueDepth(s.queue.Name(), n)
	}
}

// Requeue pushes rows stuck in queued state back onto the queue, e.g. after an in-process queue
// was lost on restart or refused a job. Rows whose claim went stale are replayed too.
func (s *Service) Requeue(ctx context.Context, olderThan time.Duration) (int, error) {
	now := s.clock.Now().UTC()
	rows, err := s.repo.ListStaleQueued(ctx, s.db, now.Add(-olderThan), requeueBatch)
	if err != nil {
		return 0, fmt.Errorf("list stale sms logs: %w", err)
	}
	if len(rows) == 0 {
		return 0, nil
	}

	pushed := make([]snowflake.ID, 0, len(rows))
	for _, row := range rows {
		job := domain.Job{LogID: row.ID, To: row.ContactNumber, Message: row.Message, Attempt: 1}
		if err := s.queue.Enqueue(ctx, job); err != nil {
			s.log.Warn("sms requeue stopped", zap.Int("pushed", len(pushed)), zap.Error(err))
			break
		}
		pushed = append(pushed, row.ID)
	}
	if err := s.repo.TouchQueued(ctx, s.db, pushed, now); err != nil {
		return len(pushed), fmt.Errorf("touch requeued sms logs: %w", err)
	}
	s.reportDepth(ctx)
	return len(pushed), nil
}

func (s *Service) ListRecipients(ctx context.Context, req domain.RecipientsRequest) (domain.RecipientsResponse, error) {
	page := req.Page.Normalize(s.policy.Get().Listing.RecipientPageSize)
	rows, total, err := s.repo.ListRecipients(ctx, s.db, req.Search, page.Offset(), page.PageSize)
	if err != nil {
		return domain.RecipientsResponse{}, err
	}
	if rows == nil {
		rows = []domain.Recipient{}
	}
	return domain.RecipientsResponse{
		PageInfo:   pagination.BuildPageInfo(page, total),
		Recipients: rows,
	}, nil
}

func (s *Service) ListLogs(ctx context.Context, limit int) ([]domain.LogRow, error) {
	ceiling := s.policy.Get().Listing.SmsLogLimit
	if limit <= 0 || limit > ceiling {
		limit = ceiling
	}
	logs, err := s.repo.ListLatest(ctx, s.db, limit)
	if err != nil {
		return nil, err
	}

	ids := make([]snowflake.ID, 0, len(logs))
	for _, l := range logs {
		if l.ConsumerID != nil {
			ids = append(ids, *l.ConsumerID)
		}
	}
	names := map[snowflake.ID]string{}
	if len(ids) > 0 {
		consumers, err := s.consumers.ListByIDs(ctx, s.db, ids)
		if err != nil {
			return nil, err
		}
		for _, c := range consumers {
			names[c.ID] = c.DisplayName()
		}
	}

	out := make([]domain.LogRow, 0, len(logs))
	for _, l := range logs {
		name := template.Unavailable
		if l.ConsumerID != nil {
			if n, ok := names[*l.ConsumerID]; ok {
				name = n
			}
		}
		out = append(out, domain.LogRow{SmsLog: *l, ConsumerName: name})
	}
	return out, nil
}

func templateData(c *consumerdomain.Consumer, bill *billingdomain.Bill) template.Data {
	d := template.Data{FirstName: c.FirstName}
	if c.AccountNumber != nil {
		d.AccountNumber = *c.AccountNumber
	}
	if bill != nil {
		d.Bill = &template.Bill{AmountDue: bill.AmountDue, DueDate: bill.DueDate}
	}
	return d
}

func parseIDs(values []string) ([]snowflake.ID, error) {
	seen := make(map[snowflake.ID]struct{}, len(values))
	ids := make([]snowflake.ID, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		id, err := snowflake.ParseString(v)
		if err != nil || id <= 0 {
			return nil, domain.ErrInvalidID
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	if len(ids) == 0 {
		return nil, domain.ErrEmptySelection
	}
	return ids, nil
}
