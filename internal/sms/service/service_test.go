package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/smallbiznis/tirta/internal/audit/domain"
	auditrepository "github.com/smallbiznis/tirta/internal/audit/repository"
	auditservice "github.com/smallbiznis/tirta/internal/audit/service"
	billingrepository "github.com/smallbiznis/tirta/internal/billing/repository"
	"github.com/smallbiznis/tirta/internal/clock"
	"github.com/smallbiznis/tirta/internal/config"
	consumerrepository "github.com/smallbiznis/tirta/internal/consumer/repository"
	notificationdomain "github.com/smallbiznis/tirta/internal/notification/domain"
	notificationrepository "github.com/smallbiznis/tirta/internal/notification/repository"
	notificationservice "github.com/smallbiznis/tirta/internal/notification/service"
	"github.com/smallbiznis/tirta/internal/sms/domain"
	"github.com/smallbiznis/tirta/internal/sms/queue"
	"github.com/smallbiznis/tirta/internal/sms/repository"
	"github.com/smallbiznis/tirta/internal/sms/transport"
	"github.com/smallbiznis/tirta/internal/testutil/dbtest"
	"github.com/smallbiznis/tirta/pkg/db/pagination"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"gorm.io/gorm"
)

type fixture struct {
	svc     *Service
	db      *gorm.DB
	clock   *clock.FakeClock
	queue   *queue.Memory
	breaker *transport.Breaker
}

func newFixture(t *testing.T, capacity int) fixture {
	db := dbtest.Open(t)
	node := dbtest.Node(t)
	log := zaptest.NewLogger(t)
	fake := clock.NewFakeClock(time.Date(2024, 4, 10, 8, 0, 0, 0, time.UTC))
	policy := config.NewStaticPolicyHolder(config.DefaultPolicy())

	audit := auditservice.NewService(auditservice.Params{
		DB: db, Log: log, GenID: node, Clock: fake, Repo: auditrepository.Provide(),
	})
	consumers := consumerrepository.Provide()
	notifications := notificationservice.NewService(notificationservice.Params{
		DB: db, Log: log, GenID: node, Clock: fake, Policy: policy,
		Repo: notificationrepository.Provide(), Consumers: consumers, Audit: audit,
	})
	q := queue.NewMemory(capacity)
	breaker := transport.NewBreaker(fake, policy)

	svc := NewService(Params{
		DB:            db,
		Log:           log,
		GenID:         node,
		Clock:         fake,
		Policy:        policy,
		Repo:          repository.Provide(),
		Consumers:     consumers,
		Bills:         billingrepository.Provide(),
		Notifications: notifications,
		Audit:         audit,
		Queue:         q,
		Breaker:       breaker,
	}).(*Service)
	return fixture{svc: svc, db: db, clock: fake, queue: q, breaker: breaker}
}

func (f fixture) seedTown(t *testing.T) {
	dbtest.SeedConsumer(t, f.db, dbtest.ConsumerSeed{ID: 1, FirstName: "Juan", LastName: "Dela Cruz", ContactNumber: "09170000001", AccountNumber: "ACC-1"})
	dbtest.SeedConsumer(t, f.db, dbtest.ConsumerSeed{ID: 2, FirstName: "Maria", LastName: "Santos", ContactNumber: "09170000002"})
	dbtest.SeedConsumer(t, f.db, dbtest.ConsumerSeed{ID: 3, FirstName: "Pedro", LastName: "Reyes"})
	dbtest.SeedBill(t, f.db, dbtest.BillSeed{ID: 10, ConsumerID: 1, DueDate: dbtest.Date(2024, 4, 3), TotalAmount: "200.00"})
	dbtest.SeedBill(t, f.db, dbtest.BillSeed{ID: 11, ConsumerID: 1, DueDate: dbtest.Date(2024, 3, 3), TotalAmount: "180.00", AmountDue: "150.50"})
	dbtest.SeedBill(t, f.db, dbtest.BillSeed{ID: 12, ConsumerID: 1, DueDate: dbtest.Date(2024, 2, 3), TotalAmount: "99.00", IsPaid: true})
	dbtest.SeedBill(t, f.db, dbtest.BillSeed{ID: 13, ConsumerID: 3, DueDate: dbtest.Date(2024, 3, 1), TotalAmount: "50.00"})
}

func (f fixture) count(t *testing.T, model any) int64 {
	t.Helper()
	var n int64
	require.NoError(t, f.db.Model(model).Count(&n).Error)
	return n
}

const reminder = "Hello {Name}, pay {Amount} by {DueDate}, acct {AccountNumber}"

func TestSendBulkPersonalizesAndQueues(t *testing.T) {
	f := newFixture(t, 8)
	f.seedTown(t)
	ctx := context.Background()

	res, err := f.svc.SendBulk(ctx, domain.SendRequest{ConsumerIDs: []string{"1", "2", "3", "1"}, Message: reminder})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Queued)
	assert.Zero(t, res.Deferred)
	assert.Equal(t, []snowflake.ID{3}, res.Skipped)
	assert.Len(t, res.BatchID, 26)

	var logs []domain.SmsLog
	require.NoError(t, f.db.Order("contact_number asc").Find(&logs).Error)
	require.Len(t, logs, 2)
	assert.Equal(t, "Hello Juan, pay 150.50 by March 03, acct ACC-1", logs[0].Message)
	assert.Equal(t, "Hello Maria, pay 0.00 by N/A, acct N/A", logs[1].Message)
	for _, l := range logs {
		assert.Equal(t, domain.StatusQueued, l.Status)
		assert.Equal(t, res.BatchID, l.BatchID)
		assert.Nil(t, l.SentAt)
	}

	var notices []notificationdomain.Notification
	require.NoError(t, f.db.Find(&notices).Error)
	require.Len(t, notices, 2)
	for _, n := range notices {
		assert.Equal(t, "Water Bill Reminder", n.Title)
	}

	var audits []auditdomain.AuditTrail
	require.NoError(t, f.db.Find(&audits).Error)
	require.Len(t, audits, 1)
	assert.Equal(t, auditdomain.ActionSmsSend, audits[0].Action)

	depth, err := f.queue.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), depth)

	job, err := f.queue.Dequeue(ctx, time.Second)
	require.NoError(t, err)
	require.NotNil(t, job)
	assert.Equal(t, "09170000001", job.To)
}

func TestSendBulkValidation(t *testing.T) {
	f := newFixture(t, 8)
	ctx := context.Background()

	_, err := f.svc.SendBulk(ctx, domain.SendRequest{ConsumerIDs: []string{"1"}, Message: "   "})
	assert.ErrorIs(t, err, domain.ErrInvalidMessage)

	_, err = f.svc.SendBulk(ctx, domain.SendRequest{ConsumerIDs: []string{" ", ""}, Message: "hi"})
	assert.ErrorIs(t, err, domain.ErrEmptySelection)

	_, err = f.svc.SendBulk(ctx, domain.SendRequest{ConsumerIDs: []string{"x1"}, Message: "hi"})
	assert.ErrorIs(t, err, domain.ErrInvalidID)
	assert.True(t, domain.IsValidationError(err))
}

func TestSendBulkWithoutReachableRecipients(t *testing.T) {
	f := newFixture(t, 8)
	f.seedTown(t)

	_, err := f.svc.SendBulk(context.Background(), domain.SendRequest{ConsumerIDs: []string{"3", "99"}, Message: reminder})
	assert.ErrorIs(t, err, domain.ErrNoRecipients)
	assert.Zero(t, f.count(t, &domain.SmsLog{}))
	assert.Zero(t, f.count(t, &notificationdomain.Notification{}))
	assert.Zero(t, f.count(t, &auditdomain.AuditTrail{}))
}

func TestSendBulkRefusedWhileBreakerOpen(t *testing.T) {
	f := newFixture(t, 8)
	f.seedTown(t)
	for i := 0; i < config.DefaultPolicy().SMS.BreakerThreshold; i++ {
		f.breaker.Record(false)
	}

	_, err := f.svc.SendBulk(context.Background(), domain.SendRequest{ConsumerIDs: []string{"1"}, Message: reminder})
	assert.ErrorIs(t, err, domain.ErrTransportUnavailable)
	assert.Zero(t, f.count(t, &domain.SmsLog{}))

	f.clock.Advance(config.DefaultPolicy().SMS.BreakerCooldown)
	_, err = f.svc.SendBulk(context.Background(), domain.SendRequest{ConsumerIDs: []string{"1"}, Message: reminder})
	assert.NoError(t, err)
}

func TestSendBulkLeavesRefusedJobsForRequeue(t *testing.T) {
	f := newFixture(t, 1)
	f.seedTown(t)
	ctx := context.Background()

	res, err := f.svc.SendBulk(ctx, domain.SendRequest{ConsumerIDs: []string{"1", "2"}, Message: "hi {Name}"})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Queued)
	assert.Equal(t, 1, res.Deferred)

	var deferred domain.SmsLog
	require.NoError(t, f.db.First(&deferred, "contact_number = ?", "09170000002").Error)
	assert.Equal(t, domain.StatusQueued, deferred.Status)
	assert.Nil(t, deferred.SentAt)

	// A worker takes the accepted job and delivers it.
	job, err := f.queue.Dequeue(ctx, time.Second)
	require.NoError(t, err)
	require.NotNil(t, job)
	require.NoError(t, f.db.Model(&domain.SmsLog{}).Where("id = ?", job.LogID).Update("status", domain.StatusSent).Error)

	f.clock.Advance(11 * time.Minute)
	n, err := f.svc.Requeue(ctx, 10*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	replay, err := f.queue.Dequeue(ctx, time.Second)
	require.NoError(t, err)
	require.NotNil(t, replay)
	assert.Equal(t, deferred.ID, replay.LogID)
	assert.Equal(t, "09170000002", replay.To)
}

func TestSendToAllTargetsConsumersWithUnpaidBills(t *testing.T) {
	f := newFixture(t, 8)
	f.seedTown(t)

	res, err := f.svc.SendBulk(context.Background(), domain.SendRequest{SendToAll: true, Message: reminder})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Queued)
	assert.Equal(t, []snowflake.ID{3}, res.Skipped)

	var logs []domain.SmsLog
	require.NoError(t, f.db.Find(&logs).Error)
	require.Len(t, logs, 1)
	require.NotNil(t, logs[0].ConsumerID)
	assert.Equal(t, snowflake.ID(1), *logs[0].ConsumerID)

	var audit auditdomain.AuditTrail
	require.NoError(t, f.db.First(&audit).Error)
	assert.Equal(t, true, audit.Metadata["send_to_all"])
}

func TestSendToAllWithoutUnpaidBills(t *testing.T) {
	f := newFixture(t, 8)
	dbtest.SeedConsumer(t, f.db, dbtest.ConsumerSeed{ID: 1, FirstName: "Juan", LastName: "Dela Cruz", ContactNumber: "09170000001"})
	dbtest.SeedBill(t, f.db, dbtest.BillSeed{ID: 10, ConsumerID: 1, DueDate: dbtest.Date(2024, 3, 3), TotalAmount: "10.00", IsPaid: true})

	_, err := f.svc.SendBulk(context.Background(), domain.SendRequest{SendToAll: true, Message: reminder})
	assert.ErrorIs(t, err, domain.ErrNoRecipients)
	assert.False(t, domain.IsValidationError(err))
	assert.Zero(t, f.count(t, &domain.SmsLog{}))
	assert.Zero(t, f.count(t, &notificationdomain.Notification{}))
	assert.Zero(t, f.count(t, &auditdomain.AuditTrail{}))
}

type failingAudit struct {
	auditdomain.Service
}

func (failingAudit) Record(context.Context, *gorm.DB, auditdomain.Entry) (*auditdomain.AuditTrail, error) {
	return nil, errors.New("audit store unavailable")
}

func TestSendBulkRollsBackWhenAuditFails(t *testing.T) {
	f := newFixture(t, 8)
	f.seedTown(t)
	f.svc.audit = failingAudit{}
	ctx := context.Background()

	_, err := f.svc.SendBulk(ctx, domain.SendRequest{ConsumerIDs: []string{"1", "2"}, Message: reminder})
	require.Error(t, err)
	assert.Zero(t, f.count(t, &domain.SmsLog{}))
	assert.Zero(t, f.count(t, &notificationdomain.Notification{}))
	depth, err := f.queue.Len(ctx)
	require.NoError(t, err)
	assert.Zero(t, depth)
}

func TestListRecipientsOnlyConsumersWithUnpaidBills(t *testing.T) {
	f := newFixture(t, 8)
	f.seedTown(t)
	ctx := context.Background()

	res, err := f.svc.ListRecipients(ctx, domain.RecipientsRequest{})
	require.NoError(t, err)
	assert.Equal(t, int64(2), res.Total)
	assert.Equal(t, 5, res.PageSize)
	require.Len(t, res.Recipients, 2)
	assert.Equal(t, "Dela Cruz", res.Recipients[0].LastName)
	assert.Equal(t, 2, res.Recipients[0].UnpaidBills)
	assert.Equal(t, "ACC-1", res.Recipients[0].AccountNumber)
	assert.Equal(t, "Reyes", res.Recipients[1].LastName)

	res, err = f.svc.ListRecipients(ctx, domain.RecipientsRequest{Search: "PED", Page: pagination.Page{Page: 1}})
	require.NoError(t, err)
	require.Len(t, res.Recipients, 1)
	assert.Equal(t, snowflake.ID(3), res.Recipients[0].ConsumerID)

	res, err = f.svc.ListRecipients(ctx, domain.RecipientsRequest{Page: pagination.Page{Page: 2, PageSize: 1}})
	require.NoError(t, err)
	assert.Equal(t, 2, res.TotalPages)
	require.Len(t, res.Recipients, 1)
	assert.Equal(t, "Reyes", res.Recipients[0].LastName)
}

func TestListLogsResolvesConsumerNames(t *testing.T) {
	f := newFixture(t, 8)
	f.seedTown(t)
	linked := snowflake.ID(1)
	base := f.clock.Now()
	rows := []*domain.SmsLog{
		{ID: 100, BatchID: "01HV0000000000000000000000", ConsumerID: &linked, ContactNumber: "09170000001", Message: "a", Status: domain.StatusSent, IsSuccess: true, QueuedAt: base},
		{ID: 101, BatchID: "01HV0000000000000000000000", ContactNumber: "09179999999", Message: "b", Status: domain.StatusQueued, QueuedAt: base.Add(time.Minute)},
	}
	require.NoError(t, f.db.Create(&rows).Error)

	out, err := f.svc.ListLogs(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, snowflake.ID(101), out[0].ID)
	assert.Equal(t, "N/A", out[0].ConsumerName)
	assert.Equal(t, "Juan Dela Cruz", out[1].ConsumerName)

	out, err = f.svc.ListLogs(context.Background(), 1)
	require.NoError(t, err)
	assert.Len(t, out, 1)
}

func TestRequeuePushesStaleRows(t *testing.T) {
	f := newFixture(t, 8)
	old := f.clock.Now().Add(-time.Hour)
	rows := []*domain.SmsLog{
		{ID: 200, BatchID: "01HV0000000000000000000001", ContactNumber: "0917", Message: "stale", Status: domain.StatusQueued, QueuedAt: old},
		{ID: 201, BatchID: "01HV0000000000000000000001", ContactNumber: "0918", Message: "fresh", Status: domain.StatusQueued, QueuedAt: f.clock.Now()},
		{ID: 202, BatchID: "01HV0000000000000000000001", ContactNumber: "0919", Message: "done", Status: domain.StatusSent, QueuedAt: old},
	}
	require.NoError(t, f.db.Create(&rows).Error)

	n, err := f.svc.Requeue(context.Background(), 10*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	job, err := f.queue.Dequeue(context.Background(), time.Second)
	require.NoError(t, err)
	require.NotNil(t, job)
	assert.Equal(t, snowflake.ID(200), job.LogID)
	assert.Equal(t, 1, job.Attempt)

	var touched domain.SmsLog
	require.NoError(t, f.db.First(&touched, "id = ?", 200).Error)
	assert.True(t, touched.QueuedAt.Equal(f.clock.Now()))

	n, err = f.svc.Requeue(context.Background(), 10*time.Minute)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestRequeueReplaysStaleClaims(t *testing.T) {
	f := newFixture(t, 8)
	old := f.clock.Now().Add(-time.Hour)
	rows := []*domain.SmsLog{
		{ID: 300, BatchID: "01HV0000000000000000000002", ContactNumber: "0917", Message: "stuck", Status: domain.StatusSending, QueuedAt: old, ClaimedAt: &old},
		{ID: 301, BatchID: "01HV0000000000000000000002", ContactNumber: "0918", Message: "in flight", Status: domain.StatusSending, QueuedAt: old, ClaimedAt: ptr(f.clock.Now())},
	}
	require.NoError(t, f.db.Create(&rows).Error)

	n, err := f.svc.Requeue(context.Background(), 10*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	var replayed domain.SmsLog
	require.NoError(t, f.db.First(&replayed, "id = ?", 300).Error)
	assert.Equal(t, domain.StatusQueued, replayed.Status)
	assert.Nil(t, replayed.ClaimedAt)

	var inFlight domain.SmsLog
	require.NoError(t, f.db.First(&inFlight, "id = ?", 301).Error)
	assert.Equal(t, domain.StatusSending, inFlight.Status)
}

func ptr[T any](v T) *T { return &v }
