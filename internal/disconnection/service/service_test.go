package service

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/smallbiznis/tirta/internal/audit/domain"
	auditrepository "github.com/smallbiznis/tirta/internal/audit/repository"
	auditservice "github.com/smallbiznis/tirta/internal/audit/service"
	"github.com/smallbiznis/tirta/internal/auditcontext"
	billingrepository "github.com/smallbiznis/tirta/internal/billing/repository"
	"github.com/smallbiznis/tirta/internal/clock"
	"github.com/smallbiznis/tirta/internal/config"
	consumerdomain "github.com/smallbiznis/tirta/internal/consumer/domain"
	consumerrepository "github.com/smallbiznis/tirta/internal/consumer/repository"
	"github.com/smallbiznis/tirta/internal/disconnection/domain"
	"github.com/smallbiznis/tirta/internal/disconnection/repository"
	notificationdomain "github.com/smallbiznis/tirta/internal/notification/domain"
	notificationrepository "github.com/smallbiznis/tirta/internal/notification/repository"
	notificationservice "github.com/smallbiznis/tirta/internal/notification/service"
	"github.com/smallbiznis/tirta/internal/testutil/dbtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"gorm.io/gorm"
)

type fixture struct {
	svc    *Service
	db     *gorm.DB
	clock  *clock.FakeClock
	policy *config.PolicyHolder
	ctx    context.Context
}

func newFixture(t *testing.T) fixture {
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

	svc := NewService(Params{
		DB:            db,
		Log:           log,
		GenID:         node,
		Config:        config.Config{Timezone: "UTC"},
		Clock:         fake,
		Policy:        policy,
		Repo:          repository.Provide(),
		Consumers:     consumers,
		Bills:         billingrepository.Provide(),
		Notifications: notifications,
		Audit:         audit,
	}).(*Service)

	ctx := auditcontext.WithActor(context.Background(), "Admin Cruz", auditcontext.RoleAdmin)
	return fixture{svc: svc, db: db, clock: fake, policy: policy, ctx: ctx}
}

func (f fixture) count(t *testing.T, model any, where string, args ...any) int64 {
	t.Helper()
	var n int64
	stmt := f.db.Model(model)
	if where != "" {
		stmt = stmt.Where(where, args...)
	}
	require.NoError(t, stmt.Count(&n).Error)
	return n
}

func (f fixture) consumer(t *testing.T, id snowflake.ID) consumerdomain.Consumer {
	t.Helper()
	var c consumerdomain.Consumer
	require.NoError(t, f.db.First(&c, "id = ?", id).Error)
	return c
}

func TestDisconnectWritesEventNoticeAndAudit(t *testing.T) {
	f := newFixture(t)
	c := dbtest.SeedConsumer(t, f.db, dbtest.ConsumerSeed{ID: 10, FirstName: "Juan", LastName: "Dela Cruz"})

	res, err := f.svc.Disconnect(f.ctx, "10")
	require.NoError(t, err)
	assert.Equal(t, domain.ActionDisconnect, res.Action)
	assert.Equal(t, consumerdomain.StatusDisconnected, res.Status)
	assert.False(t, res.Redundant)
	require.NotNil(t, res.DisconnectionID)

	stored := f.consumer(t, c.ID)
	assert.Equal(t, consumerdomain.StatusDisconnected, stored.Status)
	assert.True(t, stored.IsDisconnected)
	require.NotNil(t, stored.ActiveDisconnectionID)
	assert.Equal(t, *res.DisconnectionID, *stored.ActiveDisconnectionID)

	var events []domain.Disconnection
	require.NoError(t, f.db.Find(&events).Error)
	require.Len(t, events, 1)
	assert.False(t, events[0].IsReconnected)
	assert.Equal(t, "2 or more overdue bills", events[0].Remarks)
	assert.Equal(t, "Admin Cruz", events[0].PerformedBy)

	var notices []notificationdomain.Notification
	require.NoError(t, f.db.Find(&notices).Error)
	require.Len(t, notices, 1)
	assert.Equal(t, "Disconnection Notice", notices[0].Title)
	assert.Contains(t, notices[0].Message, "Hello Juan,")

	var audits []auditdomain.AuditTrail
	require.NoError(t, f.db.Find(&audits).Error)
	require.Len(t, audits, 1)
	assert.Equal(t, auditdomain.ActionDisconnect, audits[0].Action)
	assert.Equal(t, "Disconnected Consumer ID 10 due to 2 or more overdue bills.", audits[0].Details)
	assert.Equal(t, "Admin Cruz", audits[0].PerformedBy)
}

func TestReconnectClosesSameEvent(t *testing.T) {
	f := newFixture(t)
	dbtest.SeedConsumer(t, f.db, dbtest.ConsumerSeed{ID: 10, FirstName: "Juan", LastName: "Dela Cruz"})

	disc, err := f.svc.Disconnect(f.ctx, "10")
	require.NoError(t, err)
	f.clock.Advance(48 * time.Hour)

	res, err := f.svc.Reconnect(f.ctx, "10")
	require.NoError(t, err)
	assert.Equal(t, consumerdomain.StatusActive, res.Status)
	require.NotNil(t, res.DisconnectionID)
	assert.Equal(t, *disc.DisconnectionID, *res.DisconnectionID)

	var event domain.Disconnection
	require.NoError(t, f.db.First(&event, "id = ?", *disc.DisconnectionID).Error)
	assert.True(t, event.IsReconnected)
	require.NotNil(t, event.DateReconnected)
	assert.True(t, f.clock.Now().Equal(*event.DateReconnected))
	require.NotNil(t, event.ReconnectedBy)
	assert.Equal(t, "Admin Cruz", *event.ReconnectedBy)

	stored := f.consumer(t, 10)
	assert.Equal(t, consumerdomain.StatusActive, stored.Status)
	assert.False(t, stored.IsDisconnected)
	assert.Nil(t, stored.ActiveDisconnectionID)

	assert.Equal(t, int64(1), f.count(t, &auditdomain.AuditTrail{}, "action = ?", auditdomain.ActionReconnect))
	assert.Equal(t, int64(1), f.count(t, &notificationdomain.Notification{}, "title = ?", "Reconnection Notice"))
}

func TestStrictTransitionsRejectRedundantCalls(t *testing.T) {
	f := newFixture(t)
	dbtest.SeedConsumer(t, f.db, dbtest.ConsumerSeed{ID: 10, FirstName: "Juan", LastName: "Dela Cruz"})

	_, err := f.svc.Reconnect(f.ctx, "10")
	assert.ErrorIs(t, err, domain.ErrNotDisconnected)

	_, err = f.svc.Disconnect(f.ctx, "10")
	require.NoError(t, err)
	_, err = f.svc.Disconnect(f.ctx, "10")
	assert.ErrorIs(t, err, domain.ErrAlreadyDisconnected)

	_, err = f.svc.Reconnect(f.ctx, "10")
	require.NoError(t, err)
	_, err = f.svc.Reconnect(f.ctx, "10")
	assert.ErrorIs(t, err, domain.ErrNotDisconnected)

	assert.Equal(t, int64(1), f.count(t, &domain.Disconnection{}, ""))
	assert.Equal(t, int64(1), f.count(t, &domain.Disconnection{}, "is_reconnected = ?", true))
	assert.Equal(t, int64(2), f.count(t, &auditdomain.AuditTrail{}, ""))
	assert.Equal(t, int64(2), f.count(t, &notificationdomain.Notification{}, ""))
}

func TestPermissiveTransitionsFlagRedundantCalls(t *testing.T) {
	f := newFixture(t)
	p := config.DefaultPolicy()
	p.StrictTransitions = false
	require.NoError(t, f.policy.Set(p))
	dbtest.SeedConsumer(t, f.db, dbtest.ConsumerSeed{ID: 10, FirstName: "Juan", LastName: "Dela Cruz"})

	first, err := f.svc.Disconnect(f.ctx, "10")
	require.NoError(t, err)
	second, err := f.svc.Disconnect(f.ctx, "10")
	require.NoError(t, err)
	assert.True(t, second.Redundant)
	assert.Equal(t, *first.DisconnectionID, *second.DisconnectionID)
	assert.Equal(t, int64(1), f.count(t, &domain.Disconnection{}, "is_reconnected = ?", false))

	_, err = f.svc.Reconnect(f.ctx, "10")
	require.NoError(t, err)
	again, err := f.svc.Reconnect(f.ctx, "10")
	require.NoError(t, err)
	assert.True(t, again.Redundant)
	assert.Nil(t, again.DisconnectionID)

	assert.Equal(t, int64(1), f.count(t, &domain.Disconnection{}, "is_reconnected = ?", true))
	assert.Equal(t, int64(4), f.count(t, &auditdomain.AuditTrail{}, ""))
}

func TestReconnectWithoutOpenEventStillFlipsStatus(t *testing.T) {
	f := newFixture(t)
	dbtest.SeedConsumer(t, f.db, dbtest.ConsumerSeed{ID: 10, FirstName: "Juan", LastName: "Dela Cruz", Disconnected: true})

	res, err := f.svc.Reconnect(f.ctx, "10")
	require.NoError(t, err)
	assert.False(t, res.Redundant)
	assert.Nil(t, res.DisconnectionID)
	assert.Equal(t, consumerdomain.StatusActive, f.consumer(t, 10).Status)
	assert.Zero(t, f.count(t, &domain.Disconnection{}, ""))
}

func TestReconnectFallsBackToNewestOpenEvent(t *testing.T) {
	f := newFixture(t)
	dbtest.SeedConsumer(t, f.db, dbtest.ConsumerSeed{ID: 10, FirstName: "Juan", LastName: "Dela Cruz", Disconnected: true})
	legacy := domain.Disconnection{
		ID:               500,
		ConsumerID:       10,
		DateDisconnected: f.clock.Now().Add(-72 * time.Hour),
		Remarks:          "2 or more overdue bills",
		Action:           domain.ActionDisconnected,
		PerformedBy:      "Unknown",
	}
	require.NoError(t, f.db.Create(&legacy).Error)

	res, err := f.svc.Reconnect(f.ctx, "10")
	require.NoError(t, err)
	require.NotNil(t, res.DisconnectionID)
	assert.Equal(t, snowflake.ID(500), *res.DisconnectionID)
}

func TestNotifyRequiresEligibility(t *testing.T) {
	f := newFixture(t)
	dbtest.SeedConsumer(t, f.db, dbtest.ConsumerSeed{ID: 10, FirstName: "Juan", LastName: "Dela Cruz"})
	dbtest.SeedBill(t, f.db, dbtest.BillSeed{ID: 1, ConsumerID: 10, DueDate: dbtest.Date(2024, 3, 1), TotalAmount: "100.00"})
	dbtest.SeedBill(t, f.db, dbtest.BillSeed{ID: 2, ConsumerID: 10, DueDate: dbtest.Date(2024, 4, 10), TotalAmount: "100.00"})

	_, err := f.svc.Notify(f.ctx, "10")
	assert.ErrorIs(t, err, domain.ErrIneligible)
	assert.Zero(t, f.count(t, &notificationdomain.Notification{}, ""))
	assert.Zero(t, f.count(t, &auditdomain.AuditTrail{}, ""))

	// The bill due today becomes overdue tomorrow.
	f.clock.Advance(24 * time.Hour)
	res, err := f.svc.Notify(f.ctx, "10")
	require.NoError(t, err)
	assert.Equal(t, consumerdomain.StatusActive, res.Status)

	var audit auditdomain.AuditTrail
	require.NoError(t, f.db.First(&audit).Error)
	assert.Equal(t, auditdomain.ActionNotify, audit.Action)
	assert.Equal(t, "Sent disconnection notice to Consumer ID 10.", audit.Details)
	assert.Equal(t, consumerdomain.StatusActive, f.consumer(t, 10).Status)
}

func TestTransitionsOnMissingConsumer(t *testing.T) {
	f := newFixture(t)

	for _, call := range []func(context.Context, string) (domain.TransitionResult, error){
		f.svc.Disconnect, f.svc.Reconnect, f.svc.Notify,
	} {
		_, err := call(f.ctx, "404")
		assert.ErrorIs(t, err, domain.ErrNotFound)
		_, err = call(f.ctx, "abc")
		assert.ErrorIs(t, err, domain.ErrInvalidID)
	}
	assert.Zero(t, f.count(t, &auditdomain.AuditTrail{}, ""))
	assert.Zero(t, f.count(t, &notificationdomain.Notification{}, ""))
}

func TestTransitionRollsBackWhenAuditFails(t *testing.T) {
	f := newFixture(t)
	dbtest.SeedConsumer(t, f.db, dbtest.ConsumerSeed{ID: 10, FirstName: "Juan", LastName: "Dela Cruz"})
	require.NoError(t, f.db.Migrator().DropTable(&auditdomain.AuditTrail{}))

	_, err := f.svc.Disconnect(f.ctx, "10")
	require.Error(t, err)

	assert.Equal(t, consumerdomain.StatusActive, f.consumer(t, 10).Status)
	assert.Zero(t, f.count(t, &domain.Disconnection{}, ""))
	assert.Zero(t, f.count(t, &notificationdomain.Notification{}, ""))
}

func TestHistoryNewestFirst(t *testing.T) {
	f := newFixture(t)
	dbtest.SeedConsumer(t, f.db, dbtest.ConsumerSeed{ID: 10, FirstName: "Juan", LastName: "Dela Cruz"})

	for i := 0; i < 2; i++ {
		_, err := f.svc.Disconnect(f.ctx, "10")
		require.NoError(t, err)
		f.clock.Advance(time.Hour)
		_, err = f.svc.Reconnect(f.ctx, "10")
		require.NoError(t, err)
		f.clock.Advance(time.Hour)
	}

	history, err := f.svc.History(context.Background(), "10")
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.True(t, history[0].DateDisconnected.After(history[1].DateDisconnected))

	_, err = f.svc.History(context.Background(), "11")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
