package metrics

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"
)

func TestClassifyFailureReason(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want string
	}{
		{name: "deadline", err: context.DeadlineExceeded, want: ReasonDeadlineExceeded},
		{name: "lock_timeout", err: &pgconn.PgError{Code: "55P03"}, want: ReasonDBLockTimeout},
		{name: "serialization", err: fmt.Errorf("commit: %w", &pgconn.PgError{Code: "40001"}), want: ReasonSerializationFailure},
		{name: "deadlock", err: &pgconn.PgError{Code: "40P01"}, want: ReasonDeadlock},
		{name: "unique", err: gorm.ErrDuplicatedKey, want: ReasonUniqueViolation},
		{name: "other_pg", err: &pgconn.PgError{Code: "42P01"}, want: ReasonDB},
		{name: "unknown", err: errors.New("boom"), want: ReasonUnknown},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, ClassifyFailureReason(tc.err))
		})
	}
}

func TestEngineMetricsCounters(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := NewEngineMetricsForTest(registry)

	m.IncDelivery(DeliveryOutcomeSent)
	m.IncDelivery(DeliveryOutcomeSent)
	m.IncDelivery(DeliveryOutcomeFailed)
	m.SetQueueDepth("redis", 7)
	m.SetBreakerOpen(true)
	m.IncTransitionFailure("Disconnect", &pgconn.PgError{Code: "40001"})

	assert.Equal(t, float64(2), testutil.ToFloat64(m.deliveries.WithLabelValues(DeliveryOutcomeSent)))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.deliveries.WithLabelValues(DeliveryOutcomeFailed)))
	assert.Equal(t, float64(7), testutil.ToFloat64(m.queueDepth.WithLabelValues("redis")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.breakerOpen))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.transitionFailures.WithLabelValues("Disconnect", ReasonSerializationFailure)))
}

func TestNilEngineMetricsIsSafe(t *testing.T) {
	var m *EngineMetrics
	m.IncDelivery(DeliveryOutcomeSent)
	m.SetQueueDepth("memory", 1)
	m.SetBreakerOpen(false)
	m.IncJobError("requeue", errors.New("boom"))
}
