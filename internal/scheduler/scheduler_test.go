package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/smallbiznis/tirta/internal/auditcontext"
	"github.com/smallbiznis/tirta/internal/clock"
	"github.com/smallbiznis/tirta/internal/config"
	obsmetrics "github.com/smallbiznis/tirta/internal/observability/metrics"
	smsdomain "github.com/smallbiznis/tirta/internal/sms/domain"
	"go.uber.org/zap"
)

type fakeSMS struct {
	smsdomain.Service
	calls     int
	olderThan time.Duration
	actor     string
	pushed    int
	err       error
}

func (f *fakeSMS) Requeue(ctx context.Context, olderThan time.Duration) (int, error) {
	f.calls++
	f.olderThan = olderThan
	f.actor = auditcontext.ActorFromContext(ctx)
	return f.pushed, f.err
}

func newTestScheduler(t *testing.T, sms *fakeSMS, registry *prometheus.Registry) *Scheduler {
	t.Helper()
	node, err := snowflake.NewNode(1)
	if err != nil {
		t.Fatalf("snowflake node: %v", err)
	}
	s, err := New(Params{
		Log:     zap.NewNop(),
		GenID:   node,
		Clock:   clock.NewFakeClock(time.Date(2024, 4, 10, 0, 0, 0, 0, time.UTC)),
		Policy:  config.NewStaticPolicyHolder(config.DefaultPolicy()),
		SMS:     sms,
		Config:  Config{Enabled: true, JobTimeout: 50 * time.Millisecond},
		Metrics: obsmetrics.NewEngineMetricsForTest(registry),
	})
	if err != nil {
		t.Fatalf("new scheduler: %v", err)
	}
	return s
}

func TestRunOnceRequeuesStaleSMS(t *testing.T) {
	registry := prometheus.NewRegistry()
	sms := &fakeSMS{pushed: 3}
	s := newTestScheduler(t, sms, registry)

	if err := s.RunOnce(context.Background()); err != nil {
		t.Fatalf("run once: %v", err)
	}
	if sms.calls != 1 {
		t.Fatalf("expected one requeue call, got %d", sms.calls)
	}
	if sms.olderThan != config.DefaultPolicy().SMS.RequeueAfter {
		t.Fatalf("unexpected requeue age %v", sms.olderThan)
	}
	if sms.actor != "scheduler" {
		t.Fatalf("expected scheduler actor, got %q", sms.actor)
	}

	labels := map[string]string{"service": "tirta", "env": "test", "job": JobSMSRequeue}
	if got := getCounterValue(t, registry, "tirta_scheduler_job_runs_total", labels); got != 1 {
		t.Fatalf("expected job run count 1, got %v", got)
	}
}

func TestRunJobTimeoutDoesNotReturnError(t *testing.T) {
	registry := prometheus.NewRegistry()
	s := newTestScheduler(t, &fakeSMS{}, registry)

	err := s.runJob(context.Background(), "timeout_job", func(ctx context.Context, _ *jobRun) error {
		<-ctx.Done()
		return ctx.Err()
	})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	labels := map[string]string{
		"service": "tirta",
		"env":     "test",
		"job":     "timeout_job",
		"reason":  obsmetrics.ReasonDeadlineExceeded,
	}
	if got := getCounterValue(t, registry, "tirta_scheduler_job_errors_total", labels); got != 1 {
		t.Fatalf("expected error count 1, got %v", got)
	}
}

func TestRunOnceWrapsJobErrors(t *testing.T) {
	registry := prometheus.NewRegistry()
	boom := errors.New("boom")
	s := newTestScheduler(t, &fakeSMS{err: boom}, registry)

	err := s.RunOnce(context.Background())
	if !errors.Is(err, boom) {
		t.Fatalf("expected wrapped boom, got %v", err)
	}

	labels := map[string]string{
		"service": "tirta",
		"env":     "test",
		"job":     JobSMSRequeue,
		"reason":  obsmetrics.ReasonUnknown,
	}
	if got := getCounterValue(t, registry, "tirta_scheduler_job_errors_total", labels); got != 1 {
		t.Fatalf("expected error count 1, got %v", got)
	}
}

func TestNewRejectsMissingDependencies(t *testing.T) {
	if _, err := New(Params{Log: zap.NewNop()}); !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("expected ErrInvalidConfig, got %v", err)
	}
}

func TestProvideConfigFollowsWorkerFlag(t *testing.T) {
	if ProvideConfig(config.Config{SMS: config.SMSConfig{Workers: false}}).Enabled {
		t.Fatal("scheduler should be disabled without workers")
	}
	if !ProvideConfig(config.Config{SMS: config.SMSConfig{Workers: true}}).Enabled {
		t.Fatal("scheduler should be enabled with workers")
	}
}

func getCounterValue(t *testing.T, registry *prometheus.Registry, name string, labels map[string]string) float64 {
	t.Helper()
	metricFamilies, err := registry.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	for _, mf := range metricFamilies {
		if mf.GetName() != name {
			continue
		}
		for _, metric := range mf.Metric {
			if !labelsMatch(metric, labels) {
				continue
			}
			if metric.Counter == nil {
				t.Fatalf("metric %s is not a counter", name)
			}
			return metric.GetCounter().GetValue()
		}
	}
	t.Fatalf("metric %s with labels %v not found", name, labels)
	return 0
}

func labelsMatch(metric *dto.Metric, labels map[string]string) bool {
	if len(metric.Label) != len(labels) {
		return false
	}
	for _, label := range metric.Label {
		if labels[label.GetName()] != label.GetValue() {
			return false
		}
	}
	return true
}
