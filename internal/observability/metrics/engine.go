package metrics

import (
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	DeliveryOutcomeSent          = "sent"
	DeliveryOutcomeFailed        = "failed"
	DeliveryOutcomeEnqueueFailed = "enqueue_failed"
)

// EngineMetrics captures SMS pipeline and transition health for alerting.
type EngineMetrics struct {
	queueDepth         *prometheus.GaugeVec
	deliveries         *prometheus.CounterVec
	sendDuration       prometheus.Observer
	breakerOpen        prometheus.Gauge
	transitionFailures *prometheus.CounterVec
	jobRuns            *prometheus.CounterVec
	jobErrors          *prometheus.CounterVec
	jobDuration        *prometheus.HistogramVec
}

var (
	engineMetricsOnce sync.Once
	engineMetrics     *EngineMetrics
)

// Engine returns the process-wide engine metrics registered on the default registerer.
func Engine() *EngineMetrics {
	return EngineWithConfig(Config{})
}

func EngineWithConfig(cfg Config) *EngineMetrics {
	engineMetricsOnce.Do(func() {
		engineMetrics = newEngineMetrics(prometheus.DefaultRegisterer, cfg)
	})
	return engineMetrics
}

// ResetEngineMetricsForTest resets the singleton so tests can register on a fresh registry.
func ResetEngineMetricsForTest() {
	engineMetricsOnce = sync.Once{}
	engineMetrics = nil
}

// NewEngineMetricsForTest builds an unshared instance on registerer.
func NewEngineMetricsForTest(registerer prometheus.Registerer) *EngineMetrics {
	return newEngineMetrics(registerer, Config{ServiceName: "tirta", Environment: "test"})
}

func newEngineMetrics(registerer prometheus.Registerer, cfg Config) *EngineMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}
	constLabels := constLabelsFor(cfg)

	queueDepth := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name:        "tirta_sms_queue_depth",
		Help:        "Outbound SMS jobs waiting for a worker.",
		ConstLabels: constLabels,
	}, []string{"queue"})
	deliveries := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "tirta_sms_deliveries_total",
		Help:        "SMS transmission attempts by outcome.",
		ConstLabels: constLabels,
	}, []string{"outcome"})
	sendDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:        "tirta_sms_send_duration_seconds",
		Help:        "Latency of a single SMS transport call.",
		Buckets:     []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		ConstLabels: constLabels,
	})
	breakerOpen := prometheus.NewGauge(prometheus.GaugeOpts{
		Name:        "tirta_sms_breaker_open",
		Help:        "1 while the SMS transport breaker rejects bulk dispatch.",
		ConstLabels: constLabels,
	})
	transitionFailures := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "tirta_transition_failures_total",
		Help:        "Rolled back consumer transitions by action and reason.",
		ConstLabels: constLabels,
	}, []string{"action", "reason"})
	jobRuns := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "tirta_scheduler_job_runs_total",
		Help:        "Maintenance job runs by name.",
		ConstLabels: constLabels,
	}, []string{"job"})
	jobErrors := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "tirta_scheduler_job_errors_total",
		Help:        "Maintenance job failures by name and reason.",
		ConstLabels: constLabels,
	}, []string{"job", "reason"})
	jobDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:        "tirta_scheduler_job_duration_seconds",
		Help:        "Maintenance job latency.",
		Buckets:     []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60},
		ConstLabels: constLabels,
	}, []string{"job"})

	collectors := []prometheus.Collector{
		queueDepth, deliveries, sendDuration, breakerOpen,
		transitionFailures, jobRuns, jobErrors, jobDuration,
	}
	for _, c := range collectors {
		registerer.MustRegister(c)
	}

	return &EngineMetrics{
		queueDepth:         queueDepth,
		deliveries:         deliveries,
		sendDuration:       sendDuration,
		breakerOpen:        breakerOpen,
		transitionFailures: transitionFailures,
		jobRuns:            jobRuns,
		jobErrors:          jobErrors,
		jobDuration:        jobDuration,
	}
}

func (m *EngineMetrics) SetQueueDepth(queue string, depth int64) {
	if m == nil {
		return
	}
	if depth < 0 {
		depth = 0
	}
	m.queueDepth.WithLabelValues(strings.TrimSpace(queue)).Set(float64(depth))
}

func (m *EngineMetrics) IncDelivery(outcome string) {
	if m == nil {
		return
	}
	m.deliveries.WithLabelValues(outcome).Inc()
}

func (m *EngineMetrics) ObserveSend(d time.Duration) {
	if m == nil {
		return
	}
	m.sendDuration.Observe(d.Seconds())
}

func (m *EngineMetrics) SetBreakerOpen(open bool) {
	if m == nil {
		return
	}
	if open {
		m.breakerOpen.Set(1)
		return
	}
	m.breakerOpen.Set(0)
}

func (m *EngineMetrics) IncTransitionFailure(action string, err error) {
	if m == nil || err == nil {
		return
	}
	m.transitionFailures.WithLabelValues(action, ClassifyFailureReason(err)).Inc()
}

func (m *EngineMetrics) IncJobRun(job string) {
	if m == nil {
		return
	}
	m.jobRuns.WithLabelValues(job).Inc()
}

func (m *EngineMetrics) IncJobError(job string, err error) {
	if m == nil || err == nil {
		return
	}
	m.jobErrors.WithLabelValues(job, ClassifyFailureReason(err)).Inc()
}

func (m *EngineMetrics) ObserveJobDuration(job string, d time.Duration) {
	if m == nil {
		return
	}
	m.jobDuration.WithLabelValues(job).Observe(d.Seconds())
}
