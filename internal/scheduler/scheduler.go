package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/tirta/internal/clock"
	"github.com/smallbiznis/tirta/internal/config"
	obsmetrics "github.com/smallbiznis/tirta/internal/observability/metrics"
	smsdomain "github.com/smallbiznis/tirta/internal/sms/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const JobSMSRequeue = "sms_requeue"

var ErrInvalidConfig = errors.New("invalid_scheduler_config")

type Params struct {
	fx.In

	Log     *zap.Logger
	GenID   *snowflake.Node
	Clock   clock.Clock
	Policy  *config.PolicyHolder
	SMS     smsdomain.Service
	Config  Config                    `optional:"true"`
	Metrics *obsmetrics.EngineMetrics `optional:"true"`
}

// Scheduler runs periodic maintenance for the SMS pipeline.
type Scheduler struct {
	log     *zap.Logger
	cfg     Config
	genID   *snowflake.Node
	clock   clock.Clock
	policy  *config.PolicyHolder
	sms     smsdomain.Service
	metrics *obsmetrics.EngineMetrics
}

func New(p Params) (*Scheduler, error) {
	if p.Log == nil || p.GenID == nil || p.Clock == nil || p.SMS == nil {
		return nil, ErrInvalidConfig
	}
	return &Scheduler{
		log:     p.Log.Named("scheduler").With(zap.String("component", "scheduler")),
		cfg:     p.Config.withDefaults(),
		genID:   p.GenID,
		clock:   p.Clock,
		policy:  p.Policy,
		sms:     p.SMS,
		metrics: p.Metrics,
	}, nil
}

func (s *Scheduler) runJob(parent context.Context, name string, fn func(ctx context.Context, run *jobRun) error) error {
	ctx, cancel := context.WithTimeout(parent, s.cfg.JobTimeout)
	defer cancel()

	ctx, run := s.newJobRun(ctx, name)
	s.metrics.IncJobRun(name)

	err := fn(ctx, run)
	s.metrics.ObserveJobDuration(name, s.clock.Now().Sub(run.startedAt))
	s.logJobFinish(ctx, run, err)
	if err == nil {
		return nil
	}

	s.metrics.IncJobError(name, err)
	// A timed out pass resumes on the next tick.
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return nil
	}
	return fmt.Errorf("%s: %w", name, err)
}

func (s *Scheduler) RunOnce(parent context.Context) error {
	jobs := []struct {
		Name string
		Run  func(context.Context, *jobRun) error
	}{
		{JobSMSRequeue, s.RequeueStaleSMSJob},
	}

	var err error
	for _, job := range jobs {
		err = errors.Join(err, s.runJob(parent, job.Name, job.Run))
	}
	return err
}

func (s *Scheduler) RunForever(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.RunInterval)
	defer ticker.Stop()

	for {
		if err := s.RunOnce(ctx); err != nil {
			s.log.Warn("scheduler run failed", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// RequeueStaleSMSJob re-enqueues SMS rows left queued past policy.sms.requeueAfter.
func (s *Scheduler) RequeueStaleSMSJob(ctx context.Context, run *jobRun) error {
	after := s.policy.Get().SMS.RequeueAfter
	if after <= 0 {
		return nil
	}
	n, err := s.sms.Requeue(ctx, after)
	run.AddProcessed(n)
	return err
}
