package scheduler

import (
	"context"
	"time"

	"github.com/smallbiznis/tirta/internal/auditcontext"
	obslogger "github.com/smallbiznis/tirta/internal/observability/logger"
	"go.uber.org/zap"
)

type jobRun struct {
	job            string
	runID          string
	startedAt      time.Time
	processedCount int
}

func (r *jobRun) AddProcessed(count int) {
	if r == nil || count <= 0 {
		return
	}
	r.processedCount += count
}

func (s *Scheduler) newJobRun(ctx context.Context, job string) (context.Context, *jobRun) {
	run := &jobRun{
		job:       job,
		runID:     s.genID.Generate().String(),
		startedAt: s.clock.Now(),
	}
	ctx = auditcontext.WithActor(ctx, "scheduler", auditcontext.RoleSystem)
	ctx = auditcontext.WithRequestID(ctx, run.runID)
	return ctx, run
}

func (s *Scheduler) logger(ctx context.Context) *zap.Logger {
	return obslogger.WithContext(ctx, s.log)
}

func (s *Scheduler) logJobFinish(ctx context.Context, run *jobRun, err error) {
	fields := []zap.Field{
		zap.String("job", run.job),
		zap.String("run_id", run.runID),
		zap.Int64("duration_ms", s.clock.Now().Sub(run.startedAt).Milliseconds()),
		zap.Int("processed_count", run.processedCount),
	}
	log := s.logger(ctx)
	if err != nil {
		log.Warn("scheduler.job.finish", append(fields, zap.Error(err))...)
		return
	}
	if run.processedCount == 0 {
		log.Debug("scheduler.job.finish", fields...)
		return
	}
	log.Info("scheduler.job.finish", fields...)
}
