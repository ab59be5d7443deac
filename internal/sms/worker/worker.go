// Package worker drains the SMS queue through the configured transport.
package worker

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/smallbiznis/tirta/internal/clock"
	"github.com/smallbiznis/tirta/internal/config"
	"github.com/smallbiznis/tirta/internal/observability/metrics"
	"github.com/smallbiznis/tirta/internal/ratelimit"
	"github.com/smallbiznis/tirta/internal/sms/domain"
	"github.com/smallbiznis/tirta/internal/sms/queue"
	"github.com/smallbiznis/tirta/internal/sms/transport"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	pollWait     = time.Second
	errorBackoff = time.Second
	sendTimeout  = 30 * time.Second
)

type Params struct {
	fx.In

	DB        *gorm.DB
	Log       *zap.Logger
	Clock     clock.Clock
	Policy    *config.PolicyHolder
	Repo      domain.Repository
	Queue     queue.Queue
	Transport transport.Transport
	Breaker   *transport.Breaker
	Limiter   *ratelimit.SMSLimiter  `optional:"true"`
	Engine    *metrics.EngineMetrics `optional:"true"`
}

type Pool struct {
	db        *gorm.DB
	log       *zap.Logger
	clock     clock.Clock
	policy    *config.PolicyHolder
	repo      domain.Repository
	queue     queue.Queue
	transport transport.Transport
	breaker   *transport.Breaker
	limiter   *ratelimit.SMSLimiter
	engine    *metrics.EngineMetrics

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func New(p Params) *Pool {
	return &Pool{
		db:        p.DB,
		log:       p.Log.Named("sms.worker"),
		clock:     p.Clock,
		policy:    p.Policy,
		repo:      p.Repo,
		queue:     p.Queue,
		transport: p.Transport,
		breaker:   p.Breaker,
		limiter:   p.Limiter,
		engine:    p.Engine,
	}
}

// Register starts the pool with the application and drains it on shutdown.
func Register(lc fx.Lifecycle, cfg config.Config, pool *Pool) {
	if !cfg.SMS.Workers {
		pool.log.Info("sms workers disabled")
		return
	}
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			pool.Start(context.Background())
			return nil
		},
		OnStop: pool.Stop,
	})
}

// Start launches policy.sms.workers goroutines. Calling it twice is a no-op.
func (p *Pool) Start(parent context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(parent)
	p.cancel = cancel

	n := p.policy.Get().SMS.Workers
	for i := 0; i < n; i++ {
		p.wg.Add(1)
		go func(id int) {
			defer p.wg.Done()
			p.run(ctx, id)
		}(i)
	}
	p.log.Info("sms workers started", zap.Int("workers", n), zap.String("queue", p.queue.Name()), zap.String("transport", p.transport.Name()))
}

// Stop cancels the workers and waits for in-flight sends until ctx expires.
func (p *Pool) Stop(ctx context.Context) error {
	p.mu.Lock()
	cancel := p.cancel
	p.cancel = nil
	p.mu.Unlock()
	if cancel == nil {
		return nil
	}
	cancel()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	var err error
	select {
	case <-done:
	case <-ctx.Done():
		err = errors.Join(errors.New("sms workers did not stop in time"), ctx.Err())
	}
	if m, ok := p.queue.(*queue.Memory); ok {
		if n, _ := m.Len(context.Background()); n > 0 {
			p.log.Warn("in-process sms queue dropped on shutdown, rows stay queued for requeue", zap.Int64("pending", n))
		}
	}
	p.log.Info("sms workers stopped")
	return err
}

func (p *Pool) run(ctx context.Context, id int) {
	log := p.log.With(zap.Int("worker", id))
	for {
		if ctx.Err() != nil {
			return
		}
		job, err := p.queue.Dequeue(ctx, pollWait)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, queue.ErrQueueClosed) {
				return
			}
			log.Warn("sms dequeue failed", zap.Error(err))
			sleep(ctx, errorBackoff)
			continue
		}
		if job == nil {
			continue
		}
		if err := p.Handle(ctx, *job); err != nil && ctx.Err() == nil {
			log.Error("sms job failed", zap.String("log_id", job.LogID.String()), zap.Error(err))
		}
	}
}

// Handle claims the job's log row, transmits it and finalizes the row.
// Jobs whose row is not queued any more are dropped without sending.
func (p *Pool) Handle(ctx context.Context, job domain.Job) error {
	if err := p.limiter.Wait(ctx); err != nil {
		// Put the job back so shutdown does not lose it.
		if qerr := p.queue.Enqueue(context.WithoutCancel(ctx), job); qerr != nil {
			p.log.Warn("sms job not requeued", zap.String("log_id", job.LogID.String()), zap.Error(qerr))
		}
		return err
	}

	claimed, err := p.repo.Claim(ctx, p.db, job.LogID, p.clock.Now().UTC())
	if err != nil {
		return fmt.Errorf("claim sms log: %w", err)
	}
	if !claimed {
		p.log.Info("sms job skipped, log row no longer queued", zap.String("log_id", job.LogID.String()))
		return nil
	}

	sendCtx, cancel := context.WithTimeout(ctx, sendTimeout)
	start := p.clock.Now()
	res, sendErr := p.transport.Send(sendCtx, job.To, job.Message)
	cancel()
	p.engine.ObserveSend(p.clock.Now().Sub(start))

	open := p.breaker.Record(sendErr == nil)
	p.engine.SetBreakerOpen(open)

	outcome := domain.Outcome{Status: domain.StatusSent, Success: true, Response: responseText(res, sendErr), At: p.clock.Now().UTC()}
	if sendErr != nil {
		outcome.Status = domain.StatusFailed
		outcome.Success = false
		p.engine.IncDelivery(metrics.DeliveryOutcomeFailed)
		p.log.Warn("sms send failed", zap.String("log_id", job.LogID.String()), zap.Bool("breaker_open", open), zap.Error(sendErr))
	} else {
		p.engine.IncDelivery(metrics.DeliveryOutcomeSent)
	}

	updated, err := p.repo.Finalize(context.WithoutCancel(ctx), p.db, job.LogID, outcome)
	if err != nil {
		return err
	}
	if !updated {
		p.log.Warn("sms log left sending state before finalize", zap.String("log_id", job.LogID.String()))
	}
	if n, err := p.queue.Len(ctx); err == nil {
		p.engine.SetQueueDepth(p.queue.Name(), n)
	}
	return nil
}

func responseText(res transport.Result, err error) string {
	if err != nil {
		return err.Error()
	}
	if strings.TrimSpace(res.Response) != "" {
		return res.Response
	}
	return "Sent"
}

func sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
