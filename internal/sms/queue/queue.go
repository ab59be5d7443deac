// Package queue holds pending SMS jobs between the dispatch transaction and the workers.
package queue

import (
	"context"
	"errors"
	"time"

	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/tirta/internal/config"
	"github.com/smallbiznis/tirta/internal/sms/domain"
	"go.uber.org/zap"
)

var (
	ErrQueueFull   = errors.New("queue_full")
	ErrQueueClosed = errors.New("queue_closed")
)

// Queue is FIFO. Enqueue never blocks on a full queue.
type Queue interface {
	Enqueue(ctx context.Context, job domain.Job) error
	// Dequeue waits up to wait for a job and returns nil when none arrived.
	Dequeue(ctx context.Context, wait time.Duration) (*domain.Job, error)
	Len(ctx context.Context) (int64, error)
	Name() string
}

// New picks the Redis list when a client is configured, otherwise a bounded in-process queue.
func New(cfg config.Config, client *redis.Client, log *zap.Logger) Queue {
	if client != nil {
		log.Info("sms queue backed by redis", zap.String("key", cfg.SMS.QueueKey))
		return NewRedis(client, cfg.SMS.QueueKey)
	}
	log.Info("sms queue in process", zap.Int("capacity", cfg.SMS.QueueCapacity))
	return NewMemory(cfg.SMS.QueueCapacity)
}
