package queue

import (
	"context"
	"sync"
	"time"

	"github.com/smallbiznis/tirta/internal/sms/domain"
)

const defaultCapacity = 1024

type Memory struct {
	jobs   chan domain.Job
	mu     sync.RWMutex
	closed bool
}

func NewMemory(capacity int) *Memory {
	if capacity <= 0 {
		capacity = defaultCapacity
	}
	return &Memory{jobs: make(chan domain.Job, capacity)}
}

func (q *Memory) Name() string { return "memory" }

func (q *Memory) Enqueue(ctx context.Context, job domain.Job) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return ErrQueueClosed
	}
	select {
	case q.jobs <- job:
		return nil
	default:
		return ErrQueueFull
	}
}

func (q *Memory) Dequeue(ctx context.Context, wait time.Duration) (*domain.Job, error) {
	timer := time.NewTimer(wait)
	defer timer.Stop()

	select {
	case job, ok := <-q.jobs:
		if !ok {
			return nil, ErrQueueClosed
		}
		return &job, nil
	case <-timer.C:
		return nil, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (q *Memory) Len(context.Context) (int64, error) {
	return int64(len(q.jobs)), nil
}

// Close stops accepting jobs. Buffered jobs can still be drained.
func (q *Memory) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.closed = true
	close(q.jobs)
}
