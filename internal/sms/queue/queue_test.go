package queue

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/tirta/internal/config"
	"github.com/smallbiznis/tirta/internal/sms/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func newRedisQueue(t *testing.T) (*Redis, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedis(client, "test:sms"), mr
}

func TestRedisQueueIsFIFO(t *testing.T) {
	q, mr := newRedisQueue(t)
	ctx := context.Background()

	require.NoError(t, q.Enqueue(ctx, domain.Job{LogID: 1, To: "09170000001", Message: "a"}))
	require.NoError(t, q.Enqueue(ctx, domain.Job{LogID: 2, To: "09170000002", Message: "b"}))

	n, err := q.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	items, err := mr.List("test:sms")
	require.NoError(t, err)
	assert.Len(t, items, 2)

	first, err := q.Dequeue(ctx, time.Second)
	require.NoError(t, err)
	require.NotNil(t, first)
	assert.Equal(t, "a", first.Message)

	second, err := q.Dequeue(ctx, time.Second)
	require.NoError(t, err)
	require.NotNil(t, second)
	assert.EqualValues(t, 2, second.LogID)
}

func TestRedisQueueDequeueTimesOutEmpty(t *testing.T) {
	q, _ := newRedisQueue(t)
	job, err := q.Dequeue(context.Background(), 50*time.Millisecond)
	require.NoError(t, err)
	assert.Nil(t, job)
}

func TestRedisQueueRejectsCorruptPayload(t *testing.T) {
	q, mr := newRedisQueue(t)
	_, err := mr.Push("test:sms", "not-json")
	require.NoError(t, err)

	_, err = q.Dequeue(context.Background(), time.Second)
	assert.Error(t, err)
}

func TestMemoryQueueRejectsWhenFull(t *testing.T) {
	q := NewMemory(1)
	ctx := context.Background()

	require.NoError(t, q.Enqueue(ctx, domain.Job{LogID: 1}))
	assert.ErrorIs(t, q.Enqueue(ctx, domain.Job{LogID: 2}), ErrQueueFull)

	n, err := q.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	job, err := q.Dequeue(ctx, time.Second)
	require.NoError(t, err)
	require.NotNil(t, job)
	assert.EqualValues(t, 1, job.LogID)
}

func TestMemoryQueueClose(t *testing.T) {
	q := NewMemory(2)
	ctx := context.Background()
	require.NoError(t, q.Enqueue(ctx, domain.Job{LogID: 1}))
	q.Close()
	q.Close()

	assert.ErrorIs(t, q.Enqueue(ctx, domain.Job{LogID: 2}), ErrQueueClosed)

	job, err := q.Dequeue(ctx, time.Second)
	require.NoError(t, err)
	require.NotNil(t, job)

	_, err = q.Dequeue(ctx, time.Second)
	assert.ErrorIs(t, err, ErrQueueClosed)
}

func TestMemoryQueueDequeueHonoursContext(t *testing.T) {
	q := NewMemory(1)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := q.Dequeue(ctx, time.Minute)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNewPicksBackend(t *testing.T) {
	log := zaptest.NewLogger(t)
	cfg := config.Config{SMS: config.SMSConfig{QueueKey: "k", QueueCapacity: 4}}

	assert.Equal(t, "memory", New(cfg, nil, log).Name())

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	assert.Equal(t, "redis", New(cfg, client, log).Name())
}
