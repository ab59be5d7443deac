package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/tirta/internal/sms/domain"
)

const defaultKey = "tirta:sms:outbound"

type Redis struct {
	client *redis.Client
	key    string
}

func NewRedis(client *redis.Client, key string) *Redis {
	if key == "" {
		key = defaultKey
	}
	return &Redis{client: client, key: key}
}

func (q *Redis) Name() string { return "redis" }

func (q *Redis) Enqueue(ctx context.Context, job domain.Job) error {
	payload, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("encode sms job: %w", err)
	}
	if err := q.client.RPush(ctx, q.key, payload).Err(); err != nil {
		return fmt.Errorf("rpush %s: %w", q.key, err)
	}
	return nil
}

func (q *Redis) Dequeue(ctx context.Context, wait time.Duration) (*domain.Job, error) {
	res, err := q.client.BLPop(ctx, wait, q.key).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("blpop %s: %w", q.key, err)
	}
	if len(res) != 2 {
		return nil, fmt.Errorf("blpop %s: unexpected reply length %d", q.key, len(res))
	}

	var job domain.Job
	if err := json.Unmarshal([]byte(res[1]), &job); err != nil {
		return nil, fmt.Errorf("decode sms job: %w", err)
	}
	return &job, nil
}

func (q *Redis) Len(ctx context.Context) (int64, error) {
	return q.client.LLen(ctx, q.key).Result()
}
