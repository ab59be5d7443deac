package kv

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/smallbiznis/tirta/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/fx/fxtest"
	"go.uber.org/zap/zaptest"
)

func TestNewRedisClientDisabled(t *testing.T) {
	lc := fxtest.NewLifecycle(t)
	client := NewRedisClient(lc, config.Config{}, zaptest.NewLogger(t))
	assert.Nil(t, client)
}

func TestNewRedisClientPingsOnStart(t *testing.T) {
	mr := miniredis.RunT(t)
	lc := fxtest.NewLifecycle(t)

	client := NewRedisClient(lc, config.Config{Redis: config.RedisConfig{Addr: mr.Addr()}}, zaptest.NewLogger(t))
	require.NotNil(t, client)

	lc.RequireStart()
	require.NoError(t, client.Set(context.Background(), "k", "v", 0).Err())
	got, err := mr.Get("k")
	require.NoError(t, err)
	assert.Equal(t, "v", got)
	lc.RequireStop()
}
