package ratelimit

import (
	"context"
	"errors"
	"time"

	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/tirta/internal/config"
	"go.uber.org/zap"
)

const (
	keySMSSend     = "tirta:sms:send"
	keySMSDispatch = "tirta:sms:dispatch"
)

// ErrDispatchInProgress is returned when another bulk dispatch holds the lease.
var ErrDispatchInProgress = errors.New("sms_dispatch_in_progress")

// SMSLimiter throttles transport calls across workers and serializes bulk dispatches.
// Without Redis every call is allowed and dispatches are not serialized.
type SMSLimiter struct {
	bucket *TokenBucket
	locker *Locker
	policy *config.PolicyHolder
	log    *zap.Logger
}

func NewSMSLimiter(client *redis.Client, policy *config.PolicyHolder, log *zap.Logger) *SMSLimiter {
	return &SMSLimiter{
		bucket: NewTokenBucket(client),
		locker: NewLocker(client),
		policy: policy,
		log:    log.Named("ratelimit.sms"),
	}
}

func (l *SMSLimiter) Enabled() bool {
	return l != nil && l.bucket != nil
}

// Wait blocks until a send token is available or ctx ends.
// Limiter errors are logged and do not block delivery.
func (l *SMSLimiter) Wait(ctx context.Context) error {
	if !l.Enabled() {
		return ctx.Err()
	}
	p := l.policy.Get().SMS
	for {
		res, err := l.bucket.Allow(ctx, keySMSSend, p.SendRate, p.SendBurst)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			l.log.Warn("sms limiter unavailable", zap.Error(err))
			return nil
		}
		if res.Allowed {
			return nil
		}

		wait := res.RetryAfter
		if wait <= 0 {
			wait = 50 * time.Millisecond
		}
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// AcquireDispatch takes the bulk dispatch lease. The returned release func is never nil.
func (l *SMSLimiter) AcquireDispatch(ctx context.Context) (func(), error) {
	if l == nil || l.locker == nil {
		return func() {}, nil
	}
	token, ok, err := l.locker.TryLock(ctx, keySMSDispatch, l.policy.Get().SMS.DispatchLockTTL)
	if err != nil {
		return func() {}, err
	}
	if !ok {
		return func() {}, ErrDispatchInProgress
	}
	return func() {
		if err := l.locker.Release(context.WithoutCancel(ctx), keySMSDispatch, token); err != nil {
			l.log.Warn("release dispatch lease failed", zap.Error(err))
		}
	}, nil
}
