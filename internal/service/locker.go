package service

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"invoicetrack/internal/clients"
	"invoicetrack/internal/domain"
	"invoicetrack/internal/logger"
	"invoicetrack/internal/metrics"
)

// Locker serializes writers per invoice number. The returned unlock func is
// safe to call more than once.
type Locker interface {
	Lock(ctx context.Context, invoiceNo string) (unlock func(), err error)
}

// KeyedMutex is an in-process Locker.
type KeyedMutex struct {
	mu   sync.Mutex
	held map[string]chan struct{}
}

func NewKeyedMutex() *KeyedMutex {
	return &KeyedMutex{held: map[string]chan struct{}{}}
}

func (k *KeyedMutex) Lock(ctx context.Context, invoiceNo string) (func(), error) {
	for {
		k.mu.Lock()
		wait, busy := k.held[invoiceNo]
		if !busy {
			mine := make(chan struct{})
			k.held[invoiceNo] = mine
			k.mu.Unlock()

			var once sync.Once
			return func() {
				once.Do(func() {
					k.mu.Lock()
					delete(k.held, invoiceNo)
					k.mu.Unlock()
					close(mine)
				})
			}, nil
		}
		k.mu.Unlock()

		select {
		case <-wait:
		case <-ctx.Done():
			return nil, domain.NewError("Lock", domain.ErrBusy, invoiceNo)
		}
	}
}

// RedisLocker holds invoice locks in Redis so several instances can share a
// database. Acquisition polls until wait runs out.
type RedisLocker struct {
	redis   *clients.RedisClient
	ttl     time.Duration
	wait    time.Duration
	metrics *metrics.Metrics
	log     zerolog.Logger
}

func NewRedisLocker(redis *clients.RedisClient, ttl, wait time.Duration, m *metrics.Metrics) *RedisLocker {
	if ttl <= 0 {
		ttl = 15 * time.Second
	}
	if wait <= 0 {
		wait = 5 * time.Second
	}
	return &RedisLocker{
		redis:   redis,
		ttl:     ttl,
		wait:    wait,
		metrics: m,
		log:     logger.WithComponent("invoice-lock"),
	}
}

func lockKey(invoiceNo string) string {
	return "locks:invoice:" + invoiceNo
}

func (l *RedisLocker) Lock(ctx context.Context, invoiceNo string) (func(), error) {
	const op = "Lock"
	key := lockKey(invoiceNo)
	token := uuid.NewString()
	start := time.Now()

	ctx, cancel := context.WithTimeout(ctx, l.wait)
	defer cancel()

	backoff := 20 * time.Millisecond
	for {
		ok, err := l.redis.AcquireLock(ctx, key, token, l.ttl)
		if err != nil && ctx.Err() == nil {
			return nil, domain.Upstream(op, err)
		}
		if ok {
			l.metrics.ObserveLockWait(time.Since(start))
			var once sync.Once
			return func() {
				once.Do(func() {
					// release must not depend on the caller's context
					rctx, rcancel := context.WithTimeout(context.Background(), 2*time.Second)
					defer rcancel()
					if err := l.redis.ReleaseLock(rctx, key, token); err != nil {
						l.log.Warn().Err(err).Str("invoice_no", invoiceNo).Msg("release invoice lock")
					}
				})
			}, nil
		}

		select {
		case <-ctx.Done():
			l.metrics.ObserveLockWait(time.Since(start))
			return nil, domain.NewError(op, domain.ErrBusy, invoiceNo)
		case <-time.After(backoff):
		}
		if backoff < 200*time.Millisecond {
			backoff *= 2
		}
	}
}
