package cron

import (
	"context"
	"errors"
	"sync"
	"time"
)

// Lock coordinates exclusive runs of one job across worker replicas.
type Lock interface {
	Acquire(ctx context.Context) (bool, error)
	Release(ctx context.Context) error
}

// LockFactory returns the lock guarding the named job.
type LockFactory func(job string) (Lock, error)

// Locker is the token-based lock primitive provided by pkg/redis.
type Locker interface {
	AcquireLock(ctx context.Context, name string, ttl time.Duration) (string, error)
	ReleaseLock(ctx context.Context, name, token string) (bool, error)
}

// RedisLockFactory keys one lock per job name. ttl must exceed the longest
// sweep or a second replica may start while the first is still running.
func RedisLockFactory(locker Locker, ttl time.Duration) LockFactory {
	return func(job string) (Lock, error) {
		if locker == nil {
			return nil, errors.New("locker is required")
		}
		if job == "" {
			return nil, errors.New("job name is required")
		}
		if ttl <= 0 {
			ttl = 10 * time.Minute
		}
		return &tokenLock{locker: locker, name: "cron:" + job, ttl: ttl}, nil
	}
}

type tokenLock struct {
	locker Locker
	name   string
	ttl    time.Duration

	mu    sync.Mutex
	token string
}

func (l *tokenLock) Acquire(ctx context.Context) (bool, error) {
	token, err := l.locker.AcquireLock(ctx, l.name, l.ttl)
	if err != nil || token == "" {
		return false, err
	}
	l.mu.Lock()
	l.token = token
	l.mu.Unlock()
	return true, nil
}

// Release is a no-op unless this instance holds the lock.
func (l *tokenLock) Release(ctx context.Context) error {
	l.mu.Lock()
	token := l.token
	l.token = ""
	l.mu.Unlock()

	_, err := l.locker.ReleaseLock(ctx, l.name, token)
	return err
}
