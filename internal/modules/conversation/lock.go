package conversation

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// CommitLock debounces repeated commits of the same flow, such as a user
// tapping a rating button twice.
type CommitLock interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error)
	// Release frees key early so a failed commit can be retried.
	Release(ctx context.Context, key string) error
}

type redisLock struct {
	rdb *redis.Client
}

// NewCommitLock uses redis when available and a process-local lock otherwise.
func NewCommitLock(rdb *redis.Client) CommitLock {
	if rdb == nil {
		return NewMemoryLock()
	}
	return &redisLock{rdb: rdb}
}

func (l *redisLock) Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	wasSet, err := l.rdb.SetNX(ctx, "commit_lock:"+key, "locked", ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to acquire commit lock in redis: %w", err)
	}
	return wasSet, nil
}

func (l *redisLock) Release(ctx context.Context, key string) error {
	if err := l.rdb.Del(ctx, "commit_lock:"+key).Err(); err != nil {
		return fmt.Errorf("failed to release commit lock in redis: %w", err)
	}
	return nil
}

type memoryLock struct {
	mu    sync.Mutex
	until map[string]time.Time
	now   func() time.Time
}

func NewMemoryLock() CommitLock {
	return &memoryLock{until: make(map[string]time.Time), now: time.Now}
}

func (l *memoryLock) Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if until, ok := l.until[key]; ok && now.Before(until) {
		return false, nil
	}
	for k, until := range l.until {
		if !now.Before(until) {
			delete(l.until, k)
		}
	}
	l.until[key] = now.Add(ttl)
	return true, nil
}

func (l *memoryLock) Release(ctx context.Context, key string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.until, key)
	return nil
}
