package conversation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
)

// FlowStore keeps one flow per user. Get returns nil when the slot is empty.
type FlowStore interface {
	Get(ctx context.Context, userID int64) (*Flow, error)
	Set(ctx context.Context, userID int64, flow Flow) error
	Clear(ctx context.Context, userID int64) error
}

type MemoryStore struct {
	mu    sync.Mutex
	flows map[int64]Flow
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{flows: make(map[int64]Flow)}
}

func (s *MemoryStore) Get(ctx context.Context, userID int64) (*Flow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	flow, ok := s.flows[userID]
	if !ok {
		return nil, nil
	}
	return &flow, nil
}

func (s *MemoryStore) Set(ctx context.Context, userID int64, flow Flow) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.flows[userID] = flow
	return nil
}

func (s *MemoryStore) Clear(ctx context.Context, userID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.flows, userID)
	return nil
}

// RedisStore shares flows between bot replicas. Keys never expire because
// flows have no server-side timeout.
type RedisStore struct {
	rdb *redis.Client
}

func NewRedisStore(rdb *redis.Client) *RedisStore {
	return &RedisStore{rdb: rdb}
}

func flowKey(userID int64) string {
	return fmt.Sprintf("flow:%d", userID)
}

func (s *RedisStore) Get(ctx context.Context, userID int64) (*Flow, error) {
	data, err := s.rdb.Get(ctx, flowKey(userID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read flow from redis: %w", err)
	}

	var flow Flow
	if err := json.Unmarshal(data, &flow); err != nil {
		return nil, fmt.Errorf("failed to decode flow: %w", err)
	}
	return &flow, nil
}

func (s *RedisStore) Set(ctx context.Context, userID int64, flow Flow) error {
	data, err := json.Marshal(flow)
	if err != nil {
		return err
	}
	return s.rdb.Set(ctx, flowKey(userID), data, 0).Err()
}

func (s *RedisStore) Clear(ctx context.Context, userID int64) error {
	return s.rdb.Del(ctx, flowKey(userID)).Err()
}
