// Package session keeps the per-browser selection of records.
package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// SelectionStore holds the ordered, duplicate free list of records a session has selected.
type SelectionStore interface {
	Selected(ctx context.Context, sessionID string) ([]uuid.UUID, error)
	Add(ctx context.Context, sessionID string, ids ...uuid.UUID) error
	Remove(ctx context.Context, sessionID string, ids ...uuid.UUID) error
	Clear(ctx context.Context, sessionID string) error
}

// NewStore returns a redis backed store, or an in-memory one when client is nil.
func NewStore(client *redis.Client, ttl time.Duration) SelectionStore {
	if client == nil {
		return NewMemoryStore()
	}
	return NewRedisStore(client, ttl)
}

const keyPrefix = "catalogue:selected:"

// RedisStore keeps each selection in a sorted set scored by a per-session insertion
// counter. Scores stay well below 2^53 so float64 keeps them distinct.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStore creates a RedisStore; a zero ttl keeps selections forever.
func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, ttl: ttl}
}

func (s *RedisStore) key(sessionID string) string {
	return keyPrefix + sessionID
}

func (s *RedisStore) seqKey(sessionID string) string {
	return keyPrefix + sessionID + ":seq"
}

// Selected returns the selection in insertion order.
func (s *RedisStore) Selected(ctx context.Context, sessionID string) ([]uuid.UUID, error) {
	members, err := s.client.ZRange(ctx, s.key(sessionID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read selection: %w", err)
	}
	ids := make([]uuid.UUID, 0, len(members))
	for _, m := range members {
		id, err := uuid.Parse(m)
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// Add appends ids that are not selected yet.
func (s *RedisStore) Add(ctx context.Context, sessionID string, ids ...uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}
	key, seq := s.key(sessionID), s.seqKey(sessionID)
	end, err := s.client.IncrBy(ctx, seq, int64(len(ids))).Result()
	if err != nil {
		return fmt.Errorf("failed to add to selection: %w", err)
	}
	start := end - int64(len(ids))
	members := make([]redis.Z, len(ids))
	for i, id := range ids {
		members[i] = redis.Z{Score: float64(start + int64(i) + 1), Member: id.String()}
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.ZAddNX(ctx, key, members...)
		if s.ttl > 0 {
			pipe.Expire(ctx, key, s.ttl)
			pipe.Expire(ctx, seq, s.ttl)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to add to selection: %w", err)
	}
	return nil
}

// Remove drops ids from the selection.
func (s *RedisStore) Remove(ctx context.Context, sessionID string, ids ...uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}
	members := make([]interface{}, len(ids))
	for i, id := range ids {
		members[i] = id.String()
	}
	if err := s.client.ZRem(ctx, s.key(sessionID), members...).Err(); err != nil {
		return fmt.Errorf("failed to remove from selection: %w", err)
	}
	return nil
}

// Clear empties the selection.
func (s *RedisStore) Clear(ctx context.Context, sessionID string) error {
	if err := s.client.Del(ctx, s.key(sessionID), s.seqKey(sessionID)).Err(); err != nil {
		return fmt.Errorf("failed to clear selection: %w", err)
	}
	return nil
}

// MemoryStore is a process local SelectionStore.
type MemoryStore struct {
	mu         sync.RWMutex
	selections map[string][]uuid.UUID
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{selections: make(map[string][]uuid.UUID)}
}

func (s *MemoryStore) Selected(_ context.Context, sessionID string) ([]uuid.UUID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]uuid.UUID(nil), s.selections[sessionID]...), nil
}

func (s *MemoryStore) Add(_ context.Context, sessionID string, ids ...uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	current := s.selections[sessionID]
	for _, id := range ids {
		if !contains(current, id) {
			current = append(current, id)
		}
	}
	s.selections[sessionID] = current
	return nil
}

func (s *MemoryStore) Remove(_ context.Context, sessionID string, ids ...uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	current := s.selections[sessionID]
	kept := current[:0]
	for _, id := range current {
		if !contains(ids, id) {
			kept = append(kept, id)
		}
	}
	if len(kept) == 0 {
		delete(s.selections, sessionID)
		return nil
	}
	s.selections[sessionID] = kept
	return nil
}

func (s *MemoryStore) Clear(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.selections, sessionID)
	return nil
}

func contains(ids []uuid.UUID, id uuid.UUID) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
