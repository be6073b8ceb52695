package oauth

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const stateKeyPrefix = "slack:oauth:state:"

// ErrInvalidState is returned when a state value is unknown, expired or
// already used.
var ErrInvalidState = errors.New("invalid oauth state")

// StateStore issues single-use OAuth state values.
type StateStore interface {
	Issue(ctx context.Context, ttl time.Duration) (string, error)
	Consume(ctx context.Context, state string) error
}

// RedisStates implements StateStore using Redis SET NX EX and GETDEL, so
// a state can be consumed by exactly one replica.
type RedisStates struct {
	rdb redis.UniversalClient
}

func NewRedisStates(rdb redis.UniversalClient) *RedisStates {
	return &RedisStates{rdb: rdb}
}

func (s *RedisStates) Issue(ctx context.Context, ttl time.Duration) (string, error) {
	state := uuid.NewString()
	ok, err := s.rdb.SetNX(ctx, stateKeyPrefix+state, "1", ttl).Result()
	if err != nil {
		return "", fmt.Errorf("redis SetNX: %w", err)
	}
	if !ok {
		return "", fmt.Errorf("state collision")
	}
	return state, nil
}

func (s *RedisStates) Consume(ctx context.Context, state string) error {
	if state == "" {
		return ErrInvalidState
	}
	err := s.rdb.GetDel(ctx, stateKeyPrefix+state).Err()
	if errors.Is(err, redis.Nil) {
		return ErrInvalidState
	}
	if err != nil {
		return fmt.Errorf("redis GetDel: %w", err)
	}
	return nil
}

// MockStates is an in-memory state store for testing and single-replica runs.
type MockStates struct {
	mu     sync.Mutex
	states map[string]time.Time
	now    func() time.Time
}

func NewMockStates() *MockStates {
	return &MockStates{states: make(map[string]time.Time), now: time.Now}
}

func (m *MockStates) Issue(_ context.Context, ttl time.Duration) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	state := uuid.NewString()
	m.states[state] = m.now().Add(ttl)
	return state, nil
}

func (m *MockStates) Consume(_ context.Context, state string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	expires, ok := m.states[state]
	if !ok {
		return ErrInvalidState
	}
	delete(m.states, state)
	if m.now().After(expires) {
		return ErrInvalidState
	}
	return nil
}
