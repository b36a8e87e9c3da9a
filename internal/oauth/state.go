package oauth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	statePrefix = "oauth_state:"
	StateTTL    = 10 * time.Minute
)

var ErrStateInvalid = errors.New("oauth state is invalid or expired")

// StateStore issues single-use anti-CSRF state values for the redirect flow.
type StateStore interface {
	Issue(ctx context.Context) (string, error)
	Consume(ctx context.Context, state string) error
}

func newState() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

type RedisStateStore struct {
	Redis *redis.Client
}

func (s *RedisStateStore) Issue(ctx context.Context) (string, error) {
	state, err := newState()
	if err != nil {
		return "", err
	}
	if err := s.Redis.Set(ctx, statePrefix+state, "1", StateTTL).Err(); err != nil {
		return "", err
	}
	return state, nil
}

func (s *RedisStateStore) Consume(ctx context.Context, state string) error {
	if state == "" {
		return ErrStateInvalid
	}
	n, err := s.Redis.Del(ctx, statePrefix+state).Result()
	if err != nil {
		return err
	}
	if n != 1 {
		return ErrStateInvalid
	}
	return nil
}

// MemoryStateStore keeps states in process; used when redis is not configured.
type MemoryStateStore struct {
	mu     sync.Mutex
	states map[string]time.Time
	now    func() time.Time
}

func NewMemoryStateStore() *MemoryStateStore {
	return &MemoryStateStore{states: map[string]time.Time{}, now: time.Now}
}

func (s *MemoryStateStore) Issue(_ context.Context) (string, error) {
	state, err := newState()
	if err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	for k, exp := range s.states {
		if now.After(exp) {
			delete(s.states, k)
		}
	}
	s.states[state] = now.Add(StateTTL)
	return state, nil
}

func (s *MemoryStateStore) Consume(_ context.Context, state string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	exp, ok := s.states[state]
	if !ok {
		return ErrStateInvalid
	}
	delete(s.states, state)
	if s.now().After(exp) {
		return ErrStateInvalid
	}
	return nil
}
