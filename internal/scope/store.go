package scope

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrTokenNotFound is returned when a scope token is unknown or expired.
var ErrTokenNotFound = errors.New("scope token not found")

// Resolver maps an opaque scope token onto the actor's Scope. The HTTP
// middleware depends on this rather than on the Redis store directly.
type Resolver interface {
	Get(ctx context.Context, token string) (*Scope, error)
}

// Store keeps scopes in Redis under a TTL, written by the auth layer when a
// session is established and read here on every request.
type Store struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewStore(rdb *redis.Client, ttl time.Duration) *Store {
	return &Store{rdb: rdb, ttl: ttl}
}

func key(token string) string { return fmt.Sprintf("scope:tok:%s", token) }

func (s *Store) Put(ctx context.Context, token string, sc Scope) error {
	b, err := json.Marshal(sc)
	if err != nil {
		return err
	}
	return s.rdb.Set(ctx, key(token), b, s.ttl).Err()
}

func (s *Store) Get(ctx context.Context, token string) (*Scope, error) {
	b, err := s.rdb.Get(ctx, key(token)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrTokenNotFound
		}
		return nil, err
	}
	var sc Scope
	if err := json.Unmarshal(b, &sc); err != nil {
		return nil, err
	}
	return &sc, nil
}

func (s *Store) Delete(ctx context.Context, token string) error {
	return s.rdb.Del(ctx, key(token)).Err()
}
