// Package redisstore keeps session values in Redis so several client
// processes on one device (CLI, sync agent, widgets) share one session.
package redisstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jrsteele09/fintrack-client/kvstore"
	"github.com/redis/go-redis/v9"
)

const defaultOpTimeout = 2 * time.Second

var _ kvstore.Repo = (*Store)(nil)

// Store is a Redis backed kvstore.Repo. Keys are stored as "<prefix>:<key>".
type Store struct {
	rdb       redis.UniversalClient
	prefix    string
	ttl       time.Duration
	opTimeout time.Duration
}

type Option func(*Store)

// WithTTL expires every written key after ttl. Zero keeps keys forever.
func WithTTL(ttl time.Duration) Option {
	return func(s *Store) {
		s.ttl = ttl
	}
}

// WithOpTimeout bounds each Redis round trip.
func WithOpTimeout(d time.Duration) Option {
	return func(s *Store) {
		s.opTimeout = d
	}
}

func New(rdb redis.UniversalClient, prefix string, options ...Option) (*Store, error) {
	if rdb == nil {
		return nil, errors.New("[redisstore.New] redis client is required")
	}
	s := &Store{
		rdb:       rdb,
		prefix:    prefix,
		opTimeout: defaultOpTimeout,
	}
	for _, opt := range options {
		opt(s)
	}
	return s, nil
}

func (s *Store) Get(key string) (string, bool, error) {
	ctx, cancel := s.context()
	defer cancel()

	v, err := s.rdb.Get(ctx, s.key(key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("redis get %s: %w", key, err)
	}
	return v, true, nil
}

func (s *Store) Set(key, value string) error {
	ctx, cancel := s.context()
	defer cancel()

	if err := s.rdb.Set(ctx, s.key(key), value, s.ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

func (s *Store) Delete(key string) error {
	ctx, cancel := s.context()
	defer cancel()

	if err := s.rdb.Del(ctx, s.key(key)).Err(); err != nil {
		return fmt.Errorf("redis del %s: %w", key, err)
	}
	return nil
}

func (s *Store) Disclosures() []string {
	return []string{"Session values are stored in Redis; anyone with access to the Redis instance can read them."}
}

func (s *Store) key(key string) string {
	if s.prefix == "" {
		return key
	}
	return s.prefix + ":" + key
}

func (s *Store) context() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), s.opTimeout)
}
