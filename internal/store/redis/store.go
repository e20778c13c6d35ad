package redis

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/MrSnakeDoc/together/internal/domain"
)

// Store handles Redis operations for journal entries and image blobs
type Store struct {
	client *redis.Client
	now    func() time.Time
}

// Option configures a Store
type Option func(*Store)

// WithClock sets the clock used to stamp stored images
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// NewStore creates a new Redis store
func NewStore(client *redis.Client, opts ...Option) *Store {
	s := &Store{
		client: client,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Name identifies the backend in logs and status output
func (s *Store) Name() string { return "redis" }

// Ping is the liveness probe run before every write
func (s *Store) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return domain.Unavailable("redis", err)
	}
	return nil
}

// Journal returns the journal entry view of the store
func (s *Store) Journal() *Journal { return &Journal{s} }

// Blobs returns the image blob view of the store
func (s *Store) Blobs() *Blobs { return &Blobs{s} }
