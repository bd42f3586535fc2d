package redisstore

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const inboxKeyPrefix = "inbox:seen:"

// InboxStorage implements core/inbox.Storage on Redis using SETNX, which is
// itself the atomic check-and-write primitive the interface asks for — no
// Lua script is needed here the way outbox's claim needed one.
type InboxStorage struct {
	client *redis.Client
	ttl    time.Duration
}

// NewInboxStorage returns an inbox.Storage backed by client. ttl bounds how
// long a message_id is remembered; zero keeps entries forever.
func NewInboxStorage(client *redis.Client, ttl time.Duration) *InboxStorage {
	return &InboxStorage{client: client, ttl: ttl}
}

func (s *InboxStorage) key(id uuid.UUID) string { return inboxKeyPrefix + id.String() }

func (s *InboxStorage) HasBeenProcessed(ctx context.Context, id uuid.UUID) (bool, error) {
	n, err := s.client.Exists(ctx, s.key(id)).Result()
	if err != nil {
		return false, fmt.Errorf("redisstore: exists: %w", err)
	}
	return n > 0, nil
}

func (s *InboxStorage) MarkProcessed(ctx context.Context, id uuid.UUID) (bool, error) {
	ok, err := s.client.SetNX(ctx, s.key(id), time.Now().UTC().Format(time.RFC3339Nano), s.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redisstore: setnx: %w", err)
	}
	return ok, nil
}
