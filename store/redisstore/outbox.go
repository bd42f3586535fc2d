package redisstore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/dmitrymomot/foundation/core/message"
	"github.com/dmitrymomot/foundation/core/outbox"
)

const (
	outboxEntryKeyPrefix = "outbox:entry:"
	outboxPendingZSet    = "outbox:pending"
)

// entryRecord is the JSON-on-the-wire shape of an outbox.Entry; message
// payloads are stored as JSON and come back as map[string]any on read,
// since the payload's concrete type is not recorded.
type entryRecord struct {
	ID          uuid.UUID       `json:"id"`
	Message     message.Envelope `json:"message"`
	Options     outbox.Options  `json:"options"`
	Status      outbox.Status   `json:"status"`
	RetryCount  int             `json:"retry_count"`
	NextRetryAt time.Time       `json:"next_retry_at"`
	CreatedAt   time.Time       `json:"created_at"`
	LastError   string          `json:"last_error"`
	LockedUntil time.Time       `json:"locked_until"`
	LockedBy    uuid.UUID       `json:"locked_by"`
}

func fromEntry(e outbox.Entry) entryRecord {
	return entryRecord{
		ID: e.ID, Message: e.Message, Options: e.Options, Status: e.Status,
		RetryCount: e.RetryCount, NextRetryAt: e.NextRetryAt, CreatedAt: e.CreatedAt,
		LastError: e.LastError, LockedUntil: e.LockedUntil, LockedBy: e.LockedBy,
	}
}

func (r entryRecord) toEntry() outbox.Entry {
	return outbox.Entry{
		ID: r.ID, Message: r.Message, Options: r.Options, Status: r.Status,
		RetryCount: r.RetryCount, NextRetryAt: r.NextRetryAt, CreatedAt: r.CreatedAt,
		LastError: r.LastError, LockedUntil: r.LockedUntil, LockedBy: r.LockedBy,
	}
}

// OutboxStorage implements core/outbox.Storage on Redis.
type OutboxStorage struct {
	client            *redis.Client
	visibilityTimeout time.Duration
	claimerID         uuid.UUID
}

// NewOutboxStorage returns an outbox.Storage backed by client.
func NewOutboxStorage(client *redis.Client, visibilityTimeout time.Duration) *OutboxStorage {
	if visibilityTimeout <= 0 {
		visibilityTimeout = 30 * time.Second
	}
	return &OutboxStorage{client: client, visibilityTimeout: visibilityTimeout, claimerID: uuid.New()}
}

func (s *OutboxStorage) key(id uuid.UUID) string { return outboxEntryKeyPrefix + id.String() }

func (s *OutboxStorage) Add(ctx context.Context, msg message.Envelope, opts outbox.Options) (outbox.Entry, error) {
	e := outbox.Entry{
		ID:        uuid.New(),
		Message:   msg,
		Options:   opts,
		Status:    outbox.StatusPending,
		CreatedAt: time.Now().UTC(),
	}
	data, err := json.Marshal(fromEntry(e))
	if err != nil {
		return outbox.Entry{}, fmt.Errorf("redisstore: marshal entry: %w", err)
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, s.key(e.ID), data, 0)
	pipe.ZAdd(ctx, outboxPendingZSet, redis.Z{Score: float64(e.CreatedAt.UnixNano()), Member: e.ID.String()})
	if _, err := pipe.Exec(ctx); err != nil {
		return outbox.Entry{}, fmt.Errorf("redisstore: add entry: %w", err)
	}
	return e, nil
}

// claimScript atomically pops up to ARGV[2] ready members from the pending
// zset (score <= ARGV[3]) and returns their ids; GetPending then marks each
// claimed entry Processing with a visibilityTimeout lease. Removing the ids
// in a single script is what makes claims exclusive across concurrent
// pollers.
var claimScript = redis.NewScript(`
local zset = KEYS[1]
local prefix = ARGV[1]
local limit = tonumber(ARGV[2])
local now = tonumber(ARGV[3])
local lease = tonumber(ARGV[4])
local ids = redis.call('ZRANGEBYSCORE', zset, '-inf', now, 'LIMIT', 0, limit)
local claimed = {}
for _, id in ipairs(ids) do
  redis.call('ZREM', zset, id)
  table.insert(claimed, id)
end
return claimed
`)

func (s *OutboxStorage) GetPending(ctx context.Context, limit int) ([]outbox.Entry, error) {
	now := time.Now().UTC()
	res, err := claimScript.Run(ctx, s.client, []string{outboxPendingZSet},
		outboxEntryKeyPrefix, limit, now.UnixNano(), int64(s.visibilityTimeout)).Result()
	if err != nil {
		return nil, fmt.Errorf("redisstore: claim pending: %w", err)
	}
	ids, _ := res.([]any)
	if len(ids) == 0 {
		return nil, nil
	}

	out := make([]outbox.Entry, 0, len(ids))
	for _, raw := range ids {
		idStr, _ := raw.(string)
		id, err := uuid.Parse(idStr)
		if err != nil {
			continue
		}
		data, err := s.client.Get(ctx, s.key(id)).Bytes()
		if err != nil {
			continue
		}
		var rec entryRecord
		if err := json.Unmarshal(data, &rec); err != nil {
			continue
		}
		rec.Status = outbox.StatusProcessing
		rec.LockedUntil = now.Add(s.visibilityTimeout)
		rec.LockedBy = s.claimerID
		updated, err := json.Marshal(rec)
		if err != nil {
			continue
		}
		if err := s.client.Set(ctx, s.key(id), updated, 0).Err(); err != nil {
			continue
		}
		out = append(out, rec.toEntry())
	}
	return out, nil
}

func (s *OutboxStorage) transition(ctx context.Context, id uuid.UUID, mutate func(*entryRecord)) error {
	data, err := s.client.Get(ctx, s.key(id)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return fmt.Errorf("outbox entry %s not found", id)
		}
		return fmt.Errorf("redisstore: get entry: %w", err)
	}
	var rec entryRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return fmt.Errorf("redisstore: unmarshal entry: %w", err)
	}
	mutate(&rec)
	updated, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("redisstore: marshal entry: %w", err)
	}
	return s.client.Set(ctx, s.key(id), updated, 0).Err()
}

func (s *OutboxStorage) MarkProcessed(ctx context.Context, id uuid.UUID) error {
	return s.transition(ctx, id, func(r *entryRecord) { r.Status = outbox.StatusProcessed })
}

func (s *OutboxStorage) MarkFailed(ctx context.Context, id uuid.UUID, reason string) error {
	return s.transition(ctx, id, func(r *entryRecord) {
		r.Status = outbox.StatusFailed
		r.LastError = reason
	})
}

func (s *OutboxStorage) UpdateRetry(ctx context.Context, id uuid.UUID, retryCount int, nextRetryAt time.Time) error {
	if err := s.transition(ctx, id, func(r *entryRecord) {
		r.Status = outbox.StatusPending
		r.RetryCount = retryCount
		r.NextRetryAt = nextRetryAt
	}); err != nil {
		return err
	}
	return s.client.ZAdd(ctx, outboxPendingZSet, redis.Z{Score: float64(nextRetryAt.UnixNano()), Member: id.String()}).Err()
}

func (s *OutboxStorage) GetPendingCount(ctx context.Context) (int, error) {
	n, err := s.client.ZCard(ctx, outboxPendingZSet).Result()
	if err != nil {
		return 0, fmt.Errorf("redisstore: pending count: %w", err)
	}
	return int(n), nil
}
