package sessions

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisRepository implements Repository using Redis as the backing store so
// presence is shared between server instances.
// Entries of a document are stored as JSON in the hash "<prefix><documentId>",
// keyed by session id. The hash expires after the TTL of its newest entry.
type RedisRepository struct {
	client *redis.Client
	prefix string
}

// NewRedisRepository creates a Redis-based presence repository. Prefix may be empty.
func NewRedisRepository(client *redis.Client, prefix string) *RedisRepository {
	if prefix == "" {
		prefix = "presence:"
	}
	return &RedisRepository{client: client, prefix: prefix}
}

func (r *RedisRepository) key(documentID string) string {
	return r.prefix + documentID
}

func (r *RedisRepository) Put(ctx context.Context, e *Entry) error {
	b, err := json.Marshal(e)
	if err != nil {
		return err
	}
	exp := time.Until(e.ExpiresAt)
	if exp <= 0 {
		// ensure a minimal TTL so Redis won't keep expired entries around
		exp = time.Second
	}
	key := r.key(e.DocumentID)
	pipe := r.client.TxPipeline()
	pipe.HSet(ctx, key, e.SessionID, b)
	pipe.Expire(ctx, key, exp)
	_, err = pipe.Exec(ctx)
	return err
}

func (r *RedisRepository) Delete(ctx context.Context, documentID, sessionID string) error {
	return r.client.HDel(ctx, r.key(documentID), sessionID).Err()
}

func (r *RedisRepository) List(ctx context.Context, documentID string) ([]Entry, error) {
	key := r.key(documentID)
	raw, err := r.client.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	out := make([]Entry, 0, len(raw))
	var stale []string
	for field, v := range raw {
		var e Entry
		if err := json.Unmarshal([]byte(v), &e); err != nil || e.expired(now) {
			stale = append(stale, field)
			continue
		}
		out = append(out, e)
	}
	if len(stale) > 0 {
		_ = r.client.HDel(ctx, key, stale...).Err()
	}
	sortEntries(out)
	return out, nil
}
