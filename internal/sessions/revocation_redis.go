package sessions

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Revocations records when a subject lost access to a document so join
// tickets issued before that moment stop verifying. Entries live for the
// ticket TTL; older tickets have expired by then anyway.
// Without a Redis client the list is kept in process.
type Revocations struct {
	client *redis.Client
	prefix string
	ttl    time.Duration

	mu    sync.Mutex
	local map[string]time.Time
}

// NewRevocations creates a revocation list. client may be nil.
func NewRevocations(client *redis.Client, ttl time.Duration) *Revocations {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Revocations{client: client, prefix: "revoked:ticket:", ttl: ttl, local: map[string]time.Time{}}
}

func (r *Revocations) key(documentID, sub string) string {
	return r.prefix + documentID + ":" + sub
}

// Revoke invalidates every ticket for sub on documentID issued up to now.
func (r *Revocations) Revoke(ctx context.Context, documentID, sub string) error {
	now := time.Now().UTC()
	if r.client == nil {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.local[r.key(documentID, sub)] = now
		return nil
	}
	return r.client.Set(ctx, r.key(documentID, sub), now.Unix(), r.ttl).Err()
}

// RevokedAt returns when sub's tickets for documentID were last revoked.
func (r *Revocations) RevokedAt(ctx context.Context, documentID, sub string) (time.Time, bool, error) {
	if r.client == nil {
		r.mu.Lock()
		defer r.mu.Unlock()
		key := r.key(documentID, sub)
		at, ok := r.local[key]
		if ok && time.Since(at) > r.ttl {
			delete(r.local, key)
			return time.Time{}, false, nil
		}
		return at, ok, nil
	}
	v, err := r.client.Get(ctx, r.key(documentID, sub)).Result()
	if errors.Is(err, redis.Nil) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, err
	}
	secs, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return time.Time{}, false, err
	}
	return time.Unix(secs, 0).UTC(), true, nil
}
