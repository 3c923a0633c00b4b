// Package reconcile repairs the paired, non-transactional writes that keep
// mirrored record fields in agreement: followers/following across two user
// records, and likes/likesCount within one post record. Managers enqueue an
// intent before issuing a paired write and ack it after both halves succeed;
// intents that stay pending past a cutoff are re-applied idempotently by a
// background corrective pass.
package reconcile

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/k4631938-beep/Dangwar/internal/cache"
	"github.com/k4631938-beep/Dangwar/internal/pkg/ulid"
)

// Kind identifies which mirrored pair an intent covers.
type Kind string

const (
	// KindFollow mirrors caller.following and target.followers.
	KindFollow Kind = "follow"
	// KindLike pairs the likes set with the likesCount counter.
	KindLike Kind = "like"
)

// Action is the direction of the toggle the intent records.
type Action string

const (
	ActionAdd    Action = "add"
	ActionRemove Action = "remove"
)

// Intent is one pending paired write.
type Intent struct {
	ID         string    `json:"id"`
	Kind       Kind      `json:"kind"`
	Action     Action    `json:"action"`
	ActorID    string    `json:"actor_id"`  // the follower or the liker
	TargetID   string    `json:"target_id"` // the followed account or the post
	EnqueuedAt time.Time `json:"enqueued_at"`
}

// NewIntent builds an intent with a fresh id and timestamp.
func NewIntent(kind Kind, action Action, actorID, targetID string) *Intent {
	return &Intent{
		ID:         ulid.New(),
		Kind:       kind,
		Action:     action,
		ActorID:    actorID,
		TargetID:   targetID,
		EnqueuedAt: time.Now().UTC(),
	}
}

// Queue is the explicit pending-reconciliation queue.
type Queue interface {
	Enqueue(ctx context.Context, intent *Intent) error
	Ack(ctx context.Context, id string) error
	// Stale returns intents that have been pending longer than maxAge.
	Stale(ctx context.Context, maxAge time.Duration) ([]Intent, error)
}

const pendingKey = "reconcile:pending"

// redisQueue stores pending intents in a Redis hash keyed by intent id.
type redisQueue struct {
	redis *cache.Redis
}

// NewRedisQueue creates a Redis-backed queue.
func NewRedisQueue(r *cache.Redis) Queue {
	return &redisQueue{redis: r}
}

func (q *redisQueue) Enqueue(ctx context.Context, intent *Intent) error {
	payload, err := json.Marshal(intent)
	if err != nil {
		return err
	}
	return q.redis.Client().HSet(ctx, pendingKey, intent.ID, payload).Err()
}

func (q *redisQueue) Ack(ctx context.Context, id string) error {
	return q.redis.Client().HDel(ctx, pendingKey, id).Err()
}

func (q *redisQueue) Stale(ctx context.Context, maxAge time.Duration) ([]Intent, error) {
	entries, err := q.redis.Client().HGetAll(ctx, pendingKey).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, err
	}

	cutoff := time.Now().Add(-maxAge)
	var stale []Intent
	for _, raw := range entries {
		var intent Intent
		if err := json.Unmarshal([]byte(raw), &intent); err != nil {
			continue
		}
		if intent.EnqueuedAt.Before(cutoff) {
			stale = append(stale, intent)
		}
	}
	return stale, nil
}
