package reconcile

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/k4631938-beep/Dangwar/internal/models"
	"github.com/k4631938-beep/Dangwar/internal/platform/platformtest"
)

func newTestReconciler(t *testing.T) (*Reconciler, *MemoryQueue, *platformtest.FakeRecordStore) {
	t.Helper()
	queue := NewMemoryQueue()
	records := platformtest.NewFakeRecordStore()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewReconciler(queue, records, logger, time.Second, 0), queue, records
}

func staleIntent(kind Kind, action Action, actorID, targetID string) *Intent {
	intent := NewIntent(kind, action, actorID, targetID)
	intent.EnqueuedAt = time.Now().Add(-time.Hour)
	return intent
}

func TestMemoryQueue(t *testing.T) {
	ctx := context.Background()
	q := NewMemoryQueue()

	fresh := NewIntent(KindLike, ActionAdd, "acct-1", "p1")
	old := staleIntent(KindFollow, ActionAdd, "acct-1", "acct-2")
	require.NoError(t, q.Enqueue(ctx, fresh))
	require.NoError(t, q.Enqueue(ctx, old))
	assert.Equal(t, 2, q.Len())

	stale, err := q.Stale(ctx, time.Minute)
	require.NoError(t, err)
	require.Len(t, stale, 1)
	assert.Equal(t, old.ID, stale[0].ID)

	require.NoError(t, q.Ack(ctx, old.ID))
	assert.Equal(t, 1, q.Len())
}

func TestRunOnceRepairsFollow(t *testing.T) {
	ctx := context.Background()

	t.Run("completes a half-applied follow", func(t *testing.T) {
		r, queue, records := newTestReconciler(t)
		// First half landed, second half lost.
		records.Seed(models.CollectionUsers, "acct-1", map[string]any{"following": []string{"acct-2"}})
		records.Seed(models.CollectionUsers, "acct-2", map[string]any{"followers": []string{}})
		require.NoError(t, queue.Enqueue(ctx, staleIntent(KindFollow, ActionAdd, "acct-1", "acct-2")))

		require.NoError(t, r.RunOnce(ctx))

		assert.Equal(t, []string{"acct-2"}, records.Fields(models.CollectionUsers, "acct-1")["following"])
		assert.Equal(t, []string{"acct-1"}, records.Fields(models.CollectionUsers, "acct-2")["followers"])
		assert.Equal(t, 0, queue.Len())
	})

	t.Run("re-applying a fully landed follow is a no-op", func(t *testing.T) {
		r, queue, records := newTestReconciler(t)
		records.Seed(models.CollectionUsers, "acct-1", map[string]any{"following": []string{"acct-2"}})
		records.Seed(models.CollectionUsers, "acct-2", map[string]any{"followers": []string{"acct-1"}})
		require.NoError(t, queue.Enqueue(ctx, staleIntent(KindFollow, ActionAdd, "acct-1", "acct-2")))

		require.NoError(t, r.RunOnce(ctx))

		assert.Equal(t, []string{"acct-2"}, records.Fields(models.CollectionUsers, "acct-1")["following"])
		assert.Equal(t, []string{"acct-1"}, records.Fields(models.CollectionUsers, "acct-2")["followers"])
	})

	t.Run("completes a half-applied unfollow", func(t *testing.T) {
		r, queue, records := newTestReconciler(t)
		records.Seed(models.CollectionUsers, "acct-1", map[string]any{"following": []string{}})
		records.Seed(models.CollectionUsers, "acct-2", map[string]any{"followers": []string{"acct-1", "acct-9"}})
		require.NoError(t, queue.Enqueue(ctx, staleIntent(KindFollow, ActionRemove, "acct-1", "acct-2")))

		require.NoError(t, r.RunOnce(ctx))

		assert.Equal(t, []string{"acct-9"}, records.Fields(models.CollectionUsers, "acct-2")["followers"])
	})

	t.Run("keeps the intent queued when a record is unreachable", func(t *testing.T) {
		r, queue, records := newTestReconciler(t)
		records.Seed(models.CollectionUsers, "acct-1", map[string]any{"following": []string{}})
		// acct-2 does not exist; the update fails and the intent stays queued.
		require.NoError(t, queue.Enqueue(ctx, staleIntent(KindFollow, ActionAdd, "acct-1", "acct-2")))

		require.NoError(t, r.RunOnce(ctx))
		assert.Equal(t, 1, queue.Len())
	})
}

func TestRunOnceRepairsLike(t *testing.T) {
	ctx := context.Background()

	t.Run("pins likesCount to the set size", func(t *testing.T) {
		r, queue, records := newTestReconciler(t)
		// Set write landed but the counter increment was lost.
		records.Seed(models.CollectionPosts, "p1", map[string]any{
			"likes":      []string{"acct-1", "acct-2"},
			"likesCount": 1,
		})
		require.NoError(t, queue.Enqueue(ctx, staleIntent(KindLike, ActionAdd, "acct-2", "p1")))

		require.NoError(t, r.RunOnce(ctx))

		fields := records.Fields(models.CollectionPosts, "p1")
		assert.Equal(t, []string{"acct-1", "acct-2"}, fields["likes"])
		assert.Equal(t, 2, fields["likesCount"])
		assert.Equal(t, 0, queue.Len())
	})

	t.Run("applies a lost like before recounting", func(t *testing.T) {
		r, queue, records := newTestReconciler(t)
		records.Seed(models.CollectionPosts, "p1", map[string]any{
			"likes":      []string{},
			"likesCount": 0,
		})
		require.NoError(t, queue.Enqueue(ctx, staleIntent(KindLike, ActionAdd, "acct-1", "p1")))

		require.NoError(t, r.RunOnce(ctx))

		fields := records.Fields(models.CollectionPosts, "p1")
		assert.Equal(t, []string{"acct-1"}, fields["likes"])
		assert.Equal(t, 1, fields["likesCount"])
	})

	t.Run("repairs an unlike the same way", func(t *testing.T) {
		r, queue, records := newTestReconciler(t)
		records.Seed(models.CollectionPosts, "p1", map[string]any{
			"likes":      []string{"acct-1", "acct-2"},
			"likesCount": 2,
		})
		require.NoError(t, queue.Enqueue(ctx, staleIntent(KindLike, ActionRemove, "acct-1", "p1")))

		require.NoError(t, r.RunOnce(ctx))

		fields := records.Fields(models.CollectionPosts, "p1")
		assert.Equal(t, []string{"acct-2"}, fields["likes"])
		assert.Equal(t, 1, fields["likesCount"])
	})
}

func TestRunOnceSkipsFreshIntents(t *testing.T) {
	ctx := context.Background()
	queue := NewMemoryQueue()
	records := platformtest.NewFakeRecordStore()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	r := NewReconciler(queue, records, logger, time.Second, time.Minute)

	require.NoError(t, queue.Enqueue(ctx, NewIntent(KindLike, ActionAdd, "acct-1", "p1")))
	require.NoError(t, r.RunOnce(ctx))

	// Too fresh to repair; still pending and nothing was touched.
	assert.Equal(t, 1, queue.Len())
	assert.Equal(t, 0, records.UpdateCalls)
}
