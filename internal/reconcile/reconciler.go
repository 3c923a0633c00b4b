package reconcile

import (
	"context"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/k4631938-beep/Dangwar/internal/models"
	"github.com/k4631938-beep/Dangwar/internal/platform"
)

var repairsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "dangwar_reconcile_repairs_total",
	Help: "Stale intents re-applied by the corrective pass, by kind and result.",
}, []string{"kind", "result"})

// Reconciler periodically re-applies stale intents. All repairs are
// idempotent set operations, so re-applying an intent whose writes already
// landed is a no-op; the final counter is recomputed from the set rather
// than incremented again.
type Reconciler struct {
	queue    Queue
	records  platform.RecordStore
	logger   *slog.Logger
	interval time.Duration
	maxAge   time.Duration
}

// NewReconciler creates a reconciler over the given queue and record store.
func NewReconciler(queue Queue, records platform.RecordStore, logger *slog.Logger, interval, maxAge time.Duration) *Reconciler {
	return &Reconciler{
		queue:    queue,
		records:  records,
		logger:   logger,
		interval: interval,
		maxAge:   maxAge,
	}
}

// Start runs the corrective pass on a ticker until ctx is cancelled.
func (r *Reconciler) Start(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.logger.Info("reconciler started", "interval", r.interval, "max_age", r.maxAge)
	for {
		select {
		case <-ctx.Done():
			r.logger.Info("reconciler stopped")
			return
		case <-ticker.C:
			if err := r.RunOnce(ctx); err != nil {
				r.logger.Error("reconcile pass failed", "error", err)
			}
		}
	}
}

// RunOnce repairs every intent older than maxAge and acks the ones that
// succeed. Failed repairs stay queued for the next pass.
func (r *Reconciler) RunOnce(ctx context.Context) error {
	stale, err := r.queue.Stale(ctx, r.maxAge)
	if err != nil {
		return err
	}

	for _, intent := range stale {
		var repairErr error
		switch intent.Kind {
		case KindFollow:
			repairErr = r.repairFollow(ctx, &intent)
		case KindLike:
			repairErr = r.repairLike(ctx, &intent)
		default:
			r.logger.Warn("dropping intent of unknown kind", "id", intent.ID, "kind", intent.Kind)
		}

		if repairErr != nil {
			repairsTotal.WithLabelValues(string(intent.Kind), "error").Inc()
			r.logger.Error("repair failed",
				"id", intent.ID, "kind", intent.Kind, "action", intent.Action, "error", repairErr)
			continue
		}

		repairsTotal.WithLabelValues(string(intent.Kind), "ok").Inc()
		if err := r.queue.Ack(ctx, intent.ID); err != nil {
			r.logger.Error("ack failed", "id", intent.ID, "error", err)
		}
	}
	return nil
}

// repairFollow re-applies both halves of the mirrored follow write. Set
// membership cannot drift from double application.
func (r *Reconciler) repairFollow(ctx context.Context, intent *Intent) error {
	kind := platform.OpAddToSet
	if intent.Action == ActionRemove {
		kind = platform.OpRemoveFromSet
	}

	err := r.records.Update(ctx, models.CollectionUsers, intent.ActorID, []platform.FieldOp{
		{Field: "following", Kind: kind, Value: intent.TargetID},
	})
	if err != nil {
		return err
	}
	return r.records.Update(ctx, models.CollectionUsers, intent.TargetID, []platform.FieldOp{
		{Field: "followers", Kind: kind, Value: intent.ActorID},
	})
}

// repairLike re-applies the like set write, then pins likesCount to the
// actual set size. Recomputing avoids compounding a counter that may or may
// not have been incremented by the original write.
func (r *Reconciler) repairLike(ctx context.Context, intent *Intent) error {
	kind := platform.OpAddToSet
	if intent.Action == ActionRemove {
		kind = platform.OpRemoveFromSet
	}

	err := r.records.Update(ctx, models.CollectionPosts, intent.TargetID, []platform.FieldOp{
		{Field: "likes", Kind: kind, Value: intent.ActorID},
	})
	if err != nil {
		return err
	}

	rec, err := r.records.Get(ctx, models.CollectionPosts, intent.TargetID)
	if err != nil {
		return err
	}
	if rec == nil {
		// Post deleted out from under the intent. Nothing left to repair.
		return nil
	}

	post := models.PostFromRecord(rec)
	return r.records.Update(ctx, models.CollectionPosts, intent.TargetID, []platform.FieldOp{
		{Field: "likesCount", Kind: platform.OpSet, Value: len(post.Likes)},
	})
}
