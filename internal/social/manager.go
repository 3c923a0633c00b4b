// Package social implements the user graph: prefix search over usernames and
// the mirrored follow relationship.
package social

import (
	"context"
	"log/slog"

	"github.com/k4631938-beep/Dangwar/internal/config"
	"github.com/k4631938-beep/Dangwar/internal/models"
	"github.com/k4631938-beep/Dangwar/internal/pkg/apperrors"
	"github.com/k4631938-beep/Dangwar/internal/pkg/textutil"
	"github.com/k4631938-beep/Dangwar/internal/platform"
	"github.com/k4631938-beep/Dangwar/internal/reconcile"
	"github.com/k4631938-beep/Dangwar/internal/session"
)

// minQueryLen is the shortest term the search accepts.
const minQueryLen = 2

// SearchResult is a matched profile decorated with viewer-relative state.
type SearchResult struct {
	AccountID      string `json:"account_id"`
	Username       string `json:"username"`
	Bio            string `json:"bio,omitempty"`
	ProfilePicture string `json:"profile_picture,omitempty"`
	FollowersCount int    `json:"followers_count"`
	Following      bool   `json:"following"`
}

// FollowResult reports the outcome of a follow toggle.
type FollowResult struct {
	TargetID       string `json:"target_id"`
	Following      bool   `json:"following"`
	FollowersCount int    `json:"followers_count"`
}

// Manager coordinates search and follow over the record store.
type Manager struct {
	records platform.RecordStore
	queue   reconcile.Queue
	logger  *slog.Logger
	cfg     config.FeedConfig
}

// NewManager creates a social manager.
func NewManager(records platform.RecordStore, queue reconcile.Queue, logger *slog.Logger, cfg config.FeedConfig) *Manager {
	return &Manager{
		records: records,
		queue:   queue,
		logger:  logger,
		cfg:     cfg,
	}
}

// SearchByUsernamePrefix finds profiles whose username starts with the folded
// term. The caller is excluded from their own results. Matching is
// case-sensitive after folding, so it only finds usernames stored in the same
// folded form the signup path writes.
func (m *Manager) SearchByUsernamePrefix(ctx context.Context, h *session.Handle, term string) ([]SearchResult, error) {
	if h == nil {
		return nil, apperrors.ErrNotAuthenticated.WithMessage("Please sign in to search")
	}

	term = textutil.FoldUsername(textutil.Sanitize(term))
	if len([]rune(term)) < minQueryLen {
		return nil, apperrors.ErrInvalidQuery
	}

	recs, err := m.records.PrefixQuery(ctx, models.CollectionUsers, "username", term, m.cfg.SearchLimit)
	if err != nil {
		return nil, apperrors.FromPlatform(err)
	}

	// One read of the caller's profile covers the Following flag for every hit.
	following := map[string]bool{}
	if callerRec, err := m.records.Get(ctx, models.CollectionUsers, h.AccountID); err == nil && callerRec != nil {
		for _, id := range models.ProfileFromRecord(callerRec).Following {
			following[id] = true
		}
	}

	results := make([]SearchResult, 0, len(recs))
	for i := range recs {
		p := models.ProfileFromRecord(&recs[i])
		if p.AccountID == h.AccountID {
			continue
		}
		results = append(results, SearchResult{
			AccountID:      p.AccountID,
			Username:       p.Username,
			Bio:            p.Bio,
			ProfilePicture: p.ProfilePicture,
			FollowersCount: len(p.Followers),
			Following:      following[p.AccountID],
		})
	}
	return results, nil
}

// ToggleFollow flips the caller's membership in the target's followers and
// mirrors it in the caller's following set. The two updates hit two records
// and are not atomic; the enqueued intent lets the corrective pass finish an
// interrupted pair.
func (m *Manager) ToggleFollow(ctx context.Context, h *session.Handle, targetID string) (*FollowResult, error) {
	if h == nil {
		return nil, apperrors.ErrNotAuthenticated.WithMessage("Please sign in to follow users")
	}
	if targetID == h.AccountID {
		return nil, apperrors.ErrSelfFollow
	}

	callerRec, err := m.records.Get(ctx, models.CollectionUsers, h.AccountID)
	if err != nil {
		return nil, apperrors.FromPlatform(err)
	}
	if callerRec == nil {
		return nil, apperrors.ErrNotAuthenticated
	}
	caller := models.ProfileFromRecord(callerRec)

	targetRec, err := m.records.Get(ctx, models.CollectionUsers, targetID)
	if err != nil {
		return nil, apperrors.FromPlatform(err)
	}
	if targetRec == nil {
		return nil, apperrors.NewNotFoundError("User")
	}

	isFollowing := false
	for _, id := range caller.Following {
		if id == targetID {
			isFollowing = true
			break
		}
	}

	action := reconcile.ActionAdd
	setOp := platform.OpAddToSet
	if isFollowing {
		action = reconcile.ActionRemove
		setOp = platform.OpRemoveFromSet
	}

	intent := reconcile.NewIntent(reconcile.KindFollow, action, h.AccountID, targetID)
	if err := m.queue.Enqueue(ctx, intent); err != nil {
		m.logger.Warn("follow intent enqueue failed", "target_id", targetID, "error", err)
	}

	err = m.records.Update(ctx, models.CollectionUsers, h.AccountID, []platform.FieldOp{
		{Field: "following", Kind: setOp, Value: targetID},
	})
	if err != nil {
		return nil, apperrors.FromPlatform(err)
	}
	err = m.records.Update(ctx, models.CollectionUsers, targetID, []platform.FieldOp{
		{Field: "followers", Kind: setOp, Value: h.AccountID},
	})
	if err != nil {
		// First half landed; the pending intent carries the repair.
		return nil, apperrors.FromPlatform(err)
	}

	if err := m.queue.Ack(ctx, intent.ID); err != nil {
		m.logger.Warn("follow intent ack failed", "intent_id", intent.ID, "error", err)
	}

	// Report the stored count, not arithmetic over the pre-write read. A
	// half-applied prior toggle can leave the caller already in the set, and
	// the add is then a no-op.
	count := len(models.ProfileFromRecord(targetRec).Followers)
	if fresh, err := m.records.Get(ctx, models.CollectionUsers, targetID); err == nil && fresh != nil {
		count = len(models.ProfileFromRecord(fresh).Followers)
	} else if err != nil {
		m.logger.Warn("follower count refresh failed", "target_id", targetID, "error", err)
	}

	return &FollowResult{
		TargetID:       targetID,
		Following:      !isFollowing,
		FollowersCount: count,
	}, nil
}
