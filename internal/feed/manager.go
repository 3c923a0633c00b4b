// Package feed owns the post lifecycle: creation with image upload, the
// reverse-chronological feed read, and like toggling over the platform's
// atomic set primitives.
package feed

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/k4631938-beep/Dangwar/internal/config"
	"github.com/k4631938-beep/Dangwar/internal/models"
	"github.com/k4631938-beep/Dangwar/internal/pkg/apperrors"
	"github.com/k4631938-beep/Dangwar/internal/pkg/textutil"
	"github.com/k4631938-beep/Dangwar/internal/pkg/ulid"
	"github.com/k4631938-beep/Dangwar/internal/platform"
	"github.com/k4631938-beep/Dangwar/internal/reconcile"
	"github.com/k4631938-beep/Dangwar/internal/session"
)

// allowedImageTypes is the accepted upload MIME allowlist.
var allowedImageTypes = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/gif":  ".gif",
	"image/webp": ".webp",
}

// Image is an upload candidate for a new post.
type Image struct {
	ContentType string
	Size        int64
	Body        io.Reader
}

// FeedItem is a post decorated with viewer-relative state.
type FeedItem struct {
	models.Post
	Liked      bool   `json:"liked"`
	CreatedAgo string `json:"created_ago"`
}

// LikeResult reports the optimistic outcome of a like toggle.
type LikeResult struct {
	PostID     string `json:"post_id"`
	Liked      bool   `json:"liked"`
	LikesCount int    `json:"likes_count"`
}

// profileSource yields author snapshots at post-creation time.
type profileSource interface {
	Profile(ctx context.Context, accountID string) (*models.Profile, error)
}

// Manager coordinates posts across the record, file, and reconcile layers.
type Manager struct {
	records  platform.RecordStore
	files    platform.FileStore
	profiles profileSource
	queue    reconcile.Queue
	logger   *slog.Logger
	cfg      config.FeedConfig
}

var _ profileSource = (*session.Manager)(nil)

// NewManager creates a feed manager.
func NewManager(records platform.RecordStore, files platform.FileStore, profiles profileSource, queue reconcile.Queue, logger *slog.Logger, cfg config.FeedConfig) *Manager {
	return &Manager{
		records:  records,
		files:    files,
		profiles: profiles,
		queue:    queue,
		logger:   logger,
		cfg:      cfg,
	}
}

// SubmitPost validates, uploads the image, and creates the post record. All
// validation completes before any network call so a rejected submission costs
// nothing.
func (m *Manager) SubmitPost(ctx context.Context, h *session.Handle, caption string, image *Image) (*models.Post, error) {
	if h == nil {
		return nil, apperrors.ErrNotAuthenticated.WithMessage("Please sign in to share a post")
	}

	caption = textutil.Sanitize(caption)
	if caption == "" {
		return nil, apperrors.NewValidationError("caption", "Please write a caption for your post.")
	}
	if len([]rune(caption)) > m.cfg.MaxCaptionLen {
		return nil, apperrors.NewValidationError("caption",
			fmt.Sprintf("Caption must be less than %d characters.", m.cfg.MaxCaptionLen))
	}

	if image == nil || image.Body == nil {
		return nil, apperrors.ErrInvalidImage
	}
	ext, ok := allowedImageTypes[image.ContentType]
	if !ok {
		return nil, apperrors.ErrInvalidImage
	}
	if image.Size <= 0 || image.Size > m.cfg.MaxImageBytes {
		return nil, apperrors.ErrInvalidImage.WithMessage("Image must be smaller than 5MB")
	}

	author, err := m.profiles.Profile(ctx, h.AccountID)
	if err != nil {
		return nil, err
	}
	if author == nil {
		return nil, apperrors.ErrNotAuthenticated
	}

	path := fmt.Sprintf("posts/%s/%s%s", h.AccountID, ulid.New(), ext)
	ref, err := m.files.Upload(ctx, path, image.ContentType, image.Body)
	if err != nil {
		return nil, apperrors.FromPlatform(err)
	}

	post := &models.Post{
		Caption:        caption,
		ImageURL:       ref.URL,
		AuthorID:       author.AccountID,
		AuthorUsername: author.Username,
		AuthorEmail:    author.Email,
	}
	key, err := m.records.Create(ctx, models.CollectionPosts, post.Fields())
	if err != nil {
		return nil, apperrors.FromPlatform(err)
	}
	post.ID = key

	// The post exists either way; a lost counter bump is tolerated and only
	// skews the profile's postsCount.
	err = m.records.Update(ctx, models.CollectionUsers, author.AccountID, []platform.FieldOp{
		{Field: "postsCount", Kind: platform.OpIncrement, Value: 1},
	})
	if err != nil {
		m.logger.Warn("postsCount increment failed", "account_id", author.AccountID, "error", err)
	}

	m.logger.Info("post created", "post_id", post.ID, "author_id", author.AccountID)
	return post, nil
}

// LoadFeed returns the newest posts, decorated for the viewer. A nil handle
// reads the feed signed out; Liked is then always false.
func (m *Manager) LoadFeed(ctx context.Context, h *session.Handle, limit int) ([]FeedItem, error) {
	if limit <= 0 {
		limit = m.cfg.DefaultLimit
	}

	recs, err := m.records.List(ctx, models.CollectionPosts, "createdAt", true, limit)
	if err != nil {
		return nil, apperrors.FromPlatform(err)
	}

	viewerID := ""
	if h != nil {
		viewerID = h.AccountID
	}

	items := make([]FeedItem, 0, len(recs))
	for i := range recs {
		post := models.PostFromRecord(&recs[i])
		items = append(items, FeedItem{
			Post:       *post,
			Liked:      viewerID != "" && post.LikedBy(viewerID),
			CreatedAgo: relativeTime(post.CreatedAt),
		})
	}
	return items, nil
}

// ToggleLike flips the viewer's membership in the post's like set and adjusts
// the counter by one. The intent is enqueued before the write and acked after
// it so an interrupted toggle is repaired by the corrective pass.
func (m *Manager) ToggleLike(ctx context.Context, h *session.Handle, postID string) (*LikeResult, error) {
	if h == nil {
		return nil, apperrors.ErrNotAuthenticated.WithMessage("Please sign in to like posts")
	}

	rec, err := m.records.Get(ctx, models.CollectionPosts, postID)
	if err != nil {
		return nil, apperrors.FromPlatform(err)
	}
	if rec == nil {
		return nil, apperrors.NewNotFoundError("Post")
	}
	post := models.PostFromRecord(rec)

	liked := post.LikedBy(h.AccountID)
	action := reconcile.ActionAdd
	setOp := platform.OpAddToSet
	delta := 1
	if liked {
		action = reconcile.ActionRemove
		setOp = platform.OpRemoveFromSet
		delta = -1
	}

	intent := reconcile.NewIntent(reconcile.KindLike, action, h.AccountID, postID)
	if err := m.queue.Enqueue(ctx, intent); err != nil {
		m.logger.Warn("like intent enqueue failed", "post_id", postID, "error", err)
	}

	err = m.records.Update(ctx, models.CollectionPosts, postID, []platform.FieldOp{
		{Field: "likes", Kind: setOp, Value: h.AccountID},
		{Field: "likesCount", Kind: platform.OpIncrement, Value: delta},
	})
	if err != nil {
		return nil, apperrors.FromPlatform(err)
	}

	if err := m.queue.Ack(ctx, intent.ID); err != nil {
		m.logger.Warn("like intent ack failed", "intent_id", intent.ID, "error", err)
	}

	return &LikeResult{
		PostID:     postID,
		Liked:      !liked,
		LikesCount: post.LikesCount + delta,
	}, nil
}

// relativeTime renders a post age for display. A nil time means the server
// timestamp has not resolved yet, which only happens for just-written posts.
func relativeTime(t *time.Time) string {
	if t == nil {
		return "Just now"
	}
	d := time.Since(*t)
	switch {
	case d < time.Minute:
		return "Just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	default:
		return fmt.Sprintf("%dd ago", int(d.Hours()/24))
	}
}
