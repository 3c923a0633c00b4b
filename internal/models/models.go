// Package models defines the data the app holds transiently between the
// record service and the UI. Records are the source of truth; these structs
// are non-authoritative snapshots.
package models

import (
	"time"

	"github.com/k4631938-beep/Dangwar/internal/platform"
)

// Record collections owned by the platform.
const (
	CollectionUsers     = "users"
	CollectionUsernames = "usernames"
	CollectionPosts     = "posts"
)

// Profile is the one-to-one companion of an identity account.
type Profile struct {
	AccountID      string     `json:"account_id"`
	Username       string     `json:"username"`
	Email          string     `json:"email"`
	Phone          string     `json:"phone,omitempty"`
	Bio            string     `json:"bio,omitempty"`
	ProfilePicture string     `json:"profile_picture,omitempty"`
	PostsCount     int        `json:"posts_count"`
	Followers      []string   `json:"followers"`
	Following      []string   `json:"following"`
	CreatedAt      *time.Time `json:"created_at,omitempty"`
}

// Fields converts the profile to record service fields for initial creation.
func (p *Profile) Fields() map[string]any {
	var phone any
	if p.Phone != "" {
		phone = p.Phone
	}
	return map[string]any{
		"username":       p.Username,
		"email":          p.Email,
		"phone":          phone,
		"bio":            p.Bio,
		"profilePicture": nil,
		"postsCount":     0,
		"followers":      []string{},
		"following":      []string{},
		"createdAt":      platform.ServerTimestamp,
	}
}

// ProfileFromRecord decodes a users record into a Profile snapshot.
func ProfileFromRecord(rec *platform.Record) *Profile {
	if rec == nil {
		return nil
	}
	return &Profile{
		AccountID:      rec.Key,
		Username:       stringField(rec.Fields, "username"),
		Email:          stringField(rec.Fields, "email"),
		Phone:          stringField(rec.Fields, "phone"),
		Bio:            stringField(rec.Fields, "bio"),
		ProfilePicture: stringField(rec.Fields, "profilePicture"),
		PostsCount:     intField(rec.Fields, "postsCount"),
		Followers:      stringSliceField(rec.Fields, "followers"),
		Following:      stringSliceField(rec.Fields, "following"),
		CreatedAt:      timeField(rec.Fields, "createdAt"),
	}
}

// Reservation maps a case-folded username to the account that owns it.
// Created alongside the profile to approximate username uniqueness; the
// check-then-create pair is not atomic.
type Reservation struct {
	AccountID string `json:"account_id"`
	Username  string `json:"username"`
}

// Fields converts the reservation to record service fields.
func (r *Reservation) Fields() map[string]any {
	return map[string]any{
		"uid":       r.AccountID,
		"username":  r.Username,
		"createdAt": platform.ServerTimestamp,
	}
}

// ReservationFromRecord decodes a usernames record.
func ReservationFromRecord(rec *platform.Record) *Reservation {
	if rec == nil {
		return nil
	}
	return &Reservation{
		AccountID: stringField(rec.Fields, "uid"),
		Username:  stringField(rec.Fields, "username"),
	}
}

// Post is an image post with its author snapshot taken at creation time.
type Post struct {
	ID             string     `json:"id"`
	Caption        string     `json:"caption"`
	ImageURL       string     `json:"image_url"`
	AuthorID       string     `json:"author_id"`
	AuthorUsername string     `json:"author_username"`
	AuthorEmail    string     `json:"author_email"`
	Likes          []string   `json:"likes"`
	LikesCount     int        `json:"likes_count"`
	CommentsCount  int        `json:"comments_count"`
	CreatedAt      *time.Time `json:"created_at,omitempty"`
}

// Fields converts the post to record service fields for creation.
func (p *Post) Fields() map[string]any {
	return map[string]any{
		"caption":        p.Caption,
		"imageUrl":       p.ImageURL,
		"authorId":       p.AuthorID,
		"authorUsername": p.AuthorUsername,
		"authorEmail":    p.AuthorEmail,
		"createdAt":      platform.ServerTimestamp,
		"likes":          []string{},
		"likesCount":     0,
		"comments":       []string{},
		"commentsCount":  0,
	}
}

// PostFromRecord decodes a posts record into a Post snapshot.
func PostFromRecord(rec *platform.Record) *Post {
	if rec == nil {
		return nil
	}
	return &Post{
		ID:             rec.Key,
		Caption:        stringField(rec.Fields, "caption"),
		ImageURL:       stringField(rec.Fields, "imageUrl"),
		AuthorID:       stringField(rec.Fields, "authorId"),
		AuthorUsername: stringField(rec.Fields, "authorUsername"),
		AuthorEmail:    stringField(rec.Fields, "authorEmail"),
		Likes:          stringSliceField(rec.Fields, "likes"),
		LikesCount:     intField(rec.Fields, "likesCount"),
		CommentsCount:  intField(rec.Fields, "commentsCount"),
		CreatedAt:      timeField(rec.Fields, "createdAt"),
	}
}

// LikedBy reports whether accountID is in the post's like set.
func (p *Post) LikedBy(accountID string) bool {
	for _, id := range p.Likes {
		if id == accountID {
			return true
		}
	}
	return false
}

// Field decoding helpers. Record fields arrive as generic JSON values:
// numbers as float64, sets as []any, server timestamps as RFC 3339 strings or
// null while still unresolved.

func stringField(fields map[string]any, name string) string {
	if v, ok := fields[name].(string); ok {
		return v
	}
	return ""
}

func intField(fields map[string]any, name string) int {
	switch v := fields[name].(type) {
	case float64:
		return int(v)
	case int:
		return v
	}
	return 0
}

func stringSliceField(fields map[string]any, name string) []string {
	switch v := fields[name].(type) {
	case []string:
		out := make([]string, len(v))
		copy(out, v)
		return out
	case []any:
		out := make([]string, 0, len(v))
		for _, e := range v {
			if s, ok := e.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

func timeField(fields map[string]any, name string) *time.Time {
	switch v := fields[name].(type) {
	case string:
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			return &t
		}
	case time.Time:
		return &v
	case *time.Time:
		return v
	}
	return nil
}
