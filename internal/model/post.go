package model

import "time"

// Post represents a single text post on the home feed.
//
// The `json:"..."` tags tell Go's encoding/json package how to serialize
// this struct — the like-toggle endpoint returns posts as JSON, and the
// HTML templates read the same fields.
//
// RELATIONS:
// Posts reference their author by user ID (AuthorID) — the stable internal
// key. AuthorUsername and AuthorAvatar are denormalised display fields
// filled by the repository's JOIN; they are never used as foreign keys.
//
// LIKES:
// Likes is the set of user IDs that currently like the post. The database
// stores it as rows of a likes table with a composite primary key, which is
// what makes the like count race-free: a user can appear at most once.
// LikeCount is len(Likes) but is computed in SQL so list queries don't have
// to load every like row.
type Post struct {
	ID             int64     `json:"id"`
	Title          string    `json:"title"`
	Content        string    `json:"content"`
	AuthorID       string    `json:"authorId"`
	AuthorUsername string    `json:"authorUsername"`
	AuthorAvatar   string    `json:"authorAvatar,omitempty"`
	CreatedAt      time.Time `json:"createdAt"`
	LikeCount      int       `json:"likeCount"`
	Likes          []string  `json:"-"` // liker user IDs, loaded for single-post reads only
}

// LikedBy reports whether the given user currently likes this post.
// Only meaningful when Likes has been loaded (single-post reads).
func (p *Post) LikedBy(userID string) bool {
	for _, id := range p.Likes {
		if id == userID {
			return true
		}
	}
	return false
}

// SortKey selects the ordering of the home feed.
type SortKey string

const (
	// SortRecency orders posts newest-first.
	SortRecency SortKey = "recency"
	// SortPopularity orders posts by like count descending; ties are
	// broken by recency (more recent first).
	SortPopularity SortKey = "popularity"
)

// ParseSortKey maps a query-string value to a SortKey, defaulting to
// recency for anything unrecognised. A bad ?sort= value is not an error —
// the home page still renders.
func ParseSortKey(s string) SortKey {
	if s == string(SortPopularity) {
		return SortPopularity
	}
	return SortRecency
}
