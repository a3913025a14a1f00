// Package repository declares the storage interfaces the service layer
// programs against. The sqlite subpackage implements them; tests implement
// them with in-memory mocks.
package repository

import (
	"context"

	"github.com/sakif/microblog/internal/model"
)

// UserRepository is the identity store: durable user records keyed by
// internal ID, with username and external identity hash as unique
// alternate keys.
type UserRepository interface {
	// Create inserts a new user. The username uniqueness check is atomic
	// with the insert (UNIQUE constraint), so two concurrent registrations
	// of the same name yield exactly one success and one
	// apperror.ErrConflict.
	Create(ctx context.Context, user *model.User) error
	GetByID(ctx context.Context, id string) (*model.User, error)
	GetByUsername(ctx context.Context, username string) (*model.User, error)
	// GetByExternalID looks up the account linked to an external identity
	// hash. apperror.ErrNotFound means the identity has never been seen —
	// the caller routes to the claim-a-username step.
	GetByExternalID(ctx context.Context, externalIDHash string) (*model.User, error)
	// SetAvatarPath backfills the avatar reference after the avatar store
	// publishes the generated image. The only permitted mutation of a user.
	SetAvatarPath(ctx context.Context, id, path string) error
}

// PostRepository is the content store: posts and their like sets.
type PostRepository interface {
	Create(ctx context.Context, post *model.Post) error
	GetByID(ctx context.Context, id int64) (*model.Post, error)
	List(ctx context.Context, sort model.SortKey) ([]model.Post, error)
	ListByAuthor(ctx context.Context, authorID string) ([]model.Post, error)
	// Delete removes a post and its likes. apperror.ErrNotFound if no row
	// was removed.
	Delete(ctx context.Context, id int64) error
	// ToggleLike flips userID's membership in the post's like set inside a
	// single transaction and returns the new state (true = now liked).
	// apperror.ErrNotFound if the post doesn't exist.
	ToggleLike(ctx context.Context, postID int64, userID string) (bool, error)
}
