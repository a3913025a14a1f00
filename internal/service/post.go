package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sakif/microblog/internal/apperror"
	"github.com/sakif/microblog/internal/model"
	"github.com/sakif/microblog/internal/repository"
)

// Validation constants for posts.
const (
	MaxTitleLength   = 120
	MaxContentLength = 10000
)

// PostService handles business logic for posts and likes. Every operation
// takes the caller's resolved session — authorization decisions live here,
// not in the handlers.
type PostService struct {
	posts  repository.PostRepository
	logger *slog.Logger
}

// NewPostService creates a new PostService.
func NewPostService(posts repository.PostRepository, logger *slog.Logger) *PostService {
	return &PostService{
		posts:  posts,
		logger: logger,
	}
}

// Create validates and saves a new post on behalf of the session's user.
//
// HARD AUTH: an anonymous caller gets apperror.ErrUnauthenticated, which
// the page handler turns into a redirect to /login. Compare ToggleLike
// below, which deliberately soft-fails instead.
//
// The original product never validated title or content; we require both
// non-empty — an empty post is a submit-button accident, not content.
func (s *PostService) Create(ctx context.Context, session model.Session, title, content string) (*model.Post, error) {
	if !session.LoggedIn() {
		return nil, apperror.Unauthenticated()
	}

	title = strings.TrimSpace(title)
	content = strings.TrimSpace(content)

	if title == "" {
		return nil, apperror.ValidationFailed("title", "title is required")
	}
	if len(title) > MaxTitleLength {
		return nil, apperror.ValidationFailed("title",
			fmt.Sprintf("title must be %d characters or less", MaxTitleLength))
	}
	if content == "" {
		return nil, apperror.ValidationFailed("content", "content is required")
	}
	if len(content) > MaxContentLength {
		return nil, apperror.ValidationFailed("content",
			fmt.Sprintf("content must be %d characters or less", MaxContentLength))
	}

	post := &model.Post{
		Title:          title,
		Content:        content,
		AuthorID:       session.User.ID,
		AuthorUsername: session.User.Username,
	}
	if err := s.posts.Create(ctx, post); err != nil {
		s.logger.Error("failed to create post",
			slog.String("userID", session.User.ID),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("creating post: %w", err)
	}

	s.logger.Info("post created",
		slog.Int64("postID", post.ID),
		slog.String("author", post.AuthorUsername),
	)

	return post, nil
}

// LikeResult is the structured outcome of a like toggle. Success is false
// only for unauthenticated callers — the soft auth failure.
type LikeResult struct {
	Success   bool `json:"success"`
	Liked     bool `json:"liked"`
	LikeCount int  `json:"likeCount"`
}

// ToggleLike flips the session user's like on a post.
//
// SOFT AUTH — DELIBERATE ASYMMETRY:
// Unlike Create/Delete, an anonymous like returns {success:false} with NO
// error. The like button is fetch-driven; a redirect-to-login response
// would be swallowed by the frontend, so it gets a structured result it
// can act on instead. Preserve this asymmetry.
func (s *PostService) ToggleLike(ctx context.Context, session model.Session, postID int64) (LikeResult, error) {
	if !session.LoggedIn() {
		return LikeResult{Success: false}, nil
	}

	liked, err := s.posts.ToggleLike(ctx, postID, session.User.ID)
	if err != nil {
		// NotFound propagates as an error — a missing post is not a soft
		// failure, it's a 404.
		return LikeResult{}, err
	}

	// Re-read for the authoritative count; the toggle and this read are
	// not one atomic unit, but the count is display data, not state.
	post, err := s.posts.GetByID(ctx, postID)
	if err != nil {
		return LikeResult{}, err
	}

	return LikeResult{Success: true, Liked: liked, LikeCount: post.LikeCount}, nil
}

// Delete removes a post.
//
// OWNERSHIP: only the author may delete their post. The check compares
// user ids, not usernames — ids are the stable internal relation.
func (s *PostService) Delete(ctx context.Context, session model.Session, postID int64) error {
	if !session.LoggedIn() {
		return apperror.Unauthenticated()
	}

	post, err := s.posts.GetByID(ctx, postID)
	if err != nil {
		return err
	}

	if post.AuthorID != session.User.ID {
		return apperror.Forbidden("only the author can delete a post")
	}

	if err := s.posts.Delete(ctx, postID); err != nil {
		// A concurrent delete can race us here; NotFound at this point
		// still means the post is gone, which is what the caller wanted.
		if errors.Is(err, apperror.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("deleting post %d: %w", postID, err)
	}

	s.logger.Info("post deleted",
		slog.Int64("postID", postID),
		slog.String("userID", session.User.ID),
	)

	return nil
}

// ListHome returns the public home feed in the requested order, authors'
// avatar references included (the repository JOINs them in).
func (s *PostService) ListHome(ctx context.Context, sort model.SortKey) ([]model.Post, error) {
	posts, err := s.posts.List(ctx, sort)
	if err != nil {
		s.logger.Error("failed to list posts", slog.String("error", err.Error()))
		return nil, fmt.Errorf("listing posts: %w", err)
	}
	return posts, nil
}

// Get returns a single post with its like set loaded.
func (s *PostService) Get(ctx context.Context, postID int64) (*model.Post, error) {
	return s.posts.GetByID(ctx, postID)
}

// Profile returns the session user's own posts for the profile page.
func (s *PostService) Profile(ctx context.Context, session model.Session) ([]model.Post, error) {
	if !session.LoggedIn() {
		return nil, apperror.Unauthenticated()
	}

	posts, err := s.posts.ListByAuthor(ctx, session.User.ID)
	if err != nil {
		s.logger.Error("failed to list profile posts",
			slog.String("userID", session.User.ID),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("listing profile posts: %w", err)
	}
	return posts, nil
}
