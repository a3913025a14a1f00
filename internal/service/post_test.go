package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"testing"

	"github.com/sakif/microblog/internal/apperror"
	"github.com/sakif/microblog/internal/model"
)

// mockPostRepo keeps posts and like sets in memory. Ordering semantics
// mirror the real store closely enough for the service tests.
type mockPostRepo struct {
	posts  map[int64]*model.Post
	nextID int64
}

func newMockPostRepo() *mockPostRepo {
	return &mockPostRepo{posts: make(map[int64]*model.Post)}
}

func (m *mockPostRepo) Create(_ context.Context, post *model.Post) error {
	m.nextID++
	post.ID = m.nextID
	stored := *post
	m.posts[post.ID] = &stored
	return nil
}

func (m *mockPostRepo) GetByID(_ context.Context, id int64) (*model.Post, error) {
	p, ok := m.posts[id]
	if !ok {
		return nil, apperror.NotFound("post", fmt.Sprint(id))
	}
	copied := *p
	copied.Likes = append([]string(nil), p.Likes...)
	copied.LikeCount = len(p.Likes)
	return &copied, nil
}

func (m *mockPostRepo) List(_ context.Context, _ model.SortKey) ([]model.Post, error) {
	out := make([]model.Post, 0, len(m.posts))
	for _, p := range m.posts {
		copied := *p
		copied.LikeCount = len(p.Likes)
		out = append(out, copied)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (m *mockPostRepo) ListByAuthor(_ context.Context, authorID string) ([]model.Post, error) {
	out := make([]model.Post, 0)
	for _, p := range m.posts {
		if p.AuthorID == authorID {
			out = append(out, *p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *mockPostRepo) Delete(_ context.Context, id int64) error {
	if _, ok := m.posts[id]; !ok {
		return apperror.NotFound("post", fmt.Sprint(id))
	}
	delete(m.posts, id)
	return nil
}

func (m *mockPostRepo) ToggleLike(_ context.Context, postID int64, userID string) (bool, error) {
	p, ok := m.posts[postID]
	if !ok {
		return false, apperror.NotFound("post", fmt.Sprint(postID))
	}
	for i, id := range p.Likes {
		if id == userID {
			p.Likes = append(p.Likes[:i], p.Likes[i+1:]...)
			return false, nil
		}
	}
	p.Likes = append(p.Likes, userID)
	return true, nil
}

// =========================================================================
// TEST HELPERS
// =========================================================================

func newTestPostService(t *testing.T) (*PostService, *mockPostRepo) {
	t.Helper()
	repo := newMockPostRepo()
	return NewPostService(repo, testLogger()), repo
}

func authedSession(id, username string) model.Session {
	return model.Session{
		State: model.Authenticated,
		User:  &model.User{ID: id, Username: username},
	}
}

// =========================================================================
// CREATE TESTS
// =========================================================================

func TestPostCreate(t *testing.T) {
	svc, _ := newTestPostService(t)

	post, err := svc.Create(context.Background(), authedSession("u1", "alice"), "Hello", "First post")
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if post.ID == 0 {
		t.Error("Create() did not assign an ID")
	}
	if post.AuthorID != "u1" {
		t.Errorf("AuthorID = %q, want %q", post.AuthorID, "u1")
	}
}

func TestPostCreate_RequiresLogin(t *testing.T) {
	svc, _ := newTestPostService(t)

	_, err := svc.Create(context.Background(), model.Session{State: model.Anonymous}, "Hello", "body")
	if !errors.Is(err, apperror.ErrUnauthenticated) {
		t.Errorf("Create() as anonymous error = %v, want ErrUnauthenticated", err)
	}
}

func TestPostCreate_Validation(t *testing.T) {
	svc, _ := newTestPostService(t)
	session := authedSession("u1", "alice")

	tests := []struct {
		name    string
		title   string
		content string
	}{
		{"empty title", "", "body"},
		{"whitespace title", "   ", "body"},
		{"empty content", "Hello", ""},
		{"overlong title", strings.Repeat("x", MaxTitleLength+1), "body"},
		{"overlong content", "Hello", strings.Repeat("x", MaxContentLength+1)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Create(context.Background(), session, tt.title, tt.content)
			if !errors.Is(err, apperror.ErrValidation) {
				t.Errorf("Create() error = %v, want ErrValidation", err)
			}
		})
	}
}

func TestPostCreate_TrimsWhitespace(t *testing.T) {
	svc, _ := newTestPostService(t)

	post, err := svc.Create(context.Background(), authedSession("u1", "alice"), "  Hello  ", "  body  ")
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if post.Title != "Hello" || post.Content != "body" {
		t.Errorf("Create() stored %q/%q, want trimmed values", post.Title, post.Content)
	}
}

// =========================================================================
// LIKE TESTS
// =========================================================================

func TestToggleLike_SoftFailsAnonymous(t *testing.T) {
	// The one auth failure that is NOT an error: the fetch-driven like
	// button gets {success:false} instead of a redirect.
	svc, repo := newTestPostService(t)
	seedPost(t, repo, "u1", "alice")

	result, err := svc.ToggleLike(context.Background(), model.Session{State: model.Anonymous}, 1)
	if err != nil {
		t.Fatalf("ToggleLike() as anonymous error = %v, want nil", err)
	}
	if result.Success {
		t.Error("ToggleLike() as anonymous Success = true, want false")
	}
}

func TestToggleLike_Toggles(t *testing.T) {
	svc, repo := newTestPostService(t)
	seedPost(t, repo, "u1", "alice")
	bob := authedSession("u2", "bob")

	first, err := svc.ToggleLike(context.Background(), bob, 1)
	if err != nil {
		t.Fatalf("first ToggleLike() error = %v", err)
	}
	if !first.Success || !first.Liked || first.LikeCount != 1 {
		t.Errorf("first toggle = %+v, want success, liked, count 1", first)
	}

	second, err := svc.ToggleLike(context.Background(), bob, 1)
	if err != nil {
		t.Fatalf("second ToggleLike() error = %v", err)
	}
	if !second.Success || second.Liked || second.LikeCount != 0 {
		t.Errorf("second toggle = %+v, want success, unliked, count 0", second)
	}
}

func TestToggleLike_PostNotFound(t *testing.T) {
	svc, _ := newTestPostService(t)

	_, err := svc.ToggleLike(context.Background(), authedSession("u1", "alice"), 999)
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("ToggleLike() on missing post error = %v, want ErrNotFound", err)
	}
}

// =========================================================================
// DELETE TESTS
// =========================================================================

func TestPostDelete_ByAuthor(t *testing.T) {
	svc, repo := newTestPostService(t)
	seedPost(t, repo, "u1", "alice")

	if err := svc.Delete(context.Background(), authedSession("u1", "alice"), 1); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := svc.Get(context.Background(), 1); !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("Get() after delete error = %v, want ErrNotFound", err)
	}
}

func TestPostDelete_OnlyAuthor(t *testing.T) {
	svc, repo := newTestPostService(t)
	seedPost(t, repo, "u1", "alice")

	err := svc.Delete(context.Background(), authedSession("u2", "bob"), 1)
	if !errors.Is(err, apperror.ErrForbidden) {
		t.Fatalf("Delete() by non-author error = %v, want ErrForbidden", err)
	}

	// The post survived
	if _, err := svc.Get(context.Background(), 1); err != nil {
		t.Errorf("Get() after forbidden delete error = %v", err)
	}
}

func TestPostDelete_RequiresLogin(t *testing.T) {
	svc, repo := newTestPostService(t)
	seedPost(t, repo, "u1", "alice")

	err := svc.Delete(context.Background(), model.Session{State: model.Anonymous}, 1)
	if !errors.Is(err, apperror.ErrUnauthenticated) {
		t.Errorf("Delete() as anonymous error = %v, want ErrUnauthenticated", err)
	}
}

// =========================================================================
// PROFILE TESTS
// =========================================================================

func TestProfile_OwnPostsOnly(t *testing.T) {
	svc, repo := newTestPostService(t)
	seedPost(t, repo, "u1", "alice")
	seedPost(t, repo, "u2", "bob")
	seedPost(t, repo, "u1", "alice")

	posts, err := svc.Profile(context.Background(), authedSession("u1", "alice"))
	if err != nil {
		t.Fatalf("Profile() error = %v", err)
	}
	if len(posts) != 2 {
		t.Fatalf("Profile() returned %d posts, want 2", len(posts))
	}
	for _, p := range posts {
		if p.AuthorID != "u1" {
			t.Errorf("Profile() leaked post %d by %s", p.ID, p.AuthorID)
		}
	}
}

func TestProfile_RequiresLogin(t *testing.T) {
	svc, _ := newTestPostService(t)

	_, err := svc.Profile(context.Background(), model.Session{State: model.Anonymous})
	if !errors.Is(err, apperror.ErrUnauthenticated) {
		t.Errorf("Profile() as anonymous error = %v, want ErrUnauthenticated", err)
	}
}

func seedPost(t *testing.T, repo *mockPostRepo, authorID, authorUsername string) *model.Post {
	t.Helper()
	post := &model.Post{
		Title:          "Title",
		Content:        "Content",
		AuthorID:       authorID,
		AuthorUsername: authorUsername,
	}
	if err := repo.Create(context.Background(), post); err != nil {
		t.Fatalf("seeding post: %v", err)
	}
	return post
}
