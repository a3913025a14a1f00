package handler_test

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/microblog/internal/auth"
	"github.com/sakif/microblog/internal/handler"
	"github.com/sakif/microblog/internal/model"
	"github.com/sakif/microblog/internal/repository/sqlite"
	"github.com/sakif/microblog/internal/service"
)

// likeTestEnv wires the like/delete endpoints against a real in-memory
// database. The renderer is nil on purpose: these endpoints answer JSON
// and must never reach for a template.
type likeTestEnv struct {
	router *chi.Mux
	db     *sqlite.DB
	alice  *model.User
	postID int64
}

func newLikeTestEnv(t *testing.T) *likeTestEnv {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))

	db, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	alice := &model.User{Username: "alice"}
	require.NoError(t, db.Users().Create(context.Background(), alice))

	post := &model.Post{Title: "Hello", Content: "World", AuthorID: alice.ID}
	require.NoError(t, db.Posts().Create(context.Background(), post))

	h := handler.NewPostHandler(service.NewPostService(db.Posts(), logger), nil, logger)

	r := chi.NewRouter()
	r.Post("/like/{id}", h.HandleLike)
	r.Post("/delete/{id}", h.HandleDelete)

	return &likeTestEnv{router: r, db: db, alice: alice, postID: post.ID}
}

// do sends a request through the router with the given session attached,
// the way the session middleware would.
func (env *likeTestEnv) do(t *testing.T, method, target string, session model.Session) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, nil)
	req = req.WithContext(auth.WithSession(req.Context(), session))
	rr := httptest.NewRecorder()
	env.router.ServeHTTP(rr, req)
	return rr
}

func TestHandleLike_AnonymousSoftFails(t *testing.T) {
	env := newLikeTestEnv(t)

	rr := env.do(t, http.MethodPost, "/like/1", model.Session{State: model.Anonymous})

	// Soft auth: 200 with success=false, never a redirect — the like
	// button's fetch() can't follow one.
	assert.Equal(t, http.StatusOK, rr.Code)

	var res service.LikeResult
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&res))
	assert.False(t, res.Success)
}

func TestHandleLike_Toggles(t *testing.T) {
	env := newLikeTestEnv(t)
	session := model.Session{State: model.Authenticated, User: env.alice}

	rr := env.do(t, http.MethodPost, "/like/1", session)
	assert.Equal(t, http.StatusOK, rr.Code)

	var res service.LikeResult
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&res))
	assert.True(t, res.Success)
	assert.True(t, res.Liked)
	assert.Equal(t, 1, res.LikeCount)

	rr = env.do(t, http.MethodPost, "/like/1", session)
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&res))
	assert.True(t, res.Success)
	assert.False(t, res.Liked)
	assert.Equal(t, 0, res.LikeCount)
}

func TestHandleLike_UnknownPost(t *testing.T) {
	env := newLikeTestEnv(t)
	session := model.Session{State: model.Authenticated, User: env.alice}

	rr := env.do(t, http.MethodPost, "/like/999", session)
	assert.Equal(t, http.StatusNotFound, rr.Code)

	var res handler.ErrorResponse
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&res))
	assert.Equal(t, "not_found", res.Error)
}

func TestHandleLike_GarbageID(t *testing.T) {
	env := newLikeTestEnv(t)
	session := model.Session{State: model.Authenticated, User: env.alice}

	rr := env.do(t, http.MethodPost, "/like/not-a-number", session)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestHandleDelete_OnlyAuthor(t *testing.T) {
	env := newLikeTestEnv(t)

	bob := &model.User{Username: "bob"}
	require.NoError(t, env.db.Users().Create(context.Background(), bob))

	rr := env.do(t, http.MethodPost, "/delete/1", model.Session{State: model.Authenticated, User: bob})
	assert.Equal(t, http.StatusForbidden, rr.Code)

	var res handler.ErrorResponse
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&res))
	assert.Equal(t, "forbidden", res.Error)
}

func TestHandleDelete_ByAuthor(t *testing.T) {
	env := newLikeTestEnv(t)

	rr := env.do(t, http.MethodPost, "/delete/1", model.Session{State: model.Authenticated, User: env.alice})
	assert.Equal(t, http.StatusOK, rr.Code)

	var res map[string]bool
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&res))
	assert.True(t, res["success"])
}

func TestHandleDelete_Anonymous(t *testing.T) {
	env := newLikeTestEnv(t)

	rr := env.do(t, http.MethodPost, "/delete/1", model.Session{State: model.Anonymous})
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}
