package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/microblog/internal/apperror"
	"github.com/sakif/microblog/internal/auth"
	"github.com/sakif/microblog/internal/model"
	"github.com/sakif/microblog/internal/service"
)

// PostHandler serves the post pages and the fetch-driven post endpoints.
//
// TWO RESPONSE SURFACES:
// The home, post-detail and profile routes render HTML. The like and
// delete routes answer JSON because the frontend calls them with fetch()
// and updates the page in place. Mixing redirects into fetch responses
// just makes the frontend chase a body it can't use.
type PostHandler struct {
	posts    *service.PostService
	renderer *Renderer
	logger   *slog.Logger
}

// NewPostHandler creates a PostHandler.
func NewPostHandler(posts *service.PostService, renderer *Renderer, logger *slog.Logger) *PostHandler {
	return &PostHandler{
		posts:    posts,
		renderer: renderer,
		logger:   logger,
	}
}

// HandleHome renders the public feed.
//
// HTTP: GET /?sort=recency|popularity
//
// The page is public: anonymous visitors browse, logged-in users also get
// the new-post form and live like buttons. An unknown sort value falls
// back to recency rather than erroring — it's a display knob, not input.
func (h *PostHandler) HandleHome(w http.ResponseWriter, r *http.Request) {
	session := auth.SessionFromContext(r.Context())
	sort := model.ParseSortKey(r.URL.Query().Get("sort"))

	posts, err := h.posts.ListHome(r.Context(), sort)
	if err != nil {
		h.renderer.renderError(w, http.StatusInternalServerError, session, "Could not load posts.")
		return
	}

	h.renderer.render(w, http.StatusOK, "home.html", pageData{
		Title:   "Home",
		Session: session,
		View: map[string]interface{}{
			"Posts": posts,
			"Sort":  string(sort),
		},
	})
}

// HandleShowPost renders a single post.
//
// HTTP: GET /post/{id}
func (h *PostHandler) HandleShowPost(w http.ResponseWriter, r *http.Request) {
	session := auth.SessionFromContext(r.Context())

	id, err := parsePostID(r)
	if err != nil {
		h.renderer.renderError(w, http.StatusNotFound, session, "Post not found.")
		return
	}

	post, err := h.posts.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			h.renderer.renderError(w, http.StatusNotFound, session, "Post not found.")
			return
		}
		h.renderer.renderError(w, http.StatusInternalServerError, session, "Could not load the post.")
		return
	}

	h.renderer.render(w, http.StatusOK, "post.html", pageData{
		Title:   post.Title,
		Session: session,
		View: map[string]interface{}{
			"Post":  post,
			"Liked": session.LoggedIn() && post.LikedBy(session.UserID()),
		},
	})
}

// HandleCreatePost saves a new post and returns to the feed.
//
// HTTP: POST /posts (form fields: title, content)
// Auth: required (RequireAuth middleware redirects anonymous callers)
func (h *PostHandler) HandleCreatePost(w http.ResponseWriter, r *http.Request) {
	session := auth.SessionFromContext(r.Context())

	if err := r.ParseForm(); err != nil {
		h.renderer.renderError(w, http.StatusBadRequest, session, "Invalid form submission.")
		return
	}

	_, err := h.posts.Create(r.Context(), session, r.PostFormValue("title"), r.PostFormValue("content"))
	if err != nil {
		switch {
		case errors.Is(err, apperror.ErrUnauthenticated):
			http.Redirect(w, r, "/login", http.StatusSeeOther)
		case errors.Is(err, apperror.ErrValidation):
			h.renderer.renderError(w, http.StatusBadRequest, session, validationMessage(err))
		default:
			h.renderer.renderError(w, http.StatusInternalServerError, session, "Could not save the post.")
		}
		return
	}

	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// HandleLike toggles the caller's like on a post.
//
// HTTP: POST /like/{id} → {"success":true,"liked":...,"likeCount":...}
//
// SOFT AUTH: an anonymous caller gets 200 with {"success":false}. The
// like button is fetch-driven; see PostService.ToggleLike for why this
// endpoint never redirects.
func (h *PostHandler) HandleLike(w http.ResponseWriter, r *http.Request) {
	session := auth.SessionFromContext(r.Context())

	id, err := parsePostID(r)
	if err != nil {
		writeError(w, apperror.NotFound("post", chi.URLParam(r, "id")))
		return
	}

	result, err := h.posts.ToggleLike(r.Context(), session, id)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// HandleDelete removes one of the caller's own posts.
//
// HTTP: POST /delete/{id} → {"success":true}
// Auth: required; only the author may delete (403 otherwise)
func (h *PostHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	session := auth.SessionFromContext(r.Context())

	id, err := parsePostID(r)
	if err != nil {
		writeError(w, apperror.NotFound("post", chi.URLParam(r, "id")))
		return
	}

	if err := h.posts.Delete(r.Context(), session, id); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// HandleProfile renders the logged-in user's profile with their posts.
//
// HTTP: GET /profile
// Auth: required (RequireAuth middleware redirects anonymous callers)
func (h *PostHandler) HandleProfile(w http.ResponseWriter, r *http.Request) {
	session := auth.SessionFromContext(r.Context())

	posts, err := h.posts.Profile(r.Context(), session)
	if err != nil {
		if errors.Is(err, apperror.ErrUnauthenticated) {
			http.Redirect(w, r, "/login", http.StatusSeeOther)
			return
		}
		h.renderer.renderError(w, http.StatusInternalServerError, session, "Could not load your posts.")
		return
	}

	h.renderer.render(w, http.StatusOK, "profile.html", pageData{
		Title:   session.User.Username,
		Session: session,
		View: map[string]interface{}{
			"User":  session.User,
			"Posts": posts,
		},
	})
}

// HandleErrorPage renders the generic error page.
//
// HTTP: GET /error
func (h *PostHandler) HandleErrorPage(w http.ResponseWriter, r *http.Request) {
	session := auth.SessionFromContext(r.Context())
	h.renderer.renderError(w, http.StatusOK, session, "Something went wrong.")
}

// parsePostID reads the {id} path parameter as a post id.
func parsePostID(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
}

// validationMessage extracts the human-readable message from a validation
// error for display on the error page.
func validationMessage(err error) string {
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	return "Invalid input."
}
