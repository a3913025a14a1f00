package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"unicode/utf8"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/microblog/internal/apperror"
	"github.com/sakif/microblog/internal/avatar"
	"github.com/sakif/microblog/internal/repository"
)

// AvatarHandler serves per-user avatar images, generating them on first
// request.
type AvatarHandler struct {
	users  repository.UserRepository
	store  *avatar.Store
	logger *slog.Logger
}

// NewAvatarHandler creates an AvatarHandler.
func NewAvatarHandler(users repository.UserRepository, store *avatar.Store, logger *slog.Logger) *AvatarHandler {
	return &AvatarHandler{
		users:  users,
		store:  store,
		logger: logger,
	}
}

// HandleAvatar serves a user's avatar PNG.
//
// HTTP: GET /avatar/{username}
//
// LAZY GENERATION:
// The image is generated on the first request and written to disk; every
// later request (and every later deploy — the file survives restarts)
// serves the same bytes. An unknown username is a 404 — we never generate
// images for names that don't exist, or /avatar/ becomes a free
// image-generation endpoint.
func (h *AvatarHandler) HandleAvatar(w http.ResponseWriter, r *http.Request) {
	username := chi.URLParam(r, "username")

	user, err := h.users.GetByUsername(r.Context(), username)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			http.NotFound(w, r)
			return
		}
		h.logger.Error("avatar: user lookup failed",
			slog.String("username", username),
			slog.String("error", err.Error()),
		)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	initial, _ := utf8.DecodeRuneInString(user.Username)
	path, err := h.store.Ensure(user.Username, initial)
	if err != nil {
		h.logger.Error("avatar: generation failed",
			slog.String("username", username),
			slog.String("error", err.Error()),
		)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	// Backfill the stored path the first time we generate. Failure here
	// only costs us a Stat on the next request, so log and carry on.
	if !user.HasAvatar() {
		if err := h.users.SetAvatarPath(r.Context(), user.ID, path); err != nil {
			h.logger.Warn("avatar: could not record path",
				slog.String("username", username),
				slog.String("error", err.Error()),
			)
		}
	}

	w.Header().Set("Content-Type", "image/png")
	http.ServeFile(w, r, path)
}
