package handler_test

import (
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/microblog/internal/auth"
	"github.com/sakif/microblog/internal/handler"
)

func TestHandleLogout(t *testing.T) {
	// Logout only touches the cookie jar, so the handler needs none of its
	// other dependencies. The feed is public — a fresh logout lands there,
	// not on the login form.
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
	h := handler.NewAuthHandler(nil, nil, nil, logger)

	req := httptest.NewRequest(http.MethodGet, "/logout", nil)
	rec := httptest.NewRecorder()
	h.HandleLogout(rec, req)

	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/", rec.Header().Get("Location"))

	var sessionCookie *http.Cookie
	for _, c := range rec.Result().Cookies() {
		if c.Name == auth.SessionCookie {
			sessionCookie = c
		}
	}
	require.NotNil(t, sessionCookie, "logout must rewrite the session cookie")
	assert.Empty(t, sessionCookie.Value)
	assert.Negative(t, sessionCookie.MaxAge, "cookie must be expired, not just emptied")
}
