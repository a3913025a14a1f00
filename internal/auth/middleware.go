package auth

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/sakif/microblog/internal/apperror"
	"github.com/sakif/microblog/internal/model"
	"github.com/sakif/microblog/internal/repository"
)

// SessionCookie is the name of the HttpOnly cookie carrying the signed
// session token.
const SessionCookie = "session"

// contextKey is an unexported type used for context keys in this package.
//
// WHY A CUSTOM TYPE FOR CONTEXT KEYS?
// context.WithValue uses any as the key type. If you use a plain string,
// ANY package that knows the string can read or shadow your value. A
// package-private type means only this package can create the key, so only
// this package can write session values into the context.
type contextKey string

const sessionKey contextKey = "session"

// ResolveSession is the middleware that turns the inbound cookie into an
// immutable model.Session, ONCE, at request entry. Every route runs it.
//
// RESOLUTION RULES:
//   - no cookie / invalid / expired token → Anonymous
//   - token with a pending identity      → PendingRegistration
//   - token with a user id               → Authenticated, with the user
//     record loaded and cached on the session
//
// The Authenticated case enforces the session invariant: a token whose
// user id no longer resolves to an existing user downgrades to Anonymous
// rather than producing a logged-in session with no user behind it.
func ResolveSession(tokens *TokenService, users repository.UserRepository, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			session := resolve(r, tokens, users, logger)
			ctx := context.WithValue(r.Context(), sessionKey, session)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func resolve(r *http.Request, tokens *TokenService, users repository.UserRepository, logger *slog.Logger) model.Session {
	cookie, err := r.Cookie(SessionCookie)
	if err != nil {
		// http.ErrNoCookie — not an error, just anonymous
		return model.Session{State: model.Anonymous}
	}

	info, err := tokens.Validate(cookie.Value)
	if err != nil {
		// Expired or tampered cookie. Treat as anonymous; the stale cookie
		// gets overwritten on the next login.
		return model.Session{State: model.Anonymous}
	}

	if info.PendingIdentity != "" {
		return model.Session{
			State:           model.PendingRegistration,
			PendingIdentity: info.PendingIdentity,
		}
	}

	user, err := users.GetByID(r.Context(), info.UserID)
	if err != nil {
		if !errors.Is(err, apperror.ErrNotFound) {
			// Store failure: log it, but a broken session lookup must not
			// 500 a public page. The request proceeds anonymously.
			logger.Error("session user lookup failed",
				slog.String("userID", info.UserID),
				slog.String("error", err.Error()),
			)
		}
		return model.Session{State: model.Anonymous}
	}

	return model.Session{
		State: model.Authenticated,
		User:  user,
	}
}

// SessionFromContext retrieves the resolved session. Outside ResolveSession
// (tests constructing bare requests) it returns an Anonymous session.
func SessionFromContext(ctx context.Context) model.Session {
	if s, ok := ctx.Value(sessionKey).(model.Session); ok {
		return s
	}
	return model.Session{State: model.Anonymous}
}

// WithSession returns a context carrying the given session. Used by tests
// to exercise handlers without running the middleware.
func WithSession(ctx context.Context, s model.Session) context.Context {
	return context.WithValue(ctx, sessionKey, s)
}

// RequireAuth guards page routes that need a logged-in user. Browsers get
// redirected to /login — the "hard" auth failure. API-style routes do NOT
// use this; they soft-fail with a structured response instead.
func RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !SessionFromContext(r.Context()).LoggedIn() {
			http.Redirect(w, r, "/login", http.StatusSeeOther)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// SetSessionCookie installs a freshly issued session token.
//
// HttpOnly = JavaScript cannot read this cookie (XSS protection).
// SameSite=Lax = sent on top-level navigations but not cross-site POSTs.
// Secure should be true in production (HTTPS only); false for local dev.
func SetSessionCookie(w http.ResponseWriter, token string, maxAge int) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    token,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

// ClearSessionCookie logs the browser out: MaxAge -1 tells it to delete
// the cookie immediately.
func ClearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}
