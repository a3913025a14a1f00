package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/rs/xid"

	"github.com/sakif/microblog/internal/apperror"
	"github.com/sakif/microblog/internal/auth"
	"github.com/sakif/microblog/internal/model"
	"github.com/sakif/microblog/internal/service"
)

// AuthHandler manages registration, login (local and Google), the username
// claim step, and logout.
//
// HANDLER RESPONSIBILITIES:
//   - ShowLoginRegister    → render the combined login/register page
//   - HandleRegister       → create a local account, send to /login
//   - HandleLogin          → verify credentials, set the session cookie
//   - HandleGoogleLogin    → redirect the browser to Google's consent page
//   - HandleGoogleCallback → finish the OAuth flow (login or pending claim)
//   - ShowClaimUsername    → render the pick-a-username page
//   - HandleClaimUsername  → complete an OAuth registration
//   - HandleLogout         → clear the session cookie
type AuthHandler struct {
	auth     *service.AuthService
	verifier auth.IdentityVerifier
	renderer *Renderer
	logger   *slog.Logger
}

// NewAuthHandler creates an AuthHandler. All dependencies are injected here;
// the handler has no knowledge of how they're constructed.
func NewAuthHandler(
	authService *service.AuthService,
	verifier auth.IdentityVerifier,
	renderer *Renderer,
	logger *slog.Logger,
) *AuthHandler {
	return &AuthHandler{
		auth:     authService,
		verifier: verifier,
		renderer: renderer,
		logger:   logger,
	}
}

// ShowLoginRegister renders the combined login/register page.
//
// HTTP: GET /login and GET /register (one page, two forms)
//
// A failed form submit redirects back here with an error code in the query
// string; the template turns the code into a human message.
func (h *AuthHandler) ShowLoginRegister(w http.ResponseWriter, r *http.Request) {
	session := auth.SessionFromContext(r.Context())
	if session.LoggedIn() {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}

	h.renderer.render(w, http.StatusOK, "login.html", pageData{
		Title:   "Login or Register",
		Session: session,
		View: map[string]interface{}{
			"Error":      r.URL.Query().Get("error"),
			"Registered": r.URL.Query().Get("registered") != "",
		},
	})
}

// HandleRegister creates a local account.
//
// HTTP: POST /register (form fields: username, password)
//
// Registration does NOT log the user in; success redirects to /login so
// the new credentials get used once immediately.
func (h *AuthHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Redirect(w, r, "/register?error=invalid_form", http.StatusSeeOther)
		return
	}

	_, err := h.auth.RegisterLocal(r.Context(), r.PostFormValue("username"), r.PostFormValue("password"))
	if err != nil {
		http.Redirect(w, r, "/register?error="+registerErrorCode(err), http.StatusSeeOther)
		return
	}

	http.Redirect(w, r, "/login?registered=1", http.StatusSeeOther)
}

// HandleLogin verifies local credentials and starts a session.
//
// HTTP: POST /login (form fields: username, password)
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Redirect(w, r, "/login?error=invalid_form", http.StatusSeeOther)
		return
	}

	result, err := h.auth.LoginLocal(r.Context(), r.PostFormValue("username"), r.PostFormValue("password"))
	if err != nil {
		// Wrong password and unknown user land here with the same message;
		// the redirect target doesn't distinguish them either.
		http.Redirect(w, r, "/login?error=invalid_credentials", http.StatusSeeOther)
		return
	}

	auth.SetSessionCookie(w, result.Token, int(auth.SessionTTL.Seconds()))
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// HandleGoogleLogin redirects the user to Google's authorization page.
//
// HTTP: GET /auth/google/login
//
// CSRF PROTECTION VIA STATE:
// We generate a random state string and store it in a short-lived cookie.
// When Google calls back, HandleGoogleCallback verifies the state matches.
// This proves the callback was initiated by this server, not a CSRF attacker.
//
// The state cookie is:
//   - HttpOnly: JavaScript can't read it
//   - SameSite=Lax: not sent on cross-site POSTs (extra CSRF protection)
//   - 10-minute expiry: long enough for the user to approve, short enough to limit risk
func (h *AuthHandler) HandleGoogleLogin(w http.ResponseWriter, r *http.Request) {
	// Generate a random, unguessable state value
	state := xid.New().String()

	// Store it in a cookie so we can verify it on callback
	http.SetCookie(w, &http.Cookie{
		Name:     "oauth_state",
		Value:    state,
		Path:     "/",
		MaxAge:   600, // 10 minutes
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	// Redirect the browser to Google
	http.Redirect(w, r, h.verifier.AuthURL(state), http.StatusTemporaryRedirect)
}

// HandleGoogleCallback completes the OAuth login flow.
//
// HTTP: GET /auth/google/callback?code=xxx&state=yyy
//
// FLOW:
//  1. Validate the state parameter (CSRF check)
//  2. Hand the code to the service, which resolves it to an identity
//  3. Known identity → session cookie, redirect home
//     Unseen identity → pending cookie, redirect to the username claim page
func (h *AuthHandler) HandleGoogleCallback(w http.ResponseWriter, r *http.Request) {
	// --- Step 1: Validate CSRF state ---
	stateCookie, err := r.Cookie("oauth_state")
	if err != nil || stateCookie.Value == "" {
		h.logger.Warn("auth callback: missing state cookie")
		http.Error(w, "invalid OAuth state", http.StatusBadRequest)
		return
	}

	if r.URL.Query().Get("state") != stateCookie.Value {
		h.logger.Warn("auth callback: state mismatch",
			slog.String("expected", stateCookie.Value),
			slog.String("got", r.URL.Query().Get("state")),
		)
		http.Error(w, "invalid OAuth state", http.StatusBadRequest)
		return
	}

	// Clear the state cookie — it's single-use
	http.SetCookie(w, &http.Cookie{
		Name:   "oauth_state",
		Value:  "",
		Path:   "/",
		MaxAge: -1,
	})

	// Check if Google sent an error (user denied authorization)
	if errParam := r.URL.Query().Get("error"); errParam != "" {
		h.logger.Info("auth callback: user denied authorization",
			slog.String("error", errParam),
		)
		http.Redirect(w, r, "/login?error=auth_denied", http.StatusSeeOther)
		return
	}

	code := r.URL.Query().Get("code")
	if code == "" {
		http.Error(w, "missing OAuth code", http.StatusBadRequest)
		return
	}

	// --- Step 2: Resolve the code to a login or a pending registration ---
	result, err := h.auth.LoginExternal(r.Context(), code)
	if err != nil {
		h.logger.Error("auth callback: external login failed", slog.String("error", err.Error()))
		http.Redirect(w, r, "/login?error=auth_failed", http.StatusSeeOther)
		return
	}

	// --- Step 3: Set the matching cookie and route the browser ---
	if result.Pending {
		// The identity is verified but has no account yet. The pending
		// cookie is deliberately short-lived; the claim page finishes
		// the registration.
		auth.SetSessionCookie(w, result.Token, int(auth.PendingTTL.Seconds()))
		http.Redirect(w, r, "/register/username", http.StatusSeeOther)
		return
	}

	auth.SetSessionCookie(w, result.Token, int(auth.SessionTTL.Seconds()))
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// ShowClaimUsername renders the pick-a-username page for a pending
// OAuth registration.
//
// HTTP: GET /register/username
func (h *AuthHandler) ShowClaimUsername(w http.ResponseWriter, r *http.Request) {
	session := auth.SessionFromContext(r.Context())
	if session.State != model.PendingRegistration {
		// No verified identity to attach a username to — start over.
		http.Redirect(w, r, "/login", http.StatusSeeOther)
		return
	}

	h.renderer.render(w, http.StatusOK, "claim.html", pageData{
		Title:   "Choose a Username",
		Session: session,
		View: map[string]interface{}{
			"Error": r.URL.Query().Get("error"),
		},
	})
}

// HandleClaimUsername completes an OAuth registration by attaching a
// username to the pending identity.
//
// HTTP: POST /register/username (form field: username)
//
// On a username collision the pending cookie survives, so the user can
// retry with another name without a fresh round-trip to Google.
func (h *AuthHandler) HandleClaimUsername(w http.ResponseWriter, r *http.Request) {
	session := auth.SessionFromContext(r.Context())

	if err := r.ParseForm(); err != nil {
		http.Redirect(w, r, "/register/username?error=invalid_form", http.StatusSeeOther)
		return
	}

	result, err := h.auth.ClaimUsername(r.Context(), session, r.PostFormValue("username"))
	if err != nil {
		switch {
		case errors.Is(err, apperror.ErrUnauthenticated):
			http.Redirect(w, r, "/login", http.StatusSeeOther)
		default:
			http.Redirect(w, r, "/register/username?error="+registerErrorCode(err), http.StatusSeeOther)
		}
		return
	}

	auth.SetSessionCookie(w, result.Token, int(auth.SessionTTL.Seconds()))
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// HandleLogout clears the session cookie.
//
// HTTP: GET /logout
//
// Since we're stateless (JWT), "logout" just means deleting the client-side
// cookie. The token remains technically valid until it expires, but without
// the cookie the browser can't send it. The home feed is public, so the
// now-anonymous visitor lands back on it.
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	auth.ClearSessionCookie(w)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// registerErrorCode maps registration failures to the short codes the
// login and claim templates understand.
func registerErrorCode(err error) string {
	switch {
	case errors.Is(err, apperror.ErrConflict):
		return "username_taken"
	case errors.Is(err, apperror.ErrValidation):
		return "invalid_input"
	default:
		return "internal"
	}
}
