package auth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"github.com/sakif/microblog/internal/apperror"
)

// IdentityVerifier is the capability the rest of the app uses for external
// login. The core never constructs provider-specific clients — the auth
// service sees only an opaque identity hash coming back from a code.
type IdentityVerifier interface {
	// AuthURL returns the provider URL to redirect the browser to for
	// authorization, bound to the given CSRF state.
	AuthURL(state string) string

	// VerifyExternalIdentity trades an authorization code for the one-way
	// hash of the provider's subject identifier. The raw subject id never
	// leaves this layer. Failures wrap apperror.ErrExternalAuth.
	VerifyExternalIdentity(ctx context.Context, code string) (string, error)
}

// googleUser is the slice of Google's userinfo response we care about.
// Google returns more fields; we only need the stable subject id.
type googleUser struct {
	ID string `json:"id"` // Google's subject identifier — stable, never changes
}

// GoogleProvider implements IdentityVerifier against Google's OAuth 2.0
// Authorization Code flow.
//
// OAUTH 2.0 AUTHORIZATION CODE FLOW:
// 1. We redirect the user to Google's authorization endpoint with our
//    ClientID and requested scopes.
// 2. The user approves (or denies) on Google's consent screen.
// 3. Google redirects back to our CallbackURL with a short-lived "code".
// 4. We exchange the code for an access token (server-to-server, using the
//    ClientSecret — the token never touches the browser).
// 5. We call the userinfo API to learn the subject id, then hash it.
type GoogleProvider struct {
	config *oauth2.Config
}

// compile-time check that GoogleProvider implements IdentityVerifier
var _ IdentityVerifier = (*GoogleProvider)(nil)

// NewGoogleProvider creates a GoogleProvider with the given credentials.
//
// ClientID and ClientSecret come from a Google Cloud OAuth client
// (console.cloud.google.com → Credentials → "OAuth client ID").
// callbackURL must exactly match an authorized redirect URI configured
// there, e.g. "http://localhost:8080/auth/google/callback".
//
// We request only the "userinfo.profile" scope — enough for the subject
// id, nothing else.
func NewGoogleProvider(clientID, clientSecret, callbackURL string) *GoogleProvider {
	return &GoogleProvider{
		config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  callbackURL,
			Scopes:       []string{"https://www.googleapis.com/auth/userinfo.profile"},
			Endpoint:     google.Endpoint, // pre-defined Google OAuth endpoints
		},
	}
}

// AuthURL returns the consent-screen URL bound to the CSRF state.
//
// The state is a random string stored in a cookie before redirecting; the
// callback handler verifies the returned state matches, which proves the
// flow was initiated by this server and not a CSRF attacker.
func (p *GoogleProvider) AuthURL(state string) string {
	return p.config.AuthCodeURL(state, oauth2.AccessTypeOnline)
}

// VerifyExternalIdentity completes the flow: code → access token →
// userinfo → hashed subject id.
//
// Every failure path returns apperror.ErrExternalAuth so the caller can
// surface "external authentication failed" without leaking provider
// details, and — critically — without touching session state.
func (p *GoogleProvider) VerifyExternalIdentity(ctx context.Context, code string) (string, error) {
	oauthToken, err := p.config.Exchange(ctx, code)
	if err != nil {
		return "", apperror.ExternalAuthFailed(fmt.Errorf("exchanging code: %w", err))
	}

	// oauth2.Config.Client returns an *http.Client that adds the
	// "Authorization: Bearer <token>" header to every request.
	client := p.config.Client(ctx, oauthToken)

	resp, err := client.Get("https://www.googleapis.com/oauth2/v2/userinfo")
	if err != nil {
		return "", apperror.ExternalAuthFailed(fmt.Errorf("calling userinfo: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", apperror.ExternalAuthFailed(fmt.Errorf("userinfo returned status %d", resp.StatusCode))
	}

	var gu googleUser
	if err := json.NewDecoder(resp.Body).Decode(&gu); err != nil {
		return "", apperror.ExternalAuthFailed(fmt.Errorf("decoding userinfo: %w", err))
	}
	if gu.ID == "" {
		return "", apperror.ExternalAuthFailed(fmt.Errorf("userinfo returned empty subject id"))
	}

	return HashExternalID(gu.ID), nil
}

// HashExternalID one-way hashes a provider subject identifier. The hash is
// the only form in which external identities are stored or compared.
func HashExternalID(subject string) string {
	sum := sha256.Sum256([]byte("google:" + subject))
	return hex.EncodeToString(sum[:])
}
