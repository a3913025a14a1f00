// Package service contains the business logic layer of the application.
//
// THE THREE-LAYER ARCHITECTURE:
//
//	Handler (HTTP layer)     → parses requests, writes responses
//	Service (Business layer) → validates, enforces rules, orchestrates
//	Repository (Data layer)  → reads/writes to the database
//
// Services accept primitives and session values, never *http.Request, and
// return domain errors (apperror), never HTTP status codes. The handlers
// translate both directions.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/sakif/microblog/internal/apperror"
	"github.com/sakif/microblog/internal/auth"
	"github.com/sakif/microblog/internal/model"
	"github.com/sakif/microblog/internal/repository"
)

// Validation constants for registration.
const (
	MaxUsernameLength = 30
	MinPasswordLength = 8
)

// AuthService orchestrates registration and login — local and external.
//
// DEPENDENCIES (injected via NewAuthService):
//   - users     repository.UserRepository → read/write user records
//   - tokens    *auth.TokenService        → issue session tokens
//   - passwords *auth.PasswordService     → bcrypt hashing for local accounts
//   - verifier  auth.IdentityVerifier     → the external-identity capability;
//     the service never sees OAuth codes' meaning, only the identity hash
type AuthService struct {
	users     repository.UserRepository
	tokens    *auth.TokenService
	passwords *auth.PasswordService
	verifier  auth.IdentityVerifier
	logger    *slog.Logger
}

// NewAuthService creates an AuthService with all required dependencies.
func NewAuthService(
	users repository.UserRepository,
	tokens *auth.TokenService,
	passwords *auth.PasswordService,
	verifier auth.IdentityVerifier,
	logger *slog.Logger,
) *AuthService {
	return &AuthService{
		users:     users,
		tokens:    tokens,
		passwords: passwords,
		verifier:  verifier,
		logger:    logger,
	}
}

// AuthResult bundles the user record and the freshly issued session token,
// so the handler can set the cookie and respond in one step.
type AuthResult struct {
	User  *model.User
	Token string
}

// ExternalLoginResult is what an OAuth callback resolves to: either a
// completed login (User+Token) or a pending registration (Pending true,
// Token carrying the identity hash, waiting for a username claim).
type ExternalLoginResult struct {
	Pending bool
	User    *model.User // nil when Pending
	Token   string      // login token, or pending token when Pending
}

// RegisterLocal creates a local account from a username and password.
//
// The duplicate-username check is atomic with the insert (the repository
// relies on the UNIQUE constraint), so concurrent registrations of the
// same name can't both succeed. Registration does NOT log the user in —
// the original product sends you to the login form, and we keep that.
func (s *AuthService) RegisterLocal(ctx context.Context, username, password string) (*model.User, error) {
	username = strings.TrimSpace(username)
	if err := validateUsername(username); err != nil {
		return nil, err
	}
	if len(password) < MinPasswordLength {
		return nil, apperror.ValidationFailed("password",
			fmt.Sprintf("password must be at least %d characters", MinPasswordLength))
	}

	hash, err := s.passwords.Hash(password)
	if err != nil {
		return nil, fmt.Errorf("service/auth: hashing password: %w", err)
	}

	user := &model.User{
		Username:     username,
		PasswordHash: hash,
	}
	if err := s.users.Create(ctx, user); err != nil {
		// DuplicateUsername passes through untouched — the handler shows
		// it on the registration form.
		return nil, err
	}

	s.logger.Info("user registered",
		slog.String("userID", user.ID),
		slog.String("username", user.Username),
	)

	return user, nil
}

// LoginLocal authenticates a username/password pair and issues a session
// token.
//
// Unknown username and wrong password produce the SAME error — telling an
// attacker which usernames exist is a classic enumeration leak.
func (s *AuthService) LoginLocal(ctx context.Context, username, password string) (*AuthResult, error) {
	invalid := &apperror.AppError{
		Err:     apperror.ErrUnauthenticated,
		Message: "invalid username or password",
	}

	user, err := s.users.GetByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, invalid
		}
		return nil, fmt.Errorf("service/auth: looking up %q: %w", username, err)
	}

	// OAuth-registered accounts have no password hash; Verify always fails
	// on "", which is exactly what we want — they must log in via Google.
	if err := s.passwords.Verify(user.PasswordHash, password); err != nil {
		return nil, invalid
	}

	token, err := s.tokens.GenerateLogin(user.ID)
	if err != nil {
		return nil, fmt.Errorf("service/auth: generating token for user %s: %w", user.ID, err)
	}

	s.logger.Info("user logged in",
		slog.String("userID", user.ID),
		slog.String("username", user.Username),
	)

	return &AuthResult{User: user, Token: token}, nil
}

// LoginExternal completes a Google OAuth callback.
//
// The verifier turns the authorization code into an identity hash; then:
//   - hash known   → Authenticated: issue a login token
//   - hash unknown → PendingRegistration: issue a pending token and route
//     the caller to the claim-a-username step
//
// A verifier failure (apperror.ErrExternalAuth) propagates without issuing
// any token — no partial login, the caller's session cookie is untouched.
func (s *AuthService) LoginExternal(ctx context.Context, code string) (*ExternalLoginResult, error) {
	identityHash, err := s.verifier.VerifyExternalIdentity(ctx, code)
	if err != nil {
		return nil, err
	}

	user, err := s.users.GetByExternalID(ctx, identityHash)
	if err != nil {
		if !errors.Is(err, apperror.ErrNotFound) {
			return nil, fmt.Errorf("service/auth: looking up external identity: %w", err)
		}

		// First contact with this identity: no account yet. Hand back a
		// pending token so the user can claim a username.
		token, err := s.tokens.GeneratePending(identityHash)
		if err != nil {
			return nil, fmt.Errorf("service/auth: generating pending token: %w", err)
		}

		s.logger.Info("external identity verified, awaiting username claim")
		return &ExternalLoginResult{Pending: true, Token: token}, nil
	}

	token, err := s.tokens.GenerateLogin(user.ID)
	if err != nil {
		return nil, fmt.Errorf("service/auth: generating token for user %s: %w", user.ID, err)
	}

	s.logger.Info("user logged in via external identity",
		slog.String("userID", user.ID),
		slog.String("username", user.Username),
	)

	return &ExternalLoginResult{User: user, Token: token}, nil
}

// ClaimUsername finishes an OAuth-initiated registration: the pending
// session's identity hash plus the chosen username become a full account,
// and the caller transitions straight to Authenticated.
//
// On DuplicateUsername the caller stays in PendingRegistration — the
// handler re-renders the claim form with the error, and the pending token
// remains valid for another attempt.
func (s *AuthService) ClaimUsername(ctx context.Context, session model.Session, username string) (*AuthResult, error) {
	if session.State != model.PendingRegistration || session.PendingIdentity == "" {
		return nil, apperror.Unauthenticated()
	}

	username = strings.TrimSpace(username)
	if err := validateUsername(username); err != nil {
		return nil, err
	}

	user := &model.User{
		Username:       username,
		ExternalIDHash: session.PendingIdentity,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}

	token, err := s.tokens.GenerateLogin(user.ID)
	if err != nil {
		return nil, fmt.Errorf("service/auth: generating token for user %s: %w", user.ID, err)
	}

	s.logger.Info("external identity claimed username",
		slog.String("userID", user.ID),
		slog.String("username", user.Username),
	)

	return &AuthResult{User: user, Token: token}, nil
}

// A username ends up as a URL path segment (/profile?user=..., /avatar/{username})
// and as the avatar's filename on disk, so the charset is locked down at
// registration: no slashes, dots, percent escapes, or whitespace can reach
// the router or the filesystem.
var usernamePattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

func validateUsername(username string) error {
	if username == "" {
		return apperror.ValidationFailed("username", "username is required")
	}
	if len(username) > MaxUsernameLength {
		return apperror.ValidationFailed("username",
			fmt.Sprintf("username must be %d characters or less", MaxUsernameLength))
	}
	if !usernamePattern.MatchString(username) {
		return apperror.ValidationFailed("username",
			"username may only contain letters, digits, '-' and '_'")
	}
	return nil
}
