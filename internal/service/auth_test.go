package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"testing"

	"golang.org/x/crypto/bcrypt"

	"github.com/sakif/microblog/internal/apperror"
	"github.com/sakif/microblog/internal/auth"
	"github.com/sakif/microblog/internal/model"
)

// =========================================================================
// MOCKS
// =========================================================================
//
// Hand-written in-memory fakes of the repository and verifier interfaces.
// The service doesn't know or care which implementation it gets — that's
// the point of programming to interfaces.

type mockUserRepo struct {
	users  map[string]*model.User // keyed by id
	nextID int
}

func newMockUserRepo() *mockUserRepo {
	return &mockUserRepo{users: make(map[string]*model.User)}
}

func (m *mockUserRepo) Create(_ context.Context, user *model.User) error {
	for _, u := range m.users {
		if u.Username == user.Username {
			return apperror.DuplicateUsername(user.Username)
		}
	}
	m.nextID++
	user.ID = fmt.Sprintf("mock-%d", m.nextID)
	stored := *user
	m.users[user.ID] = &stored
	return nil
}

func (m *mockUserRepo) GetByID(_ context.Context, id string) (*model.User, error) {
	if u, ok := m.users[id]; ok {
		copied := *u
		return &copied, nil
	}
	return nil, apperror.NotFound("user", id)
}

func (m *mockUserRepo) GetByUsername(_ context.Context, username string) (*model.User, error) {
	for _, u := range m.users {
		if u.Username == username {
			copied := *u
			return &copied, nil
		}
	}
	return nil, apperror.NotFound("user", username)
}

func (m *mockUserRepo) GetByExternalID(_ context.Context, hash string) (*model.User, error) {
	for _, u := range m.users {
		if u.ExternalIDHash == hash && hash != "" {
			copied := *u
			return &copied, nil
		}
	}
	return nil, apperror.NotFound("user", hash)
}

func (m *mockUserRepo) SetAvatarPath(_ context.Context, id, path string) error {
	u, ok := m.users[id]
	if !ok {
		return apperror.NotFound("user", id)
	}
	u.AvatarPath = path
	return nil
}

// mockVerifier returns a fixed identity hash (or error) for any code.
type mockVerifier struct {
	hash string
	err  error
}

func (m *mockVerifier) AuthURL(state string) string { return "https://example.test/auth?" + state }

func (m *mockVerifier) VerifyExternalIdentity(context.Context, string) (string, error) {
	if m.err != nil {
		return "", m.err
	}
	return m.hash, nil
}

// =========================================================================
// TEST HELPERS
// =========================================================================

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func newTestAuthService(t *testing.T, verifier auth.IdentityVerifier) (*AuthService, *mockUserRepo) {
	t.Helper()
	tokens, err := auth.NewTokenService("test-secret-at-least-16-chars!!")
	if err != nil {
		t.Fatalf("NewTokenService: %v", err)
	}
	users := newMockUserRepo()
	svc := NewAuthService(users, tokens, auth.NewPasswordServiceForTest(bcrypt.MinCost), verifier, testLogger())
	return svc, users
}

// =========================================================================
// LOCAL REGISTRATION TESTS
// =========================================================================

func TestRegisterLocal(t *testing.T) {
	svc, _ := newTestAuthService(t, &mockVerifier{})

	user, err := svc.RegisterLocal(context.Background(), "alice", "hunter2hunter2")
	if err != nil {
		t.Fatalf("RegisterLocal() error = %v", err)
	}

	if user.ID == "" {
		t.Error("RegisterLocal() did not assign an ID")
	}
	if user.PasswordHash == "" || user.PasswordHash == "hunter2hunter2" {
		t.Error("RegisterLocal() stored the password unhashed")
	}
}

func TestRegisterLocal_DuplicateUsername(t *testing.T) {
	svc, _ := newTestAuthService(t, &mockVerifier{})

	if _, err := svc.RegisterLocal(context.Background(), "alice", "hunter2hunter2"); err != nil {
		t.Fatalf("first RegisterLocal() error = %v", err)
	}

	_, err := svc.RegisterLocal(context.Background(), "alice", "other-password")
	if !errors.Is(err, apperror.ErrConflict) {
		t.Errorf("second RegisterLocal() error = %v, want ErrConflict", err)
	}
}

func TestRegisterLocal_Validation(t *testing.T) {
	svc, _ := newTestAuthService(t, &mockVerifier{})

	tests := []struct {
		name     string
		username string
		password string
	}{
		{"empty username", "", "hunter2hunter2"},
		{"whitespace username", "   ", "hunter2hunter2"},
		{"overlong username", "this-username-is-way-past-thirty-characters", "hunter2hunter2"},
		{"short password", "alice", "short"},
		// A username becomes a URL segment and an avatar filename, so
		// path-hostile characters must be rejected at the door.
		{"slash in username", "alice/bob", "hunter2hunter2"},
		{"dot segments", "..", "hunter2hunter2"},
		{"percent escape", "alice%2F", "hunter2hunter2"},
		{"interior space", "alice smith", "hunter2hunter2"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.RegisterLocal(context.Background(), tt.username, tt.password)
			if !errors.Is(err, apperror.ErrValidation) {
				t.Errorf("RegisterLocal() error = %v, want ErrValidation", err)
			}
		})
	}
}

// =========================================================================
// LOCAL LOGIN TESTS
// =========================================================================

func TestLoginLocal(t *testing.T) {
	svc, _ := newTestAuthService(t, &mockVerifier{})

	registered, err := svc.RegisterLocal(context.Background(), "alice", "hunter2hunter2")
	if err != nil {
		t.Fatalf("RegisterLocal() error = %v", err)
	}

	result, err := svc.LoginLocal(context.Background(), "alice", "hunter2hunter2")
	if err != nil {
		t.Fatalf("LoginLocal() error = %v", err)
	}
	if result.User.ID != registered.ID {
		t.Errorf("logged-in user ID = %s, want %s", result.User.ID, registered.ID)
	}
	if result.Token == "" {
		t.Error("LoginLocal() did not issue a token")
	}
}

func TestLoginLocal_UnknownUserAndWrongPasswordLookAlike(t *testing.T) {
	// Username enumeration defence: the two failures must be
	// indistinguishable to the caller.
	svc, _ := newTestAuthService(t, &mockVerifier{})
	if _, err := svc.RegisterLocal(context.Background(), "alice", "hunter2hunter2"); err != nil {
		t.Fatalf("RegisterLocal() error = %v", err)
	}

	_, errUnknown := svc.LoginLocal(context.Background(), "nobody", "whatever1")
	_, errWrong := svc.LoginLocal(context.Background(), "alice", "wrong-password")

	for name, err := range map[string]error{"unknown user": errUnknown, "wrong password": errWrong} {
		if !errors.Is(err, apperror.ErrUnauthenticated) {
			t.Errorf("%s: error = %v, want ErrUnauthenticated", name, err)
		}
	}
	if errUnknown.Error() != errWrong.Error() {
		t.Errorf("failure messages differ: %q vs %q — enumeration leak", errUnknown, errWrong)
	}
}

func TestLoginLocal_OAuthAccountHasNoPassword(t *testing.T) {
	// An account registered via Google has an empty password hash; no
	// password may ever log it in locally.
	verifier := &mockVerifier{hash: "google-hash"}
	svc, _ := newTestAuthService(t, verifier)

	if _, err := svc.LoginExternal(context.Background(), "code"); err != nil {
		t.Fatalf("LoginExternal() error = %v", err)
	}
	session := model.Session{State: model.PendingRegistration, PendingIdentity: "google-hash"}
	if _, err := svc.ClaimUsername(context.Background(), session, "carol"); err != nil {
		t.Fatalf("ClaimUsername() error = %v", err)
	}

	_, err := svc.LoginLocal(context.Background(), "carol", "")
	if !errors.Is(err, apperror.ErrUnauthenticated) {
		t.Errorf("LoginLocal() against OAuth account error = %v, want ErrUnauthenticated", err)
	}
}

// =========================================================================
// EXTERNAL LOGIN TESTS
// =========================================================================

func TestLoginExternal_UnknownIdentityIsPending(t *testing.T) {
	svc, _ := newTestAuthService(t, &mockVerifier{hash: "never-seen"})

	result, err := svc.LoginExternal(context.Background(), "code")
	if err != nil {
		t.Fatalf("LoginExternal() error = %v", err)
	}

	if !result.Pending {
		t.Fatal("LoginExternal() with an unseen identity should be Pending")
	}
	if result.User != nil {
		t.Error("pending result should carry no user")
	}
	if result.Token == "" {
		t.Error("pending result should carry a pending token")
	}
}

func TestLoginExternal_KnownIdentityLogsIn(t *testing.T) {
	svc, users := newTestAuthService(t, &mockVerifier{hash: "known-hash"})

	existing := &model.User{Username: "carol", ExternalIDHash: "known-hash"}
	if err := users.Create(context.Background(), existing); err != nil {
		t.Fatalf("seeding user: %v", err)
	}

	result, err := svc.LoginExternal(context.Background(), "code")
	if err != nil {
		t.Fatalf("LoginExternal() error = %v", err)
	}

	if result.Pending {
		t.Fatal("LoginExternal() with a known identity should not be Pending")
	}
	if result.User == nil || result.User.Username != "carol" {
		t.Errorf("logged-in user = %+v, want carol", result.User)
	}
}

func TestLoginExternal_VerifierFailure(t *testing.T) {
	// ExternalAuthFailure propagates; no token of any kind is issued, so
	// the caller's session state cannot be half-updated.
	svc, _ := newTestAuthService(t, &mockVerifier{err: apperror.ExternalAuthFailed(errors.New("exchange rejected"))})

	result, err := svc.LoginExternal(context.Background(), "bad-code")
	if !errors.Is(err, apperror.ErrExternalAuth) {
		t.Errorf("LoginExternal() error = %v, want ErrExternalAuth", err)
	}
	if result != nil {
		t.Errorf("LoginExternal() result = %+v, want nil on failure", result)
	}
}

// =========================================================================
// USERNAME CLAIM TESTS
// =========================================================================

func TestClaimUsername(t *testing.T) {
	svc, users := newTestAuthService(t, &mockVerifier{})

	session := model.Session{State: model.PendingRegistration, PendingIdentity: "pending-hash"}
	result, err := svc.ClaimUsername(context.Background(), session, "dave")
	if err != nil {
		t.Fatalf("ClaimUsername() error = %v", err)
	}

	if result.Token == "" {
		t.Error("ClaimUsername() did not issue a login token")
	}
	if result.User.ExternalIDHash != "pending-hash" {
		t.Errorf("ExternalIDHash = %q, want %q", result.User.ExternalIDHash, "pending-hash")
	}

	// The account is now findable by its external identity
	if _, err := users.GetByExternalID(context.Background(), "pending-hash"); err != nil {
		t.Errorf("GetByExternalID() after claim error = %v", err)
	}
}

func TestClaimUsername_Collision(t *testing.T) {
	// A colliding claim surfaces DuplicateUsername; the caller stays
	// pending and may retry with another name.
	svc, _ := newTestAuthService(t, &mockVerifier{})
	if _, err := svc.RegisterLocal(context.Background(), "alice", "hunter2hunter2"); err != nil {
		t.Fatalf("RegisterLocal() error = %v", err)
	}

	session := model.Session{State: model.PendingRegistration, PendingIdentity: "pending-hash"}
	_, err := svc.ClaimUsername(context.Background(), session, "alice")
	if !errors.Is(err, apperror.ErrConflict) {
		t.Fatalf("ClaimUsername(alice) error = %v, want ErrConflict", err)
	}

	// Retry with a free name succeeds
	if _, err := svc.ClaimUsername(context.Background(), session, "alice2"); err != nil {
		t.Errorf("retry ClaimUsername(alice2) error = %v", err)
	}
}

func TestClaimUsername_RequiresPendingSession(t *testing.T) {
	svc, _ := newTestAuthService(t, &mockVerifier{})

	for name, session := range map[string]model.Session{
		"anonymous":     {State: model.Anonymous},
		"authenticated": {State: model.Authenticated, User: &model.User{ID: "u1"}},
	} {
		if _, err := svc.ClaimUsername(context.Background(), session, "eve"); !errors.Is(err, apperror.ErrUnauthenticated) {
			t.Errorf("%s session: ClaimUsername() error = %v, want ErrUnauthenticated", name, err)
		}
	}
}
