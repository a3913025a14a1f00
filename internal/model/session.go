package model

// SessionState is the authentication state a request resolves to.
//
// The three states form a small machine:
//
//	Anonymous ──(login / known Google identity)──→ Authenticated
//	Anonymous ──(unknown Google identity)─────────→ PendingRegistration
//	PendingRegistration ──(username claim)────────→ Authenticated
//	Authenticated ──(logout)──────────────────────→ Anonymous
//
// A PendingRegistration session means Google has verified the identity but
// no local username has been claimed yet; the only thing such a session may
// do is submit a username (or abandon).
type SessionState int

const (
	Anonymous SessionState = iota
	PendingRegistration
	Authenticated
)

// Session is the identity a single request runs under.
//
// DESIGN: IMMUTABLE PER REQUEST.
// The session middleware resolves the signed cookie ONCE at request entry
// into this value and stores it in the request context. Handlers read it;
// nothing mutates it mid-request. State changes (login, logout, claim)
// happen by issuing or clearing the cookie, which takes effect on the NEXT
// request. This avoids the ordering bugs that come with a mutable session
// bag shared across middleware and handlers.
//
// INVARIANT: State == Authenticated iff User is a non-nil, existing user
// record. The middleware enforces this by downgrading to Anonymous any
// token whose user no longer resolves in the store.
type Session struct {
	State SessionState

	// User is the cached account record for Authenticated sessions,
	// nil otherwise.
	User *User

	// PendingIdentity is the external identity hash carried by a
	// PendingRegistration session, "" otherwise.
	PendingIdentity string
}

// LoggedIn reports whether the session is bound to an existing user.
func (s Session) LoggedIn() bool {
	return s.State == Authenticated && s.User != nil
}

// UserID returns the bound user's ID, or "" for sessions that are not
// authenticated.
func (s Session) UserID() string {
	if s.User == nil {
		return ""
	}
	return s.User.ID
}
