// Package auth provides session tokens, password hashing, the Google
// OAuth verifier, and the middleware that resolves a request to a session.
//
// SESSION FLOW OVERVIEW:
// 1. A request arrives with (maybe) a "session" HttpOnly cookie
// 2. ResolveSession validates the JWT inside it and builds a model.Session:
//    Anonymous, PendingRegistration, or Authenticated
// 3. Handlers read the session from the request context — it never mutates
//    mid-request
// 4. Login/logout/claim handlers change state by setting or clearing the
//    cookie, which takes effect on the next request
//
// WHY JWT?
// JWT (JSON Web Token) is stateless — the server doesn't need a session
// table. Everything needed (user id or pending identity, expiry) is inside
// the signed token, and the HMAC signature means nobody can forge or tamper
// with it without the secret key. Issuing a fresh token on every login also
// gives us session rotation for free: the old cookie value simply stops
// being the one the browser sends.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Token lifetimes.
//
// A login session lasts a day — this is a blog, not a bank. The pending
// window is deliberately short: it only needs to cover the time between
// Google's callback and the user typing a username.
const (
	SessionTTL = 24 * time.Hour
	PendingTTL = 10 * time.Minute
)

// TokenService signs and validates session tokens.
// The same HMAC secret is used for both; at least 32 random bytes in
// production (JWT_SECRET=$(openssl rand -hex 32)).
type TokenService struct {
	secret []byte
}

// NewTokenService creates a TokenService with the given secret.
func NewTokenService(secret string) (*TokenService, error) {
	if len(secret) < 16 {
		return nil, errors.New("auth: JWT secret must be at least 16 characters")
	}
	return &TokenService{secret: []byte(secret)}, nil
}

// sessionClaims is the JWT payload.
//
// Two mutually exclusive shapes share one claim set:
//   - authenticated: "sub" holds the internal user id
//   - pending registration: "pid" holds the external identity hash and
//     "sub" is empty
type sessionClaims struct {
	jwt.RegisteredClaims
	PendingIdentity string `json:"pid,omitempty"`
}

// TokenInfo is what Validate extracts from a valid token. Exactly one of
// the two fields is non-empty.
type TokenInfo struct {
	UserID          string
	PendingIdentity string
}

// GenerateLogin creates a signed session token for an authenticated user.
// Called on every successful login — local, OAuth, or username claim — so
// each login rotates the session token.
func (s *TokenService) GenerateLogin(userID string) (string, error) {
	if userID == "" {
		return "", errors.New("auth: user ID must not be empty")
	}
	return s.sign(sessionClaims{
		RegisteredClaims: s.registered(userID, SessionTTL),
	})
}

// GeneratePending creates a short-lived token carrying a verified external
// identity hash that has no local account yet. The holder may do exactly
// one thing: claim a username.
func (s *TokenService) GeneratePending(identityHash string) (string, error) {
	if identityHash == "" {
		return "", errors.New("auth: identity hash must not be empty")
	}
	return s.sign(sessionClaims{
		RegisteredClaims: s.registered("", PendingTTL),
		PendingIdentity:  identityHash,
	})
}

func (s *TokenService) registered(subject string, ttl time.Duration) jwt.RegisteredClaims {
	now := time.Now()
	return jwt.RegisteredClaims{
		Subject:   subject,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		Issuer:    "microblog",
	}
}

func (s *TokenService) sign(c sessionClaims) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, c)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("auth: signing token: %w", err)
	}
	return signed, nil
}

// Validate parses and verifies a session token string.
//
// VALIDATION CHECKS (performed by the jwt library):
//   - Signature is valid (wasn't tampered with)
//   - Token is not expired
//   - Issuer matches "microblog" (prevents tokens from other apps)
//   - Algorithm is HS256 (prevents algorithm confusion attacks, where an
//     attacker submits a token signed with "none")
func (s *TokenService) Validate(tokenStr string) (TokenInfo, error) {
	token, err := jwt.ParseWithClaims(
		tokenStr,
		&sessionClaims{},
		func(token *jwt.Token) (any, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("auth: unexpected signing method: %v", token.Header["alg"])
			}
			return s.secret, nil
		},
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithIssuer("microblog"),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return TokenInfo{}, fmt.Errorf("auth: token expired")
		}
		return TokenInfo{}, fmt.Errorf("auth: invalid token: %w", err)
	}

	c, ok := token.Claims.(*sessionClaims)
	if !ok || !token.Valid {
		return TokenInfo{}, fmt.Errorf("auth: invalid token claims")
	}

	info := TokenInfo{
		UserID:          c.Subject,
		PendingIdentity: c.PendingIdentity,
	}
	if info.UserID == "" && info.PendingIdentity == "" {
		return TokenInfo{}, fmt.Errorf("auth: token carries neither subject nor pending identity")
	}
	if info.UserID != "" && info.PendingIdentity != "" {
		return TokenInfo{}, fmt.Errorf("auth: token carries both subject and pending identity")
	}

	return info, nil
}
