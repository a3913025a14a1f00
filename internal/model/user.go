// Package model defines the data structures used throughout the application.
package model

import "time"

// User represents a registered account.
//
// Accounts are created one of two ways:
//   - Local registration: the user picks a username and password.
//   - Google OAuth: Google verifies the identity, then the user claims a
//     username to finish registration.
//
// WHY ExternalIDHash AND NOT THE RAW GOOGLE SUBJECT ID?
// We never store the provider's raw subject identifier. The auth layer hands
// us a one-way SHA-256 hash of it, which is all we need: a stable, unique
// key to recognise a returning Google identity. If the database leaks, the
// hash cannot be turned back into the Google account it came from.
//
// WHY PasswordHash string (not *string)?
// OAuth-registered users have no password. We use the empty string as the
// zero value rather than a nullable pointer — simpler to work with, and an
// empty hash can never verify against any password.
//
// Username is unique (enforced by the database) and case-sensitive.
// AvatarPath starts empty and is backfilled once the avatar store publishes
// the generated image; it is the only field mutated after creation.
type User struct {
	ID             string    `json:"id"          db:"id"`
	Username       string    `json:"username"    db:"username"`
	ExternalIDHash string    `json:"-"           db:"external_id_hash"` // hashed Google subject id, "" for local accounts
	PasswordHash   string    `json:"-"           db:"password_hash"`    // bcrypt hash, "" for OAuth accounts
	AvatarPath     string    `json:"avatarPath"  db:"avatar_path"`      // on-disk path of the generated avatar, "" until first render
	MemberSince    time.Time `json:"memberSince" db:"member_since"`
}

// HasAvatar reports whether an avatar image has been generated and
// published for this user.
func (u *User) HasAvatar() bool {
	return u.AvatarPath != ""
}
