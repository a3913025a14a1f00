package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/xid"
	"github.com/sakif/microblog/internal/apperror"
	"github.com/sakif/microblog/internal/model"
	"github.com/sakif/microblog/internal/repository"
)

// Users is the sqlite-backed user repository. Obtain one from DB.Users();
// it shares the DB's connection pool.
type Users struct {
	conn *sql.DB
}

// Users returns the user repository view of this database.
func (db *DB) Users() *Users {
	return &Users{conn: db.conn}
}

// compile-time check that *Users implements repository.UserRepository
var _ repository.UserRepository = (*Users)(nil)

// Create inserts a new user.
//
// ATOMIC DUPLICATE CHECK:
// We deliberately do NOT SELECT-then-INSERT. That read-then-write sequence
// has a race: two concurrent registrations of the same username could both
// pass the SELECT and both INSERT. Instead we INSERT unconditionally and
// let the UNIQUE constraint on username decide — one statement, one winner.
// The loser's constraint error is translated to apperror.DuplicateUsername.
//
// ID GENERATION WITH xid:
// xid generates 20-char, URL-safe, creation-time-sortable IDs, e.g.
// "cv37rs3pp9olc6atsptg". The caller's struct is modified in place —
// after Create(), user.ID and user.MemberSince are populated.
func (r *Users) Create(ctx context.Context, user *model.User) error {
	user.ID = xid.New().String()
	if user.MemberSince.IsZero() {
		user.MemberSince = time.Now()
	}

	// external_id_hash is nullable: a NULL never collides with another NULL
	// under UNIQUE, so local accounts (no external identity) can coexist.
	var externalID any
	if user.ExternalIDHash != "" {
		externalID = user.ExternalIDHash
	}

	_, err := r.conn.ExecContext(ctx,
		`INSERT INTO users (id, username, external_id_hash, password_hash, avatar_path, member_since)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		user.ID,
		user.Username,
		externalID,
		user.PasswordHash,
		user.AvatarPath,
		user.MemberSince,
	)
	if err != nil {
		switch {
		case isUniqueViolation(err, "users.username"):
			return apperror.DuplicateUsername(user.Username)
		case isUniqueViolation(err, "users.external_id_hash"):
			return apperror.DuplicateExternalIdentity()
		}
		return fmt.Errorf("sqlite: inserting user %q: %w", user.Username, err)
	}

	return nil
}

// GetByID retrieves a user by their internal ID.
// Returns apperror.ErrNotFound if no user exists with that ID.
func (r *Users) GetByID(ctx context.Context, id string) (*model.User, error) {
	return r.getUser(ctx, `WHERE id = ?`, id)
}

// GetByUsername retrieves a user by username (exact, case-sensitive match).
func (r *Users) GetByUsername(ctx context.Context, username string) (*model.User, error) {
	return r.getUser(ctx, `WHERE username = ?`, username)
}

// GetByExternalID retrieves the user linked to an external identity hash.
// apperror.ErrNotFound means the identity has never been seen here — the
// auth service routes that caller to the claim-a-username step.
func (r *Users) GetByExternalID(ctx context.Context, externalIDHash string) (*model.User, error) {
	return r.getUser(ctx, `WHERE external_id_hash = ?`, externalIDHash)
}

// getUser is the shared single-row lookup. The where clause is one of the
// three fixed strings above — never user input.
func (r *Users) getUser(ctx context.Context, where string, arg any) (*model.User, error) {
	var (
		u          model.User
		externalID sql.NullString
	)

	err := r.conn.QueryRowContext(ctx,
		`SELECT id, username, external_id_hash, password_hash, avatar_path, member_since
		 FROM users `+where,
		arg,
	).Scan(
		&u.ID,
		&u.Username,
		&externalID,
		&u.PasswordHash,
		&u.AvatarPath,
		&u.MemberSince,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("user", fmt.Sprint(arg))
		}
		return nil, fmt.Errorf("sqlite: getting user (%v): %w", arg, err)
	}

	u.ExternalIDHash = externalID.String
	return &u, nil
}

// SetAvatarPath backfills the avatar reference after the avatar store has
// published the image file. This is the only mutation a user record sees.
func (r *Users) SetAvatarPath(ctx context.Context, id, path string) error {
	result, err := r.conn.ExecContext(ctx,
		`UPDATE users SET avatar_path = ? WHERE id = ?`,
		path, id,
	)
	if err != nil {
		return fmt.Errorf("sqlite: setting avatar path for user %s: %w", id, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return apperror.NotFound("user", id)
	}

	return nil
}
