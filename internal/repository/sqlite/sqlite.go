// Package sqlite implements the repository interfaces using SQLite as the storage backend.
//
// WHY SQLITE?
// SQLite is an embedded database — it lives inside your Go binary as a single file.
// No separate database server to install, configure, or manage. Perfect for:
// - Learning database patterns without infrastructure complexity
// - Single-server deployments (which is most apps, honestly)
// - Development and testing (use ":memory:" for in-memory DB)
//
// WHY modernc.org/sqlite INSTEAD OF github.com/mattn/go-sqlite3?
// mattn/go-sqlite3 uses CGo (calls C code from Go), which means you need a C compiler
// installed and cross-compilation becomes painful. modernc.org/sqlite is a pure Go
// translation of the SQLite C code — no C compiler needed, works everywhere Go works.
//
// WHY SQLITE IS ENOUGH FOR THE CONCURRENCY REQUIREMENTS:
// The two read-then-write races this app cares about — duplicate usernames
// and like-toggle double submission — are both closed at this layer:
// - usernames: UNIQUE constraint makes check-and-insert one atomic statement
// - likes: ToggleLike is a pair of individually-atomic statements (DELETE,
//   then a guarded INSERT OR IGNORE), so there is no transaction window for
//   a concurrent toggle to slip into, and busy_timeout makes a writer that
//   hits the database lock wait its turn instead of failing with SQLITE_BUSY
package sqlite

import (
	"database/sql"
	"fmt"
	"strings"

	// BLANK IMPORT:
	// The underscore import `_ "modernc.org/sqlite"` is a "side-effect only" import.
	// The sqlite package's init() function registers itself with database/sql as a
	// driver named "sqlite". After this import, sql.Open("sqlite", ...) knows how
	// to talk to SQLite.
	_ "modernc.org/sqlite"
)

// DB wraps a sql.DB connection pool and owns migrations. The repository
// implementations are views over the same pool: Users() and Posts().
type DB struct {
	conn *sql.DB
}

// New creates a new SQLite database connection and runs migrations.
//
// dbPath examples:
//   - "data/microblog.db"  → file-based database (persistent)
//   - ":memory:"           → in-memory database (great for tests, lost on close)
//
// sql.Open() does NOT actually open a connection — it just creates a pool
// manager. We call conn.Ping() to force an immediate connection so a bad
// path or permissions issue surfaces here, not on the first query.
func New(dbPath string) (*DB, error) {
	// PRAGMAs issued with conn.Exec only reach whichever single connection
	// the pool hands out, so per-connection settings ride in the DSN, where
	// the driver re-applies them to every connection it opens:
	// - busy_timeout: a writer that finds the database locked waits up to
	//   5s for its turn instead of failing immediately with SQLITE_BUSY
	// - foreign_keys: OFF by default in SQLite; we need deleting a post to
	//   cascade to its like rows on every connection, not just the first
	conn, err := sql.Open("sqlite", dbPath+"?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)")
	if err != nil {
		return nil, fmt.Errorf("sqlite: opening database: %w", err)
	}

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: pinging database: %w", err)
	}

	// WAL (Write-Ahead Logging) mode:
	// Default SQLite locks the entire database during writes. WAL mode
	// allows concurrent reads WHILE a write is happening — important for a
	// web server where the home feed is read on every request.
	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: setting WAL mode: %w", err)
	}

	db := &DB{conn: conn}

	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: running migrations: %w", err)
	}

	return db, nil
}

// Close closes the database connection pool. Wherever you call New(),
// immediately defer Close() — it flushes the WAL and releases the file lock.
func (db *DB) Close() error {
	return db.conn.Close()
}

// migrate runs all database migrations.
//
// CREATE TABLE IF NOT EXISTS is idempotent — safe to run on every startup.
// For a project this size that beats carrying a migrations directory.
func (db *DB) migrate() error {
	// users: internal xid primary key; username and external identity hash
	// are unique alternate keys. The UNIQUE constraint on username is what
	// makes registration's check-then-insert atomic.
	_, err := db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS users (
			id               TEXT PRIMARY KEY,
			username         TEXT NOT NULL UNIQUE,
			external_id_hash TEXT UNIQUE,
			password_hash    TEXT NOT NULL DEFAULT '',
			avatar_path      TEXT NOT NULL DEFAULT '',
			member_since     DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
	`)
	if err != nil {
		return fmt.Errorf("creating users table: %w", err)
	}

	// posts: INTEGER PRIMARY KEY AUTOINCREMENT gives monotonic ids — a new
	// post always gets a larger id than every post before it, even after
	// deletions.
	_, err = db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS posts (
			id         INTEGER PRIMARY KEY AUTOINCREMENT,
			title      TEXT NOT NULL,
			content    TEXT NOT NULL,
			user_id    TEXT NOT NULL REFERENCES users(id),
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS idx_posts_created_at ON posts(created_at);
		CREATE INDEX IF NOT EXISTS idx_posts_user_id ON posts(user_id);
	`)
	if err != nil {
		return fmt.Errorf("creating posts table: %w", err)
	}

	// likes: the like set. The composite PRIMARY KEY (post_id, user_id)
	// means a user can appear at most once per post — the database enforces
	// the no-duplicate-likes invariant, not application code.
	_, err = db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS likes (
			post_id INTEGER NOT NULL REFERENCES posts(id) ON DELETE CASCADE,
			user_id TEXT NOT NULL REFERENCES users(id),
			PRIMARY KEY (post_id, user_id)
		);
		CREATE INDEX IF NOT EXISTS idx_likes_post_id ON likes(post_id);
	`)
	if err != nil {
		return fmt.Errorf("creating likes table: %w", err)
	}

	return nil
}

// isUniqueViolation reports whether err is SQLite's UNIQUE constraint error
// for the given column. The users table has two UNIQUE columns, and they
// mean different conflicts — a taken username versus an external identity
// that already has an account — so the match must name the column.
// modernc.org/sqlite surfaces it in the error text ("UNIQUE constraint
// failed: users.username"); matching on the message avoids importing the
// driver's error types directly.
func isUniqueViolation(err error, column string) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed: "+column)
}
