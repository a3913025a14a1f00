package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/sakif/microblog/internal/apperror"
	"github.com/sakif/microblog/internal/model"
	"github.com/sakif/microblog/internal/repository"
)

// Posts is the sqlite-backed post repository. Obtain one from DB.Posts();
// it shares the DB's connection pool.
type Posts struct {
	conn *sql.DB
}

// Posts returns the post repository view of this database.
func (db *DB) Posts() *Posts {
	return &Posts{conn: db.conn}
}

// compile-time check that *Posts implements repository.PostRepository
var _ repository.PostRepository = (*Posts)(nil)

// postColumns is the SELECT list shared by every post query: the post row,
// the author's display fields (JOINed, never used as keys), and the like
// count computed by a correlated subquery.
//
// WHY A SUBQUERY AND NOT LEFT JOIN + GROUP BY?
// A LEFT JOIN likes ... GROUP BY p.id works too, but the subquery keeps the
// outer query flat — no grouping rules to get wrong when columns are added.
// SQLite executes both the same way for this schema.
const postColumns = `
	p.id, p.title, p.content, p.user_id, u.username, u.avatar_path, p.created_at,
	(SELECT COUNT(*) FROM likes l WHERE l.post_id = p.id) AS like_count`

// Create inserts a new post. The timestamp is assigned here, at call time,
// and the caller's struct gets the generated id and timestamp back.
//
// AUTOINCREMENT ids are monotonic: result.LastInsertId() is how SQLite
// hands the generated INTEGER PRIMARY KEY back to us.
func (r *Posts) Create(ctx context.Context, post *model.Post) error {
	post.CreatedAt = time.Now()

	result, err := r.conn.ExecContext(ctx,
		`INSERT INTO posts (title, content, user_id, created_at)
		 VALUES (?, ?, ?, ?)`,
		post.Title,
		post.Content,
		post.AuthorID,
		post.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("sqlite: inserting post %q: %w", post.Title, err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("sqlite: reading post id: %w", err)
	}
	post.ID = id

	return nil
}

// GetByID retrieves a single post with its full like set loaded.
// Returns apperror.ErrNotFound if the post doesn't exist.
func (r *Posts) GetByID(ctx context.Context, id int64) (*model.Post, error) {
	var p model.Post

	err := r.conn.QueryRowContext(ctx,
		`SELECT `+postColumns+`
		 FROM posts p
		 JOIN users u ON u.id = p.user_id
		 WHERE p.id = ?`,
		id,
	).Scan(
		&p.ID, &p.Title, &p.Content, &p.AuthorID,
		&p.AuthorUsername, &p.AuthorAvatar, &p.CreatedAt, &p.LikeCount,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("post", fmt.Sprint(id))
		}
		return nil, fmt.Errorf("sqlite: getting post %d: %w", id, err)
	}

	// Load the like set for the single-post view. List queries skip this —
	// they only need the count.
	rows, err := r.conn.QueryContext(ctx,
		`SELECT user_id FROM likes WHERE post_id = ?`, id,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: loading likes for post %d: %w", id, err)
	}
	defer rows.Close()

	for rows.Next() {
		var userID string
		if err := rows.Scan(&userID); err != nil {
			return nil, fmt.Errorf("sqlite: scanning like row: %w", err)
		}
		p.Likes = append(p.Likes, userID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating likes: %w", err)
	}

	return &p, nil
}

// List returns all posts for the home feed in the requested order.
//
// ORDERING:
//   - recency: newest first. created_at DESC with id DESC as tie-break,
//     because two posts created in the same clock tick still have distinct,
//     monotonic ids.
//   - popularity: like count DESC, then recency DESC — the stated stable
//     tie-break (a newer post outranks an older one at equal likes).
func (r *Posts) List(ctx context.Context, sort model.SortKey) ([]model.Post, error) {
	order := `p.created_at DESC, p.id DESC`
	if sort == model.SortPopularity {
		order = `like_count DESC, p.created_at DESC, p.id DESC`
	}

	rows, err := r.conn.QueryContext(ctx,
		`SELECT `+postColumns+`
		 FROM posts p
		 JOIN users u ON u.id = p.user_id
		 ORDER BY `+order,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing posts: %w", err)
	}
	defer rows.Close()

	return scanPosts(rows)
}

// ListByAuthor returns the author's posts in store order (ascending id),
// which is what the profile page shows.
func (r *Posts) ListByAuthor(ctx context.Context, authorID string) ([]model.Post, error) {
	rows, err := r.conn.QueryContext(ctx,
		`SELECT `+postColumns+`
		 FROM posts p
		 JOIN users u ON u.id = p.user_id
		 WHERE p.user_id = ?
		 ORDER BY p.id`,
		authorID,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing posts by author %s: %w", authorID, err)
	}
	defer rows.Close()

	return scanPosts(rows)
}

func scanPosts(rows *sql.Rows) ([]model.Post, error) {
	var posts []model.Post
	for rows.Next() {
		var p model.Post
		if err := rows.Scan(
			&p.ID, &p.Title, &p.Content, &p.AuthorID,
			&p.AuthorUsername, &p.AuthorAvatar, &p.CreatedAt, &p.LikeCount,
		); err != nil {
			return nil, fmt.Errorf("sqlite: scanning post row: %w", err)
		}
		posts = append(posts, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating posts: %w", err)
	}
	if posts == nil {
		posts = []model.Post{}
	}
	return posts, nil
}

// Delete removes a post by id. Like rows go with it via ON DELETE CASCADE.
// Returns apperror.ErrNotFound if no row was removed.
func (r *Posts) Delete(ctx context.Context, id int64) error {
	result, err := r.conn.ExecContext(ctx,
		`DELETE FROM posts WHERE id = ?`,
		id,
	)
	if err != nil {
		return fmt.Errorf("sqlite: deleting post %d: %w", id, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return apperror.NotFound("post", fmt.Sprint(id))
	}

	return nil
}

// ToggleLike flips userID's membership in the post's like set and returns
// the new state (true = the user now likes the post).
//
// RACE SAFETY:
// A deferred read-then-write transaction is the wrong shape here: SQLite
// only upgrades a deferred transaction to a write lock at the first write,
// and a second toggler that started reading in the meantime gets
// SQLITE_BUSY at that point. So the toggle is a pair of individually-atomic
// statements instead:
//  1. try DELETE — if a row went away, the user had liked it; now unliked
//  2. otherwise INSERT OR IGNORE, guarded by the post's existence — the
//     composite primary key absorbs a duplicate submit racing us
//
// Each statement takes the write lock for its own duration only, and the
// busy_timeout set at open makes colliding writers queue rather than fail.
// N users toggling the same post concurrently each land exactly once.
func (r *Posts) ToggleLike(ctx context.Context, postID int64, userID string) (bool, error) {
	result, err := r.conn.ExecContext(ctx,
		`DELETE FROM likes WHERE post_id = ? AND user_id = ?`,
		postID, userID,
	)
	if err != nil {
		return false, fmt.Errorf("sqlite: removing like: %w", err)
	}
	removed, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if removed > 0 {
		return false, nil
	}

	result, err = r.conn.ExecContext(ctx,
		`INSERT OR IGNORE INTO likes (post_id, user_id)
		 SELECT ?, ? WHERE EXISTS (SELECT 1 FROM posts WHERE id = ?)`,
		postID, userID, postID,
	)
	if err != nil {
		return false, fmt.Errorf("sqlite: adding like: %w", err)
	}
	inserted, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if inserted > 0 {
		return true, nil
	}

	// Nothing inserted: either the post doesn't exist, or a duplicate
	// submit won the race and the like row is already there.
	var exists int
	err = r.conn.QueryRowContext(ctx,
		`SELECT 1 FROM posts WHERE id = ?`, postID,
	).Scan(&exists)
	if err != nil {
		if err == sql.ErrNoRows {
			return false, apperror.NotFound("post", fmt.Sprint(postID))
		}
		return false, fmt.Errorf("sqlite: checking post %d: %w", postID, err)
	}
	return true, nil
}
