package comment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Comment is a reply on a post, optionally with a photo.
type Comment struct {
	ID        string
	PostID    string
	AuthorID  string
	Text      string
	PhotoKey  *string
	CreatedAt time.Time

	AuthorName      string
	AuthorAvatarKey *string
}

// ErrNotFound is returned when a comment does not exist in the caller's space.
var ErrNotFound = errors.New("comment not found")

// Repository provides comment persistence backed by Postgres.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates a new comment Repository.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

const commentSelect = `
	SELECT c.id, c.post_id, c.author_id, c.text, c.photo_key, c.created_at,
	       u.name, u.avatar_key
	FROM comments c
	JOIN users u ON u.id = c.author_id`

func scanComment(row pgx.Row) (*Comment, error) {
	var c Comment
	err := row.Scan(&c.ID, &c.PostID, &c.AuthorID, &c.Text, &c.PhotoKey, &c.CreatedAt,
		&c.AuthorName, &c.AuthorAvatarKey)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// Create inserts a comment and returns it with its author joined in.
func (r *Repository) Create(ctx context.Context, postID, authorID, text string, photoKey *string) (*Comment, error) {
	var id string
	err := r.db.QueryRow(ctx, `
		INSERT INTO comments (post_id, author_id, text, photo_key)
		VALUES ($1, $2, $3, $4) RETURNING id`,
		postID, authorID, text, photoKey).Scan(&id)
	if err != nil {
		return nil, fmt.Errorf("create comment: %w", err)
	}
	return r.getByID(ctx, id)
}

func (r *Repository) getByID(ctx context.Context, id string) (*Comment, error) {
	row := r.db.QueryRow(ctx, commentSelect+` WHERE c.id = $1`, id)
	c, err := scanComment(row)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("get comment: %w", err)
	}
	return c, err
}

// GetInSpace loads a comment only when its post belongs to the family space.
func (r *Repository) GetInSpace(ctx context.Context, familySpaceID, id string) (*Comment, error) {
	row := r.db.QueryRow(ctx, commentSelect+`
		JOIN posts p ON p.id = c.post_id
		WHERE c.id = $1 AND p.family_space_id = $2`, id, familySpaceID)
	c, err := scanComment(row)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("get comment: %w", err)
	}
	return c, err
}

// ListByPost returns a post's comments newest first. Callers pass limit+1 to
// detect whether more pages remain.
func (r *Repository) ListByPost(ctx context.Context, familySpaceID, postID string, limit, offset int) ([]*Comment, error) {
	rows, err := r.db.Query(ctx, commentSelect+`
		JOIN posts p ON p.id = c.post_id
		WHERE c.post_id = $1 AND p.family_space_id = $2
		ORDER BY c.created_at DESC
		LIMIT $3 OFFSET $4`, postID, familySpaceID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list comments: %w", err)
	}
	defer rows.Close()

	var comments []*Comment
	for rows.Next() {
		c, err := scanComment(rows)
		if err != nil {
			return nil, fmt.Errorf("scan comment: %w", err)
		}
		comments = append(comments, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate comments: %w", err)
	}
	return comments, nil
}

// Delete removes a comment by ID.
func (r *Repository) Delete(ctx context.Context, id string) error {
	ct, err := r.db.Exec(ctx, `DELETE FROM comments WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete comment: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
