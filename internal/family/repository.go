package family

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Member is one membership row joined with the user behind it.
type Member struct {
	MembershipID    string
	UserID          string
	Name            string
	EmailOrUsername string
	AvatarKey       *string
	Role            string
	JoinedAt        time.Time
	PostCount       int
}

// ErrNotFound is returned when no membership exists for a user in the space.
var ErrNotFound = errors.New("member not found")

// Repository provides family membership persistence backed by Postgres.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates a new family Repository.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

const memberSelect = `
	SELECT m.id, m.user_id, u.name, u.email_or_username, u.avatar_key, m.role, m.created_at,
	       (SELECT COUNT(*) FROM posts p
	        WHERE p.author_id = m.user_id AND p.family_space_id = m.family_space_id)
	FROM family_memberships m
	JOIN users u ON u.id = m.user_id`

func scanMember(row pgx.Row) (*Member, error) {
	var m Member
	err := row.Scan(&m.MembershipID, &m.UserID, &m.Name, &m.EmailOrUsername, &m.AvatarKey,
		&m.Role, &m.JoinedAt, &m.PostCount)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// ListMembers returns every member of a space, longest-standing first.
func (r *Repository) ListMembers(ctx context.Context, familySpaceID string) ([]Member, error) {
	rows, err := r.db.Query(ctx, memberSelect+`
		WHERE m.family_space_id = $1
		ORDER BY m.created_at ASC`, familySpaceID)
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}
	defer rows.Close()

	var members []Member
	for rows.Next() {
		m, err := scanMember(rows)
		if err != nil {
			return nil, fmt.Errorf("scan member: %w", err)
		}
		members = append(members, *m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate members: %w", err)
	}
	return members, nil
}

// GetMember loads one user's membership in a space.
func (r *Repository) GetMember(ctx context.Context, familySpaceID, userID string) (*Member, error) {
	row := r.db.QueryRow(ctx, memberSelect+`
		WHERE m.family_space_id = $1 AND m.user_id = $2`, familySpaceID, userID)
	m, err := scanMember(row)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("get member: %w", err)
	}
	return m, err
}

// RemoveMember deletes a membership row by its ID.
func (r *Repository) RemoveMember(ctx context.Context, membershipID string) error {
	ct, err := r.db.Exec(ctx, `DELETE FROM family_memberships WHERE id = $1`, membershipID)
	if err != nil {
		return fmt.Errorf("remove member: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
