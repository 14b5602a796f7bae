// Package auth handles password-based authentication into a family space.
package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hearthshare/service/internal/user"
)

// FamilySpace is the single shared space all members join.
type FamilySpace struct {
	ID            string
	Name          string
	MasterKeyHash string
}

// Membership binds a user to a family space with a role.
type Membership struct {
	ID              string
	FamilySpaceID   string
	FamilySpaceName string
	UserID          string
	Role            string
}

// ErrNoFamilySpace is returned when no family space has been provisioned.
var ErrNoFamilySpace = errors.New("no family space found")

// ErrNoMembership is returned when a user belongs to no family space.
var ErrNoMembership = errors.New("user is not a member of any family space")

// Repository handles user, family space and membership persistence for
// authentication flows.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates a new auth Repository.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// FindSpace returns the provisioned family space.
func (r *Repository) FindSpace(ctx context.Context) (*FamilySpace, error) {
	fs := &FamilySpace{}
	err := r.db.QueryRow(ctx,
		`SELECT id, name, master_key_hash FROM family_spaces ORDER BY created_at LIMIT 1`,
	).Scan(&fs.ID, &fs.Name, &fs.MasterKeyHash)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNoFamilySpace
	}
	if err != nil {
		return nil, fmt.Errorf("find family space: %w", err)
	}
	return fs, nil
}

// CountMembers returns the number of memberships in a space.
func (r *Repository) CountMembers(ctx context.Context, familySpaceID string) (int, error) {
	var n int
	err := r.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM family_memberships WHERE family_space_id = $1`,
		familySpaceID,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count members: %w", err)
	}
	return n, nil
}

// CreateUserWithMembership inserts the user and their membership in one
// transaction, so a failed membership insert never leaves an orphaned account.
func (r *Repository) CreateUserWithMembership(ctx context.Context, name, emailOrUsername, passwordHash, familySpaceID, role string) (*user.User, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	u := &user.User{}
	err = tx.QueryRow(ctx,
		`INSERT INTO users (name, email_or_username, password_hash)
		 VALUES ($1, $2, $3)
		 RETURNING id, name, email_or_username, password_hash, avatar_key, created_at, updated_at`,
		name, emailOrUsername, passwordHash,
	).Scan(&u.ID, &u.Name, &u.EmailOrUsername, &u.PasswordHash, &u.AvatarKey, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, user.ErrAlreadyExists
		}
		return nil, fmt.Errorf("create user: %w", err)
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO family_memberships (family_space_id, user_id, role) VALUES ($1, $2, $3)`,
		familySpaceID, u.ID, role)
	if err != nil {
		return nil, fmt.Errorf("create membership: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit signup: %w", err)
	}
	return u, nil
}

// GetMembership returns a user's membership joined with the space name.
func (r *Repository) GetMembership(ctx context.Context, userID string) (*Membership, error) {
	m := &Membership{}
	err := r.db.QueryRow(ctx,
		`SELECT m.id, m.family_space_id, fs.name, m.user_id, m.role
		 FROM family_memberships m
		 JOIN family_spaces fs ON fs.id = m.family_space_id
		 WHERE m.user_id = $1
		 ORDER BY m.created_at LIMIT 1`,
		userID,
	).Scan(&m.ID, &m.FamilySpaceID, &m.FamilySpaceName, &m.UserID, &m.Role)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNoMembership
	}
	if err != nil {
		return nil, fmt.Errorf("get membership: %w", err)
	}
	return m, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
