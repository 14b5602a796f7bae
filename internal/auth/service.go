package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/hearthshare/service/internal/config"
	"github.com/hearthshare/service/internal/user"
)

const (
	jwtIssuer        = "hearthshare"
	tokenTTL         = 7 * 24 * time.Hour
	tokenTTLExtended = 30 * 24 * time.Hour
)

// ErrInvalidMasterKey is returned when the family master key does not match.
var ErrInvalidMasterKey = errors.New("invalid family master key")

// ErrInvalidCredentials is returned on a bad login or password.
var ErrInvalidCredentials = errors.New("invalid credentials")

// Session is the result of a successful signup or login.
type Session struct {
	Token      string
	User       *user.User
	Membership *Membership
}

// Service contains the business logic for signup and login.
type Service struct {
	repo    *Repository
	userSvc *user.Service
	cfg     *config.Config
}

// NewService creates a new auth Service.
func NewService(repo *Repository, userSvc *user.Service, cfg *config.Config) *Service {
	return &Service{repo: repo, userSvc: userSvc, cfg: cfg}
}

// Signup registers a new member. The family master key gates admission; the
// first member of the space becomes its owner.
func (s *Service) Signup(ctx context.Context, name, emailOrUsername, password, familyMasterKey string, rememberMe bool) (*Session, error) {
	space, err := s.repo.FindSpace(ctx)
	if err != nil {
		return nil, err
	}

	if !user.VerifyPassword(familyMasterKey, space.MasterKeyHash) {
		return nil, ErrInvalidMasterKey
	}

	count, err := s.repo.CountMembers(ctx, space.ID)
	if err != nil {
		return nil, err
	}
	role := "member"
	if count == 0 {
		role = "owner"
	}

	hash, err := user.HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	u, err := s.repo.CreateUserWithMembership(ctx, name, emailOrUsername, hash, space.ID, role)
	if err != nil {
		return nil, err
	}

	membership := &Membership{
		FamilySpaceID:   space.ID,
		FamilySpaceName: space.Name,
		UserID:          u.ID,
		Role:            role,
	}

	token, err := s.signToken(u.ID, space.ID, role, rememberMe)
	if err != nil {
		return nil, err
	}
	return &Session{Token: token, User: u, Membership: membership}, nil
}

// Login verifies credentials and issues a token.
func (s *Service) Login(ctx context.Context, emailOrUsername, password string, rememberMe bool) (*Session, error) {
	u, err := s.userSvc.GetByEmailOrUsername(ctx, emailOrUsername)
	if err != nil {
		if s.userSvc.IsNotFound(err) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if !user.VerifyPassword(password, u.PasswordHash) {
		return nil, ErrInvalidCredentials
	}

	membership, err := s.repo.GetMembership(ctx, u.ID)
	if err != nil {
		return nil, err
	}

	token, err := s.signToken(u.ID, membership.FamilySpaceID, membership.Role, rememberMe)
	if err != nil {
		return nil, err
	}
	return &Session{Token: token, User: u, Membership: membership}, nil
}

// Session loads the current user and membership for an authenticated ID.
func (s *Service) Session(ctx context.Context, userID string) (*user.User, *Membership, error) {
	u, err := s.userSvc.GetByID(ctx, userID)
	if err != nil {
		return nil, nil, err
	}
	membership, err := s.repo.GetMembership(ctx, userID)
	if err != nil {
		return nil, nil, err
	}
	return u, membership, nil
}

func (s *Service) signToken(userID, familySpaceID, role string, rememberMe bool) (string, error) {
	ttl := tokenTTL
	if rememberMe {
		ttl = tokenTTLExtended
	}
	claims := jwt.MapClaims{
		"userId":        userID,
		"familySpaceId": familySpaceID,
		"role":          role,
		"iss":           jwtIssuer,
		"exp":           time.Now().Add(ttl).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(s.cfg.JWTSecret))
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}
