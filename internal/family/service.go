package family

import (
	"context"
	"errors"

	"github.com/rs/zerolog/log"

	"github.com/hearthshare/service/internal/permission"
)

// ErrForbidden is returned when the caller may not remove the target member.
var ErrForbidden = errors.New("not allowed to remove this member")

// Service contains the business logic for family memberships.
type Service struct {
	repo *Repository
}

// NewService creates a new family Service.
func NewService(repo *Repository) *Service {
	return &Service{repo: repo}
}

// ListMembers returns every member of the caller's space.
func (s *Service) ListMembers(ctx context.Context, familySpaceID string) ([]Member, error) {
	return s.repo.ListMembers(ctx, familySpaceID)
}

// RemoveMember removes another user from the space. Only owners and admins may
// remove members; the owner cannot be removed and nobody removes themselves.
func (s *Service) RemoveMember(ctx context.Context, familySpaceID, userID, role, targetUserID string) error {
	target, err := s.repo.GetMember(ctx, familySpaceID, targetUserID)
	if err != nil {
		return err
	}
	if !permission.CanRemoveMember(userID, role, target.UserID, target.Role) {
		return ErrForbidden
	}
	if err := s.repo.RemoveMember(ctx, target.MembershipID); err != nil {
		return err
	}
	log.Info().Str("user_id", targetUserID).Str("removed_by", userID).Msg("member removed")
	return nil
}
