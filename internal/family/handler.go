package family

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hearthshare/service/internal/middleware"
	"github.com/hearthshare/service/internal/response"
	"github.com/hearthshare/service/internal/uploads"
)

// Handler holds HTTP handlers for family membership endpoints.
type Handler struct {
	svc   *Service
	media *uploads.Media
}

// NewHandler creates a new family Handler.
func NewHandler(svc *Service, media *uploads.Media) *Handler {
	return &Handler{svc: svc, media: media}
}

type memberBody struct {
	UserID          string `json:"userId"`
	MembershipID    string `json:"membershipId"`
	Name            string `json:"name"`
	EmailOrUsername string `json:"emailOrUsername"`
	AvatarURL       string `json:"avatarUrl"`
	Role            string `json:"role"`
	JoinedAt        string `json:"joinedAt"`
	PostCount       int    `json:"postCount"`
}

func (h *Handler) writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		response.NotFound(w, "member not found")
	case errors.Is(err, ErrForbidden):
		response.Forbidden(w, "you do not have permission to remove this member")
	default:
		response.InternalError(w, "request failed")
	}
}

// ListMembers godoc
//
//	@Summary		List family members
//	@Description	Every member of the caller's space, longest-standing first.
//	@Tags			family
//	@Produce		json
//	@Security		BearerAuth
//	@Success		200	{object}	map[string][]memberBody
//	@Failure		500	{object}	response.ErrorBody
//	@Router			/family/members [get]
func (h *Handler) ListMembers(w http.ResponseWriter, r *http.Request) {
	identity, ok := middleware.IdentityFrom(r.Context())
	if !ok {
		response.Unauthorized(w, "authentication required")
		return
	}

	members, err := h.svc.ListMembers(r.Context(), identity.FamilySpaceID)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	resolver := h.media.NewResolver()
	items := make([]memberBody, 0, len(members))
	for _, m := range members {
		avatarURL := ""
		if m.AvatarKey != nil {
			avatarURL = resolver.Resolve(r.Context(), *m.AvatarKey)
		}
		items = append(items, memberBody{
			UserID:          m.UserID,
			MembershipID:    m.MembershipID,
			Name:            m.Name,
			EmailOrUsername: m.EmailOrUsername,
			AvatarURL:       avatarURL,
			Role:            m.Role,
			JoinedAt:        m.JoinedAt.UTC().Format("2006-01-02T15:04:05Z"),
			PostCount:       m.PostCount,
		})
	}
	response.OK(w, map[string][]memberBody{"members": items})
}

// RemoveMember godoc
//
//	@Summary		Remove family member
//	@Description	Remove a member from the space. Owner/admin only; the owner cannot be removed.
//	@Tags			family
//	@Produce		json
//	@Security		BearerAuth
//	@Param			userId	path		string	true	"User ID"
//	@Success		200		{object}	map[string]string
//	@Failure		403		{object}	response.ErrorBody
//	@Failure		404		{object}	response.ErrorBody
//	@Failure		500		{object}	response.ErrorBody
//	@Router			/family/members/{userId} [delete]
func (h *Handler) RemoveMember(w http.ResponseWriter, r *http.Request) {
	identity, ok := middleware.IdentityFrom(r.Context())
	if !ok {
		response.Unauthorized(w, "authentication required")
		return
	}

	err := h.svc.RemoveMember(r.Context(), identity.FamilySpaceID, identity.UserID, identity.Role,
		chi.URLParam(r, "userId"))
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	response.OK(w, map[string]string{"message": "member removed"})
}
