package auth

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/hearthshare/service/internal/middleware"
	"github.com/hearthshare/service/internal/response"
	"github.com/hearthshare/service/internal/uploads"
	"github.com/hearthshare/service/internal/user"
)

// Handler holds HTTP handlers for auth endpoints.
type Handler struct {
	svc   *Service
	media *uploads.Media
}

// NewHandler creates a new auth Handler.
func NewHandler(svc *Service, media *uploads.Media) *Handler {
	return &Handler{svc: svc, media: media}
}

type signupRequest struct {
	Name            string `json:"name"            example:"Grandma Rosa"`
	EmailOrUsername string `json:"emailOrUsername" example:"rosa@example.com"`
	Password        string `json:"password"        example:"secret123"`
	FamilyMasterKey string `json:"familyMasterKey" example:"our-kitchen"`
	RememberMe      bool   `json:"rememberMe"      example:"false"`
}

type loginRequest struct {
	EmailOrUsername string `json:"emailOrUsername" example:"rosa@example.com"`
	Password        string `json:"password"        example:"secret123"`
	RememberMe      bool   `json:"rememberMe"      example:"false"`
}

type sessionData struct {
	Token string   `json:"token,omitempty" example:"eyJhbGci..."`
	User  userBody `json:"user"`
}

type userBody struct {
	ID              string `json:"id"              example:"e7eedc79-0707-4fe4-8734-526b7ef13a7b"`
	Name            string `json:"name"            example:"Grandma Rosa"`
	EmailOrUsername string `json:"emailOrUsername" example:"rosa@example.com"`
	AvatarURL       string `json:"avatarUrl"       example:"https://storage.googleapis.com/family-photos/avatar.jpg"`
	Role            string `json:"role"            example:"member"`
	FamilySpaceID   string `json:"familySpaceId"   example:"a4c1e9d0-9c4d-4b3a-8f4e-0f1d2c3b4a5e"`
	FamilySpaceName string `json:"familySpaceName" example:"Rosa's Kitchen"`
	CreatedAt       string `json:"createdAt"       example:"2026-02-27T14:48:34Z"`
}

func (h *Handler) userBody(r *http.Request, u *user.User, m *Membership) userBody {
	resolver := h.media.NewResolver()
	avatarURL := ""
	if u.AvatarKey != nil {
		avatarURL = resolver.Resolve(r.Context(), *u.AvatarKey)
	}
	return userBody{
		ID:              u.ID,
		Name:            u.Name,
		EmailOrUsername: u.EmailOrUsername,
		AvatarURL:       avatarURL,
		Role:            m.Role,
		FamilySpaceID:   m.FamilySpaceID,
		FamilySpaceName: m.FamilySpaceName,
		CreatedAt:       u.CreatedAt.UTC().Format("2006-01-02T15:04:05Z"),
	}
}

// Signup godoc
//
//	@Summary		Sign up
//	@Description	Register a new family member. The family master key gates admission; the first member of the space becomes its owner.
//	@Tags			auth
//	@Accept			json
//	@Produce		json
//	@Param			request	body		signupRequest	true	"Registration details"
//	@Success		201		{object}	sessionData
//	@Failure		400		{object}	response.ErrorBody
//	@Failure		409		{object}	response.ErrorBody
//	@Failure		500		{object}	response.ErrorBody
//	@Router			/auth/signup [post]
func (h *Handler) Signup(w http.ResponseWriter, r *http.Request) {
	var req signupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "invalid request body")
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	req.EmailOrUsername = strings.TrimSpace(req.EmailOrUsername)
	if req.Name == "" || req.EmailOrUsername == "" {
		response.ValidationError(w, "name and emailOrUsername are required")
		return
	}
	if len(req.Password) < 8 {
		response.ValidationError(w, "password must be at least 8 characters")
		return
	}

	session, err := h.svc.Signup(r.Context(), req.Name, req.EmailOrUsername, req.Password, req.FamilyMasterKey, req.RememberMe)
	switch {
	case errors.Is(err, ErrInvalidMasterKey):
		response.Error(w, http.StatusForbidden, "INVALID_MASTER_KEY", "Family master key is incorrect")
		return
	case errors.Is(err, user.ErrAlreadyExists):
		response.Conflict(w, "email or username already registered")
		return
	case errors.Is(err, ErrNoFamilySpace):
		response.Error(w, http.StatusServiceUnavailable, "NO_FAMILY_SPACE", "No family space has been provisioned")
		return
	case err != nil:
		response.InternalError(w, "could not complete signup")
		return
	}

	response.Created(w, sessionData{
		Token: session.Token,
		User:  h.userBody(r, session.User, session.Membership),
	})
}

// Login godoc
//
//	@Summary		Log in
//	@Description	Verify credentials and issue a bearer token. With rememberMe the token lives 30 days instead of 7.
//	@Tags			auth
//	@Accept			json
//	@Produce		json
//	@Param			request	body		loginRequest	true	"Credentials"
//	@Success		200		{object}	sessionData
//	@Failure		400		{object}	response.ErrorBody
//	@Failure		401		{object}	response.ErrorBody
//	@Failure		500		{object}	response.ErrorBody
//	@Router			/auth/login [post]
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "invalid request body")
		return
	}
	if req.EmailOrUsername == "" || req.Password == "" {
		response.ValidationError(w, "emailOrUsername and password are required")
		return
	}

	session, err := h.svc.Login(r.Context(), req.EmailOrUsername, req.Password, req.RememberMe)
	switch {
	case errors.Is(err, ErrInvalidCredentials):
		response.InvalidCredentials(w)
		return
	case errors.Is(err, ErrNoMembership):
		response.Forbidden(w, "account is not a member of the family space")
		return
	case err != nil:
		response.InternalError(w, "could not complete login")
		return
	}

	response.OK(w, sessionData{
		Token: session.Token,
		User:  h.userBody(r, session.User, session.Membership),
	})
}

// Logout godoc
//
//	@Summary		Log out
//	@Description	Tokens are stateless; the client discards its copy. Always succeeds.
//	@Tags			auth
//	@Produce		json
//	@Success		200	{object}	map[string]bool
//	@Router			/auth/logout [post]
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	response.OK(w, map[string]bool{"success": true})
}

// Session godoc
//
//	@Summary		Current session
//	@Description	Return the authenticated user and family membership.
//	@Tags			auth
//	@Produce		json
//	@Security		BearerAuth
//	@Success		200	{object}	sessionData
//	@Failure		401	{object}	response.ErrorBody
//	@Failure		500	{object}	response.ErrorBody
//	@Router			/auth/session [get]
func (h *Handler) Session(w http.ResponseWriter, r *http.Request) {
	identity, ok := middleware.IdentityFrom(r.Context())
	if !ok {
		response.Unauthorized(w, "authentication required")
		return
	}

	u, membership, err := h.svc.Session(r.Context(), identity.UserID)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) || errors.Is(err, ErrNoMembership) {
			response.Unauthorized(w, "session no longer valid")
			return
		}
		response.InternalError(w, "could not load session")
		return
	}

	response.OK(w, sessionData{User: h.userBody(r, u, membership)})
}
