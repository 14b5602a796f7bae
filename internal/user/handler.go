package user

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/hearthshare/service/internal/middleware"
	"github.com/hearthshare/service/internal/response"
	"github.com/hearthshare/service/internal/uploads"
)

// Handler holds HTTP handlers for the current user's profile.
type Handler struct {
	svc   *Service
	media *uploads.Media
}

// NewHandler creates a new user Handler.
func NewHandler(svc *Service, media *uploads.Media) *Handler {
	return &Handler{svc: svc, media: media}
}

type profileBody struct {
	ID              string `json:"id"              example:"e7eedc79-0707-4fe4-8734-526b7ef13a7b"`
	Name            string `json:"name"            example:"Grandma Rosa"`
	EmailOrUsername string `json:"emailOrUsername" example:"rosa@example.com"`
	AvatarURL       string `json:"avatarUrl"       example:"https://storage.googleapis.com/family-photos/avatar.jpg"`
	CreatedAt       string `json:"createdAt"       example:"2026-02-27T14:48:34Z"`
	UpdatedAt       string `json:"updatedAt"       example:"2026-02-27T14:48:34Z"`
}

type updateProfileRequest struct {
	Name            string `json:"name"            example:"Grandma Rosa"`
	EmailOrUsername string `json:"emailOrUsername" example:"rosa@example.com"`
}

type changePasswordRequest struct {
	CurrentPassword string `json:"currentPassword" example:"secret123"`
	NewPassword     string `json:"newPassword"     example:"secret456"`
}

func (h *Handler) profileBody(r *http.Request, u *User) profileBody {
	avatarURL := ""
	if u.AvatarKey != nil {
		avatarURL = h.media.NewResolver().Resolve(r.Context(), *u.AvatarKey)
	}
	const rfc3339UTC = "2006-01-02T15:04:05Z"
	return profileBody{
		ID:              u.ID,
		Name:            u.Name,
		EmailOrUsername: u.EmailOrUsername,
		AvatarURL:       avatarURL,
		CreatedAt:       u.CreatedAt.UTC().Format(rfc3339UTC),
		UpdatedAt:       u.UpdatedAt.UTC().Format(rfc3339UTC),
	}
}

// GetProfile godoc
//
//	@Summary		Get profile
//	@Description	Returns the profile of the currently authenticated user.
//	@Tags			me
//	@Produce		json
//	@Security		BearerAuth
//	@Success		200	{object}	profileBody
//	@Failure		401	{object}	response.ErrorBody
//	@Failure		404	{object}	response.ErrorBody
//	@Failure		500	{object}	response.ErrorBody
//	@Router			/me/profile [get]
func (h *Handler) GetProfile(w http.ResponseWriter, r *http.Request) {
	identity, ok := middleware.IdentityFrom(r.Context())
	if !ok {
		response.Unauthorized(w, "authentication required")
		return
	}

	u, err := h.svc.GetByID(r.Context(), identity.UserID)
	if err != nil {
		if h.svc.IsNotFound(err) {
			response.NotFound(w, "user not found")
			return
		}
		response.InternalError(w, "could not load profile")
		return
	}

	response.OK(w, h.profileBody(r, u))
}

// UpdateProfile godoc
//
//	@Summary		Update profile
//	@Description	Change the display name and login identifier.
//	@Tags			me
//	@Accept			json
//	@Produce		json
//	@Security		BearerAuth
//	@Param			request	body		updateProfileRequest	true	"New profile fields"
//	@Success		200		{object}	profileBody
//	@Failure		400		{object}	response.ErrorBody
//	@Failure		401		{object}	response.ErrorBody
//	@Failure		409		{object}	response.ErrorBody
//	@Failure		500		{object}	response.ErrorBody
//	@Router			/me/profile [put]
func (h *Handler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	identity, ok := middleware.IdentityFrom(r.Context())
	if !ok {
		response.Unauthorized(w, "authentication required")
		return
	}

	var req updateProfileRequest
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

	u, err := h.svc.UpdateProfile(r.Context(), identity.UserID, req.Name, req.EmailOrUsername)
	switch {
	case errors.Is(err, ErrAlreadyExists):
		response.Conflict(w, "email or username already taken")
		return
	case h.svc.IsNotFound(err):
		response.NotFound(w, "user not found")
		return
	case err != nil:
		response.InternalError(w, "could not update profile")
		return
	}

	response.OK(w, h.profileBody(r, u))
}

// ChangePassword godoc
//
//	@Summary		Change password
//	@Description	Verify the current password and set a new one.
//	@Tags			me
//	@Accept			json
//	@Produce		json
//	@Security		BearerAuth
//	@Param			request	body		changePasswordRequest	true	"Current and new password"
//	@Success		200		{object}	map[string]bool
//	@Failure		400		{object}	response.ErrorBody
//	@Failure		401		{object}	response.ErrorBody
//	@Failure		500		{object}	response.ErrorBody
//	@Router			/me/password [put]
func (h *Handler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	identity, ok := middleware.IdentityFrom(r.Context())
	if !ok {
		response.Unauthorized(w, "authentication required")
		return
	}

	var req changePasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "invalid request body")
		return
	}
	if len(req.NewPassword) < 8 {
		response.ValidationError(w, "new password must be at least 8 characters")
		return
	}

	err := h.svc.ChangePassword(r.Context(), identity.UserID, req.CurrentPassword, req.NewPassword)
	switch {
	case errors.Is(err, ErrWrongPassword):
		response.Error(w, http.StatusBadRequest, "WRONG_PASSWORD", "current password is incorrect")
		return
	case h.svc.IsNotFound(err):
		response.NotFound(w, "user not found")
		return
	case err != nil:
		response.InternalError(w, "could not change password")
		return
	}

	response.OK(w, map[string]bool{"success": true})
}

// UploadAvatar godoc
//
//	@Summary		Upload avatar
//	@Description	Accepts a multipart image, stores it, and replaces the previous avatar. The old file is removed best-effort.
//	@Tags			me
//	@Accept			multipart/form-data
//	@Produce		json
//	@Security		BearerAuth
//	@Param			file	formData	file	true	"Avatar image (jpeg/png/webp/gif, max 8 MiB)"
//	@Success		200		{object}	profileBody
//	@Failure		400		{object}	response.ErrorBody
//	@Failure		401		{object}	response.ErrorBody
//	@Failure		500		{object}	response.ErrorBody
//	@Router			/me/avatar [post]
func (h *Handler) UploadAvatar(w http.ResponseWriter, r *http.Request) {
	identity, ok := middleware.IdentityFrom(r.Context())
	if !ok {
		response.Unauthorized(w, "authentication required")
		return
	}

	if err := r.ParseMultipartForm(uploads.MaxFileSize); err != nil {
		response.BadRequest(w, "invalid multipart form")
		return
	}
	_, header, err := r.FormFile("file")
	if err != nil {
		response.ValidationError(w, "file field is required")
		return
	}

	result, err := h.media.Save(r.Context(), uploads.MultipartSource(header))
	switch {
	case errors.Is(err, uploads.ErrUnsupportedFileType):
		response.ValidationError(w, "avatar must be a jpeg, png, webp or gif image")
		return
	case errors.Is(err, uploads.ErrFileTooLarge):
		response.ValidationError(w, "avatar exceeds the 8 MiB limit")
		return
	case err != nil:
		response.InternalError(w, "could not store avatar")
		return
	}

	previous, err := h.svc.UpdateAvatar(r.Context(), identity.UserID, result.StorageKey)
	if err != nil {
		// The row update failed after the file was written; remove the orphan.
		h.media.DeleteAll(r.Context(), []string{result.FilePath})
		if h.svc.IsNotFound(err) {
			response.NotFound(w, "user not found")
			return
		}
		response.InternalError(w, "could not update avatar")
		return
	}
	if previous != "" {
		h.media.DeleteAll(r.Context(), []string{previous})
	}

	u, err := h.svc.GetByID(r.Context(), identity.UserID)
	if err != nil {
		response.InternalError(w, "could not load profile")
		return
	}
	response.OK(w, h.profileBody(r, u))
}
