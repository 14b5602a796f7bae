package comment

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/hearthshare/service/internal/middleware"
	"github.com/hearthshare/service/internal/post"
	"github.com/hearthshare/service/internal/response"
	"github.com/hearthshare/service/internal/uploads"
)

// Handler holds HTTP handlers for comment endpoints.
type Handler struct {
	svc   *Service
	media *uploads.Media
}

// NewHandler creates a new comment Handler.
func NewHandler(svc *Service, media *uploads.Media) *Handler {
	return &Handler{svc: svc, media: media}
}

type createCommentPayload struct {
	Text string `json:"text"`
}

type authorBody struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	AvatarURL string `json:"avatarUrl"`
}

type commentBody struct {
	ID        string     `json:"id"`
	Text      string     `json:"text"`
	PhotoURL  string     `json:"photoUrl"`
	CreatedAt string     `json:"createdAt"`
	Author    authorBody `json:"author"`
}

func (h *Handler) commentBody(ctx context.Context, resolver *uploads.Resolver, c *Comment) commentBody {
	photoURL := ""
	if c.PhotoKey != nil {
		photoURL = resolver.Resolve(ctx, *c.PhotoKey)
	}
	avatarURL := ""
	if c.AuthorAvatarKey != nil {
		avatarURL = resolver.Resolve(ctx, *c.AuthorAvatarKey)
	}
	return commentBody{
		ID:        c.ID,
		Text:      c.Text,
		PhotoURL:  photoURL,
		CreatedAt: c.CreatedAt.UTC().Format("2006-01-02T15:04:05Z"),
		Author:    authorBody{ID: c.AuthorID, Name: c.AuthorName, AvatarURL: avatarURL},
	}
}

func (h *Handler) writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		response.NotFound(w, "comment not found")
	case errors.Is(err, post.ErrNotFound):
		response.NotFound(w, "post not found")
	case errors.Is(err, ErrForbidden):
		response.Forbidden(w, "you do not have permission to delete this comment")
	case errors.Is(err, ErrEmptyText):
		response.ValidationError(w, "comment text is required")
	case errors.Is(err, ErrTextTooLong):
		response.ValidationError(w, "comment text is too long")
	case errors.Is(err, uploads.ErrUnsupportedFileType):
		response.ValidationError(w, "only JPEG, PNG, WEBP, or GIF images are allowed")
	case errors.Is(err, uploads.ErrFileTooLarge):
		response.ValidationError(w, "photo must be at most 8 MiB")
	default:
		response.InternalError(w, "request failed")
	}
}

// List godoc
//
//	@Summary		List comments
//	@Description	A post's comments, oldest first within the page.
//	@Tags			comments
//	@Produce		json
//	@Security		BearerAuth
//	@Param			id		path		string	true	"Post ID"
//	@Param			limit	query		int		false	"Page size (max 50)"
//	@Param			offset	query		int		false	"Offset"
//	@Success		200		{object}	map[string]interface{}
//	@Failure		404		{object}	response.ErrorBody
//	@Failure		500		{object}	response.ErrorBody
//	@Router			/posts/{id}/comments [get]
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	identity, ok := middleware.IdentityFrom(r.Context())
	if !ok {
		response.Unauthorized(w, "authentication required")
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	comments, page, err := h.svc.List(r.Context(), identity.FamilySpaceID, chi.URLParam(r, "id"), limit, offset)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	resolver := h.media.NewResolver()
	items := make([]commentBody, 0, len(comments))
	for _, c := range comments {
		items = append(items, h.commentBody(r.Context(), resolver, c))
	}
	response.OK(w, map[string]interface{}{
		"comments":   items,
		"hasMore":    page.HasMore,
		"nextOffset": page.NextOffset,
	})
}

// Create godoc
//
//	@Summary		Create comment
//	@Description	Add a comment. Multipart form with a JSON "payload" field plus an optional "photo" file.
//	@Tags			comments
//	@Accept			multipart/form-data
//	@Produce		json
//	@Security		BearerAuth
//	@Param			id		path		string	true	"Post ID"
//	@Param			payload	formData	string	true	"JSON-encoded comment fields"
//	@Param			photo	formData	file	false	"Photo file"
//	@Success		201		{object}	map[string]commentBody
//	@Failure		400		{object}	response.ErrorBody
//	@Failure		404		{object}	response.ErrorBody
//	@Failure		500		{object}	response.ErrorBody
//	@Router			/posts/{id}/comments [post]
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	identity, ok := middleware.IdentityFrom(r.Context())
	if !ok {
		response.Unauthorized(w, "authentication required")
		return
	}

	if err := r.ParseMultipartForm(uploads.MaxFileSize); err != nil {
		response.BadRequest(w, "invalid multipart form")
		return
	}
	var payload createCommentPayload
	if err := json.Unmarshal([]byte(r.FormValue("payload")), &payload); err != nil {
		response.BadRequest(w, "payload must be valid JSON")
		return
	}

	var photo uploads.FileSource
	if r.MultipartForm != nil {
		if files := r.MultipartForm.File["photo"]; len(files) > 0 {
			photo = uploads.MultipartSource(files[0])
		}
	}

	c, err := h.svc.Create(r.Context(), identity.FamilySpaceID, identity.UserID, chi.URLParam(r, "id"), payload.Text, photo)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	response.Created(w, map[string]commentBody{
		"comment": h.commentBody(r.Context(), h.media.NewResolver(), c),
	})
}

// Delete godoc
//
//	@Summary		Delete comment
//	@Description	Remove a comment. Author or owner/admin only.
//	@Tags			comments
//	@Produce		json
//	@Security		BearerAuth
//	@Param			id	path		string	true	"Comment ID"
//	@Success		200	{object}	map[string]string
//	@Failure		403	{object}	response.ErrorBody
//	@Failure		404	{object}	response.ErrorBody
//	@Failure		500	{object}	response.ErrorBody
//	@Router			/comments/{id} [delete]
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	identity, ok := middleware.IdentityFrom(r.Context())
	if !ok {
		response.Unauthorized(w, "authentication required")
		return
	}

	err := h.svc.Delete(r.Context(), identity.FamilySpaceID, identity.UserID, identity.Role, chi.URLParam(r, "id"))
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	response.OK(w, map[string]string{"message": "comment deleted"})
}
