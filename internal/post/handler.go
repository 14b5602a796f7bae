package post

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hearthshare/service/internal/middleware"
	"github.com/hearthshare/service/internal/response"
	"github.com/hearthshare/service/internal/uploads"
)

// Handler holds HTTP handlers for post endpoints.
type Handler struct {
	svc   *Service
	media *uploads.Media
}

// NewHandler creates a new post Handler.
func NewHandler(svc *Service, media *uploads.Media) *Handler {
	return &Handler{svc: svc, media: media}
}

type createPostPayload struct {
	Title   string         `json:"title"`
	Caption *string        `json:"caption"`
	Recipe  *recipePayload `json:"recipe"`
}

type recipePayload struct {
	Origin      *string      `json:"origin"`
	Ingredients []Ingredient `json:"ingredients"`
	Steps       []Step       `json:"steps"`
	TotalTime   *int         `json:"totalTime"`
	Servings    *int         `json:"servings"`
	Course      *string      `json:"course"`
	Courses     []string     `json:"courses"`
	Difficulty  *string      `json:"difficulty"`
	Tags        []string     `json:"tags"`
}

type updatePostPayload struct {
	Title      *string        `json:"title"`
	Caption    *string        `json:"caption"`
	Recipe     *recipePayload `json:"recipe"`
	ChangeNote *string        `json:"changeNote"`
}

type cookedPayload struct {
	Rating *int    `json:"rating"`
	Note   *string `json:"note"`
}

type actorBody struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	AvatarURL string `json:"avatarUrl"`
}

type photoBody struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

type summaryBody struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	Caption      *string   `json:"caption"`
	MainPhotoURL string    `json:"mainPhotoUrl"`
	HasRecipe    bool      `json:"hasRecipe"`
	Author       actorBody `json:"author"`
	CreatedAt    string    `json:"createdAt"`
}

type recipeBody struct {
	Origin        *string      `json:"origin"`
	Ingredients   []Ingredient `json:"ingredients"`
	Steps         []Step       `json:"steps"`
	TotalTime     *int         `json:"totalTime"`
	Servings      *int         `json:"servings"`
	Courses       []string     `json:"courses"`
	PrimaryCourse *string      `json:"primaryCourse"`
	Difficulty    *string      `json:"difficulty"`
}

type cookedBody struct {
	ID        string    `json:"id"`
	Rating    *int      `json:"rating"`
	Note      *string   `json:"note"`
	CreatedAt string    `json:"createdAt"`
	User      actorBody `json:"user"`
}

type detailBody struct {
	ID           string       `json:"id"`
	Title        string       `json:"title"`
	Caption      *string      `json:"caption"`
	MainPhotoURL string       `json:"mainPhotoUrl"`
	IsFavorited  bool         `json:"isFavorited"`
	Author       actorBody    `json:"author"`
	Editor       *actorBody   `json:"editor,omitempty"`
	LastEditNote *string      `json:"lastEditNote"`
	LastEditAt   *string      `json:"lastEditAt"`
	Photos       []photoBody  `json:"photos"`
	Recipe       *recipeBody  `json:"recipe"`
	Tags         []string     `json:"tags"`
	CookedStats  *CookedStats `json:"cookedStats"`
	RecentCooked []cookedBody `json:"recentCooked"`
	CookedPage   Page         `json:"recentCookedPage"`
	CreatedAt    string       `json:"createdAt"`
	UpdatedAt    string       `json:"updatedAt"`
}

const timeLayout = "2006-01-02T15:04:05Z"

func isoTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func isoTimePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := isoTime(*t)
	return &s
}

func recipeInput(p *recipePayload) (*Recipe, []string) {
	if p == nil {
		return nil, nil
	}
	courses := p.Courses
	if len(courses) == 0 && p.Course != nil {
		courses = []string{*p.Course}
	}
	return &Recipe{
		Origin:      p.Origin,
		Ingredients: p.Ingredients,
		Steps:       p.Steps,
		TotalTime:   p.TotalTime,
		Servings:    p.Servings,
		Courses:     courses,
		Difficulty:  p.Difficulty,
	}, p.Tags
}

func recipeOut(r *Recipe) *recipeBody {
	if r == nil {
		return nil
	}
	out := &recipeBody{
		Origin:      r.Origin,
		Ingredients: r.Ingredients,
		Steps:       r.Steps,
		TotalTime:   r.TotalTime,
		Servings:    r.Servings,
		Courses:     r.Courses,
		Difficulty:  r.Difficulty,
	}
	if out.Ingredients == nil {
		out.Ingredients = []Ingredient{}
	}
	if out.Steps == nil {
		out.Steps = []Step{}
	}
	if len(r.Courses) > 0 {
		out.PrimaryCourse = &r.Courses[0]
	}
	return out
}

func resolveKey(ctx context.Context, resolver *uploads.Resolver, key *string) string {
	if key == nil {
		return ""
	}
	return resolver.Resolve(ctx, *key)
}

func (h *Handler) summaryBody(ctx context.Context, resolver *uploads.Resolver, p *Post) summaryBody {
	return summaryBody{
		ID:           p.ID,
		Title:        p.Title,
		Caption:      p.Caption,
		MainPhotoURL: resolveKey(ctx, resolver, p.MainPhotoKey),
		HasRecipe:    p.Recipe != nil,
		Author: actorBody{
			ID:        p.AuthorID,
			Name:      p.AuthorName,
			AvatarURL: resolveKey(ctx, resolver, p.AuthorAvatarKey),
		},
		CreatedAt: isoTime(p.CreatedAt),
	}
}

func (h *Handler) cookedBodies(ctx context.Context, resolver *uploads.Resolver, events []CookedEvent) []cookedBody {
	out := make([]cookedBody, 0, len(events))
	for _, e := range events {
		out = append(out, cookedBody{
			ID:        e.ID,
			Rating:    e.Rating,
			Note:      e.Note,
			CreatedAt: isoTime(e.CreatedAt),
			User: actorBody{
				ID:        e.UserID,
				Name:      e.UserName,
				AvatarURL: resolveKey(ctx, resolver, e.UserAvatarKey),
			},
		})
	}
	return out
}

func (h *Handler) detailBody(ctx context.Context, resolver *uploads.Resolver, d *Detail) detailBody {
	p := d.Post

	photoKeys := make([]string, len(d.Photos))
	for i, ph := range d.Photos {
		photoKeys[i] = ph.PhotoKey
	}
	photoURLs := resolver.ResolveAll(ctx, photoKeys)
	photos := make([]photoBody, len(d.Photos))
	for i, ph := range d.Photos {
		photos[i] = photoBody{ID: ph.ID, URL: photoURLs[i]}
	}

	body := detailBody{
		ID:           p.ID,
		Title:        p.Title,
		Caption:      p.Caption,
		MainPhotoURL: resolveKey(ctx, resolver, p.MainPhotoKey),
		IsFavorited:  d.IsFavorited,
		Author: actorBody{
			ID:        p.AuthorID,
			Name:      p.AuthorName,
			AvatarURL: resolveKey(ctx, resolver, p.AuthorAvatarKey),
		},
		LastEditNote: p.LastEditNote,
		LastEditAt:   isoTimePtr(p.LastEditAt),
		Photos:       photos,
		Recipe:       recipeOut(p.Recipe),
		Tags:         d.Tags,
		CookedStats:  d.CookedStats,
		RecentCooked: h.cookedBodies(ctx, resolver, d.Cooked),
		CookedPage:   d.CookedPage,
		CreatedAt:    isoTime(p.CreatedAt),
		UpdatedAt:    isoTime(p.UpdatedAt),
	}
	if body.Tags == nil {
		body.Tags = []string{}
	}
	if p.EditorID != nil && p.EditorName != nil {
		body.Editor = &actorBody{ID: *p.EditorID, Name: *p.EditorName}
	}
	return body
}

func queryInt(r *http.Request, name string) int {
	v, _ := strconv.Atoi(r.URL.Query().Get(name))
	return v
}

func (h *Handler) writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case h.svc.IsNotFound(err):
		response.NotFound(w, "post not found")
	case errors.Is(err, ErrForbidden):
		response.Forbidden(w, "you do not have permission to modify this post")
	case errors.Is(err, ErrTagNotFound):
		response.Conflict(w, "one or more tags are not available")
	case errors.Is(err, ErrInvalidInput):
		response.ValidationError(w, err.Error())
	case errors.Is(err, uploads.ErrUnsupportedFileType):
		response.ValidationError(w, "only JPEG, PNG, WEBP, or GIF images are allowed")
	case errors.Is(err, uploads.ErrFileTooLarge):
		response.ValidationError(w, "each photo must be at most 8 MiB")
	default:
		response.InternalError(w, "request failed")
	}
}

// Create godoc
//
//	@Summary		Create post
//	@Description	Create a recipe post. Multipart form with a JSON "payload" field plus up to 10 "photos" files.
//	@Tags			posts
//	@Accept			multipart/form-data
//	@Produce		json
//	@Security		BearerAuth
//	@Param			payload	formData	string	true	"JSON-encoded post fields"
//	@Param			photos	formData	file	false	"Photo files"
//	@Success		201		{object}	detailBody
//	@Failure		400		{object}	response.ErrorBody
//	@Failure		409		{object}	response.ErrorBody
//	@Failure		500		{object}	response.ErrorBody
//	@Router			/posts [post]
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	identity, ok := middleware.IdentityFrom(r.Context())
	if !ok {
		response.Unauthorized(w, "authentication required")
		return
	}

	if err := r.ParseMultipartForm(uploads.MaxPhotoCount * uploads.MaxFileSize); err != nil {
		response.BadRequest(w, "invalid multipart form")
		return
	}

	var payload createPostPayload
	if err := json.Unmarshal([]byte(r.FormValue("payload")), &payload); err != nil {
		response.BadRequest(w, "payload must be valid JSON")
		return
	}

	var photos []uploads.FileSource
	if r.MultipartForm != nil {
		for _, fh := range r.MultipartForm.File["photos"] {
			photos = append(photos, uploads.MultipartSource(fh))
		}
	}

	recipe, tags := recipeInput(payload.Recipe)
	created, _, err := h.svc.Create(r.Context(), identity.FamilySpaceID, identity.UserID, CreateInput{
		Title:   payload.Title,
		Caption: payload.Caption,
		Recipe:  recipe,
		Tags:    tags,
	}, photos)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	detail, err := h.svc.GetDetail(r.Context(), identity.FamilySpaceID, identity.UserID, identity.Role, created.ID, 0, 0)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	response.Created(w, h.detailBody(r.Context(), h.media.NewResolver(), detail))
}

// List godoc
//
//	@Summary		List posts
//	@Description	Newest posts of the family space, paginated with limit/offset.
//	@Tags			posts
//	@Produce		json
//	@Security		BearerAuth
//	@Param			limit	query		int	false	"Page size (max 100)"
//	@Param			offset	query		int	false	"Offset"
//	@Success		200		{object}	map[string]interface{}
//	@Failure		401		{object}	response.ErrorBody
//	@Failure		500		{object}	response.ErrorBody
//	@Router			/posts [get]
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	identity, ok := middleware.IdentityFrom(r.Context())
	if !ok {
		response.Unauthorized(w, "authentication required")
		return
	}

	posts, page, err := h.svc.List(r.Context(), identity.FamilySpaceID, queryInt(r, "limit"), queryInt(r, "offset"))
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	resolver := h.media.NewResolver()
	items := make([]summaryBody, 0, len(posts))
	for _, p := range posts {
		items = append(items, h.summaryBody(r.Context(), resolver, p))
	}
	response.OK(w, map[string]interface{}{
		"posts":      items,
		"hasMore":    page.HasMore,
		"nextOffset": page.NextOffset,
	})
}

// ListFavorites godoc
//
//	@Summary		List favorites
//	@Description	Posts the authenticated user has favorited, newest favorite first.
//	@Tags			me
//	@Produce		json
//	@Security		BearerAuth
//	@Param			limit	query		int	false	"Page size (max 100)"
//	@Param			offset	query		int	false	"Offset"
//	@Success		200		{object}	map[string]interface{}
//	@Failure		401		{object}	response.ErrorBody
//	@Failure		500		{object}	response.ErrorBody
//	@Router			/me/favorites [get]
func (h *Handler) ListFavorites(w http.ResponseWriter, r *http.Request) {
	identity, ok := middleware.IdentityFrom(r.Context())
	if !ok {
		response.Unauthorized(w, "authentication required")
		return
	}

	posts, page, err := h.svc.ListFavorites(r.Context(), identity.FamilySpaceID, identity.UserID, queryInt(r, "limit"), queryInt(r, "offset"))
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	resolver := h.media.NewResolver()
	items := make([]summaryBody, 0, len(posts))
	for _, p := range posts {
		items = append(items, h.summaryBody(r.Context(), resolver, p))
	}
	response.OK(w, map[string]interface{}{
		"posts":      items,
		"hasMore":    page.HasMore,
		"nextOffset": page.NextOffset,
	})
}

// Get godoc
//
//	@Summary		Get post
//	@Description	A post with photos, recipe, tags, favorite flag and cooked feed.
//	@Tags			posts
//	@Produce		json
//	@Security		BearerAuth
//	@Param			id				path		string	true	"Post ID"
//	@Param			cookedLimit		query		int		false	"Cooked feed page size (max 50)"
//	@Param			cookedOffset	query		int		false	"Cooked feed offset"
//	@Success		200				{object}	map[string]interface{}
//	@Failure		404				{object}	response.ErrorBody
//	@Failure		500				{object}	response.ErrorBody
//	@Router			/posts/{id} [get]
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	identity, ok := middleware.IdentityFrom(r.Context())
	if !ok {
		response.Unauthorized(w, "authentication required")
		return
	}

	detail, err := h.svc.GetDetail(r.Context(), identity.FamilySpaceID, identity.UserID, identity.Role,
		chi.URLParam(r, "id"), queryInt(r, "cookedLimit"), queryInt(r, "cookedOffset"))
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	response.OK(w, map[string]interface{}{
		"post":    h.detailBody(r.Context(), h.media.NewResolver(), detail),
		"canEdit": detail.CanEdit,
	})
}

// Update godoc
//
//	@Summary		Update post
//	@Description	Edit title, caption, recipe and tags. Author or owner/admin only.
//	@Tags			posts
//	@Accept			json
//	@Produce		json
//	@Security		BearerAuth
//	@Param			id		path		string				true	"Post ID"
//	@Param			request	body		updatePostPayload	true	"Fields to change"
//	@Success		200		{object}	map[string]interface{}
//	@Failure		400		{object}	response.ErrorBody
//	@Failure		403		{object}	response.ErrorBody
//	@Failure		404		{object}	response.ErrorBody
//	@Failure		500		{object}	response.ErrorBody
//	@Router			/posts/{id} [patch]
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	identity, ok := middleware.IdentityFrom(r.Context())
	if !ok {
		response.Unauthorized(w, "authentication required")
		return
	}

	var payload updatePostPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		response.BadRequest(w, "invalid request body")
		return
	}

	recipe, tags := recipeInput(payload.Recipe)
	_, err := h.svc.Update(r.Context(), identity.FamilySpaceID, identity.UserID, identity.Role,
		chi.URLParam(r, "id"), UpdateInput{
			Title:      payload.Title,
			Caption:    payload.Caption,
			Recipe:     recipe,
			Tags:       tags,
			ChangeNote: payload.ChangeNote,
		})
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	detail, err := h.svc.GetDetail(r.Context(), identity.FamilySpaceID, identity.UserID, identity.Role,
		chi.URLParam(r, "id"), 0, 0)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	response.OK(w, map[string]interface{}{
		"post":    h.detailBody(r.Context(), h.media.NewResolver(), detail),
		"canEdit": detail.CanEdit,
	})
}

// Delete godoc
//
//	@Summary		Delete post
//	@Description	Remove a post, its photos and comments. Author or owner/admin only.
//	@Tags			posts
//	@Produce		json
//	@Security		BearerAuth
//	@Param			id	path		string	true	"Post ID"
//	@Success		200	{object}	map[string]string
//	@Failure		403	{object}	response.ErrorBody
//	@Failure		404	{object}	response.ErrorBody
//	@Failure		500	{object}	response.ErrorBody
//	@Router			/posts/{id} [delete]
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	identity, ok := middleware.IdentityFrom(r.Context())
	if !ok {
		response.Unauthorized(w, "authentication required")
		return
	}

	if err := h.svc.Delete(r.Context(), identity.FamilySpaceID, identity.UserID, identity.Role, chi.URLParam(r, "id")); err != nil {
		h.writeServiceError(w, err)
		return
	}
	response.OK(w, map[string]string{"message": "post deleted"})
}

// Favorite godoc
//
//	@Summary		Favorite post
//	@Tags			posts
//	@Produce		json
//	@Security		BearerAuth
//	@Param			id	path		string	true	"Post ID"
//	@Success		200	{object}	map[string]bool
//	@Failure		404	{object}	response.ErrorBody
//	@Router			/posts/{id}/favorite [put]
func (h *Handler) Favorite(w http.ResponseWriter, r *http.Request) {
	identity, ok := middleware.IdentityFrom(r.Context())
	if !ok {
		response.Unauthorized(w, "authentication required")
		return
	}
	if err := h.svc.Favorite(r.Context(), identity.FamilySpaceID, identity.UserID, chi.URLParam(r, "id")); err != nil {
		h.writeServiceError(w, err)
		return
	}
	response.OK(w, map[string]bool{"favorited": true})
}

// Unfavorite godoc
//
//	@Summary		Unfavorite post
//	@Tags			posts
//	@Produce		json
//	@Security		BearerAuth
//	@Param			id	path		string	true	"Post ID"
//	@Success		200	{object}	map[string]bool
//	@Failure		404	{object}	response.ErrorBody
//	@Router			/posts/{id}/favorite [delete]
func (h *Handler) Unfavorite(w http.ResponseWriter, r *http.Request) {
	identity, ok := middleware.IdentityFrom(r.Context())
	if !ok {
		response.Unauthorized(w, "authentication required")
		return
	}
	if err := h.svc.Unfavorite(r.Context(), identity.FamilySpaceID, identity.UserID, chi.URLParam(r, "id")); err != nil {
		h.writeServiceError(w, err)
		return
	}
	response.OK(w, map[string]bool{"favorited": false})
}

// LogCooked godoc
//
//	@Summary		Log cooked
//	@Description	Record that the caller cooked this dish, optionally with a 1-5 rating and note.
//	@Tags			posts
//	@Accept			json
//	@Produce		json
//	@Security		BearerAuth
//	@Param			id		path		string			true	"Post ID"
//	@Param			request	body		cookedPayload	true	"Rating and note"
//	@Success		200		{object}	map[string]interface{}
//	@Failure		400		{object}	response.ErrorBody
//	@Failure		404		{object}	response.ErrorBody
//	@Router			/posts/{id}/cooked [post]
func (h *Handler) LogCooked(w http.ResponseWriter, r *http.Request) {
	identity, ok := middleware.IdentityFrom(r.Context())
	if !ok {
		response.Unauthorized(w, "authentication required")
		return
	}

	var payload cookedPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		response.BadRequest(w, "invalid request body")
		return
	}

	result, err := h.svc.LogCooked(r.Context(), identity.FamilySpaceID, identity.UserID,
		chi.URLParam(r, "id"), CookedInput{Rating: payload.Rating, Note: payload.Note})
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	resolver := h.media.NewResolver()
	response.OK(w, map[string]interface{}{
		"cookedStats":      result.Stats,
		"recentCooked":     h.cookedBodies(r.Context(), resolver, result.Recent),
		"recentCookedPage": result.Page,
	})
}

// ListCooked godoc
//
//	@Summary		List cooked events
//	@Tags			posts
//	@Produce		json
//	@Security		BearerAuth
//	@Param			id		path		string	true	"Post ID"
//	@Param			limit	query		int		false	"Page size (max 50)"
//	@Param			offset	query		int		false	"Offset"
//	@Success		200		{object}	map[string]interface{}
//	@Failure		404		{object}	response.ErrorBody
//	@Router			/posts/{id}/cooked [get]
func (h *Handler) ListCooked(w http.ResponseWriter, r *http.Request) {
	identity, ok := middleware.IdentityFrom(r.Context())
	if !ok {
		response.Unauthorized(w, "authentication required")
		return
	}

	events, page, err := h.svc.ListCooked(r.Context(), identity.FamilySpaceID,
		chi.URLParam(r, "id"), queryInt(r, "limit"), queryInt(r, "offset"))
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	resolver := h.media.NewResolver()
	response.OK(w, map[string]interface{}{
		"cookedEvents": h.cookedBodies(r.Context(), resolver, events),
		"hasMore":      page.HasMore,
		"nextOffset":   page.NextOffset,
	})
}

type recipeHitBody struct {
	ID            string      `json:"id"`
	Title         string      `json:"title"`
	MainPhotoURL  string      `json:"mainPhotoUrl"`
	Author        actorBody   `json:"author"`
	Courses       []string    `json:"courses"`
	PrimaryCourse *string     `json:"primaryCourse"`
	Difficulty    *string     `json:"difficulty"`
	Tags          []string    `json:"tags"`
	TotalTime     *int        `json:"totalTime"`
	Servings      *int        `json:"servings"`
	CookedStats   CookedStats `json:"cookedStats"`
}

type minePostBody struct {
	ID           string      `json:"id"`
	Title        string      `json:"title"`
	MainPhotoURL string      `json:"mainPhotoUrl"`
	CreatedAt    string      `json:"createdAt"`
	CookedStats  CookedStats `json:"cookedStats"`
}

type myCookedPostBody struct {
	ID           string `json:"id"`
	Title        string `json:"title"`
	MainPhotoURL string `json:"mainPhotoUrl"`
}

type myCookedBody struct {
	ID        string           `json:"id"`
	Rating    *int             `json:"rating"`
	Note      *string          `json:"note"`
	CreatedAt string           `json:"createdAt"`
	Post      myCookedPostBody `json:"post"`
}

func queryIntPtr(r *http.Request, name string) *int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return nil
	}
	return &v
}

// SearchRecipes godoc
//
//	@Summary		Browse recipes
//	@Description	Posts with recipe details, filtered by title, course, tags, difficulty, author, time, servings or ingredients.
//	@Tags			recipes
//	@Produce		json
//	@Security		BearerAuth
//	@Param			q			query		string	false	"Title search"
//	@Param			course		query		[]string	false	"Course filter"
//	@Param			tags		query		[]string	false	"Tag filter"
//	@Param			difficulty	query		[]string	false	"Difficulty filter"
//	@Param			authorId	query		[]string	false	"Author filter"
//	@Param			sort		query		string	false	"recent or alpha"
//	@Param			limit		query		int		false	"Page size (max 100)"
//	@Param			offset		query		int		false	"Offset"
//	@Success		200			{object}	map[string]interface{}
//	@Failure		500			{object}	response.ErrorBody
//	@Router			/recipes [get]
func (h *Handler) SearchRecipes(w http.ResponseWriter, r *http.Request) {
	identity, ok := middleware.IdentityFrom(r.Context())
	if !ok {
		response.Unauthorized(w, "authentication required")
		return
	}

	q := r.URL.Query()
	filter := SearchFilter{
		Query:        q.Get("q"),
		Courses:      q["course"],
		Tags:         q["tags"],
		Difficulties: q["difficulty"],
		AuthorIDs:    q["authorId"],
		TotalTimeMin: queryIntPtr(r, "totalTimeMin"),
		TotalTimeMax: queryIntPtr(r, "totalTimeMax"),
		ServingsMin:  queryIntPtr(r, "servingsMin"),
		ServingsMax:  queryIntPtr(r, "servingsMax"),
		Ingredients:  q["ingredients"],
		Sort:         q.Get("sort"),
	}

	hits, page, err := h.svc.SearchRecipes(r.Context(), identity.FamilySpaceID, filter,
		queryInt(r, "limit"), queryInt(r, "offset"))
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	resolver := h.media.NewResolver()
	items := make([]recipeHitBody, 0, len(hits))
	for _, hit := range hits {
		p := hit.Post
		item := recipeHitBody{
			ID:           p.ID,
			Title:        p.Title,
			MainPhotoURL: resolveKey(r.Context(), resolver, p.MainPhotoKey),
			Author: actorBody{
				ID:        p.AuthorID,
				Name:      p.AuthorName,
				AvatarURL: resolveKey(r.Context(), resolver, p.AuthorAvatarKey),
			},
			Courses:     []string{},
			Tags:        hit.Tags,
			CookedStats: hit.Stats,
		}
		if p.Recipe != nil {
			if len(p.Recipe.Courses) > 0 {
				item.Courses = p.Recipe.Courses
				item.PrimaryCourse = &p.Recipe.Courses[0]
			}
			item.Difficulty = p.Recipe.Difficulty
			item.TotalTime = p.Recipe.TotalTime
			item.Servings = p.Recipe.Servings
		}
		if item.Tags == nil {
			item.Tags = []string{}
		}
		items = append(items, item)
	}
	response.OK(w, map[string]interface{}{
		"items":      items,
		"hasMore":    page.HasMore,
		"nextOffset": page.NextOffset,
	})
}

// ListMine godoc
//
//	@Summary		List my posts
//	@Tags			profile
//	@Produce		json
//	@Security		BearerAuth
//	@Param			limit	query		int	false	"Page size (max 100)"
//	@Param			offset	query		int	false	"Offset"
//	@Success		200		{object}	map[string]interface{}
//	@Failure		500		{object}	response.ErrorBody
//	@Router			/me/posts [get]
func (h *Handler) ListMine(w http.ResponseWriter, r *http.Request) {
	identity, ok := middleware.IdentityFrom(r.Context())
	if !ok {
		response.Unauthorized(w, "authentication required")
		return
	}

	posts, stats, page, err := h.svc.ListMine(r.Context(), identity.FamilySpaceID, identity.UserID,
		queryInt(r, "limit"), queryInt(r, "offset"))
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	resolver := h.media.NewResolver()
	items := make([]minePostBody, 0, len(posts))
	for _, p := range posts {
		items = append(items, minePostBody{
			ID:           p.ID,
			Title:        p.Title,
			MainPhotoURL: resolveKey(r.Context(), resolver, p.MainPhotoKey),
			CreatedAt:    isoTime(p.CreatedAt),
			CookedStats:  stats[p.ID],
		})
	}
	response.OK(w, map[string]interface{}{
		"items":      items,
		"hasMore":    page.HasMore,
		"nextOffset": page.NextOffset,
	})
}

// ListMyCooked godoc
//
//	@Summary		List my cooked history
//	@Tags			profile
//	@Produce		json
//	@Security		BearerAuth
//	@Param			limit	query		int	false	"Page size (max 100)"
//	@Param			offset	query		int	false	"Offset"
//	@Success		200		{object}	map[string]interface{}
//	@Failure		500		{object}	response.ErrorBody
//	@Router			/me/cooked [get]
func (h *Handler) ListMyCooked(w http.ResponseWriter, r *http.Request) {
	identity, ok := middleware.IdentityFrom(r.Context())
	if !ok {
		response.Unauthorized(w, "authentication required")
		return
	}

	events, page, err := h.svc.ListMyCooked(r.Context(), identity.FamilySpaceID, identity.UserID,
		queryInt(r, "limit"), queryInt(r, "offset"))
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	resolver := h.media.NewResolver()
	items := make([]myCookedBody, 0, len(events))
	for _, e := range events {
		items = append(items, myCookedBody{
			ID:        e.ID,
			Rating:    e.Rating,
			Note:      e.Note,
			CreatedAt: isoTime(e.CreatedAt),
			Post: myCookedPostBody{
				ID:           e.PostID,
				Title:        e.PostTitle,
				MainPhotoURL: resolveKey(r.Context(), resolver, e.PostMainPhotoKey),
			},
		})
	}
	response.OK(w, map[string]interface{}{
		"items":      items,
		"hasMore":    page.HasMore,
		"nextOffset": page.NextOffset,
	})
}
