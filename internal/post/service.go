package post

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/hearthshare/service/internal/permission"
	"github.com/hearthshare/service/internal/uploads"
)

const (
	maxTitleLength      = 200
	maxChangeNoteLength = 280

	defaultPageLimit   = 20
	maxPageLimit       = 100
	defaultCookedLimit = 5
	maxDetailLimit     = 50

	maxSearchQueryLength = 200
	maxSearchIngredients = 5
)

// ErrForbidden is returned when the caller may not edit or delete a post.
var ErrForbidden = errors.New("not allowed to modify this post")

// ErrInvalidInput is returned for payloads that fail validation; the wrapped
// message is safe to show to clients.
var ErrInvalidInput = errors.New("invalid input")

var courseValues = map[string]bool{
	"breakfast": true,
	"lunch":     true,
	"dinner":    true,
	"dessert":   true,
	"snack":     true,
	"other":     true,
}

var difficultyValues = map[string]bool{
	"easy":   true,
	"medium": true,
	"hard":   true,
}

// CreateInput carries the fields of a new post.
type CreateInput struct {
	Title   string
	Caption *string
	Recipe  *Recipe
	Tags    []string
}

// UpdateInput carries the fields of a post edit. Nil pointers leave the
// current value in place; Recipe and Tags always replace.
type UpdateInput struct {
	Title      *string
	Caption    *string
	Recipe     *Recipe
	Tags       []string
	ChangeNote *string
}

// CookedInput is one cooked-it log entry.
type CookedInput struct {
	Rating *int
	Note   *string
}

// Page describes an offset page cursor.
type Page struct {
	HasMore    bool `json:"hasMore"`
	NextOffset int  `json:"nextOffset"`
}

// Service contains the business logic for posts.
type Service struct {
	repo  *Repository
	media *uploads.Media
}

// NewService creates a new post Service.
func NewService(repo *Repository, media *uploads.Media) *Service {
	return &Service{repo: repo, media: media}
}

func invalid(msg string) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, msg)
}

func validateTitle(title string) (string, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return "", invalid("title is required")
	}
	if len(title) > maxTitleLength {
		return "", invalid("title must be at most 200 characters")
	}
	return title, nil
}

func validateRecipe(r *Recipe) error {
	if r == nil {
		return nil
	}
	for _, ing := range r.Ingredients {
		if strings.TrimSpace(ing.Name) == "" {
			return invalid("ingredient name is required")
		}
	}
	for _, step := range r.Steps {
		if strings.TrimSpace(step.Text) == "" {
			return invalid("step text is required")
		}
	}
	if r.TotalTime != nil && (*r.TotalTime < 0 || *r.TotalTime > 720) {
		return invalid("totalTime must be between 0 and 720 minutes")
	}
	if r.Servings != nil && (*r.Servings < 1 || *r.Servings > 50) {
		return invalid("servings must be between 1 and 50")
	}
	for _, c := range r.Courses {
		if !courseValues[c] {
			return invalid("unknown course value")
		}
	}
	return nil
}

func clampLimit(v, def, max int) int {
	if v <= 0 {
		return def
	}
	if v > max {
		return max
	}
	return v
}

// Create validates the input, stores the uploaded photos and inserts the post.
// Photos already persisted are removed again when the insert fails.
func (s *Service) Create(ctx context.Context, familySpaceID, authorID string, in CreateInput, photos []uploads.FileSource) (*Post, []Photo, error) {
	title, err := validateTitle(in.Title)
	if err != nil {
		return nil, nil, err
	}
	if err := validateRecipe(in.Recipe); err != nil {
		return nil, nil, err
	}
	if len(photos) > uploads.MaxPhotoCount {
		return nil, nil, invalid("you can upload up to 10 photos")
	}

	tagIDs, err := s.repo.ResolveTagIDs(ctx, in.Tags)
	if err != nil {
		return nil, nil, err
	}

	var saved []string
	var savedRefs []string
	for _, src := range photos {
		result, err := s.media.Save(ctx, src)
		if err != nil {
			s.media.DeleteAll(ctx, savedRefs)
			return nil, nil, err
		}
		saved = append(saved, result.StorageKey)
		savedRefs = append(savedRefs, result.FilePath)
	}

	created, err := s.repo.Create(ctx, &Post{
		FamilySpaceID: familySpaceID,
		AuthorID:      authorID,
		Title:         title,
		Caption:       in.Caption,
		Recipe:        in.Recipe,
	}, saved, tagIDs)
	if err != nil {
		s.media.DeleteAll(ctx, savedRefs)
		return nil, nil, err
	}

	photoRows, err := s.repo.Photos(ctx, created.ID)
	if err != nil {
		return nil, nil, err
	}
	return created, photoRows, nil
}

// List returns one timeline page of a space's posts.
func (s *Service) List(ctx context.Context, familySpaceID string, limit, offset int) ([]*Post, Page, error) {
	limit = clampLimit(limit, defaultPageLimit, maxPageLimit)
	if offset < 0 {
		offset = 0
	}
	posts, err := s.repo.List(ctx, familySpaceID, limit+1, offset)
	if err != nil {
		return nil, Page{}, err
	}
	return pagePosts(posts, limit, offset)
}

// ListFavorites returns one page of the caller's favorited posts.
func (s *Service) ListFavorites(ctx context.Context, familySpaceID, userID string, limit, offset int) ([]*Post, Page, error) {
	limit = clampLimit(limit, defaultPageLimit, maxPageLimit)
	if offset < 0 {
		offset = 0
	}
	posts, err := s.repo.ListFavorites(ctx, familySpaceID, userID, limit+1, offset)
	if err != nil {
		return nil, Page{}, err
	}
	return pagePosts(posts, limit, offset)
}

func pagePosts(posts []*Post, limit, offset int) ([]*Post, Page, error) {
	hasMore := len(posts) > limit
	if hasMore {
		posts = posts[:limit]
	}
	return posts, Page{HasMore: hasMore, NextOffset: offset + len(posts)}, nil
}

// Detail bundles everything the post page needs.
type Detail struct {
	Post        *Post
	Photos      []Photo
	Tags        []string
	IsFavorited bool
	CookedStats *CookedStats
	Cooked      []CookedEvent
	CookedPage  Page
	CanEdit     bool
}

// GetDetail loads a post with its photos, tags, favorite flag and cooked feed.
func (s *Service) GetDetail(ctx context.Context, familySpaceID, userID, role, postID string, cookedLimit, cookedOffset int) (*Detail, error) {
	p, err := s.repo.GetByID(ctx, familySpaceID, postID)
	if err != nil {
		return nil, err
	}

	cookedLimit = clampLimit(cookedLimit, defaultCookedLimit, maxDetailLimit)
	if cookedOffset < 0 {
		cookedOffset = 0
	}

	photos, err := s.repo.Photos(ctx, postID)
	if err != nil {
		return nil, err
	}
	tags, err := s.repo.TagNames(ctx, postID)
	if err != nil {
		return nil, err
	}
	favorited, err := s.repo.IsFavorited(ctx, userID, postID)
	if err != nil {
		return nil, err
	}
	stats, err := s.repo.GetCookedStats(ctx, postID)
	if err != nil {
		return nil, err
	}
	cooked, err := s.repo.RecentCooked(ctx, postID, cookedLimit+1, cookedOffset)
	if err != nil {
		return nil, err
	}
	hasMore := len(cooked) > cookedLimit
	if hasMore {
		cooked = cooked[:cookedLimit]
	}

	return &Detail{
		Post:        p,
		Photos:      photos,
		Tags:        tags,
		IsFavorited: favorited,
		CookedStats: stats,
		Cooked:      cooked,
		CookedPage:  Page{HasMore: hasMore, NextOffset: cookedOffset + len(cooked)},
		CanEdit:     permission.CanEditPost(userID, role, p.AuthorID),
	}, nil
}

// Update applies an edit to a post. Only the author or an owner/admin may
// edit.
func (s *Service) Update(ctx context.Context, familySpaceID, userID, role, postID string, in UpdateInput) (*Post, error) {
	p, err := s.repo.GetByID(ctx, familySpaceID, postID)
	if err != nil {
		return nil, err
	}
	if !permission.CanEditPost(userID, role, p.AuthorID) {
		return nil, ErrForbidden
	}

	if in.Title != nil {
		title, err := validateTitle(*in.Title)
		if err != nil {
			return nil, err
		}
		p.Title = title
	}
	if in.Caption != nil {
		p.Caption = in.Caption
	}
	if err := validateRecipe(in.Recipe); err != nil {
		return nil, err
	}
	p.Recipe = in.Recipe

	if in.ChangeNote != nil {
		note := strings.TrimSpace(*in.ChangeNote)
		if len(note) > maxChangeNoteLength {
			return nil, invalid("changeNote must be at most 280 characters")
		}
		if note != "" {
			p.LastEditNote = &note
		} else {
			p.LastEditNote = nil
		}
	} else {
		p.LastEditNote = nil
	}
	p.EditorID = &userID

	tagIDs, err := s.repo.ResolveTagIDs(ctx, in.Tags)
	if err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, p, tagIDs, true); err != nil {
		return nil, err
	}
	return s.repo.GetByID(ctx, familySpaceID, postID)
}

// Delete removes a post and cleans up its photos best-effort.
func (s *Service) Delete(ctx context.Context, familySpaceID, userID, role, postID string) error {
	p, err := s.repo.GetByID(ctx, familySpaceID, postID)
	if err != nil {
		return err
	}
	if !permission.CanEditPost(userID, role, p.AuthorID) {
		return ErrForbidden
	}

	keys, err := s.repo.Delete(ctx, familySpaceID, postID)
	if err != nil {
		return err
	}
	if len(keys) > 0 {
		s.media.DeleteAll(ctx, keys)
		log.Info().Str("post_id", postID).Int("photos", len(keys)).Msg("post deleted")
	}
	return nil
}

// Favorite marks a post as favorited for the caller. Idempotent.
func (s *Service) Favorite(ctx context.Context, familySpaceID, userID, postID string) error {
	if _, err := s.repo.GetByID(ctx, familySpaceID, postID); err != nil {
		return err
	}
	return s.repo.Favorite(ctx, userID, postID)
}

// Unfavorite removes the caller's favorite. Idempotent.
func (s *Service) Unfavorite(ctx context.Context, familySpaceID, userID, postID string) error {
	if _, err := s.repo.GetByID(ctx, familySpaceID, postID); err != nil {
		return err
	}
	return s.repo.Unfavorite(ctx, userID, postID)
}

// CookedResult bundles the refreshed cooked feed after logging an event.
type CookedResult struct {
	Stats  *CookedStats
	Recent []CookedEvent
	Page   Page
}

// LogCooked records a cooked event and returns the refreshed stats.
func (s *Service) LogCooked(ctx context.Context, familySpaceID, userID, postID string, in CookedInput) (*CookedResult, error) {
	if in.Rating != nil && (*in.Rating < 1 || *in.Rating > 5) {
		return nil, invalid("rating must be between 1 and 5")
	}
	if _, err := s.repo.GetByID(ctx, familySpaceID, postID); err != nil {
		return nil, err
	}
	if err := s.repo.AddCooked(ctx, postID, userID, in.Rating, in.Note); err != nil {
		return nil, err
	}

	stats, err := s.repo.GetCookedStats(ctx, postID)
	if err != nil {
		return nil, err
	}
	recent, err := s.repo.RecentCooked(ctx, postID, defaultCookedLimit+1, 0)
	if err != nil {
		return nil, err
	}
	hasMore := len(recent) > defaultCookedLimit
	if hasMore {
		recent = recent[:defaultCookedLimit]
	}
	return &CookedResult{
		Stats:  stats,
		Recent: recent,
		Page:   Page{HasMore: hasMore, NextOffset: len(recent)},
	}, nil
}

// ListCooked returns one page of a post's cooked events.
func (s *Service) ListCooked(ctx context.Context, familySpaceID, postID string, limit, offset int) ([]CookedEvent, Page, error) {
	if _, err := s.repo.GetByID(ctx, familySpaceID, postID); err != nil {
		return nil, Page{}, err
	}
	limit = clampLimit(limit, defaultCookedLimit, maxDetailLimit)
	if offset < 0 {
		offset = 0
	}
	events, err := s.repo.RecentCooked(ctx, postID, limit+1, offset)
	if err != nil {
		return nil, Page{}, err
	}
	hasMore := len(events) > limit
	if hasMore {
		events = events[:limit]
	}
	return events, Page{HasMore: hasMore, NextOffset: offset + len(events)}, nil
}

func dedupe(values []string) []string {
	var out []string
	seen := make(map[string]bool, len(values))
	for _, v := range values {
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}

func filterAllowed(values []string, allowed map[string]bool) []string {
	var out []string
	for _, v := range dedupe(values) {
		if allowed[v] {
			out = append(out, v)
		}
	}
	return out
}

func normalizeSearchFilter(f SearchFilter) SearchFilter {
	f.Query = strings.TrimSpace(f.Query)
	if len(f.Query) > maxSearchQueryLength {
		f.Query = f.Query[:maxSearchQueryLength]
	}
	f.Courses = filterAllowed(f.Courses, courseValues)
	f.Difficulties = filterAllowed(f.Difficulties, difficultyValues)
	f.Tags = dedupe(f.Tags)
	f.AuthorIDs = dedupe(f.AuthorIDs)
	f.Ingredients = dedupe(f.Ingredients)
	if len(f.Ingredients) > maxSearchIngredients {
		f.Ingredients = f.Ingredients[:maxSearchIngredients]
	}
	if f.Sort != "alpha" {
		f.Sort = "recent"
	}
	return f
}

// RecipeHit is one recipe browse result with its tags and cooked stats.
type RecipeHit struct {
	Post  *Post
	Tags  []string
	Stats CookedStats
}

// SearchRecipes returns one page of the space's recipes matching the filter.
func (s *Service) SearchRecipes(ctx context.Context, familySpaceID string, f SearchFilter, limit, offset int) ([]RecipeHit, Page, error) {
	f = normalizeSearchFilter(f)
	limit = clampLimit(limit, defaultPageLimit, maxPageLimit)
	if offset < 0 {
		offset = 0
	}

	posts, err := s.repo.SearchRecipes(ctx, familySpaceID, f, limit+1, offset)
	if err != nil {
		return nil, Page{}, err
	}
	posts, page, err := pagePosts(posts, limit, offset)
	if err != nil {
		return nil, Page{}, err
	}

	ids := make([]string, len(posts))
	for i, p := range posts {
		ids[i] = p.ID
	}
	stats, err := s.repo.CookedStatsFor(ctx, ids)
	if err != nil {
		return nil, Page{}, err
	}
	tags, err := s.repo.TagNamesFor(ctx, ids)
	if err != nil {
		return nil, Page{}, err
	}

	hits := make([]RecipeHit, len(posts))
	for i, p := range posts {
		hits[i] = RecipeHit{Post: p, Tags: tags[p.ID], Stats: stats[p.ID]}
	}
	return hits, page, nil
}

// ListMine returns one page of the caller's own posts with their cooked stats.
func (s *Service) ListMine(ctx context.Context, familySpaceID, userID string, limit, offset int) ([]*Post, map[string]CookedStats, Page, error) {
	limit = clampLimit(limit, defaultPageLimit, maxPageLimit)
	if offset < 0 {
		offset = 0
	}
	posts, err := s.repo.ListByAuthor(ctx, familySpaceID, userID, limit+1, offset)
	if err != nil {
		return nil, nil, Page{}, err
	}
	posts, page, err := pagePosts(posts, limit, offset)
	if err != nil {
		return nil, nil, Page{}, err
	}

	ids := make([]string, len(posts))
	for i, p := range posts {
		ids[i] = p.ID
	}
	stats, err := s.repo.CookedStatsFor(ctx, ids)
	if err != nil {
		return nil, nil, Page{}, err
	}
	return posts, stats, page, nil
}

// ListMyCooked returns one page of the caller's cooked history.
func (s *Service) ListMyCooked(ctx context.Context, familySpaceID, userID string, limit, offset int) ([]UserCookedEvent, Page, error) {
	limit = clampLimit(limit, defaultPageLimit, maxPageLimit)
	if offset < 0 {
		offset = 0
	}
	events, err := s.repo.ListCookedByUser(ctx, familySpaceID, userID, limit+1, offset)
	if err != nil {
		return nil, Page{}, err
	}
	hasMore := len(events) > limit
	if hasMore {
		events = events[:limit]
	}
	return events, Page{HasMore: hasMore, NextOffset: offset + len(events)}, nil
}

// IsNotFound reports whether err means the post does not exist.
func (s *Service) IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
