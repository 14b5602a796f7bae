package comment

import (
	"context"
	"errors"
	"strings"

	"github.com/hearthshare/service/internal/permission"
	"github.com/hearthshare/service/internal/post"
	"github.com/hearthshare/service/internal/uploads"
)

const (
	maxTextLength = 2000

	defaultPageLimit = 20
	maxPageLimit     = 50
)

// ErrForbidden is returned when the caller may not delete a comment.
var ErrForbidden = errors.New("not allowed to delete this comment")

// ErrEmptyText is returned when a comment has no text.
var ErrEmptyText = errors.New("comment text is required")

// ErrTextTooLong is returned when a comment exceeds the length limit.
var ErrTextTooLong = errors.New("comment text is too long")

// Page describes an offset page cursor.
type Page struct {
	HasMore    bool `json:"hasMore"`
	NextOffset int  `json:"nextOffset"`
}

// Service contains the business logic for comments.
type Service struct {
	repo  *Repository
	posts *post.Repository
	media *uploads.Media
}

// NewService creates a new comment Service.
func NewService(repo *Repository, posts *post.Repository, media *uploads.Media) *Service {
	return &Service{repo: repo, posts: posts, media: media}
}

// List returns one page of a post's comments in chronological order.
func (s *Service) List(ctx context.Context, familySpaceID, postID string, limit, offset int) ([]*Comment, Page, error) {
	if _, err := s.posts.GetByID(ctx, familySpaceID, postID); err != nil {
		return nil, Page{}, err
	}
	if limit <= 0 {
		limit = defaultPageLimit
	}
	if limit > maxPageLimit {
		limit = maxPageLimit
	}
	if offset < 0 {
		offset = 0
	}

	comments, err := s.repo.ListByPost(ctx, familySpaceID, postID, limit+1, offset)
	if err != nil {
		return nil, Page{}, err
	}
	hasMore := len(comments) > limit
	if hasMore {
		comments = comments[:limit]
	}

	// Newest-first from the database, oldest-first on the page.
	for i, j := 0, len(comments)-1; i < j; i, j = i+1, j-1 {
		comments[i], comments[j] = comments[j], comments[i]
	}
	return comments, Page{HasMore: hasMore, NextOffset: offset + len(comments)}, nil
}

// Create validates the text, stores the optional photo and inserts the
// comment. An already-stored photo is removed again when the insert fails.
func (s *Service) Create(ctx context.Context, familySpaceID, authorID, postID, text string, photo uploads.FileSource) (*Comment, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyText
	}
	if len(text) > maxTextLength {
		return nil, ErrTextTooLong
	}
	if _, err := s.posts.GetByID(ctx, familySpaceID, postID); err != nil {
		return nil, err
	}

	var photoKey *string
	var photoRef string
	if photo != nil {
		result, err := s.media.Save(ctx, photo)
		if err != nil {
			return nil, err
		}
		photoKey = &result.StorageKey
		photoRef = result.FilePath
	}

	c, err := s.repo.Create(ctx, postID, authorID, text, photoKey)
	if err != nil {
		if photoRef != "" {
			s.media.DeleteAll(ctx, []string{photoRef})
		}
		return nil, err
	}
	return c, nil
}

// Delete removes a comment. Only the author or an owner/admin may delete;
// the attached photo is cleaned up best-effort.
func (s *Service) Delete(ctx context.Context, familySpaceID, userID, role, commentID string) error {
	c, err := s.repo.GetInSpace(ctx, familySpaceID, commentID)
	if err != nil {
		return err
	}
	if !permission.CanDeleteComment(userID, role, c.AuthorID) {
		return ErrForbidden
	}
	if err := s.repo.Delete(ctx, commentID); err != nil {
		return err
	}
	if c.PhotoKey != nil {
		s.media.DeleteAll(ctx, []string{*c.PhotoKey})
	}
	return nil
}
