// Package tag serves the shared tag vocabulary posts can be labeled with.
package tag

import (
	"context"
	"fmt"
	"net/http"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hearthshare/service/internal/response"
)

// Tag is one entry in the vocabulary.
type Tag struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Repository provides tag persistence backed by Postgres.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates a new tag Repository.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// List returns all tags sorted by name.
func (r *Repository) List(ctx context.Context) ([]Tag, error) {
	rows, err := r.db.Query(ctx, `SELECT id, name FROM tags ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list tags: %w", err)
	}
	defer rows.Close()

	tags := []Tag{}
	for rows.Next() {
		var t Tag
		if err := rows.Scan(&t.ID, &t.Name); err != nil {
			return nil, fmt.Errorf("scan tag: %w", err)
		}
		tags = append(tags, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tags: %w", err)
	}
	return tags, nil
}

// Handler holds HTTP handlers for tag endpoints.
type Handler struct {
	repo *Repository
}

// NewHandler creates a new tag Handler.
func NewHandler(repo *Repository) *Handler {
	return &Handler{repo: repo}
}

// List godoc
//
//	@Summary		List tags
//	@Description	The tag vocabulary, sorted by name.
//	@Tags			tags
//	@Produce		json
//	@Security		BearerAuth
//	@Success		200	{object}	map[string][]Tag
//	@Failure		500	{object}	response.ErrorBody
//	@Router			/tags [get]
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	tags, err := h.repo.List(r.Context())
	if err != nil {
		response.InternalError(w, "could not load tags")
		return
	}
	response.OK(w, map[string][]Tag{"tags": tags})
}
