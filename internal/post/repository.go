package post

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Post is a shared recipe post inside a family space.
type Post struct {
	ID            string
	FamilySpaceID string
	AuthorID      string
	EditorID      *string
	Title         string
	Caption       *string
	MainPhotoKey  *string
	Recipe        *Recipe
	LastEditNote  *string
	LastEditAt    *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time

	AuthorName      string
	AuthorAvatarKey *string
	EditorName      *string
}

// Recipe holds the structured cooking details stored alongside a post.
type Recipe struct {
	Origin      *string      `json:"origin,omitempty"`
	Ingredients []Ingredient `json:"ingredients"`
	Steps       []Step       `json:"steps"`
	TotalTime   *int         `json:"totalTime,omitempty"`
	Servings    *int         `json:"servings,omitempty"`
	Courses     []string     `json:"courses,omitempty"`
	Difficulty  *string      `json:"difficulty,omitempty"`
}

// Ingredient is one line of a recipe's ingredient list.
type Ingredient struct {
	Name     string   `json:"name"`
	Unit     *string  `json:"unit,omitempty"`
	Quantity *float64 `json:"quantity,omitempty"`
}

// Step is one instruction in a recipe.
type Step struct {
	Text string `json:"text"`
}

// Photo is an image attached to a post.
type Photo struct {
	ID        string
	PostID    string
	PhotoKey  string
	SortOrder int
}

// CookedEvent records that someone cooked the dish.
type CookedEvent struct {
	ID            string
	PostID        string
	UserID        string
	Rating        *int
	Note          *string
	CreatedAt     time.Time
	UserName      string
	UserAvatarKey *string
}

// CookedStats aggregates cooked events for a post.
type CookedStats struct {
	TimesCooked   int      `json:"timesCooked"`
	AverageRating *float64 `json:"averageRating"`
}

// ErrNotFound is returned when a post does not exist in the caller's space.
var ErrNotFound = errors.New("post not found")

// ErrTagNotFound is returned when a referenced tag name is not registered.
var ErrTagNotFound = errors.New("one or more tags are not available")

// Repository provides post persistence backed by Postgres.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates a new post Repository.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

const postSelect = `
	SELECT p.id, p.family_space_id, p.author_id, p.editor_id, p.title, p.caption,
	       p.main_photo_key, p.recipe, p.last_edit_note, p.last_edit_at,
	       p.created_at, p.updated_at,
	       a.name, a.avatar_key, e.name
	FROM posts p
	JOIN users a ON a.id = p.author_id
	LEFT JOIN users e ON e.id = p.editor_id`

func scanPost(row pgx.Row) (*Post, error) {
	var p Post
	var recipeRaw []byte
	err := row.Scan(&p.ID, &p.FamilySpaceID, &p.AuthorID, &p.EditorID, &p.Title, &p.Caption,
		&p.MainPhotoKey, &recipeRaw, &p.LastEditNote, &p.LastEditAt,
		&p.CreatedAt, &p.UpdatedAt,
		&p.AuthorName, &p.AuthorAvatarKey, &p.EditorName)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if len(recipeRaw) > 0 {
		var r Recipe
		if err := json.Unmarshal(recipeRaw, &r); err != nil {
			return nil, fmt.Errorf("decode recipe: %w", err)
		}
		p.Recipe = &r
	}
	return &p, nil
}

// ResolveTagIDs maps tag names to IDs, failing if any name is unknown.
func (r *Repository) ResolveTagIDs(ctx context.Context, names []string) ([]string, error) {
	if len(names) == 0 {
		return nil, nil
	}
	rows, err := r.db.Query(ctx, `SELECT id FROM tags WHERE name = ANY($1)`, names)
	if err != nil {
		return nil, fmt.Errorf("resolve tags: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan tag: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("resolve tags: %w", err)
	}
	if len(ids) != len(names) {
		return nil, ErrTagNotFound
	}
	return ids, nil
}

// Create inserts a post with its photos and tag links in one transaction.
func (r *Repository) Create(ctx context.Context, p *Post, photoKeys, tagIDs []string) (*Post, error) {
	recipeRaw, err := marshalRecipe(p.Recipe)
	if err != nil {
		return nil, err
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var mainKey *string
	if len(photoKeys) > 0 {
		mainKey = &photoKeys[0]
	}

	var id string
	err = tx.QueryRow(ctx, `
		INSERT INTO posts (family_space_id, author_id, title, caption, main_photo_key, recipe)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`,
		p.FamilySpaceID, p.AuthorID, p.Title, p.Caption, mainKey, recipeRaw,
	).Scan(&id)
	if err != nil {
		return nil, fmt.Errorf("create post: %w", err)
	}

	for i, key := range photoKeys {
		_, err = tx.Exec(ctx, `
			INSERT INTO post_photos (post_id, photo_key, sort_order) VALUES ($1, $2, $3)`,
			id, key, i)
		if err != nil {
			return nil, fmt.Errorf("create post photo: %w", err)
		}
	}
	for _, tagID := range tagIDs {
		_, err = tx.Exec(ctx, `INSERT INTO post_tags (post_id, tag_id) VALUES ($1, $2)`, id, tagID)
		if err != nil {
			return nil, fmt.Errorf("link post tag: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit post: %w", err)
	}
	return r.GetByID(ctx, p.FamilySpaceID, id)
}

// GetByID loads one post scoped to a family space.
func (r *Repository) GetByID(ctx context.Context, familySpaceID, id string) (*Post, error) {
	row := r.db.QueryRow(ctx, postSelect+` WHERE p.id = $1 AND p.family_space_id = $2`, id, familySpaceID)
	p, err := scanPost(row)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("get post: %w", err)
	}
	return p, err
}

// List returns the newest posts of a space. Callers pass limit+1 to detect
// whether more pages remain.
func (r *Repository) List(ctx context.Context, familySpaceID string, limit, offset int) ([]*Post, error) {
	rows, err := r.db.Query(ctx, postSelect+`
		WHERE p.family_space_id = $1
		ORDER BY p.created_at DESC
		LIMIT $2 OFFSET $3`, familySpaceID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list posts: %w", err)
	}
	defer rows.Close()
	return collectPosts(rows)
}

// ListFavorites returns the posts a user has favorited, newest favorite first.
func (r *Repository) ListFavorites(ctx context.Context, familySpaceID, userID string, limit, offset int) ([]*Post, error) {
	rows, err := r.db.Query(ctx, postSelect+`
		JOIN favorites f ON f.post_id = p.id AND f.user_id = $2
		WHERE p.family_space_id = $1
		ORDER BY f.created_at DESC
		LIMIT $3 OFFSET $4`, familySpaceID, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list favorites: %w", err)
	}
	defer rows.Close()
	return collectPosts(rows)
}

// ListByAuthor returns one author's posts in a space, newest first.
func (r *Repository) ListByAuthor(ctx context.Context, familySpaceID, authorID string, limit, offset int) ([]*Post, error) {
	rows, err := r.db.Query(ctx, postSelect+`
		WHERE p.family_space_id = $1 AND p.author_id = $2
		ORDER BY p.created_at DESC
		LIMIT $3 OFFSET $4`, familySpaceID, authorID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list posts by author: %w", err)
	}
	defer rows.Close()
	return collectPosts(rows)
}

// SearchFilter narrows a recipe browse. Zero values mean no constraint.
type SearchFilter struct {
	Query        string
	Courses      []string
	Tags         []string
	Difficulties []string
	AuthorIDs    []string
	TotalTimeMin *int
	TotalTimeMax *int
	ServingsMin  *int
	ServingsMax  *int
	Ingredients  []string
	Sort         string
}

// SearchRecipes returns the posts with recipe details matching the filter.
func (r *Repository) SearchRecipes(ctx context.Context, familySpaceID string, f SearchFilter, limit, offset int) ([]*Post, error) {
	var sb strings.Builder
	sb.WriteString(postSelect)
	sb.WriteString(` WHERE p.family_space_id = $1 AND p.recipe IS NOT NULL`)
	args := []interface{}{familySpaceID}

	arg := func(v interface{}) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if f.Query != "" {
		fmt.Fprintf(&sb, ` AND p.title ILIKE %s`, arg("%"+f.Query+"%"))
	}
	if len(f.AuthorIDs) > 0 {
		fmt.Fprintf(&sb, ` AND p.author_id = ANY(%s)`, arg(f.AuthorIDs))
	}
	if len(f.Courses) > 0 {
		fmt.Fprintf(&sb, ` AND p.recipe->'courses' ?| %s`, arg(f.Courses))
	}
	if len(f.Difficulties) > 0 {
		fmt.Fprintf(&sb, ` AND p.recipe->>'difficulty' = ANY(%s)`, arg(f.Difficulties))
	}
	if f.TotalTimeMin != nil {
		fmt.Fprintf(&sb, ` AND (p.recipe->>'totalTime')::int >= %s`, arg(*f.TotalTimeMin))
	}
	if f.TotalTimeMax != nil {
		fmt.Fprintf(&sb, ` AND (p.recipe->>'totalTime')::int <= %s`, arg(*f.TotalTimeMax))
	}
	if f.ServingsMin != nil {
		fmt.Fprintf(&sb, ` AND (p.recipe->>'servings')::int >= %s`, arg(*f.ServingsMin))
	}
	if f.ServingsMax != nil {
		fmt.Fprintf(&sb, ` AND (p.recipe->>'servings')::int <= %s`, arg(*f.ServingsMax))
	}
	for _, name := range f.Tags {
		fmt.Fprintf(&sb, ` AND EXISTS (
			SELECT 1 FROM post_tags pt JOIN tags t ON t.id = pt.tag_id
			WHERE pt.post_id = p.id AND t.name = %s)`, arg(name))
	}
	for _, keyword := range f.Ingredients {
		fmt.Fprintf(&sb, ` AND EXISTS (
			SELECT 1 FROM jsonb_array_elements(p.recipe->'ingredients') ing
			WHERE ing->>'name' ILIKE %s)`, arg("%"+keyword+"%"))
	}

	if f.Sort == "alpha" {
		sb.WriteString(` ORDER BY p.title ASC, p.created_at DESC`)
	} else {
		sb.WriteString(` ORDER BY p.created_at DESC`)
	}
	fmt.Fprintf(&sb, ` LIMIT %s OFFSET %s`, arg(limit), arg(offset))

	rows, err := r.db.Query(ctx, sb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("search recipes: %w", err)
	}
	defer rows.Close()
	return collectPosts(rows)
}

// CookedStatsFor aggregates cooked counts and average ratings for a batch of
// posts. Posts without events are absent from the map.
func (r *Repository) CookedStatsFor(ctx context.Context, postIDs []string) (map[string]CookedStats, error) {
	stats := make(map[string]CookedStats, len(postIDs))
	if len(postIDs) == 0 {
		return stats, nil
	}
	rows, err := r.db.Query(ctx, `
		SELECT post_id, COUNT(*), AVG(rating)
		FROM cooked_events WHERE post_id = ANY($1)
		GROUP BY post_id`, postIDs)
	if err != nil {
		return nil, fmt.Errorf("cooked stats: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id string
		var s CookedStats
		if err := rows.Scan(&id, &s.TimesCooked, &s.AverageRating); err != nil {
			return nil, fmt.Errorf("scan cooked stats: %w", err)
		}
		stats[id] = s
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate cooked stats: %w", err)
	}
	return stats, nil
}

// TagNamesFor returns each post's tag names for a batch of posts.
func (r *Repository) TagNamesFor(ctx context.Context, postIDs []string) (map[string][]string, error) {
	names := make(map[string][]string, len(postIDs))
	if len(postIDs) == 0 {
		return names, nil
	}
	rows, err := r.db.Query(ctx, `
		SELECT pt.post_id, t.name FROM post_tags pt
		JOIN tags t ON t.id = pt.tag_id
		WHERE pt.post_id = ANY($1)
		ORDER BY t.name`, postIDs)
	if err != nil {
		return nil, fmt.Errorf("list tags for posts: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id, name string
		if err := rows.Scan(&id, &name); err != nil {
			return nil, fmt.Errorf("scan tag name: %w", err)
		}
		names[id] = append(names[id], name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tag names: %w", err)
	}
	return names, nil
}

// UserCookedEvent is a cooked event joined with the post it belongs to.
type UserCookedEvent struct {
	ID               string
	Rating           *int
	Note             *string
	CreatedAt        time.Time
	PostID           string
	PostTitle        string
	PostMainPhotoKey *string
}

// ListCookedByUser returns a user's cooked events across their space, newest
// first.
func (r *Repository) ListCookedByUser(ctx context.Context, familySpaceID, userID string, limit, offset int) ([]UserCookedEvent, error) {
	rows, err := r.db.Query(ctx, `
		SELECT c.id, c.rating, c.note, c.created_at, p.id, p.title, p.main_photo_key
		FROM cooked_events c
		JOIN posts p ON p.id = c.post_id
		WHERE c.user_id = $1 AND p.family_space_id = $2
		ORDER BY c.created_at DESC
		LIMIT $3 OFFSET $4`, userID, familySpaceID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list cooked by user: %w", err)
	}
	defer rows.Close()

	var events []UserCookedEvent
	for rows.Next() {
		var e UserCookedEvent
		err := rows.Scan(&e.ID, &e.Rating, &e.Note, &e.CreatedAt, &e.PostID, &e.PostTitle, &e.PostMainPhotoKey)
		if err != nil {
			return nil, fmt.Errorf("scan cooked event: %w", err)
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate cooked events: %w", err)
	}
	return events, nil
}

func collectPosts(rows pgx.Rows) ([]*Post, error) {
	var posts []*Post
	for rows.Next() {
		p, err := scanPost(rows)
		if err != nil {
			return nil, fmt.Errorf("scan post: %w", err)
		}
		posts = append(posts, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate posts: %w", err)
	}
	return posts, nil
}

// Photos returns a post's photos in display order.
func (r *Repository) Photos(ctx context.Context, postID string) ([]Photo, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, post_id, photo_key, sort_order
		FROM post_photos WHERE post_id = $1 ORDER BY sort_order`, postID)
	if err != nil {
		return nil, fmt.Errorf("list photos: %w", err)
	}
	defer rows.Close()

	var photos []Photo
	for rows.Next() {
		var p Photo
		if err := rows.Scan(&p.ID, &p.PostID, &p.PhotoKey, &p.SortOrder); err != nil {
			return nil, fmt.Errorf("scan photo: %w", err)
		}
		photos = append(photos, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate photos: %w", err)
	}
	return photos, nil
}

// TagNames returns a post's tag names sorted alphabetically.
func (r *Repository) TagNames(ctx context.Context, postID string) ([]string, error) {
	rows, err := r.db.Query(ctx, `
		SELECT t.name FROM tags t
		JOIN post_tags pt ON pt.tag_id = t.id
		WHERE pt.post_id = $1 ORDER BY t.name`, postID)
	if err != nil {
		return nil, fmt.Errorf("list post tags: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan tag name: %w", err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate post tags: %w", err)
	}
	return names, nil
}

// Update rewrites a post's editable fields and tag links.
func (r *Repository) Update(ctx context.Context, p *Post, tagIDs []string, retag bool) error {
	recipeRaw, err := marshalRecipe(p.Recipe)
	if err != nil {
		return err
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	ct, err := tx.Exec(ctx, `
		UPDATE posts
		SET title = $1, caption = $2, recipe = $3, editor_id = $4,
		    last_edit_note = $5, last_edit_at = NOW(), updated_at = NOW()
		WHERE id = $6 AND family_space_id = $7`,
		p.Title, p.Caption, recipeRaw, p.EditorID, p.LastEditNote, p.ID, p.FamilySpaceID)
	if err != nil {
		return fmt.Errorf("update post: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return ErrNotFound
	}

	if retag {
		if _, err := tx.Exec(ctx, `DELETE FROM post_tags WHERE post_id = $1`, p.ID); err != nil {
			return fmt.Errorf("clear post tags: %w", err)
		}
		for _, tagID := range tagIDs {
			if _, err := tx.Exec(ctx, `INSERT INTO post_tags (post_id, tag_id) VALUES ($1, $2)`, p.ID, tagID); err != nil {
				return fmt.Errorf("link post tag: %w", err)
			}
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit post update: %w", err)
	}
	return nil
}

// Delete removes a post and returns every photo key that referenced it, the
// post's own photos plus comment photos, so callers can clean up storage.
func (r *Repository) Delete(ctx context.Context, familySpaceID, id string) ([]string, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	rows, err := tx.Query(ctx, `
		SELECT photo_key FROM post_photos WHERE post_id = $1
		UNION ALL
		SELECT photo_key FROM comments WHERE post_id = $1 AND photo_key IS NOT NULL`, id)
	if err != nil {
		return nil, fmt.Errorf("collect photo keys: %w", err)
	}
	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan photo key: %w", err)
		}
		keys = append(keys, key)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("collect photo keys: %w", err)
	}

	ct, err := tx.Exec(ctx, `DELETE FROM posts WHERE id = $1 AND family_space_id = $2`, id, familySpaceID)
	if err != nil {
		return nil, fmt.Errorf("delete post: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return nil, ErrNotFound
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit post delete: %w", err)
	}
	return keys, nil
}

// Favorite marks a post as favorited. Idempotent.
func (r *Repository) Favorite(ctx context.Context, userID, postID string) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO favorites (user_id, post_id) VALUES ($1, $2)
		ON CONFLICT (user_id, post_id) DO NOTHING`, userID, postID)
	if err != nil {
		return fmt.Errorf("favorite post: %w", err)
	}
	return nil
}

// Unfavorite removes a favorite. Idempotent.
func (r *Repository) Unfavorite(ctx context.Context, userID, postID string) error {
	_, err := r.db.Exec(ctx, `DELETE FROM favorites WHERE user_id = $1 AND post_id = $2`, userID, postID)
	if err != nil {
		return fmt.Errorf("unfavorite post: %w", err)
	}
	return nil
}

// IsFavorited reports whether a user has favorited a post.
func (r *Repository) IsFavorited(ctx context.Context, userID, postID string) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM favorites WHERE user_id = $1 AND post_id = $2)`,
		userID, postID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check favorite: %w", err)
	}
	return exists, nil
}

// AddCooked records a cooked event.
func (r *Repository) AddCooked(ctx context.Context, postID, userID string, rating *int, note *string) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO cooked_events (post_id, user_id, rating, note) VALUES ($1, $2, $3, $4)`,
		postID, userID, rating, note)
	if err != nil {
		return fmt.Errorf("add cooked event: %w", err)
	}
	return nil
}

// GetCookedStats aggregates cooked counts and average rating for a post.
func (r *Repository) GetCookedStats(ctx context.Context, postID string) (*CookedStats, error) {
	var stats CookedStats
	err := r.db.QueryRow(ctx, `
		SELECT COUNT(*), AVG(rating) FROM cooked_events WHERE post_id = $1`,
		postID).Scan(&stats.TimesCooked, &stats.AverageRating)
	if err != nil {
		return nil, fmt.Errorf("cooked stats: %w", err)
	}
	return &stats, nil
}

// RecentCooked returns the latest cooked events for a post, newest first.
// Callers pass limit+1 to detect whether more remain.
func (r *Repository) RecentCooked(ctx context.Context, postID string, limit, offset int) ([]CookedEvent, error) {
	rows, err := r.db.Query(ctx, `
		SELECT c.id, c.post_id, c.user_id, c.rating, c.note, c.created_at,
		       u.name, u.avatar_key
		FROM cooked_events c
		JOIN users u ON u.id = c.user_id
		WHERE c.post_id = $1
		ORDER BY c.created_at DESC
		LIMIT $2 OFFSET $3`, postID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("recent cooked: %w", err)
	}
	defer rows.Close()

	var events []CookedEvent
	for rows.Next() {
		var e CookedEvent
		err := rows.Scan(&e.ID, &e.PostID, &e.UserID, &e.Rating, &e.Note, &e.CreatedAt,
			&e.UserName, &e.UserAvatarKey)
		if err != nil {
			return nil, fmt.Errorf("scan cooked event: %w", err)
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate cooked events: %w", err)
	}
	return events, nil
}

func marshalRecipe(r *Recipe) ([]byte, error) {
	if r == nil {
		return nil, nil
	}
	raw, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("encode recipe: %w", err)
	}
	return raw, nil
}
