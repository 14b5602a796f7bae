package post

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func intPtr(v int) *int           { return &v }
func strPtr(v string) *string     { return &v }
func floatPtr(v float64) *float64 { return &v }

func TestValidateTitle(t *testing.T) {
	longTitle := make([]byte, maxTitleLength+1)
	for i := range longTitle {
		longTitle[i] = 'a'
	}

	tests := []struct {
		name    string
		title   string
		want    string
		wantErr bool
	}{
		{name: "should accept a plain title", title: "Sunday Lasagna", want: "Sunday Lasagna"},
		{name: "should trim surrounding whitespace", title: "  Pierogi  ", want: "Pierogi"},
		{name: "should reject an empty title", title: "", wantErr: true},
		{name: "should reject a whitespace-only title", title: "   ", wantErr: true},
		{name: "should reject a title over 200 characters", title: string(longTitle), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := validateTitle(tt.title)
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrInvalidInput)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestValidateRecipe(t *testing.T) {
	tests := []struct {
		name    string
		recipe  *Recipe
		wantErr bool
	}{
		{name: "should accept nil recipe", recipe: nil},
		{
			name: "should accept a full recipe",
			recipe: &Recipe{
				Origin:      strPtr("Nonna's notebook"),
				Ingredients: []Ingredient{{Name: "flour", Unit: strPtr("g"), Quantity: floatPtr(500)}},
				Steps:       []Step{{Text: "Mix everything."}},
				TotalTime:   intPtr(90),
				Servings:    intPtr(4),
				Courses:     []string{"dinner", "lunch"},
			},
		},
		{
			name:    "should reject an ingredient without a name",
			recipe:  &Recipe{Ingredients: []Ingredient{{Name: "  "}}},
			wantErr: true,
		},
		{
			name:    "should reject an empty step",
			recipe:  &Recipe{Steps: []Step{{Text: ""}}},
			wantErr: true,
		},
		{
			name:    "should reject totalTime over 720",
			recipe:  &Recipe{TotalTime: intPtr(721)},
			wantErr: true,
		},
		{
			name:    "should reject zero servings",
			recipe:  &Recipe{Servings: intPtr(0)},
			wantErr: true,
		},
		{
			name:    "should reject an unknown course",
			recipe:  &Recipe{Courses: []string{"brunch"}},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateRecipe(tt.recipe)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidInput)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestClampLimit(t *testing.T) {
	tests := []struct {
		name  string
		value int
		want  int
	}{
		{name: "should fall back to the default for zero", value: 0, want: defaultPageLimit},
		{name: "should fall back to the default for negatives", value: -3, want: defaultPageLimit},
		{name: "should keep values in range", value: 42, want: 42},
		{name: "should cap values above the maximum", value: 500, want: maxPageLimit},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, clampLimit(tt.value, defaultPageLimit, maxPageLimit))
		})
	}
}

func TestPagePosts(t *testing.T) {
	build := func(n int) []*Post {
		posts := make([]*Post, n)
		for i := range posts {
			posts[i] = &Post{Title: "p"}
		}
		return posts
	}

	t.Run("should report more pages when the extra row came back", func(t *testing.T) {
		posts, page, err := pagePosts(build(21), 20, 0)
		require.NoError(t, err)
		assert.Len(t, posts, 20)
		assert.True(t, page.HasMore)
		assert.Equal(t, 20, page.NextOffset)
	})

	t.Run("should report the end of the feed on a short page", func(t *testing.T) {
		posts, page, err := pagePosts(build(7), 20, 40)
		require.NoError(t, err)
		assert.Len(t, posts, 7)
		assert.False(t, page.HasMore)
		assert.Equal(t, 47, page.NextOffset)
	})

	t.Run("should handle an empty page", func(t *testing.T) {
		posts, page, err := pagePosts(nil, 20, 0)
		require.NoError(t, err)
		assert.Empty(t, posts)
		assert.False(t, page.HasMore)
		assert.Equal(t, 0, page.NextOffset)
	})
}

func TestRecipeInput(t *testing.T) {
	t.Run("should pass nil through", func(t *testing.T) {
		recipe, tags := recipeInput(nil)
		assert.Nil(t, recipe)
		assert.Nil(t, tags)
	})

	t.Run("should promote a single course to the courses list", func(t *testing.T) {
		recipe, _ := recipeInput(&recipePayload{Course: strPtr("dessert")})
		require.NotNil(t, recipe)
		assert.Equal(t, []string{"dessert"}, recipe.Courses)
	})

	t.Run("should prefer the courses list over the single course", func(t *testing.T) {
		recipe, _ := recipeInput(&recipePayload{
			Course:  strPtr("dessert"),
			Courses: []string{"dinner", "lunch"},
		})
		require.NotNil(t, recipe)
		assert.Equal(t, []string{"dinner", "lunch"}, recipe.Courses)
	})

	t.Run("should split tags out of the recipe", func(t *testing.T) {
		recipe, tags := recipeInput(&recipePayload{Tags: []string{"pasta", "comfort"}})
		require.NotNil(t, recipe)
		assert.Equal(t, []string{"pasta", "comfort"}, tags)
	})
}

func TestDedupe(t *testing.T) {
	tests := []struct {
		name   string
		values []string
		want   []string
	}{
		{name: "should keep nil as nil", values: nil, want: nil},
		{name: "should drop empty strings", values: []string{"", "pasta", ""}, want: []string{"pasta"}},
		{name: "should keep the first of each duplicate", values: []string{"a", "b", "a", "c", "b"}, want: []string{"a", "b", "c"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, dedupe(tt.values))
		})
	}
}

func TestNormalizeSearchFilter(t *testing.T) {
	t.Run("should drop unknown courses and difficulties", func(t *testing.T) {
		f := normalizeSearchFilter(SearchFilter{
			Courses:      []string{"dinner", "brunch", "dinner"},
			Difficulties: []string{"easy", "impossible"},
		})
		assert.Equal(t, []string{"dinner"}, f.Courses)
		assert.Equal(t, []string{"easy"}, f.Difficulties)
	})

	t.Run("should trim and truncate the title query", func(t *testing.T) {
		long := make([]byte, maxSearchQueryLength+50)
		for i := range long {
			long[i] = 'q'
		}
		f := normalizeSearchFilter(SearchFilter{Query: "  " + string(long)})
		assert.Len(t, f.Query, maxSearchQueryLength)
	})

	t.Run("should cap the ingredient keywords", func(t *testing.T) {
		f := normalizeSearchFilter(SearchFilter{
			Ingredients: []string{"flour", "eggs", "milk", "butter", "sugar", "salt", "yeast"},
		})
		assert.Len(t, f.Ingredients, maxSearchIngredients)
	})

	t.Run("should default unknown sorts to recent", func(t *testing.T) {
		assert.Equal(t, "recent", normalizeSearchFilter(SearchFilter{Sort: "spicy"}).Sort)
		assert.Equal(t, "alpha", normalizeSearchFilter(SearchFilter{Sort: "alpha"}).Sort)
	})
}

func TestRecipeOut(t *testing.T) {
	t.Run("should pass nil through", func(t *testing.T) {
		assert.Nil(t, recipeOut(nil))
	})

	t.Run("should surface the first course as primary", func(t *testing.T) {
		out := recipeOut(&Recipe{Courses: []string{"dinner", "lunch"}})
		require.NotNil(t, out)
		require.NotNil(t, out.PrimaryCourse)
		assert.Equal(t, "dinner", *out.PrimaryCourse)
	})

	t.Run("should render empty slices instead of null", func(t *testing.T) {
		out := recipeOut(&Recipe{})
		require.NotNil(t, out)
		assert.NotNil(t, out.Ingredients)
		assert.NotNil(t, out.Steps)
		assert.Nil(t, out.PrimaryCourse)
	})
}
