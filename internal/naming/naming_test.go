package naming

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPluralize(t *testing.T) {
	n := NewNamer(Config{})
	assert.Equal(t, "posts", n.Pluralize("post"))
	assert.Equal(t, "categories", n.Pluralize("category"))
	assert.Equal(t, "people", n.Pluralize("person"))
}

func TestPluralizeOverride(t *testing.T) {
	n := NewNamer(Config{PluralOverrides: map[string]string{"equipment": "equipment"}})
	assert.Equal(t, "equipment", n.Pluralize("equipment"))
	// Non-overridden words still go through the inflection library.
	assert.Equal(t, "tags", n.Pluralize("tag"))
}

func TestSingularize(t *testing.T) {
	n := NewNamer(Config{})
	assert.Equal(t, "tag", n.Singularize("tags"))
	assert.Equal(t, "category", n.Singularize("categories"))
}

func TestSingularizeOverride(t *testing.T) {
	n := NewNamer(Config{SingularOverrides: map[string]string{"data": "datum"}})
	assert.Equal(t, "datum", n.Singularize("data"))
}

func TestCollection(t *testing.T) {
	n := NewNamer(Config{})
	assert.Equal(t, "blog_posts", n.Collection("BlogPost"))
	assert.Equal(t, "categories", n.Collection("Category"))
}

func TestSnakeCase(t *testing.T) {
	assert.Equal(t, "blog_post", SnakeCase("BlogPost"))
	assert.Equal(t, "author_id", SnakeCase("authorId"))
	assert.Equal(t, "tag", SnakeCase("tag"))
	assert.Equal(t, "", SnakeCase(""))
}
