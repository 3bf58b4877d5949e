package database

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func setupDB(t *testing.T) {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), "test.db")
	require.NoError(t, Init("sqlite", dsn, false))
	t.Cleanup(CloseDB)
}

func TestSlugify(t *testing.T) {
	assert.Equal(t, "my-first-post", Slugify("My First Post!", "post"))
	assert.Equal(t, "spaces", Slugify("  Spaces  ", "post"))
	assert.Equal(t, "cafe-au-lait", Slugify("Café au Lait", "post"))

	// Titles that reduce to nothing use the fallback.
	assert.Equal(t, "post", Slugify("☕☕☕", "post"))
	assert.Equal(t, "tag", Slugify("!!!", "tag"))
}

func TestUniqueSlug(t *testing.T) {
	setupDB(t)
	db := GetDB()

	siblings := func() *gorm.DB { return db.Model(&DocProduct{}) }

	// Empty table, the base is free.
	s, err := UniqueSlug(siblings, "widget", 0)
	require.NoError(t, err)
	assert.Equal(t, "widget", s)

	taken := DocProduct{Name: "Widget", Slug: "widget"}
	require.NoError(t, db.Create(&taken).Error)
	require.NoError(t, db.Create(&DocProduct{Name: "Widget 1", Slug: "widget-1"}).Error)

	s, err = UniqueSlug(siblings, "widget", 0)
	require.NoError(t, err)
	assert.Equal(t, "widget-2", s)

	// The row being updated doesn't collide with itself.
	s, err = UniqueSlug(siblings, "widget", taken.ID)
	require.NoError(t, err)
	assert.Equal(t, "widget", s)
}

func TestCreateWithSlug(t *testing.T) {
	setupDB(t)
	db := GetDB()

	siblings := func() *gorm.DB { return db.Model(&Tag{}) }

	first := Tag{Name: "Go"}
	require.NoError(t, CreateWithSlug(db, siblings, "go", &first))
	assert.Equal(t, "go", first.Slug)

	second := Tag{Name: "go!"}
	require.NoError(t, CreateWithSlug(db, siblings, "go", &second))
	assert.Equal(t, "go-1", second.Slug)
	assert.NotZero(t, second.ID)
}

func TestCreateWithSlugScope(t *testing.T) {
	setupDB(t)
	db := GetDB()

	widget := DocProduct{Name: "Widget", Slug: "widget"}
	gadget := DocProduct{Name: "Gadget", Slug: "gadget"}
	require.NoError(t, db.Create(&widget).Error)
	require.NoError(t, db.Create(&gadget).Error)

	scoped := func(productID uint) func() *gorm.DB {
		return func() *gorm.DB {
			return db.Model(&DocSection{}).Where("product_id = ?", productID)
		}
	}

	// The same slug can exist under different parents.
	ws := DocSection{ProductID: widget.ID, Title: "Intro"}
	require.NoError(t, CreateWithSlug(db, scoped(widget.ID), "intro", &ws))
	assert.Equal(t, "intro", ws.Slug)

	gs := DocSection{ProductID: gadget.ID, Title: "Intro"}
	require.NoError(t, CreateWithSlug(db, scoped(gadget.ID), "intro", &gs))
	assert.Equal(t, "intro", gs.Slug)

	// Within one parent it gets suffixed.
	dup := DocSection{ProductID: widget.ID, Title: "Intro"}
	require.NoError(t, CreateWithSlug(db, scoped(widget.ID), "intro", &dup))
	assert.Equal(t, "intro-1", dup.Slug)
}
