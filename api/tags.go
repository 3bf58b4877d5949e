package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"inkwell/database"

	"github.com/go-chi/chi/v5"
	"gorm.io/gorm"
)

func listTags(w http.ResponseWriter, r *http.Request) {
	var tags []database.Tag
	if err := database.GetDB().Order("name ASC").Find(&tags).Error; err != nil {
		respondServerError(w, r, "Fetching tags", err)
		return
	}

	type tagCount struct {
		TagID uint
		Count int64
	}
	var counts []tagCount
	err := database.GetDB().
		Table("post_tags").
		Select("tag_id, COUNT(post_id) AS count").
		Group("tag_id").
		Find(&counts).Error
	if err != nil {
		respondServerError(w, r, "Counting tag usage", err)
		return
	}

	byID := make(map[uint]int64, len(counts))
	for _, c := range counts {
		byID[c.TagID] = c.Count
	}
	for i := range tags {
		tags[i].PostCount = byID[tags[i].ID]
	}

	respondJSON(w, http.StatusOK, map[string]any{"tags": tags})
}

func getTag(w http.ResponseWriter, r *http.Request) {
	var tag database.Tag
	err := database.GetDB().First(&tag, chi.URLParam(r, "tagID")).Error
	serveTag(w, r, tag, err)
}

func getTagBySlug(w http.ResponseWriter, r *http.Request) {
	var tag database.Tag
	err := database.GetDB().Where("slug = ?", chi.URLParam(r, "slug")).First(&tag).Error
	serveTag(w, r, tag, err)
}

func serveTag(w http.ResponseWriter, r *http.Request, tag database.Tag, err error) {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		respondError(w, http.StatusNotFound, "tag not found")
		return
	}
	if err != nil {
		respondServerError(w, r, "Fetching tag", err)
		return
	}

	tag.PostCount = database.GetDB().Model(&tag).Association("Posts").Count()
	respondJSON(w, http.StatusOK, map[string]any{"tag": tag})
}

func createTag(w http.ResponseWriter, r *http.Request) {
	var input struct {
		Name        string `json:"name"`
		Slug        string `json:"slug"`
		Color       string `json:"color"`
		Description string `json:"description"`
	}
	if err := decodeJSON(w, r, &input); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	input.Name = strings.TrimSpace(input.Name)

	v := newValidator()
	v.checkNotBlank(input.Name, "name")
	v.checkMaxLength(input.Name, 50, "name")
	v.checkMaxLength(input.Description, 500, "description")
	if input.Color != "" {
		v.check(colorRX.MatchString(input.Color), "color", "must be a hex color like #1a2b3c")
	}
	if !v.valid() {
		respondValidation(w, v)
		return
	}

	db := database.GetDB()

	// Names are unique regardless of case, "Go" and "go" are the same tag.
	var count int64
	if err := db.Model(&database.Tag{}).Where("LOWER(name) = LOWER(?)", input.Name).Count(&count).Error; err != nil {
		respondServerError(w, r, "Checking tag name", err)
		return
	}
	if count > 0 {
		respondError(w, http.StatusBadRequest, "a tag with this name already exists")
		return
	}

	tag := database.Tag{
		Name:        input.Name,
		Color:       input.Color,
		Description: input.Description,
	}

	base := input.Slug
	if strings.TrimSpace(base) == "" {
		base = input.Name
	}

	err := database.CreateWithSlug(db, func() *gorm.DB {
		return db.Model(&database.Tag{})
	}, database.Slugify(base, "tag"), &tag)
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		respondError(w, http.StatusBadRequest, "a tag with this name already exists")
		return
	}
	if err != nil {
		respondServerError(w, r, "Creating tag", err)
		return
	}

	respondJSON(w, http.StatusCreated, map[string]any{"tag": tag})
}

func updateTag(w http.ResponseWriter, r *http.Request) {
	db := database.GetDB()

	var tag database.Tag
	err := db.First(&tag, chi.URLParam(r, "tagID")).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		respondError(w, http.StatusNotFound, "tag not found")
		return
	}
	if err != nil {
		respondServerError(w, r, "Fetching tag", err)
		return
	}

	var input struct {
		Name        *string `json:"name"`
		Slug        *string `json:"slug"`
		Color       *string `json:"color"`
		Description *string `json:"description"`
	}
	if err := decodeJSON(w, r, &input); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	v := newValidator()
	nameChanged := false

	if input.Name != nil {
		name := strings.TrimSpace(*input.Name)
		v.checkNotBlank(name, "name")
		v.checkMaxLength(name, 50, "name")
		nameChanged = name != tag.Name
		tag.Name = name
	}
	if input.Color != nil {
		if *input.Color != "" {
			v.check(colorRX.MatchString(*input.Color), "color", "must be a hex color like #1a2b3c")
		}
		tag.Color = *input.Color
	}
	if input.Description != nil {
		v.checkMaxLength(*input.Description, 500, "description")
		tag.Description = *input.Description
	}
	if !v.valid() {
		respondValidation(w, v)
		return
	}

	if nameChanged {
		var count int64
		err := db.Model(&database.Tag{}).
			Where("LOWER(name) = LOWER(?) AND id <> ?", tag.Name, tag.ID).
			Count(&count).Error
		if err != nil {
			respondServerError(w, r, "Checking tag name", err)
			return
		}
		if count > 0 {
			respondError(w, http.StatusBadRequest, "a tag with this name already exists")
			return
		}
	}

	slugBase := ""
	if input.Slug != nil && strings.TrimSpace(*input.Slug) != "" {
		slugBase = *input.Slug
	} else if nameChanged {
		slugBase = tag.Name
	}
	if slugBase != "" {
		newSlug, err := database.UniqueSlug(func() *gorm.DB {
			return db.Model(&database.Tag{})
		}, database.Slugify(slugBase, "tag"), tag.ID)
		if err != nil {
			respondServerError(w, r, "Resolving slug", err)
			return
		}
		tag.Slug = newSlug
	}

	err = db.Save(&tag).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		respondError(w, http.StatusBadRequest, "a tag with this name already exists")
		return
	}
	if err != nil {
		respondServerError(w, r, "Updating tag", err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{"tag": tag})
}

func deleteTag(w http.ResponseWriter, r *http.Request) {
	db := database.GetDB()

	var tag database.Tag
	err := db.First(&tag, chi.URLParam(r, "tagID")).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		respondError(w, http.StatusNotFound, "tag not found")
		return
	}
	if err != nil {
		respondServerError(w, r, "Fetching tag", err)
		return
	}

	count := db.Model(&tag).Association("Posts").Count()
	if count > 0 {
		respondError(w, http.StatusBadRequest,
			fmt.Sprintf("tag is referenced by %d post(s) and cannot be deleted", count))
		return
	}

	if err := db.Delete(&tag).Error; err != nil {
		respondServerError(w, r, "Deleting tag", err)
		return
	}

	respondMessage(w, http.StatusOK, nil, "tag deleted")
}
