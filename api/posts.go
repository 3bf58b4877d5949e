package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"inkwell/database"

	"github.com/go-chi/chi/v5"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

func listPosts(w http.ResponseWriter, r *http.Request) {
	page, limit, offset := parsePagination(r)
	user := currentUser(r)

	q := database.GetDB().Model(&database.Post{})

	includeDrafts := r.URL.Query().Get("includeDrafts") == "true" && user != nil && user.IsAdmin
	if !includeDrafts {
		q = q.Where("posts.published = ?", true)
	}

	if tagSlug := r.URL.Query().Get("tag"); tagSlug != "" {
		q = q.Joins("JOIN post_tags ON post_tags.post_id = posts.id").
			Joins("JOIN tags ON tags.id = post_tags.tag_id").
			Where("tags.slug = ?", tagSlug)
	}

	if search := r.URL.Query().Get("q"); search != "" {
		q = q.Where("LOWER(posts.title) LIKE ?", "%"+strings.ToLower(search)+"%")
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		respondServerError(w, r, "Counting posts", err)
		return
	}

	var posts []database.Post
	err := q.Preload("Tags").Preload("Author").
		Order("posts.created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&posts).Error
	if err != nil {
		respondServerError(w, r, "Fetching posts", err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"posts": posts,
		"total": total,
		"page":  page,
		"limit": limit,
	})
}

func getPost(w http.ResponseWriter, r *http.Request) {
	var post database.Post
	err := database.GetDB().Preload("Tags").Preload("Author").
		First(&post, chi.URLParam(r, "postID")).Error
	servePost(w, r, post, err)
}

func getPostBySlug(w http.ResponseWriter, r *http.Request) {
	var post database.Post
	err := database.GetDB().Preload("Tags").Preload("Author").
		Where("slug = ?", chi.URLParam(r, "slug")).
		First(&post).Error
	servePost(w, r, post, err)
}

// servePost hides drafts from everyone but admins. A draft 404s rather than
// 403s so its existence isn't leaked.
func servePost(w http.ResponseWriter, r *http.Request, post database.Post, err error) {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		respondError(w, http.StatusNotFound, "post not found")
		return
	}
	if err != nil {
		respondServerError(w, r, "Fetching post", err)
		return
	}

	if !post.Published {
		user := currentUser(r)
		if user == nil || !user.IsAdmin {
			respondError(w, http.StatusNotFound, "post not found")
			return
		}
	}

	respondJSON(w, http.StatusOK, map[string]any{"post": post})
}

func createPost(w http.ResponseWriter, r *http.Request) {
	var input struct {
		Title      string          `json:"title"`
		Slug       string          `json:"slug"`
		Content    json.RawMessage `json:"content"`
		Excerpt    string          `json:"excerpt"`
		CoverImage string          `json:"coverImage"`
		Published  bool            `json:"published"`
		TagIDs     []uint          `json:"tagIds"`
	}
	if err := decodeJSON(w, r, &input); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	v := newValidator()
	v.checkNotBlank(input.Title, "title")
	v.checkMaxLength(input.Title, 200, "title")
	v.checkMaxLength(input.Excerpt, 500, "excerpt")

	tags, err := findTagsByID(input.TagIDs)
	if err != nil {
		if errors.Is(err, errUnknownTag) {
			v.addError("tagIds", "contains unknown tag ids")
		} else {
			respondServerError(w, r, "Fetching tags", err)
			return
		}
	}

	if !v.valid() {
		respondValidation(w, v)
		return
	}

	post := database.Post{
		Title:      strings.TrimSpace(input.Title),
		Content:    datatypes.JSON(input.Content),
		Excerpt:    input.Excerpt,
		CoverImage: input.CoverImage,
		Published:  input.Published,
		AuthorID:   currentUser(r).ID,
		Tags:       tags,
	}
	if post.Published {
		now := time.Now()
		post.PublishedAt = &now
	}

	base := input.Slug
	if strings.TrimSpace(base) == "" {
		base = post.Title
	}

	db := database.GetDB()
	err = database.CreateWithSlug(db, func() *gorm.DB {
		return db.Model(&database.Post{})
	}, database.Slugify(base, "post"), &post)
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		respondError(w, http.StatusBadRequest, "could not allocate a unique slug, try again")
		return
	}
	if err != nil {
		respondServerError(w, r, "Creating post", err)
		return
	}

	if err := db.Preload("Tags").Preload("Author").First(&post, post.ID).Error; err != nil {
		respondServerError(w, r, "Fetching post", err)
		return
	}

	respondJSON(w, http.StatusCreated, map[string]any{"post": post})
}

func updatePost(w http.ResponseWriter, r *http.Request) {
	db := database.GetDB()

	var post database.Post
	err := db.First(&post, chi.URLParam(r, "postID")).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		respondError(w, http.StatusNotFound, "post not found")
		return
	}
	if err != nil {
		respondServerError(w, r, "Fetching post", err)
		return
	}

	if post.AuthorID != currentUser(r).ID {
		respondError(w, http.StatusForbidden, "only the author can modify this post")
		return
	}

	var input struct {
		Title      *string          `json:"title"`
		Slug       *string          `json:"slug"`
		Content    *json.RawMessage `json:"content"`
		Excerpt    *string          `json:"excerpt"`
		CoverImage *string          `json:"coverImage"`
		Published  *bool            `json:"published"`
		TagIDs     *[]uint          `json:"tagIds"`
	}
	if err := decodeJSON(w, r, &input); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	v := newValidator()
	titleChanged := false

	if input.Title != nil {
		title := strings.TrimSpace(*input.Title)
		v.checkNotBlank(title, "title")
		v.checkMaxLength(title, 200, "title")
		titleChanged = title != post.Title
		post.Title = title
	}
	if input.Content != nil {
		post.Content = datatypes.JSON(*input.Content)
	}
	if input.Excerpt != nil {
		v.checkMaxLength(*input.Excerpt, 500, "excerpt")
		post.Excerpt = *input.Excerpt
	}
	if input.CoverImage != nil {
		post.CoverImage = *input.CoverImage
	}

	var newTags []database.Tag
	if input.TagIDs != nil {
		newTags, err = findTagsByID(*input.TagIDs)
		if err != nil {
			if errors.Is(err, errUnknownTag) {
				v.addError("tagIds", "contains unknown tag ids")
			} else {
				respondServerError(w, r, "Fetching tags", err)
				return
			}
		}
	}

	if !v.valid() {
		respondValidation(w, v)
		return
	}

	// The slug follows the title unless the client pins one explicitly.
	slugBase := ""
	if input.Slug != nil && strings.TrimSpace(*input.Slug) != "" {
		slugBase = *input.Slug
	} else if titleChanged {
		slugBase = post.Title
	}
	if slugBase != "" {
		newSlug, err := database.UniqueSlug(func() *gorm.DB {
			return db.Model(&database.Post{})
		}, database.Slugify(slugBase, "post"), post.ID)
		if err != nil {
			respondServerError(w, r, "Resolving slug", err)
			return
		}
		post.Slug = newSlug
	}

	if input.Published != nil {
		if *input.Published && post.PublishedAt == nil {
			now := time.Now()
			post.PublishedAt = &now
		}
		post.Published = *input.Published
	}

	err = db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Save(&post).Error; err != nil {
			return err
		}
		if input.TagIDs != nil {
			if len(newTags) == 0 {
				return tx.Model(&post).Association("Tags").Clear()
			}
			return tx.Model(&post).Association("Tags").Replace(newTags)
		}
		return nil
	})
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		respondError(w, http.StatusBadRequest, "could not allocate a unique slug, try again")
		return
	}
	if err != nil {
		respondServerError(w, r, "Updating post", err)
		return
	}

	if err := db.Preload("Tags").Preload("Author").First(&post, post.ID).Error; err != nil {
		respondServerError(w, r, "Fetching post", err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{"post": post})
}

func deletePost(w http.ResponseWriter, r *http.Request) {
	db := database.GetDB()

	var post database.Post
	err := db.First(&post, chi.URLParam(r, "postID")).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		respondError(w, http.StatusNotFound, "post not found")
		return
	}
	if err != nil {
		respondServerError(w, r, "Fetching post", err)
		return
	}

	if post.AuthorID != currentUser(r).ID {
		respondError(w, http.StatusForbidden, "only the author can modify this post")
		return
	}

	err = db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&post).Association("Tags").Clear(); err != nil {
			return err
		}
		return tx.Delete(&post).Error
	})
	if err != nil {
		respondServerError(w, r, "Deleting post", err)
		return
	}

	respondMessage(w, http.StatusOK, nil, "post deleted")
}

var errUnknownTag = errors.New("unknown tag id")

// findTagsByID resolves tag ids for attachment, rejecting ids that don't
// exist so posts can't point at ghost tags.
func findTagsByID(ids []uint) ([]database.Tag, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	unique := make([]uint, 0, len(ids))
	seen := make(map[uint]bool, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			unique = append(unique, id)
		}
	}

	var tags []database.Tag
	if err := database.GetDB().Find(&tags, unique).Error; err != nil {
		return nil, err
	}
	if len(tags) != len(unique) {
		return nil, fmt.Errorf("%w: got %d of %d", errUnknownTag, len(tags), len(unique))
	}
	return tags, nil
}
