package api

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"inkwell/database"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// importMaxBytes caps the uploaded CSV at 10 MB.
const importMaxBytes = 10 << 20

// importError points at the offending CSV row. It rejects the whole import;
// nothing from the file is applied.
type importError struct {
	row int
	msg string
}

func (e *importError) Error() string { return fmt.Sprintf("row %d: %s", e.row, e.msg) }

// importPosts recreates posts from a CSV export. Columns: title, slug,
// excerpt, content, published, publishedAt, tags. The header row is skipped.
// Rows whose slug already exists are skipped, or replaced when the overwrite
// form value is "true". The file is applied in one transaction.
func importPosts(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r)

	r.Body = http.MaxBytesReader(w, r.Body, importMaxBytes)
	if err := r.ParseMultipartForm(importMaxBytes); err != nil {
		var maxBytesError *http.MaxBytesError
		if errors.As(err, &maxBytesError) {
			respondError(w, http.StatusBadRequest, "import file must not be larger than 10 MB")
			return
		}
		respondError(w, http.StatusBadRequest, "could not parse multipart form")
		return
	}

	file, _, err := r.FormFile("file")
	if err != nil {
		respondError(w, http.StatusBadRequest, `a "file" field with the CSV export is required`)
		return
	}
	defer file.Close()

	overwrite := r.FormValue("overwrite") == "true"

	reader := csv.NewReader(file)
	if _, err := reader.Read(); err != nil {
		respondError(w, http.StatusBadRequest, "could not read the CSV header row")
		return
	}
	records, err := reader.ReadAll()
	if err != nil {
		respondError(w, http.StatusBadRequest, "could not parse the CSV file")
		return
	}

	var imported, skipped, replaced int

	db := database.GetDB()
	err = db.Transaction(func(tx *gorm.DB) error {
		var posts []database.Post
		if err := tx.Select("id", "slug").Find(&posts).Error; err != nil {
			return err
		}
		existing := make(map[string]uint, len(posts))
		for _, p := range posts {
			existing[p.Slug] = p.ID
		}

		for i, rec := range records {
			row := i + 2
			if len(rec) < 7 {
				return &importError{row: row, msg: "expected 7 columns"}
			}

			title := strings.TrimSpace(rec[0])
			if title == "" {
				return &importError{row: row, msg: "title must not be blank"}
			}
			if utf8.RuneCountInString(title) > 200 {
				return &importError{row: row, msg: "title must be at most 200 characters"}
			}

			base := strings.TrimSpace(rec[1])
			if base == "" {
				base = title
			}
			slugged := database.Slugify(base, "post")

			wasReplaced := false
			if id, taken := existing[slugged]; taken {
				if !overwrite {
					skipped++
					continue
				}
				old := database.Post{ID: id}
				if err := tx.Model(&old).Association("Tags").Clear(); err != nil {
					return err
				}
				if err := tx.Delete(&old).Error; err != nil {
					return err
				}
				delete(existing, slugged)
				replaced++
				wasReplaced = true
			}

			published := strings.EqualFold(rec[4], "true")

			var publishedAt *time.Time
			if cell := strings.TrimSpace(rec[5]); cell != "" {
				parsed, err := parseImportDate(cell)
				if err != nil {
					return &importError{row: row, msg: fmt.Sprintf("unrecognized date %q", cell)}
				}
				publishedAt = &parsed
			} else if published {
				now := time.Now()
				publishedAt = &now
			}

			tags, err := findOrCreateTags(tx, splitTagNames(rec[6]))
			if err != nil {
				return err
			}

			post := database.Post{
				Title:       title,
				Content:     importContent(rec[3]),
				Excerpt:     rec[2],
				Published:   published,
				PublishedAt: publishedAt,
				AuthorID:    user.ID,
				Tags:        tags,
			}
			err = database.CreateWithSlug(tx, func() *gorm.DB {
				return tx.Model(&database.Post{})
			}, slugged, &post)
			if err != nil {
				return err
			}
			if !wasReplaced {
				imported++
			}
			existing[post.Slug] = post.ID
		}
		return nil
	})

	var impErr *importError
	if errors.As(err, &impErr) {
		respondError(w, http.StatusBadRequest, impErr.Error())
		return
	}
	if err != nil {
		respondServerError(w, r, "Importing posts", err)
		return
	}

	respondMessage(w, http.StatusOK, map[string]any{
		"imported": imported,
		"skipped":  skipped,
		"replaced": replaced,
	}, "import finished")
}

// importContent keeps the content column opaque. Cells that already hold a
// JSON document pass through; anything else is stored as a JSON string.
func importContent(cell string) datatypes.JSON {
	trimmed := strings.TrimSpace(cell)
	if trimmed == "" {
		return nil
	}
	if json.Valid([]byte(trimmed)) {
		return datatypes.JSON(trimmed)
	}
	wrapped, _ := json.Marshal(cell)
	return datatypes.JSON(wrapped)
}

func splitTagNames(cell string) []string {
	var names []string
	for _, name := range strings.Split(cell, ",") {
		if name = strings.TrimSpace(name); name != "" {
			names = append(names, name)
		}
	}
	return names
}

// findOrCreateTags resolves tag names case-insensitively, creating the ones
// that don't exist yet.
func findOrCreateTags(tx *gorm.DB, names []string) ([]database.Tag, error) {
	var tags []database.Tag
	seen := make(map[string]bool, len(names))

	for _, name := range names {
		if seen[strings.ToLower(name)] {
			continue
		}
		seen[strings.ToLower(name)] = true

		var tag database.Tag
		err := tx.Where("LOWER(name) = LOWER(?)", name).First(&tag).Error
		if err == nil {
			tags = append(tags, tag)
			continue
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}

		tag = database.Tag{Name: name}
		err = database.CreateWithSlug(tx, func() *gorm.DB {
			return tx.Model(&database.Tag{})
		}, database.Slugify(name, "tag"), &tag)
		if err != nil {
			return nil, err
		}
		tags = append(tags, tag)
	}
	return tags, nil
}

// parseImportDate accepts the date layouts other platforms commonly export.
func parseImportDate(s string) (time.Time, error) {
	layouts := []string{
		"2006-01-02T15:04",
		time.RFC3339,
		time.RFC3339Nano,
		time.RFC1123,
		time.RFC1123Z,
		time.DateTime,
		time.DateOnly,
		"2006-01-02 15:04:05-07:00",
	}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unable to parse date: %s", s)
}
