package database

import (
	"errors"
	"fmt"

	"github.com/gosimple/slug"
	"gorm.io/gorm"
)

// slugCreateAttempts bounds how often a create is retried after losing a
// probe-then-insert race to a concurrent request.
const slugCreateAttempts = 3

// Slugged is implemented by every model that carries a slug column. Only
// models in this package can satisfy it.
type Slugged interface {
	setSlug(string)
}

// Slugify turns free text into a URL slug. Titles that reduce to nothing
// (emoji, punctuation) fall back to the entity noun so the uniqueness
// suffixing still has a base to work with.
func Slugify(s, fallback string) string {
	if out := slug.Make(s); out != "" {
		return out
	}
	return slug.Make(fallback)
}

// UniqueSlug probes base, base-1, base-2, ... against the sibling scope and
// returns the first free candidate. siblings must return a fresh query each
// call. excludeID skips the row being updated so it can keep its own slug.
func UniqueSlug(siblings func() *gorm.DB, base string, excludeID uint) (string, error) {
	for n := 0; ; n++ {
		candidate := base
		if n > 0 {
			candidate = fmt.Sprintf("%s-%d", base, n)
		}

		q := siblings().Where("slug = ?", candidate)
		if excludeID != 0 {
			q = q.Where("id <> ?", excludeID)
		}

		var count int64
		if err := q.Count(&count).Error; err != nil {
			return "", err
		}
		if count == 0 {
			return candidate, nil
		}
	}
}

// CreateWithSlug resolves a unique slug for record and inserts it. Two
// requests can pass the probe with the same candidate; the loser trips the
// unique index and re-resolves. After slugCreateAttempts failures the
// duplicate-key error is returned for the handler to map to a conflict
// response.
func CreateWithSlug(tx *gorm.DB, siblings func() *gorm.DB, base string, record Slugged) error {
	var err error
	for attempt := 0; attempt < slugCreateAttempts; attempt++ {
		var s string
		s, err = UniqueSlug(siblings, base, 0)
		if err != nil {
			return err
		}
		record.setSlug(s)

		err = tx.Create(record).Error
		if err == nil || !errors.Is(err, gorm.ErrDuplicatedKey) {
			return err
		}
	}
	return err
}
