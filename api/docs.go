package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"inkwell/database"

	"github.com/go-chi/chi/v5"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// sidebarOrder is the canonical ordering everywhere sections or pages are
// listed. Ties on position fall back to id so the order is stable.
func sidebarOrder(db *gorm.DB) *gorm.DB {
	return db.Order("sidebar_position ASC, id ASC")
}

// scopeError marks reorder items that point outside the collection being
// reordered. The whole batch is rejected when one shows up.
type scopeError struct {
	msg string
}

func (e *scopeError) Error() string { return e.msg }

type reorderInput struct {
	Items []struct {
		ID       uint `json:"id"`
		Position int  `json:"position"`
	} `json:"items"`
}

func listDocProducts(w http.ResponseWriter, r *http.Request) {
	var products []database.DocProduct
	err := database.GetDB().
		Preload("Sections", sidebarOrder).
		Preload("Sections.Pages", sidebarOrder).
		Order("name ASC").
		Find(&products).Error
	if err != nil {
		respondServerError(w, r, "Fetching documentation products", err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{"products": products})
}

func getDocProduct(w http.ResponseWriter, r *http.Request) {
	var product database.DocProduct
	err := database.GetDB().
		Preload("Sections", sidebarOrder).
		Preload("Sections.Pages", sidebarOrder).
		Where("slug = ?", chi.URLParam(r, "productSlug")).
		First(&product).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		respondError(w, http.StatusNotFound, "product not found")
		return
	}
	if err != nil {
		respondServerError(w, r, "Fetching documentation product", err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{"product": product})
}

// getDocPage resolves the product/section/page slug path one parent at a
// time, so a page slug can never match outside its section.
func getDocPage(w http.ResponseWriter, r *http.Request) {
	db := database.GetDB()

	var product database.DocProduct
	err := db.Where("slug = ?", chi.URLParam(r, "productSlug")).First(&product).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		respondError(w, http.StatusNotFound, "product not found")
		return
	}
	if err != nil {
		respondServerError(w, r, "Fetching documentation product", err)
		return
	}

	var section database.DocSection
	err = db.Where("product_id = ? AND slug = ?", product.ID, chi.URLParam(r, "sectionSlug")).First(&section).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		respondError(w, http.StatusNotFound, "section not found")
		return
	}
	if err != nil {
		respondServerError(w, r, "Fetching documentation section", err)
		return
	}

	var page database.DocPage
	err = db.Where("section_id = ? AND slug = ?", section.ID, chi.URLParam(r, "pageSlug")).First(&page).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		respondError(w, http.StatusNotFound, "page not found")
		return
	}
	if err != nil {
		respondServerError(w, r, "Fetching documentation page", err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"product": product,
		"section": section,
		"page":    page,
	})
}

func createDocProduct(w http.ResponseWriter, r *http.Request) {
	var input struct {
		Name        string `json:"name"`
		Slug        string `json:"slug"`
		Description string `json:"description"`
	}
	if err := decodeJSON(w, r, &input); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	v := newValidator()
	v.checkNotBlank(input.Name, "name")
	v.checkMaxLength(input.Name, 100, "name")
	v.checkMaxLength(input.Description, 500, "description")
	if !v.valid() {
		respondValidation(w, v)
		return
	}

	product := database.DocProduct{
		Name:        strings.TrimSpace(input.Name),
		Description: input.Description,
	}

	base := input.Slug
	if strings.TrimSpace(base) == "" {
		base = product.Name
	}

	db := database.GetDB()
	err := database.CreateWithSlug(db, func() *gorm.DB {
		return db.Model(&database.DocProduct{})
	}, database.Slugify(base, "product"), &product)
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		respondError(w, http.StatusBadRequest, "could not allocate a unique slug, try again")
		return
	}
	if err != nil {
		respondServerError(w, r, "Creating documentation product", err)
		return
	}

	respondJSON(w, http.StatusCreated, map[string]any{"product": product})
}

func updateDocProduct(w http.ResponseWriter, r *http.Request) {
	db := database.GetDB()

	var product database.DocProduct
	err := db.First(&product, chi.URLParam(r, "productID")).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		respondError(w, http.StatusNotFound, "product not found")
		return
	}
	if err != nil {
		respondServerError(w, r, "Fetching documentation product", err)
		return
	}

	var input struct {
		Name        *string `json:"name"`
		Slug        *string `json:"slug"`
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
		v.checkMaxLength(name, 100, "name")
		nameChanged = name != product.Name
		product.Name = name
	}
	if input.Description != nil {
		v.checkMaxLength(*input.Description, 500, "description")
		product.Description = *input.Description
	}
	if !v.valid() {
		respondValidation(w, v)
		return
	}

	slugBase := ""
	if input.Slug != nil && strings.TrimSpace(*input.Slug) != "" {
		slugBase = *input.Slug
	} else if nameChanged {
		slugBase = product.Name
	}
	if slugBase != "" {
		newSlug, err := database.UniqueSlug(func() *gorm.DB {
			return db.Model(&database.DocProduct{})
		}, database.Slugify(slugBase, "product"), product.ID)
		if err != nil {
			respondServerError(w, r, "Resolving slug", err)
			return
		}
		product.Slug = newSlug
	}

	err = db.Save(&product).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		respondError(w, http.StatusBadRequest, "could not allocate a unique slug, try again")
		return
	}
	if err != nil {
		respondServerError(w, r, "Updating documentation product", err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{"product": product})
}

func deleteDocProduct(w http.ResponseWriter, r *http.Request) {
	db := database.GetDB()

	var product database.DocProduct
	err := db.First(&product, chi.URLParam(r, "productID")).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		respondError(w, http.StatusNotFound, "product not found")
		return
	}
	if err != nil {
		respondServerError(w, r, "Fetching documentation product", err)
		return
	}

	err = db.Transaction(func(tx *gorm.DB) error {
		sectionIDs := tx.Model(&database.DocSection{}).Select("id").Where("product_id = ?", product.ID)
		if err := tx.Where("section_id IN (?)", sectionIDs).Delete(&database.DocPage{}).Error; err != nil {
			return err
		}
		if err := tx.Where("product_id = ?", product.ID).Delete(&database.DocSection{}).Error; err != nil {
			return err
		}
		return tx.Delete(&product).Error
	})
	if err != nil {
		respondServerError(w, r, "Deleting documentation product", err)
		return
	}

	respondMessage(w, http.StatusOK, nil, "product deleted")
}

func createDocSection(w http.ResponseWriter, r *http.Request) {
	db := database.GetDB()

	var product database.DocProduct
	err := db.First(&product, chi.URLParam(r, "productID")).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		respondError(w, http.StatusNotFound, "product not found")
		return
	}
	if err != nil {
		respondServerError(w, r, "Fetching documentation product", err)
		return
	}

	var input struct {
		Title           string `json:"title"`
		Slug            string `json:"slug"`
		SidebarPosition *int   `json:"sidebarPosition"`
	}
	if err := decodeJSON(w, r, &input); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	v := newValidator()
	v.checkNotBlank(input.Title, "title")
	v.checkMaxLength(input.Title, 100, "title")
	if !v.valid() {
		respondValidation(w, v)
		return
	}

	section := database.DocSection{
		ProductID: product.ID,
		Title:     strings.TrimSpace(input.Title),
	}

	if input.SidebarPosition != nil {
		section.SidebarPosition = *input.SidebarPosition
	} else {
		// New sections go to the end of the sidebar.
		var next int
		err := db.Model(&database.DocSection{}).
			Where("product_id = ?", product.ID).
			Select("COALESCE(MAX(sidebar_position) + 1, 0)").
			Scan(&next).Error
		if err != nil {
			respondServerError(w, r, "Computing sidebar position", err)
			return
		}
		section.SidebarPosition = next
	}

	base := input.Slug
	if strings.TrimSpace(base) == "" {
		base = section.Title
	}

	err = database.CreateWithSlug(db, func() *gorm.DB {
		return db.Model(&database.DocSection{}).Where("product_id = ?", product.ID)
	}, database.Slugify(base, "section"), &section)
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		respondError(w, http.StatusBadRequest, "could not allocate a unique slug, try again")
		return
	}
	if err != nil {
		respondServerError(w, r, "Creating documentation section", err)
		return
	}

	respondJSON(w, http.StatusCreated, map[string]any{"section": section})
}

func updateDocSection(w http.ResponseWriter, r *http.Request) {
	db := database.GetDB()

	var section database.DocSection
	err := db.First(&section, chi.URLParam(r, "sectionID")).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		respondError(w, http.StatusNotFound, "section not found")
		return
	}
	if err != nil {
		respondServerError(w, r, "Fetching documentation section", err)
		return
	}

	var input struct {
		Title           *string `json:"title"`
		Slug            *string `json:"slug"`
		SidebarPosition *int    `json:"sidebarPosition"`
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
		v.checkMaxLength(title, 100, "title")
		titleChanged = title != section.Title
		section.Title = title
	}
	if input.SidebarPosition != nil {
		section.SidebarPosition = *input.SidebarPosition
	}
	if !v.valid() {
		respondValidation(w, v)
		return
	}

	slugBase := ""
	if input.Slug != nil && strings.TrimSpace(*input.Slug) != "" {
		slugBase = *input.Slug
	} else if titleChanged {
		slugBase = section.Title
	}
	if slugBase != "" {
		newSlug, err := database.UniqueSlug(func() *gorm.DB {
			return db.Model(&database.DocSection{}).Where("product_id = ?", section.ProductID)
		}, database.Slugify(slugBase, "section"), section.ID)
		if err != nil {
			respondServerError(w, r, "Resolving slug", err)
			return
		}
		section.Slug = newSlug
	}

	err = db.Save(&section).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		respondError(w, http.StatusBadRequest, "could not allocate a unique slug, try again")
		return
	}
	if err != nil {
		respondServerError(w, r, "Updating documentation section", err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{"section": section})
}

func deleteDocSection(w http.ResponseWriter, r *http.Request) {
	db := database.GetDB()

	var section database.DocSection
	err := db.First(&section, chi.URLParam(r, "sectionID")).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		respondError(w, http.StatusNotFound, "section not found")
		return
	}
	if err != nil {
		respondServerError(w, r, "Fetching documentation section", err)
		return
	}

	err = db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("section_id = ?", section.ID).Delete(&database.DocPage{}).Error; err != nil {
			return err
		}
		return tx.Delete(&section).Error
	})
	if err != nil {
		respondServerError(w, r, "Deleting documentation section", err)
		return
	}

	respondMessage(w, http.StatusOK, nil, "section deleted")
}

// reorderDocSections applies a batch of position moves atomically. Every
// item must belong to the product; one foreign id rejects the whole batch
// and nothing is applied.
func reorderDocSections(w http.ResponseWriter, r *http.Request) {
	db := database.GetDB()

	var product database.DocProduct
	err := db.First(&product, chi.URLParam(r, "productID")).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		respondError(w, http.StatusNotFound, "product not found")
		return
	}
	if err != nil {
		respondServerError(w, r, "Fetching documentation product", err)
		return
	}

	var input reorderInput
	if err := decodeJSON(w, r, &input); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if len(input.Items) == 0 {
		respondError(w, http.StatusBadRequest, "items must not be empty")
		return
	}

	err = db.Transaction(func(tx *gorm.DB) error {
		for _, item := range input.Items {
			res := tx.Model(&database.DocSection{}).
				Where("id = ? AND product_id = ?", item.ID, product.ID).
				Update("sidebar_position", item.Position)
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				return &scopeError{msg: fmt.Sprintf("section %d is not part of this product", item.ID)}
			}
		}
		return nil
	})

	var scopeErr *scopeError
	if errors.As(err, &scopeErr) {
		respondError(w, http.StatusBadRequest, scopeErr.Error())
		return
	}
	if err != nil {
		respondServerError(w, r, "Reordering sections", err)
		return
	}

	var sections []database.DocSection
	err = sidebarOrder(db.Where("product_id = ?", product.ID)).Find(&sections).Error
	if err != nil {
		respondServerError(w, r, "Fetching documentation sections", err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{"sections": sections})
}

func createDocPage(w http.ResponseWriter, r *http.Request) {
	db := database.GetDB()

	var section database.DocSection
	err := db.First(&section, chi.URLParam(r, "sectionID")).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		respondError(w, http.StatusNotFound, "section not found")
		return
	}
	if err != nil {
		respondServerError(w, r, "Fetching documentation section", err)
		return
	}

	var input struct {
		Title           string          `json:"title"`
		Slug            string          `json:"slug"`
		Content         json.RawMessage `json:"content"`
		SidebarPosition *int            `json:"sidebarPosition"`
	}
	if err := decodeJSON(w, r, &input); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	v := newValidator()
	v.checkNotBlank(input.Title, "title")
	v.checkMaxLength(input.Title, 100, "title")
	if !v.valid() {
		respondValidation(w, v)
		return
	}

	page := database.DocPage{
		SectionID: section.ID,
		Title:     strings.TrimSpace(input.Title),
		Content:   datatypes.JSON(input.Content),
	}

	if input.SidebarPosition != nil {
		page.SidebarPosition = *input.SidebarPosition
	} else {
		var next int
		err := db.Model(&database.DocPage{}).
			Where("section_id = ?", section.ID).
			Select("COALESCE(MAX(sidebar_position) + 1, 0)").
			Scan(&next).Error
		if err != nil {
			respondServerError(w, r, "Computing sidebar position", err)
			return
		}
		page.SidebarPosition = next
	}

	base := input.Slug
	if strings.TrimSpace(base) == "" {
		base = page.Title
	}

	err = database.CreateWithSlug(db, func() *gorm.DB {
		return db.Model(&database.DocPage{}).Where("section_id = ?", section.ID)
	}, database.Slugify(base, "page"), &page)
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		respondError(w, http.StatusBadRequest, "could not allocate a unique slug, try again")
		return
	}
	if err != nil {
		respondServerError(w, r, "Creating documentation page", err)
		return
	}

	respondJSON(w, http.StatusCreated, map[string]any{"page": page})
}

func updateDocPage(w http.ResponseWriter, r *http.Request) {
	db := database.GetDB()

	var page database.DocPage
	err := db.First(&page, chi.URLParam(r, "pageID")).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		respondError(w, http.StatusNotFound, "page not found")
		return
	}
	if err != nil {
		respondServerError(w, r, "Fetching documentation page", err)
		return
	}

	var input struct {
		Title           *string          `json:"title"`
		Slug            *string          `json:"slug"`
		Content         *json.RawMessage `json:"content"`
		SidebarPosition *int             `json:"sidebarPosition"`
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
		v.checkMaxLength(title, 100, "title")
		titleChanged = title != page.Title
		page.Title = title
	}
	if input.Content != nil {
		page.Content = datatypes.JSON(*input.Content)
	}
	if input.SidebarPosition != nil {
		page.SidebarPosition = *input.SidebarPosition
	}
	if !v.valid() {
		respondValidation(w, v)
		return
	}

	slugBase := ""
	if input.Slug != nil && strings.TrimSpace(*input.Slug) != "" {
		slugBase = *input.Slug
	} else if titleChanged {
		slugBase = page.Title
	}
	if slugBase != "" {
		newSlug, err := database.UniqueSlug(func() *gorm.DB {
			return db.Model(&database.DocPage{}).Where("section_id = ?", page.SectionID)
		}, database.Slugify(slugBase, "page"), page.ID)
		if err != nil {
			respondServerError(w, r, "Resolving slug", err)
			return
		}
		page.Slug = newSlug
	}

	err = db.Save(&page).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		respondError(w, http.StatusBadRequest, "could not allocate a unique slug, try again")
		return
	}
	if err != nil {
		respondServerError(w, r, "Updating documentation page", err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{"page": page})
}

func deleteDocPage(w http.ResponseWriter, r *http.Request) {
	db := database.GetDB()

	var page database.DocPage
	err := db.First(&page, chi.URLParam(r, "pageID")).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		respondError(w, http.StatusNotFound, "page not found")
		return
	}
	if err != nil {
		respondServerError(w, r, "Fetching documentation page", err)
		return
	}

	if err := db.Delete(&page).Error; err != nil {
		respondServerError(w, r, "Deleting documentation page", err)
		return
	}

	respondMessage(w, http.StatusOK, nil, "page deleted")
}

func reorderDocPages(w http.ResponseWriter, r *http.Request) {
	db := database.GetDB()

	var section database.DocSection
	err := db.First(&section, chi.URLParam(r, "sectionID")).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		respondError(w, http.StatusNotFound, "section not found")
		return
	}
	if err != nil {
		respondServerError(w, r, "Fetching documentation section", err)
		return
	}

	var input reorderInput
	if err := decodeJSON(w, r, &input); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if len(input.Items) == 0 {
		respondError(w, http.StatusBadRequest, "items must not be empty")
		return
	}

	err = db.Transaction(func(tx *gorm.DB) error {
		for _, item := range input.Items {
			res := tx.Model(&database.DocPage{}).
				Where("id = ? AND section_id = ?", item.ID, section.ID).
				Update("sidebar_position", item.Position)
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				return &scopeError{msg: fmt.Sprintf("page %d is not part of this section", item.ID)}
			}
		}
		return nil
	})

	var scopeErr *scopeError
	if errors.As(err, &scopeErr) {
		respondError(w, http.StatusBadRequest, scopeErr.Error())
		return
	}
	if err != nil {
		respondServerError(w, r, "Reordering pages", err)
		return
	}

	var pages []database.DocPage
	err = sidebarOrder(db.Where("section_id = ?", section.ID)).Find(&pages).Error
	if err != nil {
		respondServerError(w, r, "Fetching documentation pages", err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{"pages": pages})
}
