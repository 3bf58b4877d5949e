package database

import (
	"time"

	"gorm.io/datatypes"
)

// Rows are deleted for real. Soft-delete markers would keep occupying the
// unique slug indexes and inflate the tag reference counts.

type User struct {
	ID           uint      `gorm:"primarykey" json:"id"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
	Email        string    `gorm:"uniqueIndex;not null" json:"email"`
	Username     string    `gorm:"uniqueIndex;not null" json:"username"`
	PasswordHash []byte    `json:"-"`
	DisplayName  string    `json:"displayName"`
	Bio          string    `json:"bio"`
	AvatarURL    string    `json:"avatarUrl"`
	IsAdmin      bool      `json:"isAdmin"`
}

type Post struct {
	ID          uint           `gorm:"primarykey" json:"id"`
	CreatedAt   time.Time      `json:"createdAt"`
	UpdatedAt   time.Time      `json:"updatedAt"`
	Title       string         `gorm:"not null" json:"title"`
	Slug        string         `gorm:"uniqueIndex;not null" json:"slug"`
	Content     datatypes.JSON `json:"content"`
	Excerpt     string         `json:"excerpt"`
	CoverImage  string         `json:"coverImage"`
	Published   bool           `gorm:"index" json:"published"`
	PublishedAt *time.Time     `json:"publishedAt"`
	AuthorID    uint           `gorm:"index;not null" json:"authorId"`
	Author      *User          `json:"author,omitempty"`
	Tags        []Tag          `gorm:"many2many:post_tags" json:"tags"`
}

type Tag struct {
	ID          uint      `gorm:"primarykey" json:"id"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
	Name        string    `gorm:"uniqueIndex;not null" json:"name"`
	Slug        string    `gorm:"uniqueIndex;not null" json:"slug"`
	Color       string    `json:"color"`
	Description string    `json:"description"`
	Posts       []Post    `gorm:"many2many:post_tags" json:"-"`

	// Filled by queries that join against post_tags, not a column.
	PostCount int64 `gorm:"-" json:"postCount"`
}

type DocProduct struct {
	ID          uint         `gorm:"primarykey" json:"id"`
	CreatedAt   time.Time    `json:"createdAt"`
	UpdatedAt   time.Time    `json:"updatedAt"`
	Name        string       `gorm:"not null" json:"name"`
	Slug        string       `gorm:"uniqueIndex;not null" json:"slug"`
	Description string       `json:"description"`
	Sections    []DocSection `gorm:"foreignKey:ProductID" json:"sections,omitempty"`
}

// DocSection and DocPage slugs are unique within their parent, not globally.
type DocSection struct {
	ID              uint      `gorm:"primarykey" json:"id"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
	ProductID       uint      `gorm:"uniqueIndex:idx_sections_product_slug;not null" json:"productId"`
	Title           string    `gorm:"not null" json:"title"`
	Slug            string    `gorm:"uniqueIndex:idx_sections_product_slug;not null" json:"slug"`
	SidebarPosition int       `json:"sidebarPosition"`
	Pages           []DocPage `gorm:"foreignKey:SectionID" json:"pages,omitempty"`
}

type DocPage struct {
	ID              uint           `gorm:"primarykey" json:"id"`
	CreatedAt       time.Time      `json:"createdAt"`
	UpdatedAt       time.Time      `json:"updatedAt"`
	SectionID       uint           `gorm:"uniqueIndex:idx_pages_section_slug;not null" json:"sectionId"`
	Title           string         `gorm:"not null" json:"title"`
	Slug            string         `gorm:"uniqueIndex:idx_pages_section_slug;not null" json:"slug"`
	Content         datatypes.JSON `json:"content"`
	SidebarPosition int            `json:"sidebarPosition"`
}

type Subscriber struct {
	ID           uint      `gorm:"primarykey" json:"id"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
	Email        string    `gorm:"uniqueIndex;not null" json:"email"`
	IsActive     bool      `json:"isActive"`
	SubscribedAt time.Time `json:"subscribedAt"`
}

func (p *Post) setSlug(s string)       { p.Slug = s }
func (t *Tag) setSlug(s string)        { t.Slug = s }
func (p *DocProduct) setSlug(s string) { p.Slug = s }
func (s *DocSection) setSlug(v string) { s.Slug = v }
func (p *DocPage) setSlug(s string)    { p.Slug = s }
