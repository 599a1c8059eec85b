package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"
)

// Author is one contributor on a paper.
type Author struct {
	FirstName  string `json:"firstName"`
	MiddleName string `json:"middleName,omitempty"`
	LastName   string `json:"lastName"`
	Suffix     string `json:"suffix,omitempty"`
}

// Authors is stored as a JSONB array.
type Authors []Author

// Value implements driver.Valuer.
func (a Authors) Value() (driver.Value, error) {
	if a == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(a)
}

// Scan implements sql.Scanner.
func (a *Authors) Scan(src interface{}) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*a = Authors{}
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("authors: unsupported scan type %T", src)
	}
	return json.Unmarshal(raw, a)
}

// Normalized drops incidental fields and whitespace so two lists can be compared structurally.
func (a Authors) Normalized() Authors {
	out := make(Authors, len(a))
	for i, author := range a {
		out[i] = Author{
			FirstName:  strings.TrimSpace(author.FirstName),
			MiddleName: strings.TrimSpace(author.MiddleName),
			LastName:   strings.TrimSpace(author.LastName),
			Suffix:     strings.TrimSpace(author.Suffix),
		}
	}
	return out
}

// Equal compares two author lists structurally in order.
func (a Authors) Equal(other Authors) bool {
	x, y := a.Normalized(), other.Normalized()
	if len(x) != len(y) {
		return false
	}
	for i := range x {
		if x[i] != y[i] {
			return false
		}
	}
	return true
}

// Display renders "Last, F. & Last, F.".
func (a Authors) Display() string {
	parts := make([]string, 0, len(a))
	for _, author := range a {
		initial := ""
		if r := []rune(strings.TrimSpace(author.FirstName)); len(r) > 0 {
			initial = string(r[0])
		}
		parts = append(parts, fmt.Sprintf("%s, %s.", author.LastName, initial))
	}
	return strings.Join(parts, " & ")
}

// ErrInvalidAuthors is returned when an authors payload cannot be decoded.
var ErrInvalidAuthors = errors.New("invalid authors format")

// ParseAuthors decodes the JSON-encoded authors form field.
func ParseAuthors(raw string) (Authors, error) {
	var authors Authors
	if err := json.Unmarshal([]byte(raw), &authors); err != nil {
		return nil, ErrInvalidAuthors
	}
	for _, author := range authors {
		if strings.TrimSpace(author.FirstName) == "" || strings.TrimSpace(author.LastName) == "" {
			return nil, ErrInvalidAuthors
		}
	}
	return authors, nil
}

// Paper is a research paper row.
type Paper struct {
	ID            string         `db:"id" json:"id"`
	Title         string         `db:"title" json:"title"`
	Authors       Authors        `db:"authors" json:"authors"`
	Abstract      string         `db:"abstract" json:"abstract"`
	Keywords      pq.StringArray `db:"keywords" json:"keywords"`
	Adviser       string         `db:"adviser" json:"adviser"`
	SchoolYear    string         `db:"school_year" json:"school_year"`
	GradeSection  string         `db:"grade_section" json:"grade_section"`
	StrandID      string         `db:"strand_id" json:"strand_id"`
	IsFeatured    bool           `db:"is_featured" json:"is_featured"`
	DownloadCount int64          `db:"download_count" json:"download_count"`
	PDFPath       string         `db:"pdf_path" json:"pdf_path"`
	CreatedAt     time.Time      `db:"created_at" json:"createdAt"`
	UpdatedAt     time.Time      `db:"updated_at" json:"updatedAt"`
}

// PaperView is the public representation joined with the strand acronym.
type PaperView struct {
	Paper
	Strand        string    `db:"strand" json:"strand"`
	StrandName    string    `db:"strand_name" json:"strand_name"`
	AuthorDisplay string    `db:"-" json:"author_display"`
	PublishedDate time.Time `db:"-" json:"published_date"`
}

// Decorate fills the derived presentation fields.
func (v *PaperView) Decorate() {
	v.AuthorDisplay = v.Authors.Display()
	v.PublishedDate = v.CreatedAt
	if v.Strand == "" {
		v.Strand = "N/A"
	}
}

// PaperFilter captures list filters.
type PaperFilter struct {
	Search     string
	Strand     string
	SchoolYear string
	Featured   *bool
	Page       int
	PageSize   int
}
