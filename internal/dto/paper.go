package dto

import "io"

// PaperUpload is an attached PDF ready to be streamed to the file store.
type PaperUpload struct {
	Reader      io.Reader
	Size        int64
	ContentType string
}

// CreatePaperRequest mirrors the multipart form submitted by the console.
type CreatePaperRequest struct {
	Title        string       `form:"title" validate:"required"`
	Authors      string       `form:"authors" validate:"required"`
	Abstract     string       `form:"abstract" validate:"required"`
	Keywords     string       `form:"keywords"`
	Adviser      string       `form:"adviser" validate:"required"`
	SchoolYear   string       `form:"school_year" validate:"required"`
	GradeSection string       `form:"grade_section" validate:"required"`
	Strand       string       `form:"strand" validate:"required"`
	IsFeatured   string       `form:"is_featured"`
	File         *PaperUpload `form:"-" validate:"required"`
}

// UpdatePaperRequest holds optional fields. Nil means "not submitted".
type UpdatePaperRequest struct {
	Title        *string
	Authors      *string
	Abstract     *string
	Keywords     *string
	Adviser      *string
	SchoolYear   *string
	GradeSection *string
	Strand       *string
	IsFeatured   *string
	File         *PaperUpload
}

// PaperListQuery captures list query parameters.
type PaperListQuery struct {
	Search     string `form:"search"`
	Strand     string `form:"strand"`
	SchoolYear string `form:"school_year"`
	Featured   string `form:"featured"`
	Page       int    `form:"page"`
	PageSize   int    `form:"page_size"`
}
