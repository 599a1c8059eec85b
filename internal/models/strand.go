package models

import "time"

// DefaultStrandIcon is used when a strand is created without an icon.
const DefaultStrandIcon = "BookOpen"

// Strand is an academic track papers are filed under.
type Strand struct {
	ID          string    `db:"id" json:"id"`
	Short       string    `db:"short" json:"short"`
	Name        string    `db:"name" json:"name"`
	Description string    `db:"description" json:"description"`
	Icon        string    `db:"icon" json:"icon"`
	CreatedAt   time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt   time.Time `db:"updated_at" json:"updatedAt"`
}

// StrandSummary is the list view with aggregate paper figures.
type StrandSummary struct {
	Strand
	PaperCount     int   `db:"paper_count" json:"paperCount"`
	TotalDownloads int64 `db:"total_downloads" json:"totalDownloads"`
}
