package models

import "time"

// PublicStats is shown on the landing page.
type PublicStats struct {
	Papers    int   `json:"papers"`
	Downloads int64 `json:"downloads"`
	Strands   int   `json:"strands"`
	Since     int   `json:"since"`
}

// DashboardTotals holds the headline counters of the admin dashboard.
type DashboardTotals struct {
	TotalPapers     int   `json:"totalPapers"`
	TotalDownloads  int64 `json:"totalDownloads"`
	ActiveStrands   int   `json:"activeStrands"`
	RegisteredUsers int   `json:"registeredUsers"`
	PapersTrend     int   `json:"papersTrend"`
	DownloadsTrend  int   `json:"downloadsTrend"`
}

// RecentUpload is a compact paper row for the dashboard.
type RecentUpload struct {
	ID            string    `db:"id" json:"id"`
	Title         string    `db:"title" json:"title"`
	Strand        string    `db:"strand" json:"strand"`
	DownloadCount int64     `db:"download_count" json:"download_count"`
	PublishedDate time.Time `db:"created_at" json:"published_date"`
}

// SchoolYearCount is one bucket of the school year distribution.
type SchoolYearCount struct {
	Year  string `db:"year" json:"year"`
	Count int    `db:"count" json:"count"`
}

// StrandDownloads sums downloads per strand.
type StrandDownloads struct {
	Strand    string `db:"strand" json:"strand"`
	Downloads int64  `db:"downloads" json:"downloads"`
}

// DashboardStats aggregates every dashboard widget.
type DashboardStats struct {
	Stats                  DashboardTotals   `json:"stats"`
	RecentUploads          []RecentUpload    `json:"recentUploads"`
	SchoolYearDistribution []SchoolYearCount `json:"schoolYearDistribution"`
	DownloadsByStrand      []StrandDownloads `json:"downloadsByStrand"`
}
