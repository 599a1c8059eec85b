package storage

import (
	"context"
	"errors"
	"io"
	"regexp"
	"strings"
)

// Sentinel errors shared by every file store implementation.
var (
	ErrFileNotFound = errors.New("storage: file not found")
	ErrInvalidName  = errors.New("storage: invalid file name")
)

// FileStore persists paper PDFs keyed by a flat file name.
type FileStore interface {
	Put(ctx context.Context, name string, r io.Reader, size int64, contentType string) error
	Open(ctx context.Context, name string) (io.ReadCloser, int64, error)
	Exists(ctx context.Context, name string) (bool, error)
	Rename(ctx context.Context, from, to string) error
	Delete(ctx context.Context, name string) error
}

var unsafeTitleChars = regexp.MustCompile(`[^a-zA-Z0-9 ]`)

// FileNameForTitle derives the stored PDF name from a paper title.
func FileNameForTitle(title string) string {
	base := strings.TrimSpace(unsafeTitleChars.ReplaceAllString(title, ""))
	if base == "" {
		base = "paper"
	}
	return base + ".pdf"
}

func validateName(name string) (string, error) {
	name = strings.TrimPrefix(strings.TrimSpace(name), "/")
	if name == "" || strings.Contains(name, "..") || strings.ContainsAny(name, `/\`) {
		return "", ErrInvalidName
	}
	return name, nil
}
