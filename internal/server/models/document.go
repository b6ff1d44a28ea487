// Package models defines server-side data models persisted in the database.
package models

import (
	"fmt"
	"time"
)

// Document statuses. An "expected" document is a placeholder row the admins
// track before any file has been uploaded for it.
const (
	DocumentStatusAvailable = "available"
	DocumentStatusExpected  = "expected"
)

// Document describes data-room document metadata. The binary content itself
// lives in object storage under StorageKey; placeholders carry an empty key.
type Document struct {
	// ID is the caller-facing document identifier.
	ID string
	// Title is the display name shown in listings.
	Title string
	// Category groups documents in the room index (e.g. "financials").
	Category string
	// Status is one of the DocumentStatus constants.
	Status string
	// Notes holds free-form admin notes shown in the room index.
	Notes string
	// DueDate is the requested delivery date for expected documents.
	DueDate *time.Time

	// StorageKey is the object-storage key of the content blob.
	StorageKey string
	// ContentType is the MIME type served with the content.
	ContentType string
	// SizeBytes is the stored content length.
	SizeBytes int64
	// ContentHash is the SHA-256 hex digest of the uploaded bytes, computed
	// once at upload time and immutable afterwards.
	ContentHash string

	// Visibility lists the role names allowed to see the document. The
	// pseudo-role "nda" marks the document as NDA-gated.
	Visibility []string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// HasContent reports whether a blob has been uploaded for the document.
func (d *Document) HasContent() bool {
	return d.StorageKey != ""
}

// HumanSize renders SizeBytes as a display string with one decimal, e.g.
// "1.5 MB". Placeholders without content render as an empty string.
func (d *Document) HumanSize() string {
	if !d.HasContent() {
		return ""
	}
	switch {
	case d.SizeBytes >= 1<<20:
		return fmt.Sprintf("%.1f MB", float64(d.SizeBytes)/(1<<20))
	case d.SizeBytes >= 1<<10:
		return fmt.Sprintf("%.1f KB", float64(d.SizeBytes)/(1<<10))
	default:
		return fmt.Sprintf("%d B", d.SizeBytes)
	}
}
