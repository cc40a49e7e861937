package domain

import "time"

// Comment is a message on a ticket thread. Internal comments are hidden from
// non-internal readers.
type Comment struct {
	ID        string
	TenantID  string
	TicketID  string
	AuthorID  string
	Body      string
	Internal  bool
	CreatedAt time.Time
}

// Attachment stores metadata for an uploaded file; the bytes live in binary
// storage and are referenced by StorageKey.
type Attachment struct {
	ID         string
	TenantID   string
	TicketID   string
	UploadedBy string
	StorageKey string
	FileName   string
	MimeType   string
	SizeBytes  int64
	CreatedAt  time.Time
}
