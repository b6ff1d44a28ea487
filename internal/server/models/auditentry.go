package models

import "time"

// Audit actions. Denied is recorded for access attempts the gateway turned
// away after the caller was identified (role or NDA denial).
const (
	ActionView     = "view"
	ActionDownload = "download"
	ActionUpload   = "upload"
	ActionDelete   = "delete"
	ActionSign     = "sign"
	ActionDenied   = "denied"
)

// AuditEntry is one append-only record of a disclosure-relevant action.
// DocumentID is nil for actions not tied to a document, such as NDA signing.
// Subject names a non-document target of the action, e.g. the user whose
// signature an admin removed; it is empty for document actions.
type AuditEntry struct {
	ID         string
	UserID     string
	DocumentID *string
	Subject    string
	Action     string
	IP         string
	CreatedAt  time.Time
}
