package models

import "time"

// NDASignature is the one-time signing record for a user. TextHash is the
// SHA-256 of the exact personalized NDA text shown to the signer; it binds
// the signature to that contract version. Rows are never mutated.
type NDASignature struct {
	ID            string
	UserID        string
	Name          string
	Email         string
	SignatureData string
	NDAVersion    string
	TextHash      string
	IP            string
	UserAgent     string
	SignedAt      time.Time
}
