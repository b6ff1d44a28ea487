package models

import "time"

type AccessHandle struct {
	ID         string
	Token      string
	UserID     string
	DocumentID string
	CreatedAt  time.Time
}
