// internal/domain/models.go
package domain

import "time"

// UserMetadata is an account that may sign in to the CMS
type UserMetadata struct {
	UserId       string
	Username     string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
}

// StoredRecord is one persisted record of a configured table
type StoredRecord struct {
	TableID   string         `json:"-"`
	Key       string         `json:"key"`
	Body      map[string]any `json:"record"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// StoredAgent is one persisted agent profile
type StoredAgent struct {
	Key       string
	Body      map[string]any
	UpdatedAt time.Time
}
