// Package models defines the domain types for Bragi.
package models

import (
	"encoding/json"
	"time"
)

// Draft statuses tracked by the index.
const (
	StatusDraft     = "draft"
	StatusSubmitted = "submitted"
)

// DraftRecord is the authoritative representation of one article draft.
// It is always replaced wholesale; no field is ever updated in isolation.
type DraftRecord struct {
	ArticleID    string          `json:"article_id"`
	Title        string          `json:"title"`
	Content      json.RawMessage `json:"content"`
	LastModified time.Time       `json:"last_modified"`
}

// DraftMetadata is a lightweight representation returned by list operations.
type DraftMetadata struct {
	ArticleID string    `json:"article_id"`
	Checksum  string    `json:"checksum"`
	UpdatedAt time.Time `json:"updated_at"`
}
