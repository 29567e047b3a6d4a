// Package cache defines the local draft cache abstraction.
package cache

import "github.com/bragi-editor/bragi/internal/models"

// KeyPrefix namespaces cache entries: one record per article, stored
// under "draft-<articleID>".
const KeyPrefix = "draft-"

// Provider is the interface for local draft cache operations.
type Provider interface {
	// Get returns the cached record for an article, or apperr.ErrNotFound.
	Get(articleID string) (*models.DraftRecord, error)
	// Set overwrites the cached record for an article wholesale.
	Set(articleID string, rec *models.DraftRecord) error
	// Remove discards the cached record for an article. Removing a
	// missing entry is not an error.
	Remove(articleID string) error
	// List returns metadata for every cached draft.
	List() ([]models.DraftMetadata, error)
}
