package index

// DraftIndex defines the interface for draft indexing operations.
// Consumers should depend on this interface rather than the concrete
// *DB type to facilitate testing with mocks.
type DraftIndex interface {
	UpsertDraft(d DraftRow, body string) error
	DeleteDraft(articleID string) error
	GetDraft(articleID string) (*DraftRow, error)
	GetChecksum(articleID string) (string, error)
	SetStatus(articleID, status string) error
	ListDrafts(limit, offset int, status, sort string) ([]DraftRow, int, error)
	Search(query string, limit int) ([]SearchResult, error)
	AllChecksums() (map[string]string, error)
	Close() error
}

// Verify *DB satisfies DraftIndex at compile time.
var _ DraftIndex = (*DB)(nil)
