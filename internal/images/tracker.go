// Package images tracks the image references in a document across
// updates so uploaded assets that fall out of the document can be
// garbage-collected on the backend.
package images

import (
	"sync"

	"github.com/bragi-editor/bragi/internal/document"
)

// RemoveFunc is invoked once for every image reference that was present
// in the previous snapshot and is absent from the current one. The
// invocation order across simultaneous removals is unspecified.
type RemoveFunc func(imageURL string)

// Tracker diffs consecutive snapshots of a document's image set.
type Tracker struct {
	mu       sync.Mutex
	prev     map[string]struct{}
	onRemove RemoveFunc
}

// NewTracker creates a tracker. onRemove may be nil, in which case the
// tracker only maintains the snapshot.
func NewTracker(onRemove RemoveFunc) *Tracker {
	return &Tracker{
		prev:     make(map[string]struct{}),
		onRemove: onRemove,
	}
}

// Observe takes a new snapshot from the document tree and fires the
// removal callback for every reference that vanished since the last one.
func (t *Tracker) Observe(root *document.Node) {
	current := root.Images()

	t.mu.Lock()
	var removed []string
	for src := range t.prev {
		if _, ok := current[src]; !ok {
			removed = append(removed, src)
		}
	}
	t.prev = current
	fn := t.onRemove
	t.mu.Unlock()

	if fn == nil {
		return
	}
	for _, src := range removed {
		fn(src)
	}
}

// Seed replaces the snapshot without firing callbacks. Used after the
// initial load so pre-existing images are not treated as additions.
func (t *Tracker) Seed(root *document.Node) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.prev = root.Images()
}

// Reset forgets the snapshot without firing callbacks.
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.prev = make(map[string]struct{})
}
