// Package editor holds the daemon-side editor session: the in-memory
// counterpart of the browser editing surface. It implements the editor
// contract the persistence coordinator depends on — serialized content
// access, programmatic content replacement, and an update-event stream.
package editor

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/bragi-editor/bragi/internal/document"
)

// UpdateFunc is invoked after every user-driven content change.
type UpdateFunc func()

// ApplyFunc is invoked when content is replaced programmatically
// (initial load, clear) so transports can push it back to the browser.
type ApplyFunc func(content json.RawMessage)

// Session is one article's editor state. User edits arrive through
// Push and fire update listeners; SetContent and ClearContent replace
// content without firing them, mirroring a programmatic setContent in
// the browser editor.
type Session struct {
	articleID string

	mu        sync.RWMutex
	content   json.RawMessage
	updateFns map[int]UpdateFunc
	applyFns  map[int]ApplyFunc
	nextID    int
}

// NewSession creates a session holding an empty document.
func NewSession(articleID string) *Session {
	return &Session{
		articleID: articleID,
		content:   document.EmptyJSON(),
		updateFns: make(map[int]UpdateFunc),
		applyFns:  make(map[int]ApplyFunc),
	}
}

// ArticleID returns the article this session edits.
func (s *Session) ArticleID() string {
	return s.articleID
}

// GetJSON returns the canonical serialization of the current document.
func (s *Session) GetJSON() ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]byte, len(s.content))
	copy(out, s.content)
	return out, nil
}

// Push applies a user edit: the new content replaces the document and
// update listeners fire. Malformed content is rejected.
func (s *Session) Push(content json.RawMessage) error {
	canonical, err := document.Canonical(content)
	if err != nil {
		return fmt.Errorf("editor: push: %w", err)
	}
	s.mu.Lock()
	s.content = canonical
	fns := listeners(s.updateFns)
	s.mu.Unlock()

	for _, fn := range fns {
		fn()
	}
	return nil
}

// SetContent replaces the document programmatically. Update listeners
// do not fire; apply listeners do.
func (s *Session) SetContent(content json.RawMessage) error {
	canonical, err := document.Canonical(content)
	if err != nil {
		return fmt.Errorf("editor: set content: %w", err)
	}
	s.apply(canonical)
	return nil
}

// ClearContent resets the session to an empty document.
func (s *Session) ClearContent() error {
	s.apply(document.EmptyJSON())
	return nil
}

func (s *Session) apply(content json.RawMessage) {
	s.mu.Lock()
	s.content = content
	fns := listeners(s.applyFns)
	s.mu.Unlock()

	for _, fn := range fns {
		fn(content)
	}
}

// OnUpdate subscribes to user-driven content changes. The returned
// function removes the subscription.
func (s *Session) OnUpdate(fn UpdateFunc) (unsubscribe func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextID
	s.nextID++
	s.updateFns[id] = fn
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.updateFns, id)
	}
}

// OnApply subscribes to programmatic content replacements.
func (s *Session) OnApply(fn ApplyFunc) (unsubscribe func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextID
	s.nextID++
	s.applyFns[id] = fn
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.applyFns, id)
	}
}

func listeners[T any](m map[int]T) []T {
	out := make([]T, 0, len(m))
	for _, fn := range m {
		out = append(out, fn)
	}
	return out
}
