// Package draftservice owns the open drafts: one editor session,
// persistence coordinator, and image tracker per article, plus the
// read-side operations backed by the index.
package draftservice

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/bragi-editor/bragi/internal/apperr"
	"github.com/bragi-editor/bragi/internal/cache"
	"github.com/bragi-editor/bragi/internal/checksum"
	"github.com/bragi-editor/bragi/internal/coordinator"
	"github.com/bragi-editor/bragi/internal/document"
	"github.com/bragi-editor/bragi/internal/editor"
	"github.com/bragi-editor/bragi/internal/images"
	"github.com/bragi-editor/bragi/internal/index"
	"github.com/bragi-editor/bragi/internal/models"
	"github.com/bragi-editor/bragi/internal/remote"
)

// EventFunc receives draft lifecycle notifications. kind is one of
// "saved", "synced", "submitted", "cleared", "applied".
type EventFunc func(kind, articleID string)

// Config holds the tunables shared by all coordinators.
type Config struct {
	LocalDelay  time.Duration
	RemoteDelay time.Duration
	Logger      *slog.Logger
}

// DraftDetail is the full representation of an open draft.
type DraftDetail struct {
	ArticleID string          `json:"article_id"`
	Title     string          `json:"title"`
	Content   json.RawMessage `json:"content"`
	Checksum  string          `json:"checksum"`
	Status    string          `json:"status"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// DraftListItem is a lightweight item in a list response.
type DraftListItem struct {
	ArticleID string    `json:"article_id"`
	Title     string    `json:"title"`
	Checksum  string    `json:"checksum"`
	Status    string    `json:"status"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Service coordinates open drafts, the local cache, the index, and the
// remote store.
type Service struct {
	store  cache.Provider
	db     *index.DB
	remote *remote.Client // nil when remote syncing is disabled
	events EventFunc
	cfg    Config
	logger *slog.Logger

	mu   sync.Mutex
	open map[string]*openDraft
}

type openDraft struct {
	session *editor.Session
	coord   *coordinator.Coordinator
	tracker *images.Tracker
	unsubs  []func()
}

// NewService creates the draft service. remoteClient may be nil.
// events may be nil.
func NewService(store cache.Provider, db *index.DB, remoteClient *remote.Client, events EventFunc, cfg Config) *Service {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if events == nil {
		events = func(string, string) {}
	}
	return &Service{
		store:  store,
		db:     db,
		remote: remoteClient,
		events: events,
		cfg:    cfg,
		logger: cfg.Logger,
		open:   make(map[string]*openDraft),
	}
}

// Open returns the editor session for an article, creating and loading
// the draft on first use. Repeated calls return the same session.
func (s *Service) Open(ctx context.Context, articleID string) (*editor.Session, error) {
	od, err := s.openEntry(ctx, articleID)
	if err != nil {
		return nil, err
	}
	return od.session, nil
}

// openEntry opens the draft and returns its entry. Callers keep the
// returned entry rather than re-reading the open map, which a
// concurrent Close may have swapped out.
func (s *Service) openEntry(ctx context.Context, articleID string) (*openDraft, error) {
	od, created := s.openDraft(articleID)
	if created {
		if err := od.coord.Load(ctx); err != nil {
			s.logger.Warn("open: load failed", slog.String("article_id", articleID), slog.String("error", err.Error()))
			return nil, err
		}
		// Pre-existing images are part of the baseline, not additions.
		if data, err := od.session.GetJSON(); err == nil {
			if root, perr := document.Parse(data); perr == nil {
				od.tracker.Seed(root)
			}
		}
	}
	return od, nil
}

func (s *Service) openDraft(articleID string) (*openDraft, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if od, ok := s.open[articleID]; ok {
		return od, false
	}

	session := editor.NewSession(articleID)
	tracker := images.NewTracker(func(imageURL string) {
		s.deleteImage(articleID, imageURL)
	})

	var rs coordinator.RemoteStore
	if s.remote != nil {
		rs = s.remote
	}
	coord := coordinator.New(coordinator.Config{
		ArticleID:   articleID,
		LocalDelay:  s.cfg.LocalDelay,
		RemoteDelay: s.cfg.RemoteDelay,
		Logger:      s.logger,
		Hooks: coordinator.Hooks{
			OnLocalSave: func(rec *models.DraftRecord) {
				s.indexDraft(rec)
				s.events("saved", articleID)
			},
			OnRemoteSave: func(id string) {
				s.events("synced", id)
			},
		},
	}, session, s.store, rs)

	od := &openDraft{session: session, coord: coord, tracker: tracker}
	od.unsubs = append(od.unsubs,
		session.OnUpdate(func() {
			coord.Update()
			s.observeImages(od)
		}),
		session.OnApply(func(json.RawMessage) {
			s.events("applied", articleID)
		}),
	)

	s.open[articleID] = od
	return od, true
}

func (s *Service) observeImages(od *openDraft) {
	data, err := od.session.GetJSON()
	if err != nil {
		return
	}
	root, err := document.Parse(data)
	if err != nil {
		return
	}
	od.tracker.Observe(root)
}

// deleteImage asks the backend to garbage-collect an image no longer
// referenced by the document. Best effort; failures are logged only.
func (s *Service) deleteImage(articleID, imageURL string) {
	if s.remote == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := s.remote.DeleteImage(ctx, articleID, imageURL); err != nil {
			s.logger.Warn("image delete failed",
				slog.String("article_id", articleID),
				slog.String("image_url", imageURL),
				slog.String("error", err.Error()))
		} else {
			s.logger.Debug("image deleted", slog.String("image_url", imageURL))
		}
	}()
}

// indexDraft upserts a saved record into the index, preserving a
// previously recorded status.
func (s *Service) indexDraft(rec *models.DraftRecord) {
	root, err := document.Parse(rec.Content)
	if err != nil {
		s.logger.Warn("index: parse failed", slog.String("article_id", rec.ArticleID), slog.String("error", err.Error()))
		return
	}
	status := ""
	if existing, err := s.db.GetDraft(rec.ArticleID); err == nil {
		status = existing.Status
	}
	row := index.DraftRow{
		ArticleID: rec.ArticleID,
		Title:     rec.Title,
		Checksum:  checksum.Sum(rec.Content),
		Status:    status,
		UpdatedAt: rec.LastModified,
	}
	if err := s.db.UpsertDraft(row, root.PlainText()); err != nil {
		s.logger.Warn("index: upsert failed", slog.String("article_id", rec.ArticleID), slog.String("error", err.Error()))
	}
}

// GetDraft opens the draft if needed and returns its full detail.
func (s *Service) GetDraft(ctx context.Context, articleID string) (*DraftDetail, error) {
	session, err := s.Open(ctx, articleID)
	if err != nil {
		return nil, err
	}
	data, err := session.GetJSON()
	if err != nil {
		return nil, err
	}
	root, err := document.Parse(data)
	if err != nil {
		return nil, err
	}

	detail := &DraftDetail{
		ArticleID: articleID,
		Title:     root.Title(),
		Content:   data,
		Checksum:  checksum.Sum(data),
		Status:    models.StatusDraft,
		UpdatedAt: time.Now(),
	}
	if row, err := s.db.GetDraft(articleID); err == nil {
		detail.Status = row.Status
		detail.UpdatedAt = row.UpdatedAt
	}
	return detail, nil
}

// UpdateContent applies a user edit to the draft. The coordinator's
// debounce cycle picks it up.
func (s *Service) UpdateContent(ctx context.Context, articleID string, content json.RawMessage) error {
	session, err := s.Open(ctx, articleID)
	if err != nil {
		return err
	}
	return session.Push(content)
}

// Save forces an immediate flush, bypassing the debounce timers.
func (s *Service) Save(ctx context.Context, articleID string) error {
	od, err := s.openEntry(ctx, articleID)
	if err != nil {
		return err
	}
	return od.coord.SaveNow()
}

// Submit posts the final submission and marks the draft submitted.
func (s *Service) Submit(ctx context.Context, articleID, comments string) error {
	od, err := s.openEntry(ctx, articleID)
	if err != nil {
		return err
	}

	if err := od.coord.Submit(ctx, comments); err != nil {
		return err
	}
	if err := s.db.SetStatus(articleID, models.StatusSubmitted); err != nil && !errors.Is(err, apperr.ErrNotFound) {
		s.logger.Warn("submit: status update failed", slog.String("article_id", articleID), slog.String("error", err.Error()))
	}
	s.events("submitted", articleID)
	return nil
}

// Clear discards the cached draft and resets the editor to empty.
func (s *Service) Clear(ctx context.Context, articleID string) error {
	od, err := s.openEntry(ctx, articleID)
	if err != nil {
		return err
	}

	if err := od.coord.Clear(); err != nil {
		return err
	}
	od.tracker.Reset()
	if err := s.db.DeleteDraft(articleID); err != nil {
		s.logger.Warn("clear: index delete failed", slog.String("article_id", articleID), slog.String("error", err.Error()))
	}
	s.events("cleared", articleID)
	return nil
}

// ListDrafts returns paginated drafts with an optional status filter.
func (s *Service) ListDrafts(_ context.Context, limit, offset int, status, sort string) ([]DraftListItem, int, error) {
	rows, total, err := s.db.ListDrafts(limit, offset, status, sort)
	if err != nil {
		return nil, 0, err
	}
	items := make([]DraftListItem, len(rows))
	for i, r := range rows {
		items[i] = DraftListItem{
			ArticleID: r.ArticleID,
			Title:     r.Title,
			Checksum:  r.Checksum,
			Status:    r.Status,
			UpdatedAt: r.UpdatedAt,
		}
	}
	return items, total, nil
}

// Search delegates full-text search to the index.
func (s *Service) Search(_ context.Context, query string, limit int) ([]index.SearchResult, error) {
	return s.db.Search(query, limit)
}

// UploadImage proxies an image upload to the backend and returns its
// public URL.
func (s *Service) UploadImage(ctx context.Context, articleID, filename string, r io.Reader) (string, error) {
	if s.remote == nil {
		return "", apperr.ErrRemoteDisabled
	}
	return s.remote.UploadImage(ctx, articleID, filename, r)
}

// RemoveImage proxies an explicit image deletion to the backend.
func (s *Service) RemoveImage(ctx context.Context, articleID, imageURL string) error {
	if s.remote == nil {
		return apperr.ErrRemoteDisabled
	}
	return s.remote.DeleteImage(ctx, articleID, imageURL)
}

// Close shuts down all open drafts, flushing unsaved edits locally.
func (s *Service) Close() {
	s.mu.Lock()
	open := s.open
	s.open = make(map[string]*openDraft)
	s.mu.Unlock()

	for _, od := range open {
		for _, unsub := range od.unsubs {
			unsub()
		}
		od.coord.Close()
	}
}
