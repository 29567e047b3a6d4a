// Package coordinator keeps one authoritative draft per article
// reconciled across the editor session, the local cache, and the
// remote draft store, with debounced writes in both directions.
package coordinator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/bragi-editor/bragi/internal/apperr"
	"github.com/bragi-editor/bragi/internal/cache"
	"github.com/bragi-editor/bragi/internal/checksum"
	"github.com/bragi-editor/bragi/internal/document"
	"github.com/bragi-editor/bragi/internal/models"
)

// Editor is the boundary to the editing surface. The daemon-side
// session implements it; tests substitute fakes.
type Editor interface {
	GetJSON() ([]byte, error)
	SetContent(content json.RawMessage) error
	ClearContent() error
}

// RemoteStore is the subset of the backend client the coordinator uses.
type RemoteStore interface {
	GetDraft(ctx context.Context, articleID string) (*models.DraftRecord, error)
	SaveDraft(ctx context.Context, articleID string, content json.RawMessage) error
	CommitArticle(ctx context.Context, articleID string, contentJSON json.RawMessage, contentHTML, comments string) error
}

// Hooks are optional caller-supplied callbacks. Persistence failures
// are reported here and logged; they are never raised to the editor.
type Hooks struct {
	// OnLocalSave fires after a confirmed local cache write.
	OnLocalSave func(rec *models.DraftRecord)
	// OnRemoteSave fires after a confirmed remote save.
	OnRemoteSave func(articleID string)
	// OnError fires on any persistence failure. stage is one of
	// "local", "remote", or "validate".
	OnError func(stage string, err error)
}

// Config configures a coordinator.
type Config struct {
	ArticleID   string
	LocalDelay  time.Duration // debounce before local cache flush
	RemoteDelay time.Duration // debounce before remote flush
	Logger      *slog.Logger
	Hooks       Hooks
}

// Coordinator owns the draft state for one article.
//
// Concurrency model: a single internal event loop (goroutine) owns all
// mutable state — dirty flags, debounce timers, the in-flight guard,
// and the last-confirmed-remote marker. Public methods communicate with
// the loop through channels, so no mutexes are required.
type Coordinator struct {
	cfg    Config
	editor Editor
	store  cache.Provider
	remote RemoteStore // nil disables remote fetching and saving
	logger *slog.Logger

	updateCh chan struct{}
	loadCh   chan loadReq
	saveCh   chan chan error
	clearCh  chan chan error
	resultCh chan remoteResult

	stopCh  chan struct{}
	stopped chan struct{}
	closed  atomic.Bool
}

type loadReq struct {
	ctx  context.Context
	resp chan error
}

type remoteResult struct {
	sum string
	err error
}

// New creates a coordinator and starts its event loop. A nil remote
// store disables both remote fetching and remote saving.
func New(cfg Config, ed Editor, store cache.Provider, remote RemoteStore) *Coordinator {
	if cfg.LocalDelay <= 0 {
		cfg.LocalDelay = time.Second
	}
	if cfg.RemoteDelay <= 0 {
		cfg.RemoteDelay = 15 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	c := &Coordinator{
		cfg:      cfg,
		editor:   ed,
		store:    store,
		remote:   remote,
		logger:   cfg.Logger.With(slog.String("article_id", cfg.ArticleID)),
		updateCh: make(chan struct{}, 256),
		loadCh:   make(chan loadReq),
		saveCh:   make(chan chan error),
		clearCh:  make(chan chan error),
		resultCh: make(chan remoteResult, 1),
		stopCh:   make(chan struct{}),
		stopped:  make(chan struct{}),
	}

	go c.run()
	return c
}

// loopState is the mutable state owned by the event loop.
type loopState struct {
	loaded      bool
	dirtyLocal  bool
	dirtyRemote bool

	inFlight       bool
	inFlightCancel context.CancelFunc
	lastRemoteSum  string

	localTimer  *time.Timer
	remoteTimer *time.Timer
}

func (c *Coordinator) run() {
	defer close(c.stopped)

	st := &loopState{}

	for {
		select {
		case <-c.stopCh:
			stopTimer(st.localTimer)
			stopTimer(st.remoteTimer)
			if st.inFlightCancel != nil {
				st.inFlightCancel()
			}
			// Flush unsaved edits to the local cache on the way out.
			if st.dirtyLocal {
				_ = c.flushLocal(st)
			}
			return

		case <-c.updateCh:
			st.dirtyLocal = true
			st.dirtyRemote = true
			st.localTimer = schedule(st.localTimer, c.cfg.LocalDelay)
			if c.remote != nil {
				st.remoteTimer = schedule(st.remoteTimer, c.cfg.RemoteDelay)
			}

		case <-timerC(st.localTimer):
			_ = c.flushLocal(st)

		case <-timerC(st.remoteTimer):
			_ = c.flushRemote(st)

		case res := <-c.resultCh:
			c.finishRemote(st, res)

		case req := <-c.loadCh:
			req.resp <- c.load(req.ctx, st)

		case resp := <-c.saveCh:
			stopTimer(st.localTimer)
			stopTimer(st.remoteTimer)
			err := c.flushLocal(st)
			if rerr := c.flushRemote(st); err == nil {
				err = rerr
			}
			resp <- err

		case resp := <-c.clearCh:
			resp <- c.clear(st)
		}
	}
}

// load reconciles the three content sources. It runs at most once; the
// winning record is the structurally valid candidate with the later
// modification time, falling back to an empty document.
func (c *Coordinator) load(ctx context.Context, st *loopState) error {
	if st.loaded {
		return nil
	}

	var remoteRec *models.DraftRecord
	if c.remote != nil {
		rec, err := c.remote.GetDraft(ctx, c.cfg.ArticleID)
		switch {
		case err == nil:
			remoteRec = rec
		case errors.Is(err, apperr.ErrNotFound):
			c.logger.Debug("load: no remote draft")
		default:
			// Non-fatal: proceed with local-only data.
			c.logger.Warn("load: remote fetch failed", slog.String("error", err.Error()))
		}
	}

	localRec, err := c.store.Get(c.cfg.ArticleID)
	if err != nil {
		if !errors.Is(err, apperr.ErrNotFound) {
			c.logger.Warn("load: cache read failed", slog.String("error", err.Error()))
		}
		localRec = nil
	}

	remoteRec = validCandidate(c.logger, "remote", remoteRec)
	localRec = validCandidate(c.logger, "local", localRec)

	winner, fromRemote := pickWinner(localRec, remoteRec)

	if winner == nil {
		if err := c.editor.ClearContent(); err != nil {
			return fmt.Errorf("coordinator: apply empty document: %w", err)
		}
		st.loaded = true
		c.logger.Info("load: initialized empty draft")
		return nil
	}

	if err := c.editor.SetContent(winner.Content); err != nil {
		return fmt.Errorf("coordinator: apply draft: %w", err)
	}

	// Re-read so downstream state reflects the canonical serialization.
	data, err := c.editor.GetJSON()
	if err != nil {
		return fmt.Errorf("coordinator: read back draft: %w", err)
	}

	if fromRemote {
		// Keep the local cache a superset of the latest known state.
		rec := &models.DraftRecord{
			ArticleID:    c.cfg.ArticleID,
			Title:        winner.Title,
			Content:      data,
			LastModified: winner.LastModified,
		}
		if err := c.store.Set(c.cfg.ArticleID, rec); err != nil {
			c.logger.Warn("load: cache write failed", slog.String("error", err.Error()))
		}
		st.lastRemoteSum = checksum.Sum(data)
	}

	st.loaded = true
	st.dirtyLocal = false
	st.dirtyRemote = false
	c.logger.Info("load: draft applied",
		slog.Bool("from_remote", fromRemote),
		slog.Time("last_modified", winner.LastModified))
	return nil
}

// validCandidate returns rec if its content has a recognized document
// shape, nil otherwise.
func validCandidate(logger *slog.Logger, source string, rec *models.DraftRecord) *models.DraftRecord {
	if rec == nil {
		return nil
	}
	if err := document.Validate(rec.Content); err != nil {
		logger.Warn("load: discarding malformed candidate",
			slog.String("source", source),
			slog.String("error", err.Error()))
		return nil
	}
	return rec
}

// pickWinner chooses between the candidates. Equal timestamps prefer
// the local record.
func pickWinner(local, remote *models.DraftRecord) (winner *models.DraftRecord, fromRemote bool) {
	switch {
	case local == nil && remote == nil:
		return nil, false
	case local == nil:
		return remote, true
	case remote == nil:
		return local, false
	case remote.LastModified.After(local.LastModified):
		return remote, true
	default:
		return local, false
	}
}

// flushLocal serializes the editor content, validates it, and
// overwrites the cache entry unconditionally.
func (c *Coordinator) flushLocal(st *loopState) error {
	data, err := c.editor.GetJSON()
	if err != nil {
		return c.report("local", fmt.Errorf("coordinator: read editor: %w", err))
	}
	root, err := document.Parse(data)
	if err != nil {
		return c.report("validate", err)
	}
	rec := &models.DraftRecord{
		ArticleID:    c.cfg.ArticleID,
		Title:        root.Title(),
		Content:      data,
		LastModified: time.Now(),
	}
	if err := c.store.Set(c.cfg.ArticleID, rec); err != nil {
		// Prior cache state is left untouched.
		return c.report("local", err)
	}
	st.dirtyLocal = false
	c.logger.Debug("local flush", slog.Int("bytes", len(data)))
	if c.cfg.Hooks.OnLocalSave != nil {
		c.cfg.Hooks.OnLocalSave(rec)
	}
	return nil
}

// flushRemote starts a remote save unless one is in flight or the
// content is unchanged since the last confirmed save. The network call
// runs off the loop; its result arrives on resultCh.
func (c *Coordinator) flushRemote(st *loopState) error {
	if c.remote == nil {
		return nil
	}
	if st.inFlight {
		// No queueing: the next debounce cycle retries.
		c.logger.Debug("remote flush skipped: save in flight")
		return nil
	}
	data, err := c.editor.GetJSON()
	if err != nil {
		return c.report("remote", fmt.Errorf("coordinator: read editor: %w", err))
	}
	if err := document.Validate(data); err != nil {
		return c.report("validate", err)
	}
	sum := checksum.Sum(data)
	if sum == st.lastRemoteSum {
		c.logger.Debug("remote flush skipped: content unchanged")
		return nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	st.inFlight = true
	st.inFlightCancel = cancel

	go func() {
		err := c.remote.SaveDraft(ctx, c.cfg.ArticleID, data)
		select {
		case c.resultCh <- remoteResult{sum: sum, err: err}:
		case <-c.stopCh:
		}
	}()
	return nil
}

func (c *Coordinator) finishRemote(st *loopState, res remoteResult) {
	st.inFlight = false
	if st.inFlightCancel != nil {
		st.inFlightCancel()
		st.inFlightCancel = nil
	}
	if res.err != nil {
		if errors.Is(res.err, context.Canceled) {
			c.logger.Debug("remote save cancelled")
			return
		}
		// Dirty flag stays set; the next edit-triggered debounce cycle
		// retries naturally.
		_ = c.report("remote", res.err)
		return
	}
	st.lastRemoteSum = res.sum
	st.dirtyRemote = false
	c.logger.Debug("remote save confirmed")
	if c.cfg.Hooks.OnRemoteSave != nil {
		c.cfg.Hooks.OnRemoteSave(c.cfg.ArticleID)
	}
}

// clear discards the cache entry, resets the editor to an empty
// document, and forgets the last-confirmed-remote marker. A superseded
// in-flight save is cancelled so it cannot write stale data afterwards.
func (c *Coordinator) clear(st *loopState) error {
	if st.inFlightCancel != nil {
		st.inFlightCancel()
	}
	stopTimer(st.localTimer)
	stopTimer(st.remoteTimer)

	var firstErr error
	if err := c.store.Remove(c.cfg.ArticleID); err != nil {
		firstErr = c.report("local", err)
	}
	if err := c.editor.ClearContent(); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("coordinator: clear editor: %w", err)
	}
	st.dirtyLocal = false
	st.dirtyRemote = false
	st.lastRemoteSum = ""
	c.logger.Info("draft cleared")
	return firstErr
}

func (c *Coordinator) report(stage string, err error) error {
	c.logger.Warn("persistence failure",
		slog.String("stage", stage),
		slog.String("error", err.Error()))
	if c.cfg.Hooks.OnError != nil {
		c.cfg.Hooks.OnError(stage, err)
	}
	return err
}

// Load performs the initial three-way reconciliation. It is idempotent;
// concurrent and repeated calls after the first are no-ops.
func (c *Coordinator) Load(ctx context.Context) error {
	req := loadReq{ctx: ctx, resp: make(chan error, 1)}
	select {
	case c.loadCh <- req:
	case <-c.stopped:
		return fmt.Errorf("coordinator: closed")
	}
	select {
	case err := <-req.resp:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Update records an editor content change: the draft becomes dirty and
// both debounce timers restart. Safe to call at any rate; bursts
// coalesce.
func (c *Coordinator) Update() {
	if c.closed.Load() {
		return
	}
	select {
	case c.updateCh <- struct{}{}:
	case <-c.stopped:
	default:
		// Loop is saturated; a pending signal already guarantees a flush.
	}
}

// SaveNow forces an immediate local flush and, if remote saving is
// enabled, an immediate remote flush, bypassing the debounce timers.
// The in-flight and unchanged-content skip rules still apply.
func (c *Coordinator) SaveNow() error {
	resp := make(chan error, 1)
	select {
	case c.saveCh <- resp:
		return <-resp
	case <-c.stopped:
		return fmt.Errorf("coordinator: closed")
	}
}

// Submit posts the final submission: the structured document plus its
// flattened HTML rendering and reviewer comments. It is one-shot and
// independent of the draft save path; draft dirty state is untouched.
func (c *Coordinator) Submit(ctx context.Context, comments string) error {
	if c.remote == nil {
		return apperr.ErrRemoteDisabled
	}
	data, err := c.editor.GetJSON()
	if err != nil {
		return fmt.Errorf("coordinator: read editor: %w", err)
	}
	root, err := document.Parse(data)
	if err != nil {
		return err
	}
	if err := c.remote.CommitArticle(ctx, c.cfg.ArticleID, data, root.HTML(), comments); err != nil {
		return c.report("remote", err)
	}
	c.logger.Info("article submitted")
	return nil
}

// Clear discards the local cache entry and resets the editor to an
// empty document.
func (c *Coordinator) Clear() error {
	resp := make(chan error, 1)
	select {
	case c.clearCh <- resp:
		return <-resp
	case <-c.stopped:
		return fmt.Errorf("coordinator: closed")
	}
}

// Close stops the event loop, cancelling any in-flight remote save and
// flushing unsaved edits to the local cache first.
func (c *Coordinator) Close() {
	if c.closed.CompareAndSwap(false, true) {
		close(c.stopCh)
	}
	<-c.stopped
}

// schedule starts or restarts a debounce timer.
func schedule(t *time.Timer, d time.Duration) *time.Timer {
	if t == nil {
		return time.NewTimer(d)
	}
	if !t.Stop() {
		select {
		case <-t.C:
		default:
		}
	}
	t.Reset(d)
	return t
}

// timerC returns the timer's channel, or nil (blocks forever) when the
// timer has not been created yet.
func timerC(t *time.Timer) <-chan time.Time {
	if t == nil {
		return nil
	}
	return t.C
}

// stopTimer stops a timer and drains a fire that already happened, so
// a stale tick cannot trigger a flush later.
func stopTimer(t *time.Timer) {
	if t == nil {
		return
	}
	if !t.Stop() {
		select {
		case <-t.C:
		default:
		}
	}
}
