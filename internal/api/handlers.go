package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/bragi-editor/bragi/internal/apperr"
	"github.com/bragi-editor/bragi/internal/draftservice"
)

// Handler holds API route handlers.
type Handler struct {
	svc *draftservice.Service
}

// NewHandler creates a new Handler.
func NewHandler(svc *draftservice.Service) *Handler {
	return &Handler{svc: svc}
}

// ListDrafts handles GET /api/drafts.
//
//	@Summary		List drafts with optional pagination and filtering
//	@Tags			drafts
//	@Produce		json
//	@Param			limit	query		int		false	"Page size"
//	@Param			offset	query		int		false	"Page offset"
//	@Param			status	query		string	false	"Filter by status"	Enums(draft, submitted)
//	@Param			sort	query		string	false	"Sort field"	Enums(updated_at, title, article_id)
//	@Success		200		{object}	DraftListResponse
//	@Security		BearerAuth
//	@Router			/drafts [get]
func (h *Handler) ListDrafts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))
	status := q.Get("status")
	sort := q.Get("sort")

	items, total, err := h.svc.ListDrafts(r.Context(), limit, offset, status, sort)
	if err != nil {
		slog.Error("list drafts failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"drafts": items,
		"total":  total,
	})
}

// GetDraft handles GET /api/drafts/{articleID}.
//
//	@Summary		Get a single draft, loading it from cache or remote on first access
//	@Tags			drafts
//	@Produce		json
//	@Param			articleID	path		string	true	"Article ID"
//	@Success		200			{object}	DraftDetail
//	@Failure		404			{object}	errResponse
//	@Security		BearerAuth
//	@Router			/drafts/{articleID} [get]
func (h *Handler) GetDraft(w http.ResponseWriter, r *http.Request) {
	articleID := chi.URLParam(r, "articleID")
	if articleID == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("articleID is required"))
		return
	}
	draft, err := h.svc.GetDraft(r.Context(), articleID)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, errorBody("not found"))
		} else {
			slog.Error("get draft failed", slog.String("article_id", articleID), slog.String("error", err.Error()))
			writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		}
		return
	}
	writeJSON(w, http.StatusOK, draft)
}

// UpdateContent handles PUT /api/drafts/{articleID}/content.
//
//	@Summary		Replace the draft's editor content
//	@Tags			drafts
//	@Accept			json
//	@Produce		json
//	@Param			articleID	path		string					true	"Article ID"
//	@Param			body		body		UpdateContentRequest	true	"New content"
//	@Success		202			"Content accepted"
//	@Failure		400			{object}	errResponse
//	@Security		BearerAuth
//	@Router			/drafts/{articleID}/content [put]
func (h *Handler) UpdateContent(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 10<<20)
	articleID := chi.URLParam(r, "articleID")
	if articleID == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("articleID is required"))
		return
	}
	var req UpdateContentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	if len(req.Content) == 0 {
		writeJSON(w, http.StatusBadRequest, errorBody("content is required"))
		return
	}
	if err := h.svc.UpdateContent(r.Context(), articleID, req.Content); err != nil {
		if errors.Is(err, apperr.ErrInvalidDocument) {
			writeJSON(w, http.StatusBadRequest, errorBody("invalid document"))
		} else {
			slog.Error("update content failed", slog.String("article_id", articleID), slog.String("error", err.Error()))
			writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		}
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

// Save handles POST /api/drafts/{articleID}/save.
//
//	@Summary		Flush the draft immediately, bypassing the debounce timers
//	@Tags			drafts
//	@Param			articleID	path	string	true	"Article ID"
//	@Success		204			"Draft saved"
//	@Security		BearerAuth
//	@Router			/drafts/{articleID}/save [post]
func (h *Handler) Save(w http.ResponseWriter, r *http.Request) {
	articleID := chi.URLParam(r, "articleID")
	if articleID == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("articleID is required"))
		return
	}
	if err := h.svc.Save(r.Context(), articleID); err != nil {
		slog.Error("save failed", slog.String("article_id", articleID), slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Submit handles POST /api/drafts/{articleID}/submit.
//
//	@Summary		Submit the draft for review
//	@Tags			drafts
//	@Accept			json
//	@Param			articleID	path	string			true	"Article ID"
//	@Param			body		body	SubmitRequest	false	"Submission comments"
//	@Success		204			"Draft submitted"
//	@Failure		400			{object}	errResponse
//	@Failure		502			{object}	errResponse
//	@Security		BearerAuth
//	@Router			/drafts/{articleID}/submit [post]
func (h *Handler) Submit(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	articleID := chi.URLParam(r, "articleID")
	if articleID == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("articleID is required"))
		return
	}
	var req SubmitRequest
	if r.Body != nil {
		// Body is optional; ignore decode errors on an empty body.
		_ = json.NewDecoder(r.Body).Decode(&req)
	}
	if err := h.svc.Submit(r.Context(), articleID, req.Comments); err != nil {
		switch {
		case errors.Is(err, apperr.ErrRemoteDisabled):
			writeJSON(w, http.StatusBadRequest, errorBody("remote syncing is disabled"))
		case errors.Is(err, apperr.ErrInvalidDocument):
			writeJSON(w, http.StatusBadRequest, errorBody("invalid document"))
		default:
			slog.Error("submit failed", slog.String("article_id", articleID), slog.String("error", err.Error()))
			writeJSON(w, http.StatusBadGateway, errorBody("submit failed"))
		}
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Clear handles DELETE /api/drafts/{articleID}.
//
//	@Summary		Discard the cached draft and reset the editor
//	@Tags			drafts
//	@Param			articleID	path	string	true	"Article ID"
//	@Success		204			"Draft cleared"
//	@Security		BearerAuth
//	@Router			/drafts/{articleID} [delete]
func (h *Handler) Clear(w http.ResponseWriter, r *http.Request) {
	articleID := chi.URLParam(r, "articleID")
	if articleID == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("articleID is required"))
		return
	}
	if err := h.svc.Clear(r.Context(), articleID); err != nil {
		slog.Error("clear failed", slog.String("article_id", articleID), slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Search handles GET /api/search.
//
//	@Summary		Full-text search across drafts
//	@Tags			search
//	@Produce		json
//	@Param			q		query		string	true	"Search query"
//	@Param			limit	query		int		false	"Max results"
//	@Success		200		{object}	SearchResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/search [get]
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if q == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("query parameter 'q' is required"))
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	results, err := h.svc.Search(r.Context(), q, limit)
	if err != nil {
		slog.Error("search failed", slog.String("query", q), slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"results": results,
	})
}
