package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/bragi-editor/bragi/internal/draftservice"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// sseHandler, if non-nil, is mounted at GET /events inside the auth group.
func NewRouter(svc *draftservice.Service, authEnabled bool, token string, sseHandler http.Handler) chi.Router {
	h := NewHandler(svc)
	ih := NewImageHandler(svc)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	// Drafts.
	r.Get("/drafts", h.ListDrafts)
	r.Get("/drafts/{articleID}", h.GetDraft)
	r.Put("/drafts/{articleID}/content", h.UpdateContent)
	r.Post("/drafts/{articleID}/save", h.Save)
	r.Post("/drafts/{articleID}/submit", h.Submit)
	r.Delete("/drafts/{articleID}", h.Clear)

	// Search.
	r.Get("/search", h.Search)

	// Image upload proxy (auth-protected).
	r.Post("/images", ih.Upload)
	r.Delete("/images", ih.Delete)

	// SSE endpoint (protected by same auth middleware).
	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}
