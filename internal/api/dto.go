package api

import (
	"encoding/json"

	"github.com/bragi-editor/bragi/internal/draftservice"
)

// UpdateContentRequest is the request body for replacing draft content.
type UpdateContentRequest struct {
	Content json.RawMessage `json:"content" validate:"required"`
}

// SubmitRequest is the request body for submitting a draft.
type SubmitRequest struct {
	Comments string `json:"comments" example:"ready for review"`
}

// DeleteImageRequest is the request body for removing an uploaded image.
type DeleteImageRequest struct {
	ArticleID string `json:"article_id" example:"a1b2c3" validate:"required"`
	ImageURL  string `json:"image_url" example:"https://cdn.example.com/img.png" validate:"required"`
}

// DraftDetail is the full draft response type (aliased from the domain layer).
type DraftDetail = draftservice.DraftDetail

// DraftListItem is a lightweight item in a list response (aliased from the domain layer).
type DraftListItem = draftservice.DraftListItem

// DraftListResponse wraps paginated draft listings.
type DraftListResponse struct {
	Drafts []DraftListItem `json:"drafts" validate:"required"`
	Total  int             `json:"total" example:"42" validate:"required"`
}

// SearchResult is a single search hit in the API response.
type SearchResult struct {
	ArticleID string `json:"article_id" example:"a1b2c3" validate:"required"`
	Title     string `json:"title" example:"Hello" validate:"required"`
	Snippet   string `json:"snippet" example:"...matched text..." validate:"required"`
}

// SearchResponse wraps search results.
type SearchResponse struct {
	Results []SearchResult `json:"results" validate:"required"`
}

// ImageUploadResponse is returned after a successful image upload.
type ImageUploadResponse struct {
	ImageURL string `json:"image_url" example:"https://cdn.example.com/img.png" validate:"required"`
	Size     int64  `json:"size" example:"12345" validate:"required"`
}
