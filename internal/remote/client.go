// Package remote implements the HTTP client for the article backend:
// draft fetch/save, final submission, and image upload/deletion.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/bragi-editor/bragi/internal/apperr"
	"github.com/bragi-editor/bragi/internal/models"
)

const maxResponseBytes = 10 << 20 // 10 MB

// Client talks to the remote draft store.
type Client struct {
	baseURL string
	token   string
	httpc   *http.Client
}

// NewClient creates a client for the backend at baseURL. token, if
// non-empty, is sent as a Bearer token on every request.
func NewClient(baseURL, token string, timeout time.Duration) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("remote: invalid base URL %q", baseURL)
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		httpc:   &http.Client{Timeout: timeout},
	}, nil
}

// draftPayload is the wire shape of GET /article-draft/get-draft.
type draftPayload struct {
	Content   json.RawMessage `json:"content"`
	UpdatedAt time.Time       `json:"updatedAt"`
	Title     string          `json:"title"`
}

type saveDraftRequest struct {
	ArticleID string          `json:"articleId"`
	Content   json.RawMessage `json:"content"`
}

type saveDraftResponse struct {
	Status string `json:"status"`
}

type commitRequest struct {
	ArticleID   string          `json:"articleId"`
	ContentJSON json.RawMessage `json:"contentJSON"`
	ContentHTML string          `json:"contentHTML"`
	Comments    string          `json:"comments"`
}

type deleteImageRequest struct {
	ImageURL  string `json:"imageUrl"`
	ArticleID string `json:"articleId"`
}

type uploadImageResponse struct {
	ImageURL string `json:"imageUrl"`
}

// GetDraft fetches the server-side draft for an article. A missing
// draft is reported as apperr.ErrNotFound.
func (c *Client) GetDraft(ctx context.Context, articleID string) (*models.DraftRecord, error) {
	var payload draftPayload
	err := c.doJSON(ctx, http.MethodGet, "/article-draft/get-draft/"+url.PathEscape(articleID), nil, &payload)
	if err != nil {
		return nil, err
	}
	return &models.DraftRecord{
		ArticleID:    articleID,
		Title:        payload.Title,
		Content:      payload.Content,
		LastModified: payload.UpdatedAt,
	}, nil
}

// SaveDraft replaces the server-side draft content wholesale.
func (c *Client) SaveDraft(ctx context.Context, articleID string, content json.RawMessage) error {
	req := saveDraftRequest{ArticleID: articleID, Content: content}
	var resp saveDraftResponse
	if err := c.doJSON(ctx, http.MethodPost, "/article-draft/save-draft/"+url.PathEscape(articleID), req, &resp); err != nil {
		return err
	}
	if resp.Status != "" && resp.Status != "ok" && resp.Status != "success" {
		return fmt.Errorf("remote: save draft rejected: status %q", resp.Status)
	}
	return nil
}

// CommitArticle posts the final submission: the structured tree plus
// its flattened HTML rendering and reviewer comments.
func (c *Client) CommitArticle(ctx context.Context, articleID string, contentJSON json.RawMessage, contentHTML, comments string) error {
	req := commitRequest{
		ArticleID:   articleID,
		ContentJSON: contentJSON,
		ContentHTML: contentHTML,
		Comments:    comments,
	}
	return c.doJSON(ctx, http.MethodPost, "/articles/commit-article/"+url.PathEscape(articleID), req, nil)
}

// UploadImage streams an image to the backend and returns its public URL.
func (c *Client) UploadImage(ctx context.Context, articleID, filename string, r io.Reader) (string, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if err := mw.WriteField("articleId", articleID); err != nil {
		return "", fmt.Errorf("remote: build upload form: %w", err)
	}
	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return "", fmt.Errorf("remote: build upload form: %w", err)
	}
	if _, err := io.Copy(part, r); err != nil {
		return "", fmt.Errorf("remote: read image: %w", err)
	}
	if err := mw.Close(); err != nil {
		return "", fmt.Errorf("remote: finish upload form: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/upload/article-image", &body)
	if err != nil {
		return "", fmt.Errorf("remote: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", mw.FormDataContentType())
	c.authorize(httpReq)

	resp, err := c.httpc.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("remote: upload image: %w", err)
	}
	defer resp.Body.Close()
	if err := checkStatus(resp); err != nil {
		return "", err
	}
	var out uploadImageResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(&out); err != nil {
		return "", fmt.Errorf("remote: decode upload response: %w", err)
	}
	if out.ImageURL == "" {
		return "", fmt.Errorf("remote: upload response missing imageUrl")
	}
	return out.ImageURL, nil
}

// DeleteImage asks the backend to garbage-collect an uploaded image
// that is no longer referenced by the article.
func (c *Client) DeleteImage(ctx context.Context, articleID, imageURL string) error {
	req := deleteImageRequest{ImageURL: imageURL, ArticleID: articleID}
	return c.doJSON(ctx, http.MethodDelete, "/upload/article-image", req, nil)
}

// doJSON issues a request with an optional JSON body and decodes an
// optional JSON response.
func (c *Client) doJSON(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("remote: encode request: %w", err)
		}
		body = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("remote: build request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	c.authorize(req)

	resp, err := c.httpc.Do(req)
	if err != nil {
		return fmt.Errorf("remote: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()
	if err := checkStatus(resp); err != nil {
		return err
	}
	if out == nil {
		// Drain so the connection can be reused.
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseBytes))
		return nil
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(out); err != nil {
		return fmt.Errorf("remote: decode response: %w", err)
	}
	return nil
}

func (c *Client) authorize(req *http.Request) {
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
}

func checkStatus(resp *http.Response) error {
	switch {
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("remote: %s: %w", resp.Request.URL.Path, apperr.ErrNotFound)
	case resp.StatusCode == http.StatusConflict:
		// The backend rejects drafts edited elsewhere since our last fetch.
		return fmt.Errorf("remote: %s: %w", resp.Request.URL.Path, apperr.ErrConflict)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("remote: %s: unexpected status %d: %s", resp.Request.URL.Path, resp.StatusCode, bytes.TrimSpace(snippet))
	}
	return nil
}
