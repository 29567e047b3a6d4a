// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes Bragi tools for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/bragi-editor/bragi/internal/cache"
	"github.com/bragi-editor/bragi/internal/checksum"
	"github.com/bragi-editor/bragi/internal/document"
	"github.com/bragi-editor/bragi/internal/index"
	"github.com/bragi-editor/bragi/internal/models"
	"github.com/bragi-editor/bragi/internal/remote"
)

// Server wraps the MCP server with Bragi tools.
type Server struct {
	mcp    *server.MCPServer
	store  cache.Provider
	db     *index.DB
	remote *remote.Client // nil when remote syncing is disabled
}

// New creates a new MCP server with all Bragi tools registered.
// remoteClient may be nil.
func New(store cache.Provider, db *index.DB, remoteClient *remote.Client) *Server {
	s := &Server{store: store, db: db, remote: remoteClient}

	s.mcp = server.NewMCPServer(
		"Bragi",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("search_drafts",
		mcp.WithDescription("Full-text search through draft titles and body text."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Search query string")),
	), s.searchDrafts)

	s.mcp.AddTool(mcp.NewTool("read_draft",
		mcp.WithDescription("Read the full editor document of a cached draft as JSON."),
		mcp.WithString("article_id", mcp.Required(), mcp.Description("Article ID of the draft")),
	), s.readDraft)

	s.mcp.AddTool(mcp.NewTool("save_draft",
		mcp.WithDescription("Write draft content to the local cache. "+
			"Content MUST be a valid editor document (JSON node tree rooted at "+
			"type \"doc\"). Read the contract first via the get_document_contract "+
			"tool or the bragi://document-format resource."),
		mcp.WithString("article_id", mcp.Required(), mcp.Description("Article ID of the draft")),
		mcp.WithString("content", mcp.Required(), mcp.Description("Editor document JSON following the Bragi document format contract")),
	), s.saveDraft)

	s.mcp.AddTool(mcp.NewTool("get_document_contract",
		mcp.WithDescription("Returns the canonical Bragi editor document format contract. "+
			"Call this before creating or updating drafts to ensure correct structure."),
	), s.getDocumentContract)

	s.mcp.AddTool(mcp.NewTool("upload_image",
		mcp.WithDescription("Upload an image for a draft from an http(s) URL or a "+
			"base64 data URI. Returns the public image URL and a ready-to-insert "+
			"image node."),
		mcp.WithString("article_id", mcp.Required(), mcp.Description("Article ID the image belongs to")),
		mcp.WithString("url", mcp.Required(), mcp.Description("http(s) URL or data: URI of the image")),
		mcp.WithString("filename", mcp.Description("Optional filename override")),
	), s.uploadImage)

	s.mcp.AddTool(mcp.NewTool("list_drafts",
		mcp.WithDescription("List all drafts in the index, optionally filtered by status."),
		mcp.WithString("status", mcp.Description("Optional status filter: draft or submitted")),
	), s.listDrafts)

	// Resource: document format contract.
	s.mcp.AddResource(
		mcp.NewResource("bragi://document-format", "Document Format Contract",
			mcp.WithResourceDescription("Canonical editor document JSON format that all drafts must follow."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readDocumentFormatResource,
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

func (s *Server) searchDrafts(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	results, err := s.db.Search(query, 20)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	out, _ := json.MarshalIndent(results, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) readDraft(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	articleID, err := req.RequireString("article_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	rec, err := s.store.Get(articleID)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("not found: %s", articleID)), nil
	}
	return mcp.NewToolResultText(string(rec.Content)), nil
}

func (s *Server) saveDraft(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	articleID, err := req.RequireString("article_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	content, err := req.RequireString("content")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	data := json.RawMessage(content)
	root, err := document.Parse(data)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid document: %v", err)), nil
	}
	canonical, err := root.Serialize()
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	rec := &models.DraftRecord{
		ArticleID:    articleID,
		Title:        root.Title(),
		Content:      canonical,
		LastModified: time.Now(),
	}
	if err := s.store.Set(articleID, rec); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to save draft: %v", err)), nil
	}

	// Index the saved draft; preserve a previously recorded status.
	status := ""
	if existing, getErr := s.db.GetDraft(articleID); getErr == nil {
		status = existing.Status
	}
	_ = s.db.UpsertDraft(index.DraftRow{
		ArticleID: articleID,
		Title:     rec.Title,
		Checksum:  checksum.Sum(canonical),
		Status:    status,
		UpdatedAt: rec.LastModified,
	}, root.PlainText())

	return mcp.NewToolResultText(fmt.Sprintf("saved: %s", articleID)), nil
}

func (s *Server) listDrafts(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	status := ""
	if v, err := req.RequireString("status"); err == nil {
		status = v
	}

	rows, _, err := s.db.ListDrafts(500, 0, status, "")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var lines []string
	for _, row := range rows {
		lines = append(lines, fmt.Sprintf("%s\t%s\t%s", row.ArticleID, row.Status, row.Title))
	}
	if len(lines) == 0 {
		return mcp.NewToolResultText("no drafts found"), nil
	}
	return mcp.NewToolResultText(strings.Join(lines, "\n")), nil
}

func (s *Server) getDocumentContract(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(DocumentFormatContract), nil
}

func (s *Server) readDocumentFormatResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      "bragi://document-format",
			MIMEType: "text/markdown",
			Text:     DocumentFormatContract,
		},
	}, nil
}
