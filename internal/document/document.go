// Package document models the structured rich-text document: a tree of
// typed nodes as produced by the browser editor. It validates document
// shape, derives titles, flattens content to plain text and HTML, and
// extracts image references.
package document

import (
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/bragi-editor/bragi/internal/apperr"
)

// RootType is the required type of the document root node.
const RootType = "doc"

const maxTitleLen = 80

// Mark annotates a text node (bold, italic, link, ...).
type Mark struct {
	Type  string         `json:"type"`
	Attrs map[string]any `json:"attrs,omitempty"`
}

// Node is one node in the document tree.
type Node struct {
	Type    string         `json:"type"`
	Attrs   map[string]any `json:"attrs,omitempty"`
	Content []*Node        `json:"content,omitempty"`
	Marks   []Mark         `json:"marks,omitempty"`
	Text    string         `json:"text,omitempty"`
}

// Empty returns a new empty document: a root node with no children.
func Empty() *Node {
	return &Node{Type: RootType, Content: []*Node{}}
}

// EmptyJSON returns the canonical serialization of an empty document.
func EmptyJSON() json.RawMessage {
	data, _ := json.Marshal(Empty())
	return data
}

// Parse decodes raw bytes into a document tree and checks its shape.
// A recognized shape is a root node of type "doc" whose children
// sequence is present (it may be empty). Anything else is reported as
// apperr.ErrInvalidDocument.
func Parse(data []byte) (*Node, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("document: empty payload: %w", apperr.ErrInvalidDocument)
	}
	// Decode into an envelope first so a missing "content" key can be
	// told apart from an explicitly empty one.
	var probe struct {
		Type    string           `json:"type"`
		Content *json.RawMessage `json:"content"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, fmt.Errorf("document: decode: %v: %w", err, apperr.ErrInvalidDocument)
	}
	if probe.Type != RootType {
		return nil, fmt.Errorf("document: root type %q: %w", probe.Type, apperr.ErrInvalidDocument)
	}
	if probe.Content == nil {
		return nil, fmt.Errorf("document: root has no children sequence: %w", apperr.ErrInvalidDocument)
	}
	var root Node
	if err := json.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("document: decode tree: %v: %w", err, apperr.ErrInvalidDocument)
	}
	if root.Content == nil {
		root.Content = []*Node{}
	}
	return &root, nil
}

// Validate reports whether data is a recognized document shape.
func Validate(data []byte) error {
	_, err := Parse(data)
	return err
}

// Serialize returns the canonical JSON form of the document. Two
// documents with equal trees serialize to identical bytes, which is
// what change detection compares.
func (n *Node) Serialize() (json.RawMessage, error) {
	data, err := json.Marshal(n)
	if err != nil {
		return nil, fmt.Errorf("document: serialize: %w", err)
	}
	return data, nil
}

// Canonical re-encodes raw document bytes into canonical form.
func Canonical(data []byte) (json.RawMessage, error) {
	root, err := Parse(data)
	if err != nil {
		return nil, err
	}
	return root.Serialize()
}

// IsEmpty reports whether the document has no children.
func (n *Node) IsEmpty() bool {
	return n == nil || len(n.Content) == 0
}

// Title derives a display title: the text of the first heading, or the
// first non-blank block, truncated to a fixed rune budget.
func (n *Node) Title() string {
	if n == nil {
		return ""
	}
	for _, child := range n.Content {
		if child.Type == "heading" {
			if t := truncate(child.PlainText()); t != "" {
				return t
			}
		}
	}
	for _, child := range n.Content {
		if t := truncate(child.PlainText()); t != "" {
			return t
		}
	}
	return ""
}

// PlainText flattens the subtree to text. Block-level nodes are
// separated by newlines; inline nodes concatenate.
func (n *Node) PlainText() string {
	var sb strings.Builder
	n.writeText(&sb)
	return strings.TrimSpace(sb.String())
}

func (n *Node) writeText(sb *strings.Builder) {
	if n == nil {
		return
	}
	if n.Text != "" {
		sb.WriteString(n.Text)
	}
	if n.Type == "hardBreak" {
		sb.WriteByte('\n')
	}
	for _, child := range n.Content {
		child.writeText(sb)
	}
	if isBlock(n.Type) && sb.Len() > 0 {
		sb.WriteByte('\n')
	}
}

func isBlock(typ string) bool {
	switch typ {
	case "paragraph", "heading", "blockquote", "codeBlock", "listItem", "horizontalRule":
		return true
	}
	return false
}

// Images returns the set of image references (src attributes) in the tree.
func (n *Node) Images() map[string]struct{} {
	out := make(map[string]struct{})
	n.collectImages(out)
	return out
}

func (n *Node) collectImages(out map[string]struct{}) {
	if n == nil {
		return
	}
	if n.Type == "image" {
		if src, ok := n.Attrs["src"].(string); ok && src != "" {
			out[src] = struct{}{}
		}
	}
	for _, child := range n.Content {
		child.collectImages(out)
	}
}

func truncate(s string) string {
	s = strings.TrimSpace(strings.ReplaceAll(s, "\n", " "))
	if utf8.RuneCountInString(s) <= maxTitleLen {
		return s
	}
	runes := []rune(s)
	return strings.TrimSpace(string(runes[:maxTitleLen]))
}
