package document

import (
	"fmt"
	"html"
	"strings"
)

// HTML renders the document tree to a flattened HTML string. The
// rendering is intentionally plain: it exists so submissions can carry
// a server-independent representation alongside the structured tree,
// not to match the browser editor's output byte for byte.
func (n *Node) HTML() string {
	var sb strings.Builder
	for _, child := range n.Content {
		writeHTML(&sb, child)
	}
	return sb.String()
}

func writeHTML(sb *strings.Builder, n *Node) {
	if n == nil {
		return
	}
	switch n.Type {
	case "paragraph":
		sb.WriteString("<p>")
		writeChildren(sb, n)
		sb.WriteString("</p>")
	case "heading":
		level := headingLevel(n)
		fmt.Fprintf(sb, "<h%d>", level)
		writeChildren(sb, n)
		fmt.Fprintf(sb, "</h%d>", level)
	case "blockquote":
		sb.WriteString("<blockquote>")
		writeChildren(sb, n)
		sb.WriteString("</blockquote>")
	case "codeBlock":
		sb.WriteString("<pre><code>")
		sb.WriteString(html.EscapeString(n.PlainText()))
		sb.WriteString("</code></pre>")
	case "bulletList":
		sb.WriteString("<ul>")
		writeChildren(sb, n)
		sb.WriteString("</ul>")
	case "orderedList":
		sb.WriteString("<ol>")
		writeChildren(sb, n)
		sb.WriteString("</ol>")
	case "listItem":
		sb.WriteString("<li>")
		writeChildren(sb, n)
		sb.WriteString("</li>")
	case "image":
		src, _ := n.Attrs["src"].(string)
		alt, _ := n.Attrs["alt"].(string)
		fmt.Fprintf(sb, `<img src=%q alt=%q>`, src, alt)
	case "horizontalRule":
		sb.WriteString("<hr>")
	case "hardBreak":
		sb.WriteString("<br>")
	case "text":
		writeMarkedText(sb, n)
	default:
		// Unknown node types render their children so content is never
		// silently dropped.
		if n.Text != "" {
			writeMarkedText(sb, n)
		} else {
			writeChildren(sb, n)
		}
	}
}

func writeChildren(sb *strings.Builder, n *Node) {
	for _, child := range n.Content {
		writeHTML(sb, child)
	}
}

func writeMarkedText(sb *strings.Builder, n *Node) {
	var opening, closing strings.Builder
	for _, m := range n.Marks {
		switch m.Type {
		case "bold":
			opening.WriteString("<strong>")
			closing.WriteString("</strong>")
		case "italic":
			opening.WriteString("<em>")
			closing.WriteString("</em>")
		case "strike":
			opening.WriteString("<s>")
			closing.WriteString("</s>")
		case "code":
			opening.WriteString("<code>")
			closing.WriteString("</code>")
		case "link":
			href, _ := m.Attrs["href"].(string)
			fmt.Fprintf(&opening, `<a href=%q>`, href)
			closing.WriteString("</a>")
		}
	}
	sb.WriteString(opening.String())
	sb.WriteString(html.EscapeString(n.Text))
	// Closing tags nest inside out.
	sb.WriteString(reverseTags(closing.String()))
}

// reverseTags reverses the order of adjacent closing tags.
func reverseTags(s string) string {
	if s == "" {
		return s
	}
	var tags []string
	for _, part := range strings.SplitAfter(s, ">") {
		if part != "" {
			tags = append(tags, part)
		}
	}
	for i, j := 0, len(tags)-1; i < j; i, j = i+1, j-1 {
		tags[i], tags[j] = tags[j], tags[i]
	}
	return strings.Join(tags, "")
}

func headingLevel(n *Node) int {
	if lvl, ok := n.Attrs["level"].(float64); ok {
		l := int(lvl)
		if l >= 1 && l <= 6 {
			return l
		}
	}
	return 1
}
