package mcpserver

// DocumentFormatContract describes the canonical editor document JSON
// format that LLM consumers should follow when creating or updating
// drafts.
const DocumentFormatContract = `# Bragi Document Format Contract

Every draft stored in Bragi MUST be a JSON node tree following this
structure.

## Structure

` + "```" + `json
{
  "type": "doc",
  "content": [
    {
      "type": "heading",
      "attrs": { "level": 1 },
      "content": [ { "type": "text", "text": "Title" } ]
    },
    {
      "type": "paragraph",
      "content": [
        { "type": "text", "text": "Plain text with " },
        { "type": "text", "text": "bold", "marks": [ { "type": "bold" } ] }
      ]
    }
  ]
}
` + "```" + `

## Rules

1. **The root node is mandatory.** Its ` + "`" + `type` + "`" + ` MUST be ` + "`" + `"doc"` + "`" + ` and it MUST
   carry a ` + "`" + `content` + "`" + ` array (empty is allowed).
2. **Block nodes** go directly under the root: ` + "`" + `paragraph` + "`" + `, ` + "`" + `heading` + "`" + `,
   ` + "`" + `blockquote` + "`" + `, ` + "`" + `codeBlock` + "`" + `, ` + "`" + `bulletList` + "`" + `, ` + "`" + `orderedList` + "`" + `,
   ` + "`" + `image` + "`" + `, ` + "`" + `horizontalRule` + "`" + `.
3. **Headings** carry ` + "`" + `attrs.level` + "`" + ` (1-6). The first heading is used as
   the draft title in lists and search.
4. **Text nodes** carry a ` + "`" + `text` + "`" + ` field and optional ` + "`" + `marks` + "`" + `:
   ` + "`" + `bold` + "`" + `, ` + "`" + `italic` + "`" + `, ` + "`" + `strike` + "`" + `, ` + "`" + `code` + "`" + `, and ` + "`" + `link` + "`" + ` (with ` + "`" + `attrs.href` + "`" + `).
5. **Lists** contain ` + "`" + `listItem` + "`" + ` nodes, which in turn contain block nodes.
6. **Images** carry ` + "`" + `attrs.src` + "`" + ` (the public URL returned by the image
   upload endpoint) and optional ` + "`" + `attrs.alt` + "`" + `. Removing the last
   reference to an image from the document eventually deletes it from
   the backend, so do not reuse image URLs across drafts.
7. **No raw HTML.** HTML is generated from this tree at submission time.

## Example

` + "```" + `json
{
  "type": "doc",
  "content": [
    { "type": "heading", "attrs": { "level": 1 },
      "content": [ { "type": "text", "text": "Release notes" } ] },
    { "type": "paragraph",
      "content": [ { "type": "text", "text": "Highlights of this week." } ] },
    { "type": "bulletList", "content": [
      { "type": "listItem", "content": [
        { "type": "paragraph",
          "content": [ { "type": "text", "text": "Faster sync." } ] } ] }
    ] },
    { "type": "image", "attrs": { "src": "https://cdn.example.com/chart.png", "alt": "Chart" } }
  ]
}
` + "```" + `
`
