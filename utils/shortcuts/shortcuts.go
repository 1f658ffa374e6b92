// Package shortcuts expands markdown-like line prefixes into block types.
package shortcuts

import (
	"strings"

	"notion-lite/workspace/models"
)

// Expansion is the block shape implied by a typed prefix.
type Expansion struct {
	Type    models.BlockType
	Content string
	Checked bool
}

type rule struct {
	prefix  string
	typ     models.BlockType
	checked bool
	fold    bool // case-insensitive prefix
}

// Longer prefixes come first so "## " wins over "# ".
var rules = []rule{
	{prefix: "[x] ", typ: models.TodoListBlock, checked: true, fold: true},
	{prefix: "[ ] ", typ: models.TodoListBlock},
	{prefix: "[] ", typ: models.TodoListBlock},
	{prefix: "todo:", typ: models.TodoListBlock, fold: true},
	{prefix: "### ", typ: models.Heading3Block},
	{prefix: "## ", typ: models.Heading2Block},
	{prefix: "# ", typ: models.Heading1Block},
	{prefix: "- ", typ: models.BulletedListBlock},
	{prefix: "* ", typ: models.BulletedListBlock},
	{prefix: "1. ", typ: models.NumberedListBlock},
	{prefix: "> ", typ: models.QuoteBlock},
	{prefix: "```", typ: models.CodeBlock},
}

// Expand reports the block type implied by a leading shortcut in content.
// ok is false when content carries no shortcut.
func Expand(content string) (Expansion, bool) {
	trimmed := strings.TrimLeft(content, " \t")
	if trimmed == "---" {
		return Expansion{Type: models.DividerBlock}, true
	}
	for _, r := range rules {
		head := trimmed
		if len(head) < len(r.prefix) {
			continue
		}
		head = head[:len(r.prefix)]
		if r.fold {
			head = strings.ToLower(head)
		}
		if head != r.prefix {
			continue
		}
		return Expansion{
			Type:    r.typ,
			Content: strings.TrimSpace(trimmed[len(r.prefix):]),
			Checked: r.checked,
		}, true
	}
	return Expansion{}, false
}

// Detect is like Expand but falls back to a plain paragraph.
func Detect(content string) Expansion {
	if exp, ok := Expand(content); ok {
		return exp
	}
	return Expansion{Type: models.ParagraphBlock, Content: strings.TrimSpace(content)}
}
