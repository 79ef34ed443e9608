// Package anchor rewrites document bodies with citation hyperlinks.
package anchor

import (
	"fmt"
	"html"
	"regexp"
	"strings"
	"time"
)

// Citation is a single referenced source. Used flips to true the first time
// the citation's anchor lands in a document and is never flipped back here.
type Citation struct {
	ID         string    `json:"id"`
	Title      string    `json:"title"`
	URL        string    `json:"url"`
	AnchorText string    `json:"anchor_text,omitempty"`
	Used       bool      `json:"used"`
	NoFollow   bool      `json:"no_follow"`
	CreatedAt  time.Time `json:"created_at,omitempty"`
}

// Label is the text searched for in the body: the anchor text when set,
// otherwise the title, trimmed.
func (c Citation) Label() string {
	if l := strings.TrimSpace(c.AnchorText); l != "" {
		return l
	}
	return strings.TrimSpace(c.Title)
}

// maxReferences caps the rendered references block.
const maxReferences = 20

// InsertAnchors wraps the first whole-word occurrence of each citation's
// label in a hyperlink and marks that citation used. Matching is
// case-insensitive and bounded by word boundaries; a citation whose label
// or URL is empty, or whose label never occurs, is left untouched.
//
// Citations are processed in order against the progressively updated body,
// so a later citation sees earlier insertions. The input slice is not
// mutated; a fresh slice carrying the Used flips is returned.
//
// Precondition: InsertAnchors does not consult Used. Calling it again with
// a citation already marked used will insert a second anchor if the label
// still occurs, so callers must filter to unused citations first.
func InsertAnchors(content string, citations []Citation) (string, []Citation) {
	out := make([]Citation, len(citations))
	copy(out, citations)

	for i := range out {
		label := out[i].Label()
		if label == "" || strings.TrimSpace(out[i].URL) == "" {
			continue
		}
		re, err := labelPattern(label)
		if err != nil {
			continue
		}
		loc := re.FindStringSubmatchIndex(content)
		if loc == nil {
			continue
		}
		// Group 1 is the label itself, without the boundary context.
		start, end := loc[2], loc[3]
		content = content[:start] + anchorTag(content[start:end], out[i].URL, out[i].NoFollow) + content[end:]
		out[i].Used = true
	}
	return content, out
}

// AppendReferences renders an ordered source list after the existing
// content. All citations with a URL are listed, used or not, capped at 20.
// It never anchors into the body text.
func AppendReferences(content string, citations []Citation) string {
	var items []string
	for _, c := range citations {
		if strings.TrimSpace(c.URL) == "" {
			continue
		}
		label := c.Label()
		if label == "" {
			label = c.URL
		}
		items = append(items, "<li>"+anchorTag(html.EscapeString(label), c.URL, c.NoFollow)+"</li>")
		if len(items) == maxReferences {
			break
		}
	}
	if len(items) == 0 {
		return content
	}
	var b strings.Builder
	b.WriteString(content)
	if content != "" && !strings.HasSuffix(content, "\n") {
		b.WriteString("\n")
	}
	b.WriteString("<h2>References</h2>\n<ol>\n")
	for _, item := range items {
		b.WriteString(item)
		b.WriteString("\n")
	}
	b.WriteString("</ol>")
	return b.String()
}

// labelPattern matches the literal label bounded by non-alphanumerics or
// the string edges, case-insensitively. Go's regexp has no lookbehind, so
// the boundaries are non-capturing context groups and the label itself is
// capture group 1.
func labelPattern(label string) (*regexp.Regexp, error) {
	return regexp.Compile(`(?i)(?:^|[^a-zA-Z0-9])(` + regexp.QuoteMeta(label) + `)(?:[^a-zA-Z0-9]|$)`)
}

func anchorTag(text, url string, noFollow bool) string {
	rel := ""
	if noFollow {
		rel = ` rel="nofollow"`
	}
	return fmt.Sprintf(`<a href=%q%s>%s</a>`, url, rel, text)
}
