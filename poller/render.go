package poller

import (
	"fmt"
	"html"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/cppla/bettercampus/models"
	"github.com/cppla/bettercampus/utils"
)

// ExcerptLength is the number of characters shown before the ellipsis.
const ExcerptLength = 100

// Summary is one row of the live post list.
type Summary struct {
	ID           uint
	Title        string
	Link         string
	Excerpt      string
	CommentCount int
}

// Excerpt returns the first ExcerptLength characters of content followed by "...".
// The ellipsis is appended even when nothing was cut, as the browser list does.
func Excerpt(content string) string {
	if utf8.RuneCountInString(content) > ExcerptLength {
		content = string([]rune(content)[:ExcerptLength])
	}
	return content + "..."
}

// Summaries converts a JSON listing into list rows, preserving order.
func Summaries(posts []models.Post) []Summary {
	out := make([]Summary, 0, len(posts))
	for _, p := range posts {
		out = append(out, Summary{
			ID:           p.ID,
			Title:        p.Title,
			Link:         "/posts/" + strconv.FormatUint(uint64(p.ID), 10),
			Excerpt:      Excerpt(p.Content),
			CommentCount: len(p.Comments),
		})
	}
	return out
}

// RenderHTML builds the inner markup of the homepage's .posts-list container.
// Title and excerpt are HTML-escaped, so markup in a post shows as literal text,
// matching the browser list.
func RenderHTML(rows []Summary) string {
	var b strings.Builder
	for _, r := range rows {
		fmt.Fprintf(&b, `<li role="listitem">
  <div class="card post-preview">
    <article>
      <h3><a href="%s" class="post-link">%s</a></h3>
      <p class="post-body">%s</p>
      <span class="post-meta">Comments: %d</span>
    </article>
  </div>
</li>
`, html.EscapeString(r.Link), html.EscapeString(r.Title), html.EscapeString(r.Excerpt), r.CommentCount)
	}
	return b.String()
}

// RenderText renders rows for a terminal. Markup is dropped from title and excerpt
// since a terminal cannot render it.
func RenderText(rows []Summary) string {
	if len(rows) == 0 {
		return "(no posts yet)\n"
	}
	var b strings.Builder
	for _, r := range rows {
		fmt.Fprintf(&b, "%s  %s\n    %s\n    Comments: %d\n", r.Link, utils.PlainText(r.Title), utils.PlainText(r.Excerpt), r.CommentCount)
	}
	return b.String()
}
