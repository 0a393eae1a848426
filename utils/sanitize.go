package utils

import (
	"html"

	"github.com/microcosm-cc/bluemonday"
)

var strict = bluemonday.StrictPolicy()

// PlainText removes every HTML element from input and unescapes what is left.
func PlainText(input string) string {
	return html.UnescapeString(strict.Sanitize(input))
}
