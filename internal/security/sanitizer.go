package security

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"github.com/mroshb/couple_journal/pkg/utils"
)

var htmlPolicy = bluemonday.StrictPolicy()

// SanitizeText strips markup and control bytes from free text a partner
// will read.
func SanitizeText(input string) string {
	input = strings.ReplaceAll(input, "\x00", "")
	input = htmlPolicy.Sanitize(input)
	// the strict policy escapes entities; the stored text is plain, not HTML
	input = html.UnescapeString(input)
	return utils.CollapseWhitespace(input)
}

// SanitizeLine is SanitizeText for single-line fields such as titles.
func SanitizeLine(input string) string {
	return strings.ReplaceAll(SanitizeText(input), "\n", " ")
}
