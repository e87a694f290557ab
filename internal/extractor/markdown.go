package extractor

import (
	"regexp"
	"strings"
)

var (
	mdFence        = regexp.MustCompile("(?m)^[ \\t]*(```|~~~).*$\n?")
	mdInlineCode   = regexp.MustCompile("`([^`]+)`")
	mdImage        = regexp.MustCompile(`!\[([^\]]*)\]\([^)]+\)`)
	mdLink         = regexp.MustCompile(`\[([^\]]+)\]\([^)]+\)`)
	mdHeading      = regexp.MustCompile(`(?m)^#{1,6}[ \t]+`)
	mdBold         = regexp.MustCompile(`\*\*([^*]+)\*\*|__([^_]+)__`)
	mdItalic       = regexp.MustCompile(`\*([^*\n]+)\*`)
	mdBlockquote   = regexp.MustCompile(`(?m)^>\s?`)
	mdRule         = regexp.MustCompile(`(?m)^[-*_]{3,}[ \t]*$`)
	mdListMarker   = regexp.MustCompile(`(?m)^([ \t]*)[-*+][ \t]+`)
	mdNumberedList = regexp.MustCompile(`(?m)^([ \t]*)\d+\.[ \t]+`)
	mdHTMLTag      = regexp.MustCompile(`<[^>]+>`)
	mdBlankRuns    = regexp.MustCompile(`\n{3,}`)
)

// stripMarkdown reduces markdown to its readable text. Fenced code is kept
// without its fences since code samples are worth searching.
func stripMarkdown(content string) string {
	content = strings.ReplaceAll(content, "\r\n", "\n")

	content = mdFence.ReplaceAllString(content, "")
	content = mdInlineCode.ReplaceAllString(content, "$1")
	content = mdImage.ReplaceAllString(content, "$1")
	content = mdLink.ReplaceAllString(content, "$1")
	content = mdHeading.ReplaceAllString(content, "")
	content = mdBold.ReplaceAllString(content, "$1$2")
	content = mdItalic.ReplaceAllString(content, "$1")
	content = mdBlockquote.ReplaceAllString(content, "")
	content = mdRule.ReplaceAllString(content, "")
	content = mdListMarker.ReplaceAllString(content, "$1")
	content = mdNumberedList.ReplaceAllString(content, "$1")
	content = mdHTMLTag.ReplaceAllString(content, "")
	content = mdBlankRuns.ReplaceAllString(content, "\n\n")

	return strings.TrimSpace(content)
}
