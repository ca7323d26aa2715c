package richtext

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	fallbackPreviewLength = 150
	previewWindow         = 75
)

// FlattenText produces the searchable plain text of a document. Only
// top-level paragraph nodes contribute text; every other top-level node
// contributes an empty string that still participates in the join, so
// non-paragraph blocks show up as extra spaces. That join behavior is
// load-bearing: previews and match offsets are computed against it.
func FlattenText(root Node) string {
	parts := make([]string, 0, len(root.Content))
	for _, block := range root.Content {
		if block.Type != "paragraph" {
			parts = append(parts, "")
			continue
		}
		words := make([]string, 0, len(block.Content))
		for _, child := range block.Content {
			words = append(words, child.Text)
		}
		parts = append(parts, strings.Join(words, " "))
	}
	return strings.Join(parts, " ")
}

// Preview extracts the snippet shown under a search result. When the query
// occurs in the text (case-insensitive), the snippet is a window of 75
// bytes before the first occurrence through 75 bytes after it, snapped to
// rune boundaries, with leading/trailing ellipses whenever the window is
// clipped. When the query does not occur, the first 150 bytes are returned,
// with a trailing ellipsis only if the text was truncated.
func Preview(text, query string) string {
	index, matched := -1, 0
	if query != "" {
		index, matched = foldIndex(text, query)
	}

	if index < 0 {
		if len(text) > fallbackPreviewLength {
			cut := fallbackPreviewLength
			for cut > 0 && !utf8.RuneStart(text[cut]) {
				cut--
			}
			return text[:cut] + "..."
		}
		return text
	}

	start := index - previewWindow
	if start < 0 {
		start = 0
	}
	for start > 0 && !utf8.RuneStart(text[start]) {
		start--
	}
	end := index + matched + previewWindow
	if end > len(text) {
		end = len(text)
	}
	for end < len(text) && !utf8.RuneStart(text[end]) {
		end++
	}

	snippet := text[start:end]
	if start > 0 {
		snippet = "..." + snippet
	}
	if end < len(text) {
		snippet = snippet + "..."
	}
	return snippet
}

// foldIndex finds the first case-insensitive occurrence of query in text,
// comparing rune by rune so case pairs whose byte lengths differ under
// lowering (İ vs i) stay aligned with the original bytes. It returns the
// byte offset of the match and the byte length of the matched region, or
// (-1, 0) when the query does not occur.
func foldIndex(text, query string) (int, int) {
	for i := range text {
		if n := foldPrefix(text[i:], query); n >= 0 {
			return i, n
		}
	}
	return -1, 0
}

// foldPrefix reports how many leading bytes of text case-fold to query, or
// -1 when they do not.
func foldPrefix(text, query string) int {
	n := 0
	for _, qr := range query {
		tr, size := utf8.DecodeRuneInString(text[n:])
		if size == 0 {
			return -1
		}
		if unicode.ToLower(tr) != unicode.ToLower(qr) {
			return -1
		}
		n += size
	}
	return n
}

// Highlight wraps every case-insensitive occurrence of query in <mark> tags,
// preserving the original casing of the matched text. The query is treated
// literally; regex metacharacters in it are escaped.
func Highlight(text, query string) string {
	if query == "" {
		return text
	}
	pattern, err := regexp.Compile("(?i)(" + regexp.QuoteMeta(query) + ")")
	if err != nil {
		return text
	}
	return pattern.ReplaceAllString(text, "<mark>$1</mark>")
}
