// Package codec converts between raw payloads, bibliography entries and the
// Markdown document that persists them.
package codec

import (
	"fmt"
	"net/url"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/pbaille/bib/internal/domain"
)

const (
	// DefaultPreviewLimit bounds the stored content excerpt, in characters.
	DefaultPreviewLimit = 2000

	// TruncationMarker closes a preview that was cut.
	TruncationMarker = "[...truncated...]"

	untitled      = "Untitled"
	unknownAuthor = "Unknown"

	maxTitleLen   = 150
	maxAuthors    = 3
	authorScanLen = 2000
	yearScanLen   = 3000
)

// Options tunes Encode.
type Options struct {
	PreviewLimit int
}

// Encode turns a fetched payload into a canonical entry. Overrides win over
// payload metadata, which wins over heuristics run on the content.
func Encode(p domain.Payload, o domain.Overrides, opts Options) (domain.Entry, error) {
	rawURL := strings.TrimSpace(p.URL)
	if rawURL == "" {
		return domain.Entry{}, &domain.ValidationError{Field: "url", Reason: "must not be empty"}
	}
	if strings.ContainsAny(rawURL, " \t\r\n") {
		return domain.Entry{}, &domain.ValidationError{Field: "url", Reason: "must not contain whitespace"}
	}

	annotation := NormalizeAnnotation(o.Annotation)
	if err := CheckAnnotation(annotation); err != nil {
		return domain.Entry{}, err
	}

	limit := opts.PreviewLimit
	if limit <= 0 {
		limit = DefaultPreviewLimit
	}
	content := normalizeNewlines(p.Content)

	title := firstNonEmpty(o.Title, p.Title)
	if title == "" {
		title = extractTitle(content)
	}

	authors := o.Authors
	if len(cleanNames(authors)) == 0 {
		authors = p.Authors
	}
	if len(cleanNames(authors)) == 0 {
		authors = extractAuthors(content)
	}

	year := ""
	if date := firstNonEmpty(o.Date, p.Date); date != "" {
		year = yearFromDate(date)
	}
	if year == "" {
		year = extractYear(content, rawURL)
	}

	entry := domain.Entry{
		AuthorLabel:    AuthorLabel(authors),
		Year:           year,
		Title:          normalizeTitle(title),
		Domain:         SourceDomain(rawURL),
		URL:            rawURL,
		Annotation:     annotation,
		ContentPreview: Preview(content, limit),
	}
	if err := checkHeading(entry); err != nil {
		return domain.Entry{}, err
	}
	return entry, nil
}

// checkHeading rejects metadata whose citation line would read back as
// different fields, such as an author label ending in ". (2019)".
func checkHeading(e domain.Entry) error {
	h := headingPattern.FindStringSubmatch("### " + Heading(e))
	switch {
	case h == nil:
		return &domain.ValidationError{Field: "heading", Reason: fmt.Sprintf("citation line %q cannot be read back", Heading(e))}
	case h[1] != e.AuthorLabel || h[2] != e.Year:
		return &domain.ValidationError{Field: "authors", Reason: fmt.Sprintf("author label %q is ambiguous in a citation line", e.AuthorLabel)}
	case h[3] != e.Title:
		return &domain.ValidationError{Field: "title", Reason: fmt.Sprintf("title %q is ambiguous in a citation line", e.Title)}
	case h[4] != e.Domain:
		return &domain.ValidationError{Field: "url", Reason: fmt.Sprintf("source %q is ambiguous in a citation line", e.Domain)}
	}
	return nil
}

// SourceDomain returns the URL host without a leading "www.", or the literal
// URL when no host can be parsed.
func SourceDomain(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return rawURL
	}
	return strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
}

// AuthorLabel collapses a list of names into one display label.
func AuthorLabel(names []string) string {
	cleaned := cleanNames(names)
	if len(cleaned) == 0 {
		return unknownAuthor
	}
	if len(cleaned) <= maxAuthors {
		return strings.Join(cleaned, ", ")
	}
	return strings.Join(cleaned[:maxAuthors], ", ") + " et al."
}

// SplitAuthors splits a comma-joined author override.
func SplitAuthors(value string) []string {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	return cleanNames(strings.Split(value, ","))
}

// Preview trims content and cuts it to limit characters on a whitespace
// boundary, marking the cut explicitly.
func Preview(content string, limit int) string {
	content = strings.TrimSpace(normalizeNewlines(content))
	if limit <= 0 || utf8.RuneCountInString(content) <= limit {
		return content
	}
	runes := []rune(content)
	cut := runes[:limit]
	for i := len(cut) - 1; i > limit/2; i-- {
		if unicode.IsSpace(cut[i]) {
			cut = cut[:i]
			break
		}
	}
	return strings.TrimRightFunc(string(cut), unicode.IsSpace) + "\n\n" + TruncationMarker
}

// NormalizeAnnotation trims surrounding whitespace and trailing spaces on
// every line so annotations survive a render/parse cycle unchanged.
func NormalizeAnnotation(text string) string {
	lines := strings.Split(normalizeNewlines(text), "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRightFunc(line, unicode.IsSpace)
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

// CheckAnnotation rejects annotation text that would break the entry block
// grammar when written into a document.
func CheckAnnotation(text string) error {
	if text == UnannotatedPlaceholder {
		return &domain.ValidationError{Field: "annotation", Reason: "matches the unannotated placeholder"}
	}
	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		switch {
		case trimmed == separator:
			return &domain.ValidationError{Field: "annotation", Reason: "contains an entry separator line"}
		case strings.HasPrefix(line, "## "), strings.HasPrefix(line, "### "):
			return &domain.ValidationError{Field: "annotation", Reason: "contains a section or entry heading"}
		case strings.HasPrefix(trimmed, "```"):
			return &domain.ValidationError{Field: "annotation", Reason: "contains a code fence"}
		case trimmed == detailsOpen:
			return &domain.ValidationError{Field: "annotation", Reason: "contains the preview marker"}
		}
	}
	return nil
}

func normalizeTitle(title string) string {
	title = collapseSpaces(title)
	if title == "" {
		return untitled
	}
	if utf8.RuneCountInString(title) > maxTitleLen {
		runes := []rune(title)
		title = strings.TrimSpace(string(runes[:maxTitleLen-3])) + "..."
	}
	return title
}

func cleanNames(names []string) []string {
	out := make([]string, 0, len(names))
	for _, name := range names {
		if name = collapseSpaces(name); name != "" {
			out = append(out, name)
		}
	}
	return out
}

func collapseSpaces(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func normalizeNewlines(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	return strings.ReplaceAll(s, "\r", "\n")
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
