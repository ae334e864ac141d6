package codec

import (
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/araddon/dateparse"
)

var (
	yearPattern = regexp.MustCompile(`\b(19\d{2}|20\d{2})\b`)

	// Tried in order; the first pattern with any match wins.
	authorPatterns = []*regexp.Regexp{
		regexp.MustCompile(`\b[Bb]y[ \t]+([A-Z][a-z]+(?:[ \t]+[A-Z]\.)?(?:[ \t]+[A-Z][a-z]+)+)`),
		regexp.MustCompile(`\b([A-Z][a-z]+,[ \t]+(?:[A-Z]\.[ \t]?)+)`),
		regexp.MustCompile(`(?m)^([A-Z][a-z]+(?:[ \t]+[A-Z][a-z]+)+(?:[ \t]+et[ \t]+al\.)?),?[ \t]+(?:19|20)\d{2}\b`),
	}

	navigationWords = []string{"cookie", "menu", "search", "login", "sign in", "skip to"}
)

const titleScanLines = 20

func extractTitle(content string) string {
	lines := strings.Split(content, "\n")
	if len(lines) > titleScanLines {
		lines = lines[:titleScanLines]
	}
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "#") {
			if heading := strings.TrimSpace(strings.TrimLeft(line, "#")); heading != "" {
				return heading
			}
		}
	}
	for _, line := range lines {
		line = strings.TrimSpace(line)
		n := utf8.RuneCountInString(line)
		if n < 4 || n > 200 || isNavigation(line) {
			continue
		}
		return line
	}
	return ""
}

func isNavigation(line string) bool {
	lower := strings.ToLower(line)
	for _, word := range navigationWords {
		if strings.Contains(lower, word) {
			return true
		}
	}
	return false
}

func extractAuthors(content string) []string {
	head := content
	if len(head) > authorScanLen {
		head = head[:authorScanLen]
	}
	for _, pattern := range authorPatterns {
		matches := pattern.FindAllStringSubmatch(head, -1)
		if len(matches) == 0 {
			continue
		}
		seen := make(map[string]bool)
		var names []string
		for _, m := range matches {
			name := strings.TrimSpace(m[1])
			if name == "" || seen[name] {
				continue
			}
			seen[name] = true
			names = append(names, name)
			if len(names) == maxAuthors {
				break
			}
		}
		return names
	}
	return nil
}

func extractYear(content, rawURL string) string {
	head := content
	if len(head) > yearScanLen {
		head = head[:yearScanLen]
	}
	if y := yearPattern.FindString(head); y != "" {
		return y
	}
	return yearPattern.FindString(rawURL)
}

func yearFromDate(date string) string {
	if t, err := dateparse.ParseAny(date); err == nil {
		if y := t.Year(); y >= 1900 && y <= 2099 {
			return strconv.Itoa(y)
		}
	}
	return yearPattern.FindString(date)
}
