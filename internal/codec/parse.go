package codec

import (
	"regexp"
	"strings"

	"github.com/pbaille/bib/internal/domain"
)

var (
	headingPattern   = regexp.MustCompile(`^### (.+?)\. (?:\((\d{4})\)\. )?\*\*(.+)\*\*\. \*(.+)\*$`)
	urlPattern       = regexp.MustCompile(`^\*\*URL:\*\* (\S+)\s*$`)
	processedPattern = regexp.MustCompile(`^\*Processed: (.+)\*$`)
	fencePattern     = regexp.MustCompile("^(`{3,})")
)

// Parse reads a bibliography document. Malformed entry blocks do not fail
// the parse: they are kept as raw blocks and counted in Document.Skipped.
func Parse(text string) *Document {
	lines := strings.Split(normalizeNewlines(text), "\n")
	doc := &Document{source: lines}

	current := func() *Section {
		if len(doc.Sections) == 0 {
			doc.Sections = append(doc.Sections, Section{parsed: true})
		}
		return &doc.Sections[len(doc.Sections)-1]
	}
	addRaw := func(start int, raw []string, err error) {
		sec := current()
		sec.Blocks = append(sec.Blocks, Block{
			Raw:    strings.Join(raw, "\n"),
			Err:    err,
			parsed: true,
			start:  start,
			end:    start + len(raw),
		})
		doc.Skipped++
	}

	for i := 0; i < len(lines); {
		line := lines[i]
		trimmed := strings.TrimSpace(line)
		switch {
		case trimmed == "" || trimmed == separator:
			i++

		case strings.HasPrefix(line, "### "):
			end, next := scanBlock(lines, i)
			block := trimBlank(lines[i:end])
			entry, err := decodeBlock(block, i+1)
			if err != nil {
				addRaw(i, block, err)
			} else {
				sec := current()
				sec.Blocks = append(sec.Blocks, Block{
					Entry:  entry,
					Raw:    strings.Join(block, "\n"),
					parsed: true,
					start:  i,
					end:    i + len(block),
					orig:   entry,
				})
			}
			i = next

		case strings.HasPrefix(line, "## "):
			sec := Section{Topic: strings.TrimSpace(line[3:]), parsed: true}
			i++
			j := i
			for j < len(lines) && strings.TrimSpace(lines[j]) == "" {
				j++
			}
			if j < len(lines) {
				if m := processedPattern.FindStringSubmatch(strings.TrimSpace(lines[j])); m != nil {
					sec.Processed = m[1]
					i = j + 1
				}
			}
			doc.Sections = append(doc.Sections, sec)

		case strings.HasPrefix(line, "# ") && doc.Title == "" && len(doc.Sections) == 0:
			doc.Title = strings.TrimSpace(line[2:])
			i++

		default:
			start := i
			for i < len(lines) && !endsStray(lines[i]) {
				i++
			}
			addRaw(start, lines[start:i], &domain.ParseError{Line: start + 1, Reason: "text outside an entry block"})
		}
	}
	return doc
}

// scanBlock finds the end of the entry block starting at start. It returns
// the index one past the block's last line and the index to resume from.
// Separators and headings inside fenced code do not end a block.
func scanBlock(lines []string, start int) (end, next int) {
	fence := ""
	for j := start + 1; j < len(lines); j++ {
		line := lines[j]
		trimmed := strings.TrimSpace(line)
		if fence != "" {
			if strings.Trim(trimmed, "`") == "" && len(trimmed) >= len(fence) {
				fence = ""
			}
			continue
		}
		if m := fencePattern.FindStringSubmatch(trimmed); m != nil {
			fence = m[1]
			continue
		}
		if trimmed == separator {
			return j, j + 1
		}
		if strings.HasPrefix(line, "### ") || strings.HasPrefix(line, "## ") {
			return j, j
		}
	}
	return len(lines), len(lines)
}

func endsStray(line string) bool {
	trimmed := strings.TrimSpace(line)
	return trimmed == "" || trimmed == separator || strings.HasPrefix(line, "## ") || strings.HasPrefix(line, "### ")
}

// decodeBlock is the inverse of Render.
func decodeBlock(lines []string, lineNo int) (domain.Entry, error) {
	fail := func(offset int, reason string) (domain.Entry, error) {
		return domain.Entry{}, &domain.ParseError{Line: lineNo + offset, Reason: reason}
	}
	if len(lines) < 2 {
		return fail(0, "missing URL line")
	}
	h := headingPattern.FindStringSubmatch(strings.TrimRight(lines[0], " \t"))
	if h == nil {
		return fail(0, "unrecognized citation heading")
	}
	u := urlPattern.FindStringSubmatch(lines[1])
	if u == nil {
		return fail(1, "missing URL line")
	}
	entry := domain.Entry{
		AuthorLabel: h[1],
		Year:        h[2],
		Title:       h[3],
		Domain:      h[4],
		URL:         u[1],
	}

	pos := skipBlank(lines, 2)
	if pos < len(lines) && lines[pos] == findingsHeader {
		pos++
		details := len(lines)
		for k := pos; k < len(lines); k++ {
			if lines[k] == detailsOpen {
				details = k
				break
			}
		}
		annotation := strings.Join(trimBlank(lines[pos:details]), "\n")
		if annotation != UnannotatedPlaceholder {
			entry.Annotation = annotation
		}
		pos = details
	}

	if pos >= len(lines) || lines[pos] != detailsOpen {
		return fail(pos, "missing content preview")
	}
	open := skipBlank(lines, pos+1)
	if open >= len(lines) || len(lines[open]) < 3 || strings.Trim(lines[open], "`") != "" {
		return fail(open, "missing preview fence")
	}
	last := len(lines) - 1
	if lines[last] != detailsClose {
		return fail(last, "unterminated content preview")
	}
	closeFence := last - 1
	if closeFence <= open || lines[closeFence] != lines[open] {
		return fail(closeFence, "unterminated preview fence")
	}
	entry.ContentPreview = strings.Join(lines[open+1:closeFence], "\n")
	return entry, nil
}

func skipBlank(lines []string, i int) int {
	for i < len(lines) && strings.TrimSpace(lines[i]) == "" {
		i++
	}
	return i
}

func trimBlank(lines []string) []string {
	start, end := 0, len(lines)
	for start < end && strings.TrimSpace(lines[start]) == "" {
		start++
	}
	for end > start && strings.TrimSpace(lines[end-1]) == "" {
		end--
	}
	return lines[start:end]
}
