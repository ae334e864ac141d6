package codec

import (
	"fmt"
	"strings"
	"time"

	"github.com/pbaille/bib/internal/domain"
)

const (
	// UnannotatedPlaceholder stands in for missing key findings.
	UnannotatedPlaceholder = "*(not yet annotated)*"

	// SummaryTitle heads every summary projection.
	SummaryTitle = "Annotated Bibliography Summary"

	findingsHeader = "**Key Findings:**"
	urlPrefix      = "**URL:** "
	detailsOpen    = "<details><summary>Content preview (click to expand)</summary>"
	detailsClose   = "</details>"
	separator      = "---"
	processedStamp = "2006-01-02 15:04"
)

// Heading returns the citation line of an entry without its "### " marker.
func Heading(e domain.Entry) string {
	var b strings.Builder
	b.WriteString(e.AuthorLabel)
	b.WriteString(". ")
	if e.Year != "" {
		b.WriteString("(" + e.Year + "). ")
	}
	b.WriteString("**" + e.Title + "**. *" + e.Domain + "*")
	return b.String()
}

// Render produces the text block of a single entry.
func Render(e domain.Entry) string {
	var b strings.Builder
	b.WriteString("### " + Heading(e) + "\n")
	b.WriteString(urlPrefix + e.URL + "\n\n")
	b.WriteString(findingsHeader + "\n")
	if e.Annotated() {
		b.WriteString(e.Annotation + "\n\n")
	} else {
		b.WriteString(UnannotatedPlaceholder + "\n\n")
	}
	fence := fenceFor(e.ContentPreview)
	b.WriteString(detailsOpen + "\n\n")
	b.WriteString(fence + "\n")
	if e.ContentPreview != "" {
		b.WriteString(e.ContentPreview + "\n")
	}
	b.WriteString(fence + "\n")
	b.WriteString(detailsClose + "\n")
	return b.String()
}

// RenderEntries renders entries as separated blocks with no section headers.
func RenderEntries(entries []domain.Entry) string {
	var b strings.Builder
	for _, e := range entries {
		b.WriteString(Render(e))
		b.WriteString("\n" + separator + "\n\n")
	}
	return b.String()
}

// RenderDocument serializes a document. Parse(RenderDocument(d)) recovers d.
// A parsed document keeps its original text: only edited entry blocks are
// re-rendered, and new sections or entries are added at the end.
func RenderDocument(d *Document) string {
	if d.source != nil {
		return renderEdited(d)
	}
	var b strings.Builder
	if d.Title != "" {
		b.WriteString("# " + d.Title + "\n\n")
	}
	for _, s := range d.Sections {
		writeSection(&b, s)
	}
	out := strings.TrimRight(b.String(), "\n")
	if out == "" {
		return ""
	}
	return out + "\n"
}

func renderEdited(d *Document) string {
	var out []string
	var tail strings.Builder
	pos := 0
	for _, s := range d.Sections {
		if !s.parsed {
			writeSection(&tail, s)
			continue
		}
		for _, blk := range s.Blocks {
			switch {
			case !blk.parsed:
				writeBlock(&tail, blk)
			case blk.edited():
				out = append(out, d.source[pos:blk.start]...)
				out = append(out, strings.Split(strings.TrimSuffix(Render(blk.Entry), "\n"), "\n")...)
				pos = blk.end
			}
		}
	}
	out = append(out, d.source[pos:]...)
	text := strings.Join(out, "\n")
	if tail.Len() == 0 {
		return text
	}

	added := strings.TrimRight(tail.String(), "\n") + "\n"
	base := strings.TrimRight(text, " \t\n")
	switch {
	case base == "":
		return added
	case strings.HasSuffix(base, detailsClose):
		// the last entry was never closed with a separator
		return base + "\n\n" + separator + "\n\n" + added
	default:
		return base + "\n\n" + added
	}
}

func writeSection(b *strings.Builder, s Section) {
	if s.Topic != "" {
		b.WriteString("## " + s.Topic + "\n\n")
		if s.Processed != "" {
			b.WriteString("*Processed: " + s.Processed + "*\n\n")
		}
	}
	for _, blk := range s.Blocks {
		writeBlock(b, blk)
	}
}

func writeBlock(b *strings.Builder, blk Block) {
	if !blk.Valid() {
		// raw text goes back as it was, with no separator of its own
		b.WriteString(blk.Raw + "\n\n")
		return
	}
	b.WriteString(Render(blk.Entry))
	b.WriteString("\n" + separator + "\n\n")
}

// RenderSummary projects the annotated entries of d, keeping topics and
// order but dropping content previews.
func RenderSummary(d *Document, generated time.Time) string {
	type group struct {
		topic   string
		entries []domain.Entry
	}
	var groups []group
	total := 0
	for _, s := range d.Sections {
		g := group{topic: s.Topic}
		for _, blk := range s.Blocks {
			if blk.Valid() && blk.Entry.Annotated() {
				g.entries = append(g.entries, blk.Entry)
			}
		}
		if len(g.entries) > 0 {
			groups = append(groups, g)
			total += len(g.entries)
		}
	}

	var b strings.Builder
	b.WriteString("# " + SummaryTitle + "\n\n")
	b.WriteString("*Generated: " + generated.Format("2006-01-02") + "*\n\n")
	fmt.Fprintf(&b, "**%d annotated sources**\n\n%s\n\n", total, separator)
	for _, g := range groups {
		if g.topic != "" {
			b.WriteString("## " + g.topic + "\n\n")
		}
		for _, e := range g.entries {
			b.WriteString("### " + Heading(e) + "\n")
			b.WriteString(e.URL + "\n\n")
			b.WriteString(e.Annotation + "\n\n")
			b.WriteString(separator + "\n\n")
		}
	}
	return strings.TrimRight(b.String(), "\n") + "\n"
}

// ProcessedStamp formats the time a section was opened.
func ProcessedStamp(t time.Time) string {
	return t.Format(processedStamp)
}

// fenceFor picks a backtick fence longer than any backtick run in body.
func fenceFor(body string) string {
	longest, run := 0, 0
	for _, r := range body {
		if r == '`' {
			run++
			if run > longest {
				longest = run
			}
			continue
		}
		run = 0
	}
	n := 3
	if longest >= n {
		n = longest + 1
	}
	return strings.Repeat("`", n)
}
