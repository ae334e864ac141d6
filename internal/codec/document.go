package codec

import (
	"strings"

	"github.com/pbaille/bib/internal/domain"
)

// DefaultTopic names the section opened when entries are appended to a
// document that has none.
const DefaultTopic = "General"

// Document is the parsed form of a bibliography file.
type Document struct {
	Title    string
	Sections []Section
	// Skipped counts malformed blocks recovered during parsing.
	Skipped int

	// source holds the parsed text, one element per line. Unchanged blocks
	// are written back from it verbatim.
	source []string
}

// Section is a contiguous run of blocks under one topic header. The leading
// section of a document may have no topic.
type Section struct {
	Topic     string
	Processed string
	Blocks    []Block

	parsed bool
}

// Block is either a decoded entry or, when Err is set, a malformed block
// kept so that rewrites never drop it. Raw is the block's text as read.
type Block struct {
	Entry domain.Entry
	Raw   string
	Err   error

	// span of source lines [start, end) for parsed blocks; orig is the
	// entry as decoded, used to detect edits.
	parsed     bool
	start, end int
	orig       domain.Entry
}

func (b Block) edited() bool {
	return !b.parsed || (b.Valid() && b.Entry != b.orig)
}

// Valid reports whether the block decoded into an entry.
func (b Block) Valid() bool {
	return b.Err == nil
}

// Items enumerates valid entries in document order with 1-based indices.
func (d *Document) Items() []domain.Listing {
	var items []domain.Listing
	for _, s := range d.Sections {
		for _, b := range s.Blocks {
			if !b.Valid() {
				continue
			}
			items = append(items, domain.Listing{
				Index:     len(items) + 1,
				Topic:     s.Topic,
				Entry:     b.Entry,
				Annotated: b.Entry.Annotated(),
			})
		}
	}
	return items
}

// Entries returns the valid entries in document order.
func (d *Document) Entries() []domain.Entry {
	var entries []domain.Entry
	for _, item := range d.Items() {
		entries = append(entries, item.Entry)
	}
	return entries
}

// LastTopic returns the topic of the last open section.
func (d *Document) LastTopic() (string, bool) {
	if len(d.Sections) == 0 {
		return "", false
	}
	return d.Sections[len(d.Sections)-1].Topic, true
}

// Append adds entries after every existing block. A non-empty topic that
// differs from the last section opens a new section stamped with processed;
// otherwise entries join the last section, or a new DefaultTopic section when
// the document has none.
func (d *Document) Append(topic, processed string, entries ...domain.Entry) {
	if len(entries) == 0 {
		return
	}
	topic = strings.TrimSpace(topic)
	last, ok := d.LastTopic()
	switch {
	case topic != "" && (!ok || last != topic):
		d.Sections = append(d.Sections, Section{Topic: topic, Processed: processed})
	case !ok:
		d.Sections = append(d.Sections, Section{Topic: DefaultTopic, Processed: processed})
	}
	sec := &d.Sections[len(d.Sections)-1]
	for _, e := range entries {
		sec.Blocks = append(sec.Blocks, Block{Entry: e})
	}
}

// FindByURL returns the first entry, in document order, whose URL contains
// substr. The pointer refers into the document so callers may update it.
func (d *Document) FindByURL(substr string) (*domain.Entry, bool) {
	for i := range d.Sections {
		for j := range d.Sections[i].Blocks {
			b := &d.Sections[i].Blocks[j]
			if b.Valid() && strings.Contains(b.Entry.URL, substr) {
				return &b.Entry, true
			}
		}
	}
	return nil, false
}
