// Package store keeps a bibliography document on disk. Every operation
// re-reads and re-parses the file; nothing is cached between calls. Callers
// must not run operations concurrently against the same document.
package store

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/pbaille/bib/internal/codec"
	"github.com/pbaille/bib/internal/domain"
)

// DefaultTitle heads newly created documents.
const DefaultTitle = "Annotated Bibliography"

// Options configures a Store.
type Options struct {
	Title        string
	DefaultTopic string
	Logger       *slog.Logger
	Now          func() time.Time
}

// Store handles read-modify-write cycles over one bibliography document
type Store struct {
	path         string
	title        string
	defaultTopic string
	logger       *slog.Logger
	now          func() time.Time
}

// AppendOptions controls where appended entries land.
type AppendOptions struct {
	Topic           string
	CreateIfMissing bool
}

// WriteResult describes a completed write.
type WriteResult struct {
	Path    string `json:"path"`
	Created bool   `json:"created"`
	Added   int    `json:"added"`
	Total   int    `json:"total"`
	Topic   string `json:"topic"`
	Skipped int    `json:"skipped"`
}

// ListResult is a document-order enumeration of entries.
type ListResult struct {
	Items   []domain.Listing `json:"items"`
	Skipped int              `json:"skipped"`
}

// New creates a Store for the document at path
func New(path string, opts Options) *Store {
	s := &Store{
		path:         path,
		title:        opts.Title,
		defaultTopic: strings.TrimSpace(opts.DefaultTopic),
		logger:       opts.Logger,
		now:          opts.Now,
	}
	if s.defaultTopic == "" {
		s.defaultTopic = codec.DefaultTopic
	}
	if s.logger == nil {
		s.logger = slog.New(slog.DiscardHandler)
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// Path returns the document location.
func (s *Store) Path() string {
	return s.path
}

// Load reads and parses the document.
func (s *Store) Load() (*codec.Document, error) {
	data, err := readDocument(s.path)
	if err != nil {
		return nil, err
	}
	doc := codec.Parse(string(data))
	if doc.Skipped > 0 {
		s.logger.Warn("skipped malformed blocks", "path", s.path, "skipped", doc.Skipped)
	}
	return doc, nil
}

// Create writes a new document holding entries under topic. It refuses to
// replace an existing document.
func (s *Store) Create(entries []domain.Entry, topic string) (*WriteResult, error) {
	found, err := exists(s.path)
	if err != nil {
		return nil, err
	}
	if found {
		return nil, fmt.Errorf("create %s: %w", s.path, domain.ErrExists)
	}
	return s.writeNew(entries, topic)
}

// Append adds entries after all existing ones. A topic that differs from the
// last section opens a new section; otherwise entries join the last section.
func (s *Store) Append(entries []domain.Entry, opts AppendOptions) (*WriteResult, error) {
	data, err := readDocument(s.path)
	if err != nil {
		if opts.CreateIfMissing && isMissingDocument(err) {
			return s.writeNew(entries, opts.Topic)
		}
		return nil, err
	}

	doc := codec.Parse(string(data))
	topic := strings.TrimSpace(opts.Topic)
	if _, ok := doc.LastTopic(); !ok && topic == "" {
		topic = s.defaultTopic
	}
	doc.Append(topic, codec.ProcessedStamp(s.now()), entries...)
	if err := s.write(doc); err != nil {
		return nil, err
	}

	last, _ := doc.LastTopic()
	result := &WriteResult{
		Path:    s.path,
		Added:   len(entries),
		Total:   len(doc.Items()),
		Topic:   last,
		Skipped: doc.Skipped,
	}
	s.logger.Info("appended entries", "path", s.path, "entries", result.Added, "topic", result.Topic, "total", result.Total)
	return result, nil
}

// List enumerates entries with 1-based document-order indices. Filtering to
// unannotated entries keeps the original indices.
func (s *Store) List(unannotatedOnly bool) (*ListResult, error) {
	doc, err := s.Load()
	if err != nil {
		return nil, err
	}
	items := doc.Items()
	if unannotatedOnly {
		filtered := items[:0]
		for _, item := range items {
			if !item.Annotated {
				filtered = append(filtered, item)
			}
		}
		items = filtered
	}
	return &ListResult{Items: items, Skipped: doc.Skipped}, nil
}

// Annotate sets the key findings of the first entry, in document order,
// whose URL contains urlSubstring. The match is case-sensitive. When the
// resulting document is byte-identical to the current one nothing is written.
func (s *Store) Annotate(urlSubstring, text string) (*domain.Entry, error) {
	if urlSubstring == "" {
		return nil, &domain.ValidationError{Field: "url pattern", Reason: "must not be empty"}
	}
	text = codec.NormalizeAnnotation(text)
	if text == "" {
		return nil, &domain.ValidationError{Field: "annotation", Reason: "must not be empty"}
	}
	if err := codec.CheckAnnotation(text); err != nil {
		return nil, err
	}

	data, err := readDocument(s.path)
	if err != nil {
		return nil, err
	}
	doc := codec.Parse(string(data))
	entry, ok := doc.FindByURL(urlSubstring)
	if !ok {
		return nil, &domain.NotFoundError{Kind: domain.NotFoundEntry, Target: urlSubstring}
	}
	entry.Annotation = text
	updated := *entry

	rendered := codec.RenderDocument(doc)
	if rendered == string(data) {
		s.logger.Debug("annotation unchanged", "path", s.path, "url", updated.URL)
		return &updated, nil
	}
	if err := WriteFileAtomic(s.path, []byte(rendered)); err != nil {
		return nil, fmt.Errorf("write document: %w", err)
	}
	s.logger.Info("annotated entry", "path", s.path, "url", updated.URL)
	return &updated, nil
}

// Summary renders the annotated entries without content previews. The
// document is never modified.
func (s *Store) Summary() (string, error) {
	doc, err := s.Load()
	if err != nil {
		return "", err
	}
	return codec.RenderSummary(doc, s.now()), nil
}

func (s *Store) writeNew(entries []domain.Entry, topic string) (*WriteResult, error) {
	topic = strings.TrimSpace(topic)
	if topic == "" {
		topic = s.defaultTopic
	}
	doc := &codec.Document{Title: s.title}
	doc.Append(topic, codec.ProcessedStamp(s.now()), entries...)
	if len(doc.Sections) == 0 {
		doc.Sections = append(doc.Sections, codec.Section{Topic: topic, Processed: codec.ProcessedStamp(s.now())})
	}
	if err := s.write(doc); err != nil {
		return nil, err
	}
	s.logger.Info("created document", "path", s.path, "entries", len(entries), "topic", topic)
	return &WriteResult{
		Path:    s.path,
		Created: true,
		Added:   len(entries),
		Total:   len(entries),
		Topic:   topic,
	}, nil
}

func (s *Store) write(doc *codec.Document) error {
	if err := WriteFileAtomic(s.path, []byte(codec.RenderDocument(doc))); err != nil {
		return fmt.Errorf("write document: %w", err)
	}
	return nil
}

func isMissingDocument(err error) bool {
	var nf *domain.NotFoundError
	return errors.As(err, &nf) && nf.Kind == domain.NotFoundDocument
}
