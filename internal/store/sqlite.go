package store

import (
	"database/sql"
	_ "embed"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"github.com/pbaille/bib/internal/domain"
)

//go:embed schema.sql
var schema string

// Exporter writes read-only snapshots of a bibliography into SQLite. The
// Markdown document remains the source of truth.
type Exporter struct {
	db *sql.DB
}

// ExportRun describes one snapshot.
type ExportRun struct {
	ID         string    `json:"id"`
	Source     string    `json:"source"`
	ExportedAt time.Time `json:"exported_at"`
	EntryCount int       `json:"entry_count"`
	Skipped    int       `json:"skipped"`
}

// OpenExporter opens (or creates) the SQLite database at dbPath
func OpenExporter(dbPath string) (*Exporter, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// Initialize schema
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}

	return &Exporter{db: db}, nil
}

// Close closes the database connection
func (x *Exporter) Close() error {
	return x.db.Close()
}

// Export parses the store's document and records every entry in a new
// snapshot.
func (s *Store) Export(x *Exporter) (*ExportRun, error) {
	doc, err := s.Load()
	if err != nil {
		return nil, err
	}
	run := &ExportRun{
		ID:         uuid.New().String(),
		Source:     s.path,
		ExportedAt: s.now(),
		Skipped:    doc.Skipped,
	}
	items := doc.Items()
	run.EntryCount = len(items)

	if err := x.insert(run, items); err != nil {
		return nil, err
	}
	s.logger.Info("exported document", "path", s.path, "export_id", run.ID, "entries", run.EntryCount)
	return run, nil
}

func (x *Exporter) insert(run *ExportRun, items []domain.Listing) error {
	tx, err := x.db.Begin()
	if err != nil {
		return fmt.Errorf("begin export: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(
		"INSERT INTO exports (id, source, exported_at, entry_count, skipped) VALUES (?, ?, ?, ?, ?)",
		run.ID, run.Source, run.ExportedAt, run.EntryCount, run.Skipped,
	)
	if err != nil {
		return fmt.Errorf("insert export: %w", err)
	}

	stmt, err := tx.Prepare(`
		INSERT INTO entries (export_id, position, topic, author_label, year, title, domain, url, annotation, content_preview)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("prepare entry insert: %w", err)
	}
	defer stmt.Close()

	for _, item := range items {
		e := item.Entry
		if _, err := stmt.Exec(run.ID, item.Index, item.Topic, e.AuthorLabel, e.Year, e.Title, e.Domain, e.URL, e.Annotation, e.ContentPreview); err != nil {
			return fmt.Errorf("insert entry %d: %w", item.Index, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit export: %w", err)
	}
	return nil
}

// Entries returns the entries recorded by one export, in document order
func (x *Exporter) Entries(exportID string) ([]domain.Listing, error) {
	rows, err := x.db.Query(`
		SELECT position, topic, author_label, year, title, domain, url, annotation, content_preview
		FROM entries
		WHERE export_id = ?
		ORDER BY position
	`, exportID)
	if err != nil {
		return nil, fmt.Errorf("list exported entries: %w", err)
	}
	defer rows.Close()

	var items []domain.Listing
	for rows.Next() {
		var item domain.Listing
		e := &item.Entry
		if err := rows.Scan(&item.Index, &item.Topic, &e.AuthorLabel, &e.Year, &e.Title, &e.Domain, &e.URL, &e.Annotation, &e.ContentPreview); err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		item.Annotated = e.Annotated()
		items = append(items, item)
	}

	return items, rows.Err()
}

// Runs lists snapshots taken of source, newest first
func (x *Exporter) Runs(source string) ([]ExportRun, error) {
	rows, err := x.db.Query(
		"SELECT id, source, exported_at, entry_count, skipped FROM exports WHERE source = ? ORDER BY exported_at DESC",
		source,
	)
	if err != nil {
		return nil, fmt.Errorf("list exports: %w", err)
	}
	defer rows.Close()

	var runs []ExportRun
	for rows.Next() {
		var r ExportRun
		if err := rows.Scan(&r.ID, &r.Source, &r.ExportedAt, &r.EntryCount, &r.Skipped); err != nil {
			return nil, fmt.Errorf("scan export: %w", err)
		}
		runs = append(runs, r)
	}

	return runs, rows.Err()
}
