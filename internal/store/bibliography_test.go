package store

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/pbaille/bib/internal/codec"
	"github.com/pbaille/bib/internal/domain"
)

var fixedNow = time.Date(2024, 6, 2, 15, 4, 0, 0, time.UTC)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "bib.md")
	return New(path, Options{Title: DefaultTitle, Now: func() time.Time { return fixedNow }})
}

func encode(t *testing.T, rawURL, content string) domain.Entry {
	t.Helper()
	e, err := codec.Encode(domain.Payload{URL: rawURL, Content: content}, domain.Overrides{}, codec.Options{})
	if err != nil {
		t.Fatalf("Encode(%q) error = %v", rawURL, err)
	}
	return e
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	return string(data)
}

func urls(items []domain.Listing) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		out = append(out, item.Entry.URL)
	}
	return out
}

func TestAppendCreatesDocumentWhenAllowed(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	entry := encode(t, "https://x.org/a", "Title Line\nJohn Doe, 2021\n...")

	result, err := s.Append([]domain.Entry{entry}, AppendOptions{Topic: "Gap1", CreateIfMissing: true})
	if err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	if !result.Created || result.Added != 1 || result.Topic != "Gap1" {
		t.Fatalf("unexpected result: %+v", result)
	}

	text := readFile(t, s.Path())
	wantPrefix := "# Annotated Bibliography\n\n## Gap1\n\n*Processed: 2024-06-02 15:04*\n\n### John Doe. (2021). **Title Line**. *x.org*\n**URL:** https://x.org/a\n"
	if !strings.HasPrefix(text, wantPrefix) {
		t.Fatalf("unexpected document:\n%s", text)
	}

	listed, err := s.List(false)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(listed.Items) != 1 {
		t.Fatalf("expected one entry, got %d", len(listed.Items))
	}
	item := listed.Items[0]
	if item.Index != 1 || item.Topic != "Gap1" || item.Annotated || item.Entry.URL != "https://x.org/a" {
		t.Fatalf("unexpected listing: %+v", item)
	}
}

func TestAppendMissingDocumentWithoutCreate(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	_, err := s.Append([]domain.Entry{encode(t, "https://x.org/a", "")}, AppendOptions{Topic: "Gap1"})
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("Append() error = %v, want not found", err)
	}
	var nf *domain.NotFoundError
	if !errors.As(err, &nf) || nf.Kind != domain.NotFoundDocument {
		t.Fatalf("Append() error = %#v, want document not found", err)
	}
	if _, statErr := os.Stat(s.Path()); !os.IsNotExist(statErr) {
		t.Fatalf("document should not have been created")
	}
}

func TestCreateRefusesExistingDocument(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	if _, err := s.Create([]domain.Entry{encode(t, "https://x.org/a", "")}, ""); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	before := readFile(t, s.Path())
	if !strings.Contains(before, "## General\n") {
		t.Fatalf("expected default topic section:\n%s", before)
	}

	_, err := s.Create([]domain.Entry{encode(t, "https://y.org/b", "")}, "Other")
	if !errors.Is(err, domain.ErrExists) {
		t.Fatalf("Create() error = %v, want exists", err)
	}
	if after := readFile(t, s.Path()); after != before {
		t.Fatalf("document changed after refused create")
	}
}

func TestAppendPreservesOrderAndSections(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	steps := []struct {
		topic string
		urls  []string
	}{
		{"Gap1", []string{"https://a.org/1", "https://b.org/2"}},
		{"Gap1", []string{"https://c.org/3"}},
		{"Gap2", []string{"https://d.org/4"}},
		{"", []string{"https://e.org/5"}},
	}
	for i, step := range steps {
		var entries []domain.Entry
		for _, u := range step.urls {
			entries = append(entries, encode(t, u, "Some Title Here"))
		}
		if _, err := s.Append(entries, AppendOptions{Topic: step.topic, CreateIfMissing: i == 0}); err != nil {
			t.Fatalf("Append() step %d error = %v", i, err)
		}
	}

	listed, err := s.List(false)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	want := []string{"https://a.org/1", "https://b.org/2", "https://c.org/3", "https://d.org/4", "https://e.org/5"}
	got := urls(listed.Items)
	if strings.Join(got, " ") != strings.Join(want, " ") {
		t.Fatalf("order = %v, want %v", got, want)
	}
	wantTopics := []string{"Gap1", "Gap1", "Gap1", "Gap2", "Gap2"}
	for i, item := range listed.Items {
		if item.Topic != wantTopics[i] || item.Index != i+1 {
			t.Fatalf("item %d = %+v, want topic %s", i, item, wantTopics[i])
		}
	}
	if n := strings.Count(readFile(t, s.Path()), "## Gap1\n"); n != 1 {
		t.Fatalf("Gap1 header written %d times", n)
	}
}

func TestAnnotateFirstMatchAndIdempotence(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	first := encode(t, "https://one.org/abc/1", "First Source Title")
	second := encode(t, "https://two.org/abc/2", "Second Source Title")
	if _, err := s.Append([]domain.Entry{first, second}, AppendOptions{Topic: "T", CreateIfMissing: true}); err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	before := readFile(t, s.Path())

	updated, err := s.Annotate("abc", "Finding A")
	if err != nil {
		t.Fatalf("Annotate() error = %v", err)
	}
	if updated.URL != first.URL || updated.Annotation != "Finding A" {
		t.Fatalf("unexpected updated entry: %+v", updated)
	}

	after := readFile(t, s.Path())
	annotated := first
	annotated.Annotation = "Finding A"
	if want := strings.Replace(before, codec.Render(first), codec.Render(annotated), 1); after != want {
		t.Fatalf("annotate changed more than the matched block:\n%s", after)
	}

	if _, err := s.Annotate("abc", "Finding A"); err != nil {
		t.Fatalf("second Annotate() error = %v", err)
	}
	if again := readFile(t, s.Path()); again != after {
		t.Fatalf("second annotate changed the document")
	}

	listed, err := s.List(false)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if !listed.Items[0].Annotated || listed.Items[1].Annotated {
		t.Fatalf("unexpected annotation status: %+v", listed.Items)
	}
}

func TestAnnotateOverwritesExistingFindings(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	if _, err := s.Append([]domain.Entry{encode(t, "https://x.org/a", "")}, AppendOptions{CreateIfMissing: true}); err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	if _, err := s.Annotate("x.org", "old"); err != nil {
		t.Fatalf("Annotate() error = %v", err)
	}
	if _, err := s.Annotate("x.org", "new line one\nnew line two"); err != nil {
		t.Fatalf("Annotate() error = %v", err)
	}
	listed, err := s.List(false)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if got := listed.Items[0].Entry.Annotation; got != "new line one\nnew line two" {
		t.Fatalf("annotation = %q", got)
	}
}

func TestAnnotateNotFoundLeavesDocumentUnchanged(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	if _, err := s.Append([]domain.Entry{encode(t, "https://x.org/a", "")}, AppendOptions{CreateIfMissing: true}); err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	before := readFile(t, s.Path())

	_, err := s.Annotate("nonexistent.com", "text")
	var nf *domain.NotFoundError
	if !errors.As(err, &nf) || nf.Kind != domain.NotFoundEntry {
		t.Fatalf("Annotate() error = %v, want entry not found", err)
	}
	if after := readFile(t, s.Path()); after != before {
		t.Fatalf("document changed after failed annotate")
	}

	missing := New(filepath.Join(t.TempDir(), "missing.md"), Options{})
	_, err = missing.Annotate("x.org", "text")
	if !errors.As(err, &nf) || nf.Kind != domain.NotFoundDocument {
		t.Fatalf("Annotate() on missing document error = %v", err)
	}
}

func TestAnnotateValidatesInput(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	for _, tc := range []struct{ pattern, text string }{
		{"", "text"},
		{"x.org", "   "},
		{"x.org", "bad\n---\nsplit"},
	} {
		if _, err := s.Annotate(tc.pattern, tc.text); !errors.Is(err, domain.ErrValidation) {
			t.Fatalf("Annotate(%q, %q) error = %v, want validation error", tc.pattern, tc.text, err)
		}
	}
}

func TestListUnannotatedKeepsIndices(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	entries := []domain.Entry{
		encode(t, "https://a.org/1", ""),
		encode(t, "https://b.org/2", ""),
		encode(t, "https://c.org/3", ""),
	}
	if _, err := s.Append(entries, AppendOptions{Topic: "T", CreateIfMissing: true}); err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	if _, err := s.Annotate("b.org", "done"); err != nil {
		t.Fatalf("Annotate() error = %v", err)
	}

	listed, err := s.List(true)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(listed.Items) != 2 || listed.Items[0].Index != 1 || listed.Items[1].Index != 3 {
		t.Fatalf("unexpected filtered listing: %+v", listed.Items)
	}
}

func TestSummaryScenario(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	if _, err := s.Append([]domain.Entry{encode(t, "https://x.org/a", "Title Line\nJohn Doe, 2021\n...")}, AppendOptions{Topic: "Gap1", CreateIfMissing: true}); err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	if _, err := s.Append([]domain.Entry{encode(t, "https://y.org/b", "Another Title")}, AppendOptions{Topic: "Gap1"}); err != nil {
		t.Fatalf("Append() error = %v", err)
	}

	summary, err := s.Summary()
	if err != nil {
		t.Fatalf("Summary() error = %v", err)
	}
	if !strings.Contains(summary, "**0 annotated sources**") || strings.Contains(summary, "x.org/a") {
		t.Fatalf("unannotated entries leaked into summary:\n%s", summary)
	}

	if _, err := s.Annotate("x.org/a", "Finding A"); err != nil {
		t.Fatalf("Annotate() error = %v", err)
	}
	before := readFile(t, s.Path())

	summary, err = s.Summary()
	if err != nil {
		t.Fatalf("Summary() error = %v", err)
	}
	if !strings.Contains(summary, "Finding A") || !strings.Contains(summary, "https://x.org/a") {
		t.Fatalf("summary missing annotated entry:\n%s", summary)
	}
	if strings.Contains(summary, "y.org") || strings.Contains(summary, "<details>") {
		t.Fatalf("summary contains excluded content:\n%s", summary)
	}
	if !strings.Contains(summary, "*Generated: 2024-06-02*") {
		t.Fatalf("summary missing generated date:\n%s", summary)
	}
	if after := readFile(t, s.Path()); after != before {
		t.Fatalf("Summary() modified the document")
	}
}

func TestMalformedBlocksSurviveRewrites(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	good := codec.Render(encode(t, "https://a.org/1", "Good Title"))
	broken := "### hand edited entry\nno url line here"
	text := "## Notes\n\n" + good + "\n---\n\n" + broken + "\n\n---\n"
	if err := os.WriteFile(s.Path(), []byte(text), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	listed, err := s.List(false)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if listed.Skipped != 1 || len(listed.Items) != 1 {
		t.Fatalf("unexpected listing: %+v", listed)
	}

	if _, err := s.Append([]domain.Entry{encode(t, "https://b.org/2", "")}, AppendOptions{}); err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	if _, err := s.Annotate("a.org", "kept"); err != nil {
		t.Fatalf("Annotate() error = %v", err)
	}
	after := readFile(t, s.Path())
	if !strings.Contains(after, broken) {
		t.Fatalf("malformed block lost:\n%s", after)
	}
	if strings.Index(after, broken) > strings.Index(after, "https://b.org/2") {
		t.Fatalf("appended entry placed before existing blocks:\n%s", after)
	}
}

func legacyBlock(rawURL string) string {
	return "### Jane Roe. (2020). **Legacy**. *x.org*\n" +
		"**URL:** " + rawURL + "\n\n" +
		"<details><summary>Content preview (click to expand)</summary>\n\n" +
		"```\nbody\n```\n</details>"
}

func TestAnnotateRewritesOnlyTheMatchedBlock(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	head := "# My Review\n\nNotes on scope.\n\nMore notes.\n\n## Gap1\n\n" + legacyBlock("https://x.org/a") + "\n\n"
	text := head + legacyBlock("https://y.org/b") + "\n"
	if err := os.WriteFile(s.Path(), []byte(text), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	entry, err := s.Annotate("y.org/b", "Finding B")
	if err != nil {
		t.Fatalf("Annotate() error = %v", err)
	}
	after := readFile(t, s.Path())
	if !strings.HasPrefix(after, head) {
		t.Fatalf("untouched text was rewritten:\n%s", after)
	}
	if rest := strings.TrimPrefix(after, head); rest != codec.Render(*entry) {
		t.Fatalf("annotated block = %q", rest)
	}

	if _, err := s.Append([]domain.Entry{encode(t, "https://z.org/c", "New")}, AppendOptions{}); err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	appended := readFile(t, s.Path())
	if !strings.HasPrefix(appended, after[:len(after)-1]) {
		t.Fatalf("append rewrote existing text:\n%s", appended)
	}
	if strings.Count(appended, "\n---\n") != 2 {
		t.Fatalf("expected separators around the new entry only:\n%s", appended)
	}
}

func TestWriteFileAtomicPreservesTargetOnFailure(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	target := filepath.Join(dir, "bib.md")
	if err := os.MkdirAll(filepath.Join(target, "child"), 0o755); err != nil {
		t.Fatalf("MkdirAll() error = %v", err)
	}

	if err := WriteFileAtomic(target, []byte("data")); err == nil {
		t.Fatalf("expected rename over a directory to fail")
	}
	if info, err := os.Stat(target); err != nil || !info.IsDir() {
		t.Fatalf("target was replaced: %v", err)
	}
	leftovers, _ := filepath.Glob(filepath.Join(dir, ".bib-*.tmp"))
	if len(leftovers) != 0 {
		t.Fatalf("temp files left behind: %v", leftovers)
	}
}
