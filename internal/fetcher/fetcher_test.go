package fetcher

import (
	"context"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strings"
	"testing"
)

const articleHTML = `<!doctype html>
<html>
<head>
  <title>Fallback Title</title>
  <meta name="citation_title" content="Sparse Attention Revisited">
  <meta name="citation_author" content="Ada Lovelace">
  <meta name="citation_author" content="Alan Turing">
  <meta name="citation_publication_date" content="2021/03/04">
  <style>body { color: red; }</style>
</head>
<body>
  <nav>Home | Login</nav>
  <h1>Sparse   Attention Revisited</h1>
  <p>We study <em>sparse</em> attention.</p>
  <script>var tracking = true;</script>
  <ul><li>Point one</li><li>Point two</li></ul>
  <footer>Copyright</footer>
</body>
</html>`

func TestFetchExtractsTextAndMetadata(t *testing.T) {
	t.Parallel()

	var gotAgent string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAgent = r.Header.Get("User-Agent")
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(articleHTML))
	}))
	defer srv.Close()

	f := New(Options{UserAgent: "bib-test"})
	p, err := f.Fetch(context.Background(), srv.URL+"/paper")
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if gotAgent != "bib-test" {
		t.Fatalf("User-Agent = %q", gotAgent)
	}
	if p.URL != srv.URL+"/paper" || p.Title != "Sparse Attention Revisited" || p.Date != "2021/03/04" {
		t.Fatalf("unexpected payload metadata: %+v", p)
	}
	if !reflect.DeepEqual(p.Authors, []string{"Ada Lovelace", "Alan Turing"}) {
		t.Fatalf("Authors = %#v", p.Authors)
	}
	want := "Fallback Title\nSparse Attention Revisited\nWe study sparse attention.\nPoint one\nPoint two"
	if p.Content != want {
		t.Fatalf("Content = %q, want %q", p.Content, want)
	}
	for _, unwanted := range []string{"tracking", "Login", "Copyright", "color"} {
		if strings.Contains(p.Content, unwanted) {
			t.Fatalf("content contains %q: %q", unwanted, p.Content)
		}
	}
}

func TestFetchPlainText(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		_, _ = w.Write([]byte("  Plain Title\nbody  \n"))
	}))
	defer srv.Close()

	p, err := New(Options{}).Fetch(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if p.Content != "Plain Title\nbody" || p.Title != "" {
		t.Fatalf("unexpected payload: %+v", p)
	}
}

func TestFetchErrors(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusGone)
	}))
	defer srv.Close()

	f := New(Options{})
	if _, err := f.Fetch(context.Background(), srv.URL); err == nil || !strings.Contains(err.Error(), "HTTP 410") {
		t.Fatalf("Fetch() error = %v, want HTTP 410", err)
	}
	if _, err := f.Fetch(context.Background(), "ftp://example.com/file"); err == nil {
		t.Fatalf("expected unsupported scheme error")
	}
}

func TestIsURL(t *testing.T) {
	t.Parallel()

	for in, want := range map[string]bool{
		"https://x.org":  true,
		" http://x.org ": true,
		"www.x.org":      true,
		"payload.json":   false,
	} {
		if got := IsURL(in); got != want {
			t.Errorf("IsURL(%q) = %v, want %v", in, got, want)
		}
	}
}
