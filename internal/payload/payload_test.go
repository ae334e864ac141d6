package payload

import (
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/pbaille/bib/internal/domain"
)

func TestDecodeJSONObject(t *testing.T) {
	t.Parallel()

	got, err := Decode([]byte(`{"url": "https://x.org/a", "content": "Title Line\nJohn Doe, 2021", "authors": "Ada Lovelace, Alan Turing"}`))
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	want := []domain.Payload{{
		URL:     "https://x.org/a",
		Content: "Title Line\nJohn Doe, 2021",
		Authors: []string{"Ada Lovelace", "Alan Turing"},
	}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Decode() = %#v, want %#v", got, want)
	}
}

func TestDecodeJSONListWithAliases(t *testing.T) {
	t.Parallel()

	got, err := Decode([]byte(`[
		{"source_url": "https://a.org", "text": "alpha", "authors": ["A One"], "date": "2020-01-02"},
		{"url": "https://b.org", "content": "beta", "title": "Bee"}
	]`))
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 payloads, got %d", len(got))
	}
	if got[0].URL != "https://a.org" || got[0].Content != "alpha" || got[0].Date != "2020-01-02" || got[0].Authors[0] != "A One" {
		t.Fatalf("aliases not honored: %#v", got[0])
	}
	if got[1].Title != "Bee" {
		t.Fatalf("title not decoded: %#v", got[1])
	}
}

func TestDecodeYAML(t *testing.T) {
	t.Parallel()

	input := `
- url: https://a.org/1
  content: |
    Heading Here
    Body
  authors:
    - Jane Roe
- url: https://b.org/2
  date: 2019-07-01
`
	got, err := Read(strings.NewReader(input))
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if len(got) != 2 || got[0].Content != "Heading Here\nBody\n" || got[0].Authors[0] != "Jane Roe" || got[1].Date != "2019-07-01" {
		t.Fatalf("Read() = %#v", got)
	}
}

func TestDecodeRejectsMalformedInput(t *testing.T) {
	t.Parallel()

	for _, input := range []string{"", "   ", `{"url": `, `[]`, `{"content": "no url"}`, "just a scalar"} {
		_, err := Decode([]byte(input))
		if !errors.Is(err, domain.ErrValidation) {
			t.Fatalf("Decode(%q) error = %v, want validation error", input, err)
		}
	}
}
