// Package payload decodes the {url, content} records produced by a search or
// fetch step. Input is JSON (one object or a list) or the YAML equivalent.
package payload

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/pbaille/bib/internal/domain"
)

type record struct {
	URL       string     `json:"url" yaml:"url"`
	SourceURL string     `json:"source_url" yaml:"source_url"`
	Content   string     `json:"content" yaml:"content"`
	Text      string     `json:"text" yaml:"text"`
	Title     string     `json:"title" yaml:"title"`
	Authors   authorList `json:"authors" yaml:"authors"`
	Date      string     `json:"date" yaml:"date"`
}

// authorList accepts either a list of names or one comma-joined string.
type authorList []string

func (a *authorList) UnmarshalJSON(data []byte) error {
	var list []string
	if err := json.Unmarshal(data, &list); err == nil {
		*a = list
		return nil
	}
	var joined string
	if err := json.Unmarshal(data, &joined); err != nil {
		return fmt.Errorf("authors: expected string or list")
	}
	*a = strings.Split(joined, ",")
	return nil
}

func (a *authorList) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.SequenceNode:
		var list []string
		if err := value.Decode(&list); err != nil {
			return err
		}
		*a = list
	case yaml.ScalarNode:
		*a = strings.Split(value.Value, ",")
	default:
		return fmt.Errorf("authors: expected string or list")
	}
	return nil
}

func (r record) payload() domain.Payload {
	p := domain.Payload{
		URL:     r.URL,
		Content: r.Content,
		Title:   r.Title,
		Date:    r.Date,
	}
	if p.URL == "" {
		p.URL = r.SourceURL
	}
	if p.Content == "" {
		p.Content = r.Text
	}
	for _, name := range r.Authors {
		if name = strings.TrimSpace(name); name != "" {
			p.Authors = append(p.Authors, name)
		}
	}
	return p
}

// Read decodes every payload in r.
func Read(r io.Reader) ([]domain.Payload, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read payload: %w", err)
	}
	return Decode(data)
}

// Decode parses one payload or a list of payloads. Undecodable input is a
// validation error.
func Decode(data []byte) ([]domain.Payload, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, &domain.ValidationError{Field: "payload", Reason: "input is empty"}
	}

	var records []record
	var err error
	switch trimmed[0] {
	case '[':
		err = json.Unmarshal(trimmed, &records)
	case '{':
		var single record
		err = json.Unmarshal(trimmed, &single)
		records = []record{single}
	default:
		records, err = decodeYAML(trimmed)
	}
	if err != nil {
		return nil, &domain.ValidationError{Field: "payload", Reason: err.Error()}
	}
	if len(records) == 0 {
		return nil, &domain.ValidationError{Field: "payload", Reason: "no records"}
	}

	payloads := make([]domain.Payload, 0, len(records))
	for i, rec := range records {
		p := rec.payload()
		if strings.TrimSpace(p.URL) == "" {
			return nil, &domain.ValidationError{Field: "url", Reason: fmt.Sprintf("missing in record %d", i+1)}
		}
		payloads = append(payloads, p)
	}
	return payloads, nil
}

func decodeYAML(data []byte) ([]record, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	if len(doc.Content) == 0 {
		return nil, fmt.Errorf("empty document")
	}
	root := doc.Content[0]
	switch root.Kind {
	case yaml.SequenceNode:
		var records []record
		if err := root.Decode(&records); err != nil {
			return nil, err
		}
		return records, nil
	case yaml.MappingNode:
		var single record
		if err := root.Decode(&single); err != nil {
			return nil, err
		}
		return []record{single}, nil
	default:
		return nil, fmt.Errorf("expected a mapping or a list of mappings")
	}
}
