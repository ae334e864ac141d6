package domain

// Entry represents one literature-review item in a bibliography document
type Entry struct {
	AuthorLabel    string `json:"author_label" yaml:"author_label"`
	Year           string `json:"year,omitempty" yaml:"year,omitempty"`
	Title          string `json:"title" yaml:"title"`
	Domain         string `json:"domain" yaml:"domain"`
	URL            string `json:"url" yaml:"url"`
	Annotation     string `json:"annotation,omitempty" yaml:"annotation,omitempty"`
	ContentPreview string `json:"content_preview" yaml:"content_preview"`
}

// Annotated reports whether the entry carries key findings
func (e Entry) Annotated() bool {
	return e.Annotation != ""
}

// Payload is the raw input produced by a search/fetch step
type Payload struct {
	URL     string   `json:"url" yaml:"url"`
	Content string   `json:"content" yaml:"content"`
	Title   string   `json:"title,omitempty" yaml:"title,omitempty"`
	Authors []string `json:"authors,omitempty" yaml:"authors,omitempty"`
	Date    string   `json:"date,omitempty" yaml:"date,omitempty"`
}

// Overrides holds caller-supplied metadata that wins over anything derived from content
type Overrides struct {
	Title      string
	Authors    []string
	Date       string
	Annotation string
}

// Listing is one row of a document-order enumeration
type Listing struct {
	Index     int    `json:"index" yaml:"index"`
	Topic     string `json:"topic,omitempty" yaml:"topic,omitempty"`
	Entry     Entry  `json:"entry" yaml:"entry"`
	Annotated bool   `json:"annotated" yaml:"annotated"`
}
