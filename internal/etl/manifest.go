package etl

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Manifest describes a corpus batch: which source documents to ingest.
// It is the on-disk input of the offline ingestion entrypoint.
type Manifest struct {
	Markdown *MarkdownCorpus `json:"markdown,omitempty"`
	Papers   []PaperInfo     `json:"papers,omitempty"`
	Videos   []VideoInfo     `json:"videos,omitempty"`
}

// MarkdownCorpus lists lecture pages published as markdown files.
type MarkdownCorpus struct {
	WebsiteURLBase  string    `json:"website_url_base"`
	MarkdownURLBase string    `json:"md_url_base"`
	Lectures        []Lecture `json:"lectures"`
}

// Lecture is one markdown lecture page.
type Lecture struct {
	Title string `json:"title"`
	Slug  string `json:"slug"`
}

// PaperInfo is one academic PDF. Title and Date are optional external
// metadata merged into the extracted chunks when present.
type PaperInfo struct {
	URL   string `json:"url"`
	Title string `json:"title,omitempty"`
	Date  string `json:"date,omitempty"`
}

// VideoInfo is one video with a retrievable transcript.
type VideoInfo struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// LoadManifest reads and parses a corpus manifest from a JSON file.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("read manifest %s: %w", path, err)
	}

	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse manifest %s: %w", path, err)
	}

	return &m, nil
}

// FilterKind narrows the manifest to a single source kind. Unknown kinds
// leave the manifest unchanged.
func (m *Manifest) FilterKind(kind Kind) *Manifest {
	switch kind {
	case KindMarkdown:
		return &Manifest{Markdown: m.Markdown}
	case KindPDF:
		return &Manifest{Papers: m.Papers}
	case KindVideo:
		return &Manifest{Videos: m.Videos}
	default:
		return m
	}
}

// DocumentCount returns the number of source documents the manifest names.
func (m *Manifest) DocumentCount() int {
	n := len(m.Papers) + len(m.Videos)
	if m.Markdown != nil {
		n += len(m.Markdown.Lectures)
	}
	return n
}
