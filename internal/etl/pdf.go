package etl

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path"
	"strconv"
	"strings"

	"code.sajari.com/docconv/v2"

	"github.com/tessellate-io/lectern/internal/domain"
)

const (
	// defaultMinEndmatterPage is the first page index at which a references
	// or bibliography marker may start the endmatter region. Papers front-load
	// "references" mentions in their introductions; early pages never count.
	defaultMinEndmatterPage = 6

	// defaultMaxPages drops book-length PDFs entirely.
	defaultMaxPages = 75
)

// PDFNormalizer turns one academic paper into chunks, one per page, with
// endmatter pages flagged for exclusion from retrieval.
type PDFNormalizer struct {
	fetcher          Fetcher
	minEndmatterPage int
	maxPages         int
}

// NewPDFNormalizer creates a PDF normalizer with default page limits.
func NewPDFNormalizer(fetcher Fetcher) *PDFNormalizer {
	return &PDFNormalizer{
		fetcher:          fetcher,
		minEndmatterPage: defaultMinEndmatterPage,
		maxPages:         defaultMaxPages,
	}
}

// Normalize fetches the paper, extracts per-page text, and annotates
// endmatter. Documents at or above the page cap yield no chunks.
func (n *PDFNormalizer) Normalize(ctx context.Context, paper PaperInfo) ([]RawChunk, error) {
	body, err := n.fetcher.Fetch(ctx, paper.URL)
	if err != nil {
		return nil, fmt.Errorf("paper %s: %w", paper.URL, err)
	}

	pages, err := extractPages(body)
	if err != nil {
		return nil, fmt.Errorf("%w: extract %s: %w", domain.ErrSourceFetch, paper.URL, err)
	}

	if len(pages) >= n.maxPages {
		return nil, nil
	}

	endmatter := annotateEndmatter(pages, n.minEndmatterPage)

	arxivID := arxivIDFromURL(paper.URL)

	raws := make([]RawChunk, 0, len(pages))
	for i, page := range pages {
		if page == "" {
			continue
		}

		meta := map[string]string{
			domain.MetaSource: paper.URL,
			domain.MetaPage:   strconv.Itoa(i),
		}
		if paper.Title != "" {
			meta[domain.MetaTitle] = paper.Title
		}
		if paper.Date != "" {
			meta[domain.MetaDate] = paper.Date
		}
		if arxivID != "" {
			meta[domain.MetaArxivID] = arxivID
		}

		raws = append(raws, RawChunk{
			Text:      page,
			Metadata:  meta,
			Endmatter: endmatter[i],
		})
	}

	return raws, nil
}

// extractPages converts PDF bytes to per-page text. pdftotext separates
// pages with form feeds, which docconv preserves.
func extractPages(pdf []byte) ([]string, error) {
	tmp, err := os.CreateTemp("", "lectern-*.pdf")
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(pdf); err != nil {
		tmp.Close()
		return nil, fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return nil, fmt.Errorf("close temp file: %w", err)
	}

	res, err := docconv.ConvertPath(tmp.Name())
	if err != nil {
		return nil, fmt.Errorf("convert pdf: %w", err)
	}

	pages := strings.Split(res.Body, "\f")
	for i := range pages {
		pages[i] = strings.TrimSpace(pages[i])
	}
	return pages, nil
}

// annotateEndmatter returns an exclusion flag per page. Once a page at or
// past minPage mentions references or a bibliography, that page and every
// page after it are flagged. The flag never unsets.
func annotateEndmatter(pages []string, minPage int) []bool {
	flags := make([]bool, len(pages))
	inEndmatter := false
	for i, page := range pages {
		if !inEndmatter && i >= minPage {
			lower := strings.ToLower(page)
			if strings.Contains(lower, "references") || strings.Contains(lower, "bibliography") {
				inEndmatter = true
			}
		}
		flags[i] = inEndmatter
	}
	return flags
}

// arxivIDFromURL extracts the arXiv identifier from a paper URL, or returns
// the empty string when the URL does not look like an arXiv link.
func arxivIDFromURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || !strings.Contains(u.Host, "arxiv.org") {
		return ""
	}
	base := path.Base(u.Path)
	return strings.TrimSuffix(base, ".pdf")
}
