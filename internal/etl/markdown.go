package etl

import (
	"context"
	"fmt"
	"strings"

	"github.com/gosimple/slug"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"

	"github.com/tessellate-io/lectern/internal/domain"
)

// descriptionMarker flags headings that carry page metadata rather than
// section content; they are never used as split points.
const descriptionMarker = "description: "

// MarkdownNormalizer turns one markdown lecture page into chunks, one per
// level-2 section plus one leading preamble.
type MarkdownNormalizer struct {
	fetcher Fetcher
}

// NewMarkdownNormalizer creates a markdown normalizer.
func NewMarkdownNormalizer(fetcher Fetcher) *MarkdownNormalizer {
	return &MarkdownNormalizer{fetcher: fetcher}
}

// Normalize fetches the lecture markdown and splits it by level-2 headings.
// The chunk source is {website_url_base}/{slug}#{heading-slug}, with an
// empty fragment for the preamble.
func (n *MarkdownNormalizer) Normalize(ctx context.Context, corpus *MarkdownCorpus, lec Lecture) ([]RawChunk, error) {
	markdownURL := fmt.Sprintf("%s/%s/index.md", strings.TrimRight(corpus.MarkdownURLBase, "/"), lec.Slug)
	pageURL := fmt.Sprintf("%s/%s", strings.TrimRight(corpus.WebsiteURLBase, "/"), lec.Slug)

	body, err := n.fetcher.Fetch(ctx, markdownURL)
	if err != nil {
		return nil, fmt.Errorf("lecture %s: %w", lec.Slug, err)
	}

	headings := TargetHeadings(body)
	sections := SplitByHeadings(string(body), headings)

	// Section i+1 belongs to heading i; section 0 is the preamble.
	titles := append([]string{""}, headings...)

	raws := make([]RawChunk, 0, len(sections))
	for i, section := range sections {
		if section == "" {
			continue
		}

		fragment := ""
		if titles[i] != "" {
			fragment = slug.Make(titles[i])
		}

		raws = append(raws, RawChunk{
			Text: section,
			Metadata: map[string]string{
				domain.MetaSource:  fmt.Sprintf("%s#%s", pageURL, fragment),
				domain.MetaHeading: titles[i],
				domain.MetaTitle:   lec.Title,
			},
		})
	}

	return raws, nil
}

// TargetHeadings extracts level-2 heading texts from a markdown document in
// document order, skipping metadata headings.
func TargetHeadings(source []byte) []string {
	parser := goldmark.DefaultParser()
	root := parser.Parse(text.NewReader(source))

	var headings []string
	_ = ast.Walk(root, func(node ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		h, ok := node.(*ast.Heading)
		if !ok || h.Level != 2 {
			return ast.WalkContinue, nil
		}
		txt := string(h.Text(source))
		if strings.HasPrefix(txt, descriptionMarker) {
			return ast.WalkContinue, nil
		}
		headings = append(headings, txt)
		return ast.WalkSkipChildren, nil
	})

	return headings
}

// SplitByHeadings splits markdown text into one preamble section plus one
// section per heading, matched in document order. Heading lines themselves
// are dropped; the heading text travels in chunk metadata instead. Returns
// len(headings)+1 sections, each whitespace-trimmed (possibly empty).
func SplitByHeadings(markdownText string, headings []string) []string {
	sections := make([]string, len(headings)+1)
	lines := strings.Split(markdownText, "\n")

	cur := 0
	var buf []string

	flush := func() {
		sections[cur] = strings.TrimSpace(strings.Join(buf, "\n"))
		buf = buf[:0]
	}

	for _, line := range lines {
		if cur < len(headings) && isHeadingLine(line, headings[cur]) {
			flush()
			cur++
			continue
		}
		buf = append(buf, line)
	}
	flush()

	return sections
}

// isHeadingLine reports whether line is an ATX heading whose text equals want.
func isHeadingLine(line, want string) bool {
	trimmed := strings.TrimSpace(line)
	if !strings.HasPrefix(trimmed, "#") {
		return false
	}
	trimmed = strings.TrimLeft(trimmed, "#")
	return strings.TrimSpace(trimmed) == want
}
