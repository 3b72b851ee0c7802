package feed

import (
	"bytes"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-shiori/go-readability"
)

const DefaultBodySelector = "div.post-body"

// ContentExtractor pulls the plain text of a post body out of a page.
type ContentExtractor struct {
	selector string
}

// NewContentExtractor returns an extractor for the given CSS selector. An
// empty selector falls back to readability's article detection.
func NewContentExtractor(selector string) *ContentExtractor {
	return &ContentExtractor{selector: strings.TrimSpace(selector)}
}

// Run returns the body text with one line per text node. A page without the
// body container yields an empty string, not an error.
func (e *ContentExtractor) Run(data []byte, pageURL string) (string, error) {
	if len(data) == 0 {
		return "", fmt.Errorf("HTML data is empty")
	}

	if e.selector == "" {
		return e.readable(data, pageURL)
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("failed to parse HTML: %w", err)
	}

	body := doc.Find(e.selector).First()
	if body.Length() == 0 {
		slog.Debug("Post body container not found", "selector", e.selector, "url", pageURL)
		return "", nil
	}

	var lines []string
	collectText(body, &lines)

	return strings.TrimSpace(strings.Join(lines, "\n")), nil
}

func (e *ContentExtractor) readable(data []byte, pageURL string) (string, error) {
	parsed, _ := url.Parse(pageURL)

	article, err := readability.FromReader(bytes.NewReader(data), parsed)
	if err != nil {
		return "", fmt.Errorf("failed to extract content: %w", err)
	}

	slog.Debug("Content extracted with readability",
		"title", article.Title,
		"content_length", len(article.TextContent))

	return strings.TrimSpace(article.TextContent), nil
}

func collectText(s *goquery.Selection, lines *[]string) {
	s.Contents().Each(func(_ int, child *goquery.Selection) {
		switch goquery.NodeName(child) {
		case "#text":
			*lines = append(*lines, child.Text())
		case "script", "style", "#comment":
		default:
			collectText(child, lines)
		}
	})
}
