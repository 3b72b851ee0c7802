package feed

import (
	"bytes"
	"cmp"
	"fmt"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"
	ext "github.com/mmcdole/gofeed/extensions"
)

type Parser struct {
	gofeedParser *gofeed.Parser
	now          func() time.Time
}

func NewParser() *Parser {
	return &Parser{
		gofeedParser: gofeed.NewParser(),
		now:          time.Now,
	}
}

// Run parses a syndication document and returns its entries in feed order.
// The feed is trusted to list the newest entry first; entries are never
// re-sorted.
func (p *Parser) Run(data []byte) ([]Entry, error) {
	feed, err := p.gofeedParser.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to parse feed: %w", err)
	}

	entries := make([]Entry, 0, len(feed.Items))
	for _, item := range feed.Items {
		if item == nil {
			continue
		}
		entries = append(entries, p.normalizeItem(item))
	}

	return entries, nil
}

func (p *Parser) normalizeItem(item *gofeed.Item) Entry {
	entry := Entry{
		// No fallback to the link: an entry without an id cannot be deduplicated.
		ID:          strings.TrimSpace(item.GUID),
		Title:       cmp.Or(strings.TrimSpace(item.Title), "No title found"),
		Link:        strings.TrimSpace(item.Link),
		ContentHTML: item.Content,
		SummaryHTML: item.Description,
	}

	if item.PublishedParsed != nil {
		entry.Published = item.PublishedParsed.UTC()
	} else {
		entry.Published = p.now().UTC()
	}

	if media, ok := item.Extensions["media"]; ok {
		entry.MediaContentURL = firstExtensionURL(media["content"])
		entry.MediaThumbnailURL = firstExtensionURL(media["thumbnail"])
	}

	return entry
}

// firstExtensionURL mirrors feedparser's behaviour of only looking at the
// first media element.
func firstExtensionURL(elements []ext.Extension) string {
	if len(elements) == 0 {
		return ""
	}
	return strings.TrimSpace(elements[0].Attrs["url"])
}
