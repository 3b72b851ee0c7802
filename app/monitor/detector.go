package monitor

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/svdberg/atwood-monitor/app/database"
	"github.com/svdberg/atwood-monitor/app/feed"
)

type Outcome string

const (
	OutcomeEmptyFeed Outcome = "empty_feed"
	OutcomeNoID      Outcome = "no_id"
	OutcomeSeeded    Outcome = "seeded"
	OutcomeNew       Outcome = "new"
	OutcomeSeen      Outcome = "seen"
)

type FetcherInterface interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

type NotifierInterface interface {
	Publish(ctx context.Context, item feed.Item)
}

// Result describes one detection pass.
type Result struct {
	Outcome Outcome
	Item    *feed.Item
	Seeded  int
}

// Detector checks the feed for a new newest entry. Only the first entry is
// considered: the feed is trusted to list newest first.
type Detector struct {
	feedURL    string
	fetcher    FetcherInterface
	parser     *feed.Parser
	extractor  *feed.ContentExtractor
	classifier *feed.Classifier
	items      database.ItemRepository
	notifier   NotifierInterface
	now        func() time.Time
}

func NewDetector(cfg *feed.MonitorConfig, fetcher FetcherInterface, items database.ItemRepository, notifier NotifierInterface) (*Detector, error) {
	classifier, err := feed.NewClassifier(cfg.SoldPatterns)
	if err != nil {
		return nil, err
	}

	return &Detector{
		feedURL:    cfg.Feed.URL,
		fetcher:    fetcher,
		parser:     feed.NewParser(),
		extractor:  feed.NewContentExtractor(cfg.Feed.GetBodySelector()),
		classifier: classifier,
		items:      items,
		notifier:   notifier,
		now:        time.Now,
	}, nil
}

// Run performs one detection pass. Fetch and persistence errors are returned;
// the next scheduled run is the retry.
func (d *Detector) Run(ctx context.Context) (Result, error) {
	data, err := d.fetcher.Fetch(ctx, d.feedURL)
	if err != nil {
		return Result{}, fmt.Errorf("failed to fetch feed: %w", err)
	}

	entries, err := d.parser.Run(data)
	if err != nil {
		return Result{}, fmt.Errorf("failed to parse feed: %w", err)
	}

	if len(entries) == 0 {
		slog.Info("No posts found", "url", d.feedURL)
		return Result{Outcome: OutcomeEmptyFeed}, nil
	}

	newest := entries[0]
	if !hasUsableID(newest) {
		slog.Warn("Newest post has no usable ID, skipping", "title", newest.Title, "id", newest.ID)
		return Result{Outcome: OutcomeNoID}, nil
	}

	sold, err := d.classify(ctx, newest)
	if err != nil {
		return Result{}, err
	}

	item := toItem(newest)
	item.Sold = sold

	empty, err := d.items.IsEmpty(ctx)
	if err != nil {
		return Result{}, err
	}

	if empty {
		seeded, err := d.seed(ctx, item, entries[1:])
		if err != nil {
			return Result{}, err
		}
		slog.Info("First run: seeded items without notifications", "count", seeded)
		return Result{Outcome: OutcomeSeeded, Item: &item, Seeded: seeded}, nil
	}

	outcome := OutcomeSeen
	existing, err := d.items.GetItem(ctx, item.ID)
	if err != nil {
		return Result{}, err
	}

	if existing == nil {
		if err := d.items.SaveItem(ctx, item); err != nil {
			return Result{}, err
		}
		slog.Info("New post detected", "post_id", item.ID, "title", item.Title, "sold", item.Sold)
		d.notifier.Publish(ctx, item)
		outcome = OutcomeNew
	} else {
		slog.Debug("No new post", "post_id", item.ID)
	}

	meta := feed.RunMetadata{
		LastRunTime:  d.now().UTC(),
		LastSeenPost: item.Snapshot(),
	}
	if err := d.items.SaveMetadata(ctx, meta); err != nil {
		return Result{}, err
	}

	return Result{Outcome: outcome, Item: &item}, nil
}

// classify fetches the post page and checks its closing lines for a sold
// notice.
func (d *Detector) classify(ctx context.Context, entry feed.Entry) (bool, error) {
	if entry.Link == "" {
		slog.Warn("Post has no link, assuming not sold", "post_id", entry.ID)
		return false, nil
	}

	page, err := d.fetcher.Fetch(ctx, entry.Link)
	if err != nil {
		return false, fmt.Errorf("failed to fetch post page: %w", err)
	}

	text, err := d.extractor.Run(page, entry.Link)
	if err != nil {
		return false, fmt.Errorf("failed to extract post body: %w", err)
	}

	return d.classifier.IsSold(text), nil
}

// seed stores the newest item and every older entry that has an id. Older
// entries are not classified; their pages are never fetched.
func (d *Detector) seed(ctx context.Context, newest feed.Item, rest []feed.Entry) (int, error) {
	if err := d.items.SaveItem(ctx, newest); err != nil {
		return 0, err
	}
	seeded := 1

	for _, entry := range rest {
		if !hasUsableID(entry) {
			slog.Debug("Skipping post without usable ID while seeding", "title", entry.Title)
			continue
		}

		if err := d.items.SaveItem(ctx, toItem(entry)); err != nil {
			return seeded, err
		}
		seeded++
	}

	return seeded, nil
}

func hasUsableID(entry feed.Entry) bool {
	return entry.ID != "" && entry.ID != database.MetaKey
}

func toItem(entry feed.Entry) feed.Item {
	image, _ := feed.ImageURL(entry)
	return feed.Item{
		ID:        entry.ID,
		Title:     entry.Title,
		URL:       entry.Link,
		Published: entry.Published,
		ImageURL:  image,
	}
}
