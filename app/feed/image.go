package feed

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// imageSource yields an image URL for an entry, if it has one.
type imageSource func(Entry) (string, bool)

// imageSources is probed in order; the first hit wins.
var imageSources = []imageSource{
	fromMediaContent,
	fromMediaThumbnail,
	fromContentHTML,
	fromSummaryHTML,
}

// ImageURL returns the entry's image following the media-content,
// media-thumbnail, content <img>, summary <img> chain.
func ImageURL(entry Entry) (string, bool) {
	for _, source := range imageSources {
		if url, ok := source(entry); ok {
			return url, true
		}
	}
	return "", false
}

func fromMediaContent(e Entry) (string, bool) {
	return e.MediaContentURL, e.MediaContentURL != ""
}

func fromMediaThumbnail(e Entry) (string, bool) {
	return e.MediaThumbnailURL, e.MediaThumbnailURL != ""
}

func fromContentHTML(e Entry) (string, bool) {
	return firstImageSrc(e.ContentHTML)
}

func fromSummaryHTML(e Entry) (string, bool) {
	return firstImageSrc(e.SummaryHTML)
}

func firstImageSrc(fragment string) (string, bool) {
	if strings.TrimSpace(fragment) == "" {
		return "", false
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return "", false
	}

	src, ok := doc.Find("img[src]").First().Attr("src")
	if !ok || strings.TrimSpace(src) == "" {
		return "", false
	}
	return strings.TrimSpace(src), true
}
