package substack

import (
	"fmt"
	"html"
	"regexp"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"github.com/mmcdole/gofeed"
)

const (
	defaultAuthor = "Nate"
	excerptLength = 200
)

var (
	stripPolicy = bluemonday.StrictPolicy()

	mediaURL = regexp.MustCompile(`(?i)\.(jpg|jpeg|png|gif|webp|mp4|webm|ogg)$`)
	audioURL = regexp.MustCompile(`(?i)\.mp3$`)
	imgSrc   = regexp.MustCompile(`(?i)<img[^>]+src=["']([^"'>]+)["']`)
)

// PlainText strips all markup from s and decodes entities.
func PlainText(s string) string {
	return strings.TrimSpace(html.UnescapeString(stripPolicy.Sanitize(s)))
}

func convertFeed(feed *gofeed.Feed, now time.Time) []Post {
	posts := make([]Post, 0, len(feed.Items))
	for i, item := range feed.Items {
		if item == nil {
			continue
		}
		posts = append(posts, convertItem(item, i, feed.Title, now))
	}
	return posts
}

func convertItem(item *gofeed.Item, index int, feedTitle string, now time.Time) Post {
	raw := item.Content
	if raw == "" {
		raw = item.Description
	}

	p := Post{
		ID:         firstNonEmpty(item.GUID, item.Link, fmt.Sprintf("post-%d", index)),
		Title:      firstNonEmpty(item.Title, "Untitled"),
		Content:    raw,
		Excerpt:    excerpt(PlainText(raw)),
		Link:       item.Link,
		PubDate:    firstNonEmpty(item.Published, now.UTC().Format(time.RFC3339)),
		Author:     firstNonEmpty(itemAuthor(item), feedTitle, defaultAuthor),
		Categories: item.Categories,
		Image:      extractImage(item, raw),
	}
	if p.Categories == nil {
		p.Categories = []string{}
	}
	if item.PublishedParsed != nil {
		p.ISODate = item.PublishedParsed.UTC().Format(time.RFC3339)
	}
	return p
}

func excerpt(text string) string {
	runes := []rune(text)
	if len(runes) <= excerptLength {
		return text
	}
	return string(runes[:excerptLength]) + "..."
}

func itemAuthor(item *gofeed.Item) string {
	if item.DublinCoreExt != nil && len(item.DublinCoreExt.Creator) > 0 {
		return item.DublinCoreExt.Creator[0]
	}
	for _, a := range item.Authors {
		if a != nil && a.Name != "" {
			return a.Name
		}
	}
	return ""
}

// extractImage picks a cover image: an image or video enclosure, then
// media:content, then the first <img> in the body. Podcast items fall back
// to their itunes or thumbnail artwork.
func extractImage(item *gofeed.Item, raw string) string {
	var enclosure string
	if len(item.Enclosures) > 0 && item.Enclosures[0] != nil {
		enclosure = item.Enclosures[0].URL
	}

	var image string
	switch {
	case enclosure != "" && mediaURL.MatchString(enclosure):
		image = enclosure
	case extensionAttr(item, "media", "content", "url") != "":
		image = extensionAttr(item, "media", "content", "url")
	default:
		if m := imgSrc.FindStringSubmatch(raw); m != nil {
			image = m[1]
		}
	}

	if image == "" && enclosure != "" && audioURL.MatchString(enclosure) {
		if item.ITunesExt != nil && item.ITunesExt.Image != "" {
			image = item.ITunesExt.Image
		} else {
			image = extensionAttr(item, "media", "thumbnail", "url")
		}
	}
	return image
}

func extensionAttr(item *gofeed.Item, namespace, name, attr string) string {
	exts := item.Extensions[namespace][name]
	if len(exts) == 0 {
		return ""
	}
	return exts[0].Attrs[attr]
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
