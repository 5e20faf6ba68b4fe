package substack

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/mmcdole/gofeed"
	"golang.org/x/sync/singleflight"
)

const DefaultFeedURL = "https://natesnewsletter.substack.com/feed"

var ErrPostNotFound = errors.New("post not found")

// Client fetches posts from a Substack RSS feed. Parsed posts are kept for
// ttl, and concurrent misses share a single fetch.
type Client struct {
	feedURL string
	parser  *gofeed.Parser
	cache   *expirable.LRU[string, []Post]
	group   singleflight.Group
	now     func() time.Time
}

// NewClient returns a feed client. A ttl of zero or less disables caching.
func NewClient(feedURL string, ttl time.Duration) *Client {
	parser := gofeed.NewParser()
	parser.Client = &http.Client{
		Timeout: 30 * time.Second,
	}

	c := &Client{
		feedURL: feedURL,
		parser:  parser,
		now:     time.Now,
	}
	if ttl > 0 {
		c.cache = expirable.NewLRU[string, []Post](1, nil, ttl)
	}
	return c
}

// FetchPosts returns every post in the feed, in feed order. The returned
// slice is shared between callers and must not be modified.
func (c *Client) FetchPosts(ctx context.Context) ([]Post, error) {
	if c.cache != nil {
		if posts, ok := c.cache.Get(c.feedURL); ok {
			return posts, nil
		}
	}

	// The first caller's cancellation must not fail everyone sharing the fetch.
	fetchCtx := context.WithoutCancel(ctx)
	v, err, _ := c.group.Do(c.feedURL, func() (any, error) {
		posts, err := c.fetch(fetchCtx)
		if err != nil {
			return nil, err
		}
		if c.cache != nil {
			c.cache.Add(c.feedURL, posts)
		}
		return posts, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]Post), nil
}

// GetPostByID returns the post with the given ID.
func (c *Client) GetPostByID(ctx context.Context, id string) (Post, error) {
	posts, err := c.FetchPosts(ctx)
	if err != nil {
		return Post{}, err
	}
	for _, p := range posts {
		if p.ID == id {
			return p, nil
		}
	}
	return Post{}, fmt.Errorf("%w: %s", ErrPostNotFound, id)
}

// Invalidate drops the cached post list so the next call refetches.
func (c *Client) Invalidate() {
	if c.cache != nil {
		c.cache.Purge()
	}
}

func (c *Client) fetch(ctx context.Context) ([]Post, error) {
	log.Printf("Fetching feed: %s", c.feedURL)

	feed, err := c.parser.ParseURLWithContext(c.feedURL, ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch feed %s: %w", c.feedURL, err)
	}

	posts := convertFeed(feed, c.now())
	log.Printf("  Got %d posts", len(posts))
	return posts, nil
}
