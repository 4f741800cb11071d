// Package feeds pulls items from RSS/Atom feeds and discovers feed URLs.
package feeds

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/thinkscotty/newsroom/internal/models"
)

const (
	DefaultMaxPerFeed = 10
	DefaultUserAgent  = "Newsroom/1.0 (+https://github.com/thinkscotty/newsroom)"

	feedAcceptHeader = "application/atom+xml, application/rss+xml, application/feed+json, application/xml;q=0.9, text/xml;q=0.8, */*;q=0.5"
)

type acceptTransport struct {
	base http.RoundTripper
}

func (t acceptTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	base := t.base
	if base == nil {
		base = http.DefaultTransport
	}
	clone := req.Clone(req.Context())
	if clone.Header.Get("Accept") == "" {
		clone.Header.Set("Accept", feedAcceptHeader)
	}
	return base.RoundTrip(clone)
}

// ParserFunc parses the feed at url.
type ParserFunc func(ctx context.Context, url string) (*gofeed.Feed, error)

// NewParser returns the gofeed-backed ParserFunc used in production.
func NewParser(userAgent string) ParserFunc {
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}
	return func(ctx context.Context, url string) (*gofeed.Feed, error) {
		fp := gofeed.NewParser()
		fp.UserAgent = userAgent
		fp.Client = &http.Client{Transport: acceptTransport{base: http.DefaultTransport}}
		return fp.ParseURLWithContext(url, ctx)
	}
}

type Fetcher struct {
	parse   ParserFunc
	timeout time.Duration
}

// NewFetcher builds a Fetcher. A nil parse uses NewParser with the default
// user agent; a zero timeout leaves each feed bounded only by ctx.
func NewFetcher(parse ParserFunc, timeout time.Duration) *Fetcher {
	if parse == nil {
		parse = NewParser("")
	}
	return &Fetcher{parse: parse, timeout: timeout}
}

// Fetch reads every feed in order and returns up to maxPerFeed items from
// each. Feeds that fail are logged and skipped; Fetch never fails as a whole.
func (f *Fetcher) Fetch(ctx context.Context, urls []string, maxPerFeed int) []models.FeedItem {
	if maxPerFeed <= 0 {
		maxPerFeed = DefaultMaxPerFeed
	}

	items := []models.FeedItem{}
	for _, u := range urls {
		u = strings.TrimSpace(u)
		if u == "" {
			continue
		}
		if ctx.Err() != nil {
			slog.Warn("Feed fetch cancelled", "remaining_from", u, "error", ctx.Err())
			break
		}

		feedItems, err := f.fetchOne(ctx, u, maxPerFeed)
		if err != nil {
			slog.Warn("Feed fetch failed", "url", u, "error", err)
			continue
		}
		slog.Debug("Feed fetched", "url", u, "items", len(feedItems))
		items = append(items, feedItems...)
	}
	return items
}

func (f *Fetcher) fetchOne(ctx context.Context, u string, maxPerFeed int) ([]models.FeedItem, error) {
	if f.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.timeout)
		defer cancel()
	}

	parsed, err := f.parse(ctx, u)
	if err != nil {
		return nil, err
	}
	if parsed == nil {
		return nil, errors.New("parser returned no feed")
	}

	n := min(len(parsed.Items), maxPerFeed)
	out := make([]models.FeedItem, 0, n)
	for _, item := range parsed.Items[:n] {
		if item == nil {
			continue
		}
		out = append(out, toFeedItem(item))
	}
	return out, nil
}

func toFeedItem(item *gofeed.Item) models.FeedItem {
	title := strings.TrimSpace(item.Title)
	if title == "" {
		title = models.NoTitle
	}

	summary := strings.TrimSpace(item.Description)
	if summary == "" {
		summary = strings.TrimSpace(item.Content)
	}
	if summary == "" {
		summary = models.NoSummary
	}

	link := item.Link
	if link == "" && len(item.Links) > 0 {
		link = item.Links[0]
	}

	published := item.Published
	if published == "" {
		published = item.Updated
	}

	return models.FeedItem{
		Title:     title,
		Link:      link,
		Summary:   summary,
		Published: published,
	}
}

// ValidateURL checks that raw is an absolute http(s) URL.
func ValidateURL(raw string) error {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return errors.New("url is empty")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return errors.New("url has no host")
	}
	return nil
}
