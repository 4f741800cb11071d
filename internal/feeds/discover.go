package feeds

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/gocolly/colly/v2"
)

// ErrNoFeed reports that a page advertises no RSS/Atom feed.
var ErrNoFeed = errors.New("no feed found on page")

// Discover finds the feed URL for pageURL. If pageURL is itself a feed it is
// returned unchanged; otherwise the page is scanned for alternate <link>
// tags and, failing that, for anchors that look like feed links.
func Discover(ctx context.Context, pageURL, userAgent string) (string, error) {
	if err := ValidateURL(pageURL); err != nil {
		return "", err
	}
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}

	c := colly.NewCollector(
		colly.UserAgent(userAgent),
		colly.MaxDepth(0),
		colly.StdlibContext(ctx),
	)
	c.SetRequestTimeout(10 * time.Second)

	var (
		mu       sync.Mutex
		feedURL  string
		isFeed   bool
		fallback string
	)

	c.OnResponse(func(r *colly.Response) {
		ct := strings.ToLower(r.Headers.Get("Content-Type"))
		if strings.Contains(ct, "html") {
			return
		}
		if strings.Contains(ct, "rss") || strings.Contains(ct, "atom") || strings.Contains(ct, "xml") {
			mu.Lock()
			isFeed = true
			mu.Unlock()
		}
	})

	c.OnHTML(`link[rel="alternate"]`, func(e *colly.HTMLElement) {
		mu.Lock()
		defer mu.Unlock()
		if feedURL != "" {
			return
		}
		typ := strings.ToLower(e.Attr("type"))
		if typ == "application/rss+xml" || typ == "application/atom+xml" {
			if href := e.Attr("href"); href != "" {
				feedURL = resolveURL(pageURL, href)
			}
		}
	})

	c.OnHTML("body", func(e *colly.HTMLElement) {
		href := feedAnchor(e.DOM)
		if href == "" {
			return
		}
		mu.Lock()
		fallback = resolveURL(pageURL, href)
		mu.Unlock()
	})

	if err := c.Visit(pageURL); err != nil {
		return "", err
	}
	c.Wait()

	mu.Lock()
	defer mu.Unlock()
	switch {
	case isFeed:
		return pageURL, nil
	case feedURL != "":
		return feedURL, nil
	case fallback != "":
		return fallback, nil
	}
	return "", ErrNoFeed
}

// feedAnchor returns the href of the first anchor whose target looks like a
// feed, or "".
func feedAnchor(body *goquery.Selection) string {
	var href string
	body.Find("a[href]").EachWithBreak(func(_ int, a *goquery.Selection) bool {
		h, _ := a.Attr("href")
		lower := strings.ToLower(h)
		if strings.HasSuffix(lower, ".rss") || strings.HasSuffix(lower, "/rss") ||
			strings.HasSuffix(lower, "/feed") || strings.HasSuffix(lower, "/feed/") ||
			strings.HasSuffix(lower, "rss.xml") || strings.HasSuffix(lower, "atom.xml") {
			href = h
			return false
		}
		return true
	})
	return href
}

// resolveURL resolves a potentially relative href against a base URL.
func resolveURL(base, href string) string {
	if strings.HasPrefix(href, "http://") || strings.HasPrefix(href, "https://") {
		return href
	}

	baseURL, err := url.Parse(base)
	if err != nil {
		return href
	}

	ref, err := url.Parse(href)
	if err != nil {
		return href
	}

	return baseURL.ResolveReference(ref).String()
}
