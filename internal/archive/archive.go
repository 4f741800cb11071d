// Package archive holds the typed documents kept in the remote store: the
// per-date news archive, the feed registry and visitor stats.
package archive

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sort"
	"strings"
	"time"

	"github.com/thinkscotty/newsroom/internal/models"
	"github.com/thinkscotty/newsroom/internal/store"
)

const (
	StatsPath = "data/stats.json"
	NewsPath  = "data/news_data.json"
	FeedsPath = "data/feeds.json"

	DateLayout = "2006-01-02"
)

// ErrSaveFailed means the store rejected every write attempt.
var ErrSaveFailed = errors.New("save failed")

// ImagePath is where the infographic for date is stored.
func ImagePath(date time.Time) string {
	return fmt.Sprintf("images/%s/%s.png", date.Format("2006/01"), date.Format(DateLayout))
}

// TestImagePath is where manually generated test images go.
func TestImagePath(date time.Time) string {
	return fmt.Sprintf("images/%s/test_%s.png", date.Format("2006/01"), date.Format(DateLayout))
}

type Archive struct {
	docs    store.Documents
	retries int
	backoff time.Duration
}

// New wraps docs. retries is how many extra attempts a rejected write gets,
// each starting from a fresh read.
func New(docs store.Documents, retries int) *Archive {
	return &Archive{docs: docs, retries: max(retries, 0), backoff: 500 * time.Millisecond}
}

// update loads path into a fresh T, applies mutate and writes the result.
// mutate returns false when nothing needs writing. A document that cannot be
// read is never replaced; the attempt counts as failed and is retried.
func update[T any](ctx context.Context, a *Archive, path, message string, mutate func(*T) bool) (bool, error) {
	var readErr error
	for attempt := 0; attempt <= a.retries; attempt++ {
		if attempt > 0 {
			slog.Info("Retrying write with fresh read", "path", path, "attempt", attempt)
			select {
			case <-ctx.Done():
				return false, ctx.Err()
			case <-time.After(a.backoff * time.Duration(attempt)):
			}
		}

		var doc T
		if _, err := a.docs.Load(ctx, path, &doc); err != nil {
			slog.Warn("Cannot read document before write", "path", path, "attempt", attempt, "error", err)
			readErr = err
			continue
		}
		readErr = nil
		if !mutate(&doc) {
			return false, nil
		}
		if a.docs.SaveJSON(ctx, path, doc, message) {
			return true, nil
		}
	}
	if readErr != nil {
		return false, fmt.Errorf("%s: %w: %w", path, ErrSaveFailed, readErr)
	}
	return false, fmt.Errorf("%s: %w", path, ErrSaveFailed)
}

// LoadNews returns the whole archive, empty when absent or unreadable.
func (a *Archive) LoadNews(ctx context.Context) models.NewsArchive {
	news := models.NewsArchive{}
	a.docs.LoadJSON(ctx, NewsPath, &news)
	if news == nil {
		news = models.NewsArchive{}
	}
	return news
}

// PutDigest sets the entry for date, overwriting any earlier run that day.
func (a *Archive) PutDigest(ctx context.Context, date string, result models.AnalysisResult) error {
	result.Normalize()
	_, err := update(ctx, a, NewsPath, "Update daily news for "+date, func(news *models.NewsArchive) bool {
		if *news == nil {
			*news = models.NewsArchive{}
		}
		(*news)[date] = result
		return true
	})
	return err
}

func (a *Archive) Digest(ctx context.Context, date string) (models.AnalysisResult, bool) {
	r, ok := a.LoadNews(ctx)[date]
	return r, ok
}

// Dates lists archived dates, newest first.
func (a *Archive) Dates(ctx context.Context) []string {
	return sortedDates(a.LoadNews(ctx))
}

func sortedDates(news models.NewsArchive) []string {
	dates := make([]string, 0, len(news))
	for d := range news {
		dates = append(dates, d)
	}
	sort.Sort(sort.Reverse(sort.StringSlice(dates)))
	return dates
}

// Feeds returns the registered feed URLs, never nil. An unreadable registry
// is an error, distinct from an empty one.
func (a *Archive) Feeds(ctx context.Context) ([]string, error) {
	var reg models.FeedRegistry
	if _, err := a.docs.Load(ctx, FeedsPath, &reg); err != nil {
		return nil, err
	}
	if reg.URLs == nil {
		return []string{}, nil
	}
	return reg.URLs, nil
}

// AddFeed appends url unless it is already registered. It reports whether
// the registry changed.
func (a *Archive) AddFeed(ctx context.Context, url string) (bool, error) {
	url = strings.TrimSpace(url)
	if url == "" {
		return false, errors.New("feed url is empty")
	}
	return update(ctx, a, FeedsPath, "Add RSS feed", func(reg *models.FeedRegistry) bool {
		if slices.Contains(reg.URLs, url) {
			return false
		}
		reg.URLs = append(reg.URLs, url)
		return true
	})
}

// RemoveFeeds drops every url in urls, keeping the order of the rest, and
// returns how many were removed.
func (a *Archive) RemoveFeeds(ctx context.Context, urls []string) (int, error) {
	drop := make(map[string]bool, len(urls))
	for _, u := range urls {
		drop[strings.TrimSpace(u)] = true
	}
	removed := 0
	_, err := update(ctx, a, FeedsPath, "Delete RSS feeds", func(reg *models.FeedRegistry) bool {
		removed = 0
		kept := make([]string, 0, len(reg.URLs))
		for _, u := range reg.URLs {
			if drop[u] {
				removed++
				continue
			}
			kept = append(kept, u)
		}
		reg.URLs = kept
		return removed > 0
	})
	if err != nil {
		return 0, err
	}
	return removed, nil
}

// RecordVisit increments the visitor counter. Lost updates under concurrent
// visits are tolerated.
func (a *Archive) RecordVisit(ctx context.Context) error {
	_, err := update(ctx, a, StatsPath, "Increment visitor count", func(s *models.VisitorStats) bool {
		s.Visits = max(s.Visits, 0) + 1
		return true
	})
	return err
}

func (a *Archive) Stats(ctx context.Context) models.Stats {
	var visitors models.VisitorStats
	a.docs.LoadJSON(ctx, StatsPath, &visitors)
	dates := sortedDates(a.LoadNews(ctx))
	var reg models.FeedRegistry
	a.docs.LoadJSON(ctx, FeedsPath, &reg)

	st := models.Stats{
		Visits:     visitors.Visits,
		DigestDays: len(dates),
		FeedCount:  len(reg.URLs),
		Dates:      dates,
	}
	if len(dates) > 0 {
		st.LatestDate = dates[0]
	}
	return st
}

// SaveImage stores an infographic for date and returns its path.
func (a *Archive) SaveImage(ctx context.Context, date time.Time, data []byte) (string, bool) {
	path := ImagePath(date)
	if !a.docs.SaveImage(ctx, path, data, "Create infographic for "+date.Format(DateLayout)) {
		return "", false
	}
	return path, true
}

// SaveTestImage stores an ad hoc infographic next to the daily ones.
func (a *Archive) SaveTestImage(ctx context.Context, date time.Time, data []byte) (string, bool) {
	path := TestImagePath(date)
	if !a.docs.SaveImage(ctx, path, data, "Create test infographic for "+date.Format(DateLayout)) {
		return "", false
	}
	return path, true
}

// Image loads the image stored for a digest, if any.
func (a *Archive) Image(ctx context.Context, date string) []byte {
	digest, ok := a.Digest(ctx, date)
	if !ok || digest.ImagePath == "" {
		return nil
	}
	return a.docs.LoadImage(ctx, digest.ImagePath)
}
