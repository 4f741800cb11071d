package archive

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/thinkscotty/newsroom/internal/models"
	"github.com/thinkscotty/newsroom/internal/store"
)

func newArchive(t *testing.T) (*Archive, *store.Memory) {
	t.Helper()
	mem := store.NewMemory()
	a := New(store.New(mem), 2)
	a.backoff = 0
	return a, mem
}

// flakyDocs rejects the first n JSON writes.
type flakyDocs struct {
	store.Documents
	n     int
	saves int
}

func (f *flakyDocs) SaveJSON(ctx context.Context, path string, v any, message string) bool {
	f.saves++
	if f.saves <= f.n {
		return false
	}
	return f.Documents.SaveJSON(ctx, path, v, message)
}

// unreadable fails the first n reads of path.
type unreadable struct {
	*store.Memory
	path  string
	n     int
	reads int
}

func (u *unreadable) Get(ctx context.Context, path string) ([]byte, string, error) {
	if path == u.path {
		u.reads++
		if u.reads <= u.n {
			return nil, "", errors.New("502 bad gateway")
		}
	}
	return u.Memory.Get(ctx, path)
}

func seedDigests(t *testing.T, a *Archive, dates ...string) {
	t.Helper()
	for _, d := range dates {
		require.NoError(t, a.PutDigest(context.Background(), d, models.AnalysisResult{Summary: d}))
	}
}

func TestReadFailureNeverReplacesHistory(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	seedDigests(t, New(store.New(mem), 0), "2026-10-14", "2026-10-15", "2026-10-16")

	backend := &unreadable{Memory: mem, path: NewsPath, n: 1}
	a := New(store.New(backend), 2)
	a.backoff = 0

	require.NoError(t, a.PutDigest(ctx, "2026-10-17", models.AnalysisResult{Summary: "today"}))
	require.Equal(t, []string{"2026-10-17", "2026-10-16", "2026-10-15", "2026-10-14"}, a.Dates(ctx))
}

func TestUnreadableDocumentIsNotWritten(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	seedDigests(t, New(store.New(mem), 0), "2026-10-16")
	writes := mem.Writes()

	backend := &unreadable{Memory: mem, path: NewsPath, n: 100}
	a := New(store.New(backend), 2)
	a.backoff = 0

	err := a.PutDigest(ctx, "2026-10-17", models.AnalysisResult{Summary: "today"})
	require.ErrorIs(t, err, ErrSaveFailed)
	require.ErrorContains(t, err, "502 bad gateway")
	require.Equal(t, 3, backend.reads)
	require.Equal(t, writes, mem.Writes())

	feeds := &unreadable{Memory: mem, path: FeedsPath, n: 100}
	a = New(store.New(feeds), 0)
	_, err = a.AddFeed(ctx, "https://a.example/rss")
	require.ErrorIs(t, err, ErrSaveFailed)
	_, err = a.Feeds(ctx)
	require.Error(t, err)
	require.Equal(t, writes, mem.Writes())
}

func TestPutDigestKeepsOtherDates(t *testing.T) {
	ctx := context.Background()
	a, _ := newArchive(t)

	require.NoError(t, a.PutDigest(ctx, "2026-10-15", models.AnalysisResult{Summary: "old"}))
	require.NoError(t, a.PutDigest(ctx, "2026-10-16", models.AnalysisResult{Summary: "first"}))
	require.NoError(t, a.PutDigest(ctx, "2026-10-16", models.AnalysisResult{Summary: "second"}))

	news := a.LoadNews(ctx)
	require.Len(t, news, 2)
	require.Equal(t, "old", news["2026-10-15"].Summary)
	require.Equal(t, "second", news["2026-10-16"].Summary)
	require.NotNil(t, news["2026-10-16"].Keywords)
	require.NotNil(t, news["2026-10-16"].Articles)
	require.Equal(t, []string{"2026-10-16", "2026-10-15"}, a.Dates(ctx))
}

func TestPutDigestRetriesWithFreshRead(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	docs := &flakyDocs{Documents: store.New(mem), n: 2}
	a := New(docs, 2)
	a.backoff = 0

	require.NoError(t, a.PutDigest(ctx, "2026-10-17", models.AnalysisResult{Summary: "s"}))
	require.Equal(t, 3, docs.saves)

	docs.saves, docs.n = 0, 5
	err := a.PutDigest(ctx, "2026-10-18", models.AnalysisResult{Summary: "s"})
	require.ErrorIs(t, err, ErrSaveFailed)
	require.Equal(t, 3, docs.saves)

	_, ok := a.Digest(ctx, "2026-10-18")
	require.False(t, ok)
}

func TestFeedRegistry(t *testing.T) {
	ctx := context.Background()
	a, mem := newArchive(t)
	urls, err := a.Feeds(ctx)
	require.NoError(t, err)
	require.Empty(t, urls)

	for _, u := range []string{"https://a.example/rss", "https://b.example/rss", "https://c.example/rss"} {
		added, err := a.AddFeed(ctx, u)
		require.NoError(t, err)
		require.True(t, added)
	}
	writes := mem.Writes()

	added, err := a.AddFeed(ctx, " https://b.example/rss ")
	require.NoError(t, err)
	require.False(t, added)
	require.Equal(t, writes, mem.Writes())

	_, err = a.AddFeed(ctx, "  ")
	require.Error(t, err)

	removed, err := a.RemoveFeeds(ctx, []string{"https://b.example/rss", "https://missing.example/rss"})
	require.NoError(t, err)
	require.Equal(t, 1, removed)
	urls, err = a.Feeds(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"https://a.example/rss", "https://c.example/rss"}, urls)

	removed, err = a.RemoveFeeds(ctx, []string{"https://missing.example/rss"})
	require.NoError(t, err)
	require.Zero(t, removed)
}

func TestStatsAndVisits(t *testing.T) {
	ctx := context.Background()
	a, _ := newArchive(t)

	st := a.Stats(ctx)
	require.Zero(t, st.Visits)
	require.Empty(t, st.Dates)

	require.NoError(t, a.RecordVisit(ctx))
	require.NoError(t, a.RecordVisit(ctx))
	require.NoError(t, a.PutDigest(ctx, "2026-10-01", models.AnalysisResult{}))
	require.NoError(t, a.PutDigest(ctx, "2026-10-09", models.AnalysisResult{}))
	_, err := a.AddFeed(ctx, "https://a.example/rss")
	require.NoError(t, err)

	st = a.Stats(ctx)
	require.Equal(t, 2, st.Visits)
	require.Equal(t, 2, st.DigestDays)
	require.Equal(t, 1, st.FeedCount)
	require.Equal(t, "2026-10-09", st.LatestDate)
}

func TestImages(t *testing.T) {
	ctx := context.Background()
	a, mem := newArchive(t)
	date := time.Date(2026, 3, 7, 9, 0, 0, 0, time.UTC)

	require.Equal(t, "images/2026/03/2026-03-07.png", ImagePath(date))
	require.Equal(t, "images/2026/03/test_2026-03-07.png", TestImagePath(date))

	path, ok := a.SaveImage(ctx, date, []byte("png"))
	require.True(t, ok)
	require.Contains(t, mem.Paths(), path)

	_, ok = a.SaveImage(ctx, date, nil)
	require.False(t, ok)

	require.Nil(t, a.Image(ctx, "2026-03-07"))
	require.NoError(t, a.PutDigest(ctx, "2026-03-07", models.AnalysisResult{ImagePath: path}))
	require.Equal(t, []byte("png"), a.Image(ctx, "2026-03-07"))
}
