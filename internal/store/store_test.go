package store

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

type doc struct {
	URLs []string `json:"urls"`
}

func TestSaveThenLoad(t *testing.T) {
	ctx := context.Background()
	s := New(NewMemory())

	want := doc{URLs: []string{"https://a.example/rss", "https://b.example/feed"}}
	require.True(t, s.SaveJSON(ctx, "data/feeds.json", want, "Add RSS feed"))

	var got doc
	require.True(t, s.LoadJSON(ctx, "data/feeds.json", &got))
	require.Equal(t, want, got)

	// Second save goes through the update path with the current sha.
	want.URLs = want.URLs[:1]
	require.True(t, s.SaveJSON(ctx, "data/feeds.json", want, "Delete RSS feeds"))
	require.True(t, s.LoadJSON(ctx, "data/feeds.json", &got))
	require.Equal(t, want, got)
}

func TestLoadMissingLeavesValueUntouched(t *testing.T) {
	s := New(NewMemory())
	v := doc{URLs: []string{"keep"}}
	require.False(t, s.LoadJSON(context.Background(), "data/none.json", &v))
	require.Equal(t, []string{"keep"}, v.URLs)
}

func TestLoadMalformed(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"not json", "not json at all"},
		{"truncated", `{"urls": ["a"`},
		{"wrong type", `{"urls": 5}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			mem := NewMemory()
			require.NoError(t, mem.Put(ctx, "data/feeds.json", []byte(tt.content), "", "seed"))

			v := doc{URLs: []string{"keep"}}
			require.False(t, New(mem).LoadJSON(ctx, "data/feeds.json", &v))
			require.Equal(t, []string{"keep"}, v.URLs)
		})
	}
}

func TestStaleSHAIsRejected(t *testing.T) {
	ctx := context.Background()
	mem := NewMemory()
	s := New(mem)
	require.True(t, s.SaveJSON(ctx, "data/stats.json", map[string]int{"visits": 1}, "Increment visitor count"))

	// Another writer lands between our sha read and our write.
	s.afterRead = func(path string) {
		_, sha, err := mem.Get(ctx, path)
		require.NoError(t, err)
		require.NoError(t, mem.Put(ctx, path, []byte(`{"visits": 7}`), sha, "other"))
	}
	require.False(t, s.SaveJSON(ctx, "data/stats.json", map[string]int{"visits": 2}, "Increment visitor count"))

	s.afterRead = nil
	var got map[string]int
	require.True(t, s.LoadJSON(ctx, "data/stats.json", &got))
	require.Equal(t, 7, got["visits"])
}

func TestCreateOverExistingIsRejected(t *testing.T) {
	ctx := context.Background()
	mem := NewMemory()
	require.NoError(t, mem.Put(ctx, "a.json", []byte("{}"), "", "seed"))
	require.ErrorIs(t, mem.Put(ctx, "a.json", []byte("{}"), "", "again"), ErrConflict)
	require.ErrorIs(t, mem.Put(ctx, "b.json", []byte("{}"), "deadbeef", "update missing"), ErrConflict)
}

func TestEncode(t *testing.T) {
	data, err := Encode(map[string]any{
		"summary": "오늘의 <AI> 뉴스 & 동향",
		"a":       []string{},
	})
	require.NoError(t, err)

	out := string(data)
	require.True(t, strings.HasSuffix(out, "\n"))
	require.Contains(t, out, "\n    \"a\": []")
	require.Contains(t, out, "오늘의 <AI> 뉴스 & 동향")
	// Sorted keys give a stable encoding.
	require.Less(t, strings.Index(out, `"a"`), strings.Index(out, `"summary"`))
}

func TestImages(t *testing.T) {
	ctx := context.Background()
	s := New(NewMemory())

	require.Nil(t, s.LoadImage(ctx, "images/2024/06/2024-06-01.png"))
	require.False(t, s.SaveImage(ctx, "images/2024/06/2024-06-01.png", nil, "empty"))

	png := []byte{0x89, 'P', 'N', 'G'}
	require.True(t, s.SaveImage(ctx, "images/2024/06/2024-06-01.png", png, "Create infographic for 2024-06-01"))
	require.Equal(t, png, s.LoadImage(ctx, "images/2024/06/2024-06-01.png"))
}

func TestBlobSHA(t *testing.T) {
	// git hash-object of an empty file.
	require.Equal(t, "e69de29bb2d1d6434b8b29ae775ad8c2e48c5391", BlobSHA(nil))
}

type brokenBackend struct{ Backend }

func (brokenBackend) Get(context.Context, string) ([]byte, string, error) {
	return nil, "", errors.New("502 bad gateway")
}

func TestLoadSeparatesAbsentFromUnreadable(t *testing.T) {
	ctx := context.Background()
	mem := NewMemory()
	require.NoError(t, mem.Put(ctx, "data/bad.json", []byte("{"), "", "seed"))

	var v doc
	found, err := New(mem).Load(ctx, "data/none.json", &v)
	require.NoError(t, err)
	require.False(t, found)

	found, err = New(mem).Load(ctx, "data/bad.json", &v)
	require.ErrorIs(t, err, ErrMalformed)
	require.True(t, found)

	found, err = New(brokenBackend{mem}).Load(ctx, "data/none.json", &v)
	require.Error(t, err)
	require.NotErrorIs(t, err, ErrNotFound)
	require.False(t, found)
}
