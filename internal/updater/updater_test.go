package updater

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/google/go-github/v66/github"
	"github.com/stretchr/testify/require"
)

func TestIsNewer(t *testing.T) {
	tests := []struct {
		current, latest string
		want            bool
	}{
		{"0.8.2", "0.8.2", false},
		{"v0.8.2", "v0.8.2", false},
		{"0.8.1", "0.8.2", true},
		{"0.7.0", "0.8.0", true},
		{"0.8.2", "0.8.1", false},
		{"0.9.0", "0.8.2", false},
		{"0.8.2-3-gabcdef1", "0.8.2", false},
		{"0.8.2-3-gabcdef1", "0.8.3", true},
		{"0.8.2-dirty", "0.8.2", false},
		{"0.8.2-3-gabcdef1-dirty", "0.8.3", true},
		{"dev", "0.8.2", true},
		{"31a5b8e", "0.8.2", true},
		{"1.2.3", "2.0.0", true},
		{"1.0", "1.0.1", true},
		{"1.0.0", "nightly", false},
	}
	for _, tt := range tests {
		t.Run(tt.current+"_vs_"+tt.latest, func(t *testing.T) {
			require.Equal(t, tt.want, IsNewer(tt.current, tt.latest))
		})
	}
}

func releaseServer(t *testing.T, tag string, binary []byte) (*github.Client, *httptest.Server) {
	t.Helper()
	mux := http.NewServeMux()
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	name := assetName(runtime.GOOS, runtime.GOARCH)
	mux.HandleFunc("/repos/acme/newsroom/releases/latest", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `{"tag_name":%q,"html_url":"https://example/r","assets":[
			{"name":"newsroom-plan9-mips","browser_download_url":"%s/dl/other","size":1},
			{"name":%q,"browser_download_url":"%s/dl/bin","size":%d}]}`,
			tag, srv.URL, name, srv.URL, len(binary))
	})
	mux.HandleFunc("/dl/bin", func(w http.ResponseWriter, r *http.Request) {
		w.Write(binary)
	})

	client := github.NewClient(srv.Client())
	base, err := url.Parse(srv.URL + "/")
	require.NoError(t, err)
	client.BaseURL = base
	return client, srv
}

func TestLatestAndInstall(t *testing.T) {
	binary := []byte("#!/bin/sh\necho new\n")
	client, srv := releaseServer(t, "v1.4.0", binary)

	c, err := NewChecker(client, "acme/newsroom")
	require.NoError(t, err)

	rel, err := c.Latest(context.Background(), "1.4.0")
	require.NoError(t, err)
	require.Nil(t, rel)

	rel, err = c.Latest(context.Background(), "1.3.9")
	require.NoError(t, err)
	require.NotNil(t, rel)
	require.Equal(t, "1.4.0", rel.Version)
	require.Equal(t, srv.URL+"/dl/bin", rel.AssetURL)

	target := filepath.Join(t.TempDir(), "newsroom")
	require.NoError(t, os.WriteFile(target, []byte("old"), 0o755))
	require.NoError(t, Install(context.Background(), rel, target, srv.Client()))

	got, err := os.ReadFile(target)
	require.NoError(t, err)
	require.Equal(t, binary, got)
}

func TestInstallRejectsShortDownload(t *testing.T) {
	client, srv := releaseServer(t, "v2.0.0", []byte("abc"))
	c, err := NewChecker(client, "acme/newsroom")
	require.NoError(t, err)
	rel, err := c.Latest(context.Background(), "dev")
	require.NoError(t, err)
	rel.AssetSize = 10

	target := filepath.Join(t.TempDir(), "newsroom")
	require.NoError(t, os.WriteFile(target, []byte("old"), 0o755))
	require.ErrorContains(t, Install(context.Background(), rel, target, srv.Client()), "size mismatch")

	got, err := os.ReadFile(target)
	require.NoError(t, err)
	require.Equal(t, []byte("old"), got)
	_, err = os.Stat(target + ".update.tmp")
	require.True(t, os.IsNotExist(err))
}

func TestNewCheckerValidatesRepo(t *testing.T) {
	_, err := NewChecker(nil, "newsroom")
	require.Error(t, err)
}
