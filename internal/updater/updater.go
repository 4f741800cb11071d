// Package updater checks GitHub releases for a newer newsroom binary and
// installs it in place.
package updater

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/go-github/v66/github"
)

// Release is a newer published binary for this platform.
type Release struct {
	Tag       string
	Version   string
	URL       string
	Notes     string
	Published time.Time
	AssetName string
	AssetURL  string
	AssetSize int64
}

var installMu sync.Mutex

type Checker struct {
	client      *github.Client
	owner, name string
}

// NewChecker looks for releases of repo ("owner/name").
func NewChecker(client *github.Client, repo string) (*Checker, error) {
	owner, name, ok := strings.Cut(repo, "/")
	if !ok || owner == "" || name == "" {
		return nil, fmt.Errorf("release repository %q must be owner/name", repo)
	}
	if client == nil {
		client = github.NewClient(&http.Client{Timeout: 15 * time.Second})
	}
	return &Checker{client: client, owner: owner, name: name}, nil
}

// Latest returns the newest release if it is newer than current and carries
// a binary for this platform, or nil when already up to date.
func (c *Checker) Latest(ctx context.Context, current string) (*Release, error) {
	rel, _, err := c.client.Repositories.GetLatestRelease(ctx, c.owner, c.name)
	if err != nil {
		return nil, fmt.Errorf("latest release: %w", err)
	}

	version := strings.TrimPrefix(rel.GetTagName(), "v")
	if !IsNewer(current, version) {
		return nil, nil
	}

	want := assetName(runtime.GOOS, runtime.GOARCH)
	for _, a := range rel.Assets {
		if a.GetName() != want {
			continue
		}
		return &Release{
			Tag:       rel.GetTagName(),
			Version:   version,
			URL:       rel.GetHTMLURL(),
			Notes:     rel.GetBody(),
			Published: rel.GetPublishedAt().Time,
			AssetName: a.GetName(),
			AssetURL:  a.GetBrowserDownloadURL(),
			AssetSize: int64(a.GetSize()),
		}, nil
	}
	return nil, fmt.Errorf("no binary %s in release %s", want, rel.GetTagName())
}

// Install downloads rel and atomically replaces the binary at execPath.
func Install(ctx context.Context, rel *Release, execPath string, client *http.Client) error {
	if !installMu.TryLock() {
		return errors.New("an update is already in progress")
	}
	defer installMu.Unlock()

	if client == nil {
		client = &http.Client{Timeout: 5 * time.Minute}
	}

	tmpPath := execPath + ".update.tmp"
	os.Remove(tmpPath)

	slog.Info("Downloading update", "url", rel.AssetURL, "target", tmpPath)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rel.AssetURL, nil)
	if err != nil {
		return fmt.Errorf("create download request: %w", err)
	}
	req.Header.Set("User-Agent", "newsroom-updater")

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("download failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("download returned status %d", resp.StatusCode)
	}

	f, err := os.OpenFile(tmpPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o755)
	if err != nil {
		return fmt.Errorf("create temp file in %s: %w", filepath.Dir(execPath), err)
	}
	written, copyErr := io.Copy(f, resp.Body)
	closeErr := f.Close()
	if err := errors.Join(copyErr, closeErr); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("write download: %w", err)
	}
	if rel.AssetSize > 0 && written != rel.AssetSize {
		os.Remove(tmpPath)
		return fmt.Errorf("download size mismatch: expected %d bytes, got %d", rel.AssetSize, written)
	}

	if err := os.Rename(tmpPath, execPath); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("replace binary: %w", err)
	}
	slog.Info("Binary replaced", "path", execPath, "version", rel.Version)
	return nil
}

// Executable resolves the running binary through symlinks.
func Executable() (string, error) {
	p, err := os.Executable()
	if err != nil {
		return "", err
	}
	return filepath.EvalSymlinks(p)
}

func assetName(goos, goarch string) string {
	name := fmt.Sprintf("newsroom-%s-%s", goos, goarch)
	if goos == "windows" {
		name += ".exe"
	}
	return name
}

// IsNewer reports whether latest is newer than current. Development builds
// and git-describe strings that are not plain versions always update.
func IsNewer(current, latest string) bool {
	current = strings.TrimPrefix(current, "v")
	latest = strings.TrimPrefix(latest, "v")

	// "0.8.2-3-gabcdef1-dirty" compares as 0.8.2.
	if idx := strings.Index(current, "-"); idx > 0 {
		current = current[:idx]
	}

	cur, ok := parseVersion(current)
	if !ok {
		return true
	}
	lat, ok := parseVersion(latest)
	if !ok {
		return false
	}
	for i := range cur {
		if lat[i] != cur[i] {
			return lat[i] > cur[i]
		}
	}
	return false
}

func parseVersion(s string) ([3]int, bool) {
	var v [3]int
	parts := strings.Split(s, ".")
	if len(parts) < 2 || len(parts) > 3 {
		return v, false
	}
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil {
			return v, false
		}
		v[i] = n
	}
	return v, true
}
