// Package locator resolves media references (remote URLs, absolute local
// paths, provider URIs) to local absolute file paths, fetching remote
// content into the cache directory when needed.
package locator

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/pocketllm/mediabox/internal/config"
	"github.com/pocketllm/mediabox/internal/types"
)

// Provider fetches the content behind a non-HTTP URI scheme (e.g. s3://).
type Provider interface {
	Fetch(ctx context.Context, uri *url.URL, w io.Writer) error
}

// Locator turns arbitrary media references into local absolute file paths.
type Locator struct {
	cfg       *config.FetchConfig
	cacheDir  string
	fetcher   *fetcher
	providers map[string]Provider
}

// New creates a Locator writing fetched content into cacheDir.
func New(cfg *config.Config) (*Locator, error) {
	if err := os.MkdirAll(cfg.Cache.Dir, 0o750); err != nil {
		return nil, types.NewConfigError("cache.dir", err.Error())
	}

	l := &Locator{
		cfg:       &cfg.Fetch,
		cacheDir:  cfg.Cache.Dir,
		fetcher:   newFetcher(&cfg.Fetch),
		providers: make(map[string]Provider),
	}

	if cfg.S3.Enabled {
		l.providers["s3"] = newS3Provider(&cfg.S3)
	}

	return l, nil
}

// RegisterProvider adds a resolver for a URI scheme. Later registrations
// replace earlier ones.
func (l *Locator) RegisterProvider(scheme string, p Provider) {
	l.providers[strings.ToLower(scheme)] = p
}

// Resolve turns a reference into a local absolute file path. Remote URLs
// and provider URIs are fetched into a uniquely named cache file; local
// paths are returned as-is after an existence check. All failures are
// reported as *types.ResolutionError.
func (l *Locator) Resolve(ctx context.Context, reference string) (string, error) {
	if strings.TrimSpace(reference) == "" {
		return "", types.NewResolutionError(reference, fmt.Errorf("empty reference"))
	}

	u, err := url.Parse(reference)
	if err != nil || u.Scheme == "" {
		return l.resolveLocal(reference)
	}

	switch strings.ToLower(u.Scheme) {
	case "http", "https":
		path, err := l.fetchRemote(ctx, reference)
		if err != nil {
			return "", types.NewResolutionError(reference, err)
		}
		return path, nil
	default:
		if p, ok := l.providers[strings.ToLower(u.Scheme)]; ok {
			path, err := l.fetchProvider(ctx, p, u)
			if err != nil {
				return "", types.NewResolutionError(reference, err)
			}
			return path, nil
		}
		// No scheme handler; a bare path like /sdcard/img also parses
		// with an empty scheme, so anything left here is unsupported.
		return "", types.NewResolutionError(reference, fmt.Errorf("unsupported scheme %q", u.Scheme))
	}
}

// resolveLocal validates that a reference is an absolute path to an
// existing regular file.
func (l *Locator) resolveLocal(reference string) (string, error) {
	if !filepath.IsAbs(reference) {
		return "", types.NewResolutionError(reference, fmt.Errorf("local path must be absolute"))
	}

	info, err := os.Stat(reference)
	if err != nil {
		return "", types.NewResolutionError(reference, err)
	}
	if !info.Mode().IsRegular() {
		return "", types.NewResolutionError(reference, fmt.Errorf("not a regular file"))
	}

	return reference, nil
}

// fetchRemote downloads an HTTP(S) URL into a cache file and returns its path.
func (l *Locator) fetchRemote(ctx context.Context, rawURL string) (string, error) {
	file, path, err := l.newFetchFile()
	if err != nil {
		return "", err
	}

	if err := l.fetcher.download(ctx, rawURL, file); err != nil {
		closeAndRemove(file, path)
		return "", err
	}
	if err := file.Close(); err != nil {
		_ = os.Remove(path)
		return "", err
	}

	return path, nil
}

// fetchProvider streams a provider URI into a cache file and returns its path.
func (l *Locator) fetchProvider(ctx context.Context, p Provider, u *url.URL) (string, error) {
	file, path, err := l.newFetchFile()
	if err != nil {
		return "", err
	}

	limited := &limitedWriter{w: file, remaining: l.cfg.GetMaxDownloadBytes()}
	if err := p.Fetch(ctx, u, limited); err != nil {
		closeAndRemove(file, path)
		return "", err
	}
	if err := file.Close(); err != nil {
		_ = os.Remove(path)
		return "", err
	}

	return path, nil
}

// newFetchFile creates a uniquely named cache file for fetched content.
func (l *Locator) newFetchFile() (*os.File, string, error) {
	path := filepath.Join(l.cacheDir, "fetch-"+newID())
	file, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600) //nolint:gosec // path is cache dir + generated name
	if err != nil {
		return nil, "", err
	}
	return file, path, nil
}

func closeAndRemove(file *os.File, path string) {
	_ = file.Close()
	_ = os.Remove(path)
}

// limitedWriter fails once more than remaining bytes have been written.
type limitedWriter struct {
	w         io.Writer
	remaining int64
}

func (lw *limitedWriter) Write(p []byte) (int, error) {
	if int64(len(p)) > lw.remaining {
		return 0, fmt.Errorf("content exceeds download size limit")
	}
	n, err := lw.w.Write(p)
	lw.remaining -= int64(n)
	return n, err
}
