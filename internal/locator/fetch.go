package locator

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/doyensec/safeurl"
	"github.com/google/uuid"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/pocketllm/mediabox/internal/config"
)

// fetcher downloads remote media over HTTP(S) with SSRF protection, size
// limits, and bounded retries.
type fetcher struct {
	safeClient  *safeurl.WrappedClient
	plainClient *http.Client
	oauthClient *http.Client
	oauthHosts  map[string]bool
	maxBytes    int64
	maxAttempts int
}

func newFetcher(cfg *config.FetchConfig) *fetcher {
	f := &fetcher{
		maxBytes:    cfg.GetMaxDownloadBytes(),
		maxAttempts: cfg.GetMaxAttempts(),
		oauthHosts:  make(map[string]bool),
	}

	if cfg.AllowPrivateNetworks {
		// Self-hosted setups fetch from RFC1918 hosts; SSRF filtering
		// would reject every one of them.
		f.plainClient = &http.Client{Timeout: cfg.GetTimeout()}
		slog.Warn("Private network fetches allowed, SSRF protection disabled")
	} else {
		f.safeClient = safeurl.Client(safeurl.GetConfigBuilder().Build())
	}

	if cfg.OAuth.Enabled {
		conf := &clientcredentials.Config{
			TokenURL:     cfg.OAuth.TokenURL,
			ClientID:     cfg.OAuth.ClientID,
			ClientSecret: cfg.OAuth.ClientSecret,
			Scopes:       cfg.OAuth.Scopes,
		}

		// Bound the token exchange and authorized fetches with the same
		// timeout as plain fetches.
		baseClient := &http.Client{Timeout: cfg.GetTimeout()}
		ctx := context.WithValue(context.Background(), oauth2.HTTPClient, baseClient)
		f.oauthClient = conf.Client(ctx)

		for _, host := range cfg.OAuth.Hosts {
			f.oauthHosts[strings.ToLower(host)] = true
		}
		slog.Info("Authorized media fetch enabled", "hosts", cfg.OAuth.Hosts)
	}

	return f
}

// download fetches rawURL into w, retrying transient failures with
// exponential backoff.
func (f *fetcher) download(ctx context.Context, rawURL string, w io.Writer) error {
	backoff := newFetchBackoff()

	var lastErr error
	for attempt := 1; attempt <= f.maxAttempts; attempt++ {
		if attempt > 1 {
			if err := resetWriter(w); err != nil {
				return err
			}
		}

		retryable, err := f.attempt(ctx, rawURL, w)
		if err == nil {
			return nil
		}
		lastErr = err

		if !retryable || attempt == f.maxAttempts {
			break
		}

		wait := backoff.Next()
		slog.Debug("Fetch attempt failed, retrying", "url", rawURL, "attempt", attempt, "wait", wait, "error", err)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}

	return lastErr
}

// attempt performs one GET. retryable reports whether the failure is worth
// retrying (transport errors and 5xx responses are, 4xx are not).
func (f *fetcher) attempt(ctx context.Context, rawURL string, w io.Writer) (retryable bool, err error) {
	resp, err := f.get(ctx, rawURL)
	if err != nil {
		return true, fmt.Errorf("download failed: %w", err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			slog.Debug("Failed to close response body", "error", err)
		}
	}()

	if resp.StatusCode != http.StatusOK {
		return resp.StatusCode >= 500, fmt.Errorf("download failed: HTTP %d", resp.StatusCode)
	}

	// The pipeline classifies content from bytes, never from headers, so a
	// surprising content type is only worth a diagnostic.
	if ct := resp.Header.Get("Content-Type"); ct != "" && !strings.HasPrefix(ct, "image/") {
		slog.Warn("Remote media has non-image content type", "url", rawURL, "content_type", ct)
	}

	n, err := io.Copy(w, io.LimitReader(resp.Body, f.maxBytes+1))
	if err != nil {
		return true, fmt.Errorf("error reading: %w", err)
	}
	if n > f.maxBytes {
		return false, fmt.Errorf("content exceeds download size limit (%d bytes)", f.maxBytes)
	}

	return false, nil
}

// get issues the request with the client appropriate for the host:
// OAuth-authorized hosts use the client-credentials client, everything else
// goes through the SSRF-safe client (or the plain client in private-network
// mode).
func (f *fetcher) get(ctx context.Context, rawURL string) (*http.Response, error) {
	if f.oauthClient != nil {
		if u, err := url.Parse(rawURL); err == nil && f.oauthHosts[strings.ToLower(u.Hostname())] {
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
			if err != nil {
				return nil, err
			}
			return f.oauthClient.Do(req)
		}
	}

	if f.plainClient != nil {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
		if err != nil {
			return nil, err
		}
		return f.plainClient.Do(req)
	}

	return f.safeClient.Get(rawURL)
}

// resetWriter discards bytes a failed attempt may have written, so a retry
// starts from a clean file instead of appending.
func resetWriter(w io.Writer) error {
	file, ok := w.(*os.File)
	if !ok {
		return nil
	}
	if err := file.Truncate(0); err != nil {
		return err
	}
	_, err := file.Seek(0, io.SeekStart)
	return err
}

// newID returns a unique token for cache filenames. Concurrent invocations
// must never target the same path.
func newID() string {
	return uuid.NewString()
}
