package locator

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pocketllm/mediabox/internal/config"
	"github.com/pocketllm/mediabox/internal/types"
)

func testLocator(t *testing.T, mutate func(*config.Config)) *Locator {
	t.Helper()

	cfg := &config.Config{}
	cfg.Cache.Dir = t.TempDir()
	cfg.Fetch.AllowPrivateNetworks = true // httptest servers bind loopback
	cfg.Fetch.MaxAttempts = 1
	if mutate != nil {
		mutate(cfg)
	}

	l, err := New(cfg)
	require.NoError(t, err)
	return l
}

func TestResolveLocalPath(t *testing.T) {
	l := testLocator(t, nil)

	path := filepath.Join(t.TempDir(), "picture.jpg")
	require.NoError(t, os.WriteFile(path, []byte("jpeg bytes"), 0o600))

	resolved, err := l.Resolve(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, path, resolved)
}

func TestResolveRelativePathFails(t *testing.T) {
	l := testLocator(t, nil)

	_, err := l.Resolve(context.Background(), "pictures/cat.png")
	var resErr *types.ResolutionError
	require.ErrorAs(t, err, &resErr)
}

func TestResolveMissingFileFails(t *testing.T) {
	l := testLocator(t, nil)

	_, err := l.Resolve(context.Background(), filepath.Join(t.TempDir(), "nope.png"))
	var resErr *types.ResolutionError
	require.ErrorAs(t, err, &resErr)
}

func TestResolveEmptyReferenceFails(t *testing.T) {
	l := testLocator(t, nil)

	_, err := l.Resolve(context.Background(), "  ")
	var resErr *types.ResolutionError
	require.ErrorAs(t, err, &resErr)
}

func TestResolveUnsupportedSchemeFails(t *testing.T) {
	l := testLocator(t, nil)

	_, err := l.Resolve(context.Background(), "gopher://example.com/image")
	var resErr *types.ResolutionError
	require.ErrorAs(t, err, &resErr)
}

func TestResolveRemoteURL(t *testing.T) {
	payload := []byte("remote image content")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/jpeg")
		_, _ = w.Write(payload)
	}))
	defer srv.Close()

	l := testLocator(t, nil)

	path, err := l.Resolve(context.Background(), srv.URL+"/cat.jpg")
	require.NoError(t, err)
	assert.True(t, filepath.IsAbs(path))
	assert.Contains(t, filepath.Base(path), "fetch-")

	got, err := os.ReadFile(path) //nolint:gosec // test-owned path
	require.NoError(t, err)
	assert.Equal(t, payload, got)
}

func TestResolveRemoteURLDistinctFiles(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(r.URL.Path))
	}))
	defer srv.Close()

	l := testLocator(t, nil)

	first, err := l.Resolve(context.Background(), srv.URL+"/a")
	require.NoError(t, err)
	second, err := l.Resolve(context.Background(), srv.URL+"/b")
	require.NoError(t, err)
	assert.NotEqual(t, first, second)
}

func TestResolveRemoteSizeLimit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(make([]byte, 2048))
	}))
	defer srv.Close()

	l := testLocator(t, func(cfg *config.Config) {
		cfg.Fetch.MaxDownloadSizeBytes = 1024
	})

	_, err := l.Resolve(context.Background(), srv.URL)
	var resErr *types.ResolutionError
	require.ErrorAs(t, err, &resErr)
}

func TestResolveRemoteRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_, _ = w.Write([]byte("ok after retry"))
	}))
	defer srv.Close()

	l := testLocator(t, func(cfg *config.Config) {
		cfg.Fetch.MaxAttempts = 3
	})

	path, err := l.Resolve(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.EqualValues(t, 2, calls.Load())

	got, err := os.ReadFile(path) //nolint:gosec // test-owned path
	require.NoError(t, err)
	assert.Equal(t, []byte("ok after retry"), got)
}

func TestResolveRemoteDoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	l := testLocator(t, func(cfg *config.Config) {
		cfg.Fetch.MaxAttempts = 3
	})

	_, err := l.Resolve(context.Background(), srv.URL)
	require.Error(t, err)
	assert.EqualValues(t, 1, calls.Load())
}

func TestFetchBackoffGrowsAndCaps(t *testing.T) {
	b := newFetchBackoff()

	prev := time.Duration(0)
	for range 8 {
		delay := b.Next()
		assert.GreaterOrEqual(t, delay, prev/2) // jitter aside, never shrinks
		assert.Less(t, delay, maxRetryWait*2)
		prev = delay
	}
	// After enough doublings the base delay pins at the cap.
	assert.GreaterOrEqual(t, b.Next(), maxRetryWait)
}
