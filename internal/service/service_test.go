package service

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/draw"
	"image/jpeg"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pocketllm/mediabox/internal/cache"
	"github.com/pocketllm/mediabox/internal/config"
	"github.com/pocketllm/mediabox/internal/types"
)

func testService(t *testing.T) (*MediaboxService, *config.Config) {
	t.Helper()

	cfg := &config.Config{}
	cfg.Cache.Dir = t.TempDir()
	cfg.Fetch.AllowPrivateNetworks = true
	cfg.Fetch.MaxAttempts = 1

	db, err := sqlx.Open("sqlite", filepath.Join(cfg.Cache.Dir, cfg.Cache.GetIndexFile()))
	require.NoError(t, err)

	svc, err := New(db, cfg)
	require.NoError(t, err)
	require.NoError(t, svc.Index().Migrate(context.Background()))

	t.Cleanup(func() {
		svc.Close()
		_ = db.Close()
	})
	return svc, cfg
}

func testJPEGFile(t *testing.T) string {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, 12, 8))
	draw.Draw(img, img.Bounds(), &image.Uniform{C: color.RGBA{R: 200, A: 255}}, image.Point{}, draw.Src)
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, nil))

	path := filepath.Join(t.TempDir(), "attachment.bin")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o600))
	return path
}

func TestMediaNormalizeGetDelete(t *testing.T) {
	svc, _ := testService(t)
	ctx := context.Background()

	entry, err := svc.Media.Normalize(ctx, &NormalizeParams{Reference: testJPEGFile(t)})
	require.NoError(t, err)
	assert.Equal(t, 12, entry.Width)
	assert.Equal(t, 8, entry.Height)
	assert.FileExists(t, entry.Path)

	got, err := svc.Media.Get(ctx, entry.ID)
	require.NoError(t, err)
	assert.Equal(t, entry.Path, got.Path)

	require.NoError(t, svc.Media.Delete(ctx, entry.ID))
	assert.NoFileExists(t, entry.Path)

	_, err = svc.Media.Get(ctx, entry.ID)
	var nfErr *types.NotFoundError
	require.ErrorAs(t, err, &nfErr)
}

func TestMediaNormalizeEmptyReference(t *testing.T) {
	svc, _ := testService(t)

	_, err := svc.Media.Normalize(context.Background(), &NormalizeParams{})
	var valErr *types.ValidationError
	require.ErrorAs(t, err, &valErr)
}

func TestMediaStats(t *testing.T) {
	svc, _ := testService(t)
	ctx := context.Background()

	entry, err := svc.Media.Normalize(ctx, &NormalizeParams{Reference: testJPEGFile(t)})
	require.NoError(t, err)

	stats, err := svc.Media.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.Entries)
	assert.Equal(t, entry.SizeBytes, stats.TotalBytes)
}

func TestInsideDir(t *testing.T) {
	assert.True(t, insideDir("/var/cache/mediabox", "/var/cache/mediabox/normalized-a.bmp"))
	assert.False(t, insideDir("/var/cache/mediabox", "/home/user/photo.bmp"))
	assert.False(t, insideDir("/var/cache/mediabox", "/var/cache/mediabox/../../etc/passwd"))
}

func TestEvictionRemovesAgedAndOverflow(t *testing.T) {
	svc, cfg := testService(t)
	cfg.Cache.RetentionDays = 1
	cfg.Cache.MaxEntries = 2
	ctx := context.Background()

	now := time.Now()
	mkEntry := func(id string, age time.Duration) *cache.Entry {
		path := filepath.Join(cfg.Cache.Dir, "normalized-"+id+".bmp")
		require.NoError(t, os.WriteFile(path, []byte("bmpdata"), 0o600))
		return &cache.Entry{
			ID: id, Reference: "ref-" + id, Path: path, Format: "bmp",
			Width: 1, Height: 1, SizeBytes: 7, CreatedAt: now.Add(-age).Unix(),
		}
	}

	require.NoError(t, svc.Index().Insert(ctx, mkEntry("aged", 72*time.Hour)))
	require.NoError(t, svc.Index().Insert(ctx, mkEntry("old", 2*time.Hour)))
	require.NoError(t, svc.Index().Insert(ctx, mkEntry("mid", time.Hour)))
	require.NoError(t, svc.Index().Insert(ctx, mkEntry("new", time.Minute)))

	require.NoError(t, svc.Eviction.Start())
	require.Eventually(t, func() bool {
		return !svc.Eviction.Status().Running
	}, 5*time.Second, 10*time.Millisecond)

	status := svc.Eviction.Status()
	assert.True(t, status.Success)
	// "aged" is past retention; "aged" and "old" are past the two-entry
	// budget. The union removes two entries.
	assert.Equal(t, 2, status.EntriesRemoved)

	stats, err := svc.Index().Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.Entries)

	_, err = svc.Index().Get(ctx, "aged")
	assert.Error(t, err)
	_, err = svc.Index().Get(ctx, "old")
	assert.Error(t, err)
	_, err = svc.Index().Get(ctx, "new")
	assert.NoError(t, err)
}

func TestEvictionConflict(t *testing.T) {
	svc, _ := testService(t)

	require.True(t, svc.Eviction.runner.TryStart())
	defer svc.Eviction.runner.Go(func() {})

	err := svc.Eviction.Start()
	var conflictErr *types.ConflictError
	require.ErrorAs(t, err, &conflictErr)
}

func TestEvictionSweepsOrphans(t *testing.T) {
	svc, cfg := testService(t)

	stale := filepath.Join(cfg.Cache.Dir, "fetch-stale")
	require.NoError(t, os.WriteFile(stale, []byte("partial"), 0o600))
	old := time.Now().Add(-2 * orphanAge)
	require.NoError(t, os.Chtimes(stale, old, old))

	fresh := filepath.Join(cfg.Cache.Dir, "fetch-fresh")
	require.NoError(t, os.WriteFile(fresh, []byte("inflight"), 0o600))

	removed := svc.Eviction.sweepOrphans(context.Background())
	assert.Equal(t, 1, removed)
	assert.NoFileExists(t, stale)
	assert.FileExists(t, fresh)
}

func TestEvictionSweepKeepsIndexedFetchFiles(t *testing.T) {
	svc, cfg := testService(t)
	ctx := context.Background()

	// A remote BMP source resolves to a fetch file and is indexed
	// pass-through at that exact path. Age alone must not orphan it.
	live := filepath.Join(cfg.Cache.Dir, "fetch-1234abcd")
	require.NoError(t, os.WriteFile(live, []byte("BMdata"), 0o600))
	old := time.Now().Add(-2 * orphanAge)
	require.NoError(t, os.Chtimes(live, old, old))

	require.NoError(t, svc.Index().Insert(ctx, &cache.Entry{
		ID: "remote-bmp", Reference: "https://cdn.example.com/logo.bmp",
		Path: live, Format: "bmp", Width: 2, Height: 2, SizeBytes: 6,
		CreatedAt: time.Now().Unix(),
	}))

	abandoned := filepath.Join(cfg.Cache.Dir, "fetch-deadbeef")
	require.NoError(t, os.WriteFile(abandoned, []byte("partial"), 0o600))
	require.NoError(t, os.Chtimes(abandoned, old, old))

	removed := svc.Eviction.sweepOrphans(ctx)
	assert.Equal(t, 1, removed)
	assert.NoFileExists(t, abandoned)

	entry, err := svc.Media.Get(ctx, "remote-bmp")
	require.NoError(t, err)
	assert.FileExists(t, entry.Path)
}
