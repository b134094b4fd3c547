package service

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/pocketllm/mediabox/internal/async"
	"github.com/pocketllm/mediabox/internal/cache"
	"github.com/pocketllm/mediabox/internal/config"
	"github.com/pocketllm/mediabox/internal/types"
)

// orphanAge is how old an abandoned fetch temp file must be before the
// sweep removes it. Young temp files may belong to an in-flight fetch.
const orphanAge = time.Hour

// EvictionService expires aged and overflow cache entries in the background.
type EvictionService struct {
	index    *cache.Index
	config   *config.Config
	runner   *async.Runner
	statusMu sync.RWMutex
	status   *EvictionStatus
}

// EvictionStatus tracks the progress and outcome of an eviction run.
type EvictionStatus struct {
	Running        bool       `json:"running"`
	StartedAt      *time.Time `json:"started_at,omitempty"`
	EndedAt        *time.Time `json:"ended_at,omitempty"`
	Success        bool       `json:"success"`
	EntriesRemoved int        `json:"entries_removed"`
	BytesFreed     int64      `json:"bytes_freed"`
	OrphansRemoved int        `json:"orphans_removed"`
	Error          string     `json:"error,omitempty"`
}

// newEvictionService creates an EvictionService instance.
func newEvictionService(index *cache.Index, cfg *config.Config) *EvictionService {
	return &EvictionService{
		index:  index,
		config: cfg,
		runner: async.New(),
	}
}

// Close stops the eviction service and waits for a running sweep to complete.
func (s *EvictionService) Close() {
	s.runner.Close()
}

// Status returns the current state and result of the last eviction run.
func (s *EvictionService) Status() *EvictionStatus {
	s.statusMu.RLock()
	defer s.statusMu.RUnlock()

	if s.status == nil {
		return &EvictionStatus{Running: s.runner.IsRunning()}
	}

	status := *s.status
	status.Running = s.runner.IsRunning()
	return &status
}

// Start begins an async eviction sweep.
// Returns an error if a sweep is already in progress.
func (s *EvictionService) Start() error {
	if !s.runner.TryStart() {
		return types.NewConflictError("eviction", "eviction already in progress")
	}

	now := time.Now()
	s.statusMu.Lock()
	s.status = &EvictionStatus{Running: true, StartedAt: &now}
	s.statusMu.Unlock()

	s.runner.Go(func() {
		ctx, cancel := s.runner.Context(s.config.Cache.GetTimeout())
		defer cancel()
		s.run(ctx)
	})

	return nil
}

// run executes one sweep and records the outcome in the status.
func (s *EvictionService) run(ctx context.Context) {
	removed, freed, err := s.evictEntries(ctx)
	orphans := s.sweepOrphans(ctx)

	ended := time.Now()
	s.statusMu.Lock()
	defer s.statusMu.Unlock()
	s.status.EndedAt = &ended
	s.status.EntriesRemoved = removed
	s.status.BytesFreed = freed
	s.status.OrphansRemoved = orphans

	if err != nil {
		s.status.Error = err.Error()
		slog.Error("Eviction failed", "error", err, "entries_removed", removed)
		return
	}
	s.status.Success = true
	slog.Info("Eviction completed", "entries_removed", removed, "bytes_freed", freed, "orphans_removed", orphans)
}

// evictEntries removes entries past the retention window plus the oldest
// entries beyond the max entry budget.
func (s *EvictionService) evictEntries(ctx context.Context) (removed int, freed int64, err error) {
	cfg := s.config.Cache
	cutoff := time.Now().Add(-cfg.GetRetention())

	aged, err := s.index.ListOlderThan(ctx, cutoff)
	if err != nil {
		return 0, 0, err
	}
	overflow, err := s.index.ListOverflow(ctx, cfg.GetMaxEntries())
	if err != nil {
		return 0, 0, err
	}

	victims := make(map[string]cache.Entry, len(aged)+len(overflow))
	for _, e := range aged {
		victims[e.ID] = e
	}
	for _, e := range overflow {
		victims[e.ID] = e
	}

	for id, entry := range victims {
		if ctx.Err() != nil {
			return removed, freed, ctx.Err()
		}
		if err := s.index.Delete(ctx, id); err != nil {
			slog.Warn("Eviction index delete failed", "id", id, "error", err)
			continue
		}
		if insideDir(cfg.Dir, entry.Path) {
			if err := os.Remove(entry.Path); err != nil && !os.IsNotExist(err) {
				slog.Warn("Eviction file removal failed", "path", entry.Path, "error", err)
			} else {
				freed += entry.SizeBytes
			}
		}
		removed++
	}

	return removed, freed, nil
}

// sweepOrphans removes abandoned fetch temp files from the cache directory.
// Remote pass-through media stays indexed at its fetch path, so any file
// the index still tracks is live, not an orphan.
func (s *EvictionService) sweepOrphans(ctx context.Context) int {
	indexed, err := s.index.ListPaths(ctx)
	if err != nil {
		slog.Warn("Orphan sweep could not list indexed paths", "error", err)
		return 0
	}
	tracked := make(map[string]bool, len(indexed))
	for _, p := range indexed {
		tracked[p] = true
	}

	entries, err := os.ReadDir(s.config.Cache.Dir)
	if err != nil {
		slog.Warn("Orphan sweep could not read cache dir", "dir", s.config.Cache.Dir, "error", err)
		return 0
	}

	var removed int
	for _, de := range entries {
		if de.IsDir() || !strings.HasPrefix(de.Name(), "fetch-") {
			continue
		}
		if tracked[filepath.Join(s.config.Cache.Dir, de.Name())] {
			continue
		}
		info, err := de.Info()
		if err != nil || time.Since(info.ModTime()) < orphanAge {
			continue
		}
		path := filepath.Join(s.config.Cache.Dir, de.Name())
		if err := os.Remove(path); err != nil {
			slog.Warn("Orphan removal failed", "path", path, "error", err)
			continue
		}
		removed++
	}
	return removed
}
