package service

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/pocketllm/mediabox/internal/cache"
	"github.com/pocketllm/mediabox/internal/config"
	"github.com/pocketllm/mediabox/internal/normalizer"
	"github.com/pocketllm/mediabox/internal/types"
)

// MediaService handles normalization requests and access to cached media.
type MediaService struct {
	index      *cache.Index
	normalizer *normalizer.Normalizer
	config     *config.Config
}

// newMediaService creates a MediaService with the provided index and pipeline.
func newMediaService(index *cache.Index, norm *normalizer.Normalizer, cfg *config.Config) *MediaService {
	return &MediaService{
		index:      index,
		normalizer: norm,
		config:     cfg,
	}
}

// NormalizeParams contains the parameters for a normalization request.
type NormalizeParams struct {
	Reference string
	MaxSize   int
}

// Normalize runs the pipeline for a media reference and records the result
// in the index.
func (s *MediaService) Normalize(ctx context.Context, params *NormalizeParams) (*cache.Entry, error) {
	if params.Reference == "" {
		return nil, types.NewValidationError("reference", "reference is required")
	}

	res, err := s.normalizer.Normalize(ctx, params.Reference, normalizer.Options{MaxSize: params.MaxSize})
	if err != nil {
		return nil, err
	}

	entry := &cache.Entry{
		ID:        res.ID,
		Reference: res.Reference,
		Path:      res.Path,
		Format:    res.Format,
		Width:     res.Width,
		Height:    res.Height,
		SizeBytes: res.SizeBytes,
		CreatedAt: res.CreatedAt,
	}

	if err := s.index.Insert(ctx, entry); err != nil {
		// The file is already on disk; drop it again unless the entry
		// points at a pass-through source outside the cache.
		s.removeManagedFile(entry.Path)
		return nil, err
	}

	return entry, nil
}

// Get retrieves an index entry by ID.
func (s *MediaService) Get(ctx context.Context, id string) (*cache.Entry, error) {
	return s.index.Get(ctx, id)
}

// Delete removes an entry from the index and its file from the cache
// directory. Pass-through files living outside the cache are left in place.
func (s *MediaService) Delete(ctx context.Context, id string) error {
	entry, err := s.index.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.index.Delete(ctx, id); err != nil {
		return err
	}

	s.removeManagedFile(entry.Path)
	slog.Info("Media deleted", "id", id, "path", entry.Path)
	return nil
}

// Stats returns index statistics for the cache API.
func (s *MediaService) Stats(ctx context.Context) (*cache.Stats, error) {
	return s.index.Stats(ctx)
}

// removeManagedFile deletes path if it lives inside the cache directory.
func (s *MediaService) removeManagedFile(path string) {
	if !insideDir(s.config.Cache.Dir, path) {
		return
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		slog.Warn("Cache file removal failed", "path", path, "error", err)
	}
}

// insideDir reports whether path is contained in dir.
func insideDir(dir, path string) bool {
	rel, err := filepath.Rel(dir, path)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
