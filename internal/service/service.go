// Package service provides business logic for mediabox.
package service

import (
	"github.com/jmoiron/sqlx"

	"github.com/pocketllm/mediabox/internal/cache"
	"github.com/pocketllm/mediabox/internal/config"
	"github.com/pocketllm/mediabox/internal/locator"
	"github.com/pocketllm/mediabox/internal/normalizer"
)

// MediaboxService is the main service that provides access to all sub-services.
type MediaboxService struct {
	Media    *MediaService
	Eviction *EvictionService

	index  *cache.Index
	config *config.Config
}

// New creates a MediaboxService with all sub-services wired to the given
// index database and configuration.
func New(db *sqlx.DB, cfg *config.Config) (*MediaboxService, error) {
	index := cache.NewIndex(db)

	loc, err := locator.New(cfg)
	if err != nil {
		return nil, err
	}
	norm := normalizer.New(loc, cfg.Cache.Dir, cfg.Image.GetMaxDimension())

	return &MediaboxService{
		Media:    newMediaService(index, norm, cfg),
		Eviction: newEvictionService(index, cfg),
		index:    index,
		config:   cfg,
	}, nil
}

// Config returns the service configuration.
func (s *MediaboxService) Config() *config.Config {
	return s.config
}

// Index returns the cache index.
func (s *MediaboxService) Index() *cache.Index {
	return s.index
}

// Close gracefully shuts down all services.
func (s *MediaboxService) Close() {
	s.Eviction.Close()
}
