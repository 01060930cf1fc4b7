package config

import (
	"context"
	"crypto/sha256"
	"fmt"
	"os"
	"time"

	"venuepark/internal/metrics"

	"github.com/rs/zerolog"
)

// Reload results reported to metrics.
const (
	reloadApplied = "applied"
	reloadInvalid = "invalid"
	reloadFailed  = "failed"
)

// VenuesWatcher polls venues.yaml and hands every changed, valid revision
// to apply. Changes are detected by content digest, so a rewrite that keeps
// the same mtime is still picked up and a touch without edits is not.
type VenuesWatcher struct {
	path     string
	interval time.Duration
	apply    func(ctx context.Context, cfg *VenuesConfig) error
	logger   zerolog.Logger

	digest [sha256.Size]byte
}

func NewVenuesWatcher(path string, interval time.Duration, apply func(ctx context.Context, cfg *VenuesConfig) error, logger zerolog.Logger) *VenuesWatcher {
	if path == "" {
		path = "configs/venues.yaml"
	}
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &VenuesWatcher{
		path:     path,
		interval: interval,
		apply:    apply,
		logger:   logger.With().Str("component", "venues_watcher").Str("path", path).Logger(),
	}
}

// Load reads and applies the current file. Startup treats its error as fatal.
func (w *VenuesWatcher) Load(ctx context.Context) error {
	_, err := w.poll(ctx)
	return err
}

// Run polls until ctx is done. Bad revisions are logged and skipped; the
// last applied catalog stays in effect.
func (w *VenuesWatcher) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := w.poll(ctx); err != nil {
				w.logger.Error().Err(err).Msg("venues reload skipped")
			}
		}
	}
}

// poll applies the file when its content changed since the last applied
// revision and reports whether it did.
func (w *VenuesWatcher) poll(ctx context.Context) (bool, error) {
	data, err := os.ReadFile(w.path)
	if err != nil {
		metrics.IncCatalogReload(reloadFailed)
		return false, fmt.Errorf("read venues config: %w", err)
	}
	digest := sha256.Sum256(data)
	if digest == w.digest {
		return false, nil
	}

	cfg, err := ParseVenuesConfig(data)
	if err != nil {
		metrics.IncCatalogReload(reloadInvalid)
		return false, err
	}
	if err := w.apply(ctx, cfg); err != nil {
		metrics.IncCatalogReload(reloadFailed)
		return false, fmt.Errorf("apply venues config: %w", err)
	}

	w.digest = digest
	metrics.IncCatalogReload(reloadApplied)
	w.logger.Info().
		Int("venues", len(cfg.Venues)).
		Hex("digest", digest[:8]).
		Msg("venues config applied")
	return true, nil
}
