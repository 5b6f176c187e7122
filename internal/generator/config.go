// Package generator builds pair lists of particles within a cut-off
// distance, by brute force or by a cell grid.
//
// Responsibilities: choosing the search method, screening pairs against
// the cut-off (optionally widened by per-particle radii), honouring
// selections and exclusions, and applying the minimum image convention
// on periodic axes.
package generator

import (
	"fmt"

	"github.com/banshee-data/nblist/internal/config"
	"github.com/banshee-data/nblist/internal/status"
)

// MaximumCellsPerPoint bounds grid size relative to the number of points.
// Sparse systems above it are searched by brute force.
const MaximumCellsPerPoint = 16

// Config holds the pair search parameters.
type Config struct {
	CutOff               float64 // Pair cut-off distance (default: 13.5)
	CutOffCellSizeFactor float64 // Cell size as a fraction of the cut-off (default: 0.5)
	MinimumCellExtent    int     // Cells needed along some axis before gridding (default: 2)
	MinimumCellSize      float64 // Smallest cell size (default: 3.0)
	MinimumPoints        int     // Points needed before gridding (default: 500)
	SortIndices          bool    // Canonicalise the result (default: false)
	UseGridByCell        bool    // Sweep the grid cell by cell instead of point by point (default: true)
}

// DefaultConfig returns a Config loaded from the canonical tuning defaults
// file. Panics if the file cannot be found.
func DefaultConfig() *Config {
	return ConfigFromTuning(config.MustLoadDefaultConfig())
}

// ConfigFromTuning builds a Config from a loaded TuningConfig.
func ConfigFromTuning(cfg *config.TuningConfig) *Config {
	return &Config{
		CutOff:               cfg.GetCutOff(),
		CutOffCellSizeFactor: cfg.GetCutOffCellSizeFactor(),
		MinimumCellExtent:    cfg.GetMinimumCellExtent(),
		MinimumCellSize:      cfg.GetMinimumCellSize(),
		MinimumPoints:        cfg.GetMinimumPoints(),
		SortIndices:          cfg.GetSortIndices(),
		UseGridByCell:        cfg.GetUseGridByCell(),
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if !(c.CutOff > 0) {
		return fmt.Errorf("cut_off must be positive, got %g: %w", c.CutOff, status.ErrInvalidArgument)
	}
	if !(c.CutOffCellSizeFactor > 0) {
		return fmt.Errorf("cut_off_cell_size_factor must be positive, got %g: %w", c.CutOffCellSizeFactor, status.ErrInvalidArgument)
	}
	if c.MinimumCellExtent < 1 {
		return fmt.Errorf("minimum_cell_extent must be at least 1, got %d: %w", c.MinimumCellExtent, status.ErrInvalidArgument)
	}
	if c.MinimumCellSize < 0 {
		return fmt.Errorf("minimum_cell_size must be non-negative, got %g: %w", c.MinimumCellSize, status.ErrInvalidArgument)
	}
	if c.MinimumPoints < 0 {
		return fmt.Errorf("minimum_points must be non-negative, got %d: %w", c.MinimumPoints, status.ErrInvalidArgument)
	}
	return nil
}

// CellSize returns the grid cell size for a search cut-off.
func (c *Config) CellSize(cutoff float64) float64 {
	return max(cutoff*c.CutOffCellSizeFactor, c.MinimumCellSize)
}
