package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// DefaultConfigPath is the path to the canonical tuning defaults file.
// This is the single source of truth for all default tuning values.
const DefaultConfigPath = "config/tuning.defaults.json"

// Fallback values returned by the Get* accessors when a field is unset.
const (
	DefaultCutOff               = 13.5
	DefaultBuffer               = 1.5
	DefaultMinimumCellExtent    = 2
	DefaultMinimumPoints        = 500
	DefaultCutOffCellSizeFactor = 0.5
	DefaultMinimumCellSize      = 3.0
	DefaultSortIndices          = false
	DefaultUseGridByCell        = true
	DefaultCheckForInverses     = true
)

// TuningConfig represents the root configuration for neighbour-list tuning.
// Every field is optional; the Get* accessors supply defaults for fields
// omitted from the JSON so partial files are safe.
type TuningConfig struct {
	// List construction
	CutOff               *float64 `json:"cut_off,omitempty"`
	CutOffCellSizeFactor *float64 `json:"cut_off_cell_size_factor,omitempty"`
	MinimumCellExtent    *int     `json:"minimum_cell_extent,omitempty"`
	MinimumCellSize      *float64 `json:"minimum_cell_size,omitempty"`
	MinimumPoints        *int     `json:"minimum_points,omitempty"`
	SortIndices          *bool    `json:"sort_indices,omitempty"`
	UseGridByCell        *bool    `json:"use_grid_by_cell,omitempty"`

	// Verlet skin
	Buffer *float64 `json:"buffer,omitempty"`

	// Periodic images
	CheckForInverses *bool `json:"check_for_inverses,omitempty"`
}

// EmptyTuningConfig returns a TuningConfig with all fields set to nil.
// Use LoadTuningConfig to load actual values from the defaults file.
func EmptyTuningConfig() *TuningConfig {
	return &TuningConfig{}
}

// LoadTuningConfig loads a TuningConfig from a JSON file.
// The file is validated to ensure it has a .json extension and is under the max file size.
func LoadTuningConfig(path string) (*TuningConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return ParseTuningConfig(data)
}

// ParseTuningConfig decodes and validates a JSON tuning document.
func ParseTuningConfig(data []byte) (*TuningConfig, error) {
	cfg := EmptyTuningConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// MustLoadDefaultConfig loads the canonical tuning defaults from DefaultConfigPath.
// It searches for the file in the current directory and common parent directories.
// Panics if the file cannot be loaded, intended for test setup.
func MustLoadDefaultConfig() *TuningConfig {
	candidates := []string{
		DefaultConfigPath,
		"../" + DefaultConfigPath,          // from cmd/nblist/
		"../../" + DefaultConfigPath,       // from internal/config/
		"../../../" + DefaultConfigPath,    // deeper packages
		"../../../../" + DefaultConfigPath, // even deeper
	}
	for _, path := range candidates {
		if cfg, err := LoadTuningConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Validate checks that the configuration values are valid.
func (c *TuningConfig) Validate() error {
	if c.CutOff != nil && *c.CutOff <= 0 {
		return fmt.Errorf("cut_off must be positive, got %f", *c.CutOff)
	}
	if c.Buffer != nil && *c.Buffer < 0 {
		return fmt.Errorf("buffer must be non-negative, got %f", *c.Buffer)
	}
	if c.CutOffCellSizeFactor != nil && *c.CutOffCellSizeFactor <= 0 {
		return fmt.Errorf("cut_off_cell_size_factor must be positive, got %f", *c.CutOffCellSizeFactor)
	}
	if c.MinimumCellSize != nil && *c.MinimumCellSize < 0 {
		return fmt.Errorf("minimum_cell_size must be non-negative, got %f", *c.MinimumCellSize)
	}
	if c.MinimumCellExtent != nil && *c.MinimumCellExtent < 1 {
		return fmt.Errorf("minimum_cell_extent must be at least 1, got %d", *c.MinimumCellExtent)
	}
	if c.MinimumPoints != nil && *c.MinimumPoints < 0 {
		return fmt.Errorf("minimum_points must be non-negative, got %d", *c.MinimumPoints)
	}
	return nil
}

// GetCutOff returns the cut_off value or the default.
func (c *TuningConfig) GetCutOff() float64 {
	if c.CutOff == nil {
		return DefaultCutOff
	}
	return *c.CutOff
}

// GetBuffer returns the buffer value or the default.
func (c *TuningConfig) GetBuffer() float64 {
	if c.Buffer == nil {
		return DefaultBuffer
	}
	return *c.Buffer
}

// GetCutOffCellSizeFactor returns the cut_off_cell_size_factor value or the default.
func (c *TuningConfig) GetCutOffCellSizeFactor() float64 {
	if c.CutOffCellSizeFactor == nil {
		return DefaultCutOffCellSizeFactor
	}
	return *c.CutOffCellSizeFactor
}

// GetMinimumCellExtent returns the minimum_cell_extent value or the default.
func (c *TuningConfig) GetMinimumCellExtent() int {
	if c.MinimumCellExtent == nil {
		return DefaultMinimumCellExtent
	}
	return *c.MinimumCellExtent
}

// GetMinimumCellSize returns the minimum_cell_size value or the default.
func (c *TuningConfig) GetMinimumCellSize() float64 {
	if c.MinimumCellSize == nil {
		return DefaultMinimumCellSize
	}
	return *c.MinimumCellSize
}

// GetMinimumPoints returns the minimum_points value or the default.
func (c *TuningConfig) GetMinimumPoints() int {
	if c.MinimumPoints == nil {
		return DefaultMinimumPoints
	}
	return *c.MinimumPoints
}

// GetSortIndices returns the sort_indices value or the default.
func (c *TuningConfig) GetSortIndices() bool {
	if c.SortIndices == nil {
		return DefaultSortIndices
	}
	return *c.SortIndices
}

// GetUseGridByCell returns the use_grid_by_cell value or the default.
func (c *TuningConfig) GetUseGridByCell() bool {
	if c.UseGridByCell == nil {
		return DefaultUseGridByCell
	}
	return *c.UseGridByCell
}

// GetCheckForInverses returns the check_for_inverses value or the default.
func (c *TuningConfig) GetCheckForInverses() bool {
	if c.CheckForInverses == nil {
		return DefaultCheckForInverses
	}
	return *c.CheckForInverses
}
