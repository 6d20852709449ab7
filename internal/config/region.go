package config

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
)

// DefaultConfigPath is the path to the canonical region defaults file.
// This is the single source of truth for all default region values.
const DefaultConfigPath = "config/region.defaults.json"

// Variant names accepted in the "variant" field.
const (
	Variant2D = "2d"
	Variant3D = "3d"
)

// Mapper names accepted in the "mapper" field.
const (
	MapperLocal  = "local"
	MapperEngine = "engine"
)

// RegionConfig is the JSON description of a design region and the engine
// session it runs against. Lengths are micrometres.
type RegionConfig struct {
	// Region geometry
	Variant *string     `json:"variant,omitempty"` // "2d" or "3d"
	Name    *string     `json:"name,omitempty"`
	Corner1 *[2]float64 `json:"corner1,omitempty"` // [x, y]
	Corner2 *[2]float64 `json:"corner2,omitempty"`
	ZStart  *float64    `json:"z_start,omitempty"`
	ZEnd    *float64    `json:"z_end,omitempty"`

	// Mesh pitches
	XMesh *float64 `json:"x_mesh,omitempty"`
	YMesh *float64 `json:"y_mesh,omitempty"`
	ZMesh *float64 `json:"z_mesh,omitempty"` // default depends on variant

	// Material bounds (refractive index)
	LowerIndex  *float64 `json:"lower_index,omitempty"`
	HigherIndex *float64 `json:"higher_index,omitempty"`

	// Filter and projection
	FilterRadius *float64 `json:"filter_radius,omitempty"`
	Eta          *float64 `json:"eta,omitempty"`
	Beta         *float64 `json:"beta,omitempty"`
	Mapper       *string  `json:"mapper,omitempty"` // "local" or "engine"

	// In-process engine session (memengine)
	EngineFrequencies     *int     `json:"engine_frequencies,omitempty"`
	EngineBackgroundIndex *float64 `json:"engine_background_index,omitempty"`
}

// EmptyRegionConfig returns a RegionConfig with all fields set to nil.
// Use LoadRegionConfig to load actual values from the defaults file.
func EmptyRegionConfig() *RegionConfig {
	return &RegionConfig{}
}

// LoadRegionConfig loads a RegionConfig from a JSON file.
// The file is validated to ensure it has a .json extension and is under the max file size.
// Fields omitted from the JSON file fall back to the Get* defaults, so
// partial configs are safe.
func LoadRegionConfig(path string) (*RegionConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	// Check file size for safety (max 1MB)
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

	cfg := EmptyRegionConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// MustLoadDefaultConfig loads the canonical region defaults from DefaultConfigPath.
// It searches for the file in the current directory and common parent directories.
// Panics if the file cannot be loaded, intended for test setup.
func MustLoadDefaultConfig() *RegionConfig {
	candidates := []string{
		DefaultConfigPath,
		"../../" + DefaultConfigPath,       // from internal/config/
		"../../../" + DefaultConfigPath,    // from internal/engine/memengine/
		"../../../../" + DefaultConfigPath, // deeper packages
	}
	for _, path := range candidates {
		if cfg, err := LoadRegionConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Validate checks that the configuration values are valid.
func (c *RegionConfig) Validate() error {
	if c.Variant != nil {
		switch strings.ToLower(*c.Variant) {
		case Variant2D, Variant3D:
		default:
			return fmt.Errorf("variant must be %q or %q, got %q", Variant2D, Variant3D, *c.Variant)
		}
	}
	if c.Name != nil && strings.TrimSpace(*c.Name) == "" {
		return fmt.Errorf("name must not be empty")
	}
	if c.Mapper != nil {
		switch strings.ToLower(*c.Mapper) {
		case MapperLocal, MapperEngine:
		default:
			return fmt.Errorf("mapper must be %q or %q, got %q", MapperLocal, MapperEngine, *c.Mapper)
		}
	}

	for key, v := range map[string]*float64{"x_mesh": c.XMesh, "y_mesh": c.YMesh, "z_mesh": c.ZMesh} {
		if v != nil && !(*v > 0) {
			return fmt.Errorf("%s must be positive, got %f", key, *v)
		}
	}
	for key, v := range map[string]*float64{"lower_index": c.LowerIndex, "higher_index": c.HigherIndex} {
		if v != nil && !(*v > 0) {
			return fmt.Errorf("%s must be positive, got %f", key, *v)
		}
	}
	if c.GetLowerIndex() > c.GetHigherIndex() {
		return fmt.Errorf("lower_index %f exceeds higher_index %f", c.GetLowerIndex(), c.GetHigherIndex())
	}

	if c.FilterRadius != nil && *c.FilterRadius < 0 {
		return fmt.Errorf("filter_radius must be non-negative, got %f", *c.FilterRadius)
	}
	if c.Eta != nil && (*c.Eta < 0 || *c.Eta > 1) {
		return fmt.Errorf("eta must be between 0 and 1, got %f", *c.Eta)
	}
	if c.Beta != nil && (*c.Beta < 0 || math.IsInf(*c.Beta, 0)) {
		return fmt.Errorf("beta must be non-negative and finite, got %f", *c.Beta)
	}

	if c.EngineFrequencies != nil && *c.EngineFrequencies < 1 {
		return fmt.Errorf("engine_frequencies must be at least 1, got %d", *c.EngineFrequencies)
	}
	if c.EngineBackgroundIndex != nil && !(*c.EngineBackgroundIndex > 0) {
		return fmt.Errorf("engine_background_index must be positive, got %f", *c.EngineBackgroundIndex)
	}
	return nil
}

// GetVariant returns the normalized variant or the default ("2d").
func (c *RegionConfig) GetVariant() string {
	if c.Variant == nil {
		return Variant2D
	}
	return strings.ToLower(*c.Variant)
}

// GetName returns the engine object prefix or the default.
func (c *RegionConfig) GetName() string {
	if c.Name == nil {
		return "ToOptRegion"
	}
	return *c.Name
}

// GetCorner1 returns the first lateral corner or the default (-1, -1).
func (c *RegionConfig) GetCorner1() (x, y float64) {
	if c.Corner1 == nil {
		return -1, -1
	}
	return c.Corner1[0], c.Corner1[1]
}

// GetCorner2 returns the second lateral corner or the default (1, 1).
func (c *RegionConfig) GetCorner2() (x, y float64) {
	if c.Corner2 == nil {
		return 1, 1
	}
	return c.Corner2[0], c.Corner2[1]
}

// GetZStart returns z_start or the default.
func (c *RegionConfig) GetZStart() float64 {
	if c.ZStart == nil {
		return -0.11
	}
	return *c.ZStart
}

// GetZEnd returns z_end or the default.
func (c *RegionConfig) GetZEnd() float64 {
	if c.ZEnd == nil {
		return 0.11
	}
	return *c.ZEnd
}

// GetXMesh returns x_mesh or the default.
func (c *RegionConfig) GetXMesh() float64 {
	if c.XMesh == nil {
		return 0.02
	}
	return *c.XMesh
}

// GetYMesh returns y_mesh or the default.
func (c *RegionConfig) GetYMesh() float64 {
	if c.YMesh == nil {
		return 0.02
	}
	return *c.YMesh
}

// GetZMesh returns z_mesh or the variant default: 0.0071 for 2d, 0.02 for 3d.
func (c *RegionConfig) GetZMesh() float64 {
	if c.ZMesh != nil {
		return *c.ZMesh
	}
	if c.GetVariant() == Variant3D {
		return 0.02
	}
	return 0.0071
}

// GetLowerIndex returns lower_index or the default (SiO2).
func (c *RegionConfig) GetLowerIndex() float64 {
	if c.LowerIndex == nil {
		return 1.444
	}
	return *c.LowerIndex
}

// GetHigherIndex returns higher_index or the default (Si).
func (c *RegionConfig) GetHigherIndex() float64 {
	if c.HigherIndex == nil {
		return 3.478
	}
	return *c.HigherIndex
}

// GetFilterRadius returns filter_radius or the default.
func (c *RegionConfig) GetFilterRadius() float64 {
	if c.FilterRadius == nil {
		return 0.5
	}
	return *c.FilterRadius
}

// GetEta returns eta or the default.
func (c *RegionConfig) GetEta() float64 {
	if c.Eta == nil {
		return 0.5
	}
	return *c.Eta
}

// GetBeta returns beta or the default.
func (c *RegionConfig) GetBeta() float64 {
	if c.Beta == nil {
		return 1
	}
	return *c.Beta
}

// GetMapper returns the normalized mapper name or the default ("local").
func (c *RegionConfig) GetMapper() string {
	if c.Mapper == nil {
		return MapperLocal
	}
	return strings.ToLower(*c.Mapper)
}

// GetEngineFrequencies returns engine_frequencies or the default.
func (c *RegionConfig) GetEngineFrequencies() int {
	if c.EngineFrequencies == nil {
		return 1
	}
	return *c.EngineFrequencies
}

// GetEngineBackgroundIndex returns engine_background_index or the default (SiO2 cladding).
func (c *RegionConfig) GetEngineBackgroundIndex() float64 {
	if c.EngineBackgroundIndex == nil {
		return 1.444
	}
	return *c.EngineBackgroundIndex
}
