// Package config aggregates every tunable knob of the application and loads
// overrides from JSON.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ayusman/mudra/internal/calibration"
	"github.com/ayusman/mudra/internal/capture"
	"github.com/ayusman/mudra/internal/detector"
	"github.com/ayusman/mudra/internal/processor"
	"github.com/ayusman/mudra/internal/tracker"
)

// SettingsKey is the store settings key holding a persisted JSON override.
const SettingsKey = "config"

const maxFileSize = 1 * 1024 * 1024 // 1MB

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Addr      string `json:"addr"`
	StaticDir string `json:"static_dir,omitempty"`
}

// Config is the root configuration. Its JSON schema is also the schema of
// the persisted settings override.
type Config struct {
	// DataDir holds the database. Empty means ~/.mudra.
	DataDir string `json:"data_dir,omitempty"`

	Camera      capture.Config     `json:"camera"`
	Tracker     tracker.Config     `json:"tracker"`
	Detector    detector.Config    `json:"detector"`
	Processor   processor.Config   `json:"processor"`
	Calibration calibration.Config `json:"calibration"`
	Server      ServerConfig       `json:"server"`
}

// Default returns the documented defaults.
func Default() Config {
	return Config{
		Camera:      capture.DefaultConfig(),
		Tracker:     tracker.DefaultConfig(),
		Detector:    detector.DefaultConfig(),
		Processor:   processor.DefaultConfig(),
		Calibration: calibration.DefaultConfig(),
		Server:      ServerConfig{Addr: ":8080"},
	}
}

// Load reads a JSON file and overlays it on Default. The file must have a
// .json extension and be under 1MB. Fields omitted from the file keep their
// default values, so partial configs are safe.
func Load(path string) (Config, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return Config{}, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	info, err := os.Stat(cleanPath)
	if err != nil {
		return Config{}, fmt.Errorf("failed to stat config file: %w", err)
	}
	if info.Size() > maxFileSize {
		return Config{}, fmt.Errorf("config file too large: %d bytes (max %d)", info.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config file: %w", err)
	}

	return Default().Overlay(data)
}

// Overlay returns a copy of c with the JSON document data applied on top,
// then validates the result.
func (c Config) Overlay(data []byte) (Config, error) {
	if err := json.Unmarshal(data, &c); err != nil {
		return Config{}, fmt.Errorf("failed to parse config JSON: %w", err)
	}
	if err := c.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid configuration: %w", err)
	}
	return c, nil
}

// Validate checks every section and reports all problems at once.
func (c Config) Validate() error {
	var errs []error
	if err := c.Camera.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("camera: %w", err))
	}
	if err := c.Tracker.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("tracker: %w", err))
	}
	if err := c.Detector.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("detector: %w", err))
	}
	if err := c.Processor.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("processor: %w", err))
	}
	if err := c.Calibration.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("calibration: %w", err))
	}
	if c.Server.Addr == "" {
		errs = append(errs, errors.New("server: addr must be set"))
	}
	return errors.Join(errs...)
}
