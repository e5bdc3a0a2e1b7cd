// internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/ztkent/lux-engine/als"
	"gopkg.in/yaml.v3"
)

const DEFAULT_PATH = "sunlightmeter.yaml"

type Config struct {
	Sensor   SensorConfig   `yaml:"sensor"`
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Job      JobConfig      `yaml:"job"`
}

// ---- SENSOR ----

type SensorConfig struct {
	// Name prefixes the device properties, "light" when empty
	Name string `yaml:"name"`
	Bus  string `yaml:"bus"`

	// Static mode, used when dynamic resolution is off
	Gain          string `yaml:"gain"`
	IntegrationMs int    `yaml:"integration_ms"`

	DelayUS    uint32 `yaml:"delay_us"`
	DelayUSMin uint32 `yaml:"delay_us_min"`
	ReportN    uint32 `yaml:"report_n"`
	ThreshLo   uint32 `yaml:"thresh_lo"`
	ThreshHi   uint32 `yaml:"thresh_hi"`

	Scale       als.Fixed         `yaml:"scale"`
	Offset      als.Fixed         `yaml:"offset"`
	Calibration CalibrationConfig `yaml:"calibration"`

	// Device description, holds <name>_dynamic_resolution_index_limit_low/high
	Properties map[string]uint32 `yaml:"properties"`
}

type CalibrationConfig struct {
	UncalLo int32 `yaml:"uncalibrated_lo"`
	UncalHi int32 `yaml:"uncalibrated_hi"`
	CalLo   int32 `yaml:"calibrated_lo"`
	CalHi   int32 `yaml:"calibrated_hi"`
}

// ---- SERVER ----

type ServerConfig struct {
	Port     int    `yaml:"port"`
	SSL      bool   `yaml:"ssl"`
	CertPath string `yaml:"cert_path"`
	KeyPath  string `yaml:"key_path"`
	// Location used to read dates from the dashboard
	Timezone string `yaml:"timezone"`
}

// ---- DATABASE ----

type DatabaseConfig struct {
	Path    string `yaml:"path"`
	Retries int    `yaml:"retries"`
}

// ---- JOB ----

type JobConfig struct {
	MaxDurationMinutes int `yaml:"max_duration_minutes"`
}

// Load reads a YAML config. A missing file yields the defaults.
// Environment overrides are applied last.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("read config %s: %w", path, err)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	ApplyEnv(cfg)
	return cfg, nil
}

// ApplyEnv lets SSL=true force https, as on the Pi image
func ApplyEnv(cfg *Config) {
	if os.Getenv("SSL") == "true" {
		cfg.Server.SSL = true
	}
}

// ALSConfig builds the engine configuration of the sensor
func (s SensorConfig) ALSConfig() *als.Config {
	return &als.Config{
		Scale:      s.Scale,
		Offset:     s.Offset,
		UncalLo:    s.Calibration.UncalLo,
		UncalHi:    s.Calibration.UncalHi,
		CalLo:      s.Calibration.CalLo,
		CalHi:      s.Calibration.CalHi,
		ThreshLo:   s.ThreshLo,
		ThreshHi:   s.ThreshHi,
		ReportN:    s.ReportN,
		DelayUSMin: s.DelayUSMin,
	}
}

// IndexLimits reads the dynamic resolution limits from the device properties.
// An error means dynamic resolution must stay off.
func (s SensorConfig) IndexLimits() (als.IndexLimits, error) {
	return als.ParseIndexLimits(s.Properties, s.Name)
}
