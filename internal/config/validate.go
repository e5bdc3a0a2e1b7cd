// internal/config/validate.go
package config

import (
	"fmt"
	"time"

	"github.com/ztkent/lux-engine/tsl2591"
)

// Validate checks configuration correctness.
// It performs declarative validation only.
// It MUST NOT mutate configuration.
func Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config is nil")
	}
	s := cfg.Sensor

	if _, err := tsl2591.ParseGain(s.Gain); err != nil {
		return fmt.Errorf("sensor: %w", err)
	}
	if _, err := tsl2591.ParseIntegrationTime(s.IntegrationMs); err != nil {
		return fmt.Errorf("sensor: %w", err)
	}
	if s.DelayUS != 0 && s.DelayUSMin != 0 && s.DelayUS < s.DelayUSMin {
		return fmt.Errorf("sensor: delay_us %d is below delay_us_min %d", s.DelayUS, s.DelayUSMin)
	}
	if s.Scale.Frac < 0 || s.Scale.Int < 0 {
		return fmt.Errorf("sensor: scale must not be negative")
	}
	if s.Scale.Frac >= 1000000000 || s.Offset.Frac >= 1000000000 {
		return fmt.Errorf("sensor: fval must be below 1000000000")
	}

	// index limits are not checked here, broken limits fall back to static mode

	if cfg.Server.Port < 0 || cfg.Server.Port > 65535 {
		return fmt.Errorf("server: port %d out of range", cfg.Server.Port)
	}
	if cfg.Server.Timezone != "" {
		if _, err := time.LoadLocation(cfg.Server.Timezone); err != nil {
			return fmt.Errorf("server: timezone: %w", err)
		}
	}
	if cfg.Database.Retries < 0 {
		return fmt.Errorf("database: retries must not be negative")
	}
	if cfg.Job.MaxDurationMinutes < 0 {
		return fmt.Errorf("job: max_duration_minutes must not be negative")
	}
	return nil
}
