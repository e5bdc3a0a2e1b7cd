// internal/config/normalize.go
package config

import "github.com/ztkent/lux-engine/als"

const (
	DEFAULT_BUS          = "/dev/i2c-1"
	DEFAULT_DELAY_US     = 30000000 // 30s between recorded samples
	DEFAULT_PORT         = 80
	DEFAULT_SSL_PORT     = 443
	DEFAULT_DB_PATH      = "sunlightmeter.db"
	DEFAULT_DB_RETRIES   = 3
	DEFAULT_MAX_DURATION = 8 * 60
	DEFAULT_TIMEZONE     = "America/Indiana/Indianapolis"
)

// Normalize applies post-validation normalization.
// It is allowed to mutate configuration.
// It MUST be called only after Validate().
func Normalize(cfg *Config) {
	if cfg == nil {
		return
	}

	s := &cfg.Sensor
	if s.Name == "" {
		s.Name = als.DEFAULT_DEV_NAME
	}
	if s.Bus == "" {
		s.Bus = DEFAULT_BUS
	}
	if s.DelayUS == 0 {
		s.DelayUS = DEFAULT_DELAY_US
	}
	if s.ReportN == 0 {
		s.ReportN = als.DEFAULT_REPORT_N
	}
	// the HAL reports in milli lux unless told otherwise
	if s.Scale.Int == 0 && s.Scale.Frac == 0 {
		s.Scale = als.Fixed{Frac: 1000000}
	}

	if cfg.Server.Port == 0 {
		if cfg.Server.SSL {
			cfg.Server.Port = DEFAULT_SSL_PORT
		} else {
			cfg.Server.Port = DEFAULT_PORT
		}
	}
	if cfg.Server.CertPath == "" {
		cfg.Server.CertPath = "cert.pem"
	}
	if cfg.Server.KeyPath == "" {
		cfg.Server.KeyPath = "key.pem"
	}
	if cfg.Server.Timezone == "" {
		cfg.Server.Timezone = DEFAULT_TIMEZONE
	}

	if cfg.Database.Path == "" {
		cfg.Database.Path = DEFAULT_DB_PATH
	}
	if cfg.Database.Retries == 0 {
		cfg.Database.Retries = DEFAULT_DB_RETRIES
	}
	if cfg.Job.MaxDurationMinutes == 0 {
		cfg.Job.MaxDurationMinutes = DEFAULT_MAX_DURATION
	}
}
