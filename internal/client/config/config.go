package config

import "time"

// Config holds runtime settings for the Quipflip client.
//
// Fields:
//   - APIBaseURL: base URL of the platform REST API.
//   - WSBaseURL: base URL of the WebSocket endpoints.
//   - DatabaseDSN: path/DSN of the local state DB.
//   - RequestTimeout: per-request HTTP timeout.
//   - DashboardInterval: background dashboard re-sync cadence.
//   - PresencePollInterval: REST presence poll cadence while the
//     notification socket is down.
type Config struct {
	APIBaseURL           string
	WSBaseURL            string
	DatabaseDSN          string
	RequestTimeout       time.Duration
	DashboardInterval    time.Duration
	PresencePollInterval time.Duration
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.APIBaseURL = "http://127.0.0.1:8000/api"
	c.WSBaseURL = "ws://127.0.0.1:8000/api"
	c.DatabaseDSN = "quipflip.db"
	c.RequestTimeout = 15 * time.Second
	c.DashboardInterval = 60 * time.Second
	c.PresencePollInterval = 10 * time.Second
}

// LoadConfig constructs a Config, applies defaults, then overlays values
// from JSON (if present) and command-line flags (if present). Later sources
// take precedence over earlier ones.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseJson(cfg)
	parseFlags(cfg)
	return cfg
}
