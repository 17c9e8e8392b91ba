// Package config loads runtime configuration for the Quipflip CLI.
//
// Sources & precedence
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. Optional JSON file (see parseJson) selected via flags: -c or -config.
//  3. Command-line flags (see parseFlags), which override earlier values.
//
// Supported flags
//
//	-a string   base URL of the REST API
//	-w string   base URL of the WebSocket endpoints
//	-d string   local state database DSN
//	-i int      dashboard re-sync interval (seconds)
//	-p int      presence poll interval (seconds)
//
// # JSON schema
//
// The JSON loader uses timex.Duration for intervals, so values can be either
// strings like "60s" or integer nanoseconds:
//
//	{
//	  "api_base_url": "http://127.0.0.1:8000/api",
//	  "ws_base_url": "ws://127.0.0.1:8000/api",
//	  "database_dsn": "quipflip.db",
//	  "dashboard_interval": "60s",
//	  "presence_poll_interval": "10s"
//	}
//
// Primary API
//
//   - type Config                     — holds endpoint, storage and interval settings
//   - func LoadConfig() *Config       — builds Config by applying defaults, JSON, then flags
//   - func (*Config) LoadDefaults()   — sets sensible defaults
//
// Note: This package does not read environment variables directly; use the
// JSON file or flags to configure values.
package config
