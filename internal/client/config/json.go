package config

import (
	"encoding/json"
	"os"
	"time"

	"github.com/quipflip/quipflip-go/internal/flagx"
	"github.com/quipflip/quipflip-go/internal/timex"
)

// JsonConfig is a DTO used exclusively for JSON unmarshalling.
// It relies on timex.Duration so JSON can specify intervals either as
// strings like "60s" or as integer nanoseconds. After parsing, values
// are copied into the runtime Config (which uses time.Duration).
type JsonConfig struct {
	APIBaseURL           string         `json:"api_base_url"`
	WSBaseURL            string         `json:"ws_base_url"`
	DatabaseDSN          string         `json:"database_dsn"`
	RequestTimeout       timex.Duration `json:"request_timeout"`
	DashboardInterval    timex.Duration `json:"dashboard_interval"`
	PresencePollInterval timex.Duration `json:"presence_poll_interval"`
}

// parseJson overlays Config with values loaded from a JSON file.
//
// Lookup order for the JSON file path:
//  1. Command-line flags (-c or -config) via flagx.JsonConfigFlags().
//  2. If empty, no JSON is loaded and the function returns.
//
// Behavior:
//   - Reads and unmarshals the JSON into JsonConfig.
//   - Copies known non-zero fields into the provided Config.
//   - Panics on read or unmarshal errors (caller should recover if desired).
//
// Intended usage is: defaults -> parseJson -> parseFlags, where later stages
// override earlier ones.
func parseJson(cfg *Config) {
	// Resolve file path from flags.
	jsonConfigFile := flagx.JsonConfigFlags()
	if jsonConfigFile == "" {
		return
	}

	var jc JsonConfig

	data, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}
	if err := json.Unmarshal(data, &jc); err != nil {
		panic(err)
	}

	if jc.APIBaseURL != "" {
		cfg.APIBaseURL = jc.APIBaseURL
	}
	if jc.WSBaseURL != "" {
		cfg.WSBaseURL = jc.WSBaseURL
	}
	if jc.DatabaseDSN != "" {
		cfg.DatabaseDSN = jc.DatabaseDSN
	}
	if jc.RequestTimeout.Duration != 0 {
		cfg.RequestTimeout = time.Duration(jc.RequestTimeout.Duration)
	}
	if jc.DashboardInterval.Duration != 0 {
		cfg.DashboardInterval = time.Duration(jc.DashboardInterval.Duration)
	}
	if jc.PresencePollInterval.Duration != 0 {
		cfg.PresencePollInterval = time.Duration(jc.PresencePollInterval.Duration)
	}
}
