package config

import (
	"flag"
	"os"
	"time"

	"github.com/quipflip/quipflip-go/internal/flagx"
)

// parseFlags populates selected Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-a string   base URL of the REST API (default from Config)
//	-w string   base URL of the WebSocket endpoints (default from Config)
//	-d string   local state database DSN (default from Config)
//	-i int      dashboard re-sync interval in seconds (default from Config)
//	-p int      presence poll interval in seconds (default from Config)
//
// Note: The function filters os.Args to only include the flags it knows about,
// using flagx.FilterArgs, to avoid interference with other components.
func parseFlags(cfg *Config) {
	// Filter args to include only those handled here.
	args := flagx.FilterArgs(os.Args[1:], []string{"-a", "-w", "-d", "-i", "-p"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&cfg.APIBaseURL, "a", cfg.APIBaseURL, "base URL of the REST API")
	fs.StringVar(&cfg.WSBaseURL, "w", cfg.WSBaseURL, "base URL of the WebSocket endpoints")
	fs.StringVar(&cfg.DatabaseDSN, "d", cfg.DatabaseDSN, "local state database DSN")
	dashboardInterval := fs.Int("i", int(cfg.DashboardInterval.Seconds()), "dashboard re-sync interval (in seconds)")
	presenceInterval := fs.Int("p", int(cfg.PresencePollInterval.Seconds()), "presence poll interval (in seconds)")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	cfg.DashboardInterval = time.Duration(*dashboardInterval) * time.Second
	cfg.PresencePollInterval = time.Duration(*presenceInterval) * time.Second
}
