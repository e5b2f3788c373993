package config

import (
	"flag"
	"os"

	"github.com/offpay/chainsync/internal/flagx"
)

// parseFlags populates wallet Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-a string   sync server base URL (e.g., "http://127.0.0.1:8080")
//	-d string   local SQLite database path
//	-u string   wallet user ID
//
// The function first filters os.Args to only the flags it recognizes using
// flagx.FilterArgs, avoiding collisions with other components.
func parseFlags(config *Config) {
	args := flagx.FilterArgs(os.Args[1:], []string{"-a", "-d", "-u"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.ServerEndpointAddr, "a", config.ServerEndpointAddr, "sync server base URL")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "local database path")
	fs.StringVar(&config.UserID, "u", config.UserID, "wallet user ID")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}
}
