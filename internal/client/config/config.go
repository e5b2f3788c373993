// Package config handles configuration for the wallet agent: defaults, JSON
// overlay and command-line flags.
package config

// Config holds runtime settings for the wallet agent.
//
// Fields:
//   - ServerEndpointAddr: base URL of the sync server REST endpoint.
//   - DatabaseDSN: path/DSN of the local SQLite store.
//   - UserID: wallet owner identity used as the sender of created records.
type Config struct {
	ServerEndpointAddr string
	DatabaseDSN        string
	UserID             string
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.ServerEndpointAddr = "http://127.0.0.1:8080"
	c.DatabaseDSN = "wallet.db"
	c.UserID = ""
}

// LoadConfig constructs a Config, applies defaults, then overlays values from
// JSON (if present) and command-line flags (if present). Later sources take
// precedence over earlier ones.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseJson(cfg)
	parseFlags(cfg)
	return cfg
}
