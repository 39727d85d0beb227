// Package config loads runtime settings for the Darkroom client.
package config

import "time"

// Config holds runtime settings for the client.
//
// Sizes are bytes, TTLs are time.Durations. DataDir is the root under which
// the queue file, the uploads directory and the disk cache live.
type Config struct {
	ServerBaseURL string
	DataDir       string
	OwnerLabel    string

	UploadWorkers int
	RetryLimit    int

	PageSize          int
	PrefetchThreshold int
	URLTTL            time.Duration

	MemCacheItems  int
	MemCacheBytes  int64
	DiskCacheBytes int64

	MaxImageEdge int
	JPEGQuality  int
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.ServerBaseURL = "http://127.0.0.1:8080"
	c.DataDir = "darkroom-data"
	c.OwnerLabel = "anonymous"
	c.UploadWorkers = 3
	c.RetryLimit = 3
	c.PageSize = 10
	c.PrefetchThreshold = 3
	c.URLTTL = 15 * time.Minute
	c.MemCacheItems = 100
	c.MemCacheBytes = 32 << 20
	c.DiskCacheBytes = 256 << 20
	c.MaxImageEdge = 1600
	c.JPEGQuality = 82
}

// LoadConfig constructs a Config, applies defaults, then overlays values
// from JSON (if present) and command-line flags. Later sources win.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseJson(cfg)
	parseFlags(cfg)
	return cfg
}
