package config

import (
	"encoding/json"
	"os"
	"time"

	"github.com/darkroomapp/darkroom/internal/flagx"
	"github.com/darkroomapp/darkroom/internal/timex"
)

// JsonConfig is a DTO used exclusively for JSON unmarshalling. It relies on
// timex.Duration so JSON can specify the URL TTL either as a string like
// "15m" or as integer nanoseconds. Omitted fields keep their current value.
type JsonConfig struct {
	ServerBaseURL     *string         `json:"server_base_url"`
	DataDir           *string         `json:"data_dir"`
	OwnerLabel        *string         `json:"owner_label"`
	UploadWorkers     *int            `json:"upload_workers"`
	RetryLimit        *int            `json:"retry_limit"`
	PageSize          *int            `json:"page_size"`
	PrefetchThreshold *int            `json:"prefetch_threshold"`
	URLTTL            *timex.Duration `json:"url_ttl"`
	MemCacheItems     *int            `json:"mem_cache_items"`
	MemCacheBytes     *int64          `json:"mem_cache_bytes"`
	DiskCacheBytes    *int64          `json:"disk_cache_bytes"`
	MaxImageEdge      *int            `json:"max_image_edge"`
	JPEGQuality       *int            `json:"jpeg_quality"`
}

// parseJson overlays cfg with values from the JSON file given via -c/-config.
// No flag, no JSON. Read or unmarshal errors panic; callers treat a broken
// explicit config file as unrecoverable.
func parseJson(cfg *Config) {
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

	if jc.ServerBaseURL != nil {
		cfg.ServerBaseURL = *jc.ServerBaseURL
	}
	if jc.DataDir != nil {
		cfg.DataDir = *jc.DataDir
	}
	if jc.OwnerLabel != nil {
		cfg.OwnerLabel = *jc.OwnerLabel
	}
	if jc.UploadWorkers != nil {
		cfg.UploadWorkers = *jc.UploadWorkers
	}
	if jc.RetryLimit != nil {
		cfg.RetryLimit = *jc.RetryLimit
	}
	if jc.PageSize != nil {
		cfg.PageSize = *jc.PageSize
	}
	if jc.PrefetchThreshold != nil {
		cfg.PrefetchThreshold = *jc.PrefetchThreshold
	}
	if jc.URLTTL != nil {
		cfg.URLTTL = time.Duration(jc.URLTTL.Duration)
	}
	if jc.MemCacheItems != nil {
		cfg.MemCacheItems = *jc.MemCacheItems
	}
	if jc.MemCacheBytes != nil {
		cfg.MemCacheBytes = *jc.MemCacheBytes
	}
	if jc.DiskCacheBytes != nil {
		cfg.DiskCacheBytes = *jc.DiskCacheBytes
	}
	if jc.MaxImageEdge != nil {
		cfg.MaxImageEdge = *jc.MaxImageEdge
	}
	if jc.JPEGQuality != nil {
		cfg.JPEGQuality = *jc.JPEGQuality
	}
}
