package config

import (
	"encoding/json"
	"os"
	"time"

	"github.com/darkroomapp/darkroom/internal/flagx"
	"github.com/darkroomapp/darkroom/internal/timex"
)

// JsonConfig is a DTO used exclusively for JSON unmarshalling. Omitted
// fields keep their current value.
type JsonConfig struct {
	EndpointAddr   *string         `json:"endpoint_addr"`
	DatabaseDSN    *string         `json:"database_dsn"`
	S3BaseEndpoint *string         `json:"s3_base_endpoint"`
	S3Region       *string         `json:"s3_region"`
	S3Bucket       *string         `json:"s3_bucket"`
	S3RootUser     *string         `json:"s3_root_user"`
	S3RootPassword *string         `json:"s3_root_password"`
	PresignTTL     *timex.Duration `json:"presign_ttl"`
}

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

	if jc.EndpointAddr != nil {
		cfg.EndpointAddr = *jc.EndpointAddr
	}
	if jc.DatabaseDSN != nil {
		cfg.DatabaseDSN = *jc.DatabaseDSN
	}
	if jc.S3BaseEndpoint != nil {
		cfg.S3BaseEndpoint = *jc.S3BaseEndpoint
	}
	if jc.S3Region != nil {
		cfg.S3Region = *jc.S3Region
	}
	if jc.S3Bucket != nil {
		cfg.S3Bucket = *jc.S3Bucket
	}
	if jc.S3RootUser != nil {
		cfg.S3RootUser = *jc.S3RootUser
	}
	if jc.S3RootPassword != nil {
		cfg.S3RootPassword = *jc.S3RootPassword
	}
	if jc.PresignTTL != nil {
		cfg.PresignTTL = time.Duration(jc.PresignTTL.Duration)
	}
}
