package config

import (
	"encoding/json"
	"os"
	"time"

	"github.com/avendale/dataroom/internal/flagx"
	"github.com/avendale/dataroom/internal/timex"
)

// JsonConfig defines a configuration structure tailored for JSON unmarshalling.
// It uses timex.Duration for interval fields, which allows parsing both
// string values such as "30m" and integer nanoseconds.
//
// This struct is an intermediate DTO used only for reading JSON configuration
// files. After unmarshalling, its fields are copied into the runtime Config
// struct which uses time.Duration.
type JsonConfig struct {
	ListenAddr                  string         `json:"listen_addr"`
	DatabaseDSN                 string         `json:"database_dsn"`
	SecretKey                   string         `json:"secret_key"`
	AccessTokenValidityDuration timex.Duration `json:"access_token_validity_duration"`
	RateLimitPerMinute          int            `json:"rate_limit_per_minute"`
	PrefillTTL                  timex.Duration `json:"prefill_ttl"`
	MaxUploadBytes              int64          `json:"max_upload_bytes"`
	NDAVersion                  string         `json:"nda_version"`
	PresignValidityDuration     timex.Duration `json:"presign_validity_duration"`
	UpstreamTimeout             timex.Duration `json:"upstream_timeout"`
	RedisAddr                   string         `json:"redis_addr"`
	S3RootUser                  string         `json:"s3_root_user"`
	S3RootPassword              string         `json:"s3_root_password"`
	S3Bucket                    string         `json:"s3_bucket"`
	S3Region                    string         `json:"s3_region"`
	S3BaseEndpoint              string         `json:"s3_base_endpoint"`
}

// parseJson loads configuration values from a JSON file into the provided
// Config instance.
//
// The file path comes from the -c or -config command-line flags; when
// neither is set, no JSON file is loaded. A config file is expected to be
// complete: every field is copied into the target Config. If the file cannot
// be read or contains invalid JSON, the function panics.
func parseJson(config *Config) {

	// try flags
	jsonConfigFile := flagx.JsonConfigFlags()

	// nothing to load
	if jsonConfigFile == "" {
		return
	}

	c := &JsonConfig{}

	file, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}

	err = json.Unmarshal(file, c)
	if err != nil {
		panic(err)
	}

	config.ListenAddr = c.ListenAddr
	config.DatabaseDSN = c.DatabaseDSN
	config.SecretKey = c.SecretKey
	config.AccessTokenValidityDuration = time.Duration(c.AccessTokenValidityDuration.Duration)
	config.RateLimitPerMinute = c.RateLimitPerMinute
	config.PrefillTTL = time.Duration(c.PrefillTTL.Duration)
	config.MaxUploadBytes = c.MaxUploadBytes
	config.NDAVersion = c.NDAVersion
	config.PresignValidityDuration = time.Duration(c.PresignValidityDuration.Duration)
	config.UpstreamTimeout = time.Duration(c.UpstreamTimeout.Duration)
	config.RedisAddr = c.RedisAddr
	config.S3RootUser = c.S3RootUser
	config.S3RootPassword = c.S3RootPassword
	config.S3Bucket = c.S3Bucket
	config.S3Region = c.S3Region
	config.S3BaseEndpoint = c.S3BaseEndpoint
}
