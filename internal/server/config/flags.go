package config

import (
	"flag"
	"os"
	"time"

	"github.com/avendale/dataroom/internal/flagx"
)

// parseFlags populates selected server Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-a string   HTTP bind address (e.g., ":8080")
//	-d string   PostgreSQL DSN
//	-s string   JWT HMAC secret key
//	-t int      access token validity, minutes
//	-l int      rate limit, requests per minute per user
//	-f int      prefill record TTL, minutes
//	-m int      max upload size, bytes
//	-n string   NDA version label
//	-x int      presigned URL validity, minutes
//	-o int      upstream call timeout, seconds
//	-r string   Redis address (empty selects the in-process store)
//	-u string   S3 root user
//	-p string   S3 root password
//	-b string   S3 bucket name
//	-g string   S3 region
//	-e string   S3 base endpoint (e.g., "http://127.0.0.1:9000/")
//
// Notes:
//   - The function first filters os.Args to only the flags it recognizes using
//     flagx.FilterArgs, avoiding collisions with other components.
//   - Duration flags are accepted as integers in minutes or seconds and then
//     converted to time.Duration values.
func parseFlags(config *Config) {
	// Filter args to include only the flags handled here.
	args := flagx.FilterArgs(os.Args[1:], []string{"-a", "-d", "-s", "-t", "-l", "-f", "-m", "-n", "-x", "-o", "-r", "-u", "-p", "-b", "-g", "-e"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.ListenAddr, "a", config.ListenAddr, "address and port to run server")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.SecretKey, "s", config.SecretKey, "secret key")

	accessTokenValidityDuration := fs.Int("t", int(config.AccessTokenValidityDuration.Minutes()), "access_token_validity_duration (in minutes)")
	fs.IntVar(&config.RateLimitPerMinute, "l", config.RateLimitPerMinute, "rate_limit_per_minute")
	prefillTTL := fs.Int("f", int(config.PrefillTTL.Minutes()), "prefill_ttl (in minutes)")
	fs.Int64Var(&config.MaxUploadBytes, "m", config.MaxUploadBytes, "max_upload_bytes")
	fs.StringVar(&config.NDAVersion, "n", config.NDAVersion, "NDA version label")
	presignValidityDuration := fs.Int("x", int(config.PresignValidityDuration.Minutes()), "presign_validity_duration (in minutes)")
	upstreamTimeout := fs.Int("o", int(config.UpstreamTimeout.Seconds()), "upstream_timeout (in seconds)")
	fs.StringVar(&config.RedisAddr, "r", config.RedisAddr, "Redis address")

	fs.StringVar(&config.S3RootUser, "u", config.S3RootUser, "S3 root user")
	fs.StringVar(&config.S3RootPassword, "p", config.S3RootPassword, "S3 root password")
	fs.StringVar(&config.S3Bucket, "b", config.S3Bucket, "S3 root bucket")
	fs.StringVar(&config.S3Region, "g", config.S3Region, "S3 root region")
	fs.StringVar(&config.S3BaseEndpoint, "e", config.S3BaseEndpoint, "S3 base endpoint")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	config.AccessTokenValidityDuration = time.Duration(*accessTokenValidityDuration) * time.Minute
	config.PrefillTTL = time.Duration(*prefillTTL) * time.Minute
	config.PresignValidityDuration = time.Duration(*presignValidityDuration) * time.Minute
	config.UpstreamTimeout = time.Duration(*upstreamTimeout) * time.Second
}
