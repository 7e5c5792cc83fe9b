package config

import (
	"encoding/json"
	"os"

	"github.com/dmitrijs2005/memestore/internal/flagx"
	"github.com/dmitrijs2005/memestore/internal/timex"
)

// JsonConfig is the on-disk shape of the optional JSON config file. Pointer
// fields let a file override only the keys it mentions; durations accept
// "15m"-style strings or integer nanoseconds via timex.Duration.
type JsonConfig struct {
	EndpointAddrHTTP             *string         `json:"endpoint_addr_http"`
	EndpointAddrHealth           *string         `json:"endpoint_addr_health"`
	DatabaseDSN                  *string         `json:"database_dsn"`
	SecretKey                    *string         `json:"secret_key"`
	AccessTokenValidityDuration  *timex.Duration `json:"access_token_validity_duration"`
	RefreshTokenValidityDuration *timex.Duration `json:"refresh_token_validity_duration"`
	MinPasswordLength            *int            `json:"min_password_length"`
	S3RootUser                   *string         `json:"s3_root_user"`
	S3RootPassword               *string         `json:"s3_root_password"`
	S3Bucket                     *string         `json:"s3_bucket"`
	S3Region                     *string         `json:"s3_region"`
	S3BaseEndpoint               *string         `json:"s3_base_endpoint"`
	PresignValidityDuration      *timex.Duration `json:"presign_validity_duration"`
	MaxUploadBytes               *int64          `json:"max_upload_bytes"`
	AuthRateLimit                *float64        `json:"auth_rate_limit"`
	AuthRateBurst                *int            `json:"auth_rate_burst"`
	TrustProxyHeaders            *bool           `json:"trust_proxy_headers"`
}

func set[T any](dst *T, src *T) {
	if src != nil {
		*dst = *src
	}
}

// parseJson loads the file named by -c/-config, if any, over config.
// An unreadable file or invalid JSON panics.
func parseJson(config *Config) {
	jsonConfigFile := flagx.ConfigFileFlag()
	if jsonConfigFile == "" {
		return
	}

	file, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}

	c := &JsonConfig{}
	if err := json.Unmarshal(file, c); err != nil {
		panic(err)
	}

	set(&config.EndpointAddrHTTP, c.EndpointAddrHTTP)
	set(&config.EndpointAddrHealth, c.EndpointAddrHealth)
	set(&config.DatabaseDSN, c.DatabaseDSN)
	set(&config.SecretKey, c.SecretKey)
	if c.AccessTokenValidityDuration != nil {
		config.AccessTokenValidityDuration = c.AccessTokenValidityDuration.Duration
	}
	if c.RefreshTokenValidityDuration != nil {
		config.RefreshTokenValidityDuration = c.RefreshTokenValidityDuration.Duration
	}
	set(&config.MinPasswordLength, c.MinPasswordLength)
	set(&config.S3RootUser, c.S3RootUser)
	set(&config.S3RootPassword, c.S3RootPassword)
	set(&config.S3Bucket, c.S3Bucket)
	set(&config.S3Region, c.S3Region)
	set(&config.S3BaseEndpoint, c.S3BaseEndpoint)
	if c.PresignValidityDuration != nil {
		config.PresignValidityDuration = c.PresignValidityDuration.Duration
	}
	set(&config.MaxUploadBytes, c.MaxUploadBytes)
	set(&config.AuthRateLimit, c.AuthRateLimit)
	set(&config.AuthRateBurst, c.AuthRateBurst)
	set(&config.TrustProxyHeaders, c.TrustProxyHeaders)
}
