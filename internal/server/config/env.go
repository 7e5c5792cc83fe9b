package config

import (
	"errors"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/dmitrijs2005/memestore/internal/flagx"
	"github.com/joho/godotenv"
)

const envPrefix = "MEMESTORE_"

// loadDotenv seeds the process environment from the file named by -env, or
// from ./.env when present. Variables already set in the environment win.
func loadDotenv() {
	path := flagx.EnvFileFlag()
	explicit := path != ""
	if !explicit {
		path = ".env"
	}

	if err := godotenv.Load(path); err != nil {
		if !explicit && errors.Is(err, fs.ErrNotExist) {
			return
		}
		panic(err)
	}
}

func envString(key string, dst *string) {
	if v, ok := os.LookupEnv(envPrefix + key); ok {
		*dst = v
	}
}

func envDuration(key string, dst *time.Duration) {
	v, ok := os.LookupEnv(envPrefix + key)
	if !ok {
		return
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		panic(err)
	}
	*dst = d
}

func envInt(key string, dst *int) {
	v, ok := os.LookupEnv(envPrefix + key)
	if !ok {
		return
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		panic(err)
	}
	*dst = n
}

func envInt64(key string, dst *int64) {
	v, ok := os.LookupEnv(envPrefix + key)
	if !ok {
		return
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		panic(err)
	}
	*dst = n
}

func envFloat(key string, dst *float64) {
	v, ok := os.LookupEnv(envPrefix + key)
	if !ok {
		return
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		panic(err)
	}
	*dst = f
}

func envBool(key string, dst *bool) {
	v, ok := os.LookupEnv(envPrefix + key)
	if !ok {
		return
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		panic(err)
	}
	*dst = b
}

// parseEnv overlays MEMESTORE_* environment variables onto config.
// Malformed numeric or duration values panic, like a malformed JSON file.
func parseEnv(config *Config) {
	loadDotenv()

	envString("HTTP_ADDR", &config.EndpointAddrHTTP)
	envString("HEALTH_ADDR", &config.EndpointAddrHealth)
	envString("DATABASE_DSN", &config.DatabaseDSN)
	envString("SECRET_KEY", &config.SecretKey)
	envDuration("ACCESS_TOKEN_TTL", &config.AccessTokenValidityDuration)
	envDuration("REFRESH_TOKEN_TTL", &config.RefreshTokenValidityDuration)
	envInt("MIN_PASSWORD_LENGTH", &config.MinPasswordLength)
	envString("S3_ROOT_USER", &config.S3RootUser)
	envString("S3_ROOT_PASSWORD", &config.S3RootPassword)
	envString("S3_BUCKET", &config.S3Bucket)
	envString("S3_REGION", &config.S3Region)
	envString("S3_BASE_ENDPOINT", &config.S3BaseEndpoint)
	envDuration("PRESIGN_TTL", &config.PresignValidityDuration)
	envInt64("MAX_UPLOAD_BYTES", &config.MaxUploadBytes)
	envFloat("AUTH_RATE_LIMIT", &config.AuthRateLimit)
	envInt("AUTH_RATE_BURST", &config.AuthRateBurst)
	envBool("TRUST_PROXY_HEADERS", &config.TrustProxyHeaders)
}
