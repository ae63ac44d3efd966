// Package config loads service configuration from the environment.
// Every knob has a default good enough for local development; only
// DATABASE_URL changes behavior structurally (empty selects the
// in-memory metadata store).
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	// ListenAddr is the API listener, e.g. ":8080".
	ListenAddr string
	// MetricsPort serves /metrics and /health separately from the API.
	MetricsPort string
	// DataDir is the blob store root.
	DataDir string
	// SpoolDir receives upload spools; empty means the OS temp dir.
	SpoolDir string
	// DatabaseURL is the Postgres DSN. Empty selects the in-memory
	// metadata store, for development and tests only.
	DatabaseURL string

	// TokenSalt feeds the id obfuscation. Changing it invalidates every
	// token ever issued.
	TokenSalt      string
	TokenMinLength int

	MaxUploadBytes       int64
	MaxConcurrentUploads int64

	ReconcileInterval   time.Duration
	ArtworkPollInterval time.Duration
	ExtractArtwork      bool

	DevLog bool
}

func Load() (*Config, error) {
	cfg := &Config{
		ListenAddr:  envString("AUDIOKEEP_LISTEN_ADDR", ":8080"),
		MetricsPort: envString("AUDIOKEEP_METRICS_PORT", "9090"),
		DataDir:     envString("AUDIOKEEP_DATA_DIR", "./data/audio"),
		SpoolDir:    envString("AUDIOKEEP_SPOOL_DIR", ""),
		DatabaseURL: envString("DATABASE_URL", ""),
		TokenSalt:   envString("AUDIOKEEP_TOKEN_SALT", "audiokeep"),
	}

	var err error
	if cfg.TokenMinLength, err = envInt("AUDIOKEEP_TOKEN_MIN_LENGTH", 8); err != nil {
		return nil, err
	}
	maxUploadMB, err := envInt("AUDIOKEEP_MAX_UPLOAD_MB", 30)
	if err != nil {
		return nil, err
	}
	cfg.MaxUploadBytes = int64(maxUploadMB) << 20
	maxUploads, err := envInt("AUDIOKEEP_MAX_CONCURRENT_UPLOADS", 16)
	if err != nil {
		return nil, err
	}
	cfg.MaxConcurrentUploads = int64(maxUploads)
	if cfg.ReconcileInterval, err = envDuration("AUDIOKEEP_RECONCILE_INTERVAL", 10*time.Minute); err != nil {
		return nil, err
	}
	if cfg.ArtworkPollInterval, err = envDuration("AUDIOKEEP_ARTWORK_POLL_INTERVAL", 2*time.Second); err != nil {
		return nil, err
	}
	if cfg.ExtractArtwork, err = envBool("AUDIOKEEP_EXTRACT_ARTWORK", true); err != nil {
		return nil, err
	}
	if cfg.DevLog, err = envBool("AUDIOKEEP_DEV_LOG", false); err != nil {
		return nil, err
	}

	if cfg.MaxUploadBytes <= 0 {
		return nil, fmt.Errorf("AUDIOKEEP_MAX_UPLOAD_MB must be positive")
	}
	if cfg.MaxConcurrentUploads <= 0 {
		return nil, fmt.Errorf("AUDIOKEEP_MAX_CONCURRENT_UPLOADS must be positive")
	}
	return cfg, nil
}

func envString(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}

func envBool(key string, fallback bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("%s: %w", key, err)
	}
	return b, nil
}

func envDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}
