package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.ListenAddr)
	assert.Equal(t, "9090", cfg.MetricsPort)
	assert.Equal(t, "", cfg.DatabaseURL)
	assert.Equal(t, 8, cfg.TokenMinLength)
	assert.Equal(t, int64(30)<<20, cfg.MaxUploadBytes)
	assert.Equal(t, int64(16), cfg.MaxConcurrentUploads)
	assert.Equal(t, 10*time.Minute, cfg.ReconcileInterval)
	assert.True(t, cfg.ExtractArtwork)
	assert.False(t, cfg.DevLog)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("AUDIOKEEP_LISTEN_ADDR", ":9999")
	t.Setenv("AUDIOKEEP_MAX_UPLOAD_MB", "5")
	t.Setenv("AUDIOKEEP_RECONCILE_INTERVAL", "30s")
	t.Setenv("AUDIOKEEP_EXTRACT_ARTWORK", "false")
	t.Setenv("DATABASE_URL", "postgres://localhost/audiokeep")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":9999", cfg.ListenAddr)
	assert.Equal(t, int64(5)<<20, cfg.MaxUploadBytes)
	assert.Equal(t, 30*time.Second, cfg.ReconcileInterval)
	assert.False(t, cfg.ExtractArtwork)
	assert.Equal(t, "postgres://localhost/audiokeep", cfg.DatabaseURL)
}

func TestLoadRejectsBadValues(t *testing.T) {
	t.Setenv("AUDIOKEEP_MAX_UPLOAD_MB", "not-a-number")
	_, err := Load()
	require.Error(t, err)
}

func TestLoadRejectsNonPositiveUploadLimit(t *testing.T) {
	t.Setenv("AUDIOKEEP_MAX_UPLOAD_MB", "0")
	_, err := Load()
	require.Error(t, err)
}
