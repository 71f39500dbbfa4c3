package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultPopulatesAllFields(t *testing.T) {
	cfg := Default()
	assert.Equal(t, ":8080", cfg.Server.HTTPAddr)
	assert.Equal(t, "/app/data", cfg.Server.ConfigDir)
	assert.Equal(t, 2.0, cfg.Session.SegmentDurationSec)
	assert.Equal(t, 90*time.Second, cfg.Session.IdleTimeout)
	assert.Equal(t, 15*time.Second, cfg.Session.SegmentWaitTimeout)
	assert.Equal(t, 30*time.Second, cfg.Session.SessionStartupTimeout)
	assert.Equal(t, 60*time.Second, cfg.Session.SegmentTimeout)
	assert.Equal(t, 5*time.Second, cfg.Session.RunnerStopGrace)
	assert.Equal(t, 3, cfg.Session.MaxRetries)
	assert.Equal(t, 10*time.Second, cfg.Session.ReuseAheadGrace)
	assert.Equal(t, "ffmpeg", cfg.FFmpeg.FFmpegPath)
	assert.Equal(t, "sqlite", cfg.Database.Type)
	assert.NoError(t, cfg.Validate())
}

func TestLoadEnvOverridesDefaults(t *testing.T) {
	t.Setenv("SEGMENT_DURATION_SEC", "4")
	t.Setenv("IDLE_TIMEOUT_SEC", "30s")
	t.Setenv("MAX_RETRIES", "5")
	t.Setenv("DATABASE_TYPE", "postgres")
	t.Setenv("LOG_JSON", "true")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 4.0, cfg.Session.SegmentDurationSec)
	assert.Equal(t, 30*time.Second, cfg.Session.IdleTimeout)
	assert.Equal(t, 5, cfg.Session.MaxRetries)
	assert.Equal(t, "postgres", cfg.Database.Type)
	assert.True(t, cfg.Logging.JSON)
}

func TestLoadRejectsInvalidDatabaseType(t *testing.T) {
	t.Setenv("DATABASE_TYPE", "mongodb")
	_, err := Load("")
	assert.Error(t, err)
}

func TestLoadRejectsNonPositiveSegmentDuration(t *testing.T) {
	t.Setenv("SEGMENT_DURATION_SEC", "0")
	_, err := Load("")
	assert.Error(t, err)
}
