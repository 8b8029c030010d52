package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("MISSKEY_API_URL", "https://misskey.example")
	t.Setenv("MISSKEY_TOKEN", "token")
	t.Setenv("BOT_USER_ID", "bot123")
}

func TestNew_Defaults(t *testing.T) {
	setRequired(t)

	cfg, err := New()
	require.NoError(t, err)
	assert.Equal(t, "homeTimeline", cfg.StreamChannel)
	assert.Equal(t, "https://bcdice.kazagakure.net/v2", cfg.BCDiceAPIURL)
	assert.Equal(t, 10*time.Second, cfg.HTTPTimeout)
	assert.Equal(t, StoreFile, cfg.StoreBackend)
	assert.Equal(t, "data/userSystems.json", cfg.SystemsFilePath)
	assert.Equal(t, 8, cfg.MaxInflight)
	assert.False(t, cfg.ReportNote)
}

func TestNew_MissingRequired(t *testing.T) {
	t.Setenv("MISSKEY_API_URL", "https://misskey.example")
	t.Setenv("MISSKEY_TOKEN", "token")

	_, err := New()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "BOT_USER_ID")
}

func TestNew_BlankRequired(t *testing.T) {
	setRequired(t)
	t.Setenv("BOT_USER_ID", "  ")

	_, err := New()
	require.Error(t, err)
}

func TestNew_UnknownStoreBackend(t *testing.T) {
	setRequired(t)
	t.Setenv("STORE_BACKEND", "sqlite")

	_, err := New()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown store backend")
}

func TestNew_Overrides(t *testing.T) {
	setRequired(t)
	t.Setenv("STORE_BACKEND", "redis")
	t.Setenv("REDIS_ADDR", "redis:6379")
	t.Setenv("HTTP_TIMEOUT", "3s")
	t.Setenv("REPORT_NOTE", "true")

	cfg, err := New()
	require.NoError(t, err)
	assert.Equal(t, StoreRedis, cfg.StoreBackend)
	assert.Equal(t, "redis:6379", cfg.RedisAddr)
	assert.Equal(t, 3*time.Second, cfg.HTTPTimeout)
	assert.True(t, cfg.ReportNote)
}

func TestNewEngine_NoMisskeyVars(t *testing.T) {
	t.Setenv("BCDICE_API_URL", "http://localhost:9292/v2")

	cfg, err := NewEngine()
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:9292/v2", cfg.BCDiceAPIURL)
}
