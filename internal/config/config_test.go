package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setBase(t *testing.T) {
	t.Helper()
	t.Setenv("IRIS_BASE_URL", "http://iris.local:3000")
	t.Setenv("IRIS_WS_URL", "ws://iris.local:3000/ws")
	t.Setenv("BOT_PREFIX", "!")
	for _, k := range []string{"STORE_BACKEND", "STATE_FILE", "REDIS_URL", "DATABASE_URL", "S3_BUCKET",
		"LEADERBOARD_SIZE", "LEADERBOARD_IMAGE", "EGRESS_MODE", "EGRESS_DRYRUN", "ALLOWED_ROOMS", "X_USER_ID", "X_USER_EMAIL", "X_SESSION_ID"} {
		t.Setenv(k, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	setBase(t)
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "file", cfg.Store.Backend)
	assert.Equal(t, "data/ladder.json", cfg.Store.FilePath)
	assert.Equal(t, 10, cfg.LeaderboardSize)
	assert.True(t, cfg.LeaderboardImage)
	assert.Equal(t, "http", cfg.EgressMode)
	assert.Empty(t, cfg.AllowedRooms)
	assert.Empty(t, cfg.Headers())
}

func TestLoadOverrides(t *testing.T) {
	setBase(t)
	t.Setenv("STORE_BACKEND", "Redis")
	t.Setenv("REDIS_URL", "redis://localhost:6379/0")
	t.Setenv("ALLOWED_ROOMS", " room1, ,room2 ")
	t.Setenv("LEADERBOARD_SIZE", "25")
	t.Setenv("LEADERBOARD_IMAGE", "false")
	t.Setenv("EGRESS_MODE", "auto")
	t.Setenv("EGRESS_DRYRUN", "true")
	t.Setenv("X_USER_ID", "bot")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "redis", cfg.Store.Backend)
	assert.Equal(t, []string{"room1", "room2"}, cfg.AllowedRooms)
	assert.Equal(t, 25, cfg.LeaderboardSize)
	assert.False(t, cfg.LeaderboardImage)
	assert.Equal(t, "auto", cfg.EgressMode)
	assert.True(t, cfg.DryRun)
	assert.Equal(t, map[string]string{"X-User-Id": "bot"}, cfg.Headers())
}

func TestLoadRequiredFields(t *testing.T) {
	setBase(t)
	t.Setenv("BOT_PREFIX", "")
	_, err := Load()
	assert.ErrorContains(t, err, "BOT_PREFIX")

	setBase(t)
	t.Setenv("LEADERBOARD_SIZE", "-3")
	_, err = Load()
	assert.ErrorContains(t, err, "LEADERBOARD_SIZE")

	setBase(t)
	t.Setenv("EGRESS_MODE", "carrier-pigeon")
	_, err = Load()
	assert.ErrorContains(t, err, "EGRESS_MODE")
}

func TestLoadStoreValidation(t *testing.T) {
	setBase(t)
	t.Setenv("STORE_BACKEND", "postgres")
	_, err := LoadStore()
	assert.ErrorContains(t, err, "DATABASE_URL")

	t.Setenv("STORE_BACKEND", "s3")
	_, err = LoadStore()
	assert.ErrorContains(t, err, "S3_BUCKET")

	t.Setenv("STORE_BACKEND", "etcd")
	_, err = LoadStore()
	assert.ErrorContains(t, err, "STORE_BACKEND")

	t.Setenv("STORE_BACKEND", "sqlite")
	t.Setenv("SQLITE_PATH", "/tmp/l.db")
	opts, err := LoadStore()
	require.NoError(t, err)
	assert.Equal(t, "/tmp/l.db", opts.SQLitePath)
}

func TestLoadIrisSkipsValidation(t *testing.T) {
	setBase(t)
	t.Setenv("BOT_PREFIX", "")
	t.Setenv("X_SESSION_ID", "s1")
	cfg := LoadIris()
	assert.Equal(t, "http://iris.local:3000", cfg.IrisBaseURL)
	assert.Equal(t, map[string]string{"X-Session-Id": "s1"}, cfg.Headers())
}
