package configuration

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseInitializesMissingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "multichat", "config.json")

	config, err := Parse(path)
	require.NoError(t, err)
	assert.Equal(t, 3000, config.Port)
	assert.Equal(t, "json", config.Database.Driver)

	_, err = os.Stat(path)
	assert.NoError(t, err, "default config must be written")
}

func TestParseMergesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
  "port": 8080,
  "database": {"driver": "sqlite", "path": "/tmp/multichat.db"}
}`), 0644))

	config, err := Parse(path)
	require.NoError(t, err)
	assert.Equal(t, 8080, config.Port)
	assert.Equal(t, "sqlite", config.Database.Driver)
	assert.Equal(t, "/tmp/multichat.db", config.Database.Path)
	assert.Equal(t, defaultConfig.Generation.PollinationsURL, config.Generation.PollinationsURL)
	assert.Equal(t, defaultConfig.Gateway.Models, config.Gateway.Models)
	assert.Equal(t, "info", config.Logging.Level)
}

func TestParseEnvironmentOverrides(t *testing.T) {
	t.Setenv("PORT", "4040")
	t.Setenv("TELEGRAM_BOT_TOKEN", "123:abc")
	t.Setenv("MULTICHAT_DATABASE_PATH", "/var/lib/multichat/db.json")

	config, err := Parse("")
	require.NoError(t, err)
	assert.Equal(t, 4040, config.Port)
	assert.Equal(t, "123:abc", config.TelegramBotToken)
	assert.Equal(t, "/var/lib/multichat/db.json", config.Database.Path)
}

func TestParseRejectsUnknownDriver(t *testing.T) {
	t.Setenv("MULTICHAT_DATABASE_DRIVER", "postgres")
	_, err := Parse("")
	assert.Error(t, err)
}

func TestParseKeepsExplicitZeroRateLimit(t *testing.T) {
	dir := t.TempDir()
	disabled := filepath.Join(dir, "disabled.json")
	require.NoError(t, os.WriteFile(disabled, []byte(`{"gateway": {"rate_limit": 0}}`), 0644))
	config, err := Parse(disabled)
	require.NoError(t, err)
	require.NotNil(t, config.Gateway.RateLimit)
	assert.Zero(t, config.Gateway.RequestsPerSecond())
	assert.Equal(t, 10, config.Gateway.RateLimitBurst)

	unset := filepath.Join(dir, "unset.json")
	require.NoError(t, os.WriteFile(unset, []byte(`{"gateway": {"rate_limit_burst": 3}}`), 0644))
	config, err = Parse(unset)
	require.NoError(t, err)
	assert.Equal(t, float64(defaultRateLimit), config.Gateway.RequestsPerSecond())
	assert.Equal(t, 3, config.Gateway.RateLimitBurst)

	*config.Gateway.RateLimit = 50
	assert.Equal(t, float64(defaultRateLimit), Default().Gateway.RequestsPerSecond(), "defaults are not shared")
}
