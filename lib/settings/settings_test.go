package settings

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultsAreApplied(t *testing.T) {
	cfg, err := ReadConfig("")
	require.NoError(t, err)

	require.Equal(t, "0.0.0.0", cfg.IP)
	require.Equal(t, "9001", cfg.Port)
	require.Equal(t, SQLITE, cfg.DBType)
	require.Equal(t, "var/easysync.db", cfg.DBSettings.Filename)
	require.Equal(t, 100000, cfg.PadTextMaxLength)
	require.Equal(t, 1, cfg.CommitRateLimiting.Duration)
	require.Equal(t, 10, cfg.CommitRateLimiting.Points)
	require.False(t, cfg.Kafka.Enabled)
	require.False(t, cfg.LowerCasePadIDs)
}

func TestEnvOverride(t *testing.T) {
	t.Setenv("EASYSYNC_PORT", "9999")
	t.Setenv("EASYSYNC_DBTYPE", "memory")

	cfg, err := ReadConfig("")
	require.NoError(t, err)
	require.Equal(t, "9999", cfg.Port)
	require.Equal(t, MEMORY, cfg.DBType)
}

func TestNestedEnvOverride(t *testing.T) {
	t.Setenv(EnvVar(CommitRateLimitingPoints), "3")

	cfg, err := ReadConfig("")
	require.NoError(t, err)
	require.Equal(t, 3, cfg.CommitRateLimiting.Points)
}

func TestReadConfigFromJSON(t *testing.T) {
	cfg, err := ReadConfig(`{
		"port": "9100",
		"dbType": "postgres",
		"dbSettings": {"host": "localhost", "port": "5432", "database": "easysync"},
		"kafka": {"enabled": true, "brokers": ["localhost:9092"]}
	}`)
	require.NoError(t, err)
	assert.Equal(t, "9100", cfg.Port)
	assert.Equal(t, POSTGRES, cfg.DBType)
	assert.Equal(t, "localhost", cfg.DBSettings.Host)
	assert.Equal(t, []string{"localhost:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, "easysync.revisions", cfg.Kafka.Topic)
}

func TestReadConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "custom.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"loglevel": "DEBUG"}`), 0o600))

	cfg, err := ReadConfigFile(path)
	require.NoError(t, err)
	assert.Equal(t, "DEBUG", cfg.LogLevel)
}

func TestValidation(t *testing.T) {
	tests := []struct {
		name string
		json string
	}{
		{"unknown db type", `{"dbType": "mongodb"}`},
		{"postgres without host", `{"dbType": "postgres", "dbSettings": {"database": "x"}}`},
		{"redis without url", `{"dbType": "redis"}`},
		{"kafka without brokers", `{"kafka": {"enabled": true}}`},
		{"bad port", `{"port": "http"}`},
		{"bad ip", `{"ip": "localhost"}`},
		{"bad log level", `{"loglevel": "LOUD"}`},
		{"zero rate limit", `{"commitRateLimiting": {"points": 0}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadConfig(tt.json)
			assert.Error(t, err)
		})
	}
}

func TestRedisWithURL(t *testing.T) {
	cfg, err := ReadConfig(`{"dbType": "redis", "dbSettings": {"url": "redis://localhost:6379/0"}}`)
	require.NoError(t, err)
	assert.Equal(t, REDIS, cfg.DBType)
	assert.Equal(t, "redis://localhost:6379/0", cfg.DBSettings.Url)
}

func TestEnvVar(t *testing.T) {
	assert.Equal(t, "EASYSYNC_PORT", EnvVar(Port))
	assert.Equal(t, "EASYSYNC_DBSETTINGS_HOST", EnvVar(DBSettingsHost))
}

func TestConfigInitIsReadable(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, ConfigInit(&buf))

	var parsed map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &parsed))
	assert.Contains(t, parsed, "dbSettings")

	cfg, err := ReadConfig(buf.String())
	require.NoError(t, err)
	assert.Equal(t, "9001", cfg.Port)
}

func TestConfigGet(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, ConfigGet(&buf, "", Port))
	assert.Equal(t, "9001\n", buf.String())

	assert.Error(t, ConfigGet(&buf, "", "nope"))
}

func TestConfigEnvListsEveryKey(t *testing.T) {
	var buf bytes.Buffer
	ConfigEnv(&buf)
	for _, c := range Registry {
		assert.Contains(t, buf.String(), EnvVar(c.Key))
	}
}
