package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.ServerPort)
	assert.Equal(t, "sqlite3", cfg.DBDriver)
	assert.Equal(t, "doorgate.sqlite", cfg.DatabaseURL)
	assert.Equal(t, 5*time.Minute, cfg.SyncInterval)
	assert.Equal(t, 2*time.Minute, cfg.SyncTimeout)
	assert.Equal(t, 5*time.Second, cfg.DecisionTimeout)
	assert.Equal(t, 10*time.Second, cfg.LDAP.Timeout)
	assert.Equal(t, "userPrincipalName", cfg.LDAP.PrincipalAttribute)
	assert.Equal(t, "rFIDUID", cfg.LDAP.TagAttribute)
	assert.Empty(t, cfg.RedisURL)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("DB_DRIVER", "postgres")
	t.Setenv("SYNC_INTERVAL_MINUTES", "1")
	t.Setenv("LDAP_INSECURE_SKIP_VERIFY", "true")
	t.Setenv("CORS_ALLOWED_ORIGINS", "http://a, http://b")
	t.Setenv("ADMIN_USERS", "ops:admin:$2a$10$abcdefghijklmnopqrstuv")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "postgres", cfg.DBDriver)
	assert.Equal(t, time.Minute, cfg.SyncInterval)
	assert.True(t, cfg.LDAP.InsecureSkipVerify)
	assert.Equal(t, []string{"http://a", "http://b"}, cfg.CORSAllowedOrigins)
}

func TestLoad_Rejects(t *testing.T) {
	cases := map[string]string{
		"SERVER_PORT":              "http",
		"SYNC_INTERVAL_MINUTES":    "0",
		"DECISION_TIMEOUT_SECONDS": "-1",
		"DB_DRIVER":                "mysql",
		"ADMIN_USERS":              "ops:admin",
	}
	for key, value := range cases {
		t.Run(key, func(t *testing.T) {
			t.Setenv(key, value)
			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestLoadReader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reader.yaml")
	require.NoError(t, os.WriteFile(path, []byte("door_id: 3\nserver_url: http://doors.local:8080\ndwell: 3s\nescalate_after: 5\n"), 0o600))

	cfg, err := LoadReader(path)
	require.NoError(t, err)
	assert.Equal(t, int64(3), cfg.DoorID)
	assert.Equal(t, "http://doors.local:8080", cfg.ServerURL)
	assert.Equal(t, 3*time.Second, cfg.Dwell)
	assert.Equal(t, 5, cfg.EscalateAfter)
	assert.Equal(t, time.Second, cfg.IdleTick)
	assert.Equal(t, 60*time.Second, cfg.IdleAfter)
}

func TestLoadReader_EnvOverrides(t *testing.T) {
	t.Setenv("DOOR_ID", "9")
	t.Setenv("SERVER_URL", "http://other:8080")

	cfg, err := LoadReader("")
	require.NoError(t, err)
	assert.Equal(t, int64(9), cfg.DoorID)
	assert.Equal(t, "http://other:8080", cfg.ServerURL)
}

func TestLoadReader_Invalid(t *testing.T) {
	_, err := LoadReader("")
	assert.Error(t, err, "door id is required")

	path := filepath.Join(t.TempDir(), "reader.yaml")
	require.NoError(t, os.WriteFile(path, []byte("door_id: 3\ndwell: -1s\n"), 0o600))
	_, err = LoadReader(path)
	assert.Error(t, err)

	_, err = LoadReader(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	t.Setenv("DOOR_ID", "three")
	_, err = LoadReader("")
	assert.Error(t, err)
}
