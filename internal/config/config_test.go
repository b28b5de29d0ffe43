package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_DefaultsAndEnv(t *testing.T) {
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("MAP_LOCATE_TIMEOUT", "5s")
	t.Setenv("MAP_ALLOWED_ORIGINS", "https://a.example, https://b.example,")

	cfg, err := LoadConfig("")
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:9090", cfg.Server.GetServerAddr())
	assert.Equal(t, "memory", cfg.Database.Driver)
	assert.Equal(t, "s3cret", cfg.Security.JWTSecret)
	assert.Equal(t, 5*time.Second, cfg.Map.LocateTimeout)
	assert.Equal(t, 15, cfg.Map.LocateZoom)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Map.AllowedOrigins)
	assert.Equal(t, "substring", cfg.Jurisdiction.Matcher)
}

func TestLoadConfig_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"database": {"driver": "postgres", "host": "db", "user": "farm", "password": "pw", "db_name": "trace"},
		"security": {"jwt_secret": "from-file"},
		"jurisdiction": {"matcher": "geofence", "regions_file": "regions.geojson"}
	}`), 0o600))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "postgres://farm:pw@db:5432/trace?sslmode=disable", cfg.Database.GetDatabaseURL())
	assert.Equal(t, "geofence", cfg.Jurisdiction.Matcher)
	assert.Equal(t, "name", cfg.Jurisdiction.NameProperty)
}

func TestLoadConfig_MissingFileUsesDefaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "s3cret")
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "absent.json"))
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Server.Port)
}

func TestLoadConfig_Invalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{name: "no secret", env: map[string]string{}},
		{name: "bad port", env: map[string]string{"JWT_SECRET": "x", "SERVER_PORT": "http"}},
		{name: "bad driver", env: map[string]string{"JWT_SECRET": "x", "DATABASE_DRIVER": "mongo"}},
		{name: "geofence without regions", env: map[string]string{"JWT_SECRET": "x", "JURISDICTION_MATCHER": "geofence"}},
		{name: "bad timeout", env: map[string]string{"JWT_SECRET": "x", "MAP_LOCATE_TIMEOUT": "soon"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("JWT_SECRET", "")
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := LoadConfig("")
			assert.Error(t, err)
		})
	}
}
