package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "./uploads", cfg.UploadsPath)
	assert.Equal(t, int64(5<<20), cfg.MaxUploadBytes)
	assert.Equal(t, "local", cfg.StorageDriver)
	assert.Equal(t, "dev", cfg.Env)
	assert.Equal(t, devSessionSecret, cfg.SessionSecret)
	assert.True(t, cfg.IsDevLike())
}

func TestLoadReadsUploadsPath(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("UPLOADS_PATH", "/srv/dsr/uploads")
	t.Setenv("CORS_ALLOW_ORIGINS", "https://a.example, https://b.example")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "/srv/dsr/uploads", cfg.UploadsPath)
	assert.Len(t, cfg.CORSAllowOrigin, 2)
}

func TestLoadRejectsS3WithoutBucket(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("STORAGE_DRIVER", "s3")

	_, err := Load()
	require.Error(t, err)
}

func TestLoadProductionRequiresSecrets(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("ENV", "prod")
	t.Setenv("DATABASE_URL", "postgres://localhost/dsr")

	_, err := Load()
	require.Error(t, err)

	t.Setenv("SESSION_SECRET", "s3cret-value")
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "production", cfg.Env)
	assert.False(t, cfg.IsDevLike())
}

func TestLoadRejectsUnknownStorageDriver(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("STORAGE_DRIVER", "ftp")

	_, err := Load()
	require.Error(t, err)
}

func TestLoadStagingRequiresSessionSecret(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("ENV", "staging")

	_, err := Load()
	require.Error(t, err)

	t.Setenv("SESSION_SECRET", "staging-secret")
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "staging-secret", cfg.SessionSecret)
	assert.False(t, cfg.IsDevLike())
}

func TestLoadTrustedProxies(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)
	assert.Empty(t, cfg.TrustedProxies)

	t.Setenv("TRUSTED_PROXIES", "10.0.0.0/8,192.0.2.10")
	cfg, err = Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"10.0.0.0/8", "192.0.2.10"}, cfg.TrustedProxies)

	t.Setenv("TRUSTED_PROXIES", "not-a-proxy")
	_, err = Load()
	require.Error(t, err)
}
