package config_test

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"

	"intigra/internal/config"
)

func TestLoadConfig(t *testing.T) {
	// Set env var directly to test envconfig logic
	os.Setenv("DB_HOST", "test-host")
	defer os.Unsetenv("DB_HOST")

	cfg, err := config.Load()
	assert.NoError(t, err)
	assert.Equal(t, "test-host", cfg.DBHost)
}

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := config.Load()
	assert.NoError(t, err)
	assert.Equal(t, "data/parquet", cfg.StorageDir)
	assert.Equal(t, -5.0, cfg.RerankThreshold)
	assert.Equal(t, 20, cfg.MaxRetrievalPool)
	assert.Equal(t, []string{".pdf", ".txt", ".docx"}, cfg.SupportedExtensions)
	assert.Equal(t, 800, cfg.ChunkSize)
	assert.Equal(t, 100, cfg.ChunkOverlap)
	assert.False(t, cfg.IndexReloadOnJobComplete)
}

func TestLoadConfig_FromEnvFile(t *testing.T) {
	content := []byte("DB_HOST=loaded-from-file")
	err := os.WriteFile(".env", content, 0o644)
	if err != nil {
		t.Fatal(err)
	}
	defer os.Remove(".env")

	cfg, err := config.Load()
	assert.NoError(t, err)
	assert.Equal(t, "loaded-from-file", cfg.DBHost)
}

func TestLoadConfig_Extensions(t *testing.T) {
	os.Setenv("SUPPORTED_EXTENSIONS", "TXT, .Md")
	defer os.Unsetenv("SUPPORTED_EXTENSIONS")

	cfg, err := config.Load()
	assert.NoError(t, err)
	assert.Equal(t, []string{".txt", ".md"}, cfg.SupportedExtensions)
}

func TestLoadConfig_Retrieval(t *testing.T) {
	os.Setenv("RERANK_THRESHOLD", "-2.5")
	os.Setenv("MAX_RETRIEVAL_POOL", "30")
	os.Setenv("INDEX_RELOAD_ON_JOB_COMPLETE", "true")
	defer os.Unsetenv("RERANK_THRESHOLD")
	defer os.Unsetenv("MAX_RETRIEVAL_POOL")
	defer os.Unsetenv("INDEX_RELOAD_ON_JOB_COMPLETE")

	cfg, err := config.Load()
	assert.NoError(t, err)
	assert.Equal(t, -2.5, cfg.RerankThreshold)
	assert.Equal(t, 30, cfg.MaxRetrievalPool)
	assert.True(t, cfg.IndexReloadOnJobComplete)
}

func TestLoadConfig_Invalid(t *testing.T) {
	os.Setenv("RERANK_PROVIDER", "unknown")
	defer os.Unsetenv("RERANK_PROVIDER")

	_, err := config.Load()
	assert.ErrorIs(t, err, config.ErrInvalidValue)
}
