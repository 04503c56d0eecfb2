package config

import (
	"encoding/base64"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func env(vars map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		v, ok := vars[key]
		return v, ok
	}
}

func TestLoad_MissingOptionalFile(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"), false)
	require.NoError(t, err)
	assert.Equal(t, Default().Store.Backend, cfg.Store.Backend)
	assert.Equal(t, ":8080", cfg.Addr)
}

func TestLoad_MissingRequiredFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"), true)
	assert.Error(t, err)
}

func TestLoad_YAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hamsfam.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
dir: ./scenarios
source: loam
addr: ":9090"
store:
  backend: redis
  redis:
    addr: "redis:6379"
    db: 2
    ttl: 1h
    lock: true
llm:
  backend: http
  url: http://llm.local/api/chat
strictApiFailure: true
log:
  level: debug
  format: json
`), 0o644))

	cfg, err := Load(path, true)
	require.NoError(t, err)
	assert.Equal(t, "./scenarios", cfg.Dir)
	assert.Equal(t, SourceLoam, cfg.Source)
	assert.Equal(t, ":9090", cfg.Addr)
	assert.Equal(t, StoreRedis, cfg.Store.Backend)
	assert.Equal(t, "redis:6379", cfg.Store.Redis.Addr)
	assert.Equal(t, 2, cfg.Store.Redis.DB)
	assert.Equal(t, time.Hour, cfg.Store.Redis.TTL)
	assert.True(t, cfg.Store.Redis.Lock)
	assert.Equal(t, LLMHTTP, cfg.LLM.Backend)
	assert.True(t, cfg.StrictAPIFailure)
	assert.Equal(t, "json", cfg.Log.Format)
	// Unset keys keep their defaults.
	assert.Equal(t, ".hamsfam/runs", cfg.Store.Path)
}

func TestLoad_BadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hamsfam.yaml")
	require.NoError(t, os.WriteFile(path, []byte("store: [unclosed"), 0o644))
	_, err := Load(path, true)
	assert.Error(t, err)
}

func TestApplyEnv(t *testing.T) {
	cfg := Default()
	err := cfg.ApplyEnv(env(map[string]string{
		"HAMSFAM_STORE":              "file",
		"HAMSFAM_STORE_PATH":         "/tmp/runs",
		"HAMSFAM_REDIS_DB":           "3",
		"HAMSFAM_RUN_TTL":            "15m",
		"HAMSFAM_STRICT_API_FAILURE": "true",
		"GEMINI_API_KEY":             "from-gemini",
		"HAMSFAM_LLM":                "gemini",
	}))
	require.NoError(t, err)
	assert.Equal(t, StoreFile, cfg.Store.Backend)
	assert.Equal(t, "/tmp/runs", cfg.Store.Path)
	assert.Equal(t, 3, cfg.Store.Redis.DB)
	assert.Equal(t, 15*time.Minute, cfg.Store.Redis.TTL)
	assert.True(t, cfg.StrictAPIFailure)
	assert.Equal(t, "from-gemini", cfg.LLM.APIKey)
	assert.NoError(t, cfg.Validate())

	err = cfg.ApplyEnv(env(map[string]string{"HAMSFAM_LLM_API_KEY": "explicit"}))
	require.NoError(t, err)
	assert.Equal(t, "explicit", cfg.LLM.APIKey)
}

func TestApplyEnv_InvalidValues(t *testing.T) {
	for _, key := range []string{"HAMSFAM_REDIS_DB", "HAMSFAM_RUN_TTL", "HAMSFAM_STRICT_API_FAILURE"} {
		cfg := Default()
		assert.Error(t, cfg.ApplyEnv(env(map[string]string{key: "not-a-value"})), key)
	}
}

func TestValidate(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	cfg.Source = "ftp"
	cfg.Store.Backend = "mongo"
	cfg.LLM.Backend = "gpt"
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ftp")
	assert.Contains(t, err.Error(), "mongo")
	assert.Contains(t, err.Error(), "gpt")

	cfg = Default()
	cfg.LLM.Backend = LLMHTTP
	assert.Error(t, cfg.Validate())

	cfg = Default()
	cfg.LLM.Backend = LLMGemini
	assert.Error(t, cfg.Validate())
}

func TestStoreKeys(t *testing.T) {
	key := base64.StdEncoding.EncodeToString(make([]byte, 32))
	cfg := Default()
	require.NoError(t, cfg.ApplyEnv(env(map[string]string{"HAMSFAM_STORE_KEY": key})))
	cfg.Store.FallbackKeys = []string{key}
	require.NoError(t, cfg.Validate())

	active, fallback, err := cfg.Store.Keys()
	require.NoError(t, err)
	assert.Len(t, active, 32)
	assert.Len(t, fallback, 1)

	cfg.Store.EncryptionKey = base64.StdEncoding.EncodeToString([]byte("short"))
	assert.ErrorContains(t, cfg.Validate(), "32 bytes")

	cfg.Store.EncryptionKey = "%%%"
	assert.ErrorContains(t, cfg.Validate(), "base64")
}

func TestValidate_MaskPatterns(t *testing.T) {
	cfg := Default()
	cfg.Store.Mask = []string{"(?i)password", "card_.*"}
	require.NoError(t, cfg.Validate())

	cfg.Store.Mask = append(cfg.Store.Mask, "(")
	assert.ErrorContains(t, cfg.Validate(), "invalid mask pattern")
}
