// Package config loads the settings of the hamsfam command from an optional
// YAML file and HAMSFAM_* environment variables. Flags are applied last by
// the command itself.
package config

import (
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultFile is read when no --config flag is given; it may be absent.
const DefaultFile = "hamsfam.yaml"

// Scenario sources.
const (
	SourceFile = "file"
	SourceLoam = "loam"
)

// Store backends.
const (
	StoreMemory = "memory"
	StoreFile   = "file"
	StoreRedis  = "redis"
)

// LLM backends. An empty backend disables llm nodes.
const (
	LLMNone   = ""
	LLMHTTP   = "http"
	LLMGemini = "gemini"
)

// Config is the complete command configuration.
type Config struct {
	// Dir holds the scenario documents.
	Dir    string `yaml:"dir"`
	Source string `yaml:"source"`

	Addr string `yaml:"addr"`

	Store StoreConfig `yaml:"store"`
	LLM   LLMConfig   `yaml:"llm"`

	// StrictAPIFailure ends a run when an api call fails without an onFail edge.
	StrictAPIFailure bool `yaml:"strictApiFailure"`

	Log LogConfig `yaml:"log"`
}

// StoreConfig selects where run snapshots live.
type StoreConfig struct {
	Backend string `yaml:"backend"`
	// Path is the directory of the file backend.
	Path  string      `yaml:"path"`
	Redis RedisConfig `yaml:"redis"`

	// EncryptionKey is a base64 AES-256 key; snapshots are encrypted at rest
	// when set. FallbackKeys still decrypt snapshots written before a rotation.
	EncryptionKey string   `yaml:"encryptionKey"`
	FallbackKeys  []string `yaml:"fallbackKeys"`
	// Mask lists key patterns whose slot and form values are masked in
	// stored snapshots.
	Mask []string `yaml:"mask"`
}

// RedisConfig configures the redis backend.
type RedisConfig struct {
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	Prefix   string        `yaml:"prefix"`
	TTL      time.Duration `yaml:"ttl"`
	// Lock serializes snapshot writes of a run across replicas.
	Lock bool `yaml:"lock"`
}

// LLMConfig configures the text generation backend of llm nodes.
type LLMConfig struct {
	Backend      string  `yaml:"backend"`
	URL          string  `yaml:"url"`
	Model        string  `yaml:"model"`
	APIKey       string  `yaml:"apiKey"`
	Temperature  float32 `yaml:"temperature"`
	SystemPrompt string  `yaml:"systemPrompt"`
}

// LogConfig configures the process logger.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns the configuration used when nothing is set.
func Default() Config {
	return Config{
		Dir:    ".",
		Source: SourceFile,
		Addr:   ":8080",
		Store: StoreConfig{
			Backend: StoreMemory,
			Path:    ".hamsfam/runs",
			Redis: RedisConfig{
				Addr: "localhost:6379",
			},
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads path over the defaults and applies the environment. A missing
// file is only an error when required is set.
func Load(path string, required bool) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return cfg, fmt.Errorf("failed to parse config %s: %w", path, err)
			}
		case errors.Is(err, os.ErrNotExist) && !required:
		default:
			return cfg, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	}
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

// ApplyEnv overrides fields from HAMSFAM_* variables looked up with lookup.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok {
			*dst = v
		}
	}
	str("HAMSFAM_DIR", &c.Dir)
	str("HAMSFAM_SOURCE", &c.Source)
	str("HAMSFAM_ADDR", &c.Addr)
	str("HAMSFAM_STORE", &c.Store.Backend)
	str("HAMSFAM_STORE_PATH", &c.Store.Path)
	str("HAMSFAM_REDIS_ADDR", &c.Store.Redis.Addr)
	str("HAMSFAM_REDIS_PASSWORD", &c.Store.Redis.Password)
	str("HAMSFAM_REDIS_PREFIX", &c.Store.Redis.Prefix)
	str("HAMSFAM_STORE_KEY", &c.Store.EncryptionKey)
	str("HAMSFAM_LLM", &c.LLM.Backend)
	str("HAMSFAM_LLM_URL", &c.LLM.URL)
	str("HAMSFAM_LLM_MODEL", &c.LLM.Model)
	str("HAMSFAM_LLM_SYSTEM_PROMPT", &c.LLM.SystemPrompt)
	str("HAMSFAM_LOG_LEVEL", &c.Log.Level)
	str("HAMSFAM_LOG_FORMAT", &c.Log.Format)

	if c.LLM.APIKey == "" {
		str("GEMINI_API_KEY", &c.LLM.APIKey)
	}
	str("HAMSFAM_LLM_API_KEY", &c.LLM.APIKey)

	if v, ok := lookup("HAMSFAM_REDIS_DB"); ok {
		db, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("HAMSFAM_REDIS_DB: %w", err)
		}
		c.Store.Redis.DB = db
	}
	if v, ok := lookup("HAMSFAM_RUN_TTL"); ok {
		ttl, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("HAMSFAM_RUN_TTL: %w", err)
		}
		c.Store.Redis.TTL = ttl
	}
	if v, ok := lookup("HAMSFAM_STRICT_API_FAILURE"); ok {
		strict, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("HAMSFAM_STRICT_API_FAILURE: %w", err)
		}
		c.StrictAPIFailure = strict
	}
	return nil
}

// Validate rejects unknown backends and incomplete backend settings.
func (c Config) Validate() error {
	var errs []error
	switch c.Source {
	case SourceFile, SourceLoam:
	default:
		errs = append(errs, fmt.Errorf("unknown scenario source %q", c.Source))
	}
	switch c.Store.Backend {
	case StoreMemory, StoreFile:
	case StoreRedis:
		if c.Store.Redis.Addr == "" {
			errs = append(errs, errors.New("store.redis.addr is required for the redis store"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown store backend %q", c.Store.Backend))
	}
	if c.Store.EncryptionKey != "" {
		if _, _, err := c.Store.Keys(); err != nil {
			errs = append(errs, err)
		}
	}
	for _, pat := range c.Store.Mask {
		if _, err := regexp.Compile(pat); err != nil {
			errs = append(errs, fmt.Errorf("invalid mask pattern %q: %w", pat, err))
		}
	}
	switch c.LLM.Backend {
	case LLMNone:
	case LLMHTTP:
		if c.LLM.URL == "" {
			errs = append(errs, errors.New("llm.url is required for the http backend"))
		}
	case LLMGemini:
		if c.LLM.APIKey == "" {
			errs = append(errs, errors.New("llm.apiKey (or GEMINI_API_KEY) is required for the gemini backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown llm backend %q", c.LLM.Backend))
	}
	return errors.Join(errs...)
}

// Keys decodes the active and fallback encryption keys.
func (s StoreConfig) Keys() (active []byte, fallback [][]byte, err error) {
	decode := func(name, v string) ([]byte, error) {
		k, err := base64.StdEncoding.DecodeString(v)
		if err != nil {
			return nil, fmt.Errorf("%s is not valid base64: %w", name, err)
		}
		if len(k) != 32 {
			return nil, fmt.Errorf("%s must decode to 32 bytes, got %d", name, len(k))
		}
		return k, nil
	}
	if active, err = decode("store.encryptionKey", s.EncryptionKey); err != nil {
		return nil, nil, err
	}
	for i, v := range s.FallbackKeys {
		k, err := decode(fmt.Sprintf("store.fallbackKeys[%d]", i), v)
		if err != nil {
			return nil, nil, err
		}
		fallback = append(fallback, k)
	}
	return active, fallback, nil
}
