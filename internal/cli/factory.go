package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/Young-Hyun-Ham/hamsfam-sub000"
	"github.com/Young-Hyun-Ham/hamsfam-sub000/internal/adapters/file"
	"github.com/Young-Hyun-Ham/hamsfam-sub000/internal/config"
	"github.com/Young-Hyun-Ham/hamsfam-sub000/pkg/adapters/llm"
	"github.com/Young-Hyun-Ham/hamsfam-sub000/pkg/adapters/loam"
	"github.com/Young-Hyun-Ham/hamsfam-sub000/pkg/adapters/memory"
	"github.com/Young-Hyun-Ham/hamsfam-sub000/pkg/adapters/redis"
	"github.com/Young-Hyun-Ham/hamsfam-sub000/pkg/persistence/middleware"
	"github.com/Young-Hyun-Ham/hamsfam-sub000/pkg/ports"
)

// Resources are the adapters selected by a config.
type Resources struct {
	Loader   ports.ScenarioLoader
	Store    ports.RunStore
	Locker   ports.DistributedLocker
	Streamer ports.TextStreamer

	closers []func() error
}

// Close releases backend connections.
func (r *Resources) Close() error {
	var errs []error
	for i := len(r.closers) - 1; i >= 0; i-- {
		errs = append(errs, r.closers[i]())
	}
	r.closers = nil
	return errors.Join(errs...)
}

// OpenLoader returns the scenario source named by cfg.Source.
func OpenLoader(cfg config.Config) (ports.ScenarioLoader, error) {
	switch cfg.Source {
	case config.SourceLoam:
		return loam.Open(cfg.Dir)
	case config.SourceFile, "":
		return file.NewLoader(cfg.Dir), nil
	}
	return nil, fmt.Errorf("unknown scenario source %q", cfg.Source)
}

// Open builds every adapter cfg selects. The caller closes the result.
func Open(ctx context.Context, cfg config.Config) (*Resources, error) {
	res := &Resources{}

	loader, err := OpenLoader(cfg)
	if err != nil {
		return nil, err
	}
	res.Loader = loader

	switch cfg.Store.Backend {
	case config.StoreMemory, "":
		res.Store = memory.NewStore()
	case config.StoreFile:
		res.Store = file.NewStore(cfg.Store.Path)
	case config.StoreRedis:
		rc := cfg.Store.Redis
		opts := []redis.Option{redis.WithTTL(rc.TTL)}
		if rc.Prefix != "" {
			opts = append(opts, redis.WithPrefix(rc.Prefix))
		}
		store := redis.New(rc.Addr, rc.Password, rc.DB, opts...)
		res.closers = append(res.closers, store.Client().Close)
		if err := store.Client().Ping(ctx).Err(); err != nil {
			_ = res.Close()
			return nil, fmt.Errorf("failed to reach redis at %s: %w", rc.Addr, err)
		}
		res.Store = store
		if rc.Lock {
			prefix := rc.Prefix
			if prefix == "" {
				prefix = redis.DefaultPrefix
			}
			res.Locker = redis.NewLocker(store.Client(), prefix)
		}
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
	}

	if err := wrapStore(res, cfg.Store); err != nil {
		_ = res.Close()
		return nil, err
	}

	streamer, err := OpenStreamer(ctx, cfg.LLM)
	if err != nil {
		_ = res.Close()
		return nil, err
	}
	res.Streamer = streamer
	return res, nil
}

// wrapStore applies masking and encryption at rest. Masking runs first so
// the encrypted payload holds masked values.
func wrapStore(res *Resources, sc config.StoreConfig) error {
	var mws []middleware.Middleware
	if len(sc.Mask) > 0 {
		pii, err := middleware.NewPIIMiddleware(sc.Mask)
		if err != nil {
			return err
		}
		mws = append(mws, pii)
	}
	if sc.EncryptionKey != "" {
		active, fallback, err := sc.Keys()
		if err != nil {
			return err
		}
		enc, err := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: active, FallbackKeys: fallback})
		if err != nil {
			return err
		}
		mws = append(mws, enc)
	}
	res.Store = middleware.Chain(res.Store, mws...)
	return nil
}

// OpenStreamer returns the llm backend of cfg, or nil when none is set.
func OpenStreamer(ctx context.Context, cfg config.LLMConfig) (ports.TextStreamer, error) {
	switch cfg.Backend {
	case config.LLMNone:
		return nil, nil
	case config.LLMHTTP:
		var opts []llm.HTTPOption
		if cfg.APIKey != "" {
			opts = append(opts, llm.WithHeader("Authorization", "Bearer "+cfg.APIKey))
		}
		return llm.NewHTTPStreamer(cfg.URL, opts...), nil
	case config.LLMGemini:
		var opts []llm.GeminiOption
		if cfg.Model != "" {
			opts = append(opts, llm.WithModel(cfg.Model))
		}
		if cfg.URL != "" {
			opts = append(opts, llm.WithBaseURL(cfg.URL))
		}
		if cfg.Temperature > 0 {
			opts = append(opts, llm.WithTemperature(cfg.Temperature))
		}
		s, err := llm.NewGeminiStreamer(ctx, cfg.APIKey, opts...)
		if err != nil {
			return nil, err
		}
		return s, nil
	}
	return nil, fmt.Errorf("unknown llm backend %q", cfg.Backend)
}

// NewEngine opens the adapters of cfg and builds an engine over them.
// extra options are applied after the configured ones.
func NewEngine(ctx context.Context, cfg config.Config, logger *slog.Logger, extra ...hamsfam.Option) (*hamsfam.Engine, *Resources, error) {
	res, err := Open(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}

	opts := []hamsfam.Option{
		hamsfam.WithLogger(logger),
		hamsfam.WithStore(res.Store),
		hamsfam.WithStrictAPIFailure(cfg.StrictAPIFailure),
	}
	if res.Locker != nil {
		opts = append(opts, hamsfam.WithLocker(res.Locker))
	}
	if res.Streamer != nil {
		opts = append(opts, hamsfam.WithTextStreamer(res.Streamer))
	}
	if cfg.LLM.SystemPrompt != "" {
		opts = append(opts, hamsfam.WithSystemPrompt(cfg.LLM.SystemPrompt))
	}
	opts = append(opts, extra...)

	eng, err := hamsfam.New(res.Loader, opts...)
	if err != nil {
		_ = res.Close()
		return nil, nil, fmt.Errorf("error initializing engine: %w", err)
	}
	return eng, res, nil
}
