// Command catalogrec 加载商品目录、交互事件与评分语料，提供自动补全与推荐 HTTP 服务。
//
//	catalogrec -config catalogrec.yaml
//
// 配置见 config 包；环境变量 CATALOGREC_* 覆盖文件配置，启动时会先读取 .env。
package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/rushteam/catalogrec/config"
	"github.com/rushteam/catalogrec/core"
	"github.com/rushteam/catalogrec/logging"
	"github.com/rushteam/catalogrec/metrics"
	"github.com/rushteam/catalogrec/pipeline"
	"github.com/rushteam/catalogrec/recall"
	"github.com/rushteam/catalogrec/server"
	"github.com/rushteam/catalogrec/service"
	"github.com/rushteam/catalogrec/store"
)

func main() {
	configPath := flag.String("config", "", "path to the YAML config file")
	flag.Parse()

	// .env 不存在不是错误
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		logging.Warn().Err(err).Msg("load .env")
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		logging.Fatal().Err(err).Msg("load config")
	}
	logging.Init(cfg.Logging)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	backend, err := openCache(ctx, cfg.Cache)
	if err != nil {
		logging.Fatal().Err(err).Str("backend", cfg.Cache.Backend).Msg("open cache")
	}
	opts := service.Options{
		MaxSuggestions:    cfg.Suggest.MaxSuggestions,
		Anchor:            recall.AnchorStrategy(cfg.KNN.Anchor),
		AnchorSeed:        cfg.KNN.Seed,
		ExcludeOwnedTypes: cfg.Hybrid.ExcludeOwnedTypes,
	}
	if backend != nil {
		defer backend.Close()
		opts.Cache = store.NewResultCache(backend, cfg.Cache.TTL)
	}
	if cfg.Pipeline != "" {
		if opts.Pipeline, err = pipeline.LoadFromYAML(cfg.Pipeline); err != nil {
			logging.Fatal().Err(err).Str("path", cfg.Pipeline).Msg("load pipeline")
		}
	}

	engine := service.New(builderFrom(cfg), opts)
	if err := engine.Rebuild(ctx); err != nil {
		logging.Fatal().Err(err).Msg("initial build")
	}

	if cfg.Rebuild.Schedule != "" {
		c := cron.New()
		_, err := c.AddFunc(cfg.Rebuild.Schedule, func() {
			// 失败时 Engine 继续使用旧快照
			rctx, cancel := ctx, context.CancelFunc(func() {})
			if cfg.Rebuild.Timeout > 0 {
				rctx, cancel = context.WithTimeout(ctx, cfg.Rebuild.Timeout)
			}
			defer cancel()
			if err := engine.Rebuild(rctx); err != nil {
				logging.Error().Err(err).Msg("scheduled rebuild failed")
			}
		})
		if err != nil {
			logging.Fatal().Err(err).Str("schedule", cfg.Rebuild.Schedule).Msg("invalid rebuild schedule")
		}
		c.Start()
		defer c.Stop()
		logging.Info().Str("schedule", cfg.Rebuild.Schedule).Msg("scheduled rebuild enabled")
	}

	srv := &http.Server{
		Addr: cfg.Server.Addr,
		Handler: server.NewRouter(engine, server.Config{
			CORSOrigins:    cfg.Server.CORSOrigins,
			RateLimit:      cfg.Server.RateLimit,
			RebuildTimeout: cfg.Rebuild.Timeout,
		}),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logging.Info().Str("addr", srv.Addr).Msg("http server listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			logging.Fatal().Err(err).Msg("http server")
		}
	case <-ctx.Done():
		logging.Info().Msg("shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logging.Error().Err(err).Msg("http server shutdown")
	}
}

func builderFrom(cfg *config.Config) *service.Builder {
	return &service.Builder{
		Sources: service.Sources{
			CatalogDir:   cfg.Data.CatalogDir,
			Interactions: cfg.Data.Interactions,
			Ratings:      cfg.Data.Ratings,
			Taxonomy:     cfg.Data.Taxonomy,
		},
		K:              cfg.KNN.K,
		Factors:        cfg.Hybrid.Factors,
		Epochs:         cfg.Hybrid.Epochs,
		LearningRate:   cfg.Hybrid.LearningRate,
		Regularization: cfg.Hybrid.Regularization,
		Seed:           cfg.Hybrid.Seed,
		Alpha:          cfg.Hybrid.Alpha,
		NGram:          cfg.Suggest.Index == "ngram",
	}
}

// openCache 按配置创建结果缓存后端；backend 为 none 时返回 nil。
func openCache(ctx context.Context, cfg config.CacheConfig) (core.Store, error) {
	switch cfg.Backend {
	case "memory":
		return store.NewMemoryStore(store.WithMaxEntries(cfg.MaxEntries)), nil
	case "redis":
		rs, err := store.NewRedisStore(ctx, store.RedisConfig{
			Addr:             cfg.Redis.Addr,
			Password:         cfg.Redis.Password,
			DB:               cfg.Redis.DB,
			Prefix:           cfg.Redis.Prefix,
			FailureThreshold: cfg.Redis.FailureThreshold,
			Timeout:          cfg.Redis.Timeout,
			OnStateChange: func(name string, from, to gobreaker.State) {
				metrics.BreakerState.WithLabelValues(name).Set(float64(to))
				logging.Warn().Str("breaker", name).Stringer("from", from).Stringer("to", to).Msg("circuit breaker state changed")
			},
		})
		if err != nil {
			return nil, err
		}
		return rs, nil
	default:
		return nil, nil
	}
}
