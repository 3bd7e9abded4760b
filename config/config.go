// Package config 加载服务配置：结构体默认值 → YAML 文件 → 环境变量，依次覆盖。
//
// 环境变量以 CATALOGREC_ 为前缀，双下划线表示层级：
//
//	CATALOGREC_SERVER__ADDR=:9000        → server.addr
//	CATALOGREC_HYBRID__ALPHA=0.7         → hybrid.alpha
//	CATALOGREC_SERVER__CORS_ORIGINS=a,b  → server.cors_origins（逗号分隔）
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"

	"github.com/rushteam/catalogrec/logging"
)

// EnvPrefix 是环境变量前缀。
const EnvPrefix = "CATALOGREC_"

// PathEnvVar 指定配置文件路径（Load 的参数为空时使用）。
const PathEnvVar = "CATALOGREC_CONFIG"

type Config struct {
	Server  ServerConfig   `koanf:"server"`
	Data    DataConfig     `koanf:"data"`
	KNN     KNNConfig      `koanf:"knn"`
	Hybrid  HybridConfig   `koanf:"hybrid"`
	Suggest SuggestConfig  `koanf:"suggest"`
	Cache   CacheConfig    `koanf:"cache"`
	Rebuild RebuildConfig  `koanf:"rebuild"`
	Logging logging.Config `koanf:"logging"`
	// Pipeline 为用户推荐链路的 YAML 描述；为空时使用内置链路
	Pipeline string `koanf:"pipeline"`
}

type ServerConfig struct {
	Addr            string        `koanf:"addr" validate:"required"`
	ReadTimeout     time.Duration `koanf:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
	CORSOrigins     []string      `koanf:"cors_origins"`
	// RateLimit 每个 IP 每分钟的请求数，0 表示不限流
	RateLimit int `koanf:"rate_limit" validate:"gte=0"`
}

type DataConfig struct {
	CatalogDir   string `koanf:"catalog_dir" validate:"required"`
	Interactions string `koanf:"interactions" validate:"required"`
	Ratings      string `koanf:"ratings" validate:"required"`
	// Taxonomy 为可选的 YAML 词典，覆盖内置的产品类型/品牌表
	Taxonomy string `koanf:"taxonomy"`
}

type KNNConfig struct {
	K int `koanf:"k" validate:"gte=2"`
	// Anchor 为历史锚点策略：last、random、recent
	Anchor string `koanf:"anchor" validate:"oneof=last random recent"`
	Seed   int64  `koanf:"seed"`
}

type HybridConfig struct {
	Factors           int     `koanf:"factors" validate:"gte=1"`
	Epochs            int     `koanf:"epochs" validate:"gte=1"`
	LearningRate      float64 `koanf:"learning_rate" validate:"gt=0"`
	Regularization    float64 `koanf:"regularization" validate:"gte=0"`
	Seed              int64   `koanf:"seed"`
	Alpha             float64 `koanf:"alpha" validate:"gte=0,lte=1"`
	ExcludeOwnedTypes bool    `koanf:"exclude_owned_types"`
}

type SuggestConfig struct {
	MaxSuggestions int `koanf:"max_suggestions" validate:"gte=1"`
	// Index 为子串检索实现：scan 或 ngram
	Index string `koanf:"index" validate:"oneof=scan ngram"`
}

type CacheConfig struct {
	// Backend: none、memory、redis
	Backend string        `koanf:"backend" validate:"oneof=none memory redis"`
	TTL     time.Duration `koanf:"ttl"`

	// MaxEntries 限制 memory 后端的条目数，0 表示不限
	MaxEntries int         `koanf:"max_entries" validate:"gte=0"`
	Redis      RedisConfig `koanf:"redis"`
}

type RedisConfig struct {
	Addr             string        `koanf:"addr"`
	Password         string        `koanf:"password"`
	DB               int           `koanf:"db" validate:"gte=0"`
	Prefix           string        `koanf:"prefix"`
	FailureThreshold uint32        `koanf:"failure_threshold"`
	Timeout          time.Duration `koanf:"timeout"`
}

type RebuildConfig struct {
	// Schedule 为 cron 表达式（支持 @every 1h），为空表示不定时重建
	Schedule string `koanf:"schedule"`
	// Timeout 限制一次重建（定时或 /admin/rebuild）的耗时，0 表示不限；
	// /admin/rebuild 的写超时按它单独放宽，不受 server.write_timeout 约束
	Timeout time.Duration `koanf:"timeout" validate:"gte=0"`
}

// Default 返回默认配置。
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:            ":8080",
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 15 * time.Second,
			CORSOrigins:     []string{"*"},
			RateLimit:       600,
		},
		Data: DataConfig{
			CatalogDir:   "data/products",
			Interactions: "data/events.csv",
			Ratings:      "data/ratings.jsonl",
		},
		KNN: KNNConfig{K: 6, Anchor: "random"},
		Hybrid: HybridConfig{
			Factors:        100,
			Epochs:         20,
			LearningRate:   0.005,
			Regularization: 0.02,
			Alpha:          0.5,
		},
		Suggest: SuggestConfig{MaxSuggestions: 5, Index: "scan"},
		Cache: CacheConfig{
			Backend:    "memory",
			TTL:        10 * time.Minute,
			MaxEntries: 10000,
			Redis:   RedisConfig{Addr: "127.0.0.1:6379", Prefix: "catalogrec:", FailureThreshold: 5, Timeout: 30 * time.Second},
		},
		Rebuild: RebuildConfig{Timeout: 10 * time.Minute},
		Logging: logging.Config{Level: "info", Format: "json", Timestamp: true},
	}
}

var sliceKeys = []string{"server.cors_origins"}

// Load 读取配置。path 为空时依次尝试 $CATALOGREC_CONFIG 与 ./catalogrec.yaml，文件不存在则只用默认值与环境变量。
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(Default(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}

	if path == "" {
		path = findFile()
	}
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}
	if err := splitSlices(k); err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate 校验字段约束。
func (c *Config) Validate() error {
	v := validator.New()
	if err := v.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if c.Cache.Backend == "redis" && c.Cache.Redis.Addr == "" {
		return fmt.Errorf("invalid config: cache.redis.addr is required for redis backend")
	}
	return nil
}

func findFile() string {
	if p := os.Getenv(PathEnvVar); p != "" {
		return p
	}
	for _, p := range []string{"catalogrec.yaml", "catalogrec.yml"} {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// envKey: CATALOGREC_HYBRID__ALPHA → hybrid.alpha
func envKey(s string) string {
	s = strings.TrimPrefix(s, EnvPrefix)
	if s == "CONFIG" {
		return ""
	}
	return strings.ReplaceAll(strings.ToLower(s), "__", ".")
}

func splitSlices(k *koanf.Koanf) error {
	for _, key := range sliceKeys {
		s, ok := k.Get(key).(string)
		if !ok {
			continue
		}
		var parts []string
		for _, p := range strings.Split(s, ",") {
			if p = strings.TrimSpace(p); p != "" {
				parts = append(parts, p)
			}
		}
		if err := k.Set(key, parts); err != nil {
			return fmt.Errorf("set %s: %w", key, err)
		}
	}
	return nil
}
