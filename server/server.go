// Package server 是 Engine 的 HTTP 边界：参数解析、错误码映射与 JSON 输出。
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rushteam/catalogrec/model"
	"github.com/rushteam/catalogrec/recall"
	"github.com/rushteam/catalogrec/service"
	"github.com/rushteam/catalogrec/suggest"
)

// Engine 是 HTTP 层依赖的推荐能力，*service.Engine 实现了它。
type Engine interface {
	Snapshot() *service.Snapshot
	Rebuild(ctx context.Context) error
	Autocomplete(ctx context.Context, query string, max int) (suggest.Result, error)
	RecommendSimilarProducts(ctx context.Context, productID string, n int) ([]recall.Neighbor, error)
	RecommendForUser(ctx context.Context, userID string, n int, opts service.UserOptions) ([]model.Prediction, error)
	RecommendFromHistory(ctx context.Context, userID string, n int) ([]recall.Neighbor, error)
	UserHistory(ctx context.Context, userID string) ([]recall.ProductMeta, error)
	NormalizeTitle(ctx context.Context, title string) (service.TitleInfo, error)
}

var _ Engine = (*service.Engine)(nil)

// Config 是路由层配置。
type Config struct {
	CORSOrigins []string
	// RateLimit 每个 IP 每分钟请求数，0 表示不限流
	RateLimit int
	// RebuildTimeout 限制 /admin/rebuild 的耗时，0 表示不限
	RebuildTimeout time.Duration
}

// NewRouter 注册全部路由。
func NewRouter(e Engine, cfg Config) http.Handler {
	h := &handler{engine: e, rebuildTimeout: cfg.RebuildTimeout}

	r := chi.NewRouter()
	r.Use(requestID)
	r.Use(chimiddleware.RealIP)
	r.Use(accessLog)
	r.Use(chimiddleware.Recoverer)

	origins := cfg.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID", headerTier},
		MaxAge:         300,
	}))

	r.Get("/health", h.health)
	r.Handle("/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		if cfg.RateLimit > 0 {
			r.Use(httprate.LimitByIP(cfg.RateLimit, time.Minute))
		}
		r.Get("/autocomplete", h.autocomplete)
		r.Get("/recommendations/similar", h.similar)
		r.Get("/recommendations/user", h.forUser)
		r.Get("/recommendation", h.fromHistory)
		r.Get("/get_recommendation", h.fromHistory)
		r.Get("/history", h.history)
		r.Get("/normalize", h.normalize)
	})

	r.Post("/admin/rebuild", h.rebuild)
	return r
}
