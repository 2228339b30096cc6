package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/ogurasousui/codex-http-clean-arch/internal/platform/metrics"
	"github.com/unrolled/secure"
	"go.uber.org/zap"
)

const (
	defaultRequestTimeout = 30 * time.Second
	healthCheckTimeout    = 2 * time.Second
)

// Pinger は依存先の疎通確認を行います。
type Pinger interface {
	Ping(ctx context.Context) error
}

// RouterParams は HTTP ルーター構築に必要な依存関係です。
type RouterParams struct {
	Logger             *zap.Logger
	Companies          *CompanyHandler
	Metrics            *metrics.Metrics
	Health             Pinger
	RequestTimeout     time.Duration
	RateLimitPerMinute int
}

// NewRouter は共通ミドルウェア、運用エンドポイント、会社 API を備えた chi ルーターを構築します。
func NewRouter(params RouterParams) http.Handler {
	logger := params.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	timeout := params.RequestTimeout
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}

	secureMiddleware := secure.New(secure.Options{
		FrameDeny:             true,
		ContentTypeNosniff:    true,
		BrowserXssFilter:      true,
		ReferrerPolicy:        "no-referrer",
		ContentSecurityPolicy: "default-src 'none'; frame-ancestors 'none'",
	})

	r := chi.NewRouter()
	r.Use(chimw.RealIP)
	r.Use(RequestID)
	r.Use(AccessLog(logger))
	r.Use(chimw.Recoverer)
	r.Use(secureMiddleware.Handler)
	r.Use(params.Metrics.Middleware)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeProblem(w, logger, Problem{
			Type:      ProblemTypeNotFound,
			Title:     "Not Found",
			Status:    http.StatusNotFound,
			Instance:  r.URL.Path,
			RequestID: RequestIDFromContext(r.Context()),
		})
	})

	r.Get("/healthz", healthHandler(params.Health, logger))
	r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())

	if params.Companies != nil {
		r.Group(func(r chi.Router) {
			r.Use(chimw.Timeout(timeout))
			if params.RateLimitPerMinute > 0 {
				r.Use(httprate.Limit(
					params.RateLimitPerMinute,
					time.Minute,
					httprate.WithKeyFuncs(httprate.KeyByIP),
					httprate.WithLimitHandler(rateLimited(logger)),
				))
			}
			r.Route(params.Companies.Root(), params.Companies.Routes)
		})
	}

	return r
}

func rateLimited(logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeProblem(w, logger, Problem{
			Type:      ProblemTypeRateLimited,
			Title:     "Too Many Requests",
			Status:    http.StatusTooManyRequests,
			Instance:  r.URL.Path,
			RequestID: RequestIDFromContext(r.Context()),
		})
	}
}

func healthHandler(pinger Pinger, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if pinger != nil {
			ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
			defer cancel()
			if err := pinger.Ping(ctx); err != nil {
				logger.Warn("health check failed", zap.Error(err))
				writeJSON(w, logger, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
				return
			}
		}
		writeJSON(w, logger, http.StatusOK, map[string]string{"status": "ok"})
	}
}
