// Package server exposes the interpretation bridge over HTTP.
package server

import (
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/caffeineduck/webinterp/bridge"
	"github.com/caffeineduck/webinterp/internal/telemetry"
)

// Config holds the HTTP surface settings.
type Config struct {
	AllowOrigins []string
	// MetricsPath is where Prometheus metrics are served. Empty disables the
	// route.
	MetricsPath string
}

// Server routes HTTP requests to a bridge.
type Server struct {
	engine  *gin.Engine
	bridge  *bridge.Bridge
	metrics *telemetry.Metrics
	logger  zerolog.Logger
}

// New builds the gin engine. metrics may be nil.
func New(b *bridge.Bridge, metrics *telemetry.Metrics, logger zerolog.Logger, cfg Config) *Server {
	s := &Server{
		engine:  gin.New(),
		bridge:  b,
		metrics: metrics,
		logger:  logger.With().Str("component", "http").Logger(),
	}

	s.engine.Use(gin.CustomRecovery(s.recovered))
	s.engine.Use(requestID())
	s.engine.Use(accessLog(s.logger))
	if metrics != nil {
		s.engine.Use(metrics.Middleware())
	}
	s.engine.Use(cors.New(corsConfig(cfg.AllowOrigins)))

	s.attachRoutes(cfg)
	return s
}

func corsConfig(origins []string) cors.Config {
	cc := cors.Config{
		AllowMethods: []string{
			http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch,
			http.MethodDelete, http.MethodHead, http.MethodOptions,
		},
		AllowHeaders:  []string{"*"},
		ExposeHeaders: []string{requestIDHeader},
	}
	for _, o := range origins {
		if o == "*" {
			cc.AllowAllOrigins = true
			return cc
		}
	}
	cc.AllowOrigins = origins
	return cc
}

func (s *Server) attachRoutes(cfg Config) {
	s.engine.GET("/interpret", s.interpret)
	s.engine.GET("/health", s.health)
	if cfg.MetricsPath != "" && s.metrics != nil {
		s.engine.GET(cfg.MetricsPath, gin.WrapH(s.metrics.Handler()))
	}
}

// Engine returns the underlying gin engine.
func (s *Server) Engine() *gin.Engine {
	return s.engine
}

// Handler returns the engine wrapped with server-side tracing.
func (s *Server) Handler() http.Handler {
	return otelhttp.NewHandler(s.engine, "webinterp",
		otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
			return r.Method + " " + r.URL.Path
		}),
	)
}

func (s *Server) recovered(c *gin.Context, v any) {
	s.logger.Error().
		Str("request_id", c.GetString(requestIDKey)).
		Interface("panic", v).
		Msg("handler panicked")
	c.AbortWithStatusJSON(http.StatusInternalServerError, errorBody{
		Error:  "internal server error",
		Reason: bridge.ReasonInternal,
	})
}
