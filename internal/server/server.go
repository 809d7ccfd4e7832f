package server

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/straja-ai/adaware/internal/auth"
	"github.com/straja-ai/adaware/internal/config"
	"github.com/straja-ai/adaware/internal/engine"
	"github.com/straja-ai/adaware/internal/history"
	"github.com/straja-ai/adaware/internal/logger"
	"github.com/straja-ai/adaware/internal/telemetry"
	"github.com/straja-ai/adaware/internal/verdict"
)

// Server wraps the HTTP surface of AdAware.
type Server struct {
	cfg    *config.Config
	engine *engine.Engine
	store  history.Store // nil when history is disabled
	auth   *auth.Auth
	tel    *telemetry.Provider
	router *gin.Engine
}

// New creates a server with all routes registered.
func New(cfg *config.Config, eng *engine.Engine, store history.Store, authz *auth.Auth, tel *telemetry.Provider) *Server {
	if tel == nil {
		tel = telemetry.Noop()
	}
	registerValidators()

	s := &Server{cfg: cfg, engine: eng, store: store, auth: authz, tel: tel}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(otelgin.Middleware(cfg.Telemetry.Service))
	r.Use(requestID(), accessLog(), limitBody(cfg.Server.MaxBodyBytes))

	r.GET("/healthz", s.handleHealth)
	if h := tel.MetricsHandler(); h != nil {
		r.GET("/metrics", gin.WrapH(h))
	}

	v1 := r.Group("/v1", s.authenticate())
	v1.POST("/analyze", s.handleAnalyze)
	v1.GET("/history", s.handleHistoryList)
	v1.GET("/history/:id", s.handleHistoryGet)
	v1.POST("/feedback", s.handleFeedback)
	v1.GET("/stats", s.handleStats)

	r.NoRoute(func(c *gin.Context) {
		writeError(c, http.StatusNotFound, "not_found", "route not found")
	})

	s.router = r
	return s
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves until ctx is canceled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	srv := &http.Server{
		Addr:         s.cfg.Server.Addr,
		Handler:      s.router,
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Log.Infof("AdAware running on %s", s.cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Log.Info("shutting down http server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-errCh
}

// validateAdLabel backs the adlabel tag: final verdict labels in any case.
func validateAdLabel(fl validator.FieldLevel) bool {
	switch verdict.Label(strings.ToUpper(strings.TrimSpace(fl.Field().String()))) {
	case verdict.Safe, verdict.LowRisk, verdict.ModerateRisk, verdict.HighRisk:
		return true
	default:
		return false
	}
}

func registerValidators() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		// re-registering replaces the func, so repeated New calls are harmless
		_ = v.RegisterValidation("adlabel", validateAdLabel)
	}
}
