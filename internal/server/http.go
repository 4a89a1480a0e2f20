package server

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const metricsPath = "/metrics"

type ServerManagerCtx struct {
	logger zerolog.Logger
	config *Config
	router *chi.Mux
	server *http.Server
}

func New(config *Config) *ServerManagerCtx {
	logger := log.With().Str("module", "server").Logger()

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	if config.Proxy {
		router.Use(middleware.RealIP)
	}

	router.Use(middleware.RequestLogger(&logformatter{logger}))
	router.Use(middleware.Recoverer)

	if config.PProf {
		withPProf(router)
		logger.Info().Msgf("with pprof endpoint at %s", pprofPath)
	}

	if config.Metrics {
		router.Method(http.MethodGet, metricsPath, promhttp.Handler())
		logger.Info().Msgf("with metrics endpoint at %s", metricsPath)
	}

	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("true"))
	})

	// plain text, players show the body as is
	router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "404 not found", http.StatusNotFound)
	})

	return &ServerManagerCtx{
		logger: logger,
		config: config,
		router: router,
		server: &http.Server{
			Addr:              config.Bind,
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
			ErrorLog:          errorLog(logger),
		},
	}
}

func (s *ServerManagerCtx) Start() {
	if s.config.SSLCert != "" && s.config.SSLKey != "" {
		s.logger.Warn().Msg("TLS support is provided for convenience, but you should never use it in production. Use a reverse proxy (apache nginx caddy) instead!")
		go func() {
			if err := s.server.ListenAndServeTLS(s.config.SSLCert, s.config.SSLKey); err != http.ErrServerClosed {
				s.logger.Panic().Err(err).Msg("unable to start https server")
			}
		}()
		s.logger.Info().Msgf("https listening on %s", s.server.Addr)
	} else {
		go func() {
			if err := s.server.ListenAndServe(); err != http.ErrServerClosed {
				s.logger.Panic().Err(err).Msg("unable to start http server")
			}
		}()
		s.logger.Info().Msgf("http listening on %s", s.server.Addr)
	}
}

func (s *ServerManagerCtx) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	return s.server.Shutdown(ctx)
}

// Handle routes pattern to a module, the module sees full request paths.
func (s *ServerManagerCtx) Handle(pattern string, handler http.Handler) {
	s.router.Handle(pattern, handler)
}

func (s *ServerManagerCtx) Handler() http.Handler {
	return s.router
}
