// cmd/server/server.go
package main

import (
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/codr1/wnf/internal/api"
	"github.com/codr1/wnf/internal/api/games"
	"github.com/codr1/wnf/internal/api/players"
)

func newServer(a *app) *http.Server {
	router := http.NewServeMux()

	// WithMetrics reads the matched route pattern, so it wraps the router
	// directly.
	handler := api.ChainMiddleware(
		router,
		api.WithMetrics(a.metrics),
		api.WithLogging,
		api.WithRecovery,
		api.WithRequestID,
	)

	gamesHandler := registerRoutes(router, a)

	// No WriteTimeout: event streams stay open.
	server := &http.Server{
		Addr:        ":" + strconv.Itoa(a.cfg.App.Port),
		Handler:     handler,
		ReadTimeout: 15 * time.Second,
		IdleTimeout: 60 * time.Second,
	}
	server.RegisterOnShutdown(gamesHandler.CloseStreams)
	return server
}

func registerRoutes(mux *http.ServeMux, a *app) *games.Handler {
	admin := api.WithAdminAuth(a.cfg.App.AdminPasswordHash)
	if a.cfg.App.AdminPasswordHash == "" {
		log.Warn().Msg("ADMIN_PASSWORD_HASH is not set; organiser routes are disabled")
	}

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		if err := a.db.PingContext(r.Context()); err != nil {
			log.Ctx(r.Context()).Error().Err(err).Msg("Health check failed")
			http.Error(w, "database unavailable", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	if a.metrics != nil {
		mux.Handle("GET /metrics", a.metrics.Handler())
	}

	gamesHandler := games.NewHandler(a.roster, a.bus,
		games.WithLimiter(a.limiter),
		games.WithTrustProxy(a.cfg.App.TrustProxy),
	)
	gamesHandler.RegisterRoutes(mux, admin)

	players.NewHandler(a.db.Queries).RegisterRoutes(mux, admin)
	return gamesHandler
}
