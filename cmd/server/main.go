// cmd/server/main.go
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/codr1/wnf/internal/config"
	"github.com/codr1/wnf/internal/db"
	"github.com/codr1/wnf/internal/email"
	"github.com/codr1/wnf/internal/events"
	"github.com/codr1/wnf/internal/metrics"
	"github.com/codr1/wnf/internal/ratelimit"
	"github.com/codr1/wnf/internal/roster"
	"github.com/codr1/wnf/internal/scheduler"
	"github.com/codr1/wnf/internal/selection"
)

func setupLogger(cfg *config.Config) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if cfg.Features.EnableDebug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
	if cfg.IsDevelopment() {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}
	log.Logger = log.With().Str("app", cfg.App.Name).Logger()
}

// app holds everything main builds and later tears down.
type app struct {
	cfg       *config.Config
	db        *db.DB
	bus       events.Bus
	closeBus  func() error
	metrics   *metrics.Manager
	limiter   *ratelimit.Limiter
	roster    *roster.Service
	scheduler *scheduler.Service
}

func main() {
	configPath := flag.String("config", "config/config.yaml", "Path to the YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", *configPath).Msg("Failed to load configuration")
	}

	setupLogger(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = log.Logger.WithContext(ctx)

	a, err := newApp(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize application")
	}
	defer a.close()

	server := newServer(a)

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info().Int("port", cfg.App.Port).Str("environment", cfg.App.Environment).Msg("Starting server")
		if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	if a.scheduler != nil {
		a.scheduler.Start()
	}

	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.App.ShutdownTimeout)*time.Second)
		defer cancel()

		log.Info().Msg("Shutting down server")
		if a.scheduler != nil {
			if err := a.scheduler.Stop(); err != nil {
				log.Error().Err(err).Msg("Failed to stop scheduler")
			}
		}
		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown error: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("Server terminated with error")
		a.close()
		os.Exit(1)
	}
}

func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	a := &app{cfg: cfg}

	database, err := db.NewFromConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	a.db = database

	if err := a.setupBus(ctx); err != nil {
		a.close()
		return nil, err
	}

	if cfg.Features.EnableMetrics {
		a.metrics = metrics.NewManager()
	}

	opts := []roster.Option{
		roster.WithMetrics(a.metrics),
		roster.WithDefaults(roster.Defaults{
			XPSlots:     cfg.Selection.DefaultXPSlots,
			RandomSlots: cfg.Selection.DefaultRandomSlots,
			BaseURL:     cfg.App.BaseURL,
		}),
	}
	if cfg.Selection.Seed != 0 {
		opts = append(opts, roster.WithRandomSource(selection.NewSource(cfg.Selection.Seed)))
	}
	if cfg.Email.Enabled {
		sender, err := email.NewSESClient(ctx, cfg.Email)
		if err != nil {
			a.close()
			return nil, fmt.Errorf("create email sender: %w", err)
		}
		opts = append(opts, roster.WithEmailSender(sender))
		log.Info().Str("region", cfg.Email.Region).Msg("Selection notices enabled")
	}

	svc, err := roster.NewService(a.db, a.bus, opts...)
	if err != nil {
		a.close()
		return nil, fmt.Errorf("create roster service: %w", err)
	}
	a.roster = svc

	a.limiter = ratelimit.New(ratelimit.DefaultConfig())

	if cfg.Selection.JobEnabled {
		sched, err := scheduler.New()
		if err != nil {
			a.close()
			return nil, fmt.Errorf("create scheduler: %w", err)
		}
		a.scheduler = sched
		if _, err := scheduler.RegisterSelectionJob(ctx, sched, svc, cfg.Selection.JobCron); err != nil {
			a.close()
			return nil, fmt.Errorf("register selection job: %w", err)
		}
		log.Info().Str("cron", cfg.Selection.JobCron).Msg("Scheduled selection enabled")
	}

	return a, nil
}

// setupBus uses Redis pub/sub when configured so several server instances
// share events, and an in-process bus otherwise.
func (a *app) setupBus(ctx context.Context) error {
	if !a.cfg.Redis.Enabled {
		bus := events.NewMemoryBus()
		a.bus, a.closeBus = bus, bus.Close
		return nil
	}

	client, err := events.ConnectRedis(ctx, events.RedisOptions{
		Addr:     a.cfg.Redis.Addr,
		Password: a.cfg.Redis.Password,
		DB:       a.cfg.Redis.DB,
	})
	if err != nil {
		return fmt.Errorf("connect redis: %w", err)
	}
	bus := events.NewRedisBus(client)
	a.bus, a.closeBus = bus, bus.Close
	log.Info().Str("addr", a.cfg.Redis.Addr).Msg("Redis event bus connected")
	return nil
}

// close releases resources in reverse order of creation. Safe to call more
// than once.
func (a *app) close() {
	if a.roster != nil {
		a.roster.Wait()
		a.roster = nil
	}
	if a.limiter != nil {
		a.limiter.Close()
		a.limiter = nil
	}
	if a.closeBus != nil {
		if err := a.closeBus(); err != nil {
			log.Warn().Err(err).Msg("Failed to close event bus")
		}
		a.closeBus = nil
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			log.Warn().Err(err).Msg("Failed to close database")
		}
		a.db = nil
	}
}
