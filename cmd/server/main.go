package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/term"

	"salesdash/internal/config"
	dashhandlers "salesdash/internal/handlers/dashboard"
	"salesdash/internal/handlers/explorer"
	"salesdash/internal/handlers/system"
	"salesdash/internal/services/cache"
	"salesdash/internal/services/dashboard"
	"salesdash/internal/services/dataloader"
	"salesdash/internal/services/source"
	"salesdash/internal/services/storage"
	"salesdash/internal/telemetry"
	"salesdash/internal/templates"
	"salesdash/internal/version"
)

var (
	store    *storage.Storage
	datasets *cache.DatasetCache
	engine   *dashboard.Engine
	tel      *telemetry.Telemetry
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}
	setupLogging(cfg.Debug)

	info := version.Get()
	log.Info().Str("version", info.Short()).Str("listen", cfg.ListenAddr).Msg("Starting sales dashboard")
	if w := info.Warning(); w != "" {
		log.Warn().Msg(w)
	}

	if cfg.Source.Kind == config.SourceFile {
		if err := openStorage(cfg); err != nil {
			log.Fatal().Err(err).Str("dir", cfg.DataDirectory).Msg("Cannot open data directory")
		}
	}

	if err := SetupDependencies(cfg); err != nil {
		log.Fatal().Err(err).Msg("Setup failed")
	}

	// Warm the cache so a broken source shows up in the log at startup
	go func() {
		if _, err := datasets.Get(context.Background()); err != nil {
			log.Error().Err(err).Msg("Initial dataset load failed")
		}
	}()

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           SetupRouter(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Server failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Shutdown failed")
	}
}

func setupLogging(debug bool) {
	zerolog.TimeFieldFormat = time.RFC3339
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	}
}

// openStorage opens the data directory, prompting for the passphrase when it is encrypted
func openStorage(cfg *config.Config) error {
	if err := cfg.EnsureDataDirectory(); err != nil {
		return err
	}
	var err error
	store, err = storage.New(cfg.DataDirectory)
	if err != nil {
		return err
	}
	if !store.IsEncrypted() {
		return nil
	}

	password := cfg.Password
	if password == "" {
		if !term.IsTerminal(int(os.Stdin.Fd())) {
			return errors.New("data directory is encrypted; set SALESDASH_PASSWORD")
		}
		fmt.Fprint(os.Stderr, "Data directory password: ")
		raw, err := term.ReadPassword(int(os.Stdin.Fd()))
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return fmt.Errorf("read password: %w", err)
		}
		password = string(raw)
	}
	if err := store.Unlock(password); err != nil {
		return err
	}
	log.Info().Msg("Data directory unlocked")
	return nil
}

// SetupDependencies builds the load → cache → engine pipeline and hands it to the handlers.
// store must already be open for file sources.
func SetupDependencies(cfg *config.Config) error {
	src, err := source.FromConfig(context.Background(), cfg.Source, store)
	if err != nil {
		return fmt.Errorf("source: %w", err)
	}

	tel = telemetry.New()
	datasets = cache.New(dataloader.New(src), tel.ObserveLoad)

	engine, err = dashboard.NewEngine(datasets, dashboard.OptionsFromConfig(cfg), tel)
	if err != nil {
		return err
	}
	sessions := dashboard.NewSessions(engine)

	renderer, err := templates.New(cfg.TemplatesDirectory, cfg.Debug, cfg.CurrencySymbol)
	if err != nil {
		return fmt.Errorf("templates: %w", err)
	}

	v := version.Get().Short()
	dashhandlers.Initialize(engine, sessions, datasets, renderer, v)
	explorer.Initialize(engine, renderer, v)
	system.Initialize(store, filepath.Join(cfg.DataDirectory, "cache"))

	log.Debug().
		Str("source", src.Name()).
		Str("scope", engine.Scope()).
		Msg("Dependencies ready")
	return nil
}

// SetupRouter creates the router with every route registered
func SetupRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/dashboard", http.StatusTemporaryRedirect)
	})

	dashhandlers.RegisterRoutes(r)
	explorer.RegisterRoutes(r)
	system.RegisterRoutes(r)
	r.Handle("/metrics", tel.Handler())

	return r
}

// requestLogger logs each request through zerolog
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		defer func() {
			log.Debug().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", ww.Status()).
				Int("bytes", ww.BytesWritten()).
				Dur("took", time.Since(start)).
				Str("request_id", middleware.GetReqID(r.Context())).
				Msg("request")
		}()
		next.ServeHTTP(ww, r)
	})
}
