package main

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/raine/petition-web/internal/actions"
	"github.com/raine/petition-web/internal/api"
	"github.com/raine/petition-web/internal/config"
	"github.com/raine/petition-web/internal/drafts"
	"github.com/raine/petition-web/internal/google"
	"github.com/raine/petition-web/internal/keepalive"
	"github.com/raine/petition-web/internal/servicetoken"
	"github.com/raine/petition-web/internal/session"
	"github.com/raine/petition-web/internal/storage"
	"github.com/raine/petition-web/internal/web"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	config.LoadEnvFile()

	if missing := config.MissingRequired(); len(missing) > 0 {
		if config.IsInteractiveTerminal() {
			if !config.RunSetupWizard() {
				config.WaitOnWindows()
				os.Exit(1)
			}
		} else {
			config.FatalWithWait("missing required config: %s", strings.Join(missing, ", "))
		}
	}

	cfg, err := config.Load()
	if err != nil {
		config.FatalWithWait("%v", err)
	}

	// JOURNAL_STREAM is set by systemd; journald keeps the logs there.
	if _, underSystemd := os.LookupEnv("JOURNAL_STREAM"); underSystemd || cfg.LogFile == "" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	} else {
		logFile, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			config.FatalWithWait("failed to open log file: %v", err)
		}
		defer logFile.Close()

		consoleWriter := zerolog.ConsoleWriter{Out: os.Stderr}
		fileWriter := zerolog.ConsoleWriter{Out: logFile, NoColor: true}
		log.Logger = log.Output(io.MultiWriter(consoleWriter, fileWriter))

		log.Info().Str("logFile", cfg.LogFile).Msg("logging to file")
	}
	if !cfg.Production() {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}

	encryptionKey, err := storage.DeriveKey(cfg.SessionKey)
	if err != nil {
		config.FatalWithWait("failed to derive encryption key: %v", err)
	}

	// Drafts live in the database regardless of the session backend.
	store, err := storage.NewSQLiteStore(cfg.DBPath, encryptionKey)
	if err != nil {
		config.FatalWithWait("failed to initialize store: %v", err)
	}
	defer store.Close()
	log.Info().Str("dbPath", cfg.DBPath).Msg("store initialized")

	minter, err := servicetoken.NewMinter(cfg.ServiceTokenSecret, cfg.ServiceTokenTTL)
	if err != nil {
		config.FatalWithWait("failed to initialize service tokens: %v", err)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	client := api.NewClient(api.ClientOpts{BaseURL: cfg.APIBaseURL, Timeout: cfg.APITimeout})
	manager := session.NewManager(client, session.WithMetrics(session.NewMetrics(registry)))

	var verifier *google.Verifier
	if cfg.GoogleClientID != "" {
		verifier = google.NewVerifier(google.VerifierOpts{ClientID: cfg.GoogleClientID})
		log.Info().Msg("google sign-in enabled")
	}

	srv, err := web.NewServer(web.Deps{
		Actions:  actions.New(client, minter),
		Sessions: manager,
		Drafts:   drafts.NewService(store),
		Store:    store,
		Sealer:   storage.NewSealer(encryptionKey),
		Google:   verifier,
	}, web.Options{
		Secure:         cfg.Production(),
		SessionBackend: cfg.SessionBackend,
		RequestTimeout: cfg.RequestTimeout,
		Registerer:     registry,
		Gatherer:       registry,
	})
	if err != nil {
		config.FatalWithWait("failed to initialize web server: %v", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	g, ctx := errgroup.WithContext(ctx)

	httpServer := &http.Server{
		Addr:              cfg.Addr,
		Handler:           srv.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	g.Go(func() error {
		log.Info().Str("addr", cfg.Addr).Str("sessionBackend", cfg.SessionBackend).Msg("listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		log.Info().Msg("shutting down http server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	// With cookie sessions there is nothing to check, but drafts still get pruned.
	keepaliveService := keepalive.NewService(store, manager, client, cfg.KeepaliveInterval)
	g.Go(func() error {
		return keepaliveService.Run(ctx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		log.Error().Err(err).Msg("shutdown with error")
	} else {
		log.Info().Msg("shutdown complete")
	}
}
