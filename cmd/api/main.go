package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jackc/pgx/v5/pgxpool"

	"bookscan/internal/admission"
	"bookscan/internal/barcode"
	"bookscan/internal/collection"
	"bookscan/internal/config"
	"bookscan/internal/httpx"
	"bookscan/internal/logging"
	"bookscan/internal/lookup"
	"bookscan/internal/lookupcache"
	"bookscan/internal/platform/openlibrary"
	"bookscan/internal/scanner"
	"bookscan/internal/scansession"
)

const (
	shutdownTimeout  = 10 * time.Second
	janitorInterval  = time.Minute
	sharedCacheLimit = 10000
	maxBodyBytes     = 1 << 20
)

// sharedCatalogPolicy gates the catalog endpoints, which all users share.
// Each scan session has its own, stricter window.
var sharedCatalogPolicy = admission.Policy{Window: time.Minute, MaxRequests: 60}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "api: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	config.LoadEnvFiles()
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if err := cfg.RequireJWTSecret(); err != nil {
		return err
	}
	logger, err := logging.New(logging.Options{Level: cfg.LogLevel, Format: cfg.LogFormat})
	if err != nil {
		return fmt.Errorf("logging: %w", err)
	}
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := openDB(ctx, cfg.DBDSN)
	if err != nil {
		return err
	}
	defer pool.Close()
	logger.Info("database connection OK", slog.String("dsn", redactDSN(cfg.DBDSN)))

	store := collection.NewPostgresStore(pool, 5*time.Second, logging.NewComponentLogger(logger, "collection"))
	defer store.Close()
	provider := openlibrary.NewClient(
		cfg.OpenLibrary.UserAgent,
		cfg.OpenLibrary.RPS,
		cfg.OpenLibrary.MaxRetries,
		openlibrary.WithBaseURL(cfg.OpenLibrary.BaseURL),
	)

	sessions := scansession.NewManager(
		coordinatorFactory(cfg.Scan, provider, store, logger),
		cfg.SessionIdleTimeout,
		logging.NewComponentLogger(logger, "scansession"),
	)
	defer sessions.CloseAll()
	sessions.StartJanitor(ctx, janitorInterval)

	shared := lookup.NewClient(
		provider,
		lookupcache.New(lookupcache.WithTTL(cfg.Scan.CacheTTL), lookupcache.WithMaxEntries(sharedCacheLimit)),
		admission.New(sharedCatalogPolicy),
		logging.NewComponentLogger(logger, "catalog"),
	)

	validate := validator.New()
	if err := barcode.RegisterValidation(validate); err != nil {
		return fmt.Errorf("register validation: %w", err)
	}

	rateLimit := httpx.NewRateLimitMiddleware(cfg.HTTPRateRPS, cfg.HTTPRateBurst)
	rateLimit.StartJanitor(ctx, janitorInterval)

	handler := scansession.NewHTTPHandler(sessions, store, shared, validate, logging.NewComponentLogger(logger, "http"))
	router := newRouter(routerDeps{
		handler:   handler,
		auth:      httpx.AuthMiddleware(cfg.JWTSecret, logger),
		rateLimit: rateLimit,
		ready:     pool.Ping,
		logger:    logger,
		hsts:      cfg.EnableHSTS,
	})

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting server", slog.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server: %w", err)
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	sessions.CloseAll()
	store.Close()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

// coordinatorFactory gives every session its own cache and admission window
// over the shared provider and store.
func coordinatorFactory(scan config.Scan, provider lookup.Service, store collection.Store, logger *slog.Logger) scansession.Factory {
	return func(userID string) *scanner.Coordinator {
		client := lookup.NewClient(
			provider,
			lookupcache.New(lookupcache.WithTTL(scan.CacheTTL)),
			admission.New(scan.AdmissionPolicy()),
			logging.NewComponentLogger(logger, "lookup"),
		)
		return scanner.New(userID, client, store, scan.Coordinator(),
			scanner.WithLogger(logging.NewComponentLogger(logger, "scanner").With(slog.String("user_id", userID))),
		)
	}
}

type routerDeps struct {
	handler   *scansession.HTTPHandler
	auth      httpx.Middleware
	rateLimit *httpx.RateLimitMiddleware
	ready     func(context.Context) error
	logger    *slog.Logger
	hsts      bool
}

func newRouter(d routerDeps) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("GET /readyz", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 500*time.Millisecond)
		defer cancel()
		if err := d.ready(ctx); err != nil {
			http.Error(w, "db not ready", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})

	// rate limit after auth so signed-in users are limited per user
	auth := func(next http.Handler) http.Handler {
		return d.auth(d.rateLimit.Middleware(next))
	}
	d.handler.Register(mux, auth)

	return httpx.Chain(mux,
		httpx.RequestIDMiddleware,
		httpx.AccessLogMiddleware(d.logger),
		httpx.RecoveryMiddleware(d.logger),
		httpx.SecurityHeadersMiddleware(d.hsts),
		httpx.RequestSizeLimitMiddleware(maxBodyBytes),
	)
}

func openDB(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("create db pool: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database (%s): %w", redactDSN(dsn), err)
	}
	return pool, nil
}

func redactDSN(dsn string) string {
	const marker = "://"
	start := strings.Index(dsn, marker)
	if start < 0 {
		return dsn
	}
	start += len(marker)
	end := strings.Index(dsn[start:], "@")
	if end < 0 {
		return dsn
	}
	return dsn[:start] + "***" + dsn[start+end:]
}
