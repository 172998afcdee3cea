package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"invoicetrack/internal/app"
	"invoicetrack/internal/config"
	"invoicetrack/internal/logger"
	"invoicetrack/internal/transport/auth"
	"invoicetrack/internal/transport/rest"
	"invoicetrack/internal/transport/websocket"
)

func main() {
	envErr := godotenv.Load()

	cfg := config.Load()
	if err := logger.Setup(cfg.Log); err != nil {
		fmt.Fprintf(os.Stderr, "logger setup: %v\n", err)
		os.Exit(1)
	}
	if envErr != nil {
		log.Info().Msg("no .env file found, using system env or defaults")
	}

	// top-level context which we can cancel on shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	wsHub := websocket.NewHub()
	go wsHub.Run(ctx)

	a, err := app.New(ctx, cfg, app.Options{Hub: wsHub})
	if err != nil {
		log.Fatal().Err(err).Msg("startup failed")
	}
	defer a.Close()

	authn := auth.NewAuthenticator(cfg.AuthTokens, a.Tokens)
	if !authn.Enabled() {
		log.Warn().Msg("no auth tokens configured, API is open")
	}

	handler := rest.NewHandler(a.Invoices, a.Payments, a.Scans, a.Reminders, a.Exports, wsHub)
	router := handler.InitRouterWithAuth(authn.Middleware)

	// public root router; everything else is mounted behind auth
	root := chi.NewRouter()
	root.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		pingCtx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := a.DB.PingContext(pingCtx); err != nil {
			rest.ErrorInternal(w, "database unreachable")
			return
		}
		rest.Success(w, "ok", nil)
	})
	root.Handle("/metrics", promhttp.Handler())

	if a.LocalExports != nil {
		prefix := "/" + strings.Trim(cfg.Storage.PublicPrefix, "/")
		root.Get(prefix+"/{file}", serveExport(a.LocalExports.BaseDir))
	}

	root.Mount("/", router)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      withCORS(root),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 90 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	srvErr := make(chan error, 1)
	go func() {
		log.Info().Str("port", cfg.Port).Msg("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			srvErr <- err
			return
		}
		srvErr <- nil
	}()

	go a.Scans.Run(ctx, cfg.Scan.Interval)
	go cleanupLoop(ctx, a, cfg.ExportRetention)

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-srvErr:
		if err != nil {
			log.Fatal().Err(err).Msg("HTTP server error")
		}
	case sig := <-stop:
		log.Info().Str("signal", sig.String()).Msg("shutdown signal received")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("HTTP server shutdown")
		}

		// stop the hub and tickers, then let running exports finish
		cancel()
		a.Exports.Wait()

		log.Info().Msg("shutdown complete")
	}
}

func serveExport(baseDir string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		file := filepath.Base(chi.URLParam(r, "file"))
		path := filepath.Join(baseDir, file)
		if _, err := os.Stat(path); err != nil {
			if os.IsNotExist(err) {
				http.NotFound(w, r)
				return
			}
			http.Error(w, "failed to access file", http.StatusInternalServerError)
			return
		}

		// prefer original filename in Content-Disposition (strip random prefix)
		orig := file
		if idx := strings.IndexByte(file, '_'); idx >= 0 {
			orig = file[idx+1:]
		}
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", orig))

		http.ServeFile(w, r, path)
	}
}

// cleanupLoop drops generated exports older than retention from disk and
// from the in-process status table.
func cleanupLoop(ctx context.Context, a *app.App, retention time.Duration) {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if a.LocalExports != nil {
				if err := a.LocalExports.CleanupOlderThan(retention); err != nil {
					log.Error().Err(err).Msg("storage cleanup")
				}
			}
			if n := a.Exports.PruneMemory(); n > 0 {
				log.Debug().Int("pruned", n).Msg("expired export statuses")
			}
		}
	}
}

func withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Vary", "Origin")

			w.Header().Set("Access-Control-Allow-Credentials", "true")
			w.Header().Set("Access-Control-Allow-Methods", "GET,POST,PUT,PATCH,DELETE,OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Requested-With")
		}

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}
