package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
	"go.uber.org/zap"

	"github.com/stevemurr/simple-review-server/handler"
	"github.com/stevemurr/simple-review-server/store"
)

// collections are seeded from DATA_DIR at startup.
var collections = []string{"businesses", "reviews", "photos"}

func env(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func newLogger(debug bool) (*zap.Logger, error) {
	if debug {
		z := zap.NewDevelopmentConfig()
		z.OutputPaths = []string{"stdout"}
		return z.Build()
	}
	return zap.NewProduction()
}

// corsMiddleware wraps an http.Handler with CORS headers.
func corsMiddleware(next http.Handler, allowedOrigins []string) http.Handler {
	// Fast path: wildcard allows everything.
	allowAll := len(allowedOrigins) == 1 && allowedOrigins[0] == "*"

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if allowAll {
			w.Header().Set("Access-Control-Allow-Origin", "*")
		} else if origin != "" {
			for _, o := range allowedOrigins {
				if strings.TrimSpace(o) == origin {
					w.Header().Set("Access-Control-Allow-Origin", origin)
					w.Header().Set("Vary", "Origin")
					break
				}
			}
		}
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func main() {
	host := env("HOST", "0.0.0.0")
	port := env("PORT", "8000")
	dataDir := env("DATA_DIR", "./data")
	backend := env("STORE_BACKEND", "memory")
	publicDir := env("PUBLIC_DIR", "./public")
	origins := env("ALLOWED_ORIGINS", "*")
	debug := env("DEBUG", "") != ""

	shutdownTimeout, err := time.ParseDuration(env("SHUTDOWN_TIMEOUT", "5s"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid SHUTDOWN_TIMEOUT: %v\n", err)
		os.Exit(1)
	}

	logger, err := newLogger(debug)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()
	log := logger.Sugar()

	s, err := store.New(backend, dataDir)
	if err != nil {
		log.Fatalw("failed to create store", "backend", backend, "error", err)
	}
	defer s.Close()

	loaded, err := store.Seed(s, dataDir, collections...)
	if err != nil {
		log.Fatalw("failed to seed store", "data_dir", dataDir, "error", err)
	}
	for _, c := range collections {
		log.Infow("seeded collection", "collection", c, "records", loaded[c])
	}

	var opts []handler.Option
	if fi, err := os.Stat(publicDir); err == nil && fi.IsDir() {
		opts = append(opts, handler.WithPublicDir(publicDir))
	}
	h := handler.New(s, log, opts...)
	wrapped := handler.RequestLogger(corsMiddleware(h, strings.Split(origins, ",")), log)

	addr := fmt.Sprintf("%s:%s", host, port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           wrapped,
		ReadTimeout:       5 * time.Second,
		ReadHeaderTimeout: 2 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
		ErrorLog:          zap.NewStdLog(logger),
	}

	go func() {
		log.Infow("== Server is running", "addr", addr, "store", backend, "data", dataDir)
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			log.Fatalw("server error", "error", err)
		}
	}()

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)
	sig := <-signals
	log.Infow("received signal, shutting down", "signal", sig.String())

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Errorw("graceful shutdown error", "error", err)
	}
	log.Info("stopped")
}
