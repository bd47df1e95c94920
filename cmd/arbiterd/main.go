package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"murmur/arbiter/internal/api"
	"murmur/arbiter/internal/config"
	"murmur/arbiter/internal/health"
	"murmur/arbiter/internal/hostws"
	"murmur/arbiter/internal/profile"
	"murmur/arbiter/internal/trace"
)

func main() {
	// Load .env file if present (ignored if missing)
	_ = godotenv.Load()

	cfg := config.Load()

	var backend profile.Persistence
	if cfg.Profile.DBPath != "" {
		db, err := profile.OpenSQLite(cfg.Profile.DBPath)
		if err != nil {
			log.Fatalf("open profile db %s: %v", cfg.Profile.DBPath, err)
		}
		backend = db
		log.Printf("profiles persisted to %s", cfg.Profile.DBPath)
	}
	profiles := profile.NewStore(backend, cfg.Profile.PersistEvery)

	traces := trace.New()
	reg := hostws.NewRegistry()
	wss := hostws.NewServer(cfg, traces, profiles, reg)
	h := api.NewHandlers(cfg, traces, profiles, reg)

	mux := http.NewServeMux()
	mux.Handle("/", api.NewRouter(h))
	mux.HandleFunc("/ws/host", wss.HandleHostWS)
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/readyz", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()
		st := health.CheckAll(ctx, cfg)
		if !st.OK {
			http.Error(w, st.String(), http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte("ok"))
	})

	addr := ":" + cfg.Server.Port
	srv := &http.Server{
		Addr:              addr,
		Handler:           logMiddleware(mux),
		ReadHeaderTimeout: 5 * time.Second,
	}

	// Graceful shutdown on SIGINT/SIGTERM
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigc
		log.Printf("shutdown signal received; stopping server...")
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}()

	log.Printf("arbiterd starting on %s", addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Println("server error:", err)
		os.Exit(1)
	}

	// Flush any unsaved profile snapshots before exiting.
	if err := profiles.Close(); err != nil {
		log.Printf("profile store close: %v", err)
	}
}

func logMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		log.Printf("%s %s %s", r.Method, r.URL.Path, time.Since(start))
	})
}
