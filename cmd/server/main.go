package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"pagemirror/internal/config"
	"pagemirror/internal/crawler"
	"pagemirror/internal/models"
	"pagemirror/internal/orchestrator"
	"pagemirror/pkg/logger"
)

type mirrorReq struct {
	URL string `json:"url"`
}

type batchReq struct {
	URLs []string `json:"urls"`
}

func main() {
	cfg, err := config.LoadConfig(nil, os.Getenv("PAGEMIRROR_CONFIG"))
	if err != nil {
		panic(err)
	}
	l, err := logger.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		panic(err)
	}
	defer func() { _ = l.Sync() }()

	client := crawler.NewHTTPClient(crawler.Options{
		Timeout:     cfg.FetchTimeout,
		DialTimeout: cfg.DialTimeout,
		SizeCap:     cfg.MaxBodyBytes,
		UserAgent:   cfg.UserAgent,
		RPS:         cfg.FetchRPS,
		Burst:       cfg.FetchBurst,
	})
	orch := orchestrator.New(orchestrator.Options{
		BaseDir:          cfg.BaseDir,
		PageConcurrency:  cfg.PageConcurrency,
		AssetConcurrency: cfg.AssetConcurrency,
	}, client, l)

	srv := &http.Server{
		Addr:         cfg.ServerAddr,
		Handler:      newRouter(orch, l),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		l.Infof("server listening on %s", cfg.ServerAddr)
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			l.Errorf("server error: %v", err)
		}
	}()

	// graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
	l.Infof("shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(ctx)
	l.Infof("bye")
}

func newRouter(orch *orchestrator.Orchestrator, l *logger.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(logRequest(l))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())

	// POST /mirror  { "url": "https://..." }
	r.Post("/mirror", func(w http.ResponseWriter, r *http.Request) {
		var req mirrorReq
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.URL == "" {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid payload"})
			return
		}
		rep := orch.Build(r.Context(), req.URL)
		if rep.Error != "" {
			writeJSON(w, http.StatusBadGateway, rep)
			return
		}
		writeJSON(w, http.StatusOK, rep)
	})

	// POST /mirror/batch  { "urls": ["https://...", "..."] }
	r.Post("/mirror/batch", func(w http.ResponseWriter, r *http.Request) {
		var req batchReq
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || len(req.URLs) == 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid payload"})
			return
		}
		writeJSON(w, http.StatusOK, orch.Run(r.Context(), req.URLs, models.ModeBuild))
	})

	// GET /metadata?url=https://...  (offline)
	r.Get("/metadata", func(w http.ResponseWriter, r *http.Request) {
		u := r.URL.Query().Get("url")
		if u == "" {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "url query parameter required"})
			return
		}
		rep := orch.Inspect(u)
		switch {
		case rep.Error != "":
			writeJSON(w, http.StatusBadRequest, rep)
		case !rep.Found:
			writeJSON(w, http.StatusNotFound, rep)
		default:
			writeJSON(w, http.StatusOK, rep)
		}
	})

	return r
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func logRequest(l *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			next.ServeHTTP(w, r)
			l.Info("request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Duration("elapsed", time.Since(start)))
		})
	}
}
