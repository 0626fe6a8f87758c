// Command reveal-server is the control plane for one or more contest
// reveal runs: it accepts an event feed over HTTP, streams ingest
// progress over SSE, and exposes a step endpoint that drives the
// reveal state machine once ingest has finished.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"icpc-reveal-engine/internal/config"
	"icpc-reveal-engine/internal/metrics"
	"icpc-reveal-engine/internal/realtime"
	"icpc-reveal-engine/internal/runs"
	"icpc-reveal-engine/internal/store"
	"icpc-reveal-engine/internal/tracing"
	"icpc-reveal-engine/pkg/middleware"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("no .env file found, using system environment variables")
	}

	tracingCfg := tracing.DefaultConfig()
	tracingCfg.ServiceName = "reveal-server"
	if shutdown := tracing.Init(tracingCfg); shutdown != nil {
		defer func() {
			if err := shutdown(context.Background()); err != nil {
				log.Printf("tracing shutdown: %v", err)
			}
		}()
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	registry := runs.NewRegistry()
	guard := middleware.NewGuard()

	r := chi.NewRouter()
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.Timeout(60 * time.Second))
	r.Use(tracing.HTTPMiddleware("reveal-server"))
	r.Use(metrics.HTTPMiddleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:3000", "http://localhost:5173"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", handleHealth)
	r.Handle("/metrics", metrics.MetricsHandler())

	r.Route("/runs", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(guard.RequireBearer)
			r.Post("/", handleCreateRun(registry))
			r.Post("/{runID}/reveal/step", handleRevealStep(registry))
		})

		r.Get("/{runID}/status", handleStatus(registry))
		r.Get("/{runID}/standings", handleStandings(registry))
		r.Get("/{runID}/reveal", handleRevealState(registry))
		r.Get("/{runID}/events", handleEvents(registry))
	})

	port := os.Getenv("PORT")
	if port == "" {
		port = "8090"
	}
	server := &http.Server{Addr: ":" + port, Handler: r}

	go func() {
		log.Printf("reveal-server listening on port %s", port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("reveal-server: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("reveal-server: shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("reveal-server: shutdown error: %v", err)
	}
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":    "healthy",
		"timestamp": time.Now().Format(time.RFC3339),
	})
}

// handleCreateRun starts a new ingest run from the request body
// (newline-delimited feed events) and an optional config.toml passed
// via the X-Config-Path header, pointing at a file reachable from this
// process: the config lives as a CDP sibling file on disk, not
// uploaded inline.
func handleCreateRun(registry *runs.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var cfgApply func(*store.ContestState) error
		if path := r.Header.Get("X-Config-Path"); path != "" {
			cfg, err := config.Load(path)
			if err != nil {
				writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
				return
			}
			cfgApply = cfg.Apply
		}

		run := registry.Start(context.Background(), r.Body, cfgApply)
		writeJSON(w, http.StatusAccepted, map[string]string{"run_id": run.ID})
	}
}

func handleStatus(registry *runs.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		run, err := registry.Get(chi.URLParam(r, "runID"))
		if err != nil {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
			return
		}
		status, reason := run.Status()
		resp := map[string]string{"status": string(status)}
		if reason != "" {
			resp["reason"] = reason
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func handleStandings(registry *runs.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		run, err := registry.Get(chi.URLParam(r, "runID"))
		if err != nil {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
			return
		}
		result := run.Result()
		if result == nil {
			writeJSON(w, http.StatusConflict, map[string]string{"error": "run has not finished ingest"})
			return
		}
		board := result.Finalized
		if r.URL.Query().Get("board") == "pre_freeze" {
			board = result.PreFreeze
		}
		writeJSON(w, http.StatusOK, board)
	}
}

func handleRevealState(registry *runs.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		run, err := registry.Get(chi.URLParam(r, "runID"))
		if err != nil {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
			return
		}
		m, err := run.Machine()
		if err != nil {
			writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"phase": m.Phase.Kind.String(),
			"board": m.Board,
		})
	}
}

func handleRevealStep(registry *runs.Registry) http.HandlerFunc {
	revealMetrics := metrics.NewRevealMetrics()
	return func(w http.ResponseWriter, r *http.Request) {
		run, err := registry.Get(chi.URLParam(r, "runID"))
		if err != nil {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
			return
		}
		m, err := run.Machine()
		if err != nil {
			writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
			return
		}
		res, err := m.Step()
		if err != nil {
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
			return
		}
		revealMetrics.StepTo(m.Phase.Kind.String())
		run.Hub.Broadcast("reveal_step", map[string]interface{}{
			"phase":  m.Phase.Kind.String(),
			"result": res,
		})
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"phase":  m.Phase.Kind.String(),
			"result": res,
		})
	}
}

// handleEvents upgrades the connection to an SSE stream of the run's
// ingest progress and, once reveal steps begin, reveal transitions.
func handleEvents(registry *runs.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		run, err := registry.Get(chi.URLParam(r, "runID"))
		if err != nil {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
			return
		}

		flusher, ok := w.(http.Flusher)
		if !ok {
			http.Error(w, "streaming unsupported", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		flusher.Flush()

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		client := &realtime.Client{
			ID:      uuid.NewString(),
			Channel: make(chan realtime.Event, 16),
			Context: ctx,
			Cancel:  cancel,
			Writer:  w,
		}
		unregister := run.Hub.Register(client)
		defer unregister()

		client.Listen()
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("reveal-server: encode response: %v", err)
	}
}
