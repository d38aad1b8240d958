package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/peoplesearch-cli/internal/engine"
	"github.com/sells-group/peoplesearch-cli/internal/model"
	"github.com/sells-group/peoplesearch-cli/internal/store"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the task API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		eng := newEngine(st, nil)

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: newAPIRouter(ctx, eng, st),
		}

		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			srv.Shutdown(context.Background())
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

// newAPIRouter builds the task API. runCtx governs the lifetime of
// submitted task runs, which outlive their HTTP requests.
func newAPIRouter(runCtx context.Context, eng *engine.Engine, st store.Store) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST"},
	}))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Post("/tasks", func(w http.ResponseWriter, req *http.Request) {
		var body engine.Request
		if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
			return
		}
		if err := body.Validate(); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
			return
		}

		// Mint the id here so the caller can poll and cancel by id
		// without racing the asynchronous run.
		body.ID = uuid.New().String()

		// The run outlives the HTTP request; progress is polled via
		// GET /tasks/{id}.
		go func() {
			stats, err := eng.Run(runCtx, body)
			if err != nil {
				zap.L().Error("api task failed", zap.String("task_id", body.ID), zap.Error(err))
				return
			}
			zap.L().Info("api task settled",
				zap.String("task_id", body.ID),
				zap.String("status", string(stats.Status)),
				zap.Int("total_results", stats.TotalResults),
			)
		}()

		writeJSON(w, http.StatusAccepted, map[string]string{"id": body.ID, "status": "accepted"})
	})

	r.Get("/tasks", func(w http.ResponseWriter, req *http.Request) {
		tasks, err := st.ListTasks(req.Context(), store.TaskFilter{
			Status: model.TaskStatus(req.URL.Query().Get("status")),
			Limit:  100,
		})
		if err != nil {
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
			return
		}
		writeJSON(w, http.StatusOK, tasks)
	})

	r.Get("/tasks/{id}", func(w http.ResponseWriter, req *http.Request) {
		t, err := st.GetTask(req.Context(), chi.URLParam(req, "id"))
		if errors.Is(err, store.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "task not found"})
			return
		}
		if err != nil {
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
			return
		}
		writeJSON(w, http.StatusOK, t)
	})

	r.Post("/tasks/{id}/cancel", func(w http.ResponseWriter, req *http.Request) {
		id := chi.URLParam(req, "id")
		if err := eng.Cancel(id); err != nil {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "no running task with that id"})
			return
		}
		writeJSON(w, http.StatusAccepted, map[string]string{"status": "cancelling", "id": id})
	})

	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
