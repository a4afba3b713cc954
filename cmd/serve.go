package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/DjEugeny/contact-parser-sub001/internal/extractor"
	"github.com/DjEugeny/contact-parser-sub001/internal/model"
	"github.com/DjEugeny/contact-parser-sub001/internal/ratelimit"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the extraction HTTP server",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := cfg.Validate("serve"); err != nil {
			return err
		}

		ext, err := buildExtractor()
		if err != nil {
			return err
		}

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: newRouter(ext),
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			srv.Shutdown(ctx)
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

func newRouter(ext *extractor.Extractor) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type"},
	}))

	r.Get("/api/health", func(w http.ResponseWriter, _ *http.Request) {
		respondJSON(w, http.StatusOK, ext.Health())
	})

	r.Get("/api/stats", func(w http.ResponseWriter, _ *http.Request) {
		health := ext.Health()
		stats := make(map[string]ratelimit.Stats, len(health.Providers))
		for id, p := range health.Providers {
			stats[id] = p.Stats
		}
		respondJSON(w, http.StatusOK, stats)
	})

	r.Post("/api/extract", func(w http.ResponseWriter, req *http.Request) {
		var body struct {
			Text     string              `json:"text"`
			Metadata model.EmailMetadata `json:"metadata"`
			Test     bool                `json:"test"`
		}
		if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
			respondJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
			return
		}
		if body.Text == "" {
			respondJSON(w, http.StatusBadRequest, map[string]string{"error": "text is required"})
			return
		}

		meta := body.Metadata
		if body.Test {
			meta = nil
		} else if meta == nil {
			meta = model.EmailMetadata{}
		}

		result := ext.Extract(req.Context(), body.Text, meta)
		status := http.StatusOK
		if !result.Success {
			status = http.StatusBadGateway
		}
		respondJSON(w, status, result)
	})

	r.Post("/api/reset", func(w http.ResponseWriter, _ *http.Request) {
		ext.Reset()
		respondJSON(w, http.StatusOK, map[string]string{"status": "reset"})
	})

	return r
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Error("write response", zap.Error(err))
	}
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
