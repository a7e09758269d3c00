package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/Chris-Boho/stingray-vrm-sub000/pkg/config"
	"github.com/Chris-Boho/stingray-vrm-sub000/pkg/db"
	"github.com/Chris-Boho/stingray-vrm-sub000/pkg/logger"
	"github.com/Chris-Boho/stingray-vrm-sub000/services/editor"
	"github.com/Chris-Boho/stingray-vrm-sub000/services/vrm"
)

func init() {
	rootCmd.AddCommand(serveCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the document editing API",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		return serve(cmd.Context(), cfg)
	},
}

func serve(ctx context.Context, cfg *config.Config) error {
	log := logger.New(cfg.Log.Level, cfg.Log.Format)

	if cfg.Database.URI == "" {
		log.Error().Msg("Database uri is not set")
		return errMissingDatabase
	}

	pool, err := db.Connect(ctx, cfg.Database)
	if err != nil {
		log.Error().Err(err).Msg("Failed to connect to database")
		return err
	}
	defer pool.Close()

	// Initialize database schema
	if err := editor.InitDB(ctx, pool); err != nil {
		log.Error().Err(err).Msg("Failed to initialize database")
		return err
	}

	// setup router
	mainRouter := mux.NewRouter()
	mainRouter.Handle(cfg.Server.MetricsPath, promhttp.Handler()).Methods("GET")

	apiRouter := mainRouter.PathPrefix("/api/v1").Subrouter()

	editorService := editor.NewService(pool, editor.Options{
		Debounce: cfg.Editor.Debounce,
		Retry: vrm.RetryPolicy{
			MaxRetries: cfg.Editor.Retry.MaxRetries,
			BaseDelay:  cfg.Editor.Retry.BaseDelay,
			MaxDelay:   cfg.Editor.Retry.MaxDelay,
			Jitter:     cfg.Editor.Retry.Jitter,
		},
		Logger: log,
	})
	editorService.LoadRoutes(apiRouter)

	corsHandler := handlers.CORS(
		// Editor UI origins
		handlers.AllowedOrigins(cfg.Server.AllowedOrigins),
		handlers.AllowedMethods([]string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}),
		handlers.AllowedHeaders([]string{"Content-Type", "Authorization"}),
		handlers.AllowCredentials(),
	)(mainRouter)

	srv := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: handlers.RecoveryHandler()(corsHandler),
	}

	serverErrors := make(chan error, 1)

	go func() {
		log.Info().Str("addr", cfg.Server.Addr).Msg("Starting server")
		serverErrors <- srv.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		log.Error().Err(err).Msg("Server error")
		return err

	case sig := <-shutdown:
		log.Info().Str("signal", sig.String()).Msg("Shutdown signal received")

		ctx, cancel := context.WithTimeout(ctx, cfg.Server.ShutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			log.Error().Err(err).Msg("Could not stop server gracefully")
			srv.Close()
		}
		if err := editorService.Close(ctx); err != nil {
			log.Error().Err(err).Msg("Pending edits were not written")
			return err
		}
	}
	return nil
}
