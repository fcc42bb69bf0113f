package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"gonomen/internal"
	"gonomen/internal/api"
	"gonomen/internal/config"
	"gonomen/internal/container"
)

func main() {
	// Load environment variables from .env file
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment variables")
	}

	appConfig, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	logger := internal.NewLogger(internal.ParseLogLevel(appConfig.LogLevel))
	gin.SetMode(appConfig.Server.GinMode)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	appContainer, err := container.New(ctx, appConfig, logger)
	if err != nil {
		log.Fatalf("Failed to create application container: %v", err)
	}
	defer appContainer.Shutdown()

	server, err := api.NewServer(appContainer.APIDeps(), logger)
	if err != nil {
		log.Fatalf("Failed to initialize server: %v", err)
	}

	checks := map[string]api.HealthCheck{
		"dataset": func(ctx context.Context) error {
			_, err := appContainer.Dataset.Domains(ctx)
			return err
		},
	}
	if appContainer.DB != nil {
		checks["database"] = appContainer.DB.PingContext
	}

	apiServer := &http.Server{
		Addr:              ":" + appConfig.Server.Port,
		Handler:           server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	adminServer := &http.Server{
		Addr:              ":" + appConfig.Server.AdminPort,
		Handler:           server.AdminRouter(checks),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 2)
	for _, srv := range []*http.Server{apiServer, adminServer} {
		go func(srv *http.Server) {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
		}(srv)
	}
	logger.Info("API listening on :%s, admin on :%s (source=%s)",
		appConfig.Server.Port, appConfig.Server.AdminPort, appConfig.Data.Source)

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case err := <-errCh:
		logger.Error("server failed: %v", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("jobs did not stop cleanly: %v", err)
	}
	for _, srv := range []*http.Server{apiServer, adminServer} {
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("server shutdown: %v", err)
		}
	}
}
