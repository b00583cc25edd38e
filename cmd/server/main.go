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

	"compliance-tracker/internal/api/routes"
	"compliance-tracker/internal/config"
	"compliance-tracker/internal/logger"
	"compliance-tracker/internal/migrations"
	"compliance-tracker/internal/models"
	"compliance-tracker/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

func main() {
	configPath := "configs/config.yaml"
	if v := os.Getenv("COMPLIANCE_CONFIG"); v != "" {
		configPath = v
	}

	// Load configuration
	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	logger.New(cfg.Log)

	// Initialize database
	db, err := models.Open(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize database")
	}
	if err := migrations.Run(db); err != nil {
		log.Fatal().Err(err).Msg("failed to migrate database")
	}

	// Create default user if database is empty
	ctx := context.Background()
	authService := services.NewAuthService(db, cfg, nil, nil, nil)
	if err := authService.CreateDefaultUser(ctx); err != nil {
		log.Warn().Err(err).Msg("failed to create default user")
	}
	if n, err := authService.DeleteExpiredSessions(ctx); err != nil {
		log.Warn().Err(err).Msg("failed to remove expired sessions")
	} else if n > 0 {
		log.Info().Int64("removed", n).Msg("removed expired sessions")
	}

	// Set Gin mode
	if cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	routes.SetupRoutes(r, cfg, db, routes.Options{})

	r.NoRoute(func(c *gin.Context) {
		if strings.HasPrefix(c.Request.URL.Path, "/api") {
			c.JSON(http.StatusNotFound, gin.H{"error": "API endpoint not found"})
			return
		}
		c.JSON(http.StatusNotFound, gin.H{"error": "Not found"})
	})

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().Str("addr", addr).Msg("starting compliance tracker")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	// Wait for interrupt signal to gracefully shut down the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shut down")
	}

	if sqlDB, err := db.DB(); err == nil {
		sqlDB.Close()
	}
}
