package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"hdcoach-backend/internal/config"
	"hdcoach-backend/internal/database"
	"hdcoach-backend/internal/handlers"
	"hdcoach-backend/internal/metrics"
	"hdcoach-backend/internal/middleware"
	"hdcoach-backend/internal/repository"
	"hdcoach-backend/internal/router"
	"hdcoach-backend/internal/services"
)

func main() {
	log.Println("🚀 Starting HD-Coach Relay Backend...")

	// ──── Step 1: Load Environment Variables ────
	cfg := config.Load()
	log.Println("✓ Environment variables loaded")

	// ──── Step 2: Initialize PostgreSQL Connection Pool ────
	pool, err := database.NewPostgresPool(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("✗ PostgreSQL connection failed: %v", err)
	}
	defer pool.Close()
	log.Println("✓ PostgreSQL connected")

	// ──── Step 3: Run Database Migrations ────
	if err := database.RunMigrations(pool, "migrations"); err != nil {
		log.Fatalf("✗ Database migration failed: %v", err)
	}
	log.Println("✓ Database migrations applied")

	// ──── Initialize Repositories ────
	webhookRepo := repository.NewWebhookRepo(pool)
	chatRepo := repository.NewChatRepo(pool)

	// ──── Initialize Services ────
	registry := prometheus.NewRegistry()
	relayMetrics := metrics.NewRelayMetrics(registry)

	jwtAuth := middleware.NewJWTAuth(cfg.JWTSecret)
	relayService := services.NewRelayService(
		webhookRepo,
		&http.Client{},
		cfg.FallbackWebhookURL,
		cfg.DefaultSystemPrompt,
		time.Duration(cfg.WebhookTimeoutSeconds)*time.Second,
		relayMetrics,
	)

	// ──── Initialize Handlers ────
	relayHandler := handlers.NewRelayHandler(chatRepo, relayService, relayMetrics)
	webhookHandler := handlers.NewWebhookHandler(webhookRepo)

	// ──── Step 4: Start HTTP Server ────
	r := router.New(jwtAuth, relayHandler, webhookHandler, registry)

	// No WriteTimeout: a relay request may walk several webhook candidates,
	// each bounded by its own per-attempt timeout.
	server := &http.Server{
		Addr:        fmt.Sprintf(":%s", cfg.Port),
		Handler:     r,
		ReadTimeout: 15 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	// Graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		log.Println("Shutting down...")

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		server.Shutdown(ctx)
	}()

	log.Printf("✓ HD-Coach Relay Backend ready on http://localhost:%s", cfg.Port)
	log.Printf("  API: http://localhost:%s/api/v1", cfg.Port)

	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		log.Fatalf("Server error: %v", err)
	}
}
