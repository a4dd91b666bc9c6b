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

	"nycdemo-backend/internal/api"
	"nycdemo-backend/internal/config"
	"nycdemo-backend/internal/databricks"
	"nycdemo-backend/internal/handlers"
	"nycdemo-backend/internal/services"
	"nycdemo-backend/internal/store/postgres"

	"github.com/jackc/pgx/v5/pgxpool"
)

func main() {
	log.Println("Starting NYC Demo Backend...")

	// 1. Load Configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("FATAL: Failed to load configuration: %v", err)
	}
	log.Println("Configuration loaded successfully.")

	// 2. Initialize Database Connection Pool
	dbCtx, dbCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer dbCancel()

	dbpool, err := pgxpool.New(dbCtx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("FATAL: Unable to create database connection pool: %v\n", err)
	}
	defer dbpool.Close()

	if err := dbpool.Ping(dbCtx); err != nil {
		log.Fatalf("FATAL: Unable to ping database: %v\n", err)
	}
	log.Println("Database connection pool established and pinged successfully.")

	// 3. Initialize Dependencies (Store, Clients, Services, Handlers)
	pgStore := postgres.NewPostgresStore(dbpool)
	log.Println("Postgres store initialized.")

	// --- Databricks clients and token caches ---
	httpClient := &http.Client{Timeout: 30 * time.Second}

	spProvider := databricks.ClientCredentialsProvider(httpClient,
		cfg.WorkspaceURL, cfg.SPClientID, cfg.SPClientSecret, "all-apis")
	spTokens := databricks.NewTokenSource(spProvider, time.Minute,
		databricks.WithStaleFallback(cfg.TokenStaleFallback))

	dashboardClient := databricks.NewDashboardClient(cfg.WorkspaceURL, cfg.DashboardID,
		cfg.SPClientID, cfg.SPClientSecret,
		databricks.WithDashboardHTTPClient(httpClient))
	embedTokens := databricks.NewTokenSource(
		databricks.EmbedTokenProvider(spTokens, dashboardClient), 2*time.Minute)

	genieClient := databricks.NewGenieClient(cfg.WorkspaceURL, cfg.GenieSpaceID,
		databricks.WithGenieHTTPClient(httpClient))
	log.Println("Databricks clients initialized.")

	// --- Initialize Services ---
	registrationService := services.NewRegistrationService(pgStore)
	log.Println("RegistrationService initialized.")
	genieService := services.NewGenieService(genieClient, spTokens)
	log.Println("GenieService initialized.")
	dashboardService := services.NewDashboardService(embedTokens)
	log.Println("DashboardService initialized.")

	// --- Initialize Handlers ---
	healthHandler := handlers.NewHealthHandler(pgStore)
	registrationHandler := handlers.NewRegistrationHandlers(registrationService)
	genieHandler := handlers.NewGenieHandlers(genieService)
	dashboardHandler := handlers.NewDashboardHandlers(dashboardService)
	log.Println("Handlers initialized.")

	// 4. Setup Router & Inject Dependencies
	routerDeps := api.RouterDependencies{
		HealthHandler:       healthHandler,
		RegistrationHandler: registrationHandler,
		GenieHandler:        genieHandler,
		DashboardHandler:    dashboardHandler,
		Config:              cfg,
	}
	router := api.NewRouter(routerDeps)
	log.Println("HTTP router configured.")

	// 5. Configure and Start HTTP Server
	server := &http.Server{
		Addr:    ":" + cfg.HTTPPort,
		Handler: router,
		// WriteTimeout must outlast the Genie poll window (~90s of backoff
		// plus per-poll latency).
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 180 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	stopChan := make(chan os.Signal, 1)
	signal.Notify(stopChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		log.Printf("Server starting and listening on port %s", cfg.HTTPPort)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("FATAL: Could not listen on %s: %v\n", cfg.HTTPPort, err)
		}
		log.Println("Server listener routine stopped.")
	}()

	<-stopChan
	log.Println("Shutdown signal received, initiating graceful shutdown...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("WARN: Server graceful shutdown failed: %v", err)
	}

	log.Println("Server shutdown complete.")
}
