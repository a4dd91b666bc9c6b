package config

import (
	"fmt"
	"log"
	"net/url"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

const (
	defaultDashboardID  = "01f1103d19bc175083fbb5392f987e10"
	defaultGenieSpaceID = "01f110512fd015ada6b59c70c0ef42a6"
)

// defaultCORSOrigins matches the deployed frontend origins.
var defaultCORSOrigins = []string{
	"https://dbxdemonyc.com",
	"https://www.dbxdemonyc.com",
	"https://dx7u5ga7qr7e7.amplifyapp.com",
	"https://main.dx7u5ga7qr7e7.amplifyapp.com",
	"https://main.d1erxf8q87xlvj.amplifyapp.com",
	"http://localhost:3000",
	"http://localhost:5173",
}

// Config holds application configuration values loaded from environment variables.
type Config struct {
	HTTPPort    string
	DatabaseURL string

	// Databricks workspace settings. WorkspaceURL is stored without a
	// trailing slash. Missing credentials are not fatal at startup: the
	// Databricks-backed endpoints report their own errors at request time.
	WorkspaceURL   string
	SPClientID     string
	SPClientSecret string
	DashboardID    string
	GenieSpaceID   string

	CORSOrigins []string

	// TokenStaleFallback allows the workspace token cache to serve an
	// expired token when a refresh fails.
	TokenStaleFallback bool
}

// LoadConfig loads configuration from environment variables.
// It looks for a .env file first, then checks actual environment variables.
func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: Could not load .env file. Using environment variables only.", err)
	}

	dbURL := getEnv("DATABASE_URL", "")
	if dbURL == "" {
		var err error
		dbURL, err = lakebaseURL()
		if err != nil {
			return nil, err
		}
	}

	workspaceURL := strings.TrimRight(strings.TrimSpace(getEnv("DATABRICKS_WORKSPACE_URL", "")), "/")
	if workspaceURL == "" {
		log.Println("Warning: DATABRICKS_WORKSPACE_URL not set; /dashboard-token and /genie/ask will be unavailable.")
	}

	cfg := &Config{
		HTTPPort:           getEnv("HTTP_PORT", "8080"),
		DatabaseURL:        dbURL,
		WorkspaceURL:       workspaceURL,
		SPClientID:         getEnv("DATABRICKS_SP_CLIENT_ID", ""),
		SPClientSecret:     getEnv("DATABRICKS_SP_CLIENT_SECRET", ""),
		DashboardID:        getEnv("DATABRICKS_DASHBOARD_ID", defaultDashboardID),
		GenieSpaceID:       getEnv("DATABRICKS_GENIE_SPACE_ID", defaultGenieSpaceID),
		CORSOrigins:        corsOrigins(),
		TokenStaleFallback: getEnv("TOKEN_STALE_FALLBACK", "false") == "true",
	}

	log.Printf("Loaded config: Port=%s, DB_URL=***, Workspace=%s, Dashboard=%s, GenieSpace=%s",
		cfg.HTTPPort, cfg.WorkspaceURL, cfg.DashboardID, cfg.GenieSpaceID)

	return cfg, nil
}

// lakebaseURL assembles a connection string from the individual LAKEBASE_*
// variables when DATABASE_URL is not provided.
func lakebaseURL() (string, error) {
	host := strings.TrimSpace(getEnv("LAKEBASE_HOST", ""))
	user := strings.TrimSpace(getEnv("LAKEBASE_USER", ""))
	password := strings.TrimSpace(getEnv("LAKEBASE_PASSWORD", ""))
	database := strings.TrimSpace(getEnv("LAKEBASE_DB", "databricks_postgres"))
	port := strings.TrimSpace(getEnv("LAKEBASE_PORT", "5432"))

	if host == "" || user == "" || password == "" {
		return "", fmt.Errorf("config: DATABASE_URL or LAKEBASE_HOST/LAKEBASE_USER/LAKEBASE_PASSWORD is required")
	}

	return fmt.Sprintf("postgresql://%s:%s@%s:%s/%s?sslmode=require",
		url.QueryEscape(user), url.QueryEscape(password), host, port, database), nil
}

func corsOrigins() []string {
	raw := getEnv("CORS_ORIGINS", "")
	if raw == "" {
		return defaultCORSOrigins
	}
	var origins []string
	for _, entry := range strings.Split(raw, ",") {
		if entry = strings.TrimSpace(entry); entry != "" {
			origins = append(origins, entry)
		}
	}
	if len(origins) == 0 {
		return defaultCORSOrigins
	}
	return origins
}

// getEnv retrieves an environment variable or returns a default value.
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}
