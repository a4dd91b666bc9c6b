package api

import (
	"log"
	"time"

	"nycdemo-backend/internal/config"
	"nycdemo-backend/internal/handlers"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// RouterDependencies holds all the dependencies required by the router setup,
// primarily handlers and configuration.
type RouterDependencies struct {
	HealthHandler       *handlers.HealthHandler
	RegistrationHandler *handlers.RegistrationHandlers
	GenieHandler        *handlers.GenieHandlers
	DashboardHandler    *handlers.DashboardHandlers
	Config              *config.Config
}

// NewRouter creates and configures the main Chi router for the application.
func NewRouter(deps RouterDependencies) *chi.Mux {
	r := chi.NewRouter()

	// --- Base Middleware Stack ---
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	// The Genie ask flow can legitimately poll for ~90s of backoff plus
	// request latency, so the request timeout must clear that window.
	r.Use(middleware.Timeout(150 * time.Second))

	// --- CORS Configuration ---
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: deps.Config.CORSOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         300,
	}))

	if deps.HealthHandler == nil {
		panic("HealthHandler dependency is nil in router setup")
	}
	r.Get("/health", deps.HealthHandler.HandleHealth)

	if deps.RegistrationHandler != nil {
		r.Route("/registrations", func(r chi.Router) {
			r.Post("/", deps.RegistrationHandler.HandleCreateRegistration)
			r.Get("/", deps.RegistrationHandler.HandleListRegistrations)
			r.Get("/stats", deps.RegistrationHandler.HandleGetStats)
		})
		r.Get("/topics", deps.RegistrationHandler.HandleListTopics)
	} else {
		log.Println("WARN: RegistrationHandler dependency is nil, skipping /registrations routes.")
	}

	if deps.DashboardHandler != nil {
		r.Get("/dashboard-token", deps.DashboardHandler.HandleDashboardToken)
	} else {
		log.Println("WARN: DashboardHandler dependency is nil, skipping /dashboard-token route.")
	}

	if deps.GenieHandler != nil {
		r.Post("/genie/ask", deps.GenieHandler.HandleAsk)
	} else {
		log.Println("WARN: GenieHandler dependency is nil, skipping /genie/ask route.")
	}

	return r
}
