package bridge

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/rs/cors"

	"ebook-reader/internal/config"
	"ebook-reader/internal/lifecycle"
)

// NewRouter creates the local bridge router with all routes configured. The
// bridge only ever serves the embedded webview, so CORS is pinned to
// localhost origins.
func NewRouter(container *config.Container, feed *lifecycle.Feed) http.Handler {
	router := mux.NewRouter()

	// API prefix
	api := router.PathPrefix("/api/v1").Subrouter()

	// Health check endpoint (no auth required)
	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok","service":"ebook-reader"}`))
	}).Methods("GET")

	sessionHandler := NewSessionHandler(container, feed)

	// Auth middleware for protected routes
	authMiddleware := AuthMiddleware(container)

	// Protected routes (require authentication)
	protected := api.PathPrefix("").Subrouter()
	protected.Use(authMiddleware)

	// Session lifecycle
	protected.HandleFunc("/session/open", sessionHandler.OpenSession).Methods("POST")
	protected.HandleFunc("/session/close", sessionHandler.CloseSession).Methods("POST")
	protected.HandleFunc("/session", sessionHandler.GetState).Methods("GET")
	protected.HandleFunc("/session/commands", sessionHandler.DrainCommands).Methods("GET")
	protected.HandleFunc("/session/goto", sessionHandler.GoToLocation).Methods("POST")
	protected.HandleFunc("/session/conflict/resolve", sessionHandler.ResolveConflict).Methods("POST")

	// Renderer and host lifecycle events
	protected.HandleFunc("/session/events/location-change", sessionHandler.LocationChanged).Methods("POST")
	protected.HandleFunc("/session/events/selected", sessionHandler.Selected).Methods("POST")
	protected.HandleFunc("/session/events/press-annotation", sessionHandler.PressAnnotation).Methods("POST")
	protected.HandleFunc("/session/events/app-state", sessionHandler.AppStateChanged).Methods("POST")
	protected.HandleFunc("/session/events/before-remove", sessionHandler.BeforeRemove).Methods("POST")

	// Highlight visualization
	protected.HandleFunc("/highlights/visualize", sessionHandler.VisualizeSelection).Methods("POST")
	protected.HandleFunc("/highlights/{id}/revisualize", sessionHandler.Revisualize).Methods("POST")
	protected.HandleFunc("/highlights/{id}/visualization", sessionHandler.DeleteVisualization).Methods("DELETE")
	protected.HandleFunc("/highlights/{id}", sessionHandler.DeleteHighlight).Methods("DELETE")

	// Configure CORS
	c := cors.New(cors.Options{
		AllowedOrigins: []string{
			"http://localhost:5173", // webview dev server
			"http://localhost:4173", // webview preview
			"http://localhost:3000", // alternative dev port
		},
		AllowedMethods: []string{
			http.MethodGet,
			http.MethodPost,
			http.MethodDelete,
			http.MethodOptions,
		},
		AllowedHeaders: []string{
			"Accept",
			"Authorization",
			"Content-Type",
		},
		AllowCredentials: true,
		MaxAge:           300,
	})

	return c.Handler(router)
}
