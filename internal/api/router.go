package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/captionworks/backend/internal/api/handlers"
	"github.com/captionworks/backend/internal/api/middleware"
	"github.com/captionworks/backend/internal/auth"
	"github.com/captionworks/backend/internal/batch"
	"github.com/captionworks/backend/internal/config"
	"github.com/captionworks/backend/internal/db"
	"github.com/captionworks/backend/internal/library"
	"github.com/captionworks/backend/internal/metadata"
)

func NewRouter(database *db.Database, jwtService *auth.JWTService, cfg *config.Config, coord *batch.Coordinator, resolver *library.Resolver, meta *metadata.Store) *chi.Mux {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimw.Recoverer)
	r.Use(chimw.RealIP)
	r.Use(middleware.Logger)
	r.Use(cors.Handler(middleware.CORSHandler(cfg.CORSOrigins)))

	// Handlers
	authHandler := handlers.NewAuthHandler(database, jwtService)
	batchHandler := handlers.NewBatchHandler(coord, database, cfg.MediaPath)
	libraryHandler := handlers.NewLibraryHandler(cfg.MediaPath)
	metadataHandler := handlers.NewMetadataHandler(resolver, meta, cfg, database)
	settingsHandler := handlers.NewSettingsHandler(database)

	r.Route("/api", func(r chi.Router) {
		// Public
		r.Post("/auth/login", authHandler.Login)
		r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"status":"ok"}`))
		})

		// Protected routes
		r.Group(func(r chi.Router) {
			r.Use(middleware.AuthMiddleware(jwtService))
			r.Use(middleware.MaxBodySize(1 << 20))

			// Auth
			r.Get("/auth/me", authHandler.Me)

			// Library
			r.Get("/scan", libraryHandler.Scan)

			// Batches
			r.Post("/batches", batchHandler.Submit)
			r.Get("/batches", batchHandler.List)
			r.Get("/batches/{id}", batchHandler.Get)
			r.Delete("/batches/{id}", batchHandler.Cancel)
			r.Get("/batches/{id}/events", batchHandler.Events)

			// Keyterms
			r.Get("/keyterms/{identity}", metadataHandler.GetKeyterms)
			r.Put("/keyterms/{identity}", metadataHandler.PutKeyterms)
			r.Post("/keyterms/{identity}/generate", metadataHandler.GenerateKeyterms)

			// Speaker maps
			r.Get("/speakers/{identity}", metadataHandler.GetSpeakers)
			r.Put("/speakers/{identity}", metadataHandler.PutSpeakers)

			// Settings (admin only)
			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireRole("admin"))
				r.Get("/settings", settingsHandler.GetSettings)
				r.Put("/settings", settingsHandler.UpdateSettings)
			})
		})
	})

	return r
}
