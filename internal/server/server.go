package server

import (
	"database/sql"
	"fmt"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/reedfamily/zedctl/internal/api"
	"github.com/reedfamily/zedctl/internal/auth"
	"github.com/reedfamily/zedctl/internal/config"
	"github.com/reedfamily/zedctl/internal/console"
	"github.com/reedfamily/zedctl/internal/db"
	"github.com/reedfamily/zedctl/internal/stats"
)

// Server is the optional web API in front of the console, store, and
// collector. The interactive shell works without it.
type Server struct {
	cfg    *config.Config
	router chi.Router
}

func New(cfg *config.Config, database *sql.DB, store *db.Store, con *console.Console, collector *stats.Collector) (*Server, error) {
	authSvc := auth.NewService(database)
	if err := authSvc.EnsureDefaultUser(cfg.DefaultUser, cfg.DefaultPass); err != nil {
		return nil, fmt.Errorf("ensure default user: %w", err)
	}

	authHandler := api.NewAuthHandler(authSvc)
	serverHandler := api.NewServerHandler(con)
	playerHandler := api.NewPlayerHandler(store, collector)
	aliasHandler := api.NewAliasHandler(store)
	bundleHandler := api.NewBundleHandler(store, con)
	scheduleHandler := api.NewScheduleHandler(store)
	wsHandler := api.NewWSHandler(authSvc, con, collector)

	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:8080"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Route("/api/v1", func(r chi.Router) {
		// Public routes
		r.Post("/auth/login", authHandler.Login)

		// Protected routes
		r.Group(func(r chi.Router) {
			r.Use(api.AuthMiddleware(authSvc))

			r.Post("/auth/logout", authHandler.Logout)
			r.Get("/auth/me", authHandler.Me)

			r.Route("/server", func(r chi.Router) {
				r.Get("/status", serverHandler.Status)
				r.Get("/players", serverHandler.Players)
				r.Get("/time", serverHandler.Time)
				r.Post("/time", serverHandler.SetTime)
				r.Post("/command", serverHandler.Command)
				r.Post("/say", serverHandler.Say)
			})

			r.Route("/players/{name}", func(r chi.Router) {
				r.Get("/stats", playerHandler.Stats)
				r.Get("/sessions", playerHandler.Sessions)
			})

			r.Get("/snapshots", playerHandler.Snapshots)
			r.Get("/snapshots/latest", playerHandler.LatestSnapshot)

			r.Route("/aliases", func(r chi.Router) {
				r.Get("/", aliasHandler.List)
				r.Post("/", aliasHandler.Set)
				r.Delete("/{alias}", aliasHandler.Delete)
			})

			r.Route("/bundles", func(r chi.Router) {
				r.Get("/", bundleHandler.List)
				r.Post("/", bundleHandler.Create)
				r.Route("/{name}", func(r chi.Router) {
					r.Get("/", bundleHandler.Get)
					r.Delete("/", bundleHandler.Delete)
					r.Post("/items", bundleHandler.AddItem)
					r.Delete("/items/{item}", bundleHandler.RemoveItem)
					r.Post("/give", bundleHandler.Give)
				})
			})

			r.Route("/schedules", func(r chi.Router) {
				r.Get("/", scheduleHandler.List)
				r.Post("/", scheduleHandler.Create)
				r.Put("/{id}", scheduleHandler.Update)
				r.Delete("/{id}", scheduleHandler.Delete)
			})
		})

		// WebSocket routes (auth via query param)
		r.Get("/events", wsHandler.Events)
		r.Get("/console", wsHandler.Console)
		r.Get("/stats", wsHandler.Stats)
	})

	return &Server{cfg: cfg, router: r}, nil
}

func (s *Server) Router() chi.Router {
	return s.router
}
