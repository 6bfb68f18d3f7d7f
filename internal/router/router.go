package router

import (
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/atelier-pos/api/internal/config"
	"github.com/atelier-pos/api/internal/database"
	"github.com/atelier-pos/api/internal/enum"
	"github.com/atelier-pos/api/internal/handler"
	mw "github.com/atelier-pos/api/internal/middleware"
	"github.com/atelier-pos/api/internal/service"
	"github.com/atelier-pos/api/internal/ws"
)

// New creates a Chi router with all application routes wired up.
// Applies authentication and role-based middleware as needed; store
// scoping happens inside the handlers via the JWT claims.
func New(cfg *config.Config, queries *database.Queries, pool *pgxpool.Pool, hub *ws.Hub) chi.Router {
	r := chi.NewRouter()

	// Standard middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// CORS configuration
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{
			"http://localhost:5173", // SPA dev server
		},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300, // 5 minutes
	}))

	// Public routes
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok","version":"1.0.0"}`))
	})

	// Auth routes (public)
	authHandler := handler.NewAuthHandler(queries, cfg.JWTSecret)
	authHandler.RegisterRoutes(r)

	// WebSocket route (handles auth internally via query param)
	r.Get("/ws/tiendas/{tid}/apartados", func(w http.ResponseWriter, r *http.Request) {
		ws.ServeWS(hub, cfg.JWTSecret, w, r)
	})

	// Protected routes (require authentication)
	r.Group(func(r chi.Router) {
		r.Use(mw.Authenticate(cfg.JWTSecret))

		// Layaways and abonos
		newLayawayStore := func(db database.DBTX) service.LayawayStore {
			return database.New(db)
		}
		layawayService := service.NewLayawayService(pool, newLayawayStore)
		layawayHandler := handler.NewLayawayHandler(layawayService, queries, hub)
		installmentHandler := handler.NewInstallmentHandler(
			queries,
			pool,
			func(db database.DBTX) handler.InstallmentStore {
				return database.New(db)
			},
			hub,
		)
		r.Route("/apartados", func(r chi.Router) {
			layawayHandler.RegisterRoutes(r)
			installmentHandler.RegisterRoutes(r)
		})

		// Sales
		newSaleStore := func(db database.DBTX) service.SaleStore {
			return database.New(db)
		}
		saleService := service.NewSaleService(pool, newSaleStore)
		saleHandler := handler.NewSaleHandler(saleService, queries)
		r.Route("/ventas", saleHandler.RegisterRoutes)

		// Inventory
		inventoryHandler := handler.NewInventoryHandler(
			queries,
			pool,
			func(db database.DBTX) handler.InventoryStore {
				return database.New(db)
			},
		)
		r.Route("/inventario", inventoryHandler.RegisterRoutes)

		// Products and variants
		productHandler := handler.NewProductHandler(queries)
		r.Route("/productos", func(r chi.Router) {
			productHandler.RegisterRoutes(r)

			variantHandler := handler.NewVariantHandler(queries)
			r.Route("/{pid}/variantes", variantHandler.RegisterRoutes)
		})

		// Stores: roster reads are open to any authenticated user,
		// writes are admin-only
		storeHandler := handler.NewStoreHandler(queries)
		r.Route("/tiendas", func(r chi.Router) {
			r.Get("/", storeHandler.List)
			r.Get("/{id}", storeHandler.Get)

			r.Group(func(r chi.Router) {
				r.Use(mw.RequireRole(enum.UserRoleAdmin))
				r.Post("/", storeHandler.Create)
				r.Put("/{id}", storeHandler.Update)
				r.Delete("/{id}", storeHandler.Delete)
			})
		})

		// User administration (admin-only)
		r.Group(func(r chi.Router) {
			r.Use(mw.RequireRole(enum.UserRoleAdmin))
			userHandler := handler.NewUserHandler(queries)
			r.Route("/usuarios", userHandler.RegisterRoutes)
		})
	})

	log.Println("Router initialized with all handlers")
	return r
}
