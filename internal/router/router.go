package router

import (
	"context"
	"net/http"
	"time"

	"github.com/comanda-pos/floor/internal/config"
	"github.com/comanda-pos/floor/internal/database"
	"github.com/comanda-pos/floor/internal/events"
	"github.com/comanda-pos/floor/internal/handler"
	mw "github.com/comanda-pos/floor/internal/middleware"
	"github.com/comanda-pos/floor/internal/qrcode"
	"github.com/comanda-pos/floor/internal/service"
	"github.com/comanda-pos/floor/internal/storage"
	"github.com/comanda-pos/floor/internal/ws"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Deps is everything the router wires into handlers. Redis, Objects and
// Events are optional.
type Deps struct {
	Config  *config.Config
	Logger  *zap.Logger
	Pool    service.Pool
	Hub     *ws.Hub
	Events  events.Publisher
	Redis   redis.Cmdable
	Objects *storage.ObjectStore
}

// New creates a Chi router with all application routes wired up.
// Applies authentication, idempotency and role-based middleware as needed.
func New(d Deps) chi.Router {
	cfg, log := d.Config, d.Logger
	queries := database.New(d.Pool)

	r := chi.NewRouter()

	// Standard middleware
	r.Use(mw.RequestID())
	r.Use(mw.RequestLogger(log))
	r.Use(middleware.Recoverer)

	// CORS configuration
	origins := cfg.CorsAllowedOrigins
	if len(origins) == 0 {
		origins = []string{"http://localhost:5173"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", mw.IdempotencyHeader, "X-Request-Id"},
		ExposedHeaders:   []string{"Link", "X-Request-Id"},
		AllowCredentials: true,
		MaxAge:           300, // 5 minutes
	}))

	// Public routes
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		status, code := "ok", http.StatusOK
		if err := pingDB(ctx, d.Pool); err != nil {
			log.Warn("health check: database unreachable", zap.Error(err))
			status, code = "degraded", http.StatusServiceUnavailable
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		w.Write([]byte(`{"status":"` + status + `"}`)) //nolint:errcheck
	})

	// WebSocket route (handles auth internally via query param)
	r.Get("/ws/{room}", func(w http.ResponseWriter, r *http.Request) {
		ws.ServeWS(d.Hub, cfg.JWTSecret, log, w, r)
	})

	// Services
	svcDeps := service.Deps{
		Pool: d.Pool,
		NewStore: func(db database.DBTX) service.Store {
			return database.New(db)
		},
		Events:            d.Events,
		Logger:            log,
		ServiceChargeRate: cfg.ServiceChargeRate,
	}
	policy, err := service.ParseTransitionPolicy(cfg.OrderStatusPolicy)
	if err != nil {
		log.Warn("unknown order status policy, using forward", zap.String("policy", cfg.OrderStatusPolicy))
		policy = service.PolicyForward
	}
	ledger := service.NewLedgerService(svcDeps, policy)
	tabs := service.NewTabService(svcDeps, service.TabConfig{TableServiceChargeDefault: cfg.TableServiceChargeDefault})
	tables := service.NewTableService(svcDeps)
	cancellations := service.NewCancellationService(svcDeps, cfg.ApprovalPINHash)

	// A nil *storage.ObjectStore must stay a nil interface.
	var objects service.ObjectStore
	var imageURLs handler.ImageURLs
	if d.Objects != nil {
		objects, imageURLs = d.Objects, d.Objects
	}
	returns := service.NewReturnService(svcDeps, objects)

	r.Route("/api", func(r chi.Router) {
		// Auth routes (public)
		authHandler := handler.NewAuthHandler(queries, cfg.JWTSecret, log)
		authHandler.RegisterRoutes(r)

		// Protected routes (require authentication)
		r.Group(func(r chi.Router) {
			r.Use(mw.Authenticate(cfg.JWTSecret))
			if d.Redis != nil {
				r.Use(mw.Idempotency(d.Redis, cfg.IdempotencyTTL, log))
			}

			r.Get("/auth/me", authHandler.Me)

			tableHandler := handler.NewTableHandler(tables, qrcode.Generator{BaseURL: cfg.PublicMenuURL}, log)
			r.Route("/tables", tableHandler.RegisterRoutes)

			orderHandler := handler.NewOrderHandler(ledger, log)
			r.Route("/orders", orderHandler.RegisterRoutes)
			r.Route("/kitchen", orderHandler.RegisterKitchenRoutes)

			tabHandler := handler.NewTabHandler(tabs, tables, cfg.RestaurantName, log)
			quickOrderHandler := handler.NewQuickOrderHandler(ledger, queries, log)
			r.Route("/tabs", func(r chi.Router) {
				tabHandler.RegisterRoutes(r)
				orderHandler.RegisterTabRoutes(r)
				quickOrderHandler.RegisterTabRoutes(r)
			})

			cancellationHandler := handler.NewCancellationHandler(cancellations, log)
			r.Route("/cancellations", cancellationHandler.RegisterRoutes)

			returnHandler := handler.NewReturnHandler(returns, imageURLs, cfg.MaxUploadBytes, log)
			r.Route("/returns", returnHandler.RegisterRoutes)

			menuHandler := handler.NewMenuHandler(queries, log)
			r.Route("/menu", menuHandler.RegisterRoutes)
		})
	})

	log.Info("router initialized")
	return r
}

func pingDB(ctx context.Context, db database.DBTX) error {
	var one int
	return db.QueryRow(ctx, "SELECT 1").Scan(&one)
}
