// Package server wires the exchange engine together and runs the HTTP edge.
package server

import (
	"context"
	"log/slog"
	"os"

	"github.com/gorilla/sessions"
	"github.com/labstack/echo-contrib/session"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/surrealdb/surrealdb.go"

	"github.com/M-Shameel-375/skill-verse-sub001/internal/config"
	"github.com/M-Shameel-375/skill-verse-sub001/internal/exchange"
	"github.com/M-Shameel-375/skill-verse-sub001/internal/gateway"
	"github.com/M-Shameel-375/skill-verse-sub001/internal/handlers"
	"github.com/M-Shameel-375/skill-verse-sub001/internal/logging"
	"github.com/M-Shameel-375/skill-verse-sub001/internal/matching"
	"github.com/M-Shameel-375/skill-verse-sub001/internal/notify"
	"github.com/M-Shameel-375/skill-verse-sub001/internal/pubsub"
	"github.com/M-Shameel-375/skill-verse-sub001/internal/registry"
	"github.com/M-Shameel-375/skill-verse-sub001/internal/storage"
)

// Server holds the dependencies for the HTTP server and the engine behind it.
type Server struct {
	E   *echo.Echo
	DB  *surrealdb.DB
	Cfg *config.Config

	bridge          *pubsub.WatermillBridge
	pool            *matching.Pool
	manager         *exchange.Manager
	registry        *registry.Registry
	gateway         *gateway.Gateway
	dispatcher      *notify.Dispatcher
	exchangeHandler *handlers.ExchangeHandler
	onlineHandler   *handlers.OnlineHandler
}

// New creates a new Server instance with the full engine wired up.
func New() *Server {
	logging.New()
	cfg := config.New()

	db, err := storage.NewDB(context.Background(), cfg)
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	store := storage.NewSurrealStore(db)

	bridge := pubsub.NewWatermillBridge()
	pool := matching.NewPool(bridge)
	manager := exchange.NewManager(pool, store, bridge)
	reg := registry.New(manager, store,
		registry.WithGraceWindow(cfg.GraceWindow),
		registry.WithSweepInterval(cfg.SweepInterval),
	)
	gw := gateway.New(reg, bridge, cfg.SendBuffer)
	dispatcher := notify.NewDispatcher(store, reg, gw)

	ctx := context.Background()
	if err := reg.Start(ctx, bridge); err != nil {
		slog.Error("Failed to start session registry", "error", err)
		os.Exit(1)
	}
	if err := gw.Start(ctx, bridge); err != nil {
		slog.Error("Failed to start gateway subscriptions", "error", err)
		os.Exit(1)
	}
	if err := dispatcher.Start(ctx, bridge); err != nil {
		slog.Error("Failed to start notification dispatcher", "error", err)
		os.Exit(1)
	}

	e := echo.New()
	e.HideBanner = true
	e.Use(echomw.Logger())
	e.Use(echomw.Recover())
	e.Validator = handlers.NewValidator()

	cookieStore := sessions.NewCookieStore([]byte(cfg.SessionSecret))
	cookieStore.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   86400 * 7, // 7 days
		HttpOnly: true,
	}
	e.Use(session.Middleware(cookieStore))

	return &Server{
		E:               e,
		DB:              db,
		Cfg:             cfg,
		bridge:          bridge,
		pool:            pool,
		manager:         manager,
		registry:        reg,
		gateway:         gw,
		dispatcher:      dispatcher,
		exchangeHandler: handlers.NewExchangeHandler(pool, manager, store, bridge),
		onlineHandler:   handlers.NewOnlineHandler(reg),
	}
}

// Manager is a getter for the exchange manager, useful for testing.
func (s *Server) Manager() *exchange.Manager {
	return s.manager
}

// Registry is a getter for the session registry, useful for testing.
func (s *Server) Registry() *registry.Registry {
	return s.registry
}
