package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/nkiryanov/chatrooms/internal/db"
	"github.com/nkiryanov/chatrooms/internal/handlers"
	"github.com/nkiryanov/chatrooms/internal/handlers/middleware"
	"github.com/nkiryanov/chatrooms/internal/logger"
	"github.com/nkiryanov/chatrooms/internal/realtime"
	"github.com/nkiryanov/chatrooms/internal/repository/postgres"
	"github.com/nkiryanov/chatrooms/internal/service/auth"
	"github.com/nkiryanov/chatrooms/internal/service/auth/tokenmanager"
	"github.com/nkiryanov/chatrooms/internal/service/message"
	"github.com/nkiryanov/chatrooms/internal/service/room"
	"github.com/nkiryanov/chatrooms/internal/service/sweeper"
	"github.com/nkiryanov/chatrooms/internal/service/user"
)

const (
	shutdownTimeout     = 5 * time.Second
	rateLimitGCInterval = time.Minute
	rateLimitIdleTTL    = 10 * time.Minute
)

type ServerApp struct {
	ListenAddr string
	Handler    http.Handler

	logger  logger.Logger
	pool    *pgxpool.Pool
	hub     *realtime.Hub
	sweeper *sweeper.Sweeper
	limiter *middleware.RateLimiter
}

func NewServerApp(ctx context.Context, c *Config) (*ServerApp, error) {
	// Initialize logger
	l, err := logger.New(c.Environment, c.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("error while initializing logger: %w", err)
	}

	policy, err := tokenmanager.ParseRotationPolicy(c.RefreshRotation)
	if err != nil {
		return nil, err
	}

	// Connect to the database and run migrations
	pool, err := db.ConnectAndMigrate(ctx, c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("error while connecting to db. Err: %w", err)
	}

	// Initialize repositories
	storage := postgres.NewStorage(pool)

	// Initialize services
	tokenManager, err := tokenmanager.New(tokenmanager.Config{
		SecretKey:        c.SecretKey,
		RefreshSecretKey: c.RefreshSecretKey,
		RotationPolicy:   policy,
	}, storage.Refresh())
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("error while creating token manager. Err: %w", err)
	}

	authService, err := auth.NewService(auth.Config{
		Hasher:         auth.DefaultHasher,
		InsecureCookie: c.Environment == logger.EnvDevelopment,
	}, tokenManager, storage.User())
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("error while creating auth service. Err: %w", err)
	}

	hub := realtime.NewHub(realtime.Config{}, l.With("component", "hub"))
	userService := user.NewService(auth.DefaultHasher, storage, hub)
	roomService := room.NewService(auth.DefaultHasher, storage, hub)
	messageService := message.NewService(storage, hub)

	var limiter *middleware.RateLimiter
	if c.AuthRateLimit > 0 {
		limiter = middleware.NewRateLimiter(rate.Limit(c.AuthRateLimit), c.AuthRateBurst, rateLimitIdleTTL)
	}

	router := handlers.NewRouter(handlers.Deps{
		Auth:        authService,
		Users:       userService,
		Rooms:       roomService,
		Messages:    messageService,
		Hub:         hub,
		Upgrader:    realtime.NewUpgrader(c.AllowedOrigins),
		RateLimiter: limiter,
		Logger:      l,
	})

	return &ServerApp{
		ListenAddr: c.ListenAddr,
		Handler:    router,
		logger:     l,
		pool:       pool,
		hub:        hub,
		sweeper:    sweeper.New(sweeper.Config{}, storage.Refresh(), l.With("component", "sweeper")),
		limiter:    limiter,
	}, nil
}

// Run starts http server with background workers and stops them all gracefully on context cancellation
func (s *ServerApp) Run(ctx context.Context) error {
	defer s.pool.Close()

	httpServer := &http.Server{
		Addr:    s.ListenAddr,
		Handler: s.Handler,
	}

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		s.logger.Info("Starting server", "address", s.ListenAddr)
		err := httpServer.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	})

	g.Go(func() error {
		<-gCtx.Done()

		timeoutCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		err := httpServer.Shutdown(timeoutCtx)
		if errors.Is(err, context.DeadlineExceeded) {
			s.logger.Error("HTTP server shutdown timeout exceeded, forcing shutdown...")
		}
		s.logger.Info("HTTP server stopped")

		// Shutdown does not track websocket connections
		s.hub.Close()
		return nil
	})

	g.Go(func() error {
		<-s.sweeper.Run(gCtx)
		return nil
	})

	if s.limiter != nil {
		g.Go(func() error {
			s.limiter.GC(gCtx, rateLimitGCInterval)
			return nil
		})
	}

	return g.Wait()
}
