// Package main runs the opsdesk access HTTP server with graceful shutdown.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/opsdesk/backend/config"
	"github.com/opsdesk/backend/internal/access"
	"github.com/opsdesk/backend/internal/audit"
	"github.com/opsdesk/backend/internal/auth"
	"github.com/opsdesk/backend/internal/middleware"
	"github.com/opsdesk/backend/internal/modules"
	"github.com/opsdesk/backend/internal/organizations"
	"github.com/opsdesk/backend/internal/partners"
	"github.com/opsdesk/backend/internal/query"
	"github.com/opsdesk/backend/internal/roles"
	"github.com/opsdesk/backend/internal/session"
	"github.com/opsdesk/backend/pkg/database"
	"github.com/opsdesk/backend/pkg/metrics"
	"github.com/opsdesk/backend/pkg/queue"
	"github.com/opsdesk/backend/pkg/redis"
	"github.com/opsdesk/backend/pkg/response"
)

func main() {
	logger := newLogger()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}

	ctx := context.Background()
	pool, err := database.NewPostgresPool(ctx, cfg.Database.DSN(), logger)
	if err != nil {
		logger.Fatal("database", zap.Error(err))
	}
	defer pool.Close()

	if cfg.Server.RunMigrations {
		if err := database.Migrate(ctx, pool, logger); err != nil {
			logger.Fatal("migrate", zap.Error(err))
		}
	}

	db := database.OpenDB(pool)
	defer db.Close()
	runner := query.NewRunner(db)

	rdb, err := redis.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, logger)
	if err != nil {
		logger.Fatal("redis", zap.Error(err))
	}
	defer rdb.Close()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(registry)

	// Resolvers
	sessionRepo := session.NewRepository(runner)
	sessions := session.NewResolver(sessionRepo, logger, m)
	moduleResolver := modules.NewResolver(modules.NewRepository(runner), logger, m)
	roleResolver := roles.NewResolver(roles.NewRepository(runner), logger, m)
	orgRepo := organizations.NewRepository(runner)

	// Access snapshot and admin context
	jobQueue := queue.NewQueue(rdb.Client, logger)
	accessSvc := access.NewService(access.Deps{
		Sessions:          sessions,
		Modules:           moduleResolver,
		Roles:             roleResolver,
		Organizations:     orgRepo,
		Contexts:          access.NewRedisContextStore(rdb.Client, cfg.Access.AdminContextTTL),
		Auditor:           audit.NewPublisher(jobQueue),
		OrgAdminPositions: cfg.Access.OrgAdminPositions,
		Logger:            logger,
		Metrics:           m,
	})
	gate := access.NewGate(m)

	jwtService := auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.ExpireHours)
	authHandler := auth.NewHandler(sessionRepo, jwtService, logger)
	accessHandler := access.NewHandler(accessSvc)
	orgHandler := organizations.NewHandler(orgRepo, logger)
	partnerHandler := partners.NewHandler(partners.NewService(partners.NewRepository(runner), logger, m))

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORS(cfg.Server.CORSAllowedOrigins))
	router.Use(middleware.Logger(logger))

	router.GET("/health", func(c *gin.Context) {
		if err := pool.Ping(c.Request.Context()); err != nil || !rdb.Healthy(c.Request.Context(), 2*time.Second) {
			response.ServiceUnavailable(c, "dependencies unavailable")
			return
		}
		response.OK(c, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(m.Handler()))

	// Auth (public)
	authGroup := router.Group("/auth")
	{
		authGroup.POST("/login", authHandler.Login)
	}

	// Protected API (JWT + access snapshot)
	api := router.Group("")
	api.Use(middleware.JWT(jwtService), access.LoadSnapshot(accessSvc, logger))
	{
		api.GET("/me/access", accessHandler.Me)

		// Non platform admins get applied=false rather than 403.
		api.POST("/admin/context", accessHandler.SetContext)
		api.DELETE("/admin/context", accessHandler.ClearContext)

		api.GET(cfg.Server.OrgListPath, orgHandler.List)
		api.GET("/orgs/:slug/access", access.OrgSlugContext(accessSvc, cfg.Server.OrgListPath), accessHandler.Me)
		api.GET("/orgs/:slug/members",
			access.OrgSlugContext(accessSvc, cfg.Server.OrgListPath),
			access.RequireAccess(gate, access.Requirement{OrgAdmin: true}, nil),
			orgHandler.ListMembers,
		)
		api.GET("/members", access.RequireAccess(gate, access.Requirement{OrgAdmin: true}, nil), orgHandler.ListMembers)

		finance := access.RequireAccess(gate, access.Requirement{Module: "finance"}, nil)
		api.GET("/partners", finance, partnerHandler.List)
		api.GET("/partners/count", finance, partnerHandler.Count)
		api.GET("/partners/:id/check", finance, partnerHandler.Check)
	}

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	go func() {
		logger.Info("server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}
	logger.Info("server stopped")
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}
