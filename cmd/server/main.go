// @title           Train Design Backend API
// @version         1.0.0
// @description     Backend API for AI-assisted parametric train head design. Free-text edit requests are interpreted into parameter deltas and rendered by an external image synthesizer; clients poll the edit history for results.

// @host      localhost:8080
// @BasePath  /api/v1

// @securityDefinitions.apikey Bearer
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.

package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"train-design-backend/internal/config"
	"train-design-backend/internal/dashscope"
	"train-design-backend/internal/handlers"
	"train-design-backend/internal/interpreter"
	"train-design-backend/internal/middleware"
	"train-design-backend/internal/services"
	"train-design-backend/internal/storage"
	"train-design-backend/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load configuration: " + err.Error())
	}

	var logger *zap.Logger
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
		logger, err = zap.NewProduction()
	} else {
		logger, err = zap.NewDevelopment()
	}
	if err != nil {
		panic("failed to initialize logger: " + err.Error())
	}
	defer logger.Sync()

	// Stores: Postgres when configured, in-memory otherwise. The memory
	// store loses all state on restart and exists for local development.
	var (
		params   store.ParameterStore
		sessions store.SessionRegistry
		ledger   store.EditLedger
	)
	if cfg.DatabaseURL != "" {
		migrator, err := store.NewMigrator(cfg.DatabaseURL, logger)
		if err != nil {
			logger.Fatal("failed to initialize migrator", zap.Error(err))
		}
		if err := migrator.Run(); err != nil {
			migrator.Close()
			logger.Fatal("migration failed", zap.Error(err))
		}
		migrator.Close()

		dbClient, err := store.NewDatabaseClient(cfg.DatabaseURL)
		if err != nil {
			logger.Fatal("failed to initialize database client", zap.Error(err))
		}
		defer dbClient.Close()

		params, sessions, ledger = dbClient, dbClient, dbClient
	} else {
		logger.Warn("DATABASE_URL not set, using in-memory store; state is lost on restart")
		mem := store.NewMemoryStore()
		params, sessions, ledger = mem, mem, mem
	}

	// External AI capabilities.
	interpClient := interpreter.NewClient(cfg.AliyunCompatibleBaseURL, cfg.AliyunAPIKey, cfg.InterpreterModel)
	synthClient := dashscope.NewClient(cfg.AliyunAPIBaseURL, cfg.AliyunAPIKey, cfg.SynthesisModel)

	// Render persistence is optional; without it the ledger records the
	// synthesizer's temporary URLs.
	var renders services.RenderStore
	if cfg.StorageConfigured() {
		renderStore, err := storage.NewRenderStore(cfg.SupabaseURL, cfg.SupabaseServiceKey, cfg.SupabaseStorageBucket)
		if err != nil {
			logger.Fatal("failed to initialize render storage", zap.Error(err))
		}
		renders = renderStore
	} else {
		logger.Warn("render storage not configured, generated image URLs will be temporary")
	}

	editService := services.NewEditService(
		params, sessions, ledger,
		interpClient, synthClient, renders,
		cfg.BaseImageURL,
		cfg.SynthesisWorkers, cfg.SynthesisQueueSize,
		logger,
	)

	designHandler := handlers.NewDesignHandler(editService, params, sessions, ledger, cfg.BaseImageURL)
	sessionsHandler := handlers.NewSessionsHandler(sessions)

	router := gin.New()
	router.Use(gin.Logger())
	router.Use(gin.Recovery())

	router.GET("/health", handlers.HealthHandler)

	api := router.Group("/api/v1")
	api.Use(middleware.AuthMiddleware(cfg))

	api.POST("/design/edits", designHandler.SubmitEdit)
	api.GET("/design/parameters", designHandler.GetParameters)
	api.GET("/design/history", designHandler.GetHistory)
	api.GET("/design/history/:history_id", designHandler.GetHistoryItem)
	api.GET("/design/base-image", designHandler.GetBaseImage)

	api.GET("/sessions", sessionsHandler.ListSessions)
	api.POST("/sessions", sessionsHandler.CreateSession)
	api.GET("/sessions/active", sessionsHandler.GetActiveSession)
	api.POST("/sessions/:session_id/activate", sessionsHandler.ActivateSession)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info("server starting", zap.String("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("failed to start server", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown failed", zap.Error(err))
	}

	// Drain queued synthesis jobs so accepted edits reach a terminal state.
	editService.Shutdown()
}
