package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	goredis "github.com/redis/go-redis/v9"

	"github.com/soccervortex/skinvault-backend/internal/common/config"
	"github.com/soccervortex/skinvault-backend/internal/common/logger"
	"github.com/soccervortex/skinvault-backend/internal/common/middleware"
	"github.com/soccervortex/skinvault-backend/internal/common/session"
	claimshttp "github.com/soccervortex/skinvault-backend/internal/features/claims/delivery/http"
	claimsredis "github.com/soccervortex/skinvault-backend/internal/features/claims/repository/redis"
	claimservice "github.com/soccervortex/skinvault-backend/internal/features/claims/service"
	"github.com/soccervortex/skinvault-backend/internal/platform/redis"
	"github.com/soccervortex/skinvault-backend/internal/service/notifications"
)

const serviceName = "skinvault-backend"

func main() {
	cfg := config.Load()

	logger.Init(serviceName, cfg.Debug)
	log := logger.With("main")

	log.Info().Bool("debug", cfg.Debug).Msg("starting")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rdb, err := redis.Open(ctx, fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port), cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		log.Fatal().Err(err).Msg("redis connection failed")
	}
	defer rdb.Close()

	repo := claimsredis.NewClaimsRepository(rdb)
	notifier := notifications.NewService(rdb, cfg.Claims.ManualClaimWebhookURL)
	claimSvc := claimservice.NewClaimService(repo, notifier, notifier, cfg)
	sweeper := claimservice.NewRerollSweeper(repo, notifier, cfg)

	if !cfg.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(middleware.RequestID())
	router.Use(middleware.Logger())
	router.Use(middleware.ErrorHandler(log))

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = []string{cfg.Server.Origin}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Content-Type", "Authorization", "Accept"}
	corsConfig.AllowCredentials = true
	router.Use(cors.New(corsConfig))

	router.Use(middleware.SessionAuth(session.NewRedisResolver(rdb)))

	handler := claimshttp.NewClaimHandler(claimSvc, sweeper, cfg)
	handler.RegisterRoutes(router.Group("/api/v1"))
	handler.RegisterCron(router)

	registerProbes(router, rdb)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Int("port", cfg.Server.Port).Msg("http server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("http server failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("forced shutdown")
	}

	log.Info().Msg("server exited")
}

func registerProbes(router *gin.Engine, rdb *goredis.Client) {
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "ok",
			"timestamp": time.Now().UTC(),
			"service":   serviceName,
		})
	})

	router.GET("/live", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	router.GET("/ready", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		if err := rdb.Ping(ctx).Err(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":  "unready",
				"error":   "redis unavailable",
				"details": err.Error(),
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"status":    "ready",
			"timestamp": time.Now().UTC(),
			"service":   serviceName,
		})
	})
}
