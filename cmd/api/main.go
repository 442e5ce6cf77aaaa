package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata" // calendar days in any IANA zone, even on minimal images

	_ "retailsense/api/swagger" // swagger docs
	"retailsense/internal/app"
	"retailsense/internal/config"
	"retailsense/internal/handler"
	"retailsense/internal/logger"
	"retailsense/internal/middleware"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// @title           RetailSense Analytics API
// @version         1.0
// @description     Read-only analytics over the retail transaction ledger: summaries, rollups, daily series, customer segments and product rankings.
// @host            localhost:8080
// @BasePath        /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	configPath := flag.String("config", config.DefaultConfigPath, "path to the TOML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	log := logger.New(logger.Config{Level: cfg.Log.Level, Format: cfg.Log.Format})
	if err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}

	store, err := app.OpenStore(cfg, log)
	if err != nil {
		log.Fatal().Err(err).Str("driver", cfg.Database.Driver).Msg("database connection failed")
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Error().Err(err).Msg("closing store")
		}
	}()

	// Set up dependencies (Repository -> Service -> Handler)
	services, err := app.NewServices(cfg, store.Repo)
	if err != nil {
		log.Fatal().Err(err).Msg("building services")
	}

	analyticsHandler := handler.NewAnalyticsHandler(
		services.Aggregation,
		services.Temporal,
		services.Segmentation,
		services.Products,
		services.Location,
	)
	ledgerHandler := handler.NewLedgerHandler(services.Ledger, services.Location)

	gin.SetMode(cfg.Server.Mode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogger(log))

	// CORS configuration
	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = cfg.Server.AllowedOrigins
	corsConfig.AllowCredentials = true
	corsConfig.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization", "Accept", middleware.RequestIDHeader}
	corsConfig.ExposeHeaders = []string{middleware.RequestIDHeader, "Retry-After"}
	corsConfig.AllowMethods = []string{"GET", "OPTIONS"}
	router.Use(cors.New(corsConfig))

	// Swagger route
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// Health check stays outside auth so probes need no token
	ledgerHandler.RegisterHealth(router)

	auth := middleware.Auth{Secret: []byte(cfg.Auth.JWTSecret)}
	if !auth.Enabled() {
		log.Warn().Msg("JWT_SECRET not set, analytics routes are unauthenticated")
	}

	// API Routing
	api := router.Group("", middleware.Timeout(cfg.Server.RequestTimeout.Duration), auth.RequireRole(cfg.Auth.AllowedRoles...))
	analyticsHandler.RegisterRoutes(api)
	ledgerHandler.RegisterRoutes(api)

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		log.Info().Str("port", cfg.Server.Port).Str("driver", store.Driver).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("server failed")
			stop()
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
	}
}
