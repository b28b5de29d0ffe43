package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"farmtrace/marketplace-backend/internal/auth"
	"farmtrace/marketplace-backend/internal/catalog"
	"farmtrace/marketplace-backend/internal/config"
	"farmtrace/marketplace-backend/internal/livemap"
	"farmtrace/marketplace-backend/internal/logging"
	"farmtrace/marketplace-backend/internal/mapsync"
	"farmtrace/marketplace-backend/internal/metrics"
	"farmtrace/marketplace-backend/internal/moderation"
	"farmtrace/marketplace-backend/internal/products"
	"farmtrace/marketplace-backend/internal/verification"
	"farmtrace/marketplace-backend/internal/visibility"
	"farmtrace/marketplace-backend/pkg/geospatial"
	"farmtrace/marketplace-backend/pkg/storage"
)

func main() {
	configPath := flag.String("config", "config.json", "path to the JSON config file")
	flag.Parse()

	// .env is optional; real environment variables win
	_ = godotenv.Load()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.New(logging.Config{
		ServiceName: "farmtrace-api",
		Environment: cfg.Logging.Environment,
		Level:       cfg.Logging.Level,
		Format:      cfg.Logging.Format,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("Server failed", zap.Error(err))
	}
	logger.Info("Server exiting")
}

func run(cfg *config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(registry)

	productRepo, historyRepo, closeDB, err := openStores(cfg.Database, logger)
	if err != nil {
		return err
	}
	defer closeDB()

	matcher, err := jurisdictionMatcher(cfg.Jurisdiction, logger)
	if err != nil {
		return err
	}
	filter := visibility.NewFilter(matcher)

	catalogService := catalog.NewService(productRepo, catalog.NewHub(), nil, logger.Named("catalog"))
	verificationService := verification.NewService(catalogService, historyRepo, nil, m, logger.Named("verification"))

	var (
		images       products.ImageResolver
		resolveImage func(string) string
	)
	if cfg.Storage.S3Enabled {
		presigner, err := storage.NewS3Presigner(ctx, storage.S3Config{
			Region:     cfg.Storage.Region,
			Endpoint:   cfg.Storage.Endpoint,
			PathStyle:  cfg.Storage.PathStyle,
			PresignTTL: cfg.Storage.PresignTTL,
		}, logger.Named("storage"))
		if err != nil {
			return err
		}
		images = presigner
		resolveImage = presigner.ResolveFunc(ctx)
	}

	mapManager := livemap.NewManager(catalogService, filter, livemap.Options{
		DefaultLayer:   mapsync.TileLayer(cfg.Map.DefaultLayer),
		LocateTimeout:  cfg.Map.LocateTimeout,
		LocateZoom:     cfg.Map.LocateZoom,
		AllowedOrigins: cfg.Map.AllowedOrigins,
		ResolveImage:   resolveImage,
		Metrics:        m,
		Logger:         logger.Named("livemap"),
	})
	defer mapManager.Close()

	digest := moderation.NewDigest(cfg.Moderation.DigestCron, catalogService, nil, m, logger.Named("digest"))
	if cfg.Moderation.DigestCron != "" {
		if err := digest.Start(ctx); err != nil {
			return err
		}
		defer digest.Stop()
	}

	tokens := auth.NewTokenService(cfg.Security.JWTSecret, cfg.Security.Issuer)

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), logging.GinMiddleware(logger.Named("http"), m))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "healthy",
			"timestamp": time.Now().UTC(),
		})
	})
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))

	api := router.Group("/api/v1")
	auth.RegisterRoutes(api, auth.NewHandler(), tokens)

	secured := api.Group("", auth.RequireViewer(tokens))
	{
		products.NewHandler(catalogService, verificationService, filter, images, logger.Named("products")).RegisterRoutes(secured)
		moderation.NewHandler(catalogService, filter, logger.Named("moderation")).RegisterRoutes(secured)
		livemap.NewHandler(mapManager, logger.Named("livemap")).RegisterRoutes(secured)
	}

	srv := &http.Server{
		Addr:         cfg.Server.GetServerAddr(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()
	logger.Info("Server started",
		zap.String("addr", srv.Addr),
		zap.String("database", cfg.Database.Driver),
		zap.String("jurisdiction", cfg.Jurisdiction.Matcher))

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	logger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	return nil
}

// openStores returns the product and history repositories for the configured driver
func openStores(cfg config.DatabaseConfig, logger *zap.Logger) (catalog.Repository, verification.HistoryRepository, func(), error) {
	var dialector gorm.Dialector
	switch cfg.Driver {
	case "memory":
		logger.Warn("Using the in-memory catalog; data is lost on restart")
		return catalog.NewMemoryRepository(), verification.NewMemoryHistoryRepository(), func() {}, nil
	case "postgres":
		dialector = postgres.Open(cfg.GetDatabaseURL())
	case "sqlite":
		dialector = sqlite.Open(cfg.SQLitePath)
	default:
		return nil, nil, nil, fmt.Errorf("unknown database driver %q", cfg.Driver)
	}

	logger.Info("Connecting to database", zap.String("driver", cfg.Driver), zap.String("host", cfg.Host))
	db, err := gorm.Open(dialector, &gorm.Config{Logger: logging.NewGormLogger(logger, 200*time.Millisecond)})
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, nil, nil, err
	}
	if cfg.Driver == "sqlite" {
		// sqlite serialises writers
		sqlDB.SetMaxOpenConns(1)
	} else {
		sqlDB.SetMaxOpenConns(cfg.MaxConnections)
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
		sqlDB.SetConnMaxLifetime(cfg.MaxLifetime)
	}

	productRepo := catalog.NewGormRepository(db)
	historyRepo := verification.NewGormHistoryRepository(db)
	if err := productRepo.AutoMigrate(); err != nil {
		return nil, nil, nil, fmt.Errorf("failed to migrate products: %w", err)
	}
	if err := historyRepo.AutoMigrate(); err != nil {
		return nil, nil, nil, fmt.Errorf("failed to migrate verification history: %w", err)
	}
	return productRepo, historyRepo, func() { _ = sqlDB.Close() }, nil
}

func jurisdictionMatcher(cfg config.JurisdictionConfig, logger *zap.Logger) (visibility.JurisdictionMatcher, error) {
	if cfg.Matcher != "geofence" {
		return visibility.SubstringMatcher{}, nil
	}
	regions, err := geospatial.LoadRegions(cfg.RegionsFile, cfg.NameProperty)
	if err != nil {
		return nil, fmt.Errorf("failed to load jurisdiction regions: %w", err)
	}
	logger.Info("Loaded jurisdiction regions", zap.Int("regions", len(regions)), zap.String("file", cfg.RegionsFile))
	return visibility.NewGeofenceMatcher(regions), nil
}
