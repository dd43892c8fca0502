package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/staysearch/unit-index/internal/availability"
	"github.com/staysearch/unit-index/internal/cache"
	"github.com/staysearch/unit-index/internal/config"
	"github.com/staysearch/unit-index/internal/consumer"
	"github.com/staysearch/unit-index/internal/handler"
	"github.com/staysearch/unit-index/internal/indexer"
	"github.com/staysearch/unit-index/internal/repository"
	"github.com/staysearch/unit-index/internal/search"
	"github.com/staysearch/unit-index/internal/store"
	"github.com/staysearch/unit-index/pkg/database"
	pkglog "github.com/staysearch/unit-index/pkg/log"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		pkglog.L().Fatal().Err(err).Msg("failed to load config")
	}

	// Initialize structured logger
	pkglog.Init(pkglog.Config{
		Level:       cfg.Log.Level,
		Pretty:      cfg.Log.Pretty,
		ServiceName: "unit-index",
	})
	logger := pkglog.L()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Index store
	idxStore, err := store.NewRedisStore(cfg.Redis)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to redis")
	}
	defer idxStore.Close()
	logger.Info().Str("addr", cfg.Redis.Address).Msg("index store connected")
	go idxStore.PreloadScripts(ctx, 5, 2*time.Second)

	// Relational source of truth
	db, err := database.New(&cfg.Database)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	if err := database.AutoMigrate(db,
		&repository.UnitRow{},
		&repository.PropertyRow{},
		&repository.UnitTypeRow{},
		&repository.UnitAmenityRow{},
		&repository.UnitServiceRow{},
		&repository.FieldValueRow{},
		&repository.DayScheduleRow{},
	); err != nil {
		logger.Fatal().Err(err).Msg("failed to migrate database")
	}
	sourceRepo := repository.NewGormSourceRepository(db)
	logger.Info().Str("driver", cfg.Database.Driver).Msg("database connected")

	// Result cache
	resultCache, err := cache.NewRedisResultCache(cfg.Cache)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to cache redis")
	}
	defer resultCache.Close()

	// Services
	indexService := indexer.NewService(idxStore, sourceRepo, cfg.Indexer)
	searchEngine := search.NewEngine(idxStore, resultCache, cfg.Relax, cfg.Search)
	availService := availability.NewService(sourceRepo, indexService)

	// Catalog change stream
	if cfg.Kafka.Enabled {
		changeConsumer, err := consumer.NewConfluentConsumer(cfg.Kafka, consumer.NewDispatcher(indexService))
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to create kafka consumer")
		}
		if err := changeConsumer.Start(ctx); err != nil {
			logger.Fatal().Err(err).Msg("failed to start kafka consumer")
		}
		defer changeConsumer.Close()
	}

	// HTTP surface
	httpHandler := handler.NewHandler(searchEngine, availService, indexService)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(pkglog.GinMiddleware(logger))
	httpHandler.RegisterRoutes(r)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{Addr: addr, Handler: r}

	go func() {
		logger.Info().Str("addr", addr).Msg("unit-index starting")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	<-ctx.Done()
	logger.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("server shutdown failed")
	}
}
