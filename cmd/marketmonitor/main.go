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

	"github.com/oddslab/probpricing/internal/marketmonitor/application"
	"github.com/oddslab/probpricing/internal/marketmonitor/domain"
	"github.com/oddslab/probpricing/internal/marketmonitor/infrastructure/feed"
	monitormsg "github.com/oddslab/probpricing/internal/marketmonitor/infrastructure/messaging"
	monitorhttp "github.com/oddslab/probpricing/internal/marketmonitor/interfaces/http"
	volmysql "github.com/oddslab/probpricing/internal/volatility/infrastructure/persistence/mysql"
	"github.com/oddslab/probpricing/pkg/config"
	"github.com/oddslab/probpricing/pkg/db"
	"github.com/oddslab/probpricing/pkg/logger"
	"github.com/oddslab/probpricing/pkg/metrics"
	"github.com/oddslab/probpricing/pkg/middleware"
	"github.com/oddslab/probpricing/pkg/mq"
)

func main() {
	configPath := flag.String("config", "configs/marketmonitor.toml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	if err := logger.Init(logger.Config{
		Level:      cfg.Logger.Level,
		Format:     cfg.Logger.Format,
		Output:     cfg.Logger.Output,
		FilePath:   cfg.Logger.FilePath,
		MaxSize:    cfg.Logger.MaxSize,
		MaxBackups: cfg.Logger.MaxBackups,
		MaxAge:     cfg.Logger.MaxAge,
		Compress:   cfg.Logger.Compress,
		WithCaller: cfg.Logger.WithCaller,
	}); err != nil {
		fmt.Fprintf(os.Stderr, "failed to init logger: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()
	logger.Info(ctx, "starting market monitor service",
		"version", cfg.Version,
		"environment", cfg.Environment)

	m := metrics.New("marketmonitor")
	if cfg.Metrics.Enabled {
		if err := m.Register(); err != nil {
			logger.Fatal(ctx, "failed to register metrics", "error", err)
		}
		_ = metrics.StartHTTPServer(cfg.Metrics.Port, cfg.Metrics.Path)
	}

	database, err := db.Init(db.Config{
		Driver:             cfg.Database.Driver,
		DSN:                cfg.Database.DSN,
		MaxOpenConns:       cfg.Database.MaxOpenConns,
		MaxIdleConns:       cfg.Database.MaxIdleConns,
		ConnMaxLifetime:    cfg.Database.ConnMaxLifetime,
		LogEnabled:         cfg.Database.LogEnabled,
		SlowQueryThreshold: cfg.Database.SlowQueryThreshold,
	})
	if err != nil {
		logger.Fatal(ctx, "failed to init database", "error", err)
	}
	defer database.Close()

	producer, err := mq.NewProducer(mq.KafkaConfig{
		Brokers:      cfg.Kafka.Brokers,
		GroupID:      cfg.Kafka.GroupID,
		MaxRetries:   cfg.Kafka.MaxRetries,
		RetryBackoff: cfg.Kafka.RetryBackoff,
	})
	if err != nil {
		logger.Fatal(ctx, "failed to init kafka producer", "error", err)
	}
	defer producer.Close()

	marketFeed := buildFeed(cfg.Feed)
	historyRepo := volmysql.NewHistoryRepository(database.DB)
	monitor := application.NewMarketMonitor(
		marketFeed,
		historyRepo,
		monitormsg.NewKafkaUpdatePublisher(producer),
		m,
		time.Duration(cfg.Monitor.IntervalMs)*time.Millisecond,
	)

	for _, instrumentID := range cfg.Monitor.Instruments {
		monitor.StartMonitoring(instrumentID, 0)
	}

	if cfg.Environment == "prod" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(
		middleware.GinRecoveryMiddleware(),
		middleware.GinLoggingMiddleware(),
		middleware.GinCORSMiddleware(),
	)

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": cfg.ServiceName})
	})
	monitorhttp.NewHandler(monitor).RegisterRoutes(router)

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.HTTP.Port),
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeout) * time.Second,
	}

	go func() {
		logger.Info(ctx, "HTTP server listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal(ctx, "HTTP server failed", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info(ctx, "shutting down market monitor service")
	monitor.Shutdown()
	if closer, ok := marketFeed.(interface{ Close() error }); ok {
		_ = closer.Close()
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error(ctx, "server shutdown failed", "error", err)
	}
	logger.Info(ctx, "market monitor service stopped")
}

func buildFeed(cfg config.FeedConfig) domain.Feed {
	switch cfg.Type {
	case "http":
		return feed.NewHTTPFeed(cfg.Endpoint, time.Duration(cfg.Timeout)*time.Second)
	case "websocket":
		return feed.NewWSFeed(cfg.Endpoint)
	default:
		return feed.NewSimFeed(time.Now().UnixNano())
	}
}
