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

	ammapp "github.com/oddslab/probpricing/internal/amm/application"
	ammmsg "github.com/oddslab/probpricing/internal/amm/infrastructure/messaging"
	ammredis "github.com/oddslab/probpricing/internal/amm/infrastructure/persistence/redis"
	monitormsg "github.com/oddslab/probpricing/internal/marketmonitor/infrastructure/messaging"
	pricingapp "github.com/oddslab/probpricing/internal/pricing/application"
	pricingmsg "github.com/oddslab/probpricing/internal/pricing/infrastructure/messaging"
	"github.com/oddslab/probpricing/internal/pricing/interfaces/consumer"
	pricinghttp "github.com/oddslab/probpricing/internal/pricing/interfaces/http"
	volapp "github.com/oddslab/probpricing/internal/volatility/application"
	volmysql "github.com/oddslab/probpricing/internal/volatility/infrastructure/persistence/mysql"
	"github.com/oddslab/probpricing/pkg/cache"
	"github.com/oddslab/probpricing/pkg/config"
	"github.com/oddslab/probpricing/pkg/db"
	"github.com/oddslab/probpricing/pkg/logger"
	"github.com/oddslab/probpricing/pkg/metrics"
	"github.com/oddslab/probpricing/pkg/middleware"
	"github.com/oddslab/probpricing/pkg/mq"
	"github.com/oddslab/probpricing/pkg/ratelimit"
)

func main() {
	configPath := flag.String("config", "configs/pricing.toml", "path to config file")
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
	logger.Info(ctx, "starting pricing service",
		"version", cfg.Version,
		"environment", cfg.Environment)

	m := metrics.New("pricing")
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

	redisCache, err := cache.New(cache.Config{
		Host:         cfg.Redis.Host,
		Port:         cfg.Redis.Port,
		Password:     cfg.Redis.Password,
		DB:           cfg.Redis.DB,
		MaxPoolSize:  cfg.Redis.MaxPoolSize,
		ConnTimeout:  cfg.Redis.ConnTimeout,
		ReadTimeout:  cfg.Redis.ReadTimeout,
		WriteTimeout: cfg.Redis.WriteTimeout,
	})
	if err != nil {
		logger.Fatal(ctx, "failed to init redis", "error", err)
	}
	defer redisCache.Close()

	kafkaCfg := mq.KafkaConfig{
		Brokers:      cfg.Kafka.Brokers,
		GroupID:      cfg.Kafka.GroupID,
		MaxRetries:   cfg.Kafka.MaxRetries,
		RetryBackoff: cfg.Kafka.RetryBackoff,
	}
	producer, err := mq.NewProducer(kafkaCfg)
	if err != nil {
		logger.Fatal(ctx, "failed to init kafka producer", "error", err)
	}
	defer producer.Close()

	// 组装各领域服务
	historyRepo := volmysql.NewHistoryRepository(database.DB)
	volService := volapp.NewVolatilityService(historyRepo, cfg.Monitor.HistoryWindowDays, m)

	ammService := ammapp.NewAMMService(
		ammredis.NewPoolRepository(redisCache),
		ammmsg.NewKafkaEventPublisher(producer),
		m,
	)

	pricingService := pricingapp.NewPricingService(
		volService,
		ammService,
		pricingmsg.NewKafkaEventPublisher(producer),
		m,
	)

	// 消费行情更新事件，显著变化时触发波动率重算
	updateConsumer, err := mq.NewConsumer(kafkaCfg, monitormsg.MarketUpdatesTopic)
	if err != nil {
		logger.Fatal(ctx, "failed to init kafka consumer", "error", err)
	}
	marketConsumer := consumer.NewMarketUpdateConsumer(updateConsumer, pricingService)

	consumerCtx, stopConsumer := context.WithCancel(ctx)
	go func() {
		if err := marketConsumer.Run(consumerCtx); err != nil {
			logger.Error(ctx, "market update consumer exited", "error", err)
		}
	}()

	if cfg.Environment == "prod" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(
		middleware.GinRecoveryMiddleware(),
		middleware.GinLoggingMiddleware(),
		middleware.GinCORSMiddleware(),
	)
	if cfg.RateLimit.Enabled {
		limiter := ratelimit.NewRedisLimiter(redisCache.GetClient())
		router.Use(middleware.RateLimitMiddleware(limiter, cfg.RateLimit))
	}

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": cfg.ServiceName})
	})
	pricinghttp.NewHandler(pricingService, ammService).RegisterRoutes(router)

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

	logger.Info(ctx, "shutting down pricing service")
	stopConsumer()
	_ = marketConsumer.Close()

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error(ctx, "server shutdown failed", "error", err)
	}
	logger.Info(ctx, "pricing service stopped")
}
