package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"

	"github.com/wyfcoding/optionstrading/internal/flashloan"
	optionapp "github.com/wyfcoding/optionstrading/internal/option/application"
	optiondomain "github.com/wyfcoding/optionstrading/internal/option/domain"
	"github.com/wyfcoding/optionstrading/internal/option/infrastructure/messaging"
	optionmysql "github.com/wyfcoding/optionstrading/internal/option/infrastructure/persistence/mysql"
	optionhttp "github.com/wyfcoding/optionstrading/internal/option/interfaces/http"
	poolapp "github.com/wyfcoding/optionstrading/internal/pool/application"
	pooldomain "github.com/wyfcoding/optionstrading/internal/pool/domain"
	poolmysql "github.com/wyfcoding/optionstrading/internal/pool/infrastructure/persistence/mysql"
	poolhttp "github.com/wyfcoding/optionstrading/internal/pool/interfaces/http"
	"github.com/wyfcoding/optionstrading/internal/swap"
	tokenapp "github.com/wyfcoding/optionstrading/internal/token/application"
	tokendomain "github.com/wyfcoding/optionstrading/internal/token/domain"
	tokenmysql "github.com/wyfcoding/optionstrading/internal/token/infrastructure/persistence/mysql"
	tokenhttp "github.com/wyfcoding/optionstrading/internal/token/interfaces/http"
	"github.com/wyfcoding/optionstrading/pkg/cache"
	"github.com/wyfcoding/optionstrading/pkg/config"
	"github.com/wyfcoding/optionstrading/pkg/db"
	"github.com/wyfcoding/optionstrading/pkg/logger"
	"github.com/wyfcoding/optionstrading/pkg/metrics"
	"github.com/wyfcoding/optionstrading/pkg/middleware"
	"github.com/wyfcoding/optionstrading/pkg/mq"
)

var configPath = flag.String("config", "configs/config.toml", "config file path")

func main() {
	flag.Parse()

	// 1. 初始化配置
	cfg, err := config.Load(*configPath)
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}

	// 2. 初始化日志
	if err := logger.Init(logger.Config{
		Level:      cfg.Logger.Level,
		Format:     cfg.Logger.Format,
		Output:     cfg.Logger.Output,
		FilePath:   cfg.Logger.FilePath,
		MaxSize:    cfg.Logger.MaxSize,
		MaxBackups: cfg.Logger.MaxBackups,
		MaxAge:     cfg.Logger.MaxAge,
		Compress:   cfg.Logger.Compress,
	}); err != nil {
		panic(fmt.Sprintf("failed to init logger: %v", err))
	}
	log := logger.Get()

	// 3. 初始化指标
	m := metrics.New(cfg.ServiceName)
	if cfg.Metrics.Enabled {
		if err := m.Register(); err != nil {
			slog.Error("failed to register metrics", "error", err)
			os.Exit(1)
		}
	}

	// 4. 初始化数据库
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
		slog.Error("failed to connect database", "error", err)
		os.Exit(1)
	}
	defer database.Close()

	// Auto Migrate (仅用于开发方便)
	if cfg.Environment == "dev" {
		if err := database.AutoMigrate(
			&optiondomain.Option{},
			&optiondomain.OptionHolding{},
			&pooldomain.TokenBalance{},
			&tokendomain.Balance{},
			&tokendomain.Allowance{},
		); err != nil {
			slog.Error("failed to migrate database", "error", err)
		}
	}

	// 5. 初始化 Redis 与 Kafka
	redisCache, err := cache.New(cache.Config{
		Host:         cfg.Redis.Host,
		Port:         cfg.Redis.Port,
		Password:     cfg.Redis.Password,
		DB:           cfg.Redis.DB,
		MaxPoolSize:  cfg.Redis.MaxPoolSize,
		ReadTimeout:  cfg.Redis.ReadTimeout,
		WriteTimeout: cfg.Redis.WriteTimeout,
	})
	if err != nil {
		slog.Error("failed to init redis", "error", err)
		os.Exit(1)
	}
	defer redisCache.Close()

	producer, err := mq.NewProducer(mq.KafkaConfig{
		Brokers:      cfg.Kafka.Brokers,
		GroupID:      cfg.Kafka.GroupID,
		MaxRetries:   cfg.Kafka.MaxRetries,
		RetryBackoff: cfg.Kafka.RetryBackoff,
	})
	if err != nil {
		slog.Error("failed to init kafka producer", "error", err)
		os.Exit(1)
	}
	defer producer.Close()

	publisher := messaging.NewKafkaEventPublisher(producer)

	// 6. 初始化仓储与应用服务
	tokenRepo := tokenmysql.NewLedgerRepository(database.DB)
	poolRepo := poolmysql.NewBalanceRepository(database.DB)
	optionRepo := optionmysql.NewOptionRepository(database.DB)

	tokenService := tokenapp.NewTokenService(tokenRepo, log)
	poolService := poolapp.NewPoolService(
		cfg.Protocol.PoolOwner, cfg.Protocol.PoolAccount,
		poolRepo, tokenService, publisher, log)
	if err := poolService.SetOptionTrigger(context.Background(), cfg.Protocol.PoolOwner, cfg.Protocol.TriggerAccount); err != nil {
		slog.Error("failed to bind option trigger", "error", err)
		os.Exit(1)
	}

	lender := flashloan.NewTokenLender(cfg.Protocol.FlashLenderAccount, tokenService, log)
	swapper := swap.NewFixedRateSwapper(cfg.Protocol.SwapInventoryAccount, tokenService, log)

	optionService := optionapp.NewOptionService(
		cfg.Protocol.TriggerAccount,
		optionRepo, poolService, lender, swapper,
		publisher, database, redisCache, m, log)

	// 7. 初始化接口层
	if cfg.Environment != "dev" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(middleware.GinRecovery(), middleware.GinLogging())
	if cfg.Metrics.Enabled {
		router.Use(middleware.GinMetrics(m))
		router.GET(cfg.Metrics.Path, metrics.Handler())
	}
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": cfg.ServiceName})
	})

	optionhttp.NewOptionHandler(optionService).RegisterRoutes(router)
	poolhttp.NewPoolHandler(poolService).RegisterRoutes(router)
	tokenhttp.NewTokenHandler(tokenService).RegisterRoutes(router)

	// 8. 启动与优雅关闭
	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.HTTP.Port),
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeout) * time.Second,
	}

	g, ctx := errgroup.WithContext(context.Background())

	g.Go(func() error {
		slog.Info("HTTP server starting", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})

	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		select {
		case <-quit:
			slog.Info("shutting down server...")
		case <-ctx.Done():
			slog.Info("context cancelled, shutting down...")
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		slog.Error("server exited with error", "error", err)
	}
}
