package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"coinport.io/internal/deposit/config"
	"coinport.io/internal/deposit/handler"
	deposithttp "coinport.io/internal/deposit/http"
	"coinport.io/internal/deposit/repo/persistence"
	"coinport.io/internal/deposit/service"
	"coinport.io/internal/deposit/worker"
	pkgconfig "coinport.io/pkg/config"
	"coinport.io/pkg/logger"
	"coinport.io/pkg/metrics"
	"coinport.io/pkg/orm"
	"coinport.io/pkg/safe"
	"coinport.io/pkg/trace"
	"coinport.io/pkg/xredis"
)

const serviceName = "deposit-service"

func main() {
	var cfg config.Config
	if _, err := pkgconfig.LoadAndWatch(serviceName, &cfg); err != nil {
		panic("load config failed: " + err.Error())
	}

	logger.Init(serviceName, cfg.LogLevel)
	defer logger.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	metrics.MustRegister()

	if cfg.Trace.Enabled {
		shutdown, err := trace.InitTrace(serviceName, cfg.Trace.Host)
		if err != nil {
			logger.Fatal(ctx, "init trace failed", zap.Error(err))
		}
		defer shutdown(context.Background())
	}

	// 基础设施
	db := orm.NewMySQL(&orm.Config{
		DSN:         cfg.Mysql.DataSource,
		MaxIdle:     cfg.Mysql.MaxIdle,
		MaxOpen:     cfg.Mysql.MaxOpen,
		MaxLifetime: cfg.Mysql.MaxLifetime,
	})
	rdb := xredis.NewRedis(&xredis.Config{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	repo := persistence.New(db)
	if err := repo.AutoMigrate(); err != nil {
		logger.Fatal(ctx, "auto migrate failed", zap.Error(err))
	}

	// 业务装配
	dedup := service.NewDedupGate(repo, rdb)
	resolver := service.NewResolver(repo, repo)
	reconciler := service.NewReconciler(repo, repo, repo)
	balances := service.NewBalanceService(repo, rdb)
	processor := service.NewProcessor(repo, dedup, resolver, reconciler, balances)

	pool := worker.New(&worker.Config{
		ConsumerCount: cfg.Worker.ConsumerCount,
		QueueSize:     cfg.Worker.QueueSize,
	}, processor.Process)
	pool.Start(ctx)

	receiver := service.NewReceiver(repo, pool)
	provisioner := service.NewProvisioner(repo, repo, repo, rdb)

	router := deposithttp.NewRouter(
		handler.NewWebhook(receiver, repo),
		handler.NewAccount(balances, provisioner),
		cfg.RateLimit.QPS,
		cfg.RateLimit.Burst,
	)

	server := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	safe.Go(func() {
		logger.Info(ctx, "HTTP server listening", zap.String("addr", cfg.HTTP.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal(ctx, "http server exited", zap.Error(err))
		}
	})

	// 优雅退出：先停收新请求，再等消费池把队列里的事件处理完
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info(ctx, "shutdown signal received")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error(ctx, "http server shutdown error", zap.Error(err))
	}

	pool.Stop()
	logger.Info(ctx, "deposit-service stopped")
}
