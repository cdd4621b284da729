package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"xmrbet/internal/client/predictions"
	"xmrbet/internal/client/xmrrate"
	"xmrbet/internal/config"
	cronrunner "xmrbet/internal/cron"
	"xmrbet/internal/db"
	"xmrbet/internal/handler"
	"xmrbet/internal/logger"
	"xmrbet/internal/metrics"
	gormrepository "xmrbet/internal/repository/gorm"
	"xmrbet/internal/service"
	"xmrbet/internal/validator"
)

func main() {
	cfgPath := os.Getenv("XB_CONFIG")
	if cfgPath == "" {
		cfgPath = "config/config.yaml"
	}

	envOnly := false
	if envOnlyRaw := os.Getenv("XB_ENV_ONLY"); envOnlyRaw != "" {
		envOnly = strings.EqualFold(envOnlyRaw, "true") || envOnlyRaw == "1"
	}

	cfg, err := config.Load(cfgPath, envOnly)
	if err != nil {
		panic(err)
	}

	logger, err := logger.New(cfg.Log)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	dbConn, err := db.Open(cfg.DB)
	if err != nil {
		logger.Fatal("db open failed", zap.Error(err))
	}
	defer db.Close(dbConn)

	if err := db.SetTimezone(dbConn, cfg.DB.Timezone); err != nil {
		logger.Warn("failed to set timezone", zap.Error(err))
	}
	if err := db.AutoMigrate(dbConn); err != nil {
		logger.Fatal("auto-migrate failed", zap.Error(err))
	}

	apiHTTP := &http.Client{Timeout: cfg.API.Timeout}
	apiClient := predictions.NewClient(apiHTTP, cfg.API.BaseURL)
	store := gormrepository.New(dbConn.Gorm)

	rateSource := &xmrrate.Source{
		Logger:       logger,
		Endpoint:     cfg.Rate.Endpoint,
		PollInterval: cfg.Rate.PollInterval,
		MaxStaleness: cfg.Rate.MaxStaleness,
	}

	poolRunner := &validator.Runner{Validator: &validator.PoolValidator{
		Prober:       apiClient,
		Logger:       logger,
		Workers:      cfg.Betting.ValidatorWorkers,
		ProbeTimeout: cfg.Betting.ProbeTimeout,
	}}
	marketSync := service.NewMarketSyncService(store, apiClient, poolRunner, logger, cfg.Betting.IncludeResolvedList)

	minBet := decimal.NewFromFloat(cfg.Betting.MinBetUSD)
	betTracker := &service.BetTracker{
		Repo:      store,
		API:       apiClient,
		Markets:   marketSync,
		Logger:    logger,
		MinBetUSD: minBet,
	}
	slipAggregator := &service.SlipAggregator{
		Repo:      store,
		API:       apiClient,
		Markets:   marketSync,
		Logger:    logger,
		MinBetUSD: minBet,
	}
	authService := &service.AuthService{
		Repo:             store,
		API:              apiClient,
		Logger:           logger,
		Difficulty:       cfg.PoW.Difficulty,
		ProgressEvery:    cfg.PoW.ProgressEvery,
		ProgressInterval: cfg.PoW.ProgressInterval,
	}
	statusPoller := &service.StatusPoller{
		Repo:   store,
		Bets:   betTracker,
		Slips:  slipAggregator,
		Logger: logger,
	}

	if strings.EqualFold(cfg.App.Env, "dev") {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(corsMiddleware())

	healthHandler := &handler.HealthHandler{DB: dbConn.Gorm}
	healthHandler.Register(engine)
	marketsHandler := &handler.MarketsHandler{
		Repo:        store,
		Sync:        marketSync,
		Client:      apiClient,
		Rate:        rateSource,
		Logger:      logger,
		ClosingSoon: cfg.Betting.ClosingSoon,
	}
	marketsHandler.Register(engine)
	betsHandler := &handler.BetsHandler{Tracker: betTracker, Repo: store, Logger: logger}
	betsHandler.Register(engine)
	slipsHandler := &handler.SlipsHandler{Aggregator: slipAggregator, Repo: store, Logger: logger}
	slipsHandler.Register(engine)
	authHandler := &handler.AuthHandler{Auth: authService, Logger: logger}
	authHandler.Register(engine)

	srv := &http.Server{
		Addr:    cfg.Server.HTTPAddr,
		Handler: engine,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go marketSync.Run(ctx, cfg.Betting.MarketRefresh)
	go func() {
		if err := rateSource.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Warn("rate poller stopped", zap.Error(err))
		}
	}()
	if cfg.Rate.StreamURL != "" {
		stream := &xmrrate.Stream{URL: cfg.Rate.StreamURL, Source: rateSource, Logger: logger}
		go func() {
			if err := stream.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Warn("rate stream stopped", zap.Error(err))
			}
		}()
	}
	go statusPoller.RunBets(ctx, cfg.Poll.BetStatus)
	go statusPoller.RunSlips(ctx, cfg.Poll.SlipStatus)

	cronRunner := cronrunner.New(logger, ctx)
	sweepSpec := "@every " + cfg.Betting.ResolvedLegSweep.String()
	if _, err := cronRunner.Add(sweepSpec, func(ctx context.Context) {
		slipAggregator.SweepResolvedLegs(ctx)
	}); err != nil {
		logger.Warn("cron register leg sweep failed", zap.Error(err))
	}
	cronRunner.Start()
	defer cronRunner.Stop()

	var metricsSrv *http.Server
	if cfg.Metrics.Enabled {
		metricsSrv = metrics.StartServer(cfg.Metrics.Addr, func(ctx context.Context) error {
			return db.Ping(dbConn)
		})
		logger.Info("metrics server started", zap.String("addr", cfg.Metrics.Addr))
	}

	errCh := make(chan error, 2)

	go func() {
		logger.Info("http server starting", zap.String("addr", cfg.Server.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown requested")
	case err := <-errCh:
		logger.Error("server error", zap.Error(err))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
	if metricsSrv != nil {
		_ = metricsSrv.Shutdown(shutdownCtx)
	}
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET,POST,PUT,DELETE,OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type,Authorization")
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(204)
			return
		}
		c.Next()
	}
}
