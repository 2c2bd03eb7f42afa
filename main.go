package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"stock_alerts_backend/config"
	"stock_alerts_backend/controllers"
	"stock_alerts_backend/middleware"
	"stock_alerts_backend/routes"
	"stock_alerts_backend/scheduler"
	"stock_alerts_backend/services/alerts"
	"stock_alerts_backend/services/feed"
	"stock_alerts_backend/services/history"
	"stock_alerts_backend/services/indicators"
	"stock_alerts_backend/services/notify"
	"stock_alerts_backend/services/plans"
	"stock_alerts_backend/services/realtime"
	"stock_alerts_backend/services/users"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	var logger *zap.Logger
	if cfg.Environment == "production" {
		logger, err = zap.NewProduction()
	} else {
		logger, err = zap.NewDevelopment()
	}
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	rootCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	initCtx, initCancel := context.WithTimeout(rootCtx, 30*time.Second)
	defer initCancel()

	db, err := config.InitDB(cfg)
	if err != nil {
		logger.Fatal("database init failed", zap.Error(err))
	}
	mongoDB, err := config.InitMongo(initCtx, cfg)
	if err != nil {
		logger.Fatal("mongodb init failed", zap.Error(err))
	}
	redisClient, err := config.InitRedis(initCtx, cfg)
	if err != nil {
		logger.Fatal("redis init failed", zap.Error(err))
	}

	// Storage layers.
	hist, err := history.NewStore(db, logger)
	if err != nil {
		logger.Fatal("history store init failed", zap.Error(err))
	}
	repo, err := alerts.NewMongoRepository(initCtx, mongoDB, logger)
	if err != nil {
		logger.Fatal("alert repository init failed", zap.Error(err))
	}
	pushStore, err := notify.NewMongoPushStore(initCtx, mongoDB)
	if err != nil {
		logger.Fatal("push store init failed", zap.Error(err))
	}
	userStore := users.NewStore(mongoDB)

	// Plan resolution: Redis tier in front of the profile lookup.
	planResolver := plans.NewResolver(plans.NewRedisCache(redisClient), userStore, cfg.PlanCacheTTL, logger)

	// Notification pipeline.
	pushSender := notify.NewWebPushSender(cfg.VAPIDSubscriber, cfg.VAPIDPublicKey, cfg.VAPIDPrivateKey)
	var smsSender notify.SMSSender
	var contacts notify.ContactSource
	if cfg.TwilioAccountSID != "" {
		smsSender = notify.NewTwilioSender(cfg.TwilioAccountSID, cfg.TwilioAuthToken, cfg.TwilioFrom)
		contacts = userStore
	}
	dispatcher := notify.NewDispatcher(pushSender, smsSender, 0, logger)
	notifier := notify.NewNotifier(dispatcher, pushStore, contacts, nil, logger)

	// Evaluation pipeline.
	tracker := indicators.NewTracker(hist, logger)
	engine := alerts.NewEngine(repo, tracker, notifier, logger, alerts.WithWorkers(cfg.EngineWorkers))
	engine.Start(rootCtx)

	// Realtime distribution.
	hub := realtime.NewHub(hist, logger)
	verifier := middleware.NewTokenVerifier(cfg.JWTSecret)
	wsHandler := realtime.NewHandler(hub, verifier, planResolver, logger)

	limiter := middleware.NewRateLimiter(nil)

	// Periodic maintenance.
	sched := scheduler.New(hist, repo, tracker, limiter, logger)
	sched.Start()

	// Market data feed fans out to the hub and the alert engine.
	if cfg.FeedURL != "" {
		reader := feed.NewStreamReader(cfg.FeedURL, logger, hub.Broadcast, engine.Submit)
		go reader.Run(rootCtx)
	} else {
		logger.Warn("FEED_URL not set, no market data will flow")
	}

	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())

	routes.SetupRoutes(router, routes.Deps{
		AlertController: controllers.NewAlertController(repo, logger),
		PushController:  controllers.NewPushController(pushStore, cfg.VAPIDPublicKey, logger),
		Realtime:        wsHandler,
		Verifier:        verifier,
		Limiter:         limiter,
	})

	server := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		logger.Info("server listening", zap.String("port", cfg.Port))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown failed", zap.Error(err))
	}
	sched.Stop()
	engine.Stop()
	hub.Shutdown()
	cancel()
	redisClient.Close()
	logger.Info("goodbye")
}
