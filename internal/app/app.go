package app

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"inbox-janitor-go/internal/config"
	"inbox-janitor-go/internal/db"
	"inbox-janitor-go/internal/engine"
	"inbox-janitor-go/internal/executor"
	"inbox-janitor-go/internal/gateway"
	"inbox-janitor-go/internal/handler"
	"inbox-janitor-go/internal/llm"
	"inbox-janitor-go/internal/metrics"
	"inbox-janitor-go/internal/repcache"
	"inbox-janitor-go/internal/repository"
	"inbox-janitor-go/internal/router"
	"inbox-janitor-go/internal/scan"
	"inbox-janitor-go/internal/scheduler"
)

// Run initializes and starts the application
func Run() error {
	logrus.SetFormatter(&logrus.JSONFormatter{})
	logrus.SetLevel(logrus.InfoLevel)

	logrus.Info("Starting Inbox Janitor Service")

	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}

	dbConn, err := db.Init(cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}

	m := metrics.NewMetrics()

	var gw gateway.Gateway
	switch cfg.Mailbox.Provider {
	case "imap":
		gw, err = gateway.NewIMAPGateway(&cfg.Mailbox)
		if err != nil {
			return fmt.Errorf("failed to create IMAP gateway: %w", err)
		}
		logrus.Info("Using IMAP mailbox gateway")
	default:
		gw, err = gateway.NewGmailGateway(&cfg.Mailbox)
		if err != nil {
			return fmt.Errorf("failed to create Gmail gateway: %w", err)
		}
		logrus.Info("Using Gmail API mailbox gateway")
	}

	var senderCache repcache.Cache
	if cfg.Redis.Addr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		senderCache = repcache.NewRedisCache(client)
		logrus.Infof("Using Redis sender cache at %s", cfg.Redis.Addr)
	} else {
		senderCache = repcache.NewMemoryCache(cfg.Cache.MemoryCapacity)
		logrus.Info("Using in-process sender cache")
	}

	reputation := repcache.NewReputation(senderCache, repcache.Options{
		TTL:            cfg.Cache.TTL,
		DecayPerDay:    cfg.Cache.DecayPerDay,
		MaxDecay:       cfg.Cache.MaxDecay,
		ReuseThreshold: cfg.Cache.ReuseThreshold,
	})

	primary := llm.NewBreakerProvider(
		llm.NewRetryProvider(llm.NewHTTPProvider(cfg.LLM.Primary), cfg.LLM.MaxRetries),
		uint32(cfg.LLM.BreakerFailures),
		cfg.LLM.BreakerCooldown,
	)
	var fallback llm.Provider
	if cfg.LLM.Fallback.BaseURL != "" {
		fallback = llm.NewBreakerProvider(
			llm.NewRetryProvider(llm.NewHTTPProvider(cfg.LLM.Fallback), cfg.LLM.MaxRetries),
			uint32(cfg.LLM.BreakerFailures),
			cfg.LLM.BreakerCooldown,
		)
	}

	eng := engine.New(engine.Options{
		Reputation: reputation,
		Primary:    primary,
		Fallback:   fallback,
		BatchSize:  cfg.LLM.BatchSize,
		UserEmail:  cfg.Mailbox.UserEmail,
		Metrics:    m,
	})

	scanRepo := repository.NewScanRepository(dbConn)
	actionRepo := repository.NewActionRepository(dbConn)

	orchestrator := scan.NewOrchestrator(scan.Options{
		Gateway:     gw,
		Store:       scanRepo,
		Classifier:  eng,
		BatchSize:   cfg.Scan.BatchSize,
		MaxItems:    cfg.Scan.MaxItems,
		CostPerItem: cfg.LLM.CostPerItem,
		Metrics:     m,
	})

	exec := executor.New(executor.Options{
		Gateway:    gw,
		Store:      actionRepo,
		ChunkLimit: cfg.Executor.ChunkLimit,
		UndoWindow: cfg.Executor.UndoWindow,
		MaxIDs:     cfg.Executor.MaxIDs,
		Metrics:    m,
	})

	h := handler.NewHandlers(dbConn, orchestrator, exec, m)
	r := router.SetupRouter(h)
	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	var pump *scheduler.Pump
	if cfg.Pump.Enabled {
		pump = scheduler.NewPump(&cfg.Pump, orchestrator, scanRepo)
		if err := pump.Start(); err != nil {
			return fmt.Errorf("failed to start scan pump: %w", err)
		}
	}

	go func() {
		logrus.Infof("Starting HTTP server on port %s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logrus.Fatalf("HTTP server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logrus.Info("Shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if pump != nil {
		if err := pump.Stop(); err != nil {
			logrus.Errorf("Failed to stop scan pump: %v", err)
		}
		pump.Wait()
	}

	if err := srv.Shutdown(ctx); err != nil {
		logrus.Errorf("HTTP server shutdown error: %v", err)
	}

	if err := gw.Close(); err != nil {
		logrus.Errorf("Failed to close mailbox gateway: %v", err)
	}

	logrus.Info("Server stopped gracefully")
	return nil
}
