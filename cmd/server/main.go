package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"autoeden/internal/app"
	"autoeden/internal/config"
	"autoeden/internal/ratelimit"
	"autoeden/internal/server"
	"autoeden/internal/util"
	"autoeden/pkg/ai"
	"autoeden/pkg/auth"
	"autoeden/pkg/cache"
	"autoeden/pkg/mail"
	"autoeden/pkg/queue"
	"autoeden/pkg/storage"
	"autoeden/pkg/store"
	"autoeden/pkg/whatsapp"
	"autoeden/pkg/ws"
)

// draftCleanupInterval is how often an expired-draft sweep is scheduled.
const draftCleanupInterval = 12 * time.Hour

func main() {
	cfg, err := config.Load(config.ConfigPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	logger := util.InitLogger(cfg.LogLevel)

	accessTTL, err := config.ParseTTL(cfg.AccessTokenTTL, 15*time.Minute)
	if err != nil {
		log.Fatalf("failed to parse access token TTL: %v", err)
	}
	refreshTTL, err := config.ParseTTL(cfg.RefreshTokenTTL, 30*24*time.Hour)
	if err != nil {
		log.Fatalf("failed to parse refresh token TTL: %v", err)
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	})
	defer redisClient.Close()

	var st store.Store
	if cfg.DatabaseDSN != "" {
		gormStore, err := store.NewGormStore(cfg.DatabaseDSN)
		if err != nil {
			log.Fatalf("failed to init database store: %v", err)
		}
		st = gormStore
	} else {
		logger.Warn("no database DSN configured, using the in-memory store")
		st = store.NewMemoryStore()
	}

	var objects storage.ObjectStore
	if cfg.MinioEndpoint != "" {
		objects, err = storage.NewMinioStore(cfg.MinioEndpoint, cfg.MinioAccessKey,
			cfg.MinioSecretKey, cfg.MinioBucket, cfg.MinioUseSSL)
		if err != nil {
			log.Fatalf("failed to init object storage: %v", err)
		}
	} else {
		logger.Warn("no object storage configured, using the in-memory store")
		objects = storage.NewMemoryStore()
	}

	var mailer mail.Sender
	if cfg.SMTPHost != "" {
		mailer = mail.NewSMTPSender(cfg.SMTPHost, cfg.SMTPPort,
			cfg.SMTPUsername, cfg.SMTPPassword, cfg.SMTPFrom)
	}

	var generator ai.TextGenerator
	if cfg.AIAPIKey != "" && cfg.AIModel != "" {
		generator = ai.NewMessagesGenerator(cfg.AIBaseURL, cfg.AIAPIKey, cfg.AIModel)
	}

	taskQueue, err := queue.NewRedisTaskQueue(queue.RedisQueueConfig{
		Client: redisClient,
		Stream: cfg.QueueStream,
	})
	if err != nil {
		log.Fatalf("failed to init task queue: %v", err)
	}

	hub := ws.NewHub(logger)
	tokens := auth.NewTokenService(cfg.JWTSecret, accessTTL)

	appCore, err := app.New(app.Config{
		Store:         st,
		RefreshTokens: store.NewRedisRefreshTokenStore(redisClient),
		Tokens:        tokens,
		Cache:         cache.NewMarketplaceCache(redisClient, time.Duration(cfg.CacheTTLSeconds)*time.Second),
		Queue:         taskQueue,
		Objects:       objects,
		Mailer:        mailer,
		Hub:           hub,
		WhatsApp:      whatsapp.NewClient(cfg.WhatsAppAccessToken, cfg.WhatsAppPhoneNumberID),
		Generator:     generator,
		PublicBaseURL: cfg.PublicBaseURL,
		RefreshTTL:    refreshTTL,
	})
	if err != nil {
		log.Fatalf("failed to init app: %v", err)
	}

	var loginLimiter, writeLimiter server.Limiter
	if cfg.LoginRateLimitPerMinute > 0 {
		loginLimiter, err = ratelimit.NewFixedWindowLimiter(redisClient,
			"autoeden:ratelimit:login", cfg.LoginRateLimitPerMinute, time.Minute)
		if err != nil {
			log.Fatalf("failed to init login rate limiter: %v", err)
		}
	}
	if cfg.WriteRateLimitPerMinute > 0 {
		writeLimiter, err = ratelimit.NewFixedWindowLimiter(redisClient,
			"autoeden:ratelimit:write", cfg.WriteRateLimitPerMinute, time.Minute)
		if err != nil {
			log.Fatalf("failed to init write rate limiter: %v", err)
		}
	}

	httpServer := server.New(server.Config{
		App:            appCore,
		Tokens:         tokens,
		Hub:            hub,
		Logger:         logger,
		LoginLimiter:   loginLimiter,
		WriteLimiter:   writeLimiter,
		MaxUploadBytes: cfg.MaxUploadBytes,
	})

	addr := ":" + cfg.Port
	srv := &http.Server{
		Addr:         addr,
		Handler:      httpServer.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	group, ctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		hub.Run(ctx)
		return nil
	})
	group.Go(func() error {
		concurrency := cfg.QueueConcurrency
		if concurrency <= 0 {
			concurrency = 4
		}
		taskQueue.Start(ctx, concurrency, appCore.HandleTask)
		return nil
	})
	group.Go(func() error {
		ticker := time.NewTicker(draftCleanupInterval)
		defer ticker.Stop()
		appCore.EnqueueDraftCleanup(ctx)
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
				appCore.EnqueueDraftCleanup(ctx)
			}
		}
	})
	group.Go(func() error {
		slog.Info("server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	group.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := group.Wait(); err != nil {
		logger.Error("server error", "err", err)
		os.Exit(1)
	}
}
