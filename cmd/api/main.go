package main

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/slotwise/booking-assistant/cmd/mainconfig"
	"github.com/slotwise/booking-assistant/internal/api/router"
	"github.com/slotwise/booking-assistant/internal/calendar"
	appconfig "github.com/slotwise/booking-assistant/internal/config"
	"github.com/slotwise/booking-assistant/internal/engine"
	"github.com/slotwise/booking-assistant/internal/http/handlers"
	"github.com/slotwise/booking-assistant/internal/intent"
	"github.com/slotwise/booking-assistant/internal/llm"
	"github.com/slotwise/booking-assistant/internal/observability/metrics"
	"github.com/slotwise/booking-assistant/internal/session"
	"github.com/slotwise/booking-assistant/pkg/logging"
)

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg := appconfig.Load()

	logger := logging.New(cfg.LogLevel)
	logger.Info("starting booking-assistant API server",
		"env", cfg.Env,
		"port", cfg.Port,
	)

	ctx := context.Background()

	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		logger.Error("invalid timezone", "timezone", cfg.Timezone, "error", err)
		os.Exit(1)
	}

	// Session store
	redisOpts := &redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	}
	if cfg.RedisTLS {
		redisOpts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	redisClient := redis.NewClient(redisOpts)
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Error("failed to connect to redis", "addr", cfg.RedisAddr, "error", err)
		os.Exit(1)
	}
	store := session.NewStore(redisClient, cfg.SessionTTL, nil)

	// LLM chain: Bedrock primary, Gemini fallback when configured.
	awsCfg, err := mainconfig.LoadAWSConfig(ctx, cfg)
	if err != nil {
		logger.Error("failed to load AWS config", "error", err)
		os.Exit(1)
	}
	var llmClient llm.Client = llm.NewBedrockClient(bedrockruntime.NewFromConfig(awsCfg))
	if cfg.GeminiAPIKey != "" {
		gemini, err := llm.NewGeminiClient(ctx, cfg.GeminiAPIKey, cfg.GeminiModelID)
		if err != nil {
			logger.Error("failed to initialize Gemini client", "error", err)
			os.Exit(1)
		}
		defer gemini.Close()
		llmClient = llm.NewFallbackClient(llmClient, gemini, logger)
	} else {
		logger.Warn("GEMINI_API_KEY not set, running without LLM fallback")
	}

	classifier := intent.NewClassifier(llmClient, cfg.BedrockModelID, cfg.IntentCacheSize, cfg.IntentMaxAttempts, logger)

	// Calendar gateway
	gateway, err := calendar.NewGoogleGateway(ctx, cfg.GoogleCredentialsFile, cfg.GoogleCalendarID, loc, logger)
	if err != nil {
		logger.Error("failed to initialize calendar gateway", "error", err)
		os.Exit(1)
	}
	if err := gateway.Authenticate(ctx); err != nil {
		// Not fatal: auth failures also surface per turn, and credentials
		// may become valid after startup.
		logger.Warn("calendar authentication failed at startup", "error", err)
	}

	convMetrics := metrics.NewConversationMetrics(nil)

	eng := engine.New(gateway, classifier, engine.Options{
		Metrics:           convMetrics,
		Logger:            logger,
		Location:          loc,
		BookingMaxRetries: cfg.BookingMaxRetries,
	})

	chatHandler := handlers.NewChatHandler(eng, store, logger)

	r := router.New(&router.Config{
		ChatHandler:    chatHandler,
		MetricsHandler: promhttp.Handler(),
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	if err := redisClient.Close(); err != nil {
		logger.Warn("failed to close redis client", "error", err)
	}

	logger.Info("server stopped")
	fmt.Println("Server exited gracefully")
}
