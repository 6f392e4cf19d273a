package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/idfine/chatbot-platform/internal/api"
	"github.com/idfine/chatbot-platform/internal/catalog"
	"github.com/idfine/chatbot-platform/internal/chat"
	appconfig "github.com/idfine/chatbot-platform/internal/config"
	"github.com/idfine/chatbot-platform/internal/conversation"
	"github.com/idfine/chatbot-platform/internal/flow"
	"github.com/idfine/chatbot-platform/internal/livesupport"
	"github.com/idfine/chatbot-platform/internal/notify"
	"github.com/idfine/chatbot-platform/internal/observability/metrics"
	"github.com/idfine/chatbot-platform/internal/odoo"
	"github.com/idfine/chatbot-platform/internal/otp"
	"github.com/idfine/chatbot-platform/internal/session"
	"github.com/idfine/chatbot-platform/pkg/logging"
)

func main() {
	_ = godotenv.Load()

	cfg := appconfig.Load()
	logger := logging.New(cfg.LogLevel)
	logger.Info("starting chatbot-platform API server",
		"env", cfg.Env,
		"port", cfg.Port,
	)

	ctx := context.Background()

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		logger.Error("redis connection failed", "addr", cfg.RedisAddr, "error", err)
		os.Exit(1)
	}

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("postgres connection failed", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	// Stores
	convStore := conversation.NewStore(pool)
	catalogRepo := catalog.NewRepository(pool)
	sessions := session.NewStore(rdb, cfg.CustomerSessionTTL, logger)

	// ERP
	odooClient := odoo.NewClient(odoo.Config{
		URL:      cfg.OdooURL,
		Database: cfg.OdooDatabase,
		Username: cfg.OdooUser,
		APIKey:   cfg.OdooAPIKey,
		Timeout:  cfg.OdooTimeout,
	}, logger)
	odooService := odoo.NewService(odooClient, odoo.NewCache(rdb, logger), cfg.OdooWarehouseID, logger)

	// Email
	var emailSender notify.EmailSender = notify.NewStubEmailSender(logger)
	if sg := notify.NewSendGridSender(notify.SendGridConfig{
		APIKey:    cfg.SendGridAPIKey,
		FromEmail: cfg.SendGridFromEmail,
		FromName:  cfg.SendGridFromName,
	}, logger); sg != nil {
		emailSender = sg
	}

	// Verification codes
	otpService := otp.NewService(rdb, odooService, emailSender, otp.Options{
		TTL:                cfg.OTPTTL,
		MaxAttempts:        cfg.OTPMaxAttempts,
		Lockout:            cfg.OTPLockout,
		MaxRequestsPerHour: cfg.OTPMaxRequestsPerHour,
	}, logger)

	// Flow engine
	flows := flow.NewManager(rdb, cfg.FlowTTL, logger)
	flows.Register(flow.NewVerifyFlow(otpService, sessions))
	flows.Register(flow.NewOrderFlow(odooService, sessions))
	flows.Register(flow.NewCancelOrderFlow(odooService, odooService, sessions))
	flows.Register(flow.NewTicketFlow(odooService, sessions))
	flows.Register(flow.NewComplaintFlow(odooService, odooService, sessions, emailSender, logger))
	flows.Register(flow.NewDealerFlow(odooService, emailSender, logger))
	flows.Register(flow.NewAddressFlow(odooService, sessions))
	flows.Register(flow.NewQuotationFlow(odooService, sessions, catalogRepo, logger))

	// Orchestrator
	orchestrator := chat.New(chat.Options{
		Store:        convStore,
		Flows:        flows,
		Sessions:     sessions,
		Customers:    odooService,
		Products:     catalogRepo,
		CatalogURLTR: cfg.CatalogURLTR,
		CatalogURLEN: cfg.CatalogURLEN,
		Logger:       logger,
	})

	// Live support
	registry := livesupport.NewRegistry(rdb, logger)
	queue := livesupport.NewQueue(rdb, cfg.QueueEntryTTL, logger)
	assigner := livesupport.NewAssigner(convStore, queue, logger)
	liveHandler := livesupport.NewHandler(convStore, queue, registry, assigner, logger)
	responder := api.NewAIResponder(orchestrator)
	wsHandler := livesupport.NewWSHandler(convStore, registry, queue, responder, cfg.AgentJWTSecret, logger)

	// Metrics
	chatMetrics := metrics.NewChatMetrics(nil)
	liveMetrics := metrics.NewLiveSupportMetrics(nil)
	go sampleLiveSupportGauges(ctx, queue, registry, liveMetrics)

	r := api.New(&api.Config{
		Logger:             logger,
		ChatHandler:        api.NewChatHandler(orchestrator, chatMetrics, logger),
		LiveSupportHandler: liveHandler,
		WSHandler:          wsHandler,
		LiveSupportMetrics: liveMetrics,
		AgentJWTSecret:     cfg.AgentJWTSecret,
		MetricsHandler:     promhttp.Handler(),
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
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

	logger.Info("server stopped")
}

// sampleLiveSupportGauges refreshes the queue-depth and agents-online gauges
// every 30 seconds.
func sampleLiveSupportGauges(ctx context.Context, queue *livesupport.Queue, registry *livesupport.Registry, m *metrics.LiveSupportMetrics) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if count, err := queue.Count(ctx); err == nil {
				m.SetQueueDepth(int(count))
			}
			m.SetAgentsOnline(registry.ListenerCount())
		}
	}
}
