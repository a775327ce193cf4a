package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"eventify/internal/analytics"
	"eventify/internal/analytics/analytics_api"
	"eventify/internal/auth"
	"eventify/internal/cache"
	"eventify/internal/config"
	"eventify/internal/database"
	"eventify/internal/database/migrations"
	"eventify/internal/events"
	eventdb "eventify/internal/events/db"
	"eventify/internal/events/events_api"
	"eventify/internal/identity"
	"eventify/internal/kafka"
	"eventify/internal/logger"
	"eventify/internal/media"
	"eventify/internal/order"
	orderdb "eventify/internal/order/db"
	"eventify/internal/order/order_api"
	"eventify/internal/profile/profile_api"
	"eventify/internal/router"
	"eventify/internal/sse"
	"eventify/internal/tickets"
	ticketdb "eventify/internal/tickets/db"
	qr "eventify/internal/tickets/qr_generator"
	"eventify/internal/tickets/ticket_api"
	"eventify/internal/users"
	userdb "eventify/internal/users/db"
	"eventify/internal/users/webhook_api"

	"github.com/go-redis/redis/v8"
	"github.com/joho/godotenv"
	svix "github.com/svix/svix-webhooks/go"
	"github.com/uptrace/bun"
)

const (
	lockTTL         = 30 * time.Second
	shutdownTimeout = 5 * time.Second
)

func main() {
	envErr := godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.NewLogger("eventify", cfg.Log.Dir, cfg.Log.Level)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Close()

	log.Info("APP", "Starting Eventify initialization")
	if envErr != nil {
		log.Warn("CONFIG", ".env file not found, using environment variables")
	} else {
		log.Info("CONFIG", "Loaded environment variables from .env file")
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal("CONFIG", err.Error())
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// --- Storage ---
	bunDB, err := database.Open(ctx, cfg.Database, log)
	if err != nil {
		log.Fatal("DATABASE", err.Error())
	}
	defer bunDB.Close()

	if cfg.Database.AutoMigrate {
		if err := migrate(ctx, bunDB, cfg.Database.Driver, log); err != nil {
			log.Fatal("MIGRATE", err.Error())
		}
	}

	// --- Redis ---
	var (
		redisClient   *redis.Client
		categoryCache events.CategoryCache = cache.NopCategoryCache{}
		deduper       webhook_api.Deduper  = cache.NopDeduper{}
		locker        order.Locker         = cache.NopLocker{}
	)
	if cfg.Redis.Enabled() {
		redisClient, err = cache.Connect(ctx, cfg.Redis.Addr, cfg.Redis.Password, log)
		if err != nil {
			log.Fatal("REDIS", err.Error())
		}
		defer redisClient.Close()
		categoryCache = cache.NewCategoryCache(redisClient, cfg.Redis.CategoryTTL)
		deduper = cache.NewDeduper(redisClient, cfg.Redis.WebhookDedupe)
		locker = cache.NewLocker(redisClient, lockTTL)
	} else {
		log.Warn("REDIS", "REDIS_ADDR not set, caching and webhook de-duplication are disabled")
	}

	// --- Kafka ---
	var publisher kafka.Publisher = kafka.NopPublisher{}
	if cfg.Kafka.Enabled {
		if err := kafka.EnsureTopicsExist(cfg.Kafka.Brokers, kafka.Topics, log); err != nil {
			log.Warn("KAFKA", fmt.Sprintf("Topic creation might have failed: %v", err))
		}
		producer := kafka.NewProducer(cfg.Kafka.Brokers, log)
		defer producer.Close()
		publisher = producer
	} else {
		log.Info("KAFKA", "Kafka disabled, domain events are not published")
	}

	// --- Auth ---
	verifier, err := newVerifier(ctx, cfg.Auth)
	if err != nil {
		log.Fatal("AUTH", err.Error())
	}
	clerkWebhook, err := svix.NewWebhook(cfg.Clerk.WebhookSecret)
	if err != nil {
		log.Fatal("CONFIG", fmt.Sprintf("invalid CLERK_WEBHOOK_SECRET: %v", err))
	}

	// --- Services ---
	eventStore := &eventdb.DB{Bun: bunDB}
	userStore := &userdb.DB{Bun: bunDB}

	eventService := events.NewEventService(eventStore, userStore, categoryCache, publisher, log)
	userService := users.NewUserService(userStore, identity.NewClient(cfg.Clerk.APIURL, cfg.Clerk.SecretKey, log), publisher, log)

	var sessions order.CheckoutSessions
	if cfg.Stripe.SecretKey != "" {
		sessions = order.NewStripeSessions(cfg.Stripe.SecretKey)
	} else {
		log.Warn("PAYMENT", "STRIPE_SECRET_KEY not set, only free events can be checked out")
	}
	var passes order.PassCodec
	if cfg.QRSecret != "" {
		passes = qr.NewQRGenerator(cfg.QRSecret)
	} else {
		log.Warn("TICKETS", "QR_SECRET_KEY not set, ticket passes are disabled")
	}

	emitter := sse.NewCheckoutEventEmitter()
	orderService := order.NewOrderService(&orderdb.DB{Bun: bunDB}, eventStore, userStore, sessions, publisher, passes, log)
	orderService.SiteURL = cfg.SiteURL
	orderService.WebhookSecret = cfg.Stripe.WebhookSecret
	orderService.Locks = locker
	orderService.Feed = emitter

	var uploader media.Uploader
	if cfg.Cloudinary.Enabled() {
		cld, err := media.NewCloudinaryUploader(cfg.Cloudinary.CloudName, cfg.Cloudinary.APIKey, cfg.Cloudinary.APISecret)
		if err != nil {
			log.Fatal("MEDIA", err.Error())
		}
		uploader = cld
	} else {
		log.Warn("MEDIA", "Cloudinary not configured, image uploads are disabled")
	}

	analyticsService := analytics.NewService(&analytics.DB{Bun: bunDB}, orderService, log)
	ticketService := tickets.NewTicketService(&ticketdb.DB{Bun: bunDB}, eventStore, log)

	handler := router.New(router.Deps{
		Logger:    log,
		Verifier:  verifier,
		Events:    events_api.NewHandler(eventService, log),
		Orders:    order_api.NewHandler(orderService, log),
		Stream:    order_api.NewSSEHandler(orderService, emitter, log),
		Clerk:     webhook_api.NewHandler(userService, clerkWebhook, deduper, log),
		Profile:   profile_api.NewHandler(orderService, eventService, log),
		Media:     media.NewHandler(uploader, log),
		Analytics: analytics_api.NewHandler(analyticsService, log),
		Tickets:   ticket_api.NewHandler(ticketService, log),
		Ping:      bunDB.PingContext,
	})

	server := &http.Server{
		Addr:         cfg.Server.Port,
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Info("HTTP", fmt.Sprintf("Eventify running on %s", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("HTTP", fmt.Sprintf("HTTP server error: %v", err))
		}
	}()

	log.Info("APP", "Service started successfully, waiting for shutdown signal")
	<-ctx.Done()

	log.Info("APP", "Shutdown signal received, initiating graceful shutdown")
	ctxShutdown, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(ctxShutdown); err != nil {
		log.Error("HTTP", fmt.Sprintf("Server Shutdown Failed: %v", err))
	} else {
		log.Info("HTTP", "Eventify shutdown complete")
	}
}

func newVerifier(ctx context.Context, cfg config.AuthConfig) (auth.Verifier, error) {
	if cfg.Mode == "hmac" {
		return &auth.HMACVerifier{Secret: []byte(cfg.HMACSecret)}, nil
	}
	return auth.NewOIDCVerifier(ctx, cfg.OIDCIssuer)
}

// migrate runs the embedded postgres migrations, or builds the schema directly on sqlite.
func migrate(ctx context.Context, bunDB *bun.DB, driver string, log *logger.Logger) error {
	if driver == "sqlite" {
		if err := database.CreateSchema(ctx, bunDB); err != nil {
			return err
		}
		return database.SeedCategories(ctx, bunDB, database.DefaultCategories(time.Now().UTC()))
	}

	runner := migrations.NewRunner(bunDB.DB, migrations.DefaultOptions(), log)
	defer runner.Close()
	return runner.Run()
}
