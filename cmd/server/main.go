package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"trackhub-backend/internal/auth"
	"trackhub-backend/internal/authz"
	"trackhub-backend/internal/cache"
	"trackhub-backend/internal/events"
	"trackhub-backend/internal/handlers"
	"trackhub-backend/internal/hub"
	"trackhub-backend/internal/ingest"
	"trackhub-backend/internal/integrations"
	"trackhub-backend/internal/natsbus"
	"trackhub-backend/internal/rpc"
	"trackhub-backend/internal/services"
	"trackhub-backend/internal/storage"
	"trackhub-backend/internal/workers"
)

func main() {
	if os.Getenv("JWT_SECRET") == "" {
		log.Fatal("JWT_SECRET is required")
	}

	// Database connection (with retries)
	var db *sqlx.DB
	var err error
	for i := 0; i < 10; i++ {
		db, err = sqlx.Connect("postgres", buildDSN())
		if err == nil {
			break
		}
		log.Printf("DB connection attempt %d failed: %v", i+1, err)
		time.Sleep(2 * time.Second)
	}
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()
	log.Println("Connected to database")

	// NATS connection
	natsClient, err := natsbus.Connect()
	if err != nil {
		log.Fatalf("Failed to connect to NATS: %v", err)
	}
	defer natsClient.Close()

	// Redis cache
	redisClient, err := cache.NewRedisClient()
	if err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer redisClient.Close()

	// Storage + authorization
	store := storage.NewStorage(db)
	evaluator := authz.NewEvaluator(store)

	// NATS credential issuing for integration agents
	var issuer *integrations.JWTIssuer
	if seed := os.Getenv("NATS_SIGNING_KEY_SEED"); seed != "" {
		issuer, err = integrations.NewJWTIssuer(seed, os.Getenv("NATS_ACCOUNT_PUBLIC_KEY"))
		if err != nil {
			log.Fatalf("Failed to init NATS JWT issuer: %v", err)
		}
	} else {
		log.Println("WARN NATS_SIGNING_KEY_SEED not set; integration enrollment disabled")
	}

	// Clients
	rpcClient := rpc.NewClient(natsClient.NC())
	publisher := events.NewPublisher(natsClient.JS())
	triageClient := services.NewOpenRouterClient()
	slackClient := services.NewSlackClient()
	boardHub := hub.NewHub()

	// Start consumers
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	activityConsumer := ingest.NewActivityConsumer(natsClient.JS(), store, boardHub, slackClient)
	if err := activityConsumer.Start(ctx); err != nil {
		log.Fatalf("Failed to start activity consumer: %v", err)
	}

	alertsConsumer := ingest.NewAlertsConsumer(natsClient.JS(), store, publisher)
	if err := alertsConsumer.Start(ctx); err != nil {
		log.Fatalf("Failed to start alerts consumer: %v", err)
	}

	kvWatcher := ingest.NewKVWatcher(natsClient.KV(), store, redisClient)
	if err := kvWatcher.Start(ctx); err != nil {
		log.Fatalf("Failed to start KV watcher: %v", err)
	}

	keyeventWorker := workers.NewKeyeventWorker(redisClient, store)
	if err := keyeventWorker.Start(ctx); err != nil {
		log.Println("WARN Redis keyspace notifications are not active; fallback reconciler will be used")
		workers.NewHeartbeatReconciler(redisClient, store).Start(ctx)
	}

	// HTTP handlers
	authHandler := auth.NewHandler(store)
	enrollment := integrations.NewEnrollmentHandler(store, issuer, integrations.EnrollmentConfig{
		NATSURLs: strings.Split(getEnv("NATS_PUBLIC_URLS", "nats://localhost:4222"), ","),
	})
	h := handlers.New(store, evaluator, redisClient, publisher, rpcClient, triageClient, boardHub, authHandler, enrollment)

	// Router
	r := chi.NewRouter()
	h.RegisterRoutes(r)

	server := &http.Server{
		Addr:    ":" + getEnv("PORT", "8080"),
		Handler: r,
	}

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		log.Println("Shutting down...")
		cancel()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()

		_ = activityConsumer.Stop()
		_ = alertsConsumer.Stop()
		_ = kvWatcher.Stop()
		boardHub.CloseAll()
		_ = server.Shutdown(shutdownCtx)
	}()

	log.Printf("Server starting on %s", server.Addr)
	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		log.Fatalf("Server error: %v", err)
	}
	log.Println("Server stopped")
}

func buildDSN() string {
	return "host=" + getEnv("DB_HOST", "localhost") +
		" user=" + getEnv("DB_USER", "trackhub_user") +
		" password=" + getEnv("DB_PASSWORD", "trackhub_pass") +
		" dbname=" + getEnv("DB_NAME", "trackhub") +
		" sslmode=disable"
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
