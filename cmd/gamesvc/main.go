package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"time"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/httprate"

	config "github.com/vertibet/crash-services/configs"
	"github.com/vertibet/crash-services/internal/gamesvc/broker"
	"github.com/vertibet/crash-services/internal/gamesvc/db"
	handlers "github.com/vertibet/crash-services/internal/gamesvc/handlers"
	"github.com/vertibet/crash-services/internal/gamesvc/round"
	"github.com/vertibet/crash-services/internal/gamesvc/store"
	"github.com/vertibet/crash-services/internal/gamesvc/tenant"
	"github.com/vertibet/crash-services/internal/gamesvc/wallet"
	nats "github.com/vertibet/crash-services/internal/nats"
	log "github.com/sirupsen/logrus"
)

const SERVICE_NAME = "game"

var instanceId string

func init() {
	instanceId = config.CreateUniqueInstance(SERVICE_NAME)
	config.Logging(SERVICE_NAME + "_service_" + instanceId)
	config.LoadEnv(SERVICE_NAME)
}

func main() {

	// pg connection
	dbpool, err := db.Connect()
	if err != nil {
		log.Fatalf("Failed to connect to DB: %v", err)
	}
	defer db.ClosePool()
	log.Printf("pg connection established successfully")

	walletStore := store.NewWalletStore(dbpool)
	seedStore := store.NewSeedStore(dbpool)
	tenantStore := store.NewTenantStore(dbpool)
	roundStore := store.NewRoundStore(dbpool)
	betStore := store.NewBetStore(dbpool)

	resolver := tenant.NewResolver(tenantStore, tenant.DefaultTTL)

	limiter := wallet.NewRateLimiter(walletRateInterval())
	walletService := wallet.NewService(walletStore, seedStore, resolver, limiter, currency())

	// Connect to NATS
	n, err := nats.Connect()
	if err != nil {
		log.Errorf("Error: unable to connect to NATS server %v", err)
		os.Exit(0)
	}

	defer n.Conn.Close()
	log.Printf("NATS connection established successfully %s", n.Url)

	// crash round engine, events flow out through the broker
	engine := round.NewEngine(round.Config{
		MasterSeed: os.Getenv("ROUND_MASTER_SEED"),
	}, nil, walletService, roundStore)

	// init peer message broker
	b := broker.NewBroker(n.Conn, walletService, engine, seedStore)
	engine.SetEmitter(b)
	engine.Start()

	// subscribe to socket service
	topic := "socket.service"
	sub, err := b.SubscribeSocketService(topic)
	if err != nil {
		log.Errorf("Error: unable to subscribe to queue %v", err)
		os.Exit(0)
	}

	// Setup router
	r := chi.NewRouter()
	c := config.CORS()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(config.CustomLoggerMiddleware())
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(c.Handler)

	// to protect the service api from any over requests
	rateLimitStr := os.Getenv("RATE_LIMIT")
	rateLimit, err := strconv.Atoi(rateLimitStr)
	if err != nil {
		log.Fatalf("Invalid RATE_LIMIT value: %v", err)
	}
	r.Use(httprate.LimitByIP(rateLimit, 1*time.Minute))

	// Init handlers and routes
	h := handlers.NewHandler(seedStore, betStore, roundStore, tenantStore, resolver)
	h.InitAuth()
	h.SetRoutes(r)

	// Create server with timeout settings
	server := &http.Server{
		Addr:         ":" + os.Getenv("GAME_SERVICE_PORT"),
		Handler:      r,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("ListenAndServe(): %v", err)
		}
	}()
	log.Infof("%s service running at port %s", SERVICE_NAME, server.Addr)

	// Wait for interrupt signal to gracefully shutdown the server
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt)
	<-stop

	sub.Unsubscribe()
	engine.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatalf("%s service shutdown Failed:%+v", SERVICE_NAME, err)
	}
	log.Infof("%s service gracefully stopped", SERVICE_NAME)
}

func currency() string {
	if c := os.Getenv("WALLET_CURRENCY"); c != "" {
		return c
	}
	return "USD"
}

func walletRateInterval() time.Duration {
	ms, err := strconv.Atoi(os.Getenv("WAGER_MIN_INTERVAL_MS"))
	if err != nil || ms <= 0 {
		ms = 500
	}
	return time.Duration(ms) * time.Millisecond
}
