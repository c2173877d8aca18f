package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"medicose-chatbot-backend/config"
	"medicose-chatbot-backend/database"
	"medicose-chatbot-backend/middleware"
	"medicose-chatbot-backend/routes"
	"medicose-chatbot-backend/services"
	"medicose-chatbot-backend/utils"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const serviceName = "medicose-chatbot"

type stores struct {
	appointments  services.AppointmentStore
	prescriptions services.PrescriptionStore
	orders        services.OrderStore
	analytics     services.AnalyticsStore
}

func main() {
	// Load configuration
	if err := config.Load(); err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	cfg := config.Get()
	utils.InitLogger(serviceName, cfg.Environment, cfg.LogLevel)

	// Set Gin mode
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	// Connect to database
	if err := database.Connect(cfg); err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer func() {
		if err := database.Disconnect(cfg); err != nil {
			log.Error().Err(err).Msg("Database disconnect failed")
		}
	}()

	st := buildStores(cfg)

	sessions, redisClient, err := buildSessionStore(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize session store")
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	loc, err := cfg.Location()
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid timezone")
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	completer := services.Completer(services.NewInstrumentedCompleter(services.NewCompleter(cfg), cfg.AI.Provider, registry))

	chatbot := services.NewChatbotService(services.ChatbotOptions{
		Generator:        services.NewResponseGenerator(st.orders, completer),
		Flows:            services.NewFlowEngine(st.appointments, utils.NewDateParser(loc, time.Now)),
		Ocr:              services.NewOcrService(st.prescriptions),
		Sessions:         sessions,
		Analytics:        services.FanoutSink{st.analytics, services.NewMetricsSink(registry)},
		Summaries:        st.analytics,
		MaxInputChars:    cfg.Chat.MaxInputChars,
		AnalyticsTimeout: cfg.Chat.AnalyticsTimeout,
	})

	// Create Gin router
	router := gin.New()

	// Add middleware
	router.Use(gin.Recovery())
	router.Use(gin.Logger())
	router.Use(middleware.CORS(cfg.Security.AllowedOrigins))

	// Setup all routes
	routes.SetupRoutes(router, routes.Dependencies{
		Config:   cfg,
		Chatbot:  chatbot,
		Gatherer: registry,
	})

	// Log available endpoints
	logAvailableEndpoints(router)

	// Create HTTP server
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		log.Info().Str("port", cfg.Port).Str("database", cfg.Database.Type).Str("sessions", cfg.Session.Store).Msg("Server starting")

		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited")
}

func buildStores(cfg *config.Config) stores {
	if cfg.Database.Type == "mongodb" {
		db := database.GetMongoDB()
		return stores{
			appointments:  database.NewMongoAppointmentStore(db),
			prescriptions: database.NewMongoPrescriptionStore(db),
			orders:        database.NewMongoOrderStore(db),
			analytics:     database.NewMongoAnalyticsStore(db),
		}
	}
	return stores{
		appointments:  database.NewMemoryAppointmentStore(),
		prescriptions: database.NewMemoryPrescriptionStore(),
		orders:        database.NewMemoryOrderStore(),
		analytics:     database.NewMemoryAnalyticsStore(),
	}
}

func buildSessionStore(cfg *config.Config) (services.SessionStore, *redis.Client, error) {
	if cfg.Session.Store == "redis" {
		client, err := database.ConnectRedis(context.Background(), cfg)
		if err != nil {
			return nil, nil, err
		}
		return database.NewRedisSessionStore(client, cfg.Session.TTL), client, nil
	}

	sessions, err := database.NewLRUSessionStore(cfg.Session.CacheSize)
	if err != nil {
		return nil, nil, err
	}
	return sessions, nil, nil
}

// logAvailableEndpoints logs all registered routes
func logAvailableEndpoints(router *gin.Engine) {
	for _, route := range router.Routes() {
		log.Debug().Str("method", route.Method).Str("path", route.Path).Msg("route registered")
	}
}
