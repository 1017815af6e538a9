package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"github.com/andrewpaige1/sysviz-api/auth"
	"github.com/andrewpaige1/sysviz-api/config"
	"github.com/andrewpaige1/sysviz-api/handlers"
	"github.com/andrewpaige1/sysviz-api/middleware"
	"github.com/andrewpaige1/sysviz-api/relay"
)

func init() {
	// Load .env file if not in production environment
	if os.Getenv("RAILWAY_ENVIRONMENT_NAME") == "" {
		err := godotenv.Load()
		if err != nil {
			log.Printf("Warning: .env file not found, environment variables might not be loaded: %v", err)
		}
	}
}

func main() {
	env, err := config.Load()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	logger, err := config.NewLogger(env.Development)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()

	db, err := config.Connect(env.DatabaseURL, logger)
	if err != nil {
		logger.Fatal("Database unavailable", zap.Error(err))
	}

	issuer, err := auth.NewIssuer(env.JWTSecret, env.JWTIssuer, env.JWTAudience)
	if err != nil {
		logger.Fatal("Failed to create token issuer", zap.Error(err))
	}
	authMiddleware, err := middleware.EnsureValidToken(issuer, logger)
	if err != nil {
		logger.Fatal("Failed to create token validator", zap.Error(err))
	}

	// Relay
	hub := relay.NewHub(logger.Named("relay"), relay.HubConfig{
		DisconnectScope: relay.DisconnectScope(env.DisconnectScope),
		Registerer:      prometheus.DefaultRegisterer,
	})
	go hub.Run()

	wsConfig := relay.DefaultServerConfig()
	wsConfig.CheckOrigin = relay.OriginChecker(env.AllowedOrigins)
	wsServer := relay.NewServer(hub, wsConfig, logger.Named("relay"))

	DBHandler := &handlers.DBHandler{DB: db, Log: logger.Named("api"), Issuer: issuer}
	userLoader := &middleware.UserLoader{DB: db, Log: logger}
	mux := http.NewServeMux()

	handlers.RegisterRoutes(mux, DBHandler, userLoader.RequireUser)
	mux.HandleFunc("GET /ws", wsServer.HandleWebSocket)
	mux.Handle("GET /metrics", promhttp.Handler())

	// Configure CORS with specific options
	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   env.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization", "X-Requested-With", "Accept", "Origin"},
		AllowCredentials: true,
		MaxAge:           86400,
	}).Handler(middleware.RequestLogger(logger)(authMiddleware(mux)))

	srv := &http.Server{
		Addr:              "0.0.0.0:" + strconv.Itoa(env.Port),
		Handler:           corsHandler,
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		logger.Info("Starting server",
			zap.String("address", srv.Addr),
			zap.Bool("development", env.Development),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Server failed to start", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("Server shutdown error", zap.Error(err))
	}
	hub.Stop()

	logger.Info("Server stopped")
}
