package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"tictactoe-rooms/internal/api/controller"
	apirepository "tictactoe-rooms/internal/api/repository"
	"tictactoe-rooms/internal/api/service"
	"tictactoe-rooms/internal/config"
	"tictactoe-rooms/internal/db"
	"tictactoe-rooms/internal/logger"
	"tictactoe-rooms/internal/repository"
	"tictactoe-rooms/internal/room"
	"tictactoe-rooms/internal/server"
	"tictactoe-rooms/internal/session"
	"tictactoe-rooms/internal/telemetry"
)

const configPath = "./config.yml"

func main() {
	ctx := context.Background()

	cfg := config.MustLoad(configPath)

	// Initialize telemetry
	shutdown, err := telemetry.InitOtel(ctx, cfg.OTLPEndpoint)
	if err != nil {
		log.Fatalf("failed to initialize telemetry: %v", err)
	}
	defer func() {
		if err := shutdown(ctx); err != nil {
			log.Printf("Error shutting down telemetry: %v", err)
		}
	}()

	logger.Init()

	// Initialize Redis. The server stays up without it; games just aren't
	// recorded.
	var results repository.ResultRepository
	if rdb, err := db.NewRedisClient(ctx, cfg.Redis.Addr()); err != nil {
		slog.Warn("redis unavailable, running without game history", "error", err)
	} else {
		results = repository.NewResultRepository(rdb)
	}

	// Initialize SQLite DB
	pool, err := db.Connect(cfg.SQLitePath)
	if err != nil {
		log.Fatalf("failed to initialize sqlite db: %v", err)
	}

	// Create repositories and services
	userRepo := apirepository.NewUserRepository(pool)
	userService := service.NewUserService(userRepo, []byte(cfg.JWTSecret))

	var recorder room.Recorder
	if results != nil {
		recorder = results
	}
	registry := room.NewRegistry(recorder)
	gateway := session.NewGateway(registry)

	// Create controllers
	userController := controller.NewUserController(userService)
	lobbyController := controller.NewLobbyController(registry, results)

	srv := server.NewServer(gateway, userController, lobbyController)

	// Graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	httpServer := &http.Server{
		Addr:    cfg.HTTPAddr(),
		Handler: srv.Engine(),
	}

	go func() {
		slog.Info("http server started", "addr", cfg.HTTPAddr())
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("ListenAndServe: %v", err)
		}
	}()

	<-stop

	slog.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	slog.Info("server exiting")
}
