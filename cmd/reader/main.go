package main

import (
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"ebook-reader/internal/bridge"
	"ebook-reader/internal/config"
	"ebook-reader/internal/lifecycle"

	"github.com/joho/godotenv"
)

func main() {
	// Load environment variables from .env file
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: .env file not found or could not be loaded: %v", err)
	}
	// Wiring
	container, err := config.NewContainer()
	if err != nil {
		log.Fatalf("Failed to initialize: %v", err)
	}

	// Lifecycle bus: the webview pushes app-state and navigation events here
	feed := lifecycle.NewFeed()

	// Router
	router := bridge.NewRouter(container, feed)

	// start server
	server := &http.Server{
		Addr:    "127.0.0.1:" + container.Config.GetServerPort(),
		Handler: router,
	}

	// Run server
	go func() {
		container.Logger.Info("Bridge listening", "address", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			container.Logger.Error("Bridge failed to start", err)
			os.Exit(1)
		}
	}()
	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	container.Logger.Info("Shutting down bridge...")
	_ = server.Close()

	// Drain pending position writes before exit
	if err := container.PositionStore.Close(); err != nil {
		container.Logger.Error("Failed to close position store", err)
	}

	container.Logger.Info("Bridge exited")
}
