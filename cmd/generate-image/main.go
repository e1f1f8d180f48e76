package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"ebook-reader/internal/config"
	"ebook-reader/internal/genimage"
	"ebook-reader/internal/repository"
	"ebook-reader/pkg/logger"

	"cloud.google.com/go/vertexai/genai"
	"github.com/gorilla/mux"
	"github.com/joho/godotenv"
)

func main() {
	// Load environment variables from .env file
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: .env file not found or could not be loaded: %v", err)
	}

	cfg := config.NewConfig()
	appLogger := logger.NewLogger(cfg.GetLogLevel())

	supabaseClient := repository.NewSupabaseClient(cfg, appLogger)
	if err := supabaseClient.Initialize(); err != nil {
		log.Fatalf("Failed to initialize Supabase client: %v", err)
	}

	ctx := context.Background()
	genaiClient, err := genai.NewClient(ctx, cfg.GetVertexProject(), cfg.GetVertexLocation())
	if err != nil {
		log.Fatalf("Failed to create Vertex AI client: %v", err)
	}
	defer genaiClient.Close()

	// Pipeline wiring
	service := genimage.NewService(
		genimage.NewQuotaLimiter(cfg.GetImageQuotaLimit(), cfg.GetImageQuotaWindow()),
		genimage.NewPromptEngineer(genaiClient, appLogger),
		genimage.NewImageProvider(cfg.GetImageProviderKey(), appLogger),
		genimage.NewUploader(cfg.GetSupabaseURL(), cfg.GetSupabaseKey(), cfg.GetImageBucket(), appLogger),
		appLogger,
	)

	// Router: paths mirror the hosted function layout so clients need no
	// special casing between deployments
	router := mux.NewRouter()
	handler := genimage.NewHandler(service, supabaseClient, appLogger)
	handler.Register(router.PathPrefix("/functions/v1").Subrouter())

	// start server
	server := &http.Server{
		Addr:    ":" + cfg.GetServerPort(),
		Handler: genimage.CORS().Handler(router),
	}

	// Run server
	go func() {
		appLogger.Info("Function service listening", "address", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			appLogger.Error("Function service failed to start", err)
			os.Exit(1)
		}
	}()
	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	appLogger.Info("Shutting down function service...")
	_ = server.Close()

	appLogger.Info("Function service exited")
}
