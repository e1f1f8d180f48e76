package config

import (
	"ebook-reader/internal/domain"
	"ebook-reader/internal/repository"
	"ebook-reader/internal/storage"
	"ebook-reader/pkg/logger"
)

// Container holds all client-side application dependencies
type Container struct {
	Config              domain.Config
	Logger              domain.Logger
	SupabaseClient      domain.SupabaseClient
	PositionStore       domain.PositionStore
	UserBookRepository  domain.UserBookRepository
	HighlightRepository domain.HighlightRepository
	ImageStore          domain.ImageStore
	ImageGenerator      domain.ImageGenerator
}

// NewContainer creates a new dependency injection container
func NewContainer() (*Container, error) {
	cfg := NewConfig()
	appLogger := logger.NewLogger(cfg.GetLogLevel())

	// Initialize Supabase client
	supabaseClient := repository.NewSupabaseClient(cfg, appLogger)
	if err := supabaseClient.Initialize(); err != nil {
		return nil, err
	}

	// Device-local position store
	positionStore, err := storage.NewPositionStore(cfg.GetLocalDBPath(), appLogger)
	if err != nil {
		return nil, err
	}

	// Initialize repositories
	userBookRepo := repository.NewUserBookRepository(supabaseClient, appLogger)
	highlightRepo := repository.NewHighlightRepository(supabaseClient, appLogger)
	imageStore := repository.NewImageStore(supabaseClient, cfg.GetImageBucket(), appLogger)
	imageGenerator := repository.NewGenerateImageClient(cfg.GetSupabaseURL(), cfg.GetSupabaseKey(), appLogger)

	return &Container{
		Config:              cfg,
		Logger:              appLogger,
		SupabaseClient:      supabaseClient,
		PositionStore:       positionStore,
		UserBookRepository:  userBookRepo,
		HighlightRepository: highlightRepo,
		ImageStore:          imageStore,
		ImageGenerator:      imageGenerator,
	}, nil
}

// GetConfig returns the configuration instance
func (c *Container) GetConfig() domain.Config {
	return c.Config
}

// GetLogger returns the logger instance
func (c *Container) GetLogger() domain.Logger {
	return c.Logger
}

// GetSupabaseClient returns the Supabase client instance
func (c *Container) GetSupabaseClient() domain.SupabaseClient {
	return c.SupabaseClient
}
