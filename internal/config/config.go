package config

import (
	"os"
	"strconv"
	"time"

	"ebook-reader/internal/domain"
)

// AppConfig implements the domain.Config interface
type AppConfig struct {
	ServerPort       string
	LogLevel         string
	SupabaseURL      string
	SupabaseKey      string
	LocalDBPath      string
	ImageBucket      string
	VertexProject    string
	VertexLocation   string
	ImageProviderKey string
	ImageQuotaLimit  int
	ImageQuotaWindow time.Duration
}

// NewConfig creates a new configuration instance with default values
func NewConfig() domain.Config {
	return &AppConfig{
		// Cloud Run (and many PaaS) provide the listening port via PORT.
		// Keep SERVER_PORT for local/dev compatibility.
		ServerPort:       getEnvOrDefault("PORT", getEnvOrDefault("SERVER_PORT", "8080")),
		LogLevel:         getEnvOrDefault("LOG_LEVEL", "info"),
		SupabaseURL:      getEnvOrDefault("SUPABASE_URL", ""),
		SupabaseKey:      getEnvOrDefault("SUPABASE_ANON_KEY", ""),
		LocalDBPath:      getEnvOrDefault("LOCAL_DB_PATH", "./reader.db"),
		ImageBucket:      getEnvOrDefault("IMAGE_BUCKET", "images"),
		VertexProject:    getEnvOrDefault("VERTEX_PROJECT_ID", ""),
		VertexLocation:   getEnvOrDefault("VERTEX_LOCATION", "us-central1"),
		ImageProviderKey: getEnvOrDefault("IMAGE_PROVIDER_API_KEY", ""),
		ImageQuotaLimit:  getEnvIntOrDefault("IMAGE_QUOTA_LIMIT", 10),
		ImageQuotaWindow: time.Duration(getEnvIntOrDefault("IMAGE_QUOTA_WINDOW_SECONDS", 86400)) * time.Second,
	}
}

// GetServerPort returns the server port
func (c *AppConfig) GetServerPort() string {
	return c.ServerPort
}

// GetLogLevel returns the logging level
func (c *AppConfig) GetLogLevel() string {
	return c.LogLevel
}

// GetSupabaseURL returns the Supabase URL
func (c *AppConfig) GetSupabaseURL() string {
	return c.SupabaseURL
}

// GetSupabaseKey returns the Supabase anon key
func (c *AppConfig) GetSupabaseKey() string {
	return c.SupabaseKey
}

// GetLocalDBPath returns the path of the device-local position database
func (c *AppConfig) GetLocalDBPath() string {
	return c.LocalDBPath
}

// GetImageBucket returns the object-storage bucket for generated images
func (c *AppConfig) GetImageBucket() string {
	return c.ImageBucket
}

// GetVertexProject returns the Vertex AI project id
func (c *AppConfig) GetVertexProject() string {
	return c.VertexProject
}

// GetVertexLocation returns the Vertex AI location
func (c *AppConfig) GetVertexLocation() string {
	return c.VertexLocation
}

// GetImageProviderKey returns the text-to-image provider API key
func (c *AppConfig) GetImageProviderKey() string {
	return c.ImageProviderKey
}

// GetImageQuotaLimit returns the per-user image generation quota
func (c *AppConfig) GetImageQuotaLimit() int {
	return c.ImageQuotaLimit
}

// GetImageQuotaWindow returns the quota window duration
func (c *AppConfig) GetImageQuotaWindow() time.Duration {
	return c.ImageQuotaWindow
}

// Helper functions for environment variable handling
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}
