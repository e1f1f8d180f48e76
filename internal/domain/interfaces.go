package domain

import (
	"context"
	"time"
)

// PositionStore defines the local, device-scoped store for the last-read
// position of each (user, book) pair. Save is fire-and-forget: it must never
// block the caller's navigation flow, and a failed write is logged and
// swallowed (only the final flushed value matters). Writes for the same key
// apply in submission order, last write wins.
type PositionStore interface {
	Save(userID, bookID string, location PositionToken)
	Load(ctx context.Context, userID, bookID string) (PositionToken, error)
	Close() error
}

// UserBookRepository defines remote persistence for the per-user book record,
// including the last-read position synchronized across devices. UpdateLastLocation
// errors are returned to the caller so it can log or surface them; the
// repository itself never retries.
type UserBookRepository interface {
	GetBook(ctx context.Context, bookID string, accessToken string) (*Book, error)
	GetLastLocation(ctx context.Context, userID, bookID string, accessToken string) (PositionToken, error)
	UpdateLastLocation(ctx context.Context, userID, bookID string, location PositionToken, accessToken string) error
}

// ImageStore removes generated images from object storage. URLs are the
// public URLs stored on highlight records.
type ImageStore interface {
	DeleteByURL(ctx context.Context, publicURL string, accessToken string) error
}

// GenerateImageRequest is the payload sent to the generate-image function.
type GenerateImageRequest struct {
	ImageID    string `json:"image_id"`
	Passage    string `json:"passage"`
	BookTitle  string `json:"book_title"`
	BookAuthor string `json:"book_author"`
	Chapter    string `json:"chapter"`
}

// GeneratedImage is the successful response of the generate-image function:
// the public URL of the stored image and the prompt that produced it.
type GeneratedImage struct {
	ImgURL    string `json:"img_url"`
	ImgPrompt string `json:"img_prompt"`
}

// ImageGenerator invokes the remote image-generation function. When the
// caller's quota is exhausted the returned error is a *RateLimitError with
// the reset timestamp preserved exactly.
type ImageGenerator interface {
	Generate(ctx context.Context, req GenerateImageRequest, accessToken string) (*GeneratedImage, error)
}

// Renderer is the boundary to the external rendering engine. Position tokens
// pass through unchanged.
type Renderer interface {
	GoToLocation(location PositionToken)
	AddAnnotation(kind string, location PositionToken, data *Highlight)
	UpdateAnnotation(location PositionToken, data *Highlight)
	RemoveAnnotationByLocation(location PositionToken)
}

// Logger defines the interface for logging operations
type Logger interface {
	Info(msg string, fields ...interface{})
	Error(msg string, err error, fields ...interface{})
	Debug(msg string, fields ...interface{})
	Warn(msg string, fields ...interface{})
}

// Config defines the interface for configuration management
type Config interface {
	GetServerPort() string
	GetLogLevel() string
	GetSupabaseURL() string
	GetSupabaseKey() string
	GetLocalDBPath() string
	GetImageBucket() string
	GetVertexProject() string
	GetVertexLocation() string
	GetImageProviderKey() string
	GetImageQuotaLimit() int
	GetImageQuotaWindow() time.Duration
}
