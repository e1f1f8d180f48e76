package genimage

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"ebook-reader/internal/domain"
)

// promptImprover, imageRenderer and objectUploader are the pipeline stages
// behind Service, narrowed to interfaces so each stage can be substituted.
type promptImprover interface {
	Improve(ctx context.Context, req domain.GenerateImageRequest) (string, error)
}

type imageRenderer interface {
	Render(ctx context.Context, prompt string) ([]byte, error)
}

type objectUploader interface {
	Upload(ctx context.Context, imageID string, jpeg []byte) (string, error)
}

// Service runs the generate-image pipeline: quota check, prompt engineering,
// image rendering, storage upload. The quota is charged before any model is
// invoked so a rejected request costs nothing.
type Service struct {
	quota    *QuotaLimiter
	prompts  promptImprover
	provider imageRenderer
	uploader objectUploader
	logger   domain.Logger
}

func NewService(quota *QuotaLimiter, prompts promptImprover, provider imageRenderer, uploader objectUploader, logger domain.Logger) *Service {
	return &Service{
		quota:    quota,
		prompts:  prompts,
		provider: provider,
		uploader: uploader,
		logger:   logger,
	}
}

// Generate produces and stores one image for the request, attributed to
// userID for quota accounting. A quota rejection is a *domain.RateLimitError
// carrying the window-reopen instant in epoch milliseconds.
func (s *Service) Generate(ctx context.Context, userID string, req domain.GenerateImageRequest) (*domain.GeneratedImage, error) {
	if strings.TrimSpace(req.Passage) == "" {
		return nil, fmt.Errorf("passage is required")
	}
	if req.ImageID == "" {
		req.ImageID = uuid.NewString()
	}

	allowed, reset := s.quota.Allow(userID)
	if !allowed {
		s.logger.Warn("Image quota exhausted", "user_id", userID, "reset", reset.UnixMilli())
		return nil, &domain.RateLimitError{
			Message: "Too many image generations",
			Reset:   reset.UnixMilli(),
		}
	}

	prompt, err := s.prompts.Improve(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("prompt engineering failed: %w", err)
	}

	img, err := s.provider.Render(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("image rendering failed: %w", err)
	}

	publicURL, err := s.uploader.Upload(ctx, req.ImageID, img)
	if err != nil {
		return nil, fmt.Errorf("image upload failed: %w", err)
	}

	s.logger.Info("Image generated", "user_id", userID, "image_id", req.ImageID)
	return &domain.GeneratedImage{
		ImgURL:    publicURL,
		ImgPrompt: prompt,
	}, nil
}
