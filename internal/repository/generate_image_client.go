package repository

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"ebook-reader/internal/domain"
)

// GenerateImageClient implements domain.ImageGenerator by invoking the
// generate-image edge function over HTTP. The caller's access token rides in
// the Authorization header so the function can attribute quota usage.
type GenerateImageClient struct {
	baseURL    string
	anonKey    string
	httpClient *http.Client
	logger     domain.Logger
}

func NewGenerateImageClient(baseURL, anonKey string, logger domain.Logger) domain.ImageGenerator {
	return &GenerateImageClient{
		baseURL: baseURL,
		anonKey: anonKey,
		httpClient: &http.Client{
			Timeout: 120 * time.Second,
		},
		logger: logger,
	}
}

// rateLimitResponse is the 429 body the function returns when the caller's
// image quota is exhausted. Reset is epoch milliseconds.
type rateLimitResponse struct {
	Status  int    `json:"status"`
	Message string `json:"message"`
	Reset   int64  `json:"reset"`
}

// Generate invokes the function and returns the stored image URL together
// with the prompt that produced it. A quota rejection comes back as a
// *domain.RateLimitError with the function's reset timestamp untouched.
func (c *GenerateImageClient) Generate(ctx context.Context, req domain.GenerateImageRequest, accessToken string) (*domain.GeneratedImage, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal generate-image request: %w", err)
	}

	url := fmt.Sprintf("%s/functions/v1/generate-image", c.baseURL)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+accessToken)
	httpReq.Header.Set("apikey", c.anonKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to invoke generate-image: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read generate-image response: %w", err)
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		var rl rateLimitResponse
		if err := json.Unmarshal(respBody, &rl); err != nil {
			return nil, fmt.Errorf("failed to parse rate limit response: %w", err)
		}
		c.logger.Warn("Image generation rate limited", "reset", rl.Reset)
		return nil, &domain.RateLimitError{
			Message: rl.Message,
			Reset:   rl.Reset,
		}
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("generate-image failed with status %d: %s", resp.StatusCode, string(respBody))
	}

	var generated domain.GeneratedImage
	if err := json.Unmarshal(respBody, &generated); err != nil {
		return nil, fmt.Errorf("failed to parse generate-image response: %w", err)
	}
	if generated.ImgURL == "" {
		return nil, fmt.Errorf("generate-image returned empty image url")
	}

	c.logger.Info("Image generated", "image_url", generated.ImgURL)
	return &generated, nil
}
