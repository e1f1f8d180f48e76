package genimage

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"ebook-reader/internal/domain"
)

const defaultImageEndpoint = "https://api.openai.com/v1/images/generations"

// ImageProvider renders prompts into JPEG bytes through an OpenAI-compatible
// image generation API. Outbound calls are paced with a token bucket so a
// burst of users cannot trip the provider's own rate limits.
type ImageProvider struct {
	apiKey     string
	endpoint   string
	httpClient *http.Client
	pacer      *rate.Limiter
	logger     domain.Logger
}

func NewImageProvider(apiKey string, logger domain.Logger) *ImageProvider {
	return &ImageProvider{
		apiKey:   apiKey,
		endpoint: defaultImageEndpoint,
		httpClient: &http.Client{
			Timeout: 120 * time.Second,
		},
		pacer:  rate.NewLimiter(rate.Every(time.Second), 2),
		logger: logger,
	}
}

type imageAPIRequest struct {
	Prompt       string `json:"prompt"`
	Model        string `json:"model"`
	N            int    `json:"n"`
	Size         string `json:"size"`
	OutputFormat string `json:"output_format"`
	Quality      string `json:"quality"`
}

type imageAPIResponse struct {
	Data []struct {
		B64JSON string `json:"b64_json"`
	} `json:"data"`
}

// Render generates one 1024x1024 JPEG for the prompt.
func (p *ImageProvider) Render(ctx context.Context, prompt string) ([]byte, error) {
	if err := p.pacer.Wait(ctx); err != nil {
		return nil, fmt.Errorf("image provider pacing interrupted: %w", err)
	}

	body, err := json.Marshal(imageAPIRequest{
		Prompt:       prompt,
		Model:        "gpt-image-1",
		N:            1,
		Size:         "1024x1024",
		OutputFormat: "jpeg",
		Quality:      "medium",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal image request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create image request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+p.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to call image provider: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read image response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("image provider returned status %d: %s", resp.StatusCode, string(respBody))
	}

	var parsed imageAPIResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse image response: %w", err)
	}
	if len(parsed.Data) == 0 || parsed.Data[0].B64JSON == "" {
		return nil, fmt.Errorf("image provider returned no image data")
	}

	img, err := base64.StdEncoding.DecodeString(parsed.Data[0].B64JSON)
	if err != nil {
		return nil, fmt.Errorf("failed to decode image data: %w", err)
	}

	p.logger.Debug("Image rendered", "bytes", len(img))
	return img, nil
}
