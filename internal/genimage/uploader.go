package genimage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	storage_go "github.com/supabase-community/storage-go"

	"ebook-reader/internal/domain"
)

// Uploader stores rendered images in Supabase Storage over the raw object
// endpoint and returns their public URLs. Objects are keyed by the caller's
// image id, so retrying the same request overwrites the same object instead
// of accumulating copies.
type Uploader struct {
	baseURL    string
	apiKey     string
	bucket     string
	httpClient *http.Client
	storage    *storage_go.Client
	logger     domain.Logger
}

func NewUploader(baseURL, apiKey, bucket string, logger domain.Logger) *Uploader {
	return &Uploader{
		baseURL: baseURL,
		apiKey:  apiKey,
		bucket:  bucket,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
		storage: storage_go.NewClient(baseURL+"/storage/v1", apiKey, nil),
		logger:  logger,
	}
}

// Upload writes the JPEG under {imageID}.jpg and returns its public URL.
func (u *Uploader) Upload(ctx context.Context, imageID string, jpeg []byte) (string, error) {
	path := imageID + ".jpg"
	url := fmt.Sprintf("%s/storage/v1/object/%s/%s", u.baseURL, u.bucket, path)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jpeg))
	if err != nil {
		return "", fmt.Errorf("failed to create upload request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+u.apiKey)
	req.Header.Set("Content-Type", "image/jpeg")
	req.Header.Set("x-upsert", "true")

	resp, err := u.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to upload image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("image upload failed with status %d: %s", resp.StatusCode, string(respBody))
	}

	publicURL := u.storage.GetPublicUrl(u.bucket, path).SignedURL
	u.logger.Info("Image uploaded", "bucket", u.bucket, "path", path)
	return publicURL, nil
}
