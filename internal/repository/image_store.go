package repository

import (
	"context"
	"fmt"
	"strings"

	"ebook-reader/internal/domain"
)

// ImageStore implements the domain.ImageStore interface on top of Supabase
// Storage. Highlight records carry the public URL of their image; deletion
// works backwards from that URL to the object path inside the bucket.
type ImageStore struct {
	supabaseClient domain.SupabaseClient
	bucket         string
	logger         domain.Logger
}

func NewImageStore(supabaseClient domain.SupabaseClient, bucket string, logger domain.Logger) domain.ImageStore {
	return &ImageStore{
		supabaseClient: supabaseClient,
		bucket:         bucket,
		logger:         logger,
	}
}

// DeleteByURL removes the object behind a public storage URL. The path is
// everything after the bucket segment, e.g.
// https://x.supabase.co/storage/v1/object/public/images/abc.jpg -> abc.jpg.
func (s *ImageStore) DeleteByURL(ctx context.Context, publicURL string, accessToken string) error {
	path, err := s.objectPath(publicURL)
	if err != nil {
		return err
	}

	client, err := s.supabaseClient.GetClientWithToken(accessToken)
	if err != nil {
		return fmt.Errorf("failed to get client with token: %w", err)
	}

	if _, err := client.Storage.RemoveFile(s.bucket, []string{path}); err != nil {
		return fmt.Errorf("failed to remove image %s: %w", path, err)
	}

	s.logger.Debug("Deleted stored image", "bucket", s.bucket, "path", path)
	return nil
}

func (s *ImageStore) objectPath(publicURL string) (string, error) {
	marker := s.bucket + "/"
	idx := strings.Index(publicURL, marker)
	if idx < 0 {
		return "", fmt.Errorf("url does not reference bucket %s: %s", s.bucket, publicURL)
	}
	path := publicURL[idx+len(marker):]
	if path == "" {
		return "", fmt.Errorf("url has empty object path: %s", publicURL)
	}
	return path, nil
}
