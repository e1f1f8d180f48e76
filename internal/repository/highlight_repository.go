package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"ebook-reader/internal/domain"

	"github.com/supabase-community/postgrest-go"
)

// HighlightRepository implements the domain.HighlightRepository interface
// using Supabase.
type HighlightRepository struct {
	supabaseClient domain.SupabaseClient
	logger         domain.Logger
}

func NewHighlightRepository(supabaseClient domain.SupabaseClient, logger domain.Logger) domain.HighlightRepository {
	return &HighlightRepository{
		supabaseClient: supabaseClient,
		logger:         logger,
	}
}

// Create persists a new highlight row. The row is created without a
// visualization; img_url/img_prompt are only ever written by
// SetVisualization so the two fields stay in lockstep.
func (r *HighlightRepository) Create(ctx context.Context, highlight *domain.Highlight, accessToken string) (*domain.Highlight, error) {
	client, err := r.supabaseClient.GetClientWithToken(accessToken)
	if err != nil {
		return nil, fmt.Errorf("failed to get client with token: %w", err)
	}

	row := map[string]interface{}{
		"user_id":  highlight.UserID,
		"book_id":  highlight.BookID,
		"text":     sanitizeText(highlight.Text),
		"location": string(highlight.Location),
	}
	if highlight.Chapter != "" {
		row["chapter"] = highlight.Chapter
	}

	// Request "representation" so PostgREST returns the inserted row.
	data, _, err := client.From("highlights").
		Insert(row, false, "", "representation", "").
		Execute()
	if err != nil {
		return nil, fmt.Errorf("failed to create highlight: %w", err)
	}

	var rows []map[string]interface{}
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("failed to create highlight: empty response")
	}

	return mapToHighlight(rows[0]), nil
}

// Get retrieves a single highlight by id.
func (r *HighlightRepository) Get(ctx context.Context, highlightID string, accessToken string) (*domain.Highlight, error) {
	client, err := r.supabaseClient.GetClientWithToken(accessToken)
	if err != nil {
		return nil, fmt.Errorf("failed to get client with token: %w", err)
	}

	data, _, err := client.From("highlights").
		Select("*", "", false).
		Eq("id", highlightID).
		Limit(1, "").
		Execute()
	if err != nil {
		return nil, fmt.Errorf("failed to get highlight: %w", err)
	}

	var rows []map[string]interface{}
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}
	if len(rows) == 0 {
		return nil, domain.ErrHighlightNotFound
	}
	return mapToHighlight(rows[0]), nil
}

// ListByBook lists the user's highlights for one book.
func (r *HighlightRepository) ListByBook(ctx context.Context, userID, bookID string, accessToken string) ([]*domain.Highlight, error) {
	client, err := r.supabaseClient.GetClientWithToken(accessToken)
	if err != nil {
		return nil, fmt.Errorf("failed to get client with token: %w", err)
	}

	data, _, err := client.From("highlights").
		Select("*", "", false).
		Eq("user_id", userID).
		Eq("book_id", bookID).
		Order("location", &postgrest.OrderOpts{Ascending: true}).
		Execute()
	if err != nil {
		return nil, fmt.Errorf("failed to list highlights: %w", err)
	}

	var rows []map[string]interface{}
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}

	out := make([]*domain.Highlight, 0, len(rows))
	for _, row := range rows {
		out = append(out, mapToHighlight(row))
	}
	return out, nil
}

// SetVisualization writes img_url and img_prompt together.
func (r *HighlightRepository) SetVisualization(ctx context.Context, highlightID string, v domain.Visualization, accessToken string) error {
	client, err := r.supabaseClient.GetClientWithToken(accessToken)
	if err != nil {
		return fmt.Errorf("failed to get client with token: %w", err)
	}

	_, _, err = client.From("highlights").
		Update(map[string]interface{}{
			"img_url":    v.ImgURL,
			"img_prompt": v.ImgPrompt,
		}, "", "").
		Eq("id", highlightID).
		Execute()
	if err != nil {
		return fmt.Errorf("failed to update highlight visualization: %w", err)
	}
	return nil
}

// ClearVisualization nulls img_url and img_prompt together.
func (r *HighlightRepository) ClearVisualization(ctx context.Context, highlightID string, accessToken string) error {
	client, err := r.supabaseClient.GetClientWithToken(accessToken)
	if err != nil {
		return fmt.Errorf("failed to get client with token: %w", err)
	}

	_, _, err = client.From("highlights").
		Update(map[string]interface{}{
			"img_url":    nil,
			"img_prompt": nil,
		}, "", "").
		Eq("id", highlightID).
		Execute()
	if err != nil {
		return fmt.Errorf("failed to clear highlight visualization: %w", err)
	}
	return nil
}

// Delete removes a highlight row.
func (r *HighlightRepository) Delete(ctx context.Context, userID, highlightID string, accessToken string) error {
	client, err := r.supabaseClient.GetClientWithToken(accessToken)
	if err != nil {
		return fmt.Errorf("failed to get client with token: %w", err)
	}

	_, _, err = client.From("highlights").
		Delete("", "").
		Eq("id", highlightID).
		Eq("user_id", userID).
		Execute()
	if err != nil {
		return fmt.Errorf("failed to delete highlight: %w", err)
	}
	return nil
}

func mapToHighlight(data map[string]interface{}) *domain.Highlight {
	return &domain.Highlight{
		ID:        getString(data, "id"),
		UserID:    getString(data, "user_id"),
		BookID:    getString(data, "book_id"),
		Text:      getString(data, "text"),
		Location:  domain.PositionToken(getString(data, "location")),
		ImgURL:    getString(data, "img_url"),
		ImgPrompt: getString(data, "img_prompt"),
		Chapter:   getString(data, "chapter"),
	}
}

func getString(data map[string]interface{}, key string) string {
	if v, ok := data[key]; ok && v != nil {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

var reControl = regexp.MustCompile(`[\x00]`)

// sanitizeText removes characters that PostgreSQL rejects in text fields (notably NUL bytes).
func sanitizeText(s string) string {
	if s == "" {
		return s
	}
	s = reControl.ReplaceAllString(s, "")
	s = strings.ReplaceAll(s, "\\u0000", "")
	s = strings.ReplaceAll(s, "\u0000", "")
	return s
}
