package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"ebook-reader/internal/domain"
)

// UserBookRepository implements the domain.UserBookRepository interface using
// Supabase. The last-read position lives on the user_books row; it is read
// once at book-open time and written once per exit event.
type UserBookRepository struct {
	supabaseClient domain.SupabaseClient
	logger         domain.Logger
}

func NewUserBookRepository(supabaseClient domain.SupabaseClient, logger domain.Logger) domain.UserBookRepository {
	return &UserBookRepository{
		supabaseClient: supabaseClient,
		logger:         logger,
	}
}

// GetBook retrieves the book's display metadata.
func (r *UserBookRepository) GetBook(ctx context.Context, bookID string, accessToken string) (*domain.Book, error) {
	client, err := r.supabaseClient.GetClientWithToken(accessToken)
	if err != nil {
		return nil, fmt.Errorf("failed to get client with token: %w", err)
	}

	data, _, err := client.From("books").
		Select("id,title,author,filename", "", false).
		Eq("id", bookID).
		Limit(1, "").
		Execute()
	if err != nil {
		return nil, fmt.Errorf("failed to get book: %w", err)
	}

	var books []domain.Book
	if err := json.Unmarshal(data, &books); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}
	if len(books) == 0 {
		return nil, domain.ErrBookNotFound
	}
	return &books[0], nil
}

// GetLastLocation reads the last-read position for (userID, bookID). The zero
// token is returned when the field is null (never flushed from any device).
func (r *UserBookRepository) GetLastLocation(ctx context.Context, userID, bookID string, accessToken string) (domain.PositionToken, error) {
	client, err := r.supabaseClient.GetClientWithToken(accessToken)
	if err != nil {
		return "", fmt.Errorf("failed to get client with token: %w", err)
	}

	data, _, err := client.From("user_books").
		Select("last_location", "", false).
		Eq("user_id", userID).
		Eq("book_id", bookID).
		Limit(1, "").
		Execute()
	if err != nil {
		return "", fmt.Errorf("failed to get last location: %w", err)
	}

	// A null last_location decodes to the zero token: never flushed anywhere.
	var rows []domain.UserBook
	if err := json.Unmarshal(data, &rows); err != nil {
		return "", fmt.Errorf("failed to unmarshal response: %w", err)
	}
	if len(rows) == 0 {
		return "", domain.ErrBookNotFound
	}
	return rows[0].LastLocation, nil
}

// UpdateLastLocation overwrites the last-read position for (userID, bookID).
// A failure is returned to the caller, which logs it and moves on: exit
// events are not a safe place for retry loops, and the local store still
// holds the freshest value for same-device resumption.
func (r *UserBookRepository) UpdateLastLocation(ctx context.Context, userID, bookID string, location domain.PositionToken, accessToken string) error {
	client, err := r.supabaseClient.GetClientWithToken(accessToken)
	if err != nil {
		return fmt.Errorf("failed to get client with token: %w", err)
	}

	row := map[string]interface{}{
		"last_location": nil,
	}
	if !location.IsZero() {
		row["last_location"] = string(location)
	}

	_, _, err = client.From("user_books").
		Update(row, "", "").
		Eq("user_id", userID).
		Eq("book_id", bookID).
		Execute()
	if err != nil {
		return fmt.Errorf("failed to update last location: %w", err)
	}
	return nil
}
