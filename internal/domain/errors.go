package domain

import (
	"errors"
	"fmt"
	"time"
)

// Domain errors
var (
	ErrBookNotFound       = errors.New("book not found")
	ErrHighlightNotFound  = errors.New("highlight not found")
	ErrNoVisualization    = errors.New("highlight has no visualization")
	ErrConflictResolved   = errors.New("location conflict already resolved")
	ErrSessionNotOpen     = errors.New("reader session not open")
	ErrSessionAlreadyOpen = errors.New("reader session already open")
	ErrAccessDenied       = errors.New("access denied")
	ErrInvalidToken       = errors.New("invalid token")
)

// RateLimitError is returned when the image-generation quota is exhausted.
// Reset is the epoch-millisecond instant at which the quota window reopens;
// it is carried verbatim from the rate limiter so the UI can format it for
// display, never truncated or rewritten along the way.
type RateLimitError struct {
	Message string
	Reset   int64
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("%s (quota resets at %s)", e.Message, time.UnixMilli(e.Reset).Format(time.RFC3339))
}

// AsRateLimitError unwraps err into a RateLimitError if it carries one.
func AsRateLimitError(err error) (*RateLimitError, bool) {
	var rle *RateLimitError
	if errors.As(err, &rle) {
		return rle, true
	}
	return nil, false
}
