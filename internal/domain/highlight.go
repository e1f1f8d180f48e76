package domain

import "context"

// Highlight represents a user-marked passage of a book, optionally carrying
// an AI-generated visualization. ImgURL and ImgPrompt are either both set or
// both empty; no partial visualization state is ever persisted.
type Highlight struct {
	ID        string        `json:"id"`
	UserID    string        `json:"user_id"`
	BookID    string        `json:"book_id"`
	Text      string        `json:"text"`
	Location  PositionToken `json:"location"`
	ImgURL    string        `json:"img_url,omitempty"`
	ImgPrompt string        `json:"img_prompt,omitempty"`
	Chapter   string        `json:"chapter,omitempty"`
}

// HasImage reports whether the highlight carries a visualization.
func (h *Highlight) HasImage() bool {
	return h.ImgURL != ""
}

// Visualization is the image/prompt pair attached to a highlight. The two
// fields travel together through every update.
type Visualization struct {
	ImgURL    string `json:"img_url"`
	ImgPrompt string `json:"img_prompt"`
}

// Annotation is the typed wrapper handed to the rendering engine: a location
// plus the highlight rendered at that location.
type Annotation struct {
	Location PositionToken `json:"location"`
	Data     *Highlight    `json:"data"`
}

// HighlightRepository defines persistence operations for highlights. The
// accessToken is the caller's Supabase access token, threaded through so
// row-level security applies to every query.
type HighlightRepository interface {
	Create(ctx context.Context, highlight *Highlight, accessToken string) (*Highlight, error)
	Get(ctx context.Context, highlightID string, accessToken string) (*Highlight, error)
	ListByBook(ctx context.Context, userID, bookID string, accessToken string) ([]*Highlight, error)
	SetVisualization(ctx context.Context, highlightID string, v Visualization, accessToken string) error
	ClearVisualization(ctx context.Context, highlightID string, accessToken string) error
	Delete(ctx context.Context, userID, highlightID string, accessToken string) error
}
