package reader

import (
	"context"
	"fmt"

	"ebook-reader/internal/domain"

	"github.com/google/uuid"
)

// Visualizer drives the highlight visualization pipeline: invoke the
// generate-image function, attach the resulting image/prompt pair to the
// highlight record, and clean up the image it replaced. The ordering is
// fixed: the new image is stored and referenced before the old object is
// touched, so the record never points at a deleted image.
type Visualizer struct {
	highlights domain.HighlightRepository
	generator  domain.ImageGenerator
	images     domain.ImageStore
	logger     domain.Logger
}

func NewVisualizer(highlights domain.HighlightRepository, generator domain.ImageGenerator, images domain.ImageStore, logger domain.Logger) *Visualizer {
	return &Visualizer{
		highlights: highlights,
		generator:  generator,
		images:     images,
		logger:     logger,
	}
}

// CreateAndVisualize persists a new highlight row and then runs the pipeline
// on it. When generation fails (including quota rejections) the imageless row
// survives so the user can retry later; the created row is returned alongside
// the error so the caller can keep it.
func (v *Visualizer) CreateAndVisualize(ctx context.Context, highlight *domain.Highlight, book *domain.Book, accessToken string) (*domain.Highlight, error) {
	created, err := v.highlights.Create(ctx, highlight, accessToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create highlight: %w", err)
	}

	updated, err := v.Visualize(ctx, created, book, created.Text, accessToken)
	if err != nil {
		if updated != nil {
			return updated, err
		}
		return created, err
	}
	return updated, nil
}

// Visualize generates a fresh image for the highlight under a new image id
// and attaches it to the record. The passage is what the image is generated
// from: the highlight's own text, or a custom prompt on re-visualization.
// Each invocation produces a distinct stored object, so a retry after an
// ambiguous failure cannot overwrite a previous result. The replaced image,
// if any, is deleted only after the record points at the new one; a failed
// deletion returns the updated highlight together with the error.
func (v *Visualizer) Visualize(ctx context.Context, highlight *domain.Highlight, book *domain.Book, passage string, accessToken string) (*domain.Highlight, error) {
	req := domain.GenerateImageRequest{
		ImageID:    uuid.NewString(),
		Passage:    passage,
		BookTitle:  book.Title,
		BookAuthor: book.Author,
		Chapter:    highlight.Chapter,
	}

	generated, err := v.generator.Generate(ctx, req, accessToken)
	if err != nil {
		return nil, err
	}

	err = v.highlights.SetVisualization(ctx, highlight.ID, domain.Visualization{
		ImgURL:    generated.ImgURL,
		ImgPrompt: generated.ImgPrompt,
	}, accessToken)
	if err != nil {
		// The new object is orphaned in storage but the record still points
		// at a valid image (or none), which is the safe side to fail on.
		return nil, fmt.Errorf("failed to attach visualization: %w", err)
	}

	updated := *highlight
	updated.ImgURL = generated.ImgURL
	updated.ImgPrompt = generated.ImgPrompt

	if highlight.HasImage() {
		if err := v.images.DeleteByURL(ctx, highlight.ImgURL, accessToken); err != nil {
			v.logger.Warn("Failed to delete replaced image", "highlight_id", highlight.ID, "url", highlight.ImgURL, "error", err)
			return &updated, fmt.Errorf("visualization updated but old image not deleted: %w", err)
		}
	}

	v.logger.Info("Highlight visualized", "highlight_id", highlight.ID, "image_url", updated.ImgURL)
	return &updated, nil
}

// DeleteVisualization detaches the image/prompt pair from the highlight and
// then removes the stored object. The record is cleared first: if the object
// deletion fails afterwards the image is orphaned, which is preferable to a
// record referencing a deleted image.
func (v *Visualizer) DeleteVisualization(ctx context.Context, highlight *domain.Highlight, accessToken string) (*domain.Highlight, error) {
	if !highlight.HasImage() {
		return nil, domain.ErrNoVisualization
	}

	if err := v.highlights.ClearVisualization(ctx, highlight.ID, accessToken); err != nil {
		return nil, fmt.Errorf("failed to clear visualization: %w", err)
	}

	updated := *highlight
	updated.ImgURL = ""
	updated.ImgPrompt = ""

	if err := v.images.DeleteByURL(ctx, highlight.ImgURL, accessToken); err != nil {
		v.logger.Warn("Failed to delete cleared image", "highlight_id", highlight.ID, "url", highlight.ImgURL, "error", err)
	}

	return &updated, nil
}
