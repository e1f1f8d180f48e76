package genimage

import (
	"context"
	"fmt"
	"strings"

	"cloud.google.com/go/vertexai/genai"

	"ebook-reader/internal/domain"
)

const promptInstruction = `You write prompts for an image generation model.
Given a passage from a book, produce a single vivid visual prompt that
illustrates the scene. Ground the imagery in the book's setting and period.
Avoid text, lettering, watermarks and frames in the image. Respond with the
prompt only, no preamble.

Book: %s by %s
Chapter: %s
Passage: %q`

// PromptEngineer turns a highlighted passage into an image-generation prompt
// using a Gemini model on Vertex AI.
type PromptEngineer struct {
	model  *genai.GenerativeModel
	logger domain.Logger
}

func NewPromptEngineer(client *genai.Client, logger domain.Logger) *PromptEngineer {
	model := client.GenerativeModel("gemini-2.0-flash-001")
	model.SetTemperature(0.4)
	return &PromptEngineer{
		model:  model,
		logger: logger,
	}
}

// Improve produces the image prompt for the request's passage. The returned
// prompt is what gets persisted as img_prompt alongside the generated image.
func (p *PromptEngineer) Improve(ctx context.Context, req domain.GenerateImageRequest) (string, error) {
	instruction := fmt.Sprintf(promptInstruction, req.BookTitle, req.BookAuthor, req.Chapter, req.Passage)

	resp, err := p.model.GenerateContent(ctx, genai.Text(instruction))
	if err != nil {
		return "", fmt.Errorf("failed to generate prompt: %w", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", fmt.Errorf("prompt model returned no candidates")
	}

	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			sb.WriteString(string(text))
		}
	}

	prompt := strings.TrimSpace(sb.String())
	if prompt == "" {
		return "", fmt.Errorf("prompt model returned empty text")
	}

	p.logger.Debug("Prompt engineered", "length", len(prompt))
	return prompt, nil
}
