package similarity

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/log"
	"google.golang.org/genai"

	"github.com/shibest/mycelius/internal/shared"
)

// DefaultModel is used when no Gemini model is configured.
const DefaultModel = "gemini-2.5-flash"

// Scorer turns a prompt into the model's text reply.
type Scorer interface {
	Score(ctx context.Context, prompt string) (string, error)
}

// GeminiScorer scores batches with the Gemini API.
type GeminiScorer struct {
	client *genai.Client
	model  string
	logger *log.Logger
}

// GeminiOption configures a [GeminiScorer].
type GeminiOption func(*GeminiScorer)

// WithModel sets the model to use.
func WithModel(model string) GeminiOption {
	return func(g *GeminiScorer) {
		if model != "" {
			g.model = model
		}
	}
}

// WithScorerLogger sets the logger.
func WithScorerLogger(logger *log.Logger) GeminiOption {
	return func(g *GeminiScorer) { g.logger = logger }
}

// NewGeminiScorer creates a scorer backed by the Gemini API.
func NewGeminiScorer(ctx context.Context, apiKey string, opts ...GeminiOption) (*GeminiScorer, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("%w: gemini api key is not set", shared.ErrMissingCredentials)
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	g := &GeminiScorer{client: client, model: DefaultModel, logger: shared.NewSilentLogger()}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

// Score sends prompt to the model and returns the concatenated text parts of the first candidate.
func (g *GeminiScorer) Score(ctx context.Context, prompt string) (string, error) {
	g.logger.Debug("generating scores", "model", g.model)

	result, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(prompt), nil)
	if err != nil {
		return "", fmt.Errorf("%w: failed to generate content: %v", shared.ErrScoringFailed, err)
	}

	if len(result.Candidates) == 0 || result.Candidates[0].Content == nil || len(result.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("%w: no content generated", shared.ErrScoringFailed)
	}

	var sb strings.Builder
	for _, part := range result.Candidates[0].Content.Parts {
		sb.WriteString(part.Text)
	}
	return sb.String(), nil
}
