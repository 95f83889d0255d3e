package llm

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"github.com/justtrance-web/artvision-tg-bot/pkg/models"
)

// DefaultModel is used when no model is configured
const DefaultModel = "gemini-2.5-flash"

type generateFunc func(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)

// GeminiClient implements Classifier and Transcriber with one Gemini model
type GeminiClient struct {
	generate generateFunc
	model    string
}

// NewGeminiClient creates a client for the Gemini developer API
func NewGeminiClient(ctx context.Context, apiKey, model string) (*GeminiClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("Gemini API key is required")
	}
	if model == "" {
		model = DefaultModel
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}

	return &GeminiClient{generate: client.Models.GenerateContent, model: model}, nil
}

func (g *GeminiClient) text(ctx context.Context, contents []*genai.Content, system string, cfg *genai.GenerateContentConfig) (string, error) {
	if cfg == nil {
		cfg = &genai.GenerateContentConfig{}
	}
	if system != "" {
		cfg.SystemInstruction = genai.NewContentFromText(system, genai.RoleUser)
	}
	resp, err := g.generate(ctx, g.model, contents, cfg)
	if err != nil {
		return "", fmt.Errorf("gemini generate: %w: %w", models.ErrUpstream, err)
	}
	return strings.TrimSpace(resp.Text()), nil
}

// Classify asks the model for a JSON intent. The answer is not validated here;
// ParseIntent turns it into a models.Intent.
func (g *GeminiClient) Classify(ctx context.Context, text, systemContext string) (string, error) {
	if systemContext == "" {
		systemContext = ClassifyPrompt
	}
	return g.text(ctx,
		[]*genai.Content{genai.NewContentFromText(text, genai.RoleUser)},
		systemContext,
		&genai.GenerateContentConfig{
			ResponseMIMEType: "application/json",
			Temperature:      genai.Ptr[float32](0.1),
		})
}

// Summarize produces a short idea title
func (g *GeminiClient) Summarize(ctx context.Context, text string) (string, error) {
	out, err := g.text(ctx,
		[]*genai.Content{genai.NewContentFromText(text, genai.RoleUser)},
		summarizePrompt,
		&genai.GenerateContentConfig{Temperature: genai.Ptr[float32](0.2)})
	if err != nil {
		return "", err
	}
	return strings.Trim(out, "\"«» \n"), nil
}

// Transcribe sends the audio inline and returns the recognized text
func (g *GeminiClient) Transcribe(ctx context.Context, audio []byte, mimeType string) (string, error) {
	if len(audio) == 0 {
		return "", nil
	}
	if mimeType == "" {
		mimeType = "audio/ogg"
	}
	contents := []*genai.Content{
		genai.NewContentFromParts([]*genai.Part{
			genai.NewPartFromText(transcribePrompt),
			genai.NewPartFromBytes(audio, mimeType),
		}, genai.RoleUser),
	}
	return g.text(ctx, contents, "", &genai.GenerateContentConfig{Temperature: genai.Ptr[float32](0)})
}
