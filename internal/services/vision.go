package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"github.com/stylebot/server/internal/resilience"
	logx "github.com/stylebot/server/pkg/logger"
)

// MaxPhotoBytes is the largest photo accepted for analysis (10MB).
const MaxPhotoBytes = 10 * 1024 * 1024

var supportedImageMIMEs = map[string]struct{}{
	"image/jpeg": {},
	"image/png":  {},
	"image/webp": {},
}

// Photo validation errors, mapped to catalog kinds by the photo handler.
var (
	ErrPhotoTooLarge      = fmt.Errorf("photo exceeds %d bytes", MaxPhotoBytes)
	ErrPhotoInvalidFormat = fmt.Errorf("unsupported photo format")
)

// OutfitItem is one garment recognised in a photo.
type OutfitItem struct {
	Name     string `json:"name"`
	Category string `json:"category,omitempty"`
	Color    string `json:"color,omitempty"`
}

// OutfitAnalysis is the structured result of a vision pass over a photo.
type OutfitAnalysis struct {
	Description string       `json:"description"`
	Items       []OutfitItem `json:"items,omitempty"`
	StyleNotes  string       `json:"style_notes,omitempty"`
	ColorSeason string       `json:"color_season,omitempty"`
}

const outfitPrompt = `You are a personal stylist. Analyze the outfit in this photo.
Respond with a single JSON object, no surrounding text, with these fields:
"description" (one sentence), "items" (array of {"name","category","color"}),
"style_notes" (short styling advice), "color_season" (best-guess color season, or "").`

// VisionClient analyzes outfit photos with a Gemini vision model. Results
// are never cached; every analysis is a live call through the engine.
type VisionClient struct {
	client *genai.Client
	model  string
	cfg    resilience.ServiceConfig
}

func NewVisionClient(ctx context.Context, apiKey, baseURL, model string) (*VisionClient, error) {
	clientCfg := &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	}
	if baseURL != "" {
		clientCfg.HTTPOptions.BaseURL = baseURL
	}

	client, err := genai.NewClient(ctx, clientCfg)
	if err != nil {
		logx.Error().Err(err).Msg("error creating Gemini client for vision")
		return nil, fmt.Errorf("error creating Gemini client: %w", err)
	}

	return &VisionClient{
		client: client,
		model:  model,
		cfg:    resilience.NewServiceConfig(resilience.ServiceGemini),
	}, nil
}

// ValidatePhoto checks size and format before any network call is made.
func ValidatePhoto(data []byte, mimeType string) error {
	if len(data) > MaxPhotoBytes {
		return ErrPhotoTooLarge
	}
	if _, ok := supportedImageMIMEs[strings.ToLower(mimeType)]; !ok {
		return ErrPhotoInvalidFormat
	}
	return nil
}

// AnalyzeOutfit runs the vision model over a validated photo. The caption,
// when present, is offered to the model as extra context.
func (c *VisionClient) AnalyzeOutfit(ctx context.Context, data []byte, mimeType, caption string) (*OutfitAnalysis, error) {
	if err := ValidatePhoto(data, mimeType); err != nil {
		return nil, err
	}

	result := resilience.Call(ctx, c.cfg, func(ctx context.Context) (any, error) {
		return c.generate(ctx, data, mimeType, caption)
	})

	if !result.Success {
		return nil, &resilience.CallError{
			Service:  c.cfg.Name,
			Category: result.Category,
			Message:  result.Error,
		}
	}

	analysis, ok := result.Value.(*OutfitAnalysis)
	if !ok {
		return nil, fmt.Errorf("unexpected vision result type %T", result.Value)
	}
	return analysis, nil
}

func (c *VisionClient) generate(ctx context.Context, data []byte, mimeType, caption string) (*OutfitAnalysis, error) {
	prompt := outfitPrompt
	if caption != "" {
		prompt += "\nUser caption: " + caption
	}

	content := genai.NewContentFromParts([]*genai.Part{
		genai.NewPartFromBytes(data, mimeType),
		genai.NewPartFromText(prompt),
	}, genai.RoleUser)

	resp, err := c.client.Models.GenerateContent(ctx, c.model, []*genai.Content{content}, nil)
	if err != nil {
		return nil, err
	}

	text := resp.Text()
	analysis, err := parseOutfitAnalysis(text)
	if err != nil {
		logx.Warn().Err(err).Msg("vision response was not structured, using raw text")
		return &OutfitAnalysis{Description: strings.TrimSpace(text)}, nil
	}
	return analysis, nil
}

// parseOutfitAnalysis extracts the JSON object from the model output,
// tolerating code fences around it.
func parseOutfitAnalysis(text string) (*OutfitAnalysis, error) {
	trimmed := strings.TrimSpace(text)
	trimmed = strings.TrimPrefix(trimmed, "```json")
	trimmed = strings.TrimPrefix(trimmed, "```")
	trimmed = strings.TrimSuffix(trimmed, "```")
	trimmed = strings.TrimSpace(trimmed)

	start := strings.Index(trimmed, "{")
	end := strings.LastIndex(trimmed, "}")
	if start < 0 || end <= start {
		return nil, fmt.Errorf("no JSON object in vision response")
	}

	var analysis OutfitAnalysis
	if err := json.Unmarshal([]byte(trimmed[start:end+1]), &analysis); err != nil {
		return nil, fmt.Errorf("parse vision response: %w", err)
	}
	if analysis.Description == "" && len(analysis.Items) == 0 {
		return nil, fmt.Errorf("empty vision analysis")
	}
	return &analysis, nil
}
