// Package openaivision scores vegetation dryness with a multimodal chat
// model. It is the secondary tier of the vegetation fallback chain, used
// when the NDVI model is unavailable or rejects the tile.
package openaivision

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/pyroguard/sentinel/internal/core/domain"
)

const defaultModel = "gpt-4o"

const analysisPrompt = `You are analyzing a satellite image for wildfire risk assessment in Hawaii at coordinates %.4f, %.4f.

Assess the vegetation dryness level from the image. Consider vegetation color (green is healthy, brown or yellow is dry), vegetation density and coverage, soil moisture indicators, and visible stress in the canopy.

Respond with a JSON object:
{"dryness_score": <float 0-1 where 0 is very moist and 1 is extremely dry>, "confidence": <float 0-1>, "vegetation_type": "<brief description>", "reasoning": "<one sentence>"}`

type chatCompleter interface {
	CreateChatCompletion(ctx context.Context, request openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

type Client struct {
	api    chatCompleter
	model  string
	logger *slog.Logger
}

type Options struct {
	BaseURL string
	Model   string
	Timeout time.Duration
	Logger  *slog.Logger
}

func New(apiKey string, options Options) *Client {
	var api chatCompleter
	if apiKey != "" {
		config := openai.DefaultConfig(apiKey)
		if options.BaseURL != "" {
			config.BaseURL = options.BaseURL
		}
		timeout := options.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		config.HTTPClient = &http.Client{Timeout: timeout}
		api = openai.NewClientWithConfig(config)
	}

	model := options.Model
	if model == "" {
		model = defaultModel
	}
	logger := options.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{api: api, model: model, logger: logger}
}

func (c *Client) Name() string { return "vision_llm" }

type visionVerdict struct {
	DrynessScore   *float64 `json:"dryness_score"`
	Confidence     *float64 `json:"confidence"`
	VegetationType string   `json:"vegetation_type"`
	Reasoning      string   `json:"reasoning"`
}

// AnalyzeDryness sends the tile to the vision model and parses the JSON
// verdict out of the reply. A missing key or an unconfigured client fails
// the tier so the resolver moves on.
func (c *Client) AnalyzeDryness(ctx context.Context, image []byte, lat, lon float64) (domain.VegetationData, error) {
	if c.api == nil {
		return domain.VegetationData{}, fmt.Errorf("vision api key not configured")
	}
	if len(image) == 0 {
		return domain.VegetationData{}, fmt.Errorf("no satellite imagery to analyze")
	}

	imageURL := "data:image/png;base64," + base64.StdEncoding.EncodeToString(image)
	request := openai.ChatCompletionRequest{
		Model:     c.model,
		MaxTokens: 1000,
		Messages: []openai.ChatCompletionMessage{
			{
				Role: openai.ChatMessageRoleUser,
				MultiContent: []openai.ChatMessagePart{
					{
						Type: openai.ChatMessagePartTypeText,
						Text: fmt.Sprintf(analysisPrompt, lat, lon),
					},
					{
						Type:     openai.ChatMessagePartTypeImageURL,
						ImageURL: &openai.ChatMessageImageURL{URL: imageURL},
					},
				},
			},
		},
	}

	response, err := c.api.CreateChatCompletion(ctx, request)
	if err != nil {
		return domain.VegetationData{}, fmt.Errorf("vision completion: %w", err)
	}
	if len(response.Choices) == 0 {
		return domain.VegetationData{}, fmt.Errorf("vision completion returned no choices")
	}

	verdict, err := parseVerdict(response.Choices[0].Message.Content)
	if err != nil {
		return domain.VegetationData{}, err
	}

	dryness := 0.5
	if verdict.DrynessScore != nil {
		dryness = clamp01(*verdict.DrynessScore)
	}
	confidence := 0.7
	if verdict.Confidence != nil {
		confidence = clamp01(*verdict.Confidence)
	}

	c.logger.Info("vision dryness analysis complete",
		"dryness", dryness,
		"confidence", confidence,
		"vegetation_type", verdict.VegetationType,
	)
	return domain.VegetationData{
		DrynessScore: dryness,
		Confidence:   confidence,
		Method:       c.Name(),
	}, nil
}

// parseVerdict tolerates prose around the JSON object since chat models
// often wrap structured output in commentary.
func parseVerdict(content string) (visionVerdict, error) {
	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start < 0 || end <= start {
		return visionVerdict{}, fmt.Errorf("no JSON object in vision reply")
	}

	var verdict visionVerdict
	if err := json.Unmarshal([]byte(content[start:end+1]), &verdict); err != nil {
		return visionVerdict{}, fmt.Errorf("parse vision reply: %w", err)
	}
	return verdict, nil
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
