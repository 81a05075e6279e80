package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/simywang/Teambot/internal/model"

	openai "github.com/sashabaranov/go-openai"
)

// ErrExtraction wraps any failure of the extraction collaborator. Callers
// surface it as a user-visible "try again" message; there is no retry.
var ErrExtraction = errors.New("extraction failed")

const extractionSystemPrompt = `You are a professional commodity trading information extraction assistant.
Extract the following information from the conversation:
- customer: Customer name
- product: Product name (e.g., cocoa butter)
- ratio: Price ratio (numeric value)
- incoterm: Trade term (e.g., FOB, CIF)
- period: Time period (convert to standard format like "Jan-Jun 2026" or "H1 2026")
- quantity_mt: Quantity in metric tons (numeric value only)

Return ONLY a valid JSON object with these exact keys. If information is uncertain or missing, use null.
Do not include any explanations or additional text, only the JSON object.

Example format:
{
  "customer": "Lindt",
  "product": "cocoa butter",
  "ratio": 2.78,
  "incoterm": "FOB",
  "period": "Jan-Jun 2026",
  "quantity_mt": 100
}`

// Extractor turns an ordered list of "speaker: text" lines into a
// best-effort structured guess. Output is untrusted and needs validation.
type Extractor interface {
	ExtractLOI(ctx context.Context, lines []string) (*model.ExtractedLOI, error)
}

type ExtractionService struct {
	client *openai.Client
	model  string
}

func NewExtractionService(apiKey, baseURL, modelName string) *ExtractionService {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	if modelName == "" {
		modelName = openai.GPT4o
	}
	return &ExtractionService{
		client: openai.NewClientWithConfig(cfg),
		model:  modelName,
	}
}

func (s *ExtractionService) ExtractLOI(ctx context.Context, lines []string) (*model.ExtractedLOI, error) {
	resp, err := s.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: s.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: extractionSystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: strings.Join(lines, "\n")},
		},
		Temperature: 0.3,
		MaxTokens:   500,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrExtraction, err)
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return nil, fmt.Errorf("%w: empty completion response", ErrExtraction)
	}

	return parseExtraction(resp.Choices[0].Message.Content)
}

// parseExtraction tolerates code fences around the JSON object; anything
// else unparseable is an extraction error.
func parseExtraction(content string) (*model.ExtractedLOI, error) {
	content = strings.TrimSpace(content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")
	content = strings.TrimSpace(content)

	extracted := &model.ExtractedLOI{}
	if err := json.Unmarshal([]byte(content), extracted); err != nil {
		return nil, fmt.Errorf("%w: unusable JSON: %v", ErrExtraction, err)
	}
	return extracted, nil
}
