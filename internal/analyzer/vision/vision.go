// Package vision implements the damage analyzer on top of a hosted
// vision-capable chat model.
package vision

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/example/damage-analyzer/internal/analyzer"
)

const maxTokens = 512

const systemPrompt = `You are a vehicle damage assessor. Given a photo, respond with a single JSON object:
{
  "is_vehicle": boolean, true only if the photo clearly shows a road vehicle,
  "severity": number from 0 to 100 estimating overall damage severity,
  "damage_parts": array of affected part names in snake_case,
  "confidence": number from 0 to 1 for your assessment confidence
}
If the photo does not show a vehicle, set is_vehicle to false and zero the other fields.
Respond with JSON only, no prose.`

// completionClient is the slice of the OpenAI client the backend uses.
type completionClient interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// Backend sends images to a vision-language model and parses its JSON reply.
type Backend struct {
	client completionClient
	model  string
	logger *zap.Logger
}

// New constructs a vision backend. An empty API key yields a backend that
// always falls back to mock results.
func New(apiKey, model string, logger *zap.Logger) *Backend {
	b := &Backend{model: model, logger: logger.Named("vision_backend")}
	if apiKey != "" {
		b.client = openai.NewClient(apiKey)
	}
	return b
}

// Ready reports whether an API client is configured.
func (b *Backend) Ready() bool {
	return b.client != nil
}

// Analyze submits the image with the assessment rubric and normalizes the
// model reply. API failures degrade to a mock result; a negative is_vehicle
// verdict becomes a gate rejection.
func (b *Backend) Analyze(ctx context.Context, image []byte) (*analyzer.Result, error) {
	if b.client == nil {
		return analyzer.MockResult(), nil
	}

	req := openai.ChatCompletionRequest{
		Model:     b.model,
		MaxTokens: maxTokens,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{
				Role: openai.ChatMessageRoleUser,
				MultiContent: []openai.ChatMessagePart{
					{
						Type: openai.ChatMessagePartTypeText,
						Text: "Assess the vehicle damage in this photo.",
					},
					{
						Type: openai.ChatMessagePartTypeImageURL,
						ImageURL: &openai.ChatMessageImageURL{
							URL:    dataURL(image),
							Detail: openai.ImageURLDetailAuto,
						},
					},
				},
			},
		},
	}

	resp, err := b.client.CreateChatCompletion(ctx, req)
	if err != nil {
		b.logger.Warn("chat completion failed, falling back to mock result", zap.Error(err))
		return analyzer.MockResult(), nil
	}
	if len(resp.Choices) == 0 {
		b.logger.Warn("chat completion returned no choices, falling back to mock result")
		return analyzer.MockResult(), nil
	}

	reply, err := parseReply(resp.Choices[0].Message.Content)
	if err != nil {
		b.logger.Warn("unparseable model reply, falling back to mock result",
			zap.Error(err), zap.String("content", resp.Choices[0].Message.Content))
		return analyzer.MockResult(), nil
	}

	if !reply.IsVehicle {
		return analyzer.Rejection("Image does not appear to contain a vehicle."), nil
	}

	result := &analyzer.Result{
		Severity:    analyzer.Round(analyzer.Clamp(reply.Severity, 0, 100), 2),
		DamageParts: reply.DamageParts,
		Confidence:  analyzer.Round(analyzer.Clamp(reply.Confidence, 0, 1), 3),
		IsVehicle:   true,
	}
	if result.DamageParts == nil {
		result.DamageParts = []string{}
	}
	return result, nil
}

func dataURL(image []byte) string {
	mime := http.DetectContentType(image)
	return fmt.Sprintf("data:%s;base64,%s", mime, base64.StdEncoding.EncodeToString(image))
}
