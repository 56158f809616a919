// Package assistant forwards user prompts to an Amazon Bedrock model and
// returns the text reply. It keeps no conversation state of its own; the
// caller supplies any history it wants the model to see.
package assistant

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"

	"github.com/johnnycloud/posture/pkg/models/api"
)

const (
	anthropicVersion = "bedrock-2023-05-31"
	maxTokens        = 700
	temperature      = 0.6
	topP             = 0.95
)

type BedrockAPI interface {
	InvokeModel(
		ctx context.Context,
		params *bedrockruntime.InvokeModelInput,
		optFns ...func(*bedrockruntime.Options),
	) (*bedrockruntime.InvokeModelOutput, error)
}

type Service struct {
	client       BedrockAPI
	modelID      string
	systemPrompt string
	timeout      time.Duration
}

func NewService(client BedrockAPI, modelID, systemPrompt string, timeout time.Duration) *Service {
	return &Service{
		client:       client,
		modelID:      modelID,
		systemPrompt: systemPrompt,
		timeout:      timeout,
	}
}

type contentBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type message struct {
	Role    string         `json:"role"`
	Content []contentBlock `json:"content"`
}

type invokeRequest struct {
	AnthropicVersion string    `json:"anthropic_version"`
	System           string    `json:"system"`
	MaxTokens        int       `json:"max_tokens"`
	Temperature      float64   `json:"temperature"`
	TopP             float64   `json:"top_p"`
	Messages         []message `json:"messages"`
}

type invokeResponse struct {
	Content []contentBlock `json:"content"`
}

// Reply sends the history plus the new user message to the model and returns
// the first text block of the response.
func (s *Service) Reply(ctx context.Context, userMessage string, history []api.ChatMessage) (string, error) {
	messages := make([]message, 0, len(history)+1)
	for _, m := range history {
		messages = append(messages, message{
			Role:    m.Role,
			Content: []contentBlock{{Type: "text", Text: m.Content}},
		})
	}
	messages = append(messages, message{
		Role:    "user",
		Content: []contentBlock{{Type: "text", Text: userMessage}},
	})

	body, err := json.Marshal(invokeRequest{
		AnthropicVersion: anthropicVersion,
		System:           s.systemPrompt,
		MaxTokens:        maxTokens,
		Temperature:      temperature,
		TopP:             topP,
		Messages:         messages,
	})
	if err != nil {
		return "", fmt.Errorf("marshal model request: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	out, err := s.client.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
		ModelId:     aws.String(s.modelID),
		ContentType: aws.String("application/json"),
		Accept:      aws.String("application/json"),
		Body:        body,
	})
	if err != nil {
		return "", fmt.Errorf("invoke model: %w", err)
	}

	var resp invokeResponse
	if err := json.Unmarshal(out.Body, &resp); err != nil {
		return "", fmt.Errorf("decode model response: %w", err)
	}
	if len(resp.Content) == 0 {
		return "", fmt.Errorf("model returned no content")
	}
	return strings.TrimSpace(resp.Content[0].Text), nil
}
