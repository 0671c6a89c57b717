package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/voicearcade/server/internal/game"
)

// OpenAI implements both collaborators on the chat completions API.
type OpenAI struct {
	client openai.Client
	model  openai.ChatModel
}

func NewOpenAI(apiKey, model string) *OpenAI {
	return &OpenAI{
		client: openai.NewClient(option.WithAPIKey(apiKey)),
		model:  openai.ChatModel(model),
	}
}

func (o *OpenAI) Generate(ctx context.Context, prompt, difficulty string, count int) (string, error) {
	sys := fmt.Sprintf(
		"You generate content for a voice-controlled party game. Difficulty: %s. Produce exactly %d items in the requested format, plain text, no markdown.",
		difficulty, count)

	resp, err := o.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: o.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(sys),
			openai.UserMessage(prompt),
		},
	})
	if err != nil {
		return "", fmt.Errorf("%w: content generation: %v", game.ErrUpstreamFailure, err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: content generation returned no choices", game.ErrUpstreamFailure)
	}
	return resp.Choices[0].Message.Content, nil
}

func (o *OpenAI) Classify(ctx context.Context, text string, contextHints map[string]string) (Intent, error) {
	hints, _ := json.Marshal(contextHints)
	sys := "You map a voice transcript from a party game to a single action. " +
		"Respond with only a JSON object {\"type\": string, \"payload\": object of string values}. " +
		"Use type \"unknown\" when the transcript is not a game action. Context: " + string(hints)

	resp, err := o.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: o.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(sys),
			openai.UserMessage(text),
		},
	})
	if err != nil {
		return Intent{}, fmt.Errorf("%w: intent classification: %v", game.ErrUpstreamFailure, err)
	}
	if len(resp.Choices) == 0 {
		return Intent{}, fmt.Errorf("%w: intent classification returned no choices", game.ErrUpstreamFailure)
	}

	raw := strings.TrimSpace(resp.Choices[0].Message.Content)
	raw = strings.TrimPrefix(raw, "```json")
	raw = strings.TrimPrefix(raw, "```")
	raw = strings.TrimSuffix(raw, "```")

	var out struct {
		Type    string            `json:"type"`
		Payload map[string]string `json:"payload"`
	}
	if err := json.Unmarshal([]byte(strings.TrimSpace(raw)), &out); err != nil {
		return Intent{}, fmt.Errorf("%w: unparseable classifier reply", game.ErrUpstreamFailure)
	}
	return Intent{Type: out.Type, Payload: out.Payload}, nil
}
