package llm

import (
	"context"
	"errors"
	"fmt"

	openai "github.com/sashabaranov/go-openai"

	"github.com/nbenliogludev/go-web-agent/internal/config"
)

const (
	DefaultModel       = openai.GPT4oMini
	DefaultVisionModel = openai.GPT4o
)

var ErrNoChoices = errors.New("no response choices")

// Completer is the part of *openai.Client the agent uses.
type Completer interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

var _ Completer = (*openai.Client)(nil)

// NewClient builds an OpenAI client from cfg. BaseURL points it at any
// OpenAI-compatible endpoint.
func NewClient(cfg config.LLMConfig) (*openai.Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY is not set")
	}
	oc := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		oc.BaseURL = cfg.BaseURL
	}
	return openai.NewClientWithConfig(oc), nil
}

func firstContent(resp openai.ChatCompletionResponse) (string, error) {
	if len(resp.Choices) == 0 {
		return "", ErrNoChoices
	}
	return resp.Choices[0].Message.Content, nil
}

func orDefault(model, def string) string {
	if model == "" {
		return def
	}
	return model
}
