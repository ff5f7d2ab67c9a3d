package llm

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"

	openai "github.com/sashabaranov/go-openai"
)

type VisionRequest struct {
	Model      string
	System     string
	Prompt     string
	Screenshot []byte
	// N is the number of candidate answers; values below 1 mean 1.
	N int
}

// QueryVision sends the prompt together with the screenshot and returns the
// content of every choice.
func QueryVision(ctx context.Context, c Completer, req VisionRequest) ([]string, error) {
	n := req.N
	if n < 1 {
		n = 1
	}

	image := base64.StdEncoding.EncodeToString(req.Screenshot)
	resp, err := c.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: orDefault(req.Model, DefaultVisionModel),
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: req.System},
			{Role: openai.ChatMessageRoleUser, MultiContent: []openai.ChatMessagePart{
				{Type: openai.ChatMessagePartTypeText, Text: req.Prompt},
				{Type: openai.ChatMessagePartTypeImageURL, ImageURL: &openai.ChatMessageImageURL{
					URL:    "data:image/jpeg;base64," + image,
					Detail: openai.ImageURLDetailHigh,
				}},
			}},
		},
		N: n,
	})
	if err != nil {
		return nil, fmt.Errorf("vision query: %w", err)
	}

	answers := make([]string, 0, len(resp.Choices))
	for _, ch := range resp.Choices {
		answers = append(answers, ch.Message.Content)
	}
	return answers, nil
}

// EncodeImageFile returns the base64 encoding of the file at path.
func EncodeImageFile(path string) (string, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(b), nil
}
