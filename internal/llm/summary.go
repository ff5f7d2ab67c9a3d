package llm

import (
	"context"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

func SummarizeRun(ctx context.Context, c Completer, input SummaryInput) (string, error) {
	var sb strings.Builder
	sb.WriteString("TASK:\n" + input.Task + "\n\n")
	sb.WriteString("EXIT_REASON:\n" + input.ExitReason + "\n\n")
	sb.WriteString("DURATION:\n" + input.Duration + "\n\n")

	if input.FinalURL != "" {
		sb.WriteString("FINAL_URL:\n" + input.FinalURL + "\n\n")
	}

	if len(input.Steps) > 0 {
		sb.WriteString("STEPS:\n")
		for _, s := range input.Steps {
			sb.WriteString(s + "\n")
		}
	}

	resp, err := c.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: orDefault(input.Model, DefaultModel),
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: summarySystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: sb.String()},
		},
		Temperature: 0.2,
		MaxTokens:   600,
	})
	if err != nil {
		return "", fmt.Errorf("summarize run: %w", err)
	}
	return firstContent(resp)
}

// Extract answers task from the page text.
func Extract(ctx context.Context, c Completer, model, task, pageText string) (string, error) {
	prompt := "INFORMATION TO EXTRACT:\n" + task + "\n\nPAGE CONTENT:\n" + Truncate(pageText, safeTreeLimit)

	resp, err := c.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: orDefault(model, DefaultModel),
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: extractSystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		Temperature: 0,
	})
	if err != nil {
		return "", fmt.Errorf("extract: %w", err)
	}
	return firstContent(resp)
}
