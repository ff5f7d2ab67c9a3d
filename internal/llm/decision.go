package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"

	openai "github.com/sashabaranov/go-openai"
)

const safeTreeLimit = 60000

// DecideActions asks the model for in.N candidate actions in JSON mode and
// returns the ones that parse, in choice order.
func DecideActions(ctx context.Context, c Completer, in DecisionInput) ([]DecisionOutput, error) {
	var sb strings.Builder
	sb.WriteString("TASK: " + in.Task + "\n")
	sb.WriteString("URL: " + in.CurrentURL + "\n")
	if in.History != "" {
		sb.WriteString("HISTORY:\n" + in.History + "\n")
	}
	sb.WriteString("\nPAGE TREE:\n" + Truncate(in.Tree, safeTreeLimit))

	user := openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: sb.String()}
	model := orDefault(in.Model, DefaultModel)
	if in.ScreenshotBase64 != "" {
		user = openai.ChatCompletionMessage{
			Role: openai.ChatMessageRoleUser,
			MultiContent: []openai.ChatMessagePart{
				{Type: openai.ChatMessagePartTypeText, Text: sb.String()},
				{Type: openai.ChatMessagePartTypeImageURL, ImageURL: &openai.ChatMessageImageURL{
					URL: "data:image/jpeg;base64," + in.ScreenshotBase64,
				}},
			},
		}
	}

	n := in.N
	if n < 1 {
		n = 1
	}

	resp, err := c.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: decisionSystemPrompt},
			user,
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		N: n,
	})
	if err != nil {
		return nil, fmt.Errorf("decide action: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, ErrNoChoices
	}

	var (
		out     []DecisionOutput
		lastErr error
	)
	for _, ch := range resp.Choices {
		d, err := ParseDecision(ch.Message.Content)
		if err != nil {
			lastErr = err
			continue
		}
		out = append(out, *d)
	}
	if len(out) == 0 {
		return nil, lastErr
	}
	return out, nil
}

// DecideAction returns the first parsable candidate.
func DecideAction(ctx context.Context, c Completer, in DecisionInput) (*DecisionOutput, error) {
	all, err := DecideActions(ctx, c, in)
	if err != nil {
		return nil, err
	}
	return &all[0], nil
}

// ParseDecision decodes one model answer, tolerating markdown code fences.
func ParseDecision(content string) (*DecisionOutput, error) {
	s := strings.TrimSpace(content)
	s = strings.TrimPrefix(s, "```json")
	s = strings.Trim(s, "`")

	var out DecisionOutput
	if err := json.Unmarshal([]byte(s), &out); err != nil {
		return nil, fmt.Errorf("json parse error: %w | content: %s", err, content)
	}
	normalizeActionType(&out.Action)
	return &out, nil
}

// Truncate cuts s to at most limit bytes without splitting a rune and marks
// the cut.
func Truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	for limit > 0 && !utf8.RuneStart(s[limit]) {
		limit--
	}
	return s[:limit] + "\n...[TRUNCATED]"
}
