// Package llmtest provides a scripted llm.Completer.
package llmtest

import (
	"context"
	"errors"
	"sync"

	openai "github.com/sashabaranov/go-openai"
)

var ErrExhausted = errors.New("llmtest: no scripted responses left")

// Fake returns Responses in order and records every request. Once the
// script is exhausted it repeats Fallback if set, else it fails.
type Fake struct {
	mu        sync.Mutex
	Responses []openai.ChatCompletionResponse
	Fallback  *openai.ChatCompletionResponse
	Err       error
	requests  []openai.ChatCompletionRequest
}

func (f *Fake) CreateChatCompletion(_ context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.requests = append(f.requests, req)
	if f.Err != nil {
		return openai.ChatCompletionResponse{}, f.Err
	}
	if len(f.Responses) == 0 {
		if f.Fallback != nil {
			return *f.Fallback, nil
		}
		return openai.ChatCompletionResponse{}, ErrExhausted
	}
	resp := f.Responses[0]
	f.Responses = f.Responses[1:]
	return resp, nil
}

func (f *Fake) Requests() []openai.ChatCompletionRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]openai.ChatCompletionRequest(nil), f.requests...)
}

// Text is a response with one assistant message per content.
func Text(contents ...string) openai.ChatCompletionResponse {
	resp := openai.ChatCompletionResponse{Model: "fake"}
	for i, c := range contents {
		resp.Choices = append(resp.Choices, openai.ChatCompletionChoice{
			Index:   i,
			Message: openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, Content: c},
		})
	}
	return resp
}

// ToolCalls is a response asking for the given calls. Each call is a
// name followed by its JSON arguments.
func ToolCalls(calls ...[2]string) openai.ChatCompletionResponse {
	msg := openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant}
	for i, c := range calls {
		msg.ToolCalls = append(msg.ToolCalls, openai.ToolCall{
			ID:   "call_" + string(rune('a'+i)),
			Type: openai.ToolTypeFunction,
			Function: openai.FunctionCall{
				Name:      c[0],
				Arguments: c[1],
			},
		})
	}
	return openai.ChatCompletionResponse{
		Model:   "fake",
		Choices: []openai.ChatCompletionChoice{{Message: msg}},
		Usage:   openai.Usage{PromptTokens: 10, CompletionTokens: 5},
	}
}
