package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	openai "github.com/sashabaranov/go-openai"

	"github.com/nbenliogludev/go-web-agent/internal/llm"
	"github.com/nbenliogludev/go-web-agent/internal/tools"
)

// MaxDepth bounds the completion and tool-execution round-trips of one
// SendCompletionRequest call.
const MaxDepth = 8

var ErrMaxDepth = errors.New("completion loop reached max depth")

type loopState int

const (
	awaitingCompletion loopState = iota
	executingTools
	done
)

func (s loopState) String() string {
	switch s {
	case awaitingCompletion:
		return "awaiting_completion"
	case executingTools:
		return "executing_tools"
	case done:
		return "done"
	}
	return "unknown"
}

// Event types delivered to an Observer.
const (
	EventToolResult = "tool_result"
	EventComplete   = "complete"
)

type Event struct {
	Type       string
	ToolName   string
	ToolCallID string
	Content    string
	Response   *openai.ChatCompletionResponse
}

// Observer is told about tool results and the terminal response. It cannot
// change the flow of the loop.
type Observer func(Event)

// Loop sends the conversation to the model and runs the tools it asks for
// until it answers without tool calls.
type Loop struct {
	llm       llm.Completer
	model     string
	tools     []openai.Tool
	available map[string]tools.Callable
	conv      *Conversation
	observer  Observer
	log       *slog.Logger
}

func NewLoop(c llm.Completer, model string, descriptors []openai.Tool, available map[string]tools.Callable, conv *Conversation, log *slog.Logger) *Loop {
	if log == nil {
		log = slog.Default()
	}
	if conv == nil {
		conv = NewConversation()
	}
	return &Loop{
		llm:       c,
		model:     model,
		tools:     descriptors,
		available: available,
		conv:      conv,
		log:       log,
	}
}

// SetObserver installs o; nil removes it.
func (l *Loop) SetObserver(o Observer) { l.observer = o }

func (l *Loop) emit(e Event) {
	if l.observer != nil {
		l.observer(e)
	}
}

// SendCompletionRequest runs the loop. Without tools it is a single
// round-trip. With tools it stops when a response carries no tool calls,
// returning that response, or fails with ErrMaxDepth after MaxDepth rounds.
// Completion and tool errors are returned as they happen; the conversation
// keeps everything appended before the failure.
func (l *Loop) SendCompletionRequest(ctx context.Context, plan string) (*openai.ChatCompletionResponse, error) {
	l.log.Debug("completion request", "agent", l.model, "tools", len(l.tools), "plan_chars", len(plan))

	if len(l.tools) == 0 {
		resp, err := l.complete(ctx, 0, false)
		if err != nil {
			return nil, err
		}
		l.conv.Append(resp.Choices[0].Message)
		l.emit(Event{Type: EventComplete, Response: &resp})
		return &resp, nil
	}

	var (
		depth int
		resp  openai.ChatCompletionResponse
		calls []openai.ToolCall
		err   error
	)
	state := awaitingCompletion
	for {
		switch state {
		case awaitingCompletion:
			if depth >= MaxDepth {
				l.log.Warn("completion loop stopped", "agent", l.model, "depth", depth)
				return nil, ErrMaxDepth
			}
			resp, err = l.complete(ctx, depth, true)
			if err != nil {
				return nil, err
			}
			msg := resp.Choices[0].Message
			if len(msg.ToolCalls) == 0 {
				l.conv.Append(msg)
				state = done
				continue
			}
			calls = msg.ToolCalls
			l.conv.Append(openai.ChatCompletionMessage{
				Role:      msg.Role,
				Content:   msg.Content,
				ToolCalls: msg.ToolCalls,
			})
			state = executingTools

		case executingTools:
			if err := l.processToolCalls(ctx, calls); err != nil {
				return nil, err
			}
			depth++
			state = awaitingCompletion

		case done:
			l.emit(Event{Type: EventComplete, Response: &resp})
			return &resp, nil
		}
	}
}

func (l *Loop) complete(ctx context.Context, depth int, withTools bool) (openai.ChatCompletionResponse, error) {
	req := openai.ChatCompletionRequest{
		Model:    l.model,
		Messages: l.conv.Messages(),
	}
	if withTools {
		req.Tools = l.tools
		req.ToolChoice = "auto"
	}

	resp, err := l.llm.CreateChatCompletion(ctx, req)
	if err != nil {
		return resp, fmt.Errorf("completion at depth %d: %w", depth, err)
	}
	l.log.Info("completion",
		"agent", l.model,
		"depth", depth,
		"prompt_tokens", resp.Usage.PromptTokens,
		"completion_tokens", resp.Usage.CompletionTokens,
	)
	if len(resp.Choices) == 0 {
		return resp, fmt.Errorf("completion at depth %d: %w", depth, llm.ErrNoChoices)
	}
	l.log.Debug("completion response", "agent", l.model, "depth", depth, "content", resp.Choices[0].Message.Content)
	return resp, nil
}

// processToolCalls runs the calls in order and appends one tool message
// per call.
func (l *Loop) processToolCalls(ctx context.Context, calls []openai.ToolCall) error {
	for _, call := range calls {
		name := call.Function.Name
		fn, ok := l.available[name]
		if !ok {
			return fmt.Errorf("%w: %s", tools.ErrUnknownTool, name)
		}

		out, err := fn(ctx, call.Function.Arguments)
		if err != nil {
			return fmt.Errorf("tool %s: %w", name, err)
		}

		l.conv.Append(openai.ChatCompletionMessage{
			Role:       openai.ChatMessageRoleTool,
			Content:    out,
			Name:       name,
			ToolCallID: call.ID,
		})
		l.emit(Event{Type: EventToolResult, ToolName: name, ToolCallID: call.ID, Content: out})
	}
	return nil
}
