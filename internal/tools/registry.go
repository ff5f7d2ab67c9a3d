// Package tools holds the browser tools the model can call and the registry
// that resolves them by name.
package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"github.com/sashabaranov/go-openai/jsonschema"

	"github.com/nbenliogludev/go-web-agent/internal/browser"
	"github.com/nbenliogludev/go-web-agent/internal/llm"
	"github.com/nbenliogludev/go-web-agent/internal/steplog"
)

var ErrUnknownTool = errors.New("unknown tool")

// Context is shared by every tool bound for one agent.
type Context struct {
	Features        []string
	ElementsFilter  string
	BranchingFactor int
	Pages           browser.PageProvider
	LogFolder       string
	LLM             llm.Completer
	Model           string
	// VisionModel answers screenshot questions. Empty means llm.DefaultVisionModel.
	VisionModel string
	Log         *slog.Logger
}

func (c Context) page() (browser.Page, error) {
	if c.Pages == nil {
		return nil, browser.ErrPageNotInitialized
	}
	p := c.Pages.GetPage()
	if p == nil {
		return nil, browser.ErrPageNotInitialized
	}
	return p, nil
}

func (c Context) logger() *slog.Logger {
	if c.Log == nil {
		return slog.Default()
	}
	return c.Log
}

// Func implements a tool. args is the raw JSON argument object from the
// model. rec is written to the step log after Func returns and can be
// annotated with the action taken.
type Func func(ctx context.Context, tc Context, args string, rec *steplog.Record) (string, error)

type Tool struct {
	Name        string
	Description string
	Parameters  jsonschema.Definition
	Func        Func
}

// Descriptor is the function tool schema sent to the model.
func (t Tool) Descriptor() openai.Tool {
	return openai.Tool{
		Type: openai.ToolTypeFunction,
		Function: &openai.FunctionDefinition{
			Name:        t.Name,
			Description: t.Description,
			Parameters:  t.Parameters,
		},
	}
}

// Callable is a tool with its Context bound.
type Callable func(ctx context.Context, args string) (string, error)

// Bind closes t over tc. Every call appends one record to the step log;
// a failing step log write is logged and does not fail the call.
func Bind(t Tool, tc Context) Callable {
	return func(ctx context.Context, args string) (string, error) {
		rec := steplog.Record{Time: time.Now().UTC(), Tool: t.Name}
		var parsed map[string]any
		if json.Unmarshal([]byte(args), &parsed) == nil {
			rec.Args = parsed
		}

		result, err := t.Func(ctx, tc, args, &rec)

		rec.Result = result
		if err != nil {
			rec.Error = err.Error()
		}
		if p, perr := tc.page(); perr == nil && rec.URL == "" {
			rec.URL = p.URL()
		}
		if lerr := steplog.Append(steplog.Path(tc.LogFolder), rec); lerr != nil {
			tc.logger().Warn("step log append failed", "tool", t.Name, "err", lerr)
		}

		tc.logger().Info("tool call", "tool", t.Name, "bid", rec.Bid, "action", rec.Action, "err", err)
		return result, err
	}
}

type Registry struct {
	tools map[string]Tool
}

// NewRegistry returns a registry with every built-in tool.
func NewRegistry() *Registry {
	r := &Registry{tools: make(map[string]Tool)}
	for _, t := range []Tool{navigationTool, clickTool, selectOptionTool, uploadFileTool, webscrapingTool} {
		r.Register(t)
	}
	return r
}

// Register adds t, replacing a tool with the same name.
func (r *Registry) Register(t Tool) {
	r.tools[t.Name] = t
}

func (r *Registry) Get(name string) (Tool, error) {
	t, ok := r.tools[name]
	if !ok {
		return Tool{}, fmt.Errorf("%w: %s", ErrUnknownTool, name)
	}
	return t, nil
}

func (r *Registry) Descriptor(name string) (openai.Tool, error) {
	t, err := r.Get(name)
	if err != nil {
		return openai.Tool{}, err
	}
	return t.Descriptor(), nil
}

// Names lists the registered tools sorted by name.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.tools))
	for n := range r.tools {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

func decodeArgs(tool, args string, v any) error {
	if err := json.Unmarshal([]byte(args), v); err != nil {
		return fmt.Errorf("invalid arguments for %s: %w", tool, err)
	}
	return nil
}
