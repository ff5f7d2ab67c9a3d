package agent

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/nbenliogludev/go-web-agent/internal/browser"
	"github.com/nbenliogludev/go-web-agent/internal/planner"
)

// Type names an agent variant.
type Type string

const (
	FunctionCallingAgent      Type = "FunctionCallingAgent"
	HighLevelPlanningAgent    Type = "HighLevelPlanningAgent"
	ContextAwarePlanningAgent Type = "ContextAwarePlanningAgent"
	PromptAgent               Type = "PromptAgent"
)

// Types lists the supported variants.
var Types = []Type{FunctionCallingAgent, HighLevelPlanningAgent, ContextAwarePlanningAgent, PromptAgent}

func ParseType(s string) (Type, bool) {
	for _, t := range Types {
		if string(t) == s {
			return t, true
		}
	}
	return "", false
}

type Agent interface {
	Type() Type
	Messages() []openai.ChatCompletionMessage
	SendPrompt(ctx context.Context, plan string) (*Result, error)
}

// Result is what a run produced. Function-calling variants fill Response,
// the prompt agent fills Report.
type Result struct {
	Response *openai.ChatCompletionResponse
	Report   string
	Steps    int
	FinalURL string
}

// Message is the user-facing outcome of the run.
func (r *Result) Message() string {
	if r == nil {
		return ""
	}
	if r.Response != nil && len(r.Response.Choices) > 0 {
		return r.Response.Choices[0].Message.Content
	}
	return r.Report
}

// functionCallingAgent hands the goal to the model and lets it drive the tools.
type functionCallingAgent struct {
	typ  Type
	loop *Loop
	conv *Conversation
	goal string
	// memory is text from earlier runs, shown to the model with the goal.
	memory string
	log    *slog.Logger

	// Set for the planning variants.
	planner    *planner.Planner
	pages      browser.PageProvider
	startURL   string
	withPageCx bool
}

func (a *functionCallingAgent) Type() Type { return a.typ }

func (a *functionCallingAgent) Messages() []openai.ChatCompletionMessage { return a.conv.Messages() }

func (a *functionCallingAgent) SendPrompt(ctx context.Context, plan string) (*Result, error) {
	goal := a.goal
	switch a.typ {
	case HighLevelPlanningAgent, ContextAwarePlanningAgent:
		var err error
		if a.withPageCx {
			goal = BuildTaskWithEnvironment(a.goal, a.startURL)
		}
		if plan == "" {
			plan, err = a.buildPlan(ctx, goal)
			if err != nil {
				return nil, err
			}
		}
	}

	a.conv.Append(openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: userPrompt(goal, plan, a.memory),
	})

	resp, err := a.loop.SendCompletionRequest(ctx, plan)
	if err != nil {
		return nil, err
	}
	res := &Result{Response: resp}
	if a.pages != nil {
		if p := a.pages.GetPage(); p != nil {
			res.FinalURL = p.URL()
		}
	}
	return res, nil
}

func (a *functionCallingAgent) buildPlan(ctx context.Context, goal string) (string, error) {
	var pc planner.PageContext
	if a.withPageCx && a.pages != nil {
		pc.Memory = a.memory
		if p := a.pages.GetPage(); p != nil {
			obs, err := browser.Observe(ctx, p, browser.ObserveOptions{Features: []string{browser.FeatureAXTree}})
			if err != nil {
				return "", fmt.Errorf("observe for planning: %w", err)
			}
			pc.URL, pc.Title, pc.Tree = obs.URL, obs.Title, obs.AXTree
		}
	}

	p, err := a.planner.BuildPlan(ctx, goal, pc)
	if err != nil {
		return "", err
	}
	a.log.Info("plan built", "agent", a.typ, "steps", len(p.Steps))
	return p.String(), nil
}

func userPrompt(goal, plan, memory string) string {
	var sb strings.Builder
	sb.WriteString(goal)
	if plan != "" {
		sb.WriteString("\n\nPlan:\n" + strings.TrimSpace(plan))
	}
	if memory != "" {
		sb.WriteString("\n\nPast experience:\n" + strings.TrimSpace(memory))
	}
	return sb.String()
}
