package planner

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/nbenliogludev/go-web-agent/internal/llm"
)

const (
	ModeNavigation  = "navigation"
	ModeInteraction = "interaction"
)

type PlanStep struct {
	Index int    `json:"index"`
	Goal  string `json:"goal"`
	Mode  string `json:"mode"`
}

type Plan struct {
	Steps []PlanStep `json:"steps"`
}

// String renders the plan as a numbered list for the agent's user message.
func (p *Plan) String() string {
	var sb strings.Builder
	for _, s := range p.Steps {
		fmt.Fprintf(&sb, "%d. [%s] %s\n", s.Index, s.Mode, s.Goal)
	}
	return sb.String()
}

// PageContext is what the context-aware planner knows about the current page.
// The zero value plans from the goal alone.
type PageContext struct {
	URL    string
	Title  string
	Tree   string
	Memory string
}

func (c PageContext) empty() bool {
	return c == PageContext{}
}

const maxContextTree = 15000

type Planner struct {
	llm   llm.Completer
	model string
}

func New(c llm.Completer, model string) *Planner {
	if model == "" {
		model = llm.DefaultModel
	}
	return &Planner{llm: c, model: model}
}

const plannerSystemPrompt = `
You are a high-level task planner for a web-browsing agent.

Your job is to decompose a single natural-language user request into
a small sequence of high-level steps.

Each step must have:
- "index": integer starting from 1
- "goal": what should be achieved in this step
- "mode": either "navigation" or "interaction"

"navigation":
  - moving between pages or sections
  - opening a site, choosing a category or product list

"interaction":
  - working inside a specific page or modal
  - filling forms, selecting options, pressing confirm / add-to-cart / apply buttons

If the current page and past experience are given, plan from where the
browser already is and reuse what worked before.

Return a JSON object of the form:
{
  "steps": [
    { "index": 1, "goal": "...", "mode": "navigation" },
    { "index": 2, "goal": "...", "mode": "interaction" }
  ]
}

Do not include any other fields.
Keep steps concise but informative.
`

func (p *Planner) BuildPlan(ctx context.Context, task string, page PageContext) (*Plan, error) {
	var sb strings.Builder
	fmt.Fprintf(&sb, "User task:\n%s\n\n", task)
	if !page.empty() {
		if page.URL != "" {
			fmt.Fprintf(&sb, "Current URL: %s\n", page.URL)
		}
		if page.Title != "" {
			fmt.Fprintf(&sb, "Current title: %s\n", page.Title)
		}
		if page.Tree != "" {
			fmt.Fprintf(&sb, "\nCurrent page:\n%s\n", llm.Truncate(page.Tree, maxContextTree))
		}
		if page.Memory != "" {
			fmt.Fprintf(&sb, "\nPast experience:\n%s\n", page.Memory)
		}
		sb.WriteString("\n")
	}
	sb.WriteString("Produce 3-7 high-level steps.")

	resp, err := p.llm.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: p.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: plannerSystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: sb.String()},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("planner error: %w", err)
	}

	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("planner: %w", llm.ErrNoChoices)
	}

	content := resp.Choices[0].Message.Content

	var plan Plan
	if err := json.Unmarshal([]byte(content), &plan); err != nil {
		return nil, fmt.Errorf("planner JSON parse error: %w | content: %s", err, content)
	}

	normalize(&plan)
	return &plan, nil
}

func normalize(plan *Plan) {
	for i := range plan.Steps {
		if plan.Steps[i].Index == 0 {
			plan.Steps[i].Index = i + 1
		}
		mode := strings.ToLower(strings.TrimSpace(plan.Steps[i].Mode))
		if mode != ModeNavigation && mode != ModeInteraction {
			goal := strings.ToLower(plan.Steps[i].Goal)
			if strings.Contains(goal, "search") || strings.Contains(goal, "go to") || strings.Contains(goal, "open") {
				mode = ModeNavigation
			} else {
				mode = ModeInteraction
			}
		}
		plan.Steps[i].Mode = mode
	}
}
