package agent

import (
	"context"
	"fmt"

	"github.com/nbenliogludev/go-web-agent/internal/llm"
	"github.com/nbenliogludev/go-web-agent/internal/planner"
)

// EnvState is what a sub-agent sees for one step.
type EnvState struct {
	Task        string
	Plan        *planner.Plan
	CurrentStep int
	URL         string
	Tree        string
	History     string
	Screenshot  string
}

func (e EnvState) stepGoal() string {
	if e.Plan != nil && e.CurrentStep < len(e.Plan.Steps) {
		return e.Plan.Steps[e.CurrentStep].Goal
	}
	return ""
}

// SubAgent decides the next browser action for one plan step mode.
// DecisionOutput.StepDone refers to the current plan step only.
type SubAgent interface {
	Name() string
	Step(ctx context.Context, env EnvState) (*llm.DecisionOutput, error)
}

type NavigatorAgent struct {
	LLM   llm.Completer
	Model string
}

func (a *NavigatorAgent) Name() string { return "NavigatorAgent" }

func (a *NavigatorAgent) Step(ctx context.Context, env EnvState) (*llm.DecisionOutput, error) {
	task := fmt.Sprintf(
		"GLOBAL USER TASK: %s\n\nCURRENT PLAN STEP (navigation): %s\n\n"+
			"Use the CURRENT PLAN STEP as a high-level description of WHAT should be achieved, "+
			"not as a strict sequence of UI labels or exact paths.\n\n"+
			"In this mode you focus PRIMARILY on navigation:\n"+
			"- Prefer links, buttons, categories and lists that move you closer to this step's goal.\n"+
			"- You MAY type into local search fields or filters to refine the visible list of items, "+
			"as long as you stay in the same site section.\n"+
			"- Avoid the global header navigation unless the user explicitly asked for a global section.\n"+
			"- Do NOT perform confirmations or multi-step forms in this mode; "+
			"leave them for the interaction step.\n\n"+
			"Set \"step_done\" to true as soon as the CURRENT PAGE clearly matches this step's goal. "+
			"\"step_done\" refers ONLY to this plan step, NOT to the whole task.",
		env.Task, env.stepGoal(),
	)
	return llm.DecideAction(ctx, a.LLM, llm.DecisionInput{
		Model:            a.Model,
		Task:             task,
		Tree:             env.Tree,
		CurrentURL:       env.URL,
		History:          env.History,
		ScreenshotBase64: env.Screenshot,
	})
}

type InteractionAgent struct {
	LLM   llm.Completer
	Model string
}

func (a *InteractionAgent) Name() string { return "InteractionAgent" }

func (a *InteractionAgent) Step(ctx context.Context, env EnvState) (*llm.DecisionOutput, error) {
	task := fmt.Sprintf(
		"GLOBAL USER TASK: %s\n\nCURRENT PLAN STEP (interaction): %s\n\n"+
			"You are ALREADY on the relevant page or modal for this step.\n"+
			"- Focus on choosing required options (selects, checkboxes, quantity) and pressing the primary confirm/add/apply button.\n"+
			"- Do NOT navigate to other pages in this mode.\n"+
			"- As soon as the requested interaction for THIS STEP is clearly completed (dialog closed, item in cart, form submitted), "+
			"set \"step_done\" to true. \"step_done\" refers ONLY to this plan step, NOT to the whole task.",
		env.Task, env.stepGoal(),
	)
	return llm.DecideAction(ctx, a.LLM, llm.DecisionInput{
		Model:            a.Model,
		Task:             task,
		Tree:             env.Tree,
		CurrentURL:       env.URL,
		History:          env.History,
		ScreenshotBase64: env.Screenshot,
	})
}
