package agent

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/nbenliogludev/go-web-agent/internal/browser"
	"github.com/nbenliogludev/go-web-agent/internal/llm"
	"github.com/nbenliogludev/go-web-agent/internal/planner"
	"github.com/nbenliogludev/go-web-agent/internal/steplog"
	"github.com/nbenliogludev/go-web-agent/internal/tools"
)

// loop guard blocks tolerated per plan step before it is skipped
const maxLoopBlocksPerStep = 2

func hasDialog(tree string) bool {
	return strings.Contains(tree, "<dialog") || strings.Contains(tree, `role="dialog"`)
}

// executeStep runs one observe, decide, act cycle. It returns finished with
// the exit reason when the run is over. Errors are LLM or observation
// failures; a failing action only becomes a note for the model.
func (a *promptAgent) executeStep(ctx context.Context, step int) (bool, string, error) {
	a.reporter.Printf("\n--- STEP %d (plan %d/%d) ---\n", step, a.current+1, len(a.plan.Steps))

	page := a.pages.GetPage()
	if page == nil {
		return false, "", browser.ErrPageNotInitialized
	}
	if err := page.WaitForLoad(ctx); err != nil {
		a.log.Debug("wait for load", "err", err)
	}

	obs, err := browser.Observe(ctx, page, browser.ObserveOptions{Features: a.features, ElementsFilter: a.filter})
	if err != nil {
		return false, "", fmt.Errorf("snapshot failed: %w", err)
	}
	a.lastURL = obs.URL
	tree := obs.Render(hasFeature(a.features, browser.FeatureExtraProperties))

	if a.prevTree != "" && tree == a.prevTree {
		a.mem.AddSystemNote("SYSTEM ALERT: Last action had NO VISIBLE EFFECT.")
	}
	a.prevTree = tree

	a.reporter.Printf("URL: %s\nTitle: %s\n", obs.URL, obs.Title)

	if a.current >= len(a.plan.Steps) {
		return true, reasonPlanDone, nil
	}
	planStep := a.plan.Steps[a.current]

	mode := planStep.Mode
	if hasDialog(tree) && mode == planner.ModeNavigation {
		mode = planner.ModeInteraction
	}
	sub := a.navigator
	if mode == planner.ModeInteraction {
		sub = a.interaction
	}
	a.reporter.Printf("CURRENT GOAL (%s): %s\nSUB-AGENT: %s\n", mode, planStep.Goal, sub.Name())

	env := EnvState{
		Task:        a.goal,
		Plan:        a.plan,
		CurrentStep: a.current,
		URL:         obs.URL,
		Tree:        tree,
		History:     a.mem.HistoryString(),
	}
	if hasFeature(a.features, browser.FeatureScreenshot) {
		env.Screenshot = obs.ScreenshotBase64
	}

	decision, err := sub.Step(ctx, env)
	if err != nil {
		return false, "", fmt.Errorf("%s step error: %w", sub.Name(), err)
	}
	a.reporter.LogDecision(step, obs.URL, mode, decision)

	if blocked, reason := a.mem.ShouldBlock(obs.URL, decision.Action); blocked {
		a.reporter.Printf("LOOP GUARD: suppressing action %s on target %s\n", decision.Action.Type, decision.Action.TargetID)
		a.mem.AddSystemNote(reason)
		a.mem.MarkLoopTriggered()

		a.loopBlocks[a.current]++
		if a.loopBlocks[a.current] >= maxLoopBlocksPerStep {
			a.mem.AddSystemNote(fmt.Sprintf(
				"SYSTEM NOTE: Several actions for plan step %d were blocked as loops. "+
					"Treat this plan step as completed or not actionable and move on.",
				planStep.Index,
			))
			a.current++
			if a.current >= len(a.plan.Steps) {
				return true, reasonPlanDone, nil
			}
		}
		if err := browser.ScrollBy(ctx, page, 300); err != nil {
			a.log.Debug("loop guard scroll", "err", err)
		}
		return false, "", nil
	}

	if decision.Action.Type == llm.ActionFinish {
		return true, reasonFinished, nil
	}

	if decision.Action.IsDestructive && !a.confirm.Confirm(decision.Action) {
		a.mem.AddSystemNote("SYSTEM NOTE: The user cancelled the destructive action. Do not retry it; finish or choose a safe action.")
		return false, "", nil
	}

	rec := steplog.Record{
		Time:   time.Now().UTC(),
		Tool:   string(PromptAgent),
		URL:    obs.URL,
		Action: string(decision.Action.Type),
		Bid:    string(decision.Action.TargetID),
		Metadata: map[string]any{
			"step":    step,
			"mode":    mode,
			"thought": decision.Thought,
		},
	}

	if t := decision.Action.Type; t == llm.ActionClick || t == llm.ActionTypeInput {
		if html := browser.OuterHTML(ctx, page, string(decision.Action.TargetID)); html != "" {
			rec.Metadata["outer_html"] = html
		}
	}

	outcome, execErr := tools.ExecuteAction(ctx, page, decision.Action)
	if execErr != nil {
		rec.Error = execErr.Error()
		a.log.Warn("action failed", "step", step, "action", decision.Action.Type, "err", execErr)
		a.mem.AddSystemNote(fmt.Sprintf("SYSTEM ERROR: %v", execErr))
	} else {
		rec.Result = outcome
		a.mem.Add(step, obs.URL, decision.Action)
		if decision.StepDone {
			a.current++
		}
	}

	if err := steplog.Append(steplog.Path(a.logFolder), rec); err != nil {
		a.log.Warn("step log append failed", "err", err)
	}
	return false, "", nil
}

func hasFeature(features []string, f string) bool {
	for _, x := range features {
		if x == f {
			return true
		}
	}
	return false
}
