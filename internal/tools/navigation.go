package tools

import (
	"context"
	"fmt"

	"github.com/sashabaranov/go-openai/jsonschema"

	"github.com/nbenliogludev/go-web-agent/internal/browser"
	"github.com/nbenliogludev/go-web-agent/internal/llm"
	"github.com/nbenliogludev/go-web-agent/internal/steplog"
)

var navigationTool = Tool{
	Name: "navigation",
	Description: "Perform one web navigation step toward the described task, such as clicking a link or button, " +
		"typing into a field or going back. Describe the single next step, not the whole goal.",
	Parameters: jsonschema.Definition{
		Type: jsonschema.Object,
		Properties: map[string]jsonschema.Definition{
			"task_description": {
				Type:        jsonschema.String,
				Description: "The navigation step to perform, e.g. \"click the Sign in button\".",
			},
		},
		Required: []string{"task_description"},
	},
	Func: navigation,
}

type taskArgs struct {
	TaskDescription string `json:"task_description"`
}

func navigation(ctx context.Context, tc Context, args string, rec *steplog.Record) (string, error) {
	var in taskArgs
	if err := decodeArgs("navigation", args, &in); err != nil {
		return "", err
	}
	page, err := tc.page()
	if err != nil {
		return "", err
	}

	obs, err := browser.Observe(ctx, page, browser.ObserveOptions{
		Features:       tc.Features,
		ElementsFilter: tc.ElementsFilter,
	})
	if err != nil {
		return "", fmt.Errorf("observe: %w", err)
	}

	var shot string
	if hasFeature(tc.Features, browser.FeatureScreenshot) {
		shot = obs.ScreenshotBase64
	}
	candidates, err := llm.DecideActions(ctx, tc.LLM, llm.DecisionInput{
		Model:            tc.Model,
		Task:             in.TaskDescription,
		Tree:             obs.Render(hasFeature(tc.Features, browser.FeatureExtraProperties)),
		CurrentURL:       obs.URL,
		ScreenshotBase64: shot,
		N:                tc.BranchingFactor,
	})
	if err != nil {
		return "", err
	}

	for i, c := range candidates {
		if NeedsTarget(c.Action.Type) {
			info, err := browser.LocateElement(ctx, page, string(c.Action.TargetID))
			if err != nil {
				return "", err
			}
			if info.Empty() {
				tc.logger().Debug("skipping candidate with unknown bid", "candidate", i, "bid", c.Action.TargetID)
				continue
			}
			rec.Metadata = map[string]any{"element": info}
		}

		rec.Action = string(c.Action.Type)
		rec.Bid = string(c.Action.TargetID)
		if rec.Metadata == nil {
			rec.Metadata = map[string]any{}
		}
		rec.Metadata["thought"] = c.Thought
		rec.Metadata["candidate"] = i

		outcome, err := ExecuteAction(ctx, page, c.Action)
		if err != nil {
			return "", err
		}
		if c.Action.Type != llm.ActionFinish {
			if err := page.WaitForLoad(ctx); err != nil {
				tc.logger().Debug("wait for load", "err", err)
			}
		}
		return fmt.Sprintf("%s. Current URL: %s", outcome, page.URL()), nil
	}

	return fmt.Sprintf("No valid action found for %q on %s", in.TaskDescription, page.URL()), nil
}

func hasFeature(features []string, f string) bool {
	for _, x := range features {
		if x == f {
			return true
		}
	}
	return false
}
