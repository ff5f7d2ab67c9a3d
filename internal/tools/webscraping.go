package tools

import (
	"context"
	"fmt"

	"github.com/sashabaranov/go-openai/jsonschema"

	"github.com/nbenliogludev/go-web-agent/internal/browser"
	"github.com/nbenliogludev/go-web-agent/internal/llm"
	"github.com/nbenliogludev/go-web-agent/internal/steplog"
)

var webscrapingTool = Tool{
	Name:        "webscraping",
	Description: "Extract the described information from the current page.",
	Parameters: jsonschema.Definition{
		Type: jsonschema.Object,
		Properties: map[string]jsonschema.Definition{
			"task_description": {
				Type:        jsonschema.String,
				Description: "What information to extract, e.g. \"the price of the first result\".",
			},
		},
		Required: []string{"task_description"},
	},
	Func: webscraping,
}

const scrapeVisionSystem = "You extract information from a web page. Use the screenshot and the page text. " +
	"Answer only with the requested information."

func webscraping(ctx context.Context, tc Context, args string, rec *steplog.Record) (string, error) {
	var in taskArgs
	if err := decodeArgs("webscraping", args, &in); err != nil {
		return "", err
	}
	page, err := tc.page()
	if err != nil {
		return "", err
	}
	rec.Action = "scrape"

	text, err := browser.PageText(ctx, page)
	if err != nil {
		return "", fmt.Errorf("read page text: %w", err)
	}

	if !hasFeature(tc.Features, browser.FeatureScreenshot) {
		return llm.Extract(ctx, tc.LLM, tc.Model, in.TaskDescription, text)
	}

	shot, err := page.Screenshot(ctx)
	if err != nil {
		return "", fmt.Errorf("screenshot failed: %w", err)
	}
	rec.Metadata = map[string]any{"screenshot_bytes": len(shot)}

	answers, err := llm.QueryVision(ctx, tc.LLM, llm.VisionRequest{
		Model:      tc.VisionModel,
		System:     scrapeVisionSystem,
		Prompt:     "INFORMATION TO EXTRACT:\n" + in.TaskDescription + "\n\nPAGE TEXT:\n" + text,
		Screenshot: shot,
		N:          1,
	})
	if err != nil {
		return "", err
	}
	if len(answers) == 0 {
		return "", llm.ErrNoChoices
	}
	return answers[0], nil
}
