package agent

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/nbenliogludev/go-web-agent/internal/browser"
	"github.com/nbenliogludev/go-web-agent/internal/llm"
	"github.com/nbenliogludev/go-web-agent/internal/planner"
)

var (
	ErrInterrupted = errors.New("execution interrupted")
	ErrMaxSteps    = errors.New("max steps reached")
)

// promptAgent drives the page without function calling: every step it
// observes the page, asks for one JSON action and executes it.
type promptAgent struct {
	goal      string
	startURL  string
	model     string
	llm       llm.Completer
	pages     browser.PageProvider
	planner   *planner.Planner
	features  []string
	filter    string
	logFolder string
	maxSteps  int
	stepDelay time.Duration
	conv      *Conversation
	confirm   Confirmer
	out       io.Writer
	log       *slog.Logger

	navigator   SubAgent
	interaction SubAgent

	// Per-run state, reset by SendPrompt.
	mem        *StepMemory
	reporter   *Reporter
	plan       *planner.Plan
	current    int
	loopBlocks map[int]int
	prevTree   string
	lastURL    string
}

func (a *promptAgent) Type() Type { return PromptAgent }

func (a *promptAgent) Messages() []openai.ChatCompletionMessage { return a.conv.Messages() }

func (a *promptAgent) SendPrompt(ctx context.Context, planText string) (*Result, error) {
	start := time.Now()
	a.mem = NewStepMemory(10, 3)
	a.reporter = NewReporter(a.out, a.llm, a.model, a.goal)
	a.current = 0
	a.loopBlocks = make(map[int]int)
	a.prevTree = ""

	if err := a.preparePlan(ctx, planText); err != nil {
		return nil, err
	}

	for step := 1; step <= a.maxSteps; step++ {
		if err := ctx.Err(); err != nil {
			report := a.reporter.Report(ctx, start, reasonInterrupted, a.mem)
			return a.result(report, step-1), fmt.Errorf("%w: %w", ErrInterrupted, err)
		}

		finished, reason, err := a.executeStep(ctx, step)
		if err != nil {
			a.reporter.StepError(err)
			report := a.reporter.Report(ctx, start, reasonError, a.mem)
			return a.result(report, step), err
		}
		if finished {
			report := a.reporter.Report(ctx, start, reason, a.mem)
			return a.result(report, step), nil
		}

		if a.stepDelay > 0 {
			select {
			case <-ctx.Done():
			case <-time.After(a.stepDelay):
			}
		}
	}

	report := a.reporter.Report(ctx, start, reasonMaxSteps, a.mem)
	return a.result(report, a.maxSteps), ErrMaxSteps
}

func (a *promptAgent) preparePlan(ctx context.Context, planText string) error {
	task := a.goal
	if planText != "" {
		task += "\n\nSuggested plan:\n" + planText
	}

	var pc planner.PageContext
	if p := a.pages.GetPage(); p != nil {
		pc.URL = p.URL()
	}
	plan, err := a.planner.BuildPlan(ctx, task, pc)
	if err != nil {
		return fmt.Errorf("build plan failed: %w", err)
	}
	if len(plan.Steps) == 0 {
		plan.Steps = []planner.PlanStep{{Index: 1, Goal: a.goal, Mode: planner.ModeNavigation}}
	}
	a.plan = plan

	a.reporter.Printf("PLAN:\n%s", plan.String())
	a.conv.Append(openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: userPrompt(a.goal, plan.String(), ""),
	})
	return nil
}

func (a *promptAgent) result(report string, steps int) *Result {
	return &Result{Report: report, Steps: steps, FinalURL: a.lastURL}
}
