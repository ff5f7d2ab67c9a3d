package agent

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/nbenliogludev/go-web-agent/internal/browser"
	"github.com/nbenliogludev/go-web-agent/internal/llm"
	"github.com/nbenliogludev/go-web-agent/internal/planner"
	"github.com/nbenliogludev/go-web-agent/internal/steplog"
	"github.com/nbenliogludev/go-web-agent/internal/tools"
)

var DefaultToolNames = []string{"navigation", "select_option", "upload_file", "webscraping"}

const (
	defaultLogFolder = "log"
	defaultMaxSteps  = 15
)

// Options selects what Setup builds. Zero values take the defaults, except
// Features: nil means browser.DefaultFeatures.
type Options struct {
	StartingURL     string
	Goal            string
	Model           string
	VisionModel     string
	AgentType       string
	ToolNames       []string
	Features        []string
	ElementsFilter  string
	BranchingFactor int
	LogFolder       string
	MemoryPath      string

	// Prompt agent only.
	MaxSteps  int
	StepDelay time.Duration
}

// Deps are the collaborators shared between agents.
type Deps struct {
	LLM      llm.Completer
	Pages    browser.PageProvider
	Registry *tools.Registry
	Log      *slog.Logger
	// Observer, if set, receives tool results and the final response.
	Observer Observer
	// Out receives the prompt agent's progress and report.
	Out io.Writer
	// Confirm approves destructive prompt agent actions. Nil denies them.
	Confirm Confirmer
}

// UnsupportedAgentTypeError is returned by Setup for an unknown agent type.
type UnsupportedAgentTypeError struct {
	Name string
}

func (e *UnsupportedAgentTypeError) Error() string {
	return fmt.Sprintf("Unsupported agent type: %s. Please use 'FunctionCallingAgent', 'HighLevelPlanningAgent', "+
		"'ContextAwarePlanningAgent', 'PromptAgent' or 'PromptSearchAgent' .", e.Name)
}

// Payload is the error object returned to API callers.
func (e *UnsupportedAgentTypeError) Payload() map[string]string {
	return map[string]string{"error": e.Error()}
}

const systemMessage = `You are a web search agent designed to perform specific tasks on web pages as instructed by the user. Your primary objectives are:

1. Execute ONLY the task explicitly provided by the user.
2. Perform the task efficiently and accurately using the available functions.
3. If there are errors, retry using a different approach within the scope of the given task.
4. Once the current task is completed, stop and wait for further instructions.

Critical guidelines:
- Strictly limit your actions to the current task. Do not attempt additional tasks or next steps.
- Use only the functions provided to you. Do not attempt to use functions or methods that are not explicitly available.
- For navigation or interaction with page elements, always use the appropriate bid (browser element ID) when required by a function.
- If a task cannot be completed with the available functions, report the limitation rather than attempting unsupported actions.
- After completing a task, report its completion and await new instructions. Do not suggest or initiate further actions.

Remember: Your role is to execute the given task precisely as instructed, using only the provided functions and within the confines of the current web page. Do not exceed these boundaries under any circumstances.`

func (o *Options) applyDefaults() {
	if o.Model == "" {
		o.Model = llm.DefaultModel
	}
	if o.ToolNames == nil {
		o.ToolNames = DefaultToolNames
	}
	if o.Features == nil {
		o.Features = browser.DefaultFeatures
	}
	if o.LogFolder == "" {
		o.LogFolder = defaultLogFolder
	}
	if o.AgentType == "" {
		o.AgentType = string(FunctionCallingAgent)
	}
	if o.MaxSteps <= 0 {
		o.MaxSteps = defaultMaxSteps
	}
}

// Setup builds the agent described by opts. It navigates the shared page to
// opts.StartingURL before resolving the agent type, so the page moves even
// when the type turns out to be unsupported.
func Setup(ctx context.Context, opts Options, deps Deps) (Agent, error) {
	opts.applyDefaults()
	log := deps.Log
	if log == nil {
		log = slog.Default()
	}
	registry := deps.Registry
	if registry == nil {
		registry = tools.NewRegistry()
	}

	var memory string
	if opts.MemoryPath != "" {
		b, err := os.ReadFile(opts.MemoryPath)
		if err != nil {
			return nil, fmt.Errorf("read memory: %w", err)
		}
		memory = string(b)
	}
	log.Info("agent setup", "type", opts.AgentType, "model", opts.Model, "tools", opts.ToolNames, "memory_chars", len(memory))

	tc := tools.Context{
		Features:        opts.Features,
		ElementsFilter:  opts.ElementsFilter,
		BranchingFactor: opts.BranchingFactor,
		Pages:           deps.Pages,
		LogFolder:       opts.LogFolder,
		LLM:             deps.LLM,
		Model:           opts.Model,
		VisionModel:     opts.VisionModel,
		Log:             log,
	}
	available := make(map[string]tools.Callable, len(opts.ToolNames))
	descriptors := make([]openai.Tool, 0, len(opts.ToolNames))
	for _, name := range opts.ToolNames {
		t, err := registry.Get(name)
		if err != nil {
			return nil, err
		}
		available[name] = tools.Bind(t, tc)
		descriptors = append(descriptors, t.Descriptor())
	}

	conv := NewConversation(openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleSystem,
		Content: systemMessage,
	})

	if opts.StartingURL != "" {
		if deps.Pages == nil || deps.Pages.GetPage() == nil {
			return nil, browser.ErrPageNotInitialized
		}
		if err := deps.Pages.GetPage().Goto(ctx, opts.StartingURL); err != nil {
			return nil, err
		}
	}

	typ, ok := ParseType(opts.AgentType)
	if !ok {
		err := &UnsupportedAgentTypeError{Name: opts.AgentType}
		log.Error(err.Error())
		return nil, err
	}

	if typ == PromptAgent {
		return newPromptAgent(opts, deps, conv, log)
	}

	loop := NewLoop(deps.LLM, opts.Model, descriptors, available, conv, log)
	loop.SetObserver(deps.Observer)

	a := &functionCallingAgent{
		typ:      typ,
		loop:     loop,
		conv:     conv,
		goal:     opts.Goal,
		memory:   memory,
		log:      log,
		pages:    deps.Pages,
		startURL: opts.StartingURL,
	}
	switch typ {
	case HighLevelPlanningAgent:
		a.planner = planner.New(deps.LLM, opts.Model)
	case ContextAwarePlanningAgent:
		a.planner = planner.New(deps.LLM, opts.Model)
		a.withPageCx = true
	}
	return a, nil
}

func newPromptAgent(opts Options, deps Deps, conv *Conversation, log *slog.Logger) (Agent, error) {
	header := map[string]string{"goal": opts.Goal, "starting_url": opts.StartingURL}
	if err := steplog.Reset(steplog.Path(opts.LogFolder), header); err != nil {
		return nil, err
	}
	if deps.Pages == nil {
		return nil, browser.ErrPageNotInitialized
	}

	confirm := deps.Confirm
	if confirm == nil {
		confirm = DenyAll
	}
	return &promptAgent{
		goal:        opts.Goal,
		startURL:    opts.StartingURL,
		model:       opts.Model,
		llm:         deps.LLM,
		pages:       deps.Pages,
		planner:     planner.New(deps.LLM, opts.Model),
		features:    opts.Features,
		filter:      opts.ElementsFilter,
		logFolder:   opts.LogFolder,
		maxSteps:    opts.MaxSteps,
		stepDelay:   opts.StepDelay,
		conv:        conv,
		confirm:     confirm,
		out:         deps.Out,
		log:         log,
		navigator:   &NavigatorAgent{LLM: deps.LLM, Model: opts.Model},
		interaction: &InteractionAgent{LLM: deps.LLM, Model: opts.Model},
	}, nil
}
