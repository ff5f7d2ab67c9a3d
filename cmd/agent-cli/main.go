package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/nbenliogludev/go-web-agent/internal/agent"
	"github.com/nbenliogludev/go-web-agent/internal/browser"
	"github.com/nbenliogludev/go-web-agent/internal/config"
	"github.com/nbenliogludev/go-web-agent/internal/llm"
	"github.com/nbenliogludev/go-web-agent/internal/logging"
)

type flags struct {
	configPath string
	url        string
	goal       string
	plan       string
	agentType  string
	model      string
	tools      string
	features   string
	filter     string
	branching  int
	memory     string
	maxSteps   int
	stepDelay  time.Duration
	driver     string
	headless   bool
	logLevel   string
	logFile    string
	noWait     bool
}

func parseFlags(args []string) (flags, map[string]bool, error) {
	var f flags
	fs := flag.NewFlagSet("agent-cli", flag.ContinueOnError)
	fs.StringVar(&f.configPath, "config", "", "path to a YAML config file")
	fs.StringVar(&f.url, "url", "", "starting URL (asked interactively when empty)")
	fs.StringVar(&f.goal, "goal", "", "task for the agent (asked interactively when empty)")
	fs.StringVar(&f.plan, "plan", "", "optional plan passed with the goal")
	fs.StringVar(&f.agentType, "agent", "", "agent type: FunctionCallingAgent, HighLevelPlanningAgent, ContextAwarePlanningAgent, PromptAgent")
	fs.StringVar(&f.model, "model", "", "chat model")
	fs.StringVar(&f.tools, "tools", "", "comma separated tool names")
	fs.StringVar(&f.features, "features", "", "comma separated observation features")
	fs.StringVar(&f.filter, "elements-filter", "", "visibility, none or som")
	fs.IntVar(&f.branching, "branching-factor", 0, "candidate actions per navigation step")
	fs.StringVar(&f.memory, "memory", "", "file with past experience shown to the model")
	fs.IntVar(&f.maxSteps, "max-steps", 0, "step limit of the prompt agent")
	fs.DurationVar(&f.stepDelay, "step-delay", 2*time.Second, "pause between prompt agent steps")
	fs.StringVar(&f.driver, "driver", "", "browser driver: playwright or chromedp")
	fs.BoolVar(&f.headless, "headless", false, "run the browser headless")
	fs.StringVar(&f.logLevel, "log-level", "", "debug, info, warn or error")
	fs.StringVar(&f.logFile, "log-file", "", "write logs to this file instead of stderr")
	fs.BoolVar(&f.noWait, "no-wait", false, "close the browser right after the run")
	if err := fs.Parse(args); err != nil {
		return f, nil, err
	}

	set := make(map[string]bool)
	fs.Visit(func(fl *flag.Flag) { set[fl.Name] = true })
	return f, set, nil
}

func (f flags) apply(cfg *config.Config, set map[string]bool) {
	if f.model != "" {
		cfg.LLM.Model = f.model
	}
	if f.agentType != "" {
		cfg.Agent.Type = f.agentType
	}
	if f.tools != "" {
		cfg.Agent.Tools = config.SplitList(f.tools)
	}
	if f.features != "" {
		cfg.Agent.Features = config.SplitList(f.features)
	}
	if f.filter != "" {
		cfg.Agent.ElementsFilter = f.filter
	}
	if f.branching > 0 {
		cfg.Agent.BranchingFactor = f.branching
	}
	if f.memory != "" {
		cfg.Agent.MemoryPath = f.memory
	}
	if f.maxSteps > 0 {
		cfg.Agent.MaxSteps = f.maxSteps
	}
	if f.driver != "" {
		cfg.Browser.Driver = f.driver
	}
	if set["headless"] {
		cfg.Browser.Headless = f.headless
	}
	if f.logLevel != "" {
		cfg.Log.Level = f.logLevel
	}
	if f.logFile != "" {
		cfg.Log.File = f.logFile
	}
}

func main() {
	os.Exit(run(os.Args[1:]))
}

// run returns the exit code so deferred cleanup runs before the process exits.
func run(args []string) int {
	f, set, err := parseFlags(args)
	if err != nil {
		return 2
	}

	cfg, err := config.Load(f.configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		return 1
	}
	f.apply(cfg, set)
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		return 1
	}

	logger, closer, err := logging.New(logging.Options{Level: cfg.Log.Level, Format: cfg.Log.Format, File: cfg.Log.File})
	if err != nil {
		logger.Warn("logging setup", "err", err)
	}
	defer closer.Close()
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reader := bufio.NewReader(os.Stdin)
	interactive := f.goal == ""

	startURL := f.url
	if startURL == "" && interactive {
		fmt.Print("Starting URL (empty = https://example.com): ")
		raw, _ := reader.ReadString('\n')
		startURL = strings.TrimSpace(raw)
	}
	if startURL == "" {
		startURL = "https://example.com"
	}

	goal := f.goal
	if goal == "" {
		fmt.Print("Describe the task for the agent (for example: 'Find the login button and click it'):\n> ")
		raw, _ := reader.ReadString('\n')
		goal = strings.TrimSpace(raw)
	}
	if goal == "" {
		logger.Error("empty task, nothing to do")
		return 1
	}

	client, err := llm.NewClient(cfg.LLM)
	if err != nil {
		logger.Error("failed to create OpenAI client", "err", err)
		return 1
	}

	fmt.Println("Starting browser agent...")
	mgr, err := browser.NewManager(cfg.Browser, logger)
	if err != nil {
		logger.Error("failed to start browser manager", "err", err)
		return 1
	}
	defer mgr.Close()

	ag, err := agent.Setup(ctx, agent.Options{
		StartingURL:     startURL,
		Goal:            goal,
		Model:           cfg.LLM.Model,
		VisionModel:     cfg.LLM.VisionModel,
		AgentType:       cfg.Agent.Type,
		ToolNames:       cfg.Agent.Tools,
		Features:        cfg.Agent.Features,
		ElementsFilter:  cfg.Agent.ElementsFilter,
		BranchingFactor: cfg.Agent.BranchingFactor,
		LogFolder:       cfg.Agent.LogFolder,
		MemoryPath:      cfg.Agent.MemoryPath,
		MaxSteps:        cfg.Agent.MaxSteps,
		StepDelay:       f.stepDelay,
	}, agent.Deps{
		LLM:     client,
		Pages:   mgr,
		Log:     logger,
		Out:     os.Stdout,
		Confirm: agent.NewTTYConfirmer(os.Stdout),
	})
	if err != nil {
		var unsupported *agent.UnsupportedAgentTypeError
		if errors.As(err, &unsupported) {
			fmt.Println(unsupported.Payload()["error"])
			return 2
		}
		logger.Error("agent setup failed", "err", err)
		return 1
	}

	code := 0
	res, err := ag.SendPrompt(ctx, f.plan)
	switch {
	case err == nil:
		logger.Info("agent finished", "steps", res.Steps, "final_url", res.FinalURL)
	case errors.Is(err, agent.ErrMaxSteps), errors.Is(err, agent.ErrInterrupted):
		logger.Warn("agent stopped", "reason", err)
	default:
		logger.Error("agent failed", "err", err)
		code = 1
	}
	if ag.Type() != agent.PromptAgent && res != nil {
		fmt.Println("\n" + res.Message())
	}

	if interactive && !f.noWait && ctx.Err() == nil {
		fmt.Println("\nPress Enter to close the browser...")
		_, _ = reader.ReadString('\n')
	}
	return code
}
