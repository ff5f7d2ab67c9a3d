package agent

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nbenliogludev/go-web-agent/internal/browser"
	"github.com/nbenliogludev/go-web-agent/internal/browser/browsertest"
	"github.com/nbenliogludev/go-web-agent/internal/llm"
	"github.com/nbenliogludev/go-web-agent/internal/llm/llmtest"
	"github.com/nbenliogludev/go-web-agent/internal/logging"
	"github.com/nbenliogludev/go-web-agent/internal/steplog"
	"github.com/nbenliogludev/go-web-agent/internal/tools"
)

const onePlanStep = `{"steps":[{"index":1,"goal":"find pizza","mode":"navigation"}]}`

func responses(contents ...string) []openai.ChatCompletionResponse {
	out := make([]openai.ChatCompletionResponse, 0, len(contents))
	for _, c := range contents {
		out = append(out, llmtest.Text(c))
	}
	return out
}

func newPage() *browsertest.Page {
	p := browsertest.New("https://shop.test/menu")
	p.Tree = `[2] <input> "search"` + "\n" + `[5] <button> "Margherita"`
	return p
}

func deps(page *browsertest.Page, fake *llmtest.Fake) Deps {
	return Deps{
		LLM:   fake,
		Pages: browsertest.Provider{Page: page},
		Log:   logging.Discard(),
	}
}

func readLog(t *testing.T, logFolder string) []map[string]any {
	t.Helper()
	f, err := os.Open(steplog.Path(logFolder))
	require.NoError(t, err)
	defer f.Close()

	var out []map[string]any
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var m map[string]any
		require.NoError(t, json.Unmarshal(sc.Bytes(), &m))
		out = append(out, m)
	}
	require.NoError(t, sc.Err())
	return out
}

func TestSetupUnsupportedAgentType(t *testing.T) {
	page := newPage()
	fake := &llmtest.Fake{}

	a, err := Setup(context.Background(), Options{
		StartingURL: "https://shop.test/",
		Goal:        "order pizza",
		AgentType:   "SuperAgent",
		LogFolder:   t.TempDir(),
	}, deps(page, fake))
	require.Error(t, err)
	assert.Nil(t, a)

	var unsupported *UnsupportedAgentTypeError
	require.True(t, errors.As(err, &unsupported))
	assert.Equal(t, map[string]string{
		"error": "Unsupported agent type: SuperAgent. Please use 'FunctionCallingAgent', 'HighLevelPlanningAgent', " +
			"'ContextAwarePlanningAgent', 'PromptAgent' or 'PromptSearchAgent' .",
	}, unsupported.Payload())

	// navigation happens before the type is resolved
	gotos := page.Calls("Goto")
	require.Len(t, gotos, 1)
	assert.Equal(t, []string{"https://shop.test/"}, gotos[0].Args)
	assert.Empty(t, fake.Requests())
}

func TestSetupFailures(t *testing.T) {
	page := newPage()

	_, err := Setup(context.Background(), Options{ToolNames: []string{"navigation", "teleport"}}, deps(page, &llmtest.Fake{}))
	assert.ErrorIs(t, err, tools.ErrUnknownTool)

	_, err = Setup(context.Background(), Options{MemoryPath: filepath.Join(t.TempDir(), "missing.txt")}, deps(page, &llmtest.Fake{}))
	assert.ErrorIs(t, err, os.ErrNotExist)

	_, err = Setup(context.Background(), Options{StartingURL: "https://shop.test"}, Deps{LLM: &llmtest.Fake{}, Log: logging.Discard()})
	assert.ErrorIs(t, err, browser.ErrPageNotInitialized)

	page.Errs = map[string]error{"Goto": errors.New("net::ERR_NAME_NOT_RESOLVED")}
	_, err = Setup(context.Background(), Options{StartingURL: "https://nowhere.test"}, deps(page, &llmtest.Fake{}))
	assert.ErrorContains(t, err, "ERR_NAME_NOT_RESOLVED")
}

func TestSetupDefaults(t *testing.T) {
	opts := Options{}
	opts.applyDefaults()
	assert.Equal(t, llm.DefaultModel, opts.Model)
	assert.Equal(t, DefaultToolNames, opts.ToolNames)
	assert.Equal(t, browser.DefaultFeatures, opts.Features)
	assert.Equal(t, "log", opts.LogFolder)
	assert.Equal(t, string(FunctionCallingAgent), opts.AgentType)

	a, err := Setup(context.Background(), Options{LogFolder: t.TempDir()}, deps(newPage(), &llmtest.Fake{}))
	require.NoError(t, err)
	assert.Equal(t, FunctionCallingAgent, a.Type())

	msgs := a.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, openai.ChatMessageRoleSystem, msgs[0].Role)
	assert.True(t, strings.HasPrefix(msgs[0].Content, "You are a web search agent"))
}

func TestFunctionCallingAgentRunsTools(t *testing.T) {
	page := newPage()
	logFolder := t.TempDir()
	fake := &llmtest.Fake{Responses: []openai.ChatCompletionResponse{
		llmtest.ToolCalls([2]string{"click", `{"bid":"5"}`}),
		llmtest.Text("Opened the Margherita page."),
	}}
	var events []Event
	d := deps(page, fake)
	d.Observer = func(e Event) { events = append(events, e) }

	a, err := Setup(context.Background(), Options{
		Goal:      "open the margherita",
		ToolNames: []string{"click"},
		Features:  []string{browser.FeatureAXTree},
		LogFolder: logFolder,
	}, d)
	require.NoError(t, err)

	res, err := a.SendPrompt(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, "Opened the Margherita page.", res.Message())
	assert.Equal(t, "https://shop.test/menu", res.FinalURL)

	clicks := page.Calls("Click")
	require.Len(t, clicks, 1)
	assert.Equal(t, browser.ElementSelector("5"), clicks[0].Selector)

	msgs := a.Messages()
	require.Len(t, msgs, 5)
	assert.Equal(t, "open the margherita", msgs[1].Content)
	assert.Equal(t, openai.ChatMessageRoleTool, msgs[3].Role)
	assert.Equal(t, "Clicked element [5]. Current URL: https://shop.test/menu", msgs[3].Content)

	reqs := fake.Requests()
	require.Len(t, reqs, 2)
	require.Len(t, reqs[0].Tools, 1)
	assert.Equal(t, "click", reqs[0].Tools[0].Function.Name)

	rows := readLog(t, logFolder)
	require.Len(t, rows, 1)
	assert.Equal(t, "click", rows[0]["tool"])
	assert.Equal(t, "5", rows[0]["bid"])

	require.Len(t, events, 2)
	assert.Equal(t, EventToolResult, events[0].Type)
	assert.Equal(t, EventComplete, events[1].Type)
}

func TestSetupPassesVisionModelToTools(t *testing.T) {
	fake := &llmtest.Fake{Responses: []openai.ChatCompletionResponse{
		llmtest.ToolCalls([2]string{"webscraping", `{"task_description":"count pizzas"}`}),
		llmtest.Text("three"),
		llmtest.Text("There are three pizzas."),
	}}
	a, err := Setup(context.Background(), Options{
		Goal:        "count the pizzas",
		Model:       "gpt-4o-mini",
		VisionModel: "gpt-4.1",
		ToolNames:   []string{"webscraping"},
		Features:    []string{browser.FeatureScreenshot},
		LogFolder:   t.TempDir(),
	}, deps(newPage(), fake))
	require.NoError(t, err)

	_, err = a.SendPrompt(context.Background(), "")
	require.NoError(t, err)

	reqs := fake.Requests()
	require.Len(t, reqs, 3)
	assert.Equal(t, "gpt-4o-mini", reqs[0].Model)
	assert.Equal(t, "gpt-4.1", reqs[1].Model)
	assert.Equal(t, "gpt-4o-mini", reqs[2].Model)
}

func TestFunctionCallingAgentWithPlanAndMemory(t *testing.T) {
	memPath := filepath.Join(t.TempDir(), "memory.txt")
	require.NoError(t, os.WriteFile(memPath, []byte("The menu is under /menu.\n"), 0o644))
	fake := &llmtest.Fake{Responses: responses("ok")}

	a, err := Setup(context.Background(), Options{
		Goal:       "order pizza",
		ToolNames:  []string{},
		MemoryPath: memPath,
		LogFolder:  t.TempDir(),
	}, deps(newPage(), fake))
	require.NoError(t, err)

	_, err = a.SendPrompt(context.Background(), "1. open menu\n")
	require.NoError(t, err)

	msgs := a.Messages()
	require.Len(t, msgs, 3)
	assert.Equal(t, "order pizza\n\nPlan:\n1. open menu\n\nPast experience:\nThe menu is under /menu.", msgs[1].Content)
	require.Len(t, fake.Requests(), 1)
	assert.Empty(t, fake.Requests()[0].Tools)
}

func TestHighLevelPlanningAgentBuildsPlan(t *testing.T) {
	fake := &llmtest.Fake{Responses: responses(
		`{"steps":[{"index":1,"goal":"open the menu","mode":"navigation"},{"index":2,"goal":"add margherita","mode":"interaction"}]}`,
		"done",
	)}
	a, err := Setup(context.Background(), Options{
		Goal:      "order a margherita",
		AgentType: string(HighLevelPlanningAgent),
		ToolNames: []string{},
		LogFolder: t.TempDir(),
	}, deps(newPage(), fake))
	require.NoError(t, err)

	res, err := a.SendPrompt(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, "done", res.Message())

	user := a.Messages()[1].Content
	assert.Equal(t, "order a margherita\n\nPlan:\n1. [navigation] open the menu\n2. [interaction] add margherita", user)

	// the planner sees the goal alone
	planReq := fake.Requests()[0]
	assert.NotContains(t, planReq.Messages[1].Content, "Current URL:")
}

func TestContextAwarePlanningAgentUsesPage(t *testing.T) {
	memPath := filepath.Join(t.TempDir(), "memory.txt")
	require.NoError(t, os.WriteFile(memPath, []byte("search box works"), 0o644))
	page := newPage()
	fake := &llmtest.Fake{Responses: responses(onePlanStep, "done")}

	a, err := Setup(context.Background(), Options{
		StartingURL: "https://shop.test/menu",
		Goal:        "order a margherita",
		AgentType:   string(ContextAwarePlanningAgent),
		ToolNames:   []string{},
		MemoryPath:  memPath,
		LogFolder:   t.TempDir(),
	}, deps(page, fake))
	require.NoError(t, err)

	_, err = a.SendPrompt(context.Background(), "")
	require.NoError(t, err)

	planPrompt := fake.Requests()[0].Messages[1].Content
	assert.Contains(t, planPrompt, "Current URL: https://shop.test/menu")
	assert.Contains(t, planPrompt, "Current title: Test Page")
	assert.Contains(t, planPrompt, `[5] <button> "Margherita"`)
	assert.Contains(t, planPrompt, "Past experience:\nsearch box works")
	assert.Contains(t, planPrompt, "You are working on the site shop.test.")
	assert.Contains(t, planPrompt, "User task: order a margherita")

	user := a.Messages()[1].Content
	assert.Contains(t, user, "You are working on the site shop.test.")
	assert.Contains(t, user, "Starting path on the site: /menu.")
	assert.Contains(t, user, "User task: order a margherita")
	assert.Contains(t, user, "Plan:\n1. [navigation] find pizza")
}

func setupPromptAgent(t *testing.T, page *browsertest.Page, fake *llmtest.Fake, opts Options, confirm Confirmer) (Agent, *bytes.Buffer) {
	t.Helper()
	out := &bytes.Buffer{}
	d := deps(page, fake)
	d.Out = out
	d.Confirm = confirm

	opts.AgentType = string(PromptAgent)
	if opts.Goal == "" {
		opts.Goal = "find pizza"
	}
	if opts.Features == nil {
		opts.Features = []string{browser.FeatureAXTree}
	}
	if opts.LogFolder == "" {
		opts.LogFolder = t.TempDir()
	}
	a, err := Setup(context.Background(), opts, d)
	require.NoError(t, err)
	require.Equal(t, PromptAgent, a.Type())
	return a, out
}

func TestPromptAgentResetsStepLog(t *testing.T) {
	logFolder := t.TempDir()
	require.NoError(t, steplog.Append(steplog.Path(logFolder), map[string]string{"old": "run"}))

	setupPromptAgent(t, newPage(), &llmtest.Fake{}, Options{
		StartingURL: "https://shop.test/menu",
		Goal:        "find pizza",
		LogFolder:   logFolder,
	}, nil)

	rows := readLog(t, logFolder)
	require.Len(t, rows, 1)
	assert.Equal(t, map[string]any{"goal": "find pizza", "starting_url": "https://shop.test/menu"}, rows[0])
}

func TestPromptAgentFinishes(t *testing.T) {
	page := newPage()
	page.Nodes = []*browsertest.Element{
		{Tag: "input", Attrs: map[string]string{"data-unique-test-id": "2"}},
	}
	logFolder := t.TempDir()
	fake := &llmtest.Fake{Responses: responses(
		onePlanStep,
		`{"thought":"search for it","step_done":false,"action":{"type":"type","target_id":2,"text":"pizza","submit":true}}`,
		`{"thought":"results visible","step_done":true,"action":{"type":"finish"}}`,
		"Searched for pizza.",
	)}
	a, out := setupPromptAgent(t, page, fake, Options{LogFolder: logFolder}, nil)

	res, err := a.SendPrompt(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, 2, res.Steps)
	assert.Equal(t, "https://shop.test/menu", res.FinalURL)
	assert.Contains(t, res.Message(), "Exit reason: task finished")
	assert.NotContains(t, res.Report, "Loop guard triggered")
	assert.Contains(t, res.Report, "Searched for pizza.")
	assert.Contains(t, res.Report, `ACTION=type[2] "pizza"`)
	assert.Contains(t, out.String(), "===== EXECUTION REPORT =====")
	assert.Contains(t, out.String(), "SUB-AGENT: NavigatorAgent")

	fills := page.Calls("Fill")
	require.Len(t, fills, 1)
	assert.Equal(t, []string{"pizza"}, fills[0].Args)
	require.Len(t, page.Calls("Press"), 1)

	rows := readLog(t, logFolder)
	require.Len(t, rows, 2)
	assert.Equal(t, "PromptAgent", rows[1]["tool"])
	assert.Equal(t, "type", rows[1]["action"])
	assert.Equal(t, "2", rows[1]["bid"])
	meta, ok := rows[1]["metadata"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "<input></input>", meta["outer_html"])

	require.Len(t, fake.Requests(), 4)
	msgs := a.Messages()
	require.Len(t, msgs, 2)
	assert.Contains(t, msgs[1].Content, "Plan:\n1. [navigation] find pizza")
}

func TestPromptAgentLoopGuardSkipsPlanStep(t *testing.T) {
	page := newPage()
	click := llmtest.Text(`{"thought":"open it","action":{"type":"click","target_id":"5"}}`)
	fake := &llmtest.Fake{Responses: responses(onePlanStep), Fallback: &click}
	a, out := setupPromptAgent(t, page, fake, Options{MaxSteps: 10}, nil)

	res, err := a.SendPrompt(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, 4, res.Steps)
	assert.Contains(t, res.Report, "Exit reason: all plan steps processed\nLoop guard triggered: yes\n")
	assert.Len(t, page.Calls("Click"), 2)
	assert.Contains(t, out.String(), "LOOP GUARD: suppressing action click on target 5")
}

func TestPromptAgentDestructiveActions(t *testing.T) {
	script := func() *llmtest.Fake {
		return &llmtest.Fake{Responses: responses(
			onePlanStep,
			`{"thought":"pay","action":{"type":"click","target_id":"9","is_destructive":true}}`,
			`{"thought":"stop","action":{"type":"finish"}}`,
			"summary",
		)}
	}

	t.Run("denied by default", func(t *testing.T) {
		page := newPage()
		a, _ := setupPromptAgent(t, page, script(), Options{}, nil)
		res, err := a.SendPrompt(context.Background(), "")
		require.NoError(t, err)
		assert.Empty(t, page.Calls("Click"))
		assert.Contains(t, res.Report, "task finished")
	})

	t.Run("approved", func(t *testing.T) {
		page := newPage()
		var asked []llm.Action
		approve := ConfirmFunc(func(a llm.Action) bool {
			asked = append(asked, a)
			return true
		})
		a, _ := setupPromptAgent(t, page, script(), Options{}, approve)
		_, err := a.SendPrompt(context.Background(), "")
		require.NoError(t, err)
		require.Len(t, asked, 1)
		assert.Equal(t, llm.Bid("9"), asked[0].TargetID)
		assert.Len(t, page.Calls("Click"), 1)
	})
}

func TestPromptAgentStopConditions(t *testing.T) {
	t.Run("max steps", func(t *testing.T) {
		summary := llmtest.Text("ran out of steps")
		fake := &llmtest.Fake{
			Responses: responses(onePlanStep, `{"thought":"t","action":{"type":"click","target_id":"5"}}`),
			Fallback:  &summary,
		}
		a, _ := setupPromptAgent(t, newPage(), fake, Options{MaxSteps: 1}, nil)

		res, err := a.SendPrompt(context.Background(), "")
		assert.ErrorIs(t, err, ErrMaxSteps)
		require.NotNil(t, res)
		assert.Contains(t, res.Report, "Exit reason: max steps reached")
		assert.Contains(t, res.Report, "ran out of steps")
	})

	t.Run("interrupted", func(t *testing.T) {
		fake := &llmtest.Fake{Responses: responses(onePlanStep, "summary")}
		a, _ := setupPromptAgent(t, newPage(), fake, Options{}, nil)

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		res, err := a.SendPrompt(ctx, "")
		assert.ErrorIs(t, err, ErrInterrupted)
		assert.ErrorIs(t, err, context.Canceled)
		require.NotNil(t, res)
		assert.Contains(t, res.Report, "Exit reason: interrupted")
	})

	t.Run("unparsable decision", func(t *testing.T) {
		fake := &llmtest.Fake{Responses: responses(onePlanStep, "I would click the button", "summary")}
		a, _ := setupPromptAgent(t, newPage(), fake, Options{}, nil)

		res, err := a.SendPrompt(context.Background(), "")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "NavigatorAgent step error")
		assert.Contains(t, res.Report, "Exit reason: step error")
	})

	t.Run("failing action becomes a note", func(t *testing.T) {
		page := newPage()
		page.Errs = map[string]error{"Click": errors.New("element detached")}
		fake := &llmtest.Fake{Responses: responses(
			onePlanStep,
			`{"thought":"t","action":{"type":"click","target_id":"5"}}`,
			`{"thought":"t","action":{"type":"finish"}}`,
			"summary",
		)}
		a, _ := setupPromptAgent(t, page, fake, Options{}, nil)

		_, err := a.SendPrompt(context.Background(), "")
		require.NoError(t, err)
		history := fake.Requests()[2].Messages[1].Content
		assert.Contains(t, history, "SYSTEM ERROR: click [5]: element detached")
	})
}

func TestPromptAgentDialogSwitchesToInteraction(t *testing.T) {
	page := newPage()
	page.Tree = `<dialog> [7] <button> "Add to cart"`
	fake := &llmtest.Fake{Responses: responses(
		onePlanStep,
		`{"thought":"t","action":{"type":"finish"}}`,
		"summary",
	)}
	a, out := setupPromptAgent(t, page, fake, Options{}, nil)

	_, err := a.SendPrompt(context.Background(), "")
	require.NoError(t, err)
	assert.Contains(t, out.String(), "SUB-AGENT: InteractionAgent")
	assert.Contains(t, fake.Requests()[1].Messages[1].Content, "CURRENT PLAN STEP (interaction): find pizza")
}

func TestUserPrompt(t *testing.T) {
	assert.Equal(t, "goal", userPrompt("goal", "", ""))
	assert.Equal(t, "goal\n\nPlan:\n1. a", userPrompt("goal", "1. a\n", ""))
}
