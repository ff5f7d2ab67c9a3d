package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nbenliogludev/go-web-agent/internal/agent"
	"github.com/nbenliogludev/go-web-agent/internal/browser/browsertest"
	"github.com/nbenliogludev/go-web-agent/internal/config"
	"github.com/nbenliogludev/go-web-agent/internal/llm/llmtest"
	"github.com/nbenliogludev/go-web-agent/internal/logging"
)

func newServer(t *testing.T, fake *llmtest.Fake) (*Server, *browsertest.Page) {
	t.Helper()
	page := browsertest.New("about:blank")
	page.Tree = `[5] <button> "Margherita"`

	cfg := config.Default().Agent
	cfg.LogFolder = t.TempDir()
	return New(Options{
		Agent: cfg,
		Model: "gpt-4o-mini",
		LLM:   fake,
		Pages: browsertest.Provider{Page: page},
		Log:   logging.Discard(),
	}), page
}

func post(t *testing.T, s *Server, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]string {
	t.Helper()
	var out map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

type event struct {
	name string
	data map[string]any
}

func parseEvents(t *testing.T, body string) []event {
	t.Helper()
	var out []event
	for _, block := range strings.Split(strings.TrimSpace(body), "\n\n") {
		var ev event
		var hasID bool
		for _, line := range strings.Split(block, "\n") {
			switch {
			case strings.HasPrefix(line, "id: "):
				hasID = strings.TrimPrefix(line, "id: ") != ""
			case strings.HasPrefix(line, "event: "):
				ev.name = strings.TrimPrefix(line, "event: ")
			case strings.HasPrefix(line, "data: "):
				require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &ev.data))
			}
		}
		require.True(t, hasID, "event without id: %q", block)
		out = append(out, ev)
	}
	return out
}

func TestHealthz(t *testing.T) {
	s, _ := newServer(t, &llmtest.Fake{})
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", decodeBody(t, rec)["status"])
}

func TestCORSPreflight(t *testing.T) {
	s, _ := newServer(t, &llmtest.Fake{})
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodOptions, "/automate", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestAutomate(t *testing.T) {
	fake := &llmtest.Fake{Responses: []openai.ChatCompletionResponse{
		llmtest.ToolCalls([2]string{"click", `{"bid":"5"}`}),
		llmtest.Text("Clicked the Margherita."),
	}}
	s, page := newServer(t, fake)

	rec := post(t, s, "/automate", `{"starting_url":"https://shop.test","goal":"open margherita","agent_type":"FunctionCallingAgent","tool_names":["click"]}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "Clicked the Margherita.", decodeBody(t, rec)["message"])
	assert.Equal(t, "https://shop.test", page.URL())
	assert.Len(t, page.Calls("Click"), 1)
}

func TestAutomateErrors(t *testing.T) {
	t.Run("unsupported agent type", func(t *testing.T) {
		fake := &llmtest.Fake{}
		s, _ := newServer(t, fake)
		rec := post(t, s, "/automate", `{"goal":"x","agent_type":"PromptSearchAgent"}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, (&agent.UnsupportedAgentTypeError{Name: "PromptSearchAgent"}).Payload(), decodeBody(t, rec))
		assert.Empty(t, fake.Requests())
	})

	t.Run("bad body", func(t *testing.T) {
		s, _ := newServer(t, &llmtest.Fake{})
		rec := post(t, s, "/automate", `{"goal":`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, decodeBody(t, rec)["error"], "invalid request body")
	})

	t.Run("missing goal", func(t *testing.T) {
		s, _ := newServer(t, &llmtest.Fake{})
		rec := post(t, s, "/automate", `{"goal":"  "}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "goal is required", decodeBody(t, rec)["error"])
	})

	t.Run("llm failure", func(t *testing.T) {
		s, _ := newServer(t, &llmtest.Fake{Err: errors.New("quota exceeded")})
		rec := post(t, s, "/automate", `{"goal":"x","tool_names":[]}`)
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.Contains(t, decodeBody(t, rec)["error"], "quota exceeded")
	})

	t.Run("busy", func(t *testing.T) {
		s, _ := newServer(t, &llmtest.Fake{})
		s.run.Lock()
		defer s.run.Unlock()
		rec := post(t, s, "/automate", `{"goal":"x"}`)
		assert.Equal(t, http.StatusConflict, rec.Code)
		rec = post(t, s, "/automate/stream", `{"goal":"x"}`)
		assert.Equal(t, http.StatusConflict, rec.Code)
	})
}

func TestAutomatePromptAgentStepLimitIsReported(t *testing.T) {
	summary := llmtest.Text("Stopped after one click.")
	fake := &llmtest.Fake{
		Responses: []openai.ChatCompletionResponse{
			llmtest.Text(`{"steps":[{"index":1,"goal":"open margherita","mode":"navigation"}]}`),
			llmtest.Text(`{"thought":"click it","action":{"type":"click","target_id":"5"}}`),
		},
		Fallback: &summary,
	}
	s, _ := newServer(t, fake)
	s.opts.Agent.MaxSteps = 1

	rec := post(t, s, "/automate", `{"goal":"open margherita","agent_type":"PromptAgent","features":"axtree"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	msg := decodeBody(t, rec)["message"]
	assert.Contains(t, msg, "Exit reason: max steps reached")
	assert.Contains(t, msg, "Stopped after one click.")
}

func TestAutomateStream(t *testing.T) {
	fake := &llmtest.Fake{Responses: []openai.ChatCompletionResponse{
		llmtest.ToolCalls([2]string{"click", `{"bid":"5"}`}),
		llmtest.Text("Done."),
	}}
	s, _ := newServer(t, fake)

	rec := post(t, s, "/automate/stream", `{"goal":"open margherita","tool_names":["click"]}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))

	events := parseEvents(t, rec.Body.String())
	require.Len(t, events, 2)

	assert.Equal(t, "tool_result", events[0].name)
	assert.Equal(t, "tool_result", events[0].data["type"])
	msg := events[0].data["message"].(map[string]any)
	assert.Equal(t, "Clicked element [5]. Current URL: about:blank", msg["content"])

	assert.Equal(t, "complete", events[1].name)
	resp := events[1].data["message"].(map[string]any)["response"].([]any)
	require.Len(t, resp, 1)
	assert.Equal(t, "Done.", resp[0].(map[string]any)["message"].(map[string]any)["content"])
}

func TestAutomateStreamFailure(t *testing.T) {
	s, _ := newServer(t, &llmtest.Fake{})
	rec := post(t, s, "/automate/stream", `{"goal":"x","agent_type":"Nope"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	events := parseEvents(t, rec.Body.String())
	require.Len(t, events, 1)
	assert.Equal(t, "error", events[0].name)
	assert.Contains(t, events[0].data["message"], "Unsupported agent type: Nope")
}

func TestOptionsFromRequest(t *testing.T) {
	s, _ := newServer(t, &llmtest.Fake{})
	cfg := s.opts.Agent

	opts := s.options(Request{Goal: "g"})
	assert.Equal(t, cfg.Type, opts.AgentType)
	assert.Equal(t, cfg.Tools, opts.ToolNames)
	assert.Equal(t, cfg.Features, opts.Features)
	assert.Equal(t, "gpt-4o-mini", opts.Model)
	assert.Equal(t, 1, opts.BranchingFactor)

	opts = s.options(Request{
		Goal:            "g",
		Model:           "gpt-4o",
		Features:        "axtree, screenshot",
		ElementsFilter:  "som",
		BranchingFactor: 5,
		AgentType:       "PromptAgent",
		ToolNames:       []string{"click"},
		LogFolder:       "runs",
	})
	assert.Equal(t, "gpt-4o", opts.Model)
	assert.Equal(t, []string{"axtree", "screenshot"}, opts.Features)
	assert.Equal(t, "som", opts.ElementsFilter)
	assert.Equal(t, 5, opts.BranchingFactor)
	assert.Equal(t, "PromptAgent", opts.AgentType)
	assert.Equal(t, []string{"click"}, opts.ToolNames)
	assert.Equal(t, "runs", opts.LogFolder)
}
