package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func chdirTemp(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })
	return dir
}

func TestLoadDefaults(t *testing.T) {
	chdirTemp(t)
	t.Setenv("OPENAI_API_KEY", "sk-test")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "sk-test", cfg.LLM.APIKey)
	assert.Equal(t, "gpt-4o-mini", cfg.LLM.Model)
	assert.Equal(t, DriverPlaywright, cfg.Browser.Driver)
	assert.Equal(t, []string{"navigation", "select_option", "upload_file", "webscraping"}, cfg.Agent.Tools)
	assert.Equal(t, []string{"axtree"}, cfg.Agent.Features)
	assert.Equal(t, "log", cfg.Agent.LogFolder)
	assert.NoError(t, cfg.Validate())
}

func TestLoadYAMLThenEnv(t *testing.T) {
	dir := chdirTemp(t)

	path := filepath.Join(dir, "agent.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
llm:
  api_key: from-file
  model: gpt-4o
browser:
  driver: chromedp
  headless: false
agent:
  type: PromptAgent
  branching_factor: 3
  tools: [navigation, webscraping]
`), 0o600))

	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("WEBAGENT_MODEL", "gpt-4.1-mini")
	t.Setenv("WEBAGENT_HEADLESS", "true")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "from-file", cfg.LLM.APIKey)
	assert.Equal(t, "gpt-4.1-mini", cfg.LLM.Model)
	assert.Equal(t, DriverChromedp, cfg.Browser.Driver)
	assert.True(t, cfg.Browser.Headless)
	assert.Equal(t, "PromptAgent", cfg.Agent.Type)
	assert.Equal(t, 3, cfg.Agent.BranchingFactor)
	assert.Equal(t, []string{"navigation", "webscraping"}, cfg.Agent.Tools)
	assert.Equal(t, 15, cfg.Agent.MaxSteps)
}

func TestLoadDotEnv(t *testing.T) {
	dir := chdirTemp(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("WEBAGENT_DRIVER=chromedp\n"), 0o600))

	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("WEBAGENT_DRIVER", "")
	require.NoError(t, os.Unsetenv("WEBAGENT_DRIVER"))

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, DriverChromedp, cfg.Browser.Driver)
}

func TestLoadBadHeadless(t *testing.T) {
	chdirTemp(t)
	t.Setenv("WEBAGENT_HEADLESS", "maybe")

	_, err := Load("")
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	cfg := Default()
	assert.EqualError(t, cfg.Validate(), "OPENAI_API_KEY is not set")

	cfg.LLM.APIKey = "k"
	cfg.Browser.Driver = "rod"
	assert.ErrorContains(t, cfg.Validate(), "unknown browser driver")

	cfg.Browser.Driver = DriverPlaywright
	cfg.Agent.ElementsFilter = "everything"
	assert.ErrorContains(t, cfg.Validate(), "unknown elements filter")

	cfg.Agent.ElementsFilter = "som"
	cfg.Agent.BranchingFactor = 0
	assert.ErrorContains(t, cfg.Validate(), "branching factor")
}

func TestSplitList(t *testing.T) {
	assert.Equal(t, []string{"axtree", "screenshot"}, SplitList(" axtree, ,screenshot "))
	assert.Nil(t, SplitList(""))
}
