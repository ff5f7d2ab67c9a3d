package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	DriverPlaywright = "playwright"
	DriverChromedp   = "chromedp"
)

// Config is the full runtime configuration of the agent binaries.
type Config struct {
	LLM     LLMConfig     `yaml:"llm"`
	Browser BrowserConfig `yaml:"browser"`
	Agent   AgentConfig   `yaml:"agent"`
	Server  ServerConfig  `yaml:"server"`
	Log     LogConfig     `yaml:"log"`
}

type LLMConfig struct {
	APIKey      string `yaml:"api_key"`
	BaseURL     string `yaml:"base_url"`
	Model       string `yaml:"model"`
	VisionModel string `yaml:"vision_model"`
}

type BrowserConfig struct {
	Driver      string   `yaml:"driver"`
	Headless    bool     `yaml:"headless"`
	UserDataDir string   `yaml:"user_data_dir"`
	TimeoutMS   float64  `yaml:"timeout_ms"`
	Viewport    Viewport `yaml:"viewport"`
}

type Viewport struct {
	Width  int `yaml:"width"`
	Height int `yaml:"height"`
}

type AgentConfig struct {
	Type            string   `yaml:"type"`
	Tools           []string `yaml:"tools"`
	Features        []string `yaml:"features"`
	ElementsFilter  string   `yaml:"elements_filter"`
	BranchingFactor int      `yaml:"branching_factor"`
	LogFolder       string   `yaml:"log_folder"`
	MemoryPath      string   `yaml:"memory_path"`
	MaxSteps        int      `yaml:"max_steps"`
}

type ServerConfig struct {
	Addr string `yaml:"addr"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	File   string `yaml:"file"`
}

// Default returns the configuration used when nothing else is set.
func Default() Config {
	return Config{
		LLM: LLMConfig{
			Model:       "gpt-4o-mini",
			VisionModel: "gpt-4o",
		},
		Browser: BrowserConfig{
			Driver:      DriverPlaywright,
			UserDataDir: ".playwright_data",
			TimeoutMS:   60000,
			Viewport:    Viewport{Width: 1280, Height: 720},
		},
		Agent: AgentConfig{
			Type:            "FunctionCallingAgent",
			Tools:           []string{"navigation", "select_option", "upload_file", "webscraping"},
			Features:        []string{"axtree"},
			ElementsFilter:  "visibility",
			BranchingFactor: 1,
			LogFolder:       "log",
			MaxSteps:        15,
		},
		Server: ServerConfig{Addr: ":5001"},
		Log:    LogConfig{Level: "info", Format: "text"},
	}
}

// Load builds the configuration: defaults, then the YAML file at path (if
// path is non-empty), then a .env file in the working directory (if present),
// then environment variables.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyEnv() error {
	setString(&c.LLM.APIKey, "OPENAI_API_KEY")
	setString(&c.LLM.BaseURL, "OPENAI_BASE_URL")
	setString(&c.LLM.Model, "WEBAGENT_MODEL")
	setString(&c.Browser.Driver, "WEBAGENT_DRIVER")
	setString(&c.Log.Level, "WEBAGENT_LOG_LEVEL")
	setString(&c.Agent.LogFolder, "WEBAGENT_LOG_FOLDER")
	setString(&c.Server.Addr, "WEBAGENT_ADDR")

	if v, ok := os.LookupEnv("WEBAGENT_HEADLESS"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("WEBAGENT_HEADLESS: %w", err)
		}
		c.Browser.Headless = b
	}
	return nil
}

// Validate reports the first configuration problem found.
func (c *Config) Validate() error {
	if c.LLM.APIKey == "" {
		return fmt.Errorf("OPENAI_API_KEY is not set")
	}
	switch c.Browser.Driver {
	case DriverPlaywright, DriverChromedp:
	default:
		return fmt.Errorf("unknown browser driver %q", c.Browser.Driver)
	}
	switch c.Agent.ElementsFilter {
	case "", "visibility", "none", "som":
	default:
		return fmt.Errorf("unknown elements filter %q", c.Agent.ElementsFilter)
	}
	if c.Agent.BranchingFactor < 1 {
		return fmt.Errorf("branching factor must be >= 1, got %d", c.Agent.BranchingFactor)
	}
	if c.Agent.MaxSteps < 1 {
		return fmt.Errorf("max steps must be >= 1, got %d", c.Agent.MaxSteps)
	}
	return nil
}

// SplitList parses a comma separated flag value, dropping empty items.
func SplitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func setString(dst *string, key string) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		*dst = v
	}
}
