package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/nbenliogludev/go-web-agent/internal/browser"
	"github.com/nbenliogludev/go-web-agent/internal/config"
	"github.com/nbenliogludev/go-web-agent/internal/llm"
	"github.com/nbenliogludev/go-web-agent/internal/logging"
	"github.com/nbenliogludev/go-web-agent/internal/server"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	fs := flag.NewFlagSet("agent-server", flag.ContinueOnError)
	configPath := fs.String("config", "", "path to a YAML config file")
	addr := fs.String("addr", "", "listen address (default from config, :5001)")
	driver := fs.String("driver", "", "browser driver: playwright or chromedp")
	headless := fs.Bool("headless", false, "run the browser headless")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		return 1
	}
	if *addr != "" {
		cfg.Server.Addr = *addr
	}
	if *driver != "" {
		cfg.Browser.Driver = *driver
	}
	fs.Visit(func(f *flag.Flag) {
		if f.Name == "headless" {
			cfg.Browser.Headless = *headless
		}
	})
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

	client, err := llm.NewClient(cfg.LLM)
	if err != nil {
		logger.Error("failed to create OpenAI client", "err", err)
		return 1
	}

	mgr, err := browser.NewManager(cfg.Browser, logger)
	if err != nil {
		logger.Error("failed to start browser manager", "err", err)
		return 1
	}
	defer mgr.Close()

	srv := server.New(server.Options{
		Agent:       cfg.Agent,
		Model:       cfg.LLM.Model,
		VisionModel: cfg.LLM.VisionModel,
		LLM:         client,
		Pages:       mgr,
		Log:         logger,
		Out:         os.Stdout,
	})
	if err := srv.ListenAndServe(ctx, cfg.Server.Addr); err != nil {
		logger.Error("server stopped", "err", err)
		return 1
	}
	return 0
}
