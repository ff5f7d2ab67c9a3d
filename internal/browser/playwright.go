package browser

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/playwright-community/playwright-go"

	"github.com/nbenliogludev/go-web-agent/internal/config"
)

func startPlaywright(cfg config.BrowserConfig, log *slog.Logger) (Page, func() error, error) {
	runOpts := &playwright.RunOptions{
		Verbose: false,
		Stdout:  io.Discard,
		Stderr:  io.Discard,
	}
	if err := playwright.Install(runOpts); err != nil {
		return nil, nil, fmt.Errorf("install pw failed: %w", err)
	}

	pw, err := playwright.Run(runOpts)
	if err != nil {
		return nil, nil, fmt.Errorf("start pw failed: %w", err)
	}

	opts := playwright.BrowserTypeLaunchPersistentContextOptions{
		Headless: playwright.Bool(cfg.Headless),
		Args: []string{
			"--disable-blink-features=AutomationControlled",
		},
	}
	if cfg.Viewport.Width > 0 && cfg.Viewport.Height > 0 {
		opts.Viewport = &playwright.Size{Width: cfg.Viewport.Width, Height: cfg.Viewport.Height}
	}

	bctx, err := pw.Chromium.LaunchPersistentContext(cfg.UserDataDir, opts)
	if err != nil {
		_ = pw.Stop()
		return nil, nil, fmt.Errorf("launch chromium: %w", err)
	}

	var page playwright.Page
	if pages := bctx.Pages(); len(pages) > 0 {
		page = pages[0]
	} else {
		page, err = bctx.NewPage()
		if err != nil {
			_ = bctx.Close()
			_ = pw.Stop()
			return nil, nil, fmt.Errorf("failed to create page: %w", err)
		}
	}

	if cfg.TimeoutMS > 0 {
		page.SetDefaultTimeout(cfg.TimeoutMS)
		page.SetDefaultNavigationTimeout(cfg.TimeoutMS)
	}

	closeFn := func() error {
		if err := bctx.Close(); err != nil {
			log.Warn("close browser context", "err", err)
		}
		return pw.Stop()
	}
	return &pwPage{page: page}, closeFn, nil
}

// pwPage adapts a playwright page. playwright-go has no context support, so
// ctx is only checked before each call.
type pwPage struct {
	page playwright.Page
}

func (p *pwPage) Goto(ctx context.Context, url string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := p.page.Goto(url); err != nil {
		return fmt.Errorf("could not navigate to %s: %w", url, err)
	}
	return nil
}

func (p *pwPage) GoBack(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := p.page.GoBack()
	return err
}

func (p *pwPage) URL() string { return p.page.URL() }

func (p *pwPage) Title(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return p.page.Title()
}

func (p *pwPage) QuerySelectorAll(ctx context.Context, selector string) ([]Element, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	handles, err := p.page.QuerySelectorAll(selector)
	if err != nil {
		return nil, err
	}
	out := make([]Element, 0, len(handles))
	for _, h := range handles {
		out = append(out, pwElement{h: h})
	}
	return out, nil
}

func (p *pwPage) Click(ctx context.Context, selector string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	loc := p.page.Locator(selector).First()
	if err := loc.ScrollIntoViewIfNeeded(); err != nil {
		return fmt.Errorf("scroll failed: %w", err)
	}
	return loc.Click()
}

func (p *pwPage) Fill(ctx context.Context, selector, value string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return p.page.Locator(selector).First().Fill(value)
}

func (p *pwPage) Press(ctx context.Context, selector, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return p.page.Locator(selector).First().Press(key)
}

func (p *pwPage) SelectOption(ctx context.Context, selector string, values []string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return p.page.Locator(selector).First().SelectOption(playwright.SelectOptionValues{
		Values: &values,
	})
}

func (p *pwPage) SetInputFiles(ctx context.Context, selector string, paths []string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return p.page.Locator(selector).First().SetInputFiles(paths)
}

func (p *pwPage) Evaluate(ctx context.Context, script string, arg any) (any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if arg == nil {
		return p.page.Evaluate(script)
	}
	return p.page.Evaluate(script, arg)
}

func (p *pwPage) Screenshot(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return p.page.Screenshot(playwright.PageScreenshotOptions{
		FullPage: playwright.Bool(false),
		Type:     playwright.ScreenshotTypeJpeg,
		Quality:  playwright.Int(70),
	})
}

func (p *pwPage) WaitForLoad(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	state := playwright.LoadState(LoadStateNetworkidle)
	return p.page.WaitForLoadState(playwright.PageWaitForLoadStateOptions{
		State: &state,
	})
}

type pwElement struct {
	h playwright.ElementHandle
}

func (e pwElement) GetAttribute(_ context.Context, name string) (string, error) {
	return e.h.GetAttribute(name)
}

func (e pwElement) InnerText(_ context.Context) (string, error) {
	return e.h.InnerText()
}

func (e pwElement) TagName(_ context.Context) (string, error) {
	res, err := e.h.Evaluate(`el => el.tagName.toLowerCase()`)
	if err != nil {
		return "", err
	}
	s, _ := res.(string)
	return s, nil
}
