package browser

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/chromedp/cdproto/cdp"
	cdppage "github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"github.com/chromedp/chromedp/kb"

	"github.com/nbenliogludev/go-web-agent/internal/config"
)

func startChromedp(cfg config.BrowserConfig) (Page, func() error, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", cfg.Headless),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
	)
	if cfg.UserDataDir != "" {
		opts = append(opts, chromedp.UserDataDir(cfg.UserDataDir))
	}
	if cfg.Viewport.Width > 0 && cfg.Viewport.Height > 0 {
		opts = append(opts, chromedp.WindowSize(cfg.Viewport.Width, cfg.Viewport.Height))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(context.Background(), opts...)
	tabCtx, cancelTab := chromedp.NewContext(allocCtx)

	// The first Run launches the browser.
	if err := chromedp.Run(tabCtx); err != nil {
		cancelTab()
		cancelAlloc()
		return nil, nil, fmt.Errorf("start chrome: %w", err)
	}

	closeFn := func() error {
		cancelTab()
		cancelAlloc()
		return nil
	}
	return &cdpPage{ctx: tabCtx}, closeFn, nil
}

// cdpPage drives the tab through chromedp. Every call runs on the tab
// context; the caller's ctx only gates entry.
type cdpPage struct {
	ctx context.Context
}

func (p *cdpPage) run(ctx context.Context, actions ...chromedp.Action) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return chromedp.Run(p.ctx, actions...)
}

func (p *cdpPage) Goto(ctx context.Context, url string) error {
	if err := p.run(ctx, chromedp.Navigate(url)); err != nil {
		return fmt.Errorf("could not navigate to %s: %w", url, err)
	}
	return nil
}

func (p *cdpPage) GoBack(ctx context.Context) error {
	return p.run(ctx, chromedp.NavigateBack())
}

func (p *cdpPage) URL() string {
	var u string
	if err := chromedp.Run(p.ctx, chromedp.Location(&u)); err != nil {
		return ""
	}
	return u
}

func (p *cdpPage) Title(ctx context.Context) (string, error) {
	var t string
	err := p.run(ctx, chromedp.Title(&t))
	return t, err
}

func (p *cdpPage) QuerySelectorAll(ctx context.Context, selector string) ([]Element, error) {
	var nodes []*cdp.Node
	if err := p.run(ctx, chromedp.Nodes(selector, &nodes, chromedp.ByQueryAll, chromedp.AtLeast(0))); err != nil {
		return nil, err
	}
	out := make([]Element, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, cdpElement{page: p, node: n})
	}
	return out, nil
}

func (p *cdpPage) Click(ctx context.Context, selector string) error {
	return p.run(ctx,
		chromedp.ScrollIntoView(selector, chromedp.ByQuery),
		chromedp.Click(selector, chromedp.ByQuery, chromedp.NodeVisible),
	)
}

func (p *cdpPage) Fill(ctx context.Context, selector, value string) error {
	return p.run(ctx,
		chromedp.Focus(selector, chromedp.ByQuery),
		chromedp.SetValue(selector, "", chromedp.ByQuery),
		chromedp.SendKeys(selector, value, chromedp.ByQuery),
	)
}

var cdpKeys = map[string]string{
	"enter":      kb.Enter,
	"tab":        kb.Tab,
	"escape":     kb.Escape,
	"backspace":  kb.Backspace,
	"delete":     kb.Delete,
	"arrowdown":  kb.ArrowDown,
	"arrowup":    kb.ArrowUp,
	"arrowleft":  kb.ArrowLeft,
	"arrowright": kb.ArrowRight,
}

func (p *cdpPage) Press(ctx context.Context, selector, key string) error {
	k, ok := cdpKeys[strings.ToLower(key)]
	if !ok {
		k = key
	}
	return p.run(ctx, chromedp.SendKeys(selector, k, chromedp.ByQuery))
}

const selectOptionScript = `(arg) => {
	const el = document.querySelector(arg.selector);
	if (!el) throw new Error('no element for ' + arg.selector);
	const wanted = new Set(arg.values);
	const picked = [];
	for (const opt of el.options || []) {
		const hit = wanted.has(opt.value) || wanted.has(opt.label) || wanted.has(opt.textContent.trim());
		opt.selected = hit && (el.multiple || picked.length === 0);
		if (opt.selected) picked.push(opt.value);
	}
	el.dispatchEvent(new Event('input', { bubbles: true }));
	el.dispatchEvent(new Event('change', { bubbles: true }));
	return JSON.stringify(picked);
}`

func (p *cdpPage) SelectOption(ctx context.Context, selector string, values []string) ([]string, error) {
	raw, err := evalString(ctx, p, selectOptionScript, map[string]any{"selector": selector, "values": values})
	if err != nil {
		return nil, err
	}
	var picked []string
	if err := json.Unmarshal([]byte(raw), &picked); err != nil {
		return nil, fmt.Errorf("decode selected options: %w", err)
	}
	return picked, nil
}

func (p *cdpPage) SetInputFiles(ctx context.Context, selector string, paths []string) error {
	return p.run(ctx, chromedp.SetUploadFiles(selector, paths, chromedp.ByQuery))
}

func (p *cdpPage) Evaluate(ctx context.Context, script string, arg any) (any, error) {
	expr := "(" + script + ")()"
	if arg != nil {
		b, err := json.Marshal(arg)
		if err != nil {
			return nil, fmt.Errorf("encode js argument: %w", err)
		}
		expr = "(" + script + ")(" + string(b) + ")"
	}
	var res any
	if err := p.run(ctx, chromedp.Evaluate(expr, &res)); err != nil {
		return nil, err
	}
	return res, nil
}

func (p *cdpPage) Screenshot(ctx context.Context) ([]byte, error) {
	var buf []byte
	err := p.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		var err error
		buf, err = cdppage.CaptureScreenshot().
			WithFormat(cdppage.CaptureScreenshotFormatJpeg).
			WithQuality(70).
			Do(ctx)
		return err
	}))
	return buf, err
}

func (p *cdpPage) WaitForLoad(ctx context.Context) error {
	return p.run(ctx, chromedp.WaitReady("body", chromedp.ByQuery))
}

type cdpElement struct {
	page *cdpPage
	node *cdp.Node
}

func (e cdpElement) GetAttribute(_ context.Context, name string) (string, error) {
	return e.node.AttributeValue(name), nil
}

func (e cdpElement) InnerText(ctx context.Context) (string, error) {
	var s string
	err := e.page.run(ctx, chromedp.Text([]cdp.NodeID{e.node.NodeID}, &s, chromedp.ByNodeID))
	return s, err
}

func (e cdpElement) TagName(_ context.Context) (string, error) {
	return strings.ToLower(e.node.LocalName), nil
}
