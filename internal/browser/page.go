package browser

import (
	"context"
	"errors"
	"fmt"
)

const (
	LoadStateLoad             = "load"
	LoadStateDomcontentloaded = "domcontentloaded"
	LoadStateNetworkidle      = "networkidle"
)

var ErrPageNotInitialized = errors.New("page is not initialized")

// Page is the single browser tab the agent works in. Both drivers implement it.
// Evaluate takes a JavaScript function expression and calls it with arg.
type Page interface {
	Goto(ctx context.Context, url string) error
	GoBack(ctx context.Context) error
	URL() string
	Title(ctx context.Context) (string, error)
	QuerySelectorAll(ctx context.Context, selector string) ([]Element, error)
	Click(ctx context.Context, selector string) error
	Fill(ctx context.Context, selector, value string) error
	Press(ctx context.Context, selector, key string) error
	SelectOption(ctx context.Context, selector string, values []string) ([]string, error)
	SetInputFiles(ctx context.Context, selector string, paths []string) error
	Evaluate(ctx context.Context, script string, arg any) (any, error)
	Screenshot(ctx context.Context) ([]byte, error)
	WaitForLoad(ctx context.Context) error
}

// Element is a handle to one DOM element returned by QuerySelectorAll.
// GetAttribute returns "" for a missing attribute.
type Element interface {
	GetAttribute(ctx context.Context, name string) (string, error)
	InnerText(ctx context.Context) (string, error)
	TagName(ctx context.Context) (string, error)
}

// PageProvider hands out the shared page.
type PageProvider interface {
	GetPage() Page
}

// ElementSelector returns the CSS selector addressing the element stamped with bid.
func ElementSelector(bid string) string {
	return fmt.Sprintf("[data-unique-test-id='%s']", bid)
}

// evalString runs script and expects a string result.
func evalString(ctx context.Context, p Page, script string, arg any) (string, error) {
	res, err := p.Evaluate(ctx, script, arg)
	if err != nil {
		return "", fmt.Errorf("js evaluation failed: %w", err)
	}
	if res == nil {
		return "", nil
	}
	s, ok := res.(string)
	if !ok {
		return "", fmt.Errorf("expected string from js, got %T", res)
	}
	return s, nil
}
