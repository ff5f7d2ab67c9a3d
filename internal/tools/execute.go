package tools

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/nbenliogludev/go-web-agent/internal/browser"
	"github.com/nbenliogludev/go-web-agent/internal/llm"
)

var ErrMissingTarget = errors.New("action needs a target_id")

const scrollStep = 500

// NeedsTarget reports whether the action type addresses an element.
func NeedsTarget(t llm.ActionType) bool {
	switch t {
	case llm.ActionClick, llm.ActionTypeInput, llm.ActionSelect:
		return true
	}
	return false
}

// ExecuteAction performs one decided action on the page and describes the
// outcome.
func ExecuteAction(ctx context.Context, p browser.Page, a llm.Action) (string, error) {
	if p == nil {
		return "", browser.ErrPageNotInitialized
	}
	bid := string(a.TargetID)
	if NeedsTarget(a.Type) && bid == "" {
		return "", fmt.Errorf("%s: %w", a.Type, ErrMissingTarget)
	}

	switch a.Type {
	case llm.ActionClick:
		browser.Highlight(ctx, p, bid)
		if err := browser.ClickBid(ctx, p, bid); err != nil {
			return "", err
		}
		return fmt.Sprintf("Clicked element [%s]", bid), nil

	case llm.ActionTypeInput:
		browser.Highlight(ctx, p, bid)
		if err := browser.TypeBid(ctx, p, bid, a.Text, a.Submit); err != nil {
			return "", err
		}
		if a.Submit {
			return fmt.Sprintf("Typed %q into [%s] and pressed Enter", a.Text, bid), nil
		}
		return fmt.Sprintf("Typed %q into [%s]", a.Text, bid), nil

	case llm.ActionSelect:
		picked, err := browser.SelectBid(ctx, p, bid, a.Options)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("Selected %s on [%s]", strings.Join(picked, ", "), bid), nil

	case llm.ActionScroll:
		if err := browser.ScrollBy(ctx, p, scrollStep); err != nil {
			return "", fmt.Errorf("scroll: %w", err)
		}
		return "Scrolled down", nil

	case llm.ActionNavigate:
		if a.URL == "" {
			return "", fmt.Errorf("navigate: empty url")
		}
		if err := p.Goto(ctx, a.URL); err != nil {
			return "", err
		}
		return "Navigated to " + a.URL, nil

	case llm.ActionGoBack:
		if err := p.GoBack(ctx); err != nil {
			return "", fmt.Errorf("go back: %w", err)
		}
		return "Went back", nil

	case llm.ActionFinish:
		return "Finished", nil

	default:
		return "", fmt.Errorf("unknown action type: %s", a.Type)
	}
}
