package browser

import (
	"context"
	"fmt"
)

const highlightScript = `(sel) => {
	const el = document.querySelector(sel);
	if (!el) return false;
	el.style.outline = "5px solid red";
	el.style.zIndex = "999999";
	el.scrollIntoView({behavior: "smooth", block: "center", inline: "center"});
	return true;
}`

const outerHTMLScript = `(sel) => {
	const el = document.querySelector(sel);
	if (!el) return "";
	let s = el.outerHTML || "";
	if (s.length > 400) s = s.slice(0, 400) + "...";
	return s;
}`

const scrollScript = `(dy) => { window.scrollBy({top: dy, behavior: 'smooth'}); return ''; }`

// Highlight outlines the element with bid. Missing elements are ignored.
func Highlight(ctx context.Context, p Page, bid string) {
	if p == nil {
		return
	}
	_, _ = p.Evaluate(ctx, highlightScript, ElementSelector(bid))
}

// OuterHTML returns a shortened outerHTML of the element with bid, or "".
func OuterHTML(ctx context.Context, p Page, bid string) string {
	if p == nil {
		return ""
	}
	s, err := evalString(ctx, p, outerHTMLScript, ElementSelector(bid))
	if err != nil {
		return ""
	}
	return s
}

// ScrollBy scrolls the window vertically by dy pixels.
func ScrollBy(ctx context.Context, p Page, dy int) error {
	if p == nil {
		return ErrPageNotInitialized
	}
	_, err := p.Evaluate(ctx, scrollScript, dy)
	return err
}

// ClickBid scrolls to and clicks the element with bid.
func ClickBid(ctx context.Context, p Page, bid string) error {
	if p == nil {
		return ErrPageNotInitialized
	}
	if err := p.Click(ctx, ElementSelector(bid)); err != nil {
		return fmt.Errorf("click [%s]: %w", bid, err)
	}
	return nil
}

// TypeBid replaces the value of the element with bid and optionally presses Enter.
func TypeBid(ctx context.Context, p Page, bid, text string, submit bool) error {
	if p == nil {
		return ErrPageNotInitialized
	}
	sel := ElementSelector(bid)
	if err := p.Fill(ctx, sel, text); err != nil {
		return fmt.Errorf("type into [%s]: %w", bid, err)
	}
	if submit {
		if err := p.Press(ctx, sel, "Enter"); err != nil {
			return fmt.Errorf("submit [%s]: %w", bid, err)
		}
	}
	return nil
}

// SelectBid selects options by value or label and returns the selected values.
func SelectBid(ctx context.Context, p Page, bid string, options []string) ([]string, error) {
	if p == nil {
		return nil, ErrPageNotInitialized
	}
	picked, err := p.SelectOption(ctx, ElementSelector(bid), options)
	if err != nil {
		return nil, fmt.Errorf("select on [%s]: %w", bid, err)
	}
	return picked, nil
}

// UploadBid sets the files of the file input with bid.
func UploadBid(ctx context.Context, p Page, bid string, paths []string) error {
	if p == nil {
		return ErrPageNotInitialized
	}
	if err := p.SetInputFiles(ctx, ElementSelector(bid), paths); err != nil {
		return fmt.Errorf("upload to [%s]: %w", bid, err)
	}
	return nil
}
