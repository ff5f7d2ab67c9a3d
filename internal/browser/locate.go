package browser

import (
	"context"
	"fmt"
	"strings"
)

// InteractiveSelector matches every element a tool may address by bid.
var InteractiveSelector = strings.Join([]string{
	"a", "button", "input", "select", "textarea", "summary", "video", "audio",
	"iframe", "embed", "object", "menu", "label", "fieldset", "datalist",
	"output", "details", "dialog", "option",
	`[role="button"]`, `[role="link"]`, `[role="checkbox"]`, `[role="radio"]`,
	`[role="menuitem"]`, `[role="tab"]`,
	"[tabindex]", `[contenteditable="true"]`,
}, ", ")

// BidAttribute is stamped on elements by Observe.
const BidAttribute = "data-unique-test-id"

// ElementInfo describes one interactive element. The zero value means the
// element was not found.
type ElementInfo struct {
	Bid         string `json:"bid,omitempty"`
	Text        string `json:"text"`
	Type        string `json:"type"`
	Tag         string `json:"tag"`
	ID          string `json:"id"`
	Href        string `json:"href"`
	Title       string `json:"title"`
	AriaLabel   string `json:"ariaLabel"`
	Name        string `json:"name"`
	Value       string `json:"value"`
	Placeholder string `json:"placeholder"`
	Class       string `json:"class"`
	Role        string `json:"role"`
	InViewport  bool   `json:"inViewport,omitempty"`
	BBox        *BBox  `json:"bbox,omitempty"`
}

func (e ElementInfo) Empty() bool {
	return e == ElementInfo{}
}

// LocateElement finds the first interactive element whose bid matches.
// The bid is the data-unique-test-id attribute, or the id attribute when
// that is missing. No match is not an error.
func LocateElement(ctx context.Context, p Page, bid string) (ElementInfo, error) {
	if p == nil {
		return ElementInfo{}, ErrPageNotInitialized
	}

	elements, err := p.QuerySelectorAll(ctx, InteractiveSelector)
	if err != nil {
		return ElementInfo{}, fmt.Errorf("query interactive elements: %w", err)
	}

	for _, el := range elements {
		elBid, err := elementBid(ctx, el)
		if err != nil {
			return ElementInfo{}, err
		}
		if elBid != bid {
			continue
		}
		info, err := describe(ctx, el)
		if err != nil {
			return ElementInfo{}, err
		}
		info.Bid = elBid
		return info, nil
	}
	return ElementInfo{}, nil
}

// SearchInteractiveElements looks bid up in an already extracted list.
func SearchInteractiveElements(elements []ElementInfo, bid string) ElementInfo {
	for _, el := range elements {
		if el.Bid != "" && el.Bid == bid {
			return el
		}
	}
	return ElementInfo{}
}

func elementBid(ctx context.Context, el Element) (string, error) {
	b, err := el.GetAttribute(ctx, BidAttribute)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", BidAttribute, err)
	}
	if b != "" {
		return b, nil
	}
	id, err := el.GetAttribute(ctx, "id")
	if err != nil {
		return "", fmt.Errorf("read id: %w", err)
	}
	return id, nil
}

func describe(ctx context.Context, el Element) (ElementInfo, error) {
	var info ElementInfo

	text, err := el.InnerText(ctx)
	if err != nil {
		return info, fmt.Errorf("read text: %w", err)
	}
	info.Text = strings.TrimSpace(text)

	tag, err := el.TagName(ctx)
	if err != nil {
		return info, fmt.Errorf("read tag: %w", err)
	}
	info.Tag = tag

	attrs := []struct {
		name string
		dst  *string
	}{
		{"type", &info.Type},
		{"id", &info.ID},
		{"href", &info.Href},
		{"title", &info.Title},
		{"aria-label", &info.AriaLabel},
		{"name", &info.Name},
		{"value", &info.Value},
		{"placeholder", &info.Placeholder},
		{"class", &info.Class},
		{"role", &info.Role},
	}
	for _, a := range attrs {
		v, err := el.GetAttribute(ctx, a.name)
		if err != nil {
			return info, fmt.Errorf("read %s: %w", a.name, err)
		}
		*a.dst = v
	}
	return info, nil
}
