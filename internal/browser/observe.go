package browser

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"
)

// Observation features requested by tools and agents.
const (
	FeatureScreenshot          = "screenshot"
	FeatureDOM                 = "dom"
	FeatureAXTree              = "axtree"
	FeatureFocusedElement      = "focused_element"
	FeatureExtraProperties     = "extra_properties"
	FeatureInteractiveElements = "interactive_elements"
)

// DefaultFeatures is used when a caller passes a nil feature list.
var DefaultFeatures = []string{
	FeatureScreenshot,
	FeatureDOM,
	FeatureAXTree,
	FeatureFocusedElement,
	FeatureExtraProperties,
	FeatureInteractiveElements,
}

// Element filters.
const (
	FilterVisibility = "visibility"
	FilterNone       = "none"
	FilterSOM        = "som"
)

const maxDOMChars = 20000

type ObserveOptions struct {
	Features       []string
	ElementsFilter string
}

func (o ObserveOptions) has(feature string) bool {
	for _, f := range o.Features {
		if f == feature {
			return true
		}
	}
	return false
}

type BBox struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Observation is what the agent sees of the page at one point in time.
type Observation struct {
	URL              string
	Title            string
	AXTree           string
	DOM              string
	ScreenshotBase64 string
	FocusedBid       string
	Elements         []ElementInfo
}

type walkResult struct {
	Tree     string        `json:"tree"`
	Elements []ElementInfo `json:"elements"`
	Focused  string        `json:"focused"`
}

// The walker stamps every element it renders that matches arg.selector
// (InteractiveSelector) with a fresh data-unique-test-id, so every bid it
// hands out can be found again by LocateElement. Elements outside the
// viewport are skipped unless arg.onlyViewport is false. With arg.som, numbered marks are drawn over
// the stamped elements until clearMarksScript runs.
const walkScript = `(arg) => {
	let idCounter = 1;

	document.querySelectorAll('[data-unique-test-id]').forEach(el => el.removeAttribute('data-unique-test-id'));
	document.querySelectorAll('.__wa_som').forEach(el => el.remove());

	function cleanText(text) {
		if (!text) return '';
		const res = text.replace(/\s+/g, ' ').trim();
		return res.length > 100 ? res.slice(0, 100) + '...' : res;
	}

	function inViewport(rect) {
		return rect.top < window.innerHeight && rect.bottom > 0 &&
			rect.left < window.innerWidth && rect.right > 0;
	}

	function isVisible(el) {
		if (!el || !el.getBoundingClientRect) return false;
		if (el.getAttribute('aria-hidden') === 'true') return false;
		const rect = el.getBoundingClientRect();
		const style = window.getComputedStyle(el);
		if (rect.width <= 0 || rect.height <= 0) return false;
		if (style.visibility === 'hidden' || style.display === 'none' || style.opacity === '0') return false;
		return arg.onlyViewport ? inViewport(rect) : true;
	}

	function isInteractive(el) {
		return typeof el.matches === 'function' && el.matches(arg.selector);
	}

	function escapeAttr(value) {
		return value.replace(/"/g, '\\"');
	}

	function labelOf(el, tag) {
		let label = cleanText(el.innerText || el.textContent || '');
		if (!label) label = cleanText(el.getAttribute('aria-label') || '');
		if (!label) label = cleanText(el.getAttribute('title') || '');
		if ((tag === 'input' || tag === 'textarea') && !label) {
			label = cleanText(el.getAttribute('placeholder') || '');
		}
		return label;
	}

	const elements = [];

	function traverse(node, depth) {
		if (!node || depth > 25) return '';

		if (node.nodeType === Node.TEXT_NODE) {
			const text = cleanText(node.textContent);
			return text.length > 2 ? '  '.repeat(depth) + text + '\n' : '';
		}
		if (node.nodeType !== Node.ELEMENT_NODE) return '';

		const el = node;
		const tag = el.tagName.toLowerCase();
		if (['script', 'style', 'svg', 'path', 'noscript'].includes(tag)) return '';
		if (!isVisible(el)) return '';

		const prefix = '  '.repeat(depth);
		let output = '';

		if (isInteractive(el)) {
			const bid = String(idCounter++);
			el.setAttribute('data-unique-test-id', bid);

			const label = labelOf(el, tag);
			const parts = ['<' + tag];
			if (label) parts.push('label="' + escapeAttr(label) + '"');
			const role = el.getAttribute('role');
			if (role) parts.push('role="' + role + '"');
			const type = el.getAttribute('type');
			if (type) parts.push('type="' + type + '"');
			if (tag === 'input' || tag === 'textarea' || tag === 'select') {
				const val = cleanText(el.value);
				if (val) parts.push('value="' + escapeAttr(val) + '"');
			}
			output += prefix + '[' + bid + '] ' + parts.join(' ') + '>\n';

			const rect = el.getBoundingClientRect();
			elements.push({
				bid: bid,
				text: label,
				type: type || '',
				tag: tag,
				id: el.id || '',
				href: el.getAttribute('href') || '',
				title: el.getAttribute('title') || '',
				ariaLabel: el.getAttribute('aria-label') || '',
				name: el.getAttribute('name') || '',
				value: (el.value !== undefined && el.value !== null) ? String(el.value) : '',
				placeholder: el.getAttribute('placeholder') || '',
				role: role || '',
				inViewport: inViewport(rect),
				bbox: { x: rect.x, y: rect.y, width: rect.width, height: rect.height },
			});

			if (arg.som && inViewport(rect)) {
				const mark = document.createElement('div');
				mark.className = '__wa_som';
				mark.textContent = bid;
				mark.style.cssText = 'position:fixed;z-index:2147483647;pointer-events:none;' +
					'background:#e11;color:#fff;font:bold 11px monospace;padding:0 2px;' +
					'left:' + Math.max(0, rect.left) + 'px;top:' + Math.max(0, rect.top) + 'px;';
				document.body.appendChild(mark);
			}
		} else if (['h1', 'h2', 'h3', 'h4', 'h5'].includes(tag)) {
			output += prefix + '<' + tag + '> ' + cleanText(el.innerText) + '\n';
			return output;
		}

		for (const child of el.childNodes) {
			output += traverse(child, depth + 1);
		}
		return output;
	}

	const tree = traverse(document.body, 0);
	const active = document.activeElement;
	const focused = active ? (active.getAttribute('data-unique-test-id') || '') : '';
	return JSON.stringify({ tree: tree, elements: elements, focused: focused });
}`

const clearMarksScript = `() => {
	document.querySelectorAll('.__wa_som').forEach(el => el.remove());
	return '';
}`

const domScript = `() => {
	const clone = document.documentElement.cloneNode(true);
	clone.querySelectorAll('script, style, noscript, svg').forEach(el => el.remove());
	return clone.outerHTML;
}`

const pageTextScript = `() => document.body ? document.body.innerText : ''`

// Observe walks the page and collects the requested features. The walk always
// runs because it assigns the bids tools address elements by.
func Observe(ctx context.Context, p Page, opts ObserveOptions) (*Observation, error) {
	if p == nil {
		return nil, ErrPageNotInitialized
	}
	if opts.Features == nil {
		opts.Features = DefaultFeatures
	}

	filter := opts.ElementsFilter
	arg := map[string]any{
		"selector":     InteractiveSelector,
		"onlyViewport": filter != FilterNone,
		"som":          filter == FilterSOM && opts.has(FeatureScreenshot),
	}

	raw, err := evalString(ctx, p, walkScript, arg)
	if err != nil {
		return nil, err
	}
	var walk walkResult
	if err := json.Unmarshal([]byte(raw), &walk); err != nil {
		return nil, fmt.Errorf("decode page walk: %w", err)
	}

	title, _ := p.Title(ctx)
	obs := &Observation{
		URL:   p.URL(),
		Title: title,
	}

	if opts.has(FeatureAXTree) {
		obs.AXTree = walk.Tree
	}
	if opts.has(FeatureFocusedElement) {
		obs.FocusedBid = walk.Focused
	}
	if opts.has(FeatureInteractiveElements) || opts.has(FeatureExtraProperties) {
		obs.Elements = walk.Elements
	}
	if opts.has(FeatureDOM) {
		html, err := evalString(ctx, p, domScript, nil)
		if err != nil {
			return nil, err
		}
		obs.DOM = truncate(html, maxDOMChars)
	}
	if opts.has(FeatureScreenshot) {
		buf, err := p.Screenshot(ctx)
		if arg["som"] == true {
			_, _ = p.Evaluate(ctx, clearMarksScript, nil)
		}
		if err != nil {
			return nil, fmt.Errorf("screenshot failed: %w", err)
		}
		obs.ScreenshotBase64 = base64.StdEncoding.EncodeToString(buf)
	}

	return obs, nil
}

// PageText returns the visible text of the page body.
func PageText(ctx context.Context, p Page) (string, error) {
	if p == nil {
		return "", ErrPageNotInitialized
	}
	return evalString(ctx, p, pageTextScript, nil)
}

// Render formats the observation as prompt text. Element bounding boxes are
// only included when withProperties is set.
func (o *Observation) Render(withProperties bool) string {
	var sb strings.Builder
	sb.WriteString("URL: " + o.URL + "\n")
	if o.Title != "" {
		sb.WriteString("TITLE: " + o.Title + "\n")
	}
	if o.FocusedBid != "" {
		sb.WriteString("FOCUSED ELEMENT: [" + o.FocusedBid + "]\n")
	}
	if o.AXTree != "" {
		sb.WriteString("\nPAGE TREE:\n" + o.AXTree)
	}
	if len(o.Elements) > 0 {
		sb.WriteString("\nINTERACTIVE ELEMENTS:\n")
		for _, el := range o.Elements {
			fmt.Fprintf(&sb, "[%s] <%s> %q", el.Bid, el.Tag, el.Text)
			if withProperties && el.BBox != nil {
				fmt.Fprintf(&sb, " bbox=(%.0f,%.0f,%.0f,%.0f) visible=%v",
					el.BBox.X, el.BBox.Y, el.BBox.Width, el.BBox.Height, el.InViewport)
			}
			sb.WriteString("\n")
		}
	}
	if o.DOM != "" {
		sb.WriteString("\nDOM:\n" + o.DOM + "\n")
	}
	return sb.String()
}

// truncate cuts s to at most limit bytes without splitting a rune.
func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	for limit > 0 && !utf8.RuneStart(s[limit]) {
		limit--
	}
	return s[:limit] + "\n...[TRUNCATED]"
}
