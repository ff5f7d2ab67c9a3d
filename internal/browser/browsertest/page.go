// Package browsertest provides an in-memory browser.Page for tests.
package browsertest

import (
	"context"
	"encoding/json"
	"strings"
	"sync"

	"github.com/nbenliogludev/go-web-agent/internal/browser"
)

// Call is one recorded Page method invocation.
type Call struct {
	Method   string
	Selector string
	Args     []string
}

// Element is a fake DOM element returned by QuerySelectorAll.
type Element struct {
	Attrs map[string]string
	Text  string
	Tag   string
}

func (e *Element) GetAttribute(_ context.Context, name string) (string, error) {
	return e.Attrs[name], nil
}

func (e *Element) InnerText(_ context.Context) (string, error) { return e.Text, nil }

func (e *Element) TagName(_ context.Context) (string, error) { return e.Tag, nil }

func (e *Element) outerHTML() string {
	return "<" + e.Tag + ">" + e.Text + "</" + e.Tag + ">"
}

// Page records every call. Observe gets its walk result from Tree,
// Interactive and Focused; PageText returns BodyText; OuterHTML renders the
// matching entry of Nodes. EvalFunc, when set, replaces the default
// Evaluate behaviour.
type Page struct {
	mu sync.Mutex

	CurrentURL  string
	PageTitle   string
	Nodes       []*Element
	Tree        string
	Interactive []browser.ElementInfo
	Focused     string
	BodyText    string
	HTML        string
	Shot        []byte

	EvalFunc func(script string, arg any) (any, error)
	// Errs makes the named method fail.
	Errs map[string]error

	calls []Call
}

var _ browser.Page = (*Page)(nil)

func New(url string) *Page {
	return &Page{CurrentURL: url, PageTitle: "Test Page", Shot: []byte{0xff, 0xd8, 0xff}}
}

// Calls returns the recorded calls, optionally only those of one method.
func (p *Page) Calls(method string) []Call {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []Call
	for _, c := range p.calls {
		if method == "" || c.Method == method {
			out = append(out, c)
		}
	}
	return out
}

func (p *Page) record(method, selector string, args ...string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, Call{Method: method, Selector: selector, Args: args})
	return p.Errs[method]
}

func (p *Page) Goto(_ context.Context, url string) error {
	if err := p.record("Goto", "", url); err != nil {
		return err
	}
	p.mu.Lock()
	p.CurrentURL = url
	p.mu.Unlock()
	return nil
}

func (p *Page) GoBack(_ context.Context) error { return p.record("GoBack", "") }

func (p *Page) URL() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.CurrentURL
}

func (p *Page) Title(_ context.Context) (string, error) {
	if err := p.record("Title", ""); err != nil {
		return "", err
	}
	return p.PageTitle, nil
}

func (p *Page) QuerySelectorAll(_ context.Context, selector string) ([]browser.Element, error) {
	if err := p.record("QuerySelectorAll", selector); err != nil {
		return nil, err
	}
	out := make([]browser.Element, 0, len(p.Nodes))
	for _, n := range p.Nodes {
		out = append(out, n)
	}
	return out, nil
}

func (p *Page) Click(_ context.Context, selector string) error {
	return p.record("Click", selector)
}

func (p *Page) Fill(_ context.Context, selector, value string) error {
	return p.record("Fill", selector, value)
}

func (p *Page) Press(_ context.Context, selector, key string) error {
	return p.record("Press", selector, key)
}

func (p *Page) SelectOption(_ context.Context, selector string, values []string) ([]string, error) {
	if err := p.record("SelectOption", selector, values...); err != nil {
		return nil, err
	}
	return values, nil
}

func (p *Page) SetInputFiles(_ context.Context, selector string, paths []string) error {
	return p.record("SetInputFiles", selector, paths...)
}

func (p *Page) Evaluate(_ context.Context, script string, arg any) (any, error) {
	if err := p.record("Evaluate", ""); err != nil {
		return nil, err
	}
	if p.EvalFunc != nil {
		return p.EvalFunc(script, arg)
	}
	if m, ok := arg.(map[string]any); ok {
		if _, walk := m["onlyViewport"]; walk {
			return p.walkJSON()
		}
	}
	if sel, ok := arg.(string); ok && strings.Contains(script, "outerHTML") {
		return p.nodeHTML(sel), nil
	}
	if arg == nil {
		switch {
		case strings.Contains(script, "cloneNode"):
			return p.HTML, nil
		case strings.Contains(script, "innerText"):
			return p.BodyText, nil
		}
	}
	return "", nil
}

func (p *Page) nodeHTML(selector string) string {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, n := range p.Nodes {
		if browser.ElementSelector(n.Attrs["data-unique-test-id"]) == selector {
			return n.outerHTML()
		}
	}
	return ""
}

func (p *Page) walkJSON() (string, error) {
	elements := p.Interactive
	if elements == nil {
		elements = []browser.ElementInfo{}
	}
	b, err := json.Marshal(map[string]any{
		"tree":     p.Tree,
		"elements": elements,
		"focused":  p.Focused,
	})
	return string(b), err
}

func (p *Page) Screenshot(_ context.Context) ([]byte, error) {
	if err := p.record("Screenshot", ""); err != nil {
		return nil, err
	}
	return p.Shot, nil
}

func (p *Page) WaitForLoad(_ context.Context) error { return p.record("WaitForLoad", "") }

// Provider is a browser.PageProvider over a fixed page.
type Provider struct{ Page browser.Page }

func (p Provider) GetPage() browser.Page { return p.Page }
