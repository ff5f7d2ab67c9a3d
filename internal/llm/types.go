package llm

import (
	"bytes"
	"encoding/json"
	"strings"
)

type ActionType string

const (
	ActionClick     ActionType = "click"
	ActionTypeInput ActionType = "type"
	ActionSelect    ActionType = "select"
	ActionScroll    ActionType = "scroll"
	ActionNavigate  ActionType = "navigate"
	ActionGoBack    ActionType = "go_back"
	ActionFinish    ActionType = "finish"
)

// Bid is an element id. Models send it as a number or a string.
type Bid string

func (b *Bid) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*b = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*b = Bid(strings.Trim(strings.TrimSpace(s), "[]"))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*b = Bid(n.String())
	return nil
}

type Action struct {
	Type          ActionType `json:"type"`
	TargetID      Bid        `json:"target_id,omitempty"`
	Text          string     `json:"text,omitempty"`
	URL           string     `json:"url,omitempty"`
	Options       []string   `json:"options,omitempty"`
	Submit        bool       `json:"submit,omitempty"`
	IsDestructive bool       `json:"is_destructive,omitempty"`
}

type DecisionInput struct {
	Model            string
	Task             string
	Tree             string
	CurrentURL       string
	History          string // short description of previous steps
	ScreenshotBase64 string
	// N is the number of candidates to ask for.
	N int
}

type DecisionOutput struct {
	Thought  string `json:"thought"`
	StepDone bool   `json:"step_done"`
	Action   Action `json:"action"`
}

type SummaryInput struct {
	Model      string
	Task       string
	ExitReason string
	Duration   string
	FinalURL   string
	Steps      []string
}

// normalizeActionType maps the synonyms models use onto the known action
// types. Unknown types become scroll.
func normalizeActionType(a *Action) {
	switch strings.ToLower(strings.TrimSpace(string(a.Type))) {
	case "click":
		a.Type = ActionClick
	case "type", "fill", "input":
		a.Type = ActionTypeInput
	case "select", "select_option":
		a.Type = ActionSelect
	case "scroll", "scroll_down":
		a.Type = ActionScroll
	case "navigate", "goto":
		a.Type = ActionNavigate
	case "go_back", "back":
		a.Type = ActionGoBack
	case "finish", "done":
		a.Type = ActionFinish
	default:
		a.Type = ActionScroll
	}
}
