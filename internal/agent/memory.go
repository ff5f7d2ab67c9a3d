package agent

import (
	"fmt"
	"strings"

	"github.com/nbenliogludev/go-web-agent/internal/llm"
)

const (
	recentWindow = 10
	patternSize  = 2
)

// StepMemory is the prompt agent's short step history plus its loop guard.
// The guard catches one action repeated in a row and a two-action sequence
// that has already happened once.
type StepMemory struct {
	window []string // what the model sees
	all    []string // what the report lists
	limit  int

	last      string
	streak    int
	threshold int

	recent     []string
	patternLen int
	seen       map[string]int

	loopTriggered bool
}

func NewStepMemory(historyLimit, repeatThreshold int) *StepMemory {
	if historyLimit <= 0 {
		historyLimit = 5
	}
	if repeatThreshold <= 1 {
		repeatThreshold = 2
	}
	return &StepMemory{
		limit:      historyLimit,
		threshold:  repeatThreshold,
		patternLen: patternSize,
		seen:       make(map[string]int),
	}
}

// actionKey identifies an action by type, page and target.
func actionKey(url string, a llm.Action) string {
	return string(a.Type) + "|" + url + "|" + string(a.TargetID)
}

func (m *StepMemory) record(line string) {
	m.all = append(m.all, line)
	m.window = append(m.window, line)
	if over := len(m.window) - m.limit; over > 0 {
		m.window = m.window[over:]
	}
}

// Add records an executed action.
func (m *StepMemory) Add(step int, url string, a llm.Action) {
	m.record(fmt.Sprintf("step=%d url=%s action=%s target=%s text=%q", step, url, a.Type, a.TargetID, a.Text))

	key := actionKey(url, a)
	if key == m.last {
		m.streak++
	} else {
		m.last, m.streak = key, 1
	}

	m.recent = append(m.recent, key)
	if over := len(m.recent) - recentWindow; over > 0 {
		m.recent = m.recent[over:]
	}
	if m.patternLen > 1 && len(m.recent) >= m.patternLen {
		m.seen[strings.Join(m.recent[len(m.recent)-m.patternLen:], "->")]++
	}
}

// ShouldBlock reports whether executing a now would continue a loop. The
// returned note explains the block to the model.
func (m *StepMemory) ShouldBlock(url string, a llm.Action) (bool, string) {
	key := actionKey(url, a)

	if key == m.last && m.streak >= m.threshold {
		return true, fmt.Sprintf(
			"SYSTEM NOTE: The same action (%s) has already been executed %d times in a row. "+
				"Do NOT repeat it again. Choose a different action or finish if the goal is already achieved.",
			key, m.streak,
		)
	}

	prefix := m.patternLen - 1
	if prefix < 1 || len(m.recent) < prefix {
		return false, ""
	}
	seq := append(append([]string{}, m.recent[len(m.recent)-prefix:]...), key)
	pattern := strings.Join(seq, "->")
	if m.seen[pattern] > 0 {
		return true, fmt.Sprintf(
			"SYSTEM NOTE: The sequence of %d actions (%s) has already occurred before. "+
				"Do NOT repeat this pattern. Move on to the next stage of the flow or finish.",
			m.patternLen, pattern,
		)
	}
	return false, ""
}

func (m *StepMemory) AddSystemNote(note string) {
	if note = strings.TrimSpace(note); note != "" {
		m.record(note)
	}
}

// HistoryString is the recent history as one prompt block.
func (m *StepMemory) HistoryString() string { return strings.Join(m.window, "\n") }

func (m *StepMemory) FullHistory() []string { return clone(m.all) }

func (m *StepMemory) MarkLoopTriggered() { m.loopTriggered = true }

func (m *StepMemory) LoopTriggered() bool { return m.loopTriggered }

func clone(lines []string) []string {
	if len(lines) == 0 {
		return nil
	}
	return append([]string(nil), lines...)
}
