package agent

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/nbenliogludev/go-web-agent/internal/llm"
)

func clickOn(bid string) llm.Action {
	return llm.Action{Type: llm.ActionClick, TargetID: llm.Bid(bid)}
}

func TestStepMemoryBlocksRepeatedPattern(t *testing.T) {
	m := NewStepMemory(10, 3)
	const url = "https://shop.test/menu"

	blocked, _ := m.ShouldBlock(url, clickOn("1"))
	assert.False(t, blocked)

	m.Add(1, url, clickOn("1"))
	m.Add(2, url, clickOn("2"))

	blocked, _ = m.ShouldBlock(url, clickOn("1"))
	assert.False(t, blocked, "2->1 has not happened yet")

	m.Add(3, url, clickOn("1"))

	blocked, note := m.ShouldBlock(url, clickOn("2"))
	assert.True(t, blocked)
	assert.Contains(t, note, "sequence of 2 actions")
	assert.Contains(t, note, "click|https://shop.test/menu|1->click|https://shop.test/menu|2")
}

func TestStepMemoryBlocksSameActionAfterThreshold(t *testing.T) {
	m := NewStepMemory(10, 3)
	// disable pattern detection to exercise the repeat counter alone
	m.patternLen = 1
	const url = "https://shop.test"

	for i := 1; i <= 2; i++ {
		m.Add(i, url, clickOn("5"))
		blocked, _ := m.ShouldBlock(url, clickOn("5"))
		assert.False(t, blocked, "after %d repeats", i)
	}

	m.Add(3, url, clickOn("5"))
	blocked, note := m.ShouldBlock(url, clickOn("5"))
	assert.True(t, blocked)
	assert.Contains(t, note, "executed 3 times in a row")

	blocked, _ = m.ShouldBlock("https://shop.test/other", clickOn("5"))
	assert.False(t, blocked, "same target on another page is a different action")
}

func TestStepMemoryHistoryWindow(t *testing.T) {
	m := NewStepMemory(3, 3)
	for i := 1; i <= 4; i++ {
		m.Add(i, "u", clickOn(fmt.Sprint(i)))
	}
	m.AddSystemNote("  ")
	m.AddSystemNote("SYSTEM NOTE: hello")

	lines := strings.Split(m.HistoryString(), "\n")
	assert.Len(t, lines, 3)
	assert.Equal(t, "SYSTEM NOTE: hello", lines[2])
	assert.Contains(t, lines[0], "step=3")
	assert.Len(t, m.FullHistory(), 5)

	assert.False(t, m.LoopTriggered())
	m.MarkLoopTriggered()
	assert.True(t, m.LoopTriggered())
}

func TestNewStepMemoryDefaults(t *testing.T) {
	m := NewStepMemory(0, 0)
	assert.Equal(t, 5, m.limit)
	assert.Equal(t, 2, m.threshold)
	assert.Empty(t, m.HistoryString())
	assert.Nil(t, m.FullHistory())
}
