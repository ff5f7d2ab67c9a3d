package agent

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/nbenliogludev/go-web-agent/internal/llm"
)

// Reporter prints step decisions and the final execution report.
type Reporter struct {
	out   io.Writer
	llm   llm.Completer
	model string
	task  string
	trace []string

	finalURL string
}

func NewReporter(out io.Writer, c llm.Completer, model, task string) *Reporter {
	if out == nil {
		out = io.Discard
	}
	return &Reporter{out: out, llm: c, model: model, task: task}
}

func (r *Reporter) LogDecision(step int, url, mode string, d *llm.DecisionOutput) {
	decor := ""
	if d.Action.IsDestructive {
		decor = " [DESTRUCTIVE]"
	}

	fmt.Fprintln(r.out, strings.Repeat("-", 40))
	fmt.Fprintf(r.out, "MODE:    %s\n", strings.ToUpper(mode))
	fmt.Fprintf(r.out, "THOUGHT: %s\n", d.Thought)
	fmt.Fprintf(r.out, "ACTION:  %s [%s] %q%s\n", d.Action.Type, d.Action.TargetID, d.Action.Text, decor)
	fmt.Fprintln(r.out, strings.Repeat("-", 40))

	r.finalURL = url
	r.trace = append(r.trace, fmt.Sprintf(
		"STEP %d | URL=%s | MODE=%s | ACTION=%s[%s] %q%s | THOUGHT=%s",
		step, url, strings.ToUpper(mode), d.Action.Type, d.Action.TargetID, d.Action.Text, decor, d.Thought,
	))
}

func (r *Reporter) Printf(format string, args ...any) {
	fmt.Fprintf(r.out, format, args...)
}

func (r *Reporter) StepError(err error) {
	fmt.Fprintf(r.out, "Step error: %v\n", err)
}

// Report prints the execution report and returns it. A cancelled ctx is
// detached for the summary request so interrupted runs are summarized too.
func (r *Reporter) Report(ctx context.Context, start time.Time, reason string, mem *StepMemory) string {
	duration := time.Since(start).Truncate(time.Millisecond)

	var sb strings.Builder
	sb.WriteString("===== EXECUTION REPORT =====\n")
	fmt.Fprintf(&sb, "Task: %s\n", r.task)
	fmt.Fprintf(&sb, "Duration: %s\n", duration)
	fmt.Fprintf(&sb, "Exit reason: %s\n", reason)
	if mem.LoopTriggered() {
		sb.WriteString("Loop guard triggered: yes\n")
	}
	sb.WriteString("\n")

	sb.WriteString("--- RAW STEP TRACE ---\n")
	for _, line := range r.trace {
		sb.WriteString(line + "\n")
	}

	sb.WriteString("\n--- LLM SUMMARY ---\n")
	if ctx.Err() != nil {
		ctx = context.WithoutCancel(ctx)
	}
	summary, err := llm.SummarizeRun(ctx, r.llm, llm.SummaryInput{
		Model:      r.model,
		Task:       r.task,
		ExitReason: humanizeReason(reason),
		FinalURL:   r.finalURL,
		Duration:   duration.String(),
		Steps:      mem.FullHistory(),
	})
	if err != nil {
		sb.WriteString("(failed to generate summary)\n")
	} else {
		sb.WriteString(strings.TrimSpace(summary) + "\n")
	}
	sb.WriteString("===== END OF REPORT =====\n")

	report := sb.String()
	fmt.Fprint(r.out, "\n"+report)
	return report
}
