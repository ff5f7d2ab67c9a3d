package agent

// Exit reasons of a prompt agent run.
const (
	reasonFinished    = "task finished"
	reasonPlanDone    = "all plan steps processed"
	reasonMaxSteps    = "max steps reached"
	reasonInterrupted = "interrupted"
	reasonError       = "step error"
)

func humanizeReason(reason string) string {
	switch reason {
	case reasonFinished:
		return "model explicitly finished the task"
	case reasonPlanDone:
		return "every step of the plan was completed or skipped"
	case reasonMaxSteps:
		return "step limit reached"
	case reasonInterrupted:
		return "execution was interrupted (context cancelled)"
	case reasonError:
		return "the run stopped on an LLM or page observation error"
	default:
		return reason
	}
}
