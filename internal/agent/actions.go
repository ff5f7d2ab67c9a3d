package agent

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/nbenliogludev/go-web-agent/internal/llm"
)

// Confirmer approves actions the model marked as destructive (payments,
// deletions, sending messages).
type Confirmer interface {
	Confirm(action llm.Action) bool
}

// ConfirmFunc adapts a function to Confirmer.
type ConfirmFunc func(llm.Action) bool

func (f ConfirmFunc) Confirm(a llm.Action) bool { return f(a) }

// DenyAll cancels every destructive action. It is used when nobody can be asked.
var DenyAll Confirmer = ConfirmFunc(func(llm.Action) bool { return false })

// PromptConfirmer asks on Out and reads the answer from In.
type PromptConfirmer struct {
	In  io.Reader
	Out io.Writer

	r *bufio.Reader
}

// NewTTYConfirmer asks on the controlling terminal. Without one every
// destructive action is cancelled.
func NewTTYConfirmer(out io.Writer) Confirmer {
	tty, err := os.Open("/dev/tty")
	if err != nil {
		fmt.Fprintln(out, "(no TTY, destructive actions will be cancelled)")
		return DenyAll
	}
	return &PromptConfirmer{In: tty, Out: out}
}

func (c *PromptConfirmer) Confirm(action llm.Action) bool {
	fmt.Fprintf(c.Out, "SECURITY LAYER: model suggests a DESTRUCTIVE action (payment, deletion, etc.).\n")
	fmt.Fprintf(c.Out, "   Planned action: %s [%s] %q\n", action.Type, action.TargetID, action.Text)
	fmt.Fprint(c.Out, "   Allow this action? (y/n): ")

	if c.r == nil {
		c.r = bufio.NewReader(c.In)
	}
	for {
		input, err := c.r.ReadString('\n')
		if err != nil && input == "" {
			fmt.Fprintln(c.Out, "\nDestructive action cancelled (read error).")
			return false
		}

		switch strings.ToLower(strings.TrimSpace(input)) {
		case "y", "yes":
			fmt.Fprintln(c.Out, "Destructive action approved by user.")
			return true
		case "n", "no", "":
			fmt.Fprintln(c.Out, "Destructive action cancelled by user.")
			return false
		}

		if err != nil {
			return false
		}
		fmt.Fprint(c.Out, "   Please answer 'y' or 'n': ")
	}
}
