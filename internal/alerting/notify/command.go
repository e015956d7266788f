package notify

import (
	"context"
	"os"
	"os/exec"

	"loadwatch/internal/alerting"
)

// CommandNotifier runs a configured shell command per fired alert. It is the
// hook for audible beeps and spoken alerts: the command receives the event
// kind, severity and message in LOADWATCH_* environment variables.
type CommandNotifier struct {
	command string
}

// NewCommandNotifier constructs a command notifier. An empty command yields
// a notifier that does nothing.
func NewCommandNotifier(command string) *CommandNotifier {
	return &CommandNotifier{command: command}
}

// Notify runs the command, ignoring its outcome.
func (n *CommandNotifier) Notify(ctx context.Context, event alerting.Event) {
	if n == nil || n.command == "" {
		return
	}
	cmd := exec.CommandContext(ctx, "sh", "-c", n.command)
	cmd.Env = append(os.Environ(),
		"LOADWATCH_EVENT="+string(event.Kind),
		"LOADWATCH_SEVERITY="+string(event.Severity),
		"LOADWATCH_MESSAGE="+event.Message,
	)
	_ = cmd.Run()
}
