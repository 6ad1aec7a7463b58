package notify

import (
	"fmt"
	"log"
	"os/exec"
)

type Notifier interface {
	CaptureChanged(state string)
	Saved(path string)
	Error(msg string)
}

// FromConfig maps the notifications.type setting to a Notifier.
func FromConfig(enabled bool, kind string) Notifier {
	if !enabled {
		return Nop{}
	}
	switch kind {
	case "desktop":
		return Desktop{}
	case "log":
		return Log{}
	default:
		return Nop{}
	}
}

type Desktop struct{}

func (Desktop) CaptureChanged(state string) {
	cmd := exec.Command("notify-send", "-a", "Fieldscribe",
		fmt.Sprintf("Fieldscribe: capture %s", state))
	if err := cmd.Run(); err != nil {
		log.Printf("Failed to send notification: %v", err)
	}
}

func (Desktop) Saved(path string) {
	cmd := exec.Command("notify-send", "-a", "Fieldscribe",
		fmt.Sprintf("Fieldscribe: capture saved to %s", path))
	if err := cmd.Run(); err != nil {
		log.Printf("Failed to send notification: %v", err)
	}
}

func (Desktop) Error(msg string) {
	cmd := exec.Command("notify-send", "-a", "Fieldscribe", "-u", "critical", msg)
	if err := cmd.Run(); err != nil {
		log.Printf("Failed to send error notification: %v", err)
	}
}

// Log writes notifications to the daemon log instead of the desktop.
type Log struct{}

func (Log) CaptureChanged(state string) { log.Printf("notify: capture %s", state) }
func (Log) Saved(path string)           { log.Printf("notify: capture saved to %s", path) }
func (Log) Error(msg string)            { log.Printf("notify: error: %s", msg) }

// Nop is a Notifier that does absolutely nothing.
// Useful in unit tests or headless builds.
type Nop struct{}

func (Nop) CaptureChanged(string) {}
func (Nop) Saved(string)          {}
func (Nop) Error(string)          {}
