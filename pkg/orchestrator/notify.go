package orchestrator

import (
	"fmt"
	"io"
	"sync"
)

// Notifier shows messages to the user at the point a problem is found.
type Notifier interface {
	ShowError(message string)
	ShowWarning(message string)
}

// WriterNotifier prints messages to W, one per line.
type WriterNotifier struct {
	W  io.Writer
	mu sync.Mutex
}

func (n *WriterNotifier) ShowError(message string)   { n.print("error", message) }
func (n *WriterNotifier) ShowWarning(message string) { n.print("warning", message) }

func (n *WriterNotifier) print(level, message string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	_, _ = fmt.Fprintf(n.W, "%s: %s\n", level, message)
}

type discardNotifier struct{}

func (discardNotifier) ShowError(string)   {}
func (discardNotifier) ShowWarning(string) {}
