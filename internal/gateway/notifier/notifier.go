// Package notifier pushes decision events to the operator. The interface
// is a single text send so components never import a concrete transport.
package notifier

// TextNotifier is the minimal notification surface.
type TextNotifier interface {
	SendText(text string) error
}

// Nop discards everything; used when no notifier is configured.
type Nop struct{}

func (Nop) SendText(string) error { return nil }
