package orchestrator

import "fmt"

// ProgressReporter emits progress events through a buffered channel.
type ProgressReporter struct {
	ch chan ProgressEvent
}

// NewProgressReporter creates a ProgressReporter with a buffered channel of size 64.
func NewProgressReporter() *ProgressReporter {
	return &ProgressReporter{
		ch: make(chan ProgressEvent, 64),
	}
}

// Emit sends a progress event in a non-blocking fashion.
// If the channel is full, the event is silently dropped.
func (pr *ProgressReporter) Emit(event ProgressEvent) {
	select {
	case pr.ch <- event:
	default:
		// Drop the event if the channel is full.
	}
}

// Subscribe returns a read-only channel for consuming progress events.
func (pr *ProgressReporter) Subscribe() <-chan ProgressEvent {
	return pr.ch
}

// Close closes the progress event channel.
func (pr *ProgressReporter) Close() {
	close(pr.ch)
}

// FormatProgress formats a ProgressEvent as a human-readable status line.
func FormatProgress(event ProgressEvent) string {
	label := fmt.Sprintf("%s/%s", event.UnitID, event.Stage)
	switch event.Status {
	case ProgressPending:
		return fmt.Sprintf("  ○ %s (queued)", label)
	case ProgressWorking:
		return fmt.Sprintf("  ● %s...", label)
	case ProgressPartial:
		return fmt.Sprintf("  ◑ %s checkpointed: %s", label, event.Message)
	case ProgressComplete:
		return fmt.Sprintf("  ✓ %s complete", label)
	case ProgressFailed:
		return fmt.Sprintf("  ✗ %s failed: %s", label, event.Message)
	default:
		return fmt.Sprintf("  ? %s (unknown status)", label)
	}
}
