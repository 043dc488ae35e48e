// Package watcher turns filesystem notifications into a pull-based stream of
// template change events.
package watcher

import "context"

// Kind is the kind of change observed for a path.
type Kind int

const (
	KindAdded Kind = iota
	KindRemoved
	KindChanged
)

// String returns the string representation of the Kind
func (k Kind) String() string {
	switch k {
	case KindAdded:
		return "added"
	case KindRemoved:
		return "removed"
	case KindChanged:
		return "changed"
	default:
		return "unknown"
	}
}

// ChangeEvent represents a file change event
type ChangeEvent struct {
	Kind Kind
	Path string
}

// EventSource is an unbounded sequence of change events. Next blocks until an
// event is available, the context is done, or the subscription fails.
type EventSource interface {
	Next(ctx context.Context) (ChangeEvent, error)
	Close() error
}
