package search

import (
	"context"
	"time"
)

// Observer receives notifications about backend calls.
//
// The observer is called after every call, whether successful or failed.
// Implementations must not block; the search loop waits for them.
type Observer interface {
	OnCall(ctx context.Context, event CallEvent)
}

// CallEvent describes one backend call.
type CallEvent struct {
	Backend string
	// Model used for the call (may differ from the configured one)
	Model string
	// Kind is "search", "structured" or "generate".
	Kind       string
	PromptSize int
	Grounded   bool
	// Sources is the number of grounding chunks returned.
	Sources   int
	Usage     Usage
	Error     error
	StartedAt time.Time
	Duration  time.Duration
}

// ObserverFunc is a convenience type for using a function as an Observer.
type ObserverFunc func(ctx context.Context, event CallEvent)

// OnCall implements Observer.
func (f ObserverFunc) OnCall(ctx context.Context, event CallEvent) {
	f(ctx, event)
}

// MultiObserver combines multiple observers into one.
type MultiObserver struct {
	observers []Observer
}

// NewMultiObserver creates an observer that dispatches to multiple observers.
// Nil observers are ignored.
func NewMultiObserver(observers ...Observer) *MultiObserver {
	m := &MultiObserver{}
	for _, obs := range observers {
		m.Add(obs)
	}
	return m
}

// OnCall dispatches the event to all registered observers.
func (m *MultiObserver) OnCall(ctx context.Context, event CallEvent) {
	for _, obs := range m.observers {
		obs.OnCall(ctx, event)
	}
}

// Add adds an observer to the multi-observer.
func (m *MultiObserver) Add(obs Observer) {
	if obs != nil {
		m.observers = append(m.observers, obs)
	}
}
