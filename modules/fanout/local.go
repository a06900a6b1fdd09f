package fanout

import (
	"context"
	"log/slog"
	"sync"
)

// LocalLayer delivers events to subscribers within this process.
type LocalLayer struct {
	mu     sync.RWMutex
	groups map[string]map[string]*Subscriber
}

var _ GroupLayer = (*LocalLayer)(nil)

// NewLocalLayer creates a new LocalLayer.
func NewLocalLayer() *LocalLayer {
	return &LocalLayer{
		groups: make(map[string]map[string]*Subscriber),
	}
}

// Add subscribes sub to the group.
func (l *LocalLayer) Add(_ context.Context, group string, sub *Subscriber) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.groups[group] == nil {
		l.groups[group] = make(map[string]*Subscriber)
	}
	l.groups[group][sub.ID] = sub
	return nil
}

// Discard unsubscribes sub from the group, dropping the group once empty.
func (l *LocalLayer) Discard(_ context.Context, group string, sub *Subscriber) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	subs, ok := l.groups[group]
	if !ok {
		return nil
	}
	delete(subs, sub.ID)
	if len(subs) == 0 {
		delete(l.groups, group)
	}
	return nil
}

// Send delivers the event to every subscriber of the group. A subscriber
// whose inbox is full misses the event; that is logged, not retried.
func (l *LocalLayer) Send(_ context.Context, group string, event Event) error {
	l.mu.RLock()
	defer l.mu.RUnlock()

	for _, sub := range l.groups[group] {
		select {
		case sub.Inbox <- event:
		default:
			slog.Warn("Dropped event for slow subscriber",
				"group", group,
				"subscriber", sub.ID,
				"event", event.Type)
		}
	}
	return nil
}

// GroupSize returns the number of local subscribers in the group.
func (l *LocalLayer) GroupSize(group string) int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.groups[group])
}
