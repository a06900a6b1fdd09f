package fanout

import (
	"context"

	domain "github.com/example/secure-room-chat/domain/chat"
)

// EventMessageCreated is the only event kind delivered through groups.
const EventMessageCreated = "message.created"

// Event is the unit delivered to every subscriber of a group.
type Event struct {
	Type    string             `json:"type"`
	Message domain.MessageView `json:"message"`
}

// Subscriber is one connection's inbox. ID must be unique per connection so
// the same connection can be discarded from a group it joined.
type Subscriber struct {
	ID    string
	Inbox chan Event
}

// GroupLayer delivers events to every subscriber of a named group. The local
// implementation covers a single process; the Redis implementation propagates
// sends across process instances.
type GroupLayer interface {
	// Add subscribes sub to the group, creating the group if needed.
	Add(ctx context.Context, group string, sub *Subscriber) error
	// Discard unsubscribes sub from the group. Unknown groups and
	// subscribers are ignored.
	Discard(ctx context.Context, group string, sub *Subscriber) error
	// Send delivers the event to every current subscriber of the group.
	// Sending to a group with no subscribers is not an error.
	Send(ctx context.Context, group string, event Event) error
}
