package events

import (
	"time"

	"github.com/go-monolith/mono/pkg/helper"
)

// RoomCreatedEvent is emitted when a room and its memberships are persisted.
type RoomCreatedEvent struct {
	RoomID    uint      `json:"room_id"`
	Usernames []string  `json:"usernames"`
	Timestamp time.Time `json:"timestamp"`
}

// MessageCreatedEvent is emitted when a message is persisted. It carries no
// content; message bodies are confidential and only leave the service through
// the fanout layer.
type MessageCreatedEvent struct {
	MessageID uint      `json:"message_id"`
	RoomID    uint      `json:"room_id"`
	SenderID  uint      `json:"sender_id"`
	Timestamp time.Time `json:"timestamp"`
}

// Event definitions for the chat domain.
var (
	RoomCreatedV1 = helper.EventDefinition[RoomCreatedEvent](
		"chat",
		"RoomCreated",
		"v1",
	)

	MessageCreatedV1 = helper.EventDefinition[MessageCreatedEvent](
		"chat",
		"MessageCreated",
		"v1",
	)
)
