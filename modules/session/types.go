package session

import (
	"context"

	domain "github.com/example/secure-room-chat/domain/chat"
)

// CommandCreateMessage is the only recognized inbound command type.
const CommandCreateMessage = "create.message"

// Command is an inbound frame from the connection.
type Command struct {
	Type    string         `json:"type"`
	Payload CommandPayload `json:"payload"`
}

// CommandPayload wraps command arguments.
type CommandPayload struct {
	Message *MessageCommand `json:"message"`
}

// MessageCommand carries the create.message arguments. RoomID zero means no
// explicit room; resolution then falls back to the exact member set.
type MessageCommand struct {
	RoomID    uint     `json:"room_id,omitempty"`
	Usernames []string `json:"usernames,omitempty"`
	Content   string   `json:"content"`
}

// Outbound frames carry exactly one key, preserving the error (system fault)
// versus warning (caller fault) distinction.
type (
	eventFrame struct {
		Event any `json:"event"`
	}
	errorFrame struct {
		Error string `json:"error"`
	}
	warningFrame struct {
		Warning string `json:"warning"`
	}
	messageFrame struct {
		Message string `json:"message"`
	}
)

// Conn is the transport surface a session writes to.
type Conn interface {
	WriteJSON(v any) error
}

// RoomResolver locates or creates rooms. Resolve prefers an explicit id and
// falls back to an exact member-set match, returning nil when neither finds
// a room.
type RoomResolver interface {
	Resolve(ctx context.Context, roomID uint, usernames []string) (*domain.Room, error)
	CreateRoomWithMembers(ctx context.Context, usernames []string) (*domain.Room, error)
}

// Store is the slice of persistence the session needs.
type Store interface {
	ListUserRoomIDs(ctx context.Context, userID uint) ([]uint, error)
	CreateMessage(ctx context.Context, roomID, senderID uint, ciphertext string) (*domain.Message, error)
	IsMember(ctx context.Context, roomID, userID uint) (bool, error)
}

// Cipher provides transparent confidentiality for message bodies.
type Cipher interface {
	Encrypt(plaintext string) (string, error)
	Decrypt(ciphertext string) (string, error)
}
