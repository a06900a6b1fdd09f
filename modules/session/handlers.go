package session

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"

	"golang.org/x/sync/errgroup"

	domain "github.com/example/secure-room-chat/domain/chat"
	"github.com/example/secure-room-chat/modules/fanout"
)

// HandleFrame processes one inbound frame. Only Active sessions accept
// commands; unrecognized or malformed input draws a warning and the session
// stays Active.
func (s *Session) HandleFrame(ctx context.Context, data []byte) {
	if s.State() != StateActive {
		return
	}

	var cmd Command
	if err := json.Unmarshal(data, &cmd); err != nil {
		s.log.Warn("Malformed command frame", "error", err)
		s.sendWarning("Malformed command.")
		return
	}

	switch cmd.Type {
	case CommandCreateMessage:
		s.handleCreateMessage(ctx, cmd.Payload)
	default:
		warning := fmt.Sprintf("%s isn't a valid command.", cmd.Type)
		s.log.Warn(warning)
		s.sendWarning(warning)
	}
}

// handleCreateMessage resolves the target room (by id, else exact member set,
// else creation), persists the encrypted message, and fans the resulting
// message.created event out: once to the room group for an existing room, or
// once to each member's private group when the room was just created, since
// no connection can be subscribed to a group that did not exist at its
// handshake.
func (s *Session) handleCreateMessage(ctx context.Context, payload CommandPayload) {
	msg := payload.Message
	if msg == nil {
		s.log.Warn("create.message payload is missing a message")
		s.sendWarning("create.message payload is missing a message.")
		return
	}

	usernames := msg.Usernames
	if !slices.Contains(usernames, s.user.Username) {
		usernames = append(usernames, s.user.Username)
	}

	room, err := s.deps.Resolver.Resolve(ctx, msg.RoomID, usernames)
	if err != nil {
		s.log.Error("Failed to resolve room", "error", err)
		s.sendError("Failed to resolve room.")
		return
	}

	if room != nil {
		member, err := s.deps.Store.IsMember(ctx, room.ID, s.user.ID)
		if err != nil {
			s.log.Error("Failed to check membership", "room", room.ID, "error", err)
			s.sendError("Failed to resolve room.")
			return
		}
		if !member {
			warning := "Logged-in user is not member of room."
			s.log.Warn(warning, "room", room.ID)
			s.sendWarning(warning)
			return
		}
	}

	newRoom := false
	if room == nil {
		room, err = s.deps.Resolver.CreateRoomWithMembers(ctx, usernames)
		if err != nil {
			s.log.Error("Failed to create room", "error", err)
			s.sendError("Failed to create room.")
			return
		}
		s.log.Info("Created room", "room", room.ID)
		newRoom = true
	}

	// A cipher fault degrades to empty content; it never aborts the command.
	ciphertext, err := s.deps.Cipher.Encrypt(msg.Content)
	if err != nil {
		ciphertext = ""
	}

	stored, err := s.deps.Store.CreateMessage(ctx, room.ID, s.user.ID, ciphertext)
	if err != nil {
		s.log.Error("Failed to create message", "room", room.ID, "error", err)
		s.sendError("Failed to create message.")
		return
	}
	s.log.Info("Created message", "message", stored.ID, "room", room.ID)

	event := fanout.Event{
		Type:    fanout.EventMessageCreated,
		Message: s.messageView(stored),
	}

	g, gctx := errgroup.WithContext(ctx)
	if newRoom {
		for _, username := range usernames {
			name := UserGroupName(username)
			g.Go(func() error {
				return s.deps.Layer.Send(gctx, name, event)
			})
		}
	} else {
		name, ok := s.deps.Registry.Name(room.ID)
		if !ok {
			name = GroupName(room.ID)
		}
		g.Go(func() error {
			return s.deps.Layer.Send(gctx, name, event)
		})
	}

	if err := g.Wait(); err != nil {
		s.log.Error("Failed to send message.created event to group(s)", "error", err)
		s.sendError("Failed to send message.created event to group(s).")
		return
	}

	s.log.Info("Sent message to groups", "message", stored.ID)
}

// handleMessageCreated forwards an event delivered through a group to the
// connection. When the event arrived via the private group the registry does
// not yet track this user in the room; register and subscribe to the room
// group so subsequent events arrive there instead. A subscription failure is
// reported but never closes the session.
func (s *Session) handleMessageCreated(ctx context.Context, event fanout.Event) {
	s.sendEvent(event)

	roomID := event.Message.RoomID
	if s.deps.Registry.UserInRoom(s.user.Username, roomID) {
		return
	}

	s.deps.Registry.Register(roomID, s.user.Username)
	name, ok := s.deps.Registry.Name(roomID)
	if !ok {
		name = GroupName(roomID)
	}
	if err := s.deps.Layer.Add(ctx, name, s.sub); err != nil {
		s.log.Error("Failed to add group", "group", name, "error", err)
		s.sendError(fmt.Sprintf("Failed to add group '%s'.", name))
		return
	}

	s.log.Info("Added new room group", "group", name)
}

// messageView builds the decrypted projection delivered to clients. A
// decryption fault degrades to empty content.
func (s *Session) messageView(msg *domain.Message) domain.MessageView {
	content, err := s.deps.Cipher.Decrypt(msg.Ciphertext)
	if err != nil {
		content = ""
	}
	return domain.MessageView{
		ID:        msg.ID,
		RoomID:    msg.RoomID,
		Sender:    s.user.Username,
		Content:   content,
		CreatedAt: msg.CreatedAt,
	}
}
