package session

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	domain "github.com/example/secure-room-chat/domain/chat"
	"github.com/example/secure-room-chat/modules/fanout"
)

// State is the session lifecycle state. Transitions are Connecting to Active
// to Closed; Closed is terminal and Connecting is never re-entered.
type State int

const (
	StateConnecting State = iota
	StateActive
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateActive:
		return "active"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

const inboxSize = 16

// Deps are the collaborators a session composes. The registry is shared
// process-local state; everything else is per-call.
type Deps struct {
	Registry *ConnectionRegistry
	Resolver RoomResolver
	Store    Store
	Cipher   Cipher
	Layer    fanout.GroupLayer
}

// Session is the per-connection protocol state machine. One session runs per
// live connection, created after a successful handshake and destroyed on
// disconnect.
type Session struct {
	id   string
	user domain.User
	conn Conn
	deps Deps
	sub  *fanout.Subscriber
	log  *slog.Logger

	handlers map[string]func(context.Context, fanout.Event)

	writeMu sync.Mutex

	stateMu sync.Mutex
	state   State

	done chan struct{}
}

// New creates a session for an authenticated user in the Connecting state.
func New(user domain.User, conn Conn, deps Deps) *Session {
	s := &Session{
		id:   uuid.New().String(),
		user: user,
		conn: conn,
		deps: deps,
		log:  slog.With("session", user.Username),
		done: make(chan struct{}),
	}
	s.sub = &fanout.Subscriber{ID: s.id, Inbox: make(chan fanout.Event, inboxSize)}
	s.handlers = map[string]func(context.Context, fanout.Event){
		fanout.EventMessageCreated: s.handleMessageCreated,
	}
	return s
}

// User returns the session's resolved identity.
func (s *Session) User() domain.User {
	return s.user
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	return s.state
}

// Start transitions Connecting to Active: it loads the identity's persisted
// room memberships, registers them, and subscribes to each room group plus
// the private per-identity group, all concurrently as one batch. A failure
// anywhere leaves the session unusable; the caller must Close it.
func (s *Session) Start(ctx context.Context) error {
	roomIDs, err := s.deps.Store.ListUserRoomIDs(ctx, s.user.ID)
	if err != nil {
		s.log.Error("Failed to load room memberships", "error", err)
		s.sendError("Failed to load rooms.")
		return err
	}

	for _, roomID := range roomIDs {
		s.deps.Registry.Register(roomID, s.user.Username)
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, roomID := range roomIDs {
		name := GroupName(roomID)
		g.Go(func() error {
			return s.deps.Layer.Add(gctx, name, s.sub)
		})
	}
	g.Go(func() error {
		return s.deps.Layer.Add(gctx, UserGroupName(s.user.Username), s.sub)
	})

	if err := g.Wait(); err != nil {
		s.log.Error("Failed to add groups", "error", err)
		s.sendError("Failed to add groups.")
		return err
	}

	s.setState(StateActive)
	go s.deliver(ctx)

	s.log.Info("Subscribed to groups", "rooms", len(roomIDs))
	return nil
}

// Close transitions to Closed: it unsubscribes from every group tracked for
// this identity and removes the identity from the registry. Unsubscribe
// failures are logged, not retried, and never block teardown. Close is
// idempotent.
func (s *Session) Close(ctx context.Context) {
	s.stateMu.Lock()
	if s.state == StateClosed {
		s.stateMu.Unlock()
		return
	}
	s.state = StateClosed
	s.stateMu.Unlock()

	close(s.done)

	g, gctx := errgroup.WithContext(ctx)
	for _, name := range s.deps.Registry.UserRoomNames(s.user.Username) {
		g.Go(func() error {
			return s.deps.Layer.Discard(gctx, name, s.sub)
		})
	}
	g.Go(func() error {
		return s.deps.Layer.Discard(gctx, UserGroupName(s.user.Username), s.sub)
	})
	if err := g.Wait(); err != nil {
		s.log.Error("Failed to discard groups", "error", err)
	}

	s.deps.Registry.RemoveUser(s.user.Username)
	s.log.Info("Discarded groups")
}

// deliver consumes the inbox and dispatches each event to its registered
// handler until the session closes.
func (s *Session) deliver(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.done:
			return
		case event := <-s.sub.Inbox:
			handler, ok := s.handlers[event.Type]
			if !ok {
				s.log.Warn("No handler for event", "event", event.Type)
				continue
			}
			handler(ctx, event)
		}
	}
}

func (s *Session) setState(state State) {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	if s.state != StateClosed {
		s.state = state
	}
}

func (s *Session) sendEvent(event any) {
	s.write(eventFrame{Event: event})
}

func (s *Session) sendError(msg string) {
	s.write(errorFrame{Error: msg})
}

func (s *Session) sendWarning(msg string) {
	s.write(warningFrame{Warning: msg})
}

func (s *Session) sendMessage(msg string) {
	s.write(messageFrame{Message: msg})
}

func (s *Session) write(frame any) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if err := s.conn.WriteJSON(frame); err != nil {
		s.log.Error("Failed to write frame", "error", err)
	}
}
