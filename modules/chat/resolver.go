package chat

import (
	"context"

	domain "github.com/example/secure-room-chat/domain/chat"
)

// RoomResolver locates or creates rooms. Resolution order used by callers:
// explicit id first, else exact member-set match, else create.
type RoomResolver struct {
	store *Store
}

// NewRoomResolver creates a new RoomResolver.
func NewRoomResolver(store *Store) *RoomResolver {
	return &RoomResolver{store: store}
}

// FindRoomByID returns the room with the given id, or nil when none exists.
func (r *RoomResolver) FindRoomByID(ctx context.Context, id uint) (*domain.Room, error) {
	return r.store.FindRoomByID(ctx, id)
}

// FindRoomByExactMembers matches a room containing exactly the given
// usernames, order-independent. No partial or subset match.
func (r *RoomResolver) FindRoomByExactMembers(ctx context.Context, usernames []string) (*domain.Room, error) {
	return r.store.FindRoomByExactMembers(ctx, usernames)
}

// CreateRoomWithMembers atomically creates a room plus one membership per
// username.
func (r *RoomResolver) CreateRoomWithMembers(ctx context.Context, usernames []string) (*domain.Room, error) {
	return r.store.CreateRoomWithMembers(ctx, usernames)
}

// Resolve finds a room by id when one is given (non-zero), falling back to an
// exact member-set match. Returns nil when neither locates a room.
func (r *RoomResolver) Resolve(ctx context.Context, roomID uint, usernames []string) (*domain.Room, error) {
	if roomID != 0 {
		room, err := r.FindRoomByID(ctx, roomID)
		if err != nil || room != nil {
			return room, err
		}
	}
	return r.FindRoomByExactMembers(ctx, usernames)
}
