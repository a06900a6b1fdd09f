package session

import (
	"fmt"
	"slices"
	"sync"
)

// GroupName returns the canonical fanout group name for a room.
func GroupName(roomID uint) string {
	return fmt.Sprintf("chat_room_%d", roomID)
}

// UserGroupName returns the private per-identity group name. It reaches one
// identity regardless of which rooms it is locally subscribed to.
func UserGroupName(username string) string {
	return fmt.Sprintf("chat_user_%s", username)
}

type roomEntry struct {
	name  string
	users []string // sorted
}

// ConnectionRegistry tracks which fanout groups the connections on this
// process currently need. It is local bookkeeping only, shared by every
// session on the process; persisted membership stays authoritative. It
// provides no cross-process coordination.
type ConnectionRegistry struct {
	mu    sync.Mutex
	rooms map[uint]*roomEntry
	users map[string][]uint
}

// NewConnectionRegistry creates an empty registry. One instance is shared by
// all sessions of a process and injected explicitly; there is no package
// singleton.
func NewConnectionRegistry() *ConnectionRegistry {
	return &ConnectionRegistry{
		rooms: make(map[uint]*roomEntry),
		users: make(map[string][]uint),
	}
}

// Register unions the usernames into the room's tracked set, creating the
// entry if absent, and appends the room to each username's room list.
// Registering the same (room, user) pair repeatedly is idempotent. A call
// with no usernames is a no-op; an entry nobody references could never be
// removed, since rooms are only deleted when their last user leaves.
func (r *ConnectionRegistry) Register(roomID uint, usernames ...string) {
	if len(usernames) == 0 {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.rooms[roomID]
	if !ok {
		entry = &roomEntry{name: GroupName(roomID)}
		r.rooms[roomID] = entry
	}
	for _, username := range usernames {
		if !slices.Contains(entry.users, username) {
			entry.users = append(entry.users, username)
		}
	}
	slices.Sort(entry.users)

	for _, username := range usernames {
		if !slices.Contains(r.users[username], roomID) {
			r.users[username] = append(r.users[username], roomID)
		}
	}
}

// Name returns the group name tracked for a room.
func (r *ConnectionRegistry) Name(roomID uint) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.rooms[roomID]
	if !ok {
		return "", false
	}
	return entry.name, true
}

// UserRoomNames returns the group names of every room tracked for the user.
func (r *ConnectionRegistry) UserRoomNames(username string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	var names []string
	for _, roomID := range r.users[username] {
		if entry, ok := r.rooms[roomID]; ok {
			names = append(names, entry.name)
		}
	}
	return names
}

// RemoveUser detaches the user from every tracked room, deleting any room
// entry left with no users.
func (r *ConnectionRegistry) RemoveUser(username string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	roomIDs := r.users[username]
	delete(r.users, username)

	for _, roomID := range roomIDs {
		entry, ok := r.rooms[roomID]
		if !ok {
			continue
		}
		entry.users = slices.DeleteFunc(entry.users, func(u string) bool {
			return u == username
		})
		if len(entry.users) == 0 {
			delete(r.rooms, roomID)
		}
	}
}

// UserInRoom reports whether the user is tracked as a member of the room.
func (r *ConnectionRegistry) UserInRoom(username string, roomID uint) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.rooms[roomID]
	return ok && slices.Contains(entry.users, username)
}

// RoomUsers returns the usernames tracked for a room, sorted.
func (r *ConnectionRegistry) RoomUsers(roomID uint) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.rooms[roomID]
	if !ok {
		return nil
	}
	return slices.Clone(entry.users)
}
