package chat

import (
	"context"
	"errors"
	"slices"
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	domain "github.com/example/secure-room-chat/domain/chat"
)

// setupTestStore creates a Store over an in-memory SQLite database.
func setupTestStore(t *testing.T) *Store {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}

	err = db.AutoMigrate(
		&domain.User{},
		&domain.Room{},
		&domain.RoomMembership{},
		&domain.Message{},
	)
	if err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}

	return NewStore(db)
}

func seedUsers(t *testing.T, store *Store, usernames ...string) map[string]*domain.User {
	t.Helper()
	ctx := context.Background()

	users := make(map[string]*domain.User, len(usernames))
	for _, username := range usernames {
		user, err := store.CreateUser(ctx, username)
		if err != nil {
			t.Fatalf("failed to seed user %q: %v", username, err)
		}
		users[username] = user
	}
	return users
}

func TestStore_CreateRoomWithMembers(t *testing.T) {
	ctx := context.Background()
	store := setupTestStore(t)
	seedUsers(t, store, "alice", "bob")

	room, err := store.CreateRoomWithMembers(ctx, []string{"alice", "bob"})
	if err != nil {
		t.Fatalf("CreateRoomWithMembers() error = %v", err)
	}
	if room.ID == 0 {
		t.Fatal("CreateRoomWithMembers() returned zero room id")
	}

	var count int64
	if err := store.db.Model(&domain.RoomMembership{}).Where("room_id = ?", room.ID).Count(&count).Error; err != nil {
		t.Fatalf("failed to count memberships: %v", err)
	}
	if count != 2 {
		t.Errorf("expected 2 memberships, got %d", count)
	}
}

func TestStore_CreateRoomWithMembers_UnknownUser(t *testing.T) {
	ctx := context.Background()
	store := setupTestStore(t)
	seedUsers(t, store, "alice")

	_, err := store.CreateRoomWithMembers(ctx, []string{"alice", "ghost"})
	if !errors.Is(err, ErrUnknownUser) {
		t.Fatalf("CreateRoomWithMembers() error = %v, want ErrUnknownUser", err)
	}

	// The whole operation rolls back: no room, no membership residue.
	var rooms, memberships int64
	store.db.Model(&domain.Room{}).Count(&rooms)
	store.db.Model(&domain.RoomMembership{}).Count(&memberships)
	if rooms != 0 || memberships != 0 {
		t.Errorf("expected no residue, got %d rooms and %d memberships", rooms, memberships)
	}
}

func TestStore_FindRoomByExactMembers(t *testing.T) {
	ctx := context.Background()
	store := setupTestStore(t)
	seedUsers(t, store, "alice", "bob", "carol")

	pair, err := store.CreateRoomWithMembers(ctx, []string{"alice", "bob"})
	if err != nil {
		t.Fatalf("failed to create pair room: %v", err)
	}
	trio, err := store.CreateRoomWithMembers(ctx, []string{"alice", "bob", "carol"})
	if err != nil {
		t.Fatalf("failed to create trio room: %v", err)
	}

	tests := []struct {
		name      string
		usernames []string
		want      uint // 0 means no match
	}{
		{"exact pair", []string{"alice", "bob"}, pair.ID},
		{"order independent", []string{"bob", "alice"}, pair.ID},
		{"exact trio", []string{"carol", "alice", "bob"}, trio.ID},
		{"no subset match", []string{"alice"}, 0},
		{"no superset match", []string{"alice", "bob", "carol", "dave"}, 0},
		{"empty set", nil, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			room, err := store.FindRoomByExactMembers(ctx, tt.usernames)
			if err != nil {
				t.Fatalf("FindRoomByExactMembers() error = %v", err)
			}
			if tt.want == 0 {
				if room != nil {
					t.Errorf("FindRoomByExactMembers() = room %d, want nil", room.ID)
				}
				return
			}
			if room == nil {
				t.Fatal("FindRoomByExactMembers() = nil, want room")
			}
			if room.ID != tt.want {
				t.Errorf("FindRoomByExactMembers() = room %d, want %d", room.ID, tt.want)
			}
		})
	}
}

func TestStore_FindRoomByID(t *testing.T) {
	ctx := context.Background()
	store := setupTestStore(t)
	seedUsers(t, store, "alice")

	room, err := store.CreateRoomWithMembers(ctx, []string{"alice"})
	if err != nil {
		t.Fatalf("failed to create room: %v", err)
	}

	found, err := store.FindRoomByID(ctx, room.ID)
	if err != nil {
		t.Fatalf("FindRoomByID() error = %v", err)
	}
	if found == nil || found.ID != room.ID {
		t.Errorf("FindRoomByID() = %v, want room %d", found, room.ID)
	}

	missing, err := store.FindRoomByID(ctx, 9999)
	if err != nil {
		t.Fatalf("FindRoomByID() error = %v", err)
	}
	if missing != nil {
		t.Errorf("FindRoomByID(9999) = room %d, want nil", missing.ID)
	}
}

func TestStore_ListUserRoomIDs(t *testing.T) {
	ctx := context.Background()
	store := setupTestStore(t)
	users := seedUsers(t, store, "alice", "bob")

	first, _ := store.CreateRoomWithMembers(ctx, []string{"alice"})
	second, _ := store.CreateRoomWithMembers(ctx, []string{"alice", "bob"})

	roomIDs, err := store.ListUserRoomIDs(ctx, users["alice"].ID)
	if err != nil {
		t.Fatalf("ListUserRoomIDs() error = %v", err)
	}
	if !slices.Equal(roomIDs, []uint{first.ID, second.ID}) {
		t.Errorf("ListUserRoomIDs(alice) = %v, want [%d %d]", roomIDs, first.ID, second.ID)
	}

	roomIDs, err = store.ListUserRoomIDs(ctx, users["bob"].ID)
	if err != nil {
		t.Fatalf("ListUserRoomIDs() error = %v", err)
	}
	if !slices.Equal(roomIDs, []uint{second.ID}) {
		t.Errorf("ListUserRoomIDs(bob) = %v, want [%d]", roomIDs, second.ID)
	}
}

func TestStore_IsMember(t *testing.T) {
	ctx := context.Background()
	store := setupTestStore(t)
	users := seedUsers(t, store, "alice", "bob")

	room, _ := store.CreateRoomWithMembers(ctx, []string{"alice"})

	member, err := store.IsMember(ctx, room.ID, users["alice"].ID)
	if err != nil {
		t.Fatalf("IsMember() error = %v", err)
	}
	if !member {
		t.Error("IsMember(alice) = false, want true")
	}

	member, err = store.IsMember(ctx, room.ID, users["bob"].ID)
	if err != nil {
		t.Fatalf("IsMember() error = %v", err)
	}
	if member {
		t.Error("IsMember(bob) = true, want false")
	}
}

func TestStore_CreateMessage(t *testing.T) {
	ctx := context.Background()
	store := setupTestStore(t)
	users := seedUsers(t, store, "alice")

	room, _ := store.CreateRoomWithMembers(ctx, []string{"alice"})

	message, err := store.CreateMessage(ctx, room.ID, users["alice"].ID, "key:token")
	if err != nil {
		t.Fatalf("CreateMessage() error = %v", err)
	}
	if message.ID == 0 {
		t.Fatal("CreateMessage() returned zero message id")
	}

	var stored domain.Message
	if err := store.db.First(&stored, message.ID).Error; err != nil {
		t.Fatalf("failed to load stored message: %v", err)
	}
	if stored.Ciphertext != "key:token" {
		t.Errorf("stored ciphertext = %q, want %q", stored.Ciphertext, "key:token")
	}
	if stored.CreatedAt.IsZero() {
		t.Error("stored message CreatedAt should not be zero")
	}
}
