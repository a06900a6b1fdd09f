package chat

import (
	"context"
	"testing"
)

func TestRoomResolver_ResolveSameSetTwice(t *testing.T) {
	ctx := context.Background()
	store := setupTestStore(t)
	seedUsers(t, store, "alice", "bob", "carol")
	resolver := NewRoomResolver(store)

	room, err := resolver.CreateRoomWithMembers(ctx, []string{"alice", "bob", "carol"})
	if err != nil {
		t.Fatalf("CreateRoomWithMembers() error = %v", err)
	}

	// Resolving the same set twice in different input orders returns the
	// same room.
	first, err := resolver.Resolve(ctx, 0, []string{"carol", "alice", "bob"})
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	second, err := resolver.Resolve(ctx, 0, []string{"bob", "carol", "alice"})
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}

	if first == nil || second == nil {
		t.Fatal("Resolve() returned nil room for an existing member set")
	}
	if first.ID != room.ID || second.ID != room.ID {
		t.Errorf("Resolve() = rooms %d and %d, want %d both times", first.ID, second.ID, room.ID)
	}
}

func TestRoomResolver_ResolvePrefersID(t *testing.T) {
	ctx := context.Background()
	store := setupTestStore(t)
	seedUsers(t, store, "alice", "bob")
	resolver := NewRoomResolver(store)

	byMembers, _ := resolver.CreateRoomWithMembers(ctx, []string{"alice"})
	byID, _ := resolver.CreateRoomWithMembers(ctx, []string{"alice", "bob"})

	room, err := resolver.Resolve(ctx, byID.ID, []string{"alice"})
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if room.ID != byID.ID {
		t.Errorf("Resolve() = room %d, want explicit id %d over member match %d", room.ID, byID.ID, byMembers.ID)
	}
}

func TestRoomResolver_ResolveUnknown(t *testing.T) {
	ctx := context.Background()
	store := setupTestStore(t)
	seedUsers(t, store, "alice")
	resolver := NewRoomResolver(store)

	room, err := resolver.Resolve(ctx, 0, []string{"alice"})
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if room != nil {
		t.Errorf("Resolve() = room %d, want nil for unknown set", room.ID)
	}
}

// Room creation is query-then-create with no member-set uniqueness
// constraint, so two creations for an identical set produce two rooms. This
// asserts the current behavior; the dedup race and the recommended
// canonicalized-key constraint are noted in DESIGN.md.
func TestRoomResolver_DuplicateMemberSets(t *testing.T) {
	ctx := context.Background()
	store := setupTestStore(t)
	seedUsers(t, store, "alice", "bob")
	resolver := NewRoomResolver(store)

	first, err := resolver.CreateRoomWithMembers(ctx, []string{"alice", "bob"})
	if err != nil {
		t.Fatalf("CreateRoomWithMembers() error = %v", err)
	}
	second, err := resolver.CreateRoomWithMembers(ctx, []string{"alice", "bob"})
	if err != nil {
		t.Fatalf("CreateRoomWithMembers() error = %v", err)
	}
	if first.ID == second.ID {
		t.Fatal("expected two distinct rooms for duplicate creations")
	}

	// Resolution picks the oldest deterministically.
	room, err := resolver.Resolve(ctx, 0, []string{"bob", "alice"})
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if room.ID != first.ID {
		t.Errorf("Resolve() = room %d, want oldest room %d", room.ID, first.ID)
	}
}
