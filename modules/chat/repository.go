package chat

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	domain "github.com/example/secure-room-chat/domain/chat"
)

var (
	// ErrUnknownUser is returned when a referenced username does not exist.
	ErrUnknownUser = errors.New("unknown user")
)

// Store handles chat persistence using GORM.
type Store struct {
	db *gorm.DB
}

// NewStore creates a new Store.
func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// FindRoomByID returns the room with the given id, or nil when none exists.
func (s *Store) FindRoomByID(ctx context.Context, id uint) (*domain.Room, error) {
	var room domain.Room
	err := s.db.WithContext(ctx).First(&room, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find room %d: %w", id, err)
	}
	return &room, nil
}

// FindRoomByExactMembers returns a room whose member set is exactly the given
// usernames, independent of order. Subset matches do not count: the room's
// membership cardinality must equal len(usernames). When several rooms match
// (see the creation race noted in DESIGN.md), the oldest wins.
func (s *Store) FindRoomByExactMembers(ctx context.Context, usernames []string) (*domain.Room, error) {
	if len(usernames) == 0 {
		return nil, nil
	}

	var roomIDs []uint
	err := s.db.WithContext(ctx).
		Model(&domain.RoomMembership{}).
		Select("room_memberships.room_id").
		Joins("JOIN users ON users.id = room_memberships.user_id").
		Where("users.username IN ?", usernames).
		Group("room_memberships.room_id").
		Having("COUNT(DISTINCT users.id) = ?", len(usernames)).
		Having(
			"(SELECT COUNT(*) FROM room_memberships rm WHERE rm.room_id = room_memberships.room_id) = ?",
			len(usernames),
		).
		Order("room_memberships.room_id").
		Pluck("room_memberships.room_id", &roomIDs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to match room by members: %w", err)
	}
	if len(roomIDs) == 0 {
		return nil, nil
	}

	return s.FindRoomByID(ctx, roomIDs[0])
}

// CreateRoomWithMembers creates a room and one membership per username as a
// single transaction. Any failure rolls the whole operation back, leaving no
// residue.
func (s *Store) CreateRoomWithMembers(ctx context.Context, usernames []string) (*domain.Room, error) {
	if len(usernames) == 0 {
		return nil, fmt.Errorf("%w: no members given", ErrUnknownUser)
	}

	users, err := s.findUsersByUsernames(ctx, usernames)
	if err != nil {
		return nil, err
	}
	if len(users) != len(usernames) {
		return nil, fmt.Errorf("%w: %d of %d usernames resolved", ErrUnknownUser, len(users), len(usernames))
	}

	var room domain.Room
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&room).Error; err != nil {
			return fmt.Errorf("failed to create room: %w", err)
		}
		for _, user := range users {
			membership := domain.RoomMembership{RoomID: room.ID, UserID: user.ID}
			if err := tx.Create(&membership).Error; err != nil {
				return fmt.Errorf("failed to create membership for %q: %w", user.Username, err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &room, nil
}

// CreateMessage persists a message referencing the room and sender. The
// ciphertext is stored as given; this layer never sees plaintext.
func (s *Store) CreateMessage(ctx context.Context, roomID, senderID uint, ciphertext string) (*domain.Message, error) {
	message := domain.Message{
		RoomID:     roomID,
		SenderID:   senderID,
		Ciphertext: ciphertext,
	}
	if err := s.db.WithContext(ctx).Create(&message).Error; err != nil {
		return nil, fmt.Errorf("failed to create message: %w", err)
	}
	return &message, nil
}

// ListUserRoomIDs returns the ids of every room the user is a member of.
func (s *Store) ListUserRoomIDs(ctx context.Context, userID uint) ([]uint, error) {
	var roomIDs []uint
	err := s.db.WithContext(ctx).
		Model(&domain.RoomMembership{}).
		Where("user_id = ?", userID).
		Order("room_id").
		Pluck("room_id", &roomIDs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list rooms for user %d: %w", userID, err)
	}
	return roomIDs, nil
}

// IsMember reports whether the user holds a membership in the room.
func (s *Store) IsMember(ctx context.Context, roomID, userID uint) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).
		Model(&domain.RoomMembership{}).
		Where("room_id = ? AND user_id = ?", roomID, userID).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("failed to check membership: %w", err)
	}
	return count > 0, nil
}

// FindUserByID returns the user with the given id, or nil when none exists.
func (s *Store) FindUserByID(ctx context.Context, id uint) (*domain.User, error) {
	var user domain.User
	err := s.db.WithContext(ctx).First(&user, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find user %d: %w", id, err)
	}
	return &user, nil
}

// CreateUser persists a new user. Account creation belongs to an external
// service; this exists for seeding and tests.
func (s *Store) CreateUser(ctx context.Context, username string) (*domain.User, error) {
	user := domain.User{Username: username}
	if err := s.db.WithContext(ctx).Create(&user).Error; err != nil {
		return nil, fmt.Errorf("failed to create user %q: %w", username, err)
	}
	return &user, nil
}

func (s *Store) findUsersByUsernames(ctx context.Context, usernames []string) ([]domain.User, error) {
	var users []domain.User
	err := s.db.WithContext(ctx).
		Where("username IN ?", usernames).
		Find(&users).Error
	if err != nil {
		return nil, fmt.Errorf("failed to resolve usernames: %w", err)
	}
	return users, nil
}
