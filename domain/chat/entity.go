package chat

import "time"

// User is a registered account. Account management (registration, password
// reset, profile search) lives outside this service; users are only read here.
type User struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Username  string    `gorm:"uniqueIndex;size:150;not null" json:"username"`
	CreatedAt time.Time `json:"created_at"`
}

// Room is a persisted chat context. Its member set is fixed at creation;
// there is no add or remove member operation.
type Room struct {
	ID          uint             `gorm:"primaryKey" json:"id"`
	CreatedAt   time.Time        `json:"created_at"`
	Memberships []RoomMembership `json:"-"`
}

// RoomMembership links one user to one room. At most one row exists per
// (room, user) pair.
type RoomMembership struct {
	ID       uint      `gorm:"primaryKey" json:"id"`
	RoomID   uint      `gorm:"uniqueIndex:idx_room_user;not null" json:"room_id"`
	UserID   uint      `gorm:"uniqueIndex:idx_room_user;not null" json:"user_id"`
	JoinedAt time.Time `gorm:"autoCreateTime" json:"joined_at"`

	Room Room `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	User User `gorm:"constraint:OnDelete:CASCADE" json:"-"`
}

// Message is a persisted chat message. Ciphertext is written once at creation
// and never re-encrypted; plaintext is never stored.
type Message struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	CreatedAt  time.Time `json:"created_at"`
	RoomID     uint      `gorm:"index;not null" json:"room_id"`
	SenderID   uint      `gorm:"index;not null" json:"sender_id"`
	Ciphertext string    `gorm:"column:content" json:"-"`

	Room   Room `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	Sender User `gorm:"constraint:OnDelete:CASCADE" json:"-"`
}

// MessageView is the decrypted projection of a message as delivered to
// connected clients. Content is empty when decryption fails.
type MessageView struct {
	ID        uint      `json:"id"`
	RoomID    uint      `json:"room"`
	Sender    string    `json:"sender"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}
