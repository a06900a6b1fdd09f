package chat

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"time"

	"github.com/go-monolith/mono"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	domain "github.com/example/secure-room-chat/domain/chat"
	"github.com/example/secure-room-chat/events"
)

// Config holds the chat module configuration.
type Config struct {
	DatabasePath string `env:"CHAT_DB_PATH" envDefault:"chat.db"`
}

// ChatModule owns chat persistence: rooms, memberships, and messages. It
// publishes RoomCreated and MessageCreated events on the bus after writes.
type ChatModule struct {
	cfg      Config
	db       *gorm.DB
	store    *Store
	resolver *RoomResolver
	eventBus mono.EventBus
}

// Compile-time interface checks.
var _ mono.Module = (*ChatModule)(nil)
var _ mono.EventBusAwareModule = (*ChatModule)(nil)
var _ mono.EventEmitterModule = (*ChatModule)(nil)
var _ mono.HealthCheckableModule = (*ChatModule)(nil)

// NewModule creates a new ChatModule.
func NewModule(cfg Config) *ChatModule {
	return &ChatModule{cfg: cfg}
}

// Name returns the module name.
func (m *ChatModule) Name() string {
	return "chat"
}

// SetEventBus receives the EventBus from the framework.
func (m *ChatModule) SetEventBus(bus mono.EventBus) {
	m.eventBus = bus
}

// EmitEvents declares the events this module can emit.
func (m *ChatModule) EmitEvents() []mono.BaseEventDefinition {
	return []mono.BaseEventDefinition{
		events.RoomCreatedV1.ToBase(),
		events.MessageCreatedV1.ToBase(),
	}
}

// Start opens the database and migrates the schema.
func (m *ChatModule) Start(_ context.Context) error {
	db, err := gorm.Open(sqlite.Open(m.cfg.DatabasePath), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	m.db = db

	err = db.AutoMigrate(
		&domain.User{},
		&domain.Room{},
		&domain.RoomMembership{},
		&domain.Message{},
	)
	if err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}

	m.store = NewStore(db)
	m.resolver = NewRoomResolver(m.store)

	log.Printf("[chat] Module started (database: %s)", m.cfg.DatabasePath)
	return nil
}

// Stop shuts down the module.
func (m *ChatModule) Stop(_ context.Context) error {
	if m.db != nil {
		sqlDB, err := m.db.DB()
		if err == nil {
			sqlDB.Close()
		}
	}
	log.Println("[chat] Module stopped")
	return nil
}

// Health returns the health status of the module.
func (m *ChatModule) Health(_ context.Context) mono.HealthStatus {
	if m.db == nil {
		return mono.HealthStatus{
			Healthy: false,
			Message: "database not initialized",
		}
	}

	sqlDB, err := m.db.DB()
	if err != nil {
		return mono.HealthStatus{
			Healthy: false,
			Message: fmt.Sprintf("failed to get database connection: %v", err),
		}
	}
	if err := sqlDB.Ping(); err != nil {
		return mono.HealthStatus{
			Healthy: false,
			Message: fmt.Sprintf("database ping failed: %v", err),
		}
	}

	return mono.HealthStatus{
		Healthy: true,
		Message: "operational",
		Details: map[string]any{
			"database": m.cfg.DatabasePath,
		},
	}
}

// Store returns the persistence layer. Valid after Start.
func (m *ChatModule) Store() *Store {
	return m.store
}

// Resolver returns the room resolver. Valid after Start.
func (m *ChatModule) Resolver() *RoomResolver {
	return m.resolver
}

// Resolve finds a room by id when one is given, falling back to an exact
// member-set match.
func (m *ChatModule) Resolve(ctx context.Context, roomID uint, usernames []string) (*domain.Room, error) {
	return m.resolver.Resolve(ctx, roomID, usernames)
}

// CreateRoomWithMembers atomically creates a room plus its memberships and
// publishes a RoomCreated event.
func (m *ChatModule) CreateRoomWithMembers(ctx context.Context, usernames []string) (*domain.Room, error) {
	room, err := m.resolver.CreateRoomWithMembers(ctx, usernames)
	if err != nil {
		return nil, err
	}

	if m.eventBus != nil {
		event := events.RoomCreatedEvent{
			RoomID:    room.ID,
			Usernames: usernames,
			Timestamp: time.Now(),
		}
		if err := events.RoomCreatedV1.Publish(m.eventBus, event, nil); err != nil {
			slog.Warn("Failed to publish RoomCreated event", "error", err)
		}
	}

	return room, nil
}

// CreateMessage persists an encrypted message and publishes a MessageCreated
// event.
func (m *ChatModule) CreateMessage(ctx context.Context, roomID, senderID uint, ciphertext string) (*domain.Message, error) {
	message, err := m.store.CreateMessage(ctx, roomID, senderID, ciphertext)
	if err != nil {
		return nil, err
	}

	if m.eventBus != nil {
		event := events.MessageCreatedEvent{
			MessageID: message.ID,
			RoomID:    message.RoomID,
			SenderID:  message.SenderID,
			Timestamp: message.CreatedAt,
		}
		if err := events.MessageCreatedV1.Publish(m.eventBus, event, nil); err != nil {
			slog.Warn("Failed to publish MessageCreated event", "error", err)
		}
	}

	return message, nil
}

// ListUserRoomIDs returns the ids of every room the user belongs to.
func (m *ChatModule) ListUserRoomIDs(ctx context.Context, userID uint) ([]uint, error) {
	return m.store.ListUserRoomIDs(ctx, userID)
}

// IsMember reports whether the user holds a membership in the room.
func (m *ChatModule) IsMember(ctx context.Context, roomID, userID uint) (bool, error) {
	return m.store.IsMember(ctx, roomID, userID)
}

// FindUserByID returns the user with the given id, or nil when none exists.
func (m *ChatModule) FindUserByID(ctx context.Context, id uint) (*domain.User, error) {
	return m.store.FindUserByID(ctx, id)
}
