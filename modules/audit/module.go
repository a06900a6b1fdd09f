package audit

import (
	"context"
	"fmt"
	"log"
	"log/slog"

	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/helper"

	"github.com/example/secure-room-chat/events"
)

// AuditModule records room and message creation from the event bus. It gives
// operators visibility without ever touching message content, which stays
// encrypted outside the fanout path.
type AuditModule struct{}

// Compile-time interface checks.
var _ mono.Module = (*AuditModule)(nil)
var _ mono.EventConsumerModule = (*AuditModule)(nil)

// NewModule creates a new AuditModule.
func NewModule() *AuditModule {
	return &AuditModule{}
}

// Name returns the module name.
func (m *AuditModule) Name() string {
	return "audit"
}

// Start initializes the module.
func (m *AuditModule) Start(_ context.Context) error {
	log.Println("[audit] Module started")
	return nil
}

// Stop shuts down the module.
func (m *AuditModule) Stop(_ context.Context) error {
	log.Println("[audit] Module stopped")
	return nil
}

// RegisterEventConsumers registers event handlers.
func (m *AuditModule) RegisterEventConsumers(registry mono.EventRegistry) error {
	if err := helper.RegisterTypedEventConsumer(
		registry, events.RoomCreatedV1, m.handleRoomCreated, m,
	); err != nil {
		return fmt.Errorf("failed to register RoomCreated consumer: %w", err)
	}

	if err := helper.RegisterTypedEventConsumer(
		registry, events.MessageCreatedV1, m.handleMessageCreated, m,
	); err != nil {
		return fmt.Errorf("failed to register MessageCreated consumer: %w", err)
	}

	log.Println("[audit] Registered event consumers: RoomCreated, MessageCreated")
	return nil
}

func (m *AuditModule) handleRoomCreated(_ context.Context, event events.RoomCreatedEvent, _ *mono.Msg) error {
	slog.Info("Room created",
		"room", event.RoomID,
		"members", len(event.Usernames),
		"at", event.Timestamp)
	return nil
}

func (m *AuditModule) handleMessageCreated(_ context.Context, event events.MessageCreatedEvent, _ *mono.Msg) error {
	slog.Info("Message created",
		"message", event.MessageID,
		"room", event.RoomID,
		"sender", event.SenderID,
		"at", event.Timestamp)
	return nil
}
