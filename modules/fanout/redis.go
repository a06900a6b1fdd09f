package fanout

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/redis/go-redis/v9"
)

// RedisLayer propagates group sends across process instances via Redis
// pub/sub. Local subscriber bookkeeping is delegated to a LocalLayer; one
// Redis subscription per group is held while any local subscriber remains.
type RedisLayer struct {
	client *redis.Client
	local  *LocalLayer

	mu   sync.Mutex
	subs map[string]*redis.PubSub
}

var _ GroupLayer = (*RedisLayer)(nil)

// NewRedisLayer creates a new RedisLayer.
func NewRedisLayer(client *redis.Client) *RedisLayer {
	return &RedisLayer{
		client: client,
		local:  NewLocalLayer(),
		subs:   make(map[string]*redis.PubSub),
	}
}

// Add subscribes sub to the group, opening the group's Redis subscription on
// first local use.
func (r *RedisLayer) Add(ctx context.Context, group string, sub *Subscriber) error {
	if err := r.local.Add(ctx, group, sub); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.subs[group]; ok {
		return nil
	}

	ps := r.client.Subscribe(ctx, channelName(group))
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		_ = r.local.Discard(ctx, group, sub)
		return fmt.Errorf("failed to subscribe to group %q: %w", group, err)
	}
	r.subs[group] = ps
	go r.forward(group, ps)
	return nil
}

// Discard unsubscribes sub from the group, closing the Redis subscription
// once no local subscriber remains.
func (r *RedisLayer) Discard(ctx context.Context, group string, sub *Subscriber) error {
	if err := r.local.Discard(ctx, group, sub); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.local.GroupSize(group) == 0 {
		if ps, ok := r.subs[group]; ok {
			delete(r.subs, group)
			if err := ps.Close(); err != nil {
				return fmt.Errorf("failed to unsubscribe from group %q: %w", group, err)
			}
		}
	}
	return nil
}

// Send publishes the event to the group's Redis channel. Every instance
// holding local subscribers for the group forwards it to them.
func (r *RedisLayer) Send(ctx context.Context, group string, event Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}
	if err := r.client.Publish(ctx, channelName(group), data).Err(); err != nil {
		return fmt.Errorf("failed to publish to group %q: %w", group, err)
	}
	return nil
}

// Close tears down every open subscription.
func (r *RedisLayer) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for group, ps := range r.subs {
		delete(r.subs, group)
		_ = ps.Close()
	}
	return nil
}

func (r *RedisLayer) forward(group string, ps *redis.PubSub) {
	for msg := range ps.Channel() {
		var event Event
		if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
			slog.Error("Failed to decode group event", "group", group, "error", err)
			continue
		}
		_ = r.local.Send(context.Background(), group, event)
	}
}

func channelName(group string) string {
	return "fanout:" + group
}
