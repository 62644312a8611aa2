package realtime

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/redis/go-redis/v9"
)

// DefaultChannel is the pub/sub channel shared by all server instances.
const DefaultChannel = "fridgechef:changes"

// RedisBroker relays keys through Redis pub/sub so every instance's Hub sees
// writes made on any instance.
type RedisBroker struct {
	client  *redis.Client
	channel string
	pubsub  *redis.PubSub
	out     chan Key
	once    sync.Once
	wg      sync.WaitGroup
}

// NewRedisBroker subscribes to channel and waits for the subscription to be
// confirmed before returning.
func NewRedisBroker(ctx context.Context, client *redis.Client, channel string) (*RedisBroker, error) {
	if channel == "" {
		channel = DefaultChannel
	}
	pubsub := client.Subscribe(ctx, channel)
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("redis subscribe %s: %w", channel, err)
	}

	b := &RedisBroker{
		client:  client,
		channel: channel,
		pubsub:  pubsub,
		out:     make(chan Key, 256),
	}
	b.wg.Add(1)
	go b.relay()
	return b, nil
}

func (b *RedisBroker) relay() {
	defer b.wg.Done()
	defer close(b.out)
	for msg := range b.pubsub.Channel() {
		key, ok := ParseKey(msg.Payload)
		if !ok {
			slog.Warn("realtime: dropping malformed change key", "payload", msg.Payload)
			continue
		}
		b.out <- key
	}
}

func (b *RedisBroker) Publish(ctx context.Context, key Key) error {
	return b.client.Publish(ctx, b.channel, key.String()).Err()
}

func (b *RedisBroker) Messages() <-chan Key { return b.out }

// Close unsubscribes; the relay goroutine drains and closes Messages.
func (b *RedisBroker) Close() error {
	var err error
	b.once.Do(func() {
		err = b.pubsub.Close()
		b.wg.Wait()
	})
	return err
}
