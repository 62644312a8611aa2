// Package realtime fans document-change notifications out to live
// subscribers. Notifications carry no payload: a subscriber that is told its
// collection changed re-reads the full snapshot.
package realtime

import (
	"context"
	"errors"
	"strings"
	"sync"
)

// ErrClosed is returned when publishing through a closed broker.
var ErrClosed = errors.New("realtime: broker closed")

// Key addresses one collection inside one principal's namespace.
type Key struct {
	AppID      string
	OwnerID    string
	Collection string
}

func (k Key) String() string {
	return k.AppID + "|" + k.OwnerID + "|" + k.Collection
}

// ParseKey reverses Key.String.
func ParseKey(s string) (Key, bool) {
	parts := strings.Split(s, "|")
	if len(parts) != 3 || parts[0] == "" || parts[1] == "" || parts[2] == "" {
		return Key{}, false
	}
	return Key{AppID: parts[0], OwnerID: parts[1], Collection: parts[2]}, true
}

// Broker moves change keys between server instances. Messages must deliver
// keys published by this instance as well.
type Broker interface {
	Publish(ctx context.Context, key Key) error
	Messages() <-chan Key
	Close() error
}

type subscriber struct {
	ch chan struct{}
}

// Hub keeps the local listeners and feeds them from a Broker.
type Hub struct {
	broker Broker

	mu   sync.Mutex
	subs map[Key]map[*subscriber]struct{}

	wg sync.WaitGroup
}

func NewHub(broker Broker) *Hub {
	h := &Hub{
		broker: broker,
		subs:   make(map[Key]map[*subscriber]struct{}),
	}
	h.wg.Add(1)
	go h.run()
	return h
}

func (h *Hub) run() {
	defer h.wg.Done()
	for key := range h.broker.Messages() {
		h.fanout(key)
	}
}

func (h *Hub) fanout(key Key) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for sub := range h.subs[key] {
		// Coalesce: one pending signal is enough to trigger a re-read.
		select {
		case sub.ch <- struct{}{}:
		default:
		}
	}
}

// Subscribe registers interest in key. The returned cancel func is
// idempotent and closes the channel.
func (h *Hub) Subscribe(key Key) (<-chan struct{}, func()) {
	sub := &subscriber{ch: make(chan struct{}, 1)}

	h.mu.Lock()
	if h.subs[key] == nil {
		h.subs[key] = make(map[*subscriber]struct{})
	}
	h.subs[key][sub] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	return sub.ch, func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs[key], sub)
			if len(h.subs[key]) == 0 {
				delete(h.subs, key)
			}
			h.mu.Unlock()
			close(sub.ch)
		})
	}
}

// Publish announces that key changed.
func (h *Hub) Publish(ctx context.Context, key Key) error {
	return h.broker.Publish(ctx, key)
}

// Subscribers reports how many listeners are attached to key.
func (h *Hub) Subscribers(key Key) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs[key])
}

// Close shuts the broker down and waits for the delivery loop to exit.
func (h *Hub) Close() error {
	err := h.broker.Close()
	h.wg.Wait()
	return err
}
