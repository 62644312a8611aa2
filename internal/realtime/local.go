package realtime

import (
	"context"
	"sync"
)

// LocalBroker delivers keys within the current process only.
type LocalBroker struct {
	mu     sync.RWMutex
	ch     chan Key
	closed bool
}

func NewLocalBroker() *LocalBroker {
	return &LocalBroker{ch: make(chan Key, 256)}
}

func (b *LocalBroker) Publish(ctx context.Context, key Key) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return ErrClosed
	}
	select {
	case b.ch <- key:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (b *LocalBroker) Messages() <-chan Key { return b.ch }

func (b *LocalBroker) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.closed {
		b.closed = true
		close(b.ch)
	}
	return nil
}
