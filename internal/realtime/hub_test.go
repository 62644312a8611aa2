package realtime

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestKeyRoundTrip(t *testing.T) {
	k := Key{AppID: "fridgechef", OwnerID: "u1", Collection: "shopping_items"}
	got, ok := ParseKey(k.String())
	require.True(t, ok)
	assert.Equal(t, k, got)

	_, ok = ParseKey("only|two")
	assert.False(t, ok)
	_, ok = ParseKey("a||c")
	assert.False(t, ok)
}

func TestHubDeliversToMatchingSubscribers(t *testing.T) {
	hub := NewHub(NewLocalBroker())
	defer hub.Close()

	shopping := Key{AppID: "a", OwnerID: "u1", Collection: "shopping_items"}
	favorites := Key{AppID: "a", OwnerID: "u1", Collection: "favorites"}

	ch, cancel := hub.Subscribe(shopping)
	defer cancel()
	other, cancelOther := hub.Subscribe(favorites)
	defer cancelOther()

	require.NoError(t, hub.Publish(context.Background(), shopping))

	select {
	case <-ch:
	case <-time.After(time.Second):
		t.Fatal("expected a change notification")
	}

	select {
	case <-other:
		t.Fatal("unrelated collection must not be notified")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestHubCoalescesBurst(t *testing.T) {
	hub := NewHub(NewLocalBroker())
	defer hub.Close()

	key := Key{AppID: "a", OwnerID: "u1", Collection: "history"}
	ch, cancel := hub.Subscribe(key)
	defer cancel()

	for i := 0; i < 10; i++ {
		require.NoError(t, hub.Publish(context.Background(), key))
	}

	assert.Eventually(t, func() bool { return len(ch) == 1 }, time.Second, 5*time.Millisecond)
}

func TestHubCancelIsIdempotent(t *testing.T) {
	hub := NewHub(NewLocalBroker())
	defer hub.Close()

	key := Key{AppID: "a", OwnerID: "u1", Collection: "settings"}
	ch, cancel := hub.Subscribe(key)
	assert.Equal(t, 1, hub.Subscribers(key))

	cancel()
	cancel()
	assert.Equal(t, 0, hub.Subscribers(key))

	_, open := <-ch
	assert.False(t, open)
}

func TestLocalBrokerRejectsAfterClose(t *testing.T) {
	b := NewLocalBroker()
	require.NoError(t, b.Close())
	require.NoError(t, b.Close())
	assert.ErrorIs(t, b.Publish(context.Background(), Key{AppID: "a", OwnerID: "b", Collection: "c"}), ErrClosed)
}
